package pipeline

import (
	"encoding/json"
	"os"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Entry outcomes.
const (
	OutcomeMigrated = "migrated"
	OutcomeUploaded = "uploaded"
	OutcomeFailed   = "failed"
	OutcomeSkipped  = "skipped"
)

// LogEntry is the append-only record for one processed item.
type LogEntry struct {
	ID        string    `json:"id"`
	ItemType  string    `json:"item_type"`
	ItemID    int       `json:"item_id"`
	Title     string    `json:"title,omitempty"`
	Outcome   string    `json:"outcome"`
	Error     string    `json:"error,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

// Log is the migration run's durability mechanism: after every single item
// the whole structure is rewritten to disk, so a crashed run can be resumed
// or inspected mid-flight. The O(n) rewrite per item is the accepted cost.
type Log struct {
	mu sync.Mutex

	Site      string     `json:"site"`
	StartedAt time.Time  `json:"started_at"`
	Posts     []LogEntry `json:"posts"`
	Media     []LogEntry `json:"media"`

	PostsMigrated int `json:"posts_migrated"`
	PostsFailed   int `json:"posts_failed"`
	MediaUploaded int `json:"media_uploaded"`
	MediaFailed   int `json:"media_failed"`

	path string
}

// NewLog starts a fresh log persisted at path.
func NewLog(path, site string) *Log {
	return &Log{
		Site:      site,
		StartedAt: time.Now(),
		path:      path,
	}
}

// LoadLog resumes from an existing log file; a missing file yields a fresh
// log.
func LoadLog(path, site string) (*Log, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return NewLog(path, site), nil
		}
		return nil, err
	}

	var log Log
	if err := json.Unmarshal(data, &log); err != nil {
		return nil, err
	}
	log.path = path

	return &log, nil
}

// HasPost reports whether a post already has a terminal successful entry,
// so resumed runs skip it.
func (l *Log) HasPost(id int) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	for _, entry := range l.Posts {
		if entry.ItemID == id && entry.Outcome == OutcomeMigrated {
			return true
		}
	}
	return false
}

// HasMedia reports whether a media item already uploaded successfully.
func (l *Log) HasMedia(id int) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	for _, entry := range l.Media {
		if entry.ItemID == id && entry.Outcome == OutcomeUploaded {
			return true
		}
	}
	return false
}

// AppendPost records one post outcome and persists the whole log.
func (l *Log) AppendPost(itemID int, title, outcome, errMsg string) error {
	l.mu.Lock()
	l.Posts = append(l.Posts, newEntry("post", itemID, title, outcome, errMsg))
	if outcome == OutcomeMigrated {
		l.PostsMigrated++
	} else if outcome == OutcomeFailed {
		l.PostsFailed++
	}
	l.mu.Unlock()

	return l.Persist()
}

// AppendMedia records one media outcome and persists the whole log.
func (l *Log) AppendMedia(itemID int, title, outcome, errMsg string) error {
	l.mu.Lock()
	l.Media = append(l.Media, newEntry("media", itemID, title, outcome, errMsg))
	if outcome == OutcomeUploaded {
		l.MediaUploaded++
	} else if outcome == OutcomeFailed {
		l.MediaFailed++
	}
	l.mu.Unlock()

	return l.Persist()
}

// Persist rewrites the full log file.
func (l *Log) Persist() error {
	l.mu.Lock()
	data, err := json.MarshalIndent(l, "", "  ")
	l.mu.Unlock()
	if err != nil {
		return err
	}
	return os.WriteFile(l.path, data, 0o644)
}

func newEntry(itemType string, itemID int, title, outcome, errMsg string) LogEntry {
	return LogEntry{
		ID:        uuid.New().String(),
		ItemType:  itemType,
		ItemID:    itemID,
		Title:     title,
		Outcome:   outcome,
		Error:     errMsg,
		Timestamp: time.Now(),
	}
}
