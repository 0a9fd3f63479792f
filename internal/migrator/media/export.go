package media

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"os"
	"path"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/ksstormnet/cme-content-worker-sub001/internal/migrator/download"
	"github.com/ksstormnet/cme-content-worker-sub001/internal/migrator/models"
	"github.com/ksstormnet/cme-content-worker-sub001/internal/migrator/wpclient"
	"github.com/ksstormnet/cme-content-worker-sub001/pkg/util"

	"github.com/rs/zerolog"
)

const (
	defaultPerPage = 100
	// Safety cap on pagination.
	maxPages = 1000

	uploadsMarker = "/wp-content/uploads/"

	// Tier thresholds for scaling download concurrency with library size.
	largeLibraryFiles = 1000
	midLibraryFiles   = 500
)

var (
	ErrMediaExportFailed = errors.New("media library export failed")
	ErrNilInventory      = errors.New("inventory must not be nil")
)

// Stats are the aggregates accumulated across the whole media library.
type Stats struct {
	TotalBytes    int64          `json:"total_bytes"`
	ImageFiles    int            `json:"image_files"`
	VideoFiles    int            `json:"video_files"`
	DocumentFiles int            `json:"document_files"`
	OtherFiles    int            `json:"other_files"`
	OldestUpload  *time.Time     `json:"oldest_upload,omitempty"`
	NewestUpload  *time.Time     `json:"newest_upload,omitempty"`
	Directories   map[string]int `json:"directories"`
}

// Inventory is the staged result of a media export: items plus aggregates,
// built up phase by phase and passed explicitly between them.
type Inventory struct {
	Site        string             `json:"site"`
	ExportedAt  time.Time          `json:"exported_at"`
	Items       []models.MediaItem `json:"items"`
	Stats       Stats              `json:"stats"`
	SortedDirs  []string           `json:"sorted_directories,omitempty"`
	Concurrent  int                `json:"concurrent_downloads"`
	BatchSize   int                `json:"batch_size"`
	PagesWalked int                `json:"pages_walked"`
}

// Exporter paginates a site's media collection into an Inventory.
type Exporter struct {
	client  *wpclient.Client
	perPage int
	logger  zerolog.Logger
}

// NewExporter creates a media exporter on top of an existing client.
func NewExporter(client *wpclient.Client) *Exporter {
	return &Exporter{
		client:  client,
		perPage: defaultPerPage,
		logger:  util.NewLogger(zerolog.InfoLevel),
	}
}

// SetPerPage overrides the collection page size.
func (e *Exporter) SetPerPage(perPage int) {
	e.perPage = perPage
}

// mediaRecord mirrors the raw /wp/v2/media item shape.
type mediaRecord struct {
	ID        int    `json:"id"`
	Date      string `json:"date"`
	MimeType  string `json:"mime_type"`
	SourceURL string `json:"source_url"`
	AltText   string `json:"alt_text"`
	Title     struct {
		Rendered string `json:"rendered"`
	} `json:"title"`
	Caption struct {
		Rendered string `json:"rendered"`
	} `json:"caption"`
	MediaDetails struct {
		Width    int   `json:"width"`
		Height   int   `json:"height"`
		FileSize int64 `json:"filesize"`
		Sizes    map[string]struct {
			File      string `json:"file"`
			Width     int    `json:"width"`
			Height    int    `json:"height"`
			FileSize  int64  `json:"filesize"`
			SourceURL string `json:"source_url"`
		} `json:"sizes"`
	} `json:"media_details"`
}

// ExportLibrary walks the media collection newest-first and returns the
// full inventory. Pagination ends on an empty page, a short page, or a 400
// past page 1; a 400 on page 1 is still a hard failure.
func (e *Exporter) ExportLibrary(ctx context.Context) (*Inventory, error) {
	inventory := &Inventory{
		Site:       e.client.BaseURL(),
		ExportedAt: time.Now(),
		Stats: Stats{
			Directories: make(map[string]int),
		},
	}

	for page := 1; page <= maxPages; page++ {
		query := url.Values{}
		query.Set("per_page", strconv.Itoa(e.perPage))
		query.Set("page", strconv.Itoa(page))
		query.Set("orderby", "date")
		query.Set("order", "desc")

		result := e.client.Request(ctx, "/wp-json/wp/v2/media", &wpclient.RequestOptions{Query: query})
		if !result.Success {
			if result.Status == http.StatusBadRequest && page > 1 {
				// WordPress signals the end of a collection this way.
				break
			}
			e.logger.Error().Str("error", result.Error).Int("page", page).Msg("media page fetch failed")
			return nil, fmt.Errorf("%w: page %d: %s", ErrMediaExportFailed, page, result.Error)
		}

		var records []mediaRecord
		if err := json.Unmarshal(result.Data, &records); err != nil {
			e.logger.Error().Err(err).Int("page", page).Msg("failed to decode media page")
			return nil, err
		}

		inventory.PagesWalked = page

		if len(records) == 0 {
			break
		}

		for _, record := range records {
			item := e.normalize(record)
			e.accumulate(inventory, item)
			inventory.Items = append(inventory.Items, item)
		}

		e.logger.Info().
			Int("page", page).
			Int("items", len(records)).
			Int("total", len(inventory.Items)).
			Msg("walked media page")

		if len(records) < e.perPage {
			break
		}
	}

	return inventory, nil
}

// normalize maps one raw record into a MediaItem. Size variants are
// recorded for inventory only; DownloadURLs carries at most the original.
func (e *Exporter) normalize(record mediaRecord) models.MediaItem {
	item := models.MediaItem{
		ID:        record.ID,
		Title:     strings.TrimSpace(record.Title.Rendered),
		AltText:   record.AltText,
		Caption:   strings.TrimSpace(stripTags(record.Caption.Rendered)),
		MimeType:  record.MimeType,
		SourceURL: record.SourceURL,
		FileSize:  record.MediaDetails.FileSize,
		Width:     record.MediaDetails.Width,
		Height:    record.MediaDetails.Height,
		FilePath:  LocalPathFor(record.SourceURL),
	}

	if record.SourceURL != "" {
		item.DownloadURLs = []string{record.SourceURL}
	}

	if parsed, err := time.Parse(time.RFC3339, record.Date); err == nil {
		item.UploadDate = &parsed
	} else if parsed, err := time.Parse("2006-01-02T15:04:05", record.Date); err == nil {
		item.UploadDate = &parsed
	}

	names := make([]string, 0, len(record.MediaDetails.Sizes))
	for name := range record.MediaDetails.Sizes {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		size := record.MediaDetails.Sizes[name]
		item.SizeVariants = append(item.SizeVariants, models.SizeVariant{
			Name:     name,
			URL:      size.SourceURL,
			Width:    size.Width,
			Height:   size.Height,
			FileSize: size.FileSize,
		})
	}

	return item
}

func (e *Exporter) accumulate(inventory *Inventory, item models.MediaItem) {
	stats := &inventory.Stats

	stats.TotalBytes += item.FileSize

	switch {
	case strings.HasPrefix(item.MimeType, "image/"):
		stats.ImageFiles++
	case strings.HasPrefix(item.MimeType, "video/"):
		stats.VideoFiles++
	case strings.Contains(item.MimeType, "pdf"),
		strings.Contains(item.MimeType, "document"),
		strings.Contains(item.MimeType, "msword"),
		strings.HasPrefix(item.MimeType, "text/"):
		stats.DocumentFiles++
	default:
		stats.OtherFiles++
	}

	if item.UploadDate != nil {
		if stats.OldestUpload == nil || item.UploadDate.Before(*stats.OldestUpload) {
			stats.OldestUpload = item.UploadDate
		}
		if stats.NewestUpload == nil || item.UploadDate.After(*stats.NewestUpload) {
			stats.NewestUpload = item.UploadDate
		}
	}

	dir := path.Dir(item.FilePath)
	stats.Directories[dir]++
}

// AnalyzeUploadStructure sorts the discovered directories and scales the
// download parameters with the library size.
func AnalyzeUploadStructure(inventory *Inventory) error {
	if inventory == nil {
		return ErrNilInventory
	}

	dirs := make([]string, 0, len(inventory.Stats.Directories))
	for dir := range inventory.Stats.Directories {
		dirs = append(dirs, dir)
	}
	sort.Strings(dirs)
	inventory.SortedDirs = dirs

	total := len(inventory.Items)
	switch {
	case total > largeLibraryFiles:
		inventory.Concurrent = 8
		inventory.BatchSize = 100
	case total > midLibraryFiles:
		inventory.Concurrent = 6
		inventory.BatchSize = 75
	default:
		inventory.Concurrent = 4
		inventory.BatchSize = 50
	}

	return nil
}

// BuildPlan turns the analyzed inventory into a download plan. Only items
// with a non-empty DownloadURLs yield jobs, one job per item.
func BuildPlan(inventory *Inventory, outputDir string, retryAttempts, rateLimitMs int) *download.Plan {
	plan := &download.Plan{
		SourceSite:    inventory.Site,
		GeneratedAt:   time.Now(),
		OutputDir:     outputDir,
		Concurrent:    inventory.Concurrent,
		RetryAttempts: retryAttempts,
		RateLimitMs:   rateLimitMs,
		TotalBytes:    inventory.Stats.TotalBytes,
	}
	if plan.Concurrent < 1 {
		plan.Concurrent = 4
	}

	for _, item := range inventory.Items {
		if len(item.DownloadURLs) == 0 {
			continue
		}
		plan.Jobs = append(plan.Jobs, models.DownloadJob{
			URL:       item.DownloadURLs[0],
			LocalPath: item.FilePath,
			Size:      item.FileSize,
			MediaID:   item.ID,
		})
	}

	return plan
}

// Write serializes the inventory artifact to path.
func (inv *Inventory) Write(filePath string) error {
	data, err := json.MarshalIndent(inv, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(filePath, data, 0o644)
}

// LocalPathFor computes the local target path from the source URL by taking
// everything after the uploads marker, falling back to an unknown/ bucket.
func LocalPathFor(sourceURL string) string {
	if idx := strings.Index(sourceURL, uploadsMarker); idx >= 0 {
		return sourceURL[idx+len(uploadsMarker):]
	}
	return "unknown/" + path.Base(sourceURL)
}

// stripTags removes markup from short rendered fragments like captions.
func stripTags(s string) string {
	var b strings.Builder
	inTag := false
	for _, r := range s {
		switch {
		case r == '<':
			inTag = true
		case r == '>':
			inTag = false
		case !inTag:
			b.WriteRune(r)
		}
	}
	return b.String()
}
