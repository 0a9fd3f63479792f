package pipeline

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strconv"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/ksstormnet/cme-content-worker-sub001/internal/migrator/models"
	"github.com/ksstormnet/cme-content-worker-sub001/internal/migrator/upload"
	"github.com/ksstormnet/cme-content-worker-sub001/internal/migrator/wpclient"
)

type captureUploader struct {
	mu    sync.Mutex
	items []models.MediaItem
	body  []byte
	fail  bool
}

func (u *captureUploader) Upload(_ context.Context, item models.MediaItem, body io.Reader) (string, error) {
	if u.fail {
		return "", errors.New("storage unavailable")
	}
	data, err := io.ReadAll(body)
	if err != nil {
		return "", err
	}
	u.mu.Lock()
	u.items = append(u.items, item)
	u.body = data
	u.mu.Unlock()
	return "https://cdn.example/" + item.FilePath, nil
}

func postJSON(id int, title, content string) map[string]interface{} {
	return map[string]interface{}{
		"id":      id,
		"date":    "2024-03-01T09:00:00",
		"slug":    fmt.Sprintf("post-%d", id),
		"status":  "publish",
		"link":    fmt.Sprintf("https://src.example/post-%d", id),
		"title":   map[string]string{"rendered": title},
		"content": map[string]string{"rendered": content},
		"excerpt": map[string]string{"rendered": ""},
	}
}

// sourceSite serves the WP-side endpoints the orchestrator walks.
func sourceSite(t *testing.T, posts []map[string]interface{}, media []map[string]interface{}) *httptest.Server {
	t.Helper()

	mux := http.NewServeMux()
	mux.HandleFunc("/wp-json/", func(w http.ResponseWriter, _ *http.Request) {
		w.Write([]byte(`{"name":"Source"}`))
	})
	mux.HandleFunc("/wp-json/wp/v2/posts", func(w http.ResponseWriter, r *http.Request) {
		servePage(w, r, posts)
	})
	mux.HandleFunc("/wp-json/wp/v2/media", func(w http.ResponseWriter, r *http.Request) {
		servePage(w, r, media)
	})
	mux.HandleFunc("/wp-content/uploads/", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprintf(w, "bytes of %s", r.URL.Path)
	})

	server := httptest.NewServer(mux)
	t.Cleanup(server.Close)
	return server
}

func servePage(w http.ResponseWriter, r *http.Request, items []map[string]interface{}) {
	page, _ := strconv.Atoi(r.URL.Query().Get("page"))
	if page > 1 {
		http.Error(w, `{"code":"rest_post_invalid_page_number"}`, http.StatusBadRequest)
		return
	}
	json.NewEncoder(w).Encode(items)
}

// destinationAPI counts successful article imports.
func destinationAPI(t *testing.T, imports *int64) *httptest.Server {
	t.Helper()

	mux := http.NewServeMux()
	mux.HandleFunc("/api/import/articles", func(w http.ResponseWriter, r *http.Request) {
		var payload upload.ImportPayload
		if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		atomic.AddInt64(imports, int64(len(payload.ArticlesData)))
		json.NewEncoder(w).Encode(map[string]interface{}{
			"success": true,
			"data":    map[string]int{"imported": len(payload.ArticlesData)},
		})
	})

	server := httptest.NewServer(mux)
	t.Cleanup(server.Close)
	return server
}

func newTestOrchestrator(t *testing.T, source, dest *httptest.Server, uploader Uploader, log *Log) *Orchestrator {
	t.Helper()

	client, err := wpclient.NewClient(source.URL, "u", "p", wpclient.RateLimitPolicy{
		RequestsPerSecond: 1000,
		MaxConcurrent:     2,
	})
	if err != nil {
		t.Fatalf("failed to create client: %v", err)
	}
	t.Cleanup(client.Close)

	api := upload.NewAPIClient(dest.URL, "token")

	o := NewOrchestrator(client, api, uploader, log)
	o.SetDelays(0, 0)
	return o
}

func TestRunIsolatesPerPostFailures(t *testing.T) {
	posts := []map[string]interface{}{
		postJSON(1, "One", "<p>first</p>"),
		postJSON(2, "Two", "<p>second</p>"),
		postJSON(3, "Three", ""), // no rendered content, must fail alone
		postJSON(4, "Four", "<p>fourth</p>"),
		postJSON(5, "Five", "<p>fifth</p>"),
	}

	var imports int64
	source := sourceSite(t, posts, nil)
	dest := destinationAPI(t, &imports)

	log := NewLog(filepath.Join(t.TempDir(), "migration-log.json"), source.URL)
	o := newTestOrchestrator(t, source, dest, &captureUploader{}, log)

	if err := o.Run(context.Background()); err != nil {
		t.Fatalf("Run failed: %v", err)
	}

	if log.PostsMigrated != 4 {
		t.Errorf("PostsMigrated = %d, want 4", log.PostsMigrated)
	}
	if log.PostsFailed != 1 {
		t.Errorf("PostsFailed = %d, want 1", log.PostsFailed)
	}
	if got := atomic.LoadInt64(&imports); got != 4 {
		t.Errorf("backend received %d articles, want 4", got)
	}

	var failed *LogEntry
	for i := range log.Posts {
		if log.Posts[i].Outcome == OutcomeFailed {
			failed = &log.Posts[i]
		}
	}
	if failed == nil {
		t.Fatal("no failed entry recorded")
	}
	if failed.ItemID != 3 {
		t.Errorf("failed entry is post %d, want 3", failed.ItemID)
	}
	if failed.Error == "" {
		t.Error("failed entry should carry the error")
	}

	// Posts after the failure were still processed.
	for _, id := range []int{4, 5} {
		if !log.HasPost(id) {
			t.Errorf("post %d should have migrated after the failure", id)
		}
	}
}

func TestRunSkipsAlreadyMigratedPosts(t *testing.T) {
	posts := []map[string]interface{}{
		postJSON(1, "One", "<p>first</p>"),
		postJSON(2, "Two", "<p>second</p>"),
	}

	var imports int64
	source := sourceSite(t, posts, nil)
	dest := destinationAPI(t, &imports)

	log := NewLog(filepath.Join(t.TempDir(), "migration-log.json"), source.URL)
	if err := log.AppendPost(1, "One", OutcomeMigrated, ""); err != nil {
		t.Fatal(err)
	}

	o := newTestOrchestrator(t, source, dest, &captureUploader{}, log)
	if err := o.Run(context.Background()); err != nil {
		t.Fatalf("Run failed: %v", err)
	}

	if got := atomic.LoadInt64(&imports); got != 1 {
		t.Errorf("backend received %d articles, resume should only send post 2", got)
	}
}

func TestRunMigratesMedia(t *testing.T) {
	var imports int64
	media := []map[string]interface{}{
		{
			"id":         10,
			"mime_type":  "image/jpeg",
			"source_url": "", // filled once the server URL is known
			"alt_text":   "a picture",
			"title":      map[string]string{"rendered": "Pic"},
			"caption":    map[string]string{"rendered": ""},
		},
	}
	source := sourceSite(t, nil, media)
	media[0]["source_url"] = source.URL + "/wp-content/uploads/2024/01/pic.jpg"
	dest := destinationAPI(t, &imports)

	uploader := &captureUploader{}
	log := NewLog(filepath.Join(t.TempDir(), "migration-log.json"), source.URL)
	o := newTestOrchestrator(t, source, dest, uploader, log)

	if err := o.Run(context.Background()); err != nil {
		t.Fatalf("Run failed: %v", err)
	}

	if log.MediaUploaded != 1 || log.MediaFailed != 0 {
		t.Fatalf("media counters = %d/%d, want 1/0", log.MediaUploaded, log.MediaFailed)
	}
	if len(uploader.items) != 1 {
		t.Fatalf("uploader saw %d items", len(uploader.items))
	}

	item := uploader.items[0]
	if item.ID != 10 {
		t.Errorf("item ID = %d", item.ID)
	}
	if item.FilePath != "2024/01/pic.jpg" {
		t.Errorf("FilePath = %q, want 2024/01/pic.jpg", item.FilePath)
	}
	if string(uploader.body) != "bytes of /wp-content/uploads/2024/01/pic.jpg" {
		t.Errorf("uploaded body = %q", uploader.body)
	}
}

func TestRunRecordsMediaUploadFailure(t *testing.T) {
	var imports int64
	media := []map[string]interface{}{
		{
			"id":         11,
			"mime_type":  "image/jpeg",
			"source_url": "", // filled below
			"title":      map[string]string{"rendered": "Broken"},
			"caption":    map[string]string{"rendered": ""},
		},
	}
	source := sourceSite(t, nil, media)
	media[0]["source_url"] = source.URL + "/wp-content/uploads/2024/01/broken.jpg"
	dest := destinationAPI(t, &imports)

	log := NewLog(filepath.Join(t.TempDir(), "migration-log.json"), source.URL)
	o := newTestOrchestrator(t, source, dest, &captureUploader{fail: true}, log)

	if err := o.Run(context.Background()); err != nil {
		t.Fatalf("Run failed: %v", err)
	}

	if log.MediaFailed != 1 || log.MediaUploaded != 0 {
		t.Errorf("media counters = %d/%d, want 0 uploaded and 1 failed", log.MediaUploaded, log.MediaFailed)
	}
}

func TestRunFailsFastWithoutConnection(t *testing.T) {
	source := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "forbidden", http.StatusForbidden)
	}))
	defer source.Close()

	var imports int64
	dest := destinationAPI(t, &imports)

	log := NewLog(filepath.Join(t.TempDir(), "migration-log.json"), source.URL)
	o := newTestOrchestrator(t, source, dest, &captureUploader{}, log)

	err := o.Run(context.Background())
	if !errors.Is(err, ErrConnectionTest) {
		t.Fatalf("expected ErrConnectionTest, got %v", err)
	}
	if atomic.LoadInt64(&imports) != 0 {
		t.Error("nothing should reach the backend when the connection test fails")
	}
}
