package upload

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/ksstormnet/cme-content-worker-sub001/internal/migrator/models"
)

func TestImportArticles(t *testing.T) {
	var gotAuth string
	var gotPayload ImportPayload

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/import/articles" {
			http.NotFound(w, r)
			return
		}
		gotAuth = r.Header.Get("Authorization")
		json.NewDecoder(r.Body).Decode(&gotPayload)
		json.NewEncoder(w).Encode(map[string]interface{}{
			"success": true,
			"data":    map[string]int{"imported": 2, "skipped": 1},
		})
	}))
	defer server.Close()

	client := NewAPIClient(server.URL, "secret-token")

	result, err := client.ImportArticles(context.Background(), []map[string]interface{}{
		{"title": "One"},
		{"title": "Two"},
	})
	if err != nil {
		t.Fatalf("ImportArticles failed: %v", err)
	}

	if result.Imported != 2 || result.Skipped != 1 {
		t.Errorf("result = %+v", result)
	}
	if gotAuth != "Bearer secret-token" {
		t.Errorf("Authorization = %q", gotAuth)
	}
	if len(gotPayload.ArticlesData) != 2 {
		t.Errorf("payload carried %d articles", len(gotPayload.ArticlesData))
	}
	if len(gotPayload.ContentPlansData) != 0 {
		t.Errorf("articles import must not carry content plans")
	}
}

func TestImportContentPlans(t *testing.T) {
	var gotPath string
	var gotPayload ImportPayload

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		json.NewDecoder(r.Body).Decode(&gotPayload)
		json.NewEncoder(w).Encode(map[string]interface{}{
			"success": true,
			"data":    map[string]int{"imported": 1},
		})
	}))
	defer server.Close()

	client := NewAPIClient(server.URL, "")

	result, err := client.ImportContentPlans(context.Background(), []map[string]interface{}{
		{"week": 12, "theme": "alaska"},
	})
	if err != nil {
		t.Fatalf("ImportContentPlans failed: %v", err)
	}

	if result.Imported != 1 {
		t.Errorf("result = %+v", result)
	}
	if gotPath != "/api/import/content-plans" {
		t.Errorf("path = %q, want /api/import/content-plans", gotPath)
	}
	if len(gotPayload.ContentPlansData) != 1 {
		t.Errorf("payload carried %d content plans", len(gotPayload.ContentPlansData))
	}
	if len(gotPayload.ArticlesData) != 0 {
		t.Errorf("content-plan import must not carry articles")
	}
}

func TestImportArticlesRejected(t *testing.T) {
	tests := []struct {
		name    string
		handler http.HandlerFunc
	}{
		{
			name: "http error",
			handler: func(w http.ResponseWriter, _ *http.Request) {
				http.Error(w, "nope", http.StatusUnauthorized)
			},
		},
		{
			name: "success false",
			handler: func(w http.ResponseWriter, _ *http.Request) {
				json.NewEncoder(w).Encode(map[string]interface{}{
					"success": false,
					"error":   "duplicate slugs",
				})
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server := httptest.NewServer(tt.handler)
			defer server.Close()

			client := NewAPIClient(server.URL, "")
			_, err := client.ImportArticles(context.Background(), []map[string]interface{}{{"title": "X"}})
			if !errors.Is(err, ErrImportRejected) {
				t.Errorf("expected ErrImportRejected, got %v", err)
			}
		})
	}
}

func TestValidateImport(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/import/validate" {
			http.NotFound(w, r)
			return
		}
		json.NewEncoder(w).Encode(map[string]ValidationResult{
			"articles": {Total: 3, Valid: 2, Invalid: 1, Errors: []string{"article 2: missing title"}},
		})
	}))
	defer server.Close()

	client := NewAPIClient(server.URL, "")

	results, err := client.ValidateImport(context.Background(), ImportPayload{
		ArticlesData: []map[string]interface{}{{"title": "A"}},
	})
	if err != nil {
		t.Fatalf("ValidateImport failed: %v", err)
	}

	articles, ok := results["articles"]
	if !ok {
		t.Fatalf("missing articles category: %v", results)
	}
	if articles.Valid != 2 || articles.Invalid != 1 {
		t.Errorf("articles = %+v", articles)
	}
}

func TestUploadMultipartFields(t *testing.T) {
	var gotFields map[string]string
	var gotFile []byte
	var gotFileName string

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if err := r.ParseMultipartForm(1 << 20); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}

		gotFields = make(map[string]string)
		for name, values := range r.MultipartForm.Value {
			gotFields[name] = values[0]
		}

		file, header, err := r.FormFile("file")
		if err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		defer file.Close()
		gotFileName = header.Filename
		gotFile, _ = io.ReadAll(file)

		json.NewEncoder(w).Encode(map[string]string{"url": "https://cdn.example/2024/01/pic.jpg"})
	}))
	defer server.Close()

	client := NewAPIClient(server.URL, "")

	item := models.MediaItem{
		ID:       10,
		Title:    "Pic",
		AltText:  "a picture",
		Caption:  "taken at sea",
		FilePath: "2024/01/pic.jpg",
	}

	url, err := client.Upload(context.Background(), item, strings.NewReader("image bytes"))
	if err != nil {
		t.Fatalf("Upload failed: %v", err)
	}

	if url != "https://cdn.example/2024/01/pic.jpg" {
		t.Errorf("url = %q", url)
	}
	if gotFileName != "pic.jpg" {
		t.Errorf("file name = %q, want pic.jpg", gotFileName)
	}
	if string(gotFile) != "image bytes" {
		t.Errorf("file content = %q", gotFile)
	}

	want := map[string]string{
		"path":        "2024/01",
		"title":       "Pic",
		"alt_text":    "a picture",
		"caption":     "taken at sea",
		"description": "",
	}
	for name, value := range want {
		if gotFields[name] != value {
			t.Errorf("field %s = %q, want %q", name, gotFields[name], value)
		}
	}
}

func TestUploadRequiresURL(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Write([]byte(`{}`))
	}))
	defer server.Close()

	client := NewAPIClient(server.URL, "")
	_, err := client.Upload(context.Background(), models.MediaItem{FilePath: "a.jpg"}, strings.NewReader("x"))
	if err != ErrNoUploadURL {
		t.Errorf("expected ErrNoUploadURL, got %v", err)
	}
}
