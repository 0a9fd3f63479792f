package upload

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"path"
	"strings"
	"time"

	"github.com/ksstormnet/cme-content-worker-sub001/internal/migrator/models"
	"github.com/ksstormnet/cme-content-worker-sub001/pkg/util"

	"github.com/rs/zerolog"
)

const defaultAPITimeout = 60 * time.Second

var (
	ErrImportRejected = errors.New("import request rejected")
	ErrUploadRejected = errors.New("media upload rejected")
	ErrNoUploadURL    = errors.New("media upload response carried no url")
)

// ImportResult is the per-category outcome the backend reports for an
// import request.
type ImportResult struct {
	Imported int      `json:"imported"`
	Skipped  int      `json:"skipped"`
	Errors   []string `json:"errors,omitempty"`
}

// ValidationResult is the backend's dry-run verdict for one category.
type ValidationResult struct {
	Total   int      `json:"total"`
	Valid   int      `json:"valid"`
	Invalid int      `json:"invalid"`
	Errors  []string `json:"errors,omitempty"`
}

// ImportPayload is the wire shape of an import or validate request.
type ImportPayload struct {
	ContentPlansData []map[string]interface{} `json:"content_plans_data,omitempty"`
	ArticlesData     []map[string]interface{} `json:"articles_data,omitempty"`
}

type importResponse struct {
	Success bool          `json:"success"`
	Error   string        `json:"error,omitempty"`
	Data    *ImportResult `json:"data,omitempty"`
}

// APIClient talks to this project's own backend: article/content-plan
// import, payload validation and media upload.
type APIClient struct {
	baseURL    string
	authToken  string
	httpClient *http.Client
	logger     zerolog.Logger
}

// NewAPIClient creates a backend client. authToken may be empty for
// backends that trust the session cookie instead.
func NewAPIClient(baseURL, authToken string) *APIClient {
	return &APIClient{
		baseURL:   strings.TrimRight(baseURL, "/"),
		authToken: authToken,
		httpClient: &http.Client{
			Timeout: defaultAPITimeout,
		},
		logger: util.NewLogger(zerolog.InfoLevel),
	}
}

// SetTimeout overrides the request timeout.
func (c *APIClient) SetTimeout(timeout time.Duration) {
	c.httpClient.Timeout = timeout
}

// ImportArticles pushes converted articles into the backend.
func (c *APIClient) ImportArticles(ctx context.Context, articles []map[string]interface{}) (*ImportResult, error) {
	return c.importCategory(ctx, "/api/import/articles", ImportPayload{ArticlesData: articles})
}

// ImportContentPlans pushes content plans into the backend.
func (c *APIClient) ImportContentPlans(ctx context.Context, plans []map[string]interface{}) (*ImportResult, error) {
	return c.importCategory(ctx, "/api/import/content-plans", ImportPayload{ContentPlansData: plans})
}

func (c *APIClient) importCategory(ctx context.Context, endpoint string, payload ImportPayload) (*ImportResult, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	c.authorize(req)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.logger.Error().Err(err).Str("endpoint", endpoint).Msg("import request failed")
		return nil, err
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%w: HTTP %d: %s", ErrImportRejected, resp.StatusCode,
			strings.TrimSpace(string(respBody)))
	}

	var decoded importResponse
	if err := json.Unmarshal(respBody, &decoded); err != nil {
		return nil, err
	}
	if !decoded.Success {
		return nil, fmt.Errorf("%w: %s", ErrImportRejected, decoded.Error)
	}
	if decoded.Data == nil {
		decoded.Data = &ImportResult{}
	}

	return decoded.Data, nil
}

// ValidateImport asks the backend for a dry-run verdict on the payload and
// returns the per-category results.
func (c *APIClient) ValidateImport(ctx context.Context, payload ImportPayload) (map[string]ValidationResult, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/api/import/validate", bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	c.authorize(req)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%w: HTTP %d: %s", ErrImportRejected, resp.StatusCode,
			strings.TrimSpace(string(respBody)))
	}

	var results map[string]ValidationResult
	if err := json.Unmarshal(respBody, &results); err != nil {
		return nil, err
	}

	return results, nil
}

// Upload sends one media file to the backend as a multipart form and
// returns the stored URL. Satisfies the pipeline's Uploader.
func (c *APIClient) Upload(ctx context.Context, item models.MediaItem, body io.Reader) (string, error) {
	var buf bytes.Buffer
	form := multipart.NewWriter(&buf)

	part, err := form.CreateFormFile("file", path.Base(item.FilePath))
	if err != nil {
		return "", err
	}
	if _, err := io.Copy(part, body); err != nil {
		return "", err
	}

	fields := map[string]string{
		"path":        path.Dir(item.FilePath),
		"title":       item.Title,
		"alt_text":    item.AltText,
		"caption":     item.Caption,
		"description": "",
	}
	for name, value := range fields {
		if err := form.WriteField(name, value); err != nil {
			return "", err
		}
	}
	if err := form.Close(); err != nil {
		return "", err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/api/media/upload", &buf)
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", form.FormDataContentType())
	c.authorize(req)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.logger.Error().Err(err).Int("media_id", item.ID).Msg("media upload failed")
		return "", err
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", err
	}

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("%w: HTTP %d: %s", ErrUploadRejected, resp.StatusCode,
			strings.TrimSpace(string(respBody)))
	}

	var decoded struct {
		URL string `json:"url"`
	}
	if err := json.Unmarshal(respBody, &decoded); err != nil {
		return "", err
	}
	if decoded.URL == "" {
		return "", ErrNoUploadURL
	}

	return decoded.URL, nil
}

func (c *APIClient) authorize(req *http.Request) {
	if c.authToken != "" {
		req.Header.Set("Authorization", "Bearer "+c.authToken)
	}
}
