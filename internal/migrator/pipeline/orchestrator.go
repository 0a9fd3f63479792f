package pipeline

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/ksstormnet/cme-content-worker-sub001/internal/migrator/convert"
	"github.com/ksstormnet/cme-content-worker-sub001/internal/migrator/media"
	"github.com/ksstormnet/cme-content-worker-sub001/internal/migrator/models"
	"github.com/ksstormnet/cme-content-worker-sub001/internal/migrator/upload"
	"github.com/ksstormnet/cme-content-worker-sub001/internal/migrator/wpclient"
	"github.com/ksstormnet/cme-content-worker-sub001/pkg/util"

	"github.com/rs/zerolog"
)

const (
	defaultPerPage = 100
	// Safety cap on pagination.
	maxPages = 1000

	// Inter-item pacing, layered on top of the client's own gate. Media
	// moves more bytes, so it gets the longer pause.
	defaultPostDelay  = 500 * time.Millisecond
	defaultMediaDelay = 1500 * time.Millisecond
)

var (
	ErrConnectionTest    = errors.New("initial connection test failed")
	ErrNoRenderedContent = errors.New("post has no rendered content")
	ErrMediaFetch        = errors.New("failed to fetch media bytes")
)

// Uploader stores one media object and returns its new URL.
type Uploader interface {
	Upload(ctx context.Context, item models.MediaItem, body io.Reader) (string, error)
}

// Archiver optionally keeps raw fetched payloads for post-hoc inspection.
type Archiver interface {
	Record(ctx context.Context, rawURL, itemType string, itemID, status int, body []byte) error
}

// Orchestrator runs the full migration: posts then media, each strictly
// sequential. A single item's failure never aborts the batch; it becomes a
// failed log entry and the run moves on.
type Orchestrator struct {
	client    *wpclient.Client
	converter *convert.Converter
	api       *upload.APIClient
	uploader  Uploader
	archiver  Archiver
	log       *Log

	perPage    int
	postDelay  time.Duration
	mediaDelay time.Duration

	httpClient *http.Client
	logger     zerolog.Logger
}

// NewOrchestrator wires the migration stages together. uploader decides
// where media lands (backend API route or direct R2); archiver may be nil.
func NewOrchestrator(
	client *wpclient.Client,
	api *upload.APIClient,
	uploader Uploader,
	log *Log,
) *Orchestrator {
	return &Orchestrator{
		client:     client,
		converter:  convert.NewConverter(),
		api:        api,
		uploader:   uploader,
		log:        log,
		perPage:    defaultPerPage,
		postDelay:  defaultPostDelay,
		mediaDelay: defaultMediaDelay,
		httpClient: &http.Client{Timeout: 2 * time.Minute},
		logger:     util.NewLogger(zerolog.InfoLevel),
	}
}

// SetArchiver enables raw-payload archiving.
func (o *Orchestrator) SetArchiver(archiver Archiver) {
	o.archiver = archiver
}

// SetDelays overrides the inter-item pacing.
func (o *Orchestrator) SetDelays(post, media time.Duration) {
	o.postDelay = post
	o.mediaDelay = media
}

// SetPerPage overrides the collection page size.
func (o *Orchestrator) SetPerPage(perPage int) {
	o.perPage = perPage
}

// Run executes the whole migration. Only the initial connection test is a
// whole-pipeline precondition; everything after is per-item.
func (o *Orchestrator) Run(ctx context.Context) error {
	if result := o.client.TestConnection(ctx); !result.Success {
		o.logger.Error().Str("error", result.Error).Msg("connection test failed")
		return fmt.Errorf("%w: %s", ErrConnectionTest, result.Error)
	}

	if err := o.MigratePosts(ctx); err != nil {
		return err
	}
	if err := o.MigrateMedia(ctx); err != nil {
		return err
	}

	o.logger.Info().
		Int("posts_migrated", o.log.PostsMigrated).
		Int("posts_failed", o.log.PostsFailed).
		Int("media_uploaded", o.log.MediaUploaded).
		Int("media_failed", o.log.MediaFailed).
		Msg("migration run complete")

	return nil
}

// postRecord mirrors the raw /wp/v2/posts item shape.
type postRecord struct {
	ID       int    `json:"id"`
	Date     string `json:"date"`
	Modified string `json:"modified"`
	Slug     string `json:"slug"`
	Status   string `json:"status"`
	Link     string `json:"link"`
	Title    struct {
		Rendered string `json:"rendered"`
	} `json:"title"`
	Content struct {
		Rendered string `json:"rendered"`
	} `json:"content"`
	Excerpt struct {
		Rendered string `json:"rendered"`
	} `json:"excerpt"`
	Categories    []int `json:"categories"`
	Tags          []int `json:"tags"`
	FeaturedMedia int   `json:"featured_media"`
}

// MigratePosts walks the post collection and migrates each post through
// fetch, convert and import, logging after every item.
func (o *Orchestrator) MigratePosts(ctx context.Context) error {
	for page := 1; page <= maxPages; page++ {
		records, done, err := o.fetchPostPage(ctx, page)
		if err != nil {
			return err
		}

		for _, record := range records {
			if o.log.HasPost(record.ID) {
				o.logger.Debug().Int("post_id", record.ID).Msg("already migrated, skipping")
				continue
			}

			if err := o.migratePost(ctx, record); err != nil {
				o.logger.Error().Err(err).Int("post_id", record.ID).Msg("post migration failed")
				if logErr := o.log.AppendPost(record.ID, record.Title.Rendered, OutcomeFailed, err.Error()); logErr != nil {
					return logErr
				}
			} else {
				o.logger.Info().Int("post_id", record.ID).Str("slug", record.Slug).Msg("post migrated")
				if logErr := o.log.AppendPost(record.ID, record.Title.Rendered, OutcomeMigrated, ""); logErr != nil {
					return logErr
				}
			}

			select {
			case <-time.After(o.postDelay):
			case <-ctx.Done():
				return ctx.Err()
			}
		}

		if done {
			break
		}
	}

	return nil
}

func (o *Orchestrator) fetchPostPage(ctx context.Context, page int) ([]postRecord, bool, error) {
	query := url.Values{}
	query.Set("per_page", strconv.Itoa(o.perPage))
	query.Set("page", strconv.Itoa(page))

	result := o.client.Request(ctx, "/wp-json/wp/v2/posts", &wpclient.RequestOptions{Query: query})
	if !result.Success {
		if result.Status == http.StatusBadRequest && page > 1 {
			return nil, true, nil
		}
		return nil, false, fmt.Errorf("fetch posts page %d: %s", page, result.Error)
	}

	var records []postRecord
	if err := json.Unmarshal(result.Data, &records); err != nil {
		return nil, false, err
	}

	done := len(records) == 0 || len(records) < o.perPage
	return records, done, nil
}

// migratePost is the per-item state machine: fetched -> converted ->
// inserted. The caller owns the logged transition.
func (o *Orchestrator) migratePost(ctx context.Context, record postRecord) error {
	if record.Content.Rendered == "" {
		return fmt.Errorf("%w: post %d", ErrNoRenderedContent, record.ID)
	}

	if o.archiver != nil {
		raw, _ := json.Marshal(record)
		if err := o.archiver.Record(ctx, record.Link, "post", record.ID, http.StatusOK, raw); err != nil {
			o.logger.Warn().Err(err).Int("post_id", record.ID).Msg("archive write failed")
		}
	}

	contentBlocks, err := o.converter.ToBlocks(record.Content.Rendered)
	if err != nil {
		return fmt.Errorf("convert post %d: %w", record.ID, err)
	}

	article := map[string]interface{}{
		"original_id":    record.ID,
		"original_url":   record.Link,
		"title":          record.Title.Rendered,
		"slug":           record.Slug,
		"status":         record.Status,
		"excerpt":        record.Excerpt.Rendered,
		"categories":     record.Categories,
		"tags":           record.Tags,
		"featured_media": record.FeaturedMedia,
		"published_at":   record.Date,
		"modified_at":    record.Modified,
		"content_blocks": contentBlocks,
	}

	if _, err := o.api.ImportArticles(ctx, []map[string]interface{}{article}); err != nil {
		return fmt.Errorf("import post %d: %w", record.ID, err)
	}

	return nil
}

// mediaRecord mirrors the raw /wp/v2/media item shape, reduced to the
// fields the upload leg needs.
type mediaRecord struct {
	ID        int    `json:"id"`
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
		FileSize int64 `json:"filesize"`
	} `json:"media_details"`
}

// MigrateMedia walks the media collection and re-uploads each original
// into the destination storage, logging after every item.
func (o *Orchestrator) MigrateMedia(ctx context.Context) error {
	for page := 1; page <= maxPages; page++ {
		records, done, err := o.fetchMediaPage(ctx, page)
		if err != nil {
			return err
		}

		for _, record := range records {
			if o.log.HasMedia(record.ID) {
				o.logger.Debug().Int("media_id", record.ID).Msg("already uploaded, skipping")
				continue
			}

			if err := o.migrateMedia(ctx, record); err != nil {
				o.logger.Error().Err(err).Int("media_id", record.ID).Msg("media migration failed")
				if logErr := o.log.AppendMedia(record.ID, record.Title.Rendered, OutcomeFailed, err.Error()); logErr != nil {
					return logErr
				}
			} else {
				o.logger.Info().Int("media_id", record.ID).Msg("media uploaded")
				if logErr := o.log.AppendMedia(record.ID, record.Title.Rendered, OutcomeUploaded, ""); logErr != nil {
					return logErr
				}
			}

			select {
			case <-time.After(o.mediaDelay):
			case <-ctx.Done():
				return ctx.Err()
			}
		}

		if done {
			break
		}
	}

	return nil
}

func (o *Orchestrator) fetchMediaPage(ctx context.Context, page int) ([]mediaRecord, bool, error) {
	query := url.Values{}
	query.Set("per_page", strconv.Itoa(o.perPage))
	query.Set("page", strconv.Itoa(page))

	result := o.client.Request(ctx, "/wp-json/wp/v2/media", &wpclient.RequestOptions{Query: query})
	if !result.Success {
		if result.Status == http.StatusBadRequest && page > 1 {
			return nil, true, nil
		}
		return nil, false, fmt.Errorf("fetch media page %d: %s", page, result.Error)
	}

	var records []mediaRecord
	if err := json.Unmarshal(result.Data, &records); err != nil {
		return nil, false, err
	}

	done := len(records) == 0 || len(records) < o.perPage
	return records, done, nil
}

// migrateMedia is the per-item state machine: fetched -> uploaded. The
// caller owns the logged transition.
func (o *Orchestrator) migrateMedia(ctx context.Context, record mediaRecord) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, record.SourceURL, nil)
	if err != nil {
		return err
	}

	resp, err := o.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %s", ErrMediaFetch, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("%w: HTTP %d for %s", ErrMediaFetch, resp.StatusCode, record.SourceURL)
	}

	item := models.MediaItem{
		ID:        record.ID,
		Title:     record.Title.Rendered,
		AltText:   record.AltText,
		Caption:   record.Caption.Rendered,
		MimeType:  record.MimeType,
		SourceURL: record.SourceURL,
		FileSize:  record.MediaDetails.FileSize,
		FilePath:  media.LocalPathFor(record.SourceURL),
	}

	newURL, err := o.uploader.Upload(ctx, item, resp.Body)
	if err != nil {
		return fmt.Errorf("upload media %d: %w", record.ID, err)
	}

	o.logger.Debug().Int("media_id", record.ID).Str("url", newURL).Msg("media stored")

	if o.archiver != nil {
		summary, _ := json.Marshal(map[string]interface{}{
			"media_id": record.ID,
			"from":     record.SourceURL,
			"to":       newURL,
		})
		if err := o.archiver.Record(ctx, record.SourceURL, "media", record.ID, resp.StatusCode, summary); err != nil {
			o.logger.Warn().Err(err).Int("media_id", record.ID).Msg("archive write failed")
		}
	}

	return nil
}
