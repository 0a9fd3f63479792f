package archive

import (
	"context"
	"database/sql"
	"encoding/json"
	"net/http"
	"net/url"
	"time"

	"github.com/ksstormnet/cme-content-worker-sub001/pkg/util"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// Archive keeps raw fetched payloads in a libsql database so a crashed or
// disputed migration run can be inspected after the fact. It sits beside
// the JSON migration log, not instead of it.
type Archive struct {
	db     *sql.DB
	logger zerolog.Logger
}

// New wraps an open database handle.
func New(db *sql.DB) *Archive {
	return &Archive{
		db:     db,
		logger: util.NewLogger(zerolog.ErrorLevel),
	}
}

// EnsureSchema creates the archive tables when missing.
func (a *Archive) EnsureSchema(ctx context.Context) error {
	statements := []string{
		`CREATE TABLE IF NOT EXISTS sources (
			id TEXT PRIMARY KEY,
			raw_url TEXT NOT NULL,
			scheme TEXT,
			host TEXT,
			path TEXT,
			query TEXT,
			item_type TEXT NOT NULL,
			item_id INTEGER NOT NULL,
			created_at TEXT NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS downloads (
			id TEXT PRIMARY KEY,
			source_id TEXT NOT NULL REFERENCES sources(id),
			downloaded_at TEXT NOT NULL,
			status_code INTEGER,
			headers TEXT,
			body TEXT
		)`,
	}

	for _, statement := range statements {
		if _, err := a.db.ExecContext(ctx, statement); err != nil {
			a.logger.Error().Err(err).Msg("failed to ensure archive schema")
			return err
		}
	}

	return nil
}

// RecordSource stores where one item came from and returns the source id.
func (a *Archive) RecordSource(ctx context.Context, rawURL, itemType string, itemID int) (string, error) {
	parsed, err := url.Parse(rawURL)
	if err != nil {
		a.logger.Error().Err(err).Str("url", rawURL).Msg("failed to parse source URL")
		return "", err
	}

	sourceID := uuid.New().String()
	now := time.Now().Format(time.RFC3339)

	query := `INSERT INTO sources (id, raw_url, scheme, host, path, query, item_type, item_id, created_at)
			  VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`

	_, err = a.db.ExecContext(ctx, query, sourceID, rawURL, parsed.Scheme, parsed.Host,
		parsed.Path, parsed.RawQuery, itemType, itemID, now)
	if err != nil {
		a.logger.Error().Err(err).Str("url", rawURL).Msg("failed to insert source")
		return "", err
	}

	return sourceID, nil
}

// RecordDownload stores the raw payload fetched for a source and returns
// the download id.
func (a *Archive) RecordDownload(
	ctx context.Context,
	sourceID string,
	statusCode int,
	headers http.Header,
	body []byte,
) (string, error) {
	downloadID := uuid.New().String()
	now := time.Now().Format(time.RFC3339)

	headersJSON, err := json.Marshal(headers)
	if err != nil {
		a.logger.Error().Err(err).Msg("failed to marshal headers")
		return "", err
	}

	query := `INSERT INTO downloads (id, source_id, downloaded_at, status_code, headers, body)
			  VALUES (?, ?, ?, ?, ?, ?)`

	_, err = a.db.ExecContext(ctx, query, downloadID, sourceID, now, statusCode,
		string(headersJSON), string(body))
	if err != nil {
		a.logger.Error().Err(err).Str("source_id", sourceID).Msg("failed to insert download")
		return "", err
	}

	return downloadID, nil
}

// Record is the one-call form the pipeline uses per fetched item.
func (a *Archive) Record(ctx context.Context, rawURL, itemType string, itemID, status int, body []byte) error {
	sourceID, err := a.RecordSource(ctx, rawURL, itemType, itemID)
	if err != nil {
		return err
	}
	_, err = a.RecordDownload(ctx, sourceID, status, nil, body)
	return err
}
