package db

import (
	"database/sql"
	"errors"
	"os"
	"strings"

	"github.com/ksstormnet/cme-content-worker-sub001/pkg/util"

	"github.com/rs/zerolog"
	"github.com/tursodatabase/libsql-client-go/libsql"
)

var (
	ErrDatabaseURLRequired = errors.New("ARCHIVE_DATABASE_URL environment variable is required")
	ErrAuthTokenRequired   = errors.New("ARCHIVE_AUTH_TOKEN environment variable is required")
)

// DB wraps the libsql connection used by the raw-payload archive.
type DB struct {
	*sql.DB
}

// NewConnection opens the archive database named by ARCHIVE_DATABASE_URL.
// Local file URLs (file:) need no auth token; remote Turso URLs do.
func NewConnection() (*DB, error) {
	logger := util.NewLogger(zerolog.ErrorLevel)

	dbURL := os.Getenv("ARCHIVE_DATABASE_URL")
	if strings.EqualFold(dbURL, "") {
		logger.Error().Msg("ARCHIVE_DATABASE_URL env variable not set")
		return nil, ErrDatabaseURLRequired
	}

	var opts []libsql.Option
	if !strings.HasPrefix(dbURL, "file:") {
		authToken := os.Getenv("ARCHIVE_AUTH_TOKEN")
		if strings.EqualFold(authToken, "") {
			logger.Error().Msg("ARCHIVE_AUTH_TOKEN env variable not set")
			return nil, ErrAuthTokenRequired
		}
		opts = append(opts, libsql.WithAuthToken(authToken))
	}

	connector, err := libsql.NewConnector(dbURL, opts...)
	if err != nil {
		logger.Err(err).Msg("failed to create connector")
		return nil, err
	}

	db := sql.OpenDB(connector)
	if err := db.Ping(); err != nil {
		logger.Err(err).Msg("failed to ping database")
		return nil, err
	}

	return &DB{DB: db}, nil
}

func (db *DB) Close() error {
	return db.DB.Close()
}

// Connect opens the archive database and returns the bare handle.
func Connect() (*sql.DB, error) {
	dbWrapper, err := NewConnection()
	if err != nil {
		return nil, err
	}
	return dbWrapper.DB, nil
}
