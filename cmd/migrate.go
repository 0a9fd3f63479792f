package cmd

import (
	"context"
	"os"
	"path/filepath"
	"time"

	"github.com/ksstormnet/cme-content-worker-sub001/internal/migrator/archive"
	"github.com/ksstormnet/cme-content-worker-sub001/internal/migrator/pipeline"
	"github.com/ksstormnet/cme-content-worker-sub001/internal/migrator/upload"
	"github.com/ksstormnet/cme-content-worker-sub001/pkg/db"
	"github.com/ksstormnet/cme-content-worker-sub001/pkg/util"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var (
	migrateAPIBase    string
	migrateUseR2      bool
	migrateArchive    bool
	migratePostDelay  time.Duration
	migrateMediaDelay time.Duration
	migrateTimeout    time.Duration
)

// migrateCmd represents the migrate command.
var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Run the full post and media migration",
	Long: `Migrate the source site into the content worker: fetch every post,
convert its HTML into structured content blocks, import it through the
backend API, then re-upload every media original. The migration log is
persisted after every single item, so an interrupted run resumes where it
stopped.

Examples:
  # Migrate through the backend's media upload route
  cme-migrate migrate --site "https://example.com" --api "https://cme.example.com"

  # Upload media straight into R2 instead
  cme-migrate migrate --site "https://example.com" --api "https://cme.example.com" --r2`,
	Run: runMigrate,
}

func init() {
	rootCmd.AddCommand(migrateCmd)

	migrateCmd.Flags().StringVar(&migrateAPIBase, "api", "", "content worker API base URL (required)")
	migrateCmd.Flags().BoolVar(&migrateUseR2, "r2", false, "upload media directly to R2 instead of the API route")
	migrateCmd.Flags().BoolVar(&migrateArchive, "archive", false, "archive raw payloads to the libsql archive database")
	migrateCmd.Flags().DurationVar(&migratePostDelay, "post-delay", 500*time.Millisecond, "pause between posts")
	migrateCmd.Flags().DurationVar(&migrateMediaDelay, "media-delay", 1500*time.Millisecond, "pause between media items")
	migrateCmd.Flags().DurationVar(&migrateTimeout, "timeout", 6*time.Hour, "timeout for the whole migration")
	addRateLimitFlags(migrateCmd.Flags())

	if err := migrateCmd.MarkFlagRequired("api"); err != nil {
		return
	}
}

func runMigrate(_ *cobra.Command, _ []string) {
	logger := util.NewLogger(zerolog.InfoLevel)

	ctx, cancel := context.WithTimeout(context.Background(), migrateTimeout)
	defer cancel()

	client, err := newSourceClient()
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to build source client")
	}
	defer client.Close()

	outDir, err := ensureOutputDir()
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to create output directory")
	}

	api := upload.NewAPIClient(migrateAPIBase, os.Getenv("CME_API_TOKEN"))

	var uploader pipeline.Uploader = api
	if migrateUseR2 {
		r2, err := upload.NewR2Uploader(ctx, upload.R2Config{
			EndpointURL:   os.Getenv("R2_ENDPOINT"),
			AccessKey:     os.Getenv("R2_ACCESS_KEY_ID"),
			SecretKey:     os.Getenv("R2_SECRET_ACCESS_KEY"),
			Bucket:        os.Getenv("R2_BUCKET"),
			PublicBaseURL: viper.GetString("r2_public_base_url"),
		})
		if err != nil {
			logger.Fatal().Err(err).Msg("failed to build R2 uploader")
		}
		uploader = r2
	}

	logPath := filepath.Join(outDir, "migration-log.json")
	migrationLog, err := pipeline.LoadLog(logPath, client.BaseURL())
	if err != nil {
		logger.Fatal().Err(err).Str("log", logPath).Msg("failed to load migration log")
	}

	orchestrator := pipeline.NewOrchestrator(client, api, uploader, migrationLog)
	orchestrator.SetDelays(migratePostDelay, migrateMediaDelay)

	if migrateArchive {
		conn, err := db.Connect()
		if err != nil {
			logger.Fatal().Err(err).Msg("failed to connect to archive database")
		}
		defer conn.Close()

		store := archive.New(conn)
		if err := store.EnsureSchema(ctx); err != nil {
			logger.Fatal().Err(err).Msg("failed to prepare archive schema")
		}
		orchestrator.SetArchiver(store)
	}

	if err := orchestrator.Run(ctx); err != nil {
		logger.Fatal().Err(err).Msg("migration failed")
	}

	logger.Info().Str("log", logPath).Msg("migration complete")
}
