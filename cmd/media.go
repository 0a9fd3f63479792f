package cmd

import (
	"context"
	"path/filepath"
	"time"

	"github.com/ksstormnet/cme-content-worker-sub001/internal/migrator/media"
	"github.com/ksstormnet/cme-content-worker-sub001/pkg/util"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
)

var (
	mediaWritePlan     bool
	mediaPerPage       int
	mediaRetries       int
	mediaRateLimitMs   int
	mediaDownloadDir   string
	mediaExportTimeout time.Duration
)

// mediaCmd represents the media command.
var mediaCmd = &cobra.Command{
	Use:   "media",
	Short: "Export the media library inventory",
	Long: `Paginate the source site's media collection into a normalized inventory
with aggregate statistics, and optionally compute a bulk-download plan from it.

Examples:
  # Inventory only
  cme-migrate media --site "https://example.com"

  # Inventory plus a download plan for the download command
  cme-migrate media --site "https://example.com" --plan --download-dir ./media`,
	Run: runMedia,
}

func init() {
	rootCmd.AddCommand(mediaCmd)

	mediaCmd.Flags().BoolVar(&mediaWritePlan, "plan", false, "also write download-plan.json")
	mediaCmd.Flags().IntVar(&mediaPerPage, "per-page", 100, "media collection page size")
	mediaCmd.Flags().IntVar(&mediaRetries, "download-retries", 3, "retry attempts per file in the plan")
	mediaCmd.Flags().IntVar(&mediaRateLimitMs, "download-rate-ms", 250, "pause between downloads in the plan, in milliseconds")
	mediaCmd.Flags().StringVar(&mediaDownloadDir, "download-dir", "./media-files", "target directory the plan downloads into")
	mediaCmd.Flags().DurationVar(&mediaExportTimeout, "timeout", 30*time.Minute, "timeout for the whole export")
	addRateLimitFlags(mediaCmd.Flags())
}

func runMedia(_ *cobra.Command, _ []string) {
	logger := util.NewLogger(zerolog.InfoLevel)

	ctx, cancel := context.WithTimeout(context.Background(), mediaExportTimeout)
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

	exporter := media.NewExporter(client)
	exporter.SetPerPage(mediaPerPage)

	inventory, err := exporter.ExportLibrary(ctx)
	if err != nil {
		logger.Fatal().Err(err).Msg("media export failed")
	}

	if err := media.AnalyzeUploadStructure(inventory); err != nil {
		logger.Fatal().Err(err).Msg("upload structure analysis failed")
	}

	inventoryPath := filepath.Join(outDir, "media-inventory.json")
	if err := inventory.Write(inventoryPath); err != nil {
		logger.Fatal().Err(err).Msg("failed to write media inventory")
	}

	logger.Info().
		Int("items", len(inventory.Items)).
		Int64("total_bytes", inventory.Stats.TotalBytes).
		Int("directories", len(inventory.SortedDirs)).
		Str("file", inventoryPath).
		Msg("media inventory written")

	if !mediaWritePlan {
		return
	}

	plan := media.BuildPlan(inventory, mediaDownloadDir, mediaRetries, mediaRateLimitMs)
	planPath := filepath.Join(outDir, "download-plan.json")
	if err := plan.Write(planPath); err != nil {
		logger.Fatal().Err(err).Msg("failed to write download plan")
	}

	logger.Info().
		Int("jobs", len(plan.Jobs)).
		Int("concurrent", plan.Concurrent).
		Str("file", planPath).
		Msg("download plan written")
}
