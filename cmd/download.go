package cmd

import (
	"context"
	"path/filepath"

	"github.com/ksstormnet/cme-content-worker-sub001/internal/migrator/download"
	"github.com/ksstormnet/cme-content-worker-sub001/pkg/util"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
)

var downloadPlanPath string

// downloadCmd represents the download command.
var downloadCmd = &cobra.Command{
	Use:   "download",
	Short: "Bulk-download media files from a plan",
	Long: `Execute a download plan produced by "media --plan": concurrent downloads
with retry/backoff, skip-if-exists, and a JSON report. Re-running against the
same plan is idempotent; files already on disk are skipped.

Example:
  cme-migrate download --plan ./migration-output/download-plan.json`,
	Run: runDownload,
}

func init() {
	rootCmd.AddCommand(downloadCmd)

	downloadCmd.Flags().StringVar(&downloadPlanPath, "plan", "", "path to download-plan.json (required)")
	if err := downloadCmd.MarkFlagRequired("plan"); err != nil {
		return
	}
}

func runDownload(_ *cobra.Command, _ []string) {
	logger := util.NewLogger(zerolog.InfoLevel)

	plan, err := download.LoadPlan(downloadPlanPath)
	if err != nil {
		logger.Fatal().Err(err).Str("plan", downloadPlanPath).Msg("failed to load download plan")
	}

	downloader, err := download.NewDownloader(plan)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to create downloader")
	}

	report, err := downloader.Run(context.Background())
	if err != nil {
		logger.Fatal().Err(err).Msg("download run failed")
	}

	outDir, err := ensureOutputDir()
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to create output directory")
	}

	reportPath := filepath.Join(outDir, "download-report.json")
	if err := download.WriteReport(report, reportPath); err != nil {
		logger.Fatal().Err(err).Msg("failed to write download report")
	}

	logger.Info().
		Int("downloaded", report.Downloaded).
		Int("skipped", report.Skipped).
		Int("failed", report.Failed).
		Str("file", reportPath).
		Msg("download run complete")
}
