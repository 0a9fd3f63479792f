package cmd

import (
	"context"
	"encoding/json"
	"os"
	"time"

	"github.com/ksstormnet/cme-content-worker-sub001/internal/migrator/upload"
	"github.com/ksstormnet/cme-content-worker-sub001/pkg/util"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
)

var (
	validateAPIBase string
	validatePayload string
)

// validateCmd represents the validate command.
var validateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Dry-run an import payload against the backend",
	Long: `Submit an import payload file to the backend's validation route and
report per-category totals without importing anything.

Example:
  cme-migrate validate --api "https://cme.example.com" --payload ./articles.json`,
	Run: runValidate,
}

func init() {
	rootCmd.AddCommand(validateCmd)

	validateCmd.Flags().StringVar(&validateAPIBase, "api", "", "content worker API base URL (required)")
	validateCmd.Flags().StringVar(&validatePayload, "payload", "", "import payload JSON file (required)")
	for _, flag := range []string{"api", "payload"} {
		if err := validateCmd.MarkFlagRequired(flag); err != nil {
			return
		}
	}
}

func runValidate(_ *cobra.Command, _ []string) {
	logger := util.NewLogger(zerolog.InfoLevel)

	data, err := os.ReadFile(validatePayload)
	if err != nil {
		logger.Fatal().Err(err).Str("payload", validatePayload).Msg("failed to read payload file")
	}

	var payload upload.ImportPayload
	if err := json.Unmarshal(data, &payload); err != nil {
		logger.Fatal().Err(err).Msg("failed to decode payload file")
	}

	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()

	api := upload.NewAPIClient(validateAPIBase, os.Getenv("CME_API_TOKEN"))

	results, err := api.ValidateImport(ctx, payload)
	if err != nil {
		logger.Fatal().Err(err).Msg("validation request failed")
	}

	for category, result := range results {
		logger.Info().
			Str("category", category).
			Int("total", result.Total).
			Int("valid", result.Valid).
			Int("invalid", result.Invalid).
			Msg("validation result")
		for _, msg := range result.Errors {
			logger.Warn().Str("category", category).Str("error", msg).Msg("validation error")
		}
	}
}
