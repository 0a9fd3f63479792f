package cmd

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"time"

	"github.com/ksstormnet/cme-content-worker-sub001/internal/migrator/wpclient"
	"github.com/ksstormnet/cme-content-worker-sub001/pkg/util"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
)

var (
	discoverValidate bool
	discoverTimeout  time.Duration
)

// discoverCmd represents the discover command.
var discoverCmd = &cobra.Command{
	Use:   "discover",
	Short: "Discover and classify the source API's endpoints",
	Long: `Walk the WordPress REST API root document, group routes by namespace,
classify theme/vendor endpoints, and optionally probe each one for
accessibility under the configured credentials.

Examples:
  # Discover endpoints and write discovery-results.json
  cme-migrate discover --site "https://example.com"

  # Also probe every discovered theme endpoint
  cme-migrate discover --site "https://example.com" --validate`,
	Run: runDiscover,
}

func init() {
	rootCmd.AddCommand(discoverCmd)

	discoverCmd.Flags().BoolVar(&discoverValidate, "validate", false, "probe discovered endpoints for accessibility")
	discoverCmd.Flags().DurationVar(&discoverTimeout, "timeout", 5*time.Minute, "timeout for the whole discovery run")
	addRateLimitFlags(discoverCmd.Flags())
}

type discoveryArtifact struct {
	Site       string                            `json:"site"`
	CreatedAt  time.Time                         `json:"created_at"`
	Namespaces map[string]*wpclient.EndpointInfo `json:"namespaces"`
	Theme      *wpclient.ThemeEndpoints          `json:"theme"`
	Probes     map[string]wpclient.AccessProbe   `json:"probes,omitempty"`
}

func runDiscover(_ *cobra.Command, _ []string) {
	logger := util.NewLogger(zerolog.InfoLevel)

	ctx, cancel := context.WithTimeout(context.Background(), discoverTimeout)
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

	discovery := wpclient.NewDiscovery(client)

	namespaces, err := discovery.DiscoverEndpoints(ctx)
	if err != nil {
		logger.Fatal().Err(err).Msg("endpoint discovery failed")
	}

	theme, err := discovery.GenerateEndpoints(ctx)
	if err != nil {
		logger.Fatal().Err(err).Msg("theme endpoint classification failed")
	}

	artifact := discoveryArtifact{
		Site:       client.BaseURL(),
		CreatedAt:  time.Now(),
		Namespaces: namespaces,
		Theme:      theme,
	}

	if discoverValidate {
		probes, err := discovery.ValidateEndpointAccess(ctx, theme.ThemeRoutes)
		if err != nil {
			logger.Fatal().Err(err).Msg("endpoint validation failed")
		}
		artifact.Probes = probes
	}

	data, err := json.MarshalIndent(artifact, "", "  ")
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to encode discovery results")
	}

	target := filepath.Join(outDir, "discovery-results.json")
	if err := os.WriteFile(target, data, 0o644); err != nil {
		logger.Fatal().Err(err).Msg("failed to write discovery results")
	}

	logger.Info().
		Int("namespaces", len(namespaces)).
		Int("theme_routes", len(theme.ThemeRoutes)).
		Str("file", target).
		Msg("discovery complete")
}
