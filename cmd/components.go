package cmd

import (
	"github.com/ksstormnet/cme-content-worker-sub001/internal/migrator/blocks"
	"github.com/ksstormnet/cme-content-worker-sub001/pkg/util"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
)

var (
	componentSchemas string
	componentOut     string
	complexThreshold int
	mediumThreshold  int
)

// componentsCmd represents the components command.
var componentsCmd = &cobra.Command{
	Use:   "components",
	Short: "Generate React component scaffolding from block schemas",
	Long: `Consume a WordPress block-definition JSON file and emit a generated
component tree: one .tsx/.types.ts pair per block, grouped by origin
(generatepress, generateblocks, core, third_party), with per-category index
files and library metadata.

Example:
  cme-migrate components --schemas ./blocks.json --out ./src/components/generated`,
	Run: runComponents,
}

func init() {
	rootCmd.AddCommand(componentsCmd)

	componentsCmd.Flags().StringVar(&componentSchemas, "schemas", "", "block schema JSON file (required)")
	componentsCmd.Flags().StringVar(&componentOut, "out-dir", "./generated-components", "directory for the generated tree")
	componentsCmd.Flags().IntVar(&complexThreshold, "complex-attrs", 8, "attribute count above which a block is complex")
	componentsCmd.Flags().IntVar(&mediumThreshold, "medium-attrs", 3, "attribute count above which a block is medium")
	if err := componentsCmd.MarkFlagRequired("schemas"); err != nil {
		return
	}
}

func runComponents(_ *cobra.Command, _ []string) {
	logger := util.NewLogger(zerolog.InfoLevel)

	schemas, err := blocks.LoadSchemas(componentSchemas)
	if err != nil {
		logger.Fatal().Err(err).Str("schemas", componentSchemas).Msg("failed to load block schemas")
	}

	analyzer := blocks.NewAnalyzer()
	analyzer.ComplexAttrThreshold = complexThreshold
	analyzer.MediumAttrThreshold = mediumThreshold

	library := blocks.NewLibrary(analyzer)

	for _, schema := range schemas {
		info, err := library.Add(schema)
		if err != nil {
			logger.Error().Err(err).Str("block", schema.Name).Msg("failed to generate component")
			continue
		}
		logger.Info().
			Str("block", schema.Name).
			Str("component", info.ComponentName).
			Str("complexity", string(info.Complexity)).
			Msg("component generated")
	}

	if err := library.WriteTree(componentOut); err != nil {
		logger.Fatal().Err(err).Msg("failed to write component tree")
	}

	logger.Info().
		Int("components", library.Size()).
		Str("dir", componentOut).
		Msg("component generation complete")
}
