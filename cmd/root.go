package cmd

import (
	"os"

	"github.com/ksstormnet/cme-content-worker-sub001/pkg/util"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var rootCmd = &cobra.Command{
	Use:   "cme-migrate",
	Short: "WordPress migration and export toolkit",
	Long: `cme-migrate moves a WordPress site's content into the CME content worker:
endpoint discovery, media inventory and bulk download, block-to-component
generation, and the full post/media migration pipeline.`,
}

var cfgFile string

func Execute() {
	if err := rootCmd.Execute(); err != nil {
		logger := util.NewLogger(zerolog.ErrorLevel)
		logger.Error().Err(err).Msg("command failed")
		os.Exit(1)
	}
}

func init() {
	cobra.OnInitialize(initConfig)

	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is ./.cme-migrate.yaml)")
	rootCmd.PersistentFlags().String("site", "", "WordPress site root URL")
	rootCmd.PersistentFlags().String("out", "./migration-output", "output directory for artifacts")

	for _, flag := range []string{"site", "out"} {
		if err := viper.BindPFlag(flag, rootCmd.PersistentFlags().Lookup(flag)); err != nil {
			logger := util.NewLogger(zerolog.ErrorLevel)
			logger.Fatal().Err(err).Str("flag", flag).Msg("failed to bind flag")
		}
	}
}

func initConfig() {
	logger := util.NewLogger(zerolog.ErrorLevel)

	// Credentials come from .env; everything else from the config file or
	// environment.
	if err := godotenv.Load(); err != nil {
		logger.Debug().Msg("no .env file found")
	}

	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		viper.AddConfigPath(".")
		viper.SetConfigType("yaml")
		viper.SetConfigName(".cme-migrate")
	}

	viper.SetEnvPrefix("CME")
	viper.AutomaticEnv()

	if err := viper.ReadInConfig(); err == nil {
		logger.Debug().Str("config", viper.ConfigFileUsed()).Msg("loaded config file")
	}
}
