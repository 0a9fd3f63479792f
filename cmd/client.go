package cmd

import (
	"errors"
	"os"

	"github.com/ksstormnet/cme-content-worker-sub001/internal/migrator/wpclient"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

var (
	ErrSiteRequired        = errors.New("site URL is required (--site, CME_SITE, or config file)")
	ErrCredentialsRequired = errors.New("WP_USERNAME and WP_APP_PASSWORD must be set")
)

var (
	requestsPerSecond float64
	maxConcurrent     int
	retryAttempts     int
	backoffMultiplier float64
)

func addRateLimitFlags(flags *pflag.FlagSet) {
	defaults := wpclient.DefaultRateLimitPolicy()
	flags.Float64Var(&requestsPerSecond, "rps", defaults.RequestsPerSecond, "requests per second against the source API")
	flags.IntVar(&maxConcurrent, "max-concurrent", defaults.MaxConcurrent, "maximum in-flight source API requests")
	flags.IntVar(&retryAttempts, "retries", defaults.RetryAttempts, "retry attempts for retryable failures")
	flags.Float64Var(&backoffMultiplier, "backoff", defaults.BackoffMultiplier, "retry backoff multiplier")
}

// newSourceClient builds the rate-limited client for the configured site
// from flags, config and .env credentials.
func newSourceClient() (*wpclient.Client, error) {
	site := viper.GetString("site")
	if site == "" {
		return nil, ErrSiteRequired
	}

	username := os.Getenv("WP_USERNAME")
	appPassword := os.Getenv("WP_APP_PASSWORD")
	if username == "" || appPassword == "" {
		return nil, ErrCredentialsRequired
	}

	policy := wpclient.RateLimitPolicy{
		RequestsPerSecond: requestsPerSecond,
		MaxConcurrent:     maxConcurrent,
		RetryAttempts:     retryAttempts,
		BackoffMultiplier: backoffMultiplier,
	}

	return wpclient.NewClient(site, username, appPassword, policy)
}

func ensureOutputDir() (string, error) {
	dir := viper.GetString("out")
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", err
	}
	return dir, nil
}
