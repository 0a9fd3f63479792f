package download

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/ksstormnet/cme-content-worker-sub001/internal/migrator/models"
	"github.com/ksstormnet/cme-content-worker-sub001/pkg/util"

	"github.com/rs/zerolog"
)

const (
	// Base delay for the linear retry backoff.
	retryBackoffBase = time.Second

	// How many error strings the report keeps before truncating.
	reportErrorLimit = 10
)

// FailedJob records one job that exhausted its retries.
type FailedJob struct {
	Job   models.DownloadJob `json:"job"`
	Error string             `json:"error"`
}

// Report is the JSON summary written after a run.
type Report struct {
	TotalFiles      int      `json:"total_files"`
	Downloaded      int      `json:"downloaded"`
	Skipped         int      `json:"skipped"`
	Failed          int      `json:"failed"`
	DurationSeconds float64  `json:"duration_seconds"`
	Errors          []string `json:"errors,omitempty"`
}

// Downloader executes a Plan: a pool of workers downloads each job to its
// local path, skipping files that already exist with non-zero size so
// re-runs are idempotent.
type Downloader struct {
	plan       *Plan
	httpClient *http.Client
	logger     zerolog.Logger

	mu         sync.Mutex
	downloaded int
	skipped    int
	failedJobs []FailedJob
}

// NewDownloader creates a downloader for a validated plan.
func NewDownloader(plan *Plan) (*Downloader, error) {
	if err := plan.Validate(); err != nil {
		return nil, err
	}
	if plan.RetryAttempts < 1 {
		plan.RetryAttempts = 1
	}

	return &Downloader{
		plan: plan,
		httpClient: &http.Client{
			Timeout: 2 * time.Minute,
		},
		logger: util.NewLogger(zerolog.InfoLevel),
	}, nil
}

// Run drains the job list and returns the final report. Per-job failures
// never abort the run; they land in the report instead.
func (d *Downloader) Run(ctx context.Context) (*Report, error) {
	start := time.Now()

	jobs := make(chan models.DownloadJob, len(d.plan.Jobs))
	for _, job := range d.plan.Jobs {
		jobs <- job
	}
	close(jobs)

	rateLimit := time.Duration(d.plan.RateLimitMs) * time.Millisecond

	var wg sync.WaitGroup
	for i := 0; i < d.plan.Concurrent; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for job := range jobs {
				select {
				case <-ctx.Done():
					return
				default:
				}

				d.processJob(ctx, job)

				if rateLimit > 0 {
					time.Sleep(rateLimit)
				}
			}
		}()
	}
	wg.Wait()

	report := d.buildReport(time.Since(start))
	d.logger.Info().
		Int("total", report.TotalFiles).
		Int("downloaded", report.Downloaded).
		Int("skipped", report.Skipped).
		Int("failed", report.Failed).
		Msg("download run finished")

	return report, nil
}

func (d *Downloader) processJob(ctx context.Context, job models.DownloadJob) {
	target := filepath.Join(d.plan.OutputDir, filepath.FromSlash(job.LocalPath))

	if info, err := os.Stat(target); err == nil && info.Size() > 0 {
		d.mu.Lock()
		d.skipped++
		d.mu.Unlock()
		d.logger.Debug().Str("path", job.LocalPath).Msg("already downloaded, skipping")
		return
	}

	var lastErr error
	for attempt := 1; attempt <= d.plan.RetryAttempts; attempt++ {
		if err := d.fetch(ctx, job.URL, target); err != nil {
			lastErr = err
			d.logger.Warn().
				Err(err).
				Int("media_id", job.MediaID).
				Int("attempt", attempt).
				Msg("download attempt failed")

			// Backoff only applies between attempts, never after the last.
			if attempt < d.plan.RetryAttempts {
				select {
				case <-time.After(retryBackoffBase * time.Duration(attempt)):
				case <-ctx.Done():
					lastErr = ctx.Err()
					attempt = d.plan.RetryAttempts
				}
			}
			continue
		}

		d.mu.Lock()
		d.downloaded++
		d.mu.Unlock()
		return
	}

	d.mu.Lock()
	d.failedJobs = append(d.failedJobs, FailedJob{
		Job:   job,
		Error: lastErr.Error(),
	})
	d.mu.Unlock()
	d.logger.Error().Err(lastErr).Int("media_id", job.MediaID).Msg("download failed after retries")
}

func (d *Downloader) fetch(ctx context.Context, url, target string) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return err
	}

	resp, err := d.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("HTTP %d for %s", resp.StatusCode, url)
	}

	if err := os.MkdirAll(filepath.Dir(target), 0o755); err != nil {
		return err
	}

	tmp := target + ".part"
	out, err := os.Create(tmp)
	if err != nil {
		return err
	}

	if _, err := io.Copy(out, resp.Body); err != nil {
		out.Close()
		os.Remove(tmp)
		return err
	}
	if err := out.Close(); err != nil {
		os.Remove(tmp)
		return err
	}

	return os.Rename(tmp, target)
}

func (d *Downloader) buildReport(elapsed time.Duration) *Report {
	d.mu.Lock()
	defer d.mu.Unlock()

	report := &Report{
		TotalFiles:      len(d.plan.Jobs),
		Downloaded:      d.downloaded,
		Skipped:         d.skipped,
		Failed:          len(d.failedJobs),
		DurationSeconds: elapsed.Seconds(),
	}

	for i, failed := range d.failedJobs {
		if i == reportErrorLimit {
			report.Errors = append(report.Errors,
				fmt.Sprintf("... and %d more errors", len(d.failedJobs)-reportErrorLimit))
			break
		}
		report.Errors = append(report.Errors, fmt.Sprintf("%s: %s", failed.Job.URL, failed.Error))
	}

	return report
}

// FailedJobs returns the full failure list, beyond the report's truncation.
func (d *Downloader) FailedJobs() []FailedJob {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]FailedJob(nil), d.failedJobs...)
}

// WriteReport serializes the report to path.
func WriteReport(report *Report, path string) error {
	data, err := json.MarshalIndent(report, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o644)
}
