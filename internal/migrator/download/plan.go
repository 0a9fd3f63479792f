package download

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/ksstormnet/cme-content-worker-sub001/internal/migrator/models"
)

var (
	ErrEmptyPlan       = errors.New("download plan has no jobs")
	ErrInvalidPlan     = errors.New("download plan is invalid")
	ErrPlanConcurrency = errors.New("download plan: concurrent downloads must be at least 1")
)

// Plan carries the parameters the media export pipeline computed for the
// bulk downloader. It crosses the process boundary as a JSON file: the
// planning run writes it, a later download run consumes it.
type Plan struct {
	SourceSite    string               `json:"source_site"`
	GeneratedAt   time.Time            `json:"generated_at"`
	OutputDir     string               `json:"output_dir"`
	Concurrent    int                  `json:"concurrent_downloads"`
	RetryAttempts int                  `json:"retry_attempts"`
	RateLimitMs   int                  `json:"rate_limit_ms"`
	TotalBytes    int64                `json:"total_bytes"`
	Jobs          []models.DownloadJob `json:"jobs"`
}

// Validate checks the plan before a run consumes it.
func (p *Plan) Validate() error {
	if p.Concurrent < 1 {
		return ErrPlanConcurrency
	}
	if len(p.Jobs) == 0 {
		return ErrEmptyPlan
	}
	for i, job := range p.Jobs {
		if job.URL == "" || job.LocalPath == "" {
			return fmt.Errorf("%w: job %d missing url or local path", ErrInvalidPlan, i)
		}
	}
	return nil
}

// Write serializes the plan to path.
func (p *Plan) Write(path string) error {
	data, err := json.MarshalIndent(p, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o644)
}

// LoadPlan reads and validates a plan file.
func LoadPlan(path string) (*Plan, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var plan Plan
	if err := json.Unmarshal(data, &plan); err != nil {
		return nil, err
	}

	if err := plan.Validate(); err != nil {
		return nil, err
	}

	return &plan, nil
}
