// Package scheduler runs the periodic sweeps that keep signed URLs fresh.
package scheduler

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/hszk-dev/courseflow/internal/infrastructure/metrics"
	"github.com/hszk-dev/courseflow/internal/usecase"
)

// Job name constants, used as the "job" label on scheduler metrics.
const (
	JobRegenerateAll   = "regenerate_all"
	JobRefreshExpiring = "refresh_expiring"
	JobCleanupExpired  = "cleanup_expired"
	JobRetryFailed     = "retry_failed"
	JobMonitorFailures = "monitor_failures"
)

// Default sweep intervals.
const (
	DefaultRegenerateInterval = 24 * time.Hour
	DefaultRefreshInterval    = time.Hour
	DefaultCleanupInterval    = time.Hour
	DefaultRetryInterval      = 30 * time.Minute
	DefaultMonitorInterval    = time.Hour
)

// RunnerConfig holds the interval per sweep job. A zero or negative
// interval disables that job.
type RunnerConfig struct {
	RegenerateInterval time.Duration
	RefreshInterval    time.Duration
	CleanupInterval    time.Duration
	RetryInterval      time.Duration
	MonitorInterval    time.Duration
}

// DefaultRunnerConfig returns the default configuration.
func DefaultRunnerConfig() RunnerConfig {
	return RunnerConfig{
		RegenerateInterval: DefaultRegenerateInterval,
		RefreshInterval:    DefaultRefreshInterval,
		CleanupInterval:    DefaultCleanupInterval,
		RetryInterval:      DefaultRetryInterval,
		MonitorInterval:    DefaultMonitorInterval,
	}
}

type job struct {
	name     string
	interval time.Duration
	run      func(ctx context.Context) (int, error)
}

// Runner drives the SweepService on fixed tickers, one goroutine per job.
// Jobs are independent: a slow or failing sweep never delays the others.
type Runner struct {
	jobs []job
}

// NewRunner creates a Runner wired to the given sweeps.
func NewRunner(sweeps usecase.SweepService, cfg RunnerConfig) *Runner {
	return &Runner{
		jobs: []job{
			{name: JobRegenerateAll, interval: cfg.RegenerateInterval, run: sweeps.RegenerateAll},
			{name: JobRefreshExpiring, interval: cfg.RefreshInterval, run: sweeps.RefreshExpiringSoon},
			{name: JobCleanupExpired, interval: cfg.CleanupInterval, run: sweeps.CleanupExpired},
			{name: JobRetryFailed, interval: cfg.RetryInterval, run: sweeps.RetryFailed},
			{name: JobMonitorFailures, interval: cfg.MonitorInterval, run: sweeps.MonitorFailures},
		},
	}
}

// Run starts every enabled job and blocks until ctx is cancelled, then
// waits for in-flight sweeps to finish.
func (r *Runner) Run(ctx context.Context) error {
	var wg sync.WaitGroup
	for _, j := range r.jobs {
		if j.interval <= 0 {
			slog.Info("sweep job disabled", "job", j.name)
			continue
		}
		wg.Add(1)
		go func(j job) {
			defer wg.Done()
			r.runJob(ctx, j)
		}(j)
	}

	<-ctx.Done()
	wg.Wait()
	return nil
}

func (r *Runner) runJob(ctx context.Context, j job) {
	slog.Info("sweep job scheduled", "job", j.name, "interval", j.interval)

	ticker := time.NewTicker(j.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			r.execute(ctx, j)
		}
	}
}

func (r *Runner) execute(ctx context.Context, j job) {
	start := time.Now()
	n, err := j.run(ctx)
	if err != nil {
		metrics.SchedulerRunsTotal.WithLabelValues(j.name, metrics.SchedulerStatusError).Inc()
		slog.Error("sweep run failed",
			"job", j.name,
			"duration", time.Since(start),
			"error", err,
		)
		return
	}

	metrics.SchedulerRunsTotal.WithLabelValues(j.name, metrics.SchedulerStatusSuccess).Inc()
	slog.Info("sweep run completed",
		"job", j.name,
		"items", n,
		"duration", time.Since(start),
	)
}
