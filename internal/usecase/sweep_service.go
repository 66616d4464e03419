package usecase

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/hszk-dev/courseflow/internal/domain/model"
	"github.com/hszk-dev/courseflow/internal/domain/repository"
	"github.com/hszk-dev/courseflow/internal/invalidation"
)

// Sweep defaults.
const (
	// DefaultStaggerInterval spaces bulk enqueues so a sweep over the whole
	// catalog stays within the object store's tolerated request rate.
	DefaultStaggerInterval = 2 * time.Second

	// DefaultRefreshWindow is how far ahead the refresh sweep looks for
	// soon-to-expire URLs.
	DefaultRefreshWindow = 2 * time.Hour

	// DefaultAlertThreshold is the attempt count at which an item stops
	// being auto-retried and becomes an operator notification instead.
	DefaultAlertThreshold = 5

	// DefaultSweepBatchLimit bounds the rows one sweep run touches.
	DefaultSweepBatchLimit = 500
)

// SweepServiceConfig holds configuration for SweepService.
type SweepServiceConfig struct {
	StaggerInterval time.Duration
	RefreshWindow   time.Duration
	AlertThreshold  int
	BatchLimit      int
}

// DefaultSweepServiceConfig returns the default configuration.
func DefaultSweepServiceConfig() SweepServiceConfig {
	return SweepServiceConfig{
		StaggerInterval: DefaultStaggerInterval,
		RefreshWindow:   DefaultRefreshWindow,
		AlertThreshold:  DefaultAlertThreshold,
		BatchLimit:      DefaultSweepBatchLimit,
	}
}

// SweepService implements the periodic jobs that keep the signed-URL
// population fresh and bounded. Every job is tolerant of double-scheduling:
// two overlapping runs converge on the same end state because each per-item
// step is conditional on current status.
type SweepService interface {
	// RegenerateAll enqueues a staggered regeneration task for every item
	// with a source locator. Returns the number of tasks enqueued.
	RegenerateAll(ctx context.Context) (int, error)

	// RefreshExpiringSoon expires READY items inside the lookahead window
	// (keeping their URLs servable) and re-enqueues them staggered.
	RefreshExpiringSoon(ctx context.Context) (int, error)

	// CleanupExpired converts READY items already past expiry to EXPIRED
	// with the URL cleared, invalidating the owning course caches.
	CleanupExpired(ctx context.Context) (int, error)

	// RetryFailed resets FAILED items below the alert threshold back to
	// PENDING and re-enqueues them staggered.
	RetryFailed(ctx context.Context) (int, error)

	// MonitorFailures raises an operator notification per item stuck at or
	// past the alert threshold. No state change, no retry.
	MonitorFailures(ctx context.Context) (int, error)
}

type sweepService struct {
	items         repository.CurriculumRepository
	queue         repository.TaskQueue
	notifications repository.NotificationRepository
	bus           Invalidator

	staggerInterval time.Duration
	refreshWindow   time.Duration
	alertThreshold  int
	batchLimit      int
}

// NewSweepService creates a new SweepService instance.
func NewSweepService(
	items repository.CurriculumRepository,
	queue repository.TaskQueue,
	notifications repository.NotificationRepository,
	bus Invalidator,
	cfg SweepServiceConfig,
) SweepService {
	if cfg.StaggerInterval <= 0 {
		cfg.StaggerInterval = DefaultStaggerInterval
	}
	if cfg.RefreshWindow <= 0 {
		cfg.RefreshWindow = DefaultRefreshWindow
	}
	if cfg.AlertThreshold <= 0 {
		cfg.AlertThreshold = DefaultAlertThreshold
	}
	if cfg.BatchLimit <= 0 {
		cfg.BatchLimit = DefaultSweepBatchLimit
	}
	return &sweepService{
		items:           items,
		queue:           queue,
		notifications:   notifications,
		bus:             bus,
		staggerInterval: cfg.StaggerInterval,
		refreshWindow:   cfg.RefreshWindow,
		alertThreshold:  cfg.AlertThreshold,
		batchLimit:      cfg.BatchLimit,
	}
}

// RegenerateAll is the daily full sweep. Index-proportional delays turn a
// burst of N tasks into a bounded trickle against the object store.
func (s *sweepService) RegenerateAll(ctx context.Context) (int, error) {
	ids, err := s.items.ListIDsWithLocator(ctx)
	if err != nil {
		return 0, fmt.Errorf("list items for regeneration: %w", err)
	}

	enqueued := 0
	for i, id := range ids {
		delay := time.Duration(i) * s.staggerInterval
		if err := s.queue.PublishGenerationTask(ctx, repository.NewURLGenerationTask(id), delay); err != nil {
			slog.Error("failed to enqueue regeneration",
				"item_id", id,
				"error", err,
			)
			continue
		}
		enqueued++
	}

	slog.Info("regeneration sweep enqueued", "items", enqueued, "total", len(ids))
	return enqueued, nil
}

// RefreshExpiringSoon rotates URLs before they lapse. The current URL stays
// on the row so in-flight playback sessions finish against it.
func (s *sweepService) RefreshExpiringSoon(ctx context.Context) (int, error) {
	items, err := s.items.ListExpiringSoon(ctx, s.refreshWindow)
	if err != nil {
		return 0, fmt.Errorf("list expiring items: %w", err)
	}

	refreshed := 0
	for i, item := range items {
		if err := s.items.MarkExpired(ctx, item.ID, false); err != nil {
			slog.Error("failed to expire item for refresh",
				"item_id", item.ID,
				"error", err,
			)
			continue
		}

		delay := time.Duration(i) * s.staggerInterval
		if err := s.queue.PublishGenerationTask(ctx, repository.NewURLGenerationTask(item.ID), delay); err != nil {
			slog.Error("failed to enqueue refresh",
				"item_id", item.ID,
				"error", err,
			)
			continue
		}
		refreshed++
	}

	slog.Info("refresh sweep enqueued", "items", refreshed, "candidates", len(items))
	return refreshed, nil
}

// CleanupExpired catches items the refresh sweep missed: their URL is dead,
// so it is cleared and course caches invalidated.
func (s *sweepService) CleanupExpired(ctx context.Context) (int, error) {
	items, err := s.items.ListExpired(ctx)
	if err != nil {
		return 0, fmt.Errorf("list expired items: %w", err)
	}

	cleaned := 0
	for _, item := range items {
		if err := s.items.MarkExpired(ctx, item.ID, true); err != nil {
			slog.Error("failed to clean up expired item",
				"item_id", item.ID,
				"error", err,
			)
			continue
		}

		s.bus.Invalidate(ctx, invalidation.CategoryCurriculum, invalidation.Context{
			CourseID: item.CourseID,
			ItemID:   item.ID,
		})
		cleaned++
	}

	if cleaned > 0 {
		slog.Info("cleanup sweep converted expired items", "items", cleaned)
	}
	return cleaned, nil
}

// RetryFailed gives transiently failed items another pass. Items at the
// alert threshold are left to MonitorFailures.
func (s *sweepService) RetryFailed(ctx context.Context) (int, error) {
	items, err := s.items.ListFailed(ctx, s.alertThreshold, s.batchLimit)
	if err != nil {
		return 0, fmt.Errorf("list failed items: %w", err)
	}

	retried := 0
	for i, item := range items {
		if err := s.items.ResetForRetry(ctx, item.ID); err != nil {
			if errors.Is(err, repository.ErrItemNotClaimable) {
				// Left FAILED between list and reset; nothing to do.
				continue
			}
			slog.Error("failed to reset item for retry",
				"item_id", item.ID,
				"error", err,
			)
			continue
		}

		delay := time.Duration(i) * s.staggerInterval
		if err := s.queue.PublishGenerationTask(ctx, repository.NewURLGenerationTask(item.ID), delay); err != nil {
			slog.Error("failed to enqueue retry",
				"item_id", item.ID,
				"error", err,
			)
			continue
		}
		retried++
	}

	if retried > 0 {
		slog.Info("retry sweep re-enqueued failed items", "items", retried)
	}
	return retried, nil
}

// MonitorFailures surfaces items the retry policy gave up on.
func (s *sweepService) MonitorFailures(ctx context.Context) (int, error) {
	items, err := s.items.ListFailedWithAttemptsAtLeast(ctx, s.alertThreshold, s.batchLimit)
	if err != nil {
		return 0, fmt.Errorf("list persistently failed items: %w", err)
	}

	alerted := 0
	for _, item := range items {
		alert := model.NewGenerationAlert(
			item.ID,
			"Signed URL generation failing",
			fmt.Sprintf("Curriculum item %q (%s) has failed URL generation %d times and needs attention.",
				item.Title, item.ID, item.GenerationAttempts),
		)
		if err := s.notifications.Create(ctx, alert); err != nil {
			slog.Error("failed to create failure notification",
				"item_id", item.ID,
				"error", err,
			)
			continue
		}
		alerted++
	}

	if alerted > 0 {
		slog.Warn("failure monitor raised notifications", "items", alerted)
	}
	return alerted, nil
}
