package usecase

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/singleflight"

	"github.com/hszk-dev/courseflow/internal/domain/model"
	"github.com/hszk-dev/courseflow/internal/infrastructure/cache"
	"github.com/hszk-dev/courseflow/internal/infrastructure/metrics"
	"github.com/hszk-dev/courseflow/internal/invalidation"
)

// CachedCatalogServiceConfig holds configuration for CachedCatalogService.
type CachedCatalogServiceConfig struct {
	// DetailTTL is the TTL for cached course-detail aggregates.
	DetailTTL time.Duration
	// StatusTTL is the TTL for cached playback-status payloads.
	StatusTTL time.Duration
}

// DefaultCachedCatalogServiceConfig returns the default configuration.
func DefaultCachedCatalogServiceConfig() CachedCatalogServiceConfig {
	return CachedCatalogServiceConfig{
		DetailTTL: cache.DetailTTL,
		StatusTTL: cache.StatusTTL,
	}
}

// cachedCatalogService wraps CatalogService with cache-aside reads.
// It populates under the same key table the invalidation bus deletes from;
// a key family not in the registry must not be written here.
type cachedCatalogService struct {
	delegate CatalogService
	store    cache.Store
	sfGroup  singleflight.Group

	detailTTL time.Duration
	statusTTL time.Duration
}

// NewCachedCatalogService creates a caching decorator over the provided
// CatalogService.
func NewCachedCatalogService(
	delegate CatalogService,
	store cache.Store,
	cfg CachedCatalogServiceConfig,
) CatalogService {
	detailTTL := cfg.DetailTTL
	if detailTTL <= 0 {
		detailTTL = cache.DetailTTL
	}
	statusTTL := cfg.StatusTTL
	if statusTTL <= 0 {
		statusTTL = cache.StatusTTL
	}
	return &cachedCatalogService{
		delegate:  delegate,
		store:     store,
		detailTTL: detailTTL,
		statusTTL: statusTTL,
	}
}

// CreateCurriculumItem delegates; the base service runs the invalidation hook.
func (s *cachedCatalogService) CreateCurriculumItem(ctx context.Context, input CreateItemInput) (*model.CurriculumItem, error) {
	return s.delegate.CreateCurriculumItem(ctx, input)
}

// DeleteCurriculumItem delegates; the base service runs the invalidation hook.
func (s *cachedCatalogService) DeleteCurriculumItem(ctx context.Context, itemID uuid.UUID) error {
	return s.delegate.DeleteCurriculumItem(ctx, itemID)
}

// GetItem delegates without caching; single-row reads are cheap and mutation
// hot (status flips several times per generation cycle).
func (s *cachedCatalogService) GetItem(ctx context.Context, itemID uuid.UUID) (*model.CurriculumItem, error) {
	return s.delegate.GetItem(ctx, itemID)
}

// CourseDetail serves the course page aggregate cache-aside with singleflight,
// so a cold popular course costs one database round trip, not one per waiter.
func (s *cachedCatalogService) CourseDetail(ctx context.Context, courseID uuid.UUID) (*CourseDetail, error) {
	key := invalidation.CourseDetailKey(courseID)

	result, err, shared := s.sfGroup.Do(key, func() (any, error) {
		return s.courseDetailWithCache(ctx, courseID, key)
	})

	if shared {
		metrics.SingleflightRequestsTotal.WithLabelValues(metrics.SingleflightShared).Inc()
	} else {
		metrics.SingleflightRequestsTotal.WithLabelValues(metrics.SingleflightInitiated).Inc()
	}

	if err != nil {
		return nil, err
	}
	return result.(*CourseDetail), nil
}

func (s *cachedCatalogService) courseDetailWithCache(ctx context.Context, courseID uuid.UUID, key string) (*CourseDetail, error) {
	raw, err := s.store.Get(ctx, key)
	if err != nil {
		slog.Warn("cache get failed, falling back to database",
			"course_id", courseID,
			"error", err,
		)
	}
	if raw != nil {
		var detail CourseDetail
		if err := json.Unmarshal(raw, &detail); err == nil {
			return &detail, nil
		}
		// Undecodable entry: treat as a miss and overwrite below.
		slog.Warn("discarding undecodable course detail cache entry", "course_id", courseID)
	}

	detail, err := s.delegate.CourseDetail(ctx, courseID)
	if err != nil {
		return nil, err
	}

	if encoded, err := json.Marshal(detail); err == nil {
		if err := s.store.Set(ctx, key, encoded, s.detailTTL); err != nil {
			slog.Warn("failed to cache course detail",
				"course_id", courseID,
				"error", err,
			)
		}
	}

	return detail, nil
}

// SignedURL delegates without caching: the READY check is against the row's
// expiry and must never be served stale.
func (s *cachedCatalogService) SignedURL(ctx context.Context, itemID uuid.UUID) (string, error) {
	return s.delegate.SignedURL(ctx, itemID)
}

// PlaybackStatus serves the polling payload cache-aside under the per-item
// playback key with a minute-scale TTL; polling clients are the one read
// path hot enough to justify it.
func (s *cachedCatalogService) PlaybackStatus(ctx context.Context, itemID uuid.UUID) (*PlaybackStatus, error) {
	key := invalidation.ItemPlaybackKey(itemID)

	raw, err := s.store.Get(ctx, key)
	if err != nil {
		slog.Warn("cache get failed, falling back to database",
			"item_id", itemID,
			"error", err,
		)
	}
	if raw != nil {
		var status PlaybackStatus
		if err := json.Unmarshal(raw, &status); err == nil {
			return &status, nil
		}
	}

	status, err := s.delegate.PlaybackStatus(ctx, itemID)
	if err != nil {
		return nil, err
	}

	if encoded, err := json.Marshal(status); err == nil {
		if err := s.store.Set(ctx, key, encoded, s.statusTTL); err != nil {
			slog.Warn("failed to cache playback status",
				"item_id", itemID,
				"error", err,
			)
		}
	}

	return status, nil
}

// EnqueueGeneration delegates to the underlying service.
func (s *cachedCatalogService) EnqueueGeneration(ctx context.Context, itemID uuid.UUID, delay time.Duration) error {
	return s.delegate.EnqueueGeneration(ctx, itemID, delay)
}

// RefreshItem delegates to the underlying service.
func (s *cachedCatalogService) RefreshItem(ctx context.Context, itemID uuid.UUID) error {
	return s.delegate.RefreshItem(ctx, itemID)
}
