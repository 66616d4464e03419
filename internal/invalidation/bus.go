package invalidation

import (
	"context"
	"log/slog"

	"github.com/google/uuid"

	"github.com/hszk-dev/courseflow/internal/domain/repository"
	"github.com/hszk-dev/courseflow/internal/infrastructure/cache"
	"github.com/hszk-dev/courseflow/internal/infrastructure/metrics"
)

// DefaultEnrollmentSampleLimit bounds how many enrollees of a course get
// their per-user caches cleared on a course mutation. A deliberate
// cost/staleness trade-off: cold enrollees keep stale entries until TTL.
const DefaultEnrollmentSampleLimit = 100

// BusConfig holds configuration for the invalidation bus.
type BusConfig struct {
	EnrollmentSampleLimit int
}

// DefaultBusConfig returns the default configuration.
func DefaultBusConfig() BusConfig {
	return BusConfig{EnrollmentSampleLimit: DefaultEnrollmentSampleLimit}
}

// Bus resolves category key templates against mutation contexts and performs
// batched deletes. It is safe to call from any entity-mutation point: a
// cache-backend failure is logged and swallowed, never propagated, so an
// invalidation problem cannot fail the mutation that triggered it.
type Bus struct {
	store       cache.Store
	enrollments repository.EnrollmentRepository
	sampleLimit int
}

// NewBus creates a Bus over the shared cache store.
func NewBus(store cache.Store, enrollments repository.EnrollmentRepository, cfg BusConfig) *Bus {
	limit := cfg.EnrollmentSampleLimit
	if limit <= 0 {
		limit = DefaultEnrollmentSampleLimit
	}
	return &Bus{
		store:       store,
		enrollments: enrollments,
		sampleLimit: limit,
	}
}

// Invalidate clears every cache key affected by a mutation of the given
// category, applying the cross-entity cascade rules. Returns the number of
// keys submitted for deletion.
func (b *Bus) Invalidate(ctx context.Context, category Category, ic Context) int {
	keys := Resolve(category, ic)

	switch category {
	case CategoryCourse:
		keys = append(keys, Resolve(CategoryAdmin, ic)...)
		keys = append(keys, b.enrolleeKeys(ctx, ic.CourseID)...)

	case CategoryCurriculum:
		// An item mutation changes the owning course's detail and duration
		// views, so the full course cascade applies.
		keys = append(keys, Resolve(CategoryCourse, ic)...)
		keys = append(keys, Resolve(CategoryAdmin, ic)...)
		keys = append(keys, b.enrolleeKeys(ctx, ic.CourseID)...)

	case CategoryUser:
		keys = append(keys, Resolve(CategoryNotification, ic)...)
		keys = append(keys, Resolve(CategoryWishlist, ic)...)
		keys = append(keys, Resolve(CategoryEnrollment, ic)...)
		keys = append(keys, Resolve(CategoryAdmin, ic)...)

	case CategoryEnrollment:
		if ic.CourseID != uuid.Nil {
			keys = append(keys, Resolve(CategoryCourse, ic)...)
		}
		keys = append(keys, Resolve(CategoryAdmin, ic)...)
	}

	keys = dedupe(keys)
	if len(keys) == 0 {
		return 0
	}

	if _, err := b.store.DeleteMany(ctx, keys); err != nil {
		// Never propagate: the triggering mutation must not fail on a cache
		// backend problem. Entries age out by TTL regardless.
		slog.Error("cache invalidation failed",
			"category", string(category),
			"keys", len(keys),
			"error", err,
		)
	}

	metrics.CacheInvalidationsTotal.WithLabelValues(string(category)).Inc()
	return len(keys)
}

// enrolleeKeys resolves the per-user enrollment cache keys for a bounded
// sample of the course's active enrollees, most recent first.
func (b *Bus) enrolleeKeys(ctx context.Context, courseID uuid.UUID) []string {
	if courseID == uuid.Nil || b.enrollments == nil {
		return nil
	}

	userIDs, err := b.enrollments.ActiveUserIDs(ctx, courseID, b.sampleLimit)
	if err != nil {
		slog.Warn("enrollee sample lookup failed, skipping per-user invalidation",
			"course_id", courseID,
			"error", err,
		)
		return nil
	}

	keys := make([]string, 0, len(userIDs)*2)
	for _, uid := range userIDs {
		keys = append(keys, EnrollmentListKey(uid), EnrollmentSummaryKey(uid))
	}
	return keys
}

// ClearAll drops every cache entry. Administrative/bulk use only; it is
// never part of a per-mutation path.
func (b *Bus) ClearAll(ctx context.Context) error {
	if err := b.store.Flush(ctx); err != nil {
		slog.Error("clear-all cache flush failed", "error", err)
		return err
	}
	slog.Warn("cleared ALL cache entries")
	return nil
}

func dedupe(keys []string) []string {
	seen := make(map[string]struct{}, len(keys))
	out := keys[:0]
	for _, k := range keys {
		if _, dup := seen[k]; dup {
			continue
		}
		seen[k] = struct{}{}
		out = append(out, k)
	}
	return out
}
