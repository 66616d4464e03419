package repository

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/hszk-dev/courseflow/internal/domain/model"
)

// CurriculumRepository defines persistence operations over curriculum items.
// Implementations should be provided by the infrastructure layer (e.g., PostgreSQL).
type CurriculumRepository interface {
	// Create persists a new curriculum item.
	Create(ctx context.Context, item *model.CurriculumItem) error

	// GetByID retrieves a curriculum item by its identifier.
	// Returns nil and ErrItemNotFound if the item does not exist.
	GetByID(ctx context.Context, id uuid.UUID) (*model.CurriculumItem, error)

	// ListByCourse retrieves all items of a course ordered by position.
	ListByCourse(ctx context.Context, courseID uuid.UUID) ([]*model.CurriculumItem, error)

	// Update persists changes to an existing item.
	// Returns ErrItemNotFound if the item does not exist.
	Update(ctx context.Context, item *model.CurriculumItem) error

	// Delete removes an item. Returns ErrItemNotFound if it does not exist.
	Delete(ctx context.Context, id uuid.UUID) error

	// ClaimForGeneration atomically moves the item into PROCESSING,
	// increments generation_attempts and stamps last_attempt_at, but only
	// when the current status is claimable (PENDING, EXPIRED or FAILED).
	// The conditional UPDATE gives at-most-one-in-flight semantics per item;
	// a lost race returns ErrItemNotClaimable, not a stale row.
	ClaimForGeneration(ctx context.Context, id uuid.UUID) (*model.CurriculumItem, error)

	// MarkReady transitions PROCESSING -> READY persisting the signed URL
	// and its expiry. Returns ErrItemNotFound if the item is gone.
	MarkReady(ctx context.Context, id uuid.UUID, signedURL string, expiresAt time.Time) error

	// MarkFailed transitions PROCESSING -> FAILED.
	MarkFailed(ctx context.Context, id uuid.UUID) error

	// MarkExpired transitions READY -> EXPIRED; when clearURL is set the
	// stale signed URL and expiry are nulled out.
	MarkExpired(ctx context.Context, id uuid.UUID, clearURL bool) error

	// MarkNotNeeded settles the item in its terminal NOT_NEEDED state and
	// clears any previously generated URL.
	MarkNotNeeded(ctx context.Context, id uuid.UUID) error

	// ResetForRetry conditionally moves FAILED -> PENDING for the retry
	// sweep. Returns ErrItemNotClaimable when the item left FAILED meanwhile.
	ResetForRetry(ctx context.Context, id uuid.UUID) error

	// ListIDsWithLocator returns the IDs of every item with a non-empty
	// source locator, for the full regeneration sweep.
	ListIDsWithLocator(ctx context.Context) ([]uuid.UUID, error)

	// ListExpiringSoon returns READY items whose signed URL expires within
	// the lookahead window from now.
	ListExpiringSoon(ctx context.Context, within time.Duration) ([]*model.CurriculumItem, error)

	// ListExpired returns READY items whose signed URL expiry has already
	// passed (covers refresh-sweep misses).
	ListExpired(ctx context.Context) ([]*model.CurriculumItem, error)

	// ListFailed returns FAILED items with attempts strictly below the
	// threshold, bounded by limit, for the retry sweep.
	ListFailed(ctx context.Context, attemptsBelow, limit int) ([]*model.CurriculumItem, error)

	// ListFailedWithAttemptsAtLeast returns FAILED items whose attempt count
	// has reached the threshold, for the failure monitor.
	ListFailedWithAttemptsAtLeast(ctx context.Context, threshold, limit int) ([]*model.CurriculumItem, error)
}
