package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/hszk-dev/courseflow/internal/domain/model"
	"github.com/hszk-dev/courseflow/internal/domain/repository"
)

// DBTX is an interface that abstracts pgxpool.Pool and pgx.Tx for testability.
type DBTX interface {
	Exec(ctx context.Context, sql string, arguments ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

const curriculumColumns = `id, course_id, title, position, source_locator, signed_url,
		signed_url_expires_at, generation_status, generation_attempts, last_attempt_at,
		created_at, updated_at`

// CurriculumRepository implements repository.CurriculumRepository using PostgreSQL.
type CurriculumRepository struct {
	db DBTX
}

// NewCurriculumRepository creates a new CurriculumRepository instance.
func NewCurriculumRepository(db DBTX) *CurriculumRepository {
	return &CurriculumRepository{db: db}
}

// Create persists a new curriculum item.
func (r *CurriculumRepository) Create(ctx context.Context, item *model.CurriculumItem) error {
	const query = `
		INSERT INTO curriculum_items (id, course_id, title, position, source_locator, signed_url,
			signed_url_expires_at, generation_status, generation_attempts, last_attempt_at,
			created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
	`

	_, err := r.db.Exec(ctx, query,
		item.ID,
		item.CourseID,
		item.Title,
		item.Position,
		nullString(item.SourceLocator),
		nullString(item.SignedURL),
		item.SignedURLExpiresAt,
		item.GenerationStatus.String(),
		item.GenerationAttempts,
		item.LastAttemptAt,
		item.CreatedAt,
		item.UpdatedAt,
	)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return repository.ErrDuplicateItem
		}
		return fmt.Errorf("failed to create curriculum item: %w", err)
	}

	return nil
}

// GetByID retrieves a curriculum item by its unique identifier.
func (r *CurriculumRepository) GetByID(ctx context.Context, id uuid.UUID) (*model.CurriculumItem, error) {
	query := `
		SELECT ` + curriculumColumns + `
		FROM curriculum_items
		WHERE id = $1
	`

	item, err := scanItem(r.db.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, repository.ErrItemNotFound
		}
		return nil, fmt.Errorf("failed to get curriculum item by ID: %w", err)
	}

	return item, nil
}

// ListByCourse retrieves all items of a course ordered by position.
func (r *CurriculumRepository) ListByCourse(ctx context.Context, courseID uuid.UUID) ([]*model.CurriculumItem, error) {
	query := `
		SELECT ` + curriculumColumns + `
		FROM curriculum_items
		WHERE course_id = $1
		ORDER BY position ASC
	`

	rows, err := r.db.Query(ctx, query, courseID)
	if err != nil {
		return nil, fmt.Errorf("failed to query items by course ID: %w", err)
	}
	defer rows.Close()

	return collectItems(rows)
}

// Update persists changes to an existing curriculum item.
func (r *CurriculumRepository) Update(ctx context.Context, item *model.CurriculumItem) error {
	const query = `
		UPDATE curriculum_items
		SET title = $2, position = $3, source_locator = $4, signed_url = $5,
			signed_url_expires_at = $6, generation_status = $7, generation_attempts = $8,
			last_attempt_at = $9, updated_at = $10
		WHERE id = $1
	`

	item.UpdatedAt = time.Now()

	tag, err := r.db.Exec(ctx, query,
		item.ID,
		item.Title,
		item.Position,
		nullString(item.SourceLocator),
		nullString(item.SignedURL),
		item.SignedURLExpiresAt,
		item.GenerationStatus.String(),
		item.GenerationAttempts,
		item.LastAttemptAt,
		item.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to update curriculum item: %w", err)
	}

	if tag.RowsAffected() == 0 {
		return repository.ErrItemNotFound
	}

	return nil
}

// Delete removes a curriculum item.
func (r *CurriculumRepository) Delete(ctx context.Context, id uuid.UUID) error {
	const query = `DELETE FROM curriculum_items WHERE id = $1`

	tag, err := r.db.Exec(ctx, query, id)
	if err != nil {
		return fmt.Errorf("failed to delete curriculum item: %w", err)
	}

	if tag.RowsAffected() == 0 {
		return repository.ErrItemNotFound
	}

	return nil
}

// ClaimForGeneration atomically claims an item for processing. The status
// predicate inside the UPDATE is what makes the claim safe under concurrent
// workers: only one of N racing claims sees an affected row, the rest get
// ErrItemNotClaimable.
func (r *CurriculumRepository) ClaimForGeneration(ctx context.Context, id uuid.UUID) (*model.CurriculumItem, error) {
	query := `
		UPDATE curriculum_items
		SET generation_status = 'PROCESSING',
			generation_attempts = generation_attempts + 1,
			last_attempt_at = now(),
			updated_at = now()
		WHERE id = $1
		  AND generation_status IN ('PENDING', 'EXPIRED', 'FAILED')
		RETURNING ` + curriculumColumns

	item, err := scanItem(r.db.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, r.classifyClaimMiss(ctx, id)
		}
		return nil, fmt.Errorf("failed to claim curriculum item: %w", err)
	}

	return item, nil
}

// classifyClaimMiss distinguishes a missing row from a lost claim race.
func (r *CurriculumRepository) classifyClaimMiss(ctx context.Context, id uuid.UUID) error {
	const query = `SELECT 1 FROM curriculum_items WHERE id = $1`

	var one int
	if err := r.db.QueryRow(ctx, query, id).Scan(&one); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return repository.ErrItemNotFound
		}
		return fmt.Errorf("failed to check curriculum item existence: %w", err)
	}
	return repository.ErrItemNotClaimable
}

// MarkReady transitions a processing item to READY with its signed URL.
func (r *CurriculumRepository) MarkReady(ctx context.Context, id uuid.UUID, signedURL string, expiresAt time.Time) error {
	const query = `
		UPDATE curriculum_items
		SET generation_status = 'READY', signed_url = $2, signed_url_expires_at = $3, updated_at = now()
		WHERE id = $1
	`

	tag, err := r.db.Exec(ctx, query, id, signedURL, expiresAt)
	if err != nil {
		return fmt.Errorf("failed to mark item ready: %w", err)
	}

	if tag.RowsAffected() == 0 {
		return repository.ErrItemNotFound
	}

	return nil
}

// MarkFailed transitions a processing item to FAILED.
func (r *CurriculumRepository) MarkFailed(ctx context.Context, id uuid.UUID) error {
	const query = `
		UPDATE curriculum_items
		SET generation_status = 'FAILED', updated_at = now()
		WHERE id = $1
	`

	tag, err := r.db.Exec(ctx, query, id)
	if err != nil {
		return fmt.Errorf("failed to mark item failed: %w", err)
	}

	if tag.RowsAffected() == 0 {
		return repository.ErrItemNotFound
	}

	return nil
}

// MarkExpired transitions a READY item to EXPIRED, optionally clearing the
// stale URL. The status predicate keeps the sweep idempotent: a second pass
// over an already-expired item affects no rows and is not an error.
func (r *CurriculumRepository) MarkExpired(ctx context.Context, id uuid.UUID, clearURL bool) error {
	query := `
		UPDATE curriculum_items
		SET generation_status = 'EXPIRED', updated_at = now()
		WHERE id = $1 AND generation_status = 'READY'
	`
	if clearURL {
		query = `
			UPDATE curriculum_items
			SET generation_status = 'EXPIRED', signed_url = NULL, signed_url_expires_at = NULL, updated_at = now()
			WHERE id = $1 AND generation_status = 'READY'
		`
	}

	if _, err := r.db.Exec(ctx, query, id); err != nil {
		return fmt.Errorf("failed to mark item expired: %w", err)
	}

	return nil
}

// MarkNotNeeded settles the item in its terminal NOT_NEEDED state.
func (r *CurriculumRepository) MarkNotNeeded(ctx context.Context, id uuid.UUID) error {
	const query = `
		UPDATE curriculum_items
		SET generation_status = 'NOT_NEEDED', signed_url = NULL, signed_url_expires_at = NULL, updated_at = now()
		WHERE id = $1
	`

	tag, err := r.db.Exec(ctx, query, id)
	if err != nil {
		return fmt.Errorf("failed to mark item not needed: %w", err)
	}

	if tag.RowsAffected() == 0 {
		return repository.ErrItemNotFound
	}

	return nil
}

// ResetForRetry conditionally moves a FAILED item back to PENDING.
func (r *CurriculumRepository) ResetForRetry(ctx context.Context, id uuid.UUID) error {
	const query = `
		UPDATE curriculum_items
		SET generation_status = 'PENDING', updated_at = now()
		WHERE id = $1 AND generation_status = 'FAILED'
	`

	tag, err := r.db.Exec(ctx, query, id)
	if err != nil {
		return fmt.Errorf("failed to reset item for retry: %w", err)
	}

	if tag.RowsAffected() == 0 {
		return repository.ErrItemNotClaimable
	}

	return nil
}

// ListIDsWithLocator returns IDs of all items backed by a source locator.
func (r *CurriculumRepository) ListIDsWithLocator(ctx context.Context) ([]uuid.UUID, error) {
	const query = `
		SELECT id
		FROM curriculum_items
		WHERE source_locator IS NOT NULL AND source_locator <> ''
		ORDER BY created_at ASC
	`

	rows, err := r.db.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to query item IDs: %w", err)
	}
	defer rows.Close()

	var ids []uuid.UUID
	for rows.Next() {
		var id uuid.UUID
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("failed to scan item ID: %w", err)
		}
		ids = append(ids, id)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating item IDs: %w", err)
	}

	return ids, nil
}

// ListExpiringSoon returns READY items whose URL expires within the window.
func (r *CurriculumRepository) ListExpiringSoon(ctx context.Context, within time.Duration) ([]*model.CurriculumItem, error) {
	query := `
		SELECT ` + curriculumColumns + `
		FROM curriculum_items
		WHERE generation_status = 'READY'
		  AND signed_url_expires_at IS NOT NULL
		  AND signed_url_expires_at <= $1
		ORDER BY signed_url_expires_at ASC
	`

	rows, err := r.db.Query(ctx, query, time.Now().Add(within))
	if err != nil {
		return nil, fmt.Errorf("failed to query expiring items: %w", err)
	}
	defer rows.Close()

	return collectItems(rows)
}

// ListExpired returns READY items whose URL expiry already passed.
func (r *CurriculumRepository) ListExpired(ctx context.Context) ([]*model.CurriculumItem, error) {
	query := `
		SELECT ` + curriculumColumns + `
		FROM curriculum_items
		WHERE generation_status = 'READY'
		  AND signed_url_expires_at IS NOT NULL
		  AND signed_url_expires_at <= now()
		ORDER BY signed_url_expires_at ASC
	`

	rows, err := r.db.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to query expired items: %w", err)
	}
	defer rows.Close()

	return collectItems(rows)
}

// ListFailed returns FAILED items still under the attempt threshold.
func (r *CurriculumRepository) ListFailed(ctx context.Context, attemptsBelow, limit int) ([]*model.CurriculumItem, error) {
	query := `
		SELECT ` + curriculumColumns + `
		FROM curriculum_items
		WHERE generation_status = 'FAILED' AND generation_attempts < $1
		ORDER BY last_attempt_at ASC NULLS FIRST
		LIMIT $2
	`

	rows, err := r.db.Query(ctx, query, attemptsBelow, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query failed items: %w", err)
	}
	defer rows.Close()

	return collectItems(rows)
}

// ListFailedWithAttemptsAtLeast returns FAILED items at or past the threshold.
func (r *CurriculumRepository) ListFailedWithAttemptsAtLeast(ctx context.Context, threshold, limit int) ([]*model.CurriculumItem, error) {
	query := `
		SELECT ` + curriculumColumns + `
		FROM curriculum_items
		WHERE generation_status = 'FAILED' AND generation_attempts >= $1
		ORDER BY last_attempt_at ASC NULLS FIRST
		LIMIT $2
	`

	rows, err := r.db.Query(ctx, query, threshold, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query persistently failed items: %w", err)
	}
	defer rows.Close()

	return collectItems(rows)
}

// scanItem scans a single row into a CurriculumItem model.
func scanItem(row pgx.Row) (*model.CurriculumItem, error) {
	var (
		item          model.CurriculumItem
		status        string
		sourceLocator *string
		signedURL     *string
	)

	err := row.Scan(
		&item.ID,
		&item.CourseID,
		&item.Title,
		&item.Position,
		&sourceLocator,
		&signedURL,
		&item.SignedURLExpiresAt,
		&status,
		&item.GenerationAttempts,
		&item.LastAttemptAt,
		&item.CreatedAt,
		&item.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	item.GenerationStatus = model.GenerationStatus(status)
	if sourceLocator != nil {
		item.SourceLocator = *sourceLocator
	}
	if signedURL != nil {
		item.SignedURL = *signedURL
	}

	return &item, nil
}

// collectItems drains pgx.Rows into CurriculumItem models.
func collectItems(rows pgx.Rows) ([]*model.CurriculumItem, error) {
	var items []*model.CurriculumItem
	for rows.Next() {
		item, err := scanItem(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan curriculum item: %w", err)
		}
		items = append(items, item)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating curriculum items: %w", err)
	}

	return items, nil
}

// nullString returns nil for empty strings, otherwise returns a pointer to the string.
func nullString(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

// Compile-time verification that CurriculumRepository implements repository.CurriculumRepository.
var _ repository.CurriculumRepository = (*CurriculumRepository)(nil)
