package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/hszk-dev/courseflow/internal/domain/model"
	"github.com/hszk-dev/courseflow/internal/domain/repository"
)

// CourseRepository implements repository.CourseRepository using PostgreSQL.
type CourseRepository struct {
	db DBTX
}

// NewCourseRepository creates a new CourseRepository instance.
func NewCourseRepository(db DBTX) *CourseRepository {
	return &CourseRepository{db: db}
}

// GetByID retrieves a course by its unique identifier.
func (r *CourseRepository) GetByID(ctx context.Context, id uuid.UUID) (*model.Course, error) {
	const query = `
		SELECT id, category_id, title, is_featured, created_at, updated_at
		FROM courses
		WHERE id = $1
	`

	var course model.Course
	err := r.db.QueryRow(ctx, query, id).Scan(
		&course.ID,
		&course.CategoryID,
		&course.Title,
		&course.IsFeatured,
		&course.CreatedAt,
		&course.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, repository.ErrCourseNotFound
		}
		return nil, fmt.Errorf("failed to get course by ID: %w", err)
	}

	return &course, nil
}

// EnrollmentRepository implements repository.EnrollmentRepository using PostgreSQL.
type EnrollmentRepository struct {
	db DBTX
}

// NewEnrollmentRepository creates a new EnrollmentRepository instance.
func NewEnrollmentRepository(db DBTX) *EnrollmentRepository {
	return &EnrollmentRepository{db: db}
}

// ActiveUserIDs returns the user IDs of up to limit active enrollments of a
// course, most recently enrolled first.
func (r *EnrollmentRepository) ActiveUserIDs(ctx context.Context, courseID uuid.UUID, limit int) ([]uuid.UUID, error) {
	const query = `
		SELECT user_id
		FROM enrollments
		WHERE course_id = $1 AND active = true
		ORDER BY date_enrolled DESC
		LIMIT $2
	`

	rows, err := r.db.Query(ctx, query, courseID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query active enrollments: %w", err)
	}
	defer rows.Close()

	var userIDs []uuid.UUID
	for rows.Next() {
		var userID uuid.UUID
		if err := rows.Scan(&userID); err != nil {
			return nil, fmt.Errorf("failed to scan enrollment user ID: %w", err)
		}
		userIDs = append(userIDs, userID)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating enrollments: %w", err)
	}

	return userIDs, nil
}

// Compile-time verification of the repository interfaces.
var (
	_ repository.CourseRepository     = (*CourseRepository)(nil)
	_ repository.EnrollmentRepository = (*EnrollmentRepository)(nil)
)
