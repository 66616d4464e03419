package repository

import (
	"context"

	"github.com/google/uuid"
	"github.com/hszk-dev/courseflow/internal/domain/model"
)

// CourseRepository provides the read access the invalidation cascade and the
// cached detail view need. Course CRUD itself lives outside this core.
type CourseRepository interface {
	// GetByID retrieves a course. Returns ErrCourseNotFound if missing.
	GetByID(ctx context.Context, id uuid.UUID) (*model.Course, error)
}

// EnrollmentRepository exposes the bounded enrollee sample used by the
// invalidation cascade.
type EnrollmentRepository interface {
	// ActiveUserIDs returns the user IDs of up to limit active enrollments
	// of a course, most recent first. The bound is deliberate: invalidating
	// every enrollee of a popular course would turn one mutation into an
	// unbounded cache write burst.
	ActiveUserIDs(ctx context.Context, courseID uuid.UUID, limit int) ([]uuid.UUID, error)
}

// NotificationRepository persists operator alerts raised by the failure monitor.
type NotificationRepository interface {
	Create(ctx context.Context, n *model.Notification) error
}
