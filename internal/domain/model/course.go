package model

import (
	"time"

	"github.com/google/uuid"
)

// Course is referenced by the invalidation bus as cascade context; the CRUD
// surface that owns it lives outside this module.
type Course struct {
	ID         uuid.UUID
	CategoryID uuid.UUID
	Title      string
	IsFeatured bool
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

// Enrollment links a user to a course. Only active enrollments participate
// in the bounded invalidation cascade.
type Enrollment struct {
	ID           uuid.UUID
	UserID       uuid.UUID
	CourseID     uuid.UUID
	DateEnrolled time.Time
	Active       bool
}
