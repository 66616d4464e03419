package repository

import "errors"

var (
	// ErrItemNotFound is returned when a curriculum item cannot be found.
	ErrItemNotFound = errors.New("curriculum item not found")

	// ErrDuplicateItem is returned when attempting to create a curriculum item that already exists.
	ErrDuplicateItem = errors.New("curriculum item already exists")

	// ErrItemNotClaimable is returned by ClaimForGeneration when the item is
	// not in a claimable state (another worker holds it, or it is terminal).
	ErrItemNotClaimable = errors.New("curriculum item not claimable for generation")

	// ErrCourseNotFound is returned when a course cannot be found.
	ErrCourseNotFound = errors.New("course not found")

	// ErrBucketNotFound is returned when a referenced bucket does not exist.
	ErrBucketNotFound = errors.New("bucket not found")

	// ErrObjectNotFound is returned when an object does not exist in storage.
	ErrObjectNotFound = errors.New("object not found")
)
