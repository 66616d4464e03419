package model

import (
	"errors"
	"time"

	"github.com/google/uuid"
)

// GenerationStatus represents the signed-URL generation state of a curriculum item.
type GenerationStatus string

const (
	GenerationPending    GenerationStatus = "PENDING"
	GenerationProcessing GenerationStatus = "PROCESSING"
	GenerationReady      GenerationStatus = "READY"
	GenerationFailed     GenerationStatus = "FAILED"
	GenerationExpired    GenerationStatus = "EXPIRED"
	GenerationNotNeeded  GenerationStatus = "NOT_NEEDED"
)

// Valid status transitions:
// PENDING    -> PROCESSING
// PROCESSING -> READY | FAILED
// READY      -> EXPIRED
// EXPIRED    -> PROCESSING
// FAILED     -> PROCESSING | PENDING (retry sweep reset)
// NOT_NEEDED is terminal; it is reachable from every other state because a
// locator edit can move an item out of protected storage at any time.
var generationTransitions = map[GenerationStatus][]GenerationStatus{
	GenerationPending:    {GenerationProcessing, GenerationNotNeeded},
	GenerationProcessing: {GenerationReady, GenerationFailed, GenerationNotNeeded},
	GenerationReady:      {GenerationExpired, GenerationNotNeeded},
	GenerationFailed:     {GenerationProcessing, GenerationPending, GenerationNotNeeded},
	GenerationExpired:    {GenerationProcessing, GenerationNotNeeded},
	GenerationNotNeeded:  {},
}

func (s GenerationStatus) IsValid() bool {
	switch s {
	case GenerationPending, GenerationProcessing, GenerationReady,
		GenerationFailed, GenerationExpired, GenerationNotNeeded:
		return true
	default:
		return false
	}
}

func (s GenerationStatus) CanTransitionTo(next GenerationStatus) bool {
	allowed, exists := generationTransitions[s]
	if !exists {
		return false
	}
	for _, status := range allowed {
		if status == next {
			return true
		}
	}
	return false
}

// IsClaimable reports whether a worker may enter PROCESSING from this state.
func (s GenerationStatus) IsClaimable() bool {
	return s == GenerationPending || s == GenerationExpired || s == GenerationFailed
}

func (s GenerationStatus) String() string {
	return string(s)
}

// CurriculumItem represents one lesson/video belonging to a course.
type CurriculumItem struct {
	ID                 uuid.UUID
	CourseID           uuid.UUID
	Title              string
	Position           int
	SourceLocator      string
	SignedURL          string
	SignedURLExpiresAt *time.Time
	GenerationStatus   GenerationStatus
	GenerationAttempts int
	LastAttemptAt      *time.Time
	CreatedAt          time.Time
	UpdatedAt          time.Time
}

var (
	ErrEmptyTitle        = errors.New("title cannot be empty")
	ErrInvalidCourseID   = errors.New("course ID cannot be nil")
	ErrInvalidPosition   = errors.New("position cannot be negative")
	ErrTitleTooLong      = errors.New("title exceeds maximum length of 255 characters")
	ErrInvalidTransition = errors.New("invalid generation status transition")
	ErrEmptySignedURL    = errors.New("signed URL cannot be empty")
	ErrExpiryNotFuture   = errors.New("signed URL expiry must be in the future")
)

const maxTitleLength = 255

// NewCurriculumItem creates a new CurriculumItem. Items whose locator points
// at protected storage start in PENDING; everything else (including empty
// locators) is NOT_NEEDED from the start and never enters generation.
func NewCurriculumItem(courseID uuid.UUID, title string, position int, locator string, protected bool) (*CurriculumItem, error) {
	if courseID == uuid.Nil {
		return nil, ErrInvalidCourseID
	}
	if title == "" {
		return nil, ErrEmptyTitle
	}
	if len(title) > maxTitleLength {
		return nil, ErrTitleTooLong
	}
	if position < 0 {
		return nil, ErrInvalidPosition
	}

	status := GenerationNotNeeded
	if protected && locator != "" {
		status = GenerationPending
	}

	now := time.Now()
	return &CurriculumItem{
		ID:               uuid.New(),
		CourseID:         courseID,
		Title:            title,
		Position:         position,
		SourceLocator:    locator,
		GenerationStatus: status,
		CreatedAt:        now,
		UpdatedAt:        now,
	}, nil
}

// TransitionTo attempts to change the generation status.
// Returns error if the transition is not allowed.
func (i *CurriculumItem) TransitionTo(next GenerationStatus) error {
	if !next.IsValid() {
		return ErrInvalidTransition
	}
	if !i.GenerationStatus.CanTransitionTo(next) {
		return ErrInvalidTransition
	}
	i.GenerationStatus = next
	i.UpdatedAt = time.Now()
	return nil
}

// RecordAttempt increments the attempt counter and stamps the attempt time.
// The counter is monotonic; nothing ever decrements it.
func (i *CurriculumItem) RecordAttempt() {
	now := time.Now()
	i.GenerationAttempts++
	i.LastAttemptAt = &now
	i.UpdatedAt = now
}

// MarkReady records a successful generation. The READY invariant is enforced
// here: a non-empty URL and an expiry in the future at the moment of commit.
func (i *CurriculumItem) MarkReady(signedURL string, expiresAt time.Time) error {
	if signedURL == "" {
		return ErrEmptySignedURL
	}
	if !expiresAt.After(time.Now()) {
		return ErrExpiryNotFuture
	}
	if err := i.TransitionTo(GenerationReady); err != nil {
		return err
	}
	i.SignedURL = signedURL
	i.SignedURLExpiresAt = &expiresAt
	return nil
}

// MarkFailed records a failed generation attempt.
func (i *CurriculumItem) MarkFailed() error {
	return i.TransitionTo(GenerationFailed)
}

// MarkExpired transitions READY -> EXPIRED. When clearURL is true the stale
// signed URL is dropped; the refresh sweep keeps it so in-flight playback
// sessions can finish.
func (i *CurriculumItem) MarkExpired(clearURL bool) error {
	if err := i.TransitionTo(GenerationExpired); err != nil {
		return err
	}
	if clearURL {
		i.SignedURL = ""
		i.SignedURLExpiresAt = nil
	}
	return nil
}

// MarkNotNeeded settles the item in its terminal non-protected state.
func (i *CurriculumItem) MarkNotNeeded() error {
	if i.GenerationStatus == GenerationNotNeeded {
		return nil
	}
	if err := i.TransitionTo(GenerationNotNeeded); err != nil {
		return err
	}
	i.SignedURL = ""
	i.SignedURLExpiresAt = nil
	return nil
}

// IsURLReady reports whether the persisted signed URL may be served.
func (i *CurriculumItem) IsURLReady() bool {
	return i.GenerationStatus == GenerationReady &&
		i.SignedURL != "" &&
		i.SignedURLExpiresAt != nil &&
		i.SignedURLExpiresAt.After(time.Now())
}
