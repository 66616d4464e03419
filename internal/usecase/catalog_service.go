package usecase

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/hszk-dev/courseflow/internal/domain/model"
	"github.com/hszk-dev/courseflow/internal/domain/repository"
	"github.com/hszk-dev/courseflow/internal/gateway"
	"github.com/hszk-dev/courseflow/internal/invalidation"
)

// DefaultEnqueueDelay is the countdown applied when a mutation auto-enqueues
// generation: long enough for the surrounding transaction to commit before a
// worker re-reads the row.
const DefaultEnqueueDelay = 5 * time.Second

// RetryAfterSeconds is the polling hint handed to clients while a URL is not
// servable yet.
const RetryAfterSeconds = 30

// Human-facing playback messages.
const (
	MessagePreparing   = "Video URL is being prepared..."
	MessageReady       = "Video ready"
	MessageRefreshing  = "Video URL is being refreshed..."
	MessageUnavailable = "Video temporarily unavailable"
	MessageNoVideo     = "No protected video for this item"
)

// CreateItemInput contains the input parameters for creating a curriculum item.
type CreateItemInput struct {
	CourseID uuid.UUID
	Title    string
	Position int
	Locator  string
}

// PlaybackStatus is the client-polling payload for an item's URL state.
type PlaybackStatus struct {
	ItemID            uuid.UUID              `json:"item_id"`
	Status            model.GenerationStatus `json:"status"`
	Message           string                 `json:"message"`
	RetryAfterSeconds int                    `json:"retry_after_seconds,omitempty"`
	SignedURL         string                 `json:"signed_url,omitempty"`
}

// CourseDetail is the aggregate read model for a course page.
type CourseDetail struct {
	Course *model.Course           `json:"course"`
	Items  []*model.CurriculumItem `json:"items"`
}

// CatalogService is the surface exposed to the CRUD/API layer: item
// mutations with their invalidation and auto-enqueue hooks, plus the
// read-side operations that never trigger synchronous generation.
type CatalogService interface {
	// CreateCurriculumItem persists a new item, invalidates the owning
	// course's caches and, when the locator needs signing, enqueues
	// generation with a short countdown.
	CreateCurriculumItem(ctx context.Context, input CreateItemInput) (*model.CurriculumItem, error)

	// DeleteCurriculumItem removes an item and invalidates the course caches.
	DeleteCurriculumItem(ctx context.Context, itemID uuid.UUID) error

	// GetItem retrieves a curriculum item.
	GetItem(ctx context.Context, itemID uuid.UUID) (*model.CurriculumItem, error)

	// CourseDetail retrieves a course with its ordered curriculum.
	CourseDetail(ctx context.Context, courseID uuid.UUID) (*CourseDetail, error)

	// SignedURL returns the persisted signed URL when the item is READY and
	// unexpired, the raw locator for NOT_NEEDED items (direct access), and
	// "" otherwise. It never generates synchronously.
	SignedURL(ctx context.Context, itemID uuid.UUID) (string, error)

	// PlaybackStatus returns the polling payload for an item.
	PlaybackStatus(ctx context.Context, itemID uuid.UUID) (*PlaybackStatus, error)

	// EnqueueGeneration publishes a generation task with the given countdown.
	EnqueueGeneration(ctx context.Context, itemID uuid.UUID, delay time.Duration) error

	// RefreshItem force-expires a READY item (keeping the current URL servable
	// for in-flight sessions) and re-enqueues generation immediately.
	RefreshItem(ctx context.Context, itemID uuid.UUID) error
}

// CatalogServiceConfig holds configuration for CatalogService.
type CatalogServiceConfig struct {
	EnqueueDelay time.Duration
}

// DefaultCatalogServiceConfig returns the default configuration.
func DefaultCatalogServiceConfig() CatalogServiceConfig {
	return CatalogServiceConfig{
		EnqueueDelay: DefaultEnqueueDelay,
	}
}

type catalogService struct {
	items   repository.CurriculumRepository
	courses repository.CourseRepository
	queue   repository.TaskQueue
	signer  gateway.Signer
	bus     Invalidator

	enqueueDelay time.Duration
}

// NewCatalogService creates a new CatalogService instance.
func NewCatalogService(
	items repository.CurriculumRepository,
	courses repository.CourseRepository,
	queue repository.TaskQueue,
	signer gateway.Signer,
	bus Invalidator,
	cfg CatalogServiceConfig,
) CatalogService {
	delay := cfg.EnqueueDelay
	if delay <= 0 {
		delay = DefaultEnqueueDelay
	}
	return &catalogService{
		items:        items,
		courses:      courses,
		queue:        queue,
		signer:       signer,
		bus:          bus,
		enqueueDelay: delay,
	}
}

// CreateCurriculumItem persists a new item and runs the mutation hooks.
func (s *catalogService) CreateCurriculumItem(ctx context.Context, input CreateItemInput) (*model.CurriculumItem, error) {
	protected := input.Locator != "" && s.signer.IsProtected(input.Locator)

	item, err := model.NewCurriculumItem(input.CourseID, input.Title, input.Position, input.Locator, protected)
	if err != nil {
		return nil, err
	}

	if err := s.items.Create(ctx, item); err != nil {
		return nil, fmt.Errorf("create curriculum item: %w", err)
	}

	s.invalidate(ctx, item)

	if item.GenerationStatus == model.GenerationPending {
		if err := s.queue.PublishGenerationTask(ctx, repository.NewURLGenerationTask(item.ID), s.enqueueDelay); err != nil {
			// The item is persisted; the daily regeneration sweep covers a
			// lost enqueue. Report it anyway so callers can log.
			return item, fmt.Errorf("enqueue generation for new item: %w", err)
		}
	}

	return item, nil
}

// DeleteCurriculumItem removes an item and invalidates course caches.
func (s *catalogService) DeleteCurriculumItem(ctx context.Context, itemID uuid.UUID) error {
	item, err := s.items.GetByID(ctx, itemID)
	if err != nil {
		return err
	}

	if err := s.items.Delete(ctx, itemID); err != nil {
		return fmt.Errorf("delete curriculum item: %w", err)
	}

	s.invalidate(ctx, item)
	return nil
}

// GetItem retrieves a curriculum item by ID.
func (s *catalogService) GetItem(ctx context.Context, itemID uuid.UUID) (*model.CurriculumItem, error) {
	return s.items.GetByID(ctx, itemID)
}

// CourseDetail retrieves the course page aggregate.
func (s *catalogService) CourseDetail(ctx context.Context, courseID uuid.UUID) (*CourseDetail, error) {
	course, err := s.courses.GetByID(ctx, courseID)
	if err != nil {
		return nil, err
	}

	items, err := s.items.ListByCourse(ctx, courseID)
	if err != nil {
		return nil, fmt.Errorf("list course curriculum: %w", err)
	}

	return &CourseDetail{Course: course, Items: items}, nil
}

// SignedURL returns the servable URL for an item, or "" when none exists.
func (s *catalogService) SignedURL(ctx context.Context, itemID uuid.UUID) (string, error) {
	item, err := s.items.GetByID(ctx, itemID)
	if err != nil {
		return "", err
	}

	switch {
	case item.IsURLReady():
		return item.SignedURL, nil
	case item.GenerationStatus == model.GenerationNotNeeded:
		// Non-protected content is served by its raw locator directly.
		return item.SourceLocator, nil
	default:
		return "", nil
	}
}

// PlaybackStatus builds the polling payload for an item.
func (s *catalogService) PlaybackStatus(ctx context.Context, itemID uuid.UUID) (*PlaybackStatus, error) {
	item, err := s.items.GetByID(ctx, itemID)
	if err != nil {
		return nil, err
	}

	status := &PlaybackStatus{
		ItemID: item.ID,
		Status: item.GenerationStatus,
	}

	switch item.GenerationStatus {
	case model.GenerationPending, model.GenerationProcessing:
		status.Message = MessagePreparing
		status.RetryAfterSeconds = RetryAfterSeconds

	case model.GenerationReady:
		if item.IsURLReady() {
			status.Message = MessageReady
			status.SignedURL = item.SignedURL
		} else {
			// Expiry passed but the cleanup sweep has not run yet.
			status.Message = MessageRefreshing
			status.RetryAfterSeconds = RetryAfterSeconds
		}

	case model.GenerationExpired:
		status.Message = MessageRefreshing
		status.RetryAfterSeconds = RetryAfterSeconds

	case model.GenerationFailed:
		status.Message = MessageUnavailable

	case model.GenerationNotNeeded:
		status.Message = MessageNoVideo
		status.SignedURL = item.SourceLocator
	}

	return status, nil
}

// EnqueueGeneration publishes a generation task for an existing item.
func (s *catalogService) EnqueueGeneration(ctx context.Context, itemID uuid.UUID, delay time.Duration) error {
	item, err := s.items.GetByID(ctx, itemID)
	if err != nil {
		return err
	}

	if item.GenerationStatus == model.GenerationNotNeeded {
		return nil
	}

	if err := s.queue.PublishGenerationTask(ctx, repository.NewURLGenerationTask(item.ID), delay); err != nil {
		return fmt.Errorf("enqueue generation: %w", err)
	}
	return nil
}

// RefreshItem re-enqueues generation for an item whose URL went stale
// client-side. READY items are expired first (URL kept so in-flight playback
// finishes); the enqueue is immediate rather than countdown-delayed.
func (s *catalogService) RefreshItem(ctx context.Context, itemID uuid.UUID) error {
	item, err := s.items.GetByID(ctx, itemID)
	if err != nil {
		return err
	}

	if item.GenerationStatus == model.GenerationNotNeeded {
		return nil
	}

	if item.GenerationStatus == model.GenerationReady {
		if err := s.items.MarkExpired(ctx, itemID, false); err != nil && !errors.Is(err, repository.ErrItemNotFound) {
			return fmt.Errorf("expire item for refresh: %w", err)
		}
		s.invalidate(ctx, item)
	}

	if err := s.queue.PublishGenerationTask(ctx, repository.NewURLGenerationTask(item.ID), 0); err != nil {
		return fmt.Errorf("enqueue refresh: %w", err)
	}
	return nil
}

func (s *catalogService) invalidate(ctx context.Context, item *model.CurriculumItem) {
	s.bus.Invalidate(ctx, invalidation.CategoryCurriculum, invalidation.Context{
		CourseID: item.CourseID,
		ItemID:   item.ID,
	})
}
