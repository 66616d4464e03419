package usecase

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/hszk-dev/courseflow/internal/domain/model"
	"github.com/hszk-dev/courseflow/internal/domain/repository"
	"github.com/hszk-dev/courseflow/internal/gateway"
	"github.com/hszk-dev/courseflow/internal/infrastructure/metrics"
	"github.com/hszk-dev/courseflow/internal/invalidation"
)

// DefaultSignedURLTTL keeps URLs valid past the daily regeneration sweep so
// they never lapse between two sweep runs.
const DefaultSignedURLTTL = 25 * time.Hour

// Invalidator is the slice of the invalidation bus the services consume.
type Invalidator interface {
	Invalidate(ctx context.Context, category invalidation.Category, ic invalidation.Context) int
}

// GenerationServiceConfig holds configuration for GenerationService.
type GenerationServiceConfig struct {
	// SignedURLTTL is the validity window requested for each signed URL.
	SignedURLTTL time.Duration
}

// DefaultGenerationServiceConfig returns the default configuration.
func DefaultGenerationServiceConfig() GenerationServiceConfig {
	return GenerationServiceConfig{
		SignedURLTTL: DefaultSignedURLTTL,
	}
}

// GenerationService defines the interface for signed-URL generation work.
type GenerationService interface {
	// ProcessTask handles one generation task from the queue.
	// Returns nil on success or any permanent outcome (item gone, not
	// protected, claim lost). Returns an error only for failures worth a
	// delayed retry; the queue layer owns the backoff policy.
	ProcessTask(ctx context.Context, task repository.URLGenerationTask) error
}

type generationService struct {
	repo   repository.CurriculumRepository
	signer gateway.Signer
	bus    Invalidator

	urlTTL time.Duration
}

// NewGenerationService creates a new GenerationService instance.
func NewGenerationService(
	repo repository.CurriculumRepository,
	signer gateway.Signer,
	bus Invalidator,
	cfg GenerationServiceConfig,
) GenerationService {
	ttl := cfg.SignedURLTTL
	if ttl <= 0 {
		ttl = DefaultSignedURLTTL
	}
	return &generationService{
		repo:   repo,
		signer: signer,
		bus:    bus,
		urlTTL: ttl,
	}
}

// ProcessTask runs one generation attempt for a curriculum item.
//
// The worker never trusts task payload beyond the item ID: the current row
// is re-read so a stale message cannot resurrect deleted or edited state.
func (s *generationService) ProcessTask(ctx context.Context, task repository.URLGenerationTask) error {
	item, err := s.repo.GetByID(ctx, task.ItemID)
	if err != nil {
		if errors.Is(err, repository.ErrItemNotFound) {
			// Deleted while the message was in flight.
			metrics.URLGenerationTotal.WithLabelValues(metrics.GenerationOutcomeSkipped).Inc()
			return nil
		}
		return fmt.Errorf("load item: %w", err)
	}

	if item.SourceLocator == "" || !s.signer.IsProtected(item.SourceLocator) {
		return s.settleNotNeeded(ctx, item)
	}

	claimed, err := s.repo.ClaimForGeneration(ctx, item.ID)
	if err != nil {
		if errors.Is(err, repository.ErrItemNotClaimable) || errors.Is(err, repository.ErrItemNotFound) {
			// Another worker holds the item, or it already settled.
			metrics.URLGenerationTotal.WithLabelValues(metrics.GenerationOutcomeSkipped).Inc()
			return nil
		}
		return fmt.Errorf("claim item: %w", err)
	}
	s.invalidate(ctx, claimed)

	signed, signErr := s.signer.IssueSignedURL(ctx, claimed.SourceLocator, s.urlTTL)
	if signErr != nil || signed == claimed.SourceLocator {
		return s.recordFailure(ctx, claimed, signErr)
	}

	expiresAt := time.Now().Add(s.urlTTL)
	if err := s.repo.MarkReady(ctx, claimed.ID, signed, expiresAt); err != nil {
		if errors.Is(err, repository.ErrItemNotFound) {
			return nil
		}
		return fmt.Errorf("persist signed URL: %w", err)
	}
	s.invalidate(ctx, claimed)

	metrics.URLGenerationTotal.WithLabelValues(metrics.GenerationOutcomeReady).Inc()
	slog.Info("signed URL generated",
		"item_id", claimed.ID,
		"course_id", claimed.CourseID,
		"expires_at", expiresAt,
	)
	return nil
}

// settleNotNeeded parks an item whose locator does not need signing.
// Terminal: nothing is enqueued for the item again.
func (s *generationService) settleNotNeeded(ctx context.Context, item *model.CurriculumItem) error {
	if err := s.repo.MarkNotNeeded(ctx, item.ID); err != nil {
		if errors.Is(err, repository.ErrItemNotFound) {
			return nil
		}
		return fmt.Errorf("mark item not needed: %w", err)
	}
	s.invalidate(ctx, item)
	metrics.URLGenerationTotal.WithLabelValues(metrics.GenerationOutcomeNotNeeded).Inc()
	return nil
}

// recordFailure persists FAILED and hands the classified error back to the
// queue layer for backoff. A not-protected classification settles the item
// instead; it will never succeed and must not burn retries.
func (s *generationService) recordFailure(ctx context.Context, item *model.CurriculumItem, signErr error) error {
	if errors.Is(signErr, gateway.ErrNotProtected) {
		return s.settleNotNeeded(ctx, item)
	}

	outcome := metrics.GenerationOutcomeTransient
	switch {
	case errors.Is(signErr, gateway.ErrObjectMissing):
		outcome = metrics.GenerationOutcomeObjectMissing
	case errors.Is(signErr, gateway.ErrNoCredentials):
		// Per-class label: a sustained credentials outage must be visible as
		// its own series, not smeared into per-object failures.
		outcome = metrics.GenerationOutcomeCredentials
	}
	metrics.URLGenerationTotal.WithLabelValues(outcome).Inc()

	if err := s.repo.MarkFailed(ctx, item.ID); err != nil && !errors.Is(err, repository.ErrItemNotFound) {
		slog.Error("failed to mark item failed",
			"item_id", item.ID,
			"error", err,
		)
	}
	s.invalidate(ctx, item)

	slog.Warn("signed URL generation failed",
		"item_id", item.ID,
		"attempt", item.GenerationAttempts,
		"outcome", outcome,
		"error", signErr,
	)
	if signErr == nil {
		signErr = errors.New("gateway returned original locator")
	}
	return fmt.Errorf("generation failed: %w", signErr)
}

func (s *generationService) invalidate(ctx context.Context, item *model.CurriculumItem) {
	s.bus.Invalidate(ctx, invalidation.CategoryCurriculum, invalidation.Context{
		CourseID: item.CourseID,
		ItemID:   item.ID,
	})
}
