package usecase

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/hszk-dev/courseflow/internal/domain/model"
	"github.com/hszk-dev/courseflow/internal/domain/repository"
	"github.com/hszk-dev/courseflow/internal/gateway"
)

const testLocator = "https://media-bucket.s3.amazonaws.com/lessons/lesson1.mp4"

func protectedItem(status model.GenerationStatus) *model.CurriculumItem {
	now := time.Now()
	return &model.CurriculumItem{
		ID:               uuid.New(),
		CourseID:         uuid.New(),
		Title:            "Lesson 1",
		Position:         1,
		SourceLocator:    testLocator,
		GenerationStatus: status,
		CreatedAt:        now,
		UpdatedAt:        now,
	}
}

func TestGenerationService_ProcessTask_Success(t *testing.T) {
	item := protectedItem(model.GenerationPending)

	var (
		readyURL    string
		readyExpiry time.Time
	)

	claimed := *item
	claimed.GenerationStatus = model.GenerationProcessing
	claimed.GenerationAttempts = 1

	repo := &mockCurriculumRepository{
		getByIDFn: func(ctx context.Context, id uuid.UUID) (*model.CurriculumItem, error) {
			return item, nil
		},
		claimFn: func(ctx context.Context, id uuid.UUID) (*model.CurriculumItem, error) {
			return &claimed, nil
		},
		markReadyFn: func(ctx context.Context, id uuid.UUID, signedURL string, expiresAt time.Time) error {
			readyURL = signedURL
			readyExpiry = expiresAt
			return nil
		},
	}
	bus := &mockInvalidator{}

	svc := NewGenerationService(repo, &mockSigner{}, bus, DefaultGenerationServiceConfig())

	before := time.Now()
	err := svc.ProcessTask(context.Background(), repository.NewURLGenerationTask(item.ID))
	if err != nil {
		t.Fatalf("ProcessTask() unexpected error = %v", err)
	}

	if readyURL == "" || readyURL == testLocator {
		t.Errorf("persisted URL = %q, want a signed URL different from the locator", readyURL)
	}

	wantExpiry := before.Add(DefaultSignedURLTTL)
	if readyExpiry.Before(wantExpiry.Add(-time.Minute)) || readyExpiry.After(wantExpiry.Add(time.Minute)) {
		t.Errorf("expiry = %v, want ~%v", readyExpiry, wantExpiry)
	}

	// One invalidation after the claim, one after READY.
	if len(bus.calls) != 2 {
		t.Errorf("invalidation calls = %d, want 2", len(bus.calls))
	}
}

func TestGenerationService_ProcessTask_ItemDeleted(t *testing.T) {
	repo := &mockCurriculumRepository{
		getByIDFn: func(ctx context.Context, id uuid.UUID) (*model.CurriculumItem, error) {
			return nil, repository.ErrItemNotFound
		},
	}

	svc := NewGenerationService(repo, &mockSigner{}, &mockInvalidator{}, DefaultGenerationServiceConfig())

	err := svc.ProcessTask(context.Background(), repository.NewURLGenerationTask(uuid.New()))
	if err != nil {
		t.Errorf("ProcessTask() on deleted item should be a no-op, got %v", err)
	}
}

func TestGenerationService_ProcessTask_NotProtected(t *testing.T) {
	tests := []struct {
		name    string
		locator string
	}{
		{name: "empty locator", locator: ""},
		{name: "public locator", locator: "https://cdn.example.com/promo.mp4"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			item := protectedItem(model.GenerationPending)
			item.SourceLocator = tt.locator

			notNeeded := false
			claimCalled := false
			repo := &mockCurriculumRepository{
				getByIDFn: func(ctx context.Context, id uuid.UUID) (*model.CurriculumItem, error) {
					return item, nil
				},
				markNotNeededFn: func(ctx context.Context, id uuid.UUID) error {
					notNeeded = true
					return nil
				},
				claimFn: func(ctx context.Context, id uuid.UUID) (*model.CurriculumItem, error) {
					claimCalled = true
					return nil, repository.ErrItemNotClaimable
				},
			}
			signer := &mockSigner{
				isProtectedFn: func(locator string) bool { return false },
			}

			svc := NewGenerationService(repo, signer, &mockInvalidator{}, DefaultGenerationServiceConfig())

			if err := svc.ProcessTask(context.Background(), repository.NewURLGenerationTask(item.ID)); err != nil {
				t.Fatalf("ProcessTask() unexpected error = %v", err)
			}
			if !notNeeded {
				t.Error("expected item to be marked NOT_NEEDED")
			}
			if claimCalled {
				t.Error("non-protected item must never be claimed")
			}
		})
	}
}

func TestGenerationService_ProcessTask_ClaimLost(t *testing.T) {
	item := protectedItem(model.GenerationProcessing)

	signCalled := false
	repo := &mockCurriculumRepository{
		getByIDFn: func(ctx context.Context, id uuid.UUID) (*model.CurriculumItem, error) {
			return item, nil
		},
		claimFn: func(ctx context.Context, id uuid.UUID) (*model.CurriculumItem, error) {
			return nil, repository.ErrItemNotClaimable
		},
	}
	signer := &mockSigner{
		issueSignedURLFn: func(ctx context.Context, locator string, ttl time.Duration) (string, error) {
			signCalled = true
			return locator, nil
		},
	}

	svc := NewGenerationService(repo, signer, &mockInvalidator{}, DefaultGenerationServiceConfig())

	if err := svc.ProcessTask(context.Background(), repository.NewURLGenerationTask(item.ID)); err != nil {
		t.Errorf("ProcessTask() after lost claim should be a no-op, got %v", err)
	}
	if signCalled {
		t.Error("gateway must not be called when the claim is lost")
	}
}

func TestGenerationService_ProcessTask_GatewayFailure(t *testing.T) {
	tests := []struct {
		name       string
		signErr    error
		wantFailed bool
		wantErr    bool
	}{
		{
			name:       "object missing",
			signErr:    gateway.ErrObjectMissing,
			wantFailed: true,
			wantErr:    true,
		},
		{
			name:       "credentials missing",
			signErr:    gateway.ErrNoCredentials,
			wantFailed: true,
			wantErr:    true,
		},
		{
			name:       "transient store error",
			signErr:    gateway.ErrTransient,
			wantFailed: true,
			wantErr:    true,
		},
		{
			name:       "original locator returned without error",
			signErr:    nil,
			wantFailed: true,
			wantErr:    true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			item := protectedItem(model.GenerationPending)
			claimed := *item
			claimed.GenerationStatus = model.GenerationProcessing
			claimed.GenerationAttempts = 1

			failed := false
			repo := &mockCurriculumRepository{
				getByIDFn: func(ctx context.Context, id uuid.UUID) (*model.CurriculumItem, error) {
					return item, nil
				},
				claimFn: func(ctx context.Context, id uuid.UUID) (*model.CurriculumItem, error) {
					return &claimed, nil
				},
				markFailedFn: func(ctx context.Context, id uuid.UUID) error {
					failed = true
					return nil
				},
			}
			signer := &mockSigner{
				issueSignedURLFn: func(ctx context.Context, locator string, ttl time.Duration) (string, error) {
					// The gateway contract: original locator back on failure.
					return locator, tt.signErr
				},
			}

			svc := NewGenerationService(repo, signer, &mockInvalidator{}, DefaultGenerationServiceConfig())

			err := svc.ProcessTask(context.Background(), repository.NewURLGenerationTask(item.ID))

			if (err != nil) != tt.wantErr {
				t.Errorf("ProcessTask() error = %v, wantErr %v", err, tt.wantErr)
			}
			if failed != tt.wantFailed {
				t.Errorf("MarkFailed called = %v, want %v", failed, tt.wantFailed)
			}
		})
	}
}

func TestGenerationService_ProcessTask_GatewayNotProtected(t *testing.T) {
	// A locator that resolves to not-protected at signing time settles the
	// item instead of burning retries.
	item := protectedItem(model.GenerationPending)
	claimed := *item
	claimed.GenerationStatus = model.GenerationProcessing

	notNeeded := false
	failed := false
	repo := &mockCurriculumRepository{
		getByIDFn: func(ctx context.Context, id uuid.UUID) (*model.CurriculumItem, error) {
			return item, nil
		},
		claimFn: func(ctx context.Context, id uuid.UUID) (*model.CurriculumItem, error) {
			return &claimed, nil
		},
		markNotNeededFn: func(ctx context.Context, id uuid.UUID) error {
			notNeeded = true
			return nil
		},
		markFailedFn: func(ctx context.Context, id uuid.UUID) error {
			failed = true
			return nil
		},
	}
	signer := &mockSigner{
		issueSignedURLFn: func(ctx context.Context, locator string, ttl time.Duration) (string, error) {
			return locator, gateway.ErrNotProtected
		},
	}

	svc := NewGenerationService(repo, signer, &mockInvalidator{}, DefaultGenerationServiceConfig())

	if err := svc.ProcessTask(context.Background(), repository.NewURLGenerationTask(item.ID)); err != nil {
		t.Fatalf("ProcessTask() unexpected error = %v", err)
	}
	if !notNeeded {
		t.Error("expected item to settle as NOT_NEEDED")
	}
	if failed {
		t.Error("NOT_NEEDED resolution must not mark the item FAILED")
	}
}

func TestGenerationService_ProcessTask_RetryableErrorMessage(t *testing.T) {
	item := protectedItem(model.GenerationPending)
	claimed := *item
	claimed.GenerationStatus = model.GenerationProcessing

	repo := &mockCurriculumRepository{
		getByIDFn: func(ctx context.Context, id uuid.UUID) (*model.CurriculumItem, error) {
			return item, nil
		},
		claimFn: func(ctx context.Context, id uuid.UUID) (*model.CurriculumItem, error) {
			return &claimed, nil
		},
	}
	signer := &mockSigner{
		issueSignedURLFn: func(ctx context.Context, locator string, ttl time.Duration) (string, error) {
			return locator, errors.Join(gateway.ErrTransient, errors.New("dial tcp: timeout"))
		},
	}

	svc := NewGenerationService(repo, signer, &mockInvalidator{}, DefaultGenerationServiceConfig())

	err := svc.ProcessTask(context.Background(), repository.NewURLGenerationTask(item.ID))
	if err == nil {
		t.Fatal("ProcessTask() expected retryable error, got nil")
	}
	if !strings.Contains(err.Error(), "generation failed") {
		t.Errorf("error = %v, should wrap the generation failure", err)
	}
}
