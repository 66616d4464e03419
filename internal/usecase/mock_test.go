package usecase

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/hszk-dev/courseflow/internal/domain/model"
	"github.com/hszk-dev/courseflow/internal/domain/repository"
	"github.com/hszk-dev/courseflow/internal/invalidation"
)

// mockCurriculumRepository provides a configurable mock for CurriculumRepository.
type mockCurriculumRepository struct {
	createFn             func(ctx context.Context, item *model.CurriculumItem) error
	getByIDFn            func(ctx context.Context, id uuid.UUID) (*model.CurriculumItem, error)
	listByCourseFn       func(ctx context.Context, courseID uuid.UUID) ([]*model.CurriculumItem, error)
	updateFn             func(ctx context.Context, item *model.CurriculumItem) error
	deleteFn             func(ctx context.Context, id uuid.UUID) error
	claimFn              func(ctx context.Context, id uuid.UUID) (*model.CurriculumItem, error)
	markReadyFn          func(ctx context.Context, id uuid.UUID, signedURL string, expiresAt time.Time) error
	markFailedFn         func(ctx context.Context, id uuid.UUID) error
	markExpiredFn        func(ctx context.Context, id uuid.UUID, clearURL bool) error
	markNotNeededFn      func(ctx context.Context, id uuid.UUID) error
	resetForRetryFn      func(ctx context.Context, id uuid.UUID) error
	listIDsWithLocatorFn func(ctx context.Context) ([]uuid.UUID, error)
	listExpiringSoonFn   func(ctx context.Context, within time.Duration) ([]*model.CurriculumItem, error)
	listExpiredFn        func(ctx context.Context) ([]*model.CurriculumItem, error)
	listFailedFn         func(ctx context.Context, attemptsBelow, limit int) ([]*model.CurriculumItem, error)
	listFailedAtLeastFn  func(ctx context.Context, threshold, limit int) ([]*model.CurriculumItem, error)
}

func (m *mockCurriculumRepository) Create(ctx context.Context, item *model.CurriculumItem) error {
	if m.createFn != nil {
		return m.createFn(ctx, item)
	}
	return nil
}

func (m *mockCurriculumRepository) GetByID(ctx context.Context, id uuid.UUID) (*model.CurriculumItem, error) {
	if m.getByIDFn != nil {
		return m.getByIDFn(ctx, id)
	}
	return nil, repository.ErrItemNotFound
}

func (m *mockCurriculumRepository) ListByCourse(ctx context.Context, courseID uuid.UUID) ([]*model.CurriculumItem, error) {
	if m.listByCourseFn != nil {
		return m.listByCourseFn(ctx, courseID)
	}
	return nil, nil
}

func (m *mockCurriculumRepository) Update(ctx context.Context, item *model.CurriculumItem) error {
	if m.updateFn != nil {
		return m.updateFn(ctx, item)
	}
	return nil
}

func (m *mockCurriculumRepository) Delete(ctx context.Context, id uuid.UUID) error {
	if m.deleteFn != nil {
		return m.deleteFn(ctx, id)
	}
	return nil
}

func (m *mockCurriculumRepository) ClaimForGeneration(ctx context.Context, id uuid.UUID) (*model.CurriculumItem, error) {
	if m.claimFn != nil {
		return m.claimFn(ctx, id)
	}
	return nil, repository.ErrItemNotClaimable
}

func (m *mockCurriculumRepository) MarkReady(ctx context.Context, id uuid.UUID, signedURL string, expiresAt time.Time) error {
	if m.markReadyFn != nil {
		return m.markReadyFn(ctx, id, signedURL, expiresAt)
	}
	return nil
}

func (m *mockCurriculumRepository) MarkFailed(ctx context.Context, id uuid.UUID) error {
	if m.markFailedFn != nil {
		return m.markFailedFn(ctx, id)
	}
	return nil
}

func (m *mockCurriculumRepository) MarkExpired(ctx context.Context, id uuid.UUID, clearURL bool) error {
	if m.markExpiredFn != nil {
		return m.markExpiredFn(ctx, id, clearURL)
	}
	return nil
}

func (m *mockCurriculumRepository) MarkNotNeeded(ctx context.Context, id uuid.UUID) error {
	if m.markNotNeededFn != nil {
		return m.markNotNeededFn(ctx, id)
	}
	return nil
}

func (m *mockCurriculumRepository) ResetForRetry(ctx context.Context, id uuid.UUID) error {
	if m.resetForRetryFn != nil {
		return m.resetForRetryFn(ctx, id)
	}
	return nil
}

func (m *mockCurriculumRepository) ListIDsWithLocator(ctx context.Context) ([]uuid.UUID, error) {
	if m.listIDsWithLocatorFn != nil {
		return m.listIDsWithLocatorFn(ctx)
	}
	return nil, nil
}

func (m *mockCurriculumRepository) ListExpiringSoon(ctx context.Context, within time.Duration) ([]*model.CurriculumItem, error) {
	if m.listExpiringSoonFn != nil {
		return m.listExpiringSoonFn(ctx, within)
	}
	return nil, nil
}

func (m *mockCurriculumRepository) ListExpired(ctx context.Context) ([]*model.CurriculumItem, error) {
	if m.listExpiredFn != nil {
		return m.listExpiredFn(ctx)
	}
	return nil, nil
}

func (m *mockCurriculumRepository) ListFailed(ctx context.Context, attemptsBelow, limit int) ([]*model.CurriculumItem, error) {
	if m.listFailedFn != nil {
		return m.listFailedFn(ctx, attemptsBelow, limit)
	}
	return nil, nil
}

func (m *mockCurriculumRepository) ListFailedWithAttemptsAtLeast(ctx context.Context, threshold, limit int) ([]*model.CurriculumItem, error) {
	if m.listFailedAtLeastFn != nil {
		return m.listFailedAtLeastFn(ctx, threshold, limit)
	}
	return nil, nil
}

// mockCourseRepository provides a configurable mock for CourseRepository.
type mockCourseRepository struct {
	getByIDFn func(ctx context.Context, id uuid.UUID) (*model.Course, error)
}

func (m *mockCourseRepository) GetByID(ctx context.Context, id uuid.UUID) (*model.Course, error) {
	if m.getByIDFn != nil {
		return m.getByIDFn(ctx, id)
	}
	return nil, repository.ErrCourseNotFound
}

// mockNotificationRepository provides a configurable mock for NotificationRepository.
type mockNotificationRepository struct {
	createFn func(ctx context.Context, n *model.Notification) error
}

func (m *mockNotificationRepository) Create(ctx context.Context, n *model.Notification) error {
	if m.createFn != nil {
		return m.createFn(ctx, n)
	}
	return nil
}

// mockTaskQueue provides a configurable mock for TaskQueue.
type mockTaskQueue struct {
	publishFn func(ctx context.Context, task repository.URLGenerationTask, delay time.Duration) error
	consumeFn func(ctx context.Context, handler func(task repository.URLGenerationTask) error) error
}

func (m *mockTaskQueue) PublishGenerationTask(ctx context.Context, task repository.URLGenerationTask, delay time.Duration) error {
	if m.publishFn != nil {
		return m.publishFn(ctx, task, delay)
	}
	return nil
}

func (m *mockTaskQueue) ConsumeGenerationTasks(ctx context.Context, handler func(task repository.URLGenerationTask) error) error {
	if m.consumeFn != nil {
		return m.consumeFn(ctx, handler)
	}
	return nil
}

func (m *mockTaskQueue) Close() error {
	return nil
}

// mockSigner provides a configurable mock for gateway.Signer.
type mockSigner struct {
	isProtectedFn    func(locator string) bool
	issueSignedURLFn func(ctx context.Context, locator string, ttl time.Duration) (string, error)
}

func (m *mockSigner) IsProtected(locator string) bool {
	if m.isProtectedFn != nil {
		return m.isProtectedFn(locator)
	}
	return true
}

func (m *mockSigner) IssueSignedURL(ctx context.Context, locator string, ttl time.Duration) (string, error) {
	if m.issueSignedURLFn != nil {
		return m.issueSignedURLFn(ctx, locator, ttl)
	}
	return locator + "?X-Amz-Signature=test", nil
}

// mockInvalidator records invalidation calls.
type mockInvalidator struct {
	calls []invalidationCall
}

type invalidationCall struct {
	category invalidation.Category
	ic       invalidation.Context
}

func (m *mockInvalidator) Invalidate(ctx context.Context, category invalidation.Category, ic invalidation.Context) int {
	m.calls = append(m.calls, invalidationCall{category: category, ic: ic})
	return 1
}

// mockStore provides a configurable mock for cache.Store.
type mockStore struct {
	getFn        func(ctx context.Context, key string) ([]byte, error)
	setFn        func(ctx context.Context, key string, value []byte, ttl time.Duration) error
	deleteFn     func(ctx context.Context, key string) error
	deleteManyFn func(ctx context.Context, keys []string) (int64, error)
	flushFn      func(ctx context.Context) error
}

func (m *mockStore) Get(ctx context.Context, key string) ([]byte, error) {
	if m.getFn != nil {
		return m.getFn(ctx, key)
	}
	return nil, nil
}

func (m *mockStore) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	if m.setFn != nil {
		return m.setFn(ctx, key, value, ttl)
	}
	return nil
}

func (m *mockStore) Delete(ctx context.Context, key string) error {
	if m.deleteFn != nil {
		return m.deleteFn(ctx, key)
	}
	return nil
}

func (m *mockStore) DeleteMany(ctx context.Context, keys []string) (int64, error) {
	if m.deleteManyFn != nil {
		return m.deleteManyFn(ctx, keys)
	}
	return int64(len(keys)), nil
}

func (m *mockStore) Flush(ctx context.Context) error {
	if m.flushFn != nil {
		return m.flushFn(ctx)
	}
	return nil
}

func (m *mockStore) Ping(ctx context.Context) error {
	return nil
}
