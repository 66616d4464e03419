package postgres

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/pashagolub/pgxmock/v4"

	"github.com/hszk-dev/courseflow/internal/domain/model"
	"github.com/hszk-dev/courseflow/internal/domain/repository"
)

var itemColumns = []string{
	"id", "course_id", "title", "position", "source_locator", "signed_url",
	"signed_url_expires_at", "generation_status", "generation_attempts", "last_attempt_at",
	"created_at", "updated_at",
}

func TestCurriculumRepository_Create(t *testing.T) {
	tests := []struct {
		name    string
		item    *model.CurriculumItem
		mockFn  func(mock pgxmock.PgxPoolIface, item *model.CurriculumItem)
		wantErr error
	}{
		{
			name: "successful creation",
			item: &model.CurriculumItem{
				ID:               uuid.New(),
				CourseID:         uuid.New(),
				Title:            "Introduction to the course",
				Position:         1,
				SourceLocator:    "https://media-bucket.s3.amazonaws.com/lessons/intro.mp4",
				GenerationStatus: model.GenerationPending,
				CreatedAt:        time.Now(),
				UpdatedAt:        time.Now(),
			},
			mockFn: func(mock pgxmock.PgxPoolIface, item *model.CurriculumItem) {
				mock.ExpectExec("INSERT INTO curriculum_items").
					WithArgs(
						item.ID,
						item.CourseID,
						item.Title,
						item.Position,
						pgxmock.AnyArg(),
						pgxmock.AnyArg(),
						pgxmock.AnyArg(),
						item.GenerationStatus.String(),
						item.GenerationAttempts,
						pgxmock.AnyArg(),
						pgxmock.AnyArg(),
						pgxmock.AnyArg(),
					).
					WillReturnResult(pgxmock.NewResult("INSERT", 1))
			},
			wantErr: nil,
		},
		{
			name: "duplicate item error",
			item: &model.CurriculumItem{
				ID:               uuid.New(),
				CourseID:         uuid.New(),
				Title:            "Introduction to the course",
				GenerationStatus: model.GenerationPending,
			},
			mockFn: func(mock pgxmock.PgxPoolIface, item *model.CurriculumItem) {
				mock.ExpectExec("INSERT INTO curriculum_items").
					WithArgs(
						item.ID,
						item.CourseID,
						item.Title,
						item.Position,
						pgxmock.AnyArg(),
						pgxmock.AnyArg(),
						pgxmock.AnyArg(),
						item.GenerationStatus.String(),
						item.GenerationAttempts,
						pgxmock.AnyArg(),
						pgxmock.AnyArg(),
						pgxmock.AnyArg(),
					).
					WillReturnError(&pgconn.PgError{Code: "23505"})
			},
			wantErr: repository.ErrDuplicateItem,
		},
		{
			name: "database error",
			item: &model.CurriculumItem{
				ID:               uuid.New(),
				CourseID:         uuid.New(),
				Title:            "Introduction to the course",
				GenerationStatus: model.GenerationPending,
			},
			mockFn: func(mock pgxmock.PgxPoolIface, item *model.CurriculumItem) {
				mock.ExpectExec("INSERT INTO curriculum_items").
					WithArgs(
						item.ID,
						item.CourseID,
						item.Title,
						item.Position,
						pgxmock.AnyArg(),
						pgxmock.AnyArg(),
						pgxmock.AnyArg(),
						item.GenerationStatus.String(),
						item.GenerationAttempts,
						pgxmock.AnyArg(),
						pgxmock.AnyArg(),
						pgxmock.AnyArg(),
					).
					WillReturnError(errors.New("connection refused"))
			},
			wantErr: errors.New("failed to create curriculum item"),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mock, err := pgxmock.NewPool()
			if err != nil {
				t.Fatalf("failed to create mock: %v", err)
			}
			defer mock.Close()

			tt.mockFn(mock, tt.item)

			repo := NewCurriculumRepository(mock)
			err = repo.Create(context.Background(), tt.item)

			if tt.wantErr != nil {
				if err == nil {
					t.Errorf("Create() expected error, got nil")
					return
				}
				if !errors.Is(err, tt.wantErr) && !containsError(err, tt.wantErr) {
					t.Errorf("Create() error = %v, wantErr %v", err, tt.wantErr)
				}
				return
			}

			if err != nil {
				t.Errorf("Create() unexpected error = %v", err)
			}

			if err := mock.ExpectationsWereMet(); err != nil {
				t.Errorf("unfulfilled expectations: %v", err)
			}
		})
	}
}

func TestCurriculumRepository_GetByID(t *testing.T) {
	now := time.Now()
	itemID := uuid.New()
	courseID := uuid.New()

	tests := []struct {
		name    string
		id      uuid.UUID
		mockFn  func(mock pgxmock.PgxPoolIface)
		want    *model.CurriculumItem
		wantErr error
	}{
		{
			name: "successful retrieval",
			id:   itemID,
			mockFn: func(mock pgxmock.PgxPoolIface) {
				rows := pgxmock.NewRows(itemColumns).AddRow(
					itemID, courseID, "Lesson 1", 1, nil, nil, nil, "NOT_NEEDED", 0, nil, now, now,
				)
				mock.ExpectQuery("SELECT .* FROM curriculum_items WHERE id").
					WithArgs(itemID).
					WillReturnRows(rows)
			},
			want: &model.CurriculumItem{
				ID:               itemID,
				CourseID:         courseID,
				Title:            "Lesson 1",
				Position:         1,
				GenerationStatus: model.GenerationNotNeeded,
			},
			wantErr: nil,
		},
		{
			name: "item not found",
			id:   itemID,
			mockFn: func(mock pgxmock.PgxPoolIface) {
				mock.ExpectQuery("SELECT .* FROM curriculum_items WHERE id").
					WithArgs(itemID).
					WillReturnError(pgx.ErrNoRows)
			},
			want:    nil,
			wantErr: repository.ErrItemNotFound,
		},
		{
			name: "with locator and signed URL",
			id:   itemID,
			mockFn: func(mock pgxmock.PgxPoolIface) {
				locator := "https://media-bucket.s3.amazonaws.com/lessons/lesson1.mp4"
				signedURL := "https://media-bucket.s3.amazonaws.com/lessons/lesson1.mp4?X-Amz-Signature=abc"
				expiresAt := now.Add(25 * time.Hour)
				lastAttempt := now.Add(-time.Minute)
				rows := pgxmock.NewRows(itemColumns).AddRow(
					itemID, courseID, "Lesson 1", 1, &locator, &signedURL, &expiresAt, "READY", 1, &lastAttempt, now, now,
				)
				mock.ExpectQuery("SELECT .* FROM curriculum_items WHERE id").
					WithArgs(itemID).
					WillReturnRows(rows)
			},
			want: &model.CurriculumItem{
				ID:                 itemID,
				CourseID:           courseID,
				Title:              "Lesson 1",
				Position:           1,
				SourceLocator:      "https://media-bucket.s3.amazonaws.com/lessons/lesson1.mp4",
				SignedURL:          "https://media-bucket.s3.amazonaws.com/lessons/lesson1.mp4?X-Amz-Signature=abc",
				GenerationStatus:   model.GenerationReady,
				GenerationAttempts: 1,
			},
			wantErr: nil,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mock, err := pgxmock.NewPool()
			if err != nil {
				t.Fatalf("failed to create mock: %v", err)
			}
			defer mock.Close()

			tt.mockFn(mock)

			repo := NewCurriculumRepository(mock)
			got, err := repo.GetByID(context.Background(), tt.id)

			if tt.wantErr != nil {
				if !errors.Is(err, tt.wantErr) {
					t.Errorf("GetByID() error = %v, wantErr %v", err, tt.wantErr)
				}
				return
			}

			if err != nil {
				t.Errorf("GetByID() unexpected error = %v", err)
				return
			}

			if got.ID != tt.want.ID ||
				got.CourseID != tt.want.CourseID ||
				got.Title != tt.want.Title ||
				got.Position != tt.want.Position ||
				got.SourceLocator != tt.want.SourceLocator ||
				got.SignedURL != tt.want.SignedURL ||
				got.GenerationStatus != tt.want.GenerationStatus ||
				got.GenerationAttempts != tt.want.GenerationAttempts {
				t.Errorf("GetByID() = %+v, want %+v", got, tt.want)
			}

			if err := mock.ExpectationsWereMet(); err != nil {
				t.Errorf("unfulfilled expectations: %v", err)
			}
		})
	}
}

func TestCurriculumRepository_ClaimForGeneration(t *testing.T) {
	now := time.Now()
	itemID := uuid.New()
	courseID := uuid.New()

	tests := []struct {
		name       string
		mockFn     func(mock pgxmock.PgxPoolIface)
		wantStatus model.GenerationStatus
		wantErr    error
	}{
		{
			name: "claims a pending item",
			mockFn: func(mock pgxmock.PgxPoolIface) {
				locator := "https://media-bucket.s3.amazonaws.com/lessons/lesson1.mp4"
				lastAttempt := now
				rows := pgxmock.NewRows(itemColumns).AddRow(
					itemID, courseID, "Lesson 1", 1, &locator, nil, nil, "PROCESSING", 1, &lastAttempt, now, now,
				)
				mock.ExpectQuery("UPDATE curriculum_items").
					WithArgs(itemID).
					WillReturnRows(rows)
			},
			wantStatus: model.GenerationProcessing,
		},
		{
			name: "lost claim race on existing item",
			mockFn: func(mock pgxmock.PgxPoolIface) {
				mock.ExpectQuery("UPDATE curriculum_items").
					WithArgs(itemID).
					WillReturnError(pgx.ErrNoRows)
				mock.ExpectQuery("SELECT 1 FROM curriculum_items").
					WithArgs(itemID).
					WillReturnRows(pgxmock.NewRows([]string{"?column?"}).AddRow(1))
			},
			wantErr: repository.ErrItemNotClaimable,
		},
		{
			name: "item deleted meanwhile",
			mockFn: func(mock pgxmock.PgxPoolIface) {
				mock.ExpectQuery("UPDATE curriculum_items").
					WithArgs(itemID).
					WillReturnError(pgx.ErrNoRows)
				mock.ExpectQuery("SELECT 1 FROM curriculum_items").
					WithArgs(itemID).
					WillReturnError(pgx.ErrNoRows)
			},
			wantErr: repository.ErrItemNotFound,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mock, err := pgxmock.NewPool()
			if err != nil {
				t.Fatalf("failed to create mock: %v", err)
			}
			defer mock.Close()

			tt.mockFn(mock)

			repo := NewCurriculumRepository(mock)
			got, err := repo.ClaimForGeneration(context.Background(), itemID)

			if tt.wantErr != nil {
				if !errors.Is(err, tt.wantErr) {
					t.Errorf("ClaimForGeneration() error = %v, wantErr %v", err, tt.wantErr)
				}
				return
			}

			if err != nil {
				t.Errorf("ClaimForGeneration() unexpected error = %v", err)
				return
			}

			if got.GenerationStatus != tt.wantStatus {
				t.Errorf("GenerationStatus = %v, want %v", got.GenerationStatus, tt.wantStatus)
			}
			if got.GenerationAttempts != 1 {
				t.Errorf("GenerationAttempts = %v, want %v", got.GenerationAttempts, 1)
			}

			if err := mock.ExpectationsWereMet(); err != nil {
				t.Errorf("unfulfilled expectations: %v", err)
			}
		})
	}
}

func TestCurriculumRepository_MarkReady(t *testing.T) {
	itemID := uuid.New()
	signedURL := "https://media-bucket.s3.amazonaws.com/lessons/lesson1.mp4?X-Amz-Signature=abc"
	expiresAt := time.Now().Add(25 * time.Hour)

	tests := []struct {
		name    string
		mockFn  func(mock pgxmock.PgxPoolIface)
		wantErr error
	}{
		{
			name: "marks item ready",
			mockFn: func(mock pgxmock.PgxPoolIface) {
				mock.ExpectExec("UPDATE curriculum_items").
					WithArgs(itemID, signedURL, expiresAt).
					WillReturnResult(pgxmock.NewResult("UPDATE", 1))
			},
			wantErr: nil,
		},
		{
			name: "item not found",
			mockFn: func(mock pgxmock.PgxPoolIface) {
				mock.ExpectExec("UPDATE curriculum_items").
					WithArgs(itemID, signedURL, expiresAt).
					WillReturnResult(pgxmock.NewResult("UPDATE", 0))
			},
			wantErr: repository.ErrItemNotFound,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mock, err := pgxmock.NewPool()
			if err != nil {
				t.Fatalf("failed to create mock: %v", err)
			}
			defer mock.Close()

			tt.mockFn(mock)

			repo := NewCurriculumRepository(mock)
			err = repo.MarkReady(context.Background(), itemID, signedURL, expiresAt)

			if !errors.Is(err, tt.wantErr) {
				t.Errorf("MarkReady() error = %v, wantErr %v", err, tt.wantErr)
			}

			if err := mock.ExpectationsWereMet(); err != nil {
				t.Errorf("unfulfilled expectations: %v", err)
			}
		})
	}
}

func TestCurriculumRepository_MarkExpired_Idempotent(t *testing.T) {
	itemID := uuid.New()

	mock, err := pgxmock.NewPool()
	if err != nil {
		t.Fatalf("failed to create mock: %v", err)
	}
	defer mock.Close()

	// Zero affected rows means the item already left READY; not an error.
	mock.ExpectExec("UPDATE curriculum_items").
		WithArgs(itemID).
		WillReturnResult(pgxmock.NewResult("UPDATE", 0))

	repo := NewCurriculumRepository(mock)
	if err := repo.MarkExpired(context.Background(), itemID, false); err != nil {
		t.Errorf("MarkExpired() on non-READY item should not error, got %v", err)
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("unfulfilled expectations: %v", err)
	}
}

func TestCurriculumRepository_ResetForRetry(t *testing.T) {
	itemID := uuid.New()

	tests := []struct {
		name    string
		mockFn  func(mock pgxmock.PgxPoolIface)
		wantErr error
	}{
		{
			name: "resets failed item",
			mockFn: func(mock pgxmock.PgxPoolIface) {
				mock.ExpectExec("UPDATE curriculum_items").
					WithArgs(itemID).
					WillReturnResult(pgxmock.NewResult("UPDATE", 1))
			},
			wantErr: nil,
		},
		{
			name: "item no longer failed",
			mockFn: func(mock pgxmock.PgxPoolIface) {
				mock.ExpectExec("UPDATE curriculum_items").
					WithArgs(itemID).
					WillReturnResult(pgxmock.NewResult("UPDATE", 0))
			},
			wantErr: repository.ErrItemNotClaimable,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mock, err := pgxmock.NewPool()
			if err != nil {
				t.Fatalf("failed to create mock: %v", err)
			}
			defer mock.Close()

			tt.mockFn(mock)

			repo := NewCurriculumRepository(mock)
			err = repo.ResetForRetry(context.Background(), itemID)

			if !errors.Is(err, tt.wantErr) {
				t.Errorf("ResetForRetry() error = %v, wantErr %v", err, tt.wantErr)
			}

			if err := mock.ExpectationsWereMet(); err != nil {
				t.Errorf("unfulfilled expectations: %v", err)
			}
		})
	}
}

func TestCurriculumRepository_ListExpiringSoon(t *testing.T) {
	now := time.Now()
	courseID := uuid.New()

	mock, err := pgxmock.NewPool()
	if err != nil {
		t.Fatalf("failed to create mock: %v", err)
	}
	defer mock.Close()

	locator := "s3://media-bucket/lessons/lesson1.mp4"
	signedURL := "https://media-bucket.s3.amazonaws.com/lessons/lesson1.mp4?X-Amz-Signature=abc"
	expiresAt := now.Add(time.Hour)
	rows := pgxmock.NewRows(itemColumns).
		AddRow(uuid.New(), courseID, "Lesson 1", 1, &locator, &signedURL, &expiresAt, "READY", 1, &now, now, now).
		AddRow(uuid.New(), courseID, "Lesson 2", 2, &locator, &signedURL, &expiresAt, "READY", 1, &now, now, now)
	mock.ExpectQuery("SELECT .* FROM curriculum_items").
		WithArgs(pgxmock.AnyArg()).
		WillReturnRows(rows)

	repo := NewCurriculumRepository(mock)
	got, err := repo.ListExpiringSoon(context.Background(), 2*time.Hour)
	if err != nil {
		t.Fatalf("ListExpiringSoon() unexpected error = %v", err)
	}

	if len(got) != 2 {
		t.Errorf("ListExpiringSoon() returned %d items, want %d", len(got), 2)
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("unfulfilled expectations: %v", err)
	}
}

func TestCurriculumRepository_ListFailed(t *testing.T) {
	now := time.Now()
	courseID := uuid.New()

	mock, err := pgxmock.NewPool()
	if err != nil {
		t.Fatalf("failed to create mock: %v", err)
	}
	defer mock.Close()

	locator := "s3://media-bucket/lessons/lesson1.mp4"
	rows := pgxmock.NewRows(itemColumns).
		AddRow(uuid.New(), courseID, "Lesson 1", 1, &locator, nil, nil, "FAILED", 2, &now, now, now)
	mock.ExpectQuery("SELECT .* FROM curriculum_items").
		WithArgs(5, 100).
		WillReturnRows(rows)

	repo := NewCurriculumRepository(mock)
	got, err := repo.ListFailed(context.Background(), 5, 100)
	if err != nil {
		t.Fatalf("ListFailed() unexpected error = %v", err)
	}

	if len(got) != 1 {
		t.Errorf("ListFailed() returned %d items, want %d", len(got), 1)
	}
	if got[0].GenerationStatus != model.GenerationFailed {
		t.Errorf("GenerationStatus = %v, want %v", got[0].GenerationStatus, model.GenerationFailed)
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("unfulfilled expectations: %v", err)
	}
}

// containsError checks if err's message contains the expected error's message.
func containsError(err, expected error) bool {
	return err != nil && expected != nil &&
		strings.Contains(err.Error(), expected.Error())
}
