package postgres

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/pashagolub/pgxmock/v4"

	"github.com/hszk-dev/courseflow/internal/domain/repository"
)

func TestCourseRepository_GetByID(t *testing.T) {
	now := time.Now()
	courseID := uuid.New()
	categoryID := uuid.New()

	tests := []struct {
		name    string
		mockFn  func(mock pgxmock.PgxPoolIface)
		wantErr error
	}{
		{
			name: "successful retrieval",
			mockFn: func(mock pgxmock.PgxPoolIface) {
				rows := pgxmock.NewRows([]string{
					"id", "category_id", "title", "is_featured", "created_at", "updated_at",
				}).AddRow(courseID, categoryID, "Go for Backend Engineers", true, now, now)
				mock.ExpectQuery("SELECT .* FROM courses WHERE id").
					WithArgs(courseID).
					WillReturnRows(rows)
			},
			wantErr: nil,
		},
		{
			name: "course not found",
			mockFn: func(mock pgxmock.PgxPoolIface) {
				mock.ExpectQuery("SELECT .* FROM courses WHERE id").
					WithArgs(courseID).
					WillReturnError(pgx.ErrNoRows)
			},
			wantErr: repository.ErrCourseNotFound,
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

			repo := NewCourseRepository(mock)
			got, err := repo.GetByID(context.Background(), courseID)

			if tt.wantErr != nil {
				if !errors.Is(err, tt.wantErr) {
					t.Errorf("GetByID() error = %v, wantErr %v", err, tt.wantErr)
				}
				return
			}

			if err != nil {
				t.Fatalf("GetByID() unexpected error = %v", err)
			}
			if got.ID != courseID || got.CategoryID != categoryID || !got.IsFeatured {
				t.Errorf("GetByID() = %+v", got)
			}

			if err := mock.ExpectationsWereMet(); err != nil {
				t.Errorf("unfulfilled expectations: %v", err)
			}
		})
	}
}

func TestEnrollmentRepository_ActiveUserIDs(t *testing.T) {
	courseID := uuid.New()
	user1 := uuid.New()
	user2 := uuid.New()

	tests := []struct {
		name   string
		limit  int
		mockFn func(mock pgxmock.PgxPoolIface)
		want   int
	}{
		{
			name:  "returns bounded sample",
			limit: 100,
			mockFn: func(mock pgxmock.PgxPoolIface) {
				rows := pgxmock.NewRows([]string{"user_id"}).
					AddRow(user1).
					AddRow(user2)
				mock.ExpectQuery("SELECT user_id FROM enrollments").
					WithArgs(courseID, 100).
					WillReturnRows(rows)
			},
			want: 2,
		},
		{
			name:  "no active enrollments",
			limit: 100,
			mockFn: func(mock pgxmock.PgxPoolIface) {
				mock.ExpectQuery("SELECT user_id FROM enrollments").
					WithArgs(courseID, 100).
					WillReturnRows(pgxmock.NewRows([]string{"user_id"}))
			},
			want: 0,
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

			repo := NewEnrollmentRepository(mock)
			got, err := repo.ActiveUserIDs(context.Background(), courseID, tt.limit)
			if err != nil {
				t.Fatalf("ActiveUserIDs() unexpected error = %v", err)
			}

			if len(got) != tt.want {
				t.Errorf("ActiveUserIDs() returned %d IDs, want %d", len(got), tt.want)
			}

			if err := mock.ExpectationsWereMet(); err != nil {
				t.Errorf("unfulfilled expectations: %v", err)
			}
		})
	}
}
