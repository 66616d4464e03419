package postgres

import (
	"context"
	"fmt"

	"github.com/hszk-dev/courseflow/internal/domain/model"
	"github.com/hszk-dev/courseflow/internal/domain/repository"
)

// NotificationRepository implements repository.NotificationRepository using PostgreSQL.
type NotificationRepository struct {
	db DBTX
}

// NewNotificationRepository creates a new NotificationRepository instance.
func NewNotificationRepository(db DBTX) *NotificationRepository {
	return &NotificationRepository{db: db}
}

// Create persists an operator notification.
func (r *NotificationRepository) Create(ctx context.Context, n *model.Notification) error {
	const query = `
		INSERT INTO notifications (id, title, message, type, item_id, seen, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`

	_, err := r.db.Exec(ctx, query,
		n.ID,
		n.Title,
		n.Message,
		string(n.Type),
		n.ItemID,
		n.Seen,
		n.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create notification: %w", err)
	}

	return nil
}

// Compile-time verification that NotificationRepository implements repository.NotificationRepository.
var _ repository.NotificationRepository = (*NotificationRepository)(nil)
