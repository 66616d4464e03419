package model

import (
	"time"

	"github.com/google/uuid"
)

// NotificationType categorizes operator-facing notifications.
type NotificationType string

const (
	NotificationSystem          NotificationType = "SYSTEM"
	NotificationGenerationAlert NotificationType = "URL_GENERATION_ALERT"
)

// Notification is the operator alert entity raised by the failure monitor.
// It never changes item state; it only makes persistent failures visible.
type Notification struct {
	ID        uuid.UUID
	Title     string
	Message   string
	Type      NotificationType
	ItemID    uuid.UUID
	Seen      bool
	CreatedAt time.Time
}

// NewGenerationAlert builds the alert for an item stuck in FAILED.
func NewGenerationAlert(itemID uuid.UUID, title, message string) *Notification {
	return &Notification{
		ID:        uuid.New(),
		Title:     title,
		Message:   message,
		Type:      NotificationGenerationAlert,
		ItemID:    itemID,
		CreatedAt: time.Now(),
	}
}
