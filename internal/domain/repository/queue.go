package repository

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// TaskGenerateSignedURL is the task name carried in every generation message.
const TaskGenerateSignedURL = "curriculum.generate_signed_url"

// URLGenerationTask is the message exchanged between the scheduler/signal
// paths and the worker. It deliberately carries no item state beyond the ID;
// the worker re-reads the current row from the store of record.
type URLGenerationTask struct {
	TaskName string    `json:"task_name"`
	ItemID   uuid.UUID `json:"item_id"`
	Attempt  int       `json:"attempt"`
}

// NewURLGenerationTask builds a first-attempt task for an item.
func NewURLGenerationTask(itemID uuid.UUID) URLGenerationTask {
	return URLGenerationTask{
		TaskName: TaskGenerateSignedURL,
		ItemID:   itemID,
	}
}

// TaskQueue defines the interface for the URL-generation task queue.
// Implementations should be provided by the infrastructure layer (e.g., RabbitMQ).
type TaskQueue interface {
	// PublishGenerationTask sends a generation task to the url_generation
	// queue. A positive delay defers delivery (countdown semantics); zero
	// publishes for immediate consumption.
	PublishGenerationTask(ctx context.Context, task URLGenerationTask, delay time.Duration) error

	// ConsumeGenerationTasks starts consuming generation tasks.
	// The handler is called for each received task; a handler error triggers
	// a delayed republish with an incremented attempt, up to the retry
	// ceiling. Used by the worker service.
	ConsumeGenerationTasks(ctx context.Context, handler func(task URLGenerationTask) error) error

	// Close gracefully closes the connection to the message queue.
	Close() error
}
