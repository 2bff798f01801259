package port

import (
	"context"
	"time"
)

// Task is a unit of scheduled work addressed to a job by name.
type Task struct {
	ID         string    `json:"id"`
	Job        string    `json:"job"`
	EnqueuedAt time.Time `json:"enqueued_at"`
}

type TaskQueue interface {
	// Enqueue pushes a task, returns false if a task with the same dedupe key
	// was already enqueued within the dedupe window
	Enqueue(ctx context.Context, task Task, dedupeKey string) (bool, error)

	// Dequeue blocks up to timeout, returns nil, nil when nothing arrived
	Dequeue(ctx context.Context, timeout time.Duration) (*Task, error)

	// Len reports the number of pending tasks
	Len(ctx context.Context) (int64, error)
}
