// Package queue schedules background tasks. The asynq adapter backs it with
// Redis; without Redis the dispatcher's cron sweep takes over.
package queue

import (
	"context"
	"errors"
	"time"
)

// ErrDuplicate is returned by Enqueue when a task with the same ID is
// already scheduled.
var ErrDuplicate = errors.New("queue: duplicate task")

type Task struct {
	Type    string
	Payload []byte
}

// Handler must be idempotent; a non-nil error triggers a retry.
type Handler func(ctx context.Context, task Task) error

type EnqueueOptions struct {
	Queue     string
	ProcessAt time.Time
	MaxRetry  int
	// TaskID deduplicates scheduling of the same logical job.
	TaskID string
}

type Client interface {
	Enqueue(ctx context.Context, t Task, opts EnqueueOptions) (string, error)
	Close() error
}

type Server interface {
	Register(taskType string, h Handler)
	Run(ctx context.Context) error
}
