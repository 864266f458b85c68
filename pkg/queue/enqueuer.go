package queue

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Enqueuer adds tasks to the queue.
type Enqueuer struct {
	storage    Storage
	maxRetries int8
}

// EnqueueOption configures a single enqueue call.
type EnqueueOption func(*enqueueOptions)

type enqueueOptions struct {
	delay      time.Duration
	maxRetries int8
}

// WithDelay schedules the task for later execution.
func WithDelay(d time.Duration) EnqueueOption {
	return func(o *enqueueOptions) {
		if d > 0 {
			o.delay = d
		}
	}
}

// WithMaxRetries overrides the enqueuer default retry budget.
func WithMaxRetries(n int8) EnqueueOption {
	return func(o *enqueueOptions) {
		if n >= 0 {
			o.maxRetries = n
		}
	}
}

// NewEnqueuer creates an Enqueuer with a default retry budget of 3.
func NewEnqueuer(storage Storage) (*Enqueuer, error) {
	if storage == nil {
		return nil, ErrStorageNil
	}
	return &Enqueuer{storage: storage, maxRetries: 3}, nil
}

// Enqueue stores a task for background execution. The task name is derived
// from the payload type and must have a matching handler on the worker side.
func (e *Enqueuer) Enqueue(ctx context.Context, payload any, opts ...EnqueueOption) error {
	if payload == nil {
		return ErrPayloadNil
	}

	options := &enqueueOptions{maxRetries: e.maxRetries}
	for _, opt := range opts {
		opt(options)
	}

	payloadBytes, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to marshal payload of type %T: %w", payload, err)
	}

	now := time.Now()
	task := &Task{
		ID:          uuid.New(),
		TaskName:    qualifiedStructName(payload),
		Payload:     payloadBytes,
		Status:      TaskStatusPending,
		MaxRetries:  options.maxRetries,
		ScheduledAt: now.Add(options.delay),
		CreatedAt:   now,
	}

	if err := e.storage.CreateTask(ctx, task); err != nil {
		return fmt.Errorf("failed to create task %q: %w", task.TaskName, err)
	}
	return nil
}
