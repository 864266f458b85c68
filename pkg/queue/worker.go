package queue

import (
	"context"
	"fmt"
	"log/slog"
	"time"
)

// Worker polls the storage for due tasks and runs registered handlers.
type Worker struct {
	storage      Storage
	handlers     map[string]Handler
	pollInterval time.Duration
	retryBackoff time.Duration
	batchSize    int
	log          *slog.Logger
}

// WorkerOption configures the Worker.
type WorkerOption func(*Worker)

func WithPollInterval(d time.Duration) WorkerOption {
	return func(w *Worker) {
		if d > 0 {
			w.pollInterval = d
		}
	}
}

func WithRetryBackoff(d time.Duration) WorkerOption {
	return func(w *Worker) {
		if d > 0 {
			w.retryBackoff = d
		}
	}
}

func WithBatchSize(n int) WorkerOption {
	return func(w *Worker) {
		if n > 0 {
			w.batchSize = n
		}
	}
}

func WithWorkerLogger(log *slog.Logger) WorkerOption {
	return func(w *Worker) {
		if log != nil {
			w.log = log
		}
	}
}

// NewWorker creates a Worker over the given storage.
func NewWorker(storage Storage, opts ...WorkerOption) (*Worker, error) {
	if storage == nil {
		return nil, ErrStorageNil
	}
	w := &Worker{
		storage:      storage,
		handlers:     make(map[string]Handler),
		pollInterval: time.Second,
		retryBackoff: 30 * time.Second,
		batchSize:    10,
		log:          slog.New(slog.DiscardHandler),
	}
	for _, opt := range opts {
		opt(w)
	}
	return w, nil
}

// Register adds a handler. Duplicate registrations for the same task name
// are a programming error.
func (w *Worker) Register(h Handler) error {
	if _, exists := w.handlers[h.Name()]; exists {
		return fmt.Errorf("%w: %s", ErrDuplicateHandler, h.Name())
	}
	w.handlers[h.Name()] = h
	return nil
}

// Run polls until the context is cancelled.
func (w *Worker) Run(ctx context.Context) error {
	ticker := time.NewTicker(w.pollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			w.processDue(ctx)
		}
	}
}

// ProcessOnce drains one batch of due tasks. Exposed for tests and for
// callers that drive the loop themselves.
func (w *Worker) ProcessOnce(ctx context.Context) {
	w.processDue(ctx)
}

func (w *Worker) processDue(ctx context.Context) {
	tasks, err := w.storage.ClaimDue(ctx, time.Now(), w.batchSize)
	if err != nil {
		w.log.ErrorContext(ctx, "failed to claim due tasks", slog.Any("error", err))
		return
	}

	for _, task := range tasks {
		w.runTask(ctx, task)
	}
}

func (w *Worker) runTask(ctx context.Context, task *Task) {
	handler, ok := w.handlers[task.TaskName]
	if !ok {
		// No handler on this worker; record the failure and let the
		// retry budget run out.
		_ = w.storage.MarkFailed(ctx, task.ID, ErrNoHandlerRegistered.Error(), time.Now())
		w.log.ErrorContext(ctx, "no handler for task", slog.String("task", task.TaskName))
		return
	}

	if err := handler.Handle(ctx, task.Payload); err != nil {
		// Linear backoff: each retry waits one more backoff unit.
		retryAt := time.Now().Add(w.retryBackoff * time.Duration(task.RetryCount+1))
		_ = w.storage.MarkFailed(ctx, task.ID, err.Error(), retryAt)
		w.log.WarnContext(ctx, "task failed",
			slog.String("task", task.TaskName),
			slog.Int("retry", int(task.RetryCount)),
			slog.Any("error", err),
		)
		return
	}

	_ = w.storage.MarkCompleted(ctx, task.ID)
}
