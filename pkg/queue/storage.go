package queue

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Storage persists tasks between enqueue and execution.
type Storage interface {
	CreateTask(ctx context.Context, task *Task) error
	// ClaimDue atomically moves up to limit due pending tasks to processing
	// and returns them. Safe for concurrent workers.
	ClaimDue(ctx context.Context, now time.Time, limit int) ([]*Task, error)
	MarkCompleted(ctx context.Context, id uuid.UUID) error
	// MarkFailed records the error and either reschedules the task (retry
	// budget remaining) or marks it failed terminally.
	MarkFailed(ctx context.Context, id uuid.UUID, taskErr string, retryAt time.Time) error
}

// MemoryStorage is an in-process Storage for single-instance deployments
// and tests. Tasks do not survive a restart; that is acceptable for
// best-effort notification work.
type MemoryStorage struct {
	mu    sync.Mutex
	tasks map[uuid.UUID]*Task
}

func NewMemoryStorage() *MemoryStorage {
	return &MemoryStorage{tasks: make(map[uuid.UUID]*Task)}
}

func (s *MemoryStorage) CreateTask(ctx context.Context, task *Task) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	copied := *task
	s.tasks[task.ID] = &copied
	return nil
}

func (s *MemoryStorage) ClaimDue(ctx context.Context, now time.Time, limit int) ([]*Task, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	due := make([]*Task, 0, limit)
	for _, task := range s.tasks {
		if task.Status == TaskStatusPending && !task.ScheduledAt.After(now) {
			due = append(due, task)
		}
	}
	sort.Slice(due, func(i, j int) bool { return due[i].ScheduledAt.Before(due[j].ScheduledAt) })
	if len(due) > limit {
		due = due[:limit]
	}

	claimed := make([]*Task, 0, len(due))
	for _, task := range due {
		task.Status = TaskStatusProcessing
		copied := *task
		claimed = append(claimed, &copied)
	}
	return claimed, nil
}

func (s *MemoryStorage) MarkCompleted(ctx context.Context, id uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if task, ok := s.tasks[id]; ok {
		now := time.Now()
		task.Status = TaskStatusCompleted
		task.ProcessedAt = &now
	}
	return nil
}

func (s *MemoryStorage) MarkFailed(ctx context.Context, id uuid.UUID, taskErr string, retryAt time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	task, ok := s.tasks[id]
	if !ok {
		return nil
	}
	task.Error = &taskErr
	task.RetryCount++
	if task.RetryCount > task.MaxRetries {
		now := time.Now()
		task.Status = TaskStatusFailed
		task.ProcessedAt = &now
		return nil
	}
	task.Status = TaskStatusPending
	task.ScheduledAt = retryAt
	return nil
}

// Get returns a copy of a stored task, for tests and inspection.
func (s *MemoryStorage) Get(id uuid.UUID) (Task, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	task, ok := s.tasks[id]
	if !ok {
		return Task{}, false
	}
	return *task, true
}
