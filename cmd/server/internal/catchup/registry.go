package catchup

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/streamlens/catchup/cmd/server/internal/pipeline"
	"github.com/streamlens/catchup/pkg/logger"
)

// Registry is the mutex-guarded in-memory task store. Tasks are
// non-durable: a restart forgets everything in flight.
type Registry struct {
	mu    sync.Mutex
	tasks map[string]*Task
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{tasks: make(map[string]*Task)}
}

// Create registers a new task in the initialized state and returns it.
func (r *Registry) Create(streamURL, uploadID string, durationMinutes int, userID string) Task {
	now := time.Now()
	task := &Task{
		ID:              uuid.NewString(),
		State:           StateInitialized,
		Progress:        0,
		Message:         "Task initialized",
		StreamURL:       streamURL,
		UploadID:        uploadID,
		DurationMinutes: durationMinutes,
		UserID:          userID,
		CreatedAt:       now,
		UpdatedAt:       now,
	}

	r.mu.Lock()
	r.tasks[task.ID] = task
	r.mu.Unlock()

	return task.Snapshot()
}

// Get returns a snapshot of the task, or a not-found error.
func (r *Registry) Get(taskID string) (Task, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	task, ok := r.tasks[taskID]
	if !ok {
		return Task{}, pipeline.NewTaskNotFoundError(taskID)
	}
	return task.Snapshot(), nil
}

// List returns snapshots of every live task.
func (r *Registry) List() []Task {
	r.mu.Lock()
	defer r.mu.Unlock()

	out := make([]Task, 0, len(r.tasks))
	for _, task := range r.tasks {
		out = append(out, task.Snapshot())
	}
	return out
}

// Count returns the number of live tasks.
func (r *Registry) Count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.tasks)
}

// update applies fn to the task under the lock. Only the owning worker
// calls this; terminal tasks are never mutated again.
func (r *Registry) update(taskID string, fn func(*Task)) {
	r.mu.Lock()
	defer r.mu.Unlock()

	task, ok := r.tasks[taskID]
	if !ok || task.State.Terminal() {
		return
	}
	fn(task)
	task.UpdatedAt = time.Now()

	logger.L().Info("task status",
		"task_id", taskID,
		"state", string(task.State),
		"progress", task.Progress,
		"message", task.Message,
	)
}

// reapOlderThan removes terminal tasks finished before the cutoff.
func (r *Registry) reapOlderThan(cutoff time.Time) int {
	r.mu.Lock()
	defer r.mu.Unlock()

	reaped := 0
	for id, task := range r.tasks {
		if task.State.Terminal() && !task.FinishedAt.IsZero() && task.FinishedAt.Before(cutoff) {
			delete(r.tasks, id)
			reaped++
		}
	}
	return reaped
}

// StartReaper runs the retention loop until the context is cancelled.
// extra, when non-nil, runs each tick with the same cutoff so other
// stores (upload sessions) share the retention policy.
func (r *Registry) StartReaper(ctx context.Context, interval, retention time.Duration, extra func(cutoff time.Time) int) {
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				cutoff := time.Now().Add(-retention)
				reaped := r.reapOlderThan(cutoff)
				if extra != nil {
					reaped += extra(cutoff)
				}
				if reaped > 0 {
					logger.L().Info("reaper pass", "removed", reaped)
				}
			}
		}
	}()
}
