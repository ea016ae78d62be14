package repo

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/BuzzLyutic/taskboard/internal/model"
)

// MemoryRepo keeps tasks in process memory. It backs STORE=memory and tests
// that should not need a database.
type MemoryRepo struct {
	mu    sync.RWMutex
	order []string
	tasks map[string]model.Task
	idemp map[string]string
	now   func() time.Time
}

func NewMemoryRepo() *MemoryRepo {
	return &MemoryRepo{
		tasks: make(map[string]model.Task),
		idemp: make(map[string]string),
		now:   time.Now,
	}
}

func (r *MemoryRepo) Create(_ context.Context, f model.TaskFields) (model.Task, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.create(f), nil
}

func (r *MemoryRepo) CreateOnce(_ context.Context, key string, f model.TaskFields) (model.Task, bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if id, ok := r.idemp[key]; ok {
		return r.tasks[id], false, nil
	}
	t := r.create(f)
	r.idemp[key] = t.ID
	return t, true, nil
}

func (r *MemoryRepo) create(f model.TaskFields) model.Task {
	now := r.now().UTC()
	t := model.Task{
		ID:          uuid.NewString(),
		Title:       f.Title,
		Description: f.Description,
		Priority:    f.Priority,
		Status:      f.Status,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if t.Status == "" {
		t.Status = model.StatusTodo
	}
	r.tasks[t.ID] = t
	r.order = append(r.order, t.ID)
	return t
}

func (r *MemoryRepo) Get(_ context.Context, id string) (model.Task, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	t, ok := r.tasks[id]
	if !ok {
		return model.Task{}, ErrorNotFound
	}
	return t, nil
}

func (r *MemoryRepo) List(_ context.Context, filter model.TaskFilter) ([]model.Task, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	tasks := make([]model.Task, 0, len(r.order))
	for _, id := range r.order {
		t := r.tasks[id]
		if filter.Status != nil && t.Status != *filter.Status {
			continue
		}
		tasks = append(tasks, t)
	}
	return tasks, nil
}

func (r *MemoryRepo) Update(_ context.Context, id string, patch model.TaskPatch) (model.Task, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	t, ok := r.tasks[id]
	if !ok {
		return model.Task{}, ErrorNotFound
	}
	t = patch.Apply(t)
	t.UpdatedAt = r.now().UTC()
	r.tasks[id] = t
	return t, nil
}

func (r *MemoryRepo) Delete(_ context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.tasks[id]; !ok {
		return ErrorNotFound
	}
	delete(r.tasks, id)
	for i, existing := range r.order {
		if existing == id {
			r.order = append(r.order[:i], r.order[i+1:]...)
			break
		}
	}
	for key, resourceID := range r.idemp {
		if resourceID == id {
			delete(r.idemp, key)
		}
	}
	return nil
}

func (r *MemoryRepo) GetStats(_ context.Context) (Stats, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	stats := newStats()
	for _, t := range r.tasks {
		stats.ByStatus[t.Status]++
		stats.TotalTasks++
	}
	return stats, nil
}
