package repo

import (
	"context"

	"github.com/BuzzLyutic/taskboard/internal/model"
)

// TaskRepository определяет интерфейс для работы с задачами
type TaskRepository interface {
	Create(ctx context.Context, f model.TaskFields) (model.Task, error)
	Get(ctx context.Context, id string) (model.Task, error)
	List(ctx context.Context, filter model.TaskFilter) ([]model.Task, error)
	Update(ctx context.Context, id string, patch model.TaskPatch) (model.Task, error)
	Delete(ctx context.Context, id string) error
	// CreateOnce создает задачу, привязанную к ключу идемпотентности. Если ключ
	// уже занят, возвращается ранее созданная задача и created=false
	CreateOnce(ctx context.Context, key string, f model.TaskFields) (task model.Task, created bool, err error)
	GetStats(ctx context.Context) (Stats, error)
}

// Stats - количество задач в каждой колонке
type Stats struct {
	ByStatus   map[model.Status]int `json:"by_status"`
	TotalTasks int                  `json:"total_tasks"`
}

func newStats() Stats {
	s := Stats{ByStatus: make(map[model.Status]int, len(model.Statuses))}
	for _, st := range model.Statuses {
		s.ByStatus[st] = 0
	}
	return s
}
