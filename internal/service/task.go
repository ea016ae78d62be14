package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/BuzzLyutic/taskboard/internal/model"
	"github.com/BuzzLyutic/taskboard/internal/repo"
)

var (
	ErrValidation = errors.New("validation error")
)

// Publisher рассылает события изменений всем подписчикам
type Publisher interface {
	Publish(ctx context.Context, ev model.ChangeEvent) error
}

type TaskService struct {
	repo      repo.TaskRepository
	publisher Publisher
	logger    *zap.Logger
	now       func() time.Time
}

func NewTaskService(repo repo.TaskRepository, publisher Publisher, logger *zap.Logger) *TaskService {
	return &TaskService{
		repo:      repo,
		publisher: publisher,
		logger:    logger,
		now:       time.Now,
	}
}

func (s *TaskService) Create(ctx context.Context, f model.TaskFields, idempKey string) (model.Task, error) {
	if f.Status == "" {
		f.Status = model.StatusTodo
	}
	if err := s.validateFields(f); err != nil { // Валидация модели на корректность введенных данных
		return model.Task{}, err
	}

	if idempKey != "" { // Обеспечение идемпотентности - если ключ с ресурсом уже существует, мы не создаем его еще раз
		task, created, err := s.repo.CreateOnce(ctx, idempKey, f)
		if err != nil {
			return model.Task{}, err
		}
		if created {
			s.publish(ctx, model.InsertEvent(task))
		}
		return task, nil
	}

	// Создание новой задачи
	task, err := s.repo.Create(ctx, f)
	if err != nil {
		return task, err
	}

	s.publish(ctx, model.InsertEvent(task))
	return task, nil
}

func (s *TaskService) Get(ctx context.Context, id string) (model.Task, error) {
	return s.repo.Get(ctx, id)
}

func (s *TaskService) List(ctx context.Context, filter model.TaskFilter) ([]model.Task, error) {
	if filter.Status != nil && !filter.Status.Valid() {
		return nil, fmt.Errorf("%w: unknown status %q", ErrValidation, *filter.Status)
	}
	return s.repo.List(ctx, filter)
}

func (s *TaskService) Update(ctx context.Context, id string, patch model.TaskPatch) (model.Task, error) {
	if err := s.validatePatch(patch); err != nil {
		return model.Task{}, err
	}
	task, err := s.repo.Update(ctx, id, patch)
	if err != nil {
		return task, err
	}
	s.publish(ctx, model.UpdateEvent(task))
	return task, nil
}

func (s *TaskService) Delete(ctx context.Context, id string) error {
	if err := s.repo.Delete(ctx, id); err != nil {
		return err
	}
	s.publish(ctx, model.DeleteEvent(id, s.now().UTC()))
	return nil
}

func (s *TaskService) GetStats(ctx context.Context) (repo.Stats, error) {
	return s.repo.GetStats(ctx)
}

// publish не влияет на результат: запись в хранилище уже прошла
func (s *TaskService) publish(ctx context.Context, ev model.ChangeEvent) {
	if s.publisher == nil {
		return
	}
	if err := s.publisher.Publish(ctx, ev); err != nil {
		s.logger.Error("failed to publish change event",
			zap.String("event", string(ev.Type)),
			zap.String("task_id", ev.TaskID()),
			zap.Error(err),
		)
	}
}

func (s *TaskService) validateFields(f model.TaskFields) error {
	return s.validatePatch(model.FullPatch(f))
}

func (s *TaskService) validatePatch(p model.TaskPatch) error {
	if p.Empty() {
		return fmt.Errorf("%w: nothing to update", ErrValidation)
	}
	if p.Title != nil && strings.TrimSpace(*p.Title) == "" {
		return fmt.Errorf("%w: title is required", ErrValidation)
	}
	if p.Priority != nil && !p.Priority.Valid() {
		return fmt.Errorf("%w: unknown priority %q", ErrValidation, *p.Priority)
	}
	if p.Status != nil && !p.Status.Valid() {
		return fmt.Errorf("%w: unknown status %q", ErrValidation, *p.Status)
	}
	return nil
}
