package modal

import (
	"context"
	"errors"
	"strings"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/BuzzLyutic/taskboard/internal/model"
)

var (
	ErrTitleRequired = errors.New("title is required")
	ErrNotEditing    = errors.New("modal: no existing task to delete")
	ErrClosed        = errors.New("modal: already closed")
)

// Writer is the part of the task store the modal writes through. Inserts
// carrying the same key create at most one row.
type Writer interface {
	InsertOnce(ctx context.Context, key string, fields model.TaskFields) (model.Task, error)
	Update(ctx context.Context, id string, patch model.TaskPatch) (model.Task, error)
	Delete(ctx context.Context, id string) error
}

type Mode int

const (
	ModeCreate Mode = iota
	ModeEdit
)

type Action string

const (
	ActionInsert Action = "insert"
	ActionUpdate Action = "update"
	ActionDelete Action = "delete"
)

// Result is the outcome of a store call. Err is set when the store rejected
// the write; the modal is closed either way.
type Result struct {
	Action Action
	TaskID string
	Task   model.Task
	Err    error
}

// Modal is the create/edit form for a single task. Form is edited in place
// by the view.
type Modal struct {
	Form model.TaskFields

	writer Writer
	logger *zap.Logger
	mode   Mode
	taskID string
	key    string
	open   bool
}

func DefaultForm() model.TaskFields {
	return model.TaskFields{Priority: model.PriorityMedium, Status: model.StatusTodo}
}

func NewCreate(w Writer, logger *zap.Logger) *Modal {
	return &Modal{
		Form:   DefaultForm(),
		writer: w,
		logger: logger,
		mode:   ModeCreate,
		key:    uuid.NewString(),
		open:   true,
	}
}

func NewEdit(w Writer, logger *zap.Logger, t model.Task) *Modal {
	return &Modal{
		Form: model.TaskFields{
			Title:       t.Title,
			Description: t.Description,
			Priority:    t.Priority,
			Status:      t.Status,
		},
		writer: w,
		logger: logger,
		mode:   ModeEdit,
		taskID: t.ID,
		open:   true,
	}
}

func (m *Modal) Mode() Mode     { return m.mode }
func (m *Modal) TaskID() string { return m.taskID }
func (m *Modal) IsOpen() bool   { return m.open }

// Save writes the form. A blank title blocks the save and keeps the modal
// open without touching the store.
func (m *Modal) Save(ctx context.Context) (Result, error) {
	if !m.open {
		return Result{}, ErrClosed
	}
	if strings.TrimSpace(m.Form.Title) == "" {
		return Result{}, ErrTitleRequired
	}

	var res Result
	if m.mode == ModeEdit {
		res = Result{Action: ActionUpdate, TaskID: m.taskID}
		res.Task, res.Err = m.writer.Update(ctx, m.taskID, model.FullPatch(m.Form))
	} else {
		res = Result{Action: ActionInsert}
		res.Task, res.Err = m.writer.InsertOnce(ctx, m.key, m.Form)
		res.TaskID = res.Task.ID
	}
	m.finish(res)
	return res, nil
}

func (m *Modal) Delete(ctx context.Context) (Result, error) {
	if !m.open {
		return Result{}, ErrClosed
	}
	if m.mode != ModeEdit {
		return Result{}, ErrNotEditing
	}
	res := Result{Action: ActionDelete, TaskID: m.taskID}
	res.Err = m.writer.Delete(ctx, m.taskID)
	m.finish(res)
	return res, nil
}

func (m *Modal) Cancel() { m.open = false }

func (m *Modal) finish(res Result) {
	m.open = false
	if res.Err != nil {
		m.logger.Error("task write failed",
			zap.String("action", string(res.Action)),
			zap.String("task_id", res.TaskID),
			zap.Error(res.Err),
		)
	}
}
