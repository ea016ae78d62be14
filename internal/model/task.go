package model

import "time"

type Status string

const (
	StatusTodo       Status = "todo"
	StatusInProgress Status = "in_progress"
	StatusDone       Status = "done"
)

// Statuses lists the board columns in display order.
var Statuses = []Status{StatusTodo, StatusInProgress, StatusDone}

func (s Status) Valid() bool {
	switch s {
	case StatusTodo, StatusInProgress, StatusDone:
		return true
	}
	return false
}

func (s Status) Label() string {
	switch s {
	case StatusTodo:
		return "To Do"
	case StatusInProgress:
		return "In Progress"
	case StatusDone:
		return "Completed"
	}
	return string(s)
}

type Priority string

const (
	PriorityLow    Priority = "Low"
	PriorityMedium Priority = "Medium"
	PriorityHigh   Priority = "High"
)

var Priorities = []Priority{PriorityLow, PriorityMedium, PriorityHigh}

// Valid reports whether p is a known priority. Priority is optional, so the
// empty value is valid too.
func (p Priority) Valid() bool {
	switch p {
	case "", PriorityLow, PriorityMedium, PriorityHigh:
		return true
	}
	return false
}

type Task struct {
	ID          string    `json:"id"`
	Title       string    `json:"title"`
	Description string    `json:"description"`
	Priority    Priority  `json:"priority,omitempty"`
	Status      Status    `json:"status"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// TaskFields is the insert payload.
type TaskFields struct {
	Title       string   `json:"title"`
	Description string   `json:"description"`
	Priority    Priority `json:"priority"`
	Status      Status   `json:"status"`
}

// TaskPatch names the fields to update; nil fields are left untouched.
type TaskPatch struct {
	Title       *string   `json:"title,omitempty"`
	Description *string   `json:"description,omitempty"`
	Priority    *Priority `json:"priority,omitempty"`
	Status      *Status   `json:"status,omitempty"`
}

func (p TaskPatch) Empty() bool {
	return p.Title == nil && p.Description == nil && p.Priority == nil && p.Status == nil
}

// FullPatch returns a patch that overwrites all four editable fields.
func FullPatch(f TaskFields) TaskPatch {
	return TaskPatch{
		Title:       &f.Title,
		Description: &f.Description,
		Priority:    &f.Priority,
		Status:      &f.Status,
	}
}

// StatusPatch returns a patch that only moves the task to another column.
func StatusPatch(s Status) TaskPatch {
	return TaskPatch{Status: &s}
}

// Apply returns a copy of t with the patch applied.
func (p TaskPatch) Apply(t Task) Task {
	if p.Title != nil {
		t.Title = *p.Title
	}
	if p.Description != nil {
		t.Description = *p.Description
	}
	if p.Priority != nil {
		t.Priority = *p.Priority
	}
	if p.Status != nil {
		t.Status = *p.Status
	}
	return t
}

type TaskFilter struct {
	Status *Status
}
