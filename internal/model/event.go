package model

import "time"

type EventType string

const (
	EventInsert EventType = "insert"
	EventUpdate EventType = "update"
	EventDelete EventType = "delete"
)

// ChangeEvent is a row change on the tasks table, broadcast to every
// subscriber including the client that issued the write. Old carries at least
// the id for update and delete events.
type ChangeEvent struct {
	Type       EventType `json:"eventType"`
	New        *Task     `json:"new,omitempty"`
	Old        *Task     `json:"old,omitempty"`
	CommitTime time.Time `json:"commit_timestamp"`
}

// TaskID returns the id of the row the event refers to.
func (e ChangeEvent) TaskID() string {
	if e.New != nil && e.New.ID != "" {
		return e.New.ID
	}
	if e.Old != nil {
		return e.Old.ID
	}
	return ""
}

func InsertEvent(t Task) ChangeEvent {
	return ChangeEvent{Type: EventInsert, New: &t, CommitTime: t.UpdatedAt}
}

func UpdateEvent(t Task) ChangeEvent {
	return ChangeEvent{Type: EventUpdate, New: &t, Old: &Task{ID: t.ID}, CommitTime: t.UpdatedAt}
}

func DeleteEvent(id string, at time.Time) ChangeEvent {
	return ChangeEvent{Type: EventDelete, Old: &Task{ID: id}, CommitTime: at}
}
