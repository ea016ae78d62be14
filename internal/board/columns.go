package board

import "github.com/BuzzLyutic/taskboard/internal/model"

type Column struct {
	Status model.Status
	Title  string
	Tasks  []model.Task
}

// Partition groups tasks into the three status columns, keeping their
// relative order. Tasks with an unknown status are left out.
func Partition(tasks []model.Task) []Column {
	cols := make([]Column, len(model.Statuses))
	index := make(map[model.Status]int, len(model.Statuses))
	for i, s := range model.Statuses {
		cols[i] = Column{Status: s, Title: s.Label(), Tasks: []model.Task{}}
		index[s] = i
	}
	for _, t := range tasks {
		if i, ok := index[t.Status]; ok {
			cols[i].Tasks = append(cols[i].Tasks, t)
		}
	}
	return cols
}
