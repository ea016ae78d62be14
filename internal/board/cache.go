package board

import "github.com/BuzzLyutic/taskboard/internal/model"

// Cache is the board's local copy of the task list, keyed by id and kept in
// first-seen order. It is not safe for concurrent use.
type Cache struct {
	order []string
	byID  map[string]model.Task
}

func NewCache() *Cache {
	return &Cache{byID: make(map[string]model.Task)}
}

// Reset replaces the contents with a fresh snapshot.
func (c *Cache) Reset(tasks []model.Task) {
	c.order = make([]string, 0, len(tasks))
	c.byID = make(map[string]model.Task, len(tasks))
	for _, t := range tasks {
		c.put(t)
	}
}

// Apply folds one change event into the cache and reports whether anything
// changed. Inserts and updates are upserts: a task is never listed twice and
// an update keeps the task's position.
func (c *Cache) Apply(ev model.ChangeEvent) bool {
	switch ev.Type {
	case model.EventInsert, model.EventUpdate:
		if ev.New == nil || ev.New.ID == "" {
			return false
		}
		if cur, ok := c.byID[ev.New.ID]; ok && cur == *ev.New {
			return false
		}
		c.put(*ev.New)
		return true
	case model.EventDelete:
		id := ev.TaskID()
		if _, ok := c.byID[id]; !ok {
			return false
		}
		delete(c.byID, id)
		for i, v := range c.order {
			if v == id {
				c.order = append(c.order[:i], c.order[i+1:]...)
				break
			}
		}
		return true
	}
	return false
}

func (c *Cache) put(t model.Task) {
	if _, ok := c.byID[t.ID]; !ok {
		c.order = append(c.order, t.ID)
	}
	c.byID[t.ID] = t
}

func (c *Cache) Get(id string) (model.Task, bool) {
	t, ok := c.byID[id]
	return t, ok
}

func (c *Cache) Len() int { return len(c.order) }

// Tasks returns a copy of the cached tasks in order.
func (c *Cache) Tasks() []model.Task {
	out := make([]model.Task, 0, len(c.order))
	for _, id := range c.order {
		out = append(out, c.byID[id])
	}
	return out
}
