package board

import (
	"sync"
	"time"

	"github.com/nhle/hotel-ops/internal/model"
)

// View is the in-memory task list a board renders. Optimistic moves
// are applied here before the store confirms them.
type View struct {
	mu    sync.RWMutex
	tasks []model.Task
}

// NewView creates a view holding tasks.
func NewView(tasks []model.Task) *View {
	v := &View{}
	v.Replace(tasks)
	return v
}

// Replace swaps the whole task list, discarding any optimistic state.
func (v *View) Replace(tasks []model.Task) {
	cp := make([]model.Task, len(tasks))
	copy(cp, tasks)

	v.mu.Lock()
	v.tasks = cp
	v.mu.Unlock()
}

// Tasks returns a copy of every task in the view.
func (v *View) Tasks() []model.Task {
	v.mu.RLock()
	defer v.mu.RUnlock()

	cp := make([]model.Task, len(v.tasks))
	copy(cp, v.tasks)
	return cp
}

// Get returns the task with id.
func (v *View) Get(id string) (model.Task, bool) {
	v.mu.RLock()
	defer v.mu.RUnlock()

	for _, t := range v.tasks {
		if t.ID == id {
			return t, true
		}
	}
	return model.Task{}, false
}

// Column returns the tasks in status s, in view order.
func (v *View) Column(s model.Status) []model.Task {
	v.mu.RLock()
	defer v.mu.RUnlock()

	var col []model.Task
	for _, t := range v.tasks {
		if t.Status == s {
			col = append(col, t)
		}
	}
	return col
}

// Upsert replaces the task with the same ID or appends t.
func (v *View) Upsert(t model.Task) {
	v.mu.Lock()
	defer v.mu.Unlock()

	for i := range v.tasks {
		if v.tasks[i].ID == t.ID {
			v.tasks[i] = t
			return
		}
	}
	v.tasks = append(v.tasks, t)
}

func (v *View) setStatus(id string, s model.Status, at time.Time) bool {
	v.mu.Lock()
	defer v.mu.Unlock()

	for i := range v.tasks {
		if v.tasks[i].ID == id {
			v.tasks[i].Status = s
			v.tasks[i].UpdatedAt = at
			return true
		}
	}
	return false
}
