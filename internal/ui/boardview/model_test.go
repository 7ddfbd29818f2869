package boardview

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nhle/hotel-ops/internal/model"
)

func task(id string, s model.Status) model.Task {
	return model.Task{ID: id, Title: "Task " + id, Status: s, Priority: model.PriorityMedium}
}

func TestSetTasks_GroupsByStatus(t *testing.T) {
	m := New(120, 30)
	m.SetTasks([]model.Task{
		task("a", model.StatusPending),
		task("b", model.StatusVerified),
		task("c", model.StatusPending),
	})

	assert.Equal(t, 2, m.Count(model.StatusPending))
	assert.Equal(t, 0, m.Count(model.StatusInProgress))
	assert.Equal(t, 1, m.Count(model.StatusVerified))

	sel, ok := m.Selected()
	require.True(t, ok)
	assert.Equal(t, "a", sel.ID)
}

func TestCursorClamps(t *testing.T) {
	m := New(120, 30)
	m.SetTasks([]model.Task{task("a", model.StatusPending), task("b", model.StatusPending)})

	m.MoveCursor(5)
	sel, _ := m.Selected()
	assert.Equal(t, "b", sel.ID)

	m.MoveCursor(-9)
	sel, _ = m.Selected()
	assert.Equal(t, "a", sel.ID)

	m.FocusColumn(-1)
	assert.Equal(t, model.StatusPending, m.FocusedStatus())
	m.FocusColumn(10)
	assert.Equal(t, model.StatusVerified, m.FocusedStatus())
	_, ok := m.Selected()
	assert.False(t, ok)
}

func TestSelectionFollowsMovedCard(t *testing.T) {
	m := New(120, 30)
	m.SetTasks([]model.Task{task("a", model.StatusPending), task("b", model.StatusPending)})
	m.MoveCursor(1)

	m.SetTasks([]model.Task{task("a", model.StatusPending), task("b", model.StatusCompleted)})

	assert.Equal(t, model.StatusCompleted, m.FocusedStatus())
	sel, ok := m.Selected()
	require.True(t, ok)
	assert.Equal(t, "b", sel.ID)
}

func TestView_ShowsAssigneeNames(t *testing.T) {
	m := New(160, 20)
	m.SetUsers([]model.User{{ID: "u1", DisplayName: "Ana"}})
	tk := task("a", model.StatusPending)
	tk.AssignedTo = []string{"u1", "u2"}
	m.SetTasks([]model.Task{tk})

	out := m.View()
	assert.Contains(t, out, "Pending (1)")
	assert.Contains(t, out, "Ana, u2")
}

func TestTruncate(t *testing.T) {
	assert.Equal(t, "short", truncate("short", 10))
	assert.Equal(t, "abc…", truncate("abcdefgh", 4))
	assert.Equal(t, "", truncate("abc", 1))
}
