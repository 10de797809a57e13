package board

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func seed() *Board {
	b := New()
	b.Replace([]Task{
		{ID: 3, TaskName: "Write report", Status: "incomplete", Assignees: []Assignee{
			{Email: "a@x.com", Name: "a@x.com", Completed: false},
			{Email: "b@x.com", Name: "b@x.com", Completed: false},
		}},
		{ID: 1, TaskName: "Review PR", Status: "in_progress"},
		{ID: 2, TaskName: "Ship release", Status: "complete"},
	})
	return b
}

func TestReplaceKeepsServerOrder(t *testing.T) {
	b := seed()
	tasks := b.Tasks()
	require.Len(t, tasks, 3)
	assert.Equal(t, []int{3, 1, 2}, []int{tasks[0].ID, tasks[1].ID, tasks[2].ID})
}

func TestMoveTaskOptimistic(t *testing.T) {
	b := seed()
	require.NoError(t, b.MoveTask(3, "in_progress"))

	task, ok := b.Get(3)
	require.True(t, ok)
	assert.Equal(t, "in_progress", task.Status)
}

func TestMoveTaskRejectsOverdueLane(t *testing.T) {
	b := seed()
	err := b.MoveTask(3, "overdue")
	assert.ErrorIs(t, err, ErrOverdueLane)

	task, _ := b.Get(3)
	assert.Equal(t, "incomplete", task.Status, "rejected move must not touch local state")
}

func TestMoveTaskUnknownStatusAndTask(t *testing.T) {
	b := seed()
	assert.ErrorIs(t, b.MoveTask(3, "done"), ErrUnknownStatus)
	assert.ErrorIs(t, b.MoveTask(99, "complete"), ErrUnknownTask)
}

func TestApplyStatusIsIdempotent(t *testing.T) {
	b := seed()
	require.NoError(t, b.MoveTask(3, "complete"))

	// The confirming broadcast re-applies the same status: a no-op
	b.ApplyStatus(3, "complete")
	b.ApplyStatus(3, "complete")

	task, _ := b.Get(3)
	assert.Equal(t, "complete", task.Status)
}

func TestApplyStatusAcceptsSweepResult(t *testing.T) {
	b := seed()
	// The sweep legitimately produces overdue even though a drag cannot
	b.ApplyStatus(1, "overdue")
	task, _ := b.Get(1)
	assert.Equal(t, "overdue", task.Status)
}

func TestApplyStatusUnknownTaskIgnored(t *testing.T) {
	b := seed()
	b.ApplyStatus(42, "complete")
	assert.Len(t, b.Tasks(), 3)
}

func TestPatchAssignee(t *testing.T) {
	b := seed()
	require.True(t, b.PatchAssignee(3, "a@x.com", true))

	task, _ := b.Get(3)
	assert.True(t, task.Assignees[0].Completed)
	assert.False(t, task.Assignees[1].Completed, "only the named assignee is patched")

	// Re-applying the same payload changes nothing
	require.True(t, b.PatchAssignee(3, "a@x.com", true))
	task, _ = b.Get(3)
	assert.True(t, task.Assignees[0].Completed)

	assert.False(t, b.PatchAssignee(3, "nobody@x.com", true))
	assert.False(t, b.PatchAssignee(99, "a@x.com", true))
}

func TestCanToggleAssignee(t *testing.T) {
	assert.True(t, CanToggleAssignee("a@x.com", "a@x.com"))
	assert.False(t, CanToggleAssignee("a@x.com", "b@x.com"))
	assert.False(t, CanToggleAssignee("", ""))
}

func TestByStatusLanes(t *testing.T) {
	b := seed()
	lanes := b.ByStatus()

	require.Len(t, lanes, 5)
	assert.Len(t, lanes["incomplete"], 1)
	assert.Len(t, lanes["in_progress"], 1)
	assert.Len(t, lanes["complete"], 1)
	assert.Empty(t, lanes["overdue"])
	assert.Empty(t, lanes["on_hold"])
}

func TestReplaceDropsStaleTasks(t *testing.T) {
	b := seed()
	require.NoError(t, b.MoveTask(1, "on_hold"))

	// Server re-fetch no longer contains task 2 and corrects task 1
	b.Replace([]Task{
		{ID: 3, TaskName: "Write report", Status: "incomplete"},
		{ID: 1, TaskName: "Review PR", Status: "in_progress"},
	})

	_, ok := b.Get(2)
	assert.False(t, ok)
	task, _ := b.Get(1)
	assert.Equal(t, "in_progress", task.Status, "server state wins over the optimistic move")
}
