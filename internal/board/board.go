// Package board holds the client-side task board state: tasks keyed by their
// numeric id, mutated optimistically on drag-and-drop and reconciled against
// server responses and room broadcasts. Reapplying an event the board already
// reflects is always a no-op.
package board

import (
	"errors"
	"sort"
	"sync"
)

var (
	ErrOverdueLane   = errors.New("cannot manually move a task to overdue")
	ErrUnknownStatus = errors.New("unknown status")
	ErrUnknownTask   = errors.New("unknown task")
)

var statuses = map[string]bool{
	"incomplete":  true,
	"in_progress": true,
	"complete":    true,
	"overdue":     true,
	"on_hold":     true,
}

type Assignee struct {
	Email     string
	Name      string
	Completed bool
}

type Task struct {
	ID          int
	TaskName    string
	Status      string
	DueDate     string
	Description string
	Assignees   []Assignee
}

// Board is a headless store of one owner scope's tasks.
type Board struct {
	mu    sync.Mutex
	tasks map[int]*Task
	order []int // server list order, preserved across patches
}

func New() *Board {
	return &Board{tasks: make(map[int]*Task)}
}

// Replace reconciles the whole board from a fresh server fetch. Local state
// that the server no longer reports is dropped.
func (b *Board) Replace(tasks []Task) {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.tasks = make(map[int]*Task, len(tasks))
	b.order = b.order[:0]
	for i := range tasks {
		t := tasks[i]
		b.tasks[t.ID] = &t
		b.order = append(b.order, t.ID)
	}
}

// Tasks returns the board in server list order.
func (b *Board) Tasks() []Task {
	b.mu.Lock()
	defer b.mu.Unlock()

	out := make([]Task, 0, len(b.order))
	for _, id := range b.order {
		if t, ok := b.tasks[id]; ok {
			out = append(out, *t)
		}
	}
	return out
}

// Get returns a task by id.
func (b *Board) Get(id int) (Task, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()

	t, ok := b.tasks[id]
	if !ok {
		return Task{}, false
	}
	return *t, true
}

// MoveTask applies a drag-and-drop status change optimistically. Dropping
// into the overdue lane is rejected locally, mirroring the server-side
// rejection. Moving a task to the status it already holds is a no-op.
func (b *Board) MoveTask(id int, status string) error {
	if status == "overdue" {
		return ErrOverdueLane
	}
	if !statuses[status] {
		return ErrUnknownStatus
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	t, ok := b.tasks[id]
	if !ok {
		return ErrUnknownTask
	}
	t.Status = status
	return nil
}

// ApplyStatus reconciles a status from a server response or broadcast.
// Unlike MoveTask it accepts overdue, since the sweep legitimately produces
// it. Unknown ids are ignored; the next Replace picks them up.
func (b *Board) ApplyStatus(id int, status string) {
	if !statuses[status] {
		return
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	if t, ok := b.tasks[id]; ok {
		t.Status = status
	}
}

// PatchAssignee applies an assignee_status_updated payload in place. The
// payload is authoritative; no re-fetch is needed. Returns false when the
// board holds no matching task/assignee pair.
func (b *Board) PatchAssignee(taskID int, email string, completed bool) bool {
	b.mu.Lock()
	defer b.mu.Unlock()

	t, ok := b.tasks[taskID]
	if !ok {
		return false
	}
	for i := range t.Assignees {
		if t.Assignees[i].Email == email {
			t.Assignees[i].Completed = completed
			return true
		}
	}
	return false
}

// CanToggleAssignee reports whether the viewer may toggle the given assignee
// row: only their own. UI mirror of the server-side authorization check.
func CanToggleAssignee(viewerEmail, assigneeEmail string) bool {
	return viewerEmail != "" && viewerEmail == assigneeEmail
}

// ByStatus groups the board into the five fixed lanes.
func (b *Board) ByStatus() map[string][]Task {
	b.mu.Lock()
	defer b.mu.Unlock()

	lanes := make(map[string][]Task, len(statuses))
	for status := range statuses {
		lanes[status] = []Task{}
	}
	ids := make([]int, 0, len(b.tasks))
	for id := range b.tasks {
		ids = append(ids, id)
	}
	sort.Ints(ids)
	for _, id := range ids {
		t := b.tasks[id]
		lanes[t.Status] = append(lanes[t.Status], *t)
	}
	return lanes
}
