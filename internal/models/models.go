package models

import (
	"time"
)

type Task struct {
	ID            int        `json:"id"`
	TaskName      string     `json:"task_name"`
	Status        string     `json:"status"`
	DueDate       *time.Time `json:"due_date"`
	Description   *string    `json:"description"`
	DateCreated   time.Time  `json:"date_created"`
	DateCompleted *time.Time `json:"date_completed"`
}

type Assignee struct {
	Email     string `json:"email"`
	Name      string `json:"name"`
	Completed bool   `json:"completed"`
}

type TeamTask struct {
	ID            int        `json:"id"`
	TeamID        int        `json:"team_id"`
	TaskName      string     `json:"task_name"`
	Status        string     `json:"status"`
	DueDate       *time.Time `json:"due_date"`
	Description   *string    `json:"description"`
	AssignedBy    string     `json:"assigned_by"`
	AssignedTo    []Assignee `json:"assigned_to"`
	DateCreated   time.Time  `json:"date_created"`
	DateCompleted *time.Time `json:"date_completed"`
}

// UserStats is a rebuildable cache over the tasks table, one row per email.
type UserStats struct {
	Email      string `json:"-"`
	Incomplete int    `json:"incomplete"`
	InProgress int    `json:"in_progress"`
	Complete   int    `json:"complete"`
	Overdue    int    `json:"overdue"`
	OnHold     int    `json:"on_hold"`
}

type ChatMessage struct {
	SenderEmail string    `json:"sender_email"`
	Message     string    `json:"message"`
	SentAt      time.Time `json:"sent_at"`
}

type ActivityEntry struct {
	ActorEmail  string    `json:"actor_email"`
	Action      string    `json:"action"`
	Target      string    `json:"target"`
	Destination *string   `json:"destination,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
}
