package models

import (
	"time"
)

type TaskStatus string

const (
	TaskPending    TaskStatus = "pending"
	TaskInProgress TaskStatus = "in_progress"
	TaskCompleted  TaskStatus = "completed"
	TaskOnHold     TaskStatus = "on_hold"
	TaskCancelled  TaskStatus = "cancelled"
)

func (s TaskStatus) Valid() bool {
	switch s {
	case TaskPending, TaskInProgress, TaskCompleted, TaskOnHold, TaskCancelled:
		return true
	}
	return false
}

type TaskPriority string

const (
	PriorityLow    TaskPriority = "low"
	PriorityMedium TaskPriority = "medium"
	PriorityHigh   TaskPriority = "high"
	PriorityUrgent TaskPriority = "urgent"
)

func (p TaskPriority) Valid() bool {
	switch p {
	case PriorityLow, PriorityMedium, PriorityHigh, PriorityUrgent:
		return true
	}
	return false
}

type Task struct {
	Base
	WorkspaceID string       `gorm:"size:36;index;not null" json:"workspace_id"`
	Title       string       `gorm:"size:100;not null" json:"title"`
	Description string       `gorm:"type:text" json:"description"`
	Status      TaskStatus   `gorm:"size:20;default:pending;index" json:"status"`
	Priority    TaskPriority `gorm:"size:20;default:medium;index" json:"priority"`
	DueDate     *time.Time   `gorm:"index" json:"due_date"`
	AssigneeID  *string      `gorm:"size:36;index" json:"assignee_id"`
	Assignee    *User        `gorm:"foreignKey:AssigneeID" json:"assignee,omitempty"`
	CreatorID   string       `gorm:"size:36;index;not null" json:"creator_id"`
	Creator     *User        `gorm:"foreignKey:CreatorID" json:"creator,omitempty"`
	CompletedAt *time.Time   `json:"completed_at"`
	Tags        []string     `gorm:"serializer:json" json:"tags"`
	Comments    []Comment    `gorm:"foreignKey:TaskID" json:"comments,omitempty"`
}

func (Task) TableName() string { return "tasks" }

// ApplyStatus moves the task to status and stamps CompletedAt on the first
// transition into completed. Later transitions leave the stamp untouched.
func (t *Task) ApplyStatus(status TaskStatus, now time.Time) {
	if status == TaskCompleted && t.Status != TaskCompleted && t.CompletedAt == nil {
		stamp := now
		t.CompletedAt = &stamp
	}
	t.Status = status
}

// Overdue reports whether the task is past due and still open.
func (t *Task) Overdue(now time.Time) bool {
	if t.DueDate == nil {
		return false
	}
	return t.DueDate.Before(now) && t.Status != TaskCompleted && t.Status != TaskCancelled
}
