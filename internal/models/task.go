package models

import "time"

// Task statuses.
const (
	TaskPending    = "pending"
	TaskInProgress = "in_progress"
	TaskCompleted  = "completed"
	TaskCancelled  = "cancelled"
)

// TaskTypeFollowUp is the task type the inactivity sweeper books.
const TaskTypeFollowUp = "follow_up"

// Task is a unit of work for an admissions user, usually tied to a lead.
type Task struct {
	ID              uint       `gorm:"primaryKey;autoIncrement"`
	Title           string     `gorm:"size:200;not null"`
	Description     string     `gorm:"type:text"`
	TaskType        string     `gorm:"size:32;default:follow_up;index"`
	DueDate         *time.Time `gorm:"index"`
	Status          string     `gorm:"size:16;default:pending;index"`
	Priority        string     `gorm:"size:16;default:medium"`
	LeadID          *uint      `gorm:"index"`
	AssignedTo      *uint      `gorm:"index"`
	CreatedBy       *uint
	CompletedAt     *time.Time
	CompletedBy     *uint
	CompletionNotes string `gorm:"type:text"`
	OverdueFiredAt  *time.Time
	CreatedAt       time.Time
	UpdatedAt       time.Time
}
