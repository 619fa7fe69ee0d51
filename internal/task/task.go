// Package task provides task lifecycle operations.
package task

import (
	"fmt"
	"time"

	"github.com/zulandar/admitflow/internal/activity"
	"github.com/zulandar/admitflow/internal/apperr"
	"github.com/zulandar/admitflow/internal/models"
	"gorm.io/gorm"
)

// Task types.
const (
	TypeFollowUp           = models.TaskTypeFollowUp
	TypeCall               = "call"
	TypeEmail              = "email"
	TypeMeeting            = "meeting"
	TypeDocumentCollection = "document_collection"
	TypeFeeReminder        = "fee_reminder"
	TypeSystem             = "system"
)

// Priorities.
const (
	PriorityLow    = "low"
	PriorityMedium = "medium"
	PriorityHigh   = "high"
	PriorityUrgent = "urgent"
)

// Types lists the accepted task types.
var Types = []string{TypeFollowUp, TypeCall, TypeEmail, TypeMeeting, TypeDocumentCollection, TypeFeeReminder, TypeSystem}

// Priorities lists the accepted priorities.
var Priorities = []string{PriorityLow, PriorityMedium, PriorityHigh, PriorityUrgent}

// ValidTransitions maps each status to its valid next statuses.
var ValidTransitions = map[string][]string{
	models.TaskPending:    {models.TaskInProgress, models.TaskCompleted, models.TaskCancelled},
	models.TaskInProgress: {models.TaskPending, models.TaskCompleted, models.TaskCancelled},
	models.TaskCompleted:  {models.TaskPending},
	models.TaskCancelled:  {models.TaskPending},
}

// DefaultDueIn is the due offset applied when none is given.
const DefaultDueIn = 24 * time.Hour

// CreateOpts holds parameters for creating a new task.
type CreateOpts struct {
	Title       string
	Description string
	TaskType    string // defaults to follow_up
	Priority    string // defaults to medium
	DueDate     *time.Time
	LeadID      *uint
	AssignedTo  *uint
	CreatedBy   *uint
}

// ListFilters holds optional filters for listing tasks.
type ListFilters struct {
	LeadID     *uint
	AssignedTo *uint
	Status     string
	TaskType   string
	DueBefore  *time.Time
}

// Create creates a pending task.
func Create(db *gorm.DB, opts CreateOpts) (*models.Task, error) {
	if opts.Title == "" {
		return nil, apperr.Validation("title is required").WithOp("task: create")
	}
	if opts.TaskType == "" {
		opts.TaskType = TypeFollowUp
	}
	if opts.Priority == "" {
		opts.Priority = PriorityMedium
	}
	if !contains(Types, opts.TaskType) {
		return nil, apperr.Validation("invalid task type %q; valid: %v", opts.TaskType, Types).WithOp("task: create")
	}
	if !contains(Priorities, opts.Priority) {
		return nil, apperr.Validation("invalid priority %q; valid: %v", opts.Priority, Priorities).WithOp("task: create")
	}

	t := models.Task{
		Title:       opts.Title,
		Description: opts.Description,
		TaskType:    opts.TaskType,
		Priority:    opts.Priority,
		Status:      models.TaskPending,
		DueDate:     opts.DueDate,
		LeadID:      opts.LeadID,
		AssignedTo:  opts.AssignedTo,
		CreatedBy:   opts.CreatedBy,
	}
	if err := db.Create(&t).Error; err != nil {
		return nil, apperr.Persistence("task: create", err)
	}
	return &t, nil
}

// Get retrieves a task by ID.
func Get(db *gorm.DB, id uint) (*models.Task, error) {
	var t models.Task
	if err := db.First(&t, id).Error; err != nil {
		return nil, apperr.Persistence(fmt.Sprintf("task: get %d", id), err)
	}
	return &t, nil
}

// List returns tasks matching the given filters, ordered by due date then id.
// Tasks without a due date sort last.
func List(db *gorm.DB, filters ListFilters) ([]models.Task, error) {
	q := db.Model(&models.Task{})
	if filters.LeadID != nil {
		q = q.Where("lead_id = ?", *filters.LeadID)
	}
	if filters.AssignedTo != nil {
		q = q.Where("assigned_to = ?", *filters.AssignedTo)
	}
	if filters.Status != "" {
		q = q.Where("status = ?", filters.Status)
	}
	if filters.TaskType != "" {
		q = q.Where("task_type = ?", filters.TaskType)
	}
	if filters.DueBefore != nil {
		q = q.Where("due_date < ?", *filters.DueBefore)
	}

	var tasks []models.Task
	if err := q.Order("due_date IS NULL, due_date ASC, id ASC").Find(&tasks).Error; err != nil {
		return nil, apperr.Persistence("task: list", err)
	}
	return tasks, nil
}

// HasPending reports whether a lead has a pending task of the given type.
func HasPending(db *gorm.DB, leadID uint, taskType string) (bool, error) {
	var count int64
	err := db.Model(&models.Task{}).
		Where("lead_id = ? AND task_type = ? AND status = ?", leadID, taskType, models.TaskPending).
		Count(&count).Error
	if err != nil {
		return false, apperr.Persistence(fmt.Sprintf("task: check pending for lead %d", leadID), err)
	}
	return count > 0, nil
}

// SetStatus moves a task along ValidTransitions. Use Complete and Reopen
// for transitions that carry completion details.
func SetStatus(db *gorm.DB, id uint, status string) (*models.Task, error) {
	return transition(db, id, status, nil, nil)
}

// Complete marks a task completed by userID with optional notes.
func Complete(db *gorm.DB, id uint, userID *uint, notes string) (*models.Task, error) {
	return CompleteAt(db, id, userID, notes, time.Now())
}

// CompleteAt is Complete with an explicit completion time. A task linked
// to a lead also appends task_completed to the lead's timeline in the same
// transaction, which counts as activity for the inactivity sweep.
func CompleteAt(db *gorm.DB, id uint, userID *uint, notes string, at time.Time) (*models.Task, error) {
	updates := map[string]interface{}{
		"completed_at":     at,
		"completed_by":     userID,
		"completion_notes": notes,
	}
	return transition(db, id, models.TaskCompleted, updates, func(tx *gorm.DB, t *models.Task) error {
		if t.LeadID == nil {
			return nil
		}
		_, err := activity.Log(tx, *t.LeadID, activity.TypeTaskCompleted, "Task completed: "+t.Title, activity.LogOpts{
			UserID:   userID,
			Metadata: map[string]any{"task_id": t.ID, "notes": notes},
			At:       at,
		})
		return err
	})
}

// Reopen returns a completed or cancelled task to pending, clearing its
// completion details and overdue stamp.
func Reopen(db *gorm.DB, id uint) (*models.Task, error) {
	return transition(db, id, models.TaskPending, map[string]interface{}{
		"completed_at":     nil,
		"completed_by":     nil,
		"completion_notes": "",
		"overdue_fired_at": nil,
	}, nil)
}

// Reschedule moves a task's due date. The overdue stamp is cleared so a
// task that becomes overdue again fires task_overdue again.
func Reschedule(db *gorm.DB, id uint, due time.Time) error {
	result := db.Model(&models.Task{}).Where("id = ?", id).Updates(map[string]interface{}{
		"due_date":         due,
		"overdue_fired_at": nil,
	})
	if result.Error != nil {
		return apperr.Persistence(fmt.Sprintf("task: reschedule %d", id), result.Error)
	}
	if result.RowsAffected == 0 {
		return apperr.NotFound("task %d not found", id).WithOp("task: reschedule")
	}
	return nil
}

func transition(db *gorm.DB, id uint, status string, extra map[string]interface{}, after func(tx *gorm.DB, t *models.Task) error) (*models.Task, error) {
	var t models.Task
	err := db.Transaction(func(tx *gorm.DB) error {
		if err := tx.First(&t, id).Error; err != nil {
			return apperr.Persistence(fmt.Sprintf("task: get %d", id), err)
		}
		if !isValidTransition(t.Status, status) {
			return apperr.Validation("invalid status transition from %q to %q; valid transitions: %v",
				t.Status, status, ValidTransitions[t.Status]).WithOp("task: update")
		}
		updates := map[string]interface{}{"status": status}
		for k, v := range extra {
			updates[k] = v
		}
		// Status in the WHERE clause makes a racing transition lose cleanly.
		result := tx.Model(&models.Task{}).Where("id = ? AND status = ?", id, t.Status).Updates(updates)
		if result.Error != nil {
			return apperr.Persistence(fmt.Sprintf("task: update %d", id), result.Error)
		}
		if result.RowsAffected == 0 {
			return apperr.Conflict("task %d changed concurrently", id).WithOp("task: update")
		}
		// Reload into a fresh value: gorm leaves pointer fields set when
		// the column is NULL.
		var fresh models.Task
		if err := tx.First(&fresh, id).Error; err != nil {
			return apperr.Persistence(fmt.Sprintf("task: reload %d", id), err)
		}
		t = fresh
		if after != nil {
			return after(tx, &t)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &t, nil
}

func isValidTransition(from, to string) bool {
	return contains(ValidTransitions[from], to)
}

func contains(list []string, v string) bool {
	for _, s := range list {
		if s == v {
			return true
		}
	}
	return false
}
