package task

import (
	"fmt"
	"strconv"
	"time"

	"github.com/zulandar/admitflow/internal/apperr"
	"github.com/zulandar/admitflow/internal/models"
	"gorm.io/gorm"
)

// FollowUpDescription is written on sweeper-created follow-ups for a lead
// idle longer than threshold.
func FollowUpDescription(threshold time.Duration) string {
	return fmt.Sprintf("Lead has been inactive for %s+ hours. Follow up required.",
		strconv.FormatFloat(threshold.Hours(), 'f', -1, 64))
}

// ChecklistDueIn is the due offset for application checklist tasks.
const ChecklistDueIn = 72 * time.Hour

// ChecklistItem is one task booked when a lead converts to an application.
type ChecklistItem struct {
	Title    string
	TaskType string
	Priority string
}

// ApplicationChecklist lists the tasks booked on conversion.
var ApplicationChecklist = []ChecklistItem{
	{"Verify documents", TypeDocumentCollection, PriorityHigh},
	{"Process fee payment", TypeFeeReminder, PriorityHigh},
	{"Review application", TypeFollowUp, PriorityMedium},
	{"Schedule interview", TypeFollowUp, PriorityMedium},
}

// CreateFollowUp books a pending follow-up for a lead idle past threshold,
// due dueIn after now and assigned to the lead's assignee.
func CreateFollowUp(db *gorm.DB, l *models.Lead, now time.Time, threshold, dueIn time.Duration) (*models.Task, error) {
	due := now.Add(dueIn)
	return Create(db, CreateOpts{
		Title:       "Follow-up: " + l.FullName(),
		Description: FollowUpDescription(threshold),
		TaskType:    TypeFollowUp,
		Priority:    PriorityMedium,
		DueDate:     &due,
		LeadID:      &l.ID,
		AssignedTo:  l.AssignedTo,
	})
}

// CreateApplicationChecklist books the application checklist for a lead.
func CreateApplicationChecklist(db *gorm.DB, leadID uint, assignedTo, createdBy *uint, now time.Time) ([]models.Task, error) {
	due := now.Add(ChecklistDueIn)
	tasks := make([]models.Task, 0, len(ApplicationChecklist))
	for _, item := range ApplicationChecklist {
		t, err := Create(db, CreateOpts{
			Title:      item.Title,
			TaskType:   item.TaskType,
			Priority:   item.Priority,
			DueDate:    &due,
			LeadID:     &leadID,
			AssignedTo: assignedTo,
			CreatedBy:  createdBy,
		})
		if err != nil {
			return nil, fmt.Errorf("task: checklist %q: %w", item.Title, err)
		}
		tasks = append(tasks, *t)
	}
	return tasks, nil
}

// Overdue returns open tasks past their due date that have not yet fired
// task_overdue, ordered by id.
func Overdue(db *gorm.DB, now time.Time) ([]models.Task, error) {
	var tasks []models.Task
	err := db.Where("status IN ? AND due_date < ? AND overdue_fired_at IS NULL",
		[]string{models.TaskPending, models.TaskInProgress}, now).
		Order("id ASC").
		Find(&tasks).Error
	if err != nil {
		return nil, apperr.Persistence("task: query overdue", err)
	}
	return tasks, nil
}

// MarkOverdueFired stamps a task as having fired task_overdue. It returns
// false when another caller stamped it first.
func MarkOverdueFired(db *gorm.DB, id uint, now time.Time) (bool, error) {
	result := db.Model(&models.Task{}).
		Where("id = ? AND overdue_fired_at IS NULL", id).
		Update("overdue_fired_at", now)
	if result.Error != nil {
		return false, apperr.Persistence(fmt.Sprintf("task: mark overdue %d", id), result.Error)
	}
	return result.RowsAffected == 1, nil
}
