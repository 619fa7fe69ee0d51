// Package activity provides the append-only lead timeline.
package activity

import (
	"fmt"
	"time"

	"github.com/zulandar/admitflow/internal/apperr"
	"github.com/zulandar/admitflow/internal/models"
	"gorm.io/gorm"
)

// Activity types written by the core.
const (
	TypeLeadCreated        = "lead_created"
	TypeReInquiry          = "re_inquiry"
	TypeStageChange        = "stage_change"
	TypeApplicationCreated = "application_created"
	TypeTaskCreated        = "task_created"
	TypeTaskCompleted      = "task_completed"
	TypeStatusChange       = "status_change"
	TypeSystem             = "system"
)

// LogOpts holds optional parameters for appending an activity.
type LogOpts struct {
	UserID   *uint
	Metadata map[string]any
	At       time.Time // defaults to time.Now()
}

// Log appends an activity to a lead's timeline and bumps the lead's
// last_activity_at. The bump never moves the timestamp backwards.
func Log(db *gorm.DB, leadID uint, activityType, description string, opts LogOpts) (*models.Activity, error) {
	if leadID == 0 {
		return nil, apperr.Validation("lead id is required").WithOp("activity: log")
	}
	if activityType == "" {
		return nil, apperr.Validation("activity type is required").WithOp("activity: log")
	}

	at := opts.At
	if at.IsZero() {
		at = time.Now()
	}

	var count int64
	if err := db.Model(&models.Lead{}).Where("id = ?", leadID).Count(&count).Error; err != nil {
		return nil, apperr.Persistence("activity: check lead", err)
	}
	if count == 0 {
		return nil, apperr.NotFound("lead %d not found", leadID).WithOp("activity: log")
	}

	act := models.Activity{
		Type:        activityType,
		Description: description,
		LeadID:      leadID,
		UserID:      opts.UserID,
		Metadata:    opts.Metadata,
		CreatedAt:   at,
	}
	if err := db.Create(&act).Error; err != nil {
		return nil, apperr.Persistence("activity: create", err)
	}
	if err := Touch(db, leadID, at); err != nil {
		return nil, err
	}
	return &act, nil
}

// Touch moves a lead's last_activity_at forward to at.
func Touch(db *gorm.DB, leadID uint, at time.Time) error {
	err := db.Model(&models.Lead{}).
		Where("id = ? AND (last_activity_at IS NULL OR last_activity_at < ?)", leadID, at).
		UpdateColumn("last_activity_at", at).Error
	if err != nil {
		return apperr.Persistence(fmt.Sprintf("activity: touch lead %d", leadID), err)
	}
	return nil
}

// ForLead returns a lead's timeline, newest first. A limit of zero
// returns everything.
func ForLead(db *gorm.DB, leadID uint, limit int) ([]models.Activity, error) {
	q := db.Where("lead_id = ?", leadID).Order("created_at DESC, id DESC")
	if limit > 0 {
		q = q.Limit(limit)
	}
	var acts []models.Activity
	if err := q.Find(&acts).Error; err != nil {
		return nil, apperr.Persistence(fmt.Sprintf("activity: list lead %d", leadID), err)
	}
	return acts, nil
}

// CountByType counts a lead's activities of one type.
func CountByType(db *gorm.DB, leadID uint, activityType string) (int64, error) {
	var n int64
	err := db.Model(&models.Activity{}).
		Where("lead_id = ? AND type = ?", leadID, activityType).
		Count(&n).Error
	if err != nil {
		return 0, apperr.Persistence("activity: count", err)
	}
	return n, nil
}
