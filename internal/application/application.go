// Package application manages lead-to-application conversion and the four
// admission sub-processes of an application.
package application

import (
	"fmt"
	"time"

	"github.com/zulandar/admitflow/internal/activity"
	"github.com/zulandar/admitflow/internal/apperr"
	"github.com/zulandar/admitflow/internal/lead"
	"github.com/zulandar/admitflow/internal/models"
	"gorm.io/gorm"
)

// Sub-process names accepted by UpdateStatus.
const (
	Document   = "document"
	Fee        = "fee"
	Admission  = "admission"
	Enrollment = "enrollment"
)

// Overall statuses.
const (
	OverallInProgress = "in_progress"
	OverallCompleted  = "completed"
	OverallCancelled  = "cancelled"
	OverallOnHold     = "on_hold"
)

// ValidStatuses lists the accepted values per sub-process.
var ValidStatuses = map[string][]string{
	Document:   {"pending", "in_review", "verified", "rejected"},
	Fee:        {"pending", "partial", "paid", "waived"},
	Admission:  {"pending", "approved", "rejected", "waitlisted", "conditional"},
	Enrollment: {"pending", "confirmed", "cancelled", "deferred"},
}

var columns = map[string]string{
	Document:   "document_status",
	Fee:        "fee_status",
	Admission:  "admission_status",
	Enrollment: "enrollment_status",
}

// StatusChange describes a committed sub-status update.
type StatusChange struct {
	Application *models.Application
	Process     string
	Old         string
	New         string
}

// Trigger returns the automation trigger this change produces, or "".
func (c *StatusChange) Trigger() string {
	if c.Old == c.New {
		return ""
	}
	switch {
	case c.Process == Document && c.New == "verified":
		return "document_verified"
	case c.Process == Fee && c.New == "paid":
		return "fee_paid"
	case c.Process == Admission && c.New != "pending":
		return "admission_decision"
	}
	return ""
}

// Create converts a lead into an application. A lead has at most one
// application; a second conversion fails with a conflict. The lead is
// marked converted and an application_created activity is logged.
func Create(db *gorm.DB, leadID uint, actor *uint) (*models.Application, error) {
	var app models.Application
	err := db.Transaction(func(tx *gorm.DB) error {
		if _, err := lead.Lock(tx, leadID); err != nil {
			return err
		}
		var count int64
		if err := tx.Model(&models.Application{}).Where("lead_id = ?", leadID).Count(&count).Error; err != nil {
			return apperr.Persistence("application: check existing", err)
		}
		if count > 0 {
			return apperr.Conflict("lead %d already has an application", leadID).WithOp("application: create")
		}

		app = models.Application{
			LeadID:           leadID,
			DocumentStatus:   "pending",
			FeeStatus:        "pending",
			AdmissionStatus:  "pending",
			EnrollmentStatus: "pending",
			OverallStatus:    OverallInProgress,
		}
		if err := tx.Create(&app).Error; err != nil {
			return apperr.Persistence("application: create", err)
		}
		if err := tx.Model(&models.Lead{}).Where("id = ?", leadID).Updates(map[string]interface{}{
			"status":     models.LeadConverted,
			"updated_at": time.Now(),
		}).Error; err != nil {
			return apperr.Persistence(fmt.Sprintf("application: convert lead %d", leadID), err)
		}
		_, err := activity.Log(tx, leadID, activity.TypeApplicationCreated, "Lead converted to application",
			activity.LogOpts{UserID: actor, Metadata: map[string]any{"application_id": app.ID}})
		return err
	})
	if err != nil {
		return nil, err
	}
	return &app, nil
}

// Get retrieves an application by ID.
func Get(db *gorm.DB, id uint) (*models.Application, error) {
	var app models.Application
	if err := db.First(&app, id).Error; err != nil {
		return nil, apperr.Persistence(fmt.Sprintf("application: get %d", id), err)
	}
	return &app, nil
}

// GetByLead retrieves the application for a lead.
func GetByLead(db *gorm.DB, leadID uint) (*models.Application, error) {
	var app models.Application
	if err := db.Where("lead_id = ?", leadID).First(&app).Error; err != nil {
		return nil, apperr.Persistence(fmt.Sprintf("application: get for lead %d", leadID), err)
	}
	return &app, nil
}

// UpdateStatus sets one sub-process status, stamps the matching timestamp
// and recomputes the overall status.
func UpdateStatus(db *gorm.DB, id uint, process, status string, actor *uint) (*StatusChange, error) {
	valid, ok := ValidStatuses[process]
	if !ok {
		return nil, apperr.Validation("unknown process %q", process).WithOp("application: update status")
	}
	if !contains(valid, status) {
		return nil, apperr.Validation("invalid %s status %q; valid: %v", process, status, valid).WithOp("application: update status")
	}

	var change StatusChange
	err := db.Transaction(func(tx *gorm.DB) error {
		var app models.Application
		if err := tx.First(&app, id).Error; err != nil {
			return apperr.Persistence(fmt.Sprintf("application: get %d", id), err)
		}
		if _, err := lead.Lock(tx, app.LeadID); err != nil {
			return err
		}
		if err := tx.First(&app, id).Error; err != nil {
			return apperr.Persistence(fmt.Sprintf("application: reload %d", id), err)
		}

		old := currentStatus(&app, process)
		change = StatusChange{Process: process, Old: old, New: status}
		if old == status {
			change.Application = &app
			return nil
		}

		now := time.Now()
		updates := map[string]interface{}{columns[process]: status}
		switch {
		case process == Document && status == "verified":
			updates["document_verified_at"] = now
		case process == Fee && status == "paid":
			updates["fee_paid_at"] = now
		case process == Admission && status != "pending":
			updates["admission_decision_at"] = now
			updates["admission_decision_by"] = actor
		case process == Enrollment && status == "confirmed":
			updates["enrollment_date"] = now
		}
		setStatus(&app, process, status)
		updates["overall_status"] = DeriveOverall(&app)

		if err := tx.Model(&models.Application{}).Where("id = ?", id).Updates(updates).Error; err != nil {
			return apperr.Persistence(fmt.Sprintf("application: update %d", id), err)
		}
		if err := tx.First(&app, id).Error; err != nil {
			return apperr.Persistence(fmt.Sprintf("application: reload %d", id), err)
		}
		change.Application = &app

		_, err := activity.Log(tx, app.LeadID, activity.TypeStatusChange,
			fmt.Sprintf("Application %s status changed from '%s' to '%s'", process, old, status),
			activity.LogOpts{UserID: actor, Metadata: map[string]any{
				"application_id": app.ID,
				"process":        process,
				"old_status":     old,
				"new_status":     status,
			}})
		return err
	})
	if err != nil {
		return nil, err
	}
	return &change, nil
}

// DeriveOverall computes the overall status from the sub-processes.
func DeriveOverall(app *models.Application) string {
	switch {
	case app.EnrollmentStatus == "confirmed":
		return OverallCompleted
	case app.EnrollmentStatus == "cancelled", app.AdmissionStatus == "rejected":
		return OverallCancelled
	case app.AdmissionStatus == "waitlisted", app.EnrollmentStatus == "deferred":
		return OverallOnHold
	}
	return OverallInProgress
}

func currentStatus(app *models.Application, process string) string {
	switch process {
	case Document:
		return app.DocumentStatus
	case Fee:
		return app.FeeStatus
	case Admission:
		return app.AdmissionStatus
	default:
		return app.EnrollmentStatus
	}
}

func setStatus(app *models.Application, process, status string) {
	switch process {
	case Document:
		app.DocumentStatus = status
	case Fee:
		app.FeeStatus = status
	case Admission:
		app.AdmissionStatus = status
	default:
		app.EnrollmentStatus = status
	}
}

func contains(list []string, v string) bool {
	for _, s := range list {
		if s == v {
			return true
		}
	}
	return false
}
