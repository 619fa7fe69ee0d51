// Package lead provides lead store operations.
package lead

import (
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/zulandar/admitflow/internal/activity"
	"github.com/zulandar/admitflow/internal/apperr"
	"github.com/zulandar/admitflow/internal/models"
	"github.com/zulandar/admitflow/internal/pipeline"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

var validate = validator.New()

// ValidStatuses lists the lead status values.
var ValidStatuses = []string{models.LeadActive, models.LeadConverted, models.LeadLost, models.LeadDormant}

// CreateOpts holds parameters for creating a lead.
type CreateOpts struct {
	FirstName  string `validate:"required,max=100"`
	LastName   string `validate:"required,max=100"`
	Email      string `validate:"required,email,max=120"`
	Phone      string `validate:"max=20"`
	SourceID   *uint
	StageID    *uint // defaults to the initial lead stage
	AssignedTo *uint
	CreatedBy  *uint
}

// CreateResult reports what Create did.
type CreateResult struct {
	Lead      *models.Lead
	ReInquiry bool // an existing lead with the same email was bumped instead
}

// ListFilters holds optional filters for listing leads.
type ListFilters struct {
	Status     string
	StageID    *uint
	AssignedTo *uint
	Limit      int
}

// Create inserts a new lead, or records a re-inquiry when a lead with the
// same email already exists. New leads get the initial lead stage unless
// one is given, and both paths append a timeline activity.
func Create(db *gorm.DB, opts CreateOpts) (*CreateResult, error) {
	opts.Email = strings.ToLower(strings.TrimSpace(opts.Email))
	opts.FirstName = strings.TrimSpace(opts.FirstName)
	opts.LastName = strings.TrimSpace(opts.LastName)
	if err := validate.Struct(opts); err != nil {
		return nil, apperr.Wrap(apperr.KindValidation, "invalid lead", err).WithOp("lead: create")
	}

	var res CreateResult
	err := db.Transaction(func(tx *gorm.DB) error {
		var existing models.Lead
		found := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			Where("email = ?", opts.Email).Order("id ASC").Limit(1).Find(&existing)
		if found.Error != nil {
			return apperr.Persistence("lead: look up email", found.Error)
		}

		now := time.Now()
		if found.RowsAffected > 0 {
			count := existing.ReInquiryCount + 1
			if err := tx.Model(&existing).Updates(map[string]interface{}{
				"re_inquiry_count": count,
				"updated_at":       now,
			}).Error; err != nil {
				return apperr.Persistence(fmt.Sprintf("lead: bump re-inquiry %d", existing.ID), err)
			}
			existing.ReInquiryCount = count
			if _, err := activity.Log(tx, existing.ID, activity.TypeReInquiry,
				fmt.Sprintf("Re-inquiry received (count: %d)", count),
				activity.LogOpts{UserID: opts.CreatedBy, At: now}); err != nil {
				return err
			}
			existing.LastActivityAt = now
			res = CreateResult{Lead: &existing, ReInquiry: true}
			return nil
		}

		stageID := opts.StageID
		if stageID == nil {
			initial, err := pipeline.InitialStage(tx)
			if err != nil {
				return err
			}
			if initial != nil {
				stageID = &initial.ID
			}
		} else if _, err := pipeline.GetStage(tx, *stageID); err != nil {
			return err
		}

		l := models.Lead{
			FirstName:      opts.FirstName,
			LastName:       opts.LastName,
			Email:          opts.Email,
			Phone:          opts.Phone,
			SourceID:       opts.SourceID,
			StageID:        stageID,
			AssignedTo:     opts.AssignedTo,
			Status:         models.LeadActive,
			LastActivityAt: now,
		}
		if err := tx.Create(&l).Error; err != nil {
			return apperr.Persistence("lead: create", err)
		}
		if _, err := activity.Log(tx, l.ID, activity.TypeLeadCreated,
			"New lead created: "+l.FullName(),
			activity.LogOpts{UserID: opts.CreatedBy, At: now}); err != nil {
			return err
		}
		res = CreateResult{Lead: &l}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &res, nil
}

// Get retrieves a lead by ID, preloading its stage and application.
func Get(db *gorm.DB, id uint) (*models.Lead, error) {
	var l models.Lead
	if err := db.Preload("Stage").Preload("Application").First(&l, id).Error; err != nil {
		return nil, apperr.Persistence(fmt.Sprintf("lead: get %d", id), err)
	}
	return &l, nil
}

// Lock loads a lead inside tx with its row locked until tx ends. Handlers
// that read a lead and then write on its behalf call this first.
func Lock(tx *gorm.DB, id uint) (*models.Lead, error) {
	var l models.Lead
	if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).First(&l, id).Error; err != nil {
		return nil, apperr.Persistence(fmt.Sprintf("lead: lock %d", id), err)
	}
	return &l, nil
}

// List returns leads matching the given filters, ordered by id.
func List(db *gorm.DB, filters ListFilters) ([]models.Lead, error) {
	q := db.Model(&models.Lead{})
	if filters.Status != "" {
		q = q.Where("status = ?", filters.Status)
	}
	if filters.StageID != nil {
		q = q.Where("stage_id = ?", *filters.StageID)
	}
	if filters.AssignedTo != nil {
		q = q.Where("assigned_to = ?", *filters.AssignedTo)
	}
	if filters.Limit > 0 {
		q = q.Limit(filters.Limit)
	}
	var leads []models.Lead
	if err := q.Order("id ASC").Find(&leads).Error; err != nil {
		return nil, apperr.Persistence("lead: list", err)
	}
	return leads, nil
}

// Assign sets a lead's assignee directly. No activity is written. A nil
// userID unassigns.
func Assign(db *gorm.DB, id uint, userID *uint) error {
	return db.Transaction(func(tx *gorm.DB) error {
		if _, err := Lock(tx, id); err != nil {
			return err
		}
		if err := tx.Model(&models.Lead{}).Where("id = ?", id).Updates(map[string]interface{}{
			"assigned_to": userID,
			"updated_at":  time.Now(),
		}).Error; err != nil {
			return apperr.Persistence(fmt.Sprintf("lead: assign %d", id), err)
		}
		return nil
	})
}

// SetStatus changes a lead's status and logs a status_change activity.
func SetStatus(db *gorm.DB, id uint, status string, actor *uint) error {
	if !isValidStatus(status) {
		return apperr.Validation("invalid lead status %q; valid: %v", status, ValidStatuses).WithOp("lead: set status")
	}
	return db.Transaction(func(tx *gorm.DB) error {
		l, err := Lock(tx, id)
		if err != nil {
			return err
		}
		if l.Status == status {
			return nil
		}
		if err := tx.Model(l).Updates(map[string]interface{}{
			"status":     status,
			"updated_at": time.Now(),
		}).Error; err != nil {
			return apperr.Persistence(fmt.Sprintf("lead: set status %d", id), err)
		}
		_, err = activity.Log(tx, id, activity.TypeStatusChange,
			fmt.Sprintf("Status changed from '%s' to '%s'", l.Status, status),
			activity.LogOpts{UserID: actor, Metadata: map[string]any{"old_status": l.Status, "new_status": status}})
		return err
	})
}

// Delete removes a lead with its activities, tasks and application.
func Delete(db *gorm.DB, id uint) error {
	return db.Transaction(func(tx *gorm.DB) error {
		if _, err := Lock(tx, id); err != nil {
			return err
		}
		for _, m := range []interface{}{&models.Activity{}, &models.Task{}, &models.Application{}} {
			if err := tx.Where("lead_id = ?", id).Delete(m).Error; err != nil {
				return apperr.Persistence(fmt.Sprintf("lead: delete %d dependents", id), err)
			}
		}
		if err := tx.Delete(&models.Lead{}, id).Error; err != nil {
			return apperr.Persistence(fmt.Sprintf("lead: delete %d", id), err)
		}
		return nil
	})
}

// Inactive returns active leads whose last activity is older than cutoff,
// ordered by id.
func Inactive(db *gorm.DB, cutoff time.Time) ([]models.Lead, error) {
	var leads []models.Lead
	err := db.Where("status = ? AND last_activity_at < ?", models.LeadActive, cutoff).
		Order("id ASC").
		Find(&leads).Error
	if err != nil {
		return nil, apperr.Persistence("lead: query inactive", err)
	}
	return leads, nil
}

func isValidStatus(s string) bool {
	for _, v := range ValidStatuses {
		if v == s {
			return true
		}
	}
	return false
}
