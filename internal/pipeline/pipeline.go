// Package pipeline implements the lead stage state machine.
//
// States are the active stages of type "lead", ordered by Order. Any stage
// may move to any other active lead stage; there is no adjacency rule and
// no terminal stage.
package pipeline

import (
	"fmt"
	"time"

	"github.com/zulandar/admitflow/internal/activity"
	"github.com/zulandar/admitflow/internal/apperr"
	"github.com/zulandar/admitflow/internal/models"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// Change describes a committed stage transition.
type Change struct {
	Lead     *models.Lead
	OldStage *models.Stage // nil when the lead had no stage
	NewStage *models.Stage
	Activity *models.Activity // nil for a same-stage no-op
}

// Changed reports whether the transition moved the lead.
func (c *Change) Changed() bool {
	return c.Activity != nil
}

// OldStageID returns the prior stage id, or nil.
func (c *Change) OldStageID() *uint {
	if c.OldStage == nil {
		return nil
	}
	id := c.OldStage.ID
	return &id
}

// Stages returns the active stages of one type in pipeline order.
func Stages(db *gorm.DB, stageType string) ([]models.Stage, error) {
	var stages []models.Stage
	err := db.Where("type = ? AND active = ?", stageType, true).
		Order("position ASC, id ASC").
		Find(&stages).Error
	if err != nil {
		return nil, apperr.Persistence("pipeline: list stages", err)
	}
	return stages, nil
}

// InitialStage returns the lowest-order active lead stage, or nil when no
// lead stages are configured.
func InitialStage(db *gorm.DB) (*models.Stage, error) {
	var stage models.Stage
	result := db.Where("type = ? AND active = ?", models.StageTypeLead, true).
		Order("position ASC, id ASC").
		Limit(1).
		Find(&stage)
	if result.Error != nil {
		return nil, apperr.Persistence("pipeline: initial stage", result.Error)
	}
	if result.RowsAffected == 0 {
		return nil, nil
	}
	return &stage, nil
}

// GetStage loads a stage by id.
func GetStage(db *gorm.DB, id uint) (*models.Stage, error) {
	var stage models.Stage
	if err := db.First(&stage, id).Error; err != nil {
		return nil, apperr.Persistence(fmt.Sprintf("pipeline: get stage %d", id), err)
	}
	return &stage, nil
}

// IsEarly reports whether a stage sits at or before the given position.
func IsEarly(stage *models.Stage, threshold int) bool {
	return stage != nil && stage.Order <= threshold
}

// ChangeStage moves a lead to stageID and appends one stage_change
// activity naming both stages. The lead row is locked for the duration of
// the transaction so concurrent transitions serialize. Moving a lead to
// the stage it already occupies is a no-op.
func ChangeStage(db *gorm.DB, leadID, stageID uint, actor *uint) (*Change, error) {
	var change Change
	err := db.Transaction(func(tx *gorm.DB) error {
		var l models.Lead
		if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).First(&l, leadID).Error; err != nil {
			return apperr.Persistence(fmt.Sprintf("pipeline: lock lead %d", leadID), err)
		}

		target, err := GetStage(tx, stageID)
		if err != nil {
			return err
		}
		if target.Type != models.StageTypeLead {
			return apperr.Validation("stage %q is a %s stage, not a lead stage", target.Name, target.Type).WithOp("pipeline: change stage")
		}
		if !target.Active {
			return apperr.Validation("stage %q is inactive", target.Name).WithOp("pipeline: change stage")
		}

		if l.StageID != nil {
			old, err := GetStage(tx, *l.StageID)
			if err != nil && !apperr.Is(err, apperr.KindNotFound) {
				return err
			}
			change.OldStage = old
		}
		change.NewStage = target

		if l.StageID != nil && *l.StageID == stageID {
			change.Lead = &l
			return nil
		}

		now := time.Now()
		if err := tx.Model(&l).Updates(map[string]interface{}{
			"stage_id":   stageID,
			"updated_at": now,
		}).Error; err != nil {
			return apperr.Persistence(fmt.Sprintf("pipeline: update lead %d", leadID), err)
		}
		l.StageID = &stageID
		l.Stage = target
		l.UpdatedAt = now

		oldName := "None"
		meta := map[string]any{
			"new_stage_id":   stageID,
			"new_stage_name": target.Name,
		}
		if change.OldStage != nil {
			oldName = change.OldStage.Name
			meta["old_stage_id"] = change.OldStage.ID
			meta["old_stage_name"] = change.OldStage.Name
		}

		act, err := activity.Log(tx, leadID, activity.TypeStageChange,
			fmt.Sprintf("Stage changed from '%s' to '%s'", oldName, target.Name),
			activity.LogOpts{UserID: actor, Metadata: meta, At: now})
		if err != nil {
			return err
		}
		l.LastActivityAt = now
		change.Lead = &l
		change.Activity = act
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &change, nil
}
