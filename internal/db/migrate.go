package db

import (
	"fmt"

	"github.com/zulandar/admitflow/internal/models"
	"gorm.io/gorm"
)

// AllModels returns every GORM model for migration.
func AllModels() []interface{} {
	return []interface{}{
		&models.Source{},
		&models.Stage{},
		&models.Lead{},
		&models.Application{},
		&models.Task{},
		&models.Activity{},
		&models.Workflow{},
		&models.WorkflowRun{},
	}
}

// AutoMigrate creates or updates all tables.
func AutoMigrate(db *gorm.DB) error {
	if err := db.AutoMigrate(AllModels()...); err != nil {
		return fmt.Errorf("db: auto-migrate: %w", err)
	}
	return nil
}

// SeedStages inserts missing stages of the given type, assigning order by
// position in names (1-based). Existing stages are matched by name and type
// and have their order refreshed; stages not in names are left untouched.
func SeedStages(db *gorm.DB, stageType string, names []string) (int, error) {
	created := 0
	err := db.Transaction(func(tx *gorm.DB) error {
		for i, name := range names {
			var existing models.Stage
			result := tx.Where("name = ? AND type = ?", name, stageType).Limit(1).Find(&existing)
			if result.Error != nil {
				return fmt.Errorf("db: look up stage %q: %w", name, result.Error)
			}
			if result.RowsAffected > 0 {
				if err := tx.Model(&existing).Updates(map[string]interface{}{
					"position": i + 1,
					"active":   true,
				}).Error; err != nil {
					return fmt.Errorf("db: update stage %q: %w", name, err)
				}
				continue
			}
			stage := models.Stage{Name: name, Type: stageType, Order: i + 1, Active: true}
			if err := tx.Create(&stage).Error; err != nil {
				return fmt.Errorf("db: seed stage %q: %w", name, err)
			}
			created++
		}
		return nil
	})
	return created, err
}
