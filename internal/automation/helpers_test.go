package automation

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/zulandar/admitflow/internal/config"
	"github.com/zulandar/admitflow/internal/db"
	"github.com/zulandar/admitflow/internal/models"
	"github.com/zulandar/admitflow/internal/notify"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func testDB(t *testing.T) *gorm.DB {
	t.Helper()
	gormDB, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger:         logger.Default.LogMode(logger.Silent),
		TranslateError: true,
	})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	sqlDB, _ := gormDB.DB()
	sqlDB.SetMaxOpenConns(1)
	if err := db.AutoMigrate(gormDB); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	if _, err := db.SeedStages(gormDB, models.StageTypeLead, config.DefaultLeadStages); err != nil {
		t.Fatalf("seed stages: %v", err)
	}
	return gormDB
}

// seedLeadWithID inserts a lead with a fixed primary key.
func seedLeadWithID(t *testing.T, gormDB *gorm.DB, id uint, assignee *uint) *models.Lead {
	t.Helper()
	l := models.Lead{
		ID:             id,
		FirstName:      "Dorothy",
		LastName:       "Vaughan",
		Email:          "dv@example.com",
		Status:         models.LeadActive,
		AssignedTo:     assignee,
		LastActivityAt: time.Now().Add(-time.Hour),
	}
	if err := gormDB.Create(&l).Error; err != nil {
		t.Fatalf("seed lead: %v", err)
	}
	return &l
}

func boolPtr(v bool) *bool { return &v }

func uintPtr(v uint) *uint { return &v }

func mustCreate(t *testing.T, r *Registry, def Definition) *models.Workflow {
	t.Helper()
	wf, err := r.Create(def)
	if err != nil {
		t.Fatalf("create workflow %q: %v", def.Name, err)
	}
	return wf
}

func action(kind string, params map[string]any) models.Action {
	return models.Action{Kind: kind, Params: params}
}

type recordingNotifier struct {
	mu   sync.Mutex
	sent []notify.Message
	err  error
}

func (r *recordingNotifier) Send(_ context.Context, msg notify.Message) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sent = append(r.sent, msg)
	return r.err
}
