package activity

import (
	"testing"
	"time"

	"github.com/zulandar/admitflow/internal/apperr"
	"github.com/zulandar/admitflow/internal/db"
	"github.com/zulandar/admitflow/internal/models"
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
	return gormDB
}

func seedLead(t *testing.T, gormDB *gorm.DB, lastActivity time.Time) *models.Lead {
	t.Helper()
	l := models.Lead{FirstName: "Ada", LastName: "Lovelace", Email: "ada@example.com", Status: models.LeadActive, LastActivityAt: lastActivity}
	if err := gormDB.Create(&l).Error; err != nil {
		t.Fatalf("seed lead: %v", err)
	}
	return &l
}

func TestLog_Validation(t *testing.T) {
	if _, err := Log(nil, 0, TypeSystem, "x", LogOpts{}); !apperr.Is(err, apperr.KindValidation) {
		t.Errorf("missing lead id: err = %v", err)
	}
	if _, err := Log(nil, 1, "", "x", LogOpts{}); !apperr.Is(err, apperr.KindValidation) {
		t.Errorf("missing type: err = %v", err)
	}
}

func TestLog_UnknownLead(t *testing.T) {
	gormDB := testDB(t)
	_, err := Log(gormDB, 99, TypeSystem, "x", LogOpts{})
	if !apperr.Is(err, apperr.KindNotFound) {
		t.Fatalf("err = %v, want not found", err)
	}
}

func TestLog_AppendsAndBumps(t *testing.T) {
	gormDB := testDB(t)
	old := time.Now().Add(-72 * time.Hour)
	l := seedLead(t, gormDB, old)

	uid := uint(3)
	at := time.Now().Add(-time.Minute).Truncate(time.Second)
	act, err := Log(gormDB, l.ID, TypeSystem, "Automated activity", LogOpts{
		UserID:   &uid,
		Metadata: map[string]any{"workflow_id": 4},
		At:       at,
	})
	if err != nil {
		t.Fatalf("Log: %v", err)
	}
	if act.ID == 0 || act.LeadID != l.ID || *act.UserID != 3 {
		t.Errorf("activity = %+v", act)
	}

	var got models.Lead
	gormDB.First(&got, l.ID)
	if !got.LastActivityAt.Equal(at) {
		t.Errorf("last_activity_at = %v, want %v", got.LastActivityAt, at)
	}

	var stored models.Activity
	gormDB.First(&stored, act.ID)
	if stored.Metadata["workflow_id"] != float64(4) {
		t.Errorf("metadata = %v", stored.Metadata)
	}
}

func TestLog_NeverMovesBackwards(t *testing.T) {
	gormDB := testDB(t)
	recent := time.Now().Truncate(time.Second)
	l := seedLead(t, gormDB, recent)

	if _, err := Log(gormDB, l.ID, TypeSystem, "backdated", LogOpts{At: recent.Add(-time.Hour)}); err != nil {
		t.Fatal(err)
	}

	var got models.Lead
	gormDB.First(&got, l.ID)
	if !got.LastActivityAt.Equal(recent) {
		t.Errorf("last_activity_at = %v, want unchanged %v", got.LastActivityAt, recent)
	}
}

func TestForLead_NewestFirst(t *testing.T) {
	gormDB := testDB(t)
	l := seedLead(t, gormDB, time.Now())
	base := time.Now().Add(-time.Hour)

	for i, desc := range []string{"first", "second", "third"} {
		if _, err := Log(gormDB, l.ID, TypeSystem, desc, LogOpts{At: base.Add(time.Duration(i) * time.Minute)}); err != nil {
			t.Fatal(err)
		}
	}

	acts, err := ForLead(gormDB, l.ID, 0)
	if err != nil {
		t.Fatal(err)
	}
	if len(acts) != 3 || acts[0].Description != "third" || acts[2].Description != "first" {
		t.Errorf("order = %v", acts)
	}

	limited, _ := ForLead(gormDB, l.ID, 2)
	if len(limited) != 2 {
		t.Errorf("limited = %d, want 2", len(limited))
	}
}

func TestCountByType(t *testing.T) {
	gormDB := testDB(t)
	l := seedLead(t, gormDB, time.Now())
	Log(gormDB, l.ID, TypeStageChange, "a", LogOpts{})
	Log(gormDB, l.ID, TypeStageChange, "b", LogOpts{})
	Log(gormDB, l.ID, TypeSystem, "c", LogOpts{})

	n, err := CountByType(gormDB, l.ID, TypeStageChange)
	if err != nil {
		t.Fatal(err)
	}
	if n != 2 {
		t.Errorf("count = %d, want 2", n)
	}
}
