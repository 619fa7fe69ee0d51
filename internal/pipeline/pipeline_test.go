package pipeline

import (
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/zulandar/admitflow/internal/activity"
	"github.com/zulandar/admitflow/internal/apperr"
	"github.com/zulandar/admitflow/internal/config"
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
	if _, err := db.SeedStages(gormDB, models.StageTypeLead, config.DefaultLeadStages); err != nil {
		t.Fatalf("seed stages: %v", err)
	}
	return gormDB
}

func stageByName(t *testing.T, gormDB *gorm.DB, name string) models.Stage {
	t.Helper()
	var s models.Stage
	if err := gormDB.Where("name = ?", name).First(&s).Error; err != nil {
		t.Fatalf("stage %q: %v", name, err)
	}
	return s
}

func seedLead(t *testing.T, gormDB *gorm.DB, stageID *uint) *models.Lead {
	t.Helper()
	l := models.Lead{FirstName: "Grace", LastName: "Hopper", Email: "grace@example.com", Status: models.LeadActive, StageID: stageID, LastActivityAt: time.Now().Add(-time.Hour)}
	if err := gormDB.Create(&l).Error; err != nil {
		t.Fatalf("seed lead: %v", err)
	}
	return &l
}

func TestStages_Ordered(t *testing.T) {
	gormDB := testDB(t)
	stages, err := Stages(gormDB, models.StageTypeLead)
	if err != nil {
		t.Fatal(err)
	}
	var names []string
	for _, s := range stages {
		names = append(names, s.Name)
	}
	if got := strings.Join(names, ","); got != "Inquiry,Lead,Application,Admission,Enrollment" {
		t.Errorf("stages = %s", got)
	}
}

func TestInitialStage(t *testing.T) {
	gormDB := testDB(t)
	s, err := InitialStage(gormDB)
	if err != nil {
		t.Fatal(err)
	}
	if s == nil || s.Name != "Inquiry" {
		t.Errorf("initial stage = %+v, want Inquiry", s)
	}

	gormDB.Model(&models.Stage{}).Where("name = ?", "Inquiry").Update("active", false)
	s, _ = InitialStage(gormDB)
	if s == nil || s.Name != "Lead" {
		t.Errorf("initial stage after deactivation = %+v, want Lead", s)
	}
}

func TestInitialStage_NoneConfigured(t *testing.T) {
	gormDB := testDB(t)
	gormDB.Where("1 = 1").Delete(&models.Stage{})
	s, err := InitialStage(gormDB)
	if err != nil || s != nil {
		t.Errorf("InitialStage() = %v, %v; want nil, nil", s, err)
	}
}

func TestIsEarly(t *testing.T) {
	tests := []struct {
		order     int
		threshold int
		want      bool
	}{
		{1, 2, true},
		{2, 2, true},
		{3, 2, false},
	}
	for _, tt := range tests {
		if got := IsEarly(&models.Stage{Order: tt.order}, tt.threshold); got != tt.want {
			t.Errorf("IsEarly(order=%d, %d) = %v, want %v", tt.order, tt.threshold, got, tt.want)
		}
	}
	if IsEarly(nil, 5) {
		t.Error("IsEarly(nil) should be false")
	}
}

func TestChangeStage_AppendsOneActivity(t *testing.T) {
	gormDB := testDB(t)
	inquiry := stageByName(t, gormDB, "Inquiry")
	app := stageByName(t, gormDB, "Application")
	l := seedLead(t, gormDB, &inquiry.ID)
	actor := uint(5)

	change, err := ChangeStage(gormDB, l.ID, app.ID, &actor)
	if err != nil {
		t.Fatalf("ChangeStage: %v", err)
	}
	if !change.Changed() {
		t.Fatal("expected a change")
	}
	if *change.OldStageID() != inquiry.ID || change.NewStage.ID != app.ID {
		t.Errorf("change = %+v", change)
	}

	var got models.Lead
	gormDB.First(&got, l.ID)
	if got.StageID == nil || *got.StageID != app.ID {
		t.Errorf("stage_id = %v, want %d", got.StageID, app.ID)
	}

	acts, _ := activity.ForLead(gormDB, l.ID, 0)
	if len(acts) != 1 {
		t.Fatalf("activities = %d, want 1", len(acts))
	}
	a := acts[0]
	if a.Type != activity.TypeStageChange {
		t.Errorf("type = %q", a.Type)
	}
	if a.Description != "Stage changed from 'Inquiry' to 'Application'" {
		t.Errorf("description = %q", a.Description)
	}
	if a.Metadata["old_stage_id"] != float64(inquiry.ID) || a.Metadata["new_stage_id"] != float64(app.ID) {
		t.Errorf("metadata = %v", a.Metadata)
	}
	if a.UserID == nil || *a.UserID != 5 {
		t.Errorf("user_id = %v", a.UserID)
	}
}

func TestChangeStage_FromNoStage(t *testing.T) {
	gormDB := testDB(t)
	lead := stageByName(t, gormDB, "Lead")
	l := seedLead(t, gormDB, nil)

	change, err := ChangeStage(gormDB, l.ID, lead.ID, nil)
	if err != nil {
		t.Fatal(err)
	}
	if change.OldStageID() != nil {
		t.Errorf("old stage = %v, want nil", change.OldStageID())
	}
	if !strings.Contains(change.Activity.Description, "'None'") {
		t.Errorf("description = %q", change.Activity.Description)
	}
}

func TestChangeStage_BackwardsAllowed(t *testing.T) {
	gormDB := testDB(t)
	enroll := stageByName(t, gormDB, "Enrollment")
	inquiry := stageByName(t, gormDB, "Inquiry")
	l := seedLead(t, gormDB, &enroll.ID)

	if _, err := ChangeStage(gormDB, l.ID, inquiry.ID, nil); err != nil {
		t.Fatalf("revert stage: %v", err)
	}
}

func TestChangeStage_SameStageIsNoop(t *testing.T) {
	gormDB := testDB(t)
	inquiry := stageByName(t, gormDB, "Inquiry")
	l := seedLead(t, gormDB, &inquiry.ID)

	change, err := ChangeStage(gormDB, l.ID, inquiry.ID, nil)
	if err != nil {
		t.Fatal(err)
	}
	if change.Changed() {
		t.Error("same-stage change should be a no-op")
	}
	n, _ := activity.CountByType(gormDB, l.ID, activity.TypeStageChange)
	if n != 0 {
		t.Errorf("activities = %d, want 0", n)
	}
}

func TestChangeStage_Errors(t *testing.T) {
	gormDB := testDB(t)
	inquiry := stageByName(t, gormDB, "Inquiry")
	l := seedLead(t, gormDB, &inquiry.ID)

	appStage := models.Stage{Name: "Fee Payment", Type: models.StageTypeApplication, Order: 1, Active: true}
	gormDB.Create(&appStage)
	retired := models.Stage{Name: "Retired", Type: models.StageTypeLead, Order: 9, Active: false}
	gormDB.Create(&retired)

	tests := []struct {
		name   string
		leadID uint
		stage  uint
		kind   apperr.Kind
	}{
		{"missing lead", 999, inquiry.ID, apperr.KindNotFound},
		{"missing stage", l.ID, 999, apperr.KindNotFound},
		{"application stage", l.ID, appStage.ID, apperr.KindValidation},
		{"inactive stage", l.ID, retired.ID, apperr.KindValidation},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ChangeStage(gormDB, tt.leadID, tt.stage, nil)
			if !apperr.Is(err, tt.kind) {
				t.Errorf("err = %v, want kind %v", err, tt.kind)
			}
		})
	}

	var got models.Lead
	gormDB.First(&got, l.ID)
	if *got.StageID != inquiry.ID {
		t.Errorf("failed transitions must not move the lead, stage = %d", *got.StageID)
	}
}

func TestChangeStage_ConcurrentTransitionsSerialize(t *testing.T) {
	gormDB := testDB(t)
	stages, _ := Stages(gormDB, models.StageTypeLead)
	l := seedLead(t, gormDB, &stages[0].ID)

	var wg sync.WaitGroup
	errs := make(chan error, len(stages)-1)
	for _, s := range stages[1:] {
		wg.Add(1)
		go func(id uint) {
			defer wg.Done()
			if _, err := ChangeStage(gormDB, l.ID, id, nil); err != nil {
				errs <- fmt.Errorf("stage %d: %w", id, err)
			}
		}(s.ID)
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		t.Error(err)
	}

	n, _ := activity.CountByType(gormDB, l.ID, activity.TypeStageChange)
	if n != int64(len(stages)-1) {
		t.Errorf("stage_change activities = %d, want %d", n, len(stages)-1)
	}
}
