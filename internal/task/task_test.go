package task

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

func seedLead(t *testing.T, gormDB *gorm.DB, assignee *uint) *models.Lead {
	t.Helper()
	l := models.Lead{FirstName: "Katherine", LastName: "Johnson", Email: "kj@example.com", Status: models.LeadActive, AssignedTo: assignee, LastActivityAt: time.Now()}
	if err := gormDB.Create(&l).Error; err != nil {
		t.Fatalf("seed lead: %v", err)
	}
	return &l
}

func uintPtr(v uint) *uint { return &v }

func TestIsValidTransition(t *testing.T) {
	tests := []struct {
		from string
		to   string
		want bool
	}{
		{models.TaskPending, models.TaskInProgress, true},
		{models.TaskPending, models.TaskCompleted, true},
		{models.TaskPending, models.TaskCancelled, true},
		{models.TaskInProgress, models.TaskPending, true},
		{models.TaskInProgress, models.TaskCompleted, true},
		{models.TaskCompleted, models.TaskPending, true},
		{models.TaskCancelled, models.TaskPending, true},

		{models.TaskCompleted, models.TaskInProgress, false},
		{models.TaskCompleted, models.TaskCancelled, false},
		{models.TaskCancelled, models.TaskCompleted, false},
		{models.TaskPending, models.TaskPending, false},
		{"unknown", models.TaskPending, false},
	}
	for _, tt := range tests {
		if got := isValidTransition(tt.from, tt.to); got != tt.want {
			t.Errorf("isValidTransition(%q, %q) = %v, want %v", tt.from, tt.to, got, tt.want)
		}
	}
}

func TestCreate_Defaults(t *testing.T) {
	gormDB := testDB(t)
	l := seedLead(t, gormDB, nil)

	tk, err := Create(gormDB, CreateOpts{Title: "Call back", LeadID: &l.ID})
	if err != nil {
		t.Fatal(err)
	}
	if tk.Status != models.TaskPending || tk.TaskType != TypeFollowUp || tk.Priority != PriorityMedium {
		t.Errorf("task = %+v", tk)
	}
}

func TestCreate_Validation(t *testing.T) {
	tests := []struct {
		name string
		opts CreateOpts
	}{
		{"missing title", CreateOpts{}},
		{"bad type", CreateOpts{Title: "x", TaskType: "fax"}},
		{"bad priority", CreateOpts{Title: "x", Priority: "asap"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := Create(nil, tt.opts); !apperr.Is(err, apperr.KindValidation) {
				t.Errorf("err = %v, want validation", err)
			}
		})
	}
}

func TestCompleteAndReopen(t *testing.T) {
	gormDB := testDB(t)
	l := seedLead(t, gormDB, nil)
	tk, _ := Create(gormDB, CreateOpts{Title: "Collect transcript", LeadID: &l.ID})

	done, err := Complete(gormDB, tk.ID, uintPtr(4), "received by mail")
	if err != nil {
		t.Fatalf("Complete: %v", err)
	}
	if done.Status != models.TaskCompleted || done.CompletedAt == nil || *done.CompletedBy != 4 || done.CompletionNotes != "received by mail" {
		t.Errorf("completed task = %+v", done)
	}

	if _, err := Complete(gormDB, tk.ID, nil, ""); !apperr.Is(err, apperr.KindValidation) {
		t.Errorf("double complete: err = %v, want validation", err)
	}

	reopened, err := Reopen(gormDB, tk.ID)
	if err != nil {
		t.Fatalf("Reopen: %v", err)
	}
	if reopened.Status != models.TaskPending || reopened.CompletedAt != nil || reopened.CompletedBy != nil || reopened.CompletionNotes != "" {
		t.Errorf("reopened task = %+v", reopened)
	}
}

func TestComplete_NotFound(t *testing.T) {
	gormDB := testDB(t)
	if _, err := Complete(gormDB, 77, nil, ""); !apperr.Is(err, apperr.KindNotFound) {
		t.Errorf("err = %v, want not found", err)
	}
}

func TestHasPending(t *testing.T) {
	gormDB := testDB(t)
	l := seedLead(t, gormDB, nil)

	has, err := HasPending(gormDB, l.ID, TypeFollowUp)
	if err != nil || has {
		t.Fatalf("HasPending on empty = %v, %v", has, err)
	}

	tk, _ := Create(gormDB, CreateOpts{Title: "call", LeadID: &l.ID, TaskType: TypeCall})
	has, _ = HasPending(gormDB, l.ID, TypeFollowUp)
	if has {
		t.Error("a call task is not a follow-up")
	}

	fu, _ := Create(gormDB, CreateOpts{Title: "fu", LeadID: &l.ID})
	has, _ = HasPending(gormDB, l.ID, TypeFollowUp)
	if !has {
		t.Error("expected pending follow-up")
	}

	Complete(gormDB, fu.ID, nil, "")
	has, _ = HasPending(gormDB, l.ID, TypeFollowUp)
	if has {
		t.Errorf("completed follow-up must not count (call task %d)", tk.ID)
	}
}

func TestCreateFollowUp(t *testing.T) {
	gormDB := testDB(t)
	l := seedLead(t, gormDB, uintPtr(12))
	now := time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC)

	tk, err := CreateFollowUp(gormDB, l, now, 72*time.Hour, 24*time.Hour)
	if err != nil {
		t.Fatal(err)
	}
	if tk.Title != "Follow-up: Katherine Johnson" {
		t.Errorf("title = %q", tk.Title)
	}
	if tk.Description != "Lead has been inactive for 72+ hours. Follow up required." || tk.TaskType != TypeFollowUp {
		t.Errorf("task = %+v", tk)
	}
	if tk.AssignedTo == nil || *tk.AssignedTo != 12 {
		t.Errorf("assigned_to = %v, want 12", tk.AssignedTo)
	}
	if !tk.DueDate.Equal(now.Add(24 * time.Hour)) {
		t.Errorf("due = %v", tk.DueDate)
	}
}

func TestCreateApplicationChecklist(t *testing.T) {
	gormDB := testDB(t)
	l := seedLead(t, gormDB, uintPtr(2))
	now := time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC)

	tasks, err := CreateApplicationChecklist(gormDB, l.ID, l.AssignedTo, nil, now)
	if err != nil {
		t.Fatal(err)
	}
	if len(tasks) != 4 {
		t.Fatalf("tasks = %d, want 4", len(tasks))
	}
	if tasks[0].Title != "Verify documents" || tasks[0].TaskType != TypeDocumentCollection || tasks[0].Priority != PriorityHigh {
		t.Errorf("first = %+v", tasks[0])
	}
	for _, tk := range tasks {
		if !tk.DueDate.Equal(now.Add(72 * time.Hour)) {
			t.Errorf("%s due = %v", tk.Title, tk.DueDate)
		}
	}
}

func TestOverdueAndMark(t *testing.T) {
	gormDB := testDB(t)
	l := seedLead(t, gormDB, nil)
	now := time.Now()
	past := now.Add(-time.Hour)
	future := now.Add(time.Hour)

	late, _ := Create(gormDB, CreateOpts{Title: "late", LeadID: &l.ID, DueDate: &past})
	Create(gormDB, CreateOpts{Title: "on time", LeadID: &l.ID, DueDate: &future})
	Create(gormDB, CreateOpts{Title: "no due", LeadID: &l.ID})
	doneLate, _ := Create(gormDB, CreateOpts{Title: "done late", LeadID: &l.ID, DueDate: &past})
	Complete(gormDB, doneLate.ID, nil, "")

	tasks, err := Overdue(gormDB, now)
	if err != nil {
		t.Fatal(err)
	}
	if len(tasks) != 1 || tasks[0].ID != late.ID {
		t.Fatalf("overdue = %+v", tasks)
	}

	ok, err := MarkOverdueFired(gormDB, late.ID, now)
	if err != nil || !ok {
		t.Fatalf("first mark = %v, %v", ok, err)
	}
	ok, _ = MarkOverdueFired(gormDB, late.ID, now)
	if ok {
		t.Error("second mark should lose")
	}
	tasks, _ = Overdue(gormDB, now)
	if len(tasks) != 0 {
		t.Errorf("stamped task still overdue: %+v", tasks)
	}

	if err := Reschedule(gormDB, late.ID, past.Add(-time.Minute)); err != nil {
		t.Fatal(err)
	}
	tasks, _ = Overdue(gormDB, now)
	if len(tasks) != 1 {
		t.Errorf("rescheduled task should be overdue again, got %d", len(tasks))
	}
}

func TestList_OrderAndFilters(t *testing.T) {
	gormDB := testDB(t)
	l := seedLead(t, gormDB, nil)
	early := time.Now().Add(time.Hour)
	later := time.Now().Add(2 * time.Hour)

	Create(gormDB, CreateOpts{Title: "undated", LeadID: &l.ID})
	Create(gormDB, CreateOpts{Title: "later", LeadID: &l.ID, DueDate: &later})
	Create(gormDB, CreateOpts{Title: "early", LeadID: &l.ID, DueDate: &early, TaskType: TypeCall})

	tasks, err := List(gormDB, ListFilters{LeadID: &l.ID})
	if err != nil {
		t.Fatal(err)
	}
	if len(tasks) != 3 || tasks[0].Title != "early" || tasks[2].Title != "undated" {
		t.Errorf("order = %v", tasks)
	}

	calls, _ := List(gormDB, ListFilters{TaskType: TypeCall})
	if len(calls) != 1 {
		t.Errorf("calls = %d", len(calls))
	}
}
