package dashboard

import (
	"time"

	"github.com/zulandar/admitflow/internal/automation"
	"github.com/zulandar/admitflow/internal/models"
	"gorm.io/gorm"
)

// WorkflowRow is the API form of a workflow.
type WorkflowRow struct {
	ID             uint            `json:"id"`
	Name           string          `json:"name"`
	Description    string          `json:"description"`
	Trigger        string          `json:"trigger"`
	Conditions     map[string]any  `json:"conditions"`
	Actions        []models.Action `json:"actions"`
	Active         bool            `json:"active"`
	ExecutionCount int             `json:"execution_count"`
	LastExecutedAt *time.Time      `json:"last_executed_at,omitempty"`
	UpdatedAt      time.Time       `json:"updated_at"`
}

func newWorkflowRow(wf *models.Workflow) WorkflowRow {
	return WorkflowRow{
		ID:             wf.ID,
		Name:           wf.Name,
		Description:    wf.Description,
		Trigger:        wf.Trigger,
		Conditions:     wf.Conditions,
		Actions:        wf.Actions,
		Active:         wf.Active,
		ExecutionCount: wf.ExecutionCount,
		LastExecutedAt: wf.LastExecutedAt,
		UpdatedAt:      wf.UpdatedAt,
	}
}

// RunRow is the API form of a recorded workflow run.
type RunRow struct {
	ID           uint           `json:"id"`
	FiringID     string         `json:"firing_id"`
	WorkflowID   uint           `json:"workflow_id"`
	Trigger      string         `json:"trigger"`
	Outcome      string         `json:"outcome"`
	Error        string         `json:"error,omitempty"`
	FailedAction *int           `json:"failed_action,omitempty"`
	Context      map[string]any `json:"context"`
	CreatedAt    time.Time      `json:"created_at"`
}

func newRunRow(r *models.WorkflowRun) RunRow {
	return RunRow{
		ID:           r.ID,
		FiringID:     r.FiringID,
		WorkflowID:   r.WorkflowID,
		Trigger:      r.Trigger,
		Outcome:      r.Outcome,
		Error:        r.Error,
		FailedAction: r.FailedAction,
		Context:      r.Context,
		CreatedAt:    r.CreatedAt,
	}
}

// FiringRow reports the outcome of one trigger firing.
type FiringRow struct {
	FiringID string          `json:"firing_id"`
	Fired    []uint          `json:"fired"`
	Failed   map[uint]string `json:"failed"`
	Skipped  []uint          `json:"skipped"`
}

func newFiringRow(res *automation.Result) FiringRow {
	row := FiringRow{
		FiringID: res.FiringID,
		Fired:    res.Fired,
		Skipped:  res.Skipped,
		Failed:   make(map[uint]string, len(res.Failed)),
	}
	if row.Fired == nil {
		row.Fired = []uint{}
	}
	if row.Skipped == nil {
		row.Skipped = []uint{}
	}
	for id, err := range res.Failed {
		row.Failed[id] = err.Error()
	}
	return row
}

// SweepRow reports one manual sweep.
type SweepRow struct {
	Scanned      int `json:"scanned"`
	Created      int `json:"created"`
	Skipped      int `json:"skipped"`
	Failed       int `json:"failed"`
	OverdueFired int `json:"overdue_fired"`
}

// StageCount holds the number of active leads in one stage.
type StageCount struct {
	StageID  uint   `json:"stage_id"`
	Name     string `json:"name"`
	Position int    `json:"position"`
	Leads    int    `json:"leads"`
}

// Summary is the pipeline overview.
type Summary struct {
	Stages       []StageCount   `json:"stages"`
	LeadStatus   map[string]int `json:"lead_status"`
	TaskStatus   map[string]int `json:"task_status"`
	OverdueTasks int64          `json:"overdue_tasks"`
	Workflows    int64          `json:"active_workflows"`
}

// PipelineSummary returns active leads per lead stage, lead and task
// counts by status, open overdue tasks and the active workflow count.
func PipelineSummary(db *gorm.DB) (*Summary, error) {
	s := &Summary{LeadStatus: map[string]int{}, TaskStatus: map[string]int{}}

	var stages []models.Stage
	if err := db.Where("type = ? AND active = ?", models.StageTypeLead, true).Order("position ASC, id ASC").Find(&stages).Error; err != nil {
		return nil, err
	}
	type stageRow struct {
		StageID uint
		Count   int
	}
	var perStage []stageRow
	if err := db.Model(&models.Lead{}).
		Select("stage_id, count(*) as count").
		Where("status = ? AND stage_id IS NOT NULL", models.LeadActive).
		Group("stage_id").
		Find(&perStage).Error; err != nil {
		return nil, err
	}
	counts := make(map[uint]int, len(perStage))
	for _, r := range perStage {
		counts[r.StageID] = r.Count
	}
	for _, st := range stages {
		s.Stages = append(s.Stages, StageCount{StageID: st.ID, Name: st.Name, Position: st.Order, Leads: counts[st.ID]})
	}

	type statusRow struct {
		Status string
		Count  int
	}
	var leadRows, taskRows []statusRow
	if err := db.Model(&models.Lead{}).Select("status, count(*) as count").Group("status").Find(&leadRows).Error; err != nil {
		return nil, err
	}
	for _, r := range leadRows {
		s.LeadStatus[r.Status] = r.Count
	}
	if err := db.Model(&models.Task{}).Select("status, count(*) as count").Group("status").Find(&taskRows).Error; err != nil {
		return nil, err
	}
	for _, r := range taskRows {
		s.TaskStatus[r.Status] = r.Count
	}

	if err := db.Model(&models.Task{}).
		Where("status IN ? AND due_date < ?", []string{models.TaskPending, models.TaskInProgress}, time.Now()).
		Count(&s.OverdueTasks).Error; err != nil {
		return nil, err
	}
	if err := db.Model(&models.Workflow{}).Where("active = ?", true).Count(&s.Workflows).Error; err != nil {
		return nil, err
	}
	return s, nil
}
