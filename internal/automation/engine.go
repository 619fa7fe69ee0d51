package automation

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"
	"github.com/zulandar/admitflow/internal/apperr"
	"github.com/zulandar/admitflow/internal/models"
	"gorm.io/gorm"
)

// EngineOpts holds optional collaborators for an Engine.
type EngineOpts struct {
	Notifier Notifier         // send_notification target; nil drops notifications
	Webhooks *WebhookClient   // call_webhook client; nil selects the defaults
	Now      func() time.Time // clock; nil selects time.Now
}

// Engine fires workflows for domain events.
type Engine struct {
	db       *gorm.DB
	registry *Registry
	exec     *Executor
	now      func() time.Time
}

// Result reports the outcome of one firing.
type Result struct {
	FiringID string
	Fired    []uint         // workflows that ran every action, in firing order
	Failed   map[uint]error // workflows aborted by an action or bookkeeping error
	Skipped  []uint         // workflows whose conditions did not match
}

// NewEngine creates an Engine.
func NewEngine(db *gorm.DB, opts EngineOpts) *Engine {
	now := opts.Now
	if now == nil {
		now = time.Now
	}
	webhooks := opts.Webhooks
	if webhooks == nil {
		webhooks = NewWebhookClient(0, 0)
	}
	return &Engine{
		db:       db,
		registry: NewRegistry(db),
		exec:     newExecutor(db, opts.Notifier, webhooks, now),
		now:      now,
	}
}

// Registry returns the engine's workflow registry.
func (e *Engine) Registry() *Registry {
	return e.registry
}

// Fire evaluates every active workflow subscribed to trigger, in id order,
// in the calling goroutine. A failing workflow is recorded and logged and
// the next one still runs. Fire returns an error only when the trigger is
// unknown or the workflows cannot be loaded.
func (e *Engine) Fire(ctx context.Context, trigger string, evt Context) (*Result, error) {
	if !IsTrigger(trigger) {
		return nil, apperr.Validation("unknown trigger %q", trigger).WithOp("automation: fire")
	}
	wfs, err := e.registry.ListActive(trigger)
	if err != nil {
		return nil, err
	}

	res := &Result{FiringID: uuid.NewString(), Failed: make(map[uint]error)}
	snapshot := evt.Clone()

	for i := range wfs {
		wf := &wfs[i]
		if !Matches(wf.Conditions, snapshot) {
			res.Skipped = append(res.Skipped, wf.ID)
			e.record(res.FiringID, wf.ID, trigger, models.RunSkipped, nil, snapshot)
			continue
		}

		actions := append([]models.Action(nil), wf.Actions...)
		err := e.exec.Run(ctx, wf, actions, snapshot)
		if err == nil {
			err = e.markExecuted(wf.ID)
		}
		if err != nil {
			res.Failed[wf.ID] = err
			log.Printf("automation: %s workflow %d (%s) failed: %v", trigger, wf.ID, wf.Name, err)
			e.record(res.FiringID, wf.ID, trigger, models.RunFailed, err, snapshot)
			continue
		}
		res.Fired = append(res.Fired, wf.ID)
		e.record(res.FiringID, wf.ID, trigger, models.RunFired, nil, snapshot)
	}
	return res, nil
}

// markExecuted bumps the workflow's execution counter in a single UPDATE.
func (e *Engine) markExecuted(id uint) error {
	err := e.db.Model(&models.Workflow{}).Where("id = ?", id).Updates(map[string]interface{}{
		"execution_count":  gorm.Expr("execution_count + ?", 1),
		"last_executed_at": e.now(),
	}).Error
	return apperr.Persistence(fmt.Sprintf("automation: mark workflow %d executed", id), err)
}

// record writes the audit row for one workflow evaluation. Audit failures
// are logged, never returned.
func (e *Engine) record(firingID string, workflowID uint, trigger, outcome string, runErr error, evt Context) {
	run := models.WorkflowRun{
		FiringID:   firingID,
		WorkflowID: workflowID,
		Trigger:    trigger,
		Outcome:    outcome,
		Context:    map[string]any(evt),
		CreatedAt:  e.now(),
	}
	if runErr != nil {
		run.Error = runErr.Error()
		var ae *ActionError
		if errors.As(runErr, &ae) {
			idx := ae.Index
			run.FailedAction = &idx
		}
	}
	if err := e.db.Create(&run).Error; err != nil {
		log.Printf("automation: record run for workflow %d: %v", workflowID, err)
	}
}

// Replay fires a recorded run's trigger again with its stored context.
func (e *Engine) Replay(ctx context.Context, runID uint) (*Result, error) {
	var run models.WorkflowRun
	if err := e.db.First(&run, runID).Error; err != nil {
		return nil, apperr.Persistence(fmt.Sprintf("automation: get run %d", runID), err)
	}
	return e.Fire(ctx, run.Trigger, Context(run.Context))
}

// RunFilters holds optional filters for listing workflow runs.
type RunFilters struct {
	WorkflowID uint
	FiringID   string
	Outcome    string
	Limit      int
}

// Runs returns recorded workflow runs, newest first.
func Runs(db *gorm.DB, filters RunFilters) ([]models.WorkflowRun, error) {
	q := db.Model(&models.WorkflowRun{})
	if filters.WorkflowID != 0 {
		q = q.Where("workflow_id = ?", filters.WorkflowID)
	}
	if filters.FiringID != "" {
		q = q.Where("firing_id = ?", filters.FiringID)
	}
	if filters.Outcome != "" {
		q = q.Where("outcome = ?", filters.Outcome)
	}
	if filters.Limit > 0 {
		q = q.Limit(filters.Limit)
	}
	var runs []models.WorkflowRun
	if err := q.Order("id DESC").Find(&runs).Error; err != nil {
		return nil, apperr.Persistence("automation: list runs", err)
	}
	return runs, nil
}
