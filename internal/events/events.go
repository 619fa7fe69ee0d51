// Package events turns committed domain changes into automation firings.
//
// The On* methods are the ingestion API for callers that have already
// committed a change. The remaining methods perform the change and then
// fire. Either way the domain change is never rolled back because of an
// automation failure.
package events

import (
	"context"
	"log"
	"time"

	"github.com/zulandar/admitflow/internal/activity"
	"github.com/zulandar/admitflow/internal/application"
	"github.com/zulandar/admitflow/internal/automation"
	"github.com/zulandar/admitflow/internal/lead"
	"github.com/zulandar/admitflow/internal/models"
	"github.com/zulandar/admitflow/internal/pipeline"
	"github.com/zulandar/admitflow/internal/task"
	"gorm.io/gorm"
)

// Firer fires a trigger with an event context.
type Firer interface {
	Fire(ctx context.Context, trigger string, evt automation.Context) (*automation.Result, error)
}

// Service builds event contexts and fires them.
type Service struct {
	db    *gorm.DB
	firer Firer
	now   func() time.Time
}

// NewService creates a Service.
func NewService(db *gorm.DB, firer Firer) *Service {
	return &Service{db: db, firer: firer, now: time.Now}
}

// newContext seeds a context with the acting user when one is known.
func newContext(userID *uint) automation.Context {
	ctx := automation.Context{}
	if userID != nil {
		ctx[automation.KeyUserID] = *userID
	}
	return ctx
}

// fire runs the engine and logs, rather than returns, its errors.
func (s *Service) fire(ctx context.Context, trigger string, evt automation.Context) *automation.Result {
	res, err := s.firer.Fire(ctx, trigger, evt)
	if err != nil {
		log.Printf("events: fire %s: %v", trigger, err)
		return nil
	}
	return res
}

// OnLeadCreated fires lead_created.
func (s *Service) OnLeadCreated(ctx context.Context, leadID uint, userID *uint) *automation.Result {
	evt := newContext(userID)
	evt[automation.KeyLeadID] = leadID
	return s.fire(ctx, automation.TriggerLeadCreated, evt)
}

// OnLeadUpdated fires lead_updated.
func (s *Service) OnLeadUpdated(ctx context.Context, leadID uint, userID *uint, extra map[string]any) *automation.Result {
	evt := newContext(userID)
	for k, v := range extra {
		evt[k] = v
	}
	evt[automation.KeyLeadID] = leadID
	return s.fire(ctx, automation.TriggerLeadUpdated, evt)
}

// OnStageChanged fires stage_changed. oldStageID is nil when the lead had
// no stage.
func (s *Service) OnStageChanged(ctx context.Context, leadID uint, oldStageID *uint, newStageID uint, userID *uint) *automation.Result {
	evt := newContext(userID)
	evt[automation.KeyLeadID] = leadID
	evt[automation.KeyNewStageID] = newStageID
	if oldStageID != nil {
		evt[automation.KeyOldStageID] = *oldStageID
	} else {
		evt[automation.KeyOldStageID] = nil
	}
	return s.fire(ctx, automation.TriggerStageChanged, evt)
}

// OnApplicationCreated fires application_created and then books the
// application checklist for the lead. A checklist failure is logged.
func (s *Service) OnApplicationCreated(ctx context.Context, applicationID, leadID uint, userID *uint) *automation.Result {
	evt := newContext(userID)
	evt[automation.KeyApplicationID] = applicationID
	evt[automation.KeyLeadID] = leadID
	res := s.fire(ctx, automation.TriggerApplicationCreated, evt)

	var assignee *uint
	if l, err := lead.Get(s.db, leadID); err != nil {
		log.Printf("events: application %d: load lead %d: %v", applicationID, leadID, err)
	} else {
		assignee = l.AssignedTo
	}
	if _, err := task.CreateApplicationChecklist(s.db, leadID, assignee, userID, s.now()); err != nil {
		log.Printf("events: application %d: %v", applicationID, err)
	}
	return res
}

// OnTaskCompleted fires task_completed for a stored task.
func (s *Service) OnTaskCompleted(ctx context.Context, taskID uint, userID *uint) (*automation.Result, error) {
	t, err := task.Get(s.db, taskID)
	if err != nil {
		return nil, err
	}
	return s.fire(ctx, automation.TriggerTaskCompleted, taskContext(t, userID)), nil
}

// OnTaskOverdue fires task_overdue for a task.
func (s *Service) OnTaskOverdue(ctx context.Context, t *models.Task) *automation.Result {
	return s.fire(ctx, automation.TriggerTaskOverdue, taskContext(t, nil))
}

func taskContext(t *models.Task, userID *uint) automation.Context {
	evt := newContext(userID)
	evt[automation.KeyTaskID] = t.ID
	evt[automation.KeyTaskType] = t.TaskType
	if t.LeadID != nil {
		evt[automation.KeyLeadID] = *t.LeadID
	}
	if t.AssignedTo != nil {
		evt[automation.KeyAssignedTo] = *t.AssignedTo
	}
	return evt
}

// CreateLead creates a lead and fires lead_created, or lead_updated when
// the email matched an existing lead.
func (s *Service) CreateLead(ctx context.Context, opts lead.CreateOpts) (*lead.CreateResult, *automation.Result, error) {
	res, err := lead.Create(s.db, opts)
	if err != nil {
		return nil, nil, err
	}
	if res.ReInquiry {
		return res, s.OnLeadUpdated(ctx, res.Lead.ID, opts.CreatedBy, map[string]any{
			"re_inquiry_count": res.Lead.ReInquiryCount,
		}), nil
	}
	return res, s.OnLeadCreated(ctx, res.Lead.ID, opts.CreatedBy), nil
}

// AssignLead assigns a lead and fires lead_updated.
func (s *Service) AssignLead(ctx context.Context, leadID uint, assignee, actor *uint) (*automation.Result, error) {
	if err := lead.Assign(s.db, leadID, assignee); err != nil {
		return nil, err
	}
	extra := map[string]any{}
	if assignee != nil {
		extra[automation.KeyAssignedTo] = *assignee
	}
	return s.OnLeadUpdated(ctx, leadID, actor, extra), nil
}

// ChangeStage moves a lead and fires stage_changed. A same-stage move
// fires nothing.
func (s *Service) ChangeStage(ctx context.Context, leadID, stageID uint, actor *uint) (*pipeline.Change, *automation.Result, error) {
	change, err := pipeline.ChangeStage(s.db, leadID, stageID, actor)
	if err != nil {
		return nil, nil, err
	}
	if !change.Changed() {
		return change, nil, nil
	}
	return change, s.OnStageChanged(ctx, leadID, change.OldStageID(), stageID, actor), nil
}

// ConvertLead creates the lead's application and fires
// application_created.
func (s *Service) ConvertLead(ctx context.Context, leadID uint, actor *uint) (*models.Application, *automation.Result, error) {
	app, err := application.Create(s.db, leadID, actor)
	if err != nil {
		return nil, nil, err
	}
	return app, s.OnApplicationCreated(ctx, app.ID, leadID, actor), nil
}

// CreateTask creates a task and fires task_created. A task linked to a
// lead appends task_created to the lead's timeline in the same
// transaction.
func (s *Service) CreateTask(ctx context.Context, opts task.CreateOpts) (*models.Task, *automation.Result, error) {
	var t *models.Task
	err := s.db.Transaction(func(tx *gorm.DB) error {
		var err error
		if t, err = task.Create(tx, opts); err != nil {
			return err
		}
		if t.LeadID == nil {
			return nil
		}
		_, err = activity.Log(tx, *t.LeadID, activity.TypeTaskCreated, "Task created: "+t.Title, activity.LogOpts{
			UserID:   opts.CreatedBy,
			Metadata: map[string]any{"task_id": t.ID},
			At:       s.now(),
		})
		return err
	})
	if err != nil {
		return nil, nil, err
	}
	return t, s.fire(ctx, automation.TriggerTaskCreated, taskContext(t, opts.CreatedBy)), nil
}

// CompleteTask completes a task and fires task_completed.
func (s *Service) CompleteTask(ctx context.Context, taskID uint, actor *uint, notes string) (*models.Task, *automation.Result, error) {
	t, err := task.CompleteAt(s.db, taskID, actor, notes, s.now())
	if err != nil {
		return nil, nil, err
	}
	return t, s.fire(ctx, automation.TriggerTaskCompleted, taskContext(t, actor)), nil
}

// UpdateApplicationStatus updates one application sub-process and fires
// document_verified, fee_paid or admission_decision when the change calls
// for it.
func (s *Service) UpdateApplicationStatus(ctx context.Context, applicationID uint, process, status string, actor *uint) (*application.StatusChange, *automation.Result, error) {
	change, err := application.UpdateStatus(s.db, applicationID, process, status, actor)
	if err != nil {
		return nil, nil, err
	}
	trigger := change.Trigger()
	if trigger == "" {
		return change, nil, nil
	}
	evt := newContext(actor)
	evt[automation.KeyApplicationID] = applicationID
	evt[automation.KeyLeadID] = change.Application.LeadID
	evt["process"] = process
	evt["status"] = status
	return change, s.fire(ctx, trigger, evt), nil
}
