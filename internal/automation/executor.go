package automation

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/zulandar/admitflow/internal/activity"
	"github.com/zulandar/admitflow/internal/apperr"
	"github.com/zulandar/admitflow/internal/lead"
	"github.com/zulandar/admitflow/internal/models"
	"github.com/zulandar/admitflow/internal/notify"
	"github.com/zulandar/admitflow/internal/pipeline"
	"github.com/zulandar/admitflow/internal/task"
	"gorm.io/gorm"
)

// Notifier delivers send_notification messages.
type Notifier interface {
	Send(ctx context.Context, msg notify.Message) error
}

// ActionError reports which action of a workflow failed.
type ActionError struct {
	Index int
	Kind  string
	Err   error
}

func (e *ActionError) Error() string {
	return fmt.Sprintf("action %d (%s): %v", e.Index, e.Kind, e.Err)
}

func (e *ActionError) Unwrap() error { return e.Err }

type handlerFunc func(ctx context.Context, wf *models.Workflow, a models.Action, evt Context) error

// Executor runs workflow actions. Internal mutations (task, activity,
// stage, assignment) return their errors; notification and webhook
// failures are logged and swallowed.
type Executor struct {
	db       *gorm.DB
	notifier Notifier
	webhooks *WebhookClient
	now      func() time.Time
	handlers map[ActionKind]handlerFunc
}

func newExecutor(db *gorm.DB, notifier Notifier, webhooks *WebhookClient, now func() time.Time) *Executor {
	x := &Executor{db: db, notifier: notifier, webhooks: webhooks, now: now}
	x.handlers = map[ActionKind]handlerFunc{
		CreateTask:       x.createTask,
		CreateActivity:   x.createActivity,
		ChangeStage:      x.changeStage,
		AssignUser:       x.assignUser,
		SendNotification: x.sendNotification,
		CallWebhook:      x.callWebhook,
	}
	return x
}

// Run executes actions in order and stops at the first failure.
func (x *Executor) Run(ctx context.Context, wf *models.Workflow, actions []models.Action, evt Context) error {
	for i, a := range actions {
		kind, err := ParseKind(a.Kind)
		if err != nil {
			return &ActionError{Index: i, Kind: a.Kind, Err: apperr.Validation("%v", err)}
		}
		if err := x.handlers[kind](ctx, wf, a, evt); err != nil {
			return &ActionError{Index: i, Kind: string(kind), Err: err}
		}
	}
	return nil
}

// createTask books a pending task for the event's lead. The lead row is
// locked while its assignee is read and the task inserted.
func (x *Executor) createTask(_ context.Context, _ *models.Workflow, a models.Action, evt Context) error {
	leadID, ok := evt.LeadID()
	if !ok {
		return nil
	}
	due := x.now().Add(dueIn(a))
	return x.db.Transaction(func(tx *gorm.DB) error {
		l, err := lead.Lock(tx, leadID)
		if err != nil {
			return err
		}
		assignee := l.AssignedTo
		if id, ok := toID(a.Param("assigned_to")); ok {
			assignee = &id
		}
		_, err = task.Create(tx, task.CreateOpts{
			Title:       stringParam(a, "title", "New Task"),
			Description: stringParam(a, "description", ""),
			TaskType:    stringParam(a, "task_type", task.TypeFollowUp),
			Priority:    stringParam(a, "priority", task.PriorityMedium),
			DueDate:     &due,
			LeadID:      &leadID,
			AssignedTo:  assignee,
			CreatedBy:   evt.UserID(),
		})
		return err
	})
}

func (x *Executor) createActivity(_ context.Context, wf *models.Workflow, a models.Action, evt Context) error {
	leadID, ok := evt.LeadID()
	if !ok {
		return nil
	}
	return x.db.Transaction(func(tx *gorm.DB) error {
		if _, err := lead.Lock(tx, leadID); err != nil {
			return err
		}
		_, err := activity.Log(tx, leadID,
			stringParam(a, "activity_type", activity.TypeSystem),
			stringParam(a, "description", "Automated activity"),
			activity.LogOpts{
				UserID:   evt.UserID(),
				Metadata: map[string]any{"workflow_id": wf.ID},
				At:       x.now(),
			})
		return err
	})
}

// changeStage moves the event's lead. It does not fire stage_changed, so
// workflows cannot trigger each other in a loop.
func (x *Executor) changeStage(_ context.Context, _ *models.Workflow, a models.Action, evt Context) error {
	leadID, ok := evt.LeadID()
	if !ok {
		return nil
	}
	stageID, ok := toID(a.Param("stage_id"))
	if !ok {
		return apperr.Validation("change_stage requires stage_id")
	}
	_, err := pipeline.ChangeStage(x.db, leadID, stageID, evt.UserID())
	return err
}

func (x *Executor) assignUser(_ context.Context, _ *models.Workflow, a models.Action, evt Context) error {
	leadID, ok := evt.LeadID()
	if !ok {
		return nil
	}
	userID, ok := toID(a.Param("user_id"))
	if !ok {
		return apperr.Validation("assign_user requires user_id")
	}
	return lead.Assign(x.db, leadID, &userID)
}

func (x *Executor) sendNotification(ctx context.Context, wf *models.Workflow, a models.Action, evt Context) error {
	if x.notifier == nil {
		return nil
	}
	msg := notify.Message{
		Channel:  stringParam(a, "channel", ""),
		Subject:  stringParam(a, "subject", wf.Name),
		Text:     stringParam(a, "message", ""),
		Severity: stringParam(a, "severity", "info"),
		Fields:   notify.ContextFields(evt),
	}
	if err := x.notifier.Send(ctx, msg); err != nil {
		log.Printf("automation: workflow %d: %v", wf.ID, apperr.External("send notification", err))
	}
	return nil
}

func (x *Executor) callWebhook(ctx context.Context, wf *models.Workflow, a models.Action, evt Context) error {
	url := stringParam(a, "url", "")
	if url == "" || x.webhooks == nil {
		return nil
	}
	if err := x.webhooks.Post(ctx, url, evt); err != nil {
		log.Printf("automation: workflow %d: %v", wf.ID, err)
	}
	return nil
}
