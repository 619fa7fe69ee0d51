// Package automation evaluates stored workflow rules against domain events.
//
// A firing loads the active workflows subscribed to a trigger in id order,
// matches each rule's conditions against the event context and runs the
// actions of every matching rule in declared order. Rules are isolated from
// each other: one rule failing never stops the next from running.
package automation

// Triggers.
const (
	TriggerLeadCreated        = "lead_created"
	TriggerLeadUpdated        = "lead_updated"
	TriggerStageChanged       = "stage_changed"
	TriggerApplicationCreated = "application_created"
	TriggerTaskCreated        = "task_created"
	TriggerTaskCompleted      = "task_completed"
	TriggerTaskOverdue        = "task_overdue"
	TriggerFeePaid            = "fee_paid"
	TriggerDocumentVerified   = "document_verified"
	TriggerAdmissionDecision  = "admission_decision"
	TriggerScheduledTime      = "scheduled_time"
)

// Triggers lists every trigger a workflow may subscribe to.
var Triggers = []string{
	TriggerLeadCreated,
	TriggerLeadUpdated,
	TriggerStageChanged,
	TriggerApplicationCreated,
	TriggerTaskCreated,
	TriggerTaskCompleted,
	TriggerTaskOverdue,
	TriggerFeePaid,
	TriggerDocumentVerified,
	TriggerAdmissionDecision,
	TriggerScheduledTime,
}

// IsTrigger reports whether name is a known trigger.
func IsTrigger(name string) bool {
	for _, t := range Triggers {
		if t == name {
			return true
		}
	}
	return false
}
