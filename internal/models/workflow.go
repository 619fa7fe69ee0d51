package models

import (
	"encoding/json"
	"fmt"
	"time"

	"gopkg.in/yaml.v3"
)

// Workflow is a stored automation rule: when Trigger fires and Conditions
// match the event context, Actions run in order.
type Workflow struct {
	ID             uint           `gorm:"primaryKey;autoIncrement"`
	Name           string         `gorm:"size:100;not null;uniqueIndex"`
	Description    string         `gorm:"type:text"`
	Trigger        string         `gorm:"column:trigger_name;size:32;not null;index"`
	Conditions     map[string]any `gorm:"serializer:json;type:text"`
	Actions        []Action       `gorm:"serializer:json;type:text;not null"`
	Active         bool           `gorm:"not null;index"`
	ExecutionCount int            `gorm:"not null;default:0"`
	LastExecutedAt *time.Time
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

// Action is one step of a workflow. On the wire it is a flat object:
// {"kind": "create_task", "title": "Welcome Call"}. The legacy key "type"
// is accepted in place of "kind".
type Action struct {
	Kind   string
	Params map[string]any
}

// Param returns a parameter value, or nil.
func (a Action) Param(key string) any {
	if a.Params == nil {
		return nil
	}
	return a.Params[key]
}

// MarshalJSON flattens the action into a single object.
func (a Action) MarshalJSON() ([]byte, error) {
	return json.Marshal(a.flat())
}

// UnmarshalJSON accepts the flat form.
func (a *Action) UnmarshalJSON(data []byte) error {
	var raw map[string]any
	if err := json.Unmarshal(data, &raw); err != nil {
		return fmt.Errorf("models: decode action: %w", err)
	}
	return a.fromFlat(raw)
}

// MarshalYAML flattens the action into a single mapping.
func (a Action) MarshalYAML() (interface{}, error) {
	return a.flat(), nil
}

// UnmarshalYAML accepts the flat form.
func (a *Action) UnmarshalYAML(node *yaml.Node) error {
	var raw map[string]any
	if err := node.Decode(&raw); err != nil {
		return fmt.Errorf("models: decode action: %w", err)
	}
	return a.fromFlat(raw)
}

func (a Action) flat() map[string]any {
	out := make(map[string]any, len(a.Params)+1)
	for k, v := range a.Params {
		out[k] = v
	}
	out["kind"] = a.Kind
	return out
}

func (a *Action) fromFlat(raw map[string]any) error {
	kind, _ := raw["kind"].(string)
	if kind == "" {
		kind, _ = raw["type"].(string)
	}
	params := make(map[string]any, len(raw))
	for k, v := range raw {
		if k == "kind" || k == "type" {
			continue
		}
		params[k] = v
	}
	if nested, ok := raw["params"].(map[string]any); ok {
		delete(params, "params")
		for k, v := range nested {
			params[k] = v
		}
	}
	a.Kind = kind
	a.Params = params
	return nil
}

// Workflow run outcomes.
const (
	RunFired   = "fired"
	RunFailed  = "failed"
	RunSkipped = "skipped"
)

// WorkflowRun records one rule evaluation inside a firing. Rows sharing a
// FiringID were evaluated for the same trigger occurrence.
type WorkflowRun struct {
	ID           uint           `gorm:"primaryKey;autoIncrement"`
	FiringID     string         `gorm:"size:36;not null;index"`
	WorkflowID   uint           `gorm:"not null;index"`
	Trigger      string         `gorm:"column:trigger_name;size:32;not null"`
	Outcome      string         `gorm:"size:16;not null;index"`
	Error        string         `gorm:"type:text"`
	FailedAction *int
	Context      map[string]any `gorm:"serializer:json;type:text"`
	CreatedAt    time.Time      `gorm:"index"`
}
