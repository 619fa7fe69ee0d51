package automation

import (
	"fmt"
	"strings"
	"time"

	"github.com/zulandar/admitflow/internal/models"
	"github.com/zulandar/admitflow/internal/notify"
	"github.com/zulandar/admitflow/internal/task"
)

// ActionKind is the closed set of things a workflow can do.
type ActionKind string

// Action kinds.
const (
	CreateTask       ActionKind = "create_task"
	CreateActivity   ActionKind = "create_activity"
	ChangeStage      ActionKind = "change_stage"
	AssignUser       ActionKind = "assign_user"
	SendNotification ActionKind = "send_notification"
	CallWebhook      ActionKind = "call_webhook"
)

// ActionKinds lists every supported kind.
var ActionKinds = []ActionKind{CreateTask, CreateActivity, ChangeStage, AssignUser, SendNotification, CallWebhook}

// aliases maps older spellings to a kind and the notification channel
// they imply, if any.
var aliases = map[string]struct {
	kind    ActionKind
	channel string
}{
	"webhook":    {CallWebhook, ""},
	"send_email": {SendNotification, notify.ChannelEmail},
	"send_sms":   {SendNotification, notify.ChannelSMS},
	"notify":     {SendNotification, ""},
}

// ParseKind resolves an action kind. Hyphenated spellings and legacy
// aliases are accepted.
func ParseKind(s string) (ActionKind, error) {
	k, _, err := parseKind(s)
	return k, err
}

func parseKind(s string) (ActionKind, string, error) {
	name := strings.ReplaceAll(strings.ToLower(strings.TrimSpace(s)), "-", "_")
	for _, k := range ActionKinds {
		if string(k) == name {
			return k, "", nil
		}
	}
	if a, ok := aliases[name]; ok {
		return a.kind, a.channel, nil
	}
	return "", "", fmt.Errorf("unknown action kind %q", s)
}

// Normalize rewrites an action to its canonical kind. Aliases that imply
// a notification channel set the channel param when it is unset.
func Normalize(a models.Action) (models.Action, error) {
	kind, channel, err := parseKind(a.Kind)
	if err != nil {
		return a, err
	}
	params := make(map[string]any, len(a.Params)+1)
	for k, v := range a.Params {
		params[k] = v
	}
	if channel != "" {
		if _, set := params["channel"]; !set {
			params["channel"] = channel
		}
	}
	return models.Action{Kind: string(kind), Params: params}, nil
}

// checkParams validates the kind-specific parameters of a normalized
// action and returns the offending param name on failure.
func checkParams(a models.Action) (string, error) {
	switch ActionKind(a.Kind) {
	case CreateTask:
		if v := a.Param("title"); v != nil {
			if _, ok := v.(string); !ok {
				return "title", fmt.Errorf("title must be a string")
			}
		}
		if v := a.Param("task_type"); v != nil && !containsString(task.Types, fmt.Sprint(v)) {
			return "task_type", fmt.Errorf("invalid task_type %v; valid: %v", v, task.Types)
		}
		if v := a.Param("priority"); v != nil && !containsString(task.Priorities, fmt.Sprint(v)) {
			return "priority", fmt.Errorf("invalid priority %v; valid: %v", v, task.Priorities)
		}
		if v := a.Param("due_hours"); v != nil {
			if f, ok := toFloat(v); !ok || f < 0 {
				return "due_hours", fmt.Errorf("due_hours must be a non-negative number")
			}
		}
		if v := a.Param("due_offset"); v != nil {
			if _, err := time.ParseDuration(fmt.Sprint(v)); err != nil {
				return "due_offset", fmt.Errorf("due_offset: %w", err)
			}
		}
		if v := a.Param("assigned_to"); v != nil {
			if _, ok := toID(v); !ok {
				return "assigned_to", fmt.Errorf("assigned_to must be a user id")
			}
		}
	case ChangeStage:
		if _, ok := toID(a.Param("stage_id")); !ok {
			return "stage_id", fmt.Errorf("stage_id is required")
		}
	case AssignUser:
		if _, ok := toID(a.Param("user_id")); !ok {
			return "user_id", fmt.Errorf("user_id is required")
		}
	case CallWebhook:
		u, _ := a.Param("url").(string)
		if err := validate.Var(u, "required,http_url"); err != nil {
			return "url", fmt.Errorf("url must be an http(s) URL")
		}
	}
	return "", nil
}

// stringParam returns a string param or def.
func stringParam(a models.Action, key, def string) string {
	if s, ok := a.Param(key).(string); ok && s != "" {
		return s
	}
	return def
}

// dueIn resolves a create_task due offset: due_offset (duration string)
// wins over due_hours, which defaults to 24.
func dueIn(a models.Action) time.Duration {
	if s, ok := a.Param("due_offset").(string); ok {
		if d, err := time.ParseDuration(s); err == nil {
			return d
		}
	}
	if f, ok := toFloat(a.Param("due_hours")); ok {
		return time.Duration(f * float64(time.Hour))
	}
	return task.DefaultDueIn
}

func containsString(list []string, v string) bool {
	for _, s := range list {
		if s == v {
			return true
		}
	}
	return false
}
