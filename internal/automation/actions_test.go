package automation

import (
	"testing"
	"time"

	"github.com/zulandar/admitflow/internal/models"
)

func TestParseKind(t *testing.T) {
	tests := []struct {
		in      string
		want    ActionKind
		wantErr bool
	}{
		{"create_task", CreateTask, false},
		{"create-task", CreateTask, false},
		{" Create-Activity ", CreateActivity, false},
		{"change_stage", ChangeStage, false},
		{"assign-user", AssignUser, false},
		{"send_notification", SendNotification, false},
		{"send_email", SendNotification, false},
		{"send_sms", SendNotification, false},
		{"webhook", CallWebhook, false},
		{"call-webhook", CallWebhook, false},
		{"launch_rocket", "", true},
		{"", "", true},
	}
	for _, tt := range tests {
		got, err := ParseKind(tt.in)
		if (err != nil) != tt.wantErr {
			t.Errorf("ParseKind(%q) err = %v, wantErr %v", tt.in, err, tt.wantErr)
			continue
		}
		if got != tt.want {
			t.Errorf("ParseKind(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestNormalize_AliasSetsChannel(t *testing.T) {
	a, err := Normalize(models.Action{Kind: "send_email", Params: map[string]any{"subject": "hi"}})
	if err != nil {
		t.Fatal(err)
	}
	if a.Kind != string(SendNotification) || a.Param("channel") != "email" || a.Param("subject") != "hi" {
		t.Errorf("normalized = %+v", a)
	}

	explicit, _ := Normalize(models.Action{Kind: "send_sms", Params: map[string]any{"channel": "slack"}})
	if explicit.Param("channel") != "slack" {
		t.Errorf("explicit channel overwritten: %+v", explicit)
	}
}

func TestCheckParams(t *testing.T) {
	tests := []struct {
		name      string
		action    models.Action
		wantParam string
	}{
		{"bare create_task", models.Action{Kind: "create_task"}, ""},
		{"create_task full", models.Action{Kind: "create_task", Params: map[string]any{"title": "x", "task_type": "call", "priority": "high", "due_hours": 4, "assigned_to": 3.0}}, ""},
		{"create_task bad priority", models.Action{Kind: "create_task", Params: map[string]any{"priority": "asap"}}, "priority"},
		{"create_task bad type", models.Action{Kind: "create_task", Params: map[string]any{"task_type": "fax"}}, "task_type"},
		{"create_task negative due", models.Action{Kind: "create_task", Params: map[string]any{"due_hours": -1}}, "due_hours"},
		{"create_task bad offset", models.Action{Kind: "create_task", Params: map[string]any{"due_offset": "soon"}}, "due_offset"},
		{"change_stage missing", models.Action{Kind: "change_stage"}, "stage_id"},
		{"change_stage ok", models.Action{Kind: "change_stage", Params: map[string]any{"stage_id": 2}}, ""},
		{"assign_user missing", models.Action{Kind: "assign_user", Params: map[string]any{"user_id": 0}}, "user_id"},
		{"assign_user ok", models.Action{Kind: "assign_user", Params: map[string]any{"user_id": 5.0}}, ""},
		{"webhook missing url", models.Action{Kind: "call_webhook"}, "url"},
		{"webhook ftp", models.Action{Kind: "call_webhook", Params: map[string]any{"url": "ftp://example.com/x"}}, "url"},
		{"webhook ok", models.Action{Kind: "call_webhook", Params: map[string]any{"url": "https://hooks.example.com/lead"}}, ""},
		{"notification", models.Action{Kind: "send_notification"}, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			param, err := checkParams(tt.action)
			if param != tt.wantParam {
				t.Errorf("checkParams() param = %q (err %v), want %q", param, err, tt.wantParam)
			}
		})
	}
}

func TestDueIn(t *testing.T) {
	tests := []struct {
		params map[string]any
		want   time.Duration
	}{
		{nil, 24 * time.Hour},
		{map[string]any{"due_hours": 2}, 2 * time.Hour},
		{map[string]any{"due_hours": 0.5}, 30 * time.Minute},
		{map[string]any{"due_offset": "90m", "due_hours": 2}, 90 * time.Minute},
	}
	for _, tt := range tests {
		if got := dueIn(models.Action{Kind: "create_task", Params: tt.params}); got != tt.want {
			t.Errorf("dueIn(%v) = %v, want %v", tt.params, got, tt.want)
		}
	}
}
