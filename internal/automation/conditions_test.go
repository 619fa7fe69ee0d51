package automation

import (
	"encoding/json"
	"testing"
)

func TestMatches_EmptyConditionsAlwaysMatch(t *testing.T) {
	contexts := []map[string]any{
		nil,
		{},
		{"lead_id": 7},
		{"priority": "high", "nested": map[string]any{"a": 1}},
	}
	for _, ctx := range contexts {
		if !Matches(nil, ctx) {
			t.Errorf("Matches(nil, %v) = false", ctx)
		}
		if !Matches(map[string]any{}, ctx) {
			t.Errorf("Matches({}, %v) = false", ctx)
		}
	}
}

func TestMatches(t *testing.T) {
	tests := []struct {
		name  string
		conds map[string]any
		ctx   map[string]any
		want  bool
	}{
		{"mismatch", map[string]any{"priority": "high"}, map[string]any{"priority": "medium"}, false},
		{"match", map[string]any{"priority": "high"}, map[string]any{"priority": "high", "lead_id": 1}, true},
		{"missing key", map[string]any{"priority": "high"}, map[string]any{"lead_id": 1}, false},
		{"one of two differs", map[string]any{"a": "x", "b": "y"}, map[string]any{"a": "x", "b": "z"}, false},
		{"json float vs uint", map[string]any{"new_stage_id": float64(3)}, map[string]any{"new_stage_id": uint(3)}, true},
		{"yaml int vs uint", map[string]any{"new_stage_id": 3}, map[string]any{"new_stage_id": uint(3)}, true},
		{"number differs", map[string]any{"new_stage_id": 3}, map[string]any{"new_stage_id": uint(4)}, false},
		{"number vs string", map[string]any{"new_stage_id": 3}, map[string]any{"new_stage_id": "3"}, false},
		{"bool", map[string]any{"vip": true}, map[string]any{"vip": true}, true},
		{"bool differs", map[string]any{"vip": true}, map[string]any{"vip": false}, false},
		{"nil expected", map[string]any{"user_id": nil}, map[string]any{"user_id": nil}, true},
		{"nil vs value", map[string]any{"user_id": nil}, map[string]any{"user_id": 3}, false},
		{"nested map", map[string]any{"meta": map[string]any{"src": "fair", "n": 1.0}}, map[string]any{"meta": map[string]any{"src": "fair", "n": 1}}, true},
		{"nested map extra key", map[string]any{"meta": map[string]any{"src": "fair"}}, map[string]any{"meta": map[string]any{"src": "fair", "n": 1}}, false},
		{"slice", map[string]any{"tags": []any{"a", 2.0}}, map[string]any{"tags": []any{"a", 2}}, true},
		{"slice order", map[string]any{"tags": []any{"a", "b"}}, map[string]any{"tags": []any{"b", "a"}}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Matches(tt.conds, tt.ctx); got != tt.want {
				t.Errorf("Matches(%v, %v) = %v, want %v", tt.conds, tt.ctx, got, tt.want)
			}
		})
	}
}

func TestMatches_StoredConditionsAgainstLiveContext(t *testing.T) {
	var conds map[string]any
	if err := json.Unmarshal([]byte(`{"new_stage_id": 2, "source": "web"}`), &conds); err != nil {
		t.Fatal(err)
	}
	ctx := Context{KeyLeadID: uint(7), KeyNewStageID: uint(2), "source": "web"}
	if !Matches(conds, ctx) {
		t.Error("decoded conditions should match a context built from Go ids")
	}
}

func TestContext_IDs(t *testing.T) {
	ctx := Context{KeyLeadID: float64(7), KeyUserID: "3", "bad": -1.0, "frac": 1.5}
	if id, ok := ctx.LeadID(); !ok || id != 7 {
		t.Errorf("LeadID() = %d, %v", id, ok)
	}
	if uid := ctx.UserID(); uid == nil || *uid != 3 {
		t.Errorf("UserID() = %v", uid)
	}
	if _, ok := ctx.ID("bad"); ok {
		t.Error("negative id accepted")
	}
	if _, ok := ctx.ID("frac"); ok {
		t.Error("fractional id accepted")
	}
	if (Context{}).UserID() != nil {
		t.Error("absent user should be nil")
	}
}
