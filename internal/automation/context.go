package automation

import (
	"encoding/json"
	"math"
	"strconv"
)

// Context is the key/value snapshot of an event.
type Context map[string]any

// Context keys set by the event producers.
const (
	KeyLeadID        = "lead_id"
	KeyUserID        = "user_id"
	KeyOldStageID    = "old_stage_id"
	KeyNewStageID    = "new_stage_id"
	KeyApplicationID = "application_id"
	KeyTaskID        = "task_id"
	KeyTaskType      = "task_type"
	KeyAssignedTo    = "assigned_to"
)

// Clone returns a shallow copy.
func (c Context) Clone() Context {
	out := make(Context, len(c))
	for k, v := range c {
		out[k] = v
	}
	return out
}

// ID returns the value under key as a positive id.
func (c Context) ID(key string) (uint, bool) {
	return toID(c[key])
}

// LeadID returns the lead referenced by the event, if any.
func (c Context) LeadID() (uint, bool) {
	return c.ID(KeyLeadID)
}

// UserID returns the acting user, or nil.
func (c Context) UserID() *uint {
	id, ok := c.ID(KeyUserID)
	if !ok {
		return nil
	}
	return &id
}

// toFloat converts any Go or JSON number, or a numeric string, to float64.
func toFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case int:
		return float64(n), true
	case int8:
		return float64(n), true
	case int16:
		return float64(n), true
	case int32:
		return float64(n), true
	case int64:
		return float64(n), true
	case uint:
		return float64(n), true
	case uint8:
		return float64(n), true
	case uint16:
		return float64(n), true
	case uint32:
		return float64(n), true
	case uint64:
		return float64(n), true
	case float32:
		return float64(n), true
	case float64:
		return n, true
	case json.Number:
		f, err := n.Float64()
		return f, err == nil
	}
	return 0, false
}

func isNumber(v any) bool {
	_, ok := toFloat(v)
	return ok
}

// toID converts a whole, positive number (or numeric string) to uint.
func toID(v any) (uint, bool) {
	if s, ok := v.(string); ok {
		n, err := strconv.ParseUint(s, 10, 64)
		return uint(n), err == nil && n > 0
	}
	f, ok := toFloat(v)
	if !ok || f <= 0 || f != math.Trunc(f) {
		return 0, false
	}
	return uint(f), true
}
