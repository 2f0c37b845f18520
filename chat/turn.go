package chat

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/smallnest/genaistack/workflow"
)

// Role tags the author of a turn.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Turn is one message of a conversation.
type Turn struct {
	Role    Role   `json:"role"`
	Content string `json:"content"`
}

// Status is the state an execution step reported.
type Status string

const (
	StatusStarted   Status = "started"
	StatusCompleted Status = "completed"
	StatusError     Status = "error"
	StatusInfo      Status = "info"
)

// LogEntry is one step record produced by the backend while executing a
// workflow.
type LogEntry struct {
	ExecutionID string         `json:"execution_id,omitempty"`
	StepName    string         `json:"step_name"`
	Status      Status         `json:"status"`
	Message     string         `json:"message"`
	Metadata    map[string]any `json:"metadata,omitempty"`
	Timestamp   time.Time      `json:"timestamp,omitzero"`
}

// UnmarshalJSON reads both live entries (timestamp) and stored ones
// (created_at), with or without a zone.
func (e *LogEntry) UnmarshalJSON(b []byte) error {
	type alias LogEntry
	var raw struct {
		*alias
		Timestamp *string `json:"timestamp"`
		CreatedAt *string `json:"created_at"`
	}
	raw.alias = (*alias)(e)
	if err := json.Unmarshal(b, &raw); err != nil {
		return err
	}

	ts := raw.Timestamp
	if ts == nil {
		ts = raw.CreatedAt
	}
	if ts != nil {
		t, err := workflow.ParseTime(*ts)
		if err != nil {
			return fmt.Errorf("log entry %s: %w", e.StepName, err)
		}
		e.Timestamp = t
	}
	return nil
}

// Duration returns the step duration recorded in the metadata, if any. Both
// duration_ms and durationMs are accepted.
func (e LogEntry) Duration() (time.Duration, bool) {
	for _, key := range []string{"duration_ms", "durationMs"} {
		v, ok := e.Metadata[key]
		if !ok {
			continue
		}
		var ms float64
		switch n := v.(type) {
		case float64:
			ms = n
		case int:
			ms = float64(n)
		case int64:
			ms = float64(n)
		case json.Number:
			f, err := n.Float64()
			if err != nil {
				return 0, false
			}
			ms = f
		default:
			return 0, false
		}
		return time.Duration(ms * float64(time.Millisecond)), true
	}
	return 0, false
}

func copyTurns(turns []Turn) []Turn {
	out := make([]Turn, len(turns))
	copy(out, turns)
	return out
}

func copyLogs(logs []LogEntry) []LogEntry {
	if logs == nil {
		return nil
	}
	out := make([]LogEntry, len(logs))
	copy(out, logs)
	return out
}
