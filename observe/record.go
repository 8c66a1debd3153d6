package observe

import "time"

// Kind classifies a lifecycle record emitted while building a span tree.
type Kind string

// Status marks the outcome carried by a lifecycle record.
type Status string

const (
	KindInvocation Kind = "invocation"
	KindStep       Kind = "step"
	KindTool       Kind = "tool"
)

const (
	StatusStarted   Status = "started"
	StatusCompleted Status = "completed"
	StatusFailed    Status = "failed"
)

// Record is a flat lifecycle event describing one transition of an
// invocation: the run starting or finishing, a reasoning step closing,
// a tool call completing. Records are what sinks and stores consume;
// the span tree itself goes to the tracing SDK.
type Record struct {
	ID         string         `json:"id,omitempty"`
	Timestamp  time.Time      `json:"timestamp"`
	SessionID  string         `json:"sessionId,omitempty"`
	AgentID    string         `json:"agentId,omitempty"`
	Kind       Kind           `json:"kind"`
	Status     Status         `json:"status,omitempty"`
	Name       string         `json:"name,omitempty"`
	Error      string         `json:"error,omitempty"`
	DurationMs int64          `json:"durationMs,omitempty"`
	Attributes map[string]any `json:"attributes,omitempty"`
}

func (r *Record) Normalize() {
	if r == nil {
		return
	}
	if r.Timestamp.IsZero() {
		r.Timestamp = time.Now().UTC()
	}
	if r.Kind == "" {
		r.Kind = KindInvocation
	}
	if r.Attributes == nil {
		r.Attributes = map[string]any{}
	}
}
