// Package observe converts a Bedrock agent's streamed response into an
// OpenTelemetry span tree.
//
// The Bedrock runtime interleaves text chunks with trace events that
// describe the agent's internal phases (pre-processing, orchestration,
// tool calls, post-processing). This package models that stream as a
// closed set of event variants and maps it onto nested spans suitable
// for any OTLP-compatible backend.
package observe

import "github.com/PeriniM/langsmith-bedrock-agents/types"

// AgentEvent is one element of an agent invocation's response stream.
// The variant set is closed: TextChunk, TraceStep, ToolUse, Completion.
// Ordering in the stream reflects the temporal order of the agent's
// processing and must be preserved by producers.
type AgentEvent interface {
	isAgentEvent()
}

// TextChunk carries a fragment of the agent's response text. Chunks are
// not independently meaningful; the builder accumulates them onto the
// currently open span.
type TextChunk struct {
	Content string
}

// TraceStep reports progress of one reasoning phase. Consecutive steps
// of the same kind describe the same phase; a step of a different kind
// closes the previous phase. All payload fields are optional.
type TraceStep struct {
	Kind            types.StepKind
	ModelInput      *types.ModelInput
	ModelOutput     *types.ModelOutput
	Rationale       string
	FinalResponse   string
	FailureReason   string
	GuardrailAction string
	// CollaboratorID is the agent id of a collaborator sub-agent,
	// extracted from its alias ARN when present.
	CollaboratorID string
}

// ToolUse reports a single tool invocation (action group, knowledge
// base lookup) with its serialized input and output.
type ToolUse struct {
	Name   string
	Input  string
	Output string
	Error  string
}

// Completion marks the end of the stream. Err is non-empty when the
// agent terminated abnormally.
type Completion struct {
	Reason string
	Err    string
}

func (*TextChunk) isAgentEvent()  {}
func (*TraceStep) isAgentEvent()  {}
func (*ToolUse) isAgentEvent()    {}
func (*Completion) isAgentEvent() {}
