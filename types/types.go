package types

// InvocationRequest identifies one Bedrock agent invocation. It is
// immutable once constructed; build a new request for every run.
type InvocationRequest struct {
	SessionID    string `json:"sessionId"`
	InputText    string `json:"inputText"`
	AgentID      string `json:"agentId"`
	AgentAliasID string `json:"agentAliasId"`
}

// StepKind names a distinguishable phase of the agent's internal
// processing, as reported by the Bedrock trace stream.
type StepKind string

const (
	StepPreProcessing     StepKind = "pre_processing"
	StepOrchestration     StepKind = "orchestration"
	StepPostProcessing    StepKind = "post_processing"
	StepRoutingClassifier StepKind = "routing_classifier"
	StepGuardrail         StepKind = "guardrail"
	StepFailure           StepKind = "failure"
)

type Usage struct {
	InputTokens  int `json:"inputTokens,omitempty"`
	OutputTokens int `json:"outputTokens,omitempty"`
}

func (u Usage) Total() int { return u.InputTokens + u.OutputTokens }

func (u *Usage) Add(other Usage) {
	u.InputTokens += other.InputTokens
	u.OutputTokens += other.OutputTokens
}

// ModelInput describes the prompt the agent sent to its foundation model
// during one step.
type ModelInput struct {
	FoundationModel string  `json:"foundationModel,omitempty"`
	Prompt          string  `json:"prompt,omitempty"`
	Temperature     float64 `json:"temperature,omitempty"`
	TopK            int     `json:"topK,omitempty"`
	TopP            float64 `json:"topP,omitempty"`
}

// ModelOutput describes the foundation model's reply for one step.
type ModelOutput struct {
	Usage      *Usage `json:"usage,omitempty"`
	RawContent string `json:"rawContent,omitempty"`
}
