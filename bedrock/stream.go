package bedrock

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/PeriniM/langsmith-bedrock-agents/observe"
	"github.com/PeriniM/langsmith-bedrock-agents/types"
	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/bedrockagentruntime"
	bedrocktypes "github.com/aws/aws-sdk-go-v2/service/bedrockagentruntime/types"
)

// eventStream adapts the SDK's response stream to observe.Stream. The
// Bedrock stream has no explicit terminal event: when the channel closes
// cleanly the adapter synthesizes a Completion, so that a channel that
// closes with a pending error is distinguishable as a truncated stream.
type eventStream struct {
	sdk      *bedrockagentruntime.InvokeAgentEventStream
	tr       translator
	pending  []observe.AgentEvent
	finished bool
}

func newEventStream(sdk *bedrockagentruntime.InvokeAgentEventStream) *eventStream {
	return &eventStream{sdk: sdk}
}

func (s *eventStream) Next(ctx context.Context) (observe.AgentEvent, error) {
	for {
		if len(s.pending) > 0 {
			ev := s.pending[0]
			s.pending = s.pending[1:]
			return ev, nil
		}
		if s.finished {
			return nil, io.EOF
		}
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case part, ok := <-s.sdk.Events():
			if !ok {
				if err := s.sdk.Err(); err != nil {
					return nil, classify(err)
				}
				s.pending = s.tr.finish()
				s.finished = true
				continue
			}
			events, err := s.tr.translate(part)
			if err != nil {
				return nil, err
			}
			s.pending = append(s.pending, events...)
		}
	}
}

func (s *eventStream) Close() error { return s.sdk.Close() }

// translator converts SDK stream parts into agent events. It carries
// the state needed to pair a tool invocation input with the observation
// that holds its output, and remembers a failure trace so the terminal
// completion reflects it.
type translator struct {
	pendingTool *observe.ToolUse
	failure     string
}

// finish flushes a half-open tool call and synthesizes the terminal
// completion event for a cleanly closed stream.
func (t *translator) finish() []observe.AgentEvent {
	var out []observe.AgentEvent
	if t.pendingTool != nil {
		out = append(out, t.pendingTool)
		t.pendingTool = nil
	}
	if t.failure != "" {
		out = append(out, &observe.Completion{Reason: "failure", Err: t.failure})
	} else {
		out = append(out, &observe.Completion{Reason: "end_turn"})
	}
	return out
}

func (t *translator) translate(part bedrocktypes.ResponseStream) ([]observe.AgentEvent, error) {
	switch v := part.(type) {
	case *bedrocktypes.ResponseStreamMemberChunk:
		if len(v.Value.Bytes) == 0 {
			return nil, nil
		}
		return []observe.AgentEvent{&observe.TextChunk{Content: string(v.Value.Bytes)}}, nil
	case *bedrocktypes.ResponseStreamMemberTrace:
		return t.translateTrace(v.Value), nil
	case *bedrocktypes.ResponseStreamMemberReturnControl,
		*bedrocktypes.ResponseStreamMemberFiles:
		// Control returns and generated files carry no span-relevant data.
		return nil, nil
	default:
		return nil, &observe.MappingError{
			Event: fmt.Sprintf("%T", part),
			Cause: errors.New("unknown response stream member"),
		}
	}
}

func (t *translator) translateTrace(tp bedrocktypes.TracePart) []observe.AgentEvent {
	switch tr := tp.Trace.(type) {
	case *bedrocktypes.TraceMemberOrchestrationTrace:
		return t.orchestration(tr.Value)
	case *bedrocktypes.TraceMemberPreProcessingTrace:
		return t.preProcessing(tr.Value)
	case *bedrocktypes.TraceMemberPostProcessingTrace:
		return t.postProcessing(tr.Value)
	case *bedrocktypes.TraceMemberRoutingClassifierTrace:
		return t.routingClassifier(tr.Value)
	case *bedrocktypes.TraceMemberFailureTrace:
		t.failure = aws.ToString(tr.Value.FailureReason)
		return []observe.AgentEvent{&observe.TraceStep{
			Kind:          types.StepFailure,
			FailureReason: t.failure,
		}}
	case *bedrocktypes.TraceMemberGuardrailTrace:
		return []observe.AgentEvent{&observe.TraceStep{
			Kind:            types.StepGuardrail,
			GuardrailAction: string(tr.Value.Action),
		}}
	default:
		return nil
	}
}

func (t *translator) orchestration(ot bedrocktypes.OrchestrationTrace) []observe.AgentEvent {
	switch m := ot.(type) {
	case *bedrocktypes.OrchestrationTraceMemberModelInvocationInput:
		return []observe.AgentEvent{&observe.TraceStep{
			Kind:       types.StepOrchestration,
			ModelInput: modelInput(m.Value),
		}}
	case *bedrocktypes.OrchestrationTraceMemberModelInvocationOutput:
		return []observe.AgentEvent{&observe.TraceStep{
			Kind:        types.StepOrchestration,
			ModelOutput: modelOutput(m.Value.Metadata, m.Value.RawResponse),
		}}
	case *bedrocktypes.OrchestrationTraceMemberRationale:
		return []observe.AgentEvent{&observe.TraceStep{
			Kind:      types.StepOrchestration,
			Rationale: aws.ToString(m.Value.Text),
		}}
	case *bedrocktypes.OrchestrationTraceMemberInvocationInput:
		return t.invocationInput(m.Value)
	case *bedrocktypes.OrchestrationTraceMemberObservation:
		return t.observation(types.StepOrchestration, m.Value)
	default:
		return nil
	}
}

func (t *translator) preProcessing(pt bedrocktypes.PreProcessingTrace) []observe.AgentEvent {
	switch m := pt.(type) {
	case *bedrocktypes.PreProcessingTraceMemberModelInvocationInput:
		return []observe.AgentEvent{&observe.TraceStep{
			Kind:       types.StepPreProcessing,
			ModelInput: modelInput(m.Value),
		}}
	case *bedrocktypes.PreProcessingTraceMemberModelInvocationOutput:
		step := &observe.TraceStep{
			Kind:        types.StepPreProcessing,
			ModelOutput: modelOutput(m.Value.Metadata, m.Value.RawResponse),
		}
		if pr := m.Value.ParsedResponse; pr != nil {
			step.Rationale = aws.ToString(pr.Rationale)
		}
		return []observe.AgentEvent{step}
	default:
		return nil
	}
}

func (t *translator) postProcessing(pt bedrocktypes.PostProcessingTrace) []observe.AgentEvent {
	switch m := pt.(type) {
	case *bedrocktypes.PostProcessingTraceMemberModelInvocationInput:
		return []observe.AgentEvent{&observe.TraceStep{
			Kind:       types.StepPostProcessing,
			ModelInput: modelInput(m.Value),
		}}
	case *bedrocktypes.PostProcessingTraceMemberModelInvocationOutput:
		step := &observe.TraceStep{
			Kind:        types.StepPostProcessing,
			ModelOutput: modelOutput(m.Value.Metadata, m.Value.RawResponse),
		}
		if pr := m.Value.ParsedResponse; pr != nil {
			step.FinalResponse = aws.ToString(pr.Text)
		}
		return []observe.AgentEvent{step}
	default:
		return nil
	}
}

func (t *translator) routingClassifier(rt bedrocktypes.RoutingClassifierTrace) []observe.AgentEvent {
	switch m := rt.(type) {
	case *bedrocktypes.RoutingClassifierTraceMemberModelInvocationInput:
		return []observe.AgentEvent{&observe.TraceStep{
			Kind:       types.StepRoutingClassifier,
			ModelInput: modelInput(m.Value),
		}}
	case *bedrocktypes.RoutingClassifierTraceMemberModelInvocationOutput:
		return []observe.AgentEvent{&observe.TraceStep{
			Kind:        types.StepRoutingClassifier,
			ModelOutput: modelOutput(m.Value.Metadata, m.Value.RawResponse),
		}}
	case *bedrocktypes.RoutingClassifierTraceMemberInvocationInput:
		return t.invocationInput(m.Value)
	case *bedrocktypes.RoutingClassifierTraceMemberObservation:
		return t.observation(types.StepRoutingClassifier, m.Value)
	default:
		return nil
	}
}

// invocationInput opens a pending tool call. A new input arriving while
// one is pending means its observation never came; the stale call is
// emitted with an empty output first.
func (t *translator) invocationInput(in bedrocktypes.InvocationInput) []observe.AgentEvent {
	var out []observe.AgentEvent
	if t.pendingTool != nil {
		out = append(out, t.pendingTool)
		t.pendingTool = nil
	}
	switch {
	case in.ActionGroupInvocationInput != nil:
		ag := in.ActionGroupInvocationInput
		name := aws.ToString(ag.ActionGroupName)
		if fn := aws.ToString(ag.Function); fn != "" {
			name = name + "." + fn
		}
		t.pendingTool = &observe.ToolUse{Name: name, Input: actionGroupInput(ag)}
	case in.KnowledgeBaseLookupInput != nil:
		t.pendingTool = &observe.ToolUse{
			Name:  "knowledge_base",
			Input: aws.ToString(in.KnowledgeBaseLookupInput.Text),
		}
	case in.CodeInterpreterInvocationInput != nil:
		t.pendingTool = &observe.ToolUse{
			Name:  "code_interpreter",
			Input: aws.ToString(in.CodeInterpreterInvocationInput.Code),
		}
	}
	return out
}

func (t *translator) observation(kind types.StepKind, obs bedrocktypes.Observation) []observe.AgentEvent {
	var out []observe.AgentEvent
	if ago := obs.ActionGroupInvocationOutput; ago != nil {
		out = append(out, t.completeTool("action_group", aws.ToString(ago.Text)))
	}
	if kbo := obs.KnowledgeBaseLookupOutput; kbo != nil {
		out = append(out, t.completeTool("knowledge_base", retrievedText(kbo)))
	}
	if cio := obs.CodeInterpreterInvocationOutput; cio != nil {
		out = append(out, t.completeTool("code_interpreter", aws.ToString(cio.ExecutionOutput)))
	}
	if aco := obs.AgentCollaboratorInvocationOutput; aco != nil {
		out = append(out, &observe.TraceStep{
			Kind:           kind,
			CollaboratorID: agentIDFromAliasARN(aws.ToString(aco.AgentCollaboratorAliasArn)),
		})
	}
	if fr := obs.FinalResponse; fr != nil {
		out = append(out, &observe.TraceStep{
			Kind:          kind,
			FinalResponse: aws.ToString(fr.Text),
		})
	}
	return out
}

func (t *translator) completeTool(fallbackName, output string) *observe.ToolUse {
	tool := t.pendingTool
	t.pendingTool = nil
	if tool == nil {
		tool = &observe.ToolUse{Name: fallbackName}
	}
	tool.Output = output
	return tool
}

func modelInput(mi bedrocktypes.ModelInvocationInput) *types.ModelInput {
	in := &types.ModelInput{
		FoundationModel: aws.ToString(mi.FoundationModel),
		Prompt:          aws.ToString(mi.Text),
	}
	if ic := mi.InferenceConfiguration; ic != nil {
		in.Temperature = float64(aws.ToFloat32(ic.Temperature))
		in.TopK = int(aws.ToInt32(ic.TopK))
		in.TopP = float64(aws.ToFloat32(ic.TopP))
	}
	return in
}

func modelOutput(meta *bedrocktypes.Metadata, raw *bedrocktypes.RawResponse) *types.ModelOutput {
	out := &types.ModelOutput{}
	if meta != nil && meta.Usage != nil {
		out.Usage = &types.Usage{
			InputTokens:  int(aws.ToInt32(meta.Usage.InputTokens)),
			OutputTokens: int(aws.ToInt32(meta.Usage.OutputTokens)),
		}
	}
	if raw != nil {
		out.RawContent = aws.ToString(raw.Content)
	}
	return out
}

func actionGroupInput(ag *bedrocktypes.ActionGroupInvocationInput) string {
	params := make(map[string]string, len(ag.Parameters))
	for _, p := range ag.Parameters {
		params[aws.ToString(p.Name)] = aws.ToString(p.Value)
	}
	if path := aws.ToString(ag.ApiPath); path != "" {
		params["apiPath"] = path
	}
	if verb := aws.ToString(ag.Verb); verb != "" {
		params["verb"] = verb
	}
	raw, err := json.Marshal(params)
	if err != nil {
		return ""
	}
	return string(raw)
}

func retrievedText(kbo *bedrocktypes.KnowledgeBaseLookupOutput) string {
	parts := make([]string, 0, len(kbo.RetrievedReferences))
	for _, ref := range kbo.RetrievedReferences {
		if ref.Content != nil {
			if text := aws.ToString(ref.Content.Text); text != "" {
				parts = append(parts, text)
			}
		}
	}
	return strings.Join(parts, "\n")
}

// agentIDFromAliasARN extracts the agent id from a collaborator alias
// ARN of the form arn:aws:bedrock:region:account:agent-alias/ID/ALIAS.
func agentIDFromAliasARN(arn string) string {
	_, rest, ok := strings.Cut(arn, ":agent-alias/")
	if !ok {
		return ""
	}
	id, _, _ := strings.Cut(rest, "/")
	return id
}
