package observe

import (
	"context"
	"errors"
	"testing"

	"github.com/PeriniM/langsmith-bedrock-agents/types"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
)

func newTestBuilder(t *testing.T, opts ...BuilderOption) (*Builder, *tracetest.InMemoryExporter) {
	t.Helper()
	exporter := tracetest.NewInMemoryExporter()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSyncer(exporter))
	t.Cleanup(func() { tp.Shutdown(context.Background()) })
	return NewBuilder(tp, opts...), exporter
}

func testRequest() types.InvocationRequest {
	return types.InvocationRequest{
		SessionID:    "sess-1",
		InputText:    "Good evening. What time is it?",
		AgentID:      "agent-1",
		AgentAliasID: "alias-1",
	}
}

func spanByName(t *testing.T, spans tracetest.SpanStubs, name string) tracetest.SpanStub {
	t.Helper()
	for _, s := range spans {
		if s.Name == name {
			return s
		}
	}
	t.Fatalf("span %q not found in %d spans", name, len(spans))
	return tracetest.SpanStub{}
}

func attrToMap(attrs []attribute.KeyValue) map[string]string {
	m := make(map[string]string, len(attrs))
	for _, a := range attrs {
		m[string(a.Key)] = a.Value.Emit()
	}
	return m
}

func TestBuildCompletedInvocation(t *testing.T) {
	builder, exporter := newTestBuilder(t)

	stream := NewSliceStream(
		&TraceStep{Kind: types.StepOrchestration},
		&ToolUse{Name: "search", Input: "ny", Output: "results"},
		&Completion{Reason: "done"},
	)
	res, err := builder.Build(context.Background(), testRequest(), stream)
	if err != nil {
		t.Fatalf("Build failed: %v", err)
	}
	if res.Reason != "done" {
		t.Errorf("unexpected reason: %q", res.Reason)
	}
	if res.Steps != 1 || res.ToolCalls != 1 {
		t.Errorf("unexpected counts: steps=%d tools=%d", res.Steps, res.ToolCalls)
	}

	spans := exporter.GetSpans()
	if len(spans) != 3 {
		t.Fatalf("expected 3 spans, got %d", len(spans))
	}

	root := spanByName(t, spans, "invoke_agent agent-1")
	step := spanByName(t, spans, "agent.step.orchestration")
	tool := spanByName(t, spans, "agent.tool.search")

	if step.Parent.SpanID() != root.SpanContext.SpanID() {
		t.Error("step span is not a child of the root span")
	}
	if tool.Parent.SpanID() != step.SpanContext.SpanID() {
		t.Error("tool span is not a child of the step span")
	}
	for _, s := range []tracetest.SpanStub{root, step, tool} {
		if s.Status.Code != codes.Ok {
			t.Errorf("span %q has status %v, want Ok", s.Name, s.Status.Code)
		}
	}

	toolAttrs := attrToMap(tool.Attributes)
	if toolAttrs[AttrToolName] != "search" {
		t.Errorf("missing tool name attribute: %v", toolAttrs)
	}
	if toolAttrs[AttrToolInput] != "ny" || toolAttrs[AttrToolOutput] != "results" {
		t.Errorf("missing tool io attributes: %v", toolAttrs)
	}

	rootAttrs := attrToMap(root.Attributes)
	if rootAttrs[AttrAgentID] != "agent-1" {
		t.Errorf("missing agent id on root: %v", rootAttrs)
	}
	if rootAttrs[AttrAgentAliasID] != "alias-1" {
		t.Errorf("missing alias id on root: %v", rootAttrs)
	}
	if rootAttrs[AttrSessionID] != "sess-1" {
		t.Errorf("missing session id on root: %v", rootAttrs)
	}
	if rootAttrs[AttrPrompt] != "Good evening. What time is it?" {
		t.Errorf("missing prompt on root: %v", rootAttrs)
	}
}

func TestBuildTruncatedStream(t *testing.T) {
	builder, exporter := newTestBuilder(t)

	stream := NewSliceStream(&TraceStep{Kind: types.StepOrchestration})
	_, err := builder.Build(context.Background(), testRequest(), stream)
	if !errors.Is(err, ErrTruncated) {
		t.Fatalf("expected ErrTruncated, got %v", err)
	}

	spans := exporter.GetSpans()
	if len(spans) != 2 {
		t.Fatalf("expected 2 spans, got %d", len(spans))
	}
	for _, s := range spans {
		if s.Status.Code != codes.Error {
			t.Errorf("span %q has status %v, want Error", s.Name, s.Status.Code)
		}
		if s.Status.Description != "stream truncated" {
			t.Errorf("span %q has description %q", s.Name, s.Status.Description)
		}
	}
}

func TestChildrenNeverOutliveParents(t *testing.T) {
	builder, exporter := newTestBuilder(t)

	stream := NewSliceStream(
		&TraceStep{Kind: types.StepPreProcessing},
		&TraceStep{Kind: types.StepOrchestration},
		&ToolUse{Name: "search", Input: "a", Output: "b"},
		&ToolUse{Name: "lookup", Input: "c", Output: "d"},
		&TraceStep{Kind: types.StepPostProcessing},
		&Completion{Reason: "done"},
	)
	if _, err := builder.Build(context.Background(), testRequest(), stream); err != nil {
		t.Fatalf("Build failed: %v", err)
	}

	spans := exporter.GetSpans()
	byID := make(map[[8]byte]tracetest.SpanStub, len(spans))
	for _, s := range spans {
		byID[s.SpanContext.SpanID()] = s
	}
	for _, s := range spans {
		parent, ok := byID[s.Parent.SpanID()]
		if !ok {
			continue // root
		}
		if s.EndTime.After(parent.EndTime) {
			t.Errorf("span %q ends after its parent %q", s.Name, parent.Name)
		}
		if s.StartTime.Before(parent.StartTime) {
			t.Errorf("span %q starts before its parent %q", s.Name, parent.Name)
		}
	}
}

func TestStepSpansNeverInterleave(t *testing.T) {
	builder, exporter := newTestBuilder(t)

	stream := NewSliceStream(
		&TraceStep{Kind: types.StepPreProcessing},
		&TraceStep{Kind: types.StepPreProcessing},
		&TraceStep{Kind: types.StepOrchestration},
		&TraceStep{Kind: types.StepPostProcessing},
		&Completion{Reason: "done"},
	)
	if _, err := builder.Build(context.Background(), testRequest(), stream); err != nil {
		t.Fatalf("Build failed: %v", err)
	}

	spans := exporter.GetSpans()
	if len(spans) != 4 {
		t.Fatalf("expected 4 spans (3 steps + root), got %d", len(spans))
	}

	pre := spanByName(t, spans, "agent.step.pre_processing")
	orch := spanByName(t, spans, "agent.step.orchestration")
	post := spanByName(t, spans, "agent.step.post_processing")
	root := spanByName(t, spans, "invoke_agent agent-1")

	for _, s := range []tracetest.SpanStub{pre, orch, post} {
		if s.Parent.SpanID() != root.SpanContext.SpanID() {
			t.Errorf("step %q is not a direct child of the root", s.Name)
		}
	}
	if orch.StartTime.Before(pre.EndTime) {
		t.Error("orchestration step opened before pre-processing step closed")
	}
	if post.StartTime.Before(orch.EndTime) {
		t.Error("post-processing step opened before orchestration step closed")
	}
}

func TestOutputAccumulation(t *testing.T) {
	builder, exporter := newTestBuilder(t)

	stream := NewSliceStream(
		&TraceStep{Kind: types.StepOrchestration},
		&TextChunk{Content: "The time "},
		&TextChunk{Content: "is 9pm."},
		&Completion{Reason: "done"},
	)
	res, err := builder.Build(context.Background(), testRequest(), stream)
	if err != nil {
		t.Fatalf("Build failed: %v", err)
	}
	if res.Output != "The time is 9pm." {
		t.Errorf("unexpected output: %q", res.Output)
	}

	spans := exporter.GetSpans()
	root := spanByName(t, spans, "invoke_agent agent-1")
	rootAttrs := attrToMap(root.Attributes)
	if rootAttrs[AttrCompletion] != "The time is 9pm." {
		t.Errorf("missing completion content on root: %v", rootAttrs)
	}
	if rootAttrs[AttrCompletionRole] != "agent" {
		t.Errorf("missing completion role on root: %v", rootAttrs)
	}

	step := spanByName(t, spans, "agent.step.orchestration")
	stepAttrs := attrToMap(step.Attributes)
	if stepAttrs[AttrCompletion] != "The time is 9pm." {
		t.Errorf("missing completion content on step: %v", stepAttrs)
	}
}

func TestBuildDeterministicStructure(t *testing.T) {
	events := func() *SliceStream {
		return NewSliceStream(
			&TraceStep{Kind: types.StepOrchestration, ModelInput: &types.ModelInput{FoundationModel: "anthropic.claude-v2", Prompt: "p", Temperature: 0.5, TopK: 50, TopP: 0.9}},
			&ToolUse{Name: "search", Input: "ny", Output: "results"},
			&TraceStep{Kind: types.StepPostProcessing},
			&TextChunk{Content: "out"},
			&Completion{Reason: "done"},
		)
	}

	type shape struct {
		name   string
		parent string
		attrs  map[string]string
		status codes.Code
	}
	capture := func() []shape {
		builder, exporter := newTestBuilder(t)
		if _, err := builder.Build(context.Background(), testRequest(), events()); err != nil {
			t.Fatalf("Build failed: %v", err)
		}
		spans := exporter.GetSpans()
		byID := make(map[[8]byte]string, len(spans))
		for _, s := range spans {
			byID[s.SpanContext.SpanID()] = s.Name
		}
		out := make([]shape, 0, len(spans))
		for _, s := range spans {
			out = append(out, shape{
				name:   s.Name,
				parent: byID[s.Parent.SpanID()],
				attrs:  attrToMap(s.Attributes),
				status: s.Status.Code,
			})
		}
		return out
	}

	first := capture()
	second := capture()
	if len(first) != len(second) {
		t.Fatalf("span counts differ: %d vs %d", len(first), len(second))
	}
	for i := range first {
		a, b := first[i], second[i]
		if a.name != b.name || a.parent != b.parent || a.status != b.status {
			t.Errorf("span %d shape differs: %+v vs %+v", i, a, b)
		}
		if len(a.attrs) != len(b.attrs) {
			t.Errorf("span %d attribute counts differ", i)
			continue
		}
		for k, v := range a.attrs {
			if b.attrs[k] != v {
				t.Errorf("span %d attribute %q differs: %q vs %q", i, k, v, b.attrs[k])
			}
		}
	}
}

func TestMappingErrorClosesStack(t *testing.T) {
	builder, exporter := newTestBuilder(t)

	stream := NewSliceStream(
		&TraceStep{Kind: types.StepOrchestration},
		&ToolUse{}, // missing name
		&Completion{Reason: "done"},
	)
	_, err := builder.Build(context.Background(), testRequest(), stream)
	var mapErr *MappingError
	if !errors.As(err, &mapErr) {
		t.Fatalf("expected MappingError, got %v", err)
	}

	spans := exporter.GetSpans()
	if len(spans) != 2 {
		t.Fatalf("expected 2 spans, got %d", len(spans))
	}
	step := spanByName(t, spans, "agent.step.orchestration")
	if step.Status.Code != codes.Error {
		t.Errorf("step status = %v, want Error", step.Status.Code)
	}
	if step.Status.Description != err.Error() {
		t.Errorf("step description %q does not carry the mapping error %q", step.Status.Description, err.Error())
	}
	if len(step.Events) == 0 {
		t.Error("expected the mapping error recorded on the open span")
	}
}

func TestNilEventIsMappingError(t *testing.T) {
	builder, _ := newTestBuilder(t)

	stream := NewSliceStream(nil, &Completion{Reason: "done"})
	_, err := builder.Build(context.Background(), testRequest(), stream)
	var mapErr *MappingError
	if !errors.As(err, &mapErr) {
		t.Fatalf("expected MappingError, got %v", err)
	}
}

// cancellingStream cancels its context after the first event, then
// reports the context error like a real network stream would.
type cancellingStream struct {
	cancel context.CancelFunc
	sent   bool
}

func (s *cancellingStream) Next(ctx context.Context) (AgentEvent, error) {
	if !s.sent {
		s.sent = true
		return &TraceStep{Kind: types.StepOrchestration}, nil
	}
	s.cancel()
	<-ctx.Done()
	return nil, ctx.Err()
}

func (s *cancellingStream) Close() error { return nil }

func TestCancellationClosesSpans(t *testing.T) {
	builder, exporter := newTestBuilder(t)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	_, err := builder.Build(ctx, testRequest(), &cancellingStream{cancel: cancel})
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}

	spans := exporter.GetSpans()
	if len(spans) != 2 {
		t.Fatalf("expected 2 spans, got %d", len(spans))
	}
	for _, s := range spans {
		if s.Status.Code != codes.Error || s.Status.Description != "cancelled" {
			t.Errorf("span %q closed with %v %q, want Error \"cancelled\"", s.Name, s.Status.Code, s.Status.Description)
		}
	}
}

func TestCompletionFailure(t *testing.T) {
	builder, exporter := newTestBuilder(t)

	stream := NewSliceStream(
		&TraceStep{Kind: types.StepFailure, FailureReason: "access denied to action group"},
		&Completion{Reason: "failure", Err: "access denied to action group"},
	)
	res, err := builder.Build(context.Background(), testRequest(), stream)
	if err != nil {
		t.Fatalf("Build failed: %v", err)
	}
	if res.Failure != "access denied to action group" {
		t.Errorf("unexpected failure: %q", res.Failure)
	}

	spans := exporter.GetSpans()
	root := spanByName(t, spans, "invoke_agent agent-1")
	if root.Status.Code != codes.Error {
		t.Errorf("root status = %v, want Error", root.Status.Code)
	}
	step := spanByName(t, spans, "agent.step.failure")
	if step.Status.Code != codes.Error {
		t.Errorf("failure step status = %v, want Error", step.Status.Code)
	}
}

func TestUsageAggregation(t *testing.T) {
	builder, exporter := newTestBuilder(t)

	stream := NewSliceStream(
		&TraceStep{Kind: types.StepPreProcessing, ModelOutput: &types.ModelOutput{Usage: &types.Usage{InputTokens: 10, OutputTokens: 5}}},
		&TraceStep{Kind: types.StepOrchestration, ModelOutput: &types.ModelOutput{Usage: &types.Usage{InputTokens: 100, OutputTokens: 40}}},
		&Completion{Reason: "done"},
	)
	res, err := builder.Build(context.Background(), testRequest(), stream)
	if err != nil {
		t.Fatalf("Build failed: %v", err)
	}
	if res.Usage.InputTokens != 110 || res.Usage.OutputTokens != 45 {
		t.Errorf("unexpected usage: %+v", res.Usage)
	}

	root := spanByName(t, exporter.GetSpans(), "invoke_agent agent-1")
	rootAttrs := attrToMap(root.Attributes)
	if rootAttrs[AttrUsageTotalTokens] != "155" {
		t.Errorf("missing total token attribute on root: %v", rootAttrs)
	}
}

func TestStepAttributes(t *testing.T) {
	builder, exporter := newTestBuilder(t)

	stream := NewSliceStream(
		&TraceStep{Kind: types.StepOrchestration, ModelInput: &types.ModelInput{
			FoundationModel: "anthropic.claude-v2",
			Prompt:          "what time is it",
			Temperature:     0.7,
			TopK:            250,
			TopP:            0.9,
		}},
		&TraceStep{Kind: types.StepOrchestration, Rationale: "the user asks for the current time"},
		&TraceStep{Kind: types.StepOrchestration, FinalResponse: "It is 9pm."},
		&Completion{Reason: "done"},
	)
	if _, err := builder.Build(context.Background(), testRequest(), stream); err != nil {
		t.Fatalf("Build failed: %v", err)
	}

	spans := exporter.GetSpans()
	if len(spans) != 2 {
		t.Fatalf("expected a single step span plus root, got %d spans", len(spans))
	}
	step := spanByName(t, spans, "agent.step.orchestration")
	attrs := attrToMap(step.Attributes)
	if attrs[AttrRequestModel] != "anthropic.claude-v2" {
		t.Errorf("missing model attribute: %v", attrs)
	}
	if attrs[AttrPrompt] != "what time is it" {
		t.Errorf("missing prompt attribute: %v", attrs)
	}
	if attrs[AttrReasoning] != "the user asks for the current time" {
		t.Errorf("missing reasoning attribute: %v", attrs)
	}
	if attrs[AttrCompletion] != "It is 9pm." {
		t.Errorf("missing final response attribute: %v", attrs)
	}
	if attrs[AttrTemperature] != "0.7" || attrs[AttrTopK] != "250" || attrs[AttrTopP] != "0.9" {
		t.Errorf("missing inference configuration attributes: %v", attrs)
	}
}

func TestLifecycleRecords(t *testing.T) {
	var records []Record
	collect := SinkFunc(func(ctx context.Context, record Record) error {
		records = append(records, record)
		return nil
	})
	builder, _ := newTestBuilder(t, WithSink(collect))

	stream := NewSliceStream(
		&TraceStep{Kind: types.StepOrchestration},
		&ToolUse{Name: "search", Input: "ny", Output: "results"},
		&Completion{Reason: "done"},
	)
	if _, err := builder.Build(context.Background(), testRequest(), stream); err != nil {
		t.Fatalf("Build failed: %v", err)
	}

	want := []struct {
		kind   Kind
		status Status
	}{
		{KindInvocation, StatusStarted},
		{KindTool, StatusCompleted},
		{KindStep, StatusCompleted},
		{KindInvocation, StatusCompleted},
	}
	if len(records) != len(want) {
		t.Fatalf("expected %d records, got %d", len(want), len(records))
	}
	for i, w := range want {
		if records[i].Kind != w.kind || records[i].Status != w.status {
			t.Errorf("record %d = %s/%s, want %s/%s", i, records[i].Kind, records[i].Status, w.kind, w.status)
		}
	}
	if records[1].Name != "search" {
		t.Errorf("tool record name = %q", records[1].Name)
	}
}
