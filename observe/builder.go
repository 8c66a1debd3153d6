package observe

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/PeriniM/langsmith-bedrock-agents/types"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"
)

const instrumentationName = "github.com/PeriniM/langsmith-bedrock-agents/observe"

// Attribute values above this length are truncated before export.
const maxAttrLen = 4096

// Builder maps one agent event stream onto a nested span tree. One
// Builder may serve concurrent invocations; each Build call owns its
// own span stack and shares nothing with other calls.
type Builder struct {
	tracer trace.Tracer
	sink   Sink
}

type BuilderOption func(*Builder)

// WithSink streams lifecycle records to the given sink alongside span
// construction.
func WithSink(sink Sink) BuilderOption {
	return func(b *Builder) {
		if sink != nil {
			b.sink = sink
		}
	}
}

// NewBuilder creates a Builder emitting spans through the given
// TracerProvider. A nil provider yields a noop tracer.
func NewBuilder(tp trace.TracerProvider, opts ...BuilderOption) *Builder {
	if tp == nil {
		tp = noop.NewTracerProvider()
	}
	b := &Builder{
		tracer: tp.Tracer(instrumentationName),
		sink:   NoopSink{},
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// Result summarizes a fully built invocation trace.
type Result struct {
	Output    string
	Reason    string
	Failure   string
	Usage     types.Usage
	Steps     int
	ToolCalls int
	Root      trace.SpanContext
}

type openSpan struct {
	ctx     context.Context
	span    trace.Span
	kind    types.StepKind // empty for the root span
	started time.Time
	output  strings.Builder
	failure string
}

// spanStack tracks open spans, innermost last. Only the most recently
// opened span that has not been closed may receive further children, so
// closing on truncation or cancellation is a plain unwind.
type spanStack struct {
	spans []*openSpan
}

func (s *spanStack) push(o *openSpan) { s.spans = append(s.spans, o) }

func (s *spanStack) top() *openSpan {
	if len(s.spans) == 0 {
		return nil
	}
	return s.spans[len(s.spans)-1]
}

func (s *spanStack) pop() *openSpan {
	top := s.top()
	if top != nil {
		s.spans = s.spans[:len(s.spans)-1]
	}
	return top
}

func (s *spanStack) empty() bool { return len(s.spans) == 0 }

// Build consumes the stream in delivery order and returns once the
// completion event arrives or the stream fails. Every span opened by
// Build is ended exactly once on every exit path: a truncated stream
// yields ErrTruncated with all spans closed as errors, a cancelled
// context closes them with a "cancelled" status, and a mapping failure
// marks the innermost open span before unwinding.
func (b *Builder) Build(ctx context.Context, req types.InvocationRequest, stream Stream) (Result, error) {
	res := Result{}
	rootCtx, root := b.tracer.Start(ctx, operationInvoke+" "+req.AgentID,
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(requestAttributes(req)...),
	)
	res.Root = root.SpanContext()

	stack := &spanStack{}
	stack.push(&openSpan{ctx: rootCtx, span: root, started: time.Now()})

	b.emit(ctx, Record{
		Kind:      KindInvocation,
		Status:    StatusStarted,
		SessionID: req.SessionID,
		AgentID:   req.AgentID,
	})

	var output strings.Builder

	for {
		ev, err := stream.Next(ctx)
		if err != nil {
			switch {
			case errors.Is(err, io.EOF):
				b.closeAll(ctx, stack, req, &res, &output, codes.Error, ErrTruncated.Error())
				return res, ErrTruncated
			case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
				b.closeAll(ctx, stack, req, &res, &output, codes.Error, "cancelled")
				return res, err
			default:
				b.closeAll(ctx, stack, req, &res, &output, codes.Error, err.Error())
				return res, err
			}
		}

		done, err := b.apply(ctx, stack, req, &res, &output, ev)
		if err != nil {
			top := stack.top()
			if top != nil {
				top.span.RecordError(err)
			}
			b.closeAll(ctx, stack, req, &res, &output, codes.Error, err.Error())
			return res, err
		}
		if done {
			return res, nil
		}
	}
}

// apply maps a single event onto the tree. It reports done=true once
// the completion event has closed the root span.
func (b *Builder) apply(ctx context.Context, stack *spanStack, req types.InvocationRequest, res *Result, output *strings.Builder, ev AgentEvent) (bool, error) {
	switch e := ev.(type) {
	case *TextChunk:
		stack.top().output.WriteString(e.Content)
		if stack.top().kind != "" {
			output.WriteString(e.Content)
		}
		return false, nil

	case *TraceStep:
		if e.Kind == "" {
			return false, &MappingError{Event: "trace_step", Cause: errors.New("missing step kind")}
		}
		top := stack.top()
		if top.kind != "" && top.kind != e.Kind {
			b.closeStep(ctx, stack, req, codes.Ok, "")
			top = stack.top()
		}
		if top.kind == "" {
			childCtx, span := b.tracer.Start(top.ctx, "agent.step."+string(e.Kind),
				trace.WithSpanKind(trace.SpanKindInternal),
				trace.WithAttributes(
					attribute.String(AttrSpanKind, spanKindLLM),
					attribute.String(AttrOperationName, operationInvoke),
					attribute.String(AttrSystem, systemBedrock),
					attribute.String(AttrAgentID, req.AgentID),
					attribute.String(AttrStepKind, string(e.Kind)),
				),
			)
			stack.push(&openSpan{ctx: childCtx, span: span, kind: e.Kind, started: time.Now()})
			res.Steps++
		}
		applyStep(stack.top(), e, res)
		return false, nil

	case *ToolUse:
		if e.Name == "" {
			return false, &MappingError{Event: "tool_use", Cause: errors.New("missing tool name")}
		}
		parent := stack.top()
		_, span := b.tracer.Start(parent.ctx, "agent.tool."+e.Name,
			trace.WithSpanKind(trace.SpanKindInternal),
			trace.WithAttributes(
				attribute.String(AttrSpanKind, spanKindTool),
				attribute.String(AttrSystem, systemBedrock),
				attribute.String(AttrToolName, e.Name),
			),
		)
		if e.Input != "" {
			span.SetAttributes(attribute.String(AttrToolInput, truncate(e.Input, maxAttrLen)))
		}
		if e.Output != "" {
			span.SetAttributes(attribute.String(AttrToolOutput, truncate(e.Output, maxAttrLen)))
		}
		status := StatusCompleted
		if e.Error != "" {
			span.SetStatus(codes.Error, e.Error)
			span.RecordError(errors.New(e.Error))
			status = StatusFailed
		} else {
			span.SetStatus(codes.Ok, "")
		}
		span.End()
		res.ToolCalls++
		b.emit(ctx, Record{
			Kind:      KindTool,
			Status:    status,
			SessionID: req.SessionID,
			AgentID:   req.AgentID,
			Name:      e.Name,
			Error:     e.Error,
		})
		return false, nil

	case *Completion:
		for stack.top().kind != "" {
			b.closeStep(ctx, stack, req, codes.Ok, "")
		}
		root := stack.pop()
		b.finishRoot(ctx, root, req, res, output, e.Reason, e.Err)
		res.Reason = e.Reason
		res.Failure = e.Err
		return true, nil

	case nil:
		return false, &MappingError{Event: "nil", Cause: errors.New("nil event in stream")}

	default:
		return false, &MappingError{Event: fmt.Sprintf("%T", ev), Cause: errors.New("unexpected event variant")}
	}
}

// closeStep ends the innermost open step span, flushing its output
// buffer into the completion attribute.
func (b *Builder) closeStep(ctx context.Context, stack *spanStack, req types.InvocationRequest, code codes.Code, msg string) {
	top := stack.pop()
	if text := top.output.String(); text != "" {
		top.span.SetAttributes(
			attribute.String(AttrCompletion, truncate(text, maxAttrLen)),
			attribute.String(AttrCompletionRole, roleAgent),
		)
	}
	status := StatusCompleted
	if code == codes.Ok && top.failure != "" {
		code, msg = codes.Error, top.failure
	}
	if code == codes.Error {
		status = StatusFailed
	}
	top.span.SetStatus(code, msg)
	top.span.End()

	b.emit(ctx, Record{
		Kind:       KindStep,
		Status:     status,
		SessionID:  req.SessionID,
		AgentID:    req.AgentID,
		Name:       string(top.kind),
		Error:      msg,
		DurationMs: time.Since(top.started).Milliseconds(),
	})
}

// closeAll unwinds every open span innermost to outermost with the
// given status. Used on truncation, cancellation, and mapping failure.
func (b *Builder) closeAll(ctx context.Context, stack *spanStack, req types.InvocationRequest, res *Result, output *strings.Builder, code codes.Code, msg string) {
	for !stack.empty() && stack.top().kind != "" {
		b.closeStep(ctx, stack, req, code, msg)
	}
	if root := stack.pop(); root != nil {
		b.finishRoot(ctx, root, req, res, output, "", msg)
	}
	res.Failure = msg
}

func (b *Builder) finishRoot(ctx context.Context, root *openSpan, req types.InvocationRequest, res *Result, output *strings.Builder, reason, failure string) {
	if text := root.output.String(); text != "" {
		output.WriteString(text)
	}
	res.Output = output.String()
	if res.Output != "" {
		root.span.SetAttributes(
			attribute.String(AttrCompletion, truncate(res.Output, maxAttrLen)),
			attribute.String(AttrCompletionRole, roleAgent),
		)
	}
	if reason != "" {
		root.span.SetAttributes(attribute.String(AttrCompletionReason, reason))
	}
	if res.Usage.Total() > 0 {
		root.span.SetAttributes(
			attribute.Int(AttrUsagePromptTokens, res.Usage.InputTokens),
			attribute.Int(AttrUsageCompletionTokens, res.Usage.OutputTokens),
			attribute.Int(AttrUsageTotalTokens, res.Usage.Total()),
		)
	}
	status := StatusCompleted
	if failure != "" {
		root.span.SetStatus(codes.Error, failure)
		status = StatusFailed
	} else {
		root.span.SetStatus(codes.Ok, "")
	}
	root.span.End()

	b.emit(ctx, Record{
		Kind:       KindInvocation,
		Status:     status,
		SessionID:  req.SessionID,
		AgentID:    req.AgentID,
		Error:      failure,
		DurationMs: time.Since(root.started).Milliseconds(),
		Attributes: map[string]any{
			"steps":       res.Steps,
			"toolCalls":   res.ToolCalls,
			"totalTokens": res.Usage.Total(),
		},
	})
}

func applyStep(top *openSpan, e *TraceStep, res *Result) {
	span := top.span
	if in := e.ModelInput; in != nil {
		if in.FoundationModel != "" {
			span.SetAttributes(
				attribute.String(AttrRequestModel, in.FoundationModel),
				attribute.String(AttrResponseModel, in.FoundationModel),
			)
		}
		if in.Prompt != "" {
			span.SetAttributes(
				attribute.String(AttrPrompt, truncate(in.Prompt, maxAttrLen)),
				attribute.String(AttrPromptRole, roleUser),
			)
		}
		span.SetAttributes(
			attribute.Float64(AttrTemperature, in.Temperature),
			attribute.Int(AttrTopK, in.TopK),
			attribute.Float64(AttrTopP, in.TopP),
		)
	}
	if out := e.ModelOutput; out != nil && out.Usage != nil {
		span.SetAttributes(
			attribute.Int(AttrUsagePromptTokens, out.Usage.InputTokens),
			attribute.Int(AttrUsageCompletionTokens, out.Usage.OutputTokens),
			attribute.Int(AttrUsageTotalTokens, out.Usage.Total()),
		)
		res.Usage.Add(*out.Usage)
	}
	if e.Rationale != "" {
		span.SetAttributes(attribute.String(AttrReasoning, truncate(e.Rationale, maxAttrLen)))
	}
	if e.FinalResponse != "" {
		top.output.WriteString(e.FinalResponse)
	}
	if e.GuardrailAction != "" {
		span.SetAttributes(attribute.String(AttrGuardrailAction, e.GuardrailAction))
	}
	if e.CollaboratorID != "" {
		span.SetAttributes(attribute.String(AttrCollaboratorID, e.CollaboratorID))
	}
	if e.FailureReason != "" {
		top.failure = e.FailureReason
	}
}

func requestAttributes(req types.InvocationRequest) []attribute.KeyValue {
	return []attribute.KeyValue{
		attribute.String(AttrSpanKind, spanKindLLM),
		attribute.String(AttrMetadataUserID, req.SessionID),
		attribute.String(AttrOperationName, operationInvoke),
		attribute.String(AttrSystem, systemBedrock),
		attribute.String(AttrAgentID, req.AgentID),
		attribute.String(AttrAgentAliasID, req.AgentAliasID),
		attribute.String(AttrSessionID, req.SessionID),
		attribute.String(AttrPrompt, truncate(req.InputText, maxAttrLen)),
		attribute.String(AttrPromptRole, roleUser),
	}
}

func (b *Builder) emit(ctx context.Context, record Record) {
	record.Normalize()
	_ = b.sink.Emit(context.WithoutCancel(ctx), record)
}

func truncate(s string, max int) string {
	if len(s) <= max {
		return s
	}
	return s[:max] + "…"
}
