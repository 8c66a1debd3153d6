// Package bedrock invokes an AWS Bedrock agent and exposes its streamed
// response as the event sequence consumed by the observe package.
package bedrock

import (
	"context"
	"fmt"
	"strings"

	"github.com/PeriniM/langsmith-bedrock-agents/observe"
	"github.com/PeriniM/langsmith-bedrock-agents/types"
	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/bedrockagentruntime"
	bedrocktypes "github.com/aws/aws-sdk-go-v2/service/bedrockagentruntime/types"
)

const defaultGuardrailInterval = 10

// InvokeAgentAPI is the slice of the Bedrock agent runtime client that
// the adapter needs.
type InvokeAgentAPI interface {
	InvokeAgent(ctx context.Context, params *bedrockagentruntime.InvokeAgentInput, optFns ...func(*bedrockagentruntime.Options)) (*bedrockagentruntime.InvokeAgentOutput, error)
}

type Client struct {
	api                 InvokeAgentAPI
	streamFinalResponse bool
	guardrailInterval   int32
}

type Option func(*Client)

// WithStreamFinalResponse asks the agent to stream the final answer as
// chunks instead of delivering it in one piece.
func WithStreamFinalResponse(enabled bool) Option {
	return func(c *Client) { c.streamFinalResponse = enabled }
}

func WithGuardrailInterval(every int) Option {
	return func(c *Client) {
		if every > 0 {
			c.guardrailInterval = int32(every)
		}
	}
}

// WithAPI replaces the underlying runtime client.
func WithAPI(api InvokeAgentAPI) Option {
	return func(c *Client) {
		if api != nil {
			c.api = api
		}
	}
}

func New(cfg aws.Config, opts ...Option) *Client {
	c := &Client{
		api:               bedrockagentruntime.NewFromConfig(cfg),
		guardrailInterval: defaultGuardrailInterval,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Invoke issues exactly one InvokeAgent call and returns the lazy
// single-pass event stream of the agent's response. Trace delivery is
// always enabled; consuming the stream may block while the next part is
// awaited.
func (c *Client) Invoke(ctx context.Context, req types.InvocationRequest) (observe.Stream, error) {
	if strings.TrimSpace(req.AgentID) == "" {
		return nil, fmt.Errorf("%w: agent id is required", ErrInvocation)
	}
	if strings.TrimSpace(req.AgentAliasID) == "" {
		return nil, fmt.Errorf("%w: agent alias id is required", ErrInvocation)
	}
	if strings.TrimSpace(req.SessionID) == "" {
		return nil, fmt.Errorf("%w: session id is required", ErrInvocation)
	}

	out, err := c.api.InvokeAgent(ctx, &bedrockagentruntime.InvokeAgentInput{
		AgentId:      aws.String(req.AgentID),
		AgentAliasId: aws.String(req.AgentAliasID),
		SessionId:    aws.String(req.SessionID),
		InputText:    aws.String(req.InputText),
		EnableTrace:  aws.Bool(true),
		StreamingConfigurations: &bedrocktypes.StreamingConfigurations{
			StreamFinalResponse:    c.streamFinalResponse,
			ApplyGuardrailInterval: aws.Int32(c.guardrailInterval),
		},
	})
	if err != nil {
		return nil, classify(err)
	}
	return newEventStream(out.GetStream()), nil
}
