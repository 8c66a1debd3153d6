package bedrock

import (
	"context"
	"errors"
	"testing"

	"github.com/PeriniM/langsmith-bedrock-agents/types"
	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/bedrockagentruntime"
	"github.com/aws/smithy-go"
)

type fakeAPI struct {
	input *bedrockagentruntime.InvokeAgentInput
	err   error
}

func (f *fakeAPI) InvokeAgent(ctx context.Context, params *bedrockagentruntime.InvokeAgentInput, optFns ...func(*bedrockagentruntime.Options)) (*bedrockagentruntime.InvokeAgentOutput, error) {
	f.input = params
	if f.err != nil {
		return nil, f.err
	}
	return &bedrockagentruntime.InvokeAgentOutput{}, nil
}

func testClient(api InvokeAgentAPI, opts ...Option) *Client {
	return New(aws.Config{Region: "eu-north-1"}, append([]Option{WithAPI(api)}, opts...)...)
}

func validRequest() types.InvocationRequest {
	return types.InvocationRequest{
		SessionID:    "sess-1",
		InputText:    "hello",
		AgentID:      "agent-1",
		AgentAliasID: "alias-1",
	}
}

func TestInvokeValidation(t *testing.T) {
	client := testClient(&fakeAPI{})

	cases := []struct {
		name string
		req  types.InvocationRequest
	}{
		{"missing agent id", types.InvocationRequest{SessionID: "s", AgentAliasID: "a"}},
		{"missing alias id", types.InvocationRequest{SessionID: "s", AgentID: "a"}},
		{"missing session id", types.InvocationRequest{AgentID: "a", AgentAliasID: "b"}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := client.Invoke(context.Background(), tc.req)
			if !errors.Is(err, ErrInvocation) {
				t.Errorf("expected ErrInvocation, got %v", err)
			}
		})
	}
}

func TestInvokeRequestShape(t *testing.T) {
	api := &fakeAPI{}
	client := testClient(api, WithStreamFinalResponse(true), WithGuardrailInterval(25))

	if _, err := client.Invoke(context.Background(), validRequest()); err != nil {
		t.Fatalf("Invoke failed: %v", err)
	}

	in := api.input
	if in == nil {
		t.Fatal("API was not called")
	}
	if aws.ToString(in.AgentId) != "agent-1" || aws.ToString(in.AgentAliasId) != "alias-1" {
		t.Errorf("agent identity not forwarded: %v %v", in.AgentId, in.AgentAliasId)
	}
	if aws.ToString(in.SessionId) != "sess-1" || aws.ToString(in.InputText) != "hello" {
		t.Errorf("session fields not forwarded")
	}
	if !aws.ToBool(in.EnableTrace) {
		t.Error("trace delivery must always be enabled")
	}
	sc := in.StreamingConfigurations
	if sc == nil || !sc.StreamFinalResponse || aws.ToInt32(sc.ApplyGuardrailInterval) != 25 {
		t.Errorf("unexpected streaming configuration: %+v", sc)
	}
}

func TestInvokeClassifiesAPIErrors(t *testing.T) {
	client := testClient(&fakeAPI{err: &smithy.GenericAPIError{
		Code:    "AccessDeniedException",
		Message: "not allowed",
	}})
	_, err := client.Invoke(context.Background(), validRequest())
	if !errors.Is(err, ErrAuth) {
		t.Errorf("expected ErrAuth, got %v", err)
	}
}
