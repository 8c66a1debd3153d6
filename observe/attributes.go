package observe

// Canonical span attribute keys. The gen_ai.* keys follow the GenAI
// semantic conventions; the langsmith.* keys are understood by the
// LangSmith OTLP ingestion endpoint. This mapping is fixed, process-wide
// configuration and is never mutated at runtime.
const (
	AttrSpanKind       = "langsmith.span.kind"
	AttrMetadataUserID = "langsmith.metadata.user_id"

	AttrOperationName = "gen_ai.operation.name"
	AttrSystem        = "gen_ai.system"
	AttrAgentID       = "gen_ai.agent.id"
	AttrAgentAliasID  = "gen_ai.agent.alias_id"
	AttrSessionID     = "gen_ai.conversation.id"

	AttrPrompt         = "gen_ai.prompt.content"
	AttrPromptRole     = "gen_ai.prompt.role"
	AttrCompletion     = "gen_ai.completion.content"
	AttrCompletionRole = "gen_ai.completion.role"

	AttrRequestModel  = "gen_ai.request.model"
	AttrResponseModel = "gen_ai.response.model"
	AttrTemperature   = "gen_ai.request.temperature"
	AttrTopK          = "gen_ai.request.top_k"
	AttrTopP          = "gen_ai.request.top_p"

	AttrUsagePromptTokens     = "gen_ai.usage.prompt_tokens"
	AttrUsageCompletionTokens = "gen_ai.usage.completion_tokens"
	AttrUsageTotalTokens      = "gen_ai.usage.total_tokens"

	AttrReasoning        = "gen_ai.reasoning"
	AttrCompletionReason = "gen_ai.response.finish_reason"

	AttrToolName   = "gen_ai.tool.name"
	AttrToolInput  = "gen_ai.tool.input"
	AttrToolOutput = "gen_ai.tool.output"

	AttrStepKind        = "gen_ai.agent.step.kind"
	AttrGuardrailAction = "gen_ai.guardrail.action"
	AttrCollaboratorID  = "gen_ai.agent.collaborator.id"
)

const (
	systemBedrock   = "aws.bedrock"
	operationInvoke = "invoke_agent"
	spanKindLLM     = "LLM"
	spanKindTool    = "TOOL"
	roleAgent       = "agent"
	roleUser        = "user"
)
