package models

import "errors"

// LLM boundary errors. The agent loop treats any other provider failure as a
// transport fault.
var (
	ErrLLMUnauthorized = errors.New("llm provider rejected credentials")
	ErrLLMRateLimited  = errors.New("llm provider rate limited")
)

// ChatRole identifies the author of a transcript message.
type ChatRole string

const (
	RoleSystem    ChatRole = "system"
	RoleUser      ChatRole = "user"
	RoleAssistant ChatRole = "assistant"
	RoleTool      ChatRole = "tool"
)

// ChatMessage is one transcript entry. A tool-role message must carry the
// ToolCallID of the assistant request it answers.
type ChatMessage struct {
	Role       ChatRole   `json:"role"`
	Content    string     `json:"content"`
	ToolCalls  []ToolCall `json:"tool_calls,omitempty"`
	ToolCallID string     `json:"tool_call_id,omitempty"`
}

// ToolCall is an assistant request to invoke one named tool. Arguments is the
// raw JSON bag exactly as produced by the model.
type ToolCall struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	Arguments string `json:"arguments"`
}

// ToolDef is the JSON-schema description of one tool as sent to the model.
type ToolDef struct {
	Name        string         `json:"name"`
	Description string         `json:"description"`
	Parameters  map[string]any `json:"parameters"`
}

// ChatRequest is one completion call against a routed model.
type ChatRequest struct {
	Model       string        // routing key or model key from config
	Messages    []ChatMessage
	Tools       []ToolDef
	Temperature float64 // 0 keeps the model's configured default
	MaxTokens   int
	JSONSchema  map[string]any // response_format json_schema, optional
}

// TokenUsage reports prompt and completion token counts.
type TokenUsage struct {
	InputTokens  int64 `json:"input_tokens"`
	OutputTokens int64 `json:"output_tokens"`
}

// ChatResult is the assistant turn plus accounting metadata.
type ChatResult struct {
	Message   ChatMessage `json:"message"`
	Usage     TokenUsage  `json:"usage"`
	ModelUsed string      `json:"model_used"`
}

// HasToolCalls reports whether the assistant requested tool invocations.
func (r ChatResult) HasToolCalls() bool {
	return len(r.Message.ToolCalls) > 0
}
