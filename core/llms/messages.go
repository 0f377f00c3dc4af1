package llms

// Message is a single message in the conversation context sent to an LLM.
type Message struct {
	Role       MessageRole
	Content    string
	ToolCalls  []ToolCall
	ToolCallID string
}

// Response is a single response from an LLM: either final content, or a batch
// of tool calls the model wants executed before it can answer. Providers must
// never return both.
type Response struct {
	Content   string
	ToolCalls []ToolCall
}

// ToolCall is a tool invocation requested by the model. Execution results are
// correlated back to it by ID.
type ToolCall struct {
	ID        string
	Name      string
	Arguments string
}

// MessageRole describes who the message is from.
type MessageRole string

const (
	MessageRoleSystem    MessageRole = "system"
	MessageRoleUser      MessageRole = "user"
	MessageRoleAssistant MessageRole = "assistant"
	MessageRoleTool      MessageRole = "tool"
)
