package ollama

import (
	"encoding/json"

	"github.com/voxturn/voxturn-core/core/llms"
)

type message struct {
	Role       messageRole `json:"role"`
	Content    string      `json:"content"`
	ToolCallID string      `json:"tool_call_id,omitempty"`
	ToolCalls  []toolCall  `json:"tool_calls,omitempty"`
}

type messageRole string

const (
	messageRoleSystem    messageRole = "system"
	messageRoleUser      messageRole = "user"
	messageRoleAssistant messageRole = "assistant"
	messageRoleTool      messageRole = "tool"
)

type toolCall struct {
	ID       string           `json:"id,omitempty"`
	Function toolCallFunction `json:"function"`
}

type toolCallFunction struct {
	Name string `json:"name"`
	// Ollama sends arguments as a JSON object, not an escaped string.
	Arguments json.RawMessage `json:"arguments"`
}

// Tool is the wire form of llms.Tool; copier maps the fields across.
type Tool struct {
	Type     string       `json:"type"`
	Function toolFunction `json:"function"`
}

type toolFunction struct {
	Name        string         `json:"name"`
	Description string         `json:"description"`
	Parameters  toolParameters `json:"parameters"`
}

type toolParameters struct {
	Type       string                        `json:"type"`
	Properties map[string]llms.ParameterBase `json:"properties"`
	Required   []string                      `json:"required,omitempty"`
}

type requestBody struct {
	Model    string    `json:"model"`
	Messages []message `json:"messages"`
	Stream   bool      `json:"stream"`
	Tools    []Tool    `json:"tools,omitempty"`
}

type responseBody struct {
	Model   string  `json:"model"`
	Message message `json:"message"`
	Done    bool    `json:"done"`
	Error   string  `json:"error,omitempty"`
}

func toMessages(instructions string, conversation []llms.Message) []message {
	messages := []message{}
	if instructions != "" {
		messages = append(messages, message{
			Role:    messageRoleSystem,
			Content: instructions,
		})
	}

	for _, msg := range conversation {
		wireMsg := message{
			Role:       messageRole(msg.Role),
			Content:    msg.Content,
			ToolCallID: msg.ToolCallID,
		}
		for _, tCall := range msg.ToolCalls {
			arguments := tCall.Arguments
			if arguments == "" {
				arguments = "{}"
			}
			wireMsg.ToolCalls = append(wireMsg.ToolCalls, toolCall{
				ID: tCall.ID,
				Function: toolCallFunction{
					Name:      tCall.Name,
					Arguments: json.RawMessage(arguments),
				},
			})
		}
		messages = append(messages, wireMsg)
	}

	return messages
}
