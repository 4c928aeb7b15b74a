package llm

import "strings"

// Role identifies who authored a message within a conversation.
type Role string

const (
	// RoleSystem represents a system message
	RoleSystem Role = "system"
	// RoleUser represents a user message
	RoleUser Role = "user"
	// RoleAssistant represents an assistant message
	RoleAssistant Role = "assistant"
)

// Valid reports whether r is one of the known roles.
func (r Role) Valid() bool {
	switch r {
	case RoleSystem, RoleUser, RoleAssistant:
		return true
	}
	return false
}

// Label is the upper-case tag used in rendered transcripts, e.g. "USER".
func (r Role) Label() string {
	if r == "" {
		return "UNKNOWN"
	}
	return strings.ToUpper(string(r))
}

// Message is a single turn of a conversation. It is a value type: copies
// handed out by stores can be modified without touching the stored turn.
type Message struct {
	Role    Role   `json:"role"`
	Content string `json:"content"`
}

// NewUserMessage builds a user turn.
func NewUserMessage(content string) Message {
	return Message{Role: RoleUser, Content: content}
}

// NewAssistantMessage builds an assistant turn.
func NewAssistantMessage(content string) Message {
	return Message{Role: RoleAssistant, Content: content}
}

// NewSystemMessage builds a system turn.
func NewSystemMessage(content string) Message {
	return Message{Role: RoleSystem, Content: content}
}

// Completion is the result of a buffered call.
type Completion struct {
	Model string `json:"model"`
	Text  string `json:"response"`
	Done  bool   `json:"done"`
}

// MessagesToString renders messages one per line as "[ROLE] content".
func MessagesToString(messages []Message) string {
	var sb strings.Builder
	for i, message := range messages {
		if i > 0 {
			sb.WriteString("\n")
		}
		sb.WriteString("[")
		sb.WriteString(message.Role.Label())
		sb.WriteString("] ")
		sb.WriteString(message.Content)
	}
	return sb.String()
}
