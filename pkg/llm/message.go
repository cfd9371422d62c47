// Package llm defines the provider-agnostic language-model client interface
// and message types shared by all provider implementations.
package llm

// Role constants for conversation messages.
const (
	RoleSystem    = "system"
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// Message represents a single message in a conversation.
// Content is stored as an array of ContentBlocks so multimodal content can be
// added later without changing the message shape.
type Message struct {
	Role    string         `json:"role"`
	Content []ContentBlock `json:"content"`
}

// ContentBlock represents a single piece of content within a message.
type ContentBlock struct {
	Type string `json:"type"` // currently always "text"
	Text string `json:"text,omitempty"`
}

// NewTextMessage creates a simple text message with the given role and content.
func NewTextMessage(role, text string) Message {
	return Message{
		Role: role,
		Content: []ContentBlock{
			{Type: "text", Text: text},
		},
	}
}

// SystemMessage creates a system-role text message.
func SystemMessage(text string) Message { return NewTextMessage(RoleSystem, text) }

// UserMessage creates a user-role text message.
func UserMessage(text string) Message { return NewTextMessage(RoleUser, text) }

// AssistantMessage creates an assistant-role text message.
func AssistantMessage(text string) Message { return NewTextMessage(RoleAssistant, text) }

// GetText returns the concatenated text content from all text blocks in the message.
func (m *Message) GetText() string {
	var result string
	for _, block := range m.Content {
		if block.Type == "text" {
			result += block.Text
		}
	}
	return result
}
