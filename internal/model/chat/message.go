package chat

import "fmt"

// Role 标识消息的发送方。
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
	RoleSystem    Role = "system"
)

// Valid reports whether r is one of the known roles.
func (r Role) Valid() bool {
	switch r {
	case RoleUser, RoleAssistant, RoleSystem:
		return true
	default:
		return false
	}
}

// Message is a single persisted chat turn.
type Message struct {
	Role    Role   `json:"role"`
	Content string `json:"content"`
	Emotion string `json:"emotion,omitempty"`
	Image   string `json:"image,omitempty"` // base64 data URI
}

// UserMessage builds a user turn. Emotion is never set on user messages.
func UserMessage(content, image string) Message {
	return Message{Role: RoleUser, Content: content, Image: image}
}

// AssistantMessage builds an assistant turn tagged with an emotion label.
func AssistantMessage(content, emotion string) Message {
	return Message{Role: RoleAssistant, Content: content, Emotion: emotion}
}

// HasImage 表示消息是否附带图片。
func (m Message) HasImage() bool {
	return m.Image != ""
}

// Validate checks the role and the assistant-only emotion invariant.
func (m Message) Validate() error {
	if !m.Role.Valid() {
		return fmt.Errorf("invalid role %q", m.Role)
	}
	if m.Emotion != "" && m.Role != RoleAssistant {
		return fmt.Errorf("emotion %q set on %s message", m.Emotion, m.Role)
	}
	return nil
}
