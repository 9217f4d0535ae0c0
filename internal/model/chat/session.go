package chat

import "fmt"

// DefaultSessionID names the conversation used when the caller does not pick one.
const DefaultSessionID = "default"

// Session is the ordered message list of one conversation. Messages are only
// ever appended; clearing replaces the whole session.
type Session struct {
	ID       string    `json:"id"`
	Messages []Message `json:"messages"`
}

// NewSession returns a session seeded with the given messages.
func NewSession(id string, seed ...Message) *Session {
	return &Session{ID: id, Messages: append([]Message(nil), seed...)}
}

// Append adds a message to the end of the session.
func (s *Session) Append(msg Message) {
	s.Messages = append(s.Messages, msg)
}

// Len returns the number of messages.
func (s *Session) Len() int {
	return len(s.Messages)
}

// Last returns the most recent message.
func (s *Session) Last() (Message, bool) {
	if len(s.Messages) == 0 {
		return Message{}, false
	}
	return s.Messages[len(s.Messages)-1], true
}

// Recent returns a copy of the most recent n messages.
func (s *Session) Recent(n int) []Message {
	if n <= 0 || len(s.Messages) == 0 {
		return nil
	}

	start := 0
	if len(s.Messages) > n {
		start = len(s.Messages) - n
	}

	recent := make([]Message, len(s.Messages)-start)
	copy(recent, s.Messages[start:])
	return recent
}

// Clone returns a deep copy so callers can mutate without aliasing.
func (s *Session) Clone() *Session {
	copied := make([]Message, len(s.Messages))
	copy(copied, s.Messages)
	return &Session{ID: s.ID, Messages: copied}
}

// Validate checks every message of the session.
func (s *Session) Validate() error {
	for i, msg := range s.Messages {
		if err := msg.Validate(); err != nil {
			return fmt.Errorf("message %d: %w", i, err)
		}
	}
	return nil
}
