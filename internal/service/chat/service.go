package chat

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/zhouzirui/miaoge/backend/internal/analysis/emotion"
	"github.com/zhouzirui/miaoge/backend/internal/model/chat"
	"github.com/zhouzirui/miaoge/backend/internal/model/persona"
	"github.com/zhouzirui/miaoge/backend/internal/storage"
)

// SlotKey 默认会话在持久化存储中的键名。
const SlotKey = "chatMessages"

var ErrSessionRequired = errors.New("session is required")

// Service loads, saves and resets sessions against a durable slot.
type Service struct {
	slot    storage.Slot
	persona persona.Persona
	logger  *zap.Logger
}

// NewService binds the session store to a slot and the persona providing canned texts.
func NewService(slot storage.Slot, p persona.Persona, logger *zap.Logger) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{slot: slot, persona: p, logger: logger}
}

// KeyFor returns the slot key for a session ID.
func KeyFor(sessionID string) string {
	if sessionID == "" || sessionID == chat.DefaultSessionID {
		return SlotKey
	}
	return SlotKey + ":" + sessionID
}

// Load restores a session. Missing or unreadable data yields a fresh session
// holding the welcome message; Load never fails.
func (s *Service) Load(ctx context.Context, sessionID string) *chat.Session {
	if sessionID == "" {
		sessionID = chat.DefaultSessionID
	}

	data, err := s.slot.Get(ctx, KeyFor(sessionID))
	if err != nil {
		if !errors.Is(err, storage.ErrNotFound) {
			s.logger.Warn("读取会话失败，使用欢迎消息", zap.String("session", sessionID), zap.Error(err))
		}
		return s.welcome(sessionID)
	}

	var messages []chat.Message
	if err := json.Unmarshal(data, &messages); err != nil {
		s.logger.Warn("会话数据损坏，使用欢迎消息", zap.String("session", sessionID), zap.Error(err))
		return s.welcome(sessionID)
	}
	if len(messages) == 0 {
		return s.welcome(sessionID)
	}

	session := chat.NewSession(sessionID, messages...)
	if err := session.Validate(); err != nil {
		s.logger.Warn("会话数据不合法，使用欢迎消息", zap.String("session", sessionID), zap.Error(err))
		return s.welcome(sessionID)
	}
	return session
}

// Save overwrites the slot with the full ordered message list.
func (s *Service) Save(ctx context.Context, session *chat.Session) error {
	if session == nil {
		return ErrSessionRequired
	}

	messages := session.Messages
	if messages == nil {
		messages = []chat.Message{}
	}

	data, err := json.Marshal(messages)
	if err != nil {
		return fmt.Errorf("marshal session %s: %w", session.ID, err)
	}
	if err := s.slot.Put(ctx, KeyFor(session.ID), data); err != nil {
		return fmt.Errorf("save session %s: %w", session.ID, err)
	}
	return nil
}

// Clear returns a fresh session containing only the cleared notice. The caller persists it.
func (s *Service) Clear(sessionID string) *chat.Session {
	if sessionID == "" {
		sessionID = chat.DefaultSessionID
	}
	return chat.NewSession(sessionID, chat.AssistantMessage(s.persona.ClearedMessage, string(emotion.Joy)))
}

// CreateSession provisions a new session seeded with the welcome message.
func (s *Service) CreateSession(ctx context.Context) (*chat.Session, error) {
	session := s.welcome(uuid.NewString())
	if err := s.Save(ctx, session); err != nil {
		return nil, err
	}
	return session, nil
}

// Delete removes a session from the slot.
func (s *Service) Delete(ctx context.Context, sessionID string) error {
	return s.slot.Delete(ctx, KeyFor(sessionID))
}

func (s *Service) welcome(sessionID string) *chat.Session {
	return chat.NewSession(sessionID, chat.AssistantMessage(s.persona.WelcomeMessage, string(emotion.Joy)))
}
