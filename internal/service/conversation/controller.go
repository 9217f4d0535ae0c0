// Package conversation runs one send cycle: user turn, remote completion,
// emotional prefix, assistant turn.
package conversation

import (
	"context"
	"errors"
	"strings"
	"sync"

	"go.uber.org/zap"

	"github.com/zhouzirui/miaoge/backend/internal/analysis/emotion"
	"github.com/zhouzirui/miaoge/backend/internal/model/chat"
	"github.com/zhouzirui/miaoge/backend/internal/model/persona"
)

// DefaultWindow 发送给模型的历史消息条数。
const DefaultWindow = 10

// SearchPrefix marks a message as a web search request.
const SearchPrefix = "/search "

var (
	ErrEmptyMessage = errors.New("message content or image is required")
	ErrSendInFlight = errors.New("a message is already being sent for this session")
	ErrNilSession   = errors.New("session is required")
	ErrNilStore     = errors.New("session store is required")
)

// State 单个会话的发送状态。
type State string

const (
	Idle    State = "idle"
	Sending State = "sending"
)

// Replier produces the remote model reply for a context window.
type Replier interface {
	GenerateReply(ctx context.Context, history []chat.Message, userContent string) (string, error)
}

// SessionStore is the persistence the controller needs for Converse.
type SessionStore interface {
	Load(ctx context.Context, sessionID string) *chat.Session
	Save(ctx context.Context, session *chat.Session) error
}

// Controller orchestrates sends and guards against concurrent sends per session.
type Controller struct {
	replier    Replier
	classifier *emotion.Classifier
	persona    persona.Persona
	window     int
	logger     *zap.Logger

	mu       sync.Mutex
	inflight map[string]struct{}
}

// Option customises a Controller.
type Option func(*Controller)

// WithWindow sets the context window size.
func WithWindow(n int) Option {
	return func(c *Controller) {
		if n > 0 {
			c.window = n
		}
	}
}

// WithLogger sets the logger.
func WithLogger(logger *zap.Logger) Option {
	return func(c *Controller) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// NewController wires the replier, classifier and persona texts together.
func NewController(replier Replier, classifier *emotion.Classifier, p persona.Persona, opts ...Option) *Controller {
	c := &Controller{
		replier:    replier,
		classifier: classifier,
		persona:    p,
		window:     DefaultWindow,
		logger:     zap.NewNop(),
		inflight:   make(map[string]struct{}),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// State reports whether a send is outstanding for the session.
func (c *Controller) State(sessionID string) State {
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, ok := c.inflight[sessionID]; ok {
		return Sending
	}
	return Idle
}

// SendMessage appends the user turn and the assistant reply to a copy of
// session and returns it. Remote failures become a fallback assistant turn and
// are not returned as errors; the input session is never modified.
func (c *Controller) SendMessage(ctx context.Context, session *chat.Session, content, image string) (*chat.Session, error) {
	if session == nil {
		return nil, ErrNilSession
	}
	if isEmpty(content, image) {
		return session, ErrEmptyMessage
	}
	if !c.acquire(session.ID) {
		return session, ErrSendInFlight
	}
	defer c.release(session.ID)

	return c.send(ctx, session, content, image), nil
}

// Converse loads the session, sends the message and persists the result while
// holding the session's in-flight guard for the whole cycle.
func (c *Controller) Converse(ctx context.Context, store SessionStore, sessionID, content, image string) (*chat.Session, error) {
	if store == nil {
		return nil, ErrNilStore
	}
	if sessionID == "" {
		sessionID = chat.DefaultSessionID
	}
	if isEmpty(content, image) {
		return store.Load(ctx, sessionID), ErrEmptyMessage
	}
	if !c.acquire(sessionID) {
		return store.Load(ctx, sessionID), ErrSendInFlight
	}
	defer c.release(sessionID)

	updated := c.send(ctx, store.Load(ctx, sessionID), content, image)
	if err := store.Save(ctx, updated); err != nil {
		return updated, err
	}
	return updated, nil
}

func (c *Controller) send(ctx context.Context, session *chat.Session, content, image string) *chat.Session {
	// 上下文取本轮用户消息之前的最近 N 条
	history := session.Recent(c.window)

	updated := session.Clone()
	userContent := content
	if userContent == "" && image != "" {
		userContent = c.persona.ImageOnlyText
	}
	updated.Append(chat.UserMessage(userContent, image))

	query := content
	if image != "" {
		query += c.persona.PromptImageTag
	}

	reply, err := c.replier.GenerateReply(ctx, history, query)
	if err != nil {
		c.logger.Error("发送消息失败", zap.String("session", session.ID), zap.Error(err))
		updated.Append(chat.AssistantMessage(c.persona.FallbackMessage, string(emotion.Sadness)))
		return updated
	}

	prefix, tag := c.classifier.Respond(content)
	updated.Append(chat.AssistantMessage(prefix+" "+reply, string(tag)))

	c.logger.Info("消息已回复",
		zap.String("session", session.ID),
		zap.Int("history", len(history)),
		zap.String("emotion", string(tag)),
	)
	return updated
}

func isEmpty(content, image string) bool {
	return strings.TrimSpace(content) == "" && image == ""
}

// ApplySearchMode prefixes content with the search marker when on. Blank
// content is left alone so it is still rejected as empty.
func ApplySearchMode(content string, on bool) string {
	if !on || strings.TrimSpace(content) == "" {
		return content
	}
	return SearchPrefix + content
}

func (c *Controller) acquire(sessionID string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, busy := c.inflight[sessionID]; busy {
		return false
	}
	c.inflight[sessionID] = struct{}{}
	return true
}

func (c *Controller) release(sessionID string) {
	c.mu.Lock()
	delete(c.inflight, sessionID)
	c.mu.Unlock()
}
