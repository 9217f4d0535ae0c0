// Package ws keeps a live channel to the chat page: the client sends messages
// over it and receives the full message list after every change.
package ws

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/zhouzirui/miaoge/backend/internal/model/chat"
	chatService "github.com/zhouzirui/miaoge/backend/internal/service/chat"
	"github.com/zhouzirui/miaoge/backend/internal/service/conversation"
	"github.com/zhouzirui/miaoge/backend/internal/service/upload"
)

const (
	readTimeout  = 60 * time.Second
	pingInterval = 54 * time.Second
	writeWait    = 10 * time.Second
)

// Handler WebSocket会话处理器
type Handler struct {
	store      *chatService.Service
	controller *conversation.Controller
	logger     *zap.Logger
	upgrader   websocket.Upgrader
}

// New 创建WebSocket处理器
func New(store *chatService.Service, controller *conversation.Controller, logger *zap.Logger) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handler{
		store:      store,
		controller: controller,
		logger:     logger,
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool {
				return true
			},
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
		},
	}
}

// RegisterRoutes 注册WebSocket路由
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Get("/ws/{sessionID}", h.handleWebSocket)
}

type inboundMessage struct {
	Type string          `json:"type"`
	Data json.RawMessage `json:"data,omitempty"`
}

// SendPayload is the data of a "send" frame.
type SendPayload struct {
	Content string `json:"content"`
	Image   string `json:"image,omitempty"`
	Search  bool   `json:"search,omitempty"`
}

// MessagesPayload is pushed after every change to the session.
type MessagesPayload struct {
	Messages []chat.Message     `json:"messages"`
	State    conversation.State `json:"state"`
}

type outgoingMessage struct {
	Type      string `json:"type"`
	SessionID string `json:"sessionId,omitempty"`
	Data      any    `json:"data,omitempty"`
	Timestamp int64  `json:"timestamp"`
}

func (h *Handler) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	sessionID := chi.URLParam(r, "sessionID")
	if sessionID == "" {
		sessionID = chat.DefaultSessionID
	}

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Warn("[websocket] upgrade failed", zap.Error(err))
		return
	}
	defer conn.Close()

	h.logger.Info("[websocket] new connection", zap.String("session", sessionID))

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()

	conn.SetReadDeadline(time.Now().Add(readTimeout))
	conn.SetPongHandler(func(string) error {
		conn.SetReadDeadline(time.Now().Add(readTimeout))
		return nil
	})

	go h.pingLoop(ctx, conn)

	h.pushMessages(conn, h.store.Load(ctx, sessionID))

	for {
		var msg inboundMessage
		if err := conn.ReadJSON(&msg); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				h.logger.Warn("[websocket] read error", zap.String("session", sessionID), zap.Error(err))
			}
			return
		}

		h.handleMessage(ctx, conn, sessionID, &msg)

		// 模型调用可能超过读超时
		conn.SetReadDeadline(time.Now().Add(readTimeout))
	}
}

func (h *Handler) handleMessage(ctx context.Context, conn *websocket.Conn, sessionID string, msg *inboundMessage) {
	switch msg.Type {
	case "send":
		h.handleSend(ctx, conn, sessionID, msg.Data)
	case "clear":
		h.handleClear(ctx, conn, sessionID)
	case "load":
		h.pushMessages(conn, h.store.Load(ctx, sessionID))
	default:
		h.sendError(conn, sessionID, "unsupported message type: "+msg.Type)
	}
}

func (h *Handler) handleSend(ctx context.Context, conn *websocket.Conn, sessionID string, raw json.RawMessage) {
	var payload SendPayload
	if err := json.Unmarshal(raw, &payload); err != nil {
		h.sendError(conn, sessionID, "invalid send payload")
		return
	}
	if payload.Image != "" {
		if _, err := upload.ValidateDataURI(payload.Image); err != nil {
			h.sendError(conn, sessionID, imageError(err))
			return
		}
	}

	h.write(conn, outgoingMessage{
		Type:      "status",
		SessionID: sessionID,
		Data:      map[string]conversation.State{"state": conversation.Sending},
	})

	content := conversation.ApplySearchMode(payload.Content, payload.Search)
	session, err := h.controller.Converse(ctx, h.store, sessionID, content, payload.Image)
	if err != nil {
		if !errors.Is(err, conversation.ErrEmptyMessage) && !errors.Is(err, conversation.ErrSendInFlight) {
			h.logger.Error("[websocket] send failed", zap.String("session", sessionID), zap.Error(err))
		}
		h.sendError(conn, sessionID, err.Error())
		if session == nil {
			return
		}
	}
	h.pushMessages(conn, session)
}

func (h *Handler) handleClear(ctx context.Context, conn *websocket.Conn, sessionID string) {
	if h.controller.State(sessionID) == conversation.Sending {
		h.sendError(conn, sessionID, conversation.ErrSendInFlight.Error())
		return
	}
	session := h.store.Clear(sessionID)
	if err := h.store.Save(ctx, session); err != nil {
		h.logger.Error("[websocket] clear failed", zap.String("session", sessionID), zap.Error(err))
		h.sendError(conn, sessionID, "failed to save session")
		return
	}
	h.pushMessages(conn, session)
}

// pushMessages 推送完整消息列表，客户端收到后滚动到最新一条
func (h *Handler) pushMessages(conn *websocket.Conn, session *chat.Session) {
	h.write(conn, outgoingMessage{
		Type:      "messages",
		SessionID: session.ID,
		Data: MessagesPayload{
			Messages: session.Messages,
			State:    h.controller.State(session.ID),
		},
	})
}

func (h *Handler) sendError(conn *websocket.Conn, sessionID, message string) {
	h.write(conn, outgoingMessage{
		Type:      "error",
		SessionID: sessionID,
		Data:      map[string]string{"message": message},
	})
}

func (h *Handler) write(conn *websocket.Conn, msg outgoingMessage) {
	msg.Timestamp = time.Now().Unix()
	conn.SetWriteDeadline(time.Now().Add(writeWait))
	if err := conn.WriteJSON(msg); err != nil {
		h.logger.Warn("[websocket] write failed", zap.String("type", msg.Type), zap.Error(err))
	}
}

// pingLoop 定期发送ping消息
func (h *Handler) pingLoop(ctx context.Context, conn *websocket.Conn) {
	ticker := time.NewTicker(pingInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			// WriteControl 可与 WriteJSON 并发调用
			if err := conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(writeWait)); err != nil {
				return
			}
		}
	}
}

func imageError(err error) string {
	switch {
	case errors.Is(err, upload.ErrUnsupportedType):
		return upload.ErrUnsupportedType.Error()
	case errors.Is(err, upload.ErrTooLarge):
		return upload.ErrTooLarge.Error()
	default:
		return upload.ErrProcessFailed.Error()
	}
}
