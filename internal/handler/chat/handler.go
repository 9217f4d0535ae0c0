package chat

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/zhouzirui/miaoge/backend/internal/model/chat"
	chatService "github.com/zhouzirui/miaoge/backend/internal/service/chat"
	"github.com/zhouzirui/miaoge/backend/internal/service/conversation"
	"github.com/zhouzirui/miaoge/backend/internal/service/upload"
	"github.com/zhouzirui/miaoge/backend/pkg/utils"
)

// Handler 聊天服务的HTTP处理器
type Handler struct {
	store      *chatService.Service
	controller *conversation.Controller
	logger     *zap.Logger
}

// New 创建聊天处理器
func New(store *chatService.Service, controller *conversation.Controller, logger *zap.Logger) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handler{
		store:      store,
		controller: controller,
		logger:     logger,
	}
}

// SessionResponse is the wire form of a session.
type SessionResponse struct {
	ID       string             `json:"id"`
	Messages []chat.Message     `json:"messages"`
	State    conversation.State `json:"state"`
}

// SendRequest is the body of POST /sessions/{sessionID}/messages.
type SendRequest struct {
	Content string `json:"content"`
	Image   string `json:"image,omitempty"`
	Search  bool   `json:"search,omitempty"`
}

// RegisterRoutes 注册聊天相关的路由
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Post("/session", h.handleCreateSession)
	r.Route("/sessions/{sessionID}", func(r chi.Router) {
		r.Get("/messages", h.handleListMessages)
		r.Post("/messages", h.handleSendMessage)
		r.Delete("/messages", h.handleClear)
		r.Get("/status", h.handleStatus)
	})
}

// handleCreateSession 创建会话
func (h *Handler) handleCreateSession(w http.ResponseWriter, r *http.Request) {
	session, err := h.store.CreateSession(r.Context())
	if err != nil {
		h.logger.Error("create session failed", zap.Error(err))
		utils.RespondError(w, http.StatusInternalServerError, "failed to create session")
		return
	}
	utils.RespondJSON(w, http.StatusCreated, h.toResponse(session))
}

// handleListMessages 读取会话消息
func (h *Handler) handleListMessages(w http.ResponseWriter, r *http.Request) {
	session := h.store.Load(r.Context(), chi.URLParam(r, "sessionID"))
	utils.RespondJSON(w, http.StatusOK, h.toResponse(session))
}

// handleSendMessage 发送消息并返回更新后的会话
func (h *Handler) handleSendMessage(w http.ResponseWriter, r *http.Request) {
	var payload SendRequest
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		utils.RespondError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	if payload.Image != "" {
		if _, err := upload.ValidateDataURI(payload.Image); err != nil {
			utils.RespondError(w, http.StatusBadRequest, validationMessage(err))
			return
		}
	}

	sessionID := chi.URLParam(r, "sessionID")
	content := conversation.ApplySearchMode(payload.Content, payload.Search)

	session, err := h.controller.Converse(r.Context(), h.store, sessionID, content, payload.Image)
	switch {
	case errors.Is(err, conversation.ErrEmptyMessage):
		utils.RespondError(w, http.StatusBadRequest, err.Error())
		return
	case errors.Is(err, conversation.ErrSendInFlight):
		utils.RespondError(w, http.StatusConflict, err.Error())
		return
	case err != nil:
		h.logger.Error("persist session failed", zap.String("session", sessionID), zap.Error(err))
		utils.RespondError(w, http.StatusInternalServerError, "failed to save session")
		return
	}

	utils.RespondJSON(w, http.StatusOK, h.toResponse(session))
}

// handleClear 清空会话
func (h *Handler) handleClear(w http.ResponseWriter, r *http.Request) {
	sessionID := chi.URLParam(r, "sessionID")
	if h.controller.State(sessionID) == conversation.Sending {
		utils.RespondError(w, http.StatusConflict, conversation.ErrSendInFlight.Error())
		return
	}

	session := h.store.Clear(sessionID)
	if err := h.store.Save(r.Context(), session); err != nil {
		h.logger.Error("clear session failed", zap.String("session", sessionID), zap.Error(err))
		utils.RespondError(w, http.StatusInternalServerError, "failed to save session")
		return
	}
	utils.RespondJSON(w, http.StatusOK, h.toResponse(session))
}

// handleStatus 返回发送状态，供前端显示加载提示
func (h *Handler) handleStatus(w http.ResponseWriter, r *http.Request) {
	sessionID := chi.URLParam(r, "sessionID")
	utils.RespondJSON(w, http.StatusOK, map[string]string{
		"sessionId": sessionID,
		"state":     string(h.controller.State(sessionID)),
	})
}

func (h *Handler) toResponse(session *chat.Session) SessionResponse {
	return SessionResponse{
		ID:       session.ID,
		Messages: session.Messages,
		State:    h.controller.State(session.ID),
	}
}

func validationMessage(err error) string {
	switch {
	case errors.Is(err, upload.ErrUnsupportedType):
		return upload.ErrUnsupportedType.Error()
	case errors.Is(err, upload.ErrTooLarge):
		return upload.ErrTooLarge.Error()
	default:
		return upload.ErrProcessFailed.Error()
	}
}
