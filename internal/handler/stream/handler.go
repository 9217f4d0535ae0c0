package stream

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/zhouzirui/miaoge/backend/internal/model/persona"
	chatService "github.com/zhouzirui/miaoge/backend/internal/service/chat"
	"github.com/zhouzirui/miaoge/backend/internal/service/conversation"
	"github.com/zhouzirui/miaoge/backend/pkg/utils"
)

// Handler runs a send cycle and reports its progress via Server-Sent Events.
type Handler struct {
	store      *chatService.Service
	controller *conversation.Controller
	persona    persona.Persona
	logger     *zap.Logger
}

// New creates a new stream handler
func New(store *chatService.Service, controller *conversation.Controller, p persona.Persona, logger *zap.Logger) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handler{
		store:      store,
		controller: controller,
		persona:    p,
		logger:     logger,
	}
}

// StreamResponse represents a streaming response chunk
type StreamResponse struct {
	Event     string `json:"event"`
	Content   string `json:"content,omitempty"`
	SessionID string `json:"sessionId,omitempty"`
	Finished  bool   `json:"finished,omitempty"`
	Error     string `json:"error,omitempty"`
}

// RegisterRoutes 注册流式接口
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Get("/stream/{sessionID}", h.handleStream)
}

func (h *Handler) handleStream(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		utils.RespondError(w, http.StatusInternalServerError, "streaming unsupported")
		return
	}

	sessionID := chi.URLParam(r, "sessionID")
	message := r.URL.Query().Get("message")
	search, _ := strconv.ParseBool(r.URL.Query().Get("search"))
	if message == "" {
		utils.RespondError(w, http.StatusBadRequest, "message query parameter is required")
		return
	}

	utils.SetupSSEHeaders(w)

	// 前端据此显示"正在思考"
	utils.SendSSEChunk(w, flusher, StreamResponse{
		Event:     "start",
		SessionID: sessionID,
		Content:   h.persona.ThinkingMessage,
	})

	session, err := h.controller.Converse(r.Context(), h.store, sessionID, conversation.ApplySearchMode(message, search), "")
	if err != nil {
		if !errors.Is(err, conversation.ErrSendInFlight) && !errors.Is(err, conversation.ErrEmptyMessage) {
			h.logger.Error("[stream] send failed", zap.String("session", sessionID), zap.Error(err))
		}
		utils.SendSSEChunk(w, flusher, StreamResponse{
			Event:     "error",
			SessionID: sessionID,
			Error:     err.Error(),
		})
		return
	}

	last, _ := session.Last()
	utils.SendSSEChunk(w, flusher, StreamResponse{
		Event:     "message",
		SessionID: session.ID,
		Content:   last.Content,
	})
	utils.SendSSEChunk(w, flusher, StreamResponse{
		Event:     "emotion",
		SessionID: session.ID,
		Content:   last.Emotion,
	})
	utils.SendSSEChunk(w, flusher, StreamResponse{
		Event:     "end",
		SessionID: session.ID,
		Finished:  true,
	})

	h.logger.Debug("[stream] completed", zap.String("session", session.ID), zap.String("emotion", last.Emotion))
}
