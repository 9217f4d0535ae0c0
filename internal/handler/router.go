package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"

	"github.com/zhouzirui/miaoge/backend/internal/handler/chat"
	"github.com/zhouzirui/miaoge/backend/internal/handler/persona"
	"github.com/zhouzirui/miaoge/backend/internal/handler/stream"
	"github.com/zhouzirui/miaoge/backend/internal/handler/upload"
	"github.com/zhouzirui/miaoge/backend/internal/handler/ws"
	middlewarePkg "github.com/zhouzirui/miaoge/backend/internal/middleware"
	personaModel "github.com/zhouzirui/miaoge/backend/internal/model/persona"
	chatService "github.com/zhouzirui/miaoge/backend/internal/service/chat"
	"github.com/zhouzirui/miaoge/backend/internal/service/conversation"
	"github.com/zhouzirui/miaoge/backend/pkg/utils"
)

// NewRouter wires HTTP routes to core services.
func NewRouter(logger *zap.Logger, personas personaModel.Store, store *chatService.Service, controller *conversation.Controller) http.Handler {
	if logger == nil {
		logger = zap.NewNop()
	}

	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middlewarePkg.Logger(logger))
	r.Use(middleware.Recoverer)
	r.Use(middlewarePkg.CORS)

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		utils.RespondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	r.Route("/api", func(api chi.Router) {
		persona.New(personas).RegisterRoutes(api)
		chat.New(store, controller, logger).RegisterRoutes(api)
		stream.New(store, controller, personas.Default(), logger).RegisterRoutes(api)
		upload.New(logger).RegisterRoutes(api)
		ws.New(store, controller, logger).RegisterRoutes(api)
	})

	return r
}
