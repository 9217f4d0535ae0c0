// Package app assembles the services shared by the HTTP server and the CLI.
package app

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/zhouzirui/miaoge/backend/internal/analysis/emotion"
	"github.com/zhouzirui/miaoge/backend/internal/config"
	"github.com/zhouzirui/miaoge/backend/internal/model/persona"
	"github.com/zhouzirui/miaoge/backend/internal/service/ai"
	"github.com/zhouzirui/miaoge/backend/internal/service/chat"
	"github.com/zhouzirui/miaoge/backend/internal/service/conversation"
	"github.com/zhouzirui/miaoge/backend/internal/storage"
)

// App holds the wired services. Close releases the storage slot.
type App struct {
	Personas   persona.Store
	Sessions   *chat.Service
	Controller *conversation.Controller
	slot       storage.Slot
}

// New opens storage, loads the persona and connects the chat model. A missing
// or broken model configuration is logged and replaced by ai.Disabled.
func New(ctx context.Context, cfg *config.Config, logger *zap.Logger) (*App, error) {
	p := persona.Default()
	if cfg.Persona.File != "" {
		loaded, err := persona.LoadFile(cfg.Persona.File)
		if err != nil {
			return nil, err
		}
		p = loaded
		logger.Info("persona loaded", zap.String("file", cfg.Persona.File), zap.String("id", p.ID))
	}

	slot, err := storage.Open(cfg.Storage.Slot())
	if err != nil {
		return nil, fmt.Errorf("open storage: %w", err)
	}
	logger.Info("storage ready", zap.String("driver", cfg.Storage.Driver), zap.String("path", cfg.Storage.Path))

	var replier conversation.Replier = ai.Disabled{}
	if cfg.AI.Enabled() {
		svc, err := ai.NewService(ctx, p, cfg.AI, logger.Named("ai"))
		if err != nil {
			logger.Warn("AI 服务初始化失败，所有回复将使用兜底消息", zap.Error(err))
		} else {
			replier = svc
			logger.Info("AI service initialized",
				zap.String("provider", cfg.AI.Provider),
				zap.String("model", cfg.AI.Model),
				zap.Bool("webSearch", cfg.AI.WebSearch),
			)
		}
	} else {
		logger.Warn("AI 凭证未配置，所有回复将使用兜底消息", zap.String("provider", cfg.AI.Provider))
	}

	tagMode := emotion.TagFromPhrase
	if cfg.AI.EmotionTagFromCategory {
		tagMode = emotion.TagFromCategory
	}
	classifier := emotion.NewClassifier(p.EmotionalTraits, emotion.WithTagMode(tagMode))

	controller := conversation.NewController(replier, classifier, p,
		conversation.WithWindow(cfg.AI.HistoryLimit),
		conversation.WithLogger(logger.Named("conversation")),
	)

	return &App{
		Personas:   persona.NewMemoryStore([]persona.Persona{p}),
		Sessions:   chat.NewService(slot, p, logger.Named("session")),
		Controller: controller,
		slot:       slot,
	}, nil
}

// Close releases the storage slot.
func (a *App) Close() error {
	return a.slot.Close()
}
