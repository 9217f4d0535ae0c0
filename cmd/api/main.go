package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"go.uber.org/zap"

	"github.com/zhouzirui/miaoge/backend/internal/app"
	"github.com/zhouzirui/miaoge/backend/internal/config"
	"github.com/zhouzirui/miaoge/backend/internal/handler"
	"github.com/zhouzirui/miaoge/backend/pkg/logger"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Load .env file
	envErr := godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		logger.New(false).Fatal("failed to load configuration", zap.Error(err))
	}

	log := logger.New(cfg.Log.Debug)
	defer func() { _ = log.Sync() }()
	zap.ReplaceGlobals(log)

	if envErr != nil {
		log.Debug("未找到 .env 文件，仅使用系统环境变量", zap.Error(envErr))
	}

	application, err := app.New(ctx, cfg, log)
	if err != nil {
		log.Fatal("failed to initialize services", zap.Error(err))
	}
	defer func() {
		if err := application.Close(); err != nil {
			log.Warn("failed to close storage", zap.Error(err))
		}
	}()

	router := handler.NewRouter(log, application.Personas, application.Sessions, application.Controller)

	startServer(ctx, log, cfg.Server, router)
}

func startServer(ctx context.Context, log *zap.Logger, serverCfg config.ServerConfig, router http.Handler) {
	addr := serverCfg.Addr
	srv := &http.Server{
		Addr:              addr,
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	log.Info("miaoge backend listening", zap.String("addr", addr))
	if err := runServer(ctx, srv); err != nil {
		log.Error("server error", zap.Error(err))
	}
}

func runServer(ctx context.Context, srv *http.Server) error {
	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
		err := <-errCh
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	}
}
