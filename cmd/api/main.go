package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"go.uber.org/zap"

	"github.com/zhouzirui/mathgpt/internal/config"
	"github.com/zhouzirui/mathgpt/internal/handler"
	"github.com/zhouzirui/mathgpt/internal/logging"
	"github.com/zhouzirui/mathgpt/internal/model/taxonomy"
	"github.com/zhouzirui/mathgpt/internal/service/ai"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Load .env file
	envErr := godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load configuration: %v", err)
	}

	logger, err := logging.New(cfg.Server.Verbose)
	if err != nil {
		log.Fatalf("%v", err)
	}
	defer func() { _ = logger.Sync() }()
	zap.ReplaceGlobals(logger)

	if envErr != nil {
		logger.Warn("dotenv_not_loaded", zap.Error(envErr))
	}

	categories := taxonomy.NewMemoryRegistry(taxonomy.Seed())

	var svc handler.AssistantService
	if cfg.AI.Enabled() {
		aiService, err := ai.NewService(ctx, categories, cfg.AI, logger)
		if err != nil {
			logger.Warn("ai_service_unavailable", zap.Error(err))
		} else {
			svc = aiService
			logger.Info("ai_service_ready", zap.String("model", cfg.AI.Model), zap.Int("history_limit", cfg.AI.HistoryLimit))
		}
	} else {
		logger.Warn("ai_credentials_missing", zap.String("hint", "set ARK_API_KEY and Model"))
	}

	router := handler.NewRouter(cfg.Server, categories, svc, logger)

	startServer(ctx, cfg.Server, router, logger)
}

func startServer(ctx context.Context, serverCfg config.ServerConfig, router http.Handler, logger *zap.Logger) {
	addr := serverCfg.Addr
	srv := &http.Server{
		Addr:              addr,
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	logger.Info("server_listening", zap.String("addr", addr))
	if err := runServer(ctx, srv); err != nil {
		logger.Fatal("server_error", zap.Error(err))
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
