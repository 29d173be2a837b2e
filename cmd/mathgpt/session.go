package main

import (
	"context"
	"fmt"
	"io"

	"go.uber.org/zap"

	"github.com/zhouzirui/mathgpt/internal/client/assistant"
	"github.com/zhouzirui/mathgpt/internal/config"
	"github.com/zhouzirui/mathgpt/internal/model/taxonomy"
	"github.com/zhouzirui/mathgpt/internal/render"
	chatservice "github.com/zhouzirui/mathgpt/internal/service/chat"
	"github.com/zhouzirui/mathgpt/internal/service/conversation"
	"github.com/zhouzirui/mathgpt/internal/storage"
)

// session bundles the pieces one command run needs.
type session struct {
	controller *conversation.Controller
	categories *taxonomy.MemoryRegistry
	printer    *printer
	adapter    storage.Adapter
}

func openSession(ctx context.Context, cfg config.ClientConfig, out io.Writer, log *zap.Logger) (*session, error) {
	adapter, err := storage.Open(storage.Options{
		Backend:    cfg.Store,
		Path:       cfg.StorePath,
		QuotaBytes: cfg.StoreQuota,
	})
	if err != nil {
		return nil, fmt.Errorf("open storage: %w", err)
	}
	return newSession(ctx, cfg, adapter, assistant.NewClient(cfg.Endpoint, 0), out, log), nil
}

func newSession(ctx context.Context, cfg config.ClientConfig, adapter storage.Adapter, transport assistant.Transport, out io.Writer, log *zap.Logger) *session {
	categories := taxonomy.NewMemoryRegistry(taxonomy.Seed())
	store := chatservice.NewStore(adapter, categories, log)
	controller := conversation.New(store, transport, categories, render.New(log), log, conversation.Options{
		Timeout:        cfg.Timeout,
		IncludeHistory: true,
	})
	controller.Initialize(ctx, cfg.DisplayName)

	return &session{
		controller: controller,
		categories: categories,
		printer:    newPrinter(out, glamourStyle, log),
		adapter:    adapter,
	}
}

func (s *session) Close() error {
	return s.adapter.Close()
}
