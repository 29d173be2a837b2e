package handler

import (
	"bytes"
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/zhouzirui/mathgpt/internal/config"
	"github.com/zhouzirui/mathgpt/internal/model/taxonomy"
	"github.com/zhouzirui/mathgpt/internal/service/ai"
)

type echoResponder struct{}

func (echoResponder) Respond(_ context.Context, req ai.Request) (string, error) {
	return "echo: " + req.Prompt, nil
}
func (echoResponder) Stream(_ context.Context, req ai.Request, onDelta func(string) error) (string, error) {
	reply := "echo: " + req.Prompt
	if err := onDelta(reply); err != nil {
		return "", err
	}
	return reply, nil
}
func (echoResponder) History(string) []string { return []string{} }
func (echoResponder) ClearHistory(string)     {}

func newTestRouter(responder *echoResponder) http.Handler {
	cfg := config.ServerConfig{RateLimitRPS: 100, RateLimitBurst: 100}
	registry := taxonomy.NewMemoryRegistry(taxonomy.Seed())
	if responder == nil {
		return NewRouter(cfg, registry, nil, nil)
	}
	return NewRouter(cfg, registry, responder, nil)
}

func TestRouterServesChat(t *testing.T) {
	r := newTestRouter(&echoResponder{})

	req := httptest.NewRequest(http.MethodPost, "/api/chat", bytes.NewReader([]byte(`{"prompt":"1+1"}`)))
	resp := httptest.NewRecorder()
	r.ServeHTTP(resp, req)

	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.Code)
	}
	if resp.Header().Get("Access-Control-Allow-Origin") != "*" {
		t.Fatal("expected CORS header")
	}
}

func TestRouterServesStream(t *testing.T) {
	r := newTestRouter(&echoResponder{})

	resp := httptest.NewRecorder()
	r.ServeHTTP(resp, httptest.NewRequest(http.MethodGet, "/api/chat/stream?prompt=hi", nil))

	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.Code)
	}
	if !bytes.Contains(resp.Body.Bytes(), []byte("event: end")) {
		t.Fatalf("expected end event, got %q", resp.Body.String())
	}
	if !bytes.Contains(resp.Body.Bytes(), []byte("echo: hi")) {
		t.Fatalf("expected echoed delta, got %q", resp.Body.String())
	}
}

func TestRouterWithoutAssistant(t *testing.T) {
	r := newTestRouter(nil)

	req := httptest.NewRequest(http.MethodPost, "/api/chat", bytes.NewReader([]byte(`{"prompt":"1+1"}`)))
	resp := httptest.NewRecorder()
	r.ServeHTTP(resp, req)

	if resp.Code != http.StatusServiceUnavailable {
		t.Fatalf("expected 503, got %d", resp.Code)
	}
}

func TestRouterExposesMetricsAndCategories(t *testing.T) {
	r := newTestRouter(&echoResponder{})

	for _, path := range []string{"/api/categories", "/metrics", "/healthz"} {
		resp := httptest.NewRecorder()
		r.ServeHTTP(resp, httptest.NewRequest(http.MethodGet, path, nil))
		if resp.Code != http.StatusOK {
			t.Fatalf("%s: expected 200, got %d", path, resp.Code)
		}
	}
}
