package stream

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"

	"github.com/zhouzirui/mathgpt/internal/service/ai"
)

type stubStreamer struct {
	chunks []string
	err    error
	got    ai.Request
}

func (s *stubStreamer) Stream(_ context.Context, req ai.Request, onDelta func(string) error) (string, error) {
	s.got = req
	if strings.TrimSpace(req.Prompt) == "" {
		return "", ai.ErrPromptRequired
	}
	for _, c := range s.chunks {
		if err := onDelta(c); err != nil {
			return "", err
		}
	}
	if s.err != nil {
		return "", s.err
	}
	return strings.Join(s.chunks, ""), nil
}

func serve(svc *stubStreamer, target string) *httptest.ResponseRecorder {
	r := chi.NewRouter()
	New(svc, nil).RegisterRoutes(r)
	resp := httptest.NewRecorder()
	r.ServeHTTP(resp, httptest.NewRequest(http.MethodGet, target, nil))
	return resp
}

func TestStreamEventsInOrder(t *testing.T) {
	svc := &stubStreamer{chunks: []string{"x ", "= 2"}}
	resp := serve(svc, "/chat/stream?prompt=solve&topicId=t1&include_history=false")

	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.Code)
	}
	if ct := resp.Header().Get("Content-Type"); ct != "text/event-stream" {
		t.Fatalf("unexpected content type %q", ct)
	}
	body := resp.Body.String()
	order := []string{"event: start", "event: delta", "event: delta", "event: message", "event: end"}
	pos := 0
	for _, ev := range order {
		idx := strings.Index(body[pos:], ev)
		if idx < 0 {
			t.Fatalf("missing %q after offset %d in %q", ev, pos, body)
		}
		pos += idx + len(ev)
	}
	if !strings.Contains(body, `"content":"x = 2"`) {
		t.Fatalf("expected full message in %q", body)
	}
	if svc.got.IncludeHistory || svc.got.TopicID != "t1" {
		t.Fatalf("unexpected request %+v", svc.got)
	}
}

func TestStreamMissingPrompt(t *testing.T) {
	resp := serve(&stubStreamer{}, "/chat/stream")

	if resp.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", resp.Code)
	}
}

func TestStreamBadIncludeHistory(t *testing.T) {
	resp := serve(&stubStreamer{}, "/chat/stream?prompt=q&include_history=maybe")

	if resp.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", resp.Code)
	}
}

func TestStreamErrorEvent(t *testing.T) {
	resp := serve(&stubStreamer{chunks: []string{"partial"}, err: errors.New("model crashed")}, "/chat/stream?prompt=q")

	body := resp.Body.String()
	if !strings.Contains(body, "event: error") || !strings.Contains(body, "model crashed") {
		t.Fatalf("expected error event, got %q", body)
	}
	if strings.Contains(body, "event: end") {
		t.Fatalf("unexpected end event in %q", body)
	}
}
