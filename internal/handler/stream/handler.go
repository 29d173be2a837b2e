package stream

import (
	"context"
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/zhouzirui/mathgpt/internal/logging"
	"github.com/zhouzirui/mathgpt/internal/service/ai"
	"github.com/zhouzirui/mathgpt/pkg/utils"
)

// Streamer produces a reply chunk by chunk.
type Streamer interface {
	Stream(ctx context.Context, req ai.Request, onDelta func(string) error) (string, error)
}

// Handler manages streaming AI responses via Server-Sent Events
type Handler struct {
	svc    Streamer
	logger *zap.Logger
}

// New creates a new stream handler
func New(svc Streamer, logger *zap.Logger) *Handler {
	return &Handler{svc: svc, logger: logging.OrNop(logger)}
}

// RegisterRoutes mounts GET /chat/stream.
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Get("/chat/stream", h.handleStream)
}

// StreamResponse represents a streaming response chunk
type StreamResponse struct {
	TopicID  string `json:"topicId,omitempty"`
	Content  string `json:"content,omitempty"`
	Finished bool   `json:"finished,omitempty"`
	Error    string `json:"error,omitempty"`
}

func (h *Handler) handleStream(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()
	req := ai.Request{
		Prompt:         query.Get("prompt"),
		IncludeHistory: true,
		TopicID:        query.Get("topicId"),
		Category:       query.Get("category"),
	}
	if raw := query.Get("include_history"); raw != "" {
		val, err := strconv.ParseBool(raw)
		if err != nil {
			utils.RespondError(w, http.StatusBadRequest, "include_history must be a boolean")
			return
		}
		req.IncludeHistory = val
	}

	if err := h.HandleStreamRequest(r.Context(), w, req); err != nil && !errors.Is(err, ai.ErrPromptRequired) {
		h.logger.Warn("stream_failed", zap.String("topic", req.TopicID), zap.Error(err))
	}
}

// HandleStreamRequest writes start, delta, message and end events for one
// exchange, or an error event when generation fails mid-stream.
func (h *Handler) HandleStreamRequest(ctx context.Context, w http.ResponseWriter, req ai.Request) error {
	flusher, ok := w.(http.Flusher)
	if !ok {
		utils.RespondError(w, http.StatusInternalServerError, "streaming unsupported")
		return errors.New("streaming unsupported")
	}

	started := false
	start := func() error {
		if started {
			return nil
		}
		started = true
		utils.SetupSSEHeaders(w)
		return utils.SendSSEEvent(w, flusher, "start", StreamResponse{TopicID: req.TopicID})
	}

	reply, err := h.svc.Stream(ctx, req, func(delta string) error {
		if err := start(); err != nil {
			return err
		}
		return utils.SendSSEEvent(w, flusher, "delta", StreamResponse{Content: delta})
	})
	if errors.Is(err, ai.ErrPromptRequired) {
		utils.RespondError(w, http.StatusBadRequest, "No prompt provided")
		return err
	}
	if startErr := start(); startErr != nil {
		return startErr
	}
	if err != nil {
		_ = utils.SendSSEEvent(w, flusher, "error", StreamResponse{Error: err.Error()})
		return err
	}

	if err := utils.SendSSEEvent(w, flusher, "message", StreamResponse{TopicID: req.TopicID, Content: reply}); err != nil {
		return err
	}
	return utils.SendSSEEvent(w, flusher, "end", StreamResponse{TopicID: req.TopicID, Finished: true})
}
