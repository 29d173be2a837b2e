package assistant

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/zhouzirui/mathgpt/internal/logging"
	"github.com/zhouzirui/mathgpt/internal/service/ai"
	"github.com/zhouzirui/mathgpt/pkg/utils"
)

// Responder is the assistant behaviour the handler exposes over HTTP.
type Responder interface {
	Respond(ctx context.Context, req ai.Request) (string, error)
	History(topicID string) []string
	ClearHistory(topicID string)
}

// Handler 数学助手的HTTP处理器
type Handler struct {
	svc    Responder
	logger *zap.Logger
}

// New 创建助手处理器
func New(svc Responder, logger *zap.Logger) *Handler {
	return &Handler{svc: svc, logger: logging.OrNop(logger)}
}

// RegisterRoutes 注册助手相关的路由
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Post("/chat", h.handleChat)
	r.Post("/clear-history", h.handleClearHistory)
	r.Get("/history", h.handleHistory)
}

type chatPayload struct {
	Prompt         string `json:"prompt"`
	IncludeHistory *bool  `json:"include_history"`
	TopicID        string `json:"topicId"`
	Category       string `json:"category"`
}

// handleChat 处理一次问答
func (h *Handler) handleChat(w http.ResponseWriter, r *http.Request) {
	var payload chatPayload
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		utils.RespondError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	includeHistory := true
	if payload.IncludeHistory != nil {
		includeHistory = *payload.IncludeHistory
	}

	reply, err := h.svc.Respond(r.Context(), ai.Request{
		Prompt:         payload.Prompt,
		IncludeHistory: includeHistory,
		TopicID:        payload.TopicID,
		Category:       payload.Category,
	})
	if errors.Is(err, ai.ErrPromptRequired) {
		utils.RespondError(w, http.StatusBadRequest, "No prompt provided")
		return
	}
	if err != nil {
		h.logger.Error("chat_failed", zap.String("topic", payload.TopicID), zap.Error(err))
		utils.RespondError(w, http.StatusInternalServerError, err.Error())
		return
	}

	utils.RespondJSON(w, http.StatusOK, map[string]string{"response": reply})
}

// handleClearHistory 清空对话上下文，topicId 为空时清空全部
func (h *Handler) handleClearHistory(w http.ResponseWriter, r *http.Request) {
	h.svc.ClearHistory(r.URL.Query().Get("topicId"))
	utils.RespondJSON(w, http.StatusOK, map[string]string{"message": "Conversation history cleared"})
}

// handleHistory 返回指定话题的上下文
func (h *Handler) handleHistory(w http.ResponseWriter, r *http.Request) {
	utils.RespondJSON(w, http.StatusOK, map[string][]string{
		"history": h.svc.History(r.URL.Query().Get("topicId")),
	})
}
