package stream

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/zhouzirui/mathgpt/internal/logging"
	"github.com/zhouzirui/mathgpt/internal/service/ai"
)

const (
	readTimeout  = 60 * time.Second
	pingInterval = 25 * time.Second
	writeTimeout = 10 * time.Second
)

// WebSocketHandler WebSocket问答处理器
type WebSocketHandler struct {
	svc      Streamer
	logger   *zap.Logger
	upgrader websocket.Upgrader
}

// NewWebSocketHandler 创建WebSocket处理器
func NewWebSocketHandler(svc Streamer, logger *zap.Logger) *WebSocketHandler {
	return &WebSocketHandler{
		svc:    svc,
		logger: logging.OrNop(logger),
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool {
				return true
			},
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
		},
	}
}

// RegisterWebSocketRoutes 注册WebSocket路由
func (h *WebSocketHandler) RegisterWebSocketRoutes(r chi.Router) {
	r.Get("/chat/ws", h.handleWebSocket)
}

type inboundMessage struct {
	Type string          `json:"type"`
	Data json.RawMessage `json:"data"`
}

// TextMessage 文本消息
type TextMessage struct {
	Text string `json:"text"`
}

// ConfigMessage 配置消息，未提供的字段保持不变
type ConfigMessage struct {
	TopicID        *string `json:"topicId,omitempty"`
	Category       *string `json:"category,omitempty"`
	IncludeHistory *bool   `json:"includeHistory,omitempty"`
}

type outgoingMessage struct {
	Type      string `json:"type"`
	Data      any    `json:"data,omitempty"`
	Timestamp int64  `json:"timestamp"`
}

type connectionState struct {
	topicID        string
	category       string
	includeHistory bool
}

func newConnectionState(r *http.Request) *connectionState {
	query := r.URL.Query()
	return &connectionState{
		topicID:        query.Get("topicId"),
		category:       query.Get("category"),
		includeHistory: true,
	}
}

func (s *connectionState) applyConfig(cfg ConfigMessage) {
	if cfg.TopicID != nil {
		s.topicID = strings.TrimSpace(*cfg.TopicID)
	}
	if cfg.Category != nil {
		s.category = strings.TrimSpace(*cfg.Category)
	}
	if cfg.IncludeHistory != nil {
		s.includeHistory = *cfg.IncludeHistory
	}
}

// handleWebSocket 处理WebSocket连接
func (h *WebSocketHandler) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	state := newConnectionState(r)

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Warn("websocket_upgrade_failed", zap.Error(err))
		return
	}
	defer conn.Close()

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()

	_ = conn.SetReadDeadline(time.Now().Add(readTimeout))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(readTimeout))
	})

	go h.pingLoop(ctx, conn)

	h.send(conn, "connected", map[string]any{"topicId": state.topicID, "category": state.category})

	for {
		var msg inboundMessage
		if err := conn.ReadJSON(&msg); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				h.logger.Warn("websocket_read_failed", zap.Error(err))
			}
			return
		}
		_ = conn.SetReadDeadline(time.Now().Add(readTimeout))

		h.handleMessage(ctx, conn, state, &msg)
	}
}

func (h *WebSocketHandler) handleMessage(ctx context.Context, conn *websocket.Conn, state *connectionState, msg *inboundMessage) {
	switch msg.Type {
	case "text":
		var text TextMessage
		if err := json.Unmarshal(msg.Data, &text); err != nil {
			h.sendError(conn, "invalid text payload")
			return
		}
		h.processUserText(ctx, conn, state, text.Text)
	case "config":
		var cfg ConfigMessage
		if err := json.Unmarshal(msg.Data, &cfg); err != nil {
			h.sendError(conn, "invalid config payload")
			return
		}
		state.applyConfig(cfg)
		h.send(conn, "config", map[string]any{
			"topicId":        state.topicID,
			"category":       state.category,
			"includeHistory": state.includeHistory,
		})
	default:
		h.sendError(conn, "unsupported message type: "+msg.Type)
	}
}

func (h *WebSocketHandler) processUserText(ctx context.Context, conn *websocket.Conn, state *connectionState, text string) {
	reply, err := h.svc.Stream(ctx, ai.Request{
		Prompt:         text,
		IncludeHistory: state.includeHistory,
		TopicID:        state.topicID,
		Category:       state.category,
	}, func(delta string) error {
		return h.write(conn, "delta", map[string]string{"content": delta})
	})
	if errors.Is(err, ai.ErrPromptRequired) {
		h.sendError(conn, "No prompt provided")
		return
	}
	if err != nil {
		h.logger.Warn("websocket_stream_failed", zap.String("topic", state.topicID), zap.Error(err))
		h.sendError(conn, err.Error())
		return
	}
	h.send(conn, "message", map[string]string{"content": reply, "topicId": state.topicID})
}

func (h *WebSocketHandler) pingLoop(ctx context.Context, conn *websocket.Conn) {
	ticker := time.NewTicker(pingInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(writeTimeout)); err != nil {
				return
			}
		}
	}
}

func (h *WebSocketHandler) write(conn *websocket.Conn, kind string, data any) error {
	_ = conn.SetWriteDeadline(time.Now().Add(writeTimeout))
	return conn.WriteJSON(outgoingMessage{Type: kind, Data: data, Timestamp: time.Now().UnixMilli()})
}

func (h *WebSocketHandler) send(conn *websocket.Conn, kind string, data any) {
	if err := h.write(conn, kind, data); err != nil {
		h.logger.Debug("websocket_write_failed", zap.String("type", kind), zap.Error(err))
	}
}

func (h *WebSocketHandler) sendError(conn *websocket.Conn, message string) {
	h.send(conn, "error", map[string]string{"error": message})
}
