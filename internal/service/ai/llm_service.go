package ai

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"sync"

	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/components/prompt"
	"github.com/cloudwego/eino/compose"
	"github.com/cloudwego/eino/schema"
	"go.uber.org/zap"

	"github.com/zhouzirui/mathgpt/internal/analysis/subject"
	"github.com/zhouzirui/mathgpt/internal/config"
	"github.com/zhouzirui/mathgpt/internal/logging"
	"github.com/zhouzirui/mathgpt/internal/model/chat"
	"github.com/zhouzirui/mathgpt/internal/model/taxonomy"
)

// maxRecorded bounds the per-topic history kept in memory.
const maxRecorded = 200

// EmptyReply is returned when the model produces no text.
const EmptyReply = "I apologize, but I couldn't generate a response. Please try again."

var ErrPromptRequired = errors.New("prompt is required")

// Request is one question to the assistant.
type Request struct {
	Prompt         string
	IncludeHistory bool
	TopicID        string
	Category       string
}

// Service answers math questions through an eino chain and keeps a short
// per-topic exchange history as model context.
type Service struct {
	chain        compose.Runnable[map[string]any, *schema.Message]
	prompts      *CategoryPromptManager
	historyLimit int
	logger       *zap.Logger

	mu      sync.RWMutex
	history map[string][]*schema.Message
}

// NewService creates the service on top of the configured Ark chat model.
func NewService(ctx context.Context, categories taxonomy.Registry, cfg config.AIConfig, logger *zap.Logger) (*Service, error) {
	chatModel, err := cfg.NewChatModel(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to create chat model: %w", err)
	}
	return NewServiceWithModel(ctx, chatModel, categories, cfg.HistoryLimit, logger)
}

// NewServiceWithModel compiles the chain around an arbitrary chat model.
func NewServiceWithModel(ctx context.Context, chatModel model.ChatModel, categories taxonomy.Registry, historyLimit int, logger *zap.Logger) (*Service, error) {
	promptTemplate := prompt.FromMessages(
		schema.FString,
		schema.SystemMessage("{system}"),
		schema.MessagesPlaceholder("history", true),
		schema.UserMessage("{query}"),
	)

	chain := compose.NewChain[map[string]any, *schema.Message]()
	chain.AppendChatTemplate(promptTemplate)
	chain.AppendChatModel(chatModel)

	runnable, err := chain.Compile(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to compile chat chain: %w", err)
	}

	if historyLimit < 0 {
		historyLimit = 0
	}

	return &Service{
		chain:        runnable,
		prompts:      NewCategoryPromptManager(categories),
		historyLimit: historyLimit,
		logger:       logging.OrNop(logger),
		history:      make(map[string][]*schema.Message),
	}, nil
}

// Respond runs one exchange. With IncludeHistory the most recent history
// entries of the topic are sent as context and the exchange is recorded.
func (s *Service) Respond(ctx context.Context, req Request) (string, error) {
	ex, err := s.prepare(req)
	if err != nil {
		return "", err
	}

	response, err := s.chain.Invoke(ctx, ex.input)
	if err != nil {
		return "", fmt.Errorf("failed to run AI chain: %w", err)
	}

	var content string
	if response != nil {
		content = response.Content
	}
	return s.finish(ex, content), nil
}

// Stream runs one exchange like Respond but hands every content chunk to
// onDelta as it arrives. An error from onDelta aborts the exchange.
func (s *Service) Stream(ctx context.Context, req Request, onDelta func(string) error) (string, error) {
	ex, err := s.prepare(req)
	if err != nil {
		return "", err
	}

	stream, err := s.chain.Stream(ctx, ex.input)
	if err != nil {
		return "", fmt.Errorf("failed to stream AI chain output: %w", err)
	}
	defer stream.Close()

	chunks := make([]*schema.Message, 0, 8)
	for {
		chunk, recvErr := stream.Recv()
		if errors.Is(recvErr, io.EOF) {
			break
		}
		if recvErr != nil {
			return "", fmt.Errorf("failed to receive AI chunk: %w", recvErr)
		}
		if chunk == nil {
			continue
		}

		chunks = append(chunks, chunk)
		if chunk.Content != "" {
			if err := onDelta(chunk.Content); err != nil {
				return "", err
			}
		}
	}

	var content string
	if len(chunks) > 0 {
		response, err := schema.ConcatMessages(chunks)
		if err != nil {
			return "", fmt.Errorf("failed to concat AI chunks: %w", err)
		}
		content = response.Content
	}
	return s.finish(ex, content), nil
}

type exchange struct {
	req      Request
	query    string
	topic    string
	category string
	history  int
	input    map[string]any
}

func (s *Service) prepare(req Request) (exchange, error) {
	query := strings.TrimSpace(req.Prompt)
	if query == "" {
		return exchange{}, ErrPromptRequired
	}
	topic := topicKey(req.TopicID)

	var history []*schema.Message
	if req.IncludeHistory {
		history = s.recent(topic)
	}

	category := s.resolveCategory(req.Category, query)
	return exchange{
		req:      req,
		query:    query,
		topic:    topic,
		category: category,
		history:  len(history),
		input: map[string]any{
			"system":  s.prompts.BuildSystemPrompt(category),
			"history": history,
			"query":   query,
		},
	}, nil
}

// finish applies the empty-reply fallback and records the exchange.
func (s *Service) finish(ex exchange, content string) string {
	if strings.TrimSpace(content) == "" {
		s.logger.Warn("empty_model_reply", zap.String("topic", ex.topic))
		return EmptyReply
	}

	if ex.req.IncludeHistory {
		s.record(ex.topic, ex.query, content)
	}

	s.logger.Info("reply_generated",
		zap.String("topic", ex.topic),
		zap.String("category", ex.category),
		zap.Int("history", ex.history),
		zap.Int("length", len(content)))
	return content
}

// History returns the recorded entries of a topic, oldest first.
func (s *Service) History(topicID string) []string {
	s.mu.RLock()
	defer s.mu.RUnlock()

	entries := s.history[topicKey(topicID)]
	out := make([]string, 0, len(entries))
	for _, msg := range entries {
		out = append(out, msg.Content)
	}
	return out
}

// ClearHistory forgets one topic, or every topic when topicID is empty.
func (s *Service) ClearHistory(topicID string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if strings.TrimSpace(topicID) == "" {
		s.history = make(map[string][]*schema.Message)
		return
	}
	delete(s.history, topicKey(topicID))
}

// resolveCategory keeps an explicit category and infers one from the
// question for general or untagged topics.
func (s *Service) resolveCategory(requested, query string) string {
	if requested != "" && requested != taxonomy.DefaultKey {
		return requested
	}
	if decision := subject.Analyze(query); decision.Category != "" {
		s.logger.Debug("category_inferred", zap.String("category", decision.Category), zap.Int("score", decision.Score))
		return decision.Category
	}
	return requested
}

func (s *Service) recent(topic string) []*schema.Message {
	s.mu.RLock()
	defer s.mu.RUnlock()

	entries := s.history[topic]
	if s.historyLimit == 0 || len(entries) == 0 {
		return nil
	}

	startIdx := 0
	if len(entries) > s.historyLimit {
		startIdx = len(entries) - s.historyLimit
	}

	out := make([]*schema.Message, len(entries)-startIdx)
	copy(out, entries[startIdx:])
	return out
}

func (s *Service) record(topic, query, reply string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	entries := append(s.history[topic],
		schema.UserMessage(query),
		schema.AssistantMessage(reply, nil))
	if len(entries) > maxRecorded {
		entries = append([]*schema.Message(nil), entries[len(entries)-maxRecorded:]...)
	}
	s.history[topic] = entries
}

func topicKey(topicID string) string {
	if id := strings.TrimSpace(topicID); id != "" {
		return id
	}
	return chat.DefaultTopicID
}
