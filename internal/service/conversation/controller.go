// Package conversation drives one outgoing exchange at a time between the
// user and the remote assistant and reconciles the result into the store.
package conversation

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/zhouzirui/mathgpt/internal/client/assistant"
	"github.com/zhouzirui/mathgpt/internal/logging"
	"github.com/zhouzirui/mathgpt/internal/model/chat"
	"github.com/zhouzirui/mathgpt/internal/model/taxonomy"
	"github.com/zhouzirui/mathgpt/internal/render"
	chatservice "github.com/zhouzirui/mathgpt/internal/service/chat"
)

// Phase is the request lifecycle state.
type Phase string

const (
	PhaseIdle      Phase = "idle"
	PhaseSending   Phase = "sending"
	PhaseSucceeded Phase = "succeeded"
	PhaseFailed    Phase = "failed"
)

// User-facing texts.
const (
	ComposingText  = "Thinking..."
	FallbackReply  = "I apologize, but I couldn't generate a response. Please try again."
	GenericError   = "Sorry, I encountered an error. Please try again."
	TimeoutError   = "The assistant took too long to respond. Please try again."
	DefaultTimeout = 60 * time.Second
)

// Options tunes a Controller.
type Options struct {
	// Timeout bounds each outbound request. Zero selects DefaultTimeout;
	// a negative value disables the bound.
	Timeout        time.Duration
	IncludeHistory bool
}

// SendResult describes what a Send call did.
type SendResult struct {
	Accepted bool
	// Outcome is PhaseSucceeded or PhaseFailed for accepted sends.
	Outcome Phase
	// Stale is set when the conversation was reset while the request was in
	// flight and the reply was dropped.
	Stale bool
	State chat.SessionState
}

// Controller owns the send state machine. Only one request may be in flight;
// a second Send while sending is rejected, not queued.
type Controller struct {
	mu          sync.Mutex
	phase       Phase
	lastOutcome Phase
	displayName string

	store      *chatservice.Store
	transport  assistant.Transport
	categories taxonomy.Registry
	renderer   *render.Renderer
	logger     *zap.Logger
	opts       Options
}

// New wires a controller.
func New(store *chatservice.Store, transport assistant.Transport, categories taxonomy.Registry, renderer *render.Renderer, logger *zap.Logger, opts Options) *Controller {
	if opts.Timeout == 0 {
		opts.Timeout = DefaultTimeout
	}
	return &Controller{
		phase:       PhaseIdle,
		lastOutcome: PhaseIdle,
		store:       store,
		transport:   transport,
		categories:  categories,
		renderer:    renderer,
		logger:      logging.OrNop(logger),
		opts:        opts,
	}
}

// Initialize loads the persisted session for displayName.
func (c *Controller) Initialize(ctx context.Context, displayName string) chat.SessionState {
	c.mu.Lock()
	c.displayName = strings.TrimSpace(displayName)
	c.mu.Unlock()
	return c.store.Initialize(ctx, displayName)
}

// DisplayName returns the name the session was initialized with.
func (c *Controller) DisplayName() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.displayName
}

// Phase returns the current lifecycle state.
func (c *Controller) Phase() Phase {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.phase
}

// LastOutcome returns how the most recent accepted send ended.
func (c *Controller) LastOutcome() Phase {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.lastOutcome
}

// IsComposing reports whether the assistant reply is pending.
func (c *Controller) IsComposing() bool {
	return c.Phase() == PhaseSending
}

// State returns the current session snapshot.
func (c *Controller) State() chat.SessionState {
	return c.store.State()
}

// Send submits text tagged with topicID (the current topic when empty) and
// blocks until the exchange is reconciled. Empty text or a send already in
// flight is rejected without touching the log.
func (c *Controller) Send(ctx context.Context, text, topicID string) (result SendResult) {
	prompt := strings.TrimSpace(text)
	if prompt == "" {
		return SendResult{State: c.store.State()}
	}
	if !c.begin() {
		c.logger.Debug("send_rejected_in_flight")
		return SendResult{State: c.store.State()}
	}

	result = SendResult{Accepted: true, Outcome: PhaseFailed}
	defer func() {
		if rec := recover(); rec != nil {
			c.logger.Error("send_panic", zap.Any("panic", rec))
			result.Outcome = PhaseFailed
			result.State = c.store.State()
		}
		c.finish(result.Outcome)
	}()

	topic := c.store.CurrentTopic()
	if topicID != "" && topicID != topic.ID {
		if t, ok := c.store.State().Topic(topicID); ok {
			topic = t
		} else {
			topic = chat.Topic{ID: topicID}
		}
	}
	topicID = topic.ID

	c.store.AppendMessage(ctx, chat.Message{
		ID:      chatservice.NewID(),
		Content: prompt,
		Sender:  chat.SenderUser,
		TopicID: topicID,
	})

	placeholderID := chat.ComposingIDPrefix + "-" + chatservice.NewID()
	c.store.AppendMessage(ctx, chat.Message{
		ID:        placeholderID,
		Content:   ComposingText,
		Sender:    chat.SenderAssistant,
		Composing: true,
	})

	reply, outcome := c.exchange(ctx, assistant.ChatRequest{
		Prompt:         prompt,
		IncludeHistory: c.opts.IncludeHistory,
		TopicID:        topicID,
		Category:       c.categories.Describe(topic.Category).Key,
	})

	state, applied := c.store.ReplaceMessage(ctx, placeholderID, chat.Message{
		ID:      chatservice.NewID(),
		Content: reply,
		Sender:  chat.SenderAssistant,
		TopicID: topicID,
	})
	if !applied {
		c.logger.Info("stale_reply_dropped", zap.String("placeholder", placeholderID))
		result.Stale = true
	}
	result.Outcome = outcome
	result.State = state
	return result
}

// exchange performs the remote call and maps every outcome to reply text.
func (c *Controller) exchange(ctx context.Context, req assistant.ChatRequest) (string, Phase) {
	if c.opts.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.opts.Timeout)
		defer cancel()
	}

	resp, err := c.transport.Chat(ctx, req)
	if err != nil {
		c.logger.Warn("assistant_request_failed", zap.String("topic", req.TopicID), zap.Error(err))
		return ErrorText(err), PhaseFailed
	}
	if resp.Response == nil {
		c.logger.Warn("assistant_response_missing", zap.String("topic", req.TopicID))
		return FallbackReply, PhaseSucceeded
	}
	return *resp.Response, PhaseSucceeded
}

// ErrorText turns a transport failure into the message shown to the user.
func ErrorText(err error) string {
	var apiErr *assistant.Error
	if errors.As(err, &apiErr) && apiErr.Message != "" {
		return apiErr.Message
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return TimeoutError
	}
	return GenericError
}

func (c *Controller) begin() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.phase == PhaseSending {
		return false
	}
	c.phase = PhaseSending
	return true
}

func (c *Controller) finish(outcome Phase) {
	c.mu.Lock()
	c.lastOutcome = outcome
	c.phase = PhaseIdle
	c.mu.Unlock()
}

// ResetConversation starts a new chat in the current topic. Topics survive.
func (c *Controller) ResetConversation(ctx context.Context) chat.SessionState {
	topic := c.store.CurrentTopic()
	return c.store.ResetConversation(ctx, c.welcome(topic))
}

// CreateTopic adds a topic, makes it current and opens a fresh conversation
// scoped to its category. Unknown categories fall back to the default one.
func (c *Controller) CreateTopic(ctx context.Context, name, categoryKey string, difficulty chat.Difficulty) chat.SessionState {
	category := c.categories.Describe(categoryKey)
	name = strings.TrimSpace(name)
	if name == "" {
		name = fmt.Sprintf("New %s Topic", category.Label)
	}

	topic := chat.Topic{
		ID:         chatservice.NewID(),
		Name:       name,
		Category:   category.Key,
		Difficulty: difficulty,
	}
	c.store.AddTopic(ctx, topic)
	if _, err := c.store.SelectTopic(topic.ID); err != nil {
		c.logger.Error("select_new_topic_failed", zap.String("topic", topic.ID), zap.Error(err))
		return c.store.State()
	}
	return c.store.ResetConversation(ctx, c.welcome(c.store.CurrentTopic()))
}

// SelectTopic switches the topic used for the next message.
func (c *Controller) SelectTopic(topicID string) (chat.SessionState, error) {
	return c.store.SelectTopic(topicID)
}

// ToggleBookmark flips a topic's bookmark flag.
func (c *Controller) ToggleBookmark(ctx context.Context, topicID string) chat.SessionState {
	return c.store.ToggleBookmark(ctx, topicID)
}

// Logout forgets the user and wipes both persisted collections.
func (c *Controller) Logout(ctx context.Context) chat.SessionState {
	c.mu.Lock()
	c.displayName = ""
	c.mu.Unlock()
	return c.store.Clear(ctx)
}

// RenderMessage converts one message for display.
func (c *Controller) RenderMessage(msg chat.Message) render.Rendered {
	return c.renderer.Render(msg)
}

// RenderConversation renders the whole current log.
func (c *Controller) RenderConversation() []render.Rendered {
	return c.renderer.RenderAll(c.store.State().Messages)
}

func (c *Controller) welcome(topic chat.Topic) chat.Message {
	return chatservice.WelcomeMessage(c.DisplayName(), c.categories.Describe(topic.Category), topic.ID, chatservice.Now())
}
