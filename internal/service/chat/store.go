package chat

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/zhouzirui/mathgpt/internal/logging"
	"github.com/zhouzirui/mathgpt/internal/model/chat"
	"github.com/zhouzirui/mathgpt/internal/model/taxonomy"
	"github.com/zhouzirui/mathgpt/internal/storage"
)

// FallbackHistorySize is how many trailing messages are kept when a full
// write does not fit in storage.
const FallbackHistorySize = 50

var ErrTopicNotFound = errors.New("topic not found")

// Store owns the message log and topic list. Every mutation recomputes topic
// statistics and writes both collections through to the adapter; the
// in-memory state stays authoritative when a write fails.
type Store struct {
	mu             sync.RWMutex
	adapter        storage.Adapter
	categories     taxonomy.Registry
	logger         *zap.Logger
	now            func() time.Time
	messages       []chat.Message
	topics         []chat.Topic
	currentTopicID string
}

// NewStore wires a store to its persistence adapter and category registry.
func NewStore(adapter storage.Adapter, categories taxonomy.Registry, logger *zap.Logger) *Store {
	s := &Store{
		adapter:        adapter,
		categories:     categories,
		logger:         logging.OrNop(logger),
		now:            Now,
		messages:       make([]chat.Message, 0, 16),
		currentTopicID: chat.DefaultTopicID,
	}
	s.topics = []chat.Topic{s.defaultTopic()}
	return s
}

// Now returns the current instant at millisecond resolution, matching what
// survives a JSON round trip without monotonic clock noise.
func Now() time.Time {
	return time.Now().UTC().Truncate(time.Millisecond)
}

// NewID returns a time-ordered unique identifier.
func NewID() string {
	id, err := uuid.NewV7()
	if err != nil {
		return uuid.NewString()
	}
	return id.String()
}

// WelcomeMessage builds the synthetic greeting for a fresh conversation.
func WelcomeMessage(displayName string, category taxonomy.Category, topicID string, at time.Time) chat.Message {
	name := strings.TrimSpace(displayName)
	if name == "" {
		name = "there"
	}
	return chat.Message{
		ID: chat.WelcomeID,
		Content: fmt.Sprintf("Hello %s! 👋 I'm your mathematical assistant. We're in **%s** today. How can I help you?",
			name, category.Label),
		Sender:    chat.SenderAssistant,
		Timestamp: at,
		TopicID:   topicID,
	}
}

// Initialize loads the persisted session. Any invalid persisted message
// discards the whole log, which is then replaced by a single welcome message.
func (s *Store) Initialize(ctx context.Context, displayName string) chat.SessionState {
	s.mu.Lock()
	defer s.mu.Unlock()

	dirty := false

	topics, ok := s.loadTopics(ctx)
	if !ok {
		topics = []chat.Topic{s.defaultTopic()}
		dirty = true
	}
	s.topics = topics
	if s.ensureDefaultTopic() {
		dirty = true
	}
	s.currentTopicID = chat.DefaultTopicID

	messages, ok := s.loadMessages(ctx)
	if !ok || len(messages) == 0 {
		category := s.categories.Describe(s.topicLocked(chat.DefaultTopicID).Category)
		messages = []chat.Message{WelcomeMessage(displayName, category, chat.DefaultTopicID, s.now())}
		dirty = true
	}
	s.messages = messages

	s.recomputeLocked()
	if dirty {
		s.persistLocked(ctx)
	}
	s.logger.Debug("session_initialized",
		zap.Int("messages", len(s.messages)),
		zap.Int("topics", len(s.topics)))
	return s.snapshotLocked()
}

// State returns a snapshot without mutating anything.
func (s *Store) State() chat.SessionState {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.snapshotLocked()
}

// AppendMessage adds msg to the end of the log. A missing id or timestamp is
// filled in; a duplicate id is ignored.
func (s *Store) AppendMessage(ctx context.Context, msg chat.Message) chat.SessionState {
	s.mu.Lock()
	defer s.mu.Unlock()

	if msg.ID == "" {
		msg.ID = NewID()
	}
	if msg.Timestamp.IsZero() {
		msg.Timestamp = s.now()
	}
	if s.indexLocked(msg.ID) >= 0 {
		s.logger.Warn("duplicate_message_ignored", zap.String("id", msg.ID))
		return s.snapshotLocked()
	}

	s.messages = append(s.messages, msg)
	s.recomputeLocked()
	s.persistLocked(ctx)
	return s.snapshotLocked()
}

// RemoveMessage drops the message with the given id. Absent ids are a no-op.
func (s *Store) RemoveMessage(ctx context.Context, id string) chat.SessionState {
	s.mu.Lock()
	defer s.mu.Unlock()

	idx := s.indexLocked(id)
	if idx < 0 {
		return s.snapshotLocked()
	}

	s.messages = append(s.messages[:idx:idx], s.messages[idx+1:]...)
	s.recomputeLocked()
	s.persistLocked(ctx)
	return s.snapshotLocked()
}

// ReplaceMessage removes the message with id and appends msg in one step.
// It reports false, leaving the log untouched, when id is no longer present.
func (s *Store) ReplaceMessage(ctx context.Context, id string, msg chat.Message) (chat.SessionState, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	idx := s.indexLocked(id)
	if idx < 0 {
		return s.snapshotLocked(), false
	}
	if msg.ID == "" {
		msg.ID = NewID()
	}
	if msg.Timestamp.IsZero() {
		msg.Timestamp = s.now()
	}

	s.messages = append(s.messages[:idx:idx], s.messages[idx+1:]...)
	s.messages = append(s.messages, msg)
	s.recomputeLocked()
	s.persistLocked(ctx)
	return s.snapshotLocked(), true
}

// Contains reports whether a message with id is in the log.
func (s *Store) Contains(id string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.indexLocked(id) >= 0
}

// ResetConversation replaces the whole log with msg. Topics are kept.
func (s *Store) ResetConversation(ctx context.Context, msg chat.Message) chat.SessionState {
	s.mu.Lock()
	defer s.mu.Unlock()

	if msg.ID == "" {
		msg.ID = NewID()
	}
	if msg.Timestamp.IsZero() {
		msg.Timestamp = s.now()
	}
	s.messages = []chat.Message{msg}
	s.recomputeLocked()
	s.persistLocked(ctx)
	return s.snapshotLocked()
}

// AddTopic registers topic. A topic whose id already exists replaces nothing
// and is ignored.
func (s *Store) AddTopic(ctx context.Context, topic chat.Topic) chat.SessionState {
	s.mu.Lock()
	defer s.mu.Unlock()

	if topic.ID == "" {
		topic.ID = NewID()
	}
	if s.topicIndexLocked(topic.ID) >= 0 {
		s.logger.Warn("duplicate_topic_ignored", zap.String("id", topic.ID))
		return s.snapshotLocked()
	}
	if topic.LastActive.IsZero() {
		topic.LastActive = s.now()
	}
	if !topic.Difficulty.Valid() {
		topic.Difficulty = ""
	}

	s.topics = append(s.topics, topic)
	s.recomputeLocked()
	s.persistLocked(ctx)
	return s.snapshotLocked()
}

// ToggleBookmark flips the bookmark flag of the given topic.
func (s *Store) ToggleBookmark(ctx context.Context, topicID string) chat.SessionState {
	s.mu.Lock()
	defer s.mu.Unlock()

	idx := s.topicIndexLocked(topicID)
	if idx < 0 {
		s.logger.Warn("bookmark_unknown_topic", zap.String("topic", topicID))
		return s.snapshotLocked()
	}
	s.topics[idx].IsBookmarked = !s.topics[idx].IsBookmarked
	s.persistLocked(ctx)
	return s.snapshotLocked()
}

// SelectTopic makes topicID the topic for subsequent messages.
func (s *Store) SelectTopic(topicID string) (chat.SessionState, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.topicIndexLocked(topicID) < 0 {
		return s.snapshotLocked(), ErrTopicNotFound
	}
	s.currentTopicID = topicID
	return s.snapshotLocked(), nil
}

// CurrentTopic returns the topic the next message will be tagged with.
func (s *Store) CurrentTopic() chat.Topic {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.topicLocked(s.currentTopicID)
}

// RecomputeTopicStats refreshes the derived fields of every topic.
func (s *Store) RecomputeTopicStats() chat.SessionState {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.recomputeLocked()
	return s.snapshotLocked()
}

// Clear wipes both persisted collections and resets the in-memory session to
// an empty log with only the default topic.
func (s *Store) Clear(ctx context.Context) chat.SessionState {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.adapter.Clear(ctx, storage.MessagesKey, storage.TopicsKey); err != nil {
		s.logger.Error("clear_failed", zap.Error(err))
	}
	s.messages = make([]chat.Message, 0, 16)
	s.topics = []chat.Topic{s.defaultTopic()}
	s.currentTopicID = chat.DefaultTopicID
	return s.snapshotLocked()
}

func (s *Store) recomputeLocked() {
	counts := make(map[string]int, len(s.topics))
	latest := make(map[string]time.Time, len(s.topics))
	for _, msg := range s.messages {
		if msg.TopicID == "" {
			continue
		}
		counts[msg.TopicID]++
		if msg.Timestamp.After(latest[msg.TopicID]) {
			latest[msg.TopicID] = msg.Timestamp
		}
	}
	for i := range s.topics {
		id := s.topics[i].ID
		s.topics[i].MessageCount = counts[id]
		if ts, ok := latest[id]; ok {
			s.topics[i].LastActive = ts
		}
	}
}

func (s *Store) persistLocked(ctx context.Context) {
	durable := make([]chat.Message, 0, len(s.messages))
	for _, msg := range s.messages {
		if !msg.Composing {
			durable = append(durable, msg)
		}
	}

	if err := s.saveJSON(ctx, storage.MessagesKey, durable); err != nil {
		if len(durable) <= FallbackHistorySize {
			s.logger.Warn("persist_messages_dropped", zap.Int("messages", len(durable)), zap.Error(err))
		} else {
			trimmed := durable[len(durable)-FallbackHistorySize:]
			if err := s.saveJSON(ctx, storage.MessagesKey, trimmed); err != nil {
				s.logger.Warn("persist_messages_dropped", zap.Int("messages", len(trimmed)), zap.Error(err))
			} else {
				s.logger.Info("persist_messages_trimmed",
					zap.Int("kept", len(trimmed)),
					zap.Int("total", len(durable)))
			}
		}
	}

	if err := s.saveJSON(ctx, storage.TopicsKey, s.topics); err != nil {
		s.logger.Warn("persist_topics_dropped", zap.Error(err))
	}
}

func (s *Store) saveJSON(ctx context.Context, key string, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("encode %s: %w", key, err)
	}
	return s.adapter.Save(ctx, key, data)
}

func (s *Store) loadTopics(ctx context.Context) ([]chat.Topic, bool) {
	raw, err := s.adapter.Load(ctx, storage.TopicsKey)
	if err != nil {
		if !errors.Is(err, storage.ErrNotFound) {
			s.logger.Warn("load_topics_failed", zap.Error(err))
		}
		return nil, false
	}

	var topics []chat.Topic
	if err := json.Unmarshal(raw, &topics); err != nil {
		s.logger.Warn("topics_discarded", zap.Error(err))
		return nil, false
	}

	seen := make(map[string]bool, len(topics))
	for _, topic := range topics {
		if topic.ID == "" || seen[topic.ID] {
			s.logger.Warn("topics_discarded", zap.String("reason", "missing or duplicate id"))
			return nil, false
		}
		seen[topic.ID] = true
	}
	if len(topics) == 0 {
		return nil, false
	}
	return topics, true
}

func (s *Store) loadMessages(ctx context.Context) ([]chat.Message, bool) {
	raw, err := s.adapter.Load(ctx, storage.MessagesKey)
	if err != nil {
		if !errors.Is(err, storage.ErrNotFound) {
			s.logger.Warn("load_messages_failed", zap.Error(err))
		}
		return nil, false
	}

	messages, err := DecodeMessages(raw)
	if err != nil {
		s.logger.Warn("history_discarded", zap.Error(err))
		return nil, false
	}
	return messages, true
}

func (s *Store) ensureDefaultTopic() bool {
	if s.topicIndexLocked(chat.DefaultTopicID) >= 0 {
		return false
	}
	s.topics = append([]chat.Topic{s.defaultTopic()}, s.topics...)
	return true
}

func (s *Store) defaultTopic() chat.Topic {
	fallback := s.categories.Describe("")
	return chat.Topic{
		ID:         chat.DefaultTopicID,
		Name:       "General",
		Category:   fallback.Key,
		LastActive: s.now(),
	}
}

func (s *Store) topicLocked(id string) chat.Topic {
	if idx := s.topicIndexLocked(id); idx >= 0 {
		return s.topics[idx]
	}
	return s.defaultTopic()
}

func (s *Store) topicIndexLocked(id string) int {
	for i := range s.topics {
		if s.topics[i].ID == id {
			return i
		}
	}
	return -1
}

func (s *Store) indexLocked(id string) int {
	for i := range s.messages {
		if s.messages[i].ID == id {
			return i
		}
	}
	return -1
}

func (s *Store) snapshotLocked() chat.SessionState {
	return chat.SessionState{
		Messages:       append([]chat.Message(nil), s.messages...),
		Topics:         append([]chat.Topic(nil), s.topics...),
		CurrentTopicID: s.currentTopicID,
	}
}
