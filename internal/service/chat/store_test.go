package chat_test

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zhouzirui/mathgpt/internal/model/chat"
	"github.com/zhouzirui/mathgpt/internal/model/taxonomy"
	chatservice "github.com/zhouzirui/mathgpt/internal/service/chat"
	"github.com/zhouzirui/mathgpt/internal/storage"
)

func newStore(adapter storage.Adapter) *chatservice.Store {
	return chatservice.NewStore(adapter, taxonomy.NewMemoryRegistry(taxonomy.Seed()), nil)
}

func userMessage(id, content, topicID string, at time.Time) chat.Message {
	return chat.Message{ID: id, Content: content, Sender: chat.SenderUser, Timestamp: at, TopicID: topicID}
}

func TestInitializeSeedsWelcomeAndDefaultTopic(t *testing.T) {
	ctx := context.Background()
	adapter := storage.NewMemoryAdapter(0)
	store := newStore(adapter)

	state := store.Initialize(ctx, "Ada")

	require.Len(t, state.Messages, 1)
	welcome := state.Messages[0]
	assert.True(t, welcome.IsWelcome())
	assert.Equal(t, chat.SenderAssistant, welcome.Sender)
	assert.Contains(t, welcome.Content, "Ada")
	assert.Contains(t, welcome.Content, "General Math")

	topic, ok := state.Topic(chat.DefaultTopicID)
	require.True(t, ok, "default topic must exist")
	assert.Equal(t, taxonomy.DefaultKey, topic.Category)
	assert.Equal(t, chat.DefaultTopicID, state.CurrentTopicID)

	_, err := adapter.Load(ctx, storage.MessagesKey)
	assert.NoError(t, err, "seeded session should be persisted")
}

func TestInitializeIsIdempotent(t *testing.T) {
	ctx := context.Background()
	adapter := storage.NewMemoryAdapter(0)

	first := newStore(adapter)
	first.Initialize(ctx, "Ada")
	first.AppendMessage(ctx, userMessage("", "what is 2+2", chat.DefaultTopicID, time.Time{}))

	a := newStore(adapter).Initialize(ctx, "Ada")
	b := newStore(adapter).Initialize(ctx, "Ada")

	if diff := cmp.Diff(a, b); diff != "" {
		t.Fatalf("initialize is not idempotent (-first +second):\n%s", diff)
	}
}

func TestPersistRoundTrip(t *testing.T) {
	ctx := context.Background()
	adapter := storage.NewMemoryAdapter(0)
	store := newStore(adapter)
	store.Initialize(ctx, "Ada")

	at := time.Date(2025, 3, 14, 15, 9, 26, 535_000_000, time.UTC)
	store.AddTopic(ctx, chat.Topic{ID: "t-calc", Name: "Limits", Category: "calculus", Difficulty: chat.DifficultyAdvanced})
	store.AppendMessage(ctx, userMessage("m1", "lim x->0 sin x / x", "t-calc", at))
	store.AppendMessage(ctx, chat.Message{ID: "m2", Content: "It is $1$.", Sender: chat.SenderAssistant, Timestamp: at.Add(time.Second)})
	want := store.State()

	got := newStore(adapter).Initialize(ctx, "Ada")

	require.Len(t, got.Messages, len(want.Messages))
	for i := range want.Messages {
		w, g := want.Messages[i], got.Messages[i]
		assert.Equal(t, w.ID, g.ID)
		assert.Equal(t, w.Content, g.Content)
		assert.Equal(t, w.Sender, g.Sender)
		assert.Equal(t, w.TopicID, g.TopicID)
		assert.True(t, w.Timestamp.Equal(g.Timestamp), "timestamp %v != %v", w.Timestamp, g.Timestamp)
	}

	topic, ok := got.Topic("t-calc")
	require.True(t, ok)
	assert.Equal(t, 1, topic.MessageCount)
	assert.True(t, topic.LastActive.Equal(at))
	assert.Equal(t, chat.DifficultyAdvanced, topic.Difficulty)
}

func TestInitializeDiscardsWholeLogOnInvalidEntry(t *testing.T) {
	cases := map[string]string{
		"missing content": `[
			{"id":"a","content":"fine","sender":"user","timestamp":"2025-01-01T00:00:00Z"},
			{"id":"b","sender":"assistant","timestamp":"2025-01-01T00:00:01Z"}
		]`,
		"bad sender":    `[{"id":"a","content":"x","sender":"robot","timestamp":"2025-01-01T00:00:00Z"}]`,
		"bad timestamp": `[{"id":"a","content":"x","sender":"user","timestamp":"yesterday"}]`,
		"numeric id":    `[{"id":7,"content":"x","sender":"user","timestamp":"2025-01-01T00:00:00Z"}]`,
		"not an array":  `{"id":"a"}`,
	}

	for name, payload := range cases {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			adapter := storage.NewMemoryAdapter(0)
			adapter.Put(storage.MessagesKey, []byte(payload))

			state := newStore(adapter).Initialize(ctx, "Ada")

			require.Len(t, state.Messages, 1)
			assert.True(t, state.Messages[0].IsWelcome())
		})
	}
}

func TestDecodeMessagesAcceptsISOTimestamps(t *testing.T) {
	want := time.Date(2025, 1, 2, 3, 4, 5, 0, time.UTC)
	cases := map[string]string{
		"rfc3339":           "2025-01-02T03:04:05Z",
		"colon offset":      "2025-01-02T04:04:05+01:00",
		"compact offset":    "2025-01-02T03:04:05+0000",
		"fraction compact":  "2025-01-02T03:04:05.000+0000",
		"no zone":           "2025-01-02T03:04:05",
		"space separator":   "2025-01-02 03:04:05Z",
		"fraction and zone": "2025-01-02T03:04:05.000Z",
	}

	for name, ts := range cases {
		t.Run(name, func(t *testing.T) {
			raw := fmt.Sprintf(`[{"id":"a","content":"x","sender":"user","timestamp":%q}]`, ts)
			msgs, err := chatservice.DecodeMessages([]byte(raw))
			require.NoError(t, err)
			require.Len(t, msgs, 1)
			assert.True(t, msgs[0].Timestamp.Equal(want), "got %v", msgs[0].Timestamp)
		})
	}

	msgs, err := chatservice.DecodeMessages([]byte(`[{"id":"a","content":"x","sender":"user","timestamp":"2025-01-02"}]`))
	require.NoError(t, err)
	assert.True(t, msgs[0].Timestamp.Equal(time.Date(2025, 1, 2, 0, 0, 0, 0, time.UTC)))
}

func TestInitializeRestoresMissingDefaultTopic(t *testing.T) {
	ctx := context.Background()
	adapter := storage.NewMemoryAdapter(0)
	adapter.Put(storage.TopicsKey, []byte(`[{"id":"t1","name":"Sets","category":"discrete"}]`))

	state := newStore(adapter).Initialize(ctx, "Ada")

	_, ok := state.Topic(chat.DefaultTopicID)
	assert.True(t, ok)
	_, ok = state.Topic("t1")
	assert.True(t, ok)
}

func TestAppendPreservesOrderAndStats(t *testing.T) {
	ctx := context.Background()
	store := newStore(storage.NewMemoryAdapter(0))
	store.Initialize(ctx, "Ada")
	store.AddTopic(ctx, chat.Topic{ID: "alg", Name: "Algebra", Category: "algebra"})
	store.AddTopic(ctx, chat.Topic{ID: "geo", Name: "Geometry", Category: "geometry"})

	base := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	topics := []string{"alg", "geo", "alg", "", chat.DefaultTopicID, "alg"}
	var ids []string
	for i, topicID := range topics {
		// identical timestamps must not disturb insertion order
		at := base.Add(time.Duration(i/2) * time.Millisecond)
		id := fmt.Sprintf("m%d", i)
		ids = append(ids, id)
		store.AppendMessage(ctx, userMessage(id, "q", topicID, at))
	}

	state := store.State()
	var gotIDs []string
	for _, msg := range state.Messages[1:] {
		gotIDs = append(gotIDs, msg.ID)
	}
	assert.Equal(t, ids, gotIDs)
	assertStatsMatchLog(t, state)

	alg, _ := state.Topic("alg")
	assert.Equal(t, 3, alg.MessageCount)
	assert.True(t, alg.LastActive.Equal(base.Add(2*time.Millisecond)))
}

func assertStatsMatchLog(t *testing.T, state chat.SessionState) {
	t.Helper()
	for _, topic := range state.Topics {
		count := 0
		var latest time.Time
		for _, msg := range state.Messages {
			if msg.TopicID != topic.ID {
				continue
			}
			count++
			if msg.Timestamp.After(latest) {
				latest = msg.Timestamp
			}
		}
		assert.Equal(t, count, topic.MessageCount, "message count for %s", topic.ID)
		if count > 0 {
			assert.True(t, topic.LastActive.Equal(latest), "last active for %s", topic.ID)
		}
	}
}

func TestRemoveMessage(t *testing.T) {
	ctx := context.Background()
	store := newStore(storage.NewMemoryAdapter(0))
	store.Initialize(ctx, "Ada")
	store.AppendMessage(ctx, userMessage("keep", "a", chat.DefaultTopicID, time.Time{}))

	before := store.State()
	after := store.RemoveMessage(ctx, "missing")
	assert.Equal(t, len(before.Messages), len(after.Messages))

	after = store.RemoveMessage(ctx, "keep")
	assert.Len(t, after.Messages, len(before.Messages)-1)
	assert.False(t, store.Contains("keep"))
	assertStatsMatchLog(t, after)
}

func TestResetConversationKeepsTopics(t *testing.T) {
	ctx := context.Background()
	store := newStore(storage.NewMemoryAdapter(0))
	store.Initialize(ctx, "Ada")
	store.AddTopic(ctx, chat.Topic{ID: "alg", Name: "Algebra", Category: "algebra"})
	store.AppendMessage(ctx, userMessage("", "x+1=2", "alg", time.Time{}))

	state := store.ResetConversation(ctx, chat.Message{ID: chat.WelcomeID, Content: "hi", Sender: chat.SenderAssistant})

	require.Len(t, state.Messages, 1)
	assert.Equal(t, "hi", state.Messages[0].Content)
	alg, ok := state.Topic("alg")
	require.True(t, ok)
	assert.Equal(t, 0, alg.MessageCount)
}

func TestComposingPlaceholderIsNotPersisted(t *testing.T) {
	ctx := context.Background()
	adapter := storage.NewMemoryAdapter(0)
	store := newStore(adapter)
	store.Initialize(ctx, "Ada")
	store.AppendMessage(ctx, chat.Message{ID: "loading-1", Content: "Thinking...", Sender: chat.SenderAssistant, Composing: true})

	raw, err := adapter.Load(ctx, storage.MessagesKey)
	require.NoError(t, err)
	assert.NotContains(t, string(raw), "loading-1")
	assert.True(t, store.Contains("loading-1"))
}

func TestPersistFallsBackToRecentMessages(t *testing.T) {
	ctx := context.Background()
	base := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	long := strings.Repeat("x", 200)

	var messages []chat.Message
	for i := 0; i < 60; i++ {
		messages = append(messages, userMessage(fmt.Sprintf("m%02d", i), long, chat.DefaultTopicID, base.Add(time.Duration(i)*time.Second)))
	}
	recent, err := json.Marshal(messages[len(messages)-chatservice.FallbackHistorySize:])
	require.NoError(t, err)

	adapter := storage.NewMemoryAdapter(int64(len(recent)) + 1024)
	adapter.Put(storage.MessagesKey, []byte(`[]`))
	store := newStore(adapter)
	store.Initialize(ctx, "Ada")
	store.ResetConversation(ctx, messages[0])
	for _, msg := range messages[1:] {
		store.AppendMessage(ctx, msg)
	}

	assert.Len(t, store.State().Messages, 60, "in-memory log must be complete")

	raw, err := adapter.Load(ctx, storage.MessagesKey)
	require.NoError(t, err)
	persisted, err := chatservice.DecodeMessages(raw)
	require.NoError(t, err)
	require.Len(t, persisted, chatservice.FallbackHistorySize)
	assert.Equal(t, "m10", persisted[0].ID)
	assert.Equal(t, "m59", persisted[len(persisted)-1].ID)
}

func TestPersistFailureKeepsLiveSession(t *testing.T) {
	ctx := context.Background()
	adapter := storage.NewMemoryAdapter(0)
	store := newStore(adapter)
	store.Initialize(ctx, "Ada")
	adapter.SetFailSaves(true)

	state := store.AppendMessage(ctx, userMessage("m1", "still here", chat.DefaultTopicID, time.Time{}))

	last, ok := state.Last()
	require.True(t, ok)
	assert.Equal(t, "m1", last.ID)
}

func TestToggleBookmarkAndSelectTopic(t *testing.T) {
	ctx := context.Background()
	store := newStore(storage.NewMemoryAdapter(0))
	store.Initialize(ctx, "Ada")
	store.AddTopic(ctx, chat.Topic{ID: "stats", Name: "Dice", Category: "statistics"})

	state := store.ToggleBookmark(ctx, "stats")
	topic, _ := state.Topic("stats")
	assert.True(t, topic.IsBookmarked)

	state = store.ToggleBookmark(ctx, "stats")
	topic, _ = state.Topic("stats")
	assert.False(t, topic.IsBookmarked)

	state, err := store.SelectTopic("stats")
	require.NoError(t, err)
	assert.Equal(t, "stats", state.CurrentTopicID)
	assert.Equal(t, "statistics", store.CurrentTopic().Category)

	state, err = store.SelectTopic("nope")
	assert.ErrorIs(t, err, chatservice.ErrTopicNotFound)
	assert.Equal(t, "stats", state.CurrentTopicID)
}

func TestClearWipesPersistence(t *testing.T) {
	ctx := context.Background()
	adapter := storage.NewMemoryAdapter(0)
	store := newStore(adapter)
	store.Initialize(ctx, "Ada")
	store.AddTopic(ctx, chat.Topic{ID: "alg", Name: "Algebra", Category: "algebra"})

	state := store.Clear(ctx)

	assert.Empty(t, state.Messages)
	require.Len(t, state.Topics, 1)
	assert.Equal(t, chat.DefaultTopicID, state.Topics[0].ID)
	_, err := adapter.Load(ctx, storage.MessagesKey)
	assert.ErrorIs(t, err, storage.ErrNotFound)
	_, err = adapter.Load(ctx, storage.TopicsKey)
	assert.ErrorIs(t, err, storage.ErrNotFound)
}

func TestReplaceMessage(t *testing.T) {
	ctx := context.Background()
	store := newStore(storage.NewMemoryAdapter(0))
	store.Initialize(ctx, "Ada")
	store.AppendMessage(ctx, chat.Message{ID: "loading-x", Content: "Thinking...", Sender: chat.SenderAssistant, Composing: true})

	state, ok := store.ReplaceMessage(ctx, "loading-x", chat.Message{Content: "42", Sender: chat.SenderAssistant})
	require.True(t, ok)
	last, _ := state.Last()
	assert.Equal(t, "42", last.Content)
	assert.False(t, store.Contains("loading-x"))

	_, ok = store.ReplaceMessage(ctx, "loading-x", chat.Message{Content: "late", Sender: chat.SenderAssistant})
	assert.False(t, ok)
}
