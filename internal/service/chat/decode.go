package chat

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/zhouzirui/mathgpt/internal/model/chat"
)

// persistedMessage mirrors the stored record with pointer fields so that a
// missing field can be told apart from an empty one.
type persistedMessage struct {
	ID        *string `json:"id"`
	Content   *string `json:"content"`
	Sender    *string `json:"sender"`
	Timestamp *string `json:"timestamp"`
	TopicID   *string `json:"topicId"`
}

// DecodeMessages parses a persisted message log. A single invalid record
// fails the whole log.
func DecodeMessages(raw []byte) ([]chat.Message, error) {
	var records []json.RawMessage
	if err := json.Unmarshal(raw, &records); err != nil {
		return nil, fmt.Errorf("decode message log: %w", err)
	}

	messages := make([]chat.Message, 0, len(records))
	seen := make(map[string]bool, len(records))
	for i, record := range records {
		msg, err := decodeMessage(record)
		if err != nil {
			return nil, fmt.Errorf("message %d: %w", i, err)
		}
		if seen[msg.ID] {
			return nil, fmt.Errorf("message %d: duplicate id %q", i, msg.ID)
		}
		seen[msg.ID] = true
		messages = append(messages, msg)
	}
	return messages, nil
}

func decodeMessage(record json.RawMessage) (chat.Message, error) {
	var p persistedMessage
	if err := json.Unmarshal(record, &p); err != nil {
		return chat.Message{}, err
	}

	switch {
	case p.ID == nil || *p.ID == "":
		return chat.Message{}, fmt.Errorf("missing id")
	case p.Content == nil:
		return chat.Message{}, fmt.Errorf("missing content")
	case p.Sender == nil || !chat.Sender(*p.Sender).Valid():
		return chat.Message{}, fmt.Errorf("invalid sender")
	case p.Timestamp == nil:
		return chat.Message{}, fmt.Errorf("missing timestamp")
	}

	ts, err := parseTimestamp(*p.Timestamp)
	if err != nil {
		return chat.Message{}, err
	}

	msg := chat.Message{
		ID:        *p.ID,
		Content:   *p.Content,
		Sender:    chat.Sender(*p.Sender),
		Timestamp: ts.UTC(),
	}
	if p.TopicID != nil {
		msg.TopicID = *p.TopicID
	}
	return msg, nil
}

// timestampLayouts are the ISO-8601 shapes accepted on load. Fractional
// seconds are optional in all of them; a missing zone means UTC.
var timestampLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05Z0700",
	"2006-01-02 15:04:05Z07:00",
	"2006-01-02T15:04:05",
	time.DateOnly,
}

func parseTimestamp(value string) (time.Time, error) {
	for _, layout := range timestampLayouts {
		if ts, err := time.Parse(layout, value); err == nil {
			return ts, nil
		}
	}
	return time.Time{}, fmt.Errorf("invalid timestamp %q", value)
}
