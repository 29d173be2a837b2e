package chat

import "time"

// Sender identifies who authored a turn.
type Sender string

const (
	SenderUser      Sender = "user"
	SenderAssistant Sender = "assistant"
)

// Valid reports whether s is one of the known senders.
func (s Sender) Valid() bool {
	return s == SenderUser || s == SenderAssistant
}

// Reserved message identifiers.
const (
	WelcomeID         = "welcome"
	ComposingIDPrefix = "loading"
)

// Message is one turn of the conversation. Messages are never edited once
// appended; a replacement is a remove followed by an append.
type Message struct {
	ID        string    `json:"id"`
	Content   string    `json:"content"`
	Sender    Sender    `json:"sender"`
	Timestamp time.Time `json:"timestamp"`
	TopicID   string    `json:"topicId,omitempty"`
	// Composing marks the transient placeholder shown while a reply is pending.
	Composing bool `json:"-"`
}

// IsWelcome reports whether m is the synthetic greeting.
func (m Message) IsWelcome() bool {
	return m.ID == WelcomeID
}
