package chat

import "time"

// DefaultTopicID names the topic that always exists.
const DefaultTopicID = "default"

// Difficulty grades a topic.
type Difficulty string

const (
	DifficultyBeginner     Difficulty = "beginner"
	DifficultyIntermediate Difficulty = "intermediate"
	DifficultyAdvanced     Difficulty = "advanced"
)

// Valid reports whether d is empty or one of the known levels.
func (d Difficulty) Valid() bool {
	switch d {
	case "", DifficultyBeginner, DifficultyIntermediate, DifficultyAdvanced:
		return true
	}
	return false
}

// Topic is a conversation thread tagged with a taxonomy category.
// LastActive and MessageCount are derived from the message log.
type Topic struct {
	ID           string     `json:"id"`
	Name         string     `json:"name"`
	Category     string     `json:"category"`
	LastActive   time.Time  `json:"lastActive"`
	MessageCount int        `json:"messageCount"`
	IsBookmarked bool       `json:"isBookmarked"`
	Difficulty   Difficulty `json:"difficulty,omitempty"`
}
