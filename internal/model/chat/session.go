package chat

// SessionState is a read-only snapshot of the conversation handed to callers.
type SessionState struct {
	Messages       []Message `json:"messages"`
	Topics         []Topic   `json:"topics"`
	CurrentTopicID string    `json:"currentTopicId"`
}

// Topic returns the topic with the given id.
func (s SessionState) Topic(id string) (Topic, bool) {
	for _, topic := range s.Topics {
		if topic.ID == id {
			return topic, true
		}
	}
	return Topic{}, false
}

// Last returns the most recent message, if any.
func (s SessionState) Last() (Message, bool) {
	if len(s.Messages) == 0 {
		return Message{}, false
	}
	return s.Messages[len(s.Messages)-1], true
}
