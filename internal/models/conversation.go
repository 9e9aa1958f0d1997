package models

import "time"

// MediaPlaceholder substitutes the text of a media turn when a conversation
// is saved or exported. Binary attachments are never round-tripped; only this
// note survives a save/load cycle.
const MediaPlaceholder = "[media attachment omitted]"

// Conversation is an ordered record of one chat, as persisted in the local
// store or exported as a standalone JSON document.
type Conversation struct {
	Name      string    `json:"name"`
	Messages  []Turn    `json:"messages"`
	Model     string    `json:"model"`
	Timestamp time.Time `json:"timestamp"`
}

// Turn is a single entry in a conversation: either the user's prompt or the
// assistant's reply. Model is filled only on assistant turns, recording which
// model produced the text.
type Turn struct {
	ID        string    `json:"id"`
	Text      string    `json:"text"`
	FromUser  bool      `json:"from_user"`
	Model     string    `json:"model,omitempty"`
	Media     bool      `json:"media,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

// Sanitized returns a copy of the conversation safe for persistence: the
// text of every media turn is replaced by MediaPlaceholder.
func (c Conversation) Sanitized() Conversation {
	msgs := make([]Turn, len(c.Messages))
	copy(msgs, c.Messages)
	for i := range msgs {
		if msgs[i].Media {
			msgs[i].Text = MediaPlaceholder
		}
	}
	c.Messages = msgs
	return c
}
