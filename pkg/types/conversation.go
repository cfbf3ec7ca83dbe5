package types

import "strings"

// ConversationRef is a stable handle for one conversation on one channel.
//
// Tracking state is keyed by Key(), so two refs that differ only in UserID or
// MessageID share the same record.
type ConversationRef struct {
	ChannelID      string `json:"channel_id"`
	ConversationID string `json:"conversation_id"`
	UserID         string `json:"user_id,omitempty"`
	MessageID      string `json:"message_id,omitempty"` // the message a click came from, when known
}

// Key returns the storage key for the conversation.
func (r ConversationRef) Key() string {
	return "conv:" + strings.ToLower(r.ChannelID) + ":" + r.ConversationID
}
