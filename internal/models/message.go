package models

import "time"

// SanitizedMessage is the redacted copy of one inbound message, keyed by the
// lead's anonymous token. MessageID back-references the identifiable message
// row and may be patched once that row exists; everything else is immutable.
type SanitizedMessage struct {
	ID        int64     `json:"id"`
	MessageID *int64    `json:"message_id,omitempty"`
	Token     string    `json:"token"`
	Content   string    `json:"sanitized_content"`
	Metadata  Bag       `json:"sanitized_metadata"`
	CreatedAt time.Time `json:"created_at"`
}

// MessageOrigin identifies who produced an identifiable message row.
type MessageOrigin string

const (
	MessageOriginLead     MessageOrigin = "lead"
	MessageOriginChatbot  MessageOrigin = "chatbot"
	MessageOriginOperator MessageOrigin = "operator"
)

// Message is an identifiable conversation message. It never leaves the CRM
// side; only its sanitized counterpart reaches the model provider.
type Message struct {
	ID             int64         `json:"id"`
	ConversationID int64         `json:"conversation_id"`
	ChannelID      *int64        `json:"channel_id,omitempty"`
	Content        string        `json:"content"`
	Origin         MessageOrigin `json:"origin"`
	SenderID       *int64        `json:"sender_id,omitempty"`
	ContentType    string        `json:"content_type"`
	CreatedAt      time.Time     `json:"created_at"`
}
