package models

import "time"

// EntryType tags a context entry with the kind of conversational turn it
// records.
type EntryType string

const (
	EntryTypeUserMessage EntryType = "user_message"
	EntryTypeBotReply    EntryType = "bot_reply"
	EntryTypeOther       EntryType = "other"
)

// Valid reports whether the entry type is one of the known values.
func (t EntryType) Valid() bool {
	switch t {
	case EntryTypeUserMessage, EntryTypeBotReply, EntryTypeOther:
		return true
	default:
		return false
	}
}

// ContextEntry is one unit of conversational memory: a sanitized turn scored
// by relevance. Entries are append-only; ranking, not deletion, governs
// relevance decay.
type ContextEntry struct {
	ID        int64     `json:"id"`
	Token     string    `json:"token"`
	Type      EntryType `json:"entry_type"`
	Content   string    `json:"sanitized_content"`
	Relevance float64   `json:"relevance_score"`
	CreatedAt time.Time `json:"created_at"`
}
