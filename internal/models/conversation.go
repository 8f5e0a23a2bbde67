package models

import "time"

// Conversation ties a lead to a chatbot. BotActive controls whether inbound
// messages are answered by the model; an operator taking over flips it off.
type Conversation struct {
	ID        int64     `json:"conversation_id"`
	LeadID    int64     `json:"lead_id"`
	ChatbotID int64     `json:"chatbot_id"`
	BotActive bool      `json:"bot_active"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}
