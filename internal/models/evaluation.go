package models

import "time"

// Evaluation is a model-derived assessment of a lead conversation. It stores
// identifiable ids so analytics can join back to CRM records, but never the
// conversational text that produced the scores. Rows are append-only.
//
// The four score fields keep their original wire names (score_potencial,
// score_satisfaccion, interes_productos, palabras_clave) because downstream
// CRM consumers already depend on them.
type Evaluation struct {
	ID                int64              `json:"id"`
	LeadID            int64              `json:"lead_id"`
	ConversationID    int64              `json:"conversation_id"`
	MessageID         int64              `json:"message_id"`
	EvaluatedAt       time.Time          `json:"evaluated_at"`
	PotentialScore    float64            `json:"score_potencial"`
	SatisfactionScore float64            `json:"score_satisfaccion"`
	ProductInterest   map[string]float64 `json:"interes_productos"`
	Comment           string             `json:"comment,omitempty"`
	Keywords          []string           `json:"palabras_clave"`
	ModelConfigID     int64              `json:"model_config_id"`
	PromptUsed        string             `json:"prompt_used,omitempty"`
	CreatedAt         time.Time          `json:"created_at"`
}
