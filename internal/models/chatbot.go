package models

import "time"

// QAExample is one inline question/answer example embedded in a chatbot
// profile.
type QAExample struct {
	Question string `json:"question"`
	Answer   string `json:"answer"`
}

// ChatbotProfile is the standing persona and instruction set for a chatbot.
// Position determines concatenation order when the assembler builds the
// system message. Profiles are operator-managed and read-only to the
// pipeline.
type ChatbotProfile struct {
	ID                  int64       `json:"id"`
	ChatbotID           int64       `json:"chatbot_id"`
	Position            int         `json:"position"`
	WelcomeMessage      string      `json:"welcome_message,omitempty"`
	Personality         string      `json:"personality,omitempty"`
	GeneralContext      string      `json:"general_context,omitempty"`
	CommunicationTone   string      `json:"communication_tone,omitempty"`
	MainPurpose         string      `json:"main_purpose,omitempty"`
	KeyPoints           Bag         `json:"key_points,omitempty"`
	SpecialInstructions string      `json:"special_instructions,omitempty"`
	PromptTemplate      string      `json:"prompt_template,omitempty"`
	QAExamples          []QAExample `json:"qa_examples,omitempty"`
	CreatedAt           time.Time   `json:"created_at"`
	UpdatedAt           time.Time   `json:"updated_at"`
}

// QAPair is a standalone training example for a chatbot. Pairs are
// soft-deactivated, never hard-deleted; inactive pairs are excluded from
// assembly.
type QAPair struct {
	ID          int64     `json:"id"`
	ChatbotID   int64     `json:"chatbot_id"`
	Question    string    `json:"question"`
	IdealAnswer string    `json:"ideal_answer"`
	Category    string    `json:"category,omitempty"`
	AddedBy     *int64    `json:"added_by,omitempty"`
	IsActive    bool      `json:"is_active"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}
