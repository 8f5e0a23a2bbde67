package database

import (
	"context"

	"github.com/nexocrm/crm-ai-gateway/internal/models"
)

// TokenRepositoryInterface defines PII token persistence. Minting is owned
// exclusively by the token issuer service; nothing else writes here.
type TokenRepositoryInterface interface {
	Create(ctx context.Context, token *models.PIIToken) error
	GetActiveByLead(ctx context.Context, leadID int64) (*models.PIIToken, error)
	Retire(ctx context.Context, leadID int64) error
}

// SanitizedMessageRepositoryInterface defines sanitized message persistence.
type SanitizedMessageRepositoryInterface interface {
	Create(ctx context.Context, msg *models.SanitizedMessage) error
	ListByToken(ctx context.Context, token string) ([]*models.SanitizedMessage, error)
	GetByMessageID(ctx context.Context, messageID int64) (*models.SanitizedMessage, error)
	SetMessageID(ctx context.Context, id int64, messageID int64) error
}

// ContextEntryRepositoryInterface is the append-only conversational ledger.
// There is deliberately no update or delete.
type ContextEntryRepositoryInterface interface {
	Append(ctx context.Context, entry *models.ContextEntry) error
	TopRelevant(ctx context.Context, token string, limit int) ([]*models.ContextEntry, error)
	Recent(ctx context.Context, token string, limit int) ([]*models.ContextEntry, error)
}

// ChatbotProfileRepositoryInterface reads standing chatbot configuration.
type ChatbotProfileRepositoryInterface interface {
	Create(ctx context.Context, profile *models.ChatbotProfile) error
	ListByChatbot(ctx context.Context, chatbotID int64) ([]*models.ChatbotProfile, error)
}

// QAPairRepositoryInterface manages training examples.
type QAPairRepositoryInterface interface {
	Create(ctx context.Context, pair *models.QAPair) error
	ListActiveByChatbot(ctx context.Context, chatbotID int64) ([]*models.QAPair, error)
	Deactivate(ctx context.Context, id int64) error
}

// ConversationRepositoryInterface manages lead/chatbot conversation state.
type ConversationRepositoryInterface interface {
	GetOrCreate(ctx context.Context, leadID, chatbotID int64) (*models.Conversation, error)
	GetLatestByLead(ctx context.Context, leadID int64) (*models.Conversation, error)
	SetBotActive(ctx context.Context, id int64, active bool) (*models.Conversation, error)
}

// MessageRepositoryInterface persists identifiable messages.
type MessageRepositoryInterface interface {
	Create(ctx context.Context, msg *models.Message) error
	CreateOperatorMessage(ctx context.Context, msg *models.Message) error
}

// EvaluationRepositoryInterface owns the append-only evaluation history.
type EvaluationRepositoryInterface interface {
	Create(ctx context.Context, eval *models.Evaluation) error
	ListByLead(ctx context.Context, leadID int64) ([]*models.Evaluation, error)
}

// Ensure concrete types implement the interfaces.
var (
	_ TokenRepositoryInterface            = (*TokenRepository)(nil)
	_ SanitizedMessageRepositoryInterface = (*SanitizedMessageRepository)(nil)
	_ ContextEntryRepositoryInterface     = (*ContextEntryRepository)(nil)
	_ ChatbotProfileRepositoryInterface   = (*ChatbotProfileRepository)(nil)
	_ QAPairRepositoryInterface           = (*QAPairRepository)(nil)
	_ ConversationRepositoryInterface     = (*ConversationRepository)(nil)
	_ MessageRepositoryInterface          = (*MessageRepository)(nil)
	_ EvaluationRepositoryInterface       = (*EvaluationRepository)(nil)
)
