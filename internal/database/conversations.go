package database

import (
	"context"
	"database/sql"
	"errors"

	"github.com/nexocrm/crm-ai-gateway/internal/errs"
	"github.com/nexocrm/crm-ai-gateway/internal/models"
)

// ConversationRepository manages lead/chatbot conversation state.
type ConversationRepository struct {
	db *DB
}

// NewConversationRepository creates a new conversation repository.
func NewConversationRepository(db *DB) *ConversationRepository {
	return &ConversationRepository{db: db}
}

// GetOrCreate returns the conversation between a lead and a chatbot,
// creating it (bot inactive) if absent.
func (r *ConversationRepository) GetOrCreate(ctx context.Context, leadID, chatbotID int64) (*models.Conversation, error) {
	conv := &models.Conversation{}

	query := `
		SELECT id, lead_id, chatbot_id, bot_active, created_at, updated_at
		FROM conversations
		WHERE lead_id = $1 AND chatbot_id = $2
		ORDER BY created_at DESC, id DESC
		LIMIT 1
	`
	err := r.db.QueryRowContext(ctx, query, leadID, chatbotID).Scan(
		&conv.ID,
		&conv.LeadID,
		&conv.ChatbotID,
		&conv.BotActive,
		&conv.CreatedAt,
		&conv.UpdatedAt,
	)
	if err == nil {
		return conv, nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return nil, errs.Storage("get conversation", err)
	}

	insert := `
		INSERT INTO conversations (lead_id, chatbot_id, bot_active, created_at, updated_at)
		VALUES ($1, $2, false, now(), now())
		RETURNING id, lead_id, chatbot_id, bot_active, created_at, updated_at
	`
	err = r.db.QueryRowContext(ctx, insert, leadID, chatbotID).Scan(
		&conv.ID,
		&conv.LeadID,
		&conv.ChatbotID,
		&conv.BotActive,
		&conv.CreatedAt,
		&conv.UpdatedAt,
	)
	if err != nil {
		return nil, errs.Storage("create conversation", err)
	}

	return conv, nil
}

// GetLatestByLead returns the lead's most recent conversation.
func (r *ConversationRepository) GetLatestByLead(ctx context.Context, leadID int64) (*models.Conversation, error) {
	conv := &models.Conversation{}
	query := `
		SELECT id, lead_id, chatbot_id, bot_active, created_at, updated_at
		FROM conversations
		WHERE lead_id = $1
		ORDER BY created_at DESC, id DESC
		LIMIT 1
	`

	err := r.db.QueryRowContext(ctx, query, leadID).Scan(
		&conv.ID,
		&conv.LeadID,
		&conv.ChatbotID,
		&conv.BotActive,
		&conv.CreatedAt,
		&conv.UpdatedAt,
	)

	if errors.Is(err, sql.ErrNoRows) {
		return nil, errs.NotFound("conversation for lead", leadID)
	}
	if err != nil {
		return nil, errs.Storage("get latest conversation", err)
	}

	return conv, nil
}

// SetBotActive updates the bot flag and returns the updated row. Setting the
// current value again is a no-op, which makes the activate endpoint
// idempotent.
func (r *ConversationRepository) SetBotActive(ctx context.Context, id int64, active bool) (*models.Conversation, error) {
	conv := &models.Conversation{}
	query := `
		UPDATE conversations
		SET bot_active = $2, updated_at = now()
		WHERE id = $1
		RETURNING id, lead_id, chatbot_id, bot_active, created_at, updated_at
	`

	err := r.db.QueryRowContext(ctx, query, id, active).Scan(
		&conv.ID,
		&conv.LeadID,
		&conv.ChatbotID,
		&conv.BotActive,
		&conv.CreatedAt,
		&conv.UpdatedAt,
	)

	if errors.Is(err, sql.ErrNoRows) {
		return nil, errs.NotFound("conversation", id)
	}
	if err != nil {
		return nil, errs.Storage("set bot active", err)
	}

	return conv, nil
}
