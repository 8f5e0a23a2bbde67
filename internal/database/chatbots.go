package database

import (
	"context"
	"encoding/json"

	"github.com/nexocrm/crm-ai-gateway/internal/errs"
	"github.com/nexocrm/crm-ai-gateway/internal/models"
)

// ChatbotProfileRepository handles chatbot profile persistence. Profiles are
// operator-managed; the pipeline only ever reads them.
type ChatbotProfileRepository struct {
	db *DB
}

// NewChatbotProfileRepository creates a new chatbot profile repository.
func NewChatbotProfileRepository(db *DB) *ChatbotProfileRepository {
	return &ChatbotProfileRepository{db: db}
}

// Create inserts a chatbot profile.
func (r *ChatbotProfileRepository) Create(ctx context.Context, profile *models.ChatbotProfile) error {
	keyPointsJSON, err := json.Marshal(profile.KeyPoints)
	if err != nil {
		return errs.Validation("key_points", "not serializable: "+err.Error())
	}
	qaExamplesJSON, err := json.Marshal(profile.QAExamples)
	if err != nil {
		return errs.Validation("qa_examples", "not serializable: "+err.Error())
	}

	query := `
		INSERT INTO chatbot_profiles
			(chatbot_id, position, welcome_message, personality, general_context,
			 communication_tone, main_purpose, key_points, special_instructions,
			 prompt_template, qa_examples, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, now(), now())
		RETURNING id, created_at, updated_at
	`

	err = r.db.QueryRowContext(ctx, query,
		profile.ChatbotID,
		profile.Position,
		profile.WelcomeMessage,
		profile.Personality,
		profile.GeneralContext,
		profile.CommunicationTone,
		profile.MainPurpose,
		keyPointsJSON,
		profile.SpecialInstructions,
		profile.PromptTemplate,
		qaExamplesJSON,
	).Scan(&profile.ID, &profile.CreatedAt, &profile.UpdatedAt)

	if err != nil {
		return errs.Storage("create chatbot profile", err)
	}

	return nil
}

// ListByChatbot returns a chatbot's profiles in ascending position order,
// the order the assembler concatenates them in.
func (r *ChatbotProfileRepository) ListByChatbot(ctx context.Context, chatbotID int64) ([]*models.ChatbotProfile, error) {
	query := `
		SELECT id, chatbot_id, position, welcome_message, personality, general_context,
		       communication_tone, main_purpose, key_points, special_instructions,
		       prompt_template, qa_examples, created_at, updated_at
		FROM chatbot_profiles
		WHERE chatbot_id = $1
		ORDER BY position ASC, id ASC
	`

	rows, err := r.db.QueryContext(ctx, query, chatbotID)
	if err != nil {
		return nil, errs.Storage("list chatbot profiles", err)
	}
	defer rows.Close()

	var profiles []*models.ChatbotProfile
	for rows.Next() {
		profile := &models.ChatbotProfile{}
		var keyPointsJSON, qaExamplesJSON []byte

		if err := rows.Scan(
			&profile.ID,
			&profile.ChatbotID,
			&profile.Position,
			&profile.WelcomeMessage,
			&profile.Personality,
			&profile.GeneralContext,
			&profile.CommunicationTone,
			&profile.MainPurpose,
			&keyPointsJSON,
			&profile.SpecialInstructions,
			&profile.PromptTemplate,
			&qaExamplesJSON,
			&profile.CreatedAt,
			&profile.UpdatedAt,
		); err != nil {
			return nil, errs.Storage("scan chatbot profile", err)
		}

		if len(keyPointsJSON) > 0 {
			if err := json.Unmarshal(keyPointsJSON, &profile.KeyPoints); err != nil {
				return nil, errs.Storage("unmarshal key points", err)
			}
		}
		if len(qaExamplesJSON) > 0 {
			if err := json.Unmarshal(qaExamplesJSON, &profile.QAExamples); err != nil {
				return nil, errs.Storage("unmarshal qa examples", err)
			}
		}

		profiles = append(profiles, profile)
	}

	if err := rows.Err(); err != nil {
		return nil, errs.Storage("iterate chatbot profiles", err)
	}

	return profiles, nil
}

// QAPairRepository handles training example persistence.
type QAPairRepository struct {
	db *DB
}

// NewQAPairRepository creates a new QA pair repository.
func NewQAPairRepository(db *DB) *QAPairRepository {
	return &QAPairRepository{db: db}
}

// Create inserts an active QA pair.
func (r *QAPairRepository) Create(ctx context.Context, pair *models.QAPair) error {
	query := `
		INSERT INTO qa_pairs (chatbot_id, question, ideal_answer, category, added_by, is_active, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, true, now(), now())
		RETURNING id, is_active, created_at, updated_at
	`

	err := r.db.QueryRowContext(ctx, query,
		pair.ChatbotID,
		pair.Question,
		pair.IdealAnswer,
		pair.Category,
		pair.AddedBy,
	).Scan(&pair.ID, &pair.IsActive, &pair.CreatedAt, &pair.UpdatedAt)

	if err != nil {
		return errs.Storage("create qa pair", err)
	}

	return nil
}

// ListActiveByChatbot returns a chatbot's active pairs, oldest first so
// assembly order is stable.
func (r *QAPairRepository) ListActiveByChatbot(ctx context.Context, chatbotID int64) ([]*models.QAPair, error) {
	query := `
		SELECT id, chatbot_id, question, ideal_answer, category, added_by, is_active, created_at, updated_at
		FROM qa_pairs
		WHERE chatbot_id = $1 AND is_active = true
		ORDER BY created_at ASC, id ASC
	`

	rows, err := r.db.QueryContext(ctx, query, chatbotID)
	if err != nil {
		return nil, errs.Storage("list qa pairs", err)
	}
	defer rows.Close()

	var pairs []*models.QAPair
	for rows.Next() {
		pair := &models.QAPair{}
		if err := rows.Scan(
			&pair.ID,
			&pair.ChatbotID,
			&pair.Question,
			&pair.IdealAnswer,
			&pair.Category,
			&pair.AddedBy,
			&pair.IsActive,
			&pair.CreatedAt,
			&pair.UpdatedAt,
		); err != nil {
			return nil, errs.Storage("scan qa pair", err)
		}
		pairs = append(pairs, pair)
	}

	if err := rows.Err(); err != nil {
		return nil, errs.Storage("iterate qa pairs", err)
	}

	return pairs, nil
}

// Deactivate soft-deletes a pair. Inactive pairs stay in the table but are
// excluded from assembly.
func (r *QAPairRepository) Deactivate(ctx context.Context, id int64) error {
	query := `UPDATE qa_pairs SET is_active = false, updated_at = now() WHERE id = $1`

	result, err := r.db.ExecContext(ctx, query, id)
	if err != nil {
		return errs.Storage("deactivate qa pair", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return errs.Storage("deactivate qa pair", err)
	}
	if affected == 0 {
		return errs.NotFound("qa pair", id)
	}

	return nil
}
