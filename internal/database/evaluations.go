package database

import (
	"context"
	"encoding/json"

	"github.com/nexocrm/crm-ai-gateway/internal/errs"
	"github.com/nexocrm/crm-ai-gateway/internal/models"
)

// EvaluationRepository owns the append-only evaluation history. Rows are
// created once and never updated.
type EvaluationRepository struct {
	db *DB
}

// NewEvaluationRepository creates a new evaluation repository.
func NewEvaluationRepository(db *DB) *EvaluationRepository {
	return &EvaluationRepository{db: db}
}

// Create inserts an evaluation row. Score bounds are enforced here as the
// final gate.
func (r *EvaluationRepository) Create(ctx context.Context, eval *models.Evaluation) error {
	if eval.PotentialScore < 0 || eval.PotentialScore > 1 {
		return errs.Validation("score_potencial", "must be in [0,1]")
	}
	if eval.SatisfactionScore < 0 || eval.SatisfactionScore > 1 {
		return errs.Validation("score_satisfaccion", "must be in [0,1]")
	}

	interestJSON, err := json.Marshal(eval.ProductInterest)
	if err != nil {
		return errs.Validation("interes_productos", "not serializable: "+err.Error())
	}
	keywordsJSON, err := json.Marshal(eval.Keywords)
	if err != nil {
		return errs.Validation("palabras_clave", "not serializable: "+err.Error())
	}

	query := `
		INSERT INTO evaluations
			(lead_id, conversation_id, message_id, evaluated_at, score_potencial,
			 score_satisfaccion, interes_productos, comment, palabras_clave,
			 model_config_id, prompt_used, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, now())
		RETURNING id, created_at
	`

	err = r.db.QueryRowContext(ctx, query,
		eval.LeadID,
		eval.ConversationID,
		eval.MessageID,
		eval.EvaluatedAt,
		eval.PotentialScore,
		eval.SatisfactionScore,
		interestJSON,
		eval.Comment,
		keywordsJSON,
		eval.ModelConfigID,
		eval.PromptUsed,
	).Scan(&eval.ID, &eval.CreatedAt)

	if err != nil {
		return errs.Storage("create evaluation", err)
	}

	return nil
}

// ListByLead returns a lead's evaluation history, newest first.
func (r *EvaluationRepository) ListByLead(ctx context.Context, leadID int64) ([]*models.Evaluation, error) {
	query := `
		SELECT id, lead_id, conversation_id, message_id, evaluated_at, score_potencial,
		       score_satisfaccion, interes_productos, comment, palabras_clave,
		       model_config_id, prompt_used, created_at
		FROM evaluations
		WHERE lead_id = $1
		ORDER BY evaluated_at DESC, id DESC
	`

	rows, err := r.db.QueryContext(ctx, query, leadID)
	if err != nil {
		return nil, errs.Storage("list evaluations", err)
	}
	defer rows.Close()

	var evals []*models.Evaluation
	for rows.Next() {
		eval := &models.Evaluation{}
		var interestJSON, keywordsJSON []byte

		if err := rows.Scan(
			&eval.ID,
			&eval.LeadID,
			&eval.ConversationID,
			&eval.MessageID,
			&eval.EvaluatedAt,
			&eval.PotentialScore,
			&eval.SatisfactionScore,
			&interestJSON,
			&eval.Comment,
			&keywordsJSON,
			&eval.ModelConfigID,
			&eval.PromptUsed,
			&eval.CreatedAt,
		); err != nil {
			return nil, errs.Storage("scan evaluation", err)
		}

		if len(interestJSON) > 0 {
			if err := json.Unmarshal(interestJSON, &eval.ProductInterest); err != nil {
				return nil, errs.Storage("unmarshal product interest", err)
			}
		}
		if len(keywordsJSON) > 0 {
			if err := json.Unmarshal(keywordsJSON, &eval.Keywords); err != nil {
				return nil, errs.Storage("unmarshal keywords", err)
			}
		}

		evals = append(evals, eval)
	}

	if err := rows.Err(); err != nil {
		return nil, errs.Storage("iterate evaluations", err)
	}

	return evals, nil
}
