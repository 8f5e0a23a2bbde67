package database

import (
	"context"
	"database/sql"
	"errors"

	"github.com/nexocrm/crm-ai-gateway/internal/errs"
	"github.com/nexocrm/crm-ai-gateway/internal/models"
)

// TokenRepository handles PII token database operations.
type TokenRepository struct {
	db *DB
}

// NewTokenRepository creates a new token repository.
func NewTokenRepository(db *DB) *TokenRepository {
	return &TokenRepository{db: db}
}

// Create inserts a new token row. The unique index on the token column is
// the last line of defense for token uniqueness.
func (r *TokenRepository) Create(ctx context.Context, token *models.PIIToken) error {
	query := `
		INSERT INTO pii_tokens (lead_id, token, is_active, created_at, expires_at)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id
	`

	err := r.db.QueryRowContext(ctx, query,
		token.LeadID,
		token.Token,
		token.IsActive,
		token.CreatedAt,
		token.ExpiresAt,
	).Scan(&token.ID)

	if err != nil {
		return errs.Storage("create pii token", err)
	}

	return nil
}

// GetActiveByLead returns the single active token for a lead. When a lead
// has accumulated several active tokens the newest wins; older ones are
// ignored for routing.
func (r *TokenRepository) GetActiveByLead(ctx context.Context, leadID int64) (*models.PIIToken, error) {
	token := &models.PIIToken{}
	query := `
		SELECT id, lead_id, token, is_active, created_at, expires_at
		FROM pii_tokens
		WHERE lead_id = $1 AND is_active = true
		ORDER BY created_at DESC, id DESC
		LIMIT 1
	`

	err := r.db.QueryRowContext(ctx, query, leadID).Scan(
		&token.ID,
		&token.LeadID,
		&token.Token,
		&token.IsActive,
		&token.CreatedAt,
		&token.ExpiresAt,
	)

	if errors.Is(err, sql.ErrNoRows) {
		return nil, errs.NotFound("active token for lead", leadID)
	}
	if err != nil {
		return nil, errs.Storage("get active token", err)
	}

	return token, nil
}

// Retire clears the active flag on all of a lead's tokens. Rows are never
// deleted.
func (r *TokenRepository) Retire(ctx context.Context, leadID int64) error {
	query := `UPDATE pii_tokens SET is_active = false WHERE lead_id = $1 AND is_active = true`

	if _, err := r.db.ExecContext(ctx, query, leadID); err != nil {
		return errs.Storage("retire tokens", err)
	}

	return nil
}
