package database

import (
	"context"

	"github.com/nexocrm/crm-ai-gateway/internal/errs"
	"github.com/nexocrm/crm-ai-gateway/internal/models"
)

// ContextEntryRepository is the append-only conversational ledger. Ordering
// within a token follows the database's insert sequence (the serial id), not
// client-side timestamps, so concurrent writers cannot reorder causally.
type ContextEntryRepository struct {
	db *DB
}

// NewContextEntryRepository creates a new context entry repository.
func NewContextEntryRepository(db *DB) *ContextEntryRepository {
	return &ContextEntryRepository{db: db}
}

// Append inserts a new entry. Relevance bounds are validated here as the
// last gate before persistence.
func (r *ContextEntryRepository) Append(ctx context.Context, entry *models.ContextEntry) error {
	if entry.Relevance < 0 || entry.Relevance > 1 {
		return errs.Validation("relevance_score", "must be in [0,1]")
	}
	if !entry.Type.Valid() {
		return errs.Validation("entry_type", "unknown entry type")
	}

	query := `
		INSERT INTO context_entries (token, entry_type, sanitized_content, relevance_score, created_at)
		VALUES ($1, $2, $3, $4, now())
		RETURNING id, created_at
	`

	err := r.db.QueryRowContext(ctx, query,
		entry.Token,
		entry.Type,
		entry.Content,
		entry.Relevance,
	).Scan(&entry.ID, &entry.CreatedAt)

	if err != nil {
		return errs.Storage("append context entry", err)
	}

	return nil
}

// TopRelevant returns up to limit entries ordered by descending relevance.
// Ties break by recency then id: relevance scores collide at 1.0 constantly,
// so the tie-break is part of the contract, not an afterthought.
func (r *ContextEntryRepository) TopRelevant(ctx context.Context, token string, limit int) ([]*models.ContextEntry, error) {
	query := `
		SELECT id, token, entry_type, sanitized_content, relevance_score, created_at
		FROM context_entries
		WHERE token = $1
		ORDER BY relevance_score DESC, created_at DESC, id DESC
		LIMIT $2
	`

	return r.query(ctx, query, token, limit)
}

// Recent returns up to limit entries ordered by descending creation time,
// for callers that need conversational chronology over relevance.
func (r *ContextEntryRepository) Recent(ctx context.Context, token string, limit int) ([]*models.ContextEntry, error) {
	query := `
		SELECT id, token, entry_type, sanitized_content, relevance_score, created_at
		FROM context_entries
		WHERE token = $1
		ORDER BY created_at DESC, id DESC
		LIMIT $2
	`

	return r.query(ctx, query, token, limit)
}

func (r *ContextEntryRepository) query(ctx context.Context, query, token string, limit int) ([]*models.ContextEntry, error) {
	rows, err := r.db.QueryContext(ctx, query, token, limit)
	if err != nil {
		return nil, errs.Storage("query context entries", err)
	}
	defer rows.Close()

	var entries []*models.ContextEntry
	for rows.Next() {
		entry := &models.ContextEntry{}
		if err := rows.Scan(
			&entry.ID,
			&entry.Token,
			&entry.Type,
			&entry.Content,
			&entry.Relevance,
			&entry.CreatedAt,
		); err != nil {
			return nil, errs.Storage("scan context entry", err)
		}
		entries = append(entries, entry)
	}

	if err := rows.Err(); err != nil {
		return nil, errs.Storage("iterate context entries", err)
	}

	return entries, nil
}
