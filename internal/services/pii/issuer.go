// Package pii owns anonymous token minting. A lead's identifiable id enters
// here and only the opaque token comes out; everything downstream of the
// issuer works in token space.
package pii

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"time"

	"github.com/nexocrm/crm-ai-gateway/internal/database"
	"github.com/nexocrm/crm-ai-gateway/internal/errs"
	"github.com/nexocrm/crm-ai-gateway/internal/models"
)

// DefaultTokenTTL is the validity window stamped on newly minted tokens.
// Expiry is advisory: tokens are retired by clearing the active flag, not by
// the clock.
const DefaultTokenTTL = 30 * 24 * time.Hour

// Issuer mints and reuses anonymous tokens for leads.
type Issuer struct {
	tokens database.TokenRepositoryInterface
	ttl    time.Duration
	now    func() time.Time
}

// NewIssuer creates a token issuer. A non-positive ttl falls back to
// DefaultTokenTTL.
func NewIssuer(tokens database.TokenRepositoryInterface, ttl time.Duration) *Issuer {
	if ttl <= 0 {
		ttl = DefaultTokenTTL
	}
	return &Issuer{
		tokens: tokens,
		ttl:    ttl,
		now:    time.Now,
	}
}

// IssueOrGet returns the lead's active token, minting one on first contact.
// Re-issuance for a lead with an active token always returns that same
// token.
func (i *Issuer) IssueOrGet(ctx context.Context, leadID int64) (*models.PIIToken, error) {
	existing, err := i.tokens.GetActiveByLead(ctx, leadID)
	if err == nil {
		return existing, nil
	}
	if !errs.IsNotFound(err) {
		return nil, err
	}

	return i.mint(ctx, leadID)
}

// Rotate retires the lead's active tokens and mints a fresh one.
func (i *Issuer) Rotate(ctx context.Context, leadID int64) (*models.PIIToken, error) {
	if err := i.tokens.Retire(ctx, leadID); err != nil {
		return nil, err
	}
	return i.mint(ctx, leadID)
}

func (i *Issuer) mint(ctx context.Context, leadID int64) (*models.PIIToken, error) {
	now := i.now().UTC()
	token := &models.PIIToken{
		LeadID:    leadID,
		Token:     Mint(leadID, now),
		IsActive:  true,
		CreatedAt: now,
		ExpiresAt: now.Add(i.ttl),
	}

	if err := i.tokens.Create(ctx, token); err != nil {
		return nil, err
	}

	return token, nil
}

// Mint derives an opaque token from a lead id and a minting instant. The
// nanosecond timestamp in the preimage makes collisions across repeated
// mints for the same lead vanishingly unlikely; the unique index on the
// token column catches the rest.
func Mint(leadID int64, at time.Time) string {
	sum := sha256.Sum256([]byte(fmt.Sprintf("%d-%d", leadID, at.UnixNano())))
	return hex.EncodeToString(sum[:])
}
