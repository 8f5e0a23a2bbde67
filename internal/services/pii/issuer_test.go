package pii

import (
	"context"
	"testing"
	"time"

	"github.com/nexocrm/crm-ai-gateway/internal/errs"
	"github.com/nexocrm/crm-ai-gateway/internal/models"
)

// fakeTokenRepo is an in-memory TokenRepositoryInterface.
type fakeTokenRepo struct {
	tokens []*models.PIIToken
	nextID int64
}

func (f *fakeTokenRepo) Create(_ context.Context, token *models.PIIToken) error {
	f.nextID++
	token.ID = f.nextID
	f.tokens = append(f.tokens, token)
	return nil
}

func (f *fakeTokenRepo) GetActiveByLead(_ context.Context, leadID int64) (*models.PIIToken, error) {
	for i := len(f.tokens) - 1; i >= 0; i-- {
		if f.tokens[i].LeadID == leadID && f.tokens[i].IsActive {
			return f.tokens[i], nil
		}
	}
	return nil, errs.NotFound("token for lead", leadID)
}

func (f *fakeTokenRepo) Retire(_ context.Context, leadID int64) error {
	for _, t := range f.tokens {
		if t.LeadID == leadID {
			t.IsActive = false
		}
	}
	return nil
}

func TestIssueOrGetMintsOnFirstContact(t *testing.T) {
	t.Parallel()
	repo := &fakeTokenRepo{}
	issuer := NewIssuer(repo, 0)

	token, err := issuer.IssueOrGet(context.Background(), 42)
	if err != nil {
		t.Fatalf("IssueOrGet() error = %v", err)
	}
	if token.LeadID != 42 {
		t.Errorf("LeadID = %d, want 42", token.LeadID)
	}
	if !token.IsActive {
		t.Error("minted token should be active")
	}
	if len(token.Token) != 64 {
		t.Errorf("token length = %d, want 64 hex chars", len(token.Token))
	}
	wantExpiry := token.CreatedAt.Add(DefaultTokenTTL)
	if !token.ExpiresAt.Equal(wantExpiry) {
		t.Errorf("ExpiresAt = %v, want %v", token.ExpiresAt, wantExpiry)
	}
}

func TestIssueOrGetReusesActiveToken(t *testing.T) {
	t.Parallel()
	repo := &fakeTokenRepo{}
	issuer := NewIssuer(repo, time.Hour)

	first, err := issuer.IssueOrGet(context.Background(), 7)
	if err != nil {
		t.Fatalf("first IssueOrGet() error = %v", err)
	}
	second, err := issuer.IssueOrGet(context.Background(), 7)
	if err != nil {
		t.Fatalf("second IssueOrGet() error = %v", err)
	}
	if first.Token != second.Token {
		t.Errorf("re-issuance minted a new token: %q vs %q", first.Token, second.Token)
	}
	if len(repo.tokens) != 1 {
		t.Errorf("token rows = %d, want 1", len(repo.tokens))
	}
}

func TestRotateRetiresAndMints(t *testing.T) {
	t.Parallel()
	repo := &fakeTokenRepo{}
	issuer := NewIssuer(repo, time.Hour)

	first, _ := issuer.IssueOrGet(context.Background(), 9)
	rotated, err := issuer.Rotate(context.Background(), 9)
	if err != nil {
		t.Fatalf("Rotate() error = %v", err)
	}
	if rotated.Token == first.Token {
		t.Error("rotation returned the old token")
	}
	if repo.tokens[0].IsActive {
		t.Error("old token still active after rotation")
	}
	if !rotated.IsActive {
		t.Error("rotated token should be active")
	}
}

func TestDifferentLeadsGetDifferentTokens(t *testing.T) {
	t.Parallel()
	repo := &fakeTokenRepo{}
	issuer := NewIssuer(repo, time.Hour)

	a, _ := issuer.IssueOrGet(context.Background(), 1)
	b, _ := issuer.IssueOrGet(context.Background(), 2)
	if a.Token == b.Token {
		t.Error("distinct leads received the same token")
	}
}

func TestMintDependsOnLeadAndInstant(t *testing.T) {
	t.Parallel()
	at := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	if Mint(1, at) == Mint(2, at) {
		t.Error("different leads at the same instant collide")
	}
	if Mint(1, at) == Mint(1, at.Add(time.Nanosecond)) {
		t.Error("same lead at different instants collide")
	}
	if Mint(1, at) != Mint(1, at) {
		t.Error("minting is not deterministic for a fixed preimage")
	}
}
