// Package auth issues and verifies the service JWTs that callers present to
// the gateway. Tokens are locally signed HS256; there is no third-party
// identity provider in the loop.
package auth

import (
	"fmt"
	"time"

	"github.com/lestrrat-go/jwx/v2/jwa"
	"github.com/lestrrat-go/jwx/v2/jwt"
)

// DefaultTokenTTL is the validity window for issued service tokens.
const DefaultTokenTTL = 12 * time.Hour

// Claims are the fields the gateway cares about from a verified token.
type Claims struct {
	Subject  string
	Issuer   string
	IssuedAt time.Time
	Expires  time.Time
}

// TokenService signs and verifies HS256 service tokens with a shared secret.
type TokenService struct {
	secret []byte
	issuer string
	ttl    time.Duration
	now    func() time.Time
}

// NewTokenService creates a token service. A non-positive ttl falls back to
// DefaultTokenTTL.
func NewTokenService(secret, issuer string, ttl time.Duration) (*TokenService, error) {
	if secret == "" {
		return nil, fmt.Errorf("jwt secret is required")
	}
	if ttl <= 0 {
		ttl = DefaultTokenTTL
	}
	return &TokenService{
		secret: []byte(secret),
		issuer: issuer,
		ttl:    ttl,
		now:    time.Now,
	}, nil
}

// Issue signs a token for the given subject.
func (s *TokenService) Issue(subject string) (string, error) {
	now := s.now().UTC()

	token, err := jwt.NewBuilder().
		Subject(subject).
		Issuer(s.issuer).
		IssuedAt(now).
		Expiration(now.Add(s.ttl)).
		Build()
	if err != nil {
		return "", fmt.Errorf("failed to build token: %w", err)
	}

	signed, err := jwt.Sign(token, jwt.WithKey(jwa.HS256, s.secret))
	if err != nil {
		return "", fmt.Errorf("failed to sign token: %w", err)
	}

	return string(signed), nil
}

// Verify parses and validates a signed token and extracts its claims.
func (s *TokenService) Verify(tokenString string) (*Claims, error) {
	token, err := jwt.Parse([]byte(tokenString),
		jwt.WithKey(jwa.HS256, s.secret),
		jwt.WithValidate(true),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to parse/verify token: %w", err)
	}

	if s.issuer != "" && token.Issuer() != s.issuer {
		return nil, fmt.Errorf("token issuer mismatch: expected %s, got %s", s.issuer, token.Issuer())
	}

	return &Claims{
		Subject:  token.Subject(),
		Issuer:   token.Issuer(),
		IssuedAt: token.IssuedAt(),
		Expires:  token.Expiration(),
	}, nil
}
