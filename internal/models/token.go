package models

import "time"

// PIIToken is the anonymous proxy for a lead. The token string is all the
// model provider ever sees; the lead id stays on our side of the boundary.
type PIIToken struct {
	ID        int64     `json:"id"`
	LeadID    int64     `json:"lead_id"`
	Token     string    `json:"token"`
	IsActive  bool      `json:"is_active"`
	CreatedAt time.Time `json:"created_at"`
	ExpiresAt time.Time `json:"expires_at"`
}

// Expired reports whether the token is past its expiry at the given time.
// Expiry is informational: routing follows IsActive, never this.
func (t *PIIToken) Expired(now time.Time) bool {
	return now.After(t.ExpiresAt)
}
