// Package request holds per-request helpers shared by middleware and
// handlers.
package request

import (
	"context"
	"net/http"
	"strings"

	"github.com/nexocrm/crm-ai-gateway/internal/services/auth"
)

type contextKey string

const claimsContextKey contextKey = "claims"

// ClientIP extracts the client IP from the request, respecting
// X-Forwarded-For and X-Real-IP.
func ClientIP(r *http.Request) string {
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		parts := strings.Split(xff, ",")
		if len(parts) > 0 {
			return strings.TrimSpace(parts[0])
		}
	}
	if xri := r.Header.Get("X-Real-IP"); xri != "" {
		return strings.TrimSpace(xri)
	}
	return r.RemoteAddr
}

// WithClaims returns a context with the verified token claims attached.
func WithClaims(ctx context.Context, claims *auth.Claims) context.Context {
	return context.WithValue(ctx, claimsContextKey, claims)
}

// ClaimsFromContext returns the verified claims from the request context, or
// nil if the request was not authenticated.
func ClaimsFromContext(r *http.Request) *auth.Claims {
	c, _ := r.Context().Value(claimsContextKey).(*auth.Claims)
	return c
}
