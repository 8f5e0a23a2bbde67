package middleware

import (
	"encoding/json"
	"net/http"
	"strings"

	"go.uber.org/zap"

	"github.com/nexocrm/crm-ai-gateway/internal/request"
	"github.com/nexocrm/crm-ai-gateway/internal/services/auth"
)

// Auth validates the Bearer service token on every request and attaches its
// claims to the context.
func Auth(tokens *auth.TokenService, logger *zap.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			authHeader := r.Header.Get("Authorization")
			if authHeader == "" {
				respondAuthError(w, http.StatusUnauthorized, "Missing Authorization header")
				return
			}

			parts := strings.Split(authHeader, " ")
			if len(parts) != 2 || parts[0] != "Bearer" {
				respondAuthError(w, http.StatusUnauthorized, "Invalid Authorization header format")
				return
			}

			claims, err := tokens.Verify(parts[1])
			if err != nil {
				logger.Warn("token verification failed", zap.Error(err))
				respondAuthError(w, http.StatusUnauthorized, "Invalid or expired token")
				return
			}

			ctx := request.WithClaims(r.Context(), claims)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func respondAuthError(w http.ResponseWriter, status int, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]any{
		"success": false,
		"error":   message,
	})
}
