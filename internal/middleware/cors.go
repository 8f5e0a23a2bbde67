package middleware

import (
	"net/http"
	"strings"

	"github.com/rs/cors"
)

// CORS builds a CORS middleware from a comma-separated list of allowed
// origins. An empty list falls back to the frontend dev origin.
func CORS(frontendURL string) func(http.Handler) http.Handler {
	origins := AllowedOrigins(frontendURL)

	c := cors.New(cors.Options{
		AllowedOrigins:   origins,
		AllowCredentials: true,
		MaxAge:           86400,
		AllowedMethods:   []string{http.MethodGet, http.MethodPost, http.MethodPatch, http.MethodPut, http.MethodDelete, http.MethodOptions},
		AllowedHeaders:   []string{"Content-Type", "Authorization"},
	})

	return c.Handler
}

// AllowedOrigins parses a comma-separated origin list, trimming whitespace
// and dropping empties.
func AllowedOrigins(raw string) []string {
	origins := []string{}
	for _, origin := range strings.Split(raw, ",") {
		if trimmed := strings.TrimSpace(origin); trimmed != "" {
			origins = append(origins, trimmed)
		}
	}
	if len(origins) == 0 {
		origins = []string{"http://localhost:3000"}
	}
	return origins
}
