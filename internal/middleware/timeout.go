package middleware

import (
	"context"
	"net/http"
	"time"
)

// DefaultRequestTimeout bounds a request when no explicit timeout is configured.
const DefaultRequestTimeout = 30 * time.Second

const timeoutBody = `{"success":false,"error":"Request Timeout","message":"The request took too long to process"}`

// Timeout cancels the request context after the given duration and cuts off
// slow handlers with a 503 in the error envelope shape.
func Timeout(timeout time.Duration) func(http.Handler) http.Handler {
	if timeout <= 0 {
		timeout = DefaultRequestTimeout
	}

	return func(next http.Handler) http.Handler {
		timed := http.TimeoutHandler(next, timeout, timeoutBody)
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx, cancel := context.WithTimeout(r.Context(), timeout)
			defer cancel()

			timed.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}
