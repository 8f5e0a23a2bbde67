package middleware

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func TestContentType(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name        string
		method      string
		contentType string
		wantStatus  int
	}{
		{"GET without content type", "GET", "", http.StatusOK},
		{"POST with JSON", "POST", "application/json", http.StatusOK},
		{"POST with JSON and charset", "POST", "application/json; charset=utf-8", http.StatusOK},
		{"POST with uppercase JSON", "POST", "Application/JSON", http.StatusOK},
		{"POST without content type", "POST", "", http.StatusBadRequest},
		{"POST with form data", "POST", "application/x-www-form-urlencoded", http.StatusUnsupportedMediaType},
		{"PUT with XML", "PUT", "application/xml", http.StatusUnsupportedMediaType},
		{"PATCH without content type", "PATCH", "", http.StatusBadRequest},
		{"DELETE without content type", "DELETE", "", http.StatusOK},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(http.StatusOK)
			})

			var body *strings.Reader
			if tt.method == "POST" || tt.method == "PUT" || tt.method == "PATCH" {
				body = strings.NewReader(`{}`)
			} else {
				body = strings.NewReader("")
			}

			req := httptest.NewRequest(tt.method, "/test", body)
			if tt.contentType != "" {
				req.Header.Set("Content-Type", tt.contentType)
			}
			w := httptest.NewRecorder()

			ContentType(handler).ServeHTTP(w, req)

			if w.Code != tt.wantStatus {
				t.Errorf("Expected status %d, got %d", tt.wantStatus, w.Code)
			}
		})
	}
}
