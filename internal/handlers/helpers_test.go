package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/nexocrm/crm-ai-gateway/internal/errs"
)

func TestRespondJSONEnvelope(t *testing.T) {
	t.Parallel()

	rec := httptest.NewRecorder()
	respondJSON(rec, http.StatusOK, map[string]string{"token": "abc"})

	if rec.Code != http.StatusOK {
		t.Errorf("status = %d", rec.Code)
	}
	if ct := rec.Header().Get("Content-Type"); ct != "application/json" {
		t.Errorf("Content-Type = %q", ct)
	}

	var body map[string]any
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("invalid JSON body: %v", err)
	}
	if body["success"] != true {
		t.Error("success flag not set")
	}
	if body["timestamp"] == nil {
		t.Error("timestamp missing")
	}
	data, ok := body["data"].(map[string]any)
	if !ok || data["token"] != "abc" {
		t.Errorf("data = %v", body["data"])
	}
}

func TestRespondErrorStatusMapping(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name       string
		err        error
		wantStatus int
	}{
		{"not found", errs.NotFound("lead", 9), http.StatusNotFound},
		{"validation", errs.Validation("content", "too long"), http.StatusBadRequest},
		{"upstream model", errs.UpstreamModel(errors.New("timeout")), http.StatusBadGateway},
		{"untyped", errors.New("boom"), http.StatusInternalServerError},
		{"storage", errs.Storage("insert", errors.New("bad conn")), http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			rec := httptest.NewRecorder()
			respondError(rec, tt.err)
			if rec.Code != tt.wantStatus {
				t.Errorf("status = %d, want %d", rec.Code, tt.wantStatus)
			}
			var body map[string]any
			if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
				t.Fatalf("invalid JSON body: %v", err)
			}
			if body["success"] != false {
				t.Error("success flag not cleared on error")
			}
		})
	}
}

func TestRespondErrorHidesInternalDetails(t *testing.T) {
	t.Parallel()

	rec := httptest.NewRecorder()
	respondError(rec, errs.Storage("insert evaluation", errors.New("pq: relation \"evaluations\" does not exist")))

	if strings.Contains(rec.Body.String(), "pq:") {
		t.Error("storage error details leaked to the client")
	}
}

func TestSanitizeErrorMessageTruncates(t *testing.T) {
	t.Parallel()

	long := strings.Repeat("x", 500)
	got := sanitizeErrorMessage(long)
	if len(got) != 203 {
		t.Errorf("len = %d, want 203 (200 chars plus ellipsis)", len(got))
	}
	if !strings.HasSuffix(got, "...") {
		t.Error("truncated message missing ellipsis")
	}
	if short := sanitizeErrorMessage("fine"); short != "fine" {
		t.Errorf("short message altered: %q", short)
	}
}
