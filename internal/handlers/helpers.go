package handlers

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/nexocrm/crm-ai-gateway/internal/errs"
)

// respondJSON sends a JSON response
func respondJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	response := map[string]any{
		"success":   true,
		"data":      data,
		"timestamp": time.Now().UTC().Format(time.RFC3339),
	}

	if err := json.NewEncoder(w).Encode(response); err != nil {
		http.Error(w, "Failed to encode response", http.StatusInternalServerError)
	}
}

// sanitizeErrorMessage removes internal details from error messages
func sanitizeErrorMessage(message string) string {
	sanitized := message
	if len(sanitized) > 200 {
		sanitized = sanitized[:200] + "..."
	}
	return sanitized
}

// respondJSONError sends an error JSON response with sanitized error messages
func respondJSONError(w http.ResponseWriter, status int, errorType, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	response := map[string]any{
		"success":   false,
		"error":     errorType,
		"message":   sanitizeErrorMessage(message),
		"timestamp": time.Now().UTC().Format(time.RFC3339),
	}

	if err := json.NewEncoder(w).Encode(response); err != nil {
		http.Error(w, "Failed to encode response", http.StatusInternalServerError)
	}
}

// respondError maps the error taxonomy to an HTTP status.
func respondError(w http.ResponseWriter, err error) {
	switch {
	case errs.IsNotFound(err):
		respondJSONError(w, http.StatusNotFound, "Not Found", err.Error())
	case errs.IsValidation(err):
		respondJSONError(w, http.StatusBadRequest, "Bad Request", err.Error())
	case errs.IsUpstreamModel(err):
		respondJSONError(w, http.StatusBadGateway, "Upstream Error", "Model provider request failed")
	default:
		respondJSONError(w, http.StatusInternalServerError, "Internal Server Error", "An unexpected error occurred")
	}
}
