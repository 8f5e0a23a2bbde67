package handlers

import (
	"encoding/json"
	"io"
	"net/http"
	"strings"

	"github.com/gorilla/mux"

	"github.com/nexocrm/crm-ai-gateway/internal/services/auth"
	"github.com/nexocrm/crm-ai-gateway/internal/services/pipeline"
	"github.com/nexocrm/crm-ai-gateway/internal/validation"
)

// TokenHandler exposes service JWT issuance and anonymous PII token issuance.
type TokenHandler struct {
	pipeline       *pipeline.Pipeline
	tokens         *auth.TokenService
	defaultSubject string
}

// NewTokenHandler creates a token handler. defaultSubject is used when a
// generate request names no subject.
func NewTokenHandler(p *pipeline.Pipeline, tokens *auth.TokenService, defaultSubject string) *TokenHandler {
	return &TokenHandler{pipeline: p, tokens: tokens, defaultSubject: defaultSubject}
}

// RegisterRoutes registers the authenticated token routes on the given router.
func (h *TokenHandler) RegisterRoutes(r *mux.Router) {
	r.HandleFunc("/tokens/pii", h.GeneratePII).Methods("POST")
}

// RegisterPublicRoutes registers the bootstrap token route. Callers need a
// signed token to reach anything else, so issuance itself is unauthenticated.
func (h *TokenHandler) RegisterPublicRoutes(r *mux.Router) {
	r.HandleFunc("/api/v1/tokens/generate", h.Generate).Methods("POST")
}

// GenerateServiceTokenRequest optionally names the subject to sign for.
type GenerateServiceTokenRequest struct {
	Subject string `json:"subject,omitempty" validate:"omitempty,max=128"`
}

// ServiceTokenResponse is the bearer token envelope returned to callers.
type ServiceTokenResponse struct {
	AccessToken string `json:"access_token"`
	TokenType   string `json:"token_type"`
}

// Generate signs an HS256 service token. The body is optional; an empty or
// absent subject falls back to the configured default.
func (h *TokenHandler) Generate(w http.ResponseWriter, r *http.Request) {
	var req GenerateServiceTokenRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil && err != io.EOF {
		respondJSONError(w, http.StatusBadRequest, "Bad Request", "Invalid JSON body")
		return
	}
	if err := validation.Validate.Struct(&req); err != nil {
		respondJSONError(w, http.StatusBadRequest, "Bad Request", err.Error())
		return
	}

	subject := strings.TrimSpace(req.Subject)
	if subject == "" {
		subject = h.defaultSubject
	}

	signed, err := h.tokens.Issue(subject)
	if err != nil {
		respondJSONError(w, http.StatusInternalServerError, "Internal Server Error", "Failed to issue token")
		return
	}

	respondJSON(w, http.StatusOK, ServiceTokenResponse{
		AccessToken: signed,
		TokenType:   "bearer",
	})
}

// GenerateTokenRequest asks for a lead's anonymous token. Rotate retires any
// active token first.
type GenerateTokenRequest struct {
	LeadID int64 `json:"lead_id" validate:"required,gt=0"`
	Rotate bool  `json:"rotate,omitempty"`
}

// GeneratePII returns the lead's active anonymous token, minting one if needed.
func (h *TokenHandler) GeneratePII(w http.ResponseWriter, r *http.Request) {
	var req GenerateTokenRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondJSONError(w, http.StatusBadRequest, "Bad Request", "Invalid JSON body")
		return
	}
	if err := validation.Validate.Struct(&req); err != nil {
		respondJSONError(w, http.StatusBadRequest, "Bad Request", err.Error())
		return
	}

	token, err := h.pipeline.IssueToken(r.Context(), req.LeadID, req.Rotate)
	if err != nil {
		respondError(w, err)
		return
	}

	respondJSON(w, http.StatusOK, token)
}
