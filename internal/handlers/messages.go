package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/go-playground/validator/v10"
	"github.com/gorilla/mux"
	"go.uber.org/zap"

	"github.com/nexocrm/crm-ai-gateway/internal/models"
	"github.com/nexocrm/crm-ai-gateway/internal/queue"
	"github.com/nexocrm/crm-ai-gateway/internal/services/pipeline"
	"github.com/nexocrm/crm-ai-gateway/internal/validation"
)

// MaxMessageLength bounds inbound message content.
const MaxMessageLength = 10000

// MessageHandler handles the sanitize-and-respond flow and conversation
// control.
type MessageHandler struct {
	pipeline *pipeline.Pipeline
	jobQueue queue.JobQueue
	logger   *zap.Logger
}

// NewMessageHandler creates a message handler. jobQueue may be nil; async
// re-evaluation is then disabled.
func NewMessageHandler(p *pipeline.Pipeline, jobQueue queue.JobQueue, logger *zap.Logger) *MessageHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &MessageHandler{pipeline: p, jobQueue: jobQueue, logger: logger}
}

// RegisterRoutes registers message routes on the given router.
func (h *MessageHandler) RegisterRoutes(r *mux.Router) {
	r.HandleFunc("/messages/sanitize", h.SanitizeAndRespond).Methods("POST")
	r.HandleFunc("/chatbot/activate", h.ActivateBot).Methods("POST")
	r.HandleFunc("/frontend-message", h.FrontendMessage).Methods("POST")
}

// SanitizeMessageRequest is an inbound lead message.
type SanitizeMessageRequest struct {
	LeadID    int64      `json:"lead_id" validate:"required,gt=0"`
	ChatbotID int64      `json:"chatbot_id" validate:"required,gt=0"`
	ChannelID *int64     `json:"channel_id,omitempty"`
	Content   string     `json:"content" validate:"required,min=1,max=10000"`
	Metadata  models.Bag `json:"metadata,omitempty"`
}

// SanitizeAndRespond redacts and stores an inbound message and, when the bot
// holds the conversation, returns the model's reply.
func (h *MessageHandler) SanitizeAndRespond(w http.ResponseWriter, r *http.Request) {
	var req SanitizeMessageRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondJSONError(w, http.StatusBadRequest, "Bad Request", "Invalid JSON body")
		return
	}
	req.Content = validation.SanitizeText(req.Content)
	if err := validation.Validate.Struct(&req); err != nil {
		if _, ok := err.(*validator.InvalidValidationError); ok {
			respondJSONError(w, http.StatusInternalServerError, "Internal Server Error", "Validation failed")
			return
		}
		respondJSONError(w, http.StatusBadRequest, "Bad Request", err.Error())
		return
	}

	result, err := h.pipeline.SanitizeAndRespond(r.Context(), pipeline.InboundMessage{
		LeadID:    req.LeadID,
		ChatbotID: req.ChatbotID,
		ChannelID: req.ChannelID,
		Content:   req.Content,
		Metadata:  req.Metadata,
	})
	if err != nil {
		h.logger.Error("sanitize and respond failed",
			zap.Int64("lead_id", req.LeadID),
			zap.Error(err))
		respondError(w, err)
		return
	}

	respondJSON(w, http.StatusOK, result)
}

// ActivateBotRequest toggles automated responses for a lead's conversation.
type ActivateBotRequest struct {
	LeadID    int64 `json:"lead_id" validate:"required,gt=0"`
	ChatbotID int64 `json:"chatbot_id" validate:"required,gt=0"`
	Active    bool  `json:"active"`
}

// ActivateBot flips automated responses for a lead's conversation, creating
// the conversation if it does not exist yet.
func (h *MessageHandler) ActivateBot(w http.ResponseWriter, r *http.Request) {
	var req ActivateBotRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondJSONError(w, http.StatusBadRequest, "Bad Request", "Invalid JSON body")
		return
	}
	if err := validation.Validate.Struct(&req); err != nil {
		respondJSONError(w, http.StatusBadRequest, "Bad Request", err.Error())
		return
	}

	conv, err := h.pipeline.ActivateBot(r.Context(), req.LeadID, req.ChatbotID, req.Active)
	if err != nil {
		respondError(w, err)
		return
	}

	respondJSON(w, http.StatusOK, conv)
}

// FrontendMessageRequest is an operator message sent from the CRM frontend.
type FrontendMessageRequest struct {
	LeadID   int64  `json:"lead_id" validate:"required,gt=0"`
	SenderID *int64 `json:"sender_id,omitempty"`
	Content  string `json:"content" validate:"required,min=1,max=10000"`
}

// FrontendMessage records an operator message and deactivates the bot on
// the lead's conversation in the same transaction.
func (h *MessageHandler) FrontendMessage(w http.ResponseWriter, r *http.Request) {
	var req FrontendMessageRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondJSONError(w, http.StatusBadRequest, "Bad Request", "Invalid JSON body")
		return
	}
	req.Content = validation.SanitizeText(req.Content)
	if err := validation.Validate.Struct(&req); err != nil {
		respondJSONError(w, http.StatusBadRequest, "Bad Request", err.Error())
		return
	}

	msg, err := h.pipeline.RecordOperatorMessage(r.Context(), req.LeadID, req.SenderID, req.Content)
	if err != nil {
		respondError(w, err)
		return
	}

	respondJSON(w, http.StatusCreated, msg)
}
