package handlers

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/gorilla/mux"

	"github.com/nexocrm/crm-ai-gateway/internal/database"
	"github.com/nexocrm/crm-ai-gateway/internal/models"
	"github.com/nexocrm/crm-ai-gateway/internal/validation"
)

// ChatbotHandler manages standing chatbot configuration and training
// examples.
type ChatbotHandler struct {
	profiles database.ChatbotProfileRepositoryInterface
	qaPairs  database.QAPairRepositoryInterface
}

// NewChatbotHandler creates a chatbot configuration handler.
func NewChatbotHandler(profiles database.ChatbotProfileRepositoryInterface, qaPairs database.QAPairRepositoryInterface) *ChatbotHandler {
	return &ChatbotHandler{profiles: profiles, qaPairs: qaPairs}
}

// RegisterRoutes registers chatbot configuration routes on the given router.
func (h *ChatbotHandler) RegisterRoutes(r *mux.Router) {
	r.HandleFunc("/chatbot-config", h.CreateProfile).Methods("POST")
	r.HandleFunc("/chatbot-config/{chatbot_id}", h.ListProfiles).Methods("GET")
	r.HandleFunc("/qa-pairs", h.CreateQAPair).Methods("POST")
	r.HandleFunc("/qa-pairs/{chatbot_id}", h.ListQAPairs).Methods("GET")
	r.HandleFunc("/qa-pairs/{id}", h.DeactivateQAPair).Methods("DELETE")
}

func chatbotIDFromPath(r *http.Request) (int64, bool) {
	raw := mux.Vars(r)["chatbot_id"]
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id <= 0 {
		return 0, false
	}
	return id, true
}

// CreateProfileRequest is a new chatbot profile.
type CreateProfileRequest struct {
	ChatbotID           int64              `json:"chatbot_id" validate:"required,gt=0"`
	Position            int                `json:"position" validate:"gte=0"`
	WelcomeMessage      string             `json:"welcome_message,omitempty"`
	Personality         string             `json:"personality,omitempty"`
	GeneralContext      string             `json:"general_context,omitempty"`
	CommunicationTone   string             `json:"communication_tone,omitempty"`
	MainPurpose         string             `json:"main_purpose,omitempty"`
	KeyPoints           models.Bag         `json:"key_points,omitempty"`
	SpecialInstructions string             `json:"special_instructions,omitempty"`
	PromptTemplate      string             `json:"prompt_template,omitempty"`
	QAExamples          []models.QAExample `json:"qa_examples,omitempty"`
}

// CreateProfile stores a new chatbot profile.
func (h *ChatbotHandler) CreateProfile(w http.ResponseWriter, r *http.Request) {
	var req CreateProfileRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondJSONError(w, http.StatusBadRequest, "Bad Request", "Invalid JSON body")
		return
	}
	if err := validation.Validate.Struct(&req); err != nil {
		respondJSONError(w, http.StatusBadRequest, "Bad Request", err.Error())
		return
	}

	profile := &models.ChatbotProfile{
		ChatbotID:           req.ChatbotID,
		Position:            req.Position,
		WelcomeMessage:      req.WelcomeMessage,
		Personality:         req.Personality,
		GeneralContext:      req.GeneralContext,
		CommunicationTone:   req.CommunicationTone,
		MainPurpose:         req.MainPurpose,
		KeyPoints:           req.KeyPoints,
		SpecialInstructions: req.SpecialInstructions,
		PromptTemplate:      req.PromptTemplate,
		QAExamples:          req.QAExamples,
	}
	if err := h.profiles.Create(r.Context(), profile); err != nil {
		respondError(w, err)
		return
	}

	respondJSON(w, http.StatusCreated, profile)
}

// ListProfiles returns a chatbot's profiles in assembly order.
func (h *ChatbotHandler) ListProfiles(w http.ResponseWriter, r *http.Request) {
	chatbotID, ok := chatbotIDFromPath(r)
	if !ok {
		respondJSONError(w, http.StatusBadRequest, "Bad Request", "chatbot_id must be a positive integer")
		return
	}

	profiles, err := h.profiles.ListByChatbot(r.Context(), chatbotID)
	if err != nil {
		respondError(w, err)
		return
	}

	respondJSON(w, http.StatusOK, profiles)
}

// CreateQAPairRequest is a new training example.
type CreateQAPairRequest struct {
	ChatbotID   int64  `json:"chatbot_id" validate:"required,gt=0"`
	Question    string `json:"question" validate:"required,min=1,max=10000"`
	IdealAnswer string `json:"ideal_answer" validate:"required,min=1,max=10000"`
	Category    string `json:"category,omitempty"`
	AddedBy     *int64 `json:"added_by,omitempty"`
}

// CreateQAPair stores a new training example.
func (h *ChatbotHandler) CreateQAPair(w http.ResponseWriter, r *http.Request) {
	var req CreateQAPairRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondJSONError(w, http.StatusBadRequest, "Bad Request", "Invalid JSON body")
		return
	}
	req.Question = validation.SanitizeText(req.Question)
	req.IdealAnswer = validation.SanitizeText(req.IdealAnswer)
	if err := validation.Validate.Struct(&req); err != nil {
		respondJSONError(w, http.StatusBadRequest, "Bad Request", err.Error())
		return
	}

	pair := &models.QAPair{
		ChatbotID:   req.ChatbotID,
		Question:    req.Question,
		IdealAnswer: req.IdealAnswer,
		Category:    req.Category,
		AddedBy:     req.AddedBy,
	}
	if err := h.qaPairs.Create(r.Context(), pair); err != nil {
		respondError(w, err)
		return
	}

	respondJSON(w, http.StatusCreated, pair)
}

// ListQAPairs returns a chatbot's active training examples.
func (h *ChatbotHandler) ListQAPairs(w http.ResponseWriter, r *http.Request) {
	chatbotID, ok := chatbotIDFromPath(r)
	if !ok {
		respondJSONError(w, http.StatusBadRequest, "Bad Request", "chatbot_id must be a positive integer")
		return
	}

	pairs, err := h.qaPairs.ListActiveByChatbot(r.Context(), chatbotID)
	if err != nil {
		respondError(w, err)
		return
	}

	respondJSON(w, http.StatusOK, pairs)
}

// DeactivateQAPair soft-deletes a training example.
func (h *ChatbotHandler) DeactivateQAPair(w http.ResponseWriter, r *http.Request) {
	raw := mux.Vars(r)["id"]
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id <= 0 {
		respondJSONError(w, http.StatusBadRequest, "Bad Request", "id must be a positive integer")
		return
	}

	if err := h.qaPairs.Deactivate(r.Context(), id); err != nil {
		respondError(w, err)
		return
	}

	respondJSON(w, http.StatusOK, map[string]any{"id": id, "is_active": false})
}
