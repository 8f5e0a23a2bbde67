package handlers

import (
	"encoding/json"
	"io"
	"net/http"
	"strconv"

	"github.com/gorilla/mux"
	"go.uber.org/zap"

	"github.com/nexocrm/crm-ai-gateway/internal/database"
	"github.com/nexocrm/crm-ai-gateway/internal/queue"
	"github.com/nexocrm/crm-ai-gateway/internal/services/pipeline"
	"github.com/nexocrm/crm-ai-gateway/internal/validation"
)

// AnalyticsHandler exposes lead evaluation and scoring history.
type AnalyticsHandler struct {
	pipeline    *pipeline.Pipeline
	evaluations database.EvaluationRepositoryInterface
	jobQueue    queue.JobQueue
	logger      *zap.Logger
}

// NewAnalyticsHandler creates an analytics handler. jobQueue may be nil;
// async re-evaluation is then disabled.
func NewAnalyticsHandler(p *pipeline.Pipeline, evaluations database.EvaluationRepositoryInterface, jobQueue queue.JobQueue, logger *zap.Logger) *AnalyticsHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &AnalyticsHandler{pipeline: p, evaluations: evaluations, jobQueue: jobQueue, logger: logger}
}

// RegisterRoutes registers analytics routes on the given router.
func (h *AnalyticsHandler) RegisterRoutes(r *mux.Router) {
	r.HandleFunc("/analyze-lead/{lead_id}", h.AnalyzeLead).Methods("POST")
	r.HandleFunc("/analyze-lead/{lead_id}/async", h.AnalyzeLeadAsync).Methods("POST")
	r.HandleFunc("/lead-metrics/{lead_id}", h.LeadMetrics).Methods("GET")
	r.HandleFunc("/evaluations/{lead_id}", h.ListEvaluations).Methods("GET")
}

func leadIDFromPath(r *http.Request) (int64, bool) {
	raw := mux.Vars(r)["lead_id"]
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id <= 0 {
		return 0, false
	}
	return id, true
}

// AnalyzeLeadRequest optionally pins the evaluation to specific records and
// overrides the scoring prompt. An empty body evaluates the lead's latest
// conversation with the default prompt.
type AnalyzeLeadRequest struct {
	ConversationID int64  `json:"conversation_id,omitempty" validate:"gte=0"`
	MessageID      int64  `json:"message_id,omitempty" validate:"gte=0"`
	ModelConfigID  int64  `json:"model_config_id,omitempty" validate:"gte=0"`
	PromptTemplate string `json:"prompt_template,omitempty" validate:"max=10000"`
}

// AnalyzeLead runs a synchronous evaluation of the lead's sanitized
// conversation and returns the recorded result.
func (h *AnalyticsHandler) AnalyzeLead(w http.ResponseWriter, r *http.Request) {
	leadID, ok := leadIDFromPath(r)
	if !ok {
		respondJSONError(w, http.StatusBadRequest, "Bad Request", "lead_id must be a positive integer")
		return
	}

	var req AnalyzeLeadRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil && err != io.EOF {
		respondJSONError(w, http.StatusBadRequest, "Bad Request", "Invalid JSON body")
		return
	}
	if err := validation.Validate.Struct(&req); err != nil {
		respondJSONError(w, http.StatusBadRequest, "Bad Request", err.Error())
		return
	}

	eval, err := h.pipeline.EvaluateWith(r.Context(), pipeline.EvaluationRequest{
		LeadID:         leadID,
		ConversationID: req.ConversationID,
		MessageID:      req.MessageID,
		ModelConfigID:  req.ModelConfigID,
		PromptTemplate: req.PromptTemplate,
	})
	if err != nil {
		h.logger.Error("lead analysis failed", zap.Int64("lead_id", leadID), zap.Error(err))
		respondError(w, err)
		return
	}

	respondJSON(w, http.StatusOK, eval)
}

// AnalyzeLeadAsync enqueues an evaluation job instead of running it inline.
func (h *AnalyticsHandler) AnalyzeLeadAsync(w http.ResponseWriter, r *http.Request) {
	leadID, ok := leadIDFromPath(r)
	if !ok {
		respondJSONError(w, http.StatusBadRequest, "Bad Request", "lead_id must be a positive integer")
		return
	}

	if h.jobQueue == nil {
		respondJSONError(w, http.StatusServiceUnavailable, "Service Unavailable", "Job queue is not configured")
		return
	}

	job := queue.NewJob(queue.JobTypeLeadEvaluation, leadID)
	if err := h.jobQueue.Enqueue(r.Context(), job); err != nil {
		h.logger.Error("failed to enqueue evaluation job", zap.Int64("lead_id", leadID), zap.Error(err))
		respondJSONError(w, http.StatusInternalServerError, "Internal Server Error", "Failed to enqueue job")
		return
	}

	respondJSON(w, http.StatusAccepted, map[string]any{
		"job_id":  job.ID,
		"lead_id": leadID,
	})
}

// LeadMetrics returns aggregate scores from the lead's evaluation history.
func (h *AnalyticsHandler) LeadMetrics(w http.ResponseWriter, r *http.Request) {
	leadID, ok := leadIDFromPath(r)
	if !ok {
		respondJSONError(w, http.StatusBadRequest, "Bad Request", "lead_id must be a positive integer")
		return
	}

	metrics, err := h.pipeline.LeadMetrics(r.Context(), leadID)
	if err != nil {
		respondError(w, err)
		return
	}

	respondJSON(w, http.StatusOK, metrics)
}

// ListEvaluations returns the lead's evaluation history, newest first.
func (h *AnalyticsHandler) ListEvaluations(w http.ResponseWriter, r *http.Request) {
	leadID, ok := leadIDFromPath(r)
	if !ok {
		respondJSONError(w, http.StatusBadRequest, "Bad Request", "lead_id must be a positive integer")
		return
	}

	evals, err := h.evaluations.ListByLead(r.Context(), leadID)
	if err != nil {
		respondError(w, err)
		return
	}

	respondJSON(w, http.StatusOK, evals)
}
