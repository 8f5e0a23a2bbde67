// Package pipeline orchestrates the sanitize-then-respond flow: every
// inbound lead message is redacted and tokenized before anything reaches the
// model provider, and the reply is recorded back into the token's context.
package pipeline

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/nexocrm/crm-ai-gateway/internal/database"
	"github.com/nexocrm/crm-ai-gateway/internal/errs"
	"github.com/nexocrm/crm-ai-gateway/internal/models"
	"github.com/nexocrm/crm-ai-gateway/internal/redact"
	"github.com/nexocrm/crm-ai-gateway/internal/services/ai"
	"github.com/nexocrm/crm-ai-gateway/internal/services/pii"
)

const (
	// ReplyTemperature and ReplyMaxTokens parameterize conversational
	// replies, distinct from evaluation calls.
	ReplyTemperature = 0.7
	ReplyMaxTokens   = 2000

	// DegradedReply is returned when the model provider is unavailable. The
	// sanitized record is written either way; losing the model must not lose
	// the message.
	DegradedReply = "Thanks for your message. An advisor will get back to you shortly."

	// defaultRelevance is the relevance score stamped on fresh context
	// entries. Every turn starts at full relevance; ranking decays entries
	// later, by ordering rather than mutation.
	defaultRelevance = 1.0
)

// Pipeline wires the redactor, token issuer, context store, assembler and
// model provider into the end-to-end message flow.
type Pipeline struct {
	redactor      *redact.Redactor
	issuer        *pii.Issuer
	assembler     *ai.Assembler
	evaluator     *ai.Evaluator
	provider      ai.ModelProvider
	sanitized     database.SanitizedMessageRepositoryInterface
	entries       database.ContextEntryRepositoryInterface
	conversations database.ConversationRepositoryInterface
	messages      database.MessageRepositoryInterface
	evaluations   database.EvaluationRepositoryInterface
	logger        *zap.Logger
}

// New creates the pipeline. All collaborators are required except the
// logger, which defaults to a no-op.
func New(
	redactor *redact.Redactor,
	issuer *pii.Issuer,
	assembler *ai.Assembler,
	evaluator *ai.Evaluator,
	provider ai.ModelProvider,
	sanitized database.SanitizedMessageRepositoryInterface,
	entries database.ContextEntryRepositoryInterface,
	conversations database.ConversationRepositoryInterface,
	messages database.MessageRepositoryInterface,
	evaluations database.EvaluationRepositoryInterface,
	logger *zap.Logger,
) *Pipeline {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Pipeline{
		redactor:      redactor,
		issuer:        issuer,
		assembler:     assembler,
		evaluator:     evaluator,
		provider:      provider,
		sanitized:     sanitized,
		entries:       entries,
		conversations: conversations,
		messages:      messages,
		evaluations:   evaluations,
		logger:        logger,
	}
}

// InboundMessage is one identifiable message arriving from the CRM side.
type InboundMessage struct {
	LeadID    int64
	ChatbotID int64
	ChannelID *int64
	Content   string
	Metadata  models.Bag
}

// Result is the outcome of one sanitize-and-respond pass.
type Result struct {
	Token     string                   `json:"token"`
	Reply     string                   `json:"reply"`
	BotActive bool                     `json:"bot_active"`
	Degraded  bool                     `json:"degraded"`
	Sanitized *models.SanitizedMessage `json:"sanitized_message"`
}

// SanitizeAndRespond is the core flow: issue or reuse the lead's token,
// redact the message, persist the sanitized record and context entry, then,
// if the conversation's bot is active, assemble the model input and return
// the model's reply. Sanitization and persistence happen before the model
// call; a provider failure degrades the reply, never the record.
func (p *Pipeline) SanitizeAndRespond(ctx context.Context, in InboundMessage) (*Result, error) {
	if strings.TrimSpace(in.Content) == "" {
		return nil, errs.Validation("content", "must not be empty")
	}

	token, err := p.issuer.IssueOrGet(ctx, in.LeadID)
	if err != nil {
		return nil, fmt.Errorf("issuing token for lead %d: %w", in.LeadID, err)
	}

	conv, err := p.conversations.GetOrCreate(ctx, in.LeadID, in.ChatbotID)
	if err != nil {
		return nil, fmt.Errorf("resolving conversation for lead %d: %w", in.LeadID, err)
	}

	sanitized := &models.SanitizedMessage{
		Token:    token.Token,
		Content:  p.redactor.RedactContent(in.Content),
		Metadata: p.redactor.Redact(in.Metadata),
	}
	if err := p.sanitized.Create(ctx, sanitized); err != nil {
		return nil, fmt.Errorf("persisting sanitized message: %w", err)
	}

	// The identifiable message row stays on the CRM side; the sanitized
	// copy back-references it once it exists. Neither failure loses the
	// sanitized record.
	original := &models.Message{
		ConversationID: conv.ID,
		ChannelID:      in.ChannelID,
		Content:        in.Content,
		Origin:         models.MessageOriginLead,
		ContentType:    "text",
	}
	if err := p.messages.Create(ctx, original); err != nil {
		p.logger.Warn("persisting identifiable message failed",
			zap.Int64("lead_id", in.LeadID),
			zap.Error(err))
	} else if err := p.sanitized.SetMessageID(ctx, sanitized.ID, original.ID); err != nil {
		p.logger.Warn("patching sanitized back-reference failed",
			zap.Int64("message_id", original.ID),
			zap.Error(err))
	}

	if err := p.entries.Append(ctx, &models.ContextEntry{
		Token:     token.Token,
		Type:      models.EntryTypeUserMessage,
		Content:   sanitized.Content,
		Relevance: defaultRelevance,
	}); err != nil {
		return nil, fmt.Errorf("appending context entry: %w", err)
	}

	result := &Result{
		Token:     token.Token,
		BotActive: conv.BotActive,
		Sanitized: sanitized,
	}

	if !conv.BotActive {
		// Operator has the conversation; record only.
		return result, nil
	}

	messages, err := p.assembler.BuildModelInput(ctx, in.ChatbotID, token.Token, sanitized.Content)
	if err != nil {
		return nil, fmt.Errorf("assembling model input: %w", err)
	}

	completion, err := p.provider.Complete(ctx, messages, ReplyTemperature, ReplyMaxTokens)
	if err != nil {
		p.logger.Warn("model provider unavailable, returning degraded reply",
			zap.String("token", token.Token),
			zap.Error(err))
		result.Reply = DegradedReply
		result.Degraded = true
		return result, nil
	}

	result.Reply = completion.Content

	if err := p.entries.Append(ctx, &models.ContextEntry{
		Token:     token.Token,
		Type:      models.EntryTypeBotReply,
		Content:   completion.Content,
		Relevance: defaultRelevance,
	}); err != nil {
		// The reply already happened; a failed context write is a gap in
		// memory, not a failed exchange.
		p.logger.Error("recording bot reply in context failed",
			zap.String("token", token.Token),
			zap.Error(err))
	}

	return result, nil
}

// ActivateBot flips automated responses for the lead's conversation on or
// off, creating the conversation row if it does not exist yet. Setting the
// current state again is a no-op.
func (p *Pipeline) ActivateBot(ctx context.Context, leadID, chatbotID int64, active bool) (*models.Conversation, error) {
	conv, err := p.conversations.GetOrCreate(ctx, leadID, chatbotID)
	if err != nil {
		return nil, fmt.Errorf("resolving conversation for lead %d: %w", leadID, err)
	}
	if conv.BotActive == active {
		return conv, nil
	}
	return p.conversations.SetBotActive(ctx, conv.ID, active)
}

// RecordOperatorMessage persists an operator's message and deactivates the
// bot on the lead's conversation atomically. Operator text never passes
// through the model provider, so no sanitized copy is made.
func (p *Pipeline) RecordOperatorMessage(ctx context.Context, leadID int64, senderID *int64, content string) (*models.Message, error) {
	if strings.TrimSpace(content) == "" {
		return nil, errs.Validation("content", "must not be empty")
	}
	conv, err := p.conversations.GetLatestByLead(ctx, leadID)
	if err != nil {
		return nil, err
	}
	msg := &models.Message{
		ConversationID: conv.ID,
		Content:        content,
		Origin:         models.MessageOriginOperator,
		SenderID:       senderID,
		ContentType:    "text",
	}
	if err := p.messages.CreateOperatorMessage(ctx, msg); err != nil {
		return nil, err
	}
	return msg, nil
}

// EvaluationRequest identifies what an evaluation should be keyed to.
// LeadID is required; zero-valued ids are resolved or left unset, and an
// empty PromptTemplate uses the default scoring prompt.
type EvaluationRequest struct {
	LeadID         int64
	ConversationID int64
	MessageID      int64
	ModelConfigID  int64
	PromptTemplate string
}

// Evaluate scores the lead's sanitized conversation and records the result.
// The row is written even when the model call fails or its output is
// unparseable; the evaluation history stays continuous under degradation.
func (p *Pipeline) Evaluate(ctx context.Context, leadID int64) (*models.Evaluation, error) {
	return p.EvaluateWith(ctx, EvaluationRequest{LeadID: leadID})
}

// EvaluateWith is Evaluate with explicit conversation/message keys, model
// configuration id and prompt template.
func (p *Pipeline) EvaluateWith(ctx context.Context, req EvaluationRequest) (*models.Evaluation, error) {
	token, err := p.issuer.IssueOrGet(ctx, req.LeadID)
	if err != nil {
		return nil, fmt.Errorf("issuing token for lead %d: %w", req.LeadID, err)
	}

	transcript, err := p.transcript(ctx, token.Token)
	if err != nil {
		return nil, err
	}

	eval, modelErr := p.evaluator.EvaluateWithPrompt(ctx, req.LeadID, transcript, req.PromptTemplate)
	if modelErr != nil {
		p.logger.Warn("lead evaluation degraded",
			zap.Int64("lead_id", req.LeadID),
			zap.Error(modelErr))
	}

	eval.MessageID = req.MessageID
	eval.ModelConfigID = req.ModelConfigID

	if req.ConversationID != 0 {
		eval.ConversationID = req.ConversationID
	} else if conv, err := p.conversations.GetLatestByLead(ctx, req.LeadID); err == nil {
		eval.ConversationID = conv.ID
	} else if !errs.IsNotFound(err) {
		return nil, err
	}

	if err := p.evaluations.Create(ctx, eval); err != nil {
		return nil, fmt.Errorf("persisting evaluation for lead %d: %w", req.LeadID, err)
	}

	return eval, nil
}

// transcript joins the lead's sanitized history, oldest first, into the
// plain-text form the evaluator scores.
func (p *Pipeline) transcript(ctx context.Context, token string) (string, error) {
	msgs, err := p.sanitized.ListByToken(ctx, token)
	if err != nil {
		return "", fmt.Errorf("loading sanitized history: %w", err)
	}

	var b strings.Builder
	for _, m := range msgs {
		if b.Len() > 0 {
			b.WriteString("\n")
		}
		b.WriteString(m.Content)
	}
	return b.String(), nil
}

// Metrics aggregates the stored evaluation history of a lead.
type Metrics struct {
	LeadID          int64              `json:"lead_id"`
	Evaluations     int                `json:"evaluations"`
	AvgPotential    float64            `json:"avg_score_potencial"`
	AvgSatisfaction float64            `json:"avg_score_satisfaccion"`
	LatestPotential float64            `json:"latest_score_potencial"`
	ProductInterest map[string]float64 `json:"interes_productos"`
	Keywords        []string           `json:"palabras_clave"`
	LastEvaluatedAt *time.Time         `json:"last_evaluated_at,omitempty"`
}

// LeadMetrics computes aggregate scores from the lead's evaluation history.
// A lead with no evaluations gets a zero-valued metrics object, not an
// error.
func (p *Pipeline) LeadMetrics(ctx context.Context, leadID int64) (*Metrics, error) {
	evals, err := p.evaluations.ListByLead(ctx, leadID)
	if err != nil {
		return nil, err
	}

	metrics := &Metrics{
		LeadID:          leadID,
		Evaluations:     len(evals),
		ProductInterest: map[string]float64{},
		Keywords:        []string{},
	}
	if len(evals) == 0 {
		return metrics, nil
	}

	seen := map[string]struct{}{}
	for _, e := range evals {
		metrics.AvgPotential += e.PotentialScore
		metrics.AvgSatisfaction += e.SatisfactionScore
		for product, score := range e.ProductInterest {
			if score > metrics.ProductInterest[product] {
				metrics.ProductInterest[product] = score
			}
		}
		for _, kw := range e.Keywords {
			if _, ok := seen[kw]; !ok {
				seen[kw] = struct{}{}
				metrics.Keywords = append(metrics.Keywords, kw)
			}
		}
	}
	metrics.AvgPotential /= float64(len(evals))
	metrics.AvgSatisfaction /= float64(len(evals))

	// ListByLead returns newest first.
	latest := evals[0]
	metrics.LatestPotential = latest.PotentialScore
	at := latest.EvaluatedAt
	metrics.LastEvaluatedAt = &at

	return metrics, nil
}

// IssueToken exposes token issuance for the token-generation endpoint.
// Rotate retires any active token first; otherwise issuance is idempotent.
func (p *Pipeline) IssueToken(ctx context.Context, leadID int64, rotate bool) (*models.PIIToken, error) {
	if rotate {
		return p.issuer.Rotate(ctx, leadID)
	}
	return p.issuer.IssueOrGet(ctx, leadID)
}
