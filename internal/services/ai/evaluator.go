package ai

import (
	"context"
	"encoding/json"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/nexocrm/crm-ai-gateway/internal/models"
)

const (
	// EvaluationTemperature and EvaluationMaxTokens are fixed for scoring
	// calls so results stay comparable across leads.
	EvaluationTemperature = 0.7
	EvaluationMaxTokens   = 2000
)

const evaluationSystemPrompt = `You analyze anonymized sales conversations and score the lead.
The conversation contains opaque tokens and hashed digests instead of personal data; treat them as identifiers and never try to reconstruct them.
Respond with a single JSON object and nothing else, using exactly these keys:
{
  "score_potencial": <number between 0 and 1>,
  "score_satisfaccion": <number between 0 and 1>,
  "interes_productos": {"<product>": <number between 0 and 1>},
  "comment": "<one short sentence>",
  "palabras_clave": ["<keyword>", ...]
}`

// evaluationResult mirrors the JSON object the model is asked to produce.
type evaluationResult struct {
	PotentialScore    float64            `json:"score_potencial"`
	SatisfactionScore float64            `json:"score_satisfaccion"`
	ProductInterest   map[string]float64 `json:"interes_productos"`
	Comment           string             `json:"comment"`
	Keywords          []string           `json:"palabras_clave"`
}

// Evaluator runs lead-scoring model calls over sanitized conversation text.
// A parse failure never fails the evaluation: the result degrades to zero
// scores and the row is still recorded, so the history stays continuous.
type Evaluator struct {
	provider ModelProvider
	logger   *zap.Logger
	now      func() time.Time
}

// NewEvaluator creates an evaluator backed by the given model provider.
func NewEvaluator(provider ModelProvider, logger *zap.Logger) *Evaluator {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Evaluator{provider: provider, logger: logger, now: time.Now}
}

// Evaluate scores one sanitized conversation transcript. The returned
// evaluation carries zero scores when the model call fails or its output is
// unparseable; the error reports the upstream failure so callers can log it,
// but the evaluation is always usable.
func (e *Evaluator) Evaluate(ctx context.Context, leadID int64, transcript string) (*models.Evaluation, error) {
	return e.EvaluateWithPrompt(ctx, leadID, transcript, "")
}

// EvaluateWithPrompt is Evaluate with a custom scoring prompt. An empty
// prompt uses the default; custom prompts must demand the same JSON contract
// or the result degrades to zero scores.
func (e *Evaluator) EvaluateWithPrompt(ctx context.Context, leadID int64, transcript, prompt string) (*models.Evaluation, error) {
	if prompt == "" {
		prompt = evaluationSystemPrompt
	}

	eval := &models.Evaluation{
		LeadID:          leadID,
		EvaluatedAt:     e.now().UTC(),
		ProductInterest: map[string]float64{},
		Keywords:        []string{},
		PromptUsed:      prompt,
	}

	completion, err := e.provider.Complete(ctx, []Message{
		{Role: RoleSystem, Content: prompt},
		{Role: RoleUser, Content: transcript},
	}, EvaluationTemperature, EvaluationMaxTokens)
	if err != nil {
		e.logger.Warn("lead evaluation model call failed, recording zero scores",
			zap.Int64("lead_id", leadID),
			zap.Error(err))
		return eval, err
	}

	result, ok := parseEvaluation(completion.Content)
	if !ok {
		e.logger.Warn("lead evaluation output unparseable, recording zero scores",
			zap.Int64("lead_id", leadID))
		return eval, nil
	}

	eval.PotentialScore = clampScore(result.PotentialScore)
	eval.SatisfactionScore = clampScore(result.SatisfactionScore)
	eval.Comment = result.Comment
	if result.ProductInterest != nil {
		for product, score := range result.ProductInterest {
			eval.ProductInterest[product] = clampScore(score)
		}
	}
	if result.Keywords != nil {
		eval.Keywords = result.Keywords
	}

	return eval, nil
}

// parseEvaluation extracts the first JSON object from the model output.
// Models sometimes wrap the object in prose or code fences; everything
// outside the outermost braces is ignored.
func parseEvaluation(content string) (*evaluationResult, bool) {
	start := strings.Index(content, "{")
	end := strings.LastIndex(content, "}")
	if start < 0 || end <= start {
		return nil, false
	}

	var result evaluationResult
	if err := json.Unmarshal([]byte(content[start:end+1]), &result); err != nil {
		return nil, false
	}
	return &result, true
}

func clampScore(score float64) float64 {
	if score < 0 {
		return 0
	}
	if score > 1 {
		return 1
	}
	return score
}
