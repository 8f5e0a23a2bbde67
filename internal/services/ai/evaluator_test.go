package ai

import (
	"context"
	"errors"
	"testing"
)

type fakeProvider struct {
	content string
	err     error

	gotMessages    []Message
	gotTemperature float64
	gotMaxTokens   int64
}

func (f *fakeProvider) Complete(_ context.Context, messages []Message, temperature float64, maxTokens int64) (*Completion, error) {
	f.gotMessages = messages
	f.gotTemperature = temperature
	f.gotMaxTokens = maxTokens
	if f.err != nil {
		return nil, f.err
	}
	return &Completion{Content: f.content}, nil
}

func TestEvaluateParsesModelOutput(t *testing.T) {
	t.Parallel()
	provider := &fakeProvider{content: `{
		"score_potencial": 0.8,
		"score_satisfaccion": 0.6,
		"interes_productos": {"crm": 0.9},
		"comment": "strong interest",
		"palabras_clave": ["pricing", "demo"]
	}`}
	e := NewEvaluator(provider, nil)

	eval, err := e.Evaluate(context.Background(), 42, "transcript")
	if err != nil {
		t.Fatalf("Evaluate() error = %v", err)
	}
	if eval.LeadID != 42 {
		t.Errorf("LeadID = %d, want 42", eval.LeadID)
	}
	if eval.PotentialScore != 0.8 || eval.SatisfactionScore != 0.6 {
		t.Errorf("scores = %g/%g, want 0.8/0.6", eval.PotentialScore, eval.SatisfactionScore)
	}
	if eval.ProductInterest["crm"] != 0.9 {
		t.Errorf("ProductInterest[crm] = %g, want 0.9", eval.ProductInterest["crm"])
	}
	if len(eval.Keywords) != 2 {
		t.Errorf("keywords = %v, want two entries", eval.Keywords)
	}
	if eval.Comment != "strong interest" {
		t.Errorf("Comment = %q", eval.Comment)
	}
	if provider.gotTemperature != EvaluationTemperature {
		t.Errorf("temperature = %g, want %g", provider.gotTemperature, EvaluationTemperature)
	}
	if provider.gotMaxTokens != EvaluationMaxTokens {
		t.Errorf("maxTokens = %d, want %d", provider.gotMaxTokens, EvaluationMaxTokens)
	}
}

func TestEvaluateExtractsJSONFromProse(t *testing.T) {
	t.Parallel()
	provider := &fakeProvider{content: "Here is the result:\n```json\n{\"score_potencial\": 0.5, \"score_satisfaccion\": 0.4, \"interes_productos\": {}, \"comment\": \"ok\", \"palabras_clave\": []}\n```\nHope that helps."}
	e := NewEvaluator(provider, nil)

	eval, err := e.Evaluate(context.Background(), 1, "transcript")
	if err != nil {
		t.Fatalf("Evaluate() error = %v", err)
	}
	if eval.PotentialScore != 0.5 {
		t.Errorf("PotentialScore = %g, want 0.5", eval.PotentialScore)
	}
}

func TestEvaluateUnparseableOutputDegradesToZero(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name    string
		content string
	}{
		{"prose only", "I cannot produce JSON for this."},
		{"broken json", `{"score_potencial": }`},
		{"empty", ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			e := NewEvaluator(&fakeProvider{content: tt.content}, nil)

			eval, err := e.Evaluate(context.Background(), 3, "transcript")
			if err != nil {
				t.Fatalf("Evaluate() error = %v, want nil on parse failure", err)
			}
			if eval.PotentialScore != 0 || eval.SatisfactionScore != 0 {
				t.Errorf("scores = %g/%g, want zeros", eval.PotentialScore, eval.SatisfactionScore)
			}
			if eval.ProductInterest == nil || eval.Keywords == nil {
				t.Error("degraded result must keep non-nil collections")
			}
		})
	}
}

func TestEvaluateProviderFailureReturnsZeroResultAndError(t *testing.T) {
	t.Parallel()
	provider := &fakeProvider{err: errors.New("connection refused")}
	e := NewEvaluator(provider, nil)

	eval, err := e.Evaluate(context.Background(), 7, "transcript")
	if err == nil {
		t.Fatal("Evaluate() error = nil, want upstream failure")
	}
	if eval == nil {
		t.Fatal("Evaluate() must return a usable zero-valued evaluation on failure")
	}
	if eval.PotentialScore != 0 || eval.SatisfactionScore != 0 {
		t.Errorf("scores = %g/%g, want zeros", eval.PotentialScore, eval.SatisfactionScore)
	}
}

func TestEvaluateClampsScores(t *testing.T) {
	t.Parallel()
	provider := &fakeProvider{content: `{"score_potencial": 1.7, "score_satisfaccion": -0.3, "interes_productos": {"crm": 9.9}, "comment": "", "palabras_clave": []}`}
	e := NewEvaluator(provider, nil)

	eval, err := e.Evaluate(context.Background(), 2, "transcript")
	if err != nil {
		t.Fatalf("Evaluate() error = %v", err)
	}
	if eval.PotentialScore != 1 {
		t.Errorf("PotentialScore = %g, want clamped to 1", eval.PotentialScore)
	}
	if eval.SatisfactionScore != 0 {
		t.Errorf("SatisfactionScore = %g, want clamped to 0", eval.SatisfactionScore)
	}
	if eval.ProductInterest["crm"] != 1 {
		t.Errorf("ProductInterest[crm] = %g, want clamped to 1", eval.ProductInterest["crm"])
	}
}

func TestEvaluateSendsSystemAndTranscript(t *testing.T) {
	t.Parallel()
	provider := &fakeProvider{content: `{"score_potencial": 0, "score_satisfaccion": 0, "interes_productos": {}, "comment": "", "palabras_clave": []}`}
	e := NewEvaluator(provider, nil)

	if _, err := e.Evaluate(context.Background(), 1, "the sanitized transcript"); err != nil {
		t.Fatalf("Evaluate() error = %v", err)
	}
	if len(provider.gotMessages) != 2 {
		t.Fatalf("messages = %d, want system + user", len(provider.gotMessages))
	}
	if provider.gotMessages[0].Role != RoleSystem {
		t.Errorf("first message role = %q, want system", provider.gotMessages[0].Role)
	}
	if provider.gotMessages[1].Content != "the sanitized transcript" {
		t.Errorf("user message = %q", provider.gotMessages[1].Content)
	}
}
