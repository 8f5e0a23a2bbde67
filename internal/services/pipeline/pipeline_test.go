package pipeline

import (
	"context"
	"errors"
	"math"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/nexocrm/crm-ai-gateway/internal/errs"
	"github.com/nexocrm/crm-ai-gateway/internal/models"
	"github.com/nexocrm/crm-ai-gateway/internal/redact"
	"github.com/nexocrm/crm-ai-gateway/internal/services/ai"
	"github.com/nexocrm/crm-ai-gateway/internal/services/pii"
)

type fakeTokenRepo struct {
	tokens []*models.PIIToken
}

func (f *fakeTokenRepo) Create(_ context.Context, t *models.PIIToken) error {
	t.ID = int64(len(f.tokens) + 1)
	f.tokens = append(f.tokens, t)
	return nil
}

func (f *fakeTokenRepo) GetActiveByLead(_ context.Context, leadID int64) (*models.PIIToken, error) {
	for i := len(f.tokens) - 1; i >= 0; i-- {
		if f.tokens[i].LeadID == leadID && f.tokens[i].IsActive {
			return f.tokens[i], nil
		}
	}
	return nil, errs.NotFound("token for lead", leadID)
}

func (f *fakeTokenRepo) Retire(_ context.Context, leadID int64) error {
	for _, t := range f.tokens {
		if t.LeadID == leadID {
			t.IsActive = false
		}
	}
	return nil
}

type fakeSanitizedRepo struct {
	messages []*models.SanitizedMessage
}

func (f *fakeSanitizedRepo) Create(_ context.Context, m *models.SanitizedMessage) error {
	m.ID = int64(len(f.messages) + 1)
	f.messages = append(f.messages, m)
	return nil
}

func (f *fakeSanitizedRepo) ListByToken(_ context.Context, token string) ([]*models.SanitizedMessage, error) {
	var out []*models.SanitizedMessage
	for _, m := range f.messages {
		if m.Token == token {
			out = append(out, m)
		}
	}
	return out, nil
}

func (f *fakeSanitizedRepo) GetByMessageID(_ context.Context, messageID int64) (*models.SanitizedMessage, error) {
	for _, m := range f.messages {
		if m.MessageID != nil && *m.MessageID == messageID {
			return m, nil
		}
	}
	return nil, errs.NotFound("sanitized message", messageID)
}

func (f *fakeSanitizedRepo) SetMessageID(_ context.Context, id, messageID int64) error {
	for _, m := range f.messages {
		if m.ID == id && m.MessageID == nil {
			m.MessageID = &messageID
		}
	}
	return nil
}

type fakeEntryRepo struct {
	entries []*models.ContextEntry
}

func (f *fakeEntryRepo) Append(_ context.Context, e *models.ContextEntry) error {
	e.ID = int64(len(f.entries) + 1)
	f.entries = append(f.entries, e)
	return nil
}

func (f *fakeEntryRepo) TopRelevant(ctx context.Context, token string, limit int) ([]*models.ContextEntry, error) {
	return f.Recent(ctx, token, limit)
}

func (f *fakeEntryRepo) Recent(_ context.Context, token string, limit int) ([]*models.ContextEntry, error) {
	var out []*models.ContextEntry
	for i := len(f.entries) - 1; i >= 0 && len(out) < limit; i-- {
		if f.entries[i].Token == token {
			out = append(out, f.entries[i])
		}
	}
	return out, nil
}

type fakeConversationRepo struct {
	conversations []*models.Conversation
	botActive     bool
}

func (f *fakeConversationRepo) GetOrCreate(_ context.Context, leadID, chatbotID int64) (*models.Conversation, error) {
	for _, c := range f.conversations {
		if c.LeadID == leadID && c.ChatbotID == chatbotID {
			return c, nil
		}
	}
	c := &models.Conversation{
		ID:        int64(len(f.conversations) + 1),
		LeadID:    leadID,
		ChatbotID: chatbotID,
		BotActive: f.botActive,
	}
	f.conversations = append(f.conversations, c)
	return c, nil
}

func (f *fakeConversationRepo) GetLatestByLead(_ context.Context, leadID int64) (*models.Conversation, error) {
	for i := len(f.conversations) - 1; i >= 0; i-- {
		if f.conversations[i].LeadID == leadID {
			return f.conversations[i], nil
		}
	}
	return nil, errs.NotFound("conversation for lead", leadID)
}

func (f *fakeConversationRepo) SetBotActive(_ context.Context, id int64, active bool) (*models.Conversation, error) {
	for _, c := range f.conversations {
		if c.ID == id {
			c.BotActive = active
			return c, nil
		}
	}
	return nil, errs.NotFound("conversation", id)
}

type fakeMessageRepo struct {
	messages        []*models.Message
	operatorWrites  int
	deactivatedConv []int64
}

func (f *fakeMessageRepo) Create(_ context.Context, m *models.Message) error {
	m.ID = int64(len(f.messages) + 1)
	f.messages = append(f.messages, m)
	return nil
}

func (f *fakeMessageRepo) CreateOperatorMessage(_ context.Context, m *models.Message) error {
	f.operatorWrites++
	f.deactivatedConv = append(f.deactivatedConv, m.ConversationID)
	return f.Create(context.Background(), m)
}

type fakeEvaluationRepo struct {
	evaluations []*models.Evaluation
	createErr   error
}

func (f *fakeEvaluationRepo) Create(_ context.Context, e *models.Evaluation) error {
	if f.createErr != nil {
		return f.createErr
	}
	e.ID = int64(len(f.evaluations) + 1)
	f.evaluations = append(f.evaluations, e)
	return nil
}

func (f *fakeEvaluationRepo) ListByLead(_ context.Context, leadID int64) ([]*models.Evaluation, error) {
	var out []*models.Evaluation
	for i := len(f.evaluations) - 1; i >= 0; i-- {
		if f.evaluations[i].LeadID == leadID {
			out = append(out, f.evaluations[i])
		}
	}
	return out, nil
}

type fakeProfileRepo struct{}

func (f *fakeProfileRepo) Create(_ context.Context, _ *models.ChatbotProfile) error { return nil }
func (f *fakeProfileRepo) ListByChatbot(_ context.Context, _ int64) ([]*models.ChatbotProfile, error) {
	return nil, nil
}

type fakeQAPairRepo struct{}

func (f *fakeQAPairRepo) Create(_ context.Context, _ *models.QAPair) error { return nil }
func (f *fakeQAPairRepo) ListActiveByChatbot(_ context.Context, _ int64) ([]*models.QAPair, error) {
	return nil, nil
}
func (f *fakeQAPairRepo) Deactivate(_ context.Context, _ int64) error { return nil }

type fakeProvider struct {
	content string
	err     error
	calls   int
	gotMsgs []ai.Message
}

func (f *fakeProvider) Complete(_ context.Context, messages []ai.Message, _ float64, _ int64) (*ai.Completion, error) {
	f.calls++
	f.gotMsgs = messages
	if f.err != nil {
		return nil, f.err
	}
	return &ai.Completion{Content: f.content}, nil
}

type fixture struct {
	pipeline      *Pipeline
	tokens        *fakeTokenRepo
	sanitized     *fakeSanitizedRepo
	entries       *fakeEntryRepo
	conversations *fakeConversationRepo
	messages      *fakeMessageRepo
	evaluations   *fakeEvaluationRepo
	provider      *fakeProvider
}

func newFixture(provider *fakeProvider, botActive bool) *fixture {
	f := &fixture{
		tokens:        &fakeTokenRepo{},
		sanitized:     &fakeSanitizedRepo{},
		entries:       &fakeEntryRepo{},
		conversations: &fakeConversationRepo{botActive: botActive},
		messages:      &fakeMessageRepo{},
		evaluations:   &fakeEvaluationRepo{},
		provider:      provider,
	}
	redactor := redact.New(nil, "")
	issuer := pii.NewIssuer(f.tokens, time.Hour)
	assembler := ai.NewAssembler(&fakeProfileRepo{}, &fakeQAPairRepo{}, f.entries, 10)
	evaluator := ai.NewEvaluator(provider, zap.NewNop())
	f.pipeline = New(redactor, issuer, assembler, evaluator, provider,
		f.sanitized, f.entries, f.conversations, f.messages, f.evaluations, zap.NewNop())
	return f
}

func TestSanitizeAndRespondHappyPath(t *testing.T) {
	t.Parallel()
	f := newFixture(&fakeProvider{content: "happy to help"}, true)

	result, err := f.pipeline.SanitizeAndRespond(context.Background(), InboundMessage{
		LeadID:    42,
		ChatbotID: 1,
		Content:   "I want a quote",
		Metadata:  models.Bag{"email": "jane@example.com"},
	})
	if err != nil {
		t.Fatalf("SanitizeAndRespond() error = %v", err)
	}
	if result.Token == "" {
		t.Error("result missing token")
	}
	if result.Reply != "happy to help" {
		t.Errorf("Reply = %q", result.Reply)
	}
	if result.Degraded {
		t.Error("result marked degraded on a successful call")
	}

	if len(f.sanitized.messages) != 1 {
		t.Fatalf("sanitized writes = %d, want 1", len(f.sanitized.messages))
	}
	if got := f.sanitized.messages[0].Metadata["email"]; got == "jane@example.com" {
		t.Error("sanitized record leaked cleartext email")
	}

	// identifiable copy recorded and back-referenced
	if len(f.messages.messages) != 1 || f.messages.messages[0].Origin != models.MessageOriginLead {
		t.Fatalf("identifiable messages = %+v, want one lead message", f.messages.messages)
	}
	if f.sanitized.messages[0].MessageID == nil || *f.sanitized.messages[0].MessageID != f.messages.messages[0].ID {
		t.Error("sanitized record missing back-reference to the identifiable message")
	}

	// user turn and bot reply both land in the context
	if len(f.entries.entries) != 2 {
		t.Fatalf("context entries = %d, want 2", len(f.entries.entries))
	}
	if f.entries.entries[0].Type != models.EntryTypeUserMessage {
		t.Errorf("first entry type = %q", f.entries.entries[0].Type)
	}
	if f.entries.entries[1].Type != models.EntryTypeBotReply {
		t.Errorf("second entry type = %q", f.entries.entries[1].Type)
	}
}

func TestSanitizeAndRespondReusesToken(t *testing.T) {
	t.Parallel()
	f := newFixture(&fakeProvider{content: "ok"}, true)

	first, err := f.pipeline.SanitizeAndRespond(context.Background(), InboundMessage{
		LeadID: 7, ChatbotID: 1, Content: "hello",
	})
	if err != nil {
		t.Fatalf("first call error = %v", err)
	}
	second, err := f.pipeline.SanitizeAndRespond(context.Background(), InboundMessage{
		LeadID: 7, ChatbotID: 1, Content: "hello again",
	})
	if err != nil {
		t.Fatalf("second call error = %v", err)
	}
	if first.Token != second.Token {
		t.Errorf("same lead got different tokens: %q vs %q", first.Token, second.Token)
	}
}

func TestSanitizeAndRespondBotInactiveSkipsModel(t *testing.T) {
	t.Parallel()
	provider := &fakeProvider{content: "should not be called"}
	f := newFixture(provider, false)

	result, err := f.pipeline.SanitizeAndRespond(context.Background(), InboundMessage{
		LeadID: 9, ChatbotID: 1, Content: "operator has this",
	})
	if err != nil {
		t.Fatalf("SanitizeAndRespond() error = %v", err)
	}
	if provider.calls != 0 {
		t.Errorf("provider called %d times with bot inactive", provider.calls)
	}
	if result.Reply != "" {
		t.Errorf("Reply = %q, want empty", result.Reply)
	}
	if result.BotActive {
		t.Error("BotActive = true, want false")
	}
	// message is still recorded
	if len(f.sanitized.messages) != 1 || len(f.entries.entries) != 1 {
		t.Error("inbound message not recorded while bot inactive")
	}
}

func TestSanitizeAndRespondDegradedOnProviderFailure(t *testing.T) {
	t.Parallel()
	f := newFixture(&fakeProvider{err: errors.New("upstream down")}, true)

	result, err := f.pipeline.SanitizeAndRespond(context.Background(), InboundMessage{
		LeadID: 11, ChatbotID: 1, Content: "anyone there?",
	})
	if err != nil {
		t.Fatalf("SanitizeAndRespond() error = %v, provider failure must degrade", err)
	}
	if !result.Degraded {
		t.Error("result not marked degraded")
	}
	if result.Reply != DegradedReply {
		t.Errorf("Reply = %q, want degraded reply", result.Reply)
	}
	// the sanitized record and user entry survive the failure
	if len(f.sanitized.messages) != 1 {
		t.Error("sanitized record lost on provider failure")
	}
	if len(f.entries.entries) != 1 {
		t.Errorf("context entries = %d, want only the user turn", len(f.entries.entries))
	}
}

func TestSanitizeAndRespondRejectsEmptyContent(t *testing.T) {
	t.Parallel()
	f := newFixture(&fakeProvider{content: "ok"}, true)

	_, err := f.pipeline.SanitizeAndRespond(context.Background(), InboundMessage{
		LeadID: 1, ChatbotID: 1, Content: "   ",
	})
	if !errs.IsValidation(err) {
		t.Errorf("error = %v, want validation error", err)
	}
	if len(f.sanitized.messages) != 0 {
		t.Error("empty message was persisted")
	}
}

func TestRecordOperatorMessageDeactivatesBot(t *testing.T) {
	t.Parallel()
	f := newFixture(&fakeProvider{content: "ok"}, true)

	conv, err := f.conversations.GetOrCreate(context.Background(), 3, 1)
	if err != nil {
		t.Fatalf("GetOrCreate() error = %v", err)
	}

	msg, err := f.pipeline.RecordOperatorMessage(context.Background(), 3, nil, "taking over")
	if err != nil {
		t.Fatalf("RecordOperatorMessage() error = %v", err)
	}
	if msg.Origin != models.MessageOriginOperator {
		t.Errorf("Origin = %q", msg.Origin)
	}
	if msg.ConversationID != conv.ID {
		t.Errorf("ConversationID = %d, want %d", msg.ConversationID, conv.ID)
	}
	if f.messages.operatorWrites != 1 {
		t.Errorf("operator writes = %d, want 1", f.messages.operatorWrites)
	}
	if len(f.messages.deactivatedConv) != 1 || f.messages.deactivatedConv[0] != conv.ID {
		t.Errorf("bot deactivation recorded for %v, want conversation %d", f.messages.deactivatedConv, conv.ID)
	}
}

func TestRecordOperatorMessageUnknownLead(t *testing.T) {
	t.Parallel()
	f := newFixture(&fakeProvider{content: "ok"}, true)

	if _, err := f.pipeline.RecordOperatorMessage(context.Background(), 404, nil, "hello?"); !errs.IsNotFound(err) {
		t.Errorf("error = %v, want not-found", err)
	}
}

func TestActivateBotCreatesConversation(t *testing.T) {
	t.Parallel()
	f := newFixture(&fakeProvider{content: "ok"}, false)

	conv, err := f.pipeline.ActivateBot(context.Background(), 6, 1, true)
	if err != nil {
		t.Fatalf("ActivateBot() error = %v", err)
	}
	if !conv.BotActive {
		t.Error("BotActive = false after activation")
	}
	if len(f.conversations.conversations) != 1 {
		t.Fatalf("conversations = %d, want 1 created", len(f.conversations.conversations))
	}

	// toggling to the current state is a no-op
	again, err := f.pipeline.ActivateBot(context.Background(), 6, 1, true)
	if err != nil {
		t.Fatalf("ActivateBot() repeat error = %v", err)
	}
	if again.ID != conv.ID || !again.BotActive {
		t.Error("repeated activation changed the conversation")
	}
}

func TestEvaluatePersistsRowOnModelFailure(t *testing.T) {
	t.Parallel()
	f := newFixture(&fakeProvider{err: errors.New("quota exhausted")}, true)

	eval, err := f.pipeline.Evaluate(context.Background(), 42)
	if err != nil {
		t.Fatalf("Evaluate() error = %v, model failure must still persist", err)
	}
	if eval.PotentialScore != 0 || eval.SatisfactionScore != 0 {
		t.Errorf("scores = %g/%g, want zeros", eval.PotentialScore, eval.SatisfactionScore)
	}
	if len(f.evaluations.evaluations) != 1 {
		t.Fatalf("evaluation rows = %d, want 1", len(f.evaluations.evaluations))
	}
}

func TestEvaluateUsesSanitizedTranscript(t *testing.T) {
	t.Parallel()
	provider := &fakeProvider{content: `{"score_potencial": 0.9, "score_satisfaccion": 0.8, "interes_productos": {}, "comment": "", "palabras_clave": []}`}
	f := newFixture(provider, true)

	// record a message with PII first
	_, err := f.pipeline.SanitizeAndRespond(context.Background(), InboundMessage{
		LeadID: 5, ChatbotID: 1, Content: "call me",
		Metadata: models.Bag{"phone": "555-1234"},
	})
	if err != nil {
		t.Fatalf("SanitizeAndRespond() error = %v", err)
	}

	eval, err := f.pipeline.Evaluate(context.Background(), 5)
	if err != nil {
		t.Fatalf("Evaluate() error = %v", err)
	}
	if eval.PotentialScore != 0.9 {
		t.Errorf("PotentialScore = %g, want 0.9", eval.PotentialScore)
	}

	// transcript handed to the model must not carry the cleartext phone
	for _, m := range provider.gotMsgs {
		if m.Role == ai.RoleUser && m.Content == "555-1234" {
			t.Error("transcript leaked cleartext phone")
		}
	}
}

func TestEvaluateWithExplicitKeys(t *testing.T) {
	t.Parallel()
	provider := &fakeProvider{content: `{"score_potencial": 0.5, "score_satisfaccion": 0.5, "interes_productos": {}, "comment": "", "palabras_clave": []}`}
	f := newFixture(provider, true)

	eval, err := f.pipeline.EvaluateWith(context.Background(), EvaluationRequest{
		LeadID:         12,
		ConversationID: 77,
		MessageID:      5,
		ModelConfigID:  2,
		PromptTemplate: "Score this lead. Respond with JSON.",
	})
	if err != nil {
		t.Fatalf("EvaluateWith() error = %v", err)
	}
	if eval.ConversationID != 77 || eval.MessageID != 5 || eval.ModelConfigID != 2 {
		t.Errorf("keys = conv %d msg %d cfg %d, want 77/5/2",
			eval.ConversationID, eval.MessageID, eval.ModelConfigID)
	}
	if eval.PromptUsed != "Score this lead. Respond with JSON." {
		t.Errorf("PromptUsed = %q, want the override", eval.PromptUsed)
	}
	if len(provider.gotMsgs) == 0 || provider.gotMsgs[0].Content != "Score this lead. Respond with JSON." {
		t.Error("custom prompt not handed to the model")
	}
}

func TestEvaluateStorageFailureIsFatal(t *testing.T) {
	t.Parallel()
	f := newFixture(&fakeProvider{content: `{"score_potencial": 0.1, "score_satisfaccion": 0.1, "interes_productos": {}, "comment": "", "palabras_clave": []}`}, true)
	f.evaluations.createErr = errs.Storage("insert evaluation", errors.New("disk full"))

	if _, err := f.pipeline.Evaluate(context.Background(), 1); err == nil {
		t.Fatal("Evaluate() error = nil, want storage failure")
	}
}

func TestLeadMetricsAggregates(t *testing.T) {
	t.Parallel()
	f := newFixture(&fakeProvider{content: "ok"}, true)
	now := time.Now().UTC()
	f.evaluations.evaluations = []*models.Evaluation{
		{LeadID: 8, PotentialScore: 0.4, SatisfactionScore: 0.2, EvaluatedAt: now.Add(-time.Hour),
			ProductInterest: map[string]float64{"crm": 0.5}, Keywords: []string{"pricing"}},
		{LeadID: 8, PotentialScore: 0.8, SatisfactionScore: 0.6, EvaluatedAt: now,
			ProductInterest: map[string]float64{"crm": 0.9}, Keywords: []string{"pricing", "demo"}},
	}

	metrics, err := f.pipeline.LeadMetrics(context.Background(), 8)
	if err != nil {
		t.Fatalf("LeadMetrics() error = %v", err)
	}
	if metrics.Evaluations != 2 {
		t.Errorf("Evaluations = %d, want 2", metrics.Evaluations)
	}
	if math.Abs(metrics.AvgPotential-0.6) > 1e-9 {
		t.Errorf("AvgPotential = %g, want 0.6", metrics.AvgPotential)
	}
	if math.Abs(metrics.AvgSatisfaction-0.4) > 1e-9 {
		t.Errorf("AvgSatisfaction = %g, want 0.4", metrics.AvgSatisfaction)
	}
	if metrics.LatestPotential != 0.8 {
		t.Errorf("LatestPotential = %g, want 0.8 (newest first)", metrics.LatestPotential)
	}
	if metrics.ProductInterest["crm"] != 0.9 {
		t.Errorf("ProductInterest[crm] = %g, want max 0.9", metrics.ProductInterest["crm"])
	}
	if len(metrics.Keywords) != 2 {
		t.Errorf("Keywords = %v, want deduplicated pair", metrics.Keywords)
	}
}

func TestLeadMetricsEmptyHistory(t *testing.T) {
	t.Parallel()
	f := newFixture(&fakeProvider{content: "ok"}, true)

	metrics, err := f.pipeline.LeadMetrics(context.Background(), 99)
	if err != nil {
		t.Fatalf("LeadMetrics() error = %v", err)
	}
	if metrics.Evaluations != 0 || metrics.AvgPotential != 0 {
		t.Errorf("metrics = %+v, want zero-valued", metrics)
	}
	if metrics.LastEvaluatedAt != nil {
		t.Error("LastEvaluatedAt set with no history")
	}
}

func TestIssueTokenRotate(t *testing.T) {
	t.Parallel()
	f := newFixture(&fakeProvider{content: "ok"}, true)

	first, err := f.pipeline.IssueToken(context.Background(), 4, false)
	if err != nil {
		t.Fatalf("IssueToken() error = %v", err)
	}
	same, _ := f.pipeline.IssueToken(context.Background(), 4, false)
	if same.Token != first.Token {
		t.Error("non-rotating issuance minted a new token")
	}
	rotated, err := f.pipeline.IssueToken(context.Background(), 4, true)
	if err != nil {
		t.Fatalf("IssueToken(rotate) error = %v", err)
	}
	if rotated.Token == first.Token {
		t.Error("rotation returned the old token")
	}
}
