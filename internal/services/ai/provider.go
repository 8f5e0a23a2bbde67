package ai

import (
	"context"
)

// Message roles in a model conversation.
const (
	RoleSystem    = "system"
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// Message is one turn handed to the model provider. Content is always
// sanitized before it gets here; this package never sees cleartext PII.
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// Usage carries token accounting from a completion.
type Usage struct {
	PromptTokens     int64 `json:"prompt_tokens"`
	CompletionTokens int64 `json:"completion_tokens"`
	TotalTokens      int64 `json:"total_tokens"`
}

// Completion is the provider's reply: free text plus usage metadata. The
// text is untrusted; callers wanting structure must parse defensively.
type Completion struct {
	Content string `json:"content"`
	Model   string `json:"model"`
	Usage   Usage  `json:"usage"`
}

// ModelProvider is the single operation the pipeline needs from a language
// model: ordered messages in, free text plus usage out. Implementations may
// be slow and may fail; callers own the degradation policy.
type ModelProvider interface {
	Complete(ctx context.Context, messages []Message, temperature float64, maxTokens int64) (*Completion, error)
}

// ProviderFactory creates a model provider from a flat config map.
type ProviderFactory func(config map[string]string) (ModelProvider, error)

// ProviderRegistry stores available model providers by name.
type ProviderRegistry struct {
	providers map[string]ProviderFactory
}

// NewProviderRegistry creates a new provider registry.
func NewProviderRegistry() *ProviderRegistry {
	return &ProviderRegistry{
		providers: make(map[string]ProviderFactory),
	}
}

// Register registers a provider factory.
func (r *ProviderRegistry) Register(name string, factory ProviderFactory) {
	r.providers[name] = factory
}

// GetProvider builds a provider by name.
func (r *ProviderRegistry) GetProvider(name string, config map[string]string) (ModelProvider, error) {
	factory, ok := r.providers[name]
	if !ok {
		return nil, &ErrProviderNotFound{Name: name}
	}

	return factory(config)
}

// ErrProviderNotFound is returned when a provider is not registered.
type ErrProviderNotFound struct {
	Name string
}

func (e *ErrProviderNotFound) Error() string {
	return "model provider not found: " + e.Name
}
