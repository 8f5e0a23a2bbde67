package ai

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/openai/openai-go/v3"
	"github.com/openai/openai-go/v3/option"
	"github.com/openai/openai-go/v3/shared"
	"go.uber.org/zap"

	logpkg "github.com/nexocrm/crm-ai-gateway/internal/logger"
)

const (
	// DefaultOpenAIModel is the default model to use.
	DefaultOpenAIModel = "gpt-4o-mini"
	// DefaultOpenAIBaseURL is the default OpenAI API base URL.
	DefaultOpenAIBaseURL = "https://api.openai.com/v1"
	// DefaultTimeout is the default timeout for API calls.
	DefaultTimeout = 30 * time.Second
)

// OpenAIProvider implements ModelProvider using OpenAI's chat completions.
type OpenAIProvider struct {
	client    openai.Client
	model     string
	logger    *zap.Logger
	debugMode bool
}

// NewOpenAIProvider creates a new OpenAI provider.
func NewOpenAIProvider(apiKey string, model string) *OpenAIProvider {
	return NewOpenAIProviderWithLogger(apiKey, DefaultOpenAIBaseURL, model, nil, false)
}

// NewOpenAIProviderWithLogger creates a new OpenAI provider with logger
// support. Debug logging only ever emits sanitized excerpts.
func NewOpenAIProviderWithLogger(apiKey string, baseURL string, model string, logger *zap.Logger, debugMode bool) *OpenAIProvider {
	if model == "" {
		model = DefaultOpenAIModel
	}
	if baseURL == "" {
		baseURL = DefaultOpenAIBaseURL
	}

	httpClient := &http.Client{
		Timeout: DefaultTimeout,
	}

	client := openai.NewClient(
		option.WithAPIKey(apiKey),
		option.WithBaseURL(baseURL),
		option.WithHTTPClient(httpClient),
	)

	return &OpenAIProvider{
		client:    client,
		model:     model,
		logger:    logger,
		debugMode: debugMode,
	}
}

// Complete sends an ordered message sequence to the chat completions API and
// returns the model's reply text plus usage metadata.
func (p *OpenAIProvider) Complete(ctx context.Context, messages []Message, temperature float64, maxTokens int64) (*Completion, error) {
	openAIMessages := make([]openai.ChatCompletionMessageParamUnion, 0, len(messages))
	for _, msg := range messages {
		switch msg.Role {
		case RoleSystem:
			openAIMessages = append(openAIMessages, openai.SystemMessage(msg.Content))
		case RoleAssistant:
			openAIMessages = append(openAIMessages, openai.AssistantMessage(msg.Content))
		default:
			openAIMessages = append(openAIMessages, openai.UserMessage(msg.Content))
		}
	}

	req := openai.ChatCompletionNewParams{
		Model:       shared.ChatModel(p.model),
		Messages:    openAIMessages,
		Temperature: openai.Float(temperature),
	}
	if maxTokens > 0 {
		req.MaxTokens = openai.Int(maxTokens)
	}

	if p.logger != nil && p.debugMode {
		previews := make([]string, 0, len(messages))
		for _, msg := range messages {
			previews = append(previews, logpkg.SanitizeString(msg.Content, 200))
		}
		p.logger.Debug("llm_api_request",
			zap.String("model", p.model),
			zap.Int("message_count", len(messages)),
			zap.Float64("temperature", temperature),
			zap.Int64("max_tokens", maxTokens),
			zap.Strings("message_previews", previews),
		)
	}

	start := time.Now()
	resp, err := p.client.Chat.Completions.New(ctx, req)
	latency := time.Since(start)

	if err != nil {
		if p.logger != nil && p.debugMode {
			p.logger.Debug("llm_api_error",
				zap.String("model", p.model),
				zap.Error(err),
				zap.Int64("latency_ms", latency.Milliseconds()),
			)
		}
		if apiErr := ExtractAPIError(err); apiErr != nil {
			return nil, fmt.Errorf("failed to complete: %w", apiErr)
		}
		return nil, fmt.Errorf("failed to complete: %w", err)
	}

	if len(resp.Choices) == 0 {
		return nil, ErrEmptyCompletion
	}

	content := resp.Choices[0].Message.Content

	if p.logger != nil && p.debugMode {
		p.logger.Debug("llm_api_response",
			zap.String("model", p.model),
			zap.Int("response_length", len(content)),
			zap.String("response_preview", logpkg.SanitizeDebugContent(content)),
			zap.Int64("latency_ms", latency.Milliseconds()),
		)
	}

	return &Completion{
		Content: content,
		Model:   p.model,
		Usage: Usage{
			PromptTokens:     resp.Usage.PromptTokens,
			CompletionTokens: resp.Usage.CompletionTokens,
			TotalTokens:      resp.Usage.TotalTokens,
		},
	}, nil
}

// RegisterOpenAI registers the OpenAI provider with the registry.
func RegisterOpenAI(registry *ProviderRegistry) {
	registry.Register("openai", func(config map[string]string) (ModelProvider, error) {
		apiKey, ok := config["api_key"]
		if !ok || apiKey == "" {
			return nil, fmt.Errorf("openai api_key is required")
		}

		return NewOpenAIProviderWithLogger(apiKey, config["base_url"], config["model"], nil, false), nil
	})
}
