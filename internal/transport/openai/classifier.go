package openai

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	openai "github.com/sashabaranov/go-openai"
	"go.uber.org/zap"

	"github.com/meridian-oss/trialmatch/internal/domain"
	"github.com/meridian-oss/trialmatch/internal/metrics"
	"github.com/meridian-oss/trialmatch/internal/usecase/classify"
)

const (
	defaultTemperature = 0.2
	defaultMaxTokens   = 500
)

// Classifier is a chat-completion backend over the OpenAI-compatible API.
// Groq exposes this API, so the same client serves both providers.
type Classifier struct {
	client      *openai.Client
	model       string
	temperature float32
	maxTokens   int
	provider    string
	logger      *zap.Logger
}

// ClassifierConfig holds the chat backend settings.
type ClassifierConfig struct {
	APIKey      string
	BaseURL     string
	Model       string
	Temperature float32
	MaxTokens   int
	Provider    string
	Logger      *zap.Logger
}

// NewClassifier creates an OpenAI-compatible chat backend.
func NewClassifier(cfg *ClassifierConfig) *Classifier {
	clientCfg := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		clientCfg.BaseURL = cfg.BaseURL
	}

	temperature := cfg.Temperature
	if temperature <= 0 {
		temperature = defaultTemperature
	}
	maxTokens := cfg.MaxTokens
	if maxTokens <= 0 {
		maxTokens = defaultMaxTokens
	}

	return &Classifier{
		client:      openai.NewClientWithConfig(clientCfg),
		model:       cfg.Model,
		temperature: temperature,
		maxTokens:   maxTokens,
		provider:    cfg.Provider,
		logger:      cfg.Logger,
	}
}

// Complete implements classify.ChatBackend via a single chat completion.
func (c *Classifier) Complete(ctx context.Context, prompt string) (classify.ChatResult, error) {
	req := openai.ChatCompletionRequest{
		Model: c.model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleUser, Content: prompt},
		},
		Temperature: c.temperature,
		MaxTokens:   c.maxTokens,
	}

	resp, err := c.client.CreateChatCompletion(ctx, req)
	if err != nil {
		metrics.ClassifierRequestsTotal.WithLabelValues(c.provider, c.model, "error").Inc()
		return classify.ChatResult{}, c.parseChatError(err)
	}

	if len(resp.Choices) == 0 {
		metrics.ClassifierRequestsTotal.WithLabelValues(c.provider, c.model, "error").Inc()
		return classify.ChatResult{}, fmt.Errorf("empty completion response: %w", domain.ErrClassifierUnavailable)
	}

	metrics.ClassifierRequestsTotal.WithLabelValues(c.provider, c.model, "success").Inc()

	return classify.ChatResult{
		Text:        resp.Choices[0].Message.Content,
		TotalTokens: resp.Usage.TotalTokens,
	}, nil
}

// HealthCheck verifies API availability via ListModels.
func (c *Classifier) HealthCheck(ctx context.Context) error {
	if _, err := c.client.ListModels(ctx); err != nil {
		return fmt.Errorf("list models: %w", err)
	}
	return nil
}

// parseChatError maps API failures to domain sentinels. 429 gets its own
// sentinel so callers can distinguish provider throttling from outages.
func (c *Classifier) parseChatError(err error) error {
	status := 0

	var reqErr *openai.RequestError
	if errors.As(err, &reqErr) {
		status = reqErr.HTTPStatusCode
	}
	var apiErr *openai.APIError
	if errors.As(err, &apiErr) {
		status = apiErr.HTTPStatusCode
	}

	if status == http.StatusTooManyRequests {
		return fmt.Errorf("completion API throttled: %w", domain.ErrClassifierRateLimited)
	}
	if status != 0 {
		return fmt.Errorf("completion API error %d: %w", status, domain.ErrClassifierUnavailable)
	}
	return fmt.Errorf("completion request failed: %w", domain.ErrClassifierUnavailable)
}
