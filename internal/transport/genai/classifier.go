// Package genai implements a chat backend over the Google GenAI API for
// Gemini models.
package genai

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"google.golang.org/genai"

	"github.com/meridian-oss/trialmatch/internal/domain"
	"github.com/meridian-oss/trialmatch/internal/metrics"
	"github.com/meridian-oss/trialmatch/internal/usecase/classify"
)

const (
	defaultModel       = "gemini-2.5-flash"
	defaultTemperature = 0.2
	defaultMaxTokens   = 500
	providerLabel      = "gemini"
)

// Classifier wraps the Google GenAI client as a classify.ChatBackend.
type Classifier struct {
	client      *genai.Client
	model       string
	temperature float32
	maxTokens   int32
}

// Config holds the Gemini backend settings.
type Config struct {
	APIKey      string
	Model       string
	Temperature float32
	MaxTokens   int
}

// NewClassifier creates a Gemini chat backend.
func NewClassifier(ctx context.Context, cfg Config) (*Classifier, error) {
	apiKey := strings.TrimSpace(cfg.APIKey)
	if apiKey == "" {
		return nil, errors.New("gemini api key is required")
	}

	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("create genai client: %w", err)
	}

	model := strings.TrimSpace(cfg.Model)
	if model == "" {
		model = defaultModel
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
		client:      client,
		model:       model,
		temperature: temperature,
		maxTokens:   int32(maxTokens),
	}, nil
}

// Complete implements classify.ChatBackend via one GenerateContent call.
func (c *Classifier) Complete(ctx context.Context, prompt string) (classify.ChatResult, error) {
	temperature := c.temperature
	config := &genai.GenerateContentConfig{
		Temperature:     &temperature,
		MaxOutputTokens: c.maxTokens,
	}

	resp, err := c.client.Models.GenerateContent(ctx, c.model, genai.Text(prompt), config)
	if err != nil {
		metrics.ClassifierRequestsTotal.WithLabelValues(providerLabel, c.model, "error").Inc()
		return classify.ChatResult{}, parseAPIError(err)
	}

	text := collectText(resp)
	if text == "" {
		metrics.ClassifierRequestsTotal.WithLabelValues(providerLabel, c.model, "error").Inc()
		return classify.ChatResult{}, fmt.Errorf("empty gemini response: %w", domain.ErrClassifierUnavailable)
	}

	metrics.ClassifierRequestsTotal.WithLabelValues(providerLabel, c.model, "success").Inc()

	totalTokens := 0
	if resp.UsageMetadata != nil {
		totalTokens = int(resp.UsageMetadata.TotalTokenCount)
	}

	return classify.ChatResult{Text: text, TotalTokens: totalTokens}, nil
}

// collectText concatenates the textual parts of every candidate.
func collectText(resp *genai.GenerateContentResponse) string {
	var builder strings.Builder
	for _, candidate := range resp.Candidates {
		if candidate == nil || candidate.Content == nil {
			continue
		}
		for _, part := range candidate.Content.Parts {
			if part == nil {
				continue
			}
			text := strings.TrimSpace(part.Text)
			if text == "" {
				continue
			}
			if builder.Len() > 0 {
				builder.WriteString("\n")
			}
			builder.WriteString(text)
		}
	}
	return strings.TrimSpace(builder.String())
}

// parseAPIError maps GenAI failures to domain sentinels.
func parseAPIError(err error) error {
	var apiErr genai.APIError
	if errors.As(err, &apiErr) {
		if apiErr.Code == http.StatusTooManyRequests {
			return fmt.Errorf("gemini throttled: %w", domain.ErrClassifierRateLimited)
		}
		return fmt.Errorf("gemini API error %d: %w", apiErr.Code, domain.ErrClassifierUnavailable)
	}
	return fmt.Errorf("gemini request failed: %w", domain.ErrClassifierUnavailable)
}
