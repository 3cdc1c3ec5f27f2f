package llm

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/sashabaranov/go-openai"

	"WhyAgent/internal/domain/models"
	"WhyAgent/internal/domain/repository"
	"WhyAgent/pkg/logger"
)

// Config configures OpenAIExplainer.
type Config struct {
	APIKey      string
	BaseURL     string
	Model       string
	Temperature float32
	MaxTokens   int
	Timeout     time.Duration
}

// OpenAIExplainer answers prompts with a chat completion.
type OpenAIExplainer struct {
	client  *openai.Client
	cfg     Config
	metrics repository.Metrics
	logger  *logger.Logger
}

// NewOpenAIExplainer creates the explainer. An empty API key yields an
// explainer whose Explain always fails with models.ErrNotConfigured.
func NewOpenAIExplainer(cfg Config, m repository.Metrics, l *logger.Logger) *OpenAIExplainer {
	if cfg.Model == "" {
		cfg.Model = openai.GPT4oMini
	}
	e := &OpenAIExplainer{cfg: cfg, metrics: m, logger: l}
	if cfg.APIKey != "" {
		oc := openai.DefaultConfig(cfg.APIKey)
		if cfg.BaseURL != "" {
			oc.BaseURL = strings.TrimRight(cfg.BaseURL, "/")
		}
		e.client = openai.NewClientWithConfig(oc)
	}
	return e
}

// Configured reports whether an API key was supplied.
func (e *OpenAIExplainer) Configured() bool {
	return e.client != nil
}

// Explain sends prompt as a single user message and returns the trimmed reply.
func (e *OpenAIExplainer) Explain(ctx context.Context, prompt string) (string, error) {
	if e.client == nil {
		return "", fmt.Errorf("openai api key: %w", models.ErrNotConfigured)
	}
	if e.cfg.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, e.cfg.Timeout)
		defer cancel()
	}

	start := time.Now()
	resp, err := e.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model:       e.cfg.Model,
		Temperature: e.cfg.Temperature,
		MaxTokens:   e.cfg.MaxTokens,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleUser, Content: prompt},
		},
	})
	e.metrics.RecordLatency("llm_explain", time.Since(start).Seconds())
	if err != nil {
		e.metrics.RecordError("llm")
		var apiErr *openai.APIError
		if errors.As(err, &apiErr) {
			return "", fmt.Errorf("openai %s (status %d): %w", apiErr.Type, apiErr.HTTPStatusCode, err)
		}
		return "", fmt.Errorf("openai chat completion: %w", err)
	}
	if len(resp.Choices) == 0 {
		e.metrics.RecordError("llm")
		return "", fmt.Errorf("openai returned no choices")
	}

	e.logger.Debug("llm explanation generated",
		logger.String("model", e.cfg.Model),
		logger.Int("prompt_tokens", resp.Usage.PromptTokens),
		logger.Int("completion_tokens", resp.Usage.CompletionTokens),
	)
	return strings.TrimSpace(resp.Choices[0].Message.Content), nil
}
