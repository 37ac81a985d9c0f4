// Package llm calls an OpenAI-compatible chat-completions endpoint and reports
// the outcome as a typed Result instead of an error.
package llm

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/sashabaranov/go-openai"
	"go.uber.org/zap"
)

// Kind is the outcome of a completion call.
type Kind string

const (
	KindOK            Kind = "ok"
	KindNotConfigured Kind = "not_configured"
	KindRateLimited   Kind = "rate_limited"
	KindFailed        Kind = "failed"
	KindEmpty         Kind = "empty"
)

// User-facing texts for outcomes that still produce a reply.
const (
	NotConfiguredMessage = "⚙️ AI не настроен: администратор ещё не указал ключ API."
	RateLimitMessage     = "⏳ Слишком много запросов к AI. Пожалуйста, подождите немного и попробуйте снова."
)

const defaultModel = openai.GPT4oMini

// Request carries the provider settings current at call time together with
// the composed prompt.
type Request struct {
	BaseURL      string
	APIKey       string
	Model        string
	SystemPrompt string
	Question     string
	Temperature  float32
	MaxTokens    int
}

// Result is what a completion call produced. Text is the answer for KindOK and
// the user-facing notice for KindNotConfigured/KindRateLimited. Detail holds the
// raw error text for diagnostics and is never shown to end users.
type Result struct {
	Kind   Kind
	Text   string
	Detail string
}

// Client talks to the configured provider. Provider settings can change
// between calls, so the go-openai client is built per request.
type Client struct {
	http   *http.Client
	logger *zap.Logger
}

func NewClient(httpClient *http.Client, logger *zap.Logger) *Client {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 60 * time.Second}
	}
	return &Client{
		http:   httpClient,
		logger: logger,
	}
}

// Complete sends the system prompt and question. It never returns an error;
// rate limiting is reported separately and is not retried here.
func (c *Client) Complete(ctx context.Context, req Request) Result {
	if strings.TrimSpace(req.APIKey) == "" {
		return Result{Kind: KindNotConfigured, Text: NotConfiguredMessage}
	}

	config := openai.DefaultConfig(req.APIKey)
	if base := strings.TrimRight(strings.TrimSpace(req.BaseURL), "/"); base != "" {
		config.BaseURL = base
	}
	config.HTTPClient = c.http

	model := req.Model
	if model == "" {
		model = defaultModel
	}

	resp, err := openai.NewClientWithConfig(config).CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model: model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: req.SystemPrompt},
			{Role: openai.ChatMessageRoleUser, Content: req.Question},
		},
		Temperature: req.Temperature,
		MaxTokens:   req.MaxTokens,
	})
	if err != nil {
		if isRateLimited(err) {
			c.logger.Warn("AI provider rate limited the request", zap.String("model", model))
			return Result{Kind: KindRateLimited, Text: RateLimitMessage, Detail: err.Error()}
		}
		c.logger.Error("Failed to get AI response", zap.Error(err), zap.String("model", model))
		return Result{Kind: KindFailed, Detail: err.Error()}
	}

	if len(resp.Choices) == 0 {
		return Result{Kind: KindEmpty, Detail: "no response choices"}
	}
	answer := strings.TrimSpace(resp.Choices[0].Message.Content)
	if answer == "" {
		return Result{Kind: KindEmpty, Detail: "empty completion content"}
	}
	return Result{Kind: KindOK, Text: answer}
}

func isRateLimited(err error) bool {
	var apiErr *openai.APIError
	if errors.As(err, &apiErr) {
		return apiErr.HTTPStatusCode == http.StatusTooManyRequests
	}
	var reqErr *openai.RequestError
	if errors.As(err, &reqErr) {
		return reqErr.HTTPStatusCode == http.StatusTooManyRequests
	}
	// Non-JSON error bodies come back as plain errors carrying the status code.
	return strings.Contains(err.Error(), "status code: 429")
}
