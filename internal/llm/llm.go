package llm

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	openai "github.com/sashabaranov/go-openai"
)

// Upstream failure categories. Errors returned by Client wrap exactly one
// of them together with the underlying error.
var (
	ErrUpstreamAuth        = errors.New("upstream authentication failed")
	ErrUpstreamRateLimited = errors.New("upstream rate limit or quota exceeded")
	ErrUpstreamUnavailable = errors.New("upstream unavailable")
	ErrTimeout             = errors.New("generation timed out")
)

const systemPrompt = "You are a quiz generator. You write accurate multiple-choice questions and answer with JSON only."

// Usage is the token accounting reported for one completion.
type Usage struct {
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
}

// Total returns prompt plus completion tokens.
func (u Usage) Total() int { return u.PromptTokens + u.CompletionTokens }

// Completion is the raw model output and its token usage.
type Completion struct {
	Text  string
	Usage Usage
}

// Client wraps an OpenAI-compatible API client.
type Client struct {
	api         *openai.Client
	model       string
	temperature float32
}

// New creates a new LLM client.
func New(baseURL, apiKey, modelName string) *Client {
	config := openai.DefaultConfig(apiKey)
	if baseURL != "" {
		config.BaseURL = baseURL
	}
	return &Client{
		api:         openai.NewClientWithConfig(config),
		model:       modelName,
		temperature: 0.7,
	}
}

// Model returns the configured model name.
func (c *Client) Model() string { return c.model }

// Complete sends prompt to the model in JSON mode and returns the raw text.
// The text is not validated; callers normalize it.
func (c *Client) Complete(ctx context.Context, prompt string) (Completion, error) {
	resp, err := c.api.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model: c.model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: systemPrompt},
			{Role: openai.ChatMessageRoleUser, Content: prompt},
		},
		ResponseFormat: &openai.ChatCompletionResponseFormat{
			Type: openai.ChatCompletionResponseFormatTypeJSONObject,
		},
		Temperature: c.temperature,
	})
	if err != nil {
		return Completion{}, fmt.Errorf("LLM API call: %w", Classify(ctx, err))
	}
	if len(resp.Choices) == 0 {
		return Completion{}, fmt.Errorf("LLM returned no choices: %w", ErrUpstreamUnavailable)
	}

	raw := resp.Choices[0].Message.Content
	slog.Debug("LLM response", "model", c.model, "raw", raw, "tokens", resp.Usage.TotalTokens)

	return Completion{
		Text: raw,
		Usage: Usage{
			PromptTokens:     resp.Usage.PromptTokens,
			CompletionTokens: resp.Usage.CompletionTokens,
		},
	}, nil
}

// Ping checks that the endpoint answers and accepts the credentials.
func (c *Client) Ping(ctx context.Context) error {
	if _, err := c.api.ListModels(ctx); err != nil {
		return Classify(ctx, err)
	}
	return nil
}

// Classify maps a client error onto one of the upstream categories.
func Classify(ctx context.Context, err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(ctx.Err(), context.DeadlineExceeded) {
		return fmt.Errorf("%w: %w", ErrTimeout, err)
	}

	status := 0
	var apiErr *openai.APIError
	var reqErr *openai.RequestError
	switch {
	case errors.As(err, &apiErr):
		status = apiErr.HTTPStatusCode
	case errors.As(err, &reqErr):
		status = reqErr.HTTPStatusCode
	}

	switch status {
	case http.StatusUnauthorized, http.StatusForbidden:
		return fmt.Errorf("%w: %w", ErrUpstreamAuth, err)
	case http.StatusTooManyRequests:
		return fmt.Errorf("%w: %w", ErrUpstreamRateLimited, err)
	case http.StatusRequestTimeout, http.StatusGatewayTimeout:
		return fmt.Errorf("%w: %w", ErrTimeout, err)
	}
	return fmt.Errorf("%w: %w", ErrUpstreamUnavailable, err)
}
