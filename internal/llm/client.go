// Package llm provides the external text-generation capability used by the
// delegated villager reasoner: an OpenAI-compatible chat client, prompt
// construction and reply parsing.
package llm

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	openai "github.com/sashabaranov/go-openai"
	"golang.org/x/time/rate"
)

const (
	defaultModel   = "gpt-4o-mini"
	defaultPerMin  = 60
	defaultTimeout = 20 * time.Second
)

// ClientConfig configures the chat client.
type ClientConfig struct {
	APIKey    string
	BaseURL   string // OpenAI-compatible endpoint; "/v1" is appended when missing
	Model     string
	MaxPerMin int
}

// Client wraps an OpenAI-compatible Chat Completions API.
type Client struct {
	api   *openai.Client
	model string

	// Rate limiting: calls per minute. Excess calls are refused, not queued.
	limiter   *rate.Limiter
	maxPerMin int
}

// NewClient creates a chat client.
// Returns nil if the API key is empty (delegated reasoning disabled).
func NewClient(cfg ClientConfig) *Client {
	if cfg.APIKey == "" {
		return nil
	}
	oc := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		oc.BaseURL = normalizeBaseURL(cfg.BaseURL)
	}
	model := cfg.Model
	if model == "" {
		model = defaultModel
	}
	perMin := cfg.MaxPerMin
	if perMin <= 0 {
		perMin = defaultPerMin
	}
	return &Client{
		api:       openai.NewClientWithConfig(oc),
		model:     model,
		limiter:   rate.NewLimiter(rate.Every(time.Minute/time.Duration(perMin)), perMin),
		maxPerMin: perMin,
	}
}

// Enabled returns true if the client has a valid API key.
func (c *Client) Enabled() bool {
	return c != nil && c.api != nil
}

// Model returns the configured model name.
func (c *Client) Model() string {
	if c == nil {
		return ""
	}
	return c.model
}

// Complete sends one system + user exchange and returns the reply text. The
// reply is requested as a JSON object.
func (c *Client) Complete(ctx context.Context, system, user string, temperature float64, maxTokens int) (string, error) {
	if !c.Enabled() {
		return "", fmt.Errorf("LLM client not configured")
	}
	if !c.limiter.Allow() {
		return "", fmt.Errorf("rate limit exceeded (%d calls/min)", c.maxPerMin)
	}

	req := openai.ChatCompletionRequest{
		Model: c.model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: system},
			{Role: openai.ChatMessageRoleUser, Content: user},
		},
		Temperature:         float32(temperature),
		MaxCompletionTokens: maxTokens,
		ResponseFormat: &openai.ChatCompletionResponseFormat{
			Type: openai.ChatCompletionResponseFormatTypeJSONObject,
		},
	}

	resp, err := c.api.CreateChatCompletion(ctx, req)
	if err != nil {
		return "", fmt.Errorf("chat completion: %w", err)
	}
	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("empty response")
	}

	slog.Debug("chat completion",
		"model", c.model,
		"prompt_tokens", resp.Usage.PromptTokens,
		"completion_tokens", resp.Usage.CompletionTokens,
		"finish_reason", resp.Choices[0].FinishReason,
	)

	return resp.Choices[0].Message.Content, nil
}

// normalizeBaseURL accepts both "https://host" and "https://host/v1".
func normalizeBaseURL(u string) string {
	u = strings.TrimRight(u, "/")
	if strings.HasSuffix(u, "/v1") {
		return u
	}
	return u + "/v1"
}
