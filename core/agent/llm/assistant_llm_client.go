// Package llm wraps the generative-model provider behind a small client.
package llm

import (
	"context"
	"log"
	"net/http"
	"time"

	"assistant_server/pkg/apperr"

	openai "github.com/sashabaranov/go-openai"
	"github.com/sony/gobreaker"
)

const DefaultModel = "gpt-4o-mini"

// Client is a chat-completion client for one model tier. Calls are wrapped
// in a circuit breaker so a flapping provider fails fast instead of stalling
// every pipeline iteration for the full timeout.
type Client struct {
	client *openai.Client
	model  string
	cb     *gobreaker.CircuitBreaker
}

// ClientConfig holds client construction settings.
type ClientConfig struct {
	APIKey     string
	Model      string
	BaseURL    string // optional OpenAI-compatible endpoint
	TimeoutSec int    // per-request HTTP timeout, 60s when unset
}

// NewClient creates a client, or a config error when no API key is set.
func NewClient(cfg ClientConfig) (*Client, error) {
	if cfg.APIKey == "" {
		return nil, apperr.MissingSetting("OPENAI_API_KEY")
	}

	model := cfg.Model
	if model == "" {
		model = DefaultModel
	}

	timeout := time.Duration(cfg.TimeoutSec) * time.Second
	if timeout <= 0 {
		timeout = 60 * time.Second
	}

	oaCfg := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		oaCfg.BaseURL = cfg.BaseURL
	}
	oaCfg.HTTPClient = &http.Client{Timeout: timeout}

	cbSettings := gobreaker.Settings{
		Name:        "llm-" + model,
		MaxRequests: 3,
		Interval:    60 * time.Second,
		Timeout:     30 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			failureRatio := float64(counts.TotalFailures) / float64(counts.Requests)
			return counts.ConsecutiveFailures > 5 ||
				(counts.Requests >= 10 && failureRatio >= 0.6)
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			log.Printf("[CircuitBreaker] %s: state changed from %s to %s", name, from.String(), to.String())
		},
	}

	return &Client{
		client: openai.NewClientWithConfig(oaCfg),
		model:  model,
		cb:     gobreaker.NewCircuitBreaker(cbSettings),
	}, nil
}

// Model returns the configured model name.
func (c *Client) Model() string {
	return c.model
}

// BreakerState returns the circuit breaker state for the status endpoint.
func (c *Client) BreakerState() string {
	return c.cb.State().String()
}

// Complete issues a single-shot user prompt.
func (c *Client) Complete(ctx context.Context, prompt string, maxTokens int, temperature float32) (string, error) {
	return c.chat(ctx, []openai.ChatCompletionMessage{
		{Role: openai.ChatMessageRoleUser, Content: prompt},
	}, maxTokens, temperature, nil)
}

// CompleteWithSystem issues a system+user prompt pair.
func (c *Client) CompleteWithSystem(ctx context.Context, systemPrompt, userPrompt string, maxTokens int, temperature float32) (string, error) {
	return c.chat(ctx, []openai.ChatCompletionMessage{
		{Role: openai.ChatMessageRoleSystem, Content: systemPrompt},
		{Role: openai.ChatMessageRoleUser, Content: userPrompt},
	}, maxTokens, temperature, nil)
}

// CompleteJSON requests a JSON-object response.
func (c *Client) CompleteJSON(ctx context.Context, prompt string, maxTokens int) (string, error) {
	format := &openai.ChatCompletionResponseFormat{
		Type: openai.ChatCompletionResponseFormatTypeJSONObject,
	}
	return c.chat(ctx, []openai.ChatCompletionMessage{
		{Role: openai.ChatMessageRoleUser, Content: prompt},
	}, maxTokens, 0.1, format)
}

func (c *Client) chat(ctx context.Context, messages []openai.ChatCompletionMessage, maxTokens int, temperature float32, format *openai.ChatCompletionResponseFormat) (string, error) {
	result, err := c.cb.Execute(func() (interface{}, error) {
		resp, err := c.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
			Model:          c.model,
			Messages:       messages,
			MaxTokens:      maxTokens,
			Temperature:    temperature,
			ResponseFormat: format,
		})
		if err != nil {
			return nil, err
		}
		if len(resp.Choices) == 0 {
			return "", nil
		}
		return resp.Choices[0].Message.Content, nil
	})
	if err != nil {
		return "", apperr.Transport("llm", err)
	}
	return result.(string), nil
}
