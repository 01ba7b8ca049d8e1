// Package openai is the chat completions provider for the assistant, used as
// the fallback behind Claude.
package openai

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

const (
	// Name identifies this provider in replies, logs and metrics.
	Name = "openai"

	// DefaultBaseURL is the public API root.
	DefaultBaseURL = "https://api.openai.com/v1"

	defaultMaxTokens = 1024
	httpTimeout      = 120 * time.Second
)

// ErrNoChoices is returned when the API answers without any completion.
var ErrNoChoices = errors.New("no choices in response")

// Client implements assistant.Provider on top of the OpenAI SDK. Any
// OpenAI-compatible gateway works through the base URL.
type Client struct {
	client    openai.Client
	model     string
	baseURL   string
	maxTokens int64
}

// New creates a new chat completions client. An empty baseURL uses
// DefaultBaseURL. Extra request options are applied after the defaults.
func New(apiKey, model, baseURL string, opts ...option.RequestOption) *Client {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	base := []option.RequestOption{
		option.WithAPIKey(apiKey),
		option.WithBaseURL(baseURL),
		// the router owns fallback, so a failed call moves on instead of retrying
		option.WithMaxRetries(0),
		option.WithHTTPClient(&http.Client{
			Timeout:   httpTimeout,
			Transport: otelhttp.NewTransport(http.DefaultTransport),
		}),
	}
	return &Client{
		client:    openai.NewClient(append(base, opts...)...),
		model:     model,
		baseURL:   baseURL,
		maxTokens: defaultMaxTokens,
	}
}

// Name returns the provider name.
func (c *Client) Name() string { return Name }

// Complete sends a single-turn chat request and returns the first choice's content.
func (c *Client) Complete(ctx context.Context, systemPrompt, userPrompt string) (string, error) {
	msgs := make([]openai.ChatCompletionMessageParamUnion, 0, 2)
	if systemPrompt != "" {
		msgs = append(msgs, openai.SystemMessage(systemPrompt))
	}
	msgs = append(msgs, openai.UserMessage(userPrompt))

	resp, err := c.client.Chat.Completions.New(ctx, openai.ChatCompletionNewParams{
		Model:     openai.ChatModel(c.model),
		MaxTokens: openai.Int(c.maxTokens),
		Messages:  msgs,
	})
	if err != nil {
		return "", fmt.Errorf("openai chat completions: %w", err)
	}
	if len(resp.Choices) == 0 {
		return "", ErrNoChoices
	}
	return resp.Choices[0].Message.Content, nil
}
