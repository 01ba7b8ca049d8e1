// Package claude is the Anthropic Messages API provider for the assistant.
package claude

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

const (
	// Name identifies this provider in replies, logs and metrics.
	Name = "claude"

	defaultMaxTokens = 1024
	httpTimeout      = 120 * time.Second
)

// Client implements assistant.Provider on top of the Anthropic SDK.
type Client struct {
	client    anthropic.Client
	model     string
	maxTokens int64
}

// New creates a new Claude client with the given API key and model name.
// Extra request options are applied after the defaults, so tests can point the
// client at a local server with option.WithBaseURL.
func New(apiKey, model string, opts ...option.RequestOption) *Client {
	base := []option.RequestOption{
		option.WithAPIKey(apiKey),
		// the router owns fallback, so a failed call moves on instead of retrying
		option.WithMaxRetries(0),
		option.WithHTTPClient(&http.Client{
			Timeout:   httpTimeout,
			Transport: otelhttp.NewTransport(http.DefaultTransport),
		}),
	}
	return &Client{
		client:    anthropic.NewClient(append(base, opts...)...),
		model:     model,
		maxTokens: defaultMaxTokens,
	}
}

// Name returns the provider name.
func (c *Client) Name() string { return Name }

// Complete sends a single-turn request and returns the concatenated text blocks.
func (c *Client) Complete(ctx context.Context, systemPrompt, userPrompt string) (string, error) {
	params := anthropic.MessageNewParams{
		Model:     anthropic.Model(c.model),
		MaxTokens: c.maxTokens,
		Messages: []anthropic.MessageParam{
			anthropic.NewUserMessage(anthropic.NewTextBlock(userPrompt)),
		},
	}
	if systemPrompt != "" {
		params.System = []anthropic.TextBlockParam{{Text: systemPrompt}}
	}

	msg, err := c.client.Messages.New(ctx, params)
	if err != nil {
		return "", fmt.Errorf("claude messages: %w", err)
	}
	return fromSDKResponse(msg), nil
}

// fromSDKResponse extracts the text content of a message, ignoring other block types.
func fromSDKResponse(msg *anthropic.Message) string {
	var parts []string
	for _, block := range msg.Content {
		if block.Type == "text" && block.Text != "" {
			parts = append(parts, block.Text)
		}
	}
	return strings.Join(parts, "\n")
}
