package assistant

import "context"

// Provider is an external text-completion service used when no intent matches.
type Provider interface {
	// Name identifies the provider in logs, metrics and replies.
	Name() string

	// Complete returns the model's reply to userPrompt under systemPrompt.
	Complete(ctx context.Context, systemPrompt, userPrompt string) (string, error)
}
