// Package assistant answers free-text security questions. Known intents are
// answered from the tenant's dashboard metrics; anything else is passed to an
// ordered chain of external providers, then to a static help reply.
package assistant

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/linnemanlabs/go-core/log"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

var tracer = otel.Tracer("github.com/linnemanlabs/apex/internal/assistant")

// DefaultProviderTimeout bounds a single provider call when none is configured.
const DefaultProviderTimeout = 30 * time.Second

// Provider call outcomes reported to hooks.
const (
	ProviderOK    = "ok"
	ProviderError = "error"
	ProviderEmpty = "empty"
)

var (
	// ErrEmptyCompletion is returned when a provider succeeds with no text.
	ErrEmptyCompletion = errors.New("empty completion")

	// ErrProviderPanic wraps a panic recovered from a provider call.
	ErrProviderPanic = errors.New("provider panicked")
)

// Reply is the assistant's answer to one prompt.
type Reply struct {
	Reply    string `json:"reply"`
	Status   string `json:"status"`
	Helpful  bool   `json:"helpful"`
	Provider string `json:"provider,omitempty"`
}

// RouterHooks lets callers observe routing decisions. Nil fields are ignored.
type RouterHooks struct {
	OnReply    func(route string, duration float64)
	OnProvider func(provider, outcome string, duration float64)
}

// RouterConfig holds the router's collaborators.
type RouterConfig struct {
	// Source supplies dashboard metrics. A nil source means no data.
	Source Source

	// Providers are tried in order until one succeeds.
	Providers       []Provider
	ProviderTimeout time.Duration
}

// Router routes prompts to intents or providers. It holds no per-request state.
type Router struct {
	source          Source
	providers       []Provider
	providerTimeout time.Duration
	logger          log.Logger
	hooks           RouterHooks
}

// NewRouter creates a new assistant router.
func NewRouter(cfg RouterConfig, logger log.Logger, hooks RouterHooks) *Router {
	if logger == nil {
		logger = log.Nop()
	}
	timeout := cfg.ProviderTimeout
	if timeout <= 0 {
		timeout = DefaultProviderTimeout
	}
	return &Router{
		source:          cfg.Source,
		providers:       append([]Provider(nil), cfg.Providers...),
		providerTimeout: timeout,
		logger:          logger,
		hooks:           hooks,
	}
}

// Reply answers a prompt. The only error is a failure to read dashboard
// metrics; provider failures fall through to the next route.
func (r *Router) Reply(ctx context.Context, prompt string) (*Reply, error) {
	start := time.Now()

	snap, err := r.snapshot(ctx)
	if err != nil {
		return nil, fmt.Errorf("load dashboard metrics: %w", err)
	}

	out := r.route(ctx, prompt, snap)

	dur := time.Since(start).Seconds()
	r.logger.Info(ctx, "assistant reply",
		"route", out.Status,
		"provider", out.Provider,
		"duration", dur,
	)
	if r.hooks.OnReply != nil {
		r.hooks.OnReply(out.Status, dur)
	}
	return out, nil
}

func (r *Router) snapshot(ctx context.Context) (*Snapshot, error) {
	if r.source == nil {
		return nil, nil
	}
	return r.source.Snapshot(ctx)
}

func (r *Router) route(ctx context.Context, prompt string, snap *Snapshot) *Reply {
	if snap.IsEmpty() {
		return &Reply{Reply: onboardingReply, Status: RouteOnboarding}
	}

	q := strings.ToLower(prompt)
	if in, ok := matchIntent(q, snap); ok {
		return &Reply{Reply: in.render(q, snap), Status: in.route, Helpful: true}
	}

	if text, name, ok := r.complete(ctx, prompt, snap); ok {
		return &Reply{Reply: text, Status: RouteProvider, Helpful: true, Provider: name}
	}

	return &Reply{Reply: helpReply, Status: RouteHelp}
}

// complete walks the provider chain and returns the first non-empty completion.
func (r *Router) complete(ctx context.Context, prompt string, snap *Snapshot) (text, provider string, ok bool) {
	if len(r.providers) == 0 {
		return "", "", false
	}
	system := systemPrompt(snap)

	for _, p := range r.providers {
		text, err := r.call(ctx, p, system, prompt)
		if err != nil {
			r.logger.Warn(ctx, "provider failed, falling through", "provider", p.Name(), "error", err)
			continue
		}
		return text, p.Name(), true
	}
	return "", "", false
}

func (r *Router) call(ctx context.Context, p Provider, system, prompt string) (string, error) {
	ctx, span := tracer.Start(ctx, "assistant.provider", trace.WithAttributes(
		attribute.String("apex.provider", p.Name()),
	))
	defer span.End()

	ctx, cancel := context.WithTimeout(ctx, r.providerTimeout)
	defer cancel()

	start := time.Now()
	text, err := completeRecovered(ctx, p, system, prompt)
	if err == nil && strings.TrimSpace(text) == "" {
		err = ErrEmptyCompletion
	}
	dur := time.Since(start).Seconds()

	outcome := ProviderOK
	switch {
	case errors.Is(err, ErrEmptyCompletion):
		outcome = ProviderEmpty
	case err != nil:
		outcome = ProviderError
	}
	if r.hooks.OnProvider != nil {
		r.hooks.OnProvider(p.Name(), outcome, dur)
	}

	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return "", err
	}
	return text, nil
}

// completeRecovered turns a panicking provider into an ordinary failure so the
// chain moves on to the next provider.
func completeRecovered(ctx context.Context, p Provider, system, prompt string) (text string, err error) {
	defer func() {
		if rec := recover(); rec != nil {
			text, err = "", fmt.Errorf("%w: %v", ErrProviderPanic, rec)
		}
	}()
	return p.Complete(ctx, system, prompt)
}
