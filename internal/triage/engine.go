package triage

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/linnemanlabs/go-core/log"
	"github.com/oklog/ulid/v2"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

var tracer = otel.Tracer("github.com/linnemanlabs/apex/internal/triage")

const (
	// DefaultEnrichTimeout bounds a single enrichment call when none is configured.
	DefaultEnrichTimeout = 10 * time.Second

	// maxNotesLen caps the message body echoed back in a report.
	maxNotesLen = 1200
)

// Enrichment outcomes reported to hooks.
const (
	EnrichSkipped = "skipped"
	EnrichError   = "error"
	EnrichInvalid = "invalid"
	EnrichOK      = "ok"
)

// ErrEnricherPanic wraps a panic recovered from an enrichment call.
var ErrEnricherPanic = errors.New("enricher panicked")

// checks are the verification steps every report lists as primary findings.
var checks = []string{
	"SPF/DKIM/DMARC auth results",
	"Header anomalies (return-path, reply-to, display name spoofing)",
	"URL intel (risky domains, TLD, shortening, lookalikes)",
	"Attachment heuristics (macro docs, archives, executables)",
	"Sender reputation & historical patterns",
}

// CompleteEvent is delivered to EngineHooks.OnComplete after each assessment.
type CompleteEvent struct {
	Severity      Severity
	LocalScore    int
	CombinedScore int
	Indicators    int
	Enriched      bool
	Duration      float64
}

// EngineHooks lets callers observe the engine without coupling it to a metrics backend.
// Nil fields are ignored.
type EngineHooks struct {
	OnEnrichment func(outcome string, duration float64)
	OnComplete   func(e *CompleteEvent)
}

// EngineConfig controls optional enrichment.
type EngineConfig struct {
	// Enricher is consulted only when non-nil.
	Enricher      Enricher
	EnrichTimeout time.Duration
}

// Engine scores messages. It holds no per-request state and is safe for
// concurrent use.
type Engine struct {
	enricher      Enricher
	enrichTimeout time.Duration
	logger        log.Logger
	hooks         EngineHooks
}

// NewEngine creates a new triage engine.
func NewEngine(cfg EngineConfig, logger log.Logger, hooks EngineHooks) *Engine {
	if logger == nil {
		logger = log.Nop()
	}
	timeout := cfg.EnrichTimeout
	if timeout <= 0 {
		timeout = DefaultEnrichTimeout
	}
	return &Engine{
		enricher:      cfg.Enricher,
		enrichTimeout: timeout,
		logger:        logger,
		hooks:         hooks,
	}
}

// Analyze runs the local heuristics only.
func Analyze(in Input) Assessment {
	indicators := Extract(in)
	score := Score(indicators)
	return Assessment{
		Indicators:     indicators,
		RiskScore:      score,
		Classification: Classify(score, in.Kind),
	}
}

// Assess produces a full triage report for a message. Enrichment failures are
// logged and degrade to the local result; Assess itself never fails.
func (e *Engine) Assess(ctx context.Context, in Input) *Report {
	start := time.Now()
	id := ulid.Make().String()

	ctx, span := tracer.Start(ctx, "triage.Assess", trace.WithAttributes(
		attribute.String("apex.triage.id", id),
	))
	defer span.End()

	L := e.logger.With("triage_id", id)

	local := Analyze(in)
	enrichment := e.enrich(ctx, L, in)
	combined := Merge(local, enrichment)
	tier := TierFor(combined.RiskScore)

	report := &Report{
		ID:         id,
		Enrichment: enrichment,
		Structured: Structured{
			Classification:  combined.Classification,
			RiskScore:       combined.RiskScore,
			Severity:        tier,
			Indicators:      combined.Indicators,
			Checks:          append([]string(nil), checks...),
			Notes:           truncateRunes(in.Details, maxNotesLen),
			Recommendations: Recommend(combined.RiskScore),
		},
	}
	if report.Structured.Indicators == nil {
		report.Structured.Indicators = []Indicator{}
	}
	report.Summary = renderSummary(in, report)

	span.SetAttributes(
		attribute.Int("apex.triage.local_score", local.RiskScore),
		attribute.Int("apex.triage.risk_score", combined.RiskScore),
		attribute.String("apex.triage.severity", string(tier)),
	)

	dur := time.Since(start).Seconds()
	L.Info(ctx, "triage complete",
		"classification", combined.Classification,
		"local_score", local.RiskScore,
		"risk_score", combined.RiskScore,
		"severity", tier,
		"indicators", len(combined.Indicators),
		"enriched", enrichment != nil,
		"duration", dur,
	)

	if e.hooks.OnComplete != nil {
		e.hooks.OnComplete(&CompleteEvent{
			Severity:      tier,
			LocalScore:    local.RiskScore,
			CombinedScore: combined.RiskScore,
			Indicators:    len(combined.Indicators),
			Enriched:      enrichment != nil,
			Duration:      dur,
		})
	}

	return report
}

// enrich makes the best-effort external call. It returns nil when enrichment is
// disabled, the message is incomplete, or the call fails in any way.
func (e *Engine) enrich(ctx context.Context, L log.Logger, in Input) *Enrichment {
	if e.enricher == nil || in.Subject == "" || in.Sender == "" || in.Details == "" {
		e.observeEnrichment(EnrichSkipped, 0)
		return nil
	}

	ctx, cancel := context.WithTimeout(ctx, e.enrichTimeout)
	defer cancel()

	start := time.Now()
	out, err := analyzeRecovered(ctx, e.enricher, in)
	dur := time.Since(start).Seconds()
	if err != nil {
		L.Warn(ctx, "enrichment failed, using local result", "error", err, "duration", dur)
		e.observeEnrichment(EnrichError, dur)
		return nil
	}
	if err := out.Validate(); err != nil {
		L.Warn(ctx, "enrichment rejected, using local result", "error", err)
		e.observeEnrichment(EnrichInvalid, dur)
		return nil
	}

	e.observeEnrichment(EnrichOK, dur)
	return out
}

// analyzeRecovered converts a panic in the enricher into an error so the
// report falls back to the local result.
func analyzeRecovered(ctx context.Context, enr Enricher, in Input) (out *Enrichment, err error) {
	defer func() {
		if rec := recover(); rec != nil {
			out, err = nil, fmt.Errorf("%w: %v", ErrEnricherPanic, rec)
		}
	}()
	return enr.AnalyzeThreat(ctx, in.Subject, in.Sender, in.Details)
}

func (e *Engine) observeEnrichment(outcome string, dur float64) {
	if e.hooks.OnEnrichment != nil {
		e.hooks.OnEnrichment(outcome, dur)
	}
}

// truncateRunes shortens s to at most limit runes.
func truncateRunes(s string, limit int) string {
	n := 0
	for i := range s {
		if n == limit {
			return s[:i]
		}
		n++
	}
	return s
}
