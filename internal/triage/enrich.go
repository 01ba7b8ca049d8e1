package triage

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strings"
)

// Enricher is an external threat-intelligence service consulted during triage.
// Implementations may fail in any way; failures are treated as no enrichment.
type Enricher interface {
	AnalyzeThreat(ctx context.Context, subject, sender, body string) (*Enrichment, error)
}

// Enrichment is an untrusted external analysis of a message.
type Enrichment struct {
	ThreatScore    float64  `json:"threat_score"`
	ThreatType     string   `json:"threat_type,omitempty"`
	Severity       string   `json:"severity,omitempty"`
	Indicators     []string `json:"indicators,omitempty"`
	Recommendation string   `json:"recommendation,omitempty"`
}

// ErrInvalidEnrichment is returned by Validate for payloads that cannot be merged.
var ErrInvalidEnrichment = errors.New("invalid enrichment")

// enrichmentKeyPrefix namespaces externally sourced indicators away from local rule keys.
const enrichmentKeyPrefix = "mcp_indicator_"

// Validate reports whether the enrichment can be merged. Out-of-range scores
// are accepted and clamped by Merge; non-finite scores are not.
func (e *Enrichment) Validate() error {
	if e == nil {
		return fmt.Errorf("%w: nil", ErrInvalidEnrichment)
	}
	if math.IsNaN(e.ThreatScore) || math.IsInf(e.ThreatScore, 0) {
		return fmt.Errorf("%w: threat_score %v is not finite", ErrInvalidEnrichment, e.ThreatScore)
	}
	return nil
}

// Score converts the external threat score to the 0..100 scale, clamping the
// producer's value to [0,1] first.
func (e *Enrichment) Score() int {
	s := math.Max(0, math.Min(1, e.ThreatScore))
	return int(math.Round(s * 100))
}

// mapSeverity converts the external severity vocabulary to a tier.
func mapSeverity(s string) Severity {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "critical":
		return SeverityCritical
	case "high":
		return SeverityHigh
	case "medium":
		return SeverityMedium
	}
	return SeverityLow
}

// Merge combines a local assessment with an optional enrichment. The combined
// score is never lower than the local one and local indicators are always kept.
// A nil or invalid enrichment yields a copy of the local assessment.
func Merge(local Assessment, e *Enrichment) Assessment {
	out := Assessment{
		Indicators:     append([]Indicator(nil), local.Indicators...),
		RiskScore:      ClampScore(local.RiskScore),
		Classification: local.Classification,
	}
	if e.Validate() != nil {
		return out
	}

	if s := e.Score(); s > out.RiskScore {
		out.RiskScore = s
	}

	taken := make(map[string]struct{}, len(out.Indicators)+len(e.Indicators))
	for _, ind := range out.Indicators {
		taken[ind.Key] = struct{}{}
	}

	sev := mapSeverity(e.Severity)
	for i, desc := range e.Indicators {
		n := i
		key := fmt.Sprintf("%s%d", enrichmentKeyPrefix, n)
		for {
			if _, dup := taken[key]; !dup {
				break
			}
			n++
			key = fmt.Sprintf("%s%d", enrichmentKeyPrefix, n)
		}
		taken[key] = struct{}{}
		out.Indicators = append(out.Indicators, Indicator{
			Key:         key,
			Detected:    true,
			Severity:    sev,
			Description: desc,
		})
	}
	return out
}
