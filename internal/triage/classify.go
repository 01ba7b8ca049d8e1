package triage

// Classification labels, highest urgency first.
const (
	ClassLikelyBEC         = "🚨 SUSPICIOUS - Likely BEC/Phishing Attack"
	ClassSocialEngineering = "⚠️ SUSPICIOUS - Potential Social Engineering"
	ClassReviewRequired    = "⚡ REVIEW REQUIRED - Suspicious Patterns Detected"
	ClassUnknown           = "N/A"
)

// Classify maps a heuristic score to a human-readable label. Below the review
// threshold the caller-supplied kind is passed through verbatim.
func Classify(score int, kind string) string {
	switch {
	case score >= 50:
		return ClassLikelyBEC
	case score >= 30:
		return ClassSocialEngineering
	case score >= 15:
		return ClassReviewRequired
	case kind != "":
		return kind
	}
	return ClassUnknown
}

// TierFor derives the severity tier from a combined score.
func TierFor(score int) Severity {
	switch {
	case score >= 70:
		return SeverityCritical
	case score >= 50:
		return SeverityHigh
	case score >= 30:
		return SeverityMedium
	}
	return SeverityLow
}

// Rank orders severities for comparison, higher is more urgent.
func (s Severity) Rank() int {
	switch s {
	case SeverityCritical:
		return 4
	case SeverityHigh:
		return 3
	case SeverityMedium:
		return 2
	case SeverityLow:
		return 1
	}
	return 0
}
