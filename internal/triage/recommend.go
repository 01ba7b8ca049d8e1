package triage

// Remediation catalog entries.
var (
	recCritical = []string{
		"Quarantine this message and all similar emails immediately",
		"Search for similar patterns: executive names from free email domains",
		"Alert the impersonated executive",
		"Notify all employees about active impersonation attempt",
		"DO NOT action any financial requests from this sender",
	}
	recShortTerm = []string{
		"Create transport rule: Block/flag executive names from external domains",
		"Enable external sender warnings for all inbound email",
		"Review and tighten DMARC policy (consider p=quarantine or p=reject)",
		"Check for any similar messages in the past 30 days",
	}
	recLongTerm = []string{
		"Implement executive impersonation protection rules",
		"Deploy anti-phishing training focused on BEC tactics",
		"Enable advanced threat protection features",
		"Establish out-of-band verification for financial requests",
	}
	recDoNot = []string{
		"Allow-list this sender",
		"Reply to this email",
		"Process any financial/payroll changes without verbal confirmation",
	}
	recModerate = []string{
		"Review message for additional suspicious indicators",
		"Verify sender authenticity through alternate channel (phone call)",
		"Monitor for similar patterns",
		"Consider adding sender verification rules",
		"If suspicious: quarantine similar messages, tighten policy, notify users",
		"If benign: add allow-list rule with scope/time-bound review",
	}
	recBaseline = []string{
		recModerate[4],
		recModerate[5],
		"Monitor sender reputation and historical patterns",
	}
)

type recommendationBand int

const (
	bandBaseline recommendationBand = iota
	bandModerate
	bandImmediate
)

var recommendationCatalog = map[recommendationBand]Recommendations{
	bandImmediate: {
		Critical:  recCritical,
		ShortTerm: recShortTerm,
		LongTerm:  recLongTerm,
		DoNot:     recDoNot,
	},
	bandModerate: {General: recModerate},
	bandBaseline: {General: recBaseline},
}

func bandFor(score int) recommendationBand {
	switch {
	case score >= 50:
		return bandImmediate
	case score >= 30:
		return bandModerate
	}
	return bandBaseline
}

// Recommend selects the remediation set for a combined score. The returned
// lists are copies and may be modified by the caller.
func Recommend(combinedScore int) Recommendations {
	r := recommendationCatalog[bandFor(combinedScore)]
	return Recommendations{
		Critical:  clone(r.Critical),
		ShortTerm: clone(r.ShortTerm),
		LongTerm:  clone(r.LongTerm),
		DoNot:     clone(r.DoNot),
		General:   clone(r.General),
	}
}

func clone(s []string) []string {
	if s == nil {
		return nil
	}
	return append([]string(nil), s...)
}
