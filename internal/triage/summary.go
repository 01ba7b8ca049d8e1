package triage

import (
	"fmt"
	"strings"
)

func orNA(s string) string {
	if s == "" {
		return "N/A"
	}
	return s
}

// renderSummary builds the human-readable report text.
func renderSummary(in Input, r *Report) string {
	var b strings.Builder
	s := r.Structured

	fmt.Fprintf(&b, "APEX triage for: %s\nSubject: %s\nSender: %s\n\n", s.Classification, orNA(in.Subject), orNA(in.Sender))

	if len(s.Indicators) > 0 {
		b.WriteString("🚨 THREAT INDICATORS DETECTED:\n\n")
		for i, ind := range s.Indicators {
			fmt.Fprintf(&b, "%d. [%s] %s\n", i+1, ind.Severity, ind.Description)
		}
		b.WriteString("\n")
	}

	if e := r.Enrichment; e != nil {
		fmt.Fprintf(&b, "External intelligence: %s (score %d/100", orNA(e.ThreatType), e.Score())
		if e.Recommendation != "" {
			fmt.Fprintf(&b, ", recommendation: %s", e.Recommendation)
		}
		b.WriteString(")\n\n")
	}

	fmt.Fprintf(&b, "Risk Score: %d/100 (%s)\n\n", s.RiskScore, s.Severity)

	b.WriteString("Primary findings:\n")
	for _, c := range s.Checks {
		fmt.Fprintf(&b, "- %s\n", c)
	}

	fmt.Fprintf(&b, "\nNotes:\n%s\n\n", s.Notes)

	writeRecommendations(&b, s.Recommendations)
	return b.String()
}

func writeRecommendations(b *strings.Builder, r Recommendations) {
	if len(r.General) > 0 {
		b.WriteString("Recommendation:\n")
		writeBullets(b, r.General)
		return
	}

	b.WriteString("⚠️ IMMEDIATE ACTIONS REQUIRED:\n\n")
	sections := []struct {
		title string
		items []string
	}{
		{"🔴 CRITICAL (Within 1 hour):", r.Critical},
		{"🟡 SHORT-TERM (Within 24 hours):", r.ShortTerm},
		{"🟢 LONG-TERM:", r.LongTerm},
		{"⚠️ DO NOT:", r.DoNot},
	}
	for i, sec := range sections {
		if i > 0 {
			b.WriteString("\n")
		}
		b.WriteString(sec.title + "\n")
		writeBullets(b, sec.items)
	}
}

func writeBullets(b *strings.Builder, items []string) {
	for _, it := range items {
		b.WriteString("• " + it + "\n")
	}
}
