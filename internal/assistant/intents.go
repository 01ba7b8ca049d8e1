package assistant

import (
	"fmt"
	"strings"
	"time"
)

// Routes reported in Reply.Status and to hooks.
const (
	RouteOnboarding  = "onboarding"
	RouteCampaign    = "campaign"
	RouteCampaigns   = "campaigns"
	RoutePhishing    = "phishing"
	RouteInvestigate = "investigate"
	RoutePosture     = "posture"
	RouteTrend       = "trend"
	RouteStatus      = "status"
	RouteProvider    = "provider"
	RouteHelp        = "help"
)

const onboardingReply = `Welcome to APEX. There is no scan data for your organization yet.

Connect a mailbox or forward a suspicious message to start building your security dashboard. Once messages have been scanned I can walk you through threats, campaigns and your security posture.`

const helpReply = `I can help you with:

🔍 **Threat Investigation**
• "Investigate today's top threat"
• "What's the highest risk right now?"
• "Show me active campaigns"

🛡️ **Security Posture**
• "How can I improve our security?"
• "What's our current security score?"
• "How much phishing are we seeing?"

📊 **Risk Analysis**
• "Summarize 30-day risk trends"
• "What's our protection rate?"
• "Show me threat statistics"

Try asking: "What's our security score?"`

// intent is a keyword rule answered from the snapshot without an external call.
type intent struct {
	route  string
	match  func(q string, s *Snapshot) bool
	render func(q string, s *Snapshot) string
}

// intents are evaluated in order, first match wins.
var intents = []intent{
	{RouteCampaign, hasNamedCampaign, renderCampaign},
	{RouteCampaigns, containsAny("campaign", "active", "ongoing"), renderCampaigns},
	{RoutePhishing, containsAny("phishing"), renderPhishing},
	{RouteInvestigate, containsAny("investigate", "threat"), renderInvestigate},
	{RoutePosture, containsAny("posture", "improve"), renderPosture},
	{RouteTrend, containsAny("trend", "summary", "risk"), renderTrend},
	{RouteStatus, containsAny("score", "status"), renderStatus},
}

func containsAny(words ...string) func(string, *Snapshot) bool {
	return func(q string, _ *Snapshot) bool {
		for _, w := range words {
			if strings.Contains(q, w) {
				return true
			}
		}
		return false
	}
}

// matchIntent returns the first intent whose predicate accepts the lower-cased query.
func matchIntent(q string, s *Snapshot) (intent, bool) {
	for _, in := range intents {
		if in.match(q, s) {
			return in, true
		}
	}
	return intent{}, false
}

// namedCampaign finds a campaign whose name appears in the query. Longer names
// win so "Invoice Wave 2" is preferred over "Invoice Wave".
func namedCampaign(q string, s *Snapshot) (Campaign, bool) {
	var best Campaign
	found := false
	for _, c := range s.Campaigns {
		name := strings.ToLower(strings.TrimSpace(c.Name))
		if name == "" || !strings.Contains(q, name) {
			continue
		}
		if !found || len(c.Name) > len(best.Name) {
			best, found = c, true
		}
	}
	return best, found
}

func hasNamedCampaign(q string, s *Snapshot) bool {
	_, ok := namedCampaign(q, s)
	return ok
}

func renderCampaign(q string, s *Snapshot) string {
	c, _ := namedCampaign(q, s)
	var b strings.Builder
	fmt.Fprintf(&b, "Campaign: %q\n\n", c.Name)
	fmt.Fprintf(&b, "• Status: %s\n", orUnknown(c.Status))
	fmt.Fprintf(&b, "• Threats attributed: %d\n", c.ThreatCount)
	if !c.FirstSeen.IsZero() {
		fmt.Fprintf(&b, "• First seen: %s\n", c.FirstSeen.UTC().Format(time.DateOnly))
	}
	b.WriteString("\nRecommended actions:\n")
	if c.Active() {
		b.WriteString("1) Auto-quarantine messages matching this campaign\n")
		b.WriteString("2) Block sender infrastructure tied to the campaign\n")
		b.WriteString("3) Notify targeted users\n")
	} else {
		b.WriteString("1) Keep detection rules for this campaign enabled\n")
		b.WriteString("2) Review quarantined messages for false positives\n")
	}
	return b.String()
}

func renderCampaigns(_ string, s *Snapshot) string {
	active := s.activeCampaigns()
	if len(active) == 0 {
		return fmt.Sprintf("No active campaigns right now. %d campaign(s) tracked in total.", len(s.Campaigns))
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Active campaigns (%d):\n\n", len(active))
	for _, c := range active {
		fmt.Fprintf(&b, "• %s: %d threats", c.Name, c.ThreatCount)
		if !c.FirstSeen.IsZero() {
			fmt.Fprintf(&b, " since %s", c.FirstSeen.UTC().Format(time.DateOnly))
		}
		b.WriteString("\n")
	}
	b.WriteString("\nAsk about a campaign by name for details.")
	return b.String()
}

func renderPhishing(_ string, s *Snapshot) string {
	var b strings.Builder
	b.WriteString("Phishing overview:\n\n")

	matched := 0
	for _, t := range s.AIThreats {
		if strings.Contains(strings.ToLower(t.Type), "phish") {
			fmt.Fprintf(&b, "• %s: %d incidents\n", t.Type, t.Count)
			matched++
		}
	}
	for _, f := range s.ThreatFamilies {
		if strings.Contains(strings.ToLower(f.Name), "phish") {
			fmt.Fprintf(&b, "• %s: %d incidents (%s)\n", f.Name, f.Count, orUnknown(f.Trend))
			matched++
		}
	}
	if matched == 0 {
		b.WriteString("• No phishing-specific detections recorded\n")
	}

	fmt.Fprintf(&b, "\nQuarantined: %d of %d scanned messages\n", s.Quarantined, s.TotalScanned)
	fmt.Fprintf(&b, "Protection Rate: %s\n", percent(s.ProtectionRate))
	b.WriteString("\nRecommended actions:\n")
	b.WriteString("1) Enforce DMARC p=reject on all sending domains\n")
	b.WriteString("2) Run a phishing simulation for the most targeted teams\n")
	b.WriteString("3) Review the triage queue for reported messages")
	return b.String()
}

func renderInvestigate(_ string, s *Snapshot) string {
	if len(s.AIThreats) == 0 {
		return fmt.Sprintf("No AI threats recorded. Current Security Score: %d/100.", s.SecurityScore)
	}
	top := s.AIThreats[0]

	var b strings.Builder
	b.WriteString("Top threat today:\n")
	fmt.Fprintf(&b, "• Campaign: %q\n", top.Type)
	fmt.Fprintf(&b, "• Volume: %d incidents detected\n", top.Count)
	fmt.Fprintf(&b, "• Total AI threats: %d across %d categories\n", s.totalAIThreats(), len(s.AIThreats))
	fmt.Fprintf(&b, "• Current Security Score: %d/100\n\n", s.SecurityScore)
	b.WriteString("Recommended actions:\n")
	b.WriteString("1) Auto-quarantine similar messages (rule recommended)\n")
	fmt.Fprintf(&b, "2) Review %s patterns for false positives\n", top.Type)
	b.WriteString("3) Block identified malicious domains\n")
	b.WriteString("4) Notify security team of emerging threat pattern\n\n")
	fmt.Fprintf(&b, "Response Time: %s\n", minutes(s.ResponseTime))
	fmt.Fprintf(&b, "False Positive Rate: %s", percent(s.FalsePositiveRate))
	return b.String()
}

func renderPosture(_ string, s *Snapshot) string {
	var b strings.Builder
	b.WriteString("Posture improvements (prioritized):\n\n")
	b.WriteString("Current Status:\n")
	fmt.Fprintf(&b, "• Security Score: %d/100\n", s.SecurityScore)
	fmt.Fprintf(&b, "• Protection Rate: %s\n", percent(s.ProtectionRate))
	fmt.Fprintf(&b, "• Response Time: %s\n", minutes(s.ResponseTime))
	fmt.Fprintf(&b, "• False Positives: %s\n\n", percent(s.FalsePositiveRate))

	b.WriteString("Top Recommendations:\n")
	b.WriteString("1) DMARC enforcement: Move to p=reject policy\n")
	b.WriteString("2) MFA coverage: Enable for remaining admin accounts\n")
	fmt.Fprintf(&b, "3) Response time: Target <2m (current: %s)\n", minutes(s.ResponseTime))
	if len(s.AIThreats) > 0 {
		fmt.Fprintf(&b, "4) AI threat monitoring: Focus on %s (%d recent)\n", s.AIThreats[0].Type, s.AIThreats[0].Count)
	} else {
		b.WriteString("4) AI threat monitoring: Keep detection rules current\n")
	}
	fmt.Fprintf(&b, "5) Reduce false positives: Current %s → target <0.5%%\n\n", percent(s.FalsePositiveRate))

	b.WriteString("Quick wins:\n")
	b.WriteString("• Enable additional email authentication checks\n")
	b.WriteString("• Update endpoint protection policies\n")
	b.WriteString("• Review and tune detection rules")
	return b.String()
}

func renderTrend(_ string, s *Snapshot) string {
	rating := "Needs Improvement"
	if s.SecurityScore > 80 {
		rating = "Good"
	}

	var b strings.Builder
	b.WriteString("Risk trend (last 30 days):\n\n")
	b.WriteString("Overall Metrics:\n")
	fmt.Fprintf(&b, "• Security Score: %d/100 (%s)\n", s.SecurityScore, rating)
	fmt.Fprintf(&b, "• Total incidents: %d\n", s.totalIncidents())
	fmt.Fprintf(&b, "• Protection Rate: %s\n", percent(s.ProtectionRate))
	fmt.Fprintf(&b, "• Mean time to respond: %s\n", minutes(s.ResponseTime))
	fmt.Fprintf(&b, "• False positives: %s\n", percent(s.FalsePositiveRate))

	if len(s.ThreatFamilies) > 0 {
		b.WriteString("\nThreat Breakdown:\n")
		for _, f := range s.ThreatFamilies[:min(4, len(s.ThreatFamilies))] {
			fmt.Fprintf(&b, "• %s: %d incidents (%s)\n", f.Name, f.Count, orUnknown(f.Trend))
		}
		top := s.ThreatFamilies[0]
		b.WriteString("\nTop Risk:\n")
		fmt.Fprintf(&b, "• %s: %d incidents (%s)\n", top.Name, top.Count, orUnknown(top.Trend))
	}

	b.WriteString("\nNotable insights:\n")
	fmt.Fprintf(&b, "• AI-generated threats seen across %d categories\n", len(s.AIThreats))
	fmt.Fprintf(&b, "• %d total AI-related incidents\n", s.totalAIThreats())
	fmt.Fprintf(&b, "• Protection effectiveness: %s", percent(s.ProtectionRate))
	return b.String()
}

func renderStatus(_ string, s *Snapshot) string {
	health := "🔴 Needs Attention"
	switch {
	case s.SecurityScore > 85:
		health = "🟢 Excellent"
	case s.SecurityScore > 70:
		health = "🟡 Good"
	}

	var b strings.Builder
	b.WriteString("Current Security Status:\n\n")
	fmt.Fprintf(&b, "📊 Cyber Security Score: %d/100\n", s.SecurityScore)
	fmt.Fprintf(&b, "🛡️ Protection Rate: %s\n", percent(s.ProtectionRate))
	fmt.Fprintf(&b, "⚡ Response Time: %s\n", minutes(s.ResponseTime))
	fmt.Fprintf(&b, "✅ False Positives: %s\n", percent(s.FalsePositiveRate))
	if len(s.AIThreats) > 0 {
		b.WriteString("\nRecent Activity:\n")
		for _, t := range s.AIThreats[:min(3, len(s.AIThreats))] {
			fmt.Fprintf(&b, "• %s: %d incidents\n", t.Type, t.Count)
		}
	}
	fmt.Fprintf(&b, "\nOverall Health: %s", health)
	return b.String()
}

// systemPrompt grounds a provider in the tenant's current numbers.
func systemPrompt(s *Snapshot) string {
	var b strings.Builder
	b.WriteString("You are the APEX security assistant for an email security platform. ")
	b.WriteString("Answer briefly and concretely, using only the metrics below when citing numbers.\n\n")
	fmt.Fprintf(&b, "Security score: %d/100\n", s.SecurityScore)
	fmt.Fprintf(&b, "Protection rate: %s\n", percent(s.ProtectionRate))
	fmt.Fprintf(&b, "Mean response time: %s\n", minutes(s.ResponseTime))
	fmt.Fprintf(&b, "False positive rate: %s\n", percent(s.FalsePositiveRate))
	fmt.Fprintf(&b, "Messages scanned: %d, quarantined: %d\n", s.TotalScanned, s.Quarantined)
	for _, t := range s.AIThreats {
		fmt.Fprintf(&b, "AI threat %s: %d\n", t.Type, t.Count)
	}
	for _, f := range s.ThreatFamilies {
		fmt.Fprintf(&b, "Threat family %s: %d (%s)\n", f.Name, f.Count, orUnknown(f.Trend))
	}
	for _, c := range s.Campaigns {
		fmt.Fprintf(&b, "Campaign %s: %s, %d threats\n", c.Name, orUnknown(c.Status), c.ThreatCount)
	}
	return b.String()
}

func percent(v float64) string {
	return fmt.Sprintf("%.1f%%", v)
}

func minutes(d time.Duration) string {
	return fmt.Sprintf("%.1fm", d.Minutes())
}

func orUnknown(s string) string {
	if s == "" {
		return "unknown"
	}
	return s
}
