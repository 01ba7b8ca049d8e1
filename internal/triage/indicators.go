package triage

import (
	"fmt"
	"strings"
)

// Indicator keys produced by the local rules, in evaluation order.
const (
	KeyDisplayNameSpoofing = "displayNameSpoofing"
	KeyFinancialRequest    = "financialRequest"
	KeyUrgencyTactics      = "urgencyTactics"
	KeyDomainMismatch      = "domainMismatch"
)

var (
	executiveTitles = []string{
		"ceo", "cfo", "coo", "cto", "president", "director", "vp", "vice president", "executive", "chief",
	}
	financialKeywords = []string{
		"payroll", "wire transfer", "payment", "invoice", "bank", "account", "w-2", "w2",
		"tax form", "direct deposit", "salary", "bonus", "gift card",
	}
	urgencyKeywords = []string{
		"urgent", "asap", "immediately", "right now", "today", "quickly", "emergency",
	}
	freeEmailDomains = []string{
		"gmail.com", "yahoo.com", "hotmail.com", "outlook.com", "aol.com", "protonmail.com", "mail.com",
	}
)

// normalized holds the lower-cased message fields the rules match against.
type normalized struct {
	subject string
	sender  string
	details string
}

func normalize(in Input) normalized {
	return normalized{
		subject: strings.ToLower(in.Subject),
		sender:  strings.ToLower(in.Sender),
		details: strings.ToLower(in.Details),
	}
}

// firstIn returns the first term contained in any of the given fields.
func firstIn(terms []string, fields ...string) (string, bool) {
	for _, term := range terms {
		for _, f := range fields {
			if strings.Contains(f, term) {
				return term, true
			}
		}
	}
	return "", false
}

// allIn returns every term contained in any of the given fields, in lexicon order.
func allIn(terms []string, fields ...string) []string {
	var out []string
	for _, term := range terms {
		for _, f := range fields {
			if strings.Contains(f, term) {
				out = append(out, term)
				break
			}
		}
	}
	return out
}

// Extract evaluates the detection rules against a message and returns the
// indicators that fired, in rule order. It never fails.
func Extract(in Input) []Indicator {
	n := normalize(in)
	var out []Indicator

	_, hasExecutive := firstIn(executiveTitles, n.subject, n.sender, n.details)
	domain, hasFreeMail := firstIn(freeEmailDomains, n.sender, n.details)

	spoofing := hasExecutive && hasFreeMail
	if spoofing {
		out = append(out, Indicator{
			Key:      KeyDisplayNameSpoofing,
			Detected: true,
			Severity: SeverityCritical,
			Description: fmt.Sprintf(
				"Executive impersonation detected: Executive title referenced but sender uses consumer email domain (%s)", domain),
		})
	}

	matched := allIn(financialKeywords, n.subject, n.details)
	financial := len(matched) > 0
	if financial {
		sev := SeverityHigh
		if spoofing {
			sev = SeverityCritical
		}
		out = append(out, Indicator{
			Key:         KeyFinancialRequest,
			Detected:    true,
			Severity:    sev,
			Description: "Financial/payroll request detected: " + strings.Join(matched, ", "),
		})
	}

	escalated := spoofing || financial

	if _, urgent := firstIn(urgencyKeywords, n.subject, n.details); urgent && escalated {
		out = append(out, Indicator{
			Key:         KeyUrgencyTactics,
			Detected:    true,
			Severity:    SeverityHigh,
			Description: "Urgency language combined with executive/financial context - common social engineering tactic",
		})
	}

	if strings.Contains(n.details, "gmail") && escalated {
		out = append(out, Indicator{
			Key:         KeyDomainMismatch,
			Detected:    true,
			Severity:    SeverityHigh,
			Description: "Email claims to be from internal executive but uses external consumer email service",
		})
	}

	return out
}
