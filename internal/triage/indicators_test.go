package triage

import (
	"strings"
	"testing"
)

func keys(inds []Indicator) []string {
	out := make([]string, len(inds))
	for i, ind := range inds {
		out[i] = ind.Key
	}
	return out
}

func TestExtract_ExecutiveWireTransfer(t *testing.T) {
	t.Parallel()

	in := Input{
		Subject: "URGENT wire transfer",
		Sender:  "ceo@gmail.com",
		Details: "Please process this wire transfer today, CEO request",
	}
	a := Analyze(in)

	want := []string{KeyDisplayNameSpoofing, KeyFinancialRequest, KeyUrgencyTactics}
	got := keys(a.Indicators)
	if strings.Join(got, ",") != strings.Join(want, ",") {
		t.Fatalf("indicator keys = %v, want %v", got, want)
	}

	fin, ok := a.Lookup(KeyFinancialRequest)
	if !ok {
		t.Fatal("financialRequest not found")
	}
	if fin.Severity != SeverityCritical {
		t.Errorf("financialRequest severity = %s, want CRITICAL", fin.Severity)
	}
	if !strings.Contains(fin.Description, "wire transfer") {
		t.Errorf("financialRequest description = %q, want matched keyword listed", fin.Description)
	}

	spoof, _ := a.Lookup(KeyDisplayNameSpoofing)
	if !strings.Contains(spoof.Description, "gmail.com") {
		t.Errorf("spoofing description = %q, want domain named", spoof.Description)
	}

	if a.RiskScore != 90 {
		t.Errorf("RiskScore = %d, want 90", a.RiskScore)
	}
	if !strings.Contains(a.Classification, "Likely BEC/Phishing Attack") {
		t.Errorf("Classification = %q, want Likely BEC/Phishing Attack", a.Classification)
	}
}

func TestExtract_EmptyInput(t *testing.T) {
	t.Parallel()

	a := Analyze(Input{})
	if len(a.Indicators) != 0 {
		t.Errorf("indicators = %v, want none", keys(a.Indicators))
	}
	if a.RiskScore != 0 {
		t.Errorf("RiskScore = %d, want 0", a.RiskScore)
	}
	if a.Classification != ClassUnknown {
		t.Errorf("Classification = %q, want %q", a.Classification, ClassUnknown)
	}
}

func TestExtract_Rules(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name  string
		in    Input
		want  []string
		score int
	}{
		{
			name:  "executive title without free mail",
			in:    Input{Subject: "note from the CFO", Sender: "cfo@corp.example"},
			want:  []string{},
			score: 0,
		},
		{
			name:  "free mail without executive title",
			in:    Input{Subject: "hello", Sender: "bob@yahoo.com"},
			want:  []string{},
			score: 0,
		},
		{
			name:  "standalone financial request",
			in:    Input{Subject: "Updated invoice attached", Sender: "ap@vendor.example"},
			want:  []string{KeyFinancialRequest},
			score: 20,
		},
		{
			name:  "urgency alone does not fire",
			in:    Input{Subject: "URGENT: lunch today", Sender: "friend@corp.example"},
			want:  []string{},
			score: 0,
		},
		{
			name:  "urgency with financial context",
			in:    Input{Subject: "invoice due immediately", Sender: "ap@vendor.example"},
			want:  []string{KeyFinancialRequest, KeyUrgencyTactics},
			score: 35,
		},
		{
			name:  "gmail in details alone does not fire",
			in:    Input{Details: "my gmail is full"},
			want:  []string{},
			score: 0,
		},
		{
			name:  "gmail in details with financial context",
			in:    Input{Subject: "payroll update", Details: "reply to my gmail address"},
			want:  []string{KeyFinancialRequest, KeyDomainMismatch},
			score: 30,
		},
		{
			name: "every rule",
			in: Input{
				Subject: "Urgent payroll change",
				Sender:  "President <pres@gmail.com>",
				Details: "Send the direct deposit form to my gmail asap",
			},
			want:  []string{KeyDisplayNameSpoofing, KeyFinancialRequest, KeyUrgencyTactics, KeyDomainMismatch},
			score: 100,
		},
		{
			name:  "financial keyword in sender is ignored",
			in:    Input{Sender: "payroll@corp.example"},
			want:  []string{},
			score: 0,
		},
		{
			name:  "matching is case insensitive",
			in:    Input{Subject: "GIFT CARD request", Sender: "CHIEF@HOTMAIL.COM"},
			want:  []string{KeyDisplayNameSpoofing, KeyFinancialRequest},
			score: 75,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			a := Analyze(tt.in)
			got := keys(a.Indicators)
			if strings.Join(got, ",") != strings.Join(tt.want, ",") {
				t.Errorf("keys = %v, want %v", got, tt.want)
			}
			if a.RiskScore != tt.score {
				t.Errorf("RiskScore = %d, want %d", a.RiskScore, tt.score)
			}
			for _, ind := range a.Indicators {
				if !ind.Detected {
					t.Errorf("indicator %s reported but not detected", ind.Key)
				}
				if ind.Description == "" {
					t.Errorf("indicator %s has empty description", ind.Key)
				}
			}
		})
	}
}

func TestExtract_FinancialSeverityFollowsSpoofing(t *testing.T) {
	t.Parallel()

	standalone := Analyze(Input{Subject: "bank details"})
	ind, ok := standalone.Lookup(KeyFinancialRequest)
	if !ok || ind.Severity != SeverityHigh {
		t.Errorf("standalone financial = %+v, want HIGH", ind)
	}

	escalated := Analyze(Input{Subject: "bank details", Sender: "director@aol.com"})
	ind, ok = escalated.Lookup(KeyFinancialRequest)
	if !ok || ind.Severity != SeverityCritical {
		t.Errorf("escalated financial = %+v, want CRITICAL", ind)
	}
}

func TestExtract_KeysUnique(t *testing.T) {
	t.Parallel()

	a := Analyze(Input{
		Subject: "URGENT wire transfer payroll bank invoice",
		Sender:  "ceo@gmail.com",
		Details: "gmail gmail today today payment payment",
	})
	seen := map[string]bool{}
	for _, ind := range a.Indicators {
		if seen[ind.Key] {
			t.Errorf("duplicate key %s", ind.Key)
		}
		seen[ind.Key] = true
	}
}
