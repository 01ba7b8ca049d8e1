package triage

// Severity is the tier attached to an indicator or to a whole assessment.
type Severity string

const (
	SeverityCritical Severity = "CRITICAL"
	SeverityHigh     Severity = "HIGH"
	SeverityMedium   Severity = "MEDIUM"
	SeverityLow      Severity = "LOW"
)

// Input is a suspected malicious message as submitted for triage.
// Missing fields are empty strings, never an error.
type Input struct {
	Kind    string `json:"kind,omitempty"`
	Subject string `json:"subject,omitempty"`
	Sender  string `json:"sender,omitempty"`
	Details string `json:"details,omitempty"`
}

// Indicator is a single fired detection rule.
type Indicator struct {
	Key         string   `json:"key"`
	Detected    bool     `json:"detected"`
	Severity    Severity `json:"severity"`
	Description string   `json:"description"`
}

// Assessment is the scored verdict for one message. Indicators are kept in
// evaluation order and keys are unique; use Lookup for keyed access.
type Assessment struct {
	Indicators     []Indicator `json:"indicators"`
	RiskScore      int         `json:"riskScore"`
	Classification string      `json:"classification"`
}

// Lookup returns the indicator with the given key.
func (a Assessment) Lookup(key string) (Indicator, bool) {
	for _, ind := range a.Indicators {
		if ind.Key == key {
			return ind, true
		}
	}
	return Indicator{}, false
}

// Recommendations is the remediation guidance for a severity tier.
// Only the categories that apply to the tier are populated.
type Recommendations struct {
	Critical  []string `json:"critical,omitempty"`
	ShortTerm []string `json:"shortTerm,omitempty"`
	LongTerm  []string `json:"longTerm,omitempty"`
	DoNot     []string `json:"doNot,omitempty"`
	General   []string `json:"general,omitempty"`
}

// Structured is the machine-readable part of a triage report.
type Structured struct {
	Classification  string          `json:"classification"`
	RiskScore       int             `json:"riskScore"`
	Severity        Severity        `json:"severity"`
	Indicators      []Indicator     `json:"indicators"`
	Checks          []string        `json:"checks"`
	Notes           string          `json:"notes"`
	Recommendations Recommendations `json:"recommendations"`
}

// Report is the outcome of a triage run.
type Report struct {
	ID         string      `json:"id"`
	Summary    string      `json:"summary"`
	Structured Structured  `json:"structured"`
	Enrichment *Enrichment `json:"-"`
}
