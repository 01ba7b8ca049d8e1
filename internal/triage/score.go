package triage

// Points contributed by each local rule.
const (
	pointsDisplayNameSpoofing = 40
	pointsFinancialWithSpoof  = 35
	pointsFinancialStandalone = 20
	pointsUrgencyTactics      = 15
	pointsDomainMismatch      = 10
	maxRiskScore              = 100
	minRiskScore              = 0
)

// Score sums the point table over the fired local indicators and clamps the
// result to [0,100]. Indicators with unknown keys contribute nothing.
func Score(indicators []Indicator) int {
	spoofing := false
	for _, ind := range indicators {
		if ind.Key == KeyDisplayNameSpoofing && ind.Detected {
			spoofing = true
		}
	}

	total := 0
	for _, ind := range indicators {
		if !ind.Detected {
			continue
		}
		switch ind.Key {
		case KeyDisplayNameSpoofing:
			total += pointsDisplayNameSpoofing
		case KeyFinancialRequest:
			if spoofing {
				total += pointsFinancialWithSpoof
			} else {
				total += pointsFinancialStandalone
			}
		case KeyUrgencyTactics:
			total += pointsUrgencyTactics
		case KeyDomainMismatch:
			total += pointsDomainMismatch
		}
	}
	return ClampScore(total)
}

// ClampScore bounds a score to [0,100].
func ClampScore(score int) int {
	switch {
	case score < minRiskScore:
		return minRiskScore
	case score > maxRiskScore:
		return maxRiskScore
	}
	return score
}
