package triage

import "github.com/prometheus/client_golang/prometheus"

// Metrics holds Prometheus metrics for the triage subsystem.
type Metrics struct {
	TriagesTotal       *prometheus.CounterVec
	TriageDuration     prometheus.Histogram
	RiskScore          prometheus.Histogram
	ScoreUplift        prometheus.Histogram
	IndicatorsPerRun   prometheus.Histogram
	EnrichmentsTotal   *prometheus.CounterVec
	EnrichmentDuration prometheus.Histogram
	NotificationsTotal *prometheus.CounterVec
}

// NewMetrics registers and returns triage metrics on the given registerer.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		TriagesTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "apex_triages_total",
			Help: "Total triage runs by severity tier.",
		}, []string{"severity", "enriched"}),
		TriageDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "apex_triage_duration_seconds",
			Help:    "Duration of triage runs in seconds, including enrichment.",
			Buckets: prometheus.ExponentialBuckets(0.001, 4, 8), // 1ms .. ~16s
		}),
		RiskScore: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "apex_triage_risk_score",
			Help:    "Combined risk score per triage run.",
			Buckets: prometheus.LinearBuckets(0, 10, 11), // 0 .. 100
		}),
		ScoreUplift: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "apex_triage_enrichment_uplift",
			Help:    "Points added to the local score by enrichment.",
			Buckets: prometheus.LinearBuckets(0, 10, 11), // 0 .. 100
		}),
		IndicatorsPerRun: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "apex_triage_indicators",
			Help:    "Indicators reported per triage run.",
			Buckets: prometheus.LinearBuckets(0, 1, 12), // 0 .. 11
		}),
		EnrichmentsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "apex_enrichments_total",
			Help: "Enrichment attempts by outcome.",
		}, []string{"outcome"}),
		EnrichmentDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "apex_enrichment_duration_seconds",
			Help:    "Duration of enrichment calls in seconds.",
			Buckets: prometheus.ExponentialBuckets(0.05, 2, 10), // 50ms .. ~25s
		}),
		NotificationsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "apex_notifications_total",
			Help: "Triage notifications by result.",
		}, []string{"result"}),
	}

	reg.MustRegister(
		m.TriagesTotal,
		m.TriageDuration,
		m.RiskScore,
		m.ScoreUplift,
		m.IndicatorsPerRun,
		m.EnrichmentsTotal,
		m.EnrichmentDuration,
		m.NotificationsTotal,
	)

	return m
}

// Hooks returns an EngineHooks that updates the corresponding metrics.
func (m *Metrics) Hooks() EngineHooks {
	return EngineHooks{
		OnEnrichment: func(outcome string, duration float64) {
			m.EnrichmentsTotal.WithLabelValues(outcome).Inc()
			if outcome != EnrichSkipped {
				m.EnrichmentDuration.Observe(duration)
			}
		},
		OnComplete: func(e *CompleteEvent) {
			enriched := "false"
			if e.Enriched {
				enriched = "true"
			}
			m.TriagesTotal.WithLabelValues(string(e.Severity), enriched).Inc()
			m.TriageDuration.Observe(e.Duration)
			m.RiskScore.Observe(float64(e.CombinedScore))
			m.ScoreUplift.Observe(float64(e.CombinedScore - e.LocalScore))
			m.IndicatorsPerRun.Observe(float64(e.Indicators))
		},
	}
}

func (m *Metrics) observeNotify(err error) {
	result := "sent"
	if err != nil {
		result = "error"
	}
	m.NotificationsTotal.WithLabelValues(result).Inc()
}
