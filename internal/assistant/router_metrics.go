package assistant

import "github.com/prometheus/client_golang/prometheus"

// Metrics holds Prometheus metrics for the assistant.
type Metrics struct {
	RepliesTotal       *prometheus.CounterVec
	ReplyDuration      prometheus.Histogram
	ProviderCallsTotal *prometheus.CounterVec
	ProviderDuration   *prometheus.HistogramVec
}

// NewMetrics registers and returns assistant metrics on the given registerer.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		RepliesTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "apex_assistant_replies_total",
			Help: "Assistant replies by route.",
		}, []string{"route"}),
		ReplyDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "apex_assistant_reply_duration_seconds",
			Help:    "Time to produce an assistant reply in seconds.",
			Buckets: prometheus.ExponentialBuckets(0.001, 4, 9), // 1ms .. ~65s
		}),
		ProviderCallsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "apex_provider_calls_total",
			Help: "Assistant provider calls by provider and outcome.",
		}, []string{"provider", "outcome"}),
		ProviderDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "apex_provider_duration_seconds",
			Help:    "Duration of assistant provider calls in seconds.",
			Buckets: prometheus.ExponentialBuckets(0.1, 2, 10), // 100ms .. ~51s
		}, []string{"provider"}),
	}

	reg.MustRegister(
		m.RepliesTotal,
		m.ReplyDuration,
		m.ProviderCallsTotal,
		m.ProviderDuration,
	)

	return m
}

// Hooks returns a RouterHooks that updates the corresponding metrics.
func (m *Metrics) Hooks() RouterHooks {
	return RouterHooks{
		OnReply: func(route string, duration float64) {
			m.RepliesTotal.WithLabelValues(route).Inc()
			m.ReplyDuration.Observe(duration)
		},
		OnProvider: func(provider, outcome string, duration float64) {
			m.ProviderCallsTotal.WithLabelValues(provider, outcome).Inc()
			m.ProviderDuration.WithLabelValues(provider).Observe(duration)
		},
	}
}
