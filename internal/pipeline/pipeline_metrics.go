package pipeline

import "github.com/prometheus/client_golang/prometheus"

// Metrics holds Prometheus metrics for the classification pipeline.
type Metrics struct {
	PostsTotal      *prometheus.CounterVec
	LLMCallsTotal   *prometheus.CounterVec
	LLMDuration     *prometheus.HistogramVec
	IngestedTotal   prometheus.Counter
	DuplicatesTotal prometheus.Counter
}

// NewMetrics registers and returns pipeline metrics on the given registerer.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		PostsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "prospect_posts_total",
			Help: "Posts processed by terminal state.",
		}, []string{"state"}),
		LLMCallsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "prospect_llm_calls_total",
			Help: "Structured extraction calls by stage and outcome.",
		}, []string{"stage", "outcome"}),
		LLMDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "prospect_llm_call_duration_seconds",
			Help:    "Duration of structured extraction calls in seconds.",
			Buckets: prometheus.ExponentialBuckets(0.5, 2, 8), // 0.5s .. ~64s
		}, []string{"stage"}),
		IngestedTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "prospect_posts_ingested_total",
			Help: "Posts newly inserted by ingestion.",
		}),
		DuplicatesTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "prospect_posts_duplicate_total",
			Help: "Ingestion records rejected as duplicates (id or fingerprint).",
		}),
	}

	reg.MustRegister(
		m.PostsTotal,
		m.LLMCallsTotal,
		m.LLMDuration,
		m.IngestedTotal,
		m.DuplicatesTotal,
	)

	return m
}

// Hooks returns an EngineHooks that increments the corresponding metrics.
func (m *Metrics) Hooks() EngineHooks {
	return EngineHooks{
		OnLLMCall: func(stage string, duration float64, err error) {
			outcome := "success"
			if err != nil {
				outcome = "error"
			}
			m.LLMCallsTotal.WithLabelValues(stage, outcome).Inc()
			m.LLMDuration.WithLabelValues(stage).Observe(duration)
		},
		OnPostComplete: func(state State) {
			m.PostsTotal.WithLabelValues(string(state)).Inc()
		},
	}
}
