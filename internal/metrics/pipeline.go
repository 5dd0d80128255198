package metrics

import "github.com/prometheus/client_golang/prometheus"

// Matching pipeline Prometheus metrics.
var (
	EmbeddingRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "trialmatch",
			Name:      "embedding_requests_total",
			Help:      "Total number of embedding requests",
		},
		[]string{"provider", "model", "status"},
	)

	EmbeddingRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "trialmatch",
			Name:      "embedding_request_duration_seconds",
			Help:      "Embedding request duration in seconds",
			Buckets:   []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
		},
		[]string{"provider", "model"},
	)

	EmbeddingTokensTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "trialmatch",
			Name:      "embedding_tokens_total",
			Help:      "Total embedding tokens consumed",
		},
		[]string{"provider", "model", "type"},
	)

	ClassifierRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "trialmatch",
			Name:      "classifier_requests_total",
			Help:      "Total number of classifier backend requests",
		},
		[]string{"provider", "model", "status"},
	)

	ClassifierRequestDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: "trialmatch",
			Name:      "classifier_request_duration_seconds",
			Help:      "Classifier call duration in seconds, including the per-call timeout window",
			Buckets:   []float64{0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30, 60},
		},
	)

	ClassifierVerdictsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "trialmatch",
			Name:      "classifier_verdicts_total",
			Help:      "Classifier verdicts by status and source (model or fallback)",
		},
		[]string{"status", "source"},
	)

	QuotaDecisionsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "trialmatch",
			Name:      "quota_decisions_total",
			Help:      "Rate governor decisions",
		},
		[]string{"decision"}, // "admit" / "deny"
	)

	EmbeddingCacheTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "trialmatch",
			Name:      "embedding_cache_total",
			Help:      "Embedding cache lookups by result",
		},
		[]string{"result"}, // "hit" / "miss"
	)

	CorpusTrials = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "trialmatch",
			Name:      "corpus_trials",
			Help:      "Number of trials in the active corpus snapshot",
		},
	)
)

var pipelineMetricsRegistered bool

// RegisterPipelineMetrics registers matching pipeline metrics. Must be called once from main.
func RegisterPipelineMetrics() {
	if pipelineMetricsRegistered {
		return
	}
	prometheus.MustRegister(EmbeddingRequestsTotal)
	prometheus.MustRegister(EmbeddingRequestDuration)
	prometheus.MustRegister(EmbeddingTokensTotal)
	prometheus.MustRegister(ClassifierRequestsTotal)
	prometheus.MustRegister(ClassifierRequestDuration)
	prometheus.MustRegister(ClassifierVerdictsTotal)
	prometheus.MustRegister(QuotaDecisionsTotal)
	prometheus.MustRegister(EmbeddingCacheTotal)
	prometheus.MustRegister(CorpusTrials)
	pipelineMetricsRegistered = true
}
