package observability

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics groups all Prometheus instruments used by the service.
type Metrics struct {
	Requests         *prometheus.CounterVec
	RateLimited      *prometheus.CounterVec
	AssetOutcomes    *prometheus.CounterVec
	AssetProcessing  prometheus.Histogram
	InferenceLatency prometheus.Histogram
	HistoryErrors    prometheus.Counter
}

func NewMetrics(namespace string) *Metrics {
	return &Metrics{
		Requests: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "requests_total",
			Help:      "Handled requests by category and outcome.",
		}, []string{"category", "outcome"}),
		RateLimited: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "rate_limited_total",
			Help:      "Requests rejected by the cooldown limiter, by category.",
		}, []string{"category"}),
		AssetOutcomes: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "asset_lifecycle_total",
			Help:      "Remote media asset lifecycle outcomes by kind.",
		}, []string{"kind", "outcome"}),
		AssetProcessing: promauto.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "asset_processing_seconds",
			Help:      "Time from upload start until the remote asset is ready.",
			Buckets:   []float64{0.5, 1, 2, 5, 10, 20, 40, 80, 120},
		}),
		InferenceLatency: promauto.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "inference_latency_seconds",
			Help:      "Latency of inference service calls.",
			Buckets:   []float64{0.25, 0.5, 1, 2, 4, 8, 16, 32},
		}),
		HistoryErrors: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "history_errors_total",
			Help:      "Failed history store operations.",
		}),
	}
}

func (m *Metrics) ObserveRequest(category, outcome string) {
	if m == nil {
		return
	}
	m.Requests.WithLabelValues(category, outcome).Inc()
}

func (m *Metrics) ObserveRateLimited(category string) {
	if m == nil {
		return
	}
	m.RateLimited.WithLabelValues(category).Inc()
}

func (m *Metrics) ObserveAsset(kind, outcome string) {
	if m == nil {
		return
	}
	m.AssetOutcomes.WithLabelValues(kind, outcome).Inc()
}

func (m *Metrics) ObserveAssetProcessing(d time.Duration) {
	if m == nil {
		return
	}
	m.AssetProcessing.Observe(d.Seconds())
}

func (m *Metrics) ObserveInference(d time.Duration) {
	if m == nil {
		return
	}
	m.InferenceLatency.Observe(d.Seconds())
}

func (m *Metrics) ObserveHistoryError() {
	if m == nil {
		return
	}
	m.HistoryErrors.Inc()
}

func MetricsHandler() http.Handler {
	return promhttp.Handler()
}
