package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// WorkerMetrics tracks staged-card completion on the worker side.
type WorkerMetrics struct {
	registry *prometheus.Registry

	processedTotal  *prometheus.CounterVec
	processDuration prometheus.Histogram
}

func NewWorkerMetrics() *WorkerMetrics {
	registry := prometheus.NewRegistry()

	processedTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "uidshield",
			Subsystem: "worker",
			Name:      "cards_processed_total",
			Help:      "Staged cards processed by outcome.",
		},
		[]string{"outcome"},
	)
	processDuration := prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: "uidshield",
			Subsystem: "worker",
			Name:      "card_process_duration_seconds",
			Help:      "End-to-end staged card processing duration.",
			Buckets:   []float64{0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30, 60},
		},
	)

	registry.MustRegister(processedTotal, processDuration)

	return &WorkerMetrics{
		registry:        registry,
		processedTotal:  processedTotal,
		processDuration: processDuration,
	}
}

func (m *WorkerMetrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

func (m *WorkerMetrics) ObserveProcessed(outcome string, elapsed time.Duration) {
	m.processedTotal.WithLabelValues(outcome).Inc()
	m.processDuration.Observe(elapsed.Seconds())
}
