package metrics

import (
	"strconv"

	"github.com/prometheus/client_golang/prometheus"
)

func init() {
	register(
		generationsTotal,
		generationLatencyMs,
		quotaDenials,
		projectsDeleted,
	)
}

var (
	generationsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "generations_total",
			Help: "Generation attempts by outcome (completed/failed/rejected).",
		},
		[]string{"status"},
	)

	generationLatencyMs = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "generation_latency_ms",
			Help:    "End-to-end generation latency distribution in milliseconds.",
			Buckets: []float64{250, 500, 1000, 2000, 4000, 8000, 15000, 30000, 60000, 120000},
		},
		[]string{"model", "success"},
	)

	quotaDenials = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "quota_denials_total",
			Help: "Generation requests rejected because the cycle quota was spent.",
		},
	)

	projectsDeleted = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "projects_deleted_total",
			Help: "Projects removed by their owners.",
		},
	)
)

func IncGeneration(status string) {
	generationsTotal.WithLabelValues(norm(status)).Inc()
}

func ObserveGenerationLatency(model string, latencyMs int64, success bool) {
	generationLatencyMs.WithLabelValues(norm(model), strconv.FormatBool(success)).
		Observe(float64(latencyMs))
}

func IncQuotaDenial() { quotaDenials.Inc() }

func IncProjectDeleted() { projectsDeleted.Inc() }
