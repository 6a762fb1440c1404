package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

type WorkerMetrics struct {
	registry *prometheus.Registry

	indexTotal       *prometheus.CounterVec
	indexDuration    *prometheus.HistogramVec
	indexInFlight    prometheus.Gauge
	chunksIndexed    *prometheus.CounterVec
	chunkErrorsTotal *prometheus.CounterVec
	queueLag         *prometheus.HistogramVec
}

func NewWorkerMetrics(service string) *WorkerMetrics {
	registry := prometheus.NewRegistry()

	indexTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "hsearch",
			Subsystem: "worker",
			Name:      "document_index_total",
			Help:      "Total indexed documents by status.",
		},
		[]string{"service", "status"},
	)
	indexDuration := prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "hsearch",
			Subsystem: "worker",
			Name:      "document_index_duration_seconds",
			Help:      "Document indexing duration in seconds by status.",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"service", "status"},
	)
	indexInFlight := prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "hsearch",
			Subsystem: "worker",
			Name:      "document_index_in_flight",
			Help:      "Number of in-flight document indexing tasks.",
			ConstLabels: prometheus.Labels{
				"service": service,
			},
		},
	)
	chunksIndexed := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "hsearch",
			Subsystem: "worker",
			Name:      "chunks_indexed_total",
			Help:      "Total chunks successfully embedded and upserted.",
		},
		[]string{"service"},
	)
	chunkErrorsTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "hsearch",
			Subsystem: "worker",
			Name:      "chunk_errors_total",
			Help:      "Total per-chunk indexing failures.",
		},
		[]string{"service"},
	)
	queueLag := prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "hsearch",
			Subsystem: "worker",
			Name:      "queue_lag_seconds",
			Help:      "Delay between index request publication and processing start.",
			Buckets:   []float64{0.1, 0.5, 1, 2, 5, 10, 30, 60, 120, 300, 600},
		},
		[]string{"service"},
	)

	registry.MustRegister(indexTotal, indexDuration, indexInFlight, chunksIndexed, chunkErrorsTotal, queueLag)

	return &WorkerMetrics{
		registry:         registry,
		indexTotal:       indexTotal,
		indexDuration:    indexDuration,
		indexInFlight:    indexInFlight,
		chunksIndexed:    chunksIndexed,
		chunkErrorsTotal: chunkErrorsTotal,
		queueLag:         queueLag,
	}
}

func (m *WorkerMetrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

func (m *WorkerMetrics) StartDocument() {
	m.indexInFlight.Inc()
}

func (m *WorkerMetrics) FinishDocument(service string, duration time.Duration, chunksIndexed, chunkErrors int, err error) {
	m.indexInFlight.Dec()

	status := "success"
	if err != nil || chunkErrors > 0 {
		status = "error"
	}

	m.indexTotal.WithLabelValues(service, status).Inc()
	m.indexDuration.WithLabelValues(service, status).Observe(duration.Seconds())
	if chunksIndexed > 0 {
		m.chunksIndexed.WithLabelValues(service).Add(float64(chunksIndexed))
	}
	if chunkErrors > 0 {
		m.chunkErrorsTotal.WithLabelValues(service).Add(float64(chunkErrors))
	}
}

func (m *WorkerMetrics) ObserveQueueLag(service string, lag time.Duration) {
	if lag < 0 {
		return
	}
	m.queueLag.WithLabelValues(service).Observe(lag.Seconds())
}
