package metrics

import (
	"bufio"
	"fmt"
	"net"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

type HTTPServerMetrics struct {
	registry *prometheus.Registry

	requestTotal    *prometheus.CounterVec
	requestDuration *prometheus.HistogramVec
	requestInFlight prometheus.Gauge

	searchTotal          *prometheus.CounterVec
	searchDuration       *prometheus.HistogramVec
	searchResultCount    *prometheus.HistogramVec
	searchEmptyTotal     *prometheus.CounterVec
	cacheLookupsTotal    *prometheus.CounterVec
	fusionTotal          *prometheus.CounterVec
	rerankFallbackTotal  *prometheus.CounterVec
	multiStepSteps       *prometheus.HistogramVec
	embedTokensTotal     *prometheus.CounterVec
	facadeFallbackTotal  *prometheus.CounterVec
	providerFailureTotal *prometheus.CounterVec
}

func NewHTTPServerMetrics(service string) *HTTPServerMetrics {
	registry := prometheus.NewRegistry()

	requestTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "hsearch",
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "Total HTTP requests processed.",
		},
		[]string{"service", "method", "path", "status"},
	)
	requestDuration := prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "hsearch",
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "HTTP request duration in seconds.",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"service", "method", "path"},
	)
	requestInFlight := prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "hsearch",
			Subsystem: "http",
			Name:      "in_flight_requests",
			Help:      "Number of in-flight HTTP requests.",
			ConstLabels: prometheus.Labels{
				"service": service,
			},
		},
	)
	searchTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "hsearch",
			Subsystem: "search",
			Name:      "requests_total",
			Help:      "Total completed searches by mode and provider.",
		},
		[]string{"service", "mode", "provider"},
	)
	searchDuration := prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "hsearch",
			Subsystem: "search",
			Name:      "duration_seconds",
			Help:      "Search execution duration in seconds by mode.",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"service", "mode"},
	)
	searchResultCount := prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "hsearch",
			Subsystem: "search",
			Name:      "result_count",
			Help:      "Distribution of results returned per search.",
			Buckets:   []float64{0, 1, 2, 3, 5, 8, 13, 21},
		},
		[]string{"service", "mode"},
	)
	searchEmptyTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "hsearch",
			Subsystem: "search",
			Name:      "empty_total",
			Help:      "Total searches that returned no results.",
		},
		[]string{"service", "mode"},
	)
	cacheLookupsTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "hsearch",
			Subsystem: "cache",
			Name:      "lookups_total",
			Help:      "Total cache lookups by outcome.",
		},
		[]string{"service", "outcome"},
	)
	fusionTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "hsearch",
			Subsystem: "search",
			Name:      "fusion_total",
			Help:      "Total hybrid fusions by algorithm.",
		},
		[]string{"service", "algorithm"},
	)
	rerankFallbackTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "hsearch",
			Subsystem: "search",
			Name:      "rerank_fallback_total",
			Help:      "Total searches where reranking failed open to fused ordering.",
		},
		[]string{"service"},
	)
	multiStepSteps := prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "hsearch",
			Subsystem: "search",
			Name:      "multi_step_steps",
			Help:      "Distribution of executed steps per multi-step search.",
			Buckets:   []float64{1, 2, 3},
		},
		[]string{"service"},
	)
	embedTokensTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "hsearch",
			Subsystem: "embedding",
			Name:      "tokens_total",
			Help:      "Total embedding tokens consumed.",
		},
		[]string{"service", "mode"},
	)
	facadeFallbackTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "hsearch",
			Subsystem: "facade",
			Name:      "fallback_total",
			Help:      "Total requests served by the fallback provider.",
		},
		[]string{"service"},
	)
	providerFailureTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "hsearch",
			Subsystem: "facade",
			Name:      "provider_failure_total",
			Help:      "Total requests where all providers failed.",
		},
		[]string{"service"},
	)

	registry.MustRegister(
		requestTotal,
		requestDuration,
		requestInFlight,
		searchTotal,
		searchDuration,
		searchResultCount,
		searchEmptyTotal,
		cacheLookupsTotal,
		fusionTotal,
		rerankFallbackTotal,
		multiStepSteps,
		embedTokensTotal,
		facadeFallbackTotal,
		providerFailureTotal,
	)

	return &HTTPServerMetrics{
		registry:             registry,
		requestTotal:         requestTotal,
		requestDuration:      requestDuration,
		requestInFlight:      requestInFlight,
		searchTotal:          searchTotal,
		searchDuration:       searchDuration,
		searchResultCount:    searchResultCount,
		searchEmptyTotal:     searchEmptyTotal,
		cacheLookupsTotal:    cacheLookupsTotal,
		fusionTotal:          fusionTotal,
		rerankFallbackTotal:  rerankFallbackTotal,
		multiStepSteps:       multiStepSteps,
		embedTokensTotal:     embedTokensTotal,
		facadeFallbackTotal:  facadeFallbackTotal,
		providerFailureTotal: providerFailureTotal,
	}
}

func (m *HTTPServerMetrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

func (m *HTTPServerMetrics) Middleware(service string, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		path := normalizePath(r.URL.Path)
		recorder := &statusRecorder{
			ResponseWriter: w,
			statusCode:     http.StatusOK,
		}

		m.requestInFlight.Inc()
		defer m.requestInFlight.Dec()

		next.ServeHTTP(recorder, r)

		m.requestTotal.WithLabelValues(
			service,
			r.Method,
			path,
			strconv.Itoa(recorder.statusCode),
		).Inc()
		m.requestDuration.WithLabelValues(service, r.Method, path).Observe(time.Since(start).Seconds())
	})
}

func normalizePath(path string) string {
	switch {
	case strings.HasPrefix(path, "/v1/documents/"):
		return "/v1/documents/{document_id}"
	default:
		return path
	}
}

// SearchObservation captures the per-request facts worth exporting.
type SearchObservation struct {
	Mode            string
	Provider        string
	ResultCount     int
	TokensUsed      int
	CacheHit        bool
	FusionAlgorithm string
	RerankRequested bool
	RerankApplied   bool
	Steps           int
	Duration        time.Duration
}

func (m *HTTPServerMetrics) RecordSearch(service string, obs SearchObservation) {
	mode := obs.Mode
	if mode == "" {
		mode = "unknown"
	}
	provider := obs.Provider
	if provider == "" {
		provider = "unknown"
	}

	m.searchTotal.WithLabelValues(service, mode, provider).Inc()
	m.searchDuration.WithLabelValues(service, mode).Observe(obs.Duration.Seconds())
	m.searchResultCount.WithLabelValues(service, mode).Observe(float64(obs.ResultCount))
	if obs.ResultCount == 0 {
		m.searchEmptyTotal.WithLabelValues(service, mode).Inc()
	}

	outcome := "miss"
	if obs.CacheHit {
		outcome = "hit"
	}
	m.cacheLookupsTotal.WithLabelValues(service, outcome).Inc()

	if obs.FusionAlgorithm != "" {
		m.fusionTotal.WithLabelValues(service, obs.FusionAlgorithm).Inc()
	}
	if obs.RerankRequested && !obs.RerankApplied {
		m.rerankFallbackTotal.WithLabelValues(service).Inc()
	}
	if obs.Steps > 0 {
		m.multiStepSteps.WithLabelValues(service).Observe(float64(obs.Steps))
	}
	if obs.TokensUsed > 0 {
		m.embedTokensTotal.WithLabelValues(service, mode).Add(float64(obs.TokensUsed))
	}
}

func (m *HTTPServerMetrics) RecordFacadeFallback(service string) {
	m.facadeFallbackTotal.WithLabelValues(service).Inc()
}

func (m *HTTPServerMetrics) RecordProviderFailure(service string) {
	m.providerFailureTotal.WithLabelValues(service).Inc()
}

type statusRecorder struct {
	http.ResponseWriter
	statusCode int
}

func (w *statusRecorder) WriteHeader(statusCode int) {
	w.statusCode = statusCode
	w.ResponseWriter.WriteHeader(statusCode)
}

func (w *statusRecorder) Flush() {
	flusher, ok := w.ResponseWriter.(http.Flusher)
	if ok {
		flusher.Flush()
	}
}

func (w *statusRecorder) Hijack() (net.Conn, *bufio.ReadWriter, error) {
	hijacker, ok := w.ResponseWriter.(http.Hijacker)
	if !ok {
		return nil, nil, fmt.Errorf("response writer does not implement http.Hijacker")
	}
	return hijacker.Hijack()
}

func (w *statusRecorder) Push(target string, opts *http.PushOptions) error {
	pusher, ok := w.ResponseWriter.(http.Pusher)
	if !ok {
		return http.ErrNotSupported
	}
	return pusher.Push(target, opts)
}
