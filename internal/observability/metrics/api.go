package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/smikhalev/support-rag/internal/core/domain"
)

type APIMetrics struct {
	registry *prometheus.Registry

	requestTotal    *prometheus.CounterVec
	requestDuration *prometheus.HistogramVec
	requestInFlight prometheus.Gauge

	queriesTotal        *prometheus.CounterVec
	queryDuration       *prometheus.HistogramVec
	retrievalCandidates *prometheus.HistogramVec
	retrievalDegraded   *prometheus.CounterVec
	evaluatorFlagsTotal *prometheus.CounterVec
	cacheHitsTotal      *prometheus.CounterVec
	llmTokensTotal      *prometheus.CounterVec
}

func NewAPIMetrics(service string) *APIMetrics {
	registry := prometheus.NewRegistry()

	requestTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "srag",
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "Total HTTP requests processed.",
		},
		[]string{"service", "method", "path", "status"},
	)
	requestDuration := prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "srag",
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "HTTP request duration in seconds.",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"service", "method", "path"},
	)
	requestInFlight := prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "srag",
			Subsystem: "http",
			Name:      "in_flight_requests",
			Help:      "Number of in-flight HTTP requests.",
			ConstLabels: prometheus.Labels{
				"service": service,
			},
		},
	)
	queriesTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "srag",
			Subsystem: "query",
			Name:      "answered_total",
			Help:      "Total answered queries by tier and cache outcome.",
		},
		[]string{"service", "tier", "cache"},
	)
	queryDuration := prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "srag",
			Subsystem: "query",
			Name:      "duration_seconds",
			Help:      "End-to-end query duration in seconds.",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"service", "tier"},
	)
	retrievalCandidates := prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "srag",
			Subsystem: "retrieval",
			Name:      "candidates",
			Help:      "Distribution of fused candidates per query.",
			Buckets:   []float64{0, 1, 2, 3, 5, 8, 13, 21, 34},
		},
		[]string{"service"},
	)
	retrievalDegraded := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "srag",
			Subsystem: "retrieval",
			Name:      "degraded_total",
			Help:      "Total queries answered with a degraded retrieval pipeline.",
		},
		[]string{"service"},
	)
	evaluatorFlagsTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "srag",
			Subsystem: "evaluator",
			Name:      "flags_total",
			Help:      "Total guardrail flags raised on generated answers.",
		},
		[]string{"service", "flag"},
	)
	cacheHitsTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "srag",
			Subsystem: "cache",
			Name:      "hits_total",
			Help:      "Total answers served from the response cache.",
		},
		[]string{"service"},
	)
	llmTokensTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "srag",
			Subsystem: "llm",
			Name:      "tokens_total",
			Help:      "Token usage by direction and tier.",
		},
		[]string{"service", "direction", "tier"},
	)

	registry.MustRegister(
		requestTotal,
		requestDuration,
		requestInFlight,
		queriesTotal,
		queryDuration,
		retrievalCandidates,
		retrievalDegraded,
		evaluatorFlagsTotal,
		cacheHitsTotal,
		llmTokensTotal,
	)

	return &APIMetrics{
		registry:            registry,
		requestTotal:        requestTotal,
		requestDuration:     requestDuration,
		requestInFlight:     requestInFlight,
		queriesTotal:        queriesTotal,
		queryDuration:       queryDuration,
		retrievalCandidates: retrievalCandidates,
		retrievalDegraded:   retrievalDegraded,
		evaluatorFlagsTotal: evaluatorFlagsTotal,
		cacheHitsTotal:      cacheHitsTotal,
		llmTokensTotal:      llmTokensTotal,
	}
}

func (m *APIMetrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

func (m *APIMetrics) Middleware(service string, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
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
			r.URL.Path,
			strconv.Itoa(recorder.statusCode),
		).Inc()
		m.requestDuration.WithLabelValues(service, r.Method, r.URL.Path).Observe(time.Since(start).Seconds())
	})
}

// RecordAnswer updates the pipeline metrics from a finished answer.
func (m *APIMetrics) RecordAnswer(service string, answer *domain.Answer) {
	if answer == nil {
		return
	}
	meta := answer.Metadata

	cache := "miss"
	if meta.CacheHit {
		cache = "hit"
		m.cacheHitsTotal.WithLabelValues(service).Inc()
	}
	tier := string(meta.Tier)

	m.queriesTotal.WithLabelValues(service, tier, cache).Inc()
	m.queryDuration.WithLabelValues(service, tier).Observe(float64(meta.LatencyMs) / 1000)
	m.retrievalCandidates.WithLabelValues(service).Observe(float64(meta.CandidateCount))
	if meta.Degraded {
		m.retrievalDegraded.WithLabelValues(service).Inc()
	}
	for _, flag := range meta.EvaluatorFlags {
		m.evaluatorFlagsTotal.WithLabelValues(service, string(flag)).Inc()
	}
	if meta.Tokens.Input > 0 {
		m.llmTokensTotal.WithLabelValues(service, "in", tier).Add(float64(meta.Tokens.Input))
	}
	if meta.Tokens.Output > 0 {
		m.llmTokensTotal.WithLabelValues(service, "out", tier).Add(float64(meta.Tokens.Output))
	}
}

type statusRecorder struct {
	http.ResponseWriter
	statusCode int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.statusCode = code
	r.ResponseWriter.WriteHeader(code)
}

func (r *statusRecorder) Flush() {
	if flusher, ok := r.ResponseWriter.(http.Flusher); ok {
		flusher.Flush()
	}
}
