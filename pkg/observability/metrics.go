package observability

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds all Prometheus metrics
type Metrics struct {
	// HTTP metrics
	HTTPRequestsTotal   *prometheus.CounterVec
	HTTPRequestDuration *prometheus.HistogramVec

	// Publish pipeline metrics
	PublishTotal       *prometheus.CounterVec
	PublishDuration    *prometheus.HistogramVec
	PublishErrorsTotal *prometheus.CounterVec

	// Registry storage metrics
	StorageOperationsTotal   *prometheus.CounterVec
	StorageOperationDuration *prometheus.HistogramVec
	StorageErrorsTotal       *prometheus.CounterVec

	// Cache metrics
	CacheHitsTotal   *prometheus.CounterVec
	CacheMissesTotal *prometheus.CounterVec

	// Business metrics
	PublishedFilesTotal prometheus.Gauge

	registry *prometheus.Registry
}

// NewMetrics creates and registers all Prometheus metrics
func NewMetrics(registry *prometheus.Registry) *Metrics {
	m := &Metrics{
		HTTPRequestsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "shotpipe_http_requests_total",
				Help: "Total number of HTTP requests",
			},
			[]string{"method", "path", "status"},
		),
		HTTPRequestDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "shotpipe_http_request_duration_seconds",
				Help:    "HTTP request duration in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"method", "path"},
		),
		PublishTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "shotpipe_publish_total",
				Help: "Total number of publish tasks executed",
			},
			[]string{"plugin", "status"},
		),
		PublishDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "shotpipe_publish_duration_seconds",
				Help:    "Publish task duration in seconds",
				Buckets: []float64{0.1, 0.5, 1, 5, 15, 60, 300},
			},
			[]string{"plugin"},
		),
		PublishErrorsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "shotpipe_publish_errors_total",
				Help: "Total number of failed publish tasks",
			},
			[]string{"plugin"},
		),
		StorageOperationsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "shotpipe_storage_operations_total",
				Help: "Total number of registry storage operations",
			},
			[]string{"backend", "operation"},
		),
		StorageOperationDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "shotpipe_storage_operation_duration_seconds",
				Help:    "Registry storage operation duration in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"backend", "operation"},
		),
		StorageErrorsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "shotpipe_storage_errors_total",
				Help: "Total number of registry storage errors",
			},
			[]string{"backend", "operation"},
		),
		CacheHitsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "shotpipe_cache_hits_total",
				Help: "Total number of cache hits",
			},
			[]string{"layer"},
		),
		CacheMissesTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "shotpipe_cache_misses_total",
				Help: "Total number of cache misses",
			},
			[]string{"layer"},
		),
		PublishedFilesTotal: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "shotpipe_published_files_total",
				Help: "Total number of registered published files",
			},
		),
		registry: registry,
	}

	registry.MustRegister(
		m.HTTPRequestsTotal,
		m.HTTPRequestDuration,
		m.PublishTotal,
		m.PublishDuration,
		m.PublishErrorsTotal,
		m.StorageOperationsTotal,
		m.StorageOperationDuration,
		m.StorageErrorsTotal,
		m.CacheHitsTotal,
		m.CacheMissesTotal,
		m.PublishedFilesTotal,
	)

	return m
}

// ObservePublish records the outcome of one publish task.
func (m *Metrics) ObservePublish(plugin string, elapsed time.Duration, err error) {
	status := "ok"
	if err != nil {
		status = "error"
		m.PublishErrorsTotal.WithLabelValues(plugin).Inc()
	}
	m.PublishTotal.WithLabelValues(plugin, status).Inc()
	m.PublishDuration.WithLabelValues(plugin).Observe(elapsed.Seconds())
}

// ObserveStorageOperation records a registry storage operation.
func (m *Metrics) ObserveStorageOperation(backend, operation string, elapsed time.Duration, err error) {
	m.StorageOperationsTotal.WithLabelValues(backend, operation).Inc()
	m.StorageOperationDuration.WithLabelValues(backend, operation).Observe(elapsed.Seconds())
	if err != nil {
		m.StorageErrorsTotal.WithLabelValues(backend, operation).Inc()
	}
}

// Handler returns an HTTP handler exposing the metrics registry.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// statusRecorder captures the response status for metrics middleware.
type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

// HTTPMiddleware instruments an HTTP handler with request metrics.
func (m *Metrics) HTTPMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)

		m.HTTPRequestsTotal.WithLabelValues(r.Method, r.URL.Path, strconv.Itoa(rec.status)).Inc()
		m.HTTPRequestDuration.WithLabelValues(r.Method, r.URL.Path).Observe(time.Since(start).Seconds())
	})
}
