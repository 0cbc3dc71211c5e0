package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Collector provides application metrics collection
type Collector struct {
	// API metrics
	APIRequestsTotal   *prometheus.CounterVec
	APIRequestDuration *prometheus.HistogramVec
	APIErrorsTotal     *prometheus.CounterVec

	// Prediction pipeline metrics
	PredictionsTotal   prometheus.Counter
	PredictionDuration prometheus.Histogram
	HistoricalMatches  prometheus.Histogram

	// Upstream fetch metrics
	UpstreamFetchErrors   *prometheus.CounterVec
	UpstreamFetchDuration *prometheus.HistogramVec
	StatusCacheHits       prometheus.Counter
	StatusCacheMisses     prometheus.Counter

	// Tracking metrics
	LogEntriesTotal      *prometheus.CounterVec
	ResolvedEntriesTotal prometheus.Counter
	RollingAccuracy      prometheus.Gauge

	// Database metrics
	DBQueryDuration *prometheus.HistogramVec
	DBErrorsTotal   *prometheus.CounterVec
}

// NewCollector creates a new metrics collector
func NewCollector(namespace string) *Collector {
	return &Collector{
		APIRequestsTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "api_requests_total",
				Help:      "Total number of API requests by endpoint, method, and status",
			},
			[]string{"endpoint", "method", "status"},
		),

		APIRequestDuration: promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "api_request_duration_seconds",
				Help:      "API request duration in seconds",
				Buckets:   []float64{0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1.0, 2.0, 5.0},
			},
			[]string{"endpoint"},
		),

		APIErrorsTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "api_errors_total",
				Help:      "Total number of API errors by type",
			},
			[]string{"error_type", "endpoint"},
		),

		PredictionsTotal: promauto.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "predictions_total",
				Help:      "Total number of prediction runs",
			},
		),

		PredictionDuration: promauto.NewHistogram(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "prediction_duration_seconds",
				Help:      "End-to-end prediction pipeline duration in seconds",
				Buckets:   []float64{0.05, 0.1, 0.25, 0.5, 1, 2, 5, 10},
			},
		),

		HistoricalMatches: promauto.NewHistogram(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "historical_matches",
				Help:      "Number of historical matches retained per prediction",
				Buckets:   []float64{0, 1, 2, 3, 5, 8},
			},
		),

		UpstreamFetchErrors: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "upstream_fetch_errors_total",
				Help:      "Total number of upstream fetch failures by source",
			},
			[]string{"source"},
		),

		UpstreamFetchDuration: promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "upstream_fetch_duration_seconds",
				Help:      "Upstream fetch duration in seconds by source",
				Buckets:   []float64{0.05, 0.1, 0.25, 0.5, 1, 2, 5, 10},
			},
			[]string{"source"},
		),

		StatusCacheHits: promauto.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "status_cache_hits_total",
				Help:      "Total number of school status cache hits",
			},
		),

		StatusCacheMisses: promauto.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "status_cache_misses_total",
				Help:      "Total number of school status cache misses",
			},
		),

		LogEntriesTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "log_entries_total",
				Help:      "Daily logging outcomes by result (logged, skipped, error)",
			},
			[]string{"result"},
		),

		ResolvedEntriesTotal: promauto.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "resolved_entries_total",
				Help:      "Total number of prediction log entries resolved against outcomes",
			},
		),

		RollingAccuracy: promauto.NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "rolling_accuracy_percent",
				Help:      "Prediction accuracy over the most recent resolved entries",
			},
		),

		DBQueryDuration: promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "db_query_duration_seconds",
				Help:      "Database query duration in seconds by query type",
				Buckets:   []float64{0.001, 0.002, 0.005, 0.01, 0.05, 0.1, 0.5},
			},
			[]string{"query_type"},
		),

		DBErrorsTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "db_errors_total",
				Help:      "Total number of database errors by type",
			},
			[]string{"error_type"},
		),
	}
}

// RecordAPIRequest increments API request counter
func (c *Collector) RecordAPIRequest(endpoint, method, status string) {
	c.APIRequestsTotal.WithLabelValues(endpoint, method, status).Inc()
}

// RecordAPIError increments API error counter
func (c *Collector) RecordAPIError(errorType, endpoint string) {
	c.APIErrorsTotal.WithLabelValues(errorType, endpoint).Inc()
}

// RecordFetchError increments upstream fetch error counter
func (c *Collector) RecordFetchError(source string) {
	c.UpstreamFetchErrors.WithLabelValues(source).Inc()
}

// RecordDBError increments database error counter
func (c *Collector) RecordDBError(errorType string) {
	c.DBErrorsTotal.WithLabelValues(errorType).Inc()
}

// RecordLogResult increments the daily logging outcome counter
func (c *Collector) RecordLogResult(result string) {
	c.LogEntriesTotal.WithLabelValues(result).Inc()
}
