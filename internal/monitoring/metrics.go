package monitoring

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds all Prometheus metrics
type Metrics struct {
	// HTTP metrics
	HTTPRequestsTotal    *prometheus.CounterVec
	HTTPRequestDuration  *prometheus.HistogramVec
	HTTPRequestsInFlight prometheus.Gauge

	// Rating metrics
	RatingMutations            *prometheus.CounterVec
	AggregateRecomputeFailures prometheus.Counter

	// Cache metrics
	CacheHits   *prometheus.CounterVec
	CacheMisses *prometheus.CounterVec

	// Mail metrics
	MailSendTotal *prometheus.CounterVec

	// Newsletter metrics
	NewsletterSubscriptions *prometheus.CounterVec
}

var metrics *Metrics

// Init initializes all Prometheus metrics
func Init() *Metrics {
	if metrics != nil {
		return metrics
	}

	metrics = &Metrics{
		// HTTP metrics
		HTTPRequestsTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "http_requests_total",
				Help: "Total number of HTTP requests",
			},
			[]string{"method", "path", "status"},
		),
		HTTPRequestDuration: promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "http_request_duration_seconds",
				Help:    "HTTP request duration in seconds",
				Buckets: []float64{.005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10},
			},
			[]string{"method", "path"},
		),
		HTTPRequestsInFlight: promauto.NewGauge(
			prometheus.GaugeOpts{
				Name: "http_requests_in_flight",
				Help: "Number of HTTP requests currently being processed",
			},
		),

		// Rating metrics
		RatingMutations: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "rating_mutations_total",
				Help: "Total number of rating mutations",
			},
			[]string{"operation"},
		),
		AggregateRecomputeFailures: promauto.NewCounter(
			prometheus.CounterOpts{
				Name: "farmer_aggregate_recompute_failures_total",
				Help: "Total number of failed farmer aggregate recomputations",
			},
		),

		// Cache metrics
		CacheHits: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "cache_hits_total",
				Help: "Total number of cache hits",
			},
			[]string{"cache_type"},
		),
		CacheMisses: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "cache_misses_total",
				Help: "Total number of cache misses",
			},
			[]string{"cache_type"},
		),

		// Mail metrics
		MailSendTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "mail_send_total",
				Help: "Total number of outbound mail attempts",
			},
			[]string{"status"},
		),

		// Newsletter metrics
		NewsletterSubscriptions: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "newsletter_subscriptions_total",
				Help: "Total number of newsletter subscription events",
			},
			[]string{"event"},
		),
	}

	return metrics
}

// Get returns the global metrics instance
func Get() *Metrics {
	if metrics == nil {
		return Init()
	}
	return metrics
}

// Handler returns the Prometheus HTTP handler
func Handler() http.Handler {
	return promhttp.Handler()
}

// MetricsMiddleware is a Gin middleware for collecting HTTP metrics
func MetricsMiddleware() gin.HandlerFunc {
	m := Get()
	return func(c *gin.Context) {
		start := time.Now()
		path := c.FullPath()
		if path == "" {
			path = c.Request.URL.Path
		}
		method := c.Request.Method

		// Track in-flight requests
		m.HTTPRequestsInFlight.Inc()
		defer m.HTTPRequestsInFlight.Dec()

		// Process request
		c.Next()

		// Record metrics
		status := strconv.Itoa(c.Writer.Status())
		duration := time.Since(start).Seconds()

		m.HTTPRequestsTotal.WithLabelValues(method, path, status).Inc()
		m.HTTPRequestDuration.WithLabelValues(method, path).Observe(duration)
	}
}

// RecordRatingMutation records a rating create/update/delete
func RecordRatingMutation(operation string) {
	Get().RatingMutations.WithLabelValues(operation).Inc()
}

// RecordAggregateRecomputeFailure records a failed best-effort aggregate update
func RecordAggregateRecomputeFailure() {
	Get().AggregateRecomputeFailures.Inc()
}

// RecordCacheHit records a cache hit
func RecordCacheHit(cacheType string) {
	Get().CacheHits.WithLabelValues(cacheType).Inc()
}

// RecordCacheMiss records a cache miss
func RecordCacheMiss(cacheType string) {
	Get().CacheMisses.WithLabelValues(cacheType).Inc()
}

// RecordMailSend records an outbound mail attempt
func RecordMailSend(status string) {
	Get().MailSendTotal.WithLabelValues(status).Inc()
}

// RecordNewsletterEvent records a newsletter subscribe/unsubscribe event
func RecordNewsletterEvent(event string) {
	Get().NewsletterSubscriptions.WithLabelValues(event).Inc()
}
