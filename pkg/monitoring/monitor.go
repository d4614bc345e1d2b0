package monitoring

import (
	"strconv"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	RequestCounter = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "endpoint", "status"},
	)

	RequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "Duration of HTTP requests",
			Buckets: []float64{0.1, 0.5, 1, 2, 5},
		},
		[]string{"method", "endpoint"},
	)

	CMSRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "cms_request_duration_seconds",
			Help:    "Duration of Contentstack delivery API calls",
			Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2, 5},
		},
		[]string{"operation", "status"},
	)

	CacheLookups = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "cms_cache_lookups_total",
			Help: "CMS cache lookups by result",
		},
		[]string{"kind", "result"},
	)

	ModuleCompletions = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "course_module_completions_total",
			Help: "Module completion events recorded",
		},
	)

	ProgressConflicts = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "optimistic_lock_conflicts_total",
			Help: "Version conflicts hit while saving progress or training plans",
		},
		[]string{"entity"},
	)

	KnowledgeCheckSubmissions = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "knowledge_check_submissions_total",
			Help: "Graded knowledge check submissions by outcome",
		},
		[]string{"outcome"},
	)
)

var registerOnce sync.Once

func Init() {
	registerOnce.Do(func() {
		prometheus.MustRegister(
			RequestCounter,
			RequestDuration,
			CMSRequestDuration,
			CacheLookups,
			ModuleCompletions,
			ProgressConflicts,
			KnowledgeCheckSubmissions,
		)
	})
}

func MetricsMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		duration := time.Since(start).Seconds()
		status := c.Writer.Status()

		endpoint := c.FullPath()
		if endpoint == "" {
			endpoint = "unmatched"
		}

		RequestCounter.WithLabelValues(
			c.Request.Method,
			endpoint,
			strconv.Itoa(status),
		).Inc()

		RequestDuration.WithLabelValues(
			c.Request.Method,
			endpoint,
		).Observe(duration)
	}
}

func PrometheusHandler() gin.HandlerFunc {
	h := promhttp.Handler()
	return func(c *gin.Context) {
		h.ServeHTTP(c.Writer, c.Request)
	}
}
