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
			Buckets: []float64{0.05, 0.1, 0.5, 1, 2, 5},
		},
		[]string{"method", "endpoint"},
	)

	// QuestionSelections outcome: window, fallback, exhausted
	QuestionSelections = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "credahead_question_selections_total",
			Help: "Question selector outcomes",
		},
		[]string{"session_type", "outcome"},
	)

	SelectionWidth = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "credahead_question_selection_width",
			Help:    "Difficulty window width at which a question was found",
			Buckets: prometheus.LinearBuckets(0, 1, 11),
		},
	)

	HistoryCacheLookups = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "credahead_history_cache_lookups_total",
			Help: "Question history cache lookups",
		},
		[]string{"result"},
	)

	SessionTransitions = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "credahead_quiz_sessions_total",
			Help: "Quiz session lifecycle transitions",
		},
		[]string{"session_type", "status"},
	)
)

var registerOnce sync.Once

func Init() {
	registerOnce.Do(func() {
		prometheus.MustRegister(
			RequestCounter,
			RequestDuration,
			QuestionSelections,
			SelectionWidth,
			HistoryCacheLookups,
			SessionTransitions,
		)
	})
}

func MetricsMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		duration := time.Since(start).Seconds()
		status := c.Writer.Status()

		RequestCounter.WithLabelValues(
			c.Request.Method,
			c.FullPath(),
			strconv.Itoa(status),
		).Inc()

		RequestDuration.WithLabelValues(
			c.Request.Method,
			c.FullPath(),
		).Observe(duration)
	}
}

func PrometheusHandler() gin.HandlerFunc {
	h := promhttp.Handler()
	return func(c *gin.Context) {
		h.ServeHTTP(c.Writer, c.Request)
	}
}
