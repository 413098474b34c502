package monitoring

import (
	"strconv"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "grading"

var (
	RequestCounter = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "Total number of HTTP requests",
		},
		[]string{"method", "route", "status"},
	)

	RequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_request_duration_seconds",
			Help:      "Duration of HTTP requests",
			Buckets:   []float64{0.01, 0.05, 0.1, 0.5, 1, 2, 5},
		},
		[]string{"method", "route"},
	)

	SubmissionOperations = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "submission_operations_total",
			Help:      "Submission lifecycle operations by outcome",
		},
		[]string{"operation", "outcome"},
	)

	SubmissionOperationDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "submission_operation_duration_seconds",
			Help:      "Duration of submission lifecycle operations",
			Buckets:   []float64{0.01, 0.05, 0.1, 0.5, 1, 2},
		},
		[]string{"operation"},
	)

	LedgerWrites = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "ledger_mark_writes_total",
			Help:      "Mark entry writes to the result ledger",
		},
		[]string{"mode"},
	)

	AssessmentCacheLookups = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "assessment_cache_lookups_total",
			Help:      "Assessment definition cache lookups by result",
		},
		[]string{"result"},
	)

	registerOnce sync.Once
)

// Init 注册全部指标，可重复调用
func Init() {
	registerOnce.Do(func() {
		prometheus.MustRegister(
			RequestCounter,
			RequestDuration,
			SubmissionOperations,
			SubmissionOperationDuration,
			LedgerWrites,
			AssessmentCacheLookups,
		)
	})
}

// ObserveOperation records one lifecycle operation. outcome is "ok", "not_found",
// "bad_request" or "error".
func ObserveOperation(operation, outcome string, start time.Time) {
	SubmissionOperations.WithLabelValues(operation, outcome).Inc()
	SubmissionOperationDuration.WithLabelValues(operation).Observe(time.Since(start).Seconds())
}

func MetricsMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		// 未匹配路由统一归类，避免标签基数失控
		route := c.FullPath()
		if route == "" {
			route = "unmatched"
		}
		RequestCounter.WithLabelValues(c.Request.Method, route, strconv.Itoa(c.Writer.Status())).Inc()
		RequestDuration.WithLabelValues(c.Request.Method, route).Observe(time.Since(start).Seconds())
	}
}

func PrometheusHandler() gin.HandlerFunc {
	h := promhttp.Handler()
	return func(c *gin.Context) {
		h.ServeHTTP(c.Writer, c.Request)
	}
}
