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
			Namespace: "quizicle",
			Name:      "http_requests_total",
			Help:      "Total number of HTTP requests",
		},
		[]string{"method", "route", "status"},
	)

	RequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "quizicle",
			Name:      "http_request_duration_seconds",
			Help:      "Duration of HTTP requests",
			Buckets:   []float64{0.01, 0.05, 0.1, 0.5, 1, 2, 5},
		},
		[]string{"method", "route"},
	)

	// QuizAuthoring 成功提交的录入批次，operation: create / append / edit
	QuizAuthoring = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "quizicle",
			Name:      "quiz_authoring_total",
			Help:      "Committed quiz authoring batches by operation",
		},
		[]string{"operation"},
	)

	// QuizAttempts 判分结果分类
	QuizAttempts = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "quizicle",
			Name:      "quiz_attempts_total",
			Help:      "Graded quiz attempts by classification",
		},
		[]string{"classification"},
	)

	// LeaderboardSubscribers 当前实例上订阅排行榜推送的连接数
	LeaderboardSubscribers = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "quizicle",
			Name:      "leaderboard_subscribers",
			Help:      "Open leaderboard websocket connections",
		},
	)
)

var registerOnce sync.Once

func Init() {
	registerOnce.Do(func() {
		prometheus.MustRegister(RequestCounter, RequestDuration, QuizAuthoring, QuizAttempts, LeaderboardSubscribers)
	})
}

func MetricsMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

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
