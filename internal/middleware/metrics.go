package middleware

import (
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	requestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "paygate_requests_total",
		Help: "Gateway requests by route and status",
	}, []string{"route", "status"})
	requestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "paygate_request_duration_seconds",
		Help:    "Gateway request latency",
		Buckets: prometheus.DefBuckets,
	}, []string{"route"})

	// RelayOutcomes counts upstream relay results by class.
	RelayOutcomes = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "paygate_relay_outcomes_total",
		Help: "Relay outcomes: success, upstream_error, unreachable",
	}, []string{"outcome"})
	// TokensConsumed counts successful single-use token consumptions.
	TokensConsumed = promauto.NewCounter(prometheus.CounterOpts{
		Name: "paygate_tokens_consumed_total",
		Help: "Tokens consumed",
	})
	// PaymentsProcessed counts verified payments that issued tokens.
	PaymentsProcessed = promauto.NewCounter(prometheus.CounterOpts{
		Name: "paygate_payments_processed_total",
		Help: "Payments verified and issued",
	})
)

// Metrics records request counts and latencies per route template.
func Metrics() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		route := c.FullPath()
		if route == "" {
			route = "unmatched"
		}
		requestsTotal.WithLabelValues(route, strconv.Itoa(c.Writer.Status())).Inc()
		requestDuration.WithLabelValues(route).Observe(time.Since(start).Seconds())
	}
}
