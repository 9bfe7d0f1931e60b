// Package middleware contains shared Gin middleware used by the HTTP layer.
//
// This file owns every Prometheus collector of the service, so registration
// happens in one init. HTTP traffic is measured with three bounded labels:
// method, path, and status; the path label is the matched route pattern via
// routePath, so /api/users/42 aggregates under /api/users/:id. clicks_total
// is the one domain metric: submission outcomes, fed by the click handlers
// through CountClick, because HTTP status alone cannot tell a fresh click
// from a replayed one (both answer 200).
package middleware

import (
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
)

var (
	httpReqs = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total number of HTTP requests.",
		},
		[]string{"method", "path", "status"},
	)

	// Latency omits the status label; per-status histograms would multiply
	// cardinality for little dashboard value.
	httpLat = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "Duration of HTTP requests in seconds.",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "path"},
	)

	httpInflight = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "http_requests_inflight",
			Help: "Current number of in-flight HTTP requests.",
		},
	)

	// Buckets span a JSON API's payloads: single objects at the low end,
	// full click lists and leaderboards toward the top.
	httpRespSize = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name: "http_response_size_bytes",
			Help: "Size of HTTP responses in bytes.",
			Buckets: []float64{
				200, 500, 1 << 10, 2 << 10, 5 << 10,
				10 << 10, 25 << 10, 50 << 10,
				100 << 10, 250 << 10, 500 << 10,
				1 << 20, 2 << 20, 5 << 20,
			},
		},
		[]string{"method", "path"},
	)

	clicksTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "clicks_total",
			Help: "Total number of click submissions by outcome.",
		},
		[]string{"outcome"},
	)
)

// Click submission outcomes for CountClick. The set is closed to keep label
// cardinality fixed.
const (
	ClickRecorded     = "recorded"
	ClickReplayed     = "replayed"
	ClickBurstLimited = "burst_limited"
	ClickUnknownUser  = "unknown_user"
	ClickInvalid      = "invalid"
)

func init() {
	prometheus.MustRegister(httpReqs, httpLat, httpInflight, httpRespSize, clicksTotal)
}

// CountClick records how one POST /clicks submission ended.
func CountClick(outcome string) {
	clicksTotal.WithLabelValues(outcome).Inc()
}

// Metrics instruments every request: the request counter, the latency and
// response-size histograms, and the in-flight gauge. Mount /metrics with
// promhttp separately; this middleware only collects.
func Metrics() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		httpInflight.Inc()
		defer httpInflight.Dec()

		c.Next()

		method := c.Request.Method
		path := routePath(c)
		status := strconv.Itoa(c.Writer.Status())

		httpReqs.WithLabelValues(method, path, status).Inc()
		httpLat.WithLabelValues(method, path).Observe(time.Since(start).Seconds())
		// Size is -1 when nothing was written (304s, hijacked connections);
		// skip those.
		if size := c.Writer.Size(); size >= 0 {
			httpRespSize.WithLabelValues(method, path).Observe(float64(size))
		}
	}
}
