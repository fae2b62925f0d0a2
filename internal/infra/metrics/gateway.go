package metrics

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

func init() { register(gatewayCallsTotal, gatewayLatencyMs) }

var (
	gatewayCallsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "telebot_gateway_calls_total",
			Help: "External gateway calls by gateway, operation and HTTP status.",
		},
		[]string{"gateway", "op", "status"},
	)

	gatewayLatencyMs = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "telebot_gateway_latency_ms",
			Help:    "External gateway call latency in milliseconds.",
			Buckets: []float64{10, 25, 50, 100, 200, 400, 800, 1600, 3000, 5000},
		},
		[]string{"gateway", "op"},
	)
)

// ObserveGatewayCall records one call; status 0 means a transport failure.
func ObserveGatewayCall(gateway, op string, status int, start time.Time) {
	gatewayCallsTotal.WithLabelValues(norm(gateway), norm(op), strconv.Itoa(status)).Inc()
	gatewayLatencyMs.WithLabelValues(norm(gateway), norm(op)).
		Observe(float64(time.Since(start).Milliseconds()))
}
