package gateway

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// callsTotal counts gateway calls by operation and outcome (ok, query_error, timeout, connection_error).
	callsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "invmirror_gateway_calls_total",
			Help: "Total number of gateway calls by operation and status",
		},
		[]string{"op", "status"},
	)

	// callDuration observes wall time of each gateway call including connection checkout.
	callDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "invmirror_gateway_call_duration_seconds",
			Help:    "Duration of gateway calls",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"op"},
	)
)

func statusOf(err error) string {
	switch e := err.(type) {
	case nil:
		return "ok"
	case *rollbackError:
		return statusOf(e.err)
	case *TimeoutError:
		return "timeout"
	case *ConnectionError:
		return "connection_error"
	default:
		return "query_error"
	}
}
