package session

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// operationsTotal counts session operations (load, save, discard) by outcome.
	operationsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "invmirror_session_operations_total",
			Help: "Total number of session operations by operation and status",
		},
		[]string{"op", "status"},
	)

	rowsSaved = promauto.NewCounter(prometheus.CounterOpts{
		Name: "invmirror_session_rows_saved_total",
		Help: "Rows affected by successful saves",
	})

	activeSessions = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "invmirror_sessions_active",
		Help: "Number of open sessions",
	})
)

func observe(op string, err error) {
	status := "ok"
	if err != nil {
		status = "error"
	}
	operationsTotal.WithLabelValues(op, status).Inc()
}
