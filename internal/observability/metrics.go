package observability

import (
	"strconv"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	registerOnce sync.Once

	httpRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "maasd",
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "Total HTTP requests.",
		},
		[]string{"method", "path", "status"},
	)
	httpDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "maasd",
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "HTTP request duration in seconds.",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"method", "path", "status"},
	)
	engineCalls = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "maasd",
			Subsystem: "engine",
			Name:      "calls_total",
			Help:      "Foreign engine calls by operation and outcome.",
		},
		[]string{"op", "outcome"},
	)
	engineEvents = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "maasd",
			Subsystem: "engine",
			Name:      "events_total",
			Help:      "Asynchronous engine events by routing outcome.",
		},
		[]string{"outcome"},
	)
)

func RegisterMetrics() {
	registerOnce.Do(func() {
		prometheus.MustRegister(httpRequests, httpDuration, engineCalls, engineEvents)
	})
}

func RecordHTTPRequest(method, path string, status int, duration time.Duration) {
	RegisterMetrics()
	statusLabel := strconv.Itoa(status)
	httpRequests.WithLabelValues(method, path, statusLabel).Inc()
	httpDuration.WithLabelValues(method, path, statusLabel).Observe(duration.Seconds())
}

func RecordEngineCall(op string, err error) {
	RegisterMetrics()
	outcome := "ok"
	if err != nil {
		outcome = "error"
	}
	engineCalls.WithLabelValues(op, outcome).Inc()
}

// RecordEngineEvent counts one asynchronous engine event: "stored",
// "dropped" (no routable device key), or "failed" (store append error).
func RecordEngineEvent(outcome string) {
	RegisterMetrics()
	engineEvents.WithLabelValues(outcome).Inc()
}
