package metrics

import (
	"strconv"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	once sync.Once

	storeOperations = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "bookcal",
			Name:      "store_operations_total",
			Help:      "Booking store operations by outcome.",
		},
		[]string{"op", "outcome"},
	)

	conflicts = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "bookcal",
			Name:      "booking_conflicts_total",
			Help:      "Mutations rejected because the interval was already booked.",
		},
	)

	persistenceFailures = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "bookcal",
			Name:      "persistence_failures_total",
			Help:      "Snapshot writes that failed after a successful mutation.",
		},
	)

	httpRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "bookcal",
			Name:      "http_requests_total",
			Help:      "HTTP requests by route, method and status.",
		},
		[]string{"route", "method", "status"},
	)

	httpDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "bookcal",
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request latency by route.",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"route"},
	)
)

// Register registers Prometheus metrics. Safe to call multiple times.
func Register() {
	once.Do(func() {
		prometheus.MustRegister(storeOperations, conflicts, persistenceFailures, httpRequests, httpDuration)
	})
}

// IncOp counts one store operation with its outcome label
// (ok, conflict, not_found, validation, persistence).
func IncOp(op, outcome string) {
	storeOperations.WithLabelValues(op, outcome).Inc()
}

func IncConflict() {
	conflicts.Inc()
}

func IncPersistenceFailure() {
	persistenceFailures.Inc()
}

// ObserveHTTP records one finished HTTP request.
func ObserveHTTP(route, method string, status int, elapsed time.Duration) {
	httpRequests.WithLabelValues(route, method, strconv.Itoa(status)).Inc()
	httpDuration.WithLabelValues(route).Observe(elapsed.Seconds())
}
