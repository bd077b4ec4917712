package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	OperationsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "esdoc",
			Name:      "operations_total",
			Help:      "Total number of service operations",
		},
		[]string{"operation", "status"},
	)

	OperationDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "esdoc",
			Name:      "operation_duration_seconds",
			Help:      "Service operation duration in seconds, engine round trips included",
			Buckets:   []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
		},
		[]string{"operation"},
	)

	BulkItemsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "esdoc",
			Name:      "bulk_items_total",
			Help:      "Bulk items by outcome",
		},
		[]string{"operation", "outcome"}, // "ok" / "failed"
	)

	QueryCacheTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "esdoc",
			Name:      "query_cache_total",
			Help:      "Filter translation cache hits and misses",
		},
		[]string{"result"}, // "hit" / "miss"
	)

	MaintenanceRunsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "esdoc",
			Name:      "maintenance_runs_total",
			Help:      "Scheduled maintenance job runs",
		},
		[]string{"job", "status"},
	)
)

func init() {
	prometheus.MustRegister(OperationsTotal)
	prometheus.MustRegister(OperationDuration)
	prometheus.MustRegister(BulkItemsTotal)
	prometheus.MustRegister(QueryCacheTotal)
	prometheus.MustRegister(MaintenanceRunsTotal)
}

// ObserveOperation records one finished service operation.
func ObserveOperation(operation string, start time.Time, err error) {
	status := "ok"
	if err != nil {
		status = "error"
	}
	OperationsTotal.WithLabelValues(operation, status).Inc()
	OperationDuration.WithLabelValues(operation).Observe(time.Since(start).Seconds())
}

// ObserveBulk records per-item outcomes of one bulk call.
func ObserveBulk(operation string, ok, failed int) {
	if ok > 0 {
		BulkItemsTotal.WithLabelValues(operation, "ok").Add(float64(ok))
	}
	if failed > 0 {
		BulkItemsTotal.WithLabelValues(operation, "failed").Add(float64(failed))
	}
}

// ObserveCache records a translation cache lookup.
func ObserveCache(hit bool) {
	if hit {
		QueryCacheTotal.WithLabelValues("hit").Inc()
		return
	}
	QueryCacheTotal.WithLabelValues("miss").Inc()
}
