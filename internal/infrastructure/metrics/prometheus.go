// Package metrics provides Prometheus metrics for observability.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "courseflow"

var (
	// CacheOperationsTotal tracks cache operations (get, set, delete).
	// Labels:
	//   - operation: get, set, delete
	//   - status: hit, miss, success, error
	//   - cache_type: redis
	CacheOperationsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "cache_operations_total",
			Help:      "Total number of cache operations",
		},
		[]string{"operation", "status", "cache_type"},
	)

	// CacheInvalidationsTotal tracks invalidation-bus runs per entity category.
	// Labels:
	//   - category: course, curriculum, enrollment, user, notification, wishlist, admin
	CacheInvalidationsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "cache_invalidations_total",
			Help:      "Total number of cache invalidation runs",
		},
		[]string{"category"},
	)

	// URLGenerationTotal tracks signed-URL generation attempts by outcome.
	// The per-class failure labels exist so a sustained credentials outage
	// is distinguishable from a handful of missing objects.
	// Labels:
	//   - outcome: ready, not_needed, object_missing, credentials, transient, skipped
	URLGenerationTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "url_generation_total",
			Help:      "Total number of signed URL generation attempts by outcome",
		},
		[]string{"outcome"},
	)

	// SchedulerRunsTotal tracks periodic sweep executions.
	// Labels:
	//   - job: regenerate_all, refresh_expiring, cleanup_expired, retry_failed, monitor_failures
	//   - status: success, error
	SchedulerRunsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "scheduler_runs_total",
			Help:      "Total number of scheduler sweep runs",
		},
		[]string{"job", "status"},
	)

	// SingleflightRequestsTotal tracks singleflight behavior on cached reads.
	// Labels:
	//   - result: initiated (new execution), shared (reused result)
	SingleflightRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "singleflight_requests_total",
			Help:      "Total number of singleflight requests",
		},
		[]string{"result"},
	)
)

// Cache operation status constants.
const (
	CacheStatusHit     = "hit"
	CacheStatusMiss    = "miss"
	CacheStatusSuccess = "success"
	CacheStatusError   = "error"
)

// Cache operation type constants.
const (
	CacheOpGet    = "get"
	CacheOpSet    = "set"
	CacheOpDelete = "delete"
)

// Cache type constants.
const (
	CacheTypeRedis = "redis"
)

// URL generation outcome constants.
const (
	GenerationOutcomeReady         = "ready"
	GenerationOutcomeNotNeeded     = "not_needed"
	GenerationOutcomeObjectMissing = "object_missing"
	GenerationOutcomeCredentials   = "credentials"
	GenerationOutcomeTransient     = "transient"
	GenerationOutcomeSkipped       = "skipped"
)

// Scheduler run status constants.
const (
	SchedulerStatusSuccess = "success"
	SchedulerStatusError   = "error"
)

// Singleflight result constants.
const (
	SingleflightInitiated = "initiated"
	SingleflightShared    = "shared"
)
