// Prometheus instrumentation for the reconciliation engine.
//
// Collectors are registered once at package init and shared by every
// SyncService instance. Labels are kept to small closed sets (kind, outcome)
// so cardinality stays bounded regardless of traffic.
package services

import "github.com/prometheus/client_golang/prometheus"

var (
	// syncCommits counts order/payment commits by kind and path taken.
	syncCommits = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "pos_commits_total",
			Help: "Total order and payment commits by kind and outcome.",
		},
		[]string{"kind", "outcome"}, // kind: order|payment; outcome: online|offline|error
	)

	// syncDrained counts queue entries drained by kind and result.
	syncDrained = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "pos_sync_drained_total",
			Help: "Queued entries processed during drain by kind and result.",
		},
		[]string{"kind", "result"}, // result: synced|deferred|rejected|retry
	)

	// syncRuns counts drain passes by terminal condition.
	syncRuns = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "pos_sync_runs_total",
			Help: "Drain passes by terminal condition.",
		},
		[]string{"result"}, // result: complete|partial|offline|busy
	)

	// syncPending gauges the size of the durable queue after each drain or
	// enqueue, orders and payments combined.
	syncPending = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "pos_sync_pending",
			Help: "Queued transactions awaiting synchronization.",
		},
	)

	// syncDuration records how long a full drain pass takes.
	syncDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "pos_sync_duration_seconds",
			Help:    "Duration of queue drain passes in seconds.",
			Buckets: prometheus.DefBuckets,
		},
	)
)

func init() {
	prometheus.MustRegister(syncCommits, syncDrained, syncRuns, syncPending, syncDuration)
}
