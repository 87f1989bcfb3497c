package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "remoteops"

var (
	// EventsTotal counts inbound events by type and outcome.
	// outcome: handled, dropped, failed
	EventsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "events_total",
			Help:      "Total number of inbound events by type and outcome.",
		},
		[]string{"type", "outcome"},
	)

	// HandlerLatency records how long a handler took for one event.
	HandlerLatency = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "handler_latency_seconds",
			Help:      "Latency of event handlers.",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"type"},
	)

	// RedeliveriesTotal counts handler re-executions after transient failures.
	RedeliveriesTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "redeliveries_total",
			Help:      "Total number of event redeliveries after transient failures.",
		},
	)

	// InflightEvents is the number of events queued or running in the partitions.
	InflightEvents = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "inflight_events",
			Help:      "Events accepted by the partition pool and not yet finished.",
		},
	)

	// CacheLookups counts correlation cache reads by result: hit, miss, error.
	CacheLookups = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "cache_lookups_total",
			Help:      "Correlation cache lookups by result.",
		},
		[]string{"result"},
	)

	// ResponsesTotal counts appended responses by kind: correlated, orphan, late, duplicate.
	ResponsesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "responses_total",
			Help:      "Responses processed by kind.",
		},
		[]string{"kind"},
	)

	// NotificationsTotal counts emitted notifications by response code.
	NotificationsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "notifications_total",
			Help:      "Notifications emitted by response code.",
		},
		[]string{"code"},
	)

	// ScheduleCommandsTotal counts create/delete commands sent to the scheduler.
	ScheduleCommandsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "schedule_commands_total",
			Help:      "Scheduler commands emitted by operation.",
		},
		[]string{"op"},
	)

	// ExpiryEntriesPurged counts expiry entries removed by the garbage collector.
	ExpiryEntriesPurged = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "expiry_entries_purged_total",
			Help:      "Stale expiry queue entries removed by the collector.",
		},
	)
)

func init() {
	prometheus.MustRegister(
		EventsTotal,
		HandlerLatency,
		RedeliveriesTotal,
		InflightEvents,
		CacheLookups,
		ResponsesTotal,
		NotificationsTotal,
		ScheduleCommandsTotal,
		ExpiryEntriesPurged,
	)
}
