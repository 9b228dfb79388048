// Package metrics holds the pipeline's prometheus counters and the HTTP
// endpoint the long-running programs expose them on.
package metrics

import "github.com/prometheus/client_golang/prometheus"

const namespace = "edp"

const (
	MetricRecordsFetched      = "records_fetched_total"
	MetricRecordsPublished    = "records_published_total"
	MetricRecordsFailed       = "records_failed_total"
	MetricObjectsMaterialized = "objects_materialized_total"
	MetricObjectsFailed       = "objects_failed_total"
	MetricMerges              = "merges_total"
	MetricRowsMerged          = "rows_merged_total"
	MetricDuplicatesSkipped   = "duplicate_notifications_total"
	MetricConflictsRetried    = "merge_conflicts_total"
	MetricReplaySent          = "replay_sent_total"
	MetricReplayFailed        = "replay_failed_total"
)

var CounterRecordsFetched = prometheus.NewCounter(
	prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "emitter",
		Name:      MetricRecordsFetched,
		Help:      "Records fetched from the record source.",
	},
)

var CounterRecordsPublished = prometheus.NewCounter(
	prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "emitter",
		Name:      MetricRecordsPublished,
		Help:      "Records put on the stream.",
	},
)

// CounterRecordsFailed is labeled by stage: fetch, encode or publish.
var CounterRecordsFailed = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "emitter",
		Name:      MetricRecordsFailed,
		Help:      "Records dropped by the emitter.",
	},
	[]string{
		"stage",
	},
)

var CounterObjectsMaterialized = prometheus.NewCounter(
	prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "materializer",
		Name:      MetricObjectsMaterialized,
		Help:      "Staging objects written.",
	},
)

var CounterObjectsFailed = prometheus.NewCounter(
	prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "materializer",
		Name:      MetricObjectsFailed,
		Help:      "Stream records that could not be written.",
	},
)

var CounterMerges = prometheus.NewCounter(
	prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "merge",
		Name:      MetricMerges,
		Help:      "Staging objects merged into the store.",
	},
)

var CounterRowsMerged = prometheus.NewCounter(
	prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "merge",
		Name:      MetricRowsMerged,
		Help:      "Rows appended to the store.",
	},
)

var CounterDuplicatesSkipped = prometheus.NewCounter(
	prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "merge",
		Name:      MetricDuplicatesSkipped,
		Help:      "Notifications for staging objects already merged.",
	},
)

var CounterConflictsRetried = prometheus.NewCounter(
	prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "merge",
		Name:      MetricConflictsRetried,
		Help:      "Conditional writes lost to a concurrent writer.",
	},
)

var CounterReplaySent = prometheus.NewCounter(
	prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "replay",
		Name:      MetricReplaySent,
		Help:      "Replayed records handed to the materializer.",
	},
)

var CounterReplayFailed = prometheus.NewCounter(
	prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "replay",
		Name:      MetricReplayFailed,
		Help:      "Replayed records whose invocation failed.",
	},
)

func init() {
	prometheus.MustRegister(CounterRecordsFetched)
	prometheus.MustRegister(CounterRecordsPublished)
	prometheus.MustRegister(CounterRecordsFailed)
	prometheus.MustRegister(CounterObjectsMaterialized)
	prometheus.MustRegister(CounterObjectsFailed)
	prometheus.MustRegister(CounterMerges)
	prometheus.MustRegister(CounterRowsMerged)
	prometheus.MustRegister(CounterDuplicatesSkipped)
	prometheus.MustRegister(CounterConflictsRetried)
	prometheus.MustRegister(CounterReplaySent)
	prometheus.MustRegister(CounterReplayFailed)
}
