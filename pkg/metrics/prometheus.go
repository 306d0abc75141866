package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Exporter exposes the observer's own operational metrics.
type Exporter struct {
	// Collection cycle metrics
	CollectionsTotal   *prometheus.CounterVec
	CollectionDuration *prometheus.HistogramVec
	CollectionErrors   *prometheus.CounterVec
	RowsAppended       *prometheus.CounterVec

	// Scheduler metrics
	TicksSkipped  prometheus.Counter
	ResyncsQueued prometheus.Counter
	ResyncDepth   prometheus.Gauge

	// Snapshot metrics
	SnapshotObjects *prometheus.GaugeVec

	// Rollup metrics
	HourlyCost *prometheus.GaugeVec
}

// NewExporter registers the observer metrics under the given namespace.
func NewExporter(namespace string) *Exporter {
	return &Exporter{
		CollectionsTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "collections_total",
				Help:      "Collector invocations by kind and result",
			},
			[]string{"collector", "result"},
		),
		CollectionDuration: promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "collection_duration_seconds",
				Help:      "Duration of one collector invocation",
				Buckets:   prometheus.DefBuckets,
			},
			[]string{"collector"},
		),
		CollectionErrors: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "collection_errors_total",
				Help:      "Collector failures by kind",
			},
			[]string{"collector"},
		),
		RowsAppended: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "rows_appended_total",
				Help:      "Metric rows appended by kind",
			},
			[]string{"kind"},
		),
		TicksSkipped: promauto.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "ticks_skipped_total",
				Help:      "Cadence ticks skipped because the previous cycle was still running",
			},
		),
		ResyncsQueued: promauto.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "resyncs_queued_total",
				Help:      "On-demand resync requests accepted",
			},
		),
		ResyncDepth: promauto.NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "resync_queue_depth",
				Help:      "Resync requests waiting for the background worker",
			},
		),
		SnapshotObjects: promauto.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "snapshot_objects",
				Help:      "Objects currently held in the cluster snapshot by kind",
			},
			[]string{"kind"},
		),
		HourlyCost: promauto.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "hourly_cost",
				Help:      "Rolled-up cost of the trailing hour by kind",
			},
			[]string{"kind"},
		),
	}
}
