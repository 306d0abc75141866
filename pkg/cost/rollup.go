package cost

import (
	"context"
	"errors"
	"time"

	"k8s.io/klog/v2"

	obsmetrics "kube-cost-observer/pkg/metrics"
	"kube-cost-observer/pkg/models"
	"kube-cost-observer/pkg/pricing"
	"kube-cost-observer/pkg/snapshot"
)

// HourlyRollup totals the trailing hour of cost per kind and publishes
// the figures as gauges. It runs as a scheduler summarizer.
type HourlyRollup struct {
	engine   *Engine
	store    *snapshot.Store
	exporter *obsmetrics.Exporter
}

// NewHourlyRollup wires the rollup.
func NewHourlyRollup(engine *Engine, store *snapshot.Store, exporter *obsmetrics.Exporter) *HourlyRollup {
	return &HourlyRollup{engine: engine, store: store, exporter: exporter}
}

func (r *HourlyRollup) Name() string { return "hourly-cost" }

// Summarize recomputes the trailing-hour totals for nodes and pods. A key
// without configured pricing is skipped, not fatal; repository errors
// abort the rollup for this cycle.
func (r *HourlyRollup) Summarize(ctx context.Context, now time.Time) error {
	snap := r.store.Get()
	for _, kind := range models.AllKinds {
		r.exporter.SnapshotObjects.WithLabelValues(string(kind)).Set(float64(snap.Count(kind)))
	}

	start := now.Add(-time.Hour)
	for kind, keys := range map[models.Kind][]string{
		models.KindNode: mapKeys(snap.Nodes),
		models.KindPod:  mapKeys(snap.Pods),
	} {
		var total float64
		for _, key := range keys {
			sum, err := r.engine.Summary(kind, key, start, now)
			if err != nil {
				var missing *pricing.MissingPriceError
				if errors.As(err, &missing) {
					klog.V(4).Infof("Rollup: no price for %s %s, skipping", kind, key)
					continue
				}
				return err
			}
			total += sum.TotalCost
		}
		r.exporter.HourlyCost.WithLabelValues(string(kind)).Set(total)
	}
	return nil
}

func mapKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	return keys
}
