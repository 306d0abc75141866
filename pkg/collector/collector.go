package collector

import (
	"context"
	"time"

	"kube-cost-observer/pkg/models"
	"kube-cost-observer/pkg/repository"
	"kube-cost-observer/pkg/snapshot"
)

// Collector produces the metric rows for one resource kind on each tick.
// A collector reads the current snapshot plus, where applicable, a
// UsageSource, and appends one row per object that had data. Objects in
// the snapshot with no reading are skipped; a source outage fails the
// whole invocation and the next tick retries naturally.
type Collector interface {
	Name() string
	Kind() models.Kind
	Collect(ctx context.Context, now time.Time) (int, error)
}

// deps bundles what every collector needs.
type deps struct {
	store *snapshot.Store
	repo  repository.Repository
}

// PodCollector samples pod CPU and memory usage.
type PodCollector struct {
	deps
	source    UsageSource
	namespace string
}

// NewPodCollector builds the pod collector for a namespace ("" for all).
func NewPodCollector(store *snapshot.Store, repo repository.Repository, source UsageSource, namespace string) *PodCollector {
	return &PodCollector{deps: deps{store: store, repo: repo}, source: source, namespace: namespace}
}

func (c *PodCollector) Name() string      { return "pods" }
func (c *PodCollector) Kind() models.Kind { return models.KindPod }

func (c *PodCollector) Collect(ctx context.Context, now time.Time) (int, error) {
	snap := c.store.Get()
	usage, err := c.source.PodUsage(ctx, c.namespace)
	if err != nil {
		return 0, err
	}

	ts := models.TruncateMinute(now)
	written := 0
	for key := range snap.Pods {
		u, ok := usage[key]
		if !ok {
			continue // no reading this tick
		}
		row := models.MetricRow{
			Timestamp:   ts,
			Kind:        models.KindPod,
			Key:         key,
			CPUMillis:   u.CPUMillis,
			MemoryBytes: u.MemoryBytes,
		}
		if err := c.repo.Append(models.KindPod, key, row, now); err != nil {
			return written, err
		}
		written++
	}
	return written, nil
}

// NodeCollector samples node CPU and memory usage.
type NodeCollector struct {
	deps
	source UsageSource
}

func NewNodeCollector(store *snapshot.Store, repo repository.Repository, source UsageSource) *NodeCollector {
	return &NodeCollector{deps: deps{store: store, repo: repo}, source: source}
}

func (c *NodeCollector) Name() string      { return "nodes" }
func (c *NodeCollector) Kind() models.Kind { return models.KindNode }

func (c *NodeCollector) Collect(ctx context.Context, now time.Time) (int, error) {
	snap := c.store.Get()
	usage, err := c.source.NodeUsage(ctx)
	if err != nil {
		return 0, err
	}

	ts := models.TruncateMinute(now)
	written := 0
	for key := range snap.Nodes {
		u, ok := usage[key]
		if !ok {
			continue
		}
		row := models.MetricRow{
			Timestamp:   ts,
			Kind:        models.KindNode,
			Key:         key,
			CPUMillis:   u.CPUMillis,
			MemoryBytes: u.MemoryBytes,
		}
		if err := c.repo.Append(models.KindNode, key, row, now); err != nil {
			return written, err
		}
		written++
	}
	return written, nil
}

// WorkloadCollector samples replica and readiness counts straight from
// the snapshot; workloads have no direct usage reading of their own.
type WorkloadCollector struct {
	deps
}

func NewWorkloadCollector(store *snapshot.Store, repo repository.Repository) *WorkloadCollector {
	return &WorkloadCollector{deps: deps{store: store, repo: repo}}
}

func (c *WorkloadCollector) Name() string      { return "workloads" }
func (c *WorkloadCollector) Kind() models.Kind { return models.KindWorkload }

func (c *WorkloadCollector) Collect(ctx context.Context, now time.Time) (int, error) {
	snap := c.store.Get()
	ts := models.TruncateMinute(now)
	written := 0
	for key, w := range snap.Workloads {
		row := models.MetricRow{
			Timestamp: ts,
			Kind:      models.KindWorkload,
			Key:       key,
			Replicas:  w.Replicas,
			Ready:     w.ReadyReplicas,
		}
		if err := c.repo.Append(models.KindWorkload, key, row, now); err != nil {
			return written, err
		}
		written++
	}
	return written, nil
}
