package models

import "time"

// Kind identifies the class of cluster object a sample belongs to.
type Kind string

const (
	KindNode     Kind = "node"
	KindPod      Kind = "pod"
	KindWorkload Kind = "workload"
	KindService  Kind = "service"
)

// AllKinds lists every kind the observer tracks, in collection order.
var AllKinds = []Kind{KindNode, KindPod, KindWorkload, KindService}

// MetricRow is a single usage sample for one object at one minute.
// Rows are immutable once written to a partition.
type MetricRow struct {
	Timestamp   time.Time `json:"timestamp"`
	Kind        Kind      `json:"kind"`
	Key         string    `json:"key"` // namespace/name, or node name for nodes
	CPUMillis   int64     `json:"cpu_millis"`
	MemoryBytes int64     `json:"memory_bytes"`
	FSBytes     int64     `json:"fs_bytes,omitempty"`
	NetRxBytes  int64     `json:"net_rx_bytes,omitempty"`
	NetTxBytes  int64     `json:"net_tx_bytes,omitempty"`
	Replicas    int32     `json:"replicas,omitempty"`
	Ready       int32     `json:"ready,omitempty"`
}

// TruncateMinute normalizes a collection timestamp to row granularity.
func TruncateMinute(t time.Time) time.Time {
	return t.UTC().Truncate(time.Minute)
}

// Day returns the UTC calendar day a timestamp falls on, which is the
// partition coordinate.
func Day(t time.Time) time.Time {
	return t.UTC().Truncate(24 * time.Hour)
}

// CostRow pairs a raw sample with the cost computed at the sample's own
// timestamp.
type CostRow struct {
	Row      MetricRow `json:"row"`
	CPUCost  float64   `json:"cpu_cost"`
	MemCost  float64   `json:"mem_cost"`
	RowTotal float64   `json:"row_total"`
}

// CostSummary is the single-total aggregate over a query window.
type CostSummary struct {
	Kind      Kind      `json:"kind"`
	Key       string    `json:"key"`
	Start     time.Time `json:"start"`
	End       time.Time `json:"end"`
	RowCount  int       `json:"row_count"`
	CPUCost   float64   `json:"cpu_cost"`
	MemCost   float64   `json:"mem_cost"`
	TotalCost float64   `json:"total_cost"`
}

// TrendBucket is one time bucket in a CostTrend.
type TrendBucket struct {
	Start    time.Time `json:"start"`
	RowCount int       `json:"row_count"`
	Cost     float64   `json:"cost"`
}

// CostTrend is the time-bucketed aggregate over a query window.
type CostTrend struct {
	Kind    Kind          `json:"kind"`
	Key     string        `json:"key"`
	Start   time.Time     `json:"start"`
	End     time.Time     `json:"end"`
	Step    time.Duration `json:"step"`
	Buckets []TrendBucket `json:"buckets"`
}
