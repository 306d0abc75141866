package repository

import (
	"sync"
	"time"

	"kube-cost-observer/pkg/models"
)

// MemoryRepository keeps partitions in a map, mirroring the file layout
// one slice per (kind, key, day). It backs tests and the debug one-shot
// path.
type MemoryRepository struct {
	mu         sync.RWMutex
	partitions map[string][]models.MetricRow
}

// NewMemoryRepository returns an empty in-memory repository.
func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{
		partitions: map[string][]models.MetricRow{},
	}
}

// Append adds one row to the (kind, key, day(now)) partition.
func (r *MemoryRepository) Append(kind models.Kind, key string, row models.MetricRow, now time.Time) error {
	coord := partitionName(kind, key, models.Day(now))
	r.mu.Lock()
	defer r.mu.Unlock()
	r.partitions[coord] = append(r.partitions[coord], row)
	return nil
}

// ReadRange applies the same day-split read as the file repository.
func (r *MemoryRepository) ReadRange(kind models.Kind, key string, start, end time.Time) ([]models.MetricRow, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var rows []models.MetricRow
	for _, seg := range SplitRange(start, end) {
		dayRows := r.partitions[partitionName(kind, key, seg.Day)]
		rows = append(rows, filterRows(dayRows, seg)...)
	}
	return normalize(rows), nil
}

// PartitionLen reports how many rows one (kind, key, day) partition
// holds. Test helper.
func (r *MemoryRepository) PartitionLen(kind models.Kind, key string, day time.Time) int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.partitions[partitionName(kind, key, models.Day(day))])
}
