package repository

import (
	"errors"
	"sort"
	"time"

	"kube-cost-observer/pkg/models"
)

// Repository is the append/read contract for the day-partitioned metric
// store. Implementations: FileRepository (production) and MemoryRepository
// (tests). Appends to the same (kind, key, day) coordinate are serialized;
// everything else proceeds concurrently.
type Repository interface {
	// Append writes one row into the partition for (kind, key, day(now)),
	// creating the partition if absent.
	Append(kind models.Kind, key string, row models.MetricRow, now time.Time) error

	// ReadRange returns all rows with start <= timestamp < end, time
	// ordered and de-duplicated by (key, timestamp). A missing partition
	// contributes an empty set, never an error.
	ReadRange(kind models.Kind, key string, start, end time.Time) ([]models.MetricRow, error)
}

// ErrClosed is returned by appends after the repository has been closed.
var ErrClosed = errors.New("repository closed")

// normalize sorts rows by timestamp and drops duplicate (key, timestamp)
// pairs, keeping the first occurrence. Partitions are expected to be
// append-ordered already; sorting here is defensive.
func normalize(rows []models.MetricRow) []models.MetricRow {
	sort.SliceStable(rows, func(i, j int) bool {
		return rows[i].Timestamp.Before(rows[j].Timestamp)
	})
	out := rows[:0]
	var lastKey string
	var lastTS time.Time
	for i, r := range rows {
		if i > 0 && r.Key == lastKey && r.Timestamp.Equal(lastTS) {
			continue
		}
		out = append(out, r)
		lastKey, lastTS = r.Key, r.Timestamp
	}
	return out
}
