package repository

import (
	"bufio"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/gofrs/flock"
	"k8s.io/klog/v2"

	"kube-cost-observer/pkg/models"
)

// FileRepository stores partitions as append-only JSON-lines files under
// baseDir/<kind>/<key>/<YYYY-MM-DD>.log. One lock per (kind, key, day)
// coordinate serializes appends to the same partition; appends to
// different partitions never contend. The base directory is claimed with
// a flock so two observer processes cannot interleave writes.
type FileRepository struct {
	baseDir string
	dirLock *flock.Flock

	mu     sync.Mutex // guards locks map and closed flag
	locks  map[string]*sync.Mutex
	closed bool
}

// NewFileRepository opens (creating if needed) a partition directory and
// takes an exclusive lock on it.
func NewFileRepository(baseDir string) (*FileRepository, error) {
	if err := os.MkdirAll(baseDir, 0o755); err != nil {
		return nil, fmt.Errorf("creating data dir: %w", err)
	}

	lock := flock.New(filepath.Join(baseDir, ".lock"))
	ok, err := lock.TryLock()
	if err != nil {
		return nil, fmt.Errorf("locking data dir: %w", err)
	}
	if !ok {
		return nil, fmt.Errorf("data dir %s is locked by another process", baseDir)
	}

	return &FileRepository{
		baseDir: baseDir,
		dirLock: lock,
		locks:   map[string]*sync.Mutex{},
	}, nil
}

// Close releases the directory lock. Appends after Close fail.
func (r *FileRepository) Close() error {
	r.mu.Lock()
	r.closed = true
	r.mu.Unlock()
	return r.dirLock.Unlock()
}

// Append writes one row to the partition for (kind, key, day(now)).
func (r *FileRepository) Append(kind models.Kind, key string, row models.MetricRow, now time.Time) error {
	day := models.Day(now)

	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		return ErrClosed
	}
	coord := partitionName(kind, key, day)
	lock, ok := r.locks[coord]
	if !ok {
		lock = &sync.Mutex{}
		r.locks[coord] = lock
	}
	r.mu.Unlock()

	lock.Lock()
	defer lock.Unlock()

	path := r.partitionPath(kind, key, day)
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("creating partition dir: %w", err)
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return fmt.Errorf("opening partition: %w", err)
	}
	defer f.Close()

	data, err := json.Marshal(row)
	if err != nil {
		return fmt.Errorf("encoding row: %w", err)
	}
	if _, err := f.Write(append(data, '\n')); err != nil {
		return fmt.Errorf("appending row: %w", err)
	}
	return nil
}

// ReadRange reads [start, end) by day segments: edge days are filtered
// row by row, middle days are returned whole. Missing partitions read as
// empty.
func (r *FileRepository) ReadRange(kind models.Kind, key string, start, end time.Time) ([]models.MetricRow, error) {
	var rows []models.MetricRow
	for _, seg := range SplitRange(start, end) {
		dayRows, err := r.readPartition(kind, key, seg.Day)
		if err != nil {
			return nil, err
		}
		rows = append(rows, filterRows(dayRows, seg)...)
	}
	return normalize(rows), nil
}

// readPartition loads one day's file. A trailing record truncated by a
// crash mid-write is dropped; everything parsed before it is returned.
func (r *FileRepository) readPartition(kind models.Kind, key string, day time.Time) ([]models.MetricRow, error) {
	path := r.partitionPath(kind, key, day)
	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("opening partition %s: %w", path, err)
	}
	defer f.Close()

	var rows []models.MetricRow
	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}
		var row models.MetricRow
		if err := json.Unmarshal(line, &row); err != nil {
			klog.Warningf("Partition %s: discarding unparseable tail after %d rows: %v", path, len(rows), err)
			break
		}
		rows = append(rows, row)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("reading partition %s: %w", path, err)
	}
	return rows, nil
}

func (r *FileRepository) partitionPath(kind models.Kind, key string, day time.Time) string {
	return filepath.Join(r.baseDir, string(kind), sanitizeKey(key), day.Format("2006-01-02")+".log")
}

func partitionName(kind models.Kind, key string, day time.Time) string {
	return string(kind) + "|" + key + "|" + day.Format("2006-01-02")
}

// sanitizeKey makes an object key safe as a directory name.
func sanitizeKey(key string) string {
	return strings.NewReplacer("/", "_", string(os.PathSeparator), "_").Replace(key)
}
