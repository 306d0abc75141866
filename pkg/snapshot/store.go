package snapshot

import (
	"strconv"
	"sync"
	"sync/atomic"

	"k8s.io/klog/v2"

	"kube-cost-observer/pkg/models"
)

// Store publishes the current Snapshot to any number of concurrent
// readers. Reads are a single atomic pointer load; writers build a new
// snapshot from a copy and swap the pointer, serialized by a mutex that
// the read path never touches.
type Store struct {
	current atomic.Pointer[Snapshot]
	writeMu sync.Mutex
}

// NewStore returns a Store publishing an empty snapshot.
func NewStore() *Store {
	s := &Store{}
	s.current.Store(NewSnapshot())
	return s
}

// Get returns the currently published snapshot. The returned value is
// immutable; callers may hold it for as long as they like.
func (s *Store) Get() *Snapshot {
	return s.current.Load()
}

// Set atomically replaces the published snapshot. Readers already holding
// the previous snapshot keep it; new readers see the replacement.
func (s *Store) Set(snap *Snapshot) {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()
	s.current.Store(snap)
}

// Update applies mutate to a copy of the current snapshot and publishes
// the result. If mutate returns an error nothing is published and the
// prior snapshot stays visible. Updates are serialized with each other
// and with Set, so no update is ever lost.
func (s *Store) Update(mutate func(*Snapshot) error) error {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	next := s.current.Load().clone()
	if err := mutate(next); err != nil {
		return err
	}
	s.current.Store(next)
	return nil
}

// EventType classifies a watch event.
type EventType string

const (
	EventAdd    EventType = "add"
	EventUpdate EventType = "update"
	EventDelete EventType = "delete"
)

// Event is one ingested change to a tracked object. Object carries the
// record to store (NodeInfo, PodInfo, WorkloadInfo or ServiceInfo); it is
// ignored for deletes.
type Event struct {
	Type            EventType
	Kind            models.Kind
	Key             string
	ResourceVersion string
	Object          any
}

// ApplyEvent folds one watch event into the store. Events whose resource
// version is older than the version already recorded for the key are
// dropped, which makes ingestion idempotent under watch retries and
// reconnects. Returns true if the event changed the published snapshot.
func (s *Store) ApplyEvent(ev Event) bool {
	applied := false
	_ = s.Update(func(snap *Snapshot) error {
		if ev.Type != EventDelete && staleVersion(snap.version(ev.Kind, ev.Key), ev.ResourceVersion) {
			klog.V(5).Infof("Dropping stale %s event for %s %s (have %s, got %s)",
				ev.Type, ev.Kind, ev.Key, snap.version(ev.Kind, ev.Key), ev.ResourceVersion)
			return nil
		}
		applied = applyToSnapshot(snap, ev)
		return nil
	})
	return applied
}

func applyToSnapshot(snap *Snapshot, ev Event) bool {
	switch ev.Kind {
	case models.KindNode:
		if ev.Type == EventDelete {
			delete(snap.Nodes, ev.Key)
			return true
		}
		if n, ok := ev.Object.(NodeInfo); ok {
			snap.Nodes[ev.Key] = n
			return true
		}
	case models.KindPod:
		if ev.Type == EventDelete {
			delete(snap.Pods, ev.Key)
			return true
		}
		if p, ok := ev.Object.(PodInfo); ok {
			snap.Pods[ev.Key] = p
			return true
		}
	case models.KindWorkload:
		if ev.Type == EventDelete {
			delete(snap.Workloads, ev.Key)
			return true
		}
		if w, ok := ev.Object.(WorkloadInfo); ok {
			snap.Workloads[ev.Key] = w
			return true
		}
	case models.KindService:
		if ev.Type == EventDelete {
			delete(snap.Services, ev.Key)
			return true
		}
		if svc, ok := ev.Object.(ServiceInfo); ok {
			snap.Services[ev.Key] = svc
			return true
		}
	}
	klog.Warningf("Ignoring event with unexpected object type for %s %s", ev.Kind, ev.Key)
	return false
}

// staleVersion reports whether incoming is strictly older than recorded.
// Resource versions are compared numerically when both parse; delivery
// order is not assumed (see the watch contract), so anything that cannot
// be ordered is accepted.
func staleVersion(recorded, incoming string) bool {
	if recorded == "" || incoming == "" {
		return false
	}
	rec, err1 := strconv.ParseUint(recorded, 10, 64)
	inc, err2 := strconv.ParseUint(incoming, 10, 64)
	if err1 != nil || err2 != nil {
		return false
	}
	return inc < rec
}
