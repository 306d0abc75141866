package snapshot

import (
	"errors"
	"strconv"
	"sync"
	"testing"

	"kube-cost-observer/pkg/models"
)

func podEvent(key, version string, evType EventType) Event {
	return Event{
		Type:            evType,
		Kind:            models.KindPod,
		Key:             key,
		ResourceVersion: version,
		Object: PodInfo{
			Namespace:       "default",
			Name:            key,
			ResourceVersion: version,
		},
	}
}

func TestStoreSetReplacesSnapshot(t *testing.T) {
	store := NewStore()
	before := store.Get()

	snap := NewSnapshot()
	snap.Pods["default/web-0"] = PodInfo{Namespace: "default", Name: "web-0"}
	store.Set(snap)

	after := store.Get()
	if after == before {
		t.Fatal("Get returned the old snapshot after Set")
	}
	if after.Count(models.KindPod) != 1 {
		t.Errorf("new snapshot has %d pods, want 1", after.Count(models.KindPod))
	}
	// the reference obtained before Set is untouched
	if before.Count(models.KindPod) != 0 {
		t.Errorf("old snapshot mutated: %d pods", before.Count(models.KindPod))
	}
}

func TestStoreUpdatePublishesCopy(t *testing.T) {
	store := NewStore()
	held := store.Get()

	err := store.Update(func(s *Snapshot) error {
		s.Nodes["node-1"] = NodeInfo{Name: "node-1"}
		return nil
	})
	if err != nil {
		t.Fatalf("Update: %v", err)
	}

	if held.Count(models.KindNode) != 0 {
		t.Error("update mutated a snapshot already handed to a reader")
	}
	if store.Get().Count(models.KindNode) != 1 {
		t.Error("update result not visible to new readers")
	}
}

func TestStoreUpdateErrorKeepsPriorSnapshot(t *testing.T) {
	store := NewStore()
	store.ApplyEvent(podEvent("default/web-0", "10", EventAdd))
	published := store.Get()

	wantErr := errors.New("mutator failed")
	err := store.Update(func(s *Snapshot) error {
		delete(s.Pods, "default/web-0")
		return wantErr
	})
	if !errors.Is(err, wantErr) {
		t.Fatalf("Update error = %v, want %v", err, wantErr)
	}
	if store.Get() != published {
		t.Error("failed update published a new snapshot")
	}
}

func TestStoreStaleEventsDropped(t *testing.T) {
	tests := []struct {
		name        string
		first       string
		second      string
		wantApplied bool
	}{
		{"newer version applies", "10", "11", true},
		{"same version applies", "10", "10", true},
		{"older version dropped", "10", "9", false},
		{"unparseable versions accepted", "10", "abc", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store := NewStore()
			store.ApplyEvent(podEvent("default/web-0", tt.first, EventAdd))

			applied := store.ApplyEvent(podEvent("default/web-0", tt.second, EventUpdate))
			if applied != tt.wantApplied {
				t.Errorf("applied = %v, want %v", applied, tt.wantApplied)
			}

			wantVersion := tt.first
			if tt.wantApplied {
				wantVersion = tt.second
			}
			got := store.Get().Pods["default/web-0"].ResourceVersion
			if got != wantVersion {
				t.Errorf("stored version = %s, want %s", got, wantVersion)
			}
		})
	}
}

func TestStoreDeleteEvent(t *testing.T) {
	store := NewStore()
	store.ApplyEvent(podEvent("default/web-0", "10", EventAdd))
	store.ApplyEvent(podEvent("default/web-0", "12", EventDelete))

	if store.Get().Count(models.KindPod) != 0 {
		t.Error("pod survived delete event")
	}
}

func TestStoreConcurrentReadersAndWriters(t *testing.T) {
	store := NewStore()

	var wg sync.WaitGroup
	stop := make(chan struct{})

	// readers must never observe a torn snapshot: every snapshot either
	// has the pod with a matching version or does not have it at all
	for i := 0; i < 4; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for {
				select {
				case <-stop:
					return
				default:
				}
				snap := store.Get()
				if p, ok := snap.Pods["default/web-0"]; ok && p.Name != "default/web-0" {
					t.Error("torn pod record observed")
					return
				}
			}
		}()
	}

	for v := 1; v <= 200; v++ {
		store.ApplyEvent(podEvent("default/web-0", strconv.Itoa(v), EventUpdate))
	}
	close(stop)
	wg.Wait()

	if got := store.Get().Pods["default/web-0"].ResourceVersion; got != "200" {
		t.Errorf("final version = %s, want 200 (lost update?)", got)
	}
}
