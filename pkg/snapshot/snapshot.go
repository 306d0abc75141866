package snapshot

import (
	"time"

	"kube-cost-observer/pkg/models"
)

// NodeInfo is the cached record for one cluster node.
type NodeInfo struct {
	Name            string
	Labels          map[string]string
	AllocatableCPU  int64 // millicores
	AllocatableMem  int64 // bytes
	ResourceVersion string
}

// PodInfo is the cached record for one pod, including its containers.
type PodInfo struct {
	Namespace       string
	Name            string
	NodeName        string
	Phase           string
	Containers      []ContainerInfo
	ResourceVersion string
}

// ContainerInfo carries the request/limit shape of one container.
type ContainerInfo struct {
	Name       string
	RequestCPU int64 // millicores
	RequestMem int64 // bytes
	LimitCPU   int64
	LimitMem   int64
}

// WorkloadInfo is the cached record for one deployment-like controller.
type WorkloadInfo struct {
	Namespace       string
	Name            string
	WorkloadKind    string // Deployment, StatefulSet, ...
	Replicas        int32
	ReadyReplicas   int32
	ResourceVersion string
}

// ServiceInfo is the cached record for one service.
type ServiceInfo struct {
	Namespace       string
	Name            string
	Type            string
	ResourceVersion string
}

// Snapshot is an immutable point-in-time view of the cluster objects the
// observer tracks. Once published through a Store it is never mutated;
// every change produces a new Snapshot.
type Snapshot struct {
	Taken     time.Time
	Nodes     map[string]NodeInfo
	Pods      map[string]PodInfo
	Workloads map[string]WorkloadInfo
	Services  map[string]ServiceInfo
}

// NewSnapshot returns an empty snapshot stamped now.
func NewSnapshot() *Snapshot {
	return &Snapshot{
		Taken:     time.Now().UTC(),
		Nodes:     map[string]NodeInfo{},
		Pods:      map[string]PodInfo{},
		Workloads: map[string]WorkloadInfo{},
		Services:  map[string]ServiceInfo{},
	}
}

// clone copies the snapshot's top-level maps so a writer can mutate the
// copy without touching the published view. Object records are value
// types, so a shallow map copy is a full copy of the published structure.
func (s *Snapshot) clone() *Snapshot {
	c := &Snapshot{
		Taken:     time.Now().UTC(),
		Nodes:     make(map[string]NodeInfo, len(s.Nodes)),
		Pods:      make(map[string]PodInfo, len(s.Pods)),
		Workloads: make(map[string]WorkloadInfo, len(s.Workloads)),
		Services:  make(map[string]ServiceInfo, len(s.Services)),
	}
	for k, v := range s.Nodes {
		c.Nodes[k] = v
	}
	for k, v := range s.Pods {
		c.Pods[k] = v
	}
	for k, v := range s.Workloads {
		c.Workloads[k] = v
	}
	for k, v := range s.Services {
		c.Services[k] = v
	}
	return c
}

// Count returns how many objects of a kind the snapshot holds.
func (s *Snapshot) Count(kind models.Kind) int {
	switch kind {
	case models.KindNode:
		return len(s.Nodes)
	case models.KindPod:
		return len(s.Pods)
	case models.KindWorkload:
		return len(s.Workloads)
	case models.KindService:
		return len(s.Services)
	}
	return 0
}

// version returns the recorded resource version for a key of a kind, or
// "" if the key is unknown.
func (s *Snapshot) version(kind models.Kind, key string) string {
	switch kind {
	case models.KindNode:
		if n, ok := s.Nodes[key]; ok {
			return n.ResourceVersion
		}
	case models.KindPod:
		if p, ok := s.Pods[key]; ok {
			return p.ResourceVersion
		}
	case models.KindWorkload:
		if w, ok := s.Workloads[key]; ok {
			return w.ResourceVersion
		}
	case models.KindService:
		if svc, ok := s.Services[key]; ok {
			return svc.ResourceVersion
		}
	}
	return ""
}
