package collector

import (
	"context"
	"testing"

	corev1 "k8s.io/api/core/v1"
	"k8s.io/apimachinery/pkg/api/resource"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	"k8s.io/metrics/pkg/apis/metrics/v1beta1"
	metricsfake "k8s.io/metrics/pkg/client/clientset/versioned/fake"
)

// The generated fake tracker guesses resources from kinds ("podmetricses",
// "nodemetricses"), but the typed fake clients list "pods" and "nodes", so
// objects passed to NewSimpleClientset are never returned. Seed the tracker
// under the resource names the typed clients actually use.
func newFakeMetricsClient(t *testing.T, pods []*v1beta1.PodMetrics, nodes []*v1beta1.NodeMetrics) *metricsfake.Clientset {
	t.Helper()
	client := metricsfake.NewSimpleClientset()
	for _, p := range pods {
		if err := client.Tracker().Create(v1beta1.SchemeGroupVersion.WithResource("pods"), p, p.Namespace); err != nil {
			t.Fatalf("seeding pod metrics: %v", err)
		}
	}
	for _, n := range nodes {
		if err := client.Tracker().Create(v1beta1.SchemeGroupVersion.WithResource("nodes"), n, ""); err != nil {
			t.Fatalf("seeding node metrics: %v", err)
		}
	}
	return client
}

func TestMetricsAPISourcePodUsage(t *testing.T) {
	client := newFakeMetricsClient(t, []*v1beta1.PodMetrics{
		{
			ObjectMeta: metav1.ObjectMeta{Namespace: "default", Name: "web-0"},
			Containers: []v1beta1.ContainerMetrics{
				{Name: "app", Usage: corev1.ResourceList{
					corev1.ResourceCPU:    resource.MustParse("250m"),
					corev1.ResourceMemory: resource.MustParse("128Mi"),
				}},
				{Name: "sidecar", Usage: corev1.ResourceList{
					corev1.ResourceCPU:    resource.MustParse("50m"),
					corev1.ResourceMemory: resource.MustParse("32Mi"),
				}},
			},
		},
		{
			ObjectMeta: metav1.ObjectMeta{Namespace: "other", Name: "job-1"},
			Containers: []v1beta1.ContainerMetrics{
				{Name: "job", Usage: corev1.ResourceList{
					corev1.ResourceCPU: resource.MustParse("1"),
				}},
			},
		},
	}, nil)
	source := NewMetricsAPISourceFromClient(client)

	usage, err := source.PodUsage(context.Background(), "default")
	if err != nil {
		t.Fatalf("PodUsage: %v", err)
	}
	if len(usage) != 1 {
		t.Fatalf("got %d readings, want 1 (namespace filter): %v", len(usage), usage)
	}
	got, ok := usage["default/web-0"]
	if !ok {
		t.Fatalf("missing default/web-0 in %v", usage)
	}
	// container readings sum per pod
	if got.CPUMillis != 300 {
		t.Errorf("CPUMillis = %d, want 300", got.CPUMillis)
	}
	if want := int64(160 * 1024 * 1024); got.MemoryBytes != want {
		t.Errorf("MemoryBytes = %d, want %d", got.MemoryBytes, want)
	}
}

func TestMetricsAPISourceNodeUsage(t *testing.T) {
	client := newFakeMetricsClient(t, nil, []*v1beta1.NodeMetrics{
		{
			ObjectMeta: metav1.ObjectMeta{Name: "node-1"},
			Usage: corev1.ResourceList{
				corev1.ResourceCPU:    resource.MustParse("2"),
				corev1.ResourceMemory: resource.MustParse("4Gi"),
			},
		},
	})
	source := NewMetricsAPISourceFromClient(client)

	usage, err := source.NodeUsage(context.Background())
	if err != nil {
		t.Fatalf("NodeUsage: %v", err)
	}
	got, ok := usage["node-1"]
	if !ok {
		t.Fatalf("missing node-1 in %v", usage)
	}
	if got.CPUMillis != 2000 {
		t.Errorf("CPUMillis = %d, want 2000", got.CPUMillis)
	}
	if want := int64(4 * 1024 * 1024 * 1024); got.MemoryBytes != want {
		t.Errorf("MemoryBytes = %d, want %d", got.MemoryBytes, want)
	}
}
