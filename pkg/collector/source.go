package collector

import (
	"context"
	"fmt"

	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	"k8s.io/client-go/rest"
	metricsv "k8s.io/metrics/pkg/client/clientset/versioned"
)

// Usage is one instantaneous reading for one object.
type Usage struct {
	CPUMillis   int64
	MemoryBytes int64
}

// UsageSource is the external metrics feed a collector reads. Production
// uses the cluster metrics API; tests use a fake.
type UsageSource interface {
	// PodUsage returns usage keyed by namespace/name for the namespace
	// ("" for all namespaces).
	PodUsage(ctx context.Context, namespace string) (map[string]Usage, error)

	// NodeUsage returns usage keyed by node name.
	NodeUsage(ctx context.Context) (map[string]Usage, error)
}

// MetricsAPISource reads from the Kubernetes metrics.k8s.io API.
type MetricsAPISource struct {
	client metricsv.Interface
}

// NewMetricsAPISource builds a source from a rest config.
func NewMetricsAPISource(config *rest.Config) (*MetricsAPISource, error) {
	client, err := metricsv.NewForConfig(config)
	if err != nil {
		return nil, fmt.Errorf("building metrics client: %w", err)
	}
	return &MetricsAPISource{client: client}, nil
}

// NewMetricsAPISourceFromClient wraps an existing clientset, used with
// the fake clientset in tests.
func NewMetricsAPISourceFromClient(client metricsv.Interface) *MetricsAPISource {
	return &MetricsAPISource{client: client}
}

func (s *MetricsAPISource) PodUsage(ctx context.Context, namespace string) (map[string]Usage, error) {
	list, err := s.client.MetricsV1beta1().PodMetricses(namespace).List(ctx, metav1.ListOptions{})
	if err != nil {
		return nil, fmt.Errorf("listing pod metrics: %w", err)
	}

	usage := make(map[string]Usage, len(list.Items))
	for _, m := range list.Items {
		var total Usage
		for _, c := range m.Containers {
			total.CPUMillis += c.Usage.Cpu().MilliValue()
			total.MemoryBytes += c.Usage.Memory().Value()
		}
		usage[m.Namespace+"/"+m.Name] = total
	}
	return usage, nil
}

func (s *MetricsAPISource) NodeUsage(ctx context.Context) (map[string]Usage, error) {
	list, err := s.client.MetricsV1beta1().NodeMetricses().List(ctx, metav1.ListOptions{})
	if err != nil {
		return nil, fmt.Errorf("listing node metrics: %w", err)
	}

	usage := make(map[string]Usage, len(list.Items))
	for _, m := range list.Items {
		usage[m.Name] = Usage{
			CPUMillis:   m.Usage.Cpu().MilliValue(),
			MemoryBytes: m.Usage.Memory().Value(),
		}
	}
	return usage, nil
}
