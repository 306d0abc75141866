package snapshot

import (
	"context"
	"fmt"
	"time"

	appsv1 "k8s.io/api/apps/v1"
	corev1 "k8s.io/api/core/v1"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	"k8s.io/apimachinery/pkg/runtime"
	utilruntime "k8s.io/apimachinery/pkg/util/runtime"
	"k8s.io/apimachinery/pkg/watch"
	"k8s.io/client-go/kubernetes"
	"k8s.io/client-go/tools/cache"
	"k8s.io/klog/v2"

	"kube-cost-observer/pkg/models"
)

// Ingestor watches the tracked object kinds and folds every add, update
// and delete into a Store. Reconnection and resync are handled by the
// shared informers; the Store's version guard makes replayed events
// harmless.
type Ingestor struct {
	store     *Store
	informers []cache.SharedIndexInformer
}

// NewIngestor builds informers for nodes, pods, deployments and services
// in the given namespace ("" for all) feeding the store.
func NewIngestor(client kubernetes.Interface, store *Store, namespace string, resync time.Duration) (*Ingestor, error) {
	ing := &Ingestor{store: store}

	nodeInformer := cache.NewSharedIndexInformer(
		&cache.ListWatch{
			ListFunc: func(options metav1.ListOptions) (runtime.Object, error) {
				return client.CoreV1().Nodes().List(context.Background(), options)
			},
			WatchFunc: func(options metav1.ListOptions) (watch.Interface, error) {
				return client.CoreV1().Nodes().Watch(context.Background(), options)
			},
		},
		&corev1.Node{}, resync, cache.Indexers{},
	)
	podInformer := cache.NewSharedIndexInformer(
		&cache.ListWatch{
			ListFunc: func(options metav1.ListOptions) (runtime.Object, error) {
				return client.CoreV1().Pods(namespace).List(context.Background(), options)
			},
			WatchFunc: func(options metav1.ListOptions) (watch.Interface, error) {
				return client.CoreV1().Pods(namespace).Watch(context.Background(), options)
			},
		},
		&corev1.Pod{}, resync, cache.Indexers{},
	)
	deployInformer := cache.NewSharedIndexInformer(
		&cache.ListWatch{
			ListFunc: func(options metav1.ListOptions) (runtime.Object, error) {
				return client.AppsV1().Deployments(namespace).List(context.Background(), options)
			},
			WatchFunc: func(options metav1.ListOptions) (watch.Interface, error) {
				return client.AppsV1().Deployments(namespace).Watch(context.Background(), options)
			},
		},
		&appsv1.Deployment{}, resync, cache.Indexers{},
	)
	serviceInformer := cache.NewSharedIndexInformer(
		&cache.ListWatch{
			ListFunc: func(options metav1.ListOptions) (runtime.Object, error) {
				return client.CoreV1().Services(namespace).List(context.Background(), options)
			},
			WatchFunc: func(options metav1.ListOptions) (watch.Interface, error) {
				return client.CoreV1().Services(namespace).Watch(context.Background(), options)
			},
		},
		&corev1.Service{}, resync, cache.Indexers{},
	)

	for _, reg := range []struct {
		informer cache.SharedIndexInformer
		convert  func(obj interface{}) (Event, bool)
	}{
		{nodeInformer, convertNode},
		{podInformer, convertPod},
		{deployInformer, convertDeployment},
		{serviceInformer, convertService},
	} {
		convert := reg.convert
		_, err := reg.informer.AddEventHandler(cache.ResourceEventHandlerFuncs{
			AddFunc: func(obj interface{}) {
				if ev, ok := convert(obj); ok {
					ev.Type = EventAdd
					ing.store.ApplyEvent(ev)
				}
			},
			UpdateFunc: func(_, newObj interface{}) {
				if ev, ok := convert(newObj); ok {
					ev.Type = EventUpdate
					ing.store.ApplyEvent(ev)
				}
			},
			DeleteFunc: func(obj interface{}) {
				if tomb, ok := obj.(cache.DeletedFinalStateUnknown); ok {
					obj = tomb.Obj
				}
				if ev, ok := convert(obj); ok {
					ev.Type = EventDelete
					ing.store.ApplyEvent(ev)
				}
			},
		})
		if err != nil {
			return nil, fmt.Errorf("adding event handler: %v", err)
		}
		ing.informers = append(ing.informers, reg.informer)
	}

	return ing, nil
}

// Run starts all informers and blocks until their caches have synced,
// then returns while the informers keep running until ctx is done.
func (i *Ingestor) Run(ctx context.Context) error {
	defer utilruntime.HandleCrash()

	klog.Info("Starting snapshot ingestion")
	synced := make([]cache.InformerSynced, 0, len(i.informers))
	for _, inf := range i.informers {
		go inf.Run(ctx.Done())
		synced = append(synced, inf.HasSynced)
	}

	if !cache.WaitForCacheSync(ctx.Done(), synced...) {
		return fmt.Errorf("failed to wait for caches to sync")
	}
	klog.Infof("Snapshot caches synced: %d nodes, %d pods",
		i.store.Get().Count(models.KindNode), i.store.Get().Count(models.KindPod))
	return nil
}

func convertNode(obj interface{}) (Event, bool) {
	node, ok := obj.(*corev1.Node)
	if !ok {
		return Event{}, false
	}
	return Event{
		Kind:            models.KindNode,
		Key:             node.Name,
		ResourceVersion: node.ResourceVersion,
		Object: NodeInfo{
			Name:            node.Name,
			Labels:          node.Labels,
			AllocatableCPU:  node.Status.Allocatable.Cpu().MilliValue(),
			AllocatableMem:  node.Status.Allocatable.Memory().Value(),
			ResourceVersion: node.ResourceVersion,
		},
	}, true
}

func convertPod(obj interface{}) (Event, bool) {
	pod, ok := obj.(*corev1.Pod)
	if !ok {
		return Event{}, false
	}
	containers := make([]ContainerInfo, 0, len(pod.Spec.Containers))
	for _, c := range pod.Spec.Containers {
		containers = append(containers, ContainerInfo{
			Name:       c.Name,
			RequestCPU: c.Resources.Requests.Cpu().MilliValue(),
			RequestMem: c.Resources.Requests.Memory().Value(),
			LimitCPU:   c.Resources.Limits.Cpu().MilliValue(),
			LimitMem:   c.Resources.Limits.Memory().Value(),
		})
	}
	return Event{
		Kind:            models.KindPod,
		Key:             pod.Namespace + "/" + pod.Name,
		ResourceVersion: pod.ResourceVersion,
		Object: PodInfo{
			Namespace:       pod.Namespace,
			Name:            pod.Name,
			NodeName:        pod.Spec.NodeName,
			Phase:           string(pod.Status.Phase),
			Containers:      containers,
			ResourceVersion: pod.ResourceVersion,
		},
	}, true
}

func convertDeployment(obj interface{}) (Event, bool) {
	dep, ok := obj.(*appsv1.Deployment)
	if !ok {
		return Event{}, false
	}
	var replicas int32 = 1
	if dep.Spec.Replicas != nil {
		replicas = *dep.Spec.Replicas
	}
	return Event{
		Kind:            models.KindWorkload,
		Key:             dep.Namespace + "/" + dep.Name,
		ResourceVersion: dep.ResourceVersion,
		Object: WorkloadInfo{
			Namespace:       dep.Namespace,
			Name:            dep.Name,
			WorkloadKind:    "Deployment",
			Replicas:        replicas,
			ReadyReplicas:   dep.Status.ReadyReplicas,
			ResourceVersion: dep.ResourceVersion,
		},
	}, true
}

func convertService(obj interface{}) (Event, bool) {
	svc, ok := obj.(*corev1.Service)
	if !ok {
		return Event{}, false
	}
	return Event{
		Kind:            models.KindService,
		Key:             svc.Namespace + "/" + svc.Name,
		ResourceVersion: svc.ResourceVersion,
		Object: ServiceInfo{
			Namespace:       svc.Namespace,
			Name:            svc.Name,
			Type:            string(svc.Spec.Type),
			ResourceVersion: svc.ResourceVersion,
		},
	}, true
}
