package main

import (
	"context"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"k8s.io/client-go/kubernetes"
	"k8s.io/client-go/rest"
	"k8s.io/client-go/tools/clientcmd"

	"kube-cost-observer/pkg/collector"
	"kube-cost-observer/pkg/config"
	"kube-cost-observer/pkg/cost"
	"kube-cost-observer/pkg/logger"
	obsmetrics "kube-cost-observer/pkg/metrics"
	"kube-cost-observer/pkg/models"
	"kube-cost-observer/pkg/query"
	"kube-cost-observer/pkg/repository"
	"kube-cost-observer/pkg/scheduler"
	"kube-cost-observer/pkg/snapshot"
)

func main() {
	configPath := flag.String("config", "", "Path to the YAML config file")
	namespace := flag.String("namespace", "", "Namespace to observe (overrides config)")
	dataDir := flag.String("data-dir", "", "Partition directory (overrides config)")
	debug := flag.Bool("debug", false, "Run one diagnostic collection cycle and exit")
	flag.Parse()

	// Env fallbacks for container deployments.
	if *configPath == "" {
		*configPath = os.Getenv("OBSERVER_CONFIG")
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		// No logger yet.
		fmt.Fprintln(os.Stderr, "Failed to load config:", err)
		os.Exit(1)
	}
	if *namespace != "" {
		cfg.Namespace = *namespace
	} else if ns := os.Getenv("TARGET_NAMESPACE"); ns != "" && cfg.Namespace == "" {
		cfg.Namespace = ns
	}
	if *dataDir != "" {
		cfg.DataDir = *dataDir
	}
	if *debug {
		cfg.Debug = true
	}

	log, err := logger.New(cfg.LogLevel, cfg.LogDevelopment)
	if err != nil {
		fmt.Fprintln(os.Stderr, "Failed to build logger:", err)
		os.Exit(1)
	}
	defer log.Sync()

	if err := run(cfg, log); err != nil {
		log.Fatalw("Observer exited", "error", err)
	}
}

func run(cfg *config.Config, log *logger.Logger) error {
	restConfig, err := buildRestConfig()
	if err != nil {
		return err
	}
	kubeClient, err := kubernetes.NewForConfig(restConfig)
	if err != nil {
		return err
	}
	source, err := collector.NewMetricsAPISource(restConfig)
	if err != nil {
		return err
	}

	repo, err := repository.NewFileRepository(cfg.DataDir)
	if err != nil {
		return err
	}
	defer repo.Close()

	resolver, err := cfg.BuildResolver()
	if err != nil {
		return err
	}

	store := snapshot.NewStore()
	engine := cost.NewEngine(repo, resolver)
	exporter := obsmetrics.NewExporter("kube_cost_observer")

	collectors := []collector.Collector{
		collector.NewNodeCollector(store, repo, source),
		collector.NewPodCollector(store, repo, source, cfg.Namespace),
		collector.NewWorkloadCollector(store, repo),
	}

	cadence, err := scheduler.ParseCadence(cfg.Cadence)
	if err != nil {
		return err
	}
	sched := scheduler.New(cadence, exporter, collectors,
		scheduler.WithResyncQueueSize(cfg.ResyncQueueSize),
		scheduler.WithSummarizers(cost.NewHourlyRollup(engine, store, exporter)),
	)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigChan
		log.Info("Shutting down")
		cancel()
	}()

	informerResync, err := cfg.InformerResyncPeriod()
	if err != nil {
		return err
	}
	ingestor, err := snapshot.NewIngestor(kubeClient, store, cfg.Namespace, informerResync)
	if err != nil {
		return err
	}
	if err := ingestor.Run(ctx); err != nil {
		return err
	}

	if cfg.Debug {
		return runDiagnostic(ctx, sched, store, log)
	}

	if cfg.MetricsAddr != "" {
		svc := query.NewService(repo, engine, sched, log)
		go func() {
			if err := http.ListenAndServe(cfg.MetricsAddr, newServeMux(svc)); err != nil {
				log.Warnw("HTTP endpoint stopped", "error", err)
			}
		}()
	}

	log.Infow("Observer running",
		"namespace", cfg.Namespace, "cadence", cadence, "dataDir", cfg.DataDir)
	sched.Run(ctx)
	return nil
}

// newServeMux exposes the Prometheus endpoint and the on-demand resync
// trigger.
func newServeMux(svc *query.Service) *http.ServeMux {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	mux.HandleFunc("/resync", func(w http.ResponseWriter, req *http.Request) {
		if req.Method != http.MethodPost {
			http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
			return
		}
		svc.Resync()
		w.WriteHeader(http.StatusAccepted)
	})
	return mux
}

// runDiagnostic executes one collection cycle and dumps snapshot counts.
func runDiagnostic(ctx context.Context, sched *scheduler.Scheduler, store *snapshot.Store, log *logger.Logger) error {
	log.Info("Debug mode: running one collection cycle")
	sched.RunOnce(ctx)

	snap := store.Get()
	for _, kind := range models.AllKinds {
		log.Infow("Snapshot", "kind", kind, "objects", snap.Count(kind))
	}
	return nil
}

func buildRestConfig() (*rest.Config, error) {
	if cfg, err := rest.InClusterConfig(); err == nil {
		return cfg, nil
	}
	kubeconfig := os.Getenv("KUBECONFIG")
	if kubeconfig == "" {
		kubeconfig = filepath.Join(os.Getenv("HOME"), ".kube", "config")
	}
	return clientcmd.BuildConfigFromFlags("", kubeconfig)
}
