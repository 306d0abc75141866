package scheduler

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
	"k8s.io/klog/v2"

	"kube-cost-observer/pkg/collector"
	obsmetrics "kube-cost-observer/pkg/metrics"
)

// Summarizer is a periodic rollup run after the collectors each cycle.
type Summarizer interface {
	Name() string
	Summarize(ctx context.Context, now time.Time) error
}

// RefreshFunc is the fast settings/info refresh run at the start of each
// cycle.
type RefreshFunc func(ctx context.Context) error

// Scheduler drives the collectors and summarizers on a fixed cadence and
// serves on-demand resyncs through a bounded queue consumed by one
// background worker. Ticks never overlap: if a cycle is still running
// when the next tick fires, that tick is skipped outright.
type Scheduler struct {
	interval    time.Duration
	collectors  []collector.Collector
	summarizers []Summarizer
	refresh     RefreshFunc
	exporter    *obsmetrics.Exporter

	busy   sync.Mutex // held for the duration of one cycle
	resync chan time.Time
}

// Option configures a Scheduler.
type Option func(*Scheduler)

// WithRefresh sets the per-cycle settings refresh.
func WithRefresh(fn RefreshFunc) Option {
	return func(s *Scheduler) { s.refresh = fn }
}

// WithSummarizers sets the rollups run after the collectors.
func WithSummarizers(sums ...Summarizer) Option {
	return func(s *Scheduler) { s.summarizers = sums }
}

// WithResyncQueueSize bounds the on-demand resync queue.
func WithResyncQueueSize(n int) Option {
	return func(s *Scheduler) { s.resync = make(chan time.Time, n) }
}

// New builds a scheduler with the given cadence.
func New(interval time.Duration, exporter *obsmetrics.Exporter, collectors []collector.Collector, opts ...Option) *Scheduler {
	s := &Scheduler{
		interval:   interval,
		collectors: collectors,
		exporter:   exporter,
		resync:     make(chan time.Time, 4),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// ParseCadence accepts either a Go duration ("1m") or a five-field cron
// expression ("*/5 * * * *") and returns the effective tick interval. A
// cron expression is reduced to the gap between its next two firings.
func ParseCadence(spec string) (time.Duration, error) {
	if d, err := time.ParseDuration(spec); err == nil {
		if d < time.Second {
			return 0, fmt.Errorf("cadence %s too short", spec)
		}
		return d, nil
	}

	parser := cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow)
	sched, err := parser.Parse(spec)
	if err != nil {
		return 0, fmt.Errorf("cadence %q is neither a duration nor a cron expression: %v", spec, err)
	}
	first := sched.Next(time.Now())
	return sched.Next(first).Sub(first), nil
}

// Run blocks, ticking until ctx is done. The resync worker runs
// alongside and drains the queue one job at a time.
func (s *Scheduler) Run(ctx context.Context) {
	klog.Infof("Scheduler starting: %d collectors, cadence %s", len(s.collectors), s.interval)

	go s.resyncWorker(ctx)

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			klog.Info("Scheduler stopping")
			return
		case now := <-ticker.C:
			if !s.busy.TryLock() {
				klog.V(2).Info("Previous cycle still running, skipping tick")
				s.exporter.TicksSkipped.Inc()
				continue
			}
			s.runCycle(ctx, now)
			s.busy.Unlock()
		}
	}
}

// Resync queues one out-of-band collection run and returns immediately.
// The ack reports whether the request was queued; a full queue coalesces
// the request into the runs already pending, which is still a success for
// the caller.
func (s *Scheduler) Resync() bool {
	select {
	case s.resync <- time.Now():
		s.exporter.ResyncsQueued.Inc()
		s.exporter.ResyncDepth.Set(float64(len(s.resync)))
		return true
	default:
		klog.V(2).Info("Resync queue full, coalescing request")
		return true
	}
}

func (s *Scheduler) resyncWorker(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case <-s.resync:
			s.exporter.ResyncDepth.Set(float64(len(s.resync)))
			// A resync overlapping a cadence tick is safe: appends are
			// keyed by timestamp and readers de-duplicate. Serialize with
			// the cadence loop anyway to bound concurrent load.
			s.busy.Lock()
			s.runCycle(ctx, time.Now())
			s.busy.Unlock()
		}
	}
}

// runCycle is one full pass: settings refresh, collectors, summarizers.
// A failing phase member is logged and skipped; it never aborts its
// siblings or the loop.
func (s *Scheduler) runCycle(ctx context.Context, now time.Time) {
	if s.refresh != nil {
		if err := s.refresh(ctx); err != nil {
			klog.Warningf("Settings refresh failed: %v", err)
		}
	}

	for _, c := range s.collectors {
		timer := time.Now()
		written, err := c.Collect(ctx, now)
		s.exporter.CollectionDuration.WithLabelValues(c.Name()).Observe(time.Since(timer).Seconds())
		if err != nil {
			klog.Errorf("Collector %s failed: %v", c.Name(), err)
			s.exporter.CollectionsTotal.WithLabelValues(c.Name(), "failure").Inc()
			s.exporter.CollectionErrors.WithLabelValues(c.Name()).Inc()
			continue
		}
		s.exporter.CollectionsTotal.WithLabelValues(c.Name(), "success").Inc()
		s.exporter.RowsAppended.WithLabelValues(string(c.Kind())).Add(float64(written))
		klog.V(3).Infof("Collector %s wrote %d rows", c.Name(), written)
	}

	for _, sum := range s.summarizers {
		if err := sum.Summarize(ctx, now); err != nil {
			klog.Warningf("Summarizer %s failed: %v", sum.Name(), err)
		}
	}
}

// RunOnce executes a single cycle synchronously. Used by the debug
// one-shot path.
func (s *Scheduler) RunOnce(ctx context.Context) {
	s.busy.Lock()
	defer s.busy.Unlock()
	s.runCycle(ctx, time.Now())
}
