package query

import (
	"fmt"
	"time"

	"kube-cost-observer/pkg/cost"
	"kube-cost-observer/pkg/logger"
	"kube-cost-observer/pkg/models"
	"kube-cost-observer/pkg/repository"
)

// Resyncer is the scheduler-side hook for on-demand collection runs.
type Resyncer interface {
	Resync() bool
}

// Service is the query surface consumed by the API layer. It never
// blocks on in-progress collection: reads go through the repository's
// range reads only. Failures are logged here with full detail; the API
// layer decides what the caller sees.
type Service struct {
	repo     repository.Repository
	engine   *cost.Engine
	resyncer Resyncer
	log      *logger.Logger
}

// NewService wires the query surface.
func NewService(repo repository.Repository, engine *cost.Engine, resyncer Resyncer, log *logger.Logger) *Service {
	return &Service{repo: repo, engine: engine, resyncer: resyncer, log: log}
}

// GetRange returns the raw, ordered, de-duplicated rows for a window.
func (s *Service) GetRange(kind models.Kind, key string, start, end time.Time) ([]models.MetricRow, error) {
	if err := validateWindow(start, end); err != nil {
		return nil, err
	}
	rows, err := s.repo.ReadRange(kind, key, start, end)
	if err != nil {
		s.log.Errorw("Range read failed", "kind", kind, "key", key, "error", err)
		return nil, err
	}
	return rows, nil
}

// GetSummary returns the window's single cost total.
func (s *Service) GetSummary(kind models.Kind, key string, start, end time.Time) (models.CostSummary, error) {
	if err := validateWindow(start, end); err != nil {
		return models.CostSummary{}, err
	}
	sum, err := s.engine.Summary(kind, key, start, end)
	if err != nil {
		s.log.Errorw("Cost summary failed", "kind", kind, "key", key, "error", err)
		return models.CostSummary{}, err
	}
	return sum, nil
}

// GetTrend returns the window's time-bucketed cost totals.
func (s *Service) GetTrend(kind models.Kind, key string, start, end time.Time, step time.Duration) (models.CostTrend, error) {
	if err := validateWindow(start, end); err != nil {
		return models.CostTrend{}, err
	}
	trend, err := s.engine.Trend(kind, key, start, end, step)
	if err != nil {
		s.log.Errorw("Cost trend failed", "kind", kind, "key", key, "error", err)
		return models.CostTrend{}, err
	}
	return trend, nil
}

// Resync queues an out-of-band collection run and acknowledges
// immediately. It never fails because a previous run is still going.
func (s *Service) Resync() bool {
	return s.resyncer.Resync()
}

func validateWindow(start, end time.Time) error {
	if !start.Before(end) {
		return fmt.Errorf("window start %s must be before end %s",
			start.Format(time.RFC3339), end.Format(time.RFC3339))
	}
	return nil
}
