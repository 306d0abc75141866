package cost

import (
	"errors"
	"fmt"
	"time"

	"kube-cost-observer/pkg/models"
	"kube-cost-observer/pkg/pricing"
	"kube-cost-observer/pkg/repository"
)

// Engine turns raw metric rows into money. Every row is priced at its own
// timestamp, so a historical query returns the same figures before and
// after a later price change.
type Engine struct {
	repo    repository.Repository
	pricing *pricing.Resolver
}

// NewEngine wires a repository and a pricing resolver.
func NewEngine(repo repository.Repository, resolver *pricing.Resolver) *Engine {
	return &Engine{repo: repo, pricing: resolver}
}

// CostRows prices each row in the window individually.
func (e *Engine) CostRows(kind models.Kind, key string, start, end time.Time) ([]models.CostRow, error) {
	rows, err := e.repo.ReadRange(kind, key, start, end)
	if err != nil {
		return nil, fmt.Errorf("reading range: %w", err)
	}

	out := make([]models.CostRow, 0, len(rows))
	for _, row := range rows {
		cr, err := e.costRow(row)
		if err != nil {
			return nil, err
		}
		out = append(out, cr)
	}
	return out, nil
}

// Summary aggregates the window into a single total.
func (e *Engine) Summary(kind models.Kind, key string, start, end time.Time) (models.CostSummary, error) {
	costed, err := e.CostRows(kind, key, start, end)
	if err != nil {
		return models.CostSummary{}, err
	}

	sum := models.CostSummary{Kind: kind, Key: key, Start: start, End: end, RowCount: len(costed)}
	for _, cr := range costed {
		sum.CPUCost += cr.CPUCost
		sum.MemCost += cr.MemCost
		sum.TotalCost += cr.RowTotal
	}
	return sum, nil
}

// Trend buckets the window by step and totals each bucket. Buckets are
// emitted for the whole window, including empty ones, so trends over
// sparse data keep their shape.
func (e *Engine) Trend(kind models.Kind, key string, start, end time.Time, step time.Duration) (models.CostTrend, error) {
	if step <= 0 {
		return models.CostTrend{}, errors.New("trend step must be positive")
	}
	costed, err := e.CostRows(kind, key, start, end)
	if err != nil {
		return models.CostTrend{}, err
	}

	trend := models.CostTrend{Kind: kind, Key: key, Start: start, End: end, Step: step}
	for bucketStart := start.UTC(); bucketStart.Before(end.UTC()); bucketStart = bucketStart.Add(step) {
		trend.Buckets = append(trend.Buckets, models.TrendBucket{Start: bucketStart})
	}
	for _, cr := range costed {
		idx := int(cr.Row.Timestamp.Sub(start.UTC()) / step)
		if idx < 0 || idx >= len(trend.Buckets) {
			continue
		}
		trend.Buckets[idx].RowCount++
		trend.Buckets[idx].Cost += cr.RowTotal
	}
	return trend, nil
}

// costRow prices one sample. A minute-granularity row covers 1/60 of an
// hour, so hourly unit prices are scaled down accordingly.
func (e *Engine) costRow(row models.MetricRow) (models.CostRow, error) {
	price, err := e.pricing.PriceAt(row.Key, row.Timestamp)
	if err != nil {
		return models.CostRow{}, err
	}

	const hourFraction = 1.0 / 60.0
	cpuCores := float64(row.CPUMillis) / 1000.0
	memGB := float64(row.MemoryBytes) / (1024 * 1024 * 1024)

	cpuCost := cpuCores * price.CPUPerCoreHour * hourFraction
	memCost := memGB * price.MemoryPerGBHour * hourFraction

	return models.CostRow{
		Row:      row,
		CPUCost:  cpuCost,
		MemCost:  memCost,
		RowTotal: cpuCost + memCost,
	}, nil
}
