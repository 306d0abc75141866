package pricing

import (
	"fmt"
	"sort"
	"sync"
	"time"
)

// Price is a unit price pair: per CPU core per hour and per GB of memory
// per hour, in the account currency.
type Price struct {
	CPUPerCoreHour  float64 `yaml:"cpuPerCoreHour" json:"cpu_per_core_hour"`
	MemoryPerGBHour float64 `yaml:"memoryPerGBHour" json:"memory_per_gb_hour"`
}

// Period is one time-bounded price for a scope. End nil means open-ended.
type Period struct {
	Start time.Time  `yaml:"start" json:"start"`
	End   *time.Time `yaml:"end,omitempty" json:"end,omitempty"`
	Price Price      `yaml:"price" json:"price"`
}

// contains reports whether ts falls inside [Start, End).
func (p Period) contains(ts time.Time) bool {
	if ts.Before(p.Start) {
		return false
	}
	return p.End == nil || ts.Before(*p.End)
}

// MissingPriceError signals that no period covers the requested
// timestamp. Callers must surface it, never substitute a default.
type MissingPriceError struct {
	Scope string
	At    time.Time
}

func (e *MissingPriceError) Error() string {
	return fmt.Sprintf("no price for scope %q at %s", e.Scope, e.At.Format(time.RFC3339))
}

// Resolver answers "what did a unit of this object cost at this instant".
// Each scope (an object key, a namespace, or "default") carries an
// ordered list of non-overlapping periods. Lookup falls back from the
// exact scope to "default".
type Resolver struct {
	mu      sync.RWMutex
	periods map[string][]Period // sorted by Start
}

// DefaultScope is the catch-all pricing scope.
const DefaultScope = "default"

// NewResolver returns a resolver with no periods configured.
func NewResolver() *Resolver {
	return &Resolver{periods: map[string][]Period{}}
}

// Upsert adds or replaces a period for a scope. A period with the same
// Start replaces the existing one; otherwise it is inserted keeping the
// list ordered. Overlap with a neighbouring period is rejected.
func (r *Resolver) Upsert(scope string, period Period) error {
	if period.End != nil && !period.Start.Before(*period.End) {
		return fmt.Errorf("period end %s not after start %s", period.End, period.Start)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	list := make([]Period, len(r.periods[scope]))
	copy(list, r.periods[scope])

	replaced := false
	for i, existing := range list {
		if existing.Start.Equal(period.Start) {
			list[i] = period
			replaced = true
			break
		}
	}
	if !replaced {
		list = append(list, period)
		sort.Slice(list, func(i, j int) bool { return list[i].Start.Before(list[j].Start) })
	}
	if err := r.checkOverlap(scope, list); err != nil {
		return err
	}
	r.periods[scope] = list
	return nil
}

func (r *Resolver) checkOverlap(scope string, list []Period) error {
	for i := 1; i < len(list); i++ {
		prev := list[i-1]
		if prev.End == nil || list[i].Start.Before(*prev.End) {
			return fmt.Errorf("scope %q: period starting %s overlaps the previous period",
				scope, list[i].Start.Format(time.RFC3339))
		}
	}
	return nil
}

// PriceAt resolves the price effective for a scope at ts. Scope lookup
// order: the exact scope, then DefaultScope.
func (r *Resolver) PriceAt(scope string, ts time.Time) (Price, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	for _, s := range []string{scope, DefaultScope} {
		for _, p := range r.periods[s] {
			if p.contains(ts) {
				return p.Price, nil
			}
		}
	}
	return Price{}, &MissingPriceError{Scope: scope, At: ts}
}

// Periods returns a copy of the configured periods for a scope.
func (r *Resolver) Periods(scope string) []Period {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]Period, len(r.periods[scope]))
	copy(out, r.periods[scope])
	return out
}
