package pricing

import (
	"errors"
	"testing"
	"time"
)

func ts(s string) time.Time {
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		panic(err)
	}
	return t
}

func tsPtr(s string) *time.Time {
	t := ts(s)
	return &t
}

func TestPriceAtSelectsEffectivePeriod(t *testing.T) {
	r := NewResolver()
	if err := r.Upsert("default/web-0", Period{
		Start: ts("2026-01-01T00:00:00Z"),
		End:   tsPtr("2026-02-01T00:00:00Z"),
		Price: Price{CPUPerCoreHour: 0.04, MemoryPerGBHour: 0.005},
	}); err != nil {
		t.Fatalf("Upsert: %v", err)
	}
	if err := r.Upsert("default/web-0", Period{
		Start: ts("2026-02-01T00:00:00Z"),
		Price: Price{CPUPerCoreHour: 0.08, MemoryPerGBHour: 0.01},
	}); err != nil {
		t.Fatalf("Upsert: %v", err)
	}

	tests := []struct {
		name    string
		at      string
		wantCPU float64
		wantErr bool
	}{
		{"inside first period", "2026-01-15T12:00:00Z", 0.04, false},
		{"boundary belongs to second period", "2026-02-01T00:00:00Z", 0.08, false},
		{"open-ended period", "2027-06-01T00:00:00Z", 0.08, false},
		{"before any period", "2025-12-31T23:59:00Z", 0, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			price, err := r.PriceAt("default/web-0", ts(tt.at))
			if tt.wantErr {
				var missing *MissingPriceError
				if !errors.As(err, &missing) {
					t.Fatalf("error = %v, want MissingPriceError", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("PriceAt: %v", err)
			}
			if price.CPUPerCoreHour != tt.wantCPU {
				t.Errorf("CPU price = %v, want %v", price.CPUPerCoreHour, tt.wantCPU)
			}
		})
	}
}

func TestPriceAtFallsBackToDefaultScope(t *testing.T) {
	r := NewResolver()
	if err := r.Upsert(DefaultScope, Period{
		Start: ts("2026-01-01T00:00:00Z"),
		Price: Price{CPUPerCoreHour: 0.03},
	}); err != nil {
		t.Fatalf("Upsert: %v", err)
	}

	price, err := r.PriceAt("default/unpriced", ts("2026-03-01T00:00:00Z"))
	if err != nil {
		t.Fatalf("PriceAt: %v", err)
	}
	if price.CPUPerCoreHour != 0.03 {
		t.Errorf("fallback CPU price = %v, want 0.03", price.CPUPerCoreHour)
	}
}

func TestUpsertRejectsOverlap(t *testing.T) {
	r := NewResolver()
	if err := r.Upsert("s", Period{
		Start: ts("2026-01-01T00:00:00Z"),
		End:   tsPtr("2026-03-01T00:00:00Z"),
	}); err != nil {
		t.Fatalf("Upsert: %v", err)
	}

	err := r.Upsert("s", Period{Start: ts("2026-02-01T00:00:00Z")})
	if err == nil {
		t.Fatal("overlapping period accepted")
	}
	// failed upsert must not corrupt the stored list
	if got := len(r.Periods("s")); got != 1 {
		t.Errorf("stored %d periods after rejected upsert, want 1", got)
	}
}

func TestUpsertReplacesSameStart(t *testing.T) {
	r := NewResolver()
	start := ts("2026-01-01T00:00:00Z")
	if err := r.Upsert("s", Period{Start: start, End: tsPtr("2026-02-01T00:00:00Z"), Price: Price{CPUPerCoreHour: 0.04}}); err != nil {
		t.Fatalf("Upsert: %v", err)
	}
	if err := r.Upsert("s", Period{Start: start, End: tsPtr("2026-02-01T00:00:00Z"), Price: Price{CPUPerCoreHour: 0.05}}); err != nil {
		t.Fatalf("replacing Upsert: %v", err)
	}

	got := r.Periods("s")
	if len(got) != 1 || got[0].Price.CPUPerCoreHour != 0.05 {
		t.Errorf("replacement failed: %+v", got)
	}
}

func TestUpsertRejectsInvertedPeriod(t *testing.T) {
	r := NewResolver()
	err := r.Upsert("s", Period{
		Start: ts("2026-02-01T00:00:00Z"),
		End:   tsPtr("2026-01-01T00:00:00Z"),
	})
	if err == nil {
		t.Error("inverted period accepted")
	}
}
