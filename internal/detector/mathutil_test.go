package detector

import (
	"math"
	"testing"
	"time"
)

func TestMean(t *testing.T) {
	tests := []struct {
		name string
		xs   []float64
		want float64
	}{
		{"empty returns zero", nil, 0},
		{"single value", []float64{4}, 4},
		{"several values", []float64{4, 5, 6, 5, 4}, 4.8},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Mean(tt.xs); math.Abs(got-tt.want) > 1e-9 {
				t.Errorf("Mean(%v) = %v, want %v", tt.xs, got, tt.want)
			}
		})
	}
}

func TestStd_Population(t *testing.T) {
	// Population std dev divides by N, not N-1
	xs := []float64{4, 5, 6, 5, 4}
	m := Mean(xs)
	got := Std(xs, m)
	want := math.Sqrt(2.8 / 5.0) // ≈ 0.7483

	if math.Abs(got-want) > 1e-9 {
		t.Errorf("Std(%v) = %v, want %v", xs, got, want)
	}

	if Std(nil, 0) != 0 {
		t.Error("Std of empty input should be 0")
	}
	if Std([]float64{7, 7, 7}, 7) != 0 {
		t.Error("Std of constant input should be 0")
	}
}

func TestGroupBy_FirstSeenOrder(t *testing.T) {
	items := []string{"b1", "a1", "b2", "c1", "a2"}
	groups := GroupBy(items, func(s string) string { return s[:1] })

	if len(groups) != 3 {
		t.Fatalf("Expected 3 groups, got %d", len(groups))
	}
	wantKeys := []string{"b", "a", "c"}
	for i, g := range groups {
		if g.Key != wantKeys[i] {
			t.Errorf("group %d key = %q, want %q", i, g.Key, wantKeys[i])
		}
	}
	if len(groups[0].Items) != 2 || groups[0].Items[1] != "b2" {
		t.Errorf("key collisions should accumulate in order, got %v", groups[0].Items)
	}
}

func TestBuildMonthlyBins_CoverageAndOrder(t *testing.T) {
	now := time.Date(2025, time.June, 15, 12, 0, 0, 0, time.UTC)

	bins := BuildMonthlyBins(nil, func(int64) int64 { return 0 }, 6, now)

	if len(bins) != 6 {
		t.Fatalf("Expected exactly 6 bins for empty input, got %d", len(bins))
	}
	for i, b := range bins {
		if b.Count != 0 {
			t.Errorf("bin %d count = %v, want 0", i, b.Count)
		}
	}

	// Bins must be strictly increasing, one calendar month apart
	for i := 0; i < len(bins); i++ {
		wantMonth := time.January + time.Month(i)
		want := time.Date(2025, wantMonth, 1, 0, 0, 0, 0, time.UTC).UnixMilli()
		if bins[i].TS != want {
			t.Errorf("bin %d ts = %d, want start of %v (%d)", i, bins[i].TS, wantMonth, want)
		}
	}

	last := bins[len(bins)-1]
	if last.TS != time.Date(2025, time.June, 1, 0, 0, 0, 0, time.UTC).UnixMilli() {
		t.Errorf("last bin must be the current calendar month, got ts %d", last.TS)
	}
}

func TestBuildMonthlyBins_CountsCalendarBoundaries(t *testing.T) {
	now := time.Date(2025, time.June, 15, 12, 0, 0, 0, time.UTC)

	timestamps := []int64{
		// Last millisecond of May belongs to the May bin
		time.Date(2025, time.June, 1, 0, 0, 0, 0, time.UTC).UnixMilli() - 1,
		// First millisecond of June belongs to the current bin
		time.Date(2025, time.June, 1, 0, 0, 0, 0, time.UTC).UnixMilli(),
		time.Date(2025, time.June, 14, 9, 0, 0, 0, time.UTC).UnixMilli(),
		// Outside the 6-month window entirely
		time.Date(2024, time.November, 3, 0, 0, 0, 0, time.UTC).UnixMilli(),
	}

	bins := BuildMonthlyBins(timestamps, func(ts int64) int64 { return ts }, 6, now)

	if got := bins[4].Count; got != 1 {
		t.Errorf("May bin count = %v, want 1", got)
	}
	if got := bins[5].Count; got != 2 {
		t.Errorf("June bin count = %v, want 2", got)
	}
	var total float64
	for _, b := range bins {
		total += b.Count
	}
	if total != 3 {
		t.Errorf("out-of-window timestamps must be dropped, total = %v, want 3", total)
	}
}

func TestBuildMonthlyBins_YearBoundary(t *testing.T) {
	// A window reaching back across a year boundary must normalize months
	now := time.Date(2025, time.February, 10, 0, 0, 0, 0, time.UTC)

	bins := BuildMonthlyBins(nil, func(int64) int64 { return 0 }, 6, now)

	if len(bins) != 6 {
		t.Fatalf("Expected 6 bins, got %d", len(bins))
	}
	if bins[0].TS != time.Date(2024, time.September, 1, 0, 0, 0, 0, time.UTC).UnixMilli() {
		t.Errorf("oldest bin should be September 2024, got ts %d", bins[0].TS)
	}
}
