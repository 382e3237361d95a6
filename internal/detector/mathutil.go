// Package detector implements the anomaly detection engine: grouping reports
// by (area, category), bucketing them into calendar-month bins, computing a
// dynamic statistical baseline, and emitting structured anomalies for groups
// whose current month deviates from it.
//
// Two detectors are registered today:
//
//   - SpikeDetector flags groups whose current-month report count exceeds the
//     dynamic threshold computed over the previous months' counts.
//   - SlowResolutionDetector flags groups whose current-month average
//     resolution time (in days) exceeds the dynamic threshold computed over
//     historical monthly averages.
//
// Detectors are pure functions of one immutable report snapshot; use Runner
// to fan a snapshot out to every registered detector.
package detector

import (
	"math"
	"time"

	"github.com/munimap/anomaly-engine/internal/models"
)

// Mean returns the arithmetic mean of xs, or 0 for empty input.
func Mean(xs []float64) float64 {
	if len(xs) == 0 {
		return 0
	}
	var sum float64
	for _, x := range xs {
		sum += x
	}
	return sum / float64(len(xs))
}

// Std returns the population standard deviation of xs around mean m
// (divide by N, not N-1), or 0 for empty input.
func Std(xs []float64, m float64) float64 {
	if len(xs) == 0 {
		return 0
	}
	var v float64
	for _, x := range xs {
		d := x - m
		v += d * d
	}
	return math.Sqrt(v / float64(len(xs)))
}

// Group is one partition produced by GroupBy.
type Group[T any] struct {
	Key   string
	Items []T
}

// GroupBy partitions items by the derived key, preserving first-seen key
// order. Key collisions accumulate into the same group.
func GroupBy[T any](items []T, keyFn func(T) string) []Group[T] {
	index := make(map[string]int)
	var groups []Group[T]
	for _, item := range items {
		key := keyFn(item)
		i, ok := index[key]
		if !ok {
			i = len(groups)
			index[key] = i
			groups = append(groups, Group[T]{Key: key})
		}
		groups[i].Items = append(groups[i].Items, item)
	}
	return groups
}

// BuildMonthlyBins buckets items into exactly monthsBack calendar-month bins,
// oldest to newest, using calendar-month boundaries in the location of now.
// The last bin is always the current (possibly partial) month. Bins are
// emitted for every month in the window even when empty, so the current bin
// is always the final element.
func BuildMonthlyBins[T any](items []T, getTS func(T) int64, monthsBack int, now time.Time) []models.Bin {
	loc := now.Location()
	bins := make([]models.Bin, 0, monthsBack)

	for i := monthsBack - 1; i >= 0; i-- {
		from := time.Date(now.Year(), now.Month()-time.Month(i), 1, 0, 0, 0, 0, loc).UnixMilli()
		to := time.Date(now.Year(), now.Month()-time.Month(i)+1, 1, 0, 0, 0, 0, loc).UnixMilli()

		count := 0
		for _, item := range items {
			ts := getTS(item)
			if ts >= from && ts < to {
				count++
			}
		}

		bins = append(bins, models.Bin{TS: from, Count: float64(count)})
	}

	return bins
}

// monthEnd returns the epoch-ms start of the month after the one containing now.
func monthEnd(now time.Time) int64 {
	return time.Date(now.Year(), now.Month()+1, 1, 0, 0, 0, 0, now.Location()).UnixMilli()
}

// round2 rounds to two decimal places for display-facing metrics.
func round2(x float64) float64 {
	return math.Round(x*100) / 100
}
