package detector

import (
	"fmt"
	"time"

	"github.com/munimap/anomaly-engine/internal/logger"
	"github.com/munimap/anomaly-engine/internal/models"
)

// SlowResolutionDetector flags (area, category) groups whose current-month
// average resolution time, in days, exceeds the dynamic threshold computed
// over historical monthly averages.
type SlowResolutionDetector struct {
	MonthsBack int
}

// NewSlowResolutionDetector returns a slow-resolution detector with the given
// lookback window (months; <= 0 selects DefaultMonthsBack).
func NewSlowResolutionDetector(monthsBack int) *SlowResolutionDetector {
	if monthsBack <= 0 {
		monthsBack = DefaultMonthsBack
	}
	return &SlowResolutionDetector{MonthsBack: monthsBack}
}

// Name identifies the detector in logs.
func (d *SlowResolutionDetector) Name() string { return "slow_resolution" }

// Detect evaluates every (area, category) group of resolved, non-deleted
// reports and emits a slow_response anomaly for each group whose current
// month's average resolution time crossed its threshold.
func (d *SlowResolutionDetector) Detect(reports []models.Report, now time.Time) []models.Anomaly {
	active := make([]models.Report, 0, len(reports))
	for _, r := range reports {
		if !r.Deleted && r.Resolved() {
			active = append(active, r)
		}
	}
	logger.Debug("%s: %d resolved reports of %d total", d.Name(), len(active), len(reports))

	groups := GroupBy(active, groupKey)

	var anomalies []models.Anomaly
	for _, g := range groups {
		area, category := g.Items[0].Area, g.Items[0].Category

		bins := buildResolutionBins(g.Items, d.MonthsBack, now)
		current := bins[len(bins)-1]

		// Zero-valued months represent missing data, not instant
		// resolution, so they are excluded from the baseline.
		history := make([]models.Bin, 0, len(bins)-1)
		for _, b := range bins[:len(bins)-1] {
			if b.AvgDays > 0 {
				history = append(history, models.Bin{TS: b.TS, Count: b.AvgDays})
			}
		}

		if len(history) < 2 {
			logger.Debug("%s: area=%q category=%q skipped, only %d nonzero historical months",
				d.Name(), area, category, len(history))
			continue
		}
		if current.AvgDays == 0 {
			logger.Debug("%s: area=%q category=%q skipped, no resolutions this month",
				d.Name(), area, category)
			continue
		}

		// Reuse the count-based threshold primitive against day averages.
		series := append(history, models.Bin{TS: current.TS, Count: current.AvgDays})
		th := CalcDynamicThreshold(series)

		if current.AvgDays < th.Threshold {
			logger.Debug("%s: area=%q category=%q currentAvg=%.2f below threshold %.2f (mode=%s)",
				d.Name(), area, category, current.AvgDays, th.Threshold, th.Mode)
			continue
		}

		mu, sigma := th.BaselineMean, th.BaselineStd
		pct := 100.0
		if mu > 0 {
			pct = (current.AvgDays - mu) / mu * 100
		}
		z := 0.0
		if sigma > 0 {
			z = (current.AvgDays - mu) / sigma
		}
		ratio := 0.0
		if mu > 0 {
			ratio = current.AvgDays / mu
		}

		severity := models.SeverityMedium
		if ratio >= 2 {
			severity = models.SeverityHigh
		}

		// Resolution anomalies reference the whole historical population
		// the baseline was computed from, not just the current month.
		ids := make([]string, len(g.Items))
		for i, r := range g.Items {
			ids[i] = r.ID
		}

		anomaly := BuildAnomaly(AnomalyParams{
			Category: category,
			Type:     models.AnomalySlowResponse,
			Area:     area,
			Title:    fmt.Sprintf("Slower than usual resolution of %s reports", category),
			Description: fmt.Sprintf("The monthly resolution time rose to %.1f days against a historical average of %.1f days.",
				current.AvgDays, mu),
			Metrics: models.SlowResponseMetrics{
				CurrentAvgDays:  round2(current.AvgDays),
				BaselineAvgDays: round2(mu),
				CurrentReports:  current.Count,
				BaselineMean:    round2(mu),
				BaselineStd:     round2(sigma),
				Threshold:       round2(th.Threshold),
				PctChange:       round2(pct),
				ZScore:          round2(z),
				Ratio:           round2(ratio),
				Bins:            bins,
			},
			RelatedReports: ids,
			Severity:       severity,
		}, now)
		anomaly.GeneralMessage = GenerateDescription(anomaly)

		logger.Info("%s: anomaly for area=%q category=%q currentAvg=%.2f threshold=%.2f severity=%s",
			d.Name(), area, category, current.AvgDays, th.Threshold, severity)
		anomalies = append(anomalies, anomaly)
	}

	return anomalies
}

// buildResolutionBins produces one bin per calendar month (by report open
// timestamp) whose value is the average resolution time, in days, of reports
// opened in that month. The per-bin membership window is a fixed 30 days from
// the month start, intentionally distinct from the calendar-month boundaries
// of the outer bin series.
func buildResolutionBins(items []models.Report, monthsBack int, now time.Time) []models.ResolutionBin {
	raw := BuildMonthlyBins(items, func(r models.Report) int64 { return r.Timestamp }, monthsBack, now)

	bins := make([]models.ResolutionBin, 0, len(raw))
	for _, b := range raw {
		from := b.TS
		to := b.TS + 30*models.MillisPerDay

		var diffs []float64
		for _, r := range items {
			if r.Timestamp >= from && r.Timestamp < to && r.Resolved() {
				diffs = append(diffs, float64(r.ResolvedAt-r.Timestamp)/float64(models.MillisPerDay))
			}
		}

		bins = append(bins, models.ResolutionBin{
			TS:      b.TS,
			Count:   len(diffs),
			AvgDays: Mean(diffs),
		})
	}
	return bins
}
