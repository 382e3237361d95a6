package detector

import (
	"fmt"
	"math"
	"time"

	"github.com/munimap/anomaly-engine/internal/logger"
	"github.com/munimap/anomaly-engine/internal/models"
)

// DefaultMonthsBack is the lookback window, in calendar months, used by both
// detectors when none is configured.
const DefaultMonthsBack = 6

// groupKey partitions reports into (area, category) groups. The separator
// cannot occur in stored strings, so distinct pairs never collide.
func groupKey(r models.Report) string {
	return r.Area + "\x00" + r.Category
}

// SpikeDetector flags (area, category) groups whose current-month report
// count exceeds the dynamic threshold over the last MonthsBack months.
type SpikeDetector struct {
	MonthsBack int
}

// NewSpikeDetector returns a spike detector with the given lookback window
// (months; <= 0 selects DefaultMonthsBack).
func NewSpikeDetector(monthsBack int) *SpikeDetector {
	if monthsBack <= 0 {
		monthsBack = DefaultMonthsBack
	}
	return &SpikeDetector{MonthsBack: monthsBack}
}

// Name identifies the detector in logs.
func (d *SpikeDetector) Name() string { return "high_activity" }

// Detect evaluates every (area, category) group of non-deleted reports and
// emits a spike anomaly for each group whose current calendar month crossed
// its threshold.
func (d *SpikeDetector) Detect(reports []models.Report, now time.Time) []models.Anomaly {
	active := make([]models.Report, 0, len(reports))
	for _, r := range reports {
		if !r.Deleted {
			active = append(active, r)
		}
	}
	logger.Debug("%s: %d active reports of %d total", d.Name(), len(active), len(reports))

	groups := GroupBy(active, groupKey)

	var anomalies []models.Anomaly
	for _, g := range groups {
		area, category := g.Items[0].Area, g.Items[0].Category

		bins := BuildMonthlyBins(g.Items, func(r models.Report) int64 { return r.Timestamp }, d.MonthsBack, now)
		current := int(bins[len(bins)-1].Count)

		th := CalcDynamicThreshold(bins)

		// No activity at all: nothing to say about this group.
		if th.BaselineMean == 0 && current == 0 {
			continue
		}
		if float64(current) < th.Threshold {
			logger.Debug("%s: area=%q category=%q current=%d below threshold %.2f (mode=%s)",
				d.Name(), area, category, current, th.Threshold, th.Mode)
			continue
		}

		// Related reports are the ones inside the current calendar month.
		from := bins[len(bins)-1].TS
		to := monthEnd(now)
		related := make([]models.Report, 0, current)
		for _, r := range g.Items {
			if r.Timestamp >= from && r.Timestamp < to {
				related = append(related, r)
			}
		}

		center := centroid(related)

		mu, sigma := th.BaselineMean, th.BaselineStd
		pct := 100.0
		if mu > 0 {
			pct = (float64(current) - mu) / mu * 100
		}
		sigmaEff := sigma
		if sigmaEff == 0 {
			sigmaEff = 1
		}
		z := (float64(current) - mu) / sigmaEff

		severity := models.SeverityMedium
		if z >= 3.0 || pct >= 100 {
			severity = models.SeverityHigh
		}

		ids := make([]string, len(related))
		for i, r := range related {
			ids[i] = r.ID
		}

		anomaly := BuildAnomaly(AnomalyParams{
			Category: category,
			Type:     models.AnomalySpike,
			Area:     area,
			Title:    fmt.Sprintf("Unusually many %s reports in %s", category, area),
			Description: fmt.Sprintf("%d reports were filed this month against an average of %.1f (Z=%.2f, +%.0f%%).",
				current, mu, z, pct),
			Metrics: models.SpikeMetrics{
				CurrentReports: current,
				BaselineMean:   round2(mu),
				BaselineStd:    round2(sigma),
				Threshold:      math.Round(th.Threshold),
				PctChange:      math.Round(pct),
				ZScore:         round2(z),
				Bins:           bins,
			},
			RelatedReports: ids,
			Center:         center,
			Severity:       severity,
		}, now)
		anomaly.GeneralMessage = GenerateDescription(anomaly)

		logger.Info("%s: anomaly for area=%q category=%q current=%d threshold=%.2f severity=%s",
			d.Name(), area, category, current, th.Threshold, severity)
		anomalies = append(anomalies, anomaly)
	}

	return anomalies
}

// centroid returns the mean coordinate of the given reports, or nil when any
// of them is missing coordinates.
func centroid(reports []models.Report) *models.Center {
	if len(reports) == 0 {
		return nil
	}
	lats := make([]float64, 0, len(reports))
	lngs := make([]float64, 0, len(reports))
	for _, r := range reports {
		if !r.HasCoords() {
			return nil
		}
		lats = append(lats, *r.Lat)
		lngs = append(lngs, *r.Lng)
	}
	return &models.Center{Lat: Mean(lats), Lng: Mean(lngs)}
}
