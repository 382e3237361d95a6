package detector

import (
	"fmt"
	"strings"

	"github.com/munimap/anomaly-engine/internal/models"
)

// GenerateDescription maps an anomaly to its long-form report sentence,
// interpolating the anomaly's metrics. Unknown types fall back to the generic
// custom template. Templates for reserved types (trend, drop, unclosed_cases,
// geo_cluster, delay) stay available for future detectors even though no
// current detector emits them.
func GenerateDescription(a models.Anomaly) string {
	var text string

	switch a.Type {
	case models.AnomalySpike:
		m, ok := a.Metrics.(models.SpikeMetrics)
		if !ok {
			return customDescription(a)
		}
		text = fmt.Sprintf(
			"A sharp rise in %s reports was detected in %s. "+
				"%d reports were filed this month against a historical average of %g. "+
				"The value crossed the detection threshold (%g) with a change of %g%% (Z=%g).",
			a.Category, a.Area, m.CurrentReports, m.BaselineMean, m.Threshold, m.PctChange, m.ZScore)

	case models.AnomalySlowResponse:
		m, ok := a.Metrics.(models.SlowResponseMetrics)
		if !ok {
			return customDescription(a)
		}
		text = fmt.Sprintf(
			"Resolution times for %s reports in %s are longer than usual. "+
				"The average resolution time stands at %g days, against an expectation of %g days.",
			a.Category, a.Area, m.CurrentAvgDays, m.Threshold)

	case models.AnomalyTrend:
		text = fmt.Sprintf(
			"A sustained rise in %s reports was detected in %s. "+
				"The increase is consistent over time rather than a one-off spike, suggesting a worsening problem.",
			a.Category, a.Area)

	case models.AnomalyDrop:
		text = fmt.Sprintf(
			"A significant drop in %s reports was detected in %s, relative to the group's historical behavior.",
			a.Category, a.Area)

	case models.AnomalyUnclosedCases:
		text = fmt.Sprintf(
			"An unusual backlog of open %s reports has accumulated in %s.",
			a.Category, a.Area)

	case models.AnomalyGeoCluster:
		if a.Center != nil {
			text = fmt.Sprintf(
				"An unusual geographic concentration of %s reports was detected near %s. "+
					"The cluster centroid is at %.5f, %.5f.",
				a.Category, a.Area, a.Center.Lat, a.Center.Lng)
		} else {
			text = fmt.Sprintf(
				"An unusual geographic concentration of %s reports was detected near %s.",
				a.Category, a.Area)
		}

	case models.AnomalyDelay:
		text = fmt.Sprintf(
			"Response times for %s reports in %s are running behind their usual pace.",
			a.Category, a.Area)

	default:
		text = customDescription(a)
	}

	return strings.TrimSpace(text)
}

func customDescription(a models.Anomaly) string {
	return strings.TrimSpace(fmt.Sprintf(
		"An anomaly of type %s was detected for %s reports in %s.",
		a.Type, a.Category, a.Area))
}
