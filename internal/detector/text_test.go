package detector

import (
	"strings"
	"testing"

	"github.com/munimap/anomaly-engine/internal/models"
)

func TestGenerateDescription_Spike(t *testing.T) {
	a := models.Anomaly{
		Category: "garbage",
		Type:     models.AnomalySpike,
		Area:     "Old Town",
		Metrics: models.SpikeMetrics{
			CurrentReports: 12,
			BaselineMean:   4.8,
			Threshold:      10,
			PctChange:      150,
			ZScore:         9.62,
		},
	}

	got := GenerateDescription(a)
	for _, frag := range []string{"garbage", "Old Town", "12 reports", "4.8", "(10)", "150%", "Z=9.62"} {
		if !strings.Contains(got, frag) {
			t.Errorf("description missing %q: %s", frag, got)
		}
	}
}

func TestGenerateDescription_SlowResponse(t *testing.T) {
	a := models.Anomaly{
		Category: "lighting",
		Type:     models.AnomalySlowResponse,
		Area:     "Harbor",
		Metrics: models.SlowResponseMetrics{
			CurrentAvgDays: 12,
			Threshold:      10.5,
		},
	}

	got := GenerateDescription(a)
	for _, frag := range []string{"lighting", "Harbor", "12 days", "10.5 days"} {
		if !strings.Contains(got, frag) {
			t.Errorf("description missing %q: %s", frag, got)
		}
	}
}

func TestGenerateDescription_MetricsMismatchFallsBack(t *testing.T) {
	// A spike anomaly carrying the wrong metrics shape must not panic
	a := models.Anomaly{
		Category: "garbage",
		Type:     models.AnomalySpike,
		Area:     "Old Town",
		Metrics:  models.SlowResponseMetrics{},
	}

	got := GenerateDescription(a)
	if !strings.Contains(got, "anomaly of type spike") {
		t.Errorf("expected the generic fallback, got: %s", got)
	}
}

func TestGenerateDescription_GeoClusterWithCenter(t *testing.T) {
	a := models.Anomaly{
		Category: "tree",
		Type:     models.AnomalyGeoCluster,
		Area:     "Park",
		Center:   &models.Center{Lat: 32.08123, Lng: 34.78012},
	}

	got := GenerateDescription(a)
	if !strings.Contains(got, "32.08123") || !strings.Contains(got, "34.78012") {
		t.Errorf("centroid coordinates missing from description: %s", got)
	}

	a.Center = nil
	got = GenerateDescription(a)
	if got == "" || strings.Contains(got, "0.00000") {
		t.Errorf("nil center must use the coordinate-free template, got: %s", got)
	}
}

func TestGenerateDescription_UnknownTypeUsesCustomTemplate(t *testing.T) {
	a := models.Anomaly{
		Category: "garbage",
		Type:     models.AnomalyType("something_new"),
		Area:     "Old Town",
	}

	got := GenerateDescription(a)
	if !strings.Contains(got, "something_new") {
		t.Errorf("custom template must name the type, got: %s", got)
	}
}

func TestGenerateDescription_NeverEmpty(t *testing.T) {
	for _, typ := range []models.AnomalyType{
		models.AnomalySpike,
		models.AnomalySlowResponse,
		models.AnomalyTrend,
		models.AnomalyDrop,
		models.AnomalyUnclosedCases,
		models.AnomalyGeoCluster,
		models.AnomalyDelay,
		models.AnomalyCustom,
	} {
		a := models.Anomaly{Category: "garbage", Type: typ, Area: "Old Town"}
		if got := GenerateDescription(a); got == "" {
			t.Errorf("empty description for type %s", typ)
		}
	}
}
