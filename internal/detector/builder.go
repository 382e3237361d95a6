package detector

import (
	"fmt"
	"regexp"
	"time"

	"github.com/munimap/anomaly-engine/internal/models"
)

var whitespace = regexp.MustCompile(`\s+`)

// BuildAnomalyID derives the stable identity of an anomaly from its group and
// type, with whitespace collapsed to underscores. The id carries no timestamp
// or random component: re-running the job for the same group+type always
// targets the same stored record, which is what makes the upsert idempotent.
func BuildAnomalyID(category, area string, typ models.AnomalyType) string {
	safeArea := whitespace.ReplaceAllString(area, "_")
	safeType := whitespace.ReplaceAllString(string(typ), "_")
	return fmt.Sprintf("anom_%s_%s_%s", category, safeArea, safeType)
}

// AnomalyParams carries the detector outputs needed to construct an anomaly.
type AnomalyParams struct {
	Category       string
	Type           models.AnomalyType
	Area           string
	Title          string
	Description    string
	Metrics        models.Metrics
	RelatedReports []string
	Center         *models.Center
	Severity       models.Severity
}

// BuildAnomaly constructs a canonical anomaly from detector outputs,
// defaulting severity to medium and status to open, and stamping both
// lifecycle timestamps to now. The store pins firstDetected to the original
// value on subsequent upserts.
func BuildAnomaly(p AnomalyParams, now time.Time) models.Anomaly {
	severity := p.Severity
	if severity == "" {
		severity = models.SeverityMedium
	}

	ms := now.UnixMilli()
	return models.Anomaly{
		ID:             BuildAnomalyID(p.Category, p.Area, p.Type),
		Category:       p.Category,
		Type:           p.Type,
		Area:           p.Area,
		Title:          p.Title,
		Description:    p.Description,
		Metrics:        p.Metrics,
		RelatedReports: p.RelatedReports,
		Center:         p.Center,
		Severity:       severity,
		Status:         models.StatusOpen,
		FirstDetected:  ms,
		LastUpdated:    ms,
	}
}
