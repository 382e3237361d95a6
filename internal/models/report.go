// Package models defines the core domain entities for the munimap anomaly engine.
// These models represent citizen issue reports, monthly activity bins, and detected
// anomalies. All engine-owned models include built-in validation to ensure data
// integrity before anything is persisted.
//
// Terminology (matching the dashboard's own naming):
//   - Report: a single citizen issue report (garbage, lighting, tree, ...),
//     stored under its category partition in the Report Store.
//   - Group: all reports sharing one (area, category) pair — the unit of
//     independent anomaly evaluation.
//   - Anomaly: a persisted finding about one group, keyed by a deterministic id.
package models

import "time"

// MillisPerDay is the number of milliseconds in one day, used for
// resolution-time math on epoch-millisecond timestamps.
const MillisPerDay = 24 * 60 * 60 * 1000

// Report represents a single issue report read from the Report Store.
// The engine treats reports as read-only input: ID and Category come from the
// store's partition keys, everything else from the stored document.
type Report struct {
	ID         string   `json:"id"`
	Category   string   `json:"category"`
	Area       string   `json:"area"`
	Timestamp  int64    `json:"timestamp"`            // epoch ms, report creation time
	ResolvedAt int64    `json:"resolvedAt,omitempty"` // epoch ms, 0 while unresolved
	Deleted    bool     `json:"deleted,omitempty"`
	Lat        *float64 `json:"lat,omitempty"`
	Lng        *float64 `json:"lng,omitempty"`
}

// Resolved reports whether the report has been closed by the municipality.
func (r *Report) Resolved() bool {
	return r.ResolvedAt > 0
}

// HasCoords reports whether the report carries a usable coordinate pair.
func (r *Report) HasCoords() bool {
	return r.Lat != nil && r.Lng != nil
}

// Criticality buckets for report age relative to the category SLA.
const (
	CriticalityGreen  = "green"
	CriticalityYellow = "yellow"
	CriticalityOrange = "orange"
	CriticalityRed    = "red"
)

// SLADays maps a report category to the maximum number of days a report of
// that category should stay open. Categories not listed fall back to
// DefaultSLADays.
var SLADays = map[string]int{
	"garbage":  5,
	"lighting": 7,
	"tree":     8,
}

// DefaultSLADays is the SLA applied to categories without an explicit entry.
const DefaultSLADays = 7

// Criticality classifies how overdue an open report is at the given time:
// green up to half the SLA, yellow past half, orange past the SLA, red past
// twice the SLA.
func (r *Report) Criticality(now time.Time) string {
	ageDays := (now.UnixMilli() - r.Timestamp) / MillisPerDay

	sla, ok := SLADays[r.Category]
	if !ok {
		sla = DefaultSLADays
	}

	switch {
	case ageDays > int64(sla)*2:
		return CriticalityRed
	case ageDays > int64(sla):
		return CriticalityOrange
	case ageDays*2 >= int64(sla):
		return CriticalityYellow
	default:
		return CriticalityGreen
	}
}
