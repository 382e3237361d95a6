package models

import "errors"

// AnomalyType identifies the kind of behavior an anomaly describes.
type AnomalyType string

// Anomaly types. Only spike and slow_response are emitted by the current
// detectors; the remaining values are reserved for future detectors and kept
// so their templates and stored records stay valid.
const (
	AnomalySpike         AnomalyType = "spike"
	AnomalySlowResponse  AnomalyType = "slow_response"
	AnomalyTrend         AnomalyType = "trend"
	AnomalyDrop          AnomalyType = "drop"
	AnomalyUnclosedCases AnomalyType = "unclosed_cases"
	AnomalyGeoCluster    AnomalyType = "geo_cluster"
	AnomalyDelay         AnomalyType = "delay"
	AnomalyCustom        AnomalyType = "custom"
)

// Valid reports whether t is one of the known anomaly types.
func (t AnomalyType) Valid() bool {
	switch t {
	case AnomalySpike, AnomalySlowResponse, AnomalyTrend, AnomalyDrop,
		AnomalyUnclosedCases, AnomalyGeoCluster, AnomalyDelay, AnomalyCustom:
		return true
	}
	return false
}

// Severity classifies how strong a triggered anomaly is.
type Severity string

const (
	SeverityMedium Severity = "medium"
	SeverityHigh   Severity = "high"
)

// Status tracks the anomaly lifecycle. The engine only ever writes open;
// closing is a manual dashboard action.
type Status string

const (
	StatusOpen   Status = "open"
	StatusClosed Status = "closed"
)

// Bin is one calendar-month bucket of a group's activity. Count holds a raw
// report count for activity bins and an average-days value when the series is
// fed back through the threshold calculator for resolution times.
type Bin struct {
	TS    int64   `json:"ts"` // epoch ms of the bucket's month start
	Count float64 `json:"count"`
}

// ResolutionBin is one calendar-month bucket of resolution-time data:
// how many reports opened that month were resolved, and their average
// resolution time in days.
type ResolutionBin struct {
	TS      int64   `json:"ts"`
	Count   int     `json:"count"`
	AvgDays float64 `json:"avg"`
}

// Center is the geographic centroid of an anomaly's related reports.
type Center struct {
	Lat float64 `json:"lat"`
	Lng float64 `json:"lng"`
}

// Metrics is the closed set of per-type numeric evidence attached to an
// anomaly. Each anomaly type carries its own struct; all of them serialize to
// the flat metrics object the dashboard reads.
type Metrics interface {
	metrics()
}

// SpikeMetrics is the evidence attached to a high-activity anomaly.
type SpikeMetrics struct {
	CurrentReports int     `json:"currentReports"`
	BaselineMean   float64 `json:"baselineMean"`
	BaselineStd    float64 `json:"baselineStd"`
	Threshold      float64 `json:"threshold"`
	PctChange      float64 `json:"pctChange"`
	ZScore         float64 `json:"zScore"`
	Bins           []Bin   `json:"bins"`
}

func (SpikeMetrics) metrics() {}

// SlowResponseMetrics is the evidence attached to a slow-resolution anomaly.
// CurrentReports/BaselineMean/BaselineStd alias the day-based values so the
// dashboard can render all anomaly types uniformly.
type SlowResponseMetrics struct {
	CurrentAvgDays  float64         `json:"currentAvgDays"`
	BaselineAvgDays float64         `json:"baselineAvgDays"`
	CurrentReports  int             `json:"currentReports"`
	BaselineMean    float64         `json:"baselineMean"`
	BaselineStd     float64         `json:"baselineStd"`
	Threshold       float64         `json:"threshold"`
	PctChange       float64         `json:"pctChange"`
	ZScore          float64         `json:"zScore"`
	Ratio           float64         `json:"ratio"`
	Bins            []ResolutionBin `json:"bins"`
}

func (SlowResponseMetrics) metrics() {}

// Anomaly is the engine's persisted output: one finding about one
// (area, category) group, keyed by a deterministic id so repeated runs
// upsert the same record instead of accumulating duplicates.
//
// The stored document may additionally carry a reviewedBy map written by the
// dashboard; the engine never sets that field, and the upsert path merges
// documents so it is preserved across updates.
type Anomaly struct {
	ID             string      `json:"id"`
	Category       string      `json:"category"`
	Type           AnomalyType `json:"type"`
	Area           string      `json:"area"`
	Title          string      `json:"title"`
	Description    string      `json:"description"`
	GeneralMessage string      `json:"generalMessage,omitempty"`
	Metrics        Metrics     `json:"metrics"`
	RelatedReports []string    `json:"relatedReports"`
	Center         *Center     `json:"center"`
	Severity       Severity    `json:"severity"`
	Status         Status      `json:"status"`
	FirstDetected  int64       `json:"firstDetected"` // epoch ms, pinned on upsert
	LastUpdated    int64       `json:"lastUpdated"`   // epoch ms, refreshed on every write
}

// Validate checks that all anomaly fields are valid.
func (a *Anomaly) Validate() error {
	if a.ID == "" {
		return errors.New("anomaly ID must not be empty")
	}
	if a.Category == "" {
		return errors.New("anomaly category must not be empty")
	}
	if !a.Type.Valid() {
		return errors.New("unknown anomaly type: " + string(a.Type))
	}
	if a.Area == "" {
		return errors.New("anomaly area must not be empty")
	}
	if a.Severity != SeverityMedium && a.Severity != SeverityHigh {
		return errors.New("severity must be 'medium' or 'high'")
	}
	if a.Status != StatusOpen && a.Status != StatusClosed {
		return errors.New("status must be 'open' or 'closed'")
	}
	if a.Metrics == nil {
		return errors.New("anomaly metrics must not be nil")
	}
	if a.FirstDetected <= 0 || a.LastUpdated <= 0 {
		return errors.New("anomaly timestamps must be set")
	}
	if a.FirstDetected > a.LastUpdated {
		return errors.New("first detected must be <= last updated")
	}
	return nil
}
