package detector

import (
	"math"

	"github.com/munimap/anomaly-engine/internal/models"
)

// ThresholdMode says how the detection threshold was derived.
type ThresholdMode string

const (
	// ModeCold means there was not enough history to evaluate at all;
	// the threshold is +Inf and nothing can trigger.
	ModeCold ThresholdMode = "cold"
	// ModeStatic means history was too sparse to estimate variance, so a
	// fixed absolute floor is used instead of a baseline.
	ModeStatic ThresholdMode = "static"
	// ModeAdaptive means the threshold was computed from the historical
	// mean and standard deviation.
	ModeAdaptive ThresholdMode = "adaptive"
)

// Threshold tuning constants.
const (
	zK             = 2.0 // z-score multiplier for the σ-based candidate
	pMin           = 0.3 // minimum relative growth (30%)
	cMin           = 5.0 // absolute margin over the mean
	currentMin     = 7.0 // absolute floor for the adaptive threshold
	staticFloor    = 8.0 // fixed threshold in static mode
	minHistorySum  = 10.0
	minHistoryBins = 2
)

// ThresholdResult is the baseline and detection threshold for one bin series.
type ThresholdResult struct {
	Threshold    float64
	BaselineMean float64
	BaselineStd  float64
	Mode         ThresholdMode
}

// CalcDynamicThreshold converts an ordered bin series (last bin = current,
// all prior bins = history) into a detection threshold.
//
// With fewer than 2 bins the group is in cold start and can never trigger.
// When the historical counts sum below 10 the history is too sparse to
// estimate variance, so a fixed absolute floor of 8 applies regardless of the
// actual values. Otherwise the threshold is the maximum of four candidates:
// μ+2σ (σ taken as 1 when 0, so the candidate degenerates to μ+2 instead of
// collapsing onto the mean), 1.3μ, μ+5, and the absolute floor 7. Taking the
// max keeps near-zero-variance histories from producing a trivial threshold
// and near-zero-mean histories from flagging any nonzero activity.
func CalcDynamicThreshold(bins []models.Bin) ThresholdResult {
	if len(bins) < minHistoryBins {
		return ThresholdResult{Threshold: math.Inf(1), Mode: ModeCold}
	}

	hist := make([]float64, 0, len(bins)-1)
	var sum float64
	for _, b := range bins[:len(bins)-1] {
		hist = append(hist, b.Count)
		sum += b.Count
	}

	if sum < minHistorySum {
		return ThresholdResult{Threshold: staticFloor, Mode: ModeStatic}
	}

	mu := Mean(hist)
	sigma := Std(hist, mu)

	sigmaEff := sigma
	if sigmaEff == 0 {
		sigmaEff = 1
	}

	t1 := mu + zK*sigmaEff
	t2 := mu * (1 + pMin)
	t3 := mu + cMin
	threshold := math.Max(math.Max(t1, t2), math.Max(t3, currentMin))

	return ThresholdResult{
		Threshold:    threshold,
		BaselineMean: mu,
		BaselineStd:  sigma,
		Mode:         ModeAdaptive,
	}
}
