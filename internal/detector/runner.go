package detector

import (
	"time"

	"github.com/munimap/anomaly-engine/internal/logger"
	"github.com/munimap/anomaly-engine/internal/models"
)

// Detector evaluates one immutable report snapshot and returns the anomalies
// it found. Implementations must not retain or mutate the snapshot.
type Detector interface {
	Name() string
	Detect(reports []models.Report, now time.Time) []models.Anomaly
}

// Runner fans one report snapshot out to every registered detector and
// flattens the results, preserving registration order and, within each
// detector, emission order.
type Runner struct {
	detectors []Detector
}

// NewRunner creates a runner over the given detectors.
func NewRunner(detectors ...Detector) *Runner {
	return &Runner{detectors: detectors}
}

// Register appends a detector to the fan-out order.
func (r *Runner) Register(d Detector) {
	r.detectors = append(r.detectors, d)
}

// RunAll invokes each detector in sequence against the same snapshot and
// concatenates their results into one flat list.
func (r *Runner) RunAll(reports []models.Report, now time.Time) []models.Anomaly {
	var results []models.Anomaly
	for _, d := range r.detectors {
		found := d.Detect(reports, now)
		logger.Debug("runner: detector %s produced %d anomalies", d.Name(), len(found))
		results = append(results, found...)
	}
	return results
}
