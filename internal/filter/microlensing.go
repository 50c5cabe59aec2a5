package filter

import (
	"math"

	"github.com/astrosift/astrosift/internal/alert"
)

// Microlensing thresholds. The per-band classifiers are trained upstream;
// this filter only consumes their labels.
const (
	mulensLabel         = "ML" // label emitted when a band's fit prefers microlensing
	mulensMinDetections = 10.0
)

// MicrolensingCandidates selects microlensing candidates: both per-band
// classifiers must independently label the light curve as microlensing, and
// the object needs enough detections for the fits to be meaningful.
func MicrolensingCandidates(batch alert.Batch) ([]bool, error) {
	mask := make([]bool, len(batch))
	for i, a := range batch {
		band1 := alert.Str(a, "mulens_class_1", "") == mulensLabel
		band2 := alert.Str(a, "mulens_class_2", "") == mulensLabel
		sampled := alert.Float(a, "ndethist", math.NaN()) >= mulensMinDetections
		mask[i] = band1 && band2 && sampled
	}
	return mask, nil
}
