package filter

import (
	"math"

	"github.com/astrosift/astrosift/internal/alert"
)

// Orphan GRB afterglow thresholds. Afterglows fade much faster than
// supernovae, have no catalogued counterpart, and disappear within days.
const (
	grbMinFadeRate      = 1.0 // mag/day, inclusive, over the two most recent detections
	grbMaxDetections    = 10.0
	grbMinSSODistArcsec = 10.0
)

// OrphanGRBCandidates selects orphan gamma-ray-burst afterglow candidates:
// a rapidly fading source with a short detection history, no catalog
// counterpart, and no nearby known solar-system object.
func OrphanGRBCandidates(batch alert.Batch) ([]bool, error) {
	mask := make([]bool, len(batch))
	for i, a := range batch {
		if alert.XMatch(a) != alert.Unknown {
			continue
		}
		if !(alert.Float(a, "ndethist", math.NaN()) < grbMaxDetections) {
			continue
		}
		ssdist := alert.Float(a, "ssdistnr", -999)
		if ssdist >= 0 && ssdist <= grbMinSSODistArcsec {
			continue
		}
		rate, ok := alert.LastRate(a)
		mask[i] = ok && rate >= grbMinFadeRate
	}
	return mask, nil
}
