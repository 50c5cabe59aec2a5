package filter

import (
	"math"

	"github.com/astrosift/astrosift/internal/alert"
)

// Kilonova cut thresholds, after Andreoni et al. 2021 (arXiv:2104.06352).
const (
	knMinRealBogus       = 0.9  // stricter than the SN cut; KN searches drown in bogus alerts
	knMinClasstar        = 0.4  // SExtractor star/galaxy separator
	knMaxAgeDays         = 14.0 // time since first detection
	knMaxDetections      = 20.0 // ndethist upper bound, KNe are short-lived
	knMinSSODistArcsec   = 10.0 // minimum distance to a known solar-system object
	knPositiveSubtracted = "t"  // isdiffpos value for a brightening difference image

	// Rate-based selection.
	knMinSNR      = 5.0 // inclusive
	knMinFadeRate = 0.3 // mag/day, inclusive, over the two most recent detections
)

// knXmatchKeep is the set of crossmatch classes compatible with a kilonova:
// unknown sources, unclassified transients, and galaxy hosts.
var knXmatchKeep = makeSet(append([]string{
	alert.Unknown,
	"Transient",
	"Fail",
}, simbadGalaxyClasses...))

// KNCandidates selects kilonova candidates on quality and novelty cuts:
// very high real/bogus score, point-like source, a young object with a
// short detection history, a positive difference image, no nearby known
// solar-system object, and a crossmatch that does not identify the source.
func KNCandidates(batch alert.Batch) ([]bool, error) {
	mask := make([]bool, len(batch))
	for i, a := range batch {
		highDRB := alert.Float(a, "drb", math.NaN()) > knMinRealBogus
		highClasstar := alert.Float(a, "classtar", math.NaN()) > knMinClasstar

		jd := alert.Float(a, "jd", math.NaN())
		jdStart := alert.Float(a, "jdstarthist", math.NaN())
		newDetection := jd-jdStart < knMaxAgeDays

		shortHistory := alert.Float(a, "ndethist", math.NaN()) < knMaxDetections
		appeared := alert.Str(a, "isdiffpos", "") == knPositiveSubtracted

		// ssdistnr is -999 when no solar-system object is known nearby.
		ssdist := alert.Float(a, "ssdistnr", -999)
		farFromSSO := ssdist > knMinSSODistArcsec || ssdist < 0

		_, keepXmatch := knXmatchKeep[alert.XMatch(a)]

		mask[i] = highDRB && highClasstar && newDetection && shortHistory &&
			appeared && farFromSSO && keepXmatch
	}
	return mask, nil
}

// RateBasedKNCandidates selects kilonova candidates on light-curve shape: a
// well-detected source (S/N >= 5) fading by at least 0.3 mag/day between
// its two most recent detections. Records with fewer than two history
// points never match.
func RateBasedKNCandidates(batch alert.Batch) ([]bool, error) {
	mask := make([]bool, len(batch))
	for i, a := range batch {
		snr := alert.Float(a, "snr", math.NaN())
		rate, ok := alert.LastRate(a)
		mask[i] = snr >= knMinSNR && ok && rate >= knMinFadeRate
	}
	return mask, nil
}
