package filter

import (
	"math"

	"github.com/astrosift/astrosift/internal/alert"
)

// Supernova cut thresholds. Values follow the published SN Ia candidate
// definition used by the upstream broker.
const (
	snMinClassifierScore = 0.5  // SuperNNova Ia-vs-nonIa / SN-vs-all probability (strict)
	snMaxHistoryDays     = 90.0 // max age of the object since first detection
	snMinRealBogus       = 0.5  // deep-learning real/bogus score
	snMinClasstar        = 0.4  // SExtractor star/galaxy separator
	snMinPriorDetections = 1    // ndethist must exceed this (drop first detections)

	// mlScoreFloor is the inclusive ML-score bound for the score-only filter.
	mlScoreFloor = 0.5

	// roidMPCMatch flags alerts the survey associated with a known minor
	// planet.
	roidMPCMatch = 3
)

// simbadGalaxyClasses are the SIMBAD object types compatible with an
// extragalactic transient host. A crossmatch against any of these does not
// rule the alert out as a supernova.
var simbadGalaxyClasses = []string{
	"galaxy",
	"Galaxy",
	"EmG",
	"Seyfert",
	"Seyfert_1",
	"Seyfert_2",
	"BlueCompG",
	"StarburstG",
	"LSB_G",
	"HII_G",
	"High_z_G",
	"GinPair",
	"GinGroup",
	"BClG",
	"GinCl",
	"PartofG",
}

// snXmatchKeep is the set of crossmatch classes that keep an alert in the
// supernova selection: unknown sources, SN-like classes, and galaxy hosts.
var snXmatchKeep = makeSet(append([]string{
	alert.Unknown,
	"Candidate_SN*",
	"SN",
	"Transient",
	"Fail",
}, simbadGalaxyClasses...))

// snXmatchClasses are the catalog classes that directly identify a
// supernova, used by the crossmatch-only filter.
var snXmatchClasses = makeSet([]string{
	"SN",
	"SN*",
	"Candidate_SN*",
	"SNRemnant",
})

func makeSet(items []string) map[string]struct{} {
	set := make(map[string]struct{}, len(items))
	for _, item := range items {
		set[item] = struct{}{}
	}
	return set
}

// SNCandidates selects supernova candidates: a high SuperNNova score in
// either model, a crossmatch compatible with an extragalactic transient,
// a young object, good image quality, more than one detection, and no
// minor-planet association.
func SNCandidates(batch alert.Batch) ([]bool, error) {
	mask := make([]bool, len(batch))
	for i, a := range batch {
		snnIa := alert.Float(a, "snn_snia_vs_nonia", math.NaN())
		snnAll := alert.Float(a, "snn_sn_vs_all", math.NaN())
		highScore := snnIa > snMinClassifierScore || snnAll > snMinClassifierScore

		jd := alert.Float(a, "jd", math.NaN())
		jdStart := alert.Float(a, "jdstarthist", math.NaN())
		young := jd-jdStart <= snMaxHistoryDays

		highDRB := alert.Float(a, "drb", math.NaN()) > snMinRealBogus
		highClasstar := alert.Float(a, "classtar", math.NaN()) > snMinClasstar
		notFirstDetection := alert.Int(a, "ndethist", 0) > snMinPriorDetections
		noMPC := alert.Int(a, "roid", 0) != roidMPCMatch

		_, keepXmatch := snXmatchKeep[alert.XMatch(a)]

		mask[i] = highScore && keepXmatch && young && highDRB &&
			highClasstar && notFirstDetection && noMPC
	}
	return mask, nil
}

// SNCandidatesXmatch selects supernova candidates on the crossmatch class
// alone. It exists for surveys and replays where ML scores are unavailable.
func SNCandidatesXmatch(batch alert.Batch) ([]bool, error) {
	mask := make([]bool, len(batch))
	for i, a := range batch {
		_, mask[i] = snXmatchClasses[alert.XMatch(a)]
	}
	return mask, nil
}

// SNCandidatesML selects supernova candidates on the SuperNNova Ia score
// alone. Absent or non-numeric scores fail the cut.
func SNCandidatesML(batch alert.Batch) ([]bool, error) {
	mask := make([]bool, len(batch))
	for i, a := range batch {
		mask[i] = alert.Float(a, "snn_snia_vs_nonia", math.NaN()) >= mlScoreFloor
	}
	return mask, nil
}
