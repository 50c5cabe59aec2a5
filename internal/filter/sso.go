package filter

import "github.com/astrosift/astrosift/internal/alert"

// Solar-system object flags set by the survey pipeline.
const (
	roidSSOCandidate = 2 // moving-object detection without an MPC match
	// roidMPCMatch (3, declared with the supernova cuts) is a confirmed
	// match against the Minor Planet Center database.

	ssoMaxDistArcsec = 5.0 // max separation for a candidate to count as the known object
)

// SSOCandidates selects solar-system objects: alerts the survey matched
// against the Minor Planet Center database, or moving-object candidates
// lying within a few arcseconds of a known object.
func SSOCandidates(batch alert.Batch) ([]bool, error) {
	mask := make([]bool, len(batch))
	for i, a := range batch {
		roid := alert.Int(a, "roid", 0)
		if roid == roidMPCMatch {
			mask[i] = true
			continue
		}
		ssdist := alert.Float(a, "ssdistnr", -999)
		mask[i] = roid == roidSSOCandidate && ssdist >= 0 && ssdist <= ssoMaxDistArcsec
	}
	return mask, nil
}
