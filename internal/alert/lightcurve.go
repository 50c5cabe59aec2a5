package alert

import "math"

// History field names. The survey delivers an alert's photometric history as
// parallel arrays ordered oldest to newest.
const (
	FieldHistoryJD  = "cjd"
	FieldHistoryMag = "cmagpsf"
	FieldHistoryFID = "cfid"
)

// DetectionCount returns the number of usable history points: entries where
// both the time and the magnitude are finite.
func DetectionCount(a Alert) int {
	jd := Series(a, FieldHistoryJD)
	mag := Series(a, FieldHistoryMag)
	n := 0
	for i := 0; i < len(jd) && i < len(mag); i++ {
		if !math.IsNaN(jd[i]) && !math.IsNaN(mag[i]) {
			n++
		}
	}
	return n
}

// LastRate returns the magnitude change rate in mag/day between the two most
// recent usable history points. Positive rates mean the source is fading
// (magnitudes grow as flux drops). ok is false when fewer than two usable
// points exist or the two points share a timestamp.
func LastRate(a Alert) (rate float64, ok bool) {
	jd := Series(a, FieldHistoryJD)
	mag := Series(a, FieldHistoryMag)

	n := len(jd)
	if len(mag) < n {
		n = len(mag)
	}
	// Walk backwards collecting the last two points where both arrays hold
	// finite values.
	var t [2]float64
	var m [2]float64
	found := 0
	for i := n - 1; i >= 0 && found < 2; i-- {
		if math.IsNaN(jd[i]) || math.IsNaN(mag[i]) {
			continue
		}
		t[found] = jd[i]
		m[found] = mag[i]
		found++
	}
	if found < 2 {
		return 0, false
	}
	dt := t[0] - t[1]
	if dt <= 0 {
		return 0, false
	}
	return (m[0] - m[1]) / dt, true
}
