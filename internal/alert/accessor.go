package alert

import (
	"encoding/json"
	"math"
	"strconv"
)

// Unknown is the sentinel returned for absent categorical or crossmatch
// fields. It is distinguishable from every real catalog class, and it is
// also the value the crossmatch service itself reports for sources with no
// counterpart, so filters treat the two cases identically.
const Unknown = "Unknown"

// Float returns the numeric value of a field, or def when the field is
// absent, null, or not convertible to a number. NaN values are treated as
// absent: the survey pipeline encodes missing photometry as NaN.
func Float(a Alert, field string, def float64) float64 {
	v, ok := a[field]
	if !ok {
		return def
	}
	f, ok := toFloat(v)
	if !ok || math.IsNaN(f) {
		return def
	}
	return f
}

// Int returns the integer value of a field, or def when absent or not
// numeric. Fractional values are truncated.
func Int(a Alert, field string, def int) int {
	v, ok := a[field]
	if !ok {
		return def
	}
	f, ok := toFloat(v)
	if !ok || math.IsNaN(f) {
		return def
	}
	return int(f)
}

// Str returns the string value of a field, or def when absent, null, or
// not a string.
func Str(a Alert, field string, def string) string {
	v, ok := a[field]
	if !ok {
		return def
	}
	s, ok := v.(string)
	if !ok || s == "" {
		return def
	}
	return s
}

// XMatch returns the crossmatch annotation for the alert, or Unknown when
// the annotation is absent.
func XMatch(a Alert) string {
	return Str(a, "cdsxmatch", Unknown)
}

// Series returns a field holding an array of numbers as a []float64.
// Entries that are not numeric come back as NaN so parallel history arrays
// (times, magnitudes, band IDs) stay index-aligned. Absent or non-array
// fields yield a nil slice.
func Series(a Alert, field string) []float64 {
	v, ok := a[field]
	if !ok {
		return nil
	}
	switch arr := v.(type) {
	case []float64:
		out := make([]float64, len(arr))
		copy(out, arr)
		return out
	case []any:
		out := make([]float64, len(arr))
		for i, e := range arr {
			f, ok := toFloat(e)
			if !ok {
				f = math.NaN()
			}
			out[i] = f
		}
		return out
	default:
		return nil
	}
}

// toFloat converts the JSON-decoded forms a numeric field can arrive in.
func toFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int32:
		return float64(n), true
	case int64:
		return float64(n), true
	case json.Number:
		f, err := n.Float64()
		if err != nil {
			return 0, false
		}
		return f, true
	case string:
		f, err := strconv.ParseFloat(n, 64)
		if err != nil {
			return 0, false
		}
		return f, true
	default:
		return 0, false
	}
}
