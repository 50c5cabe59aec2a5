package filter

import (
	"testing"

	"github.com/astrosift/astrosift/internal/alert"
)

// snPassing builds a record that clears every supernova cut. Tests mutate
// copies of it to probe one cut at a time.
func snPassing() alert.Alert {
	return alert.Alert{
		"objectId":          "ZTF21aaaaaaa",
		"snn_snia_vs_nonia": 0.9,
		"snn_sn_vs_all":     0.1,
		"cdsxmatch":         alert.Unknown,
		"jd":                2459010.5,
		"jdstarthist":       2459000.5,
		"drb":               0.95,
		"classtar":          0.8,
		"ndethist":          5.0,
		"roid":              0.0,
	}
}

func without(a alert.Alert, field string) alert.Alert {
	out := make(alert.Alert, len(a))
	for k, v := range a {
		if k != field {
			out[k] = v
		}
	}
	return out
}

func with(a alert.Alert, field string, value any) alert.Alert {
	out := make(alert.Alert, len(a))
	for k, v := range a {
		out[k] = v
	}
	out[field] = value
	return out
}

func runFilter(t *testing.T, fn Func, batch alert.Batch) []bool {
	t.Helper()
	mask, err := fn(batch)
	if err != nil {
		t.Fatalf("filter failed: %v", err)
	}
	if len(mask) != len(batch) {
		t.Fatalf("mask length = %d, want %d", len(mask), len(batch))
	}
	return mask
}

func TestSNCandidates(t *testing.T) {
	cases := []struct {
		name string
		a    alert.Alert
		want bool
	}{
		{"all cuts pass", snPassing(), true},
		{"galaxy host kept", with(snPassing(), "cdsxmatch", "Seyfert_1"), true},
		{"second snn model suffices", with(with(snPassing(), "snn_snia_vs_nonia", 0.1), "snn_sn_vs_all", 0.8), true},
		{"low snn scores", with(with(snPassing(), "snn_snia_vs_nonia", 0.3), "snn_sn_vs_all", 0.2), false},
		{"missing snn scores", without(without(snPassing(), "snn_snia_vs_nonia"), "snn_sn_vs_all"), false},
		{"star crossmatch rejected", with(snPassing(), "cdsxmatch", "RRLyr"), false},
		{"old object", with(snPassing(), "jdstarthist", 2458900.5), false},
		{"missing jd", without(snPassing(), "jd"), false},
		{"low real-bogus", with(snPassing(), "drb", 0.2), false},
		{"missing real-bogus", without(snPassing(), "drb"), false},
		{"extended source", with(snPassing(), "classtar", 0.1), false},
		{"first detection", with(snPassing(), "ndethist", 1.0), false},
		{"known minor planet", with(snPassing(), "roid", 3.0), false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			mask := runFilter(t, SNCandidates, alert.Batch{tc.a})
			if mask[0] != tc.want {
				t.Errorf("mask = %v, want %v", mask[0], tc.want)
			}
		})
	}
}

// A record whose crossmatch identifies a supernova but that carries no ML
// score must pass the crossmatch-only selection and fail the score-only one.
func TestSNCrossmatchWithoutScore(t *testing.T) {
	rec := alert.Alert{
		"objectId":  "ZTF21abcdefg",
		"cdsxmatch": "SN",
	}
	batch := alert.Batch{rec}

	xmatchMask := runFilter(t, SNCandidatesXmatch, batch)
	if !xmatchMask[0] {
		t.Error("crossmatch-only selection rejected a catalogued SN")
	}
	mlMask := runFilter(t, SNCandidatesML, batch)
	if mlMask[0] {
		t.Error("score-only selection matched a record with no ML score")
	}
}

func TestSNCandidatesML(t *testing.T) {
	batch := alert.Batch{
		{"objectId": "a", "snn_snia_vs_nonia": 0.5}, // boundary is inclusive
		{"objectId": "b", "snn_snia_vs_nonia": 0.49},
		{"objectId": "c", "snn_snia_vs_nonia": nil},
		{"objectId": "d"},
	}
	mask := runFilter(t, SNCandidatesML, batch)
	want := []bool{true, false, false, false}
	for i := range want {
		if mask[i] != want[i] {
			t.Errorf("mask[%d] = %v, want %v", i, mask[i], want[i])
		}
	}
}

func knPassing() alert.Alert {
	return alert.Alert{
		"objectId":    "ZTF21bbbbbbb",
		"drb":         0.95,
		"classtar":    0.6,
		"jd":          2459005.5,
		"jdstarthist": 2459000.5,
		"ndethist":    3.0,
		"isdiffpos":   "t",
		"ssdistnr":    -999.0,
		"cdsxmatch":   alert.Unknown,
	}
}

func TestKNCandidates(t *testing.T) {
	cases := []struct {
		name string
		a    alert.Alert
		want bool
	}{
		{"all cuts pass", knPassing(), true},
		{"distant known sso tolerated", with(knPassing(), "ssdistnr", 30.0), true},
		{"real-bogus below kn cut", with(knPassing(), "drb", 0.8), false},
		{"old object", with(knPassing(), "jdstarthist", 2458900.5), false},
		{"long history", with(knPassing(), "ndethist", 25.0), false},
		{"negative subtraction", with(knPassing(), "isdiffpos", "f"), false},
		{"nearby known sso", with(knPassing(), "ssdistnr", 3.0), false},
		{"identified source", with(knPassing(), "cdsxmatch", "RRLyr"), false},
		{"missing drb", without(knPassing(), "drb"), false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			mask := runFilter(t, KNCandidates, alert.Batch{tc.a})
			if mask[0] != tc.want {
				t.Errorf("mask = %v, want %v", mask[0], tc.want)
			}
		})
	}
}

// Three-record batch: a well-detected fading source, a low-S/N fading
// source, and a source with no photometric history. Only the first matches.
func TestRateBasedKNCandidates(t *testing.T) {
	fading := alert.Alert{
		"objectId": "ZTF21ccccccc",
		"snr":      15.0,
		"cjd":      []any{2459000.0, 2459001.0, 2459002.0, 2459003.0},
		"cmagpsf":  []any{18.0, 18.4, 18.8, 19.2}, // 0.4 mag/day fade
	}
	lowSNR := alert.Alert{
		"objectId": "ZTF21ddddddd",
		"snr":      2.0,
		"cjd":      []any{2459000.0, 2459001.0},
		"cmagpsf":  []any{18.0, 18.5},
	}
	noHistory := alert.Alert{
		"objectId": "ZTF21eeeeeee",
		"snr":      8.0,
	}

	mask := runFilter(t, RateBasedKNCandidates, alert.Batch{fading, lowSNR, noHistory})
	want := []bool{true, false, false}
	for i := range want {
		if mask[i] != want[i] {
			t.Errorf("mask[%d] = %v, want %v", i, mask[i], want[i])
		}
	}
}

func TestRateBasedKNBoundaries(t *testing.T) {
	boundary := alert.Alert{
		"objectId": "ZTF21fffffff",
		"snr":      5.0, // inclusive
		"cjd":      []any{2459000.0, 2459001.0},
		"cmagpsf":  []any{18.0, 18.3}, // exactly 0.3 mag/day, inclusive
	}
	brightening := with(boundary, "cmagpsf", []any{18.3, 18.0})
	missingSNR := without(boundary, "snr")

	mask := runFilter(t, RateBasedKNCandidates, alert.Batch{boundary, brightening, missingSNR})
	want := []bool{true, false, false}
	for i := range want {
		if mask[i] != want[i] {
			t.Errorf("mask[%d] = %v, want %v", i, mask[i], want[i])
		}
	}
}

func TestMicrolensingCandidates(t *testing.T) {
	cases := []struct {
		name string
		a    alert.Alert
		want bool
	}{
		{
			"both bands agree",
			alert.Alert{"objectId": "a", "mulens_class_1": "ML", "mulens_class_2": "ML", "ndethist": 12.0},
			true,
		},
		{
			"single band",
			alert.Alert{"objectId": "b", "mulens_class_1": "ML", "mulens_class_2": "VARIABLE", "ndethist": 12.0},
			false,
		},
		{
			"too few detections",
			alert.Alert{"objectId": "c", "mulens_class_1": "ML", "mulens_class_2": "ML", "ndethist": 4.0},
			false,
		},
		{
			"missing labels",
			alert.Alert{"objectId": "d", "ndethist": 12.0},
			false,
		},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			mask := runFilter(t, MicrolensingCandidates, alert.Batch{tc.a})
			if mask[0] != tc.want {
				t.Errorf("mask = %v, want %v", mask[0], tc.want)
			}
		})
	}
}

func TestSSOCandidates(t *testing.T) {
	cases := []struct {
		name string
		a    alert.Alert
		want bool
	}{
		{"mpc match", alert.Alert{"objectId": "a", "roid": 3.0}, true},
		{"candidate near known object", alert.Alert{"objectId": "b", "roid": 2.0, "ssdistnr": 3.0}, true},
		{"candidate far from known object", alert.Alert{"objectId": "c", "roid": 2.0, "ssdistnr": 8.0}, false},
		{"candidate with no known object", alert.Alert{"objectId": "d", "roid": 2.0, "ssdistnr": -999.0}, false},
		{"stationary source", alert.Alert{"objectId": "e", "roid": 0.0, "ssdistnr": 1.0}, false},
		{"missing roid", alert.Alert{"objectId": "f", "ssdistnr": 1.0}, false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			mask := runFilter(t, SSOCandidates, alert.Batch{tc.a})
			if mask[0] != tc.want {
				t.Errorf("mask = %v, want %v", mask[0], tc.want)
			}
		})
	}
}

func grbPassing() alert.Alert {
	return alert.Alert{
		"objectId": "ZTF21ggggggg",
		"ndethist": 4.0,
		"ssdistnr": -999.0,
		"cjd":      []any{2459000.0, 2459000.5},
		"cmagpsf":  []any{19.0, 19.6}, // 1.2 mag/day fade
	}
}

func TestOrphanGRBCandidates(t *testing.T) {
	cases := []struct {
		name string
		a    alert.Alert
		want bool
	}{
		{"fast fading orphan", grbPassing(), true},
		{"catalogued source", with(grbPassing(), "cdsxmatch", "SN"), false},
		{"long history", with(grbPassing(), "ndethist", 15.0), false},
		{"missing history count", without(grbPassing(), "ndethist"), false},
		{"nearby known sso", with(grbPassing(), "ssdistnr", 3.0), false},
		{"slow fade", with(grbPassing(), "cmagpsf", []any{19.0, 19.2}), false},
		{"no light curve", without(without(grbPassing(), "cjd"), "cmagpsf"), false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			mask := runFilter(t, OrphanGRBCandidates, alert.Batch{tc.a})
			if mask[0] != tc.want {
				t.Errorf("mask = %v, want %v", mask[0], tc.want)
			}
		})
	}
}

// Filters must not mutate the batch and must return the same mask when
// re-applied to it.
func TestFiltersPureAndIdempotent(t *testing.T) {
	batch := alert.Batch{snPassing(), knPassing(), grbPassing(), {"objectId": "empty"}}
	r := NewRegistry()
	if err := RegisterBuiltins(r); err != nil {
		t.Fatalf("RegisterBuiltins failed: %v", err)
	}
	for _, topic := range r.Topics() {
		fn, err := r.Get(topic)
		if err != nil {
			t.Fatalf("Get(%s) failed: %v", topic, err)
		}
		first := runFilter(t, fn, batch)
		second := runFilter(t, fn, batch)
		for i := range first {
			if first[i] != second[i] {
				t.Errorf("%s: mask[%d] changed between runs (%v then %v)", topic, i, first[i], second[i])
			}
		}
	}
}

func TestFiltersEmptyBatch(t *testing.T) {
	r := NewRegistry()
	if err := RegisterBuiltins(r); err != nil {
		t.Fatalf("RegisterBuiltins failed: %v", err)
	}
	for _, topic := range r.Topics() {
		fn, _ := r.Get(topic)
		mask, err := fn(alert.Batch{})
		if err != nil {
			t.Errorf("%s failed on empty batch: %v", topic, err)
		}
		if len(mask) != 0 {
			t.Errorf("%s returned %d decisions for an empty batch", topic, len(mask))
		}
	}
}
