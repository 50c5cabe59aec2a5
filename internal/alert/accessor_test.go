package alert

import (
	"math"
	"testing"
)

func TestFloatMissingValuePolicy(t *testing.T) {
	a := Alert{
		"objectId": "ZTF21abcdefg",
		"drb":      0.92,
		"snr":      float64(15),
		"asInt":    7,
		"asString": "3.5",
		"asNaN":    math.NaN(),
		"garbage":  "not-a-number",
		"wrong":    []any{1.0},
	}

	cases := []struct {
		name  string
		field string
		def   float64
		want  float64
	}{
		{"present float", "drb", -1, 0.92},
		{"present int", "asInt", -1, 7},
		{"numeric string", "asString", -1, 3.5},
		{"absent", "nope", -1, -1},
		{"nan treated as absent", "asNaN", -1, -1},
		{"non-numeric string", "garbage", -1, -1},
		{"wrong type", "wrong", -1, -1},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := Float(a, tc.field, tc.def); got != tc.want {
				t.Errorf("Float(%q) = %v, want %v", tc.field, got, tc.want)
			}
		})
	}
}

func TestFloatNaNDefaultFailsComparisons(t *testing.T) {
	// Filters rely on this: a NaN default makes every threshold cut fail
	// for a missing field, in both directions.
	a := Alert{"objectId": "x"}
	v := Float(a, "drb", math.NaN())
	if v > 0.5 {
		t.Error("NaN default unexpectedly passed a greater-than cut")
	}
	if v < 0.5 {
		t.Error("NaN default unexpectedly passed a less-than cut")
	}
}

func TestIntAndStrDefaults(t *testing.T) {
	a := Alert{
		"objectId": "ZTF21abcdefg",
		"ndethist": float64(12), // JSON numbers decode as float64
		"roid":     3,
		"label":    "ML",
		"empty":    "",
	}
	if got := Int(a, "ndethist", 0); got != 12 {
		t.Errorf("Int(ndethist) = %d, want 12", got)
	}
	if got := Int(a, "roid", 0); got != 3 {
		t.Errorf("Int(roid) = %d, want 3", got)
	}
	if got := Int(a, "missing", -1); got != -1 {
		t.Errorf("Int(missing) = %d, want -1", got)
	}
	if got := Str(a, "label", ""); got != "ML" {
		t.Errorf("Str(label) = %q, want ML", got)
	}
	if got := Str(a, "empty", "fallback"); got != "fallback" {
		t.Errorf("Str(empty) = %q, want fallback", got)
	}
}

func TestXMatchSentinel(t *testing.T) {
	withMatch := Alert{"cdsxmatch": "Seyfert_1"}
	if got := XMatch(withMatch); got != "Seyfert_1" {
		t.Errorf("XMatch = %q, want Seyfert_1", got)
	}
	without := Alert{"objectId": "x"}
	if got := XMatch(without); got != Unknown {
		t.Errorf("XMatch on missing annotation = %q, want %q", got, Unknown)
	}
}

func TestSeriesAlignment(t *testing.T) {
	a := Alert{
		"cjd":     []any{1.0, 2.0, "bad", 4.0},
		"cmagpsf": []float64{19.0, 18.5, 18.0, 17.5},
	}
	jd := Series(a, "cjd")
	if len(jd) != 4 {
		t.Fatalf("Series(cjd) length = %d, want 4 (non-numeric entries must stay aligned)", len(jd))
	}
	if !math.IsNaN(jd[2]) {
		t.Errorf("non-numeric entry = %v, want NaN", jd[2])
	}
	if got := Series(a, "absent"); got != nil {
		t.Errorf("Series(absent) = %v, want nil", got)
	}
	if got := Series(Alert{"cjd": "scalar"}, "cjd"); got != nil {
		t.Errorf("Series over non-array = %v, want nil", got)
	}
}

func TestLastRate(t *testing.T) {
	cases := []struct {
		name     string
		a        Alert
		wantRate float64
		wantOK   bool
	}{
		{
			name: "fading source",
			a: Alert{
				"cjd":     []any{0.0, 1.0, 2.0, 3.0},
				"cmagpsf": []any{18.0, 18.4, 18.8, 19.2},
			},
			wantRate: 0.4,
			wantOK:   true,
		},
		{
			name: "brightening source",
			a: Alert{
				"cjd":     []any{0.0, 2.0},
				"cmagpsf": []any{19.0, 18.0},
			},
			wantRate: -0.5,
			wantOK:   true,
		},
		{
			name: "nan entries skipped",
			a: Alert{
				"cjd":     []any{0.0, 1.0, 2.0},
				"cmagpsf": []any{18.0, nil, 19.0},
			},
			wantRate: 0.5,
			wantOK:   true,
		},
		{
			name:   "no history",
			a:      Alert{"objectId": "x"},
			wantOK: false,
		},
		{
			name: "single point",
			a: Alert{
				"cjd":     []any{1.0},
				"cmagpsf": []any{18.0},
			},
			wantOK: false,
		},
		{
			name: "duplicate timestamps",
			a: Alert{
				"cjd":     []any{1.0, 1.0},
				"cmagpsf": []any{18.0, 19.0},
			},
			wantOK: false,
		},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			rate, ok := LastRate(tc.a)
			if ok != tc.wantOK {
				t.Fatalf("LastRate ok = %v, want %v", ok, tc.wantOK)
			}
			if ok && math.Abs(rate-tc.wantRate) > 1e-9 {
				t.Errorf("LastRate = %v, want %v", rate, tc.wantRate)
			}
		})
	}
}

func TestDetectionCount(t *testing.T) {
	a := Alert{
		"cjd":     []any{1.0, 2.0, nil, 4.0},
		"cmagpsf": []any{18.0, nil, 18.5, 19.0},
	}
	if got := DetectionCount(a); got != 2 {
		t.Errorf("DetectionCount = %d, want 2", got)
	}
	if got := DetectionCount(Alert{}); got != 0 {
		t.Errorf("DetectionCount on empty alert = %d, want 0", got)
	}
}
