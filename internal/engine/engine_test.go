package engine

import (
	"context"
	"errors"
	"testing"

	"github.com/astrosift/astrosift/internal/alert"
	"github.com/astrosift/astrosift/internal/filter"
	"github.com/astrosift/astrosift/pkg/config"
	apperrors "github.com/astrosift/astrosift/pkg/errors"
)

var errBroken = errors.New("broken filter")

func passAll(batch alert.Batch) ([]bool, error) {
	mask := make([]bool, len(batch))
	for i := range mask {
		mask[i] = true
	}
	return mask, nil
}

func passNone(batch alert.Batch) ([]bool, error) {
	return make([]bool, len(batch)), nil
}

func alwaysFail(batch alert.Batch) ([]bool, error) {
	return nil, errBroken
}

func wrongLength(batch alert.Batch) ([]bool, error) {
	return make([]bool, len(batch)+1), nil
}

func newEngine(t *testing.T, filters map[string]filter.Func) *Engine {
	t.Helper()
	r := filter.NewRegistry()
	for topic, fn := range filters {
		if err := r.Register(topic, fn); err != nil {
			t.Fatalf("Register(%s) failed: %v", topic, err)
		}
	}
	return New(r, config.EngineConfig{}, nil)
}

func testBatch() alert.Batch {
	return alert.Batch{
		{"objectId": "ZTF21aaaaaaa"},
		{"objectId": "ZTF21bbbbbbb"},
	}
}

func TestEvaluateAllTopicsSucceed(t *testing.T) {
	e := newEngine(t, map[string]filter.Func{
		"everything": passAll,
		"nothing":    passNone,
	})
	batch := testBatch()

	result, err := e.Evaluate(context.Background(), batch)
	if err != nil {
		t.Fatalf("Evaluate failed: %v", err)
	}
	if result.Degraded() {
		t.Errorf("result degraded with errors %v", result.Errors)
	}
	if len(result.Masks) != 2 {
		t.Fatalf("got %d masks, want 2", len(result.Masks))
	}
	for topic, mask := range result.Masks {
		if len(mask) != len(batch) {
			t.Errorf("%s: mask length %d, want %d", topic, len(mask), len(batch))
		}
	}
	for _, hit := range result.Masks["everything"] {
		if !hit {
			t.Error("everything topic produced a false decision")
		}
	}
	for _, hit := range result.Masks["nothing"] {
		if hit {
			t.Error("nothing topic produced a true decision")
		}
	}
}

// One failing filter must not discard the masks of its sibling topics.
func TestEvaluatePartialFailure(t *testing.T) {
	e := newEngine(t, map[string]filter.Func{
		"healthy": passAll,
		"broken":  alwaysFail,
	})

	result, err := e.Evaluate(context.Background(), testBatch())
	if err != nil {
		t.Fatalf("Evaluate failed: %v", err)
	}
	if !result.Degraded() {
		t.Error("result not marked degraded")
	}
	if _, ok := result.Masks["healthy"]; !ok {
		t.Error("healthy topic's mask was discarded")
	}
	if _, ok := result.Masks["broken"]; ok {
		t.Error("broken topic produced a mask")
	}
	if got := result.Errors["broken"]; !errors.Is(got, errBroken) {
		t.Errorf("broken topic error = %v, want errBroken", got)
	}
}

func TestEvaluateMaskLengthEnforced(t *testing.T) {
	e := newEngine(t, map[string]filter.Func{"miscounting": wrongLength})

	result, err := e.Evaluate(context.Background(), testBatch())
	if err != nil {
		t.Fatalf("Evaluate failed: %v", err)
	}
	if _, ok := result.Masks["miscounting"]; ok {
		t.Error("short-masked topic was accepted")
	}
	if got := result.Errors["miscounting"]; !errors.Is(got, apperrors.ErrInternal) {
		t.Errorf("error = %v, want ErrInternal", got)
	}
}

func TestEvaluateRejectsMalformedBatch(t *testing.T) {
	e := newEngine(t, map[string]filter.Func{"everything": passAll})
	bad := alert.Batch{{"objectId": "a"}, {"ra": 1.5}}

	if _, err := e.Evaluate(context.Background(), bad); !errors.Is(err, apperrors.ErrMissingColumn) {
		t.Errorf("Evaluate(bad batch) error = %v, want ErrMissingColumn", err)
	}
}

func TestEvaluateIdempotent(t *testing.T) {
	e := newEngine(t, map[string]filter.Func{
		"everything": passAll,
		"nothing":    passNone,
	})
	batch := testBatch()

	first, err := e.Evaluate(context.Background(), batch)
	if err != nil {
		t.Fatalf("first Evaluate failed: %v", err)
	}
	second, err := e.Evaluate(context.Background(), batch)
	if err != nil {
		t.Fatalf("second Evaluate failed: %v", err)
	}
	for topic, mask := range first.Masks {
		other := second.Masks[topic]
		if len(other) != len(mask) {
			t.Fatalf("%s: mask length changed between runs", topic)
		}
		for i := range mask {
			if mask[i] != other[i] {
				t.Errorf("%s: mask[%d] changed between runs", topic, i)
			}
		}
	}
}

func TestEvaluateHonorsParallelismLimit(t *testing.T) {
	r := filter.NewRegistry()
	for _, topic := range []string{"a", "b", "c", "d"} {
		if err := r.Register(topic, passAll); err != nil {
			t.Fatalf("Register(%s) failed: %v", topic, err)
		}
	}
	e := New(r, config.EngineConfig{Parallelism: 1}, nil)

	result, err := e.Evaluate(context.Background(), testBatch())
	if err != nil {
		t.Fatalf("Evaluate failed: %v", err)
	}
	if len(result.Masks) != 4 {
		t.Errorf("got %d masks, want 4", len(result.Masks))
	}
}

func TestEvaluateCancelledContext(t *testing.T) {
	e := newEngine(t, map[string]filter.Func{"everything": passAll})
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	result, err := e.Evaluate(ctx, testBatch())
	if err != nil {
		t.Fatalf("Evaluate failed: %v", err)
	}
	if got := result.Errors["everything"]; !errors.Is(got, context.Canceled) {
		t.Errorf("error = %v, want context.Canceled", got)
	}
}
