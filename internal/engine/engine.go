// Package engine applies every registered science filter to an alert batch
// and assembles the per-topic result set.
//
// Filters are pure functions over an immutable batch, so the engine fans
// out one task per topic with no synchronization between them and fans back
// in on completion. A filter that fails structurally poisons only its own
// topic: the engine reports the failure next to the masks of the topics
// that succeeded.
package engine

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/astrosift/astrosift/internal/alert"
	"github.com/astrosift/astrosift/internal/filter"
	"github.com/astrosift/astrosift/pkg/config"
	apperrors "github.com/astrosift/astrosift/pkg/errors"
	"github.com/astrosift/astrosift/pkg/logger"
	"github.com/astrosift/astrosift/pkg/metrics"
)

// Result holds the outcome of evaluating one batch: a boolean membership
// mask per healthy topic and an error per failed topic. A topic appears in
// exactly one of the two maps.
type Result struct {
	Masks  map[string][]bool
	Errors map[string]error
}

// Degraded reports whether any topic failed for this batch.
func (r *Result) Degraded() bool {
	return len(r.Errors) > 0
}

// Engine evaluates all registered filters against incoming batches. It is
// safe for concurrent use: the registry is read-only and each evaluation
// owns its intermediate state.
type Engine struct {
	registry    *filter.Registry
	parallelism int
	metrics     *metrics.Metrics
	logger      *slog.Logger
}

// New creates an Engine over the given registry. m may be nil in tests.
func New(registry *filter.Registry, cfg config.EngineConfig, m *metrics.Metrics) *Engine {
	return &Engine{
		registry:    registry,
		parallelism: cfg.Parallelism,
		metrics:     m,
		logger:      logger.WithComponent("engine"),
	}
}

// Evaluate validates the batch and applies every registered topic's filter
// to it exactly once. Batch-level structural problems fail the whole call;
// a single filter's failure is recorded in Result.Errors without
// discarding sibling topics' masks. Failed filters are not retried:
// filters are deterministic, so re-running one on the same batch would
// fail the same way.
func (e *Engine) Evaluate(ctx context.Context, batch alert.Batch) (*Result, error) {
	if err := alert.Validate(batch); err != nil {
		return nil, fmt.Errorf("validating batch: %w", err)
	}

	topics := e.registry.Topics()
	result := &Result{
		Masks:  make(map[string][]bool, len(topics)),
		Errors: make(map[string]error),
	}

	var mu sync.Mutex
	g, ctx := errgroup.WithContext(ctx)
	if e.parallelism > 0 {
		g.SetLimit(e.parallelism)
	}

	for _, topic := range topics {
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				mu.Lock()
				result.Errors[topic] = err
				mu.Unlock()
				return nil
			}

			fn, err := e.registry.Get(topic)
			if err != nil {
				mu.Lock()
				result.Errors[topic] = err
				mu.Unlock()
				return nil
			}

			start := time.Now()
			mask, err := fn(batch)
			elapsed := time.Since(start)

			mu.Lock()
			defer mu.Unlock()
			switch {
			case err != nil:
				result.Errors[topic] = err
			case len(mask) != len(batch):
				result.Errors[topic] = apperrors.Newf(apperrors.ErrInternal, 500,
					"filter %s returned %d decisions for %d records", topic, len(mask), len(batch))
			default:
				result.Masks[topic] = mask
			}
			e.record(topic, result.Masks[topic], result.Errors[topic], elapsed)
			return nil
		})
	}
	// Goroutines always return nil; failures live in result.Errors.
	_ = g.Wait()

	for topic, err := range result.Errors {
		e.logger.Error("filter failed for batch",
			"topic", topic,
			"batch_size", len(batch),
			"error", err,
		)
	}
	return result, nil
}

func (e *Engine) record(topic string, mask []bool, err error, elapsed time.Duration) {
	if e.metrics == nil {
		return
	}
	e.metrics.FilterLatency.WithLabelValues(topic).Observe(elapsed.Seconds())
	if err != nil {
		e.metrics.FilterErrorsTotal.WithLabelValues(topic).Inc()
		return
	}
	matches := 0
	for _, hit := range mask {
		if hit {
			matches++
		}
	}
	e.metrics.TopicMatchesTotal.WithLabelValues(topic).Add(float64(matches))
}
