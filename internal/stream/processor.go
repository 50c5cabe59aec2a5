// Package stream connects the Kafka ingest boundary to the filter engine:
// it decodes alert batches, validates the schema contract, enriches missing
// crossmatch annotations, evaluates every topic, and hands the matching
// subsets to the distribution layer.
package stream

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/astrosift/astrosift/internal/alert"
	"github.com/astrosift/astrosift/internal/crossmatch"
	"github.com/astrosift/astrosift/internal/engine"
	"github.com/astrosift/astrosift/pkg/kafka"
	"github.com/astrosift/astrosift/pkg/logger"
	"github.com/astrosift/astrosift/pkg/metrics"
)

// Publisher is the slice of the distribution layer the processor needs.
type Publisher interface {
	Publish(ctx context.Context, topic string, matches alert.Batch) error
}

// Processor handles one ingest message end to end. Batches are discarded
// after dispatch completes; no state survives between messages.
type Processor struct {
	engine    *engine.Engine
	xmatch    *crossmatch.Client
	publisher Publisher
	metrics   *metrics.Metrics
	logger    *slog.Logger
}

// New creates a Processor. xmatch and m may be nil (no enrichment, no
// metrics).
func New(eng *engine.Engine, xmatch *crossmatch.Client, publisher Publisher, m *metrics.Metrics) *Processor {
	return &Processor{
		engine:    eng,
		xmatch:    xmatch,
		publisher: publisher,
		metrics:   m,
		logger:    logger.WithComponent("stream-processor"),
	}
}

// HandleMessage is the kafka.MessageHandler for the alert-batches topic.
// The message value is a JSON array of alert records; the key is the
// ingestion layer's batch identifier.
//
// Malformed batches are counted, logged, and dropped: redelivering them
// cannot help since the failure is a deterministic function of the payload.
// Publish failures are returned so the message is not committed and the
// batch is redelivered (downstream consumers must tolerate duplicates).
func (p *Processor) HandleMessage(ctx context.Context, key []byte, value []byte) error {
	ctx = logger.WithBatchID(ctx, string(key))
	log := logger.FromContext(ctx).With("component", "stream-processor")

	batch, err := kafka.DecodeJSON[alert.Batch](value)
	if err != nil {
		p.countBatch("malformed")
		log.Error("dropping undecodable batch", "error", err)
		return nil
	}
	if len(batch) == 0 {
		p.countBatch("empty")
		return nil
	}
	// Validate before enrichment: a null record decodes to a nil map, and
	// writing an annotation into it would panic.
	if err := alert.Validate(batch); err != nil {
		p.countBatch("malformed")
		log.Error("dropping structurally invalid batch", "size", len(batch), "error", err)
		return nil
	}

	if p.metrics != nil {
		p.metrics.BatchSize.Observe(float64(len(batch)))
		p.metrics.AlertsTotal.Add(float64(len(batch)))
	}

	if p.xmatch != nil {
		p.xmatch.Enrich(ctx, batch)
	}

	result, err := p.engine.Evaluate(ctx, batch)
	if err != nil {
		p.countBatch("malformed")
		log.Error("dropping batch rejected by engine", "size", len(batch), "error", err)
		return nil
	}

	var publishErr error
	for topic, mask := range result.Masks {
		matches := alert.Subset(batch, mask)
		if err := p.publisher.Publish(ctx, topic, matches); err != nil {
			log.Error("failed to publish topic subset", "topic", topic, "error", err)
			if publishErr == nil {
				publishErr = fmt.Errorf("publishing topic %s: %w", topic, err)
			}
		}
	}
	if publishErr != nil {
		return publishErr
	}

	if result.Degraded() {
		p.countBatch("degraded")
	} else {
		p.countBatch("ok")
	}
	log.Debug("batch dispatched",
		"size", len(batch),
		"topics", len(result.Masks),
		"failed_topics", len(result.Errors),
	)
	return nil
}

func (p *Processor) countBatch(outcome string) {
	if p.metrics != nil {
		p.metrics.BatchesTotal.WithLabelValues(outcome).Inc()
	}
}
