// Package distribute publishes each science topic's matching alerts to its
// own Kafka output topic so downstream subscribers can consume exactly the
// streams they care about.
package distribute

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/astrosift/astrosift/internal/alert"
	"github.com/astrosift/astrosift/pkg/config"
	apperrors "github.com/astrosift/astrosift/pkg/errors"
	"github.com/astrosift/astrosift/pkg/kafka"
	"github.com/astrosift/astrosift/pkg/logger"
	"github.com/astrosift/astrosift/pkg/metrics"
)

// Distributor owns one Kafka producer per registered science topic.
type Distributor struct {
	producers map[string]*kafka.Producer
	metrics   *metrics.Metrics
	logger    *slog.Logger
}

// New creates a Distributor with a producer for every topic name. The Kafka
// topic for science topic T is cfg.Topics.OutputTopic(T).
func New(cfg config.KafkaConfig, topics []string, m *metrics.Metrics) *Distributor {
	producers := make(map[string]*kafka.Producer, len(topics))
	for _, topic := range topics {
		producers[topic] = kafka.NewProducer(cfg, cfg.Topics.OutputTopic(topic))
	}
	return &Distributor{
		producers: producers,
		metrics:   m,
		logger:    logger.WithComponent("distributor"),
	}
}

// Publish writes the matched alerts to the topic's output stream, keyed by
// object ID so all alerts from one object land on the same partition.
// Publishing an empty subset is a no-op.
func (d *Distributor) Publish(ctx context.Context, topic string, matches alert.Batch) error {
	producer, ok := d.producers[topic]
	if !ok {
		return fmt.Errorf("%w: %s", apperrors.ErrUnknownTopic, topic)
	}
	if len(matches) == 0 {
		return nil
	}

	events := make([]kafka.Event, 0, len(matches))
	for _, a := range matches {
		events = append(events, kafka.Event{
			Key:   a.ObjectID(),
			Value: a,
		})
	}
	if err := producer.PublishBatch(ctx, events); err != nil {
		return fmt.Errorf("publishing %d alerts to topic %s: %w", len(events), topic, err)
	}
	if d.metrics != nil {
		d.metrics.PublishedTotal.WithLabelValues(topic).Add(float64(len(events)))
	}
	d.logger.Debug("topic subset published", "topic", topic, "count", len(events))
	return nil
}

// Topics returns the science topics this Distributor can publish to.
func (d *Distributor) Topics() []string {
	topics := make([]string, 0, len(d.producers))
	for topic := range d.producers {
		topics = append(topics, topic)
	}
	return topics
}

// Close closes every underlying producer, returning the first error.
func (d *Distributor) Close() error {
	var firstErr error
	for topic, producer := range d.producers {
		if err := producer.Close(); err != nil && firstErr == nil {
			firstErr = fmt.Errorf("closing producer for %s: %w", topic, err)
		}
	}
	return firstErr
}
