// Command replay publishes alerts from a JSON file onto the ingest topic in
// fixed-size batches. It exists for local testing: point it at a captured
// night of alerts and watch the classifier's output topics.
//
// Usage:
//
//	go run ./cmd/replay -file alerts.json [-batch 100] [-config configs/development.yaml]
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/astrosift/astrosift/internal/alert"
	"github.com/astrosift/astrosift/pkg/config"
	"github.com/astrosift/astrosift/pkg/kafka"
	"github.com/astrosift/astrosift/pkg/logger"
)

func main() {
	configPath := flag.String("config", "configs/development.yaml", "path to config file")
	filePath := flag.String("file", "", "JSON file holding an array of alert records")
	batchSize := flag.Int("batch", 100, "records per published batch")
	delay := flag.Duration("delay", 0, "pause between batches")
	flag.Parse()

	if *filePath == "" {
		fmt.Fprintln(os.Stderr, "missing required -file flag")
		os.Exit(1)
	}
	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}
	logger.Setup(cfg.Logging.Level, "text")

	data, err := os.ReadFile(*filePath)
	if err != nil {
		slog.Error("failed to read alert file", "file", *filePath, "error", err)
		os.Exit(1)
	}
	var alerts alert.Batch
	if err := json.Unmarshal(data, &alerts); err != nil {
		slog.Error("failed to parse alert file", "file", *filePath, "error", err)
		os.Exit(1)
	}
	if err := alert.Validate(alerts); err != nil {
		slog.Error("alert file failed schema validation", "error", err)
		os.Exit(1)
	}

	producer := kafka.NewProducer(cfg.Kafka, cfg.Kafka.Topics.AlertBatches)
	defer producer.Close()

	ctx := context.Background()
	published := 0
	for start := 0; start < len(alerts); start += *batchSize {
		end := start + *batchSize
		if end > len(alerts) {
			end = len(alerts)
		}
		batch := alerts[start:end]
		key := fmt.Sprintf("replay-%d", start / *batchSize)
		if err := producer.Publish(ctx, kafka.Event{Key: key, Value: batch}); err != nil {
			slog.Error("failed to publish batch", "batch", key, "error", err)
			os.Exit(1)
		}
		published += len(batch)
		slog.Info("batch published", "batch", key, "records", len(batch))
		if *delay > 0 {
			time.Sleep(*delay)
		}
	}
	slog.Info("replay complete", "records", published, "topic", cfg.Kafka.Topics.AlertBatches)
}
