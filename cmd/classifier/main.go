// Command classifier runs the alert-stream classification service.
//
// The service consumes alert batches from Kafka, evaluates every registered
// science filter against each batch, and publishes the matching subsets to
// per-topic Kafka output streams. Alerts missing a crossmatch annotation
// are enriched from a local catalog database before evaluation. An admin
// HTTP server exposes health probes and the registered topic list.
//
// Usage:
//
//	go run ./cmd/classifier [-config configs/development.yaml]
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/astrosift/astrosift/internal/crossmatch"
	"github.com/astrosift/astrosift/internal/distribute"
	"github.com/astrosift/astrosift/internal/engine"
	"github.com/astrosift/astrosift/internal/filter"
	"github.com/astrosift/astrosift/internal/stream"
	"github.com/astrosift/astrosift/pkg/config"
	apperrors "github.com/astrosift/astrosift/pkg/errors"
	"github.com/astrosift/astrosift/pkg/health"
	"github.com/astrosift/astrosift/pkg/kafka"
	"github.com/astrosift/astrosift/pkg/logger"
	"github.com/astrosift/astrosift/pkg/metrics"
	"github.com/astrosift/astrosift/pkg/middleware"
	"github.com/astrosift/astrosift/pkg/postgres"
	pkgredis "github.com/astrosift/astrosift/pkg/redis"
	"github.com/astrosift/astrosift/pkg/resilience"
)

func main() {
	configPath := flag.String("config", "configs/development.yaml", "path to config file")
	flag.Parse()
	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}
	logger.Setup(cfg.Logging.Level, cfg.Logging.Format)
	slog.Info("starting classifier service", "port", cfg.Server.Port)

	registry := filter.NewRegistry()
	if err := filter.RegisterBuiltins(registry); err != nil {
		slog.Error("failed to register filters", "error", err)
		os.Exit(1)
	}
	slog.Info("filters registered", "topics", registry.Topics())

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	m := metrics.New()
	var metricsShutdown func(context.Context) error
	if cfg.Metrics.Enabled {
		metricsShutdown = metrics.StartServer(cfg.Metrics.Port)
	}

	checker := health.NewChecker()

	// The crossmatch catalog and its cache are auxiliary: the service runs
	// degraded without them, annotating unmatched alerts as Unknown.
	var xmatch *crossmatch.Client
	db, err := connectPostgres(ctx, cfg)
	if err != nil {
		slog.Warn("catalog database unavailable, crossmatch enrichment disabled", "error", err)
	} else {
		defer db.Close()
		checker.Register("postgres", func(ctx context.Context) health.ComponentHealth {
			if err := db.DB.PingContext(ctx); err != nil {
				return health.ComponentHealth{Status: health.StatusDown, Message: err.Error()}
			}
			return health.ComponentHealth{Status: health.StatusUp}
		})

		cache, err := pkgredis.NewClient(cfg.Redis)
		if err != nil {
			slog.Warn("redis unavailable, crossmatch lookups uncached", "error", err)
		} else {
			defer cache.Close()
			checker.Register("redis", func(ctx context.Context) health.ComponentHealth {
				if err := cache.Ping(ctx); err != nil {
					return health.ComponentHealth{Status: health.StatusDegraded, Message: err.Error()}
				}
				return health.ComponentHealth{Status: health.StatusUp}
			})
		}
		xmatch = crossmatch.New(crossmatch.NewCatalogStore(db), cache, cfg.Crossmatch, cfg.Redis.CacheTTL, m)
		slog.Info("crossmatch enrichment enabled", "radius_arcsec", cfg.Crossmatch.RadiusArcsec)
	}

	distributor := distribute.New(cfg.Kafka, registry.Topics(), m)
	defer distributor.Close()

	eng := engine.New(registry, cfg.Engine, m)
	processor := stream.New(eng, xmatch, distributor, m)
	consumer := kafka.NewConsumer(cfg.Kafka, cfg.Kafka.Topics.AlertBatches, processor.HandleMessage)

	consumerDone := make(chan error, 1)
	go func() {
		consumerDone <- consumer.Start(ctx)
	}()

	mux := http.NewServeMux()
	mux.HandleFunc("GET /health/live", checker.LiveHandler())
	mux.HandleFunc("GET /health/ready", checker.ReadyHandler())
	mux.HandleFunc("GET /api/v1/topics", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]any{
			"topics": registry.Topics(),
		})
	})
	mux.HandleFunc("GET /api/v1/topics/{topic}", func(w http.ResponseWriter, r *http.Request) {
		name := r.PathValue("topic")
		if _, err := registry.Get(name); err != nil {
			writeError(w, err)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]string{
			"topic":  name,
			"output": cfg.Kafka.Topics.OutputTopic(name),
		})
	})
	if xmatch != nil {
		mux.HandleFunc("POST /api/v1/crossmatch/cache/flush", func(w http.ResponseWriter, r *http.Request) {
			flushed, err := xmatch.FlushCache(r.Context())
			if err != nil {
				writeError(w, err)
				return
			}
			slog.Info("crossmatch cache flushed", "keys", flushed)
			w.Header().Set("Content-Type", "application/json")
			json.NewEncoder(w).Encode(map[string]int64{"flushed": flushed})
		})
		mux.HandleFunc("POST /api/v1/crossmatch/breaker/reset", func(w http.ResponseWriter, r *http.Request) {
			xmatch.ResetBreaker()
			w.WriteHeader(http.StatusNoContent)
		})
	}

	chain := middleware.Metrics(m)(middleware.Timeout(cfg.Server.RequestTimeout)(mux))
	server := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:      chain,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	go func() {
		<-ctx.Done()
		slog.Info("shutdown signal received")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			slog.Error("server shutdown error", "error", err)
		}
		if metricsShutdown != nil {
			if err := metricsShutdown(shutdownCtx); err != nil {
				slog.Error("metrics server shutdown error", "error", err)
			}
		}
	}()

	slog.Info("classifier admin server listening", "addr", server.Addr)
	if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		slog.Error("server error", "error", err)
		os.Exit(1)
	}
	if err := <-consumerDone; err != nil {
		slog.Error("consumer stopped with error", "error", err)
	}
	slog.Info("classifier service stopped")
}

// writeError maps application errors onto HTTP status codes for the admin
// API.
func writeError(w http.ResponseWriter, err error) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(apperrors.HTTPStatusCode(err))
	json.NewEncoder(w).Encode(map[string]string{"error": err.Error()})
}

// connectPostgres dials the catalog database with a short retry window so a
// restarting database does not take the classifier down with it.
func connectPostgres(ctx context.Context, cfg *config.Config) (*postgres.Client, error) {
	var db *postgres.Client
	err := resilience.Retry(ctx, "postgres connect", resilience.RetryConfig{
		MaxAttempts:  3,
		InitialDelay: 500 * time.Millisecond,
	}, func() error {
		var err error
		db, err = postgres.New(cfg.Postgres)
		return err
	})
	return db, err
}
