// Command worker computes calculations queued on Kafka by the API server.
package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/turtacn/LumiGrid/internal/bootstrap"
	"github.com/turtacn/LumiGrid/internal/config"
	"github.com/turtacn/LumiGrid/internal/infrastructure/messaging/kafka"
	"github.com/turtacn/LumiGrid/internal/infrastructure/monitoring/health"
	"github.com/turtacn/LumiGrid/internal/infrastructure/monitoring/logging"
	"github.com/turtacn/LumiGrid/internal/infrastructure/monitoring/prometheus"
	"github.com/turtacn/LumiGrid/internal/worker"
)

const shutdownTimeout = 30 * time.Second

func main() {
	configPath := flag.String("config", "", "path to configuration file (default: environment only)")
	concurrency := flag.Int("workers", 0, "consumer slots (overrides worker.concurrency)")
	flag.Parse()

	cfg, err := config.LoadOrEnv(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load configuration: %v\n", err)
		os.Exit(1)
	}
	if *concurrency > 0 {
		cfg.Worker.Concurrency = *concurrency
	}

	logger, err := logging.NewLogger(cfg.Log)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync() //nolint:errcheck

	if err := run(cfg, logger); err != nil {
		logger.Error("worker exited", logging.Err(err))
		os.Exit(1)
	}
}

func run(cfg *config.Config, logger logging.Logger) error {
	if !cfg.Kafka.Enabled {
		return errors.New("kafka must be enabled for the worker")
	}
	if !cfg.Database.Enabled {
		return errors.New("database must be enabled for the worker")
	}

	collector, metrics, err := bootstrap.NewMetrics(cfg.Metrics, logger)
	if err != nil {
		return fmt.Errorf("metrics: %w", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	infra, err := bootstrap.Open(ctx, cfg, metrics, logger)
	if err != nil {
		return err
	}
	defer infra.Close()

	svc := infra.Service()
	consumerCfg := infra.ConsumerConfig()
	runner := worker.NewRunner(cfg.Worker, svc, func(int) (worker.Consumer, error) {
		c, err := kafka.NewConsumer(consumerCfg, infra.Producer, logger)
		if err != nil {
			return nil, err
		}
		return c, nil
	}, metrics, logger)

	healthSrv := startHealthServer(cfg.Worker.HealthPort, infra.Health, collector, logger)

	logger.Info("starting LumiGrid worker",
		logging.Int("consumers", cfg.Worker.Concurrency),
		logging.String("topic", kafka.TopicCalculationRequested))
	runErr := runner.Run(ctx)

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := healthSrv.Shutdown(shutdownCtx); err != nil {
		logger.Error("health server shutdown error", logging.Err(err))
	}
	logger.Info("LumiGrid worker stopped")
	return runErr
}

func startHealthServer(port int, registry *health.Registry, collector prometheus.MetricsCollector, logger logging.Logger) *http.Server {
	r := chi.NewRouter()
	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	r.Get("/readyz", func(w http.ResponseWriter, req *http.Request) {
		report := registry.Check(req.Context())
		w.Header().Set("Content-Type", "application/json")
		if !report.Healthy() {
			w.WriteHeader(http.StatusServiceUnavailable)
		}
		_ = json.NewEncoder(w).Encode(report)
	})
	r.Handle("/metrics", collector.Handler())

	srv := &http.Server{
		Addr:              ":" + strconv.Itoa(port),
		Handler:           r,
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		logger.Info("health server listening", logging.Int("port", port))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("health server error", logging.Err(err))
		}
	}()
	return srv
}
