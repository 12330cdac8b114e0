// Command apiserver serves the LumiGrid HTTP API and, when enabled, the gRPC
// health endpoint.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/turtacn/LumiGrid/internal/bootstrap"
	"github.com/turtacn/LumiGrid/internal/config"
	"github.com/turtacn/LumiGrid/internal/infrastructure/monitoring/logging"
	grpcserver "github.com/turtacn/LumiGrid/internal/interfaces/grpc"
	httpserver "github.com/turtacn/LumiGrid/internal/interfaces/http"
	"github.com/turtacn/LumiGrid/internal/interfaces/http/handlers"
	"github.com/turtacn/LumiGrid/internal/interfaces/http/middleware"
)

const shutdownTimeout = 30 * time.Second

// Set via -ldflags.
var version = "dev"

func main() {
	configPath := flag.String("config", "", "path to configuration file (default: environment only)")
	httpPort := flag.Int("http-port", 0, "HTTP server port (overrides server.port)")
	grpcPort := flag.Int("grpc-port", 0, "gRPC server port (overrides grpc.port)")
	flag.Parse()

	cfg, err := config.LoadOrEnv(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load configuration: %v\n", err)
		os.Exit(1)
	}
	if *httpPort > 0 {
		cfg.Server.Port = *httpPort
	}
	if *grpcPort > 0 {
		cfg.GRPC.Port = *grpcPort
	}

	logger, err := logging.NewLogger(cfg.Log)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync() //nolint:errcheck

	if *configPath != "" {
		watchLogLevel(*configPath, logger)
	}

	if err := run(cfg, logger); err != nil {
		logger.Error("API server exited", logging.Err(err))
		os.Exit(1)
	}
}

// watchLogLevel applies log.level edits without a restart. Other sections
// are read once at startup.
func watchLogLevel(path string, logger logging.Logger) {
	setter, ok := logger.(logging.LevelSetter)
	if !ok {
		return
	}
	err := config.Watch(path, func(next *config.Config) {
		setter.SetLevel(next.Log.Level)
		logger.Info("configuration reloaded", logging.String("log_level", string(next.Log.Level)))
	}, func(err error) {
		logger.Warn("ignoring invalid configuration change", logging.Err(err))
	})
	if err != nil {
		logger.Warn("configuration watch disabled", logging.Err(err))
	}
}

func run(cfg *config.Config, logger logging.Logger) error {
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
	routerCfg := httpserver.RouterConfig{
		CalculationHandler: handlers.NewCalculationHandler(svc, logger),
		FixtureHandler:     handlers.NewFixtureHandler(svc, logger),
		HealthHandler:      handlers.NewHealthHandler(version, infra.Health),
		LoggingMiddleware:  middleware.NewLoggingMiddleware(logger, metrics, middleware.DefaultLoggingConfig()),
		MaxBodySize:        cfg.Server.MaxBodySize,
	}
	if cfg.Metrics.Enabled {
		routerCfg.MetricsCollector = collector
	}
	if len(cfg.Server.CORSAllowedOrigins) > 0 {
		routerCfg.CORSMiddleware = middleware.NewCORSMiddleware(cfg.Server.CORSAllowedOrigins)
	}
	if cfg.Server.RateLimit.Enabled {
		rl := middleware.NewRateLimitMiddleware(middleware.RateLimitConfigFrom(cfg.Server.RateLimit))
		defer rl.Stop()
		routerCfg.RateLimitMiddleware = rl
	}
	httpSrv := httpserver.NewServer(cfg.Server, httpserver.NewRouter(routerCfg), logger)

	var grpcSrv *grpcserver.Server
	if cfg.GRPC.Enabled {
		grpcSrv, err = grpcserver.NewServer(cfg.GRPC,
			grpcserver.WithLogger(logger),
			grpcserver.WithMetrics(metrics),
			grpcserver.WithHealthRegistry(infra.Health),
		)
		if err != nil {
			return err
		}
	}

	logger.Info("starting LumiGrid API server",
		logging.String("version", version),
		logging.String("http_addr", cfg.Server.Addr()),
		logging.Bool("grpc", cfg.GRPC.Enabled))

	g, gctx := errgroup.WithContext(ctx)
	g.Go(httpSrv.Start)
	if grpcSrv != nil {
		g.Go(grpcSrv.Start)
	}
	g.Go(func() error {
		<-gctx.Done()
		logger.Info("shutting down servers")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := httpSrv.Stop(shutdownCtx); err != nil {
			logger.Error("HTTP server shutdown error", logging.Err(err))
		}
		if grpcSrv != nil {
			if err := grpcSrv.Stop(shutdownCtx); err != nil {
				logger.Error("gRPC server shutdown error", logging.Err(err))
			}
		}
		return nil
	})

	err = g.Wait()
	logger.Info("servers stopped")
	return err
}
