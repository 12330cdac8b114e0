// Package grpc serves the standard gRPC health service for orchestrator
// probes. Serving status follows the dependency checks of the API server.
package grpc

import (
	"context"
	"fmt"
	"net"
	"runtime/debug"
	"strings"
	"sync"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/keepalive"
	"google.golang.org/grpc/reflection"
	"google.golang.org/grpc/status"

	"github.com/turtacn/LumiGrid/internal/config"
	healthcheck "github.com/turtacn/LumiGrid/internal/infrastructure/monitoring/health"
	"github.com/turtacn/LumiGrid/internal/infrastructure/monitoring/logging"
	"github.com/turtacn/LumiGrid/internal/infrastructure/monitoring/prometheus"
	"github.com/turtacn/LumiGrid/pkg/types/common"
)

const (
	defaultMaxRecvMsgSize  = 4 * 1024 * 1024
	defaultGracefulTimeout = 10 * time.Second
	defaultProbeInterval   = 10 * time.Second
	probeTimeout           = 5 * time.Second

	// ServiceName is the health service key covering the calculation API.
	ServiceName = "lumigrid.v1.Calculations"
)

var defaultKeepaliveParams = keepalive.ServerParameters{
	MaxConnectionIdle:     15 * time.Minute,
	MaxConnectionAge:      30 * time.Minute,
	MaxConnectionAgeGrace: 5 * time.Second,
	Time:                  5 * time.Minute,
	Timeout:               1 * time.Second,
}

var defaultKeepalivePolicy = keepalive.EnforcementPolicy{
	MinTime:             5 * time.Second,
	PermitWithoutStream: true,
}

type Option func(*serverOptions)

type serverOptions struct {
	logger          logging.Logger
	metrics         *prometheus.AppMetrics
	registry        *healthcheck.Registry
	listener        net.Listener
	probeInterval   time.Duration
	keepaliveParams keepalive.ServerParameters
}

func WithLogger(l logging.Logger) Option {
	return func(o *serverOptions) { o.logger = l }
}

func WithMetrics(m *prometheus.AppMetrics) Option {
	return func(o *serverOptions) { o.metrics = m }
}

// WithHealthRegistry makes serving status follow the registry's checks.
func WithHealthRegistry(r *healthcheck.Registry) Option {
	return func(o *serverOptions) { o.registry = r }
}

// WithListener serves on ln instead of binding cfg's address.
func WithListener(ln net.Listener) Option {
	return func(o *serverOptions) { o.listener = ln }
}

func WithProbeInterval(d time.Duration) Option {
	return func(o *serverOptions) {
		if d > 0 {
			o.probeInterval = d
		}
	}
}

type Server struct {
	grpcServer      *grpc.Server
	listener        net.Listener
	healthServer    *health.Server
	opts            *serverOptions
	gracefulTimeout time.Duration

	mu      sync.Mutex
	started bool
	cancel  context.CancelFunc
	done    chan struct{}
}

func NewServer(cfg config.GRPCConfig, opts ...Option) (*Server, error) {
	sopts := &serverOptions{
		probeInterval:   defaultProbeInterval,
		keepaliveParams: defaultKeepaliveParams,
	}
	for _, o := range opts {
		o(sopts)
	}
	if sopts.logger == nil {
		sopts.logger = logging.NewNopLogger()
	}
	sopts.logger = sopts.logger.Named("grpc")

	lis := sopts.listener
	if lis == nil {
		var err error
		if lis, err = net.Listen("tcp", cfg.Addr()); err != nil {
			return nil, fmt.Errorf("failed to listen on %s: %w", cfg.Addr(), err)
		}
	}

	maxRecv := cfg.MaxRecvMsgSize
	if maxRecv <= 0 {
		maxRecv = defaultMaxRecvMsgSize
	}
	graceful := cfg.GracefulTimeout
	if graceful <= 0 {
		graceful = defaultGracefulTimeout
	}

	gs := grpc.NewServer(
		grpc.MaxRecvMsgSize(maxRecv),
		grpc.KeepaliveParams(sopts.keepaliveParams),
		grpc.KeepaliveEnforcementPolicy(defaultKeepalivePolicy),
		grpc.UnaryInterceptor(chainUnaryInterceptors(
			recoveryUnaryInterceptor(sopts.logger),
			loggingUnaryInterceptor(sopts.logger),
			metricsUnaryInterceptor(sopts.metrics),
		)),
		grpc.StreamInterceptor(chainStreamInterceptors(
			recoveryStreamInterceptor(sopts.logger),
			loggingStreamInterceptor(sopts.logger),
			metricsStreamInterceptor(sopts.metrics),
		)),
	)

	hs := health.NewServer()
	healthpb.RegisterHealthServer(gs, hs)
	// Not serving until the first probe passes.
	initial := healthpb.HealthCheckResponse_SERVING
	if sopts.registry != nil && sopts.registry.Len() > 0 {
		initial = healthpb.HealthCheckResponse_NOT_SERVING
	}
	hs.SetServingStatus("", initial)
	hs.SetServingStatus(ServiceName, initial)

	if cfg.Reflection {
		reflection.Register(gs)
		sopts.logger.Info("grpc reflection service registered")
	}

	return &Server{
		grpcServer:      gs,
		listener:        lis,
		healthServer:    hs,
		opts:            sopts,
		gracefulTimeout: graceful,
	}, nil
}

// Start blocks serving until Stop.
func (s *Server) Start() error {
	s.mu.Lock()
	if s.started {
		s.mu.Unlock()
		return fmt.Errorf("server already started")
	}
	s.started = true
	ctx, cancel := context.WithCancel(context.Background())
	s.cancel = cancel
	s.done = make(chan struct{})
	s.mu.Unlock()

	go s.probeLoop(ctx)

	s.opts.logger.Info("grpc server starting", logging.String("address", s.listener.Addr().String()))
	return s.grpcServer.Serve(s.listener)
}

// probeLoop maps the registry's overall status onto the health service.
func (s *Server) probeLoop(ctx context.Context) {
	defer close(s.done)
	if s.opts.registry == nil {
		return
	}
	ticker := time.NewTicker(s.opts.probeInterval)
	defer ticker.Stop()
	for {
		s.Probe(ctx)
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

// Probe runs the dependency checks once and updates serving status.
func (s *Server) Probe(ctx context.Context) healthpb.HealthCheckResponse_ServingStatus {
	if s.opts.registry == nil {
		return healthpb.HealthCheckResponse_SERVING
	}
	pctx, cancel := context.WithTimeout(ctx, probeTimeout)
	defer cancel()

	st := healthpb.HealthCheckResponse_SERVING
	rep := s.opts.registry.Check(pctx)
	if !rep.Healthy() {
		st = healthpb.HealthCheckResponse_NOT_SERVING
	}
	for _, c := range rep.Components {
		cs := healthpb.HealthCheckResponse_SERVING
		if c.Status != common.HealthUp {
			cs = healthpb.HealthCheckResponse_NOT_SERVING
		}
		s.healthServer.SetServingStatus(c.Name, cs)
	}
	s.healthServer.SetServingStatus("", st)
	s.healthServer.SetServingStatus(ServiceName, st)
	return st
}

func (s *Server) Stop(ctx context.Context) error {
	s.mu.Lock()
	if !s.started {
		s.mu.Unlock()
		return nil
	}
	s.mu.Unlock()

	s.opts.logger.Info("grpc server stopping")
	s.cancel()
	<-s.done
	// Drain load balancers before closing connections.
	s.healthServer.Shutdown()

	gracefulCtx, cancel := context.WithTimeout(ctx, s.gracefulTimeout)
	defer cancel()

	stopped := make(chan struct{})
	go func() {
		s.grpcServer.GracefulStop()
		close(stopped)
	}()

	select {
	case <-stopped:
		s.opts.logger.Info("grpc server stopped gracefully")
	case <-gracefulCtx.Done():
		s.opts.logger.Warn("grpc graceful stop timed out, forcing stop")
		s.grpcServer.Stop()
	}
	return nil
}

func (s *Server) Addr() string {
	if s.listener == nil {
		return ""
	}
	return s.listener.Addr().String()
}

func recoveryUnaryInterceptor(logger logging.Logger) grpc.UnaryServerInterceptor {
	return func(ctx context.Context, req interface{}, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (resp interface{}, err error) {
		defer func() {
			if r := recover(); r != nil {
				logger.Error("grpc panic recovered",
					logging.String("method", info.FullMethod),
					logging.String("panic", fmt.Sprintf("%v", r)),
					logging.String("stack", string(debug.Stack())),
				)
				err = status.Errorf(codes.Internal, "internal server error")
			}
		}()
		return handler(ctx, req)
	}
}

func recoveryStreamInterceptor(logger logging.Logger) grpc.StreamServerInterceptor {
	return func(srv interface{}, ss grpc.ServerStream, info *grpc.StreamServerInfo, handler grpc.StreamHandler) (err error) {
		defer func() {
			if r := recover(); r != nil {
				logger.Error("grpc stream panic recovered",
					logging.String("method", info.FullMethod),
					logging.String("panic", fmt.Sprintf("%v", r)),
					logging.String("stack", string(debug.Stack())),
				)
				err = status.Errorf(codes.Internal, "internal server error")
			}
		}()
		return handler(srv, ss)
	}
}

func isHealthCheck(method string) bool {
	return strings.HasPrefix(method, "/grpc.health.v1.Health/")
}

func loggingUnaryInterceptor(logger logging.Logger) grpc.UnaryServerInterceptor {
	return func(ctx context.Context, req interface{}, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (interface{}, error) {
		start := time.Now()
		resp, err := handler(ctx, req)
		fields := []logging.Field{
			logging.String("method", info.FullMethod),
			logging.Duration("duration", time.Since(start)),
			logging.String("code", status.Code(err).String()),
		}
		// Probes poll constantly; keep them at debug.
		if isHealthCheck(info.FullMethod) {
			logger.Debug("grpc request", fields...)
		} else {
			logger.Info("grpc request", fields...)
		}
		return resp, err
	}
}

func loggingStreamInterceptor(logger logging.Logger) grpc.StreamServerInterceptor {
	return func(srv interface{}, ss grpc.ServerStream, info *grpc.StreamServerInfo, handler grpc.StreamHandler) error {
		start := time.Now()
		err := handler(srv, ss)
		logger.Debug("grpc stream",
			logging.String("method", info.FullMethod),
			logging.Duration("duration", time.Since(start)),
			logging.String("code", status.Code(err).String()),
		)
		return err
	}
}

func metricsUnaryInterceptor(m *prometheus.AppMetrics) grpc.UnaryServerInterceptor {
	return func(ctx context.Context, req interface{}, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (interface{}, error) {
		start := time.Now()
		resp, err := handler(ctx, req)
		prometheus.RecordGRPCRequest(m, info.FullMethod, status.Code(err).String(), time.Since(start))
		return resp, err
	}
}

func metricsStreamInterceptor(m *prometheus.AppMetrics) grpc.StreamServerInterceptor {
	return func(srv interface{}, ss grpc.ServerStream, info *grpc.StreamServerInfo, handler grpc.StreamHandler) error {
		start := time.Now()
		err := handler(srv, ss)
		prometheus.RecordGRPCRequest(m, info.FullMethod, status.Code(err).String(), time.Since(start))
		return err
	}
}

func chainUnaryInterceptors(interceptors ...grpc.UnaryServerInterceptor) grpc.UnaryServerInterceptor {
	return func(ctx context.Context, req interface{}, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (interface{}, error) {
		chain := handler
		for i := len(interceptors) - 1; i >= 0; i-- {
			current, next := interceptors[i], chain
			chain = func(c context.Context, r interface{}) (interface{}, error) {
				return current(c, r, info, next)
			}
		}
		return chain(ctx, req)
	}
}

func chainStreamInterceptors(interceptors ...grpc.StreamServerInterceptor) grpc.StreamServerInterceptor {
	return func(srv interface{}, ss grpc.ServerStream, info *grpc.StreamServerInfo, handler grpc.StreamHandler) error {
		chain := handler
		for i := len(interceptors) - 1; i >= 0; i-- {
			current, next := interceptors[i], chain
			chain = func(s interface{}, st grpc.ServerStream) error {
				return current(s, st, info, next)
			}
		}
		return chain(srv, ss)
	}
}
