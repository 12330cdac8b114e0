package config

import (
	"time"

	"github.com/turtacn/LumiGrid/internal/infrastructure/monitoring/logging"
)

// ─────────────────────────────────────────────────────────────────────────────
// Default value constants
// ─────────────────────────────────────────────────────────────────────────────

const (
	DefaultServerHost = "0.0.0.0"
	DefaultServerPort = 8080
	DefaultServerMode = "release"

	DefaultGRPCPort = 9090

	DefaultResolution       = 20
	DefaultPhotoperiodHours = 12.0
	DefaultMaxResolution    = 500
	DefaultMaxFixtures      = 1000
	DefaultMaxPoints        = 2_000_000

	DefaultDBHost     = "localhost"
	DefaultDBPort     = 5432
	DefaultDBName     = "lumigrid"
	DefaultDBMaxConns = 25

	DefaultRedisAddr      = "localhost:6379"
	DefaultRedisKeyPrefix = "lumigrid:"

	DefaultKafkaBroker  = "localhost:9092"
	DefaultKafkaGroupID = "lumigrid-workers"

	DefaultMinIOEndpoint = "localhost:9000"
	DefaultMinIOBucket   = "lumigrid-reports"

	DefaultOpenSearchAddr        = "http://localhost:9200"
	DefaultOpenSearchIndexPrefix = "lumigrid"

	DefaultMetricsNamespace = "lumigrid"
	DefaultMetricsPath      = "/metrics"

	DefaultLogFormat = "json"

	DefaultWorkerConcurrency = 4
	DefaultWorkerHealthPort  = 8081
)

// Default returns a Config with every default applied, the same as
// ApplyDefaults on an empty Config.
func Default() *Config {
	cfg := &Config{}
	cfg.Engine.AdaptiveSubdivision = true
	ApplyDefaults(cfg)
	return cfg
}

// ApplyDefaults fills every zero-value field in cfg with its default. Fields
// already set are left unchanged so that explicit configuration always wins.
// Boolean switches cannot be defaulted this way; Load seeds them through
// viper instead.
func ApplyDefaults(cfg *Config) {
	if cfg == nil {
		return
	}

	// ── Server ────────────────────────────────────────────────────────────────
	if cfg.Server.Host == "" {
		cfg.Server.Host = DefaultServerHost
	}
	if cfg.Server.Port == 0 {
		cfg.Server.Port = DefaultServerPort
	}
	if cfg.Server.Mode == "" {
		cfg.Server.Mode = DefaultServerMode
	}
	if cfg.Server.ReadTimeout == 0 {
		cfg.Server.ReadTimeout = 30 * time.Second
	}
	if cfg.Server.WriteTimeout == 0 {
		cfg.Server.WriteTimeout = 60 * time.Second
	}
	if cfg.Server.ShutdownTimeout == 0 {
		cfg.Server.ShutdownTimeout = 15 * time.Second
	}
	if cfg.Server.MaxBodySize == 0 {
		cfg.Server.MaxBodySize = 8 << 20
	}
	if cfg.Server.RateLimit.RequestsPerSecond == 0 {
		cfg.Server.RateLimit.RequestsPerSecond = 20
	}
	if cfg.Server.RateLimit.Burst == 0 {
		cfg.Server.RateLimit.Burst = 40
	}

	// ── gRPC ──────────────────────────────────────────────────────────────────
	if cfg.GRPC.Host == "" {
		cfg.GRPC.Host = DefaultServerHost
	}
	if cfg.GRPC.Port == 0 {
		cfg.GRPC.Port = DefaultGRPCPort
	}
	if cfg.GRPC.MaxRecvMsgSize == 0 {
		cfg.GRPC.MaxRecvMsgSize = 4 << 20
	}
	if cfg.GRPC.GracefulTimeout == 0 {
		cfg.GRPC.GracefulTimeout = 10 * time.Second
	}

	// ── Engine ────────────────────────────────────────────────────────────────
	if cfg.Engine.DefaultResolution == 0 {
		cfg.Engine.DefaultResolution = DefaultResolution
	}
	if cfg.Engine.DefaultPhotoperiodHours == 0 {
		cfg.Engine.DefaultPhotoperiodHours = DefaultPhotoperiodHours
	}
	if cfg.Engine.MaxResolution == 0 {
		cfg.Engine.MaxResolution = DefaultMaxResolution
	}
	if cfg.Engine.MaxPoints == 0 {
		cfg.Engine.MaxPoints = DefaultMaxPoints
	}
	if cfg.Engine.MaxFixtures == 0 {
		cfg.Engine.MaxFixtures = DefaultMaxFixtures
	}
	if cfg.Engine.MaxSubdivisionLevel == 0 {
		cfg.Engine.MaxSubdivisionLevel = 4
	}
	if cfg.Engine.UniformityThreshold == 0 {
		cfg.Engine.UniformityThreshold = 0.1
	}
	if cfg.Engine.ContourStep == 0 {
		cfg.Engine.ContourStep = 100
	}
	if cfg.Engine.CoverageThreshold == 0 {
		cfg.Engine.CoverageThreshold = 200
	}
	if cfg.Engine.Timeout == 0 {
		cfg.Engine.Timeout = 2 * time.Minute
	}

	// ── Database ──────────────────────────────────────────────────────────────
	if cfg.Database.Host == "" {
		cfg.Database.Host = DefaultDBHost
	}
	if cfg.Database.Port == 0 {
		cfg.Database.Port = DefaultDBPort
	}
	if cfg.Database.DBName == "" {
		cfg.Database.DBName = DefaultDBName
	}
	if cfg.Database.MaxConns == 0 {
		cfg.Database.MaxConns = DefaultDBMaxConns
	}
	if cfg.Database.SSLMode == "" {
		cfg.Database.SSLMode = "disable"
	}
	if cfg.Database.MigrationPath == "" {
		cfg.Database.MigrationPath = "migrations"
	}

	// ── Redis / cache ─────────────────────────────────────────────────────────
	if cfg.Redis.Addr == "" {
		cfg.Redis.Addr = DefaultRedisAddr
	}
	if cfg.Redis.KeyPrefix == "" {
		cfg.Redis.KeyPrefix = DefaultRedisKeyPrefix
	}
	if cfg.Cache.ResultTTL == 0 {
		cfg.Cache.ResultTTL = time.Hour
	}
	if cfg.Cache.ModelTTL == 0 {
		cfg.Cache.ModelTTL = 10 * time.Minute
	}
	if cfg.Cache.LockTTL == 0 {
		cfg.Cache.LockTTL = 5 * time.Minute
	}

	// ── Kafka ─────────────────────────────────────────────────────────────────
	if len(cfg.Kafka.Brokers) == 0 {
		cfg.Kafka.Brokers = []string{DefaultKafkaBroker}
	}
	if cfg.Kafka.GroupID == "" {
		cfg.Kafka.GroupID = DefaultKafkaGroupID
	}
	if cfg.Kafka.AutoOffsetReset == "" {
		cfg.Kafka.AutoOffsetReset = "earliest"
	}
	if cfg.Kafka.RequiredAcks == "" {
		cfg.Kafka.RequiredAcks = "all"
	}
	if cfg.Kafka.ReplicationFactor == 0 {
		cfg.Kafka.ReplicationFactor = 1
	}
	if cfg.Kafka.MaxRetries == 0 {
		cfg.Kafka.MaxRetries = 3
	}

	// ── MinIO ─────────────────────────────────────────────────────────────────
	if cfg.MinIO.Endpoint == "" {
		cfg.MinIO.Endpoint = DefaultMinIOEndpoint
	}
	if cfg.MinIO.Bucket == "" {
		cfg.MinIO.Bucket = DefaultMinIOBucket
	}
	if cfg.MinIO.PresignExpiry == 0 {
		cfg.MinIO.PresignExpiry = 15 * time.Minute
	}

	// ── OpenSearch ────────────────────────────────────────────────────────────
	if len(cfg.OpenSearch.Addresses) == 0 {
		cfg.OpenSearch.Addresses = []string{DefaultOpenSearchAddr}
	}
	if cfg.OpenSearch.IndexPrefix == "" {
		cfg.OpenSearch.IndexPrefix = DefaultOpenSearchIndexPrefix
	}

	// ── Metrics ───────────────────────────────────────────────────────────────
	if cfg.Metrics.Namespace == "" {
		cfg.Metrics.Namespace = DefaultMetricsNamespace
	}
	if cfg.Metrics.Path == "" {
		cfg.Metrics.Path = DefaultMetricsPath
	}

	// ── Worker ────────────────────────────────────────────────────────────────
	if cfg.Worker.Concurrency == 0 {
		cfg.Worker.Concurrency = DefaultWorkerConcurrency
	}
	if cfg.Worker.QueueDepth == 0 {
		cfg.Worker.QueueDepth = cfg.Worker.Concurrency * 4
	}
	if cfg.Worker.MaxRetries == 0 {
		cfg.Worker.MaxRetries = 3
	}
	if cfg.Worker.RetryBackoff == 0 {
		cfg.Worker.RetryBackoff = time.Second
	}
	if cfg.Worker.HealthPort == 0 {
		cfg.Worker.HealthPort = DefaultWorkerHealthPort
	}

	// ── Log ───────────────────────────────────────────────────────────────────
	if cfg.Log.Level == "" {
		cfg.Log.Level = logging.LevelInfo
	}
	if cfg.Log.Format == "" {
		cfg.Log.Format = DefaultLogFormat
	}
}
