// Package config defines the configuration structures for LumiGrid. No I/O
// or parsing logic lives here, only plain data types and validation.
package config

import (
	"fmt"
	"net/url"
	"time"

	"github.com/turtacn/LumiGrid/internal/infrastructure/monitoring/logging"
)

// ─────────────────────────────────────────────────────────────────────────────
// Sub-configuration structs
// ─────────────────────────────────────────────────────────────────────────────

// ServerConfig holds HTTP server tunables.
type ServerConfig struct {
	Host            string          `mapstructure:"host"`
	Port            int             `mapstructure:"port"`
	Mode            string          `mapstructure:"mode"` // "debug" | "release" | "test"
	ReadTimeout     time.Duration   `mapstructure:"read_timeout"`
	WriteTimeout    time.Duration   `mapstructure:"write_timeout"`
	MaxBodySize     int64           `mapstructure:"max_body_size"`
	ShutdownTimeout time.Duration   `mapstructure:"shutdown_timeout"`
	RateLimit       RateLimitConfig `mapstructure:"rate_limit"`

	// CORSAllowedOrigins enables CORS when non-empty. "*" allows any origin.
	CORSAllowedOrigins []string `mapstructure:"cors_allowed_origins"`
}

// Addr is host:port for net.Listen.
func (s ServerConfig) Addr() string { return fmt.Sprintf("%s:%d", s.Host, s.Port) }

// RateLimitConfig configures the per-client token bucket.
type RateLimitConfig struct {
	Enabled           bool    `mapstructure:"enabled"`
	RequestsPerSecond float64 `mapstructure:"requests_per_second"`
	Burst             int     `mapstructure:"burst"`
}

// GRPCConfig holds the gRPC health endpoint settings.
type GRPCConfig struct {
	Enabled         bool          `mapstructure:"enabled"`
	Host            string        `mapstructure:"host"`
	Port            int           `mapstructure:"port"`
	MaxRecvMsgSize  int           `mapstructure:"max_recv_msg_size"`
	Reflection      bool          `mapstructure:"reflection"`
	GracefulTimeout time.Duration `mapstructure:"graceful_timeout"`
}

// Addr is host:port for net.Listen.
func (g GRPCConfig) Addr() string { return fmt.Sprintf("%s:%d", g.Host, g.Port) }

// EngineConfig holds calculation defaults and ceilings.
type EngineConfig struct {
	DefaultResolution       int           `mapstructure:"default_resolution"`
	DefaultPhotoperiodHours float64       `mapstructure:"default_photoperiod_hours"`
	MaxResolution           int           `mapstructure:"max_resolution"`
	MaxPoints               int           `mapstructure:"max_points"`
	MaxFixtures             int           `mapstructure:"max_fixtures"`
	AdaptiveSubdivision     bool          `mapstructure:"adaptive_subdivision"`
	MaxSubdivisionLevel     int           `mapstructure:"max_subdivision_level"`
	UniformityThreshold     float64       `mapstructure:"uniformity_threshold"`
	ContourStep             float64       `mapstructure:"contour_step"`
	CoverageThreshold       float64       `mapstructure:"coverage_threshold"`
	Parallelism             int           `mapstructure:"parallelism"`
	Timeout                 time.Duration `mapstructure:"timeout"`
}

// DatabaseConfig holds PostgreSQL connection parameters.
type DatabaseConfig struct {
	Enabled         bool          `mapstructure:"enabled"`
	Host            string        `mapstructure:"host"`
	Port            int           `mapstructure:"port"`
	User            string        `mapstructure:"user"`
	Password        string        `mapstructure:"password"`
	DBName          string        `mapstructure:"db_name"`
	SSLMode         string        `mapstructure:"ssl_mode"`
	MaxConns        int           `mapstructure:"max_conns"`
	MinConns        int           `mapstructure:"min_conns"`
	MaxIdleConns    int           `mapstructure:"max_idle_conns"`
	ConnMaxLifetime time.Duration `mapstructure:"conn_max_lifetime"`
	ConnMaxIdleTime time.Duration `mapstructure:"conn_max_idle_time"`
	MigrationPath   string        `mapstructure:"migration_path"`
}

// URL renders the connection as a postgres:// URL, accepted by lib/pq,
// pgx and golang-migrate alike.
func (d DatabaseConfig) URL() string {
	u := url.URL{
		Scheme:   "postgres",
		User:     url.UserPassword(d.User, d.Password),
		Host:     fmt.Sprintf("%s:%d", d.Host, d.Port),
		Path:     "/" + d.DBName,
		RawQuery: url.Values{"sslmode": []string{d.SSLMode}}.Encode(),
	}
	return u.String()
}

// RedisConfig holds Redis connection parameters.
type RedisConfig struct {
	Enabled      bool          `mapstructure:"enabled"`
	Addr         string        `mapstructure:"addr"`
	Password     string        `mapstructure:"password"`
	DB           int           `mapstructure:"db"`
	PoolSize     int           `mapstructure:"pool_size"`
	MinIdleConns int           `mapstructure:"min_idle_conns"`
	DialTimeout  time.Duration `mapstructure:"dial_timeout"`
	ReadTimeout  time.Duration `mapstructure:"read_timeout"`
	WriteTimeout time.Duration `mapstructure:"write_timeout"`
	KeyPrefix    string        `mapstructure:"key_prefix"`
}

// CacheConfig controls result caching on top of Redis.
type CacheConfig struct {
	ResultTTL time.Duration `mapstructure:"result_ttl"`
	ModelTTL  time.Duration `mapstructure:"model_ttl"`
	LockTTL   time.Duration `mapstructure:"lock_ttl"`
}

// KafkaConfig holds Apache Kafka producer/consumer parameters.
type KafkaConfig struct {
	Enabled         bool          `mapstructure:"enabled"`
	Brokers         []string      `mapstructure:"brokers"`
	GroupID         string        `mapstructure:"group_id"`
	AutoOffsetReset string        `mapstructure:"auto_offset_reset"` // "earliest" | "latest"
	RequiredAcks    string        `mapstructure:"required_acks"`     // "none" | "one" | "all"
	Compression     string        `mapstructure:"compression"`
	BatchSize       int           `mapstructure:"batch_size"`
	BatchTimeout    time.Duration `mapstructure:"batch_timeout"`
	MaxRetries      int           `mapstructure:"max_retries"`

	// CreateTopics provisions the calculation topics at startup.
	CreateTopics      bool `mapstructure:"create_topics"`
	ReplicationFactor int  `mapstructure:"replication_factor"`
}

// MinIOConfig holds MinIO / S3-compatible object-storage parameters.
type MinIOConfig struct {
	Enabled       bool          `mapstructure:"enabled"`
	Endpoint      string        `mapstructure:"endpoint"`
	AccessKey     string        `mapstructure:"access_key"`
	SecretKey     string        `mapstructure:"secret_key"`
	Bucket        string        `mapstructure:"bucket"`
	Region        string        `mapstructure:"region"`
	UseSSL        bool          `mapstructure:"use_ssl"`
	PresignExpiry time.Duration `mapstructure:"presign_expiry"`
	// RetentionDays expires report objects; 0 keeps them forever.
	RetentionDays int `mapstructure:"retention_days"`
}

// OpenSearchConfig holds OpenSearch cluster connection parameters.
type OpenSearchConfig struct {
	Enabled            bool     `mapstructure:"enabled"`
	Addresses          []string `mapstructure:"addresses"`
	User               string   `mapstructure:"user"`
	Password           string   `mapstructure:"password"`
	InsecureSkipVerify bool     `mapstructure:"insecure_skip_verify"`
	IndexPrefix        string   `mapstructure:"index_prefix"`
}

// MetricsConfig configures the Prometheus registry.
type MetricsConfig struct {
	Enabled   bool   `mapstructure:"enabled"`
	Namespace string `mapstructure:"namespace"`
	Path      string `mapstructure:"path"`
}

// WorkerConfig holds background-worker execution parameters.
type WorkerConfig struct {
	Concurrency  int           `mapstructure:"concurrency"`
	QueueDepth   int           `mapstructure:"queue_depth"`
	MaxRetries   int           `mapstructure:"max_retries"`
	RetryBackoff time.Duration `mapstructure:"retry_backoff"`
	HealthPort   int           `mapstructure:"health_port"`
}

// ─────────────────────────────────────────────────────────────────────────────
// Root Config
// ─────────────────────────────────────────────────────────────────────────────

// Config is the root configuration. Backing services are optional: each is
// wired only when its Enabled flag is set.
type Config struct {
	Server     ServerConfig      `mapstructure:"server"`
	GRPC       GRPCConfig        `mapstructure:"grpc"`
	Engine     EngineConfig      `mapstructure:"engine"`
	Database   DatabaseConfig    `mapstructure:"database"`
	Redis      RedisConfig       `mapstructure:"redis"`
	Cache      CacheConfig       `mapstructure:"cache"`
	Kafka      KafkaConfig       `mapstructure:"kafka"`
	MinIO      MinIOConfig       `mapstructure:"minio"`
	OpenSearch OpenSearchConfig  `mapstructure:"opensearch"`
	Metrics    MetricsConfig     `mapstructure:"metrics"`
	Worker     WorkerConfig      `mapstructure:"worker"`
	Log        logging.LogConfig `mapstructure:"log"`
}

// ─────────────────────────────────────────────────────────────────────────────
// Validation
// ─────────────────────────────────────────────────────────────────────────────

// Validate performs semantic validation of the fully-populated Config and
// returns the first problem found.
func (c *Config) Validate() error {
	if err := validPort("server.port", c.Server.Port); err != nil {
		return err
	}
	switch c.Server.Mode {
	case "debug", "release", "test":
	default:
		return fmt.Errorf("config: server.mode %q is invalid; expected debug|release|test", c.Server.Mode)
	}
	if c.Server.RateLimit.Enabled && (c.Server.RateLimit.RequestsPerSecond <= 0 || c.Server.RateLimit.Burst < 1) {
		return fmt.Errorf("config: server.rate_limit needs requests_per_second > 0 and burst >= 1")
	}

	if c.GRPC.Enabled {
		if err := validPort("grpc.port", c.GRPC.Port); err != nil {
			return err
		}
	}

	if c.Engine.DefaultResolution < 1 || c.Engine.DefaultResolution > c.Engine.MaxResolution {
		return fmt.Errorf("config: engine.default_resolution %d must be in [1, %d]", c.Engine.DefaultResolution, c.Engine.MaxResolution)
	}
	if c.Engine.DefaultPhotoperiodHours < 0 || c.Engine.DefaultPhotoperiodHours > 24 {
		return fmt.Errorf("config: engine.default_photoperiod_hours %v must be in [0, 24]", c.Engine.DefaultPhotoperiodHours)
	}
	if c.Engine.MaxSubdivisionLevel < 0 || c.Engine.MaxSubdivisionLevel > 10 {
		return fmt.Errorf("config: engine.max_subdivision_level %d must be in [0, 10]", c.Engine.MaxSubdivisionLevel)
	}
	if c.Engine.UniformityThreshold < 0 {
		return fmt.Errorf("config: engine.uniformity_threshold must be >= 0")
	}
	if c.Engine.MaxPoints < 0 {
		return fmt.Errorf("config: engine.max_points must be >= 0, got %d", c.Engine.MaxPoints)
	}

	if c.Database.Enabled {
		if c.Database.Host == "" || c.Database.User == "" || c.Database.DBName == "" {
			return fmt.Errorf("config: database.host, database.user and database.db_name are required")
		}
		if err := validPort("database.port", c.Database.Port); err != nil {
			return err
		}
		if c.Database.MaxConns < 1 {
			return fmt.Errorf("config: database.max_conns must be >= 1, got %d", c.Database.MaxConns)
		}
	}

	if c.Redis.Enabled {
		if c.Redis.Addr == "" {
			return fmt.Errorf("config: redis.addr is required")
		}
		if c.Redis.DB < 0 {
			return fmt.Errorf("config: redis.db must be >= 0, got %d", c.Redis.DB)
		}
	}

	if c.Kafka.Enabled {
		if len(c.Kafka.Brokers) == 0 {
			return fmt.Errorf("config: kafka.brokers must contain at least one broker address")
		}
		if c.Kafka.GroupID == "" {
			return fmt.Errorf("config: kafka.group_id is required")
		}
	}

	if c.MinIO.Enabled && (c.MinIO.Endpoint == "" || c.MinIO.Bucket == "") {
		return fmt.Errorf("config: minio.endpoint and minio.bucket are required")
	}

	if c.OpenSearch.Enabled && len(c.OpenSearch.Addresses) == 0 {
		return fmt.Errorf("config: opensearch.addresses must not be empty")
	}

	if c.Worker.Concurrency < 1 {
		return fmt.Errorf("config: worker.concurrency must be >= 1, got %d", c.Worker.Concurrency)
	}

	if _, err := logging.ParseLevel(string(c.Log.Level)); err != nil {
		return fmt.Errorf("config: log.level: %w", err)
	}
	switch c.Log.Format {
	case "json", "console":
	default:
		return fmt.Errorf("config: log.format %q is invalid; expected json|console", c.Log.Format)
	}

	return nil
}

func validPort(name string, port int) error {
	if port < 1 || port > 65535 {
		return fmt.Errorf("config: %s %d is out of range [1, 65535]", name, port)
	}
	return nil
}
