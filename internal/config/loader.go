package config

import (
	"fmt"
	"strings"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/viper"
)

// envPrefix is the environment variable prefix used by all settings.
const envPrefix = "LUMIGRID"

// newViper builds a Viper instance with YAML file type, the LUMIGRID_ env
// prefix and a "." → "_" key replacer, so "database.host" resolves to
// LUMIGRID_DATABASE_HOST. Keys are registered up front so AutomaticEnv can
// populate fields that never appear in a file.
func newViper() *viper.Viper {
	v := viper.New()
	v.SetConfigType("yaml")
	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	seedDefaults(v)
	return v
}

// seedDefaults registers every key viper must know about for env-only
// loading, plus the boolean switches ApplyDefaults cannot infer.
func seedDefaults(v *viper.Viper) {
	d := Default()
	v.SetDefault("server.host", d.Server.Host)
	v.SetDefault("server.port", d.Server.Port)
	v.SetDefault("server.mode", d.Server.Mode)
	v.SetDefault("server.rate_limit.enabled", true)
	v.SetDefault("grpc.enabled", false)
	v.SetDefault("grpc.port", d.GRPC.Port)
	v.SetDefault("engine.adaptive_subdivision", true)
	v.SetDefault("engine.default_resolution", d.Engine.DefaultResolution)
	v.SetDefault("engine.max_resolution", d.Engine.MaxResolution)
	v.SetDefault("engine.max_points", d.Engine.MaxPoints)
	v.SetDefault("database.enabled", false)
	v.SetDefault("database.host", d.Database.Host)
	v.SetDefault("database.port", d.Database.Port)
	v.SetDefault("database.user", "")
	v.SetDefault("database.password", "")
	v.SetDefault("database.db_name", d.Database.DBName)
	v.SetDefault("redis.enabled", false)
	v.SetDefault("redis.addr", d.Redis.Addr)
	v.SetDefault("redis.password", "")
	v.SetDefault("kafka.enabled", false)
	v.SetDefault("kafka.brokers", d.Kafka.Brokers)
	v.SetDefault("kafka.group_id", d.Kafka.GroupID)
	v.SetDefault("kafka.create_topics", false)
	v.SetDefault("minio.enabled", false)
	v.SetDefault("minio.endpoint", d.MinIO.Endpoint)
	v.SetDefault("minio.access_key", "")
	v.SetDefault("minio.secret_key", "")
	v.SetDefault("minio.bucket", d.MinIO.Bucket)
	v.SetDefault("opensearch.enabled", false)
	v.SetDefault("opensearch.addresses", d.OpenSearch.Addresses)
	v.SetDefault("metrics.enabled", true)
	v.SetDefault("worker.concurrency", d.Worker.Concurrency)
	v.SetDefault("log.level", string(d.Log.Level))
	v.SetDefault("log.format", d.Log.Format)
}

// Load reads the YAML file at configPath, merges LUMIGRID_* environment
// overrides, applies defaults and validates the result.
func Load(configPath string) (*Config, error) {
	v := newViper()
	v.SetConfigFile(configPath)

	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("config: failed to read config file %q: %w", configPath, err)
	}

	return unmarshalAndFinalize(v)
}

// LoadFromEnv builds a Config from LUMIGRID_* environment variables alone.
//
//	LUMIGRID_<SECTION>_<FIELD>   e.g.  LUMIGRID_DATABASE_HOST, LUMIGRID_REDIS_ADDR
func LoadFromEnv() (*Config, error) {
	return unmarshalAndFinalize(newViper())
}

// LoadOrEnv loads configPath when set, otherwise falls back to LoadFromEnv.
func LoadOrEnv(configPath string) (*Config, error) {
	if configPath == "" {
		return LoadFromEnv()
	}
	return Load(configPath)
}

func unmarshalAndFinalize(v *viper.Viper) (*Config, error) {
	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("config: failed to unmarshal configuration: %w", err)
	}

	ApplyDefaults(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config: validation failed: %w", err)
	}

	return cfg, nil
}

// Watch monitors configPath and invokes onChange with the re-parsed Config
// whenever the file is written or replaced. Invalid revisions are reported
// through onError and otherwise ignored. Callers apply only the safe subset
// of changes (log level, rate limits) at runtime.
func Watch(configPath string, onChange func(*Config), onError func(error)) error {
	v := newViper()
	v.SetConfigFile(configPath)
	if err := v.ReadInConfig(); err != nil {
		return fmt.Errorf("config: failed to read config file %q: %w", configPath, err)
	}

	v.OnConfigChange(func(e fsnotify.Event) {
		if !e.Has(fsnotify.Write) && !e.Has(fsnotify.Create) {
			return
		}
		cfg, err := unmarshalAndFinalize(v)
		if err != nil {
			if onError != nil {
				onError(err)
			}
			return
		}
		onChange(cfg)
	})
	v.WatchConfig()
	return nil
}
