// Package bootstrap opens the optional backends named in the configuration
// and assembles the lighting service on top of them. The API server, the
// worker and the CLI share it.
package bootstrap

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/turtacn/LumiGrid/internal/application/lighting"
	"github.com/turtacn/LumiGrid/internal/config"
	"github.com/turtacn/LumiGrid/internal/infrastructure/database/postgres"
	"github.com/turtacn/LumiGrid/internal/infrastructure/database/postgres/repositories"
	"github.com/turtacn/LumiGrid/internal/infrastructure/database/redis"
	"github.com/turtacn/LumiGrid/internal/infrastructure/messaging/kafka"
	"github.com/turtacn/LumiGrid/internal/infrastructure/monitoring/health"
	"github.com/turtacn/LumiGrid/internal/infrastructure/monitoring/logging"
	"github.com/turtacn/LumiGrid/internal/infrastructure/monitoring/prometheus"
	"github.com/turtacn/LumiGrid/internal/infrastructure/search/opensearch"
	"github.com/turtacn/LumiGrid/internal/infrastructure/storage/minio"
)

const setupTimeout = 30 * time.Second

// Infrastructure holds whichever backends are enabled. Nil fields are
// disabled.
type Infrastructure struct {
	Config  *config.Config
	Logger  logging.Logger
	Metrics *prometheus.AppMetrics
	Health  *health.Registry

	Postgres   *postgres.Connection
	Pool       *pgxpool.Pool
	Redis      *redis.Client
	Producer   *kafka.Producer
	MinIO      *minio.Client
	OpenSearch *opensearch.Client
	RunIndex   *opensearch.RunIndex

	closers []func()
}

// Open connects every enabled backend and registers its health check. On
// failure the backends opened so far are closed.
func Open(ctx context.Context, cfg *config.Config, metrics *prometheus.AppMetrics, log logging.Logger) (*Infrastructure, error) {
	if log == nil {
		log = logging.NewNopLogger()
	}
	infra := &Infrastructure{
		Config:  cfg,
		Logger:  log,
		Metrics: metrics,
		Health:  health.NewRegistry(metrics, log),
	}

	ctx, cancel := context.WithTimeout(ctx, setupTimeout)
	defer cancel()

	steps := []struct {
		name    string
		enabled bool
		open    func(context.Context) error
	}{
		{"postgres", cfg.Database.Enabled, infra.openPostgres},
		{"redis", cfg.Redis.Enabled, infra.openRedis},
		{"kafka", cfg.Kafka.Enabled, infra.openKafka},
		{"minio", cfg.MinIO.Enabled, infra.openMinIO},
		{"opensearch", cfg.OpenSearch.Enabled, infra.openOpenSearch},
	}
	for _, s := range steps {
		if !s.enabled {
			log.Info("backend disabled", logging.String("backend", s.name))
			continue
		}
		if err := s.open(ctx); err != nil {
			infra.Close()
			return nil, fmt.Errorf("%s: %w", s.name, err)
		}
	}

	log.Info("infrastructure initialized", logging.Int("health_checks", infra.Health.Len()))
	return infra, nil
}

func (i *Infrastructure) onClose(fn func()) { i.closers = append(i.closers, fn) }

func (i *Infrastructure) openPostgres(ctx context.Context) error {
	conn, err := postgres.NewConnection(i.Config.Database, i.Logger)
	if err != nil {
		return err
	}
	i.Postgres = conn
	i.onClose(func() { _ = conn.Close() })

	pool, err := postgres.NewPool(ctx, i.Config.Database, i.Logger)
	if err != nil {
		return err
	}
	i.Pool = pool
	i.onClose(pool.Close)

	i.Health.Add(health.CheckFunc("postgres", conn.HealthCheck))
	return nil
}

func (i *Infrastructure) openRedis(context.Context) error {
	client, err := redis.NewClient(i.Config.Redis, i.Logger)
	if err != nil {
		return err
	}
	i.Redis = client
	i.onClose(func() { _ = client.Close() })
	i.Health.Add(health.CheckFunc("redis", client.Ping))
	return nil
}

func (i *Infrastructure) openKafka(ctx context.Context) error {
	pcfg := kafka.ProducerConfigFrom(i.Config.Kafka)
	pcfg.Observer = i.messageObserver()
	producer, err := kafka.NewProducer(pcfg, i.Logger)
	if err != nil {
		return err
	}
	i.Producer = producer
	i.onClose(func() { _ = producer.Close() })

	brokers := i.Config.Kafka.Brokers
	if i.Config.Kafka.CreateTopics {
		if err := provisionTopics(ctx, brokers, i.Config.Kafka.ReplicationFactor, i.Logger); err != nil {
			return err
		}
	}
	i.Health.Add(health.CheckFunc("kafka", func(ctx context.Context) error {
		tm, err := kafka.NewTopicManager(brokers, i.Logger)
		if err != nil {
			return err
		}
		defer tm.Close()
		_, err = tm.ListTopics(ctx)
		return err
	}))
	return nil
}

func provisionTopics(ctx context.Context, brokers []string, replication int, log logging.Logger) error {
	tm, err := kafka.NewTopicManager(brokers, log)
	if err != nil {
		return err
	}
	defer tm.Close()
	return tm.EnsureTopics(ctx, kafka.DefaultTopics(replication))
}

func (i *Infrastructure) openMinIO(ctx context.Context) error {
	client, err := minio.NewClient(i.Config.MinIO, i.Logger)
	if err != nil {
		return err
	}
	i.MinIO = client
	i.Health.Add(health.CheckFunc("minio", client.HealthCheck))
	return nil
}

func (i *Infrastructure) openOpenSearch(ctx context.Context) error {
	client, err := opensearch.NewClient(i.Config.OpenSearch, i.Logger)
	if err != nil {
		return err
	}
	i.OpenSearch = client
	idx := opensearch.NewRunIndex(client, i.Config.OpenSearch.IndexPrefix, "")
	if err := idx.EnsureIndex(ctx); err != nil {
		return err
	}
	i.RunIndex = idx
	i.Health.Add(health.CheckFunc("opensearch", client.Ping))
	return nil
}

func (i *Infrastructure) messageObserver() kafka.Observer {
	m := i.Metrics
	return func(topic, direction string, err error) {
		prometheus.RecordMessage(m, topic, direction, err)
	}
}

// ConsumerConfig builds the worker's consumer settings for the requested
// topic, reporting through the same metrics as the producer.
func (i *Infrastructure) ConsumerConfig() kafka.ConsumerConfig {
	ccfg := kafka.ConsumerConfigFrom(i.Config.Kafka, kafka.TopicCalculationRequested, i.Config.Worker.RetryBackoff)
	if i.Config.Worker.MaxRetries > 0 {
		ccfg.Retry.MaxRetries = i.Config.Worker.MaxRetries
	}
	ccfg.QueueCapacity = i.Config.Worker.QueueDepth
	ccfg.Observer = i.messageObserver()
	return ccfg
}

// Service assembles the lighting service over the enabled backends.
func (i *Infrastructure) Service() lighting.Service {
	d := lighting.Deps{
		Engine:          i.Config.Engine,
		Cache:           i.Config.Cache,
		ReportURLExpiry: i.Config.MinIO.PresignExpiry,
		Metrics:         i.Metrics,
		Logger:          i.Logger,
	}

	dbHook := func(op string, elapsed time.Duration, err error) {
		prometheus.RecordDBQuery(i.Metrics, op, elapsed, err)
	}
	if i.Postgres != nil {
		d.Runs = repositories.NewPostgresRunRepo(i.Postgres, i.Logger, repositories.WithRunQueryHook(dbHook))
	}
	if i.Pool != nil {
		d.Catalog = repositories.NewPostgresFixtureRepo(i.Pool, i.Logger, dbHook)
	}
	if i.Redis != nil {
		d.Results = redis.NewCache(i.Redis, i.Logger,
			redis.WithNamespace("results"),
			redis.WithDefaultTTL(i.Config.Cache.ResultTTL),
		)
		d.Locks = redis.NewLockFactory(i.Redis, i.Logger)
	}
	if i.Producer != nil {
		d.Publisher = i.Producer
	}
	if i.MinIO != nil {
		d.Reports = minio.NewReportStore(i.MinIO)
	}
	if i.RunIndex != nil {
		d.Index = i.RunIndex
	}
	return lighting.NewService(d)
}

// Close releases backends in reverse order of opening.
func (i *Infrastructure) Close() {
	for k := len(i.closers) - 1; k >= 0; k-- {
		i.closers[k]()
	}
	i.closers = nil
}

// NewMetrics builds the collector and application metrics from cfg.
func NewMetrics(cfg config.MetricsConfig, log logging.Logger) (prometheus.MetricsCollector, *prometheus.AppMetrics, error) {
	collector, err := prometheus.NewMetricsCollector(prometheus.CollectorConfig{
		Namespace:            cfg.Namespace,
		EnableProcessMetrics: true,
		EnableGoMetrics:      true,
	}, log)
	if err != nil {
		return nil, nil, err
	}
	return collector, prometheus.NewAppMetrics(collector), nil
}
