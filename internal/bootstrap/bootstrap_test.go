package bootstrap

import (
	"context"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/turtacn/LumiGrid/internal/application/lighting"
	"github.com/turtacn/LumiGrid/internal/config"
	"github.com/turtacn/LumiGrid/internal/testutil"
	"github.com/turtacn/LumiGrid/pkg/errors"
)

func calcRequest() *lighting.CalculationRequest {
	ppf := 800.0
	return &lighting.CalculationRequest{
		Room:       lighting.RoomInput{Width: 2, Length: 2, Height: 3},
		Resolution: 4,
		Fixtures:   []lighting.FixtureInput{{ID: "f1", X: 1, Y: 1, Z: 2.5, PPF: &ppf}},
	}
}

func TestOpen_AllBackendsDisabled(t *testing.T) {
	t.Parallel()

	log := testutil.NewMockLogger()
	infra, err := Open(context.Background(), config.Default(), nil, log)
	require.NoError(t, err)
	defer infra.Close()

	assert.Nil(t, infra.Postgres)
	assert.Nil(t, infra.Redis)
	assert.Nil(t, infra.Producer)
	assert.Equal(t, 0, infra.Health.Len())
	assert.True(t, log.HasMessage("info", "backend disabled"))

	svc := infra.Service()
	res, err := svc.Calculate(context.Background(), calcRequest())
	require.NoError(t, err)
	assert.False(t, res.Cached)

	_, err = svc.ListRuns(context.Background(), 10, 0)
	assert.Equal(t, errors.ErrCodeFeatureDisabled, errors.GetCode(err))
}

func TestOpen_RedisBackedCache(t *testing.T) {
	t.Parallel()

	mr := miniredis.RunT(t)
	cfg := config.Default()
	cfg.Redis.Enabled = true
	cfg.Redis.Addr = mr.Addr()

	_, metrics := testutil.NewTestMetrics(t)
	infra, err := Open(context.Background(), cfg, metrics, nil)
	require.NoError(t, err)
	defer infra.Close()

	require.NotNil(t, infra.Redis)
	assert.Equal(t, 1, infra.Health.Len())
	assert.True(t, infra.Health.Check(context.Background()).Healthy())

	svc := infra.Service()
	first, err := svc.Calculate(context.Background(), calcRequest())
	require.NoError(t, err)
	second, err := svc.Calculate(context.Background(), calcRequest())
	require.NoError(t, err)

	assert.False(t, first.Cached)
	assert.True(t, second.Cached)
	assert.Equal(t, first.RequestHash, second.RequestHash)
}

func TestOpen_FailureClosesOpenedBackends(t *testing.T) {
	t.Parallel()

	mr := miniredis.RunT(t)
	cfg := config.Default()
	cfg.Redis.Enabled = true
	cfg.Redis.Addr = mr.Addr()
	cfg.OpenSearch.Enabled = true
	cfg.OpenSearch.Addresses = []string{"http://127.0.0.1:1"}

	_, err := Open(context.Background(), cfg, nil, nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "opensearch")
}

func TestConsumerConfig(t *testing.T) {
	t.Parallel()

	cfg := config.Default()
	cfg.Kafka.Brokers = []string{"k1:9092"}
	cfg.Worker.MaxRetries = 5
	cfg.Worker.QueueDepth = 32
	infra := &Infrastructure{Config: cfg}

	cc := infra.ConsumerConfig()
	assert.Equal(t, []string{"lumigrid.calculation.requested"}, cc.Topics)
	assert.Equal(t, "lumigrid.calculation.requested.dlq", cc.Retry.DeadLetterTopic)
	assert.Equal(t, 5, cc.Retry.MaxRetries)
	assert.Equal(t, 32, cc.QueueCapacity)
	assert.NotNil(t, cc.Observer)
}

func TestNewMetrics(t *testing.T) {
	t.Parallel()

	collector, metrics, err := NewMetrics(config.MetricsConfig{Namespace: "lumigrid_bootstrap_test"}, nil)
	require.NoError(t, err)
	assert.NotNil(t, collector.Handler())
	assert.NotNil(t, metrics)
}
