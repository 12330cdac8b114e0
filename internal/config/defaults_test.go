package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/turtacn/LumiGrid/internal/infrastructure/monitoring/logging"
)

func TestApplyDefaults_EmptyConfig(t *testing.T) {
	cfg := &Config{}
	ApplyDefaults(cfg)

	assert.Equal(t, DefaultServerPort, cfg.Server.Port)
	assert.Equal(t, DefaultServerMode, cfg.Server.Mode)
	assert.Equal(t, DefaultResolution, cfg.Engine.DefaultResolution)
	assert.Equal(t, DefaultPhotoperiodHours, cfg.Engine.DefaultPhotoperiodHours)
	assert.Equal(t, 4, cfg.Engine.MaxSubdivisionLevel)
	assert.Equal(t, 0.1, cfg.Engine.UniformityThreshold)
	assert.Equal(t, DefaultMaxPoints, cfg.Engine.MaxPoints)
	assert.Equal(t, []string{DefaultKafkaBroker}, cfg.Kafka.Brokers)
	assert.Equal(t, 1, cfg.Kafka.ReplicationFactor)
	assert.False(t, cfg.Kafka.CreateTopics)
	assert.Equal(t, "disable", cfg.Database.SSLMode)
	assert.Equal(t, time.Hour, cfg.Cache.ResultTTL)
	assert.Equal(t, 16, cfg.Worker.QueueDepth)
	assert.Equal(t, logging.LevelInfo, cfg.Log.Level)
	assert.False(t, cfg.Engine.AdaptiveSubdivision)
}

func TestApplyDefaults_PreserveExistingValues(t *testing.T) {
	cfg := &Config{}
	cfg.Server.Port = 9999
	cfg.Engine.ContourStep = 50
	cfg.Log.Level = logging.LevelDebug
	ApplyDefaults(cfg)

	assert.Equal(t, 9999, cfg.Server.Port)
	assert.Equal(t, 50.0, cfg.Engine.ContourStep)
	assert.Equal(t, logging.LevelDebug, cfg.Log.Level)
}

func TestApplyDefaults_Nil(t *testing.T) {
	assert.NotPanics(t, func() { ApplyDefaults(nil) })
}

func TestDefault(t *testing.T) {
	cfg := Default()
	assert.True(t, cfg.Engine.AdaptiveSubdivision)
	assert.NoError(t, cfg.Validate())
}
