package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load()
	require.NoError(t, err)

	require.Equal(t, "development", cfg.Environment)
	require.Equal(t, "8080", cfg.Server.Port)
	require.Equal(t, 25, cfg.Database.MaxOpenConns)
	require.Equal(t, 26*time.Hour, cfg.Redis.MarkdownTTL)
	require.Empty(t, cfg.Redis.URL)
	require.Equal(t, "licore:markdowns:current", cfg.Redis.MarkdownKey)
	require.Empty(t, cfg.Kafka.Brokers)
	require.Equal(t, "sales", cfg.Kafka.Topic)
	require.Equal(t, time.Hour, cfg.Pricing.SweepInterval)
}

func TestLoadFromEnvironment(t *testing.T) {
	t.Setenv("APP_ENV", "production")
	t.Setenv("DATABASE_URL", "postgres://licore@db:5432/licore")
	t.Setenv("SERVER_PORT", "9000")
	t.Setenv("REDIS_URL", "redis://cache:6379/0")
	t.Setenv("REDIS_MARKDOWN_KEY", "store-7:markdowns")
	t.Setenv("KAFKA_BROKERS", "k1:9092,k2:9092")
	t.Setenv("PRICING_POLICY_FILE", "/etc/licore/policy.yaml")
	t.Setenv("PRICING_SWEEP_INTERVAL", "15m")

	cfg, err := Load()
	require.NoError(t, err)

	require.Equal(t, "production", cfg.Environment)
	require.Equal(t, "postgres://licore@db:5432/licore", cfg.Database.URL)
	require.Equal(t, "9000", cfg.Server.Port)
	require.Equal(t, "redis://cache:6379/0", cfg.Redis.URL)
	require.Equal(t, "store-7:markdowns", cfg.Redis.MarkdownKey)
	require.Equal(t, []string{"k1:9092", "k2:9092"}, cfg.Kafka.Brokers)
	require.Equal(t, "/etc/licore/policy.yaml", cfg.Pricing.PolicyFile)
	require.Equal(t, 15*time.Minute, cfg.Pricing.SweepInterval)
}

func TestLoadRejectsNonPositiveSweepInterval(t *testing.T) {
	t.Setenv("PRICING_SWEEP_INTERVAL", "0s")

	_, err := Load()
	require.Error(t, err)
}
