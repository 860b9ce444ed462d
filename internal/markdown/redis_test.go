package markdown

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/lauracd1s/Proyecto-licore/internal/config"
	"github.com/lauracd1s/Proyecto-licore/internal/pricing"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"
)

func setupTestRedis(t *testing.T) string {
	if testing.Short() {
		t.Skip("skipping redis integration test in short mode")
	}
	ctx := context.Background()

	container, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: testcontainers.ContainerRequest{
			Image:        "redis:7-alpine",
			ExposedPorts: []string{"6379/tcp"},
			WaitingFor:   wait.ForLog("Ready to accept connections").WithStartupTimeout(60 * time.Second),
		},
		Started: true,
	})
	if err != nil {
		t.Fatalf("Failed to start redis container: %v", err)
	}
	t.Cleanup(func() { _ = container.Terminate(ctx) })

	host, err := container.Host(ctx)
	if err != nil {
		t.Fatalf("Failed to get container host: %v", err)
	}
	port, err := container.MappedPort(ctx, "6379")
	if err != nil {
		t.Fatalf("Failed to get container port: %v", err)
	}

	return fmt.Sprintf("redis://%s:%s/0", host, port.Port())
}

func TestRedisStoreRoundTrip(t *testing.T) {
	url := setupTestRedis(t)
	ctx := context.Background()

	client, err := NewRedisClient(ctx, config.RedisConfig{URL: url, DialTimeout: 5 * time.Second})
	require.NoError(t, err)
	defer client.Close()

	store := NewRedisStore(client, time.Minute)

	_, err = store.Load(ctx)
	require.ErrorIs(t, err, ErrNoSnapshot)

	batchID := int64(11)
	exp := time.Date(2025, 6, 19, 0, 0, 0, 0, time.UTC)
	snap := Snapshot{
		GeneratedAt: sweepNow,
		Markdowns: map[int64]pricing.Markdown{
			1: {ProductID: 1, BatchID: &batchID, ExpiresAt: exp, DaysLeft: 4, Percent: decimal.NewFromInt(30)},
		},
	}
	require.NoError(t, store.Save(ctx, snap))

	got, err := store.Load(ctx)
	require.NoError(t, err)
	require.True(t, got.GeneratedAt.Equal(sweepNow))
	require.Len(t, got.Markdowns, 1)
	require.True(t, got.Markdowns[1].Percent.Equal(decimal.NewFromInt(30)))
	require.Equal(t, int64(11), *got.Markdowns[1].BatchID)

	ttl, err := client.TTL(ctx, DefaultRedisKey).Result()
	require.NoError(t, err)
	require.Greater(t, ttl, time.Duration(0))

	other := store.WithKey("licore:markdowns:other")
	_, err = other.Load(ctx)
	require.ErrorIs(t, err, ErrNoSnapshot)
}

func TestSweeperWithRedisStore(t *testing.T) {
	url := setupTestRedis(t)
	ctx := context.Background()

	client, err := NewRedisClient(ctx, config.RedisConfig{URL: url})
	require.NoError(t, err)
	defer client.Close()

	s := newTestSweeper(t, newCatalog(), NewRedisStore(client, time.Hour), func() time.Time { return sweepNow })

	got, err := s.Markdowns(ctx, sweepNow)
	require.NoError(t, err)
	require.Len(t, got, 2)
	require.True(t, got[2].Percent.Equal(decimal.NewFromInt(10)))
}

func TestNewRedisClientRejectsBadURL(t *testing.T) {
	_, err := NewRedisClient(context.Background(), config.RedisConfig{URL: "not a url"})
	require.Error(t, err)
}
