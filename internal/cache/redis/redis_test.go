package redis

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/vitorsaz/skull-agent/internal/domain"
)

func setupRedis(t *testing.T) *Client {
	t.Helper()
	if testing.Short() {
		t.Skip("skipping redis container test in short mode")
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
	require.NoError(t, err)
	t.Cleanup(func() { _ = container.Terminate(context.Background()) })

	host, err := container.Host(ctx)
	require.NoError(t, err)
	port, err := container.MappedPort(ctx, "6379")
	require.NoError(t, err)

	client, err := New(ctx, ClientConfig{Addr: fmt.Sprintf("%s:%s", host, port.Port())})
	require.NoError(t, err)
	t.Cleanup(func() { _ = client.Close() })
	return client
}

func TestRedis(t *testing.T) {
	client := setupRedis(t)
	ctx := context.Background()

	t.Run("price cache", func(t *testing.T) {
		pc := NewPriceCache(client, time.Minute)
		ts := time.Unix(1_700_000_000, 123)

		_, _, err := pc.GetPrice(ctx, "SOL")
		assert.ErrorIs(t, err, domain.ErrNotFound)

		require.NoError(t, pc.SetPrice(ctx, "SOL", 187.25, ts))
		price, got, err := pc.GetPrice(ctx, "SOL")
		require.NoError(t, err)
		assert.Equal(t, 187.25, price)
		assert.True(t, ts.Equal(got))

		ttl, err := client.Underlying().TTL(ctx, priceKey("SOL")).Result()
		require.NoError(t, err)
		assert.Greater(t, ttl, time.Duration(0))

		prices, err := pc.GetPrices(ctx, []string{"SOL", "missing"})
		require.NoError(t, err)
		assert.Equal(t, map[string]float64{"SOL": 187.25}, prices)
	})

	t.Run("lock", func(t *testing.T) {
		lm := NewLockManager(client)
		unlock, err := lm.Acquire(ctx, "snipe:Mint", time.Minute)
		require.NoError(t, err)

		_, err = lm.Acquire(ctx, "snipe:Mint", time.Minute)
		assert.ErrorIs(t, err, domain.ErrLockHeld)

		unlock()
		unlock()
		again, err := lm.Acquire(ctx, "snipe:Mint", time.Minute)
		require.NoError(t, err)
		again()
	})

	t.Run("rate limiter", func(t *testing.T) {
		rl := NewRateLimiter(client, 2, time.Second)
		for i := 0; i < 2; i++ {
			ok, err := rl.Allow(ctx, "birdeye", 2, time.Minute)
			require.NoError(t, err)
			assert.True(t, ok)
		}
		ok, err := rl.Allow(ctx, "birdeye", 2, time.Minute)
		require.NoError(t, err)
		assert.False(t, ok)

		waitCtx, cancel := context.WithTimeout(ctx, 3*time.Second)
		defer cancel()
		require.NoError(t, rl.Wait(waitCtx, "fresh"))
	})

	t.Run("signal bus", func(t *testing.T) {
		bus := NewSignalBus(client)
		subCtx, cancel := context.WithCancel(ctx)
		defer cancel()

		ch, err := bus.Subscribe(subCtx, domain.ChannelEvents)
		require.NoError(t, err)
		require.NoError(t, bus.Publish(ctx, domain.ChannelEvents, []byte(`{"type":"log"}`)))

		select {
		case msg := <-ch:
			assert.JSONEq(t, `{"type":"log"}`, string(msg))
		case <-time.After(5 * time.Second):
			t.Fatal("no message received")
		}

		require.NoError(t, bus.StreamAppend(ctx, domain.StreamAudit, []byte("a")))
		require.NoError(t, bus.StreamAppend(ctx, domain.StreamAudit, []byte("b")))
		msgs, err := bus.StreamRead(ctx, domain.StreamAudit, "0", 10)
		require.NoError(t, err)
		require.Len(t, msgs, 2)
		assert.Equal(t, []byte("b"), msgs[1].Payload)
	})
}
