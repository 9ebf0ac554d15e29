package events

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/redis"
	"github.com/testcontainers/testcontainers-go/wait"
)

func TestRedisPublisher(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping container test in short mode")
	}
	ctx := context.Background()

	redisContainer, err := redis.Run(ctx,
		"redis:7.4-alpine",
		testcontainers.WithWaitStrategy(
			wait.ForLog("Ready to accept connections").
				WithStartupTimeout(30*time.Second),
		),
	)
	require.NoError(t, err)
	t.Cleanup(func() {
		if err := redisContainer.Terminate(ctx); err != nil {
			t.Logf("Failed to terminate redis container: %v", err)
		}
	})

	host, err := redisContainer.Host(ctx)
	require.NoError(t, err)
	port, err := redisContainer.MappedPort(ctx, "6379")
	require.NoError(t, err)

	p, err := New(Config{
		Driver: DriverRedis,
		Redis:  RedisConfig{Addr: fmt.Sprintf("%s:%s", host, port.Port()), Prefix: "figures:"},
	})
	require.NoError(t, err)
	defer p.Close()

	rp := p.(*RedisPublisher)
	assert.Equal(t, "figures:"+DefaultChannel, rp.Channel())

	subCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	events, unsubscribe, err := rp.Subscribe(subCtx)
	require.NoError(t, err)
	defer unsubscribe()

	sent := NewBatchCompleted(sampleBatch())
	require.NoError(t, rp.Publish(ctx, sent))

	select {
	case got := <-events:
		assert.Equal(t, sent.BatchID, got.BatchID)
		assert.Equal(t, sent.Figures, got.Figures)
		assert.True(t, sent.CompletedAt.Equal(got.CompletedAt))
	case <-subCtx.Done():
		t.Fatal("event not received")
	}
}

func TestRedisPublisher_Unreachable(t *testing.T) {
	_, err := NewRedisPublisher(RedisConfig{Addr: "127.0.0.1:1"}, DefaultChannel)
	assert.Error(t, err)
}
