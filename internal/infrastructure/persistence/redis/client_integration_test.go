//go:build integration

package redis

import (
	"context"
	"os/exec"
	"strconv"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"
)

func startRedis(t *testing.T) *Client {
	t.Helper()

	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()
	if exec.CommandContext(ctx, "docker", "info").Run() != nil {
		t.Skip("Skipping test: Docker not available")
	}

	container, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: testcontainers.ContainerRequest{
			Image:        "redis:7-alpine",
			ExposedPorts: []string{"6379/tcp"},
			WaitingFor:   wait.ForLog("Ready to accept connections"),
		},
		Started: true,
	})
	require.NoError(t, err)
	t.Cleanup(func() { _ = container.Terminate(context.Background()) })

	host, err := container.Host(ctx)
	require.NoError(t, err)
	port, err := container.MappedPort(ctx, "6379/tcp")
	require.NoError(t, err)

	cfg := DefaultConfig()
	cfg.Host = host
	cfg.Port, err = strconv.Atoi(port.Port())
	require.NoError(t, err)

	client, err := NewClient(ctx, cfg)
	require.NoError(t, err)
	t.Cleanup(func() { _ = client.Close() })
	return client
}

func TestClient_IncrementWindow(t *testing.T) {
	client := startRedis(t)
	ctx := context.Background()

	count, ttl, err := client.Increment(ctx, "ratelimit:test:a", 2*time.Second)
	require.NoError(t, err)
	assert.EqualValues(t, 1, count)
	assert.LessOrEqual(t, ttl, 2*time.Second)

	count, _, err = client.Increment(ctx, "ratelimit:test:a", 2*time.Second)
	require.NoError(t, err)
	assert.EqualValues(t, 2, count)

	time.Sleep(2500 * time.Millisecond)

	count, _, err = client.Increment(ctx, "ratelimit:test:a", 2*time.Second)
	require.NoError(t, err)
	assert.EqualValues(t, 1, count)

	limiter := NewWriteLimiter(client, 1, time.Minute)
	d, err := limiter.Allow(ctx, "learner-9")
	require.NoError(t, err)
	assert.True(t, d.Allowed)
	d, err = limiter.Allow(ctx, "learner-9")
	require.NoError(t, err)
	assert.False(t, d.Allowed)
	assert.Greater(t, d.RetryAfter, time.Duration(0))
}
