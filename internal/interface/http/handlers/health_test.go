package handlers

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

type pingerFunc func(ctx context.Context) error

func (f pingerFunc) Ping(ctx context.Context) error { return f(ctx) }

func TestCompositeHealthChecker_NoChecks(t *testing.T) {
	status := NewCompositeHealthChecker("test").Check(context.Background())
	assert.True(t, status.Healthy)
	assert.True(t, status.Ready)
	assert.Equal(t, "test", status.Version)
}

func TestCompositeHealthChecker_AllPass(t *testing.T) {
	c := NewCompositeHealthChecker("test")
	c.AddCheck("database", NewPingCheck(pingerFunc(func(context.Context) error { return nil })))
	c.AddCheck("redis", NewPingCheck(pingerFunc(func(context.Context) error { return nil })))

	status := c.Check(context.Background())
	assert.True(t, status.Ready)
	assert.Len(t, status.Checks, 2)
	assert.Equal(t, "All checks passed", status.Message)
}

func TestCompositeHealthChecker_FailureAndTimeout(t *testing.T) {
	c := NewCompositeHealthChecker("test")
	c.SetTimeout(20 * time.Millisecond)
	c.AddCheck("database", func(context.Context) error { return errors.New("connection refused") })
	c.AddCheck("redis", func(ctx context.Context) error {
		<-ctx.Done()
		return ctx.Err()
	})
	c.AddCheck("memory", func(context.Context) error { return nil })

	status := c.Check(context.Background())
	assert.False(t, status.Healthy)
	assert.False(t, status.Ready)
	assert.Equal(t, "Some checks failed: database, redis", status.Message)
	assert.Equal(t, "connection refused", status.Checks["database"].Message)
	assert.True(t, status.Checks["memory"].Healthy)
}
