package health

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type pingerFunc func(ctx context.Context) error

func (f pingerFunc) Ping(ctx context.Context) error { return f(ctx) }

func TestComposite_NoChecks(t *testing.T) {
	status := NewComposite("test").Check(context.Background())
	assert.True(t, status.Healthy)
	assert.Equal(t, "test", status.Version)
	assert.Empty(t, status.Checks)
}

func TestComposite_AggregatesFailures(t *testing.T) {
	c := NewComposite("test")
	c.AddCheck("database", PingCheck(pingerFunc(func(context.Context) error { return nil })))
	c.AddCheck("redis", PingCheck(pingerFunc(func(context.Context) error { return errors.New("connection refused") })))
	c.AddCheck("mongo", func(context.Context) error { return errors.New("timeout") })

	status := c.Check(context.Background())

	require.Len(t, status.Checks, 3)
	assert.False(t, status.Healthy)
	assert.True(t, status.Checks["database"].Healthy)
	assert.Equal(t, "connection refused", status.Checks["redis"].Message)
	assert.Equal(t, "failing: mongo, redis", status.Message)
}

func TestComposite_TimeoutApplies(t *testing.T) {
	c := NewComposite("test")
	c.SetTimeout(20 * time.Millisecond)
	c.AddCheck("slow", func(ctx context.Context) error {
		<-ctx.Done()
		return ctx.Err()
	})

	start := time.Now()
	status := c.Check(context.Background())

	assert.Less(t, time.Since(start), time.Second)
	assert.False(t, status.Healthy)
	assert.Equal(t, context.DeadlineExceeded.Error(), status.Checks["slow"].Message)
}

func TestComposite_AddCheckReplaces(t *testing.T) {
	c := NewComposite("test")
	c.AddCheck("db", func(context.Context) error { return errors.New("down") })
	c.AddCheck("db", func(context.Context) error { return nil })

	assert.True(t, c.Check(context.Background()).Healthy)
}
