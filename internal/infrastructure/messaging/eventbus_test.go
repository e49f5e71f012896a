package messaging

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/calculus-oom/gradebook/internal/domain/shared"
)

func TestInMemoryEventBus_SyncDelivery(t *testing.T) {
	bus := NewInMemoryEventBus(InMemoryEventBusConfig{EnableMetrics: true})
	defer bus.Close()

	var typed, all []shared.EventType
	require.NoError(t, bus.Subscribe(shared.EventScoreChanged, func(e shared.Event) error {
		typed = append(typed, e.EventType())
		return nil
	}))
	require.NoError(t, bus.SubscribeAll(func(e shared.Event) error {
		all = append(all, e.EventType())
		return errors.New("ignored")
	}))

	require.NoError(t, bus.Publish(shared.NewScoreChangedEvent("scr_1", "stu_1", "1141", "quiz1")))
	require.NoError(t, bus.Publish(shared.NewTermFinalizedEvent("1141", 60, 2)))

	assert.Equal(t, []shared.EventType{shared.EventScoreChanged}, typed)
	assert.Equal(t, []shared.EventType{shared.EventScoreChanged, shared.EventTermFinalized}, all)

	snap := bus.Metrics().Snapshot()
	assert.Equal(t, int64(3), snap.HandlerExecutions)
	assert.Equal(t, int64(2), snap.HandlerFailures)
	assert.Equal(t, int64(1), snap.Published[shared.EventTermFinalized])
}

func TestInMemoryEventBus_AsyncRecoversPanics(t *testing.T) {
	bus := NewInMemoryEventBus(InMemoryEventBusConfig{AsyncMode: true, WorkerPoolSize: 2, EnableMetrics: true})
	defer bus.Close()

	var calls atomic.Int32
	require.NoError(t, bus.Subscribe(shared.EventStudentCreated, func(shared.Event) error {
		calls.Add(1)
		return nil
	}))
	require.NoError(t, bus.Subscribe(shared.EventStudentCreated, func(shared.Event) error {
		panic("boom")
	}))

	for i := 0; i < 5; i++ {
		require.NoError(t, bus.Publish(shared.NewStudentCreatedEvent("stu_1", "scr_1", "1141")))
	}
	bus.Wait()

	assert.Equal(t, int32(5), calls.Load())
	assert.Equal(t, int64(5), bus.Metrics().Snapshot().HandlerFailures)
}

func TestInMemoryEventBus_Closed(t *testing.T) {
	bus := NewInMemoryEventBus(InMemoryEventBusConfig{})
	require.NoError(t, bus.Close())
	require.NoError(t, bus.Close())

	assert.ErrorIs(t, bus.Publish(shared.NewTermFinalizedEvent("1141", 60, 0)), ErrEventBusClosed)
	assert.ErrorIs(t, bus.Subscribe(shared.EventTermFinalized, func(shared.Event) error { return nil }), ErrEventBusClosed)
	assert.Error(t, bus.SubscribeAll(nil))
}

func TestRedisEventBus_CrossInstance(t *testing.T) {
	mr := miniredis.RunT(t)
	ctx := context.Background()

	newBus := func(id string) *RedisEventBus {
		client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
		t.Cleanup(func() { _ = client.Close() })
		bus, err := NewRedisEventBus(ctx, RedisEventBusConfig{Client: client, InstanceID: id})
		require.NoError(t, err)
		t.Cleanup(func() { _ = bus.Close() })
		return bus
	}
	a, b := newBus("a"), newBus("b")

	var mu sync.Mutex
	received := map[string][]string{}
	record := func(name string) shared.EventHandler {
		return func(e shared.Event) error {
			mu.Lock()
			defer mu.Unlock()
			received[name] = append(received[name], e.Term())
			return nil
		}
	}
	require.NoError(t, a.Subscribe(shared.EventTermFinalized, record("a")))
	require.NoError(t, b.Subscribe(shared.EventTermFinalized, record("b")))

	require.NoError(t, a.Publish(shared.NewTermFinalizedEvent("1141", 60, 3)))

	require.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(received["b"]) == 1
	}, 2*time.Second, 10*time.Millisecond)

	a.Wait()
	time.Sleep(50 * time.Millisecond)
	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, []string{"1141"}, received["a"], "own broadcast must not be delivered twice")
	assert.Equal(t, []string{"1141"}, received["b"])
}
