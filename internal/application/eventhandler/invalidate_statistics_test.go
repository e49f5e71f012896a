package eventhandler

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/calculus-oom/gradebook/internal/domain/shared"
)

type fakeCache struct {
	terms []string
	err   error
}

func (c *fakeCache) InvalidateTerm(_ context.Context, term string) error {
	c.terms = append(c.terms, term)
	return c.err
}

type fakeBus struct {
	handlers map[shared.EventType]shared.EventHandler
}

func (b *fakeBus) Subscribe(t shared.EventType, h shared.EventHandler) error {
	b.handlers[t] = h
	return nil
}

func (b *fakeBus) SubscribeAll(shared.EventHandler) error { return nil }

func TestInvalidateStatistics_Handle(t *testing.T) {
	cache := &fakeCache{}
	h := NewInvalidateStatisticsHandler(cache, nil)

	require.NoError(t, h.Handle(shared.NewScoreChangedEvent("scr_1", "stu_1", "1141", "quiz1")))
	require.NoError(t, h.Handle(shared.NewTermFinalizedEvent("1142", 60, 3)))
	require.NoError(t, h.Handle(shared.NewScoreDeletedEvent("scr_2", "stu_orphan", "")))

	assert.Equal(t, []string{"1141", "1142"}, cache.terms)
}

func TestInvalidateStatistics_PropagatesError(t *testing.T) {
	boom := errors.New("redis down")
	h := NewInvalidateStatisticsHandler(&fakeCache{err: boom}, nil)

	err := h.Handle(shared.NewStudentDeletedEvent("stu_1", "1141", 1))
	assert.ErrorIs(t, err, boom)
}

func TestInvalidateStatistics_Register(t *testing.T) {
	bus := &fakeBus{handlers: map[shared.EventType]shared.EventHandler{}}
	require.NoError(t, NewInvalidateStatisticsHandler(&fakeCache{}, nil).Register(bus))

	assert.Len(t, bus.handlers, len(InvalidatedBy))
	assert.Contains(t, bus.handlers, shared.EventStudentStatusChanged)
	assert.NotContains(t, bus.handlers, shared.EventWeightsAssigned)
}
