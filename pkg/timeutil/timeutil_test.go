package timeutil

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestManualClock(t *testing.T) {
	start := time.Date(2025, 2, 17, 8, 0, 0, 0, time.UTC)
	c := NewManualClock(start)
	assert.Equal(t, start, c.Now())

	assert.Equal(t, start.Add(time.Hour), c.Advance(time.Hour))
	assert.Equal(t, start.Add(time.Hour), c.Now())

	c.Set(start)
	assert.Equal(t, start, c.Now())
}

func TestSystemClock_UTC(t *testing.T) {
	assert.Equal(t, time.UTC, SystemClock{}.Now().Location())
}

func TestFormatLocal(t *testing.T) {
	ts := time.Date(2025, 2, 17, 20, 30, 0, 0, time.UTC)
	assert.Equal(t, "2025-02-18 04:30:00", FormatLocal(ts))
}

func TestParseDate(t *testing.T) {
	d, err := ParseDate("2025-04-15")
	require.NoError(t, err)
	assert.Equal(t, 15, d.Day())
	assert.Equal(t, Local, d.Location())

	_, err = ParseDate("15/04/2025")
	assert.Error(t, err)
}
