// Package timeutil provides the clock used to stamp records.
// Timestamps are stored in UTC; Local is only used for display.
package timeutil

import (
	"sync"
	"time"
)

// Local is the school's timezone (UTC+8, no DST).
var Local = time.FixedZone("Asia/Taipei", 8*60*60)

// Clock returns the current time.
type Clock interface {
	Now() time.Time
}

// SystemClock reads the wall clock in UTC.
type SystemClock struct{}

// Now implements Clock.
func (SystemClock) Now() time.Time {
	return time.Now().UTC()
}

// ManualClock is a Clock that only moves when told to.
type ManualClock struct {
	mu  sync.Mutex
	now time.Time
}

// NewManualClock creates a ManualClock set to t.
func NewManualClock(t time.Time) *ManualClock {
	return &ManualClock{now: t.UTC()}
}

// Now implements Clock.
func (c *ManualClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

// Set moves the clock to t.
func (c *ManualClock) Set(t time.Time) {
	c.mu.Lock()
	c.now = t.UTC()
	c.mu.Unlock()
}

// Advance moves the clock forward by d and returns the new time.
func (c *ManualClock) Advance(d time.Duration) time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
	return c.now
}

// ToLocal converts t to the school's timezone.
func ToLocal(t time.Time) time.Time {
	return t.In(Local)
}

// Display layouts.
const (
	DateLayout     = "2006-01-02"
	DateTimeLayout = "2006-01-02 15:04:05"
)

// FormatLocal renders t in the school's timezone.
func FormatLocal(t time.Time) string {
	return ToLocal(t).Format(DateTimeLayout)
}

// ParseDate parses a YYYY-MM-DD date in the school's timezone.
func ParseDate(value string) (time.Time, error) {
	return time.ParseInLocation(DateLayout, value, Local)
}
