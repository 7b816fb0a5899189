// Package timeutil provides a testable abstraction over time operations.
package timeutil

import (
	"sync"
	"time"
)

// Clock provides the current time. Stage timings and run timestamps are
// taken through a Clock so tests can make them deterministic.
type Clock interface {
	// Now returns the current time.
	Now() time.Time

	// Since returns the duration since t.
	Since(t time.Time) time.Duration
}

// RealClock implements Clock using the standard time package.
type RealClock struct{}

// Now returns the current time.
func (RealClock) Now() time.Time {
	return time.Now()
}

// Since returns the time elapsed since t.
func (RealClock) Since(t time.Time) time.Duration {
	return time.Since(t)
}

// MockClock is a manually controlled clock for testing. When Step is
// non-zero every call to Now advances the clock by Step after reading it,
// so consecutive Now/Since pairs measure exactly Step.
type MockClock struct {
	mu   sync.Mutex
	now  time.Time
	step time.Duration
}

// NewMockClock creates a new MockClock set to the given time.
func NewMockClock(t time.Time) *MockClock {
	return &MockClock{now: t}
}

// NewSteppingClock creates a MockClock that advances by step on every Now.
func NewSteppingClock(t time.Time, step time.Duration) *MockClock {
	return &MockClock{now: t, step: step}
}

// Now returns the mocked current time.
func (c *MockClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	t := c.now
	c.now = c.now.Add(c.step)
	return t
}

// Since returns the duration between t and the mocked current time without
// advancing the clock.
func (c *MockClock) Since(t time.Time) time.Duration {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now.Sub(t)
}

// Set sets the mock clock to a specific time.
func (c *MockClock) Set(t time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = t
}

// Advance moves the mock clock forward by the given duration.
func (c *MockClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

// Stopwatch accumulates elapsed time for one stage.
type Stopwatch struct {
	clock Clock
	start time.Time
}

// Start begins timing on clock.
func Start(clock Clock) Stopwatch {
	return Stopwatch{clock: clock, start: clock.Now()}
}

// Elapsed returns the time since Start.
func (s Stopwatch) Elapsed() time.Duration {
	return s.clock.Since(s.start)
}
