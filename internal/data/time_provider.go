package data

import "time"

// TimeProvider abstracts the clock so repositories can be tested with a
// fixed time.
type TimeProvider interface {
	Now() time.Time
}

// RealTimeProvider reads the system clock.
type RealTimeProvider struct{}

// Now returns the current system time.
func (RealTimeProvider) Now() time.Time { return time.Now() }

// FixedTimeProvider returns a fixed time, advanced explicitly by tests.
type FixedTimeProvider struct {
	current time.Time
}

// NewFixedTimeProvider creates a FixedTimeProvider set to t.
func NewFixedTimeProvider(t time.Time) *FixedTimeProvider {
	return &FixedTimeProvider{current: t}
}

// Now returns the fixed time.
func (f *FixedTimeProvider) Now() time.Time { return f.current }

// SetTime replaces the fixed time.
func (f *FixedTimeProvider) SetTime(t time.Time) { f.current = t }

// Advance moves the fixed time forward by d.
func (f *FixedTimeProvider) Advance(d time.Duration) { f.current = f.current.Add(d) }
