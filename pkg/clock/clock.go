// Package clock abstracts wall-clock access so schedule math and
// lateness checks can run against a pinned time in tests.
package clock

import "time"

// Clock yields the current time.
type Clock interface {
	Now() time.Time
}

// RealClock delegates to the system clock.
type RealClock struct{}

func (RealClock) Now() time.Time { return time.Now() }

// FixedClock reports the same instant forever.
type FixedClock struct{ t time.Time }

// NewFixed pins the clock to t.
func NewFixed(t time.Time) FixedClock { return FixedClock{t: t} }

func (f FixedClock) Now() time.Time { return f.t }
