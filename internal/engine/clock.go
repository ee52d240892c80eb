package engine

import "time"

// Clock abstracts wall time for provenance timestamps, so tests can pin it.
type Clock interface {
	Now() time.Time
}

// SystemClock reads the system wall clock.
type SystemClock struct{}

// Now implements Clock.
func (SystemClock) Now() time.Time {
	return time.Now()
}
