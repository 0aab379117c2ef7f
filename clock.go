package kvlog

import "time"

// Clock is the time source the engine consults when scheduling fsyncs.
// Tests substitute a fake to step time deterministically.
type Clock interface {
	Now() time.Time
}

// RealClock reads the system time. It is the Clock everything outside of
// tests should use.
type RealClock struct{}

var _ Clock = (*RealClock)(nil)

// NewRealClock returns a Clock backed by time.Now.
func NewRealClock() Clock {
	return &RealClock{}
}

func (r *RealClock) Now() time.Time {
	return time.Now()
}
