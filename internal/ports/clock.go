package ports

import "time"

// Clock abstracts wall-clock reads so timeout and auto-exit cutoff logic can
// be driven by a fake clock in tests.
type Clock interface {
	Now() time.Time
}

// RealClock reads the system clock.
type RealClock struct{}

func (RealClock) Now() time.Time { return time.Now() }
