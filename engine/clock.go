package engine

import "time"

// Clock abstracts wall-clock time and one-shot timers so trigger behavior
// is testable without real waits.
type Clock interface {
	Now() time.Time
	// AfterFunc runs f in its own goroutine after d elapses, returning a
	// handle that can stop the pending call.
	AfterFunc(d time.Duration, f func()) Timer
}

// Timer is a one-shot timer handle.
type Timer interface {
	// Stop prevents the timer from firing. Reports whether it stopped the
	// timer before the callback started.
	Stop() bool
}

type realClock struct{}

// NewClock returns a Clock backed by the time package.
func NewClock() Clock { return realClock{} }

func (realClock) Now() time.Time { return time.Now() }

func (realClock) AfterFunc(d time.Duration, f func()) Timer {
	return realTimer{time.AfterFunc(d, f)}
}

type realTimer struct{ t *time.Timer }

func (rt realTimer) Stop() bool { return rt.t.Stop() }
