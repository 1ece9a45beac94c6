// Package clock abstracts time so that the flush scheduler, dwell tracker and
// frame throttle can be driven deterministically in tests.
package clock

import "time"

// Clock is the subset of the time package the pipeline depends on.
type Clock interface {
	Now() time.Time
	// NewTicker panics if d <= 0, like time.NewTicker.
	NewTicker(d time.Duration) *Ticker
	// AfterFunc calls f after d. If d <= 0 a fake clock calls f synchronously.
	AfterFunc(d time.Duration, f func()) *Timer
}

// Ticker delivers ticks on C until stopped. C has capacity 1; late ticks are dropped.
type Ticker struct {
	C <-chan time.Time

	stopFunc func()
}

// Stop turns off the ticker. It does not close C.
func (t *Ticker) Stop() { t.stopFunc() }

// Timer is a pending AfterFunc call.
type Timer struct {
	stopFunc func() bool
}

// Stop prevents the call from running. It reports whether the call was still pending.
func (t *Timer) Stop() bool { return t.stopFunc() }

// Real returns a Clock backed by the standard time package.
func Real() Clock { return realClock{} }

type realClock struct{}

func (realClock) Now() time.Time { return time.Now() }

func (realClock) NewTicker(d time.Duration) *Ticker {
	ticker := time.NewTicker(d)
	return &Ticker{C: ticker.C, stopFunc: ticker.Stop}
}

func (realClock) AfterFunc(d time.Duration, f func()) *Timer {
	timer := time.AfterFunc(d, f)
	return &Timer{stopFunc: timer.Stop}
}
