package services

import "time"

// Ticker abstracts a repeating timer so tests can drive ticks by hand.
type Ticker interface {
	C() <-chan time.Time
	Stop()
}

// Timer abstracts a one-shot deferred call.
type Timer interface {
	Stop() bool
}

// Scheduler is the single source of time for the wallet metering loop and
// the message confirmation timeout. Production wiring uses RealScheduler;
// tests inject a manual implementation.
type Scheduler interface {
	NewTicker(d time.Duration) Ticker
	AfterFunc(d time.Duration, f func()) Timer
	Now() time.Time
}

type realTicker struct {
	t *time.Ticker
}

func (rt *realTicker) C() <-chan time.Time { return rt.t.C }
func (rt *realTicker) Stop()               { rt.t.Stop() }

type RealScheduler struct{}

func NewRealScheduler() *RealScheduler { return &RealScheduler{} }

func (s *RealScheduler) NewTicker(d time.Duration) Ticker {
	return &realTicker{t: time.NewTicker(d)}
}

func (s *RealScheduler) AfterFunc(d time.Duration, f func()) Timer {
	return time.AfterFunc(d, f)
}

func (s *RealScheduler) Now() time.Time { return time.Now() }
