package tracker

import "time"

// Ticker recurring tick stream owned by the tracker. Abstracted so tests can
// drive ticks manually.
type Ticker interface {
	C() <-chan time.Time
	Stop()
}

// TickerFactory create a ticker with the given period
type TickerFactory func(d time.Duration) Ticker

type realTicker struct {
	inner *time.Ticker
}

func (rt *realTicker) C() <-chan time.Time {
	return rt.inner.C
}

func (rt *realTicker) Stop() {
	rt.inner.Stop()
}

// NewTicker TickerFactory backed by time.Ticker
func NewTicker(d time.Duration) Ticker {
	return &realTicker{inner: time.NewTicker(d)}
}
