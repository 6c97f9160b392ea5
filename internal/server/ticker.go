package server

import (
	"fmt"
	"sync"
	"time"
)

// Ticker advances a simulation by dt.
type Ticker interface {
	Tick(dt time.Duration)
}

// TickLoop drives a Ticker at a fixed interval.
//
// Invariant: Tick is called from the loop goroutine only, at most once per interval.
type TickLoop struct {
	interval time.Duration
	target   Ticker
	stop     chan struct{}
	once     sync.Once
}

// NewTickLoop returns a loop that ticks target every interval.
//
// Precondition: interval must be > 0; target must be non-nil.
func NewTickLoop(interval time.Duration, target Ticker) (*TickLoop, error) {
	if interval <= 0 {
		return nil, fmt.Errorf("tick interval must be > 0, got %v", interval)
	}
	if target == nil {
		return nil, fmt.Errorf("tick target must not be nil")
	}
	return &TickLoop{interval: interval, target: target, stop: make(chan struct{})}, nil
}

// Start ticks until Stop is called. Each tick passes the wall-clock time since the
// previous one, so a slow tick does not slow the simulation.
func (l *TickLoop) Start() error {
	ticker := time.NewTicker(l.interval)
	defer ticker.Stop()
	last := time.Now()
	for {
		select {
		case <-l.stop:
			return nil
		case now := <-ticker.C:
			l.target.Tick(now.Sub(last))
			last = now
		}
	}
}

// Stop ends the loop. It is safe to call more than once.
func (l *TickLoop) Stop() {
	l.once.Do(func() { close(l.stop) })
}
