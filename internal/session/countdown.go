package session

import (
	"sync/atomic"

	"cardmesh/internal/ports"
)

// Countdown is the remaining number of units before a peer that lost its host leaves.
type Countdown struct {
	Remaining int
}

// NewCountdown starts a countdown at units; negative values start at zero.
func NewCountdown(units int) Countdown {
	return Countdown{Remaining: max(units, 0)}
}

// Tick returns the countdown one unit later. It never goes below zero.
func (c Countdown) Tick() Countdown {
	if c.Remaining > 0 {
		c.Remaining--
	}
	return c
}

// Done reports whether the countdown has run out.
func (c Countdown) Done() bool { return c.Remaining == 0 }

const (
	latchArmed int32 = iota
	latchFired
	latchDisarmed
)

// navigationLatch calls NavigateHome at most once, and never after disarm.
type navigationLatch struct {
	nav   ports.Navigator
	state atomic.Int32
}

// observe fires the navigator the first time remaining is seen at zero.
func (l *navigationLatch) observe(remaining int) bool {
	if remaining > 0 || l.nav == nil {
		return false
	}
	if !l.state.CompareAndSwap(latchArmed, latchFired) {
		return false
	}
	l.nav.NavigateHome()
	return true
}

func (l *navigationLatch) disarm() {
	l.state.CompareAndSwap(latchArmed, latchDisarmed)
}

func (l *navigationLatch) fired() bool {
	return l.state.Load() == latchFired
}
