package session

import (
	"sync"
	"time"

	"cardmesh/internal/ports"
)

// Ticker is the subset of *time.Ticker the host-loss countdown needs.
type Ticker interface {
	C() <-chan time.Time
	Stop()
}

// TickerFactory creates a ticker firing every d.
type TickerFactory func(d time.Duration) Ticker

type realTicker struct{ t *time.Ticker }

func (r realTicker) C() <-chan time.Time { return r.t.C }
func (r realTicker) Stop()               { r.t.Stop() }

// NewRealTicker is the default TickerFactory.
func NewRealTicker(d time.Duration) Ticker {
	return realTicker{t: time.NewTicker(d)}
}

// HostLossHandler runs the countdown a peer shows after its host disappeared and sends
// the user home when it expires.
type HostLossHandler struct {
	unit      time.Duration
	newTicker TickerFactory
	onTick    func(remaining int)
	latch     navigationLatch

	mu        sync.Mutex
	countdown Countdown
	triggered bool
	stopped   bool
	stop      chan struct{}
}

// NewHostLossHandler prepares a countdown of units, each lasting unit. onTick, when not
// nil, is called with the remaining units after every tick.
func NewHostLossHandler(units int, unit time.Duration, nav ports.Navigator, newTicker TickerFactory, onTick func(remaining int)) *HostLossHandler {
	if newTicker == nil {
		newTicker = NewRealTicker
	}
	if onTick == nil {
		onTick = func(int) {}
	}
	if unit <= 0 {
		unit = time.Second
	}
	return &HostLossHandler{
		unit:      unit,
		newTicker: newTicker,
		onTick:    onTick,
		latch:     navigationLatch{nav: nav},
		countdown: NewCountdown(units),
		stop:      make(chan struct{}),
	}
}

// Trigger starts the countdown. Only the first call has an effect; it reports whether
// this call started it.
func (h *HostLossHandler) Trigger() bool {
	h.mu.Lock()
	if h.triggered || h.stopped {
		h.mu.Unlock()
		return false
	}
	h.triggered = true
	remaining := h.countdown.Remaining
	h.mu.Unlock()

	h.onTick(remaining)
	if remaining == 0 {
		h.latch.observe(0)
		return true
	}
	go h.run()
	return true
}

func (h *HostLossHandler) run() {
	t := h.newTicker(h.unit)
	defer t.Stop()

	for {
		select {
		case <-h.stop:
			return
		case <-t.C():
		}

		h.mu.Lock()
		if h.stopped {
			h.mu.Unlock()
			return
		}
		h.countdown = h.countdown.Tick()
		remaining := h.countdown.Remaining
		h.mu.Unlock()

		h.onTick(remaining)
		if h.latch.observe(remaining) || remaining == 0 {
			return
		}
	}
}

// Observe feeds the current remaining units to the navigation latch. Navigation still
// happens at most once, however often this is called.
func (h *HostLossHandler) Observe() {
	h.latch.observe(h.Remaining())
}

// Remaining returns the units left on the countdown.
func (h *HostLossHandler) Remaining() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.countdown.Remaining
}

// Triggered reports whether the countdown has been started.
func (h *HostLossHandler) Triggered() bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.triggered
}

// Navigated reports whether the user was sent home.
func (h *HostLossHandler) Navigated() bool { return h.latch.fired() }

// Stop cancels the countdown. No navigation happens after Stop returns. It does not wait
// for the ticker goroutine, so it may be called from the navigator itself.
func (h *HostLossHandler) Stop() {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.stopped {
		return
	}
	h.stopped = true
	h.latch.disarm()
	close(h.stop)
}
