// clock.go - Hand-driven clock for scheduler tests
package testutil

import (
	"sync"
	"time"

	"github.com/oacracker/photoqa/internal/scheduler"
)

// tickTimeout bounds how long Tick waits for a receiver.
const tickTimeout = 2 * time.Second

// ManualClock implements scheduler.Clock with tickers that only fire when
// Tick is called.
type ManualClock struct {
	mu      sync.Mutex
	now     time.Time
	tickers []*manualTicker
}

// NewManualClock creates a clock starting at a fixed instant.
func NewManualClock() *ManualClock {
	return &ManualClock{now: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)}
}

type manualTicker struct {
	c       chan time.Time
	stopped chan struct{}
	once    sync.Once
}

func (t *manualTicker) C() <-chan time.Time { return t.c }

func (t *manualTicker) Stop() {
	t.once.Do(func() { close(t.stopped) })
}

// Now implements scheduler.Clock. Every Tick moves it forward one second.
func (m *ManualClock) Now() time.Time {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.now
}

// Advance moves the clock forward without firing a ticker.
func (m *ManualClock) Advance(d time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.now = m.now.Add(d)
}

// NewTicker implements scheduler.Clock.
func (m *ManualClock) NewTicker(time.Duration) scheduler.Ticker {
	m.mu.Lock()
	defer m.mu.Unlock()

	t := &manualTicker{
		c:       make(chan time.Time),
		stopped: make(chan struct{}),
	}
	m.tickers = append(m.tickers, t)
	return t
}

// Tick fires the most recently created ticker and reports whether a receiver
// took the tick. It returns false if the ticker was stopped or nobody received
// within a couple of seconds.
func (m *ManualClock) Tick() bool {
	m.mu.Lock()
	if len(m.tickers) == 0 {
		m.mu.Unlock()
		return false
	}
	t := m.tickers[len(m.tickers)-1]
	m.now = m.now.Add(time.Second)
	now := m.now
	m.mu.Unlock()

	select {
	case t.c <- now:
		return true
	case <-t.stopped:
		return false
	case <-time.After(tickTimeout):
		return false
	}
}

// Tickers returns how many tickers have been created.
func (m *ManualClock) Tickers() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.tickers)
}

// Stopped reports whether the most recent ticker has been stopped.
func (m *ManualClock) Stopped() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.tickers) == 0 {
		return true
	}
	select {
	case <-m.tickers[len(m.tickers)-1].stopped:
		return true
	default:
		return false
	}
}

var _ scheduler.Clock = (*ManualClock)(nil)
