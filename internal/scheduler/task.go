// Package scheduler runs a function on a fixed interval without ever letting
// two runs overlap.
package scheduler

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"
)

// Func is run on every tick. Returning true stops the task.
type Func func(ctx context.Context) (stop bool)

// Ticker is the subset of time.Ticker the task needs.
type Ticker interface {
	C() <-chan time.Time
	Stop()
}

// Clock tells the time and creates tickers.
type Clock interface {
	Now() time.Time
	NewTicker(d time.Duration) Ticker
}

type realClock struct{}

type realTicker struct {
	t *time.Ticker
}

func (realClock) Now() time.Time { return time.Now() }

func (realClock) NewTicker(d time.Duration) Ticker {
	return realTicker{t: time.NewTicker(d)}
}

func (r realTicker) C() <-chan time.Time { return r.t.C }
func (r realTicker) Stop()               { r.t.Stop() }

// Option configures a Task.
type Option func(*Task)

// WithClock replaces the wall clock, mainly for tests.
func WithClock(c Clock) Option {
	return func(t *Task) {
		t.clock = c
	}
}

// WithLogger sets the logger for skipped-tick tracing.
func WithLogger(l *slog.Logger) Option {
	return func(t *Task) {
		if l != nil {
			t.logger = l
		}
	}
}

// Task is a running scheduled function.
type Task struct {
	interval time.Duration
	fn       Func
	clock    Clock
	logger   *slog.Logger

	cancel   context.CancelFunc
	done     chan struct{}
	stopOnce sync.Once

	runs    atomic.Int64
	skipped atomic.Int64
}

// Start begins running fn every interval until fn returns true, ctx is
// cancelled, or Stop is called. The first run happens one interval after
// Start. A tick that arrives while a run is still in flight is skipped.
func Start(ctx context.Context, interval time.Duration, fn Func, opts ...Option) *Task {
	t := &Task{
		interval: interval,
		fn:       fn,
		clock:    realClock{},
		logger:   slog.Default(),
		done:     make(chan struct{}),
	}
	for _, opt := range opts {
		opt(t)
	}

	ctx, t.cancel = context.WithCancel(ctx)
	ticker := t.clock.NewTicker(interval)
	go t.loop(ctx, ticker)
	return t
}

func (t *Task) loop(ctx context.Context, ticker Ticker) {
	defer close(t.done)
	defer ticker.Stop()

	results := make(chan bool, 1)
	inFlight := false

	for {
		select {
		case <-ctx.Done():
			if inFlight {
				<-results
			}
			return

		case <-ticker.C():
			if inFlight {
				t.skipped.Add(1)
				t.logger.Debug("tick skipped, previous run still in flight")
				continue
			}
			inFlight = true
			go func() {
				results <- t.fn(ctx)
			}()

		case stop := <-results:
			inFlight = false
			t.runs.Add(1)
			if stop {
				t.cancel()
				return
			}
		}
	}
}

// Stop cancels the task and waits for any in-flight run to return. It must
// not be called from inside the task's own Func.
func (t *Task) Stop() {
	t.stopOnce.Do(t.cancel)
	<-t.done
}

// Done is closed once the task has exited.
func (t *Task) Done() <-chan struct{} {
	return t.done
}

// Runs returns the number of completed runs.
func (t *Task) Runs() int64 {
	return t.runs.Load()
}

// Skipped returns the number of ticks dropped because a run was in flight.
func (t *Task) Skipped() int64 {
	return t.skipped.Load()
}
