package aggregator

import (
	"sync"
	"time"

	"github.com/jonboulle/clockwork"

	"github.com/woodfish/muyu/go/internal/tap"
)

// DefaultDebounce is how long the aggregator waits after the last tap before flushing
const DefaultDebounce = 200 * time.Millisecond

// Sink receives flushed batches; normally the transport's Send
type Sink func(batch tap.Batch)

// Aggregator coalesces taps that arrive within the debounce window of each
// other into a single batch
type Aggregator struct {
	clock    clockwork.Clock
	debounce time.Duration
	sink     Sink

	mu      sync.Mutex
	pending []tap.Event
	timer   clockwork.Timer
	gen     uint64 // bumped whenever the pending timer is replaced
}

// Option configures an Aggregator
type Option func(*Aggregator)

// WithClock overrides the clock used for timestamps and the debounce timer
func WithClock(clock clockwork.Clock) Option {
	return func(a *Aggregator) { a.clock = clock }
}

// WithDebounce overrides DefaultDebounce
func WithDebounce(d time.Duration) Option {
	return func(a *Aggregator) {
		if d > 0 {
			a.debounce = d
		}
	}
}

// New creates an aggregator that hands batches to sink
func New(sink Sink, opts ...Option) *Aggregator {
	a := &Aggregator{
		clock:    clockwork.NewRealClock(),
		debounce: DefaultDebounce,
		sink:     sink,
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// RecordTap records one tap and restarts the debounce window
func (a *Aggregator) RecordTap() {
	a.mu.Lock()
	defer a.mu.Unlock()

	a.pending = append(a.pending, tap.NewEvent(a.clock.Now()))

	a.stopTimerLocked()
	gen := a.gen
	a.timer = a.clock.AfterFunc(a.debounce, func() { a.fire(gen) })
}

// Pending returns the number of taps waiting to be flushed
func (a *Aggregator) Pending() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return len(a.pending)
}

// Flush sends pending taps immediately
func (a *Aggregator) Flush() {
	a.mu.Lock()
	a.stopTimerLocked()
	batch, ok := a.takeLocked()
	a.mu.Unlock()

	if ok {
		a.sink(batch)
	}
}

// Stop cancels the pending flush and discards buffered taps
func (a *Aggregator) Stop() {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.stopTimerLocked()
	a.pending = nil
}

func (a *Aggregator) fire(gen uint64) {
	a.mu.Lock()
	if gen != a.gen {
		// Replaced by a newer tap after this timer had already fired
		a.mu.Unlock()
		return
	}
	a.timer = nil
	a.gen++
	batch, ok := a.takeLocked()
	a.mu.Unlock()

	if ok {
		a.sink(batch)
	}
}

func (a *Aggregator) stopTimerLocked() {
	if a.timer != nil {
		a.timer.Stop()
		a.timer = nil
	}
	a.gen++
}

func (a *Aggregator) takeLocked() (tap.Batch, bool) {
	if len(a.pending) == 0 {
		return tap.Batch{}, false
	}
	batch := tap.NewBatch(a.pending)
	a.pending = nil
	return batch, true
}
