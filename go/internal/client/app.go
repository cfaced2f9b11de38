package client

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog/log"

	"github.com/woodfish/muyu/go/internal/client/aggregator"
	"github.com/woodfish/muyu/go/internal/client/settings"
	"github.com/woodfish/muyu/go/internal/client/transport"
	"github.com/woodfish/muyu/go/internal/tap"
)

// Presenter renders client state. Methods may be called from any goroutine.
type Presenter interface {
	ShowCount(total int64)
	// ShowTap animates one tap; local is false for taps replayed from other clients
	ShowTap(local bool)
	ShowCombo(style ComboStyle)
	// ShowConnection reports the transport status; message is non-empty once
	// retries are exhausted
	ShowConnection(status transport.Status, message string)
}

// Feedback plays the per-tap side effects
type Feedback interface {
	PlaySound()
	Vibrate()
}

// Options tune the app's collaborators. Zero values use the package defaults.
type Options struct {
	Transport transport.Config
	Debounce  time.Duration
	Clock     clockwork.Clock
	Dialer    transport.Dialer
}

// App ties the aggregator and transport to a presenter
type App struct {
	presenter  Presenter
	feedback   Feedback
	transport  *transport.Transport
	aggregator *aggregator.Aggregator

	mu    sync.Mutex
	prefs settings.Settings
	count int64
}

// NewApp builds an app for the given preferences. The relay URL is derived from
// prefs.ServerURL unless opts.Transport.URL is set.
func NewApp(prefs settings.Settings, presenter Presenter, feedback Feedback, opts Options) (*App, error) {
	if err := prefs.Validate(); err != nil {
		return nil, err
	}

	tc := opts.Transport
	if tc.URL == "" {
		url, err := transport.RelayURL(prefs.ServerURL, prefs.RelayParams())
		if err != nil {
			return nil, err
		}
		tc.URL = url
	}

	a := &App{
		presenter: presenter,
		feedback:  feedback,
		prefs:     prefs,
	}

	var trOpts []transport.Option
	var aggOpts []aggregator.Option
	if opts.Clock != nil {
		trOpts = append(trOpts, transport.WithClock(opts.Clock))
		aggOpts = append(aggOpts, aggregator.WithClock(opts.Clock))
	}
	if opts.Dialer != nil {
		trOpts = append(trOpts, transport.WithDialer(opts.Dialer))
	}
	if opts.Debounce > 0 {
		aggOpts = append(aggOpts, aggregator.WithDebounce(opts.Debounce))
	}

	tr, err := transport.New(tc, transport.Callbacks{
		OnInit:        a.onInit,
		OnRemoteTap:   a.onRemoteTap,
		OnStateChange: a.onStateChange,
	}, trOpts...)
	if err != nil {
		return nil, fmt.Errorf("create transport: %w", err)
	}
	a.transport = tr
	a.aggregator = aggregator.New(a.onFlush, aggOpts...)

	return a, nil
}

// Start connects to the relay. The connection lives until ctx is cancelled.
func (a *App) Start(ctx context.Context) {
	a.presenter.ShowCount(a.Count())
	a.transport.Start(ctx)
}

// Tap registers one local tap: the counter moves immediately, the network send
// follows after the debounce window
func (a *App) Tap() {
	a.mu.Lock()
	a.count++
	count := a.count
	prefs := a.prefs
	a.mu.Unlock()

	a.presenter.ShowCount(count)
	a.presenter.ShowTap(true)
	if prefs.Sound {
		a.feedback.PlaySound()
	}
	if prefs.Vibration {
		a.feedback.Vibrate()
	}
	a.aggregator.RecordTap()
}

// Retry reconnects after the transport has given up
func (a *App) Retry() {
	a.transport.Restart()
}

// Count returns the displayed counter
func (a *App) Count() int64 {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.count
}

// Status returns the transport status
func (a *App) Status() transport.Status {
	return a.transport.Status()
}

// ApplySettings swaps the feedback preferences used for subsequent taps
func (a *App) ApplySettings(prefs settings.Settings) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.prefs = prefs
}

// Close flushes pending taps and disconnects
func (a *App) Close() {
	a.aggregator.Flush()
	a.aggregator.Stop()
	a.transport.Stop()
}

func (a *App) onFlush(batch tap.Batch) {
	a.presenter.ShowCombo(Combo(batch.Len()))
	if !a.transport.Send(batch) {
		log.Debug().Int("clicks", batch.Len()).Msg("batch dropped, relay not connected")
	}
}

func (a *App) onInit(total int64) {
	a.mu.Lock()
	a.count = total
	a.mu.Unlock()
	a.presenter.ShowCount(total)
}

func (a *App) onRemoteTap(tap.Event) {
	a.mu.Lock()
	a.count++
	count := a.count
	a.mu.Unlock()

	a.presenter.ShowCount(count)
	a.presenter.ShowTap(false)
}

func (a *App) onStateChange(status transport.Status) {
	a.presenter.ShowConnection(status, ConnectionError(status))
}

// ConnectionError is the user-facing message for a status, empty unless the
// transport has given up
func ConnectionError(status transport.Status) string {
	if status.State != transport.StateFailed {
		return ""
	}
	if status.Err != nil {
		return fmt.Sprintf("Unable to reach the server after %d attempts: %v", status.ReconnectAttempts, status.Err)
	}
	return fmt.Sprintf("Unable to reach the server after %d attempts", status.ReconnectAttempts)
}
