package transport

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog/log"

	"github.com/woodfish/muyu/go/internal/tap"
)

// Config controls dialing and the reconnect policy
type Config struct {
	URL                  string        `yaml:"url"`
	ReconnectInterval    time.Duration `yaml:"reconnect_interval"`
	MaxReconnectAttempts int           `yaml:"max_reconnect_attempts"`
	DialTimeout          time.Duration `yaml:"dial_timeout"`
	WriteTimeout         time.Duration `yaml:"write_timeout"`
	SendBufferSize       int           `yaml:"send_buffer_size"`
	MaxReplaySpan        time.Duration `yaml:"max_replay_span"` // Ceiling on how far a remote tap is delayed
}

// DefaultConfig returns the standard reconnect policy: a fixed 3s retry, five attempts
func DefaultConfig() Config {
	return Config{
		ReconnectInterval:    3000 * time.Millisecond,
		MaxReconnectAttempts: 5,
		DialTimeout:          10 * time.Second,
		WriteTimeout:         5 * time.Second,
		SendBufferSize:       64,
		MaxReplaySpan:        5 * time.Second,
	}
}

// Callbacks receive transport events. All of them run on the transport loop
// goroutine, one at a time. Any of them may be nil.
type Callbacks struct {
	OnInit        func(totalClicks int64)
	OnRemoteBatch func(batch tap.Batch)
	OnRemoteTap   func(event tap.Event)
	OnStateChange func(status Status)
}

// Option configures a Transport
type Option func(*Transport)

// WithDialer replaces the default websocket dialer
func WithDialer(d Dialer) Option {
	return func(t *Transport) { t.dialer = d }
}

// WithClock overrides the clock driving retry and replay timers
func WithClock(c clockwork.Clock) Option {
	return func(t *Transport) { t.clock = c }
}

type commandKind int

const (
	cmdRestart commandKind = iota
	cmdStop
)

type dialResult struct {
	epoch uint64
	conn  Conn
	err   error
}

type inbound struct {
	epoch uint64
	data  []byte
	err   error
}

type replayFire struct {
	id    uint64
	event tap.Event
}

// Transport keeps a single connection to the relay alive, reconnecting on a
// fixed interval until the attempt budget is exhausted. Outgoing batches are
// dropped whenever the connection is not open.
type Transport struct {
	config    Config
	callbacks Callbacks
	dialer    Dialer
	clock     clockwork.Clock

	sendCh    chan tap.Batch
	commandCh chan commandKind
	dialCh    chan dialResult
	inboundCh chan inbound
	retryCh   chan uint64
	replayCh  chan replayFire
	done      chan struct{}
	startOnce sync.Once

	statusMu sync.RWMutex
	status   Status

	// owned by the loop goroutine
	m          machine
	conn       Conn
	epoch      uint64
	lastErr    error
	retry      clockwork.Timer
	retryGen   uint64
	replays    map[uint64]clockwork.Timer
	nextReplay uint64
}

// New creates a transport. Call Start to begin connecting.
func New(config Config, callbacks Callbacks, opts ...Option) (*Transport, error) {
	if config.URL == "" {
		return nil, fmt.Errorf("%w: empty", ErrInvalidServerURL)
	}
	defaults := DefaultConfig()
	if config.ReconnectInterval <= 0 {
		config.ReconnectInterval = defaults.ReconnectInterval
	}
	if config.MaxReconnectAttempts < 0 {
		config.MaxReconnectAttempts = defaults.MaxReconnectAttempts
	}
	if config.SendBufferSize <= 0 {
		config.SendBufferSize = defaults.SendBufferSize
	}
	if config.MaxReplaySpan <= 0 {
		config.MaxReplaySpan = defaults.MaxReplaySpan
	}

	t := &Transport{
		config:    config,
		callbacks: callbacks,
		clock:     clockwork.NewRealClock(),
		sendCh:    make(chan tap.Batch, config.SendBufferSize),
		commandCh: make(chan commandKind, 8),
		dialCh:    make(chan dialResult, 1),
		inboundCh: make(chan inbound, 16),
		retryCh:   make(chan uint64, 1),
		replayCh:  make(chan replayFire, 16),
		done:      make(chan struct{}),
		m:         newMachine(config.MaxReconnectAttempts),
		replays:   make(map[uint64]clockwork.Timer),
	}
	for _, opt := range opts {
		opt(t)
	}
	if t.dialer == nil {
		t.dialer = NewWebsocketDialer(config.DialTimeout, config.WriteTimeout)
	}
	t.status = Status{State: t.m.state}
	return t, nil
}

// Start launches the loop and the first connection attempt. The loop runs until
// ctx is cancelled; Done is closed once it has exited.
func (t *Transport) Start(ctx context.Context) {
	t.startOnce.Do(func() {
		go t.run(ctx)
	})
}

// Done is closed when the loop has exited
func (t *Transport) Done() <-chan struct{} {
	return t.done
}

// Status returns the latest published status
func (t *Transport) Status() Status {
	t.statusMu.RLock()
	defer t.statusMu.RUnlock()
	return t.status
}

// Send queues batch for delivery and reports whether it was accepted. Batches
// are dropped, not queued, while the connection is not open.
func (t *Transport) Send(batch tap.Batch) bool {
	if batch.Len() == 0 || t.Status().State != StateOpen {
		return false
	}
	select {
	case t.sendCh <- batch:
		return true
	default:
		log.Warn().Int("clicks", batch.Len()).Msg("send buffer full, dropping batch")
		return false
	}
}

// Restart resets the attempt counter and reconnects. Used for manual retry
// after Failed, and to reopen after Stop.
func (t *Transport) Restart() {
	t.command(cmdRestart)
}

// Stop closes the connection and cancels all timers. The loop keeps running so
// Restart can reopen it.
func (t *Transport) Stop() {
	t.command(cmdStop)
}

func (t *Transport) command(cmd commandKind) {
	select {
	case t.commandCh <- cmd:
	case <-t.done:
	}
}

func (t *Transport) run(ctx context.Context) {
	defer close(t.done)
	defer t.teardown()

	t.enter(ctx)
	t.publish()

	for {
		select {
		case <-ctx.Done():
			return

		case cmd := <-t.commandCh:
			switch cmd {
			case cmdRestart:
				t.fire(ctx, evRestart)
			case cmdStop:
				t.fire(ctx, evStop)
			}

		case res := <-t.dialCh:
			t.handleDial(ctx, res)

		case in := <-t.inboundCh:
			if in.epoch != t.epoch {
				continue
			}
			if in.err != nil {
				log.Warn().Err(in.err).Msg("connection lost")
				t.lastErr = in.err
				t.fire(ctx, evConnectionLost)
				continue
			}
			t.handleFrame(in.data)

		case batch := <-t.sendCh:
			t.write(ctx, batch)

		case gen := <-t.retryCh:
			if gen != t.retryGen {
				continue
			}
			t.retry = nil
			t.fire(ctx, evRetryTimerFired)

		case rf := <-t.replayCh:
			if _, ok := t.replays[rf.id]; !ok {
				continue
			}
			delete(t.replays, rf.id)
			t.emitTap(rf.event)
		}
	}
}

// fire applies ev and performs the work for the state it lands in
func (t *Transport) fire(ctx context.Context, ev event) {
	from := t.m.state
	if !t.m.apply(ev) {
		log.Debug().Stringer("event", ev).Stringer("state", from).Msg("event ignored")
		return
	}
	log.Info().
		Stringer("event", ev).
		Stringer("from", from).
		Stringer("to", t.m.state).
		Int("reconnect_attempts", t.m.attempts).
		Msg("transport state changed")

	t.enter(ctx)
	t.publish()
}

func (t *Transport) enter(ctx context.Context) {
	switch t.m.state {
	case StateConnecting:
		t.cancelRetry()
		t.dropConn()
		t.dial(ctx)
	case StateOpen:
		t.lastErr = nil
		go t.readLoop(t.epoch, t.conn)
	case StateReconnecting:
		t.dropConn()
		t.armRetry()
	case StateFailed:
		t.dropConn()
		t.cancelRetry()
	case StateClosed:
		t.dropConn()
		t.cancelRetry()
		t.cancelReplays()
		t.lastErr = nil
	}
}

func (t *Transport) publish() {
	status := Status{
		State:             t.m.state,
		ReconnectAttempts: t.m.attempts,
		Err:               t.lastErr,
	}
	t.statusMu.Lock()
	t.status = status
	t.statusMu.Unlock()

	if t.callbacks.OnStateChange != nil {
		t.callbacks.OnStateChange(status)
	}
}

func (t *Transport) dial(ctx context.Context) {
	t.epoch++
	epoch := t.epoch
	url := t.config.URL

	log.Debug().Str("url", url).Int("reconnect_attempts", t.m.attempts).Msg("dialing relay")
	go func() {
		dialCtx := ctx
		if t.config.DialTimeout > 0 {
			var cancel context.CancelFunc
			dialCtx, cancel = context.WithTimeout(ctx, t.config.DialTimeout)
			defer cancel()
		}
		conn, err := t.dialer.Dial(dialCtx, url)
		select {
		case t.dialCh <- dialResult{epoch: epoch, conn: conn, err: err}:
		case <-t.done:
			if conn != nil {
				conn.Close()
			}
		}
	}()
}

func (t *Transport) handleDial(ctx context.Context, res dialResult) {
	if res.epoch != t.epoch || t.m.state != StateConnecting {
		if res.conn != nil {
			res.conn.Close()
		}
		return
	}
	if res.err != nil {
		log.Warn().Err(res.err).Int("reconnect_attempts", t.m.attempts).Msg("dial failed")
		t.lastErr = res.err
		t.fire(ctx, evDialFailed)
		return
	}
	t.conn = res.conn
	t.fire(ctx, evDialSucceeded)
}

func (t *Transport) readLoop(epoch uint64, conn Conn) {
	for {
		data, err := conn.Read()
		select {
		case t.inboundCh <- inbound{epoch: epoch, data: data, err: err}:
		case <-t.done:
			return
		}
		if err != nil {
			return
		}
	}
}

func (t *Transport) handleFrame(data []byte) {
	msg, err := tap.Decode(data)
	if err != nil {
		if errors.Is(err, tap.ErrUnknownType) {
			log.Debug().Err(err).Msg("ignoring message")
		} else {
			log.Warn().Err(err).Msg("discarding malformed message")
		}
		return
	}

	switch m := msg.(type) {
	case tap.Init:
		log.Debug().Int64("total_clicks", m.TotalClicks).Msg("received init")
		if t.callbacks.OnInit != nil {
			t.callbacks.OnInit(m.TotalClicks)
		}
	case tap.Batch:
		t.replay(m)
	}
}

// replay hands the batch over in timestamp order and then re-emits each tap
// offset from the earliest one, so remote taps keep their original rhythm
func (t *Transport) replay(batch tap.Batch) {
	sorted := batch.Sorted()
	if t.callbacks.OnRemoteBatch != nil {
		t.callbacks.OnRemoteBatch(sorted)
	}
	if sorted.Len() == 0 {
		return
	}

	anchor := sorted.Clicks[0].Timestamp
	for _, ev := range sorted.Clicks {
		delay := replayDelay(anchor, ev.Timestamp, t.config.MaxReplaySpan)
		if delay <= 0 {
			t.emitTap(ev)
			continue
		}
		t.scheduleReplay(ev, delay)
	}
}

// replayDelay is the offset of ts from anchor, capped at limit. Offsets that
// overflow int64 milliseconds are capped too.
func replayDelay(anchor, ts int64, limit time.Duration) time.Duration {
	offset := ts - anchor
	if offset <= 0 {
		if ts > anchor {
			return limit
		}
		return 0
	}
	if offset >= limit.Milliseconds() {
		return limit
	}
	return time.Duration(offset) * time.Millisecond
}

func (t *Transport) scheduleReplay(ev tap.Event, delay time.Duration) {
	t.nextReplay++
	id := t.nextReplay
	t.replays[id] = t.clock.AfterFunc(delay, func() {
		select {
		case t.replayCh <- replayFire{id: id, event: ev}:
		case <-t.done:
		}
	})
}

func (t *Transport) emitTap(ev tap.Event) {
	if t.callbacks.OnRemoteTap != nil {
		t.callbacks.OnRemoteTap(ev)
	}
}

func (t *Transport) write(ctx context.Context, batch tap.Batch) {
	if t.m.state != StateOpen || t.conn == nil {
		log.Debug().Int("clicks", batch.Len()).Stringer("state", t.m.state).Msg("not connected, dropping batch")
		return
	}
	data, err := tap.Encode(batch)
	if err != nil {
		log.Error().Err(err).Msg("failed to encode batch")
		return
	}
	if err := t.conn.Write(ctx, data); err != nil {
		log.Warn().Err(err).Msg("write failed")
		t.lastErr = err
		t.fire(ctx, evConnectionLost)
	}
}

func (t *Transport) armRetry() {
	t.cancelRetry()
	gen := t.retryGen
	t.retry = t.clock.AfterFunc(t.config.ReconnectInterval, func() {
		select {
		case t.retryCh <- gen:
		case <-t.done:
		}
	})
}

func (t *Transport) cancelRetry() {
	if t.retry != nil {
		t.retry.Stop()
		t.retry = nil
	}
	t.retryGen++
}

func (t *Transport) cancelReplays() {
	for id, timer := range t.replays {
		timer.Stop()
		delete(t.replays, id)
	}
}

// dropConn closes the current connection and invalidates its reader
func (t *Transport) dropConn() {
	t.epoch++
	if t.conn != nil {
		if err := t.conn.Close(); err != nil {
			log.Debug().Err(err).Msg("error closing connection")
		}
		t.conn = nil
	}
}

func (t *Transport) teardown() {
	t.dropConn()
	t.cancelRetry()
	t.cancelReplays()
}
