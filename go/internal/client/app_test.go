package client

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/woodfish/muyu/go/internal/client/aggregator"
	"github.com/woodfish/muyu/go/internal/client/settings"
	"github.com/woodfish/muyu/go/internal/client/transport"
	"github.com/woodfish/muyu/go/internal/relay"
	"github.com/woodfish/muyu/go/internal/tap"
)

type fakePresenter struct {
	mu         sync.Mutex
	count      int64
	countCalls int
	localTaps  int
	remoteTaps int
	combos     []ComboStyle
	messages   []string
	statuses   chan transport.Status
}

func newFakePresenter() *fakePresenter {
	return &fakePresenter{statuses: make(chan transport.Status, 64)}
}

func (p *fakePresenter) ShowCount(total int64) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.count = total
	p.countCalls++
}

func (p *fakePresenter) ShowTap(local bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if local {
		p.localTaps++
	} else {
		p.remoteTaps++
	}
}

func (p *fakePresenter) ShowCombo(style ComboStyle) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.combos = append(p.combos, style)
}

func (p *fakePresenter) ShowConnection(status transport.Status, message string) {
	p.mu.Lock()
	p.messages = append(p.messages, message)
	p.mu.Unlock()
	p.statuses <- status
}

func (p *fakePresenter) shown() int64 {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.count
}

func (p *fakePresenter) renders() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.countCalls
}

func (p *fakePresenter) lastMessage() string {
	p.mu.Lock()
	defer p.mu.Unlock()
	if len(p.messages) == 0 {
		return ""
	}
	return p.messages[len(p.messages)-1]
}

func (p *fakePresenter) waitState(t *testing.T, want transport.State) transport.Status {
	t.Helper()
	timeout := time.After(5 * time.Second)
	for {
		select {
		case s := <-p.statuses:
			if s.State == want {
				return s
			}
		case <-timeout:
			t.Fatalf("timed out waiting for %s", want)
			return transport.Status{}
		}
	}
}

type fakeFeedback struct {
	mu       sync.Mutex
	sounds   int
	vibrates int
}

func (f *fakeFeedback) PlaySound() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sounds++
}

func (f *fakeFeedback) Vibrate() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.vibrates++
}

func (f *fakeFeedback) counts() (int, int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.sounds, f.vibrates
}

var errRefused = errors.New("connection refused")

type fakeConn struct {
	inbound   chan []byte
	closed    chan struct{}
	closeOnce sync.Once

	mu      sync.Mutex
	written [][]byte
}

func (c *fakeConn) Read() ([]byte, error) {
	select {
	case data := <-c.inbound:
		return data, nil
	case <-c.closed:
		return nil, errors.New("closed")
	}
}

func (c *fakeConn) Write(_ context.Context, data []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.written = append(c.written, data)
	return nil
}

func (c *fakeConn) Close() error {
	c.closeOnce.Do(func() { close(c.closed) })
	return nil
}

func (c *fakeConn) writes() [][]byte {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([][]byte(nil), c.written...)
}

type fakeDialer struct {
	mu   sync.Mutex
	err  error
	conn *fakeConn
	urls []string
}

func (d *fakeDialer) Dial(_ context.Context, url string) (transport.Conn, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.urls = append(d.urls, url)
	if d.err != nil {
		return nil, d.err
	}
	d.conn = &fakeConn{inbound: make(chan []byte, 16), closed: make(chan struct{})}
	return d.conn, nil
}

func (d *fakeDialer) setErr(err error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.err = err
}

func (d *fakeDialer) dialed() []string {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]string(nil), d.urls...)
}

func (d *fakeDialer) current() *fakeConn {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.conn
}

func testPrefs() settings.Settings {
	prefs := settings.Default()
	prefs.UserID = uuid.NewString()
	return prefs
}

func startApp(t *testing.T, prefs settings.Settings, opts Options) (*App, *fakePresenter, *fakeFeedback) {
	t.Helper()
	presenter := newFakePresenter()
	feedback := &fakeFeedback{}

	app, err := NewApp(prefs, presenter, feedback, opts)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	app.Start(ctx)
	t.Cleanup(func() {
		app.Close()
		cancel()
	})
	return app, presenter, feedback
}

func TestAppCountsOptimisticallyAndSendsOneBatch(t *testing.T) {
	clock := clockwork.NewFakeClock()
	dialer := &fakeDialer{}
	prefs := testPrefs()
	app, presenter, feedback := startApp(t, prefs, Options{Clock: clock, Dialer: dialer})

	presenter.waitState(t, transport.StateOpen)
	assert.Equal(t, []string{"ws://localhost:8080/ws?user_id=" + prefs.UserID}, dialer.dialed())

	conn := dialer.current()
	conn.inbound <- []byte(`{"type":"init","totalClicks":42}`)
	require.Eventually(t, func() bool { return app.Count() == 42 }, 2*time.Second, 5*time.Millisecond)

	app.Tap()
	app.Tap()
	app.Tap()

	assert.Equal(t, int64(45), app.Count())
	assert.Equal(t, int64(45), presenter.shown())
	sounds, vibrates := feedback.counts()
	assert.Equal(t, 3, sounds)
	assert.Equal(t, 3, vibrates)
	assert.Empty(t, conn.writes(), "nothing is sent inside the debounce window")

	clock.Advance(aggregator.DefaultDebounce)
	require.Eventually(t, func() bool { return len(conn.writes()) == 1 }, 2*time.Second, 5*time.Millisecond)

	msg, err := tap.Decode(conn.writes()[0])
	require.NoError(t, err)
	batch, ok := msg.(tap.Batch)
	require.True(t, ok)
	assert.Equal(t, 3, batch.Len())

	presenter.mu.Lock()
	assert.Equal(t, []ComboStyle{Combo(3)}, presenter.combos)
	assert.Equal(t, 3, presenter.localTaps)
	presenter.mu.Unlock()
}

func TestAppRemoteTapsIncrementWithoutFeedback(t *testing.T) {
	dialer := &fakeDialer{}
	app, presenter, feedback := startApp(t, testPrefs(), Options{Dialer: dialer})

	presenter.waitState(t, transport.StateOpen)
	conn := dialer.current()
	conn.inbound <- []byte(`{"type":"init","totalClicks":10}`)
	conn.inbound <- []byte(`{"type":"clicks","clicks":[{"timestamp":5},{"timestamp":5}]}`)

	require.Eventually(t, func() bool { return app.Count() == 12 }, 2*time.Second, 5*time.Millisecond)

	presenter.mu.Lock()
	assert.Equal(t, 2, presenter.remoteTaps)
	assert.Zero(t, presenter.localTaps)
	presenter.mu.Unlock()

	sounds, vibrates := feedback.counts()
	assert.Zero(t, sounds)
	assert.Zero(t, vibrates)
}

func TestAppFeedbackFollowsSettings(t *testing.T) {
	prefs := testPrefs()
	prefs.Sound = false
	app, _, feedback := startApp(t, prefs, Options{Dialer: &fakeDialer{}})

	app.Tap()
	sounds, vibrates := feedback.counts()
	assert.Zero(t, sounds)
	assert.Equal(t, 1, vibrates)

	prefs.Sound = true
	prefs.Vibration = false
	app.ApplySettings(prefs)
	app.Tap()
	sounds, vibrates = feedback.counts()
	assert.Equal(t, 1, sounds)
	assert.Equal(t, 1, vibrates)
}

func TestAppShowsErrorWhenRetriesExhausted(t *testing.T) {
	dialer := &fakeDialer{err: errRefused}
	opts := Options{
		Dialer:    dialer,
		Transport: transport.Config{MaxReconnectAttempts: 0},
	}
	app, presenter, _ := startApp(t, testPrefs(), opts)

	failed := presenter.waitState(t, transport.StateFailed)
	assert.ErrorIs(t, failed.Err, errRefused)
	assert.Contains(t, presenter.lastMessage(), "Unable to reach the server")

	// Taps still count locally while offline
	app.Tap()
	assert.Equal(t, int64(1), app.Count())

	dialer.setErr(nil)
	app.Retry()
	presenter.waitState(t, transport.StateOpen)
	assert.Empty(t, presenter.lastMessage())
}

func TestNewAppRejectsBadSettings(t *testing.T) {
	prefs := testPrefs()
	prefs.ServerURL = "ftp://nope"
	_, err := NewApp(prefs, newFakePresenter(), &fakeFeedback{}, Options{})
	assert.ErrorIs(t, err, transport.ErrInvalidServerURL)

	prefs = testPrefs()
	prefs.Theme = "neon"
	_, err = NewApp(prefs, newFakePresenter(), &fakeFeedback{}, Options{})
	assert.ErrorIs(t, err, settings.ErrInvalid)
}

func TestAppsSyncThroughRelay(t *testing.T) {
	svc := relay.NewService(relay.DefaultConfig(), nil)
	mux := http.NewServeMux()
	svc.RegisterRoutes(mux)
	srv := httptest.NewServer(mux)

	ctx, cancel := context.WithCancel(context.Background())
	stopped := make(chan struct{})
	go func() {
		svc.Start(ctx)
		close(stopped)
	}()
	t.Cleanup(func() {
		cancel()
		<-stopped
		srv.Close()
	})

	prefs := testPrefs()
	prefs.ServerURL = srv.URL
	opts := Options{Debounce: 20 * time.Millisecond}

	alice, alicePresenter, _ := startApp(t, prefs, opts)
	bob, bobPresenter, _ := startApp(t, prefs, opts)
	// One render on start and one for the relay's init
	require.Eventually(t, func() bool { return alicePresenter.renders() >= 2 }, 5*time.Second, 10*time.Millisecond)
	require.Eventually(t, func() bool { return bobPresenter.renders() >= 2 }, 5*time.Second, 10*time.Millisecond)

	alice.Tap()
	alice.Tap()
	alice.Tap()
	assert.Equal(t, int64(3), alice.Count())

	require.Eventually(t, func() bool { return bob.Count() == 3 }, 5*time.Second, 10*time.Millisecond)
	assert.Never(t, func() bool { return alice.Count() != 3 }, 100*time.Millisecond, 10*time.Millisecond,
		"the sender does not count its own batch twice")
}

func TestConnectionError(t *testing.T) {
	assert.Empty(t, ConnectionError(transport.Status{State: transport.StateReconnecting, Err: errRefused}))
	assert.Equal(t,
		"Unable to reach the server after 5 attempts",
		ConnectionError(transport.Status{State: transport.StateFailed, ReconnectAttempts: 5}))
}

func TestCombo(t *testing.T) {
	assert.Equal(t, ComboStyle{Label: "+1", Color: "#FFFFFF", Scale: 1}, Combo(1))
	assert.Equal(t, "+3", Combo(3).Label)
	assert.Equal(t, 1.3, Combo(7).Scale)
	assert.Equal(t, "#FF6B6B", Combo(12).Color)
}
