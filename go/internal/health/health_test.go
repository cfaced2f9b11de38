package health

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeDB struct{ err error }

func (f fakeDB) PingContext(context.Context) error { return f.err }

type fakePool struct{ err error }

func (f fakePool) Ping(context.Context) error { return f.err }

type fakeBroker bool

func (f fakeBroker) IsConnected() bool { return bool(f) }

func TestCheckerAllHealthy(t *testing.T) {
	checker := NewChecker(time.Second).
		Add("database", SQL(fakeDB{})).
		Add("pool", Pool(fakePool{})).
		Add("nats", Broker(fakeBroker(true)))

	status := checker.Check(context.Background())
	assert.True(t, status.Healthy)
	assert.Equal(t, map[string]bool{"database": true, "pool": true, "nats": true}, status.Components)
	assert.Empty(t, status.Errors)
}

func TestCheckerReportsFailures(t *testing.T) {
	checker := NewChecker(time.Second).
		Add("database", SQL(fakeDB{err: errors.New("connection refused")})).
		Add("nats", Broker(fakeBroker(false)))

	status := checker.Check(context.Background())
	assert.False(t, status.Healthy)
	assert.False(t, status.Components["database"])
	assert.Equal(t, []string{"database: connection refused", "nats: disconnected"}, status.Errors)
}

func TestCheckerTimeoutBoundsChecks(t *testing.T) {
	checker := NewChecker(10 * time.Millisecond).Add("slow", func(ctx context.Context) error {
		<-ctx.Done()
		return ctx.Err()
	})

	status := checker.Check(context.Background())
	assert.False(t, status.Healthy)
}

func TestServeHTTP(t *testing.T) {
	healthy := NewChecker(time.Second).Add("relay", func(context.Context) error { return nil })
	rec := httptest.NewRecorder()
	healthy.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))
	assert.Equal(t, http.StatusOK, rec.Code)

	var status Status
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&status))
	assert.True(t, status.Healthy)

	down := NewChecker(time.Second).Add("pool", Pool(fakePool{err: errors.New("down")}))
	rec = httptest.NewRecorder()
	down.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}
