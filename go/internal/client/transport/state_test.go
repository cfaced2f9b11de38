package transport

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestMachineTransitions(t *testing.T) {
	tests := []struct {
		name         string
		from         State
		attempts     int
		ev           event
		wantChanged  bool
		wantState    State
		wantAttempts int
	}{
		{"connecting dial ok", StateConnecting, 3, evDialSucceeded, true, StateOpen, 0},
		{"connecting dial failed retries", StateConnecting, 0, evDialFailed, true, StateReconnecting, 0},
		{"connecting dial failed below max", StateConnecting, 4, evDialFailed, true, StateReconnecting, 4},
		{"connecting dial failed at max", StateConnecting, 5, evDialFailed, true, StateFailed, 5},
		{"open lost", StateOpen, 0, evConnectionLost, true, StateReconnecting, 0},
		{"reconnecting timer", StateReconnecting, 2, evRetryTimerFired, true, StateConnecting, 3},
		{"reconnecting restart", StateReconnecting, 2, evRestart, true, StateConnecting, 0},
		{"failed restart", StateFailed, 5, evRestart, true, StateConnecting, 0},
		{"closed restart", StateClosed, 1, evRestart, true, StateConnecting, 0},
		{"stop from open", StateOpen, 0, evStop, true, StateClosed, 0},
		{"stop from failed", StateFailed, 5, evStop, true, StateClosed, 5},
		{"stop when closed", StateClosed, 0, evStop, false, StateClosed, 0},

		{"failed ignores timer", StateFailed, 5, evRetryTimerFired, false, StateFailed, 5},
		{"failed ignores dial result", StateFailed, 5, evDialSucceeded, false, StateFailed, 5},
		{"open ignores restart", StateOpen, 0, evRestart, false, StateOpen, 0},
		{"connecting ignores restart", StateConnecting, 2, evRestart, false, StateConnecting, 2},
		{"closed ignores lost", StateClosed, 0, evConnectionLost, false, StateClosed, 0},
		{"reconnecting ignores dial", StateReconnecting, 1, evDialSucceeded, false, StateReconnecting, 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := machine{state: tt.from, attempts: tt.attempts, maxAttempts: 5}
			changed := m.apply(tt.ev)

			assert.Equal(t, tt.wantChanged, changed)
			assert.Equal(t, tt.wantState, m.state)
			assert.Equal(t, tt.wantAttempts, m.attempts)
		})
	}
}

func TestMachineGivesUpAfterMaxReconnects(t *testing.T) {
	m := newMachine(5)
	dials := 1
	assert.True(t, m.apply(evDialFailed))

	for m.state != StateFailed {
		assert.Equal(t, StateReconnecting, m.state)
		m.apply(evRetryTimerFired)
		dials++
		m.apply(evDialFailed)
	}

	assert.Equal(t, 5, m.attempts)
	assert.Equal(t, 6, dials)
}

func TestStateString(t *testing.T) {
	assert.Equal(t, "reconnecting", StateReconnecting.String())
	assert.Equal(t, "unknown", State(42).String())
}
