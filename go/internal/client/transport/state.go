package transport

// State is the connection lifecycle state of a Transport
type State int

const (
	StateConnecting State = iota
	StateOpen
	StateClosed
	StateReconnecting
	StateFailed
)

func (s State) String() string {
	switch s {
	case StateConnecting:
		return "connecting"
	case StateOpen:
		return "open"
	case StateClosed:
		return "closed"
	case StateReconnecting:
		return "reconnecting"
	case StateFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// Status is a read-only snapshot handed to OnStateChange and returned by Status
type Status struct {
	State             State
	ReconnectAttempts int
	// Err is the last dial or connection error; nil while open
	Err error
}

type event int

const (
	evDialSucceeded event = iota
	evDialFailed
	evConnectionLost
	evRetryTimerFired
	evRestart
	evStop
)

func (e event) String() string {
	switch e {
	case evDialSucceeded:
		return "dial_succeeded"
	case evDialFailed:
		return "dial_failed"
	case evConnectionLost:
		return "connection_lost"
	case evRetryTimerFired:
		return "retry_timer_fired"
	case evRestart:
		return "restart"
	case evStop:
		return "stop"
	default:
		return "unknown"
	}
}

// machine is the transition table. It has no side effects; the transport loop
// performs the work implied by the state it lands in.
type machine struct {
	state       State
	attempts    int
	maxAttempts int
}

func newMachine(maxAttempts int) machine {
	return machine{state: StateConnecting, maxAttempts: maxAttempts}
}

// apply feeds ev into the machine and reports whether the state changed.
// Events that make no sense in the current state are ignored.
func (m *machine) apply(ev event) bool {
	if ev == evStop {
		if m.state == StateClosed {
			return false
		}
		m.state = StateClosed
		return true
	}

	switch m.state {
	case StateConnecting:
		switch ev {
		case evDialSucceeded:
			m.state = StateOpen
			m.attempts = 0
			return true
		case evDialFailed:
			m.state = m.afterFailure()
			return true
		}

	case StateOpen:
		if ev == evConnectionLost {
			m.state = m.afterFailure()
			return true
		}

	case StateReconnecting:
		switch ev {
		case evRetryTimerFired:
			m.attempts++
			m.state = StateConnecting
			return true
		case evRestart:
			m.attempts = 0
			m.state = StateConnecting
			return true
		}

	case StateFailed, StateClosed:
		if ev == evRestart {
			m.attempts = 0
			m.state = StateConnecting
			return true
		}
	}
	return false
}

func (m *machine) afterFailure() State {
	if m.attempts < m.maxAttempts {
		return StateReconnecting
	}
	return StateFailed
}
