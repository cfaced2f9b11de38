package health

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/rs/zerolog/log"
)

var componentUp = promauto.NewGaugeVec(prometheus.GaugeOpts{
	Name: "muyu_component_up",
	Help: "Whether a dependency passed its last health check",
}, []string{"component"})

// Status is the result of one health check round
type Status struct {
	Healthy    bool            `json:"healthy"`
	Components map[string]bool `json:"components"`
	Errors     []string        `json:"errors"`
	CheckedAt  time.Time       `json:"checked_at"`
}

// CheckFunc reports a dependency as down by returning an error
type CheckFunc func(ctx context.Context) error

type component struct {
	name  string
	check CheckFunc
}

// Checker runs the registered component checks
type Checker struct {
	components []component
	timeout    time.Duration
}

// NewChecker creates a checker whose round is bounded by timeout
func NewChecker(timeout time.Duration) *Checker {
	return &Checker{timeout: timeout}
}

// Add registers a named check
func (c *Checker) Add(name string, check CheckFunc) *Checker {
	c.components = append(c.components, component{name: name, check: check})
	return c
}

// Check runs every component check in registration order
func (c *Checker) Check(ctx context.Context) Status {
	if c.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.timeout)
		defer cancel()
	}

	status := Status{
		Healthy:    true,
		Components: make(map[string]bool, len(c.components)),
		Errors:     []string{},
		CheckedAt:  time.Now().UTC(),
	}

	for _, comp := range c.components {
		err := comp.check(ctx)
		up := err == nil
		status.Components[comp.name] = up
		if up {
			componentUp.WithLabelValues(comp.name).Set(1)
			continue
		}
		componentUp.WithLabelValues(comp.name).Set(0)
		status.Healthy = false
		status.Errors = append(status.Errors, fmt.Sprintf("%s: %v", comp.name, err))
	}
	return status
}

// ServeHTTP writes the status as JSON, 503 when any component is down
func (c *Checker) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	status := c.Check(r.Context())

	w.Header().Set("Content-Type", "application/json")
	if !status.Healthy {
		log.Warn().Strs("errors", status.Errors).Msg("health check failed")
		w.WriteHeader(http.StatusServiceUnavailable)
	}
	if err := json.NewEncoder(w).Encode(status); err != nil {
		log.Error().Err(err).Msg("failed to encode health status")
	}
}

// ContextPinger is satisfied by *sql.DB
type ContextPinger interface {
	PingContext(ctx context.Context) error
}

// Pinger is satisfied by *pgxpool.Pool
type Pinger interface {
	Ping(ctx context.Context) error
}

// Connected is satisfied by broker connections that track their link state
type Connected interface {
	IsConnected() bool
}

// SQL checks a database/sql handle
func SQL(db ContextPinger) CheckFunc {
	return db.PingContext
}

// Pool checks a pgx pool
func Pool(p Pinger) CheckFunc {
	return p.Ping
}

// Broker checks a message broker connection
func Broker(c Connected) CheckFunc {
	return func(context.Context) error {
		if !c.IsConnected() {
			return errors.New("disconnected")
		}
		return nil
	}
}
