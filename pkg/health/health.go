// Package health tracks process readiness and serves liveness and readiness
// endpoints. Readiness also runs a probe, so a process whose session store
// is unreachable reports itself unready.
package health

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"sync/atomic"
	"time"
)

// State constants for the readiness state machine.
const (
	stateStarting int32 = iota
	stateReady
	stateDraining
)

// DefaultProbeTimeout bounds a single readiness check.
const DefaultProbeTimeout = 2 * time.Second

// Probe reports whether a dependency is usable.
type Probe func(ctx context.Context) error

// Checker tracks the readiness state of the process.
// It is safe for concurrent use.
type Checker struct {
	state   atomic.Int32
	probe   Probe
	timeout time.Duration
}

// NewChecker creates a Checker in the Starting state. probe may be nil.
func NewChecker(probe Probe) *Checker {
	return &Checker{probe: probe, timeout: DefaultProbeTimeout}
}

// SetReady transitions to the Ready state.
func (c *Checker) SetReady() {
	c.state.Store(stateReady)
}

// SetDraining transitions to the Draining state.
func (c *Checker) SetDraining() {
	c.state.Store(stateDraining)
}

// IsReady returns true when the state is Ready.
func (c *Checker) IsReady() bool {
	return c.state.Load() == stateReady
}

// State returns the current state as a human-readable string.
func (c *Checker) State() string {
	switch c.state.Load() {
	case stateReady:
		return "ready"
	case stateDraining:
		return "draining"
	default:
		return "starting"
	}
}

// Check returns nil when the checker is ready and the probe passes.
func (c *Checker) Check(ctx context.Context) error {
	if !c.IsReady() {
		return &notReadyError{state: c.State()}
	}
	if c.probe == nil {
		return nil
	}
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()
	return c.probe(ctx)
}

type notReadyError struct {
	state string
}

func (e *notReadyError) Error() string {
	return "health: " + e.state
}

// healthResponse is the JSON body returned by health endpoints.
type healthResponse struct {
	Status string `json:"status"`
	Error  string `json:"error,omitempty"`
}

// LivenessHandler returns an http.HandlerFunc that always responds 200 OK.
func (*Checker) LivenessHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, healthResponse{Status: "ok"})
	}
}

// ReadinessHandler returns an http.HandlerFunc that responds 200 when ready
// and every probe passes, and 503 otherwise.
func (c *Checker) ReadinessHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		err := c.Check(r.Context())
		if err == nil {
			writeJSON(w, http.StatusOK, healthResponse{Status: c.State()})
			return
		}

		resp := healthResponse{Status: c.State()}
		var notReady *notReadyError
		if !errors.As(err, &notReady) {
			slog.Warn("health: readiness probe failed", "error", err)
			resp.Status = "unavailable"
			resp.Error = err.Error()
		}
		writeJSON(w, http.StatusServiceUnavailable, resp)
	}
}

// Handler serves /healthz and /readyz.
func (c *Checker) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.Handle("GET /healthz", c.LivenessHandler())
	mux.Handle("GET /readyz", c.ReadinessHandler())
	return mux
}

func writeJSON(w http.ResponseWriter, code int, v healthResponse) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}
