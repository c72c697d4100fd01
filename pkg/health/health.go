// Package health tracks the backend's readiness and serves the probe
// endpoints the display frontend polls during boot.
package health

import (
	"encoding/json"
	"net/http"
	"sync/atomic"
)

// Readiness state machine: starting until the caches are restored and the
// refresh loops are running, draining once shutdown begins.
const (
	stateStarting int32 = iota
	stateReady
	stateDraining
)

// ServiceStatus describes one external service in the readiness payload.
type ServiceStatus struct {
	State     string `json:"state"`
	LastError string `json:"last_error,omitempty"`
}

// StatusFunc supplies the per-service detail for the readiness body. Nil is
// fine; the payload then carries only the overall state.
type StatusFunc func() map[string]ServiceStatus

// Checker tracks backend readiness. Safe for concurrent use.
type Checker struct {
	state    atomic.Int32
	version  string
	services StatusFunc
}

// NewChecker creates a Checker in the starting state.
func NewChecker(version string, services StatusFunc) *Checker {
	return &Checker{version: version, services: services}
}

// SetReady transitions to the ready state.
func (c *Checker) SetReady() {
	c.state.Store(stateReady)
}

// SetDraining transitions to the draining state.
func (c *Checker) SetDraining() {
	c.state.Store(stateDraining)
}

// IsReady returns true when the state is ready.
func (c *Checker) IsReady() bool {
	return c.state.Load() == stateReady
}

// State returns the current state as a string for logs and payloads.
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

type healthBody struct {
	Status   string                   `json:"status"`
	Version  string                   `json:"version,omitempty"`
	Services map[string]ServiceStatus `json:"services,omitempty"`
}

// LivenessHandler always answers 200; the process being up is the check.
func (c *Checker) LivenessHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, healthBody{Status: "ok", Version: c.version})
	}
}

// ReadinessHandler answers 200 once ready and 503 while starting or
// draining. The body carries the per-service session states either way, so
// the frontend can show which backend connection is still pending.
func (c *Checker) ReadinessHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, _ *http.Request) {
		body := healthBody{Status: c.State(), Version: c.version}
		if c.services != nil {
			body.Services = c.services()
		}

		code := http.StatusOK
		if !c.IsReady() {
			code = http.StatusServiceUnavailable
		}
		writeJSON(w, code, body)
	}
}

func writeJSON(w http.ResponseWriter, code int, v healthBody) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}
