// Copyright 2026 The ScribeFlow Authors. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

// Package resilience provides per-service circuit breaking for the backing
// analysis services. A circuit isolates one named dependency so persistent
// failures stop incurring request latency, and probes for recovery after a
// cool-down window.
package resilience

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	log "github.com/sirupsen/logrus"
)

// State represents the state of one circuit.
type State string

const (
	// StateClosed allows all requests through.
	StateClosed State = "CLOSED"
	// StateOpen blocks requests and serves the fallback immediately.
	StateOpen State = "OPEN"
	// StateHalfOpen lets requests through while counting successes toward recovery.
	StateHalfOpen State = "HALF_OPEN"
)

// ErrTimeout marks an attempt that exceeded the circuit's per-attempt timeout.
var ErrTimeout = errors.New("operation timed out")

// ErrCircuitOpen marks a request rejected because the circuit is open.
var ErrCircuitOpen = errors.New("circuit is open")

// Config holds the tuning knobs for one circuit. Zero-valued fields fall back
// to the defaults at registration; the config is immutable afterwards.
type Config struct {
	// FailureThreshold is the number of consecutive failures in CLOSED state
	// that opens the circuit.
	FailureThreshold int `json:"failure_threshold"`

	// RecoveryTimeout is how long an open circuit waits before the next call
	// is allowed through as a half-open probe.
	RecoveryTimeout time.Duration `json:"recovery_timeout"`

	// SuccessThreshold is the number of successes in HALF_OPEN state needed
	// to close the circuit again.
	SuccessThreshold int `json:"success_threshold"`

	// Timeout bounds a single operation attempt.
	Timeout time.Duration `json:"timeout"`
}

// DefaultConfig returns the standard circuit tuning.
func DefaultConfig() Config {
	return Config{
		FailureThreshold: 5,
		RecoveryTimeout:  30 * time.Second,
		SuccessThreshold: 3,
		Timeout:          10 * time.Second,
	}
}

func (c Config) withDefaults() Config {
	def := DefaultConfig()
	if c.FailureThreshold <= 0 {
		c.FailureThreshold = def.FailureThreshold
	}
	if c.RecoveryTimeout <= 0 {
		c.RecoveryTimeout = def.RecoveryTimeout
	}
	if c.SuccessThreshold <= 0 {
		c.SuccessThreshold = def.SuccessThreshold
	}
	if c.Timeout <= 0 {
		c.Timeout = def.Timeout
	}
	return c
}

// circuit is the mutable record for one protected service.
type circuit struct {
	name   string
	config Config

	state     State
	failures  int
	successes int

	lastFailureTime time.Time
	lastSuccessTime time.Time

	// Cumulative, never reset; reporting only.
	totalRequests int64
	totalFailures int64
}

// Status is a read-only snapshot of one circuit.
type Status struct {
	Name            string    `json:"name"`
	State           State     `json:"state"`
	Failures        int       `json:"failures"`
	Successes       int       `json:"successes"`
	LastFailureTime time.Time `json:"last_failure_time,omitzero"`
	LastSuccessTime time.Time `json:"last_success_time,omitzero"`
	TotalRequests   int64     `json:"total_requests"`
	TotalFailures   int64     `json:"total_failures"`
	Config          Config    `json:"config"`
}

// Operation is a unit of work protected by a circuit.
type Operation func(ctx context.Context) (interface{}, error)

// Breaker manages one circuit per registered service name.
type Breaker struct {
	mu       sync.Mutex
	circuits map[string]*circuit
}

// NewBreaker creates an empty breaker. Circuits must be registered before use.
func NewBreaker() *Breaker {
	return &Breaker{circuits: make(map[string]*circuit)}
}

// RegisterCircuit creates the circuit for a service name. Registration is
// idempotent; a second call for the same name leaves the existing circuit and
// its state untouched.
func (b *Breaker) RegisterCircuit(name string, cfg Config) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if _, ok := b.circuits[name]; ok {
		return
	}
	b.circuits[name] = &circuit{
		name:   name,
		config: cfg.withDefaults(),
		state:  StateClosed,
	}
}

// Execute runs op under the named circuit. When the circuit is open, or when
// op fails, the fallback is invoked instead (if non-nil). A failure of both op
// and fallback yields an aggregate error naming the service. Failures across
// services are the selection manager's concern; the breaker never retries.
func (b *Breaker) Execute(ctx context.Context, name string, op Operation, fallback Operation) (interface{}, error) {
	b.mu.Lock()
	c, ok := b.circuits[name]
	if !ok {
		b.mu.Unlock()
		return nil, fmt.Errorf("resilience: circuit %q not registered", name)
	}

	c.totalRequests++
	allowed := true
	if c.state == StateOpen {
		if time.Since(c.lastFailureTime) >= c.config.RecoveryTimeout {
			b.transitionLocked(c, StateHalfOpen)
			c.successes = 0
		} else {
			allowed = false
		}
	}
	timeout := c.config.Timeout
	b.mu.Unlock()

	if !allowed {
		if fallback == nil {
			return nil, fmt.Errorf("%s: %w", name, ErrCircuitOpen)
		}
		result, err := fallback(ctx)
		if err != nil {
			return nil, fmt.Errorf("%s: circuit open and fallback failed: %w", name, err)
		}
		return result, nil
	}

	result, opErr := b.runWithTimeout(ctx, name, timeout, op)
	if opErr == nil {
		b.onSuccess(c)
		return result, nil
	}
	b.onFailure(c)

	if fallback == nil {
		return nil, opErr
	}
	fbResult, fbErr := fallback(ctx)
	if fbErr != nil {
		return nil, fmt.Errorf("%s: operation failed (%v) and fallback failed: %w", name, opErr, fbErr)
	}
	return fbResult, nil
}

// runWithTimeout races op against the circuit's timeout. The operation is not
// aborted on timeout, only abandoned; it finishes in the background.
func (b *Breaker) runWithTimeout(ctx context.Context, name string, timeout time.Duration, op Operation) (interface{}, error) {
	type opResult struct {
		value interface{}
		err   error
	}

	ch := make(chan opResult, 1)
	go func() {
		defer func() {
			if r := recover(); r != nil {
				ch <- opResult{err: fmt.Errorf("%s: panic in operation: %v", name, r)}
			}
		}()
		value, err := op(ctx)
		ch <- opResult{value: value, err: err}
	}()

	timer := time.NewTimer(timeout)
	defer timer.Stop()

	select {
	case r := <-ch:
		return r.value, r.err
	case <-timer.C:
		return nil, fmt.Errorf("%s: %w after %s", name, ErrTimeout, timeout)
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func (b *Breaker) onSuccess(c *circuit) {
	b.mu.Lock()
	defer b.mu.Unlock()

	c.lastSuccessTime = time.Now()
	if c.state == StateHalfOpen {
		c.successes++
		if c.successes >= c.config.SuccessThreshold {
			b.transitionLocked(c, StateClosed)
			c.failures = 0
			c.successes = 0
		}
	}
}

func (b *Breaker) onFailure(c *circuit) {
	b.mu.Lock()
	defer b.mu.Unlock()

	c.failures++
	c.totalFailures++
	c.lastFailureTime = time.Now()

	switch c.state {
	case StateHalfOpen:
		b.transitionLocked(c, StateOpen)
		c.successes = 0
	case StateClosed:
		if c.failures >= c.config.FailureThreshold {
			b.transitionLocked(c, StateOpen)
		}
	}
}

func (b *Breaker) transitionLocked(c *circuit, to State) {
	if c.state == to {
		return
	}
	log.Infof("Circuit %s: %s -> %s", c.name, c.state, to)
	c.state = to
}

// GetCircuitStatus returns a snapshot for one circuit, or nil if unregistered.
func (b *Breaker) GetCircuitStatus(name string) *Status {
	b.mu.Lock()
	defer b.mu.Unlock()

	c, ok := b.circuits[name]
	if !ok {
		return nil
	}
	return statusLocked(c)
}

// GetAllCircuitsStatus returns snapshots for every registered circuit.
func (b *Breaker) GetAllCircuitsStatus() map[string]*Status {
	b.mu.Lock()
	defer b.mu.Unlock()

	out := make(map[string]*Status, len(b.circuits))
	for name, c := range b.circuits {
		out[name] = statusLocked(c)
	}
	return out
}

func statusLocked(c *circuit) *Status {
	return &Status{
		Name:            c.name,
		State:           c.state,
		Failures:        c.failures,
		Successes:       c.successes,
		LastFailureTime: c.lastFailureTime,
		LastSuccessTime: c.lastSuccessTime,
		TotalRequests:   c.totalRequests,
		TotalFailures:   c.totalFailures,
		Config:          c.config,
	}
}

// ResetCircuit forces a circuit back to CLOSED with per-state counters zeroed.
// Cumulative totals are preserved. Returns false if the name is unregistered.
func (b *Breaker) ResetCircuit(name string) bool {
	b.mu.Lock()
	defer b.mu.Unlock()

	c, ok := b.circuits[name]
	if !ok {
		return false
	}
	b.transitionLocked(c, StateClosed)
	c.failures = 0
	c.successes = 0
	return true
}

// ForceOpen trips a circuit open, for operator use during incidents.
// Returns false if the name is unregistered.
func (b *Breaker) ForceOpen(name string) bool {
	b.mu.Lock()
	defer b.mu.Unlock()

	c, ok := b.circuits[name]
	if !ok {
		return false
	}
	b.transitionLocked(c, StateOpen)
	c.lastFailureTime = time.Now()
	return true
}

// GetStats returns aggregate counts across all registered circuits.
func (b *Breaker) GetStats() map[string]interface{} {
	b.mu.Lock()
	defer b.mu.Unlock()

	var totalRequests, totalFailures int64
	states := map[State]int{}
	for _, c := range b.circuits {
		totalRequests += c.totalRequests
		totalFailures += c.totalFailures
		states[c.state]++
	}

	return map[string]interface{}{
		"total_circuits":     len(b.circuits),
		"closed_circuits":    states[StateClosed],
		"open_circuits":      states[StateOpen],
		"half_open_circuits": states[StateHalfOpen],
		"total_requests":     totalRequests,
		"total_failures":     totalFailures,
	}
}
