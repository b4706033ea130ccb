// Copyright 2026 The ScribeFlow Authors. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

// Package metrics maintains rolling per-service performance signals used by
// the adaptive selection manager for routing decisions.
package metrics

import (
	"sync"
	"time"
)

// ServiceMetrics is the rolling performance record for one backing service.
type ServiceMetrics struct {
	// ResponseTimeMs is an exponentially smoothed rolling average. Each new
	// sample is folded in as (old + sample) / 2, so recent samples dominate
	// quickly. The recurrence is load-bearing for routing thresholds; do not
	// swap it for a plain mean or a tunable EMA.
	ResponseTimeMs float64 `json:"response_time_ms"`

	// SuccessRate is (requestCount - failureCount) / requestCount, in [0,1].
	// Starts at 1.0 before any attempt has been recorded.
	SuccessRate float64 `json:"success_rate"`

	// RequestCount and FailureCount are cumulative and only reset by an
	// explicit administrative reset.
	RequestCount int64 `json:"request_count"`
	FailureCount int64 `json:"failure_count"`

	// LastError holds the most recent failure only; overwritten, not accumulated.
	LastError     string    `json:"last_error,omitempty"`
	LastErrorTime time.Time `json:"last_error_time,omitzero"`
}

// Tracker keeps one ServiceMetrics record per registered service.
// All mutation happens under the tracker lock; RecordAttempt may be called
// concurrently for the same service from overlapping requests.
type Tracker struct {
	mu       sync.RWMutex
	services map[string]*ServiceMetrics
	exporter *Exporter
}

// NewTracker creates a tracker with a fresh record for each named service.
func NewTracker(services ...string) *Tracker {
	t := &Tracker{services: make(map[string]*ServiceMetrics, len(services))}
	for _, s := range services {
		t.services[s] = freshMetrics()
	}
	return t
}

func freshMetrics() *ServiceMetrics {
	return &ServiceMetrics{SuccessRate: 1.0}
}

// SetExporter attaches a Prometheus exporter; nil detaches it.
func (t *Tracker) SetExporter(e *Exporter) {
	t.mu.Lock()
	t.exporter = e
	t.mu.Unlock()
}

// RecordAttempt folds one attempt outcome into the service's rolling record.
// Unknown services are ignored; the service set is fixed at construction.
func (t *Tracker) RecordAttempt(service string, responseTimeMs float64, success bool, errMsg string) {
	t.mu.Lock()
	defer t.mu.Unlock()

	m, ok := t.services[service]
	if !ok {
		return
	}

	m.RequestCount++
	if !success {
		m.FailureCount++
		m.LastError = errMsg
		m.LastErrorTime = time.Now()
	}
	m.SuccessRate = float64(m.RequestCount-m.FailureCount) / float64(m.RequestCount)
	m.ResponseTimeMs = (m.ResponseTimeMs + responseTimeMs) / 2

	if t.exporter != nil {
		t.exporter.observe(service, responseTimeMs, success)
	}
}

// Snapshot returns a read-only copy of one service's record, or a zero-value
// fresh record for unknown services.
func (t *Tracker) Snapshot(service string) ServiceMetrics {
	t.mu.RLock()
	defer t.mu.RUnlock()

	if m, ok := t.services[service]; ok {
		return *m
	}
	return *freshMetrics()
}

// SnapshotAll returns read-only copies for every registered service.
func (t *Tracker) SnapshotAll() map[string]ServiceMetrics {
	t.mu.RLock()
	defer t.mu.RUnlock()

	out := make(map[string]ServiceMetrics, len(t.services))
	for name, m := range t.services {
		out[name] = *m
	}
	return out
}

// ResetAll restores every record to its initial state: success rate 1.0,
// zero counts, no last error.
func (t *Tracker) ResetAll() {
	t.mu.Lock()
	defer t.mu.Unlock()

	for name := range t.services {
		t.services[name] = freshMetrics()
	}
}
