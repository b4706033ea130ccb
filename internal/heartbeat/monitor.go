// Copyright 2026 The ScribeFlow Authors. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

// Package heartbeat provides optional background monitoring of the backing
// analysis services. The selection manager already probes MCP health on every
// operation call; the monitor exists for operator visibility between requests
// and logs status transitions as they happen.
package heartbeat

import (
	"context"
	"fmt"
	"sync"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/scribeflow/scribeflow/internal/adaptive"
	"github.com/scribeflow/scribeflow/internal/config"
)

// ServiceState summarizes one service's last observed health.
type ServiceState string

const (
	// StateHealthy indicates the service is fully operational.
	StateHealthy ServiceState = "healthy"

	// StateDegraded indicates the service reports unhealthy but can still
	// serve from its own degraded mode.
	StateDegraded ServiceState = "degraded"

	// StateUnavailable indicates the service is not usable.
	StateUnavailable ServiceState = "unavailable"
)

// Status is the last recorded health observation for one service.
type Status struct {
	Service      adaptive.ServiceIdentity `json:"service"`
	State        ServiceState             `json:"state"`
	LastCheck    time.Time                `json:"last_check"`
	ResponseTime time.Duration            `json:"response_time"`
	Error        string                   `json:"error,omitempty"`
}

// Stats aggregates monitor activity since start.
type Stats struct {
	StartTime        time.Time `json:"start_time"`
	TotalCycles      int64     `json:"total_cycles"`
	TotalChecks      int64     `json:"total_checks"`
	SuccessfulChecks int64     `json:"successful_checks"`
	FailedChecks     int64     `json:"failed_checks"`
}

// Monitor periodically health-checks a set of adapters.
type Monitor struct {
	cfg      config.HeartbeatConfig
	adapters []adaptive.Adapter

	mu       sync.RWMutex
	statuses map[adaptive.ServiceIdentity]*Status
	stats    Stats
	running  bool

	cancel context.CancelFunc
	done   chan struct{}
}

// NewMonitor creates a monitor over the given adapters.
func NewMonitor(cfg config.HeartbeatConfig, adapters ...adaptive.Adapter) *Monitor {
	return &Monitor{
		cfg:      cfg,
		adapters: adapters,
		statuses: make(map[adaptive.ServiceIdentity]*Status, len(adapters)),
	}
}

// Start begins the monitoring loop. It fails if monitoring is disabled in the
// configuration or the monitor is already running.
func (m *Monitor) Start(ctx context.Context) error {
	m.mu.Lock()
	if !m.cfg.Enabled {
		m.mu.Unlock()
		return fmt.Errorf("heartbeat monitoring is disabled")
	}
	if m.running {
		m.mu.Unlock()
		return fmt.Errorf("heartbeat monitor is already running")
	}

	ctx, m.cancel = context.WithCancel(ctx)
	m.done = make(chan struct{})
	m.stats = Stats{StartTime: time.Now()}
	m.running = true
	m.mu.Unlock()

	log.Infof("Heartbeat monitor started, interval %s", m.cfg.Interval)
	go m.loop(ctx)

	// Initial check so statuses are populated before the first tick.
	go m.CheckAll(ctx)

	return nil
}

// Stop shuts the monitor down and waits for the loop to exit.
func (m *Monitor) Stop() {
	m.mu.Lock()
	if !m.running {
		m.mu.Unlock()
		return
	}
	m.running = false
	cancel, done := m.cancel, m.done
	m.mu.Unlock()

	cancel()
	select {
	case <-done:
	case <-time.After(5 * time.Second):
		log.Warn("Heartbeat monitor stop timed out waiting for loop")
	}
}

func (m *Monitor) loop(ctx context.Context) {
	defer close(m.done)

	ticker := time.NewTicker(m.cfg.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			m.CheckAll(ctx)
			m.mu.Lock()
			m.stats.TotalCycles++
			m.mu.Unlock()
		}
	}
}

// CheckAll health-checks every adapter once, updating statuses and logging
// state transitions.
func (m *Monitor) CheckAll(ctx context.Context) {
	var wg sync.WaitGroup
	for _, adapter := range m.adapters {
		wg.Add(1)
		go func(a adaptive.Adapter) {
			defer wg.Done()
			m.checkOne(ctx, a)
		}(adapter)
	}
	wg.Wait()
}

func (m *Monitor) checkOne(ctx context.Context, adapter adaptive.Adapter) {
	checkCtx, cancel := context.WithTimeout(ctx, m.cfg.Timeout)
	defer cancel()

	start := time.Now()
	health, err := adapter.HealthCheck(checkCtx)
	elapsed := time.Since(start)

	status := &Status{
		Service:      adapter.Identity(),
		LastCheck:    time.Now(),
		ResponseTime: elapsed,
	}
	switch {
	case err != nil:
		status.State = StateUnavailable
		status.Error = err.Error()
	case health.Healthy:
		status.State = StateHealthy
	case health.FallbackAvailable:
		status.State = StateDegraded
		status.Error = health.Error
	default:
		status.State = StateUnavailable
		status.Error = health.Error
	}

	m.mu.Lock()
	previous := m.statuses[status.Service]
	m.statuses[status.Service] = status
	m.stats.TotalChecks++
	if status.State == StateHealthy {
		m.stats.SuccessfulChecks++
	} else {
		m.stats.FailedChecks++
	}
	m.mu.Unlock()

	if previous == nil || previous.State != status.State {
		if status.State == StateHealthy {
			log.Infof("Service %s is %s", status.Service, status.State)
		} else {
			log.Warnf("Service %s is %s: %s", status.Service, status.State, status.Error)
		}
	}
}

// Statuses returns copies of the last observation for every checked service.
func (m *Monitor) Statuses() map[adaptive.ServiceIdentity]Status {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make(map[adaptive.ServiceIdentity]Status, len(m.statuses))
	for svc, status := range m.statuses {
		out[svc] = *status
	}
	return out
}

// GetStats returns a copy of the monitor's aggregate counters.
func (m *Monitor) GetStats() Stats {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.stats
}

// IsRunning reports whether the monitoring loop is active.
func (m *Monitor) IsRunning() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.running
}
