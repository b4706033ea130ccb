// Copyright 2026 The ScribeFlow Authors. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package adaptive

import (
	"context"
	"fmt"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/scribeflow/scribeflow/internal/config"
	"github.com/scribeflow/scribeflow/internal/metrics"
	"github.com/scribeflow/scribeflow/internal/resilience"
)

// Routing thresholds for the MCP backend. These are operator-visible tunables
// that downstream configuration and tests depend on; change them in lockstep
// with the management API documentation.
const (
	minMCPSuccessRate    = 0.8
	maxMCPResponseTimeMs = 5000
)

// maxFallbackAttempts caps failover attempts per call, across all services,
// not per service.
const maxFallbackAttempts = 2

// fallbackOrder is the fixed failover chain per primary service.
var fallbackOrder = map[ServiceIdentity][]ServiceIdentity{
	ServiceMCP:      {ServiceDirect, ServiceFallback},
	ServiceDirect:   {ServiceFallback},
	ServiceFallback: {},
}

// Manager orchestrates service selection, execution, and failover for the
// writing-analysis operations. One instance is shared process-wide; all of
// its dependencies are injected at construction.
type Manager struct {
	flags    *config.FeatureFlags
	tracker  *metrics.Tracker
	breaker  *resilience.Breaker
	adapters map[ServiceIdentity]Adapter
}

// NewManager wires the manager to its collaborators and registers a circuit
// for each backing service. Aggressive fallback tightens the MCP failure
// threshold so the circuit trips sooner; overrides from the config file win
// over both.
func NewManager(
	flags *config.FeatureFlags,
	tracker *metrics.Tracker,
	breaker *resilience.Breaker,
	mcp, direct, fallback Adapter,
	circuitOverrides map[string]config.CircuitBreakerConfig,
) *Manager {
	m := &Manager{
		flags:   flags,
		tracker: tracker,
		breaker: breaker,
		adapters: map[ServiceIdentity]Adapter{
			ServiceMCP:      mcp,
			ServiceDirect:   direct,
			ServiceFallback: fallback,
		},
	}

	aggressive := flags.Snapshot().AggressiveFallback
	for _, svc := range AllServices() {
		cfg := resilience.Config{}
		if svc == ServiceMCP && aggressive {
			cfg.FailureThreshold = 3
		}
		if ov, ok := circuitOverrides[string(svc)]; ok {
			cfg = resilience.Config{
				FailureThreshold: ov.FailureThreshold,
				RecoveryTimeout:  ov.RecoveryTimeout,
				SuccessThreshold: ov.SuccessThreshold,
				Timeout:          ov.Timeout,
			}
		}
		breaker.RegisterCircuit(string(svc), cfg)
	}

	return m
}

// ExecuteOperation decides a primary service for the operation, executes it,
// and on failure walks the fixed fallback chain, recording metrics for every
// attempt. Only the exhausted-fallback condition surfaces to the caller.
func (m *Manager) ExecuteOperation(ctx context.Context, operation string, params map[string]interface{}) (*Result, error) {
	flags := m.flags.Snapshot()
	reasoning := make([]string, 0, 4)
	primary := m.selectPrimary(ctx, operation, flags, &reasoning)

	chain := make([]ServiceIdentity, 0, 3)
	chain = append(chain, primary)
	for _, svc := range fallbackOrder[primary] {
		if svc == ServiceFallback && !flags.AllowFallbackServices {
			reasoning = append(reasoning, "Fallback service excluded by feature flags")
			continue
		}
		chain = append(chain, svc)
	}

	var lastErr error
	fallbacksUsed := 0
	for i, svc := range chain {
		if i > 0 {
			if fallbacksUsed >= maxFallbackAttempts {
				break
			}
			fallbacksUsed++
		}

		data, err := m.attempt(ctx, svc, operation, params, flags.CircuitBreakerEnabled)
		if err == nil {
			if i > 0 {
				reasoning = append(reasoning, fmt.Sprintf("Primary %s failed, using %s", primary, svc))
			}
			log.Debugf("Operation %s served by %s", operation, svc)
			return &Result{Data: data, ServiceUsed: svc, Reasoning: reasoning}, nil
		}

		lastErr = err
		log.Warnf("Service %s failed for operation %s: %v", svc, operation, err)
	}

	if lastErr == nil {
		lastErr = fmt.Errorf("no services available")
	}
	return nil, fmt.Errorf("operation %s failed across all services: %w", operation, lastErr)
}

// selectPrimary evaluates the routing rules in order; the first matching rule
// decides the primary service and appends its reasoning entry.
func (m *Manager) selectPrimary(ctx context.Context, operation string, flags config.FlagSet, reasoning *[]string) ServiceIdentity {
	if !flags.MCPActive() {
		*reasoning = append(*reasoning, "MCP integration disabled by feature flags")
		return ServiceDirect
	}

	// The MCP adapter is probed on every call rather than relying on cached
	// state; the metrics below can lag a flapping server by several requests.
	health, err := m.adapters[ServiceMCP].HealthCheck(ctx)
	if err != nil {
		*reasoning = append(*reasoning, fmt.Sprintf("MCP health check failed: %v", err))
		return ServiceDirect
	}
	if !health.Healthy && !health.FallbackAvailable {
		*reasoning = append(*reasoning, "MCP server unhealthy with no fallback capability")
		return ServiceDirect
	}

	mcpMetrics := m.tracker.Snapshot(string(ServiceMCP))
	if mcpMetrics.SuccessRate < minMCPSuccessRate {
		*reasoning = append(*reasoning, fmt.Sprintf("MCP success rate %.2f below %.2f threshold", mcpMetrics.SuccessRate, minMCPSuccessRate))
		return ServiceDirect
	}
	if mcpMetrics.ResponseTimeMs > maxMCPResponseTimeMs {
		*reasoning = append(*reasoning, fmt.Sprintf("MCP average response time %.0fms above %dms threshold", mcpMetrics.ResponseTimeMs, maxMCPResponseTimeMs))
		return ServiceDirect
	}

	category, ok := OperationCategory(operation)
	if !ok || !flags.ShouldUseMCP(category) {
		*reasoning = append(*reasoning, fmt.Sprintf("MCP disabled for operation %s by feature flags", operation))
		return ServiceDirect
	}

	*reasoning = append(*reasoning, "MCP healthy and performing within thresholds")
	return ServiceMCP
}

// attempt executes one adapter, timing it and recording the outcome in the
// metrics tracker win or lose. With the circuit breaker enabled an open
// circuit fails the attempt immediately so the chain moves on.
func (m *Manager) attempt(ctx context.Context, svc ServiceIdentity, operation string, params map[string]interface{}, useBreaker bool) (map[string]interface{}, error) {
	adapter := m.adapters[svc]
	start := time.Now()

	var data map[string]interface{}
	var err error
	if useBreaker {
		var value interface{}
		value, err = m.breaker.Execute(ctx, string(svc), func(ctx context.Context) (interface{}, error) {
			return adapter.Execute(ctx, operation, params)
		}, nil)
		if err == nil {
			data, _ = value.(map[string]interface{})
		}
	} else {
		data, err = adapter.Execute(ctx, operation, params)
	}

	elapsed := float64(time.Since(start).Milliseconds())
	errMsg := ""
	if err != nil {
		errMsg = err.Error()
	}
	m.tracker.RecordAttempt(string(svc), elapsed, err == nil, errMsg)

	return data, err
}

// HealthStatus aggregates health-check results from all three adapters plus
// current metrics and flag configuration. It never returns an error; failed
// probes degrade to unhealthy entries.
func (m *Manager) HealthStatus(ctx context.Context) map[string]interface{} {
	services := make(map[string]interface{}, len(m.adapters))
	for svc, adapter := range m.adapters {
		status, err := adapter.HealthCheck(ctx)
		if err != nil {
			status = &HealthStatus{Healthy: false, Error: err.Error()}
		}
		services[string(svc)] = status
	}

	return map[string]interface{}{
		"services": services,
		"metrics":  m.tracker.SnapshotAll(),
		"flags":    m.flags.Snapshot(),
		"circuits": m.breaker.GetAllCircuitsStatus(),
	}
}

// PerformanceMetrics returns a read-only dump of the per-service metrics.
func (m *Manager) PerformanceMetrics() map[string]metrics.ServiceMetrics {
	return m.tracker.SnapshotAll()
}

// ResetMetrics restores all service metrics to their initial state.
func (m *Manager) ResetMetrics() {
	m.tracker.ResetAll()
	log.Info("Service metrics reset")
}

// UpdateFlags merges a partial flag update into the live flag gate.
func (m *Manager) UpdateFlags(update config.FlagUpdate) {
	m.flags.Apply(update)
}
