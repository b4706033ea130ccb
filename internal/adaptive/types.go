// Copyright 2026 The ScribeFlow Authors. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

// Package adaptive implements the service selection and resilience layer for
// the writing-analysis operations. For each operation it decides which backing
// service handles it (MCP client, in-process direct analyzer, or static
// fallback), executes with per-attempt metrics, and fails over along a fixed
// chain when the chosen service fails.
package adaptive

import (
	"context"

	"github.com/scribeflow/scribeflow/internal/config"
)

// ServiceIdentity names one of the three backing analysis services.
type ServiceIdentity string

const (
	// ServiceMCP is the remote MCP-protocol analysis backend.
	ServiceMCP ServiceIdentity = "mcp"
	// ServiceDirect is the in-process analyzer.
	ServiceDirect ServiceIdentity = "direct"
	// ServiceFallback is the minimal heuristic implementation of last resort.
	ServiceFallback ServiceIdentity = "fallback"
)

// AllServices lists the fixed service set in fallback preference order.
func AllServices() []ServiceIdentity {
	return []ServiceIdentity{ServiceMCP, ServiceDirect, ServiceFallback}
}

// HealthStatus is a backing service's self-reported health.
type HealthStatus struct {
	// Healthy reports whether the service can currently serve operations.
	Healthy bool `json:"healthy"`

	// FallbackAvailable reports whether the service has an internal degraded
	// mode it can serve from even while unhealthy.
	FallbackAvailable bool `json:"fallback_available,omitempty"`

	// Error carries diagnostic detail when Healthy is false.
	Error string `json:"error,omitempty"`
}

// Adapter is the uniform contract each backing service implements. Operations
// must return an error on failure rather than a sentinel value in the result.
type Adapter interface {
	// Identity returns the fixed service identity of this adapter.
	Identity() ServiceIdentity

	// Execute runs one named operation with operation-specific parameters.
	Execute(ctx context.Context, operation string, params map[string]interface{}) (map[string]interface{}, error)

	// HealthCheck probes the service. A returned error is treated by the
	// manager exactly like an unhealthy status, never propagated to callers.
	HealthCheck(ctx context.Context) (*HealthStatus, error)
}

// Result is the outcome of one ExecuteOperation call, carrying the diagnostic
// trail route handlers surface to clients.
type Result struct {
	// Data is the operation-specific result object from the serving adapter.
	Data map[string]interface{} `json:"data"`

	// ServiceUsed is the service that ultimately produced Data.
	ServiceUsed ServiceIdentity `json:"service_used"`

	// Reasoning describes why the primary was chosen and any failover taken.
	Reasoning []string `json:"reasoning"`
}

// Operation names handled by the analysis services.
const (
	OpAnalyzeWritingPatterns     = "analyze_writing_patterns"
	OpEvaluateReflectionQuality  = "evaluate_reflection_quality"
	OpClassifyContentSensitivity = "classify_content_sensitivity"
	OpCheckAIBoundaries          = "check_ai_boundaries"
	OpGenerateAuditTrail         = "generate_audit_trail"
)

// operationCategories maps operation names to feature-flag categories.
// Operations absent from this map fail closed at the per-category flag check.
var operationCategories = map[string]config.Category{
	OpAnalyzeWritingPatterns:     config.CategoryWritingAnalysis,
	OpEvaluateReflectionQuality:  config.CategoryReflectionAnalysis,
	OpClassifyContentSensitivity: config.CategoryContentClassification,
	OpCheckAIBoundaries:          config.CategoryAIBoundaries,
	OpGenerateAuditTrail:         config.CategoryAuditTrails,
}

// OperationCategory resolves the flag category for an operation name.
func OperationCategory(operation string) (config.Category, bool) {
	c, ok := operationCategories[operation]
	return c, ok
}
