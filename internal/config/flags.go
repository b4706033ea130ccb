// Copyright 2026 The ScribeFlow Authors. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package config

import (
	"fmt"
	"os"
	"sync"
)

// Category identifies a fine-grained analysis operation category that can be
// individually routed to or away from the MCP backend.
type Category string

const (
	CategoryWritingAnalysis       Category = "writing_analysis"
	CategoryReflectionAnalysis    Category = "reflection_analysis"
	CategoryContentClassification Category = "content_classification"
	CategoryAIBoundaries          Category = "ai_boundaries"
	CategoryAuditTrails           Category = "audit_trails"
)

// FlagSet is one immutable snapshot of the feature flag configuration.
// Per-category flags control whether the MCP backend may serve that category;
// the remaining flags tune the resilience behavior around it.
type FlagSet struct {
	MCPWritingAnalysis       bool `yaml:"mcp-writing-analysis" json:"mcp_writing_analysis"`
	MCPReflectionAnalysis    bool `yaml:"mcp-reflection-analysis" json:"mcp_reflection_analysis"`
	MCPContentClassification bool `yaml:"mcp-content-classification" json:"mcp_content_classification"`
	MCPAIBoundaries          bool `yaml:"mcp-ai-boundaries" json:"mcp_ai_boundaries"`
	MCPAuditTrails           bool `yaml:"mcp-audit-trails" json:"mcp_audit_trails"`

	AllowFallbackServices bool `yaml:"allow-fallback-services" json:"allow_fallback_services"`
	RequireMCPForInsights bool `yaml:"require-mcp-for-insights" json:"require_mcp_for_insights"`
	StrictPrivacyMode     bool `yaml:"strict-privacy-mode" json:"strict_privacy_mode"`
	CircuitBreakerEnabled bool `yaml:"circuit-breaker-enabled" json:"circuit_breaker_enabled"`
	AggressiveFallback    bool `yaml:"aggressive-fallback" json:"aggressive_fallback"`
	DebugLogging          bool `yaml:"debug-logging" json:"debug_logging"`
}

// MCPActive reports whether any MCP-backed analysis category is enabled.
func (f FlagSet) MCPActive() bool {
	return f.MCPWritingAnalysis || f.MCPReflectionAnalysis ||
		f.MCPContentClassification || f.MCPAIBoundaries || f.MCPAuditTrails
}

// ShouldUseMCP returns the per-category MCP flag. Unknown categories return
// false so that an unmapped operation never silently routes to MCP.
func (f FlagSet) ShouldUseMCP(category Category) bool {
	switch category {
	case CategoryWritingAnalysis:
		return f.MCPWritingAnalysis
	case CategoryReflectionAnalysis:
		return f.MCPReflectionAnalysis
	case CategoryContentClassification:
		return f.MCPContentClassification
	case CategoryAIBoundaries:
		return f.MCPAIBoundaries
	case CategoryAuditTrails:
		return f.MCPAuditTrails
	default:
		return false
	}
}

// FlagUpdate is a partial flag mutation; nil fields are left unchanged.
type FlagUpdate struct {
	MCPWritingAnalysis       *bool `json:"mcp_writing_analysis,omitempty"`
	MCPReflectionAnalysis    *bool `json:"mcp_reflection_analysis,omitempty"`
	MCPContentClassification *bool `json:"mcp_content_classification,omitempty"`
	MCPAIBoundaries          *bool `json:"mcp_ai_boundaries,omitempty"`
	MCPAuditTrails           *bool `json:"mcp_audit_trails,omitempty"`

	AllowFallbackServices *bool `json:"allow_fallback_services,omitempty"`
	RequireMCPForInsights *bool `json:"require_mcp_for_insights,omitempty"`
	StrictPrivacyMode     *bool `json:"strict_privacy_mode,omitempty"`
	CircuitBreakerEnabled *bool `json:"circuit_breaker_enabled,omitempty"`
	AggressiveFallback    *bool `json:"aggressive_fallback,omitempty"`
	DebugLogging          *bool `json:"debug_logging,omitempty"`
}

// FeatureFlags is the runtime-mutable flag gate shared across the process.
// Reads take a snapshot; writes replace individual fields under the lock.
type FeatureFlags struct {
	mu sync.RWMutex
	v  FlagSet
}

// NewFeatureFlags creates a flag gate with the given initial flag set.
func NewFeatureFlags(initial FlagSet) *FeatureFlags {
	return &FeatureFlags{v: initial}
}

// Snapshot returns a copy of the current flag set.
func (ff *FeatureFlags) Snapshot() FlagSet {
	ff.mu.RLock()
	defer ff.mu.RUnlock()
	return ff.v
}

// ShouldUseMCP reports the per-category flag for the current flag set.
func (ff *FeatureFlags) ShouldUseMCP(category Category) bool {
	return ff.Snapshot().ShouldUseMCP(category)
}

// Apply merges a partial update into the current flag set.
func (ff *FeatureFlags) Apply(update FlagUpdate) {
	ff.mu.Lock()
	defer ff.mu.Unlock()

	set := func(dst *bool, src *bool) {
		if src != nil {
			*dst = *src
		}
	}

	set(&ff.v.MCPWritingAnalysis, update.MCPWritingAnalysis)
	set(&ff.v.MCPReflectionAnalysis, update.MCPReflectionAnalysis)
	set(&ff.v.MCPContentClassification, update.MCPContentClassification)
	set(&ff.v.MCPAIBoundaries, update.MCPAIBoundaries)
	set(&ff.v.MCPAuditTrails, update.MCPAuditTrails)
	set(&ff.v.AllowFallbackServices, update.AllowFallbackServices)
	set(&ff.v.RequireMCPForInsights, update.RequireMCPForInsights)
	set(&ff.v.StrictPrivacyMode, update.StrictPrivacyMode)
	set(&ff.v.CircuitBreakerEnabled, update.CircuitBreakerEnabled)
	set(&ff.v.AggressiveFallback, update.AggressiveFallback)
	set(&ff.v.DebugLogging, update.DebugLogging)
}

// Enable turns on the MCP flag for a single category.
func (ff *FeatureFlags) Enable(category Category) error {
	return ff.setCategory(category, true)
}

// Disable turns off the MCP flag for a single category.
func (ff *FeatureFlags) Disable(category Category) error {
	return ff.setCategory(category, false)
}

func (ff *FeatureFlags) setCategory(category Category, value bool) error {
	ff.mu.Lock()
	defer ff.mu.Unlock()

	switch category {
	case CategoryWritingAnalysis:
		ff.v.MCPWritingAnalysis = value
	case CategoryReflectionAnalysis:
		ff.v.MCPReflectionAnalysis = value
	case CategoryContentClassification:
		ff.v.MCPContentClassification = value
	case CategoryAIBoundaries:
		ff.v.MCPAIBoundaries = value
	case CategoryAuditTrails:
		ff.v.MCPAuditTrails = value
	default:
		return fmt.Errorf("unknown flag category %q", category)
	}
	return nil
}

// Preset names accepted by ApplyPreset.
const (
	PresetEmergency   = "emergency"
	PresetProduction  = "production"
	PresetDevelopment = "development"
)

// ApplyPreset replaces the entire flag set with a named preset. Presets are
// total overwrites, not merges.
func (ff *FeatureFlags) ApplyPreset(name string) error {
	var preset FlagSet

	switch name {
	case PresetEmergency:
		// Everything off MCP, route everything in-process or to fallback.
		preset = FlagSet{
			AllowFallbackServices: true,
			AggressiveFallback:    true,
		}
	case PresetProduction:
		preset = FlagSet{
			MCPWritingAnalysis:       true,
			MCPReflectionAnalysis:    true,
			MCPContentClassification: true,
			MCPAIBoundaries:          true,
			MCPAuditTrails:           true,
			AllowFallbackServices:    true,
			StrictPrivacyMode:        true,
			CircuitBreakerEnabled:    true,
		}
	case PresetDevelopment:
		preset = FlagSet{
			MCPWritingAnalysis:       true,
			MCPReflectionAnalysis:    true,
			MCPContentClassification: true,
			MCPAIBoundaries:          true,
			MCPAuditTrails:           true,
			AllowFallbackServices:    true,
			CircuitBreakerEnabled:    true,
			DebugLogging:             true,
		}
	default:
		return fmt.Errorf("unknown flag preset %q", name)
	}

	ff.mu.Lock()
	ff.v = preset
	ff.mu.Unlock()
	return nil
}

// Replace swaps the whole flag set, used by config hot reload.
func (ff *FeatureFlags) Replace(set FlagSet) {
	ff.mu.Lock()
	ff.v = set
	ff.mu.Unlock()
}

// envFlagNames maps environment variable names onto flag set fields.
var envFlagNames = map[string]func(*FlagSet, bool){
	"MCP_WRITING_ANALYSIS_ENABLED":       func(f *FlagSet, v bool) { f.MCPWritingAnalysis = v },
	"MCP_REFLECTION_ANALYSIS_ENABLED":    func(f *FlagSet, v bool) { f.MCPReflectionAnalysis = v },
	"MCP_CONTENT_CLASSIFICATION_ENABLED": func(f *FlagSet, v bool) { f.MCPContentClassification = v },
	"MCP_AI_BOUNDARIES_ENABLED":          func(f *FlagSet, v bool) { f.MCPAIBoundaries = v },
	"MCP_AUDIT_TRAILS_ENABLED":           func(f *FlagSet, v bool) { f.MCPAuditTrails = v },
	"ALLOW_FALLBACK_SERVICES":            func(f *FlagSet, v bool) { f.AllowFallbackServices = v },
	"REQUIRE_MCP_FOR_INSIGHTS":           func(f *FlagSet, v bool) { f.RequireMCPForInsights = v },
	"STRICT_PRIVACY_MODE":                func(f *FlagSet, v bool) { f.StrictPrivacyMode = v },
	"CIRCUIT_BREAKER_ENABLED":            func(f *FlagSet, v bool) { f.CircuitBreakerEnabled = v },
	"AGGRESSIVE_FALLBACK":                func(f *FlagSet, v bool) { f.AggressiveFallback = v },
}

// FlagsFromEnv overlays environment-seeded flag values onto a base flag set.
// A variable is only considered true for the literal strings "true" or "1";
// any other value, including unset, leaves the base value untouched for unset
// variables and forces false for set-but-other values.
func FlagsFromEnv(base FlagSet) FlagSet {
	out := base
	for name, setter := range envFlagNames {
		raw, ok := os.LookupEnv(name)
		if !ok {
			continue
		}
		setter(&out, parseBoolEnv(raw))
	}
	return out
}

// parseBoolEnv treats only the literal strings "true" and "1" as true.
func parseBoolEnv(raw string) bool {
	return raw == "true" || raw == "1"
}
