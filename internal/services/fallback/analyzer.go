// Copyright 2026 The ScribeFlow Authors. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

// Package fallback implements the minimal analysis service of last resort.
// Results are intentionally coarse and carry a fallbackMode marker so clients
// can observe degraded-mode operation.
package fallback

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/scribeflow/scribeflow/internal/adaptive"
)

// Analyzer is the static fallback backing service adapter.
type Analyzer struct{}

// NewAnalyzer creates the fallback analyzer.
func NewAnalyzer() *Analyzer {
	return &Analyzer{}
}

// Identity implements adaptive.Adapter.
func (a *Analyzer) Identity() adaptive.ServiceIdentity {
	return adaptive.ServiceFallback
}

// HealthCheck implements adaptive.Adapter.
func (a *Analyzer) HealthCheck(ctx context.Context) (*adaptive.HealthStatus, error) {
	return &adaptive.HealthStatus{Healthy: true}, nil
}

// Execute implements adaptive.Adapter. Every result carries fallbackMode so
// routes can surface that a degraded implementation served the request.
func (a *Analyzer) Execute(ctx context.Context, operation string, params map[string]interface{}) (map[string]interface{}, error) {
	var result map[string]interface{}

	switch operation {
	case adaptive.OpAnalyzeWritingPatterns:
		content, _ := params["content"].(string)
		words := strings.Fields(content)
		result = map[string]interface{}{
			"wordCount":        len(words),
			"developmentLevel": "unknown",
		}
	case adaptive.OpEvaluateReflectionQuality:
		content, _ := params["content"].(string)
		score := 40
		if len(strings.Fields(content)) >= 100 {
			score = 60
		}
		result = map[string]interface{}{
			"qualityScore":    score,
			"reflectionDepth": 0,
		}
	case adaptive.OpClassifyContentSensitivity:
		// Without real classification, err on the side of review.
		result = map[string]interface{}{
			"sensitivityLevel":   "unknown",
			"requiresEscalation": false,
			"reviewRecommended":  true,
		}
	case adaptive.OpCheckAIBoundaries:
		assistanceType, _ := params["assistanceType"].(string)
		result = map[string]interface{}{
			"allowed":        assistanceType == "grammar",
			"rationale":      "Fallback policy permits grammar assistance only",
			"assistanceType": assistanceType,
		}
	case adaptive.OpGenerateAuditTrail:
		result = map[string]interface{}{
			"auditId":   uuid.NewString(),
			"action":    params["action"],
			"timestamp": time.Now().UTC().Format(time.RFC3339),
		}
	default:
		return nil, fmt.Errorf("fallback: unsupported operation %q", operation)
	}

	result["fallbackMode"] = true
	return result, nil
}
