// Copyright 2026 The ScribeFlow Authors. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package direct

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/scribeflow/scribeflow/internal/adaptive"
)

func execute(t *testing.T, operation string, params map[string]interface{}) map[string]interface{} {
	t.Helper()
	result, err := NewAnalyzer().Execute(context.Background(), operation, params)
	if err != nil {
		t.Fatalf("Execute(%s): %v", operation, err)
	}
	return result
}

func TestHealthCheckAlwaysHealthy(t *testing.T) {
	status, err := NewAnalyzer().HealthCheck(context.Background())
	if err != nil {
		t.Fatalf("HealthCheck: %v", err)
	}
	if !status.Healthy || !status.FallbackAvailable {
		t.Errorf("status = %+v, want healthy with fallback", status)
	}
}

func TestUnsupportedOperation(t *testing.T) {
	_, err := NewAnalyzer().Execute(context.Background(), "translate_essay", nil)
	if err == nil || !strings.Contains(err.Error(), "unsupported operation") {
		t.Errorf("err = %v, want unsupported-operation error", err)
	}
}

func TestAnalyzeWritingPatterns(t *testing.T) {
	content := "The river was cold. We crossed it anyway.\n\nLater that day we built a fire. Everyone dried off."
	result := execute(t, adaptive.OpAnalyzeWritingPatterns, map[string]interface{}{"content": content})

	if got := result["wordCount"].(int); got != 18 {
		t.Errorf("wordCount = %d, want 18", got)
	}
	if got := result["sentenceCount"].(int); got != 4 {
		t.Errorf("sentenceCount = %d, want 4", got)
	}
	if got := result["paragraphCount"].(int); got != 2 {
		t.Errorf("paragraphCount = %d, want 2", got)
	}
	if got := result["avgSentenceLength"].(float64); got != 4.5 {
		t.Errorf("avgSentenceLength = %v, want 4.5", got)
	}
	richness := result["vocabularyRichness"].(float64)
	if richness <= 0 || richness > 1 {
		t.Errorf("vocabularyRichness = %v, want in (0, 1]", richness)
	}
	if got := result["developmentLevel"].(string); got != "emerging" {
		t.Errorf("developmentLevel = %q, want emerging", got)
	}
}

func TestAnalyzeWritingPatternsDevelopmentLevels(t *testing.T) {
	tests := []struct {
		words      int
		paragraphs int
		want       string
	}{
		{50, 1, "emerging"},
		{150, 2, "developing"},
		{400, 4, "developed"},
		{400, 1, "emerging"},
	}
	for _, tt := range tests {
		if got := developmentLevel(tt.words, tt.paragraphs); got != tt.want {
			t.Errorf("developmentLevel(%d, %d) = %q, want %q", tt.words, tt.paragraphs, got, tt.want)
		}
	}
}

func TestEvaluateReflectionQualityDepth(t *testing.T) {
	tests := []struct {
		name      string
		content   string
		wantDepth int
	}{
		{"descriptive", "I did the experiment and it happened quickly.", 1},
		{"emotive", "I felt the work was difficult.", 2},
		{"analytical", "It failed because the sample was contaminated, which meant redoing it.", 3},
		{"insightful", "Looking back, I realized my notes were incomplete.", 4},
		{"transformative", "Next time I will change my approach and keep a daily log.", 5},
		{"no markers", "Plants need water and sunlight to grow.", 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := execute(t, adaptive.OpEvaluateReflectionQuality, map[string]interface{}{"content": tt.content})
			if got := result["reflectionDepth"].(int); got != tt.wantDepth {
				t.Errorf("reflectionDepth = %d, want %d", got, tt.wantDepth)
			}
		})
	}
}

func TestEvaluateReflectionQualityScoreBounds(t *testing.T) {
	// Deepest markers plus elaboration capped at 250 words score 5*16 + 250/13.
	long := "Looking back, I realized a lot. Next time I will change everything. " +
		strings.Repeat("More detail here about what went wrong and why. ", 60)
	result := execute(t, adaptive.OpEvaluateReflectionQuality, map[string]interface{}{"content": long})
	if got := result["qualityScore"].(int); got != 99 {
		t.Errorf("qualityScore = %d, want 99", got)
	}

	result = execute(t, adaptive.OpEvaluateReflectionQuality, map[string]interface{}{"content": "Short note."})
	if got := result["qualityScore"].(int); got < 0 || got > 100 {
		t.Errorf("qualityScore = %d, want in [0, 100]", got)
	}
}

func TestClassifyContentSensitivity(t *testing.T) {
	tests := []struct {
		name           string
		content        string
		wantLevel      string
		wantEscalation bool
		wantRedaction  bool
	}{
		{"clean", "My essay is about photosynthesis.", "none", false, false},
		{"email", "Reach me at student@example.com please.", "moderate", false, true},
		{"phone", "Call 555-123-4567 after school.", "moderate", false, true},
		{"family crisis", "My parents are getting a divorce this month.", "high", false, false},
		{"self harm", "Sometimes I want to hurt myself.", "critical", true, false},
		{"crisis outranked", "After the divorce I wanted to end it all.", "critical", true, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := execute(t, adaptive.OpClassifyContentSensitivity, map[string]interface{}{"content": tt.content})
			if got := result["sensitivityLevel"].(string); got != tt.wantLevel {
				t.Errorf("sensitivityLevel = %q, want %q", got, tt.wantLevel)
			}
			if got := result["requiresEscalation"].(bool); got != tt.wantEscalation {
				t.Errorf("requiresEscalation = %v, want %v", got, tt.wantEscalation)
			}
			if got := result["redactionRecommend"].(bool); got != tt.wantRedaction {
				t.Errorf("redactionRecommend = %v, want %v", got, tt.wantRedaction)
			}
		})
	}
}

func TestCheckAIBoundaries(t *testing.T) {
	tests := []struct {
		name           string
		assistanceType string
		progress       float64
		wantAllowed    bool
	}{
		{"grammar always allowed", "grammar", 0, true},
		{"structure always allowed", "structure", 0, true},
		{"brainstorming always allowed", "brainstorming", 0, true},
		{"content generation denied", "content_generation", 0.9, false},
		{"detailed feedback too early", "detailed_feedback", 0.1, false},
		{"detailed feedback at threshold", "detailed_feedback", 0.25, true},
		{"unknown type denied", "essay_ghostwriting", 1.0, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := execute(t, adaptive.OpCheckAIBoundaries, map[string]interface{}{
				"assistanceType":  tt.assistanceType,
				"studentProgress": tt.progress,
			})
			if got := result["allowed"].(bool); got != tt.wantAllowed {
				t.Errorf("allowed = %v, want %v", got, tt.wantAllowed)
			}
			if result["rationale"].(string) == "" {
				t.Error("rationale must not be empty")
			}
		})
	}
}

func TestGenerateAuditTrail(t *testing.T) {
	result := execute(t, adaptive.OpGenerateAuditTrail, map[string]interface{}{
		"action":    "viewed_submission",
		"actorId":   "teacher-17",
		"subjectId": "student-204",
	})

	if result["auditId"].(string) == "" {
		t.Error("auditId must be set")
	}
	if got := result["action"].(string); got != "viewed_submission" {
		t.Errorf("action = %q", got)
	}
	if _, err := time.Parse(time.RFC3339, result["timestamp"].(string)); err != nil {
		t.Errorf("timestamp not RFC3339: %v", err)
	}
}

func TestMissingParameters(t *testing.T) {
	analyzer := NewAnalyzer()
	ops := []struct {
		operation string
		params    map[string]interface{}
	}{
		{adaptive.OpAnalyzeWritingPatterns, nil},
		{adaptive.OpAnalyzeWritingPatterns, map[string]interface{}{"content": "   "}},
		{adaptive.OpEvaluateReflectionQuality, map[string]interface{}{}},
		{adaptive.OpClassifyContentSensitivity, map[string]interface{}{"content": ""}},
		{adaptive.OpCheckAIBoundaries, map[string]interface{}{}},
		{adaptive.OpGenerateAuditTrail, map[string]interface{}{}},
	}
	for _, tt := range ops {
		if _, err := analyzer.Execute(context.Background(), tt.operation, tt.params); err == nil {
			t.Errorf("Execute(%s, %v) expected parameter error", tt.operation, tt.params)
		}
	}
}
