// Copyright 2026 The ScribeFlow Authors. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

// Package direct implements the in-process writing-analysis service. It
// serves the same operations as the MCP backend using local heuristics, so
// the platform keeps working when the remote analysis server is unavailable
// or disabled.
package direct

import (
	"context"
	"fmt"
	"regexp"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/scribeflow/scribeflow/internal/adaptive"
)

// Analyzer is the direct (in-process) backing service adapter.
type Analyzer struct{}

// NewAnalyzer creates the direct analyzer.
func NewAnalyzer() *Analyzer {
	return &Analyzer{}
}

// Identity implements adaptive.Adapter.
func (a *Analyzer) Identity() adaptive.ServiceIdentity {
	return adaptive.ServiceDirect
}

// HealthCheck implements adaptive.Adapter. The direct analyzer has no
// external dependencies and is always available.
func (a *Analyzer) HealthCheck(ctx context.Context) (*adaptive.HealthStatus, error) {
	return &adaptive.HealthStatus{Healthy: true, FallbackAvailable: true}, nil
}

// Execute implements adaptive.Adapter.
func (a *Analyzer) Execute(ctx context.Context, operation string, params map[string]interface{}) (map[string]interface{}, error) {
	switch operation {
	case adaptive.OpAnalyzeWritingPatterns:
		return a.analyzeWritingPatterns(params)
	case adaptive.OpEvaluateReflectionQuality:
		return a.evaluateReflectionQuality(params)
	case adaptive.OpClassifyContentSensitivity:
		return a.classifyContentSensitivity(params)
	case adaptive.OpCheckAIBoundaries:
		return a.checkAIBoundaries(params)
	case adaptive.OpGenerateAuditTrail:
		return a.generateAuditTrail(params)
	default:
		return nil, fmt.Errorf("direct: unsupported operation %q", operation)
	}
}

var sentenceSplit = regexp.MustCompile(`[.!?]+\s+|[.!?]+$`)

func contentParam(params map[string]interface{}) (string, error) {
	content, _ := params["content"].(string)
	if strings.TrimSpace(content) == "" {
		return "", fmt.Errorf("direct: missing or empty content parameter")
	}
	return content, nil
}

// analyzeWritingPatterns computes structural statistics over a submission:
// word and sentence counts, average sentence length, vocabulary richness,
// and paragraph development.
func (a *Analyzer) analyzeWritingPatterns(params map[string]interface{}) (map[string]interface{}, error) {
	content, err := contentParam(params)
	if err != nil {
		return nil, err
	}

	words := strings.Fields(content)
	sentences := nonEmpty(sentenceSplit.Split(content, -1))
	paragraphs := nonEmpty(strings.Split(content, "\n\n"))

	unique := make(map[string]struct{}, len(words))
	for _, w := range words {
		unique[strings.ToLower(strings.Trim(w, ".,;:!?\"'()"))] = struct{}{}
	}

	avgSentenceLen := 0.0
	if len(sentences) > 0 {
		avgSentenceLen = float64(len(words)) / float64(len(sentences))
	}
	richness := 0.0
	if len(words) > 0 {
		richness = float64(len(unique)) / float64(len(words))
	}

	return map[string]interface{}{
		"wordCount":          len(words),
		"sentenceCount":      len(sentences),
		"paragraphCount":     len(paragraphs),
		"avgSentenceLength":  avgSentenceLen,
		"vocabularyRichness": richness,
		"developmentLevel":   developmentLevel(len(words), len(paragraphs)),
	}, nil
}

func developmentLevel(words, paragraphs int) string {
	switch {
	case words >= 400 && paragraphs >= 4:
		return "developed"
	case words >= 150 && paragraphs >= 2:
		return "developing"
	default:
		return "emerging"
	}
}

// reflectionMarkers are phrases that indicate increasing depth of reflection,
// from surface description to transformative insight.
var reflectionMarkers = []struct {
	depth   int
	phrases []string
}{
	{1, []string{"i did", "we did", "i wrote", "happened"}},
	{2, []string{"i think", "i felt", "i found", "difficult", "easy"}},
	{3, []string{"because", "which meant", "as a result", "this shows"}},
	{4, []string{"i realized", "i learned", "i understand now", "looking back"}},
	{5, []string{"next time", "in the future", "i will change", "going forward"}},
}

// evaluateReflectionQuality scores a reflection 0-100 by the deepest
// reflection markers present and overall elaboration.
func (a *Analyzer) evaluateReflectionQuality(params map[string]interface{}) (map[string]interface{}, error) {
	content, err := contentParam(params)
	if err != nil {
		return nil, err
	}

	lower := strings.ToLower(content)
	maxDepth := 0
	matched := []string{}
	for _, marker := range reflectionMarkers {
		for _, phrase := range marker.phrases {
			if strings.Contains(lower, phrase) {
				if marker.depth > maxDepth {
					maxDepth = marker.depth
				}
				matched = append(matched, phrase)
			}
		}
	}
	sort.Strings(matched)

	words := len(strings.Fields(content))
	elaboration := words
	if elaboration > 250 {
		elaboration = 250
	}
	score := maxDepth*16 + elaboration/13
	if score > 100 {
		score = 100
	}

	return map[string]interface{}{
		"qualityScore":    score,
		"reflectionDepth": maxDepth,
		"markersFound":    matched,
		"wordCount":       words,
	}, nil
}

var sensitivePatterns = map[string]*regexp.Regexp{
	"email":        regexp.MustCompile(`[a-zA-Z0-9._%+-]+@[a-zA-Z0-9.-]+\.[a-zA-Z]{2,}`),
	"phone":        regexp.MustCompile(`\b\d{3}[-.\s]?\d{3}[-.\s]?\d{4}\b`),
	"selfHarm":     regexp.MustCompile(`(?i)\b(hurt myself|self[- ]harm|end it all)\b`),
	"familyCrisis": regexp.MustCompile(`(?i)\b(divorce|abuse|evicted|homeless)\b`),
}

// classifyContentSensitivity detects personally identifying or sensitive
// content categories and assigns an overall level.
func (a *Analyzer) classifyContentSensitivity(params map[string]interface{}) (map[string]interface{}, error) {
	content, err := contentParam(params)
	if err != nil {
		return nil, err
	}

	categories := []string{}
	for name, pattern := range sensitivePatterns {
		if pattern.MatchString(content) {
			categories = append(categories, name)
		}
	}
	sort.Strings(categories)

	level := "none"
	switch {
	case contains(categories, "selfHarm"):
		level = "critical"
	case contains(categories, "familyCrisis"):
		level = "high"
	case len(categories) > 0:
		level = "moderate"
	}

	return map[string]interface{}{
		"sensitivityLevel":   level,
		"categories":         categories,
		"requiresEscalation": level == "critical",
		"redactionRecommend": contains(categories, "email") || contains(categories, "phone"),
	}, nil
}

// checkAIBoundaries decides whether a requested kind of AI assistance is
// appropriate for the student's current progress on the assignment.
func (a *Analyzer) checkAIBoundaries(params map[string]interface{}) (map[string]interface{}, error) {
	assistanceType, _ := params["assistanceType"].(string)
	if assistanceType == "" {
		return nil, fmt.Errorf("direct: missing assistanceType parameter")
	}
	progress, _ := params["studentProgress"].(float64)

	allowed := true
	rationale := "Assistance type permitted at current progress"
	switch assistanceType {
	case "grammar", "structure", "brainstorming":
		// Always permitted.
	case "content_generation":
		allowed = false
		rationale = "Content generation is not permitted for graded submissions"
	case "detailed_feedback":
		if progress < 0.25 {
			allowed = false
			rationale = "Detailed feedback requires at least 25% draft progress"
		}
	default:
		allowed = false
		rationale = fmt.Sprintf("Unknown assistance type %q is not permitted", assistanceType)
	}

	return map[string]interface{}{
		"allowed":         allowed,
		"rationale":       rationale,
		"assistanceType":  assistanceType,
		"studentProgress": progress,
	}, nil
}

// generateAuditTrail records an access event for compliance review.
func (a *Analyzer) generateAuditTrail(params map[string]interface{}) (map[string]interface{}, error) {
	action, _ := params["action"].(string)
	if action == "" {
		return nil, fmt.Errorf("direct: missing action parameter")
	}

	return map[string]interface{}{
		"auditId":   uuid.NewString(),
		"action":    action,
		"actorId":   params["actorId"],
		"subjectId": params["subjectId"],
		"timestamp": time.Now().UTC().Format(time.RFC3339),
	}, nil
}

func nonEmpty(in []string) []string {
	out := in[:0]
	for _, s := range in {
		if strings.TrimSpace(s) != "" {
			out = append(out, s)
		}
	}
	return out
}

func contains(list []string, item string) bool {
	for _, s := range list {
		if s == item {
			return true
		}
	}
	return false
}
