// Copyright 2026 The ScribeFlow Authors. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package api

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tidwall/gjson"

	"github.com/scribeflow/scribeflow/internal/adaptive"
	"github.com/scribeflow/scribeflow/internal/config"
	"github.com/scribeflow/scribeflow/internal/metrics"
	"github.com/scribeflow/scribeflow/internal/resilience"
	"github.com/scribeflow/scribeflow/internal/services/direct"
	"github.com/scribeflow/scribeflow/internal/services/fallback"
)

// downMCP stands in for the MCP adapter with the remote server unreachable.
type downMCP struct{}

func (downMCP) Identity() adaptive.ServiceIdentity { return adaptive.ServiceMCP }

func (downMCP) Execute(ctx context.Context, operation string, params map[string]interface{}) (map[string]interface{}, error) {
	return nil, errors.New("connection refused")
}

func (downMCP) HealthCheck(ctx context.Context) (*adaptive.HealthStatus, error) {
	return &adaptive.HealthStatus{Healthy: false, Error: "connection refused"}, nil
}

func newTestServer(t *testing.T, flagSet config.FlagSet) *Server {
	t.Helper()

	flags := config.NewFeatureFlags(flagSet)
	tracker := metrics.NewTracker("mcp", "direct", "fallback")
	registry := prometheus.NewRegistry()
	tracker.SetExporter(metrics.NewExporter(registry))
	breaker := resilience.NewBreaker()
	manager := adaptive.NewManager(flags, tracker, breaker, downMCP{}, direct.NewAnalyzer(), fallback.NewAnalyzer(), nil)

	return NewServer(config.DefaultConfig(), manager, flags, breaker, nil, registry)
}

func doRequest(s *Server, method, path, body string) *httptest.ResponseRecorder {
	var reader *strings.Reader
	if body == "" {
		reader = strings.NewReader("")
	} else {
		reader = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, reader)
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	w := httptest.NewRecorder()
	s.Engine().ServeHTTP(w, req)
	return w
}

func analysisFlags() config.FlagSet {
	return config.FlagSet{
		AllowFallbackServices: true,
		CircuitBreakerEnabled: true,
	}
}

func TestWritingPatternsServedDirect(t *testing.T) {
	s := newTestServer(t, analysisFlags())

	w := doRequest(s, http.MethodPost, "/api/v1/analysis/writing-patterns",
		`{"content": "The river was cold. We crossed it anyway."}`)
	require.Equal(t, http.StatusOK, w.Code)

	body := w.Body.String()
	assert.True(t, gjson.Get(body, "success").Bool())
	assert.Equal(t, "direct", gjson.Get(body, "data.serviceUsed").String())
	assert.Equal(t, int64(8), gjson.Get(body, "data.result.wordCount").Int())

	reasoning := gjson.Get(body, "data.reasoning").Array()
	require.NotEmpty(t, reasoning)
	assert.Equal(t, "MCP integration disabled by feature flags", reasoning[0].String())
}

func TestInvalidBodyRejected(t *testing.T) {
	s := newTestServer(t, analysisFlags())

	w := doRequest(s, http.MethodPost, "/api/v1/analysis/writing-patterns", `{"content": `)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.False(t, gjson.Get(w.Body.String(), "success").Bool())
}

func TestFailoverSurfacesInResponse(t *testing.T) {
	s := newTestServer(t, analysisFlags())

	// Empty params: the direct analyzer rejects the missing content and the
	// chain falls through to the fallback service.
	w := doRequest(s, http.MethodPost, "/api/v1/analysis/writing-patterns", "")
	require.Equal(t, http.StatusOK, w.Code)

	body := w.Body.String()
	assert.Equal(t, "fallback", gjson.Get(body, "data.serviceUsed").String())
	assert.True(t, gjson.Get(body, "data.result.fallbackMode").Bool())

	var sawFailover bool
	for _, entry := range gjson.Get(body, "data.reasoning").Array() {
		if entry.String() == "Primary direct failed, using fallback" {
			sawFailover = true
		}
	}
	assert.True(t, sawFailover, "reasoning should record the failover, got %s", gjson.Get(body, "data.reasoning").Raw)
}

func TestExhaustedChainReturns500(t *testing.T) {
	flagSet := analysisFlags()
	flagSet.AllowFallbackServices = false
	s := newTestServer(t, flagSet)

	w := doRequest(s, http.MethodPost, "/api/v1/analysis/boundary-check", `{}`)
	require.Equal(t, http.StatusInternalServerError, w.Code)

	body := w.Body.String()
	assert.False(t, gjson.Get(body, "success").Bool())
	assert.Contains(t, gjson.Get(body, "message").String(), "operation check_ai_boundaries failed across all services")
}

func TestAllAnalysisRoutesRegistered(t *testing.T) {
	s := newTestServer(t, analysisFlags())

	routes := map[string]string{
		"/api/v1/analysis/reflection-quality":     `{"content": "I realized my notes were incomplete."}`,
		"/api/v1/analysis/content-classification": `{"content": "An essay about photosynthesis."}`,
		"/api/v1/analysis/boundary-check":         `{"assistanceType": "grammar"}`,
		"/api/v1/analysis/audit-trail":            `{"action": "viewed_submission"}`,
	}
	for path, body := range routes {
		w := doRequest(s, http.MethodPost, path, body)
		assert.Equal(t, http.StatusOK, w.Code, "POST %s: %s", path, w.Body.String())
	}
}

func TestRequestIDHeader(t *testing.T) {
	s := newTestServer(t, analysisFlags())

	w := doRequest(s, http.MethodPost, "/api/v1/analysis/audit-trail", `{"action": "login"}`)
	assert.NotEmpty(t, w.Header().Get("X-Request-ID"))

	req := httptest.NewRequest(http.MethodPost, "/api/v1/analysis/audit-trail", strings.NewReader(`{"action": "login"}`))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Request-ID", "trace-123")
	rec := httptest.NewRecorder()
	s.Engine().ServeHTTP(rec, req)
	assert.Equal(t, "trace-123", rec.Header().Get("X-Request-ID"))
}

func TestManagementHealth(t *testing.T) {
	s := newTestServer(t, analysisFlags())

	w := doRequest(s, http.MethodGet, "/v0/management/health", "")
	require.Equal(t, http.StatusOK, w.Code)

	body := w.Body.String()
	assert.True(t, gjson.Get(body, "success").Bool())
	assert.True(t, gjson.Get(body, "data.services.direct.healthy").Bool())
	assert.False(t, gjson.Get(body, "data.services.mcp.healthy").Bool())
	assert.True(t, gjson.Get(body, "data.circuits.mcp").Exists())
	assert.False(t, gjson.Get(body, "data.heartbeat").Exists(), "no heartbeat section without a running monitor")
}

func TestManagementMetricsAndReset(t *testing.T) {
	s := newTestServer(t, analysisFlags())
	_ = doRequest(s, http.MethodPost, "/api/v1/analysis/audit-trail", `{"action": "login"}`)

	w := doRequest(s, http.MethodGet, "/v0/management/metrics", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, int64(1), gjson.Get(w.Body.String(), "data.services.direct.request_count").Int())

	w = doRequest(s, http.MethodPost, "/v0/management/metrics/reset", "")
	require.Equal(t, http.StatusOK, w.Code)

	w = doRequest(s, http.MethodGet, "/v0/management/metrics", "")
	assert.Zero(t, gjson.Get(w.Body.String(), "data.services.direct.request_count").Int())
}

func TestManagementCircuitControls(t *testing.T) {
	s := newTestServer(t, analysisFlags())

	w := doRequest(s, http.MethodGet, "/v0/management/circuits", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, int64(3), gjson.Get(w.Body.String(), "data.stats.total_circuits").Int())

	w = doRequest(s, http.MethodGet, "/v0/management/circuits/ghost", "")
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = doRequest(s, http.MethodPost, "/v0/management/circuits/mcp/force-open", "")
	require.Equal(t, http.StatusOK, w.Code)
	w = doRequest(s, http.MethodGet, "/v0/management/circuits/mcp", "")
	assert.Equal(t, "OPEN", gjson.Get(w.Body.String(), "data.state").String())

	w = doRequest(s, http.MethodPost, "/v0/management/circuits/mcp/reset", "")
	require.Equal(t, http.StatusOK, w.Code)
	w = doRequest(s, http.MethodGet, "/v0/management/circuits/mcp", "")
	assert.Equal(t, "CLOSED", gjson.Get(w.Body.String(), "data.state").String())
}

func TestManagementFeatureFlags(t *testing.T) {
	s := newTestServer(t, analysisFlags())

	w := doRequest(s, http.MethodGet, "/v0/management/feature-flags", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.True(t, gjson.Get(w.Body.String(), "data.allow_fallback_services").Bool())

	w = doRequest(s, http.MethodPut, "/v0/management/feature-flags", `{"mcp_writing_analysis": true}`)
	require.Equal(t, http.StatusOK, w.Code)
	body := w.Body.String()
	assert.True(t, gjson.Get(body, "data.mcp_writing_analysis").Bool())
	assert.True(t, gjson.Get(body, "data.allow_fallback_services").Bool(), "omitted fields keep their values")

	w = doRequest(s, http.MethodPost, "/v0/management/feature-flags/preset/production", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.True(t, gjson.Get(w.Body.String(), "data.strict_privacy_mode").Bool())

	w = doRequest(s, http.MethodPost, "/v0/management/feature-flags/preset/panic", "")
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestPrometheusEndpoint(t *testing.T) {
	s := newTestServer(t, analysisFlags())
	_ = doRequest(s, http.MethodPost, "/api/v1/analysis/audit-trail", `{"action": "login"}`)

	w := doRequest(s, http.MethodGet, "/metrics", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "scribeflow_analysis_attempts_total")
}
