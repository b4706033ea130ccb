// Copyright 2026 The ScribeFlow Authors. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

// Package mcp implements the client adapter for the remote MCP-protocol
// writing-analysis server. Operations are issued as JSON-RPC 2.0 tools/call
// requests over HTTP POST or a WebSocket connection, depending on the
// configured endpoint.
package mcp

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/tidwall/gjson"
	"github.com/tidwall/sjson"

	"github.com/scribeflow/scribeflow/internal/adaptive"
	"github.com/scribeflow/scribeflow/internal/config"
)

// Client is the MCP backing service adapter.
type Client struct {
	endpoint   string
	transport  string
	httpClient *http.Client
	dialer     *websocket.Dialer
}

// NewClient creates an MCP client from connection settings. The transport is
// inferred from the endpoint scheme unless set explicitly.
func NewClient(cfg config.MCPConfig) *Client {
	transport := cfg.Transport
	if transport == "" {
		if strings.HasPrefix(cfg.Endpoint, "ws://") || strings.HasPrefix(cfg.Endpoint, "wss://") {
			transport = "websocket"
		} else {
			transport = "http"
		}
	}

	return &Client{
		endpoint:  cfg.Endpoint,
		transport: transport,
		httpClient: &http.Client{
			Timeout: cfg.RequestTimeout,
		},
		dialer: &websocket.Dialer{
			HandshakeTimeout: cfg.RequestTimeout,
		},
	}
}

// Identity implements adaptive.Adapter.
func (c *Client) Identity() adaptive.ServiceIdentity {
	return adaptive.ServiceMCP
}

// Execute implements adaptive.Adapter by issuing a tools/call request for the
// named operation.
func (c *Client) Execute(ctx context.Context, operation string, params map[string]interface{}) (map[string]interface{}, error) {
	payload, err := buildToolCall(operation, params)
	if err != nil {
		return nil, err
	}

	raw, err := c.roundTrip(ctx, payload)
	if err != nil {
		return nil, err
	}

	return parseToolResult(operation, raw)
}

// HealthCheck implements adaptive.Adapter with a JSON-RPC ping. Transport
// failures come back as an unhealthy status rather than an error so the
// selection manager treats both shapes the same way.
func (c *Client) HealthCheck(ctx context.Context) (*adaptive.HealthStatus, error) {
	payload, err := sjson.SetBytes([]byte(`{"jsonrpc":"2.0","method":"ping"}`), "id", uuid.NewString())
	if err != nil {
		return nil, err
	}

	raw, err := c.roundTrip(ctx, payload)
	if err != nil {
		return &adaptive.HealthStatus{Healthy: false, Error: err.Error()}, nil
	}
	if rpcErr := gjson.GetBytes(raw, "error.message"); rpcErr.Exists() {
		return &adaptive.HealthStatus{Healthy: false, Error: rpcErr.String()}, nil
	}

	return &adaptive.HealthStatus{
		Healthy:           true,
		FallbackAvailable: gjson.GetBytes(raw, "result.fallbackAvailable").Bool(),
	}, nil
}

func buildToolCall(operation string, params map[string]interface{}) ([]byte, error) {
	payload := []byte(`{"jsonrpc":"2.0","method":"tools/call"}`)
	payload, err := sjson.SetBytes(payload, "id", uuid.NewString())
	if err != nil {
		return nil, err
	}
	payload, err = sjson.SetBytes(payload, "params.name", operation)
	if err != nil {
		return nil, err
	}
	if params == nil {
		params = map[string]interface{}{}
	}
	payload, err = sjson.SetBytes(payload, "params.arguments", params)
	if err != nil {
		return nil, err
	}
	return payload, nil
}

func parseToolResult(operation string, raw []byte) (map[string]interface{}, error) {
	if rpcErr := gjson.GetBytes(raw, "error"); rpcErr.Exists() {
		return nil, fmt.Errorf("mcp: %s failed: %s", operation, rpcErr.Get("message").String())
	}
	if gjson.GetBytes(raw, "result.isError").Bool() {
		return nil, fmt.Errorf("mcp: %s failed: %s", operation, gjson.GetBytes(raw, "result.content.0.text").String())
	}

	structured := gjson.GetBytes(raw, "result.structuredContent")
	if !structured.Exists() {
		structured = gjson.GetBytes(raw, "result")
	}
	if !structured.IsObject() {
		return nil, fmt.Errorf("mcp: %s returned no result object", operation)
	}

	var out map[string]interface{}
	if err := json.Unmarshal([]byte(structured.Raw), &out); err != nil {
		return nil, fmt.Errorf("mcp: %s returned malformed result: %w", operation, err)
	}
	return out, nil
}

func (c *Client) roundTrip(ctx context.Context, payload []byte) ([]byte, error) {
	if c.transport == "websocket" {
		return c.websocketRoundTrip(ctx, payload)
	}
	return c.httpRoundTrip(ctx, payload)
}

func (c *Client) httpRoundTrip(ctx context.Context, payload []byte) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(payload))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("mcp: request failed: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 4<<20))
	if err != nil {
		return nil, fmt.Errorf("mcp: failed to read response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("mcp: server returned status %d", resp.StatusCode)
	}
	return body, nil
}

// websocketRoundTrip opens a fresh connection per request. The MCP server is
// local in every supported deployment, so connection reuse has not been worth
// the reconnect bookkeeping.
func (c *Client) websocketRoundTrip(ctx context.Context, payload []byte) ([]byte, error) {
	conn, _, err := c.dialer.DialContext(ctx, c.endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("mcp: websocket dial failed: %w", err)
	}
	defer func() { _ = conn.Close() }()

	if deadline, ok := ctx.Deadline(); ok {
		_ = conn.SetReadDeadline(deadline)
		_ = conn.SetWriteDeadline(deadline)
	} else {
		_ = conn.SetReadDeadline(time.Now().Add(30 * time.Second))
		_ = conn.SetWriteDeadline(time.Now().Add(30 * time.Second))
	}

	if err := conn.WriteMessage(websocket.TextMessage, payload); err != nil {
		return nil, fmt.Errorf("mcp: websocket write failed: %w", err)
	}

	// Requests run one at a time per connection, so the next text message is
	// the matching response.
	wantID := gjson.GetBytes(payload, "id").String()
	for {
		_, message, err := conn.ReadMessage()
		if err != nil {
			return nil, fmt.Errorf("mcp: websocket read failed: %w", err)
		}
		if gjson.GetBytes(message, "id").String() == wantID {
			return message, nil
		}
	}
}
