// Copyright 2026 The ScribeFlow Authors. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

// Package management implements the operator-facing endpoints: aggregate
// health, metrics inspection and reset, circuit breaker controls, and feature
// flag updates and presets.
package management

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/scribeflow/scribeflow/internal/adaptive"
	"github.com/scribeflow/scribeflow/internal/config"
	"github.com/scribeflow/scribeflow/internal/heartbeat"
	"github.com/scribeflow/scribeflow/internal/resilience"
)

// Handler carries the shared dependencies for all management endpoints.
type Handler struct {
	manager *adaptive.Manager
	flags   *config.FeatureFlags
	breaker *resilience.Breaker
	monitor *heartbeat.Monitor
}

// NewHandler creates the management handler. The monitor may be nil when
// heartbeat monitoring is disabled.
func NewHandler(manager *adaptive.Manager, flags *config.FeatureFlags, breaker *resilience.Breaker, monitor *heartbeat.Monitor) *Handler {
	return &Handler{
		manager: manager,
		flags:   flags,
		breaker: breaker,
		monitor: monitor,
	}
}

// RegisterRoutes attaches all management endpoints to the given router group.
func (h *Handler) RegisterRoutes(g *gin.RouterGroup) {
	g.GET("/health", h.GetHealth)
	g.GET("/metrics", h.GetMetrics)
	g.POST("/metrics/reset", h.ResetMetrics)
	g.GET("/circuits", h.GetCircuits)
	g.GET("/circuits/:service", h.GetCircuit)
	g.POST("/circuits/:service/reset", h.ResetCircuit)
	g.POST("/circuits/:service/force-open", h.ForceOpenCircuit)
	g.GET("/feature-flags", h.GetFlags)
	g.PUT("/feature-flags", h.UpdateFlags)
	g.POST("/feature-flags/preset/:name", h.ApplyPreset)
}

// GetHealth handles GET /v0/management/health.
// It aggregates adapter health checks, current metrics, flag configuration,
// circuit states, and heartbeat monitor statistics when monitoring is on.
func (h *Handler) GetHealth(c *gin.Context) {
	data := h.manager.HealthStatus(c.Request.Context())
	if h.monitor != nil && h.monitor.IsRunning() {
		data["heartbeat"] = gin.H{
			"statuses": h.monitor.Statuses(),
			"stats":    h.monitor.GetStats(),
		}
	}

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"data":    data,
	})
}

// GetMetrics handles GET /v0/management/metrics.
func (h *Handler) GetMetrics(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"data": gin.H{
			"services": h.manager.PerformanceMetrics(),
			"circuits": h.breaker.GetStats(),
		},
	})
}

// ResetMetrics handles POST /v0/management/metrics/reset.
func (h *Handler) ResetMetrics(c *gin.Context) {
	h.manager.ResetMetrics()
	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"message": "service metrics reset",
	})
}

// GetCircuits handles GET /v0/management/circuits.
func (h *Handler) GetCircuits(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"data": gin.H{
			"circuits": h.breaker.GetAllCircuitsStatus(),
			"stats":    h.breaker.GetStats(),
		},
	})
}

// GetCircuit handles GET /v0/management/circuits/:service.
func (h *Handler) GetCircuit(c *gin.Context) {
	status := h.breaker.GetCircuitStatus(c.Param("service"))
	if status == nil {
		c.JSON(http.StatusNotFound, gin.H{
			"success": false,
			"message": "unknown circuit " + c.Param("service"),
		})
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "data": status})
}

// ResetCircuit handles POST /v0/management/circuits/:service/reset.
func (h *Handler) ResetCircuit(c *gin.Context) {
	if !h.breaker.ResetCircuit(c.Param("service")) {
		c.JSON(http.StatusNotFound, gin.H{
			"success": false,
			"message": "unknown circuit " + c.Param("service"),
		})
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"message": "circuit " + c.Param("service") + " reset to CLOSED",
	})
}

// ForceOpenCircuit handles POST /v0/management/circuits/:service/force-open.
func (h *Handler) ForceOpenCircuit(c *gin.Context) {
	if !h.breaker.ForceOpen(c.Param("service")) {
		c.JSON(http.StatusNotFound, gin.H{
			"success": false,
			"message": "unknown circuit " + c.Param("service"),
		})
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"message": "circuit " + c.Param("service") + " forced OPEN",
	})
}

// GetFlags handles GET /v0/management/feature-flags.
func (h *Handler) GetFlags(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"data":    h.flags.Snapshot(),
	})
}

// UpdateFlags handles PUT /v0/management/feature-flags with a partial update;
// omitted fields keep their current values.
func (h *Handler) UpdateFlags(c *gin.Context) {
	var update config.FlagUpdate
	if err := c.ShouldBindJSON(&update); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"success": false,
			"message": "invalid flag update: " + err.Error(),
		})
		return
	}

	h.manager.UpdateFlags(update)
	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"data":    h.flags.Snapshot(),
		"message": "feature flags updated",
	})
}

// ApplyPreset handles POST /v0/management/feature-flags/preset/:name.
// Presets replace the whole flag set.
func (h *Handler) ApplyPreset(c *gin.Context) {
	if err := h.flags.ApplyPreset(c.Param("name")); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"success": false,
			"message": err.Error(),
		})
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"data":    h.flags.Snapshot(),
		"message": "applied preset " + c.Param("name"),
	})
}
