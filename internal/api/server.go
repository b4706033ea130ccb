// Copyright 2026 The ScribeFlow Authors. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

// Package api provides the HTTP surface of the ScribeFlow server: the
// analysis routes served through the adaptive selection manager and the
// management endpoints for operators.
package api

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	log "github.com/sirupsen/logrus"

	"github.com/scribeflow/scribeflow/internal/adaptive"
	"github.com/scribeflow/scribeflow/internal/api/handlers/management"
	"github.com/scribeflow/scribeflow/internal/config"
	"github.com/scribeflow/scribeflow/internal/heartbeat"
	"github.com/scribeflow/scribeflow/internal/resilience"
)

// Server hosts the ScribeFlow HTTP API.
type Server struct {
	cfg        *config.Config
	manager    *adaptive.Manager
	engine     *gin.Engine
	httpServer *http.Server
}

// NewServer builds the gin engine and wires all routes.
func NewServer(
	cfg *config.Config,
	manager *adaptive.Manager,
	flags *config.FeatureFlags,
	breaker *resilience.Breaker,
	monitor *heartbeat.Monitor,
	registry *prometheus.Registry,
) *Server {
	if !cfg.Debug {
		gin.SetMode(gin.ReleaseMode)
	}

	engine := gin.New()
	engine.Use(gin.Recovery(), requestIDMiddleware(), requestLogMiddleware())

	s := &Server{
		cfg:     cfg,
		manager: manager,
		engine:  engine,
	}

	analysis := engine.Group("/api/v1/analysis")
	{
		analysis.POST("/writing-patterns", s.handleAnalysis(adaptive.OpAnalyzeWritingPatterns))
		analysis.POST("/reflection-quality", s.handleAnalysis(adaptive.OpEvaluateReflectionQuality))
		analysis.POST("/content-classification", s.handleAnalysis(adaptive.OpClassifyContentSensitivity))
		analysis.POST("/boundary-check", s.handleAnalysis(adaptive.OpCheckAIBoundaries))
		analysis.POST("/audit-trail", s.handleAnalysis(adaptive.OpGenerateAuditTrail))
	}

	mgmt := management.NewHandler(manager, flags, breaker, monitor)
	mgmt.RegisterRoutes(engine.Group("/v0/management"))

	if registry != nil {
		engine.GET("/metrics", gin.WrapH(promhttp.HandlerFor(registry, promhttp.HandlerOpts{})))
	}

	return s
}

// Run starts serving and blocks until the context is cancelled, then shuts
// down gracefully.
func (s *Server) Run(ctx context.Context) error {
	addr := fmt.Sprintf("%s:%d", s.cfg.Host, s.cfg.Port)
	s.httpServer = &http.Server{
		Addr:              addr,
		Handler:           s.engine,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Infof("API server listening on %s", addr)
		if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return s.httpServer.Shutdown(shutdownCtx)
}

// Engine exposes the underlying gin engine for tests.
func (s *Server) Engine() *gin.Engine {
	return s.engine
}

func requestIDMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		id := c.GetHeader("X-Request-ID")
		if id == "" {
			id = uuid.NewString()[:8]
		}
		c.Set("request_id", id)
		c.Header("X-Request-ID", id)
		c.Next()
	}
}

func requestLogMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		log.WithField("request_id", c.GetString("request_id")).
			Debugf("%s %s -> %d in %s", c.Request.Method, c.Request.URL.Path, c.Writer.Status(), time.Since(start))
	}
}
