// Copyright 2026 The ScribeFlow Authors. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

// Package main provides the entry point for the ScribeFlow analysis server.
// It loads configuration, constructs the adaptive selection manager with its
// backing services, and serves the analysis and management HTTP APIs.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	log "github.com/sirupsen/logrus"

	"github.com/scribeflow/scribeflow/internal/adaptive"
	"github.com/scribeflow/scribeflow/internal/api"
	"github.com/scribeflow/scribeflow/internal/buildinfo"
	"github.com/scribeflow/scribeflow/internal/config"
	"github.com/scribeflow/scribeflow/internal/heartbeat"
	"github.com/scribeflow/scribeflow/internal/logging"
	"github.com/scribeflow/scribeflow/internal/metrics"
	"github.com/scribeflow/scribeflow/internal/resilience"
	"github.com/scribeflow/scribeflow/internal/services/direct"
	"github.com/scribeflow/scribeflow/internal/services/fallback"
	"github.com/scribeflow/scribeflow/internal/services/mcp"
)

var (
	Version   = "dev"
	Commit    = "none"
	BuildDate = "unknown"
)

// init initializes the shared logger setup.
func init() {
	logging.SetupBaseLogger()
	buildinfo.Version = Version
	buildinfo.Commit = Commit
	buildinfo.BuildDate = BuildDate
}

// main parses flags, loads configuration, and runs the server until a
// termination signal arrives.
func main() {
	var configPath string
	var showVersion bool
	flag.StringVar(&configPath, "config", "config.yaml", "Path to the YAML configuration file")
	flag.BoolVar(&showVersion, "version", false, "Print version information and exit")
	flag.Parse()

	if showVersion {
		fmt.Printf("ScribeFlow Version: %s, Commit: %s, BuiltAt: %s\n", buildinfo.Version, buildinfo.Commit, buildinfo.BuildDate)
		return
	}

	// .env values become feature-flag and endpoint overrides; a missing file
	// is the normal case outside development.
	if err := godotenv.Load(); err == nil {
		log.Debug("Loaded environment overrides from .env")
	}

	cfg, err := config.LoadConfig(configPath)
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	if err := logging.ConfigureLogOutput(cfg.LoggingToFile, cfg.LogDir); err != nil {
		log.Fatalf("Failed to configure logging: %v", err)
	}
	logging.SetDebugLevel(cfg.Debug || cfg.Flags.DebugLogging)

	log.Infof("ScribeFlow %s starting (commit %s)", buildinfo.Version, buildinfo.Commit)

	// Composition root: every dependency of the manager is constructed here
	// and injected explicitly.
	flags := config.NewFeatureFlags(cfg.Flags)
	tracker := metrics.NewTracker(
		string(adaptive.ServiceMCP),
		string(adaptive.ServiceDirect),
		string(adaptive.ServiceFallback),
	)
	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector())
	tracker.SetExporter(metrics.NewExporter(registry))

	mcpClient := mcp.NewClient(cfg.MCP)
	directAnalyzer := direct.NewAnalyzer()
	fallbackAnalyzer := fallback.NewAnalyzer()

	breaker := resilience.NewBreaker()
	manager := adaptive.NewManager(
		flags,
		tracker,
		breaker,
		mcpClient,
		directAnalyzer,
		fallbackAnalyzer,
		cfg.CircuitBreaker,
	)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	var monitor *heartbeat.Monitor
	if cfg.Heartbeat.Enabled {
		monitor = heartbeat.NewMonitor(cfg.Heartbeat, mcpClient, directAnalyzer, fallbackAnalyzer)
		if err := monitor.Start(ctx); err != nil {
			log.Warnf("Heartbeat monitor did not start: %v", err)
		} else {
			defer monitor.Stop()
		}
	}

	if _, err := os.Stat(configPath); err == nil {
		watcher, err := config.NewWatcher(configPath, flags)
		if err != nil {
			log.Warnf("Config watcher disabled: %v", err)
		} else {
			defer watcher.Stop()
		}
	}

	server := api.NewServer(cfg, manager, flags, breaker, monitor, registry)
	if err := server.Run(ctx); err != nil {
		log.Fatalf("Server exited with error: %v", err)
	}
	log.Info("Server stopped")
}
