// Copyright 2026 The ScribeFlow Authors. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Exporter mirrors tracker attempts into Prometheus collectors so the rolling
// routing signals and long-term observability stay consistent with each other.
type Exporter struct {
	attempts *prometheus.CounterVec
	failures *prometheus.CounterVec
	duration *prometheus.HistogramVec
}

// NewExporter creates and registers the collectors on the given registerer.
func NewExporter(reg prometheus.Registerer) *Exporter {
	e := &Exporter{
		attempts: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "scribeflow",
				Subsystem: "analysis",
				Name:      "attempts_total",
				Help:      "Total analysis attempts per backing service.",
			},
			[]string{"service"},
		),
		failures: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "scribeflow",
				Subsystem: "analysis",
				Name:      "failures_total",
				Help:      "Failed analysis attempts per backing service.",
			},
			[]string{"service"},
		),
		duration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: "scribeflow",
				Subsystem: "analysis",
				Name:      "attempt_duration_ms",
				Help:      "Analysis attempt duration in milliseconds per backing service.",
				Buckets:   []float64{10, 50, 100, 250, 500, 1000, 2500, 5000, 10000},
			},
			[]string{"service"},
		),
	}

	reg.MustRegister(e.attempts, e.failures, e.duration)
	return e
}

func (e *Exporter) observe(service string, responseTimeMs float64, success bool) {
	e.attempts.WithLabelValues(service).Inc()
	if !success {
		e.failures.WithLabelValues(service).Inc()
	}
	e.duration.WithLabelValues(service).Observe(responseTimeMs)
}
