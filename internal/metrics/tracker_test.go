// Copyright 2026 The ScribeFlow Authors. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package metrics

import (
	"fmt"
	"sync"
	"testing"
)

func TestTrackerInitialState(t *testing.T) {
	tracker := NewTracker("mcp", "direct", "fallback")

	for _, svc := range []string{"mcp", "direct", "fallback"} {
		m := tracker.Snapshot(svc)
		if m.SuccessRate != 1.0 {
			t.Errorf("%s: initial success rate = %v, want 1.0", svc, m.SuccessRate)
		}
		if m.RequestCount != 0 || m.FailureCount != 0 {
			t.Errorf("%s: initial counts = %d/%d, want 0/0", svc, m.RequestCount, m.FailureCount)
		}
		if m.ResponseTimeMs != 0 {
			t.Errorf("%s: initial response time = %v, want 0", svc, m.ResponseTimeMs)
		}
	}
}

func TestTrackerSuccessRateAllSuccesses(t *testing.T) {
	tracker := NewTracker("direct")

	for i := 0; i < 25; i++ {
		tracker.RecordAttempt("direct", 100, true, "")
	}

	m := tracker.Snapshot("direct")
	if m.SuccessRate != 1.0 {
		t.Errorf("success rate = %v, want 1.0", m.SuccessRate)
	}
	if m.RequestCount != 25 {
		t.Errorf("request count = %d, want 25", m.RequestCount)
	}
}

func TestTrackerResponseTimeSmoothing(t *testing.T) {
	// The rolling average folds each sample in as (old + sample) / 2,
	// starting from 0. Two samples t1, t2 must give ((0+t1)/2 + t2)/2.
	tracker := NewTracker("mcp")

	tracker.RecordAttempt("mcp", 200, true, "")
	tracker.RecordAttempt("mcp", 100, true, "")

	want := ((0.0+200.0)/2 + 100.0) / 2
	got := tracker.Snapshot("mcp").ResponseTimeMs
	if got != want {
		t.Errorf("response time after two samples = %v, want %v", got, want)
	}
	if got == (200.0+100.0)/2 {
		t.Error("response time matches a plain mean; smoothing recurrence not applied")
	}
}

func TestTrackerFailureBookkeeping(t *testing.T) {
	tracker := NewTracker("mcp")

	tracker.RecordAttempt("mcp", 50, true, "")
	tracker.RecordAttempt("mcp", 80, false, "connection refused")
	tracker.RecordAttempt("mcp", 20, false, "timed out")
	tracker.RecordAttempt("mcp", 30, true, "")

	m := tracker.Snapshot("mcp")
	if m.RequestCount != 4 || m.FailureCount != 2 {
		t.Errorf("counts = %d/%d, want 4/2", m.RequestCount, m.FailureCount)
	}
	if m.SuccessRate != 0.5 {
		t.Errorf("success rate = %v, want 0.5", m.SuccessRate)
	}
	if m.LastError != "timed out" {
		t.Errorf("last error = %q, want most recent failure only", m.LastError)
	}
	if m.LastErrorTime.IsZero() {
		t.Error("last error time not set")
	}
}

func TestTrackerResetAll(t *testing.T) {
	tracker := NewTracker("mcp", "direct")
	tracker.RecordAttempt("mcp", 100, false, "boom")
	tracker.RecordAttempt("direct", 40, true, "")

	tracker.ResetAll()

	for _, svc := range []string{"mcp", "direct"} {
		m := tracker.Snapshot(svc)
		if m.RequestCount != 0 || m.FailureCount != 0 || m.SuccessRate != 1.0 || m.LastError != "" {
			t.Errorf("%s not reset: %+v", svc, m)
		}
	}
}

func TestTrackerUnknownServiceIgnored(t *testing.T) {
	tracker := NewTracker("mcp")

	tracker.RecordAttempt("nope", 10, true, "")

	if got := tracker.Snapshot("nope"); got.RequestCount != 0 {
		t.Errorf("unknown service gained a record: %+v", got)
	}
	if len(tracker.SnapshotAll()) != 1 {
		t.Error("unknown service leaked into SnapshotAll")
	}
}

func TestTrackerConcurrentRecording(t *testing.T) {
	tracker := NewTracker("direct")

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			for j := 0; j < 100; j++ {
				tracker.RecordAttempt("direct", float64(j), j%2 == 0, fmt.Sprintf("err-%d-%d", n, j))
			}
		}(i)
	}
	wg.Wait()

	m := tracker.Snapshot("direct")
	if m.RequestCount != 800 {
		t.Errorf("request count = %d, want 800", m.RequestCount)
	}
	if m.FailureCount != 400 {
		t.Errorf("failure count = %d, want 400", m.FailureCount)
	}
}
