// Copyright (C) NHR@FAU, University Erlangen-Nuremberg.
// All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.
package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestFramesProcessedCountsBySource(t *testing.T) {
	FramesProcessed.WithLabelValues("stomp").Inc()
	FramesProcessed.WithLabelValues("stomp").Inc()
	FramesProcessed.WithLabelValues("snapshot").Inc()

	if got := testutil.ToFloat64(FramesProcessed.WithLabelValues("stomp")); got != 2 {
		t.Fatalf("FramesProcessed{source=stomp} = %v, want 2", got)
	}
	if got := testutil.ToFloat64(FramesProcessed.WithLabelValues("snapshot")); got != 1 {
		t.Fatalf("FramesProcessed{source=snapshot} = %v, want 1", got)
	}
}

func TestWriteQueueDepthReflectsLastSet(t *testing.T) {
	WriteQueueDepth.Set(42)
	if got := testutil.ToFloat64(WriteQueueDepth); got != 42 {
		t.Fatalf("WriteQueueDepth = %v, want 42", got)
	}

	WriteQueueDepth.Set(0)
	if got := testutil.ToFloat64(WriteQueueDepth); got != 0 {
		t.Fatalf("WriteQueueDepth = %v, want 0", got)
	}
}

func TestSTOMPReconnectsIncrements(t *testing.T) {
	before := testutil.ToFloat64(STOMPReconnects)
	STOMPReconnects.Inc()
	if got := testutil.ToFloat64(STOMPReconnects); got != before+1 {
		t.Fatalf("STOMPReconnects = %v, want %v", got, before+1)
	}
}
