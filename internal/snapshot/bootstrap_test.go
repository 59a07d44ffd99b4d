// Copyright (C) NHR@FAU, University Erlangen-Nuremberg.
// All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.
package snapshot

import (
	"context"
	"errors"
	"testing"

	"github.com/ClusterCockpit/darwin-ingest/internal/metrics"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

// TestDrainInOrderAppliesEveryOutOfOrderResult feeds parseResults out of
// order and confirms every one of them is applied (each counted once as a
// parse failure). Every result carries a parse error so apply() returns
// before touching the (nil) processor field.
func TestDrainInOrderAppliesEveryOutOfOrderResult(t *testing.T) {
	b := &Bootstrapper{}

	results := make(chan parseResult, 4)
	results <- parseResult{index: 2, err: errors.New("boom")}
	results <- parseResult{index: 0, err: errors.New("boom")}
	results <- parseResult{index: 1, err: errors.New("boom")}
	close(results)

	before := testutil.ToFloat64(metrics.ParseFailures.WithLabelValues("snapshot"))
	b.drainInOrder(context.Background(), results)
	after := testutil.ToFloat64(metrics.ParseFailures.WithLabelValues("snapshot"))

	if after-before != 3 {
		t.Fatalf("ParseFailures{source=snapshot} increased by %v, want 3", after-before)
	}
}

func TestDrainInOrderFlushesUnconsumedTailOnClose(t *testing.T) {
	b := &Bootstrapper{}

	results := make(chan parseResult, 2)
	// index 1 arrives but index 0 never does: on channel close the
	// remaining buffered entries must still be flushed, not dropped.
	results <- parseResult{index: 1, err: errors.New("boom")}
	close(results)

	before := testutil.ToFloat64(metrics.ParseFailures.WithLabelValues("snapshot"))
	b.drainInOrder(context.Background(), results)
	after := testutil.ToFloat64(metrics.ParseFailures.WithLabelValues("snapshot"))

	if after-before != 1 {
		t.Fatalf("ParseFailures{source=snapshot} increased by %v, want 1 for the unconsumed-tail flush", after-before)
	}
}
