// Copyright (C) NHR@FAU, University Erlangen-Nuremberg.
// All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.
package repository

import (
	"context"
	"testing"
	"time"
)

func TestDescribeStmtPassesShortStatementsThrough(t *testing.T) {
	short := "BEGIN"
	if got := describeStmt(short); got != short {
		t.Fatalf("describeStmt(%q) = %q, want unchanged", short, got)
	}
}

func TestDescribeStmtTruncatesLongStatements(t *testing.T) {
	long := "INSERT INTO darwin_schedule_locations (rid, tiploc, index, wtd, wta, wtp) VALUES ($1,$2,$3,$4,$5,$6)"
	got := describeStmt(long)
	if len(got) != 63 {
		t.Fatalf("describeStmt() length = %d, want 63 (60 chars + ...)", len(got))
	}
	if got[60:] != "..." {
		t.Fatalf("describeStmt() = %q, want to end with ...", got)
	}
}

func TestWriterRetainStackIsLIFO(t *testing.T) {
	w := &Writer{}

	w.retain = append(w.retain, [][]any{{"first"}})
	w.retain = append(w.retain, [][]any{{"second"}})

	top := w.popRetain()
	if len(top) != 1 || top[0][0] != "second" {
		t.Fatalf("popRetain() = %v, want the most recently pushed set", top)
	}

	next := w.popRetain()
	if len(next) != 1 || next[0][0] != "first" {
		t.Fatalf("popRetain() = %v, want the first-pushed set", next)
	}
}

func TestWriterPopRetainOnEmptyStackReturnsNil(t *testing.T) {
	w := &Writer{}
	if got := w.popRetain(); got != nil {
		t.Fatalf("popRetain() on empty stack = %v, want nil", got)
	}
}

// TestSubmitReturnsOnceQueuedWithoutWaitingForExecution proves submit is the
// enqueue-and-return shape §5 requires: with no writer goroutine draining the
// queue at all, two submissions within capacity must still both return
// promptly, rather than blocking on a result that will never arrive.
func TestSubmitReturnsOnceQueuedWithoutWaitingForExecution(t *testing.T) {
	w := &Writer{queue: make(chan writeTask, 2)}

	done := make(chan struct{})
	go func() {
		defer close(done)
		if err := w.submit(context.Background(), writeTask{mode: modeSingle, stmt: "SELECT 1"}); err != nil {
			t.Errorf("submit() error = %v", err)
		}
		if err := w.submit(context.Background(), writeTask{mode: modeSingle, stmt: "SELECT 2"}); err != nil {
			t.Errorf("submit() error = %v", err)
		}
	}()

	select {
	case <-done:
	case <-time.After(200 * time.Millisecond):
		t.Fatal("submit() blocked with queue headroom and nothing yet executing; it must return once accepted, not once run")
	}

	if got := w.Depth(); got != 2 {
		t.Fatalf("Depth() = %d, want 2 (both tasks queued, none executed)", got)
	}
}

// TestSubmitRespectsContextCancelWhenQueueFull confirms the bounded channel
// send, the sole backpressure point, still honors ctx cancellation.
func TestSubmitRespectsContextCancelWhenQueueFull(t *testing.T) {
	w := &Writer{queue: make(chan writeTask, 1)}

	if err := w.submit(context.Background(), writeTask{mode: modeSingle}); err != nil {
		t.Fatalf("submit() error = %v, want nil (queue has room)", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if err := w.submit(ctx, writeTask{mode: modeSingle}); err == nil {
		t.Fatal("submit() error = nil with a full queue and a cancelled context, want ctx.Err()")
	}
}

func TestWriterDepthReflectsQueueLength(t *testing.T) {
	w := &Writer{queue: make(chan writeTask, 4)}
	if got := w.Depth(); got != 0 {
		t.Fatalf("Depth() = %d, want 0", got)
	}

	w.queue <- writeTask{mode: modeSingle}
	w.queue <- writeTask{mode: modeSingle}
	if got := w.Depth(); got != 2 {
		t.Fatalf("Depth() = %d, want 2", got)
	}
}
