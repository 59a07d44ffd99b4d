// Copyright (C) NHR@FAU, University Erlangen-Nuremberg.
// All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.
package supervisor

import (
	"context"
	"testing"
	"time"

	"github.com/ClusterCockpit/darwin-ingest/internal/repository"
)

func TestWaitForQueueDrainReturnsImmediatelyWhenEmpty(t *testing.T) {
	w := repository.NewWriter(nil)
	defer w.Close()

	done := make(chan struct{})
	go func() {
		WaitForQueueDrain(context.Background(), w, 0)
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("WaitForQueueDrain() did not return for an already-empty queue")
	}
}

func TestWaitForQueueDrainReturnsOnContextCancel(t *testing.T) {
	w := repository.NewWriter(nil)
	defer w.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	done := make(chan struct{})
	go func() {
		WaitForQueueDrain(ctx, w, -1)
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("WaitForQueueDrain() did not return after context cancellation")
	}
}
