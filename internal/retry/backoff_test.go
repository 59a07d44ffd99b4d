// Copyright (C) NHR@FAU, University Erlangen-Nuremberg.
// All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.
package retry

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/cenkalti/backoff/v4"
)

func TestCappedBackoffGrowsQuadratically(t *testing.T) {
	b := NewCapped(0, 600*time.Second)

	cases := []struct {
		attempt int
		want    time.Duration
	}{
		{1, 1 * time.Second},
		{2, 4 * time.Second},
		{3, 9 * time.Second},
	}
	for _, c := range cases {
		b.attempt = c.attempt - 1
		got := b.NextBackOff()
		if got != c.want {
			t.Fatalf("NextBackOff() at attempt %d = %v, want %v", c.attempt, got, c.want)
		}
	}
}

func TestCappedBackoffRespectsCapAndFloor(t *testing.T) {
	b := NewCapped(10*time.Second, 600*time.Second)

	b.attempt = 2 // attempt becomes 3, 3^2=9s, below the 10s floor
	if got := b.NextBackOff(); got != 10*time.Second {
		t.Fatalf("NextBackOff() = %v, want floor 10s", got)
	}

	b.attempt = 99
	if got := b.NextBackOff(); got != 600*time.Second {
		t.Fatalf("NextBackOff() = %v, want cap 600s", got)
	}
}

func TestCappedBackoffResetZeroesAttempt(t *testing.T) {
	b := NewCapped(0, 600*time.Second)
	b.NextBackOff()
	b.NextBackOff()
	b.Reset()
	if b.Attempt() != 0 {
		t.Fatalf("Attempt() after Reset() = %d, want 0", b.Attempt())
	}
}

// TestSessionStopsAfterThirtyAttempts drives backoff.Retry with a
// zero-floor, zero-cap Session backoff so every wait is instant, and
// confirms it gives up after exactly 30 attempts, matching the
// per-session attempt ceiling the STOMP and FTP reconnect loops share.
func TestSessionStopsAfterThirtyAttempts(t *testing.T) {
	attempts := 0
	err := backoff.Retry(func() error {
		attempts++
		return errors.New("still down")
	}, Session(context.Background(), 0, 0))

	if err == nil {
		t.Fatal("Retry() error = nil, want the last attempt's error after exhaustion")
	}
	if attempts != sessionAttempts {
		t.Fatalf("attempts = %d, want %d", attempts, sessionAttempts)
	}
}

func TestSessionStopsOnContextCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	attempts := 0
	_ = backoff.Retry(func() error {
		attempts++
		return errors.New("still down")
	}, Session(ctx, time.Second, 600*time.Second))

	if attempts != 1 {
		t.Fatalf("attempts = %d, want 1 (Retry should not re-enter after a cancelled context)", attempts)
	}
}
