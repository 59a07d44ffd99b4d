// Copyright (C) NHR@FAU, University Erlangen-Nuremberg.
// All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

// Package retry provides the bounded quadratic backoff every bounded
// reconnect loop in this ingester uses (STOMP, FTP): max(min(n^2, 600),
// floor) seconds, capped at 30 attempts per session.
package retry

import (
	"context"
	"time"

	"github.com/cenkalti/backoff/v4"
)

// sessionAttempts is the per-session attempt ceiling both the STOMP and FTP
// reconnect loops share.
const sessionAttempts = 30

// Capped implements backoff.BackOff with max(min(attempt^2, 600), floor)
// seconds.
type Capped struct {
	attempt int
	floor   time.Duration
	cap     time.Duration
}

var _ backoff.BackOff = (*Capped)(nil)

// NewCapped returns a Capped backoff bounded between floor and cap.
func NewCapped(floor, cap time.Duration) *Capped {
	return &Capped{floor: floor, cap: cap}
}

func (c *Capped) NextBackOff() time.Duration {
	c.attempt++
	d := time.Duration(c.attempt*c.attempt) * time.Second
	if d > c.cap {
		d = c.cap
	}
	if d < c.floor {
		d = c.floor
	}
	return d
}

func (c *Capped) Reset() {
	c.attempt = 0
}

// Attempt returns the 1-based attempt count of the most recent NextBackOff
// call, used for attempt-count logging ("attempt %d").
func (c *Capped) Attempt() int {
	return c.attempt
}

// Session wraps a Capped backoff with the shared 30-attempts-per-session
// limit and ctx cancellation, so backoff.RetryNotify drives both the STOMP
// and FTP reconnect loops through the same bounded policy.
func Session(ctx context.Context, floor, cap time.Duration) backoff.BackOffContext {
	// WithMaxRetries counts retries after the first call, so sessionAttempts-1
	// retries give sessionAttempts attempts in all.
	return backoff.WithContext(backoff.WithMaxRetries(NewCapped(floor, cap), sessionAttempts-1), ctx)
}
