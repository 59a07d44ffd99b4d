// Copyright (C) NHR@FAU, University Erlangen-Nuremberg.
// All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.
package stomp

import (
	"testing"
	"time"
)

func TestNeverConnectedTrueBeforeAnyAttempt(t *testing.T) {
	s := &Subscriber{state: stateDown}
	if !s.NeverConnected() {
		t.Fatal("NeverConnected() = false, want true before any connect attempt")
	}
	if s.Disconnected() {
		t.Fatal("Disconnected() = true, want false before the 5s grace period has elapsed")
	}
}

func TestDisconnectedFalseWhileConnecting(t *testing.T) {
	s := &Subscriber{state: stateConnecting}
	if s.Disconnected() {
		t.Fatal("Disconnected() = true while state is stateConnecting, want false")
	}
}

func TestDisconnectedTrueAfterGracePeriod(t *testing.T) {
	s := &Subscriber{
		state:              stateDown,
		totalAttempts:      1,
		lastConnectAttempt: time.Now().Add(-10 * time.Second),
	}
	if !s.Disconnected() {
		t.Fatal("Disconnected() = false, want true once 5s have elapsed since the last attempt")
	}
	if s.NeverConnected() {
		t.Fatal("NeverConnected() = true after a recorded attempt, want false")
	}
}
