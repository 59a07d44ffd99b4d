// Copyright (C) NHR@FAU, University Erlangen-Nuremberg.
// All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.
package httpapi

import (
	"testing"
	"time"
)

func TestCombineDarwinTimeSameDay(t *testing.T) {
	working := time.Date(2026, 7, 31, 14, 5, 0, 0, time.UTC)
	darwinClock := time.Date(1970, 1, 1, 14, 7, 0, 0, time.UTC)

	got := combineDarwinTime(working, darwinClock)
	want := time.Date(2026, 7, 31, 14, 7, 0, 0, time.UTC)

	if !got.Equal(want) {
		t.Fatalf("combineDarwinTime() = %v, want %v", got, want)
	}
}

func TestCombineDarwinTimeCrossesMidnightForward(t *testing.T) {
	working := time.Date(2026, 7, 31, 23, 55, 0, 0, time.UTC)
	darwinClock := time.Date(1970, 1, 1, 0, 2, 0, 0, time.UTC)

	got := combineDarwinTime(working, darwinClock)
	want := time.Date(2026, 8, 1, 0, 2, 0, 0, time.UTC)

	if !got.Equal(want) {
		t.Fatalf("combineDarwinTime() = %v, want %v", got, want)
	}
}

func TestCombineDarwinTimeCrossesMidnightBackward(t *testing.T) {
	working := time.Date(2026, 8, 1, 0, 3, 0, 0, time.UTC)
	darwinClock := time.Date(1970, 1, 1, 23, 58, 0, 0, time.UTC)

	got := combineDarwinTime(working, darwinClock)
	want := time.Date(2026, 7, 31, 23, 58, 0, 0, time.UTC)

	if !got.Equal(want) {
		t.Fatalf("combineDarwinTime() = %v, want %v", got, want)
	}
}

func TestLocationScanToViewNilWhenTypeAbsent(t *testing.T) {
	var g locationScan
	if v := g.toView(); v != nil {
		t.Fatalf("toView() = %+v, want nil for an unmatched LEFT JOIN row", v)
	}
}

func TestPgTextArrayRoundTrip(t *testing.T) {
	in := []string{"PAD", "RDG", "EUSTON"}
	literal := pgTextArrayLiteral(in)

	var out pgTextArray
	if err := out.Scan(literal); err != nil {
		t.Fatalf("Scan() error: %v", err)
	}

	if len(out) != len(in) {
		t.Fatalf("Scan() = %v, want %v", out, in)
	}
	for i := range in {
		if out[i] != in[i] {
			t.Fatalf("Scan()[%d] = %q, want %q", i, out[i], in[i])
		}
	}
}
