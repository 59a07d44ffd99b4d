// Copyright (C) NHR@FAU, University Erlangen-Nuremberg.
// All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.
package bplan

import "testing"

func TestParseBPlanDateEmptyIsNoBound(t *testing.T) {
	d, err := parseBPlanDate("")
	if err != nil {
		t.Fatalf("parseBPlanDate(\"\") error: %v", err)
	}
	if d != nil {
		t.Fatalf("parseBPlanDate(\"\") = %v, want nil", d)
	}
}

func TestParseBPlanDateOffsetsBoundaryThenTruncates(t *testing.T) {
	d, err := parseBPlanDate("31-12-2026 23:59:59")
	if err != nil {
		t.Fatalf("parseBPlanDate() error: %v", err)
	}
	if d == nil {
		t.Fatal("parseBPlanDate() = nil, want a date")
	}
	if d.Year() != 2027 || d.Month() != 1 || d.Day() != 1 {
		t.Fatalf("parseBPlanDate() = %v, want 2027-01-01 (23:59:59 +1s truncated)", d)
	}
	if d.Hour() != 0 || d.Minute() != 0 || d.Second() != 0 {
		t.Fatalf("parseBPlanDate() = %v, want truncated to midnight", d)
	}
}

func TestParseBPlanDateMalformedReturnsError(t *testing.T) {
	if _, err := parseBPlanDate("not-a-date"); err == nil {
		t.Fatal("parseBPlanDate(\"not-a-date\") error = nil, want error")
	}
}

func TestNonEmpty(t *testing.T) {
	if got := nonEmpty(""); got != nil {
		t.Fatalf("nonEmpty(\"\") = %v, want nil", got)
	}
	got := nonEmpty("Down Main")
	if got == nil || *got != "Down Main" {
		t.Fatalf("nonEmpty(\"Down Main\") = %v, want pointer to \"Down Main\"", got)
	}
}
