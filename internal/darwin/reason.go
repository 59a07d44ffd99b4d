// Copyright (C) NHR@FAU, University Erlangen-Nuremberg.
// All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.
package darwin

import (
	"time"

	"github.com/ClusterCockpit/darwin-ingest/internal/refdata"
	"github.com/ClusterCockpit/darwin-ingest/internal/xmldecoder"
	"github.com/ClusterCockpit/darwin-ingest/pkg/schema"
)

// compareTime returns the signed difference between t1 and t2 in hours,
// ignoring date, the way the day-offset projection decides whether a call
// time has wrapped past midnight.
func compareTime(t1, t2 time.Time) float64 {
	if t1.IsZero() || t2.IsZero() {
		return 0
	}
	s1 := t1.Hour()*3600 + t1.Minute()*60 + t1.Second()
	s2 := t2.Hour()*3600 + t2.Minute()*60 + t2.Second()
	return float64(s1-s2) / 3600
}

// processTime parses an "HH:MM" or "HH:MM:SS" Darwin time attribute into a
// time.Time on January 1 of year 0 (the date time.Parse gives a clock-only
// layout), the reference date later combined with the
// schedule's ssd (plus any accumulated day offset).
func processTime(value string) (time.Time, bool) {
	if value == "" {
		return time.Time{}, false
	}
	if len(value) == 5 {
		value += ":00"
	}
	t, err := time.Parse("15:04:05", value)
	if err != nil {
		return time.Time{}, false
	}
	return t, true
}

// formOriginalWT concatenates up to three HHMMSS blocks (six spaces for an
// absent time), used as a schedule location's stable identity across
// updates since rid+tiploc alone is not unique within one schedule.
func formOriginalWT(times [3]time.Time, present [3]bool) string {
	out := ""
	for i := 0; i < 3; i++ {
		if present[i] {
			out += times[i].Format("150405")
		} else {
			out += "      "
		}
	}
	return out
}

// fullOriginalWT builds the original_wt for an association endpoint from its
// raw wta/wtp/wtd attributes.
func fullOriginalWT(node *xmldecoder.Node) string {
	var times [3]time.Time
	var present [3]bool
	for i, attr := range []string{"wta", "wtp", "wtd"} {
		if t, ok := processTime(node.Attr(attr)); ok {
			times[i] = t
			present[i] = true
		}
	}
	return formOriginalWT(times, present)
}

// processReason builds the structured reason payload stored on a schedule's
// cancel_reason/delay_reason column, resolving the reason's display text and
// originating location against the current reference snapshot.
func processReason(node *xmldecoder.Node, snap *refdata.Snapshot, reasonType string) schema.Reason {
	code := node.Text
	if code == "" {
		code = node.Attr("code")
	}

	reason := schema.Reason{
		Code:    code,
		Message: snap.Reason(code, reasonType),
		Near:    node.Bool("near"),
	}

	if tiploc := node.Attr("tiploc"); tiploc != "" {
		if loc, ok := snap.Location(tiploc); ok {
			outline := loc.Outline("", "", "", false)
			reason.Location = &outline
		}
	}

	return reason
}
