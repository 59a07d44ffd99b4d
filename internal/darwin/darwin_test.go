// Copyright (C) NHR@FAU, University Erlangen-Nuremberg.
// All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.
package darwin

import (
	"strings"
	"testing"
	"time"

	"github.com/ClusterCockpit/darwin-ingest/internal/xmldecoder"
)

func decodeAssociation(t *testing.T, xmlDoc string) *xmldecoder.Node {
	t.Helper()
	dec := xmldecoder.New(xmldecoder.Config{
		ListPaths:       []string{"Pport.uR"},
		StripWhitespace: true,
		IncludeTags:     true,
	})
	root, err := dec.Decode(strings.NewReader(xmlDoc))
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	return root.Field("Pport").Field("uR").Children()[0]
}

func TestAssociationRowInvertsJoin(t *testing.T) {
	doc := `<Pport><uR>
		<association category="JJ" tiploc="PADTON">
			<main rid="A1" wta="10:05:00"/>
			<assoc rid="B2" wta="10:10:00"/>
		</association>
	</uR></Pport>`

	rec := decodeAssociation(t, doc)
	p := &Processor{}
	row := p.associationRow(rec)

	if row[0] != "JN" {
		t.Fatalf("expected category JN after JJ inversion, got %v", row[0])
	}
	if row[2] != "B2" || row[4] != "A1" {
		t.Fatalf("expected main/assoc rid swapped, got main=%v assoc=%v", row[2], row[4])
	}
}

func TestAssociationRowKeepsNonJoinOrientation(t *testing.T) {
	doc := `<Pport><uR>
		<association category="VV" tiploc="READING">
			<main rid="A1" wta="10:05:00"/>
			<assoc rid="B2" wta="10:10:00"/>
		</association>
	</uR></Pport>`

	rec := decodeAssociation(t, doc)
	p := &Processor{}
	row := p.associationRow(rec)

	if row[0] != "VV" {
		t.Fatalf("expected category unchanged, got %v", row[0])
	}
	if row[2] != "A1" || row[4] != "B2" {
		t.Fatalf("expected main/assoc rid unchanged, got main=%v assoc=%v", row[2], row[4])
	}
}

func TestFormOriginalWTPadsAbsentFields(t *testing.T) {
	wta, _ := processTime("10:05:00")

	var times [3]time.Time
	times[0] = wta

	out := formOriginalWT(times, [3]bool{true, false, false})
	if len(out) != 18 {
		t.Fatalf("expected 18-char original_wt, got %d: %q", len(out), out)
	}
	if out[:6] != "100500" {
		t.Fatalf("expected first field 100500, got %q", out[:6])
	}
	if out[6:] != "            " {
		t.Fatalf("expected trailing fields blank, got %q", out[6:])
	}
}

func TestCleanStationMessageFoldsParagraphs(t *testing.T) {
	raw := "<p>Line closed</p><p>due to engineering works</p>"
	out := cleanStationMessage(raw)
	if !strings.Contains(out, "<br>") {
		t.Fatalf("expected paragraph break folded to <br>, got %q", out)
	}
	if strings.HasPrefix(out, "<p>") || strings.HasSuffix(out, "</p>") {
		t.Fatalf("expected enclosing <p> stripped, got %q", out)
	}
}

func TestCompareTimeDetectsMidnightCrossing(t *testing.T) {
	late, _ := processTime("23:50:00")
	early, _ := processTime("00:05:00")
	delta := compareTime(early, late)
	if delta >= -6 {
		t.Fatalf("expected large negative delta across midnight, got %v", delta)
	}
}
