// Copyright (C) NHR@FAU, University Erlangen-Nuremberg.
// All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.
package refdata

import (
	"testing"

	"github.com/ClusterCockpit/darwin-ingest/pkg/schema"
)

func TestStoreCurrentStartsEmpty(t *testing.T) {
	s := NewStore()
	cur := s.Current()
	if len(cur.Locations) != 0 || len(cur.Reasons) != 0 || len(cur.Operators) != 0 {
		t.Fatalf("NewStore() snapshot not empty: %+v", cur)
	}
}

func TestStorePutLocationIsVisibleAfterPut(t *testing.T) {
	s := NewStore()
	s.PutLocation(schema.Location{Tiploc: "PADTON", CrsDarwin: "PAD"})

	loc, ok := s.Current().Location("PADTON")
	if !ok {
		t.Fatal("Location(\"PADTON\") not found after PutLocation")
	}
	if loc.CrsDarwin != "PAD" {
		t.Fatalf("Location().CrsDarwin = %q, want PAD", loc.CrsDarwin)
	}
}

func TestStorePutDoesNotMutatePriorSnapshot(t *testing.T) {
	s := NewStore()
	before := s.Current()

	s.PutLocation(schema.Location{Tiploc: "RDNGSTN", CrsDarwin: "RDG"})

	if _, ok := before.Location("RDNGSTN"); ok {
		t.Fatal("prior snapshot mutated in place after PutLocation, want copy-on-write isolation")
	}
	if _, ok := s.Current().Location("RDNGSTN"); !ok {
		t.Fatal("new snapshot missing location installed by PutLocation")
	}
}

func TestSnapshotReasonUnknownReturnsEmptyString(t *testing.T) {
	s := NewStore()
	if got := s.Current().Reason("XX", "D"); got != "" {
		t.Fatalf("Reason() for unknown code = %q, want empty string", got)
	}

	s.PutReason("XX", "D", "Signal failure")
	if got := s.Current().Reason("XX", "D"); got != "Signal failure" {
		t.Fatalf("Reason() = %q, want %q", got, "Signal failure")
	}
}
