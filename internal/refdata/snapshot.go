// Copyright (C) NHR@FAU, University Erlangen-Nuremberg.
// All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

// Package refdata holds the in-memory reference data (station locations,
// cancellation/late-running reason text, TOC names) that every timetable and
// status message needs to resolve a tiploc or reason code without a database
// round trip on the hot write path.
package refdata

import (
	"sync/atomic"

	"github.com/ClusterCockpit/darwin-ingest/pkg/schema"
)

// ReasonKey identifies a cancellation or late-running reason by its Darwin
// code and type ('C' cancellation, 'D' delay).
type ReasonKey struct {
	Code string
	Type string
}

// Snapshot is an immutable point-in-time view of reference data. Readers take
// a Snapshot and never see it mutate out from under them; writers build a new
// one and swap it in.
type Snapshot struct {
	Locations map[string]schema.Location
	Reasons   map[ReasonKey]string
	Operators map[string]schema.TocRef
}

func emptySnapshot() *Snapshot {
	return &Snapshot{
		Locations: map[string]schema.Location{},
		Reasons:   map[ReasonKey]string{},
		Operators: map[string]schema.TocRef{},
	}
}

// Store is the copy-on-refresh holder described for the reference loader:
// readers call Current() and get a stable Snapshot; a single writer goroutine
// (the reference loader, or the bootstrap's reference-file ingest) calls the
// Put* methods, each of which clones, mutates and atomically republishes.
type Store struct {
	current atomic.Pointer[Snapshot]
}

func NewStore() *Store {
	s := &Store{}
	s.current.Store(emptySnapshot())
	return s
}

// Current returns the live snapshot. Safe for concurrent use by any number of
// readers without locking.
func (s *Store) Current() *Snapshot {
	return s.current.Load()
}

func (s *Store) clone() *Snapshot {
	cur := s.current.Load()
	next := &Snapshot{
		Locations: make(map[string]schema.Location, len(cur.Locations)),
		Reasons:   make(map[ReasonKey]string, len(cur.Reasons)),
		Operators: make(map[string]schema.TocRef, len(cur.Operators)),
	}
	for k, v := range cur.Locations {
		next.Locations[k] = v
	}
	for k, v := range cur.Reasons {
		next.Reasons[k] = v
	}
	for k, v := range cur.Operators {
		next.Operators[k] = v
	}
	return next
}

// PutLocation installs or replaces a tiploc's location record.
func (s *Store) PutLocation(loc schema.Location) {
	next := s.clone()
	next.Locations[loc.Tiploc] = loc
	s.current.Store(next)
}

// PutReason installs or replaces a reason's display text.
func (s *Store) PutReason(code, reasonType, text string) {
	next := s.clone()
	next.Reasons[ReasonKey{Code: code, Type: reasonType}] = text
	s.current.Store(next)
}

// PutOperator installs or replaces a TOC reference.
func (s *Store) PutOperator(t schema.TocRef) {
	next := s.clone()
	next.Operators[t.Operator] = t
	s.current.Store(next)
}

// Location looks up a tiploc in the current snapshot.
func (s *Snapshot) Location(tiploc string) (schema.Location, bool) {
	loc, ok := s.Locations[tiploc]
	return loc, ok
}

// Reason resolves a reason code/type pair to its display text; empty string
// if unknown (matching a missing dict entry upstream rather than erroring).
func (s *Snapshot) Reason(code, reasonType string) string {
	return s.Reasons[ReasonKey{Code: code, Type: reasonType}]
}
