// Copyright (C) NHR@FAU, University Erlangen-Nuremberg.
// All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.
package darwin

import (
	"context"
	"encoding/json"

	"github.com/ClusterCockpit/darwin-ingest/internal/refdata"
	"github.com/ClusterCockpit/darwin-ingest/internal/repository"
	"github.com/ClusterCockpit/darwin-ingest/pkg/log"
	"github.com/ClusterCockpit/darwin-ingest/pkg/schema"
	"github.com/jmoiron/sqlx"
)

// Propagator recomputes Schedule.origins/destinations, both incrementally
// (one freshly-confirmed association) and as a full rebuild (periodic
// supervisor tick).
type Propagator struct {
	db     *sqlx.DB
	writer *repository.Writer
	refs   *refdata.Store
}

func NewPropagator(db *sqlx.DB, w *repository.Writer, refs *refdata.Store) *Propagator {
	return &Propagator{db: db, writer: w, refs: refs}
}

type associationMetaRow struct {
	Category         string          `db:"category"`
	Tiploc           string          `db:"tiploc"`
	MainRID          string          `db:"main_rid"`
	MainOrigins      json.RawMessage `db:"main_origins"`
	MainDestinations json.RawMessage `db:"main_destinations"`
	AssocRID         string          `db:"assoc_rid"`
	AssocOrigins     json.RawMessage `db:"assoc_origins"`
	AssocDestinations json.RawMessage `db:"assoc_destinations"`
}

const associationMetaSelect = `SELECT a.category, a.tiploc, s1.rid AS main_rid, s1.origins AS main_origins, s1.destinations AS main_destinations,
	s2.rid AS assoc_rid, s2.origins AS assoc_origins, s2.destinations AS assoc_destinations
	FROM darwin_associations AS a
	INNER JOIN darwin_schedules AS s1 ON s1.rid = a.main_rid
	INNER JOIN darwin_schedules AS s2 ON s2.rid = a.assoc_rid
	WHERE a.category != 'NP'`

// RenewAssociation propagates origin/destination metadata for a single,
// just-confirmed non-NP association between mainRID and assocRID.
func (p *Propagator) RenewAssociation(ctx context.Context, mainRID, assocRID string) error {
	var rows []associationMetaRow
	err := p.db.SelectContext(ctx, &rows, associationMetaSelect+" AND main_rid=$1 AND assoc_rid=$2;", mainRID, assocRID)
	if err != nil {
		return err
	}
	p.applyAssociationMeta(ctx, rows)
	return nil
}

// RenewAllAssociations re-applies propagation across every non-NP
// association, used by the full rebuild.
func (p *Propagator) RenewAllAssociations(ctx context.Context) error {
	var rows []associationMetaRow
	if err := p.db.SelectContext(ctx, &rows, associationMetaSelect+";"); err != nil {
		return err
	}
	p.applyAssociationMeta(ctx, rows)
	return nil
}

func (p *Propagator) applyAssociationMeta(ctx context.Context, rows []associationMetaRow) {
	for _, row := range rows {
		var mainOrigins, mainDestinations, assocOrigins, assocDestinations []schema.LocationOutline
		_ = json.Unmarshal(row.MainOrigins, &mainOrigins)
		_ = json.Unmarshal(row.MainDestinations, &mainDestinations)
		_ = json.Unmarshal(row.AssocOrigins, &assocOrigins)
		_ = json.Unmarshal(row.AssocDestinations, &assocDestinations)

		if !hasTaggedEntry(mainDestinations, row.Tiploc, row.Category) {
			tagged := tagOutlines(assocDestinations, row.Tiploc, row.Category)
			merged := append(append([]schema.LocationOutline{}, mainDestinations...), tagged...)
			payload, _ := json.Marshal(merged)
			p.writer.Exec(ctx, `UPDATE darwin_schedules SET destinations=$1 WHERE rid=$2;`, string(payload), row.MainRID)
		}

		if !hasTaggedEntry(assocOrigins, row.Tiploc, row.Category) {
			tagged := tagOutlines(mainOrigins, row.Tiploc, row.Category)
			merged := append(append([]schema.LocationOutline{}, assocOrigins...), tagged...)
			payload, _ := json.Marshal(merged)
			p.writer.Exec(ctx, `UPDATE darwin_schedules SET origins=$1 WHERE rid=$2;`, string(payload), row.AssocRID)
		}
	}
}

func hasTaggedEntry(locs []schema.LocationOutline, tiploc, category string) bool {
	for _, l := range locs {
		if l.AssociationTiploc == tiploc && l.Source == category {
			return true
		}
	}
	return false
}

func tagOutlines(locs []schema.LocationOutline, tiploc, category string) []schema.LocationOutline {
	out := make([]schema.LocationOutline, len(locs))
	for i, l := range locs {
		l.AssociationTiploc = tiploc
		l.Source = category
		out[i] = l
	}
	return out
}

type scheduleLocationMetaRow struct {
	Type      string `db:"type"`
	Activity  string `db:"activity"`
	Cancelled bool   `db:"cancelled"`
	RID       string `db:"rid"`
	Tiploc    string `db:"tiploc"`
}

const scheduleLocationMetaSelect = `SELECT type, activity, cancelled, loc.rid, tiploc FROM darwin_schedule_locations AS loc
	INNER JOIN darwin_schedules AS s ON s.rid = loc.rid
	WHERE type IN ('OR','OPOR','DT','OPDT') ORDER BY rid DESC, index ASC;`

// RenewAll rebuilds every schedule's origins/destinations from scratch, then
// reapplies association propagation. This is the full-rebuild variant run
// on the supervisor's periodic tick.
func (p *Propagator) RenewAll(ctx context.Context) error {
	log.Info("darwin: recomputing origin/destination lists for all schedules")

	var rows []scheduleLocationMetaRow
	if err := p.db.SelectContext(ctx, &rows, scheduleLocationMetaSelect); err != nil {
		return err
	}

	snap := p.refs.Current()

	var (
		crid                   string
		origins, destinations  []schema.LocationOutline
	)

	flush := func(rid string) {
		if rid == "" {
			return
		}
		originsJSON, _ := json.Marshal(origins)
		destinationsJSON, _ := json.Marshal(destinations)
		p.writer.Exec(ctx, `UPDATE darwin_schedules SET origins=$1, destinations=$2 WHERE rid=$3;`,
			string(originsJSON), string(destinationsJSON), rid)
	}

	for _, row := range rows {
		if row.RID != crid {
			flush(crid)
			origins, destinations = nil, nil
			crid = row.RID
		}

		loc, ok := snap.Location(row.Tiploc)
		if !ok {
			continue
		}
		outline := loc.Outline("SC", row.Type, row.Activity, row.Cancelled)

		switch {
		case row.Type == "OR" || row.Type == "OPOR":
			origins = append(origins, outline)
		case row.Type == "DT" || row.Type == "OPDT":
			destinations = append(destinations, outline)
		}
	}
	flush(crid)

	log.Info("darwin: origin/destination precomputation complete, applying association propagation")
	if err := p.RenewAllAssociations(ctx); err != nil {
		return err
	}
	log.Info("darwin: origin/destination lists complete")
	return nil
}
