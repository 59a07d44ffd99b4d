// Copyright (C) NHR@FAU, University Erlangen-Nuremberg.
// All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.
package darwin

import (
	"context"
	"encoding/json"
	"time"

	"github.com/ClusterCockpit/darwin-ingest/internal/xmldecoder"
	"github.com/ClusterCockpit/darwin-ingest/pkg/log"
	"github.com/ClusterCockpit/darwin-ingest/pkg/schema"
)

// scheduleLocationTags are the child element names that represent an ordered
// call point of a schedule; everything else (cancelReason) is metadata.
var scheduleLocationTags = map[string]bool{
	"OPOR": true, "OR": true, "OPIP": true, "IP": true,
	"PP": true, "DT": true, "OPDT": true,
}

const retainAssociationsSQL = `SELECT category,tiploc,main_rid,main_original_wt,assoc_rid,assoc_original_wt,
	tiploc,main_rid,main_original_wt,
	tiploc,assoc_rid,assoc_original_wt
	FROM darwin_associations WHERE main_rid=$1 OR assoc_rid=$1;`

const insertScheduleSQL = `INSERT INTO darwin_schedules
	(uid, rid, rsid, ssd, signalling_id, status, category, operator, is_active, is_charter, is_deleted, is_passenger, origins, destinations)
	VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14)
	ON CONFLICT (rid) DO UPDATE SET
	signalling_id=EXCLUDED.signalling_id, status=EXCLUDED.status, category=EXCLUDED.category,
	operator=EXCLUDED.operator, is_active=EXCLUDED.is_active, is_charter=EXCLUDED.is_charter,
	is_deleted=EXCLUDED.is_deleted, is_passenger=EXCLUDED.is_passenger,
	origins=EXCLUDED.origins, destinations=EXCLUDED.destinations;`

const insertScheduleLocationSQL = `INSERT INTO darwin_schedule_locations
	(rid, index, type, tiploc, activity, original_wt, pta, wta, wtp, ptd, wtd, cancelled, rdelay)
	VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13) ON CONFLICT DO NOTHING;`

const insertAssociationUseRetainSQL = `INSERT INTO darwin_associations
	(category, tiploc, main_rid, main_original_wt, assoc_rid, assoc_original_wt)
	SELECT $1,$2,$3,$4,$5,$6 WHERE
	EXISTS (SELECT 1 FROM darwin_schedule_locations WHERE tiploc=$7 AND rid=$8 AND original_wt=$9) AND
	EXISTS (SELECT 1 FROM darwin_schedule_locations WHERE tiploc=$10 AND rid=$11 AND original_wt=$12)
	ON CONFLICT DO NOTHING;`

// processSchedule rewrites one rid's full set of call points. The retain /
// delete / insert / use-retain sequence exists because an association's
// foreign key would otherwise be broken by straightforwardly deleting the
// call points it references; the retained rows are fed back through the
// same guarded INSERT once the fresh call points land.
func (p *Processor) processSchedule(ctx context.Context, rec *xmldecoder.Node) {
	rid := rec.Attr("rid")

	p.writer.ExecRetain(ctx, retainAssociationsSQL, rid)
	p.writer.Exec(ctx, `DELETE FROM darwin_schedule_locations WHERE rid=$1;`, rid)

	ssd, err := time.Parse("2006-01-02", rec.Attr("ssd"))
	if err != nil {
		log.Errorf("darwin: schedule %s: bad ssd %q: %v", rid, rec.Attr("ssd"), err)
		return
	}

	snap := p.refs.Current()

	var (
		batch                 [][]any
		origins, destinations []schema.LocationOutline
		lastTime               time.Time
		ssdOffset              int
		index                  int
	)

	for _, loc := range rec.Children() {
		if loc.Tag == "cancelReason" {
			reason := processReason(loc, snap, "C")
			payload, _ := json.Marshal(reason)
			p.writer.Exec(ctx, `UPDATE darwin_schedules SET cancel_reason=$1 WHERE rid=$2;`, string(payload), rid)
			continue
		}
		if !scheduleLocationTags[loc.Tag] {
			continue
		}

		tpl := loc.Attr("tpl")
		activity := loc.Attr("act")
		cancelled := loc.Bool("can")

		var projected [5]*time.Time
		for i, attr := range []string{"pta", "wta", "wtp", "ptd", "wtd"} {
			raw := loc.Attr(attr)
			if raw == "" {
				continue
			}
			t, ok := processTime(raw)
			if !ok {
				continue
			}

			delta := compareTime(t, lastTime)
			switch {
			case delta < -6:
				ssdOffset++
			case delta > 18:
				ssdOffset--
			}
			lastTime = t

			combined := time.Date(ssd.Year(), ssd.Month(), ssd.Day()+ssdOffset,
				t.Hour(), t.Minute(), t.Second(), 0, time.UTC)
			projected[i] = &combined
		}

		originalWT := fullOriginalWT(loc)

		batch = append(batch, []any{
			rid, index, loc.Tag, tpl, activity, originalWT,
			projected[0], projected[1], projected[2], projected[3], projected[4],
			cancelled, loc.Attr("rdelay"),
		})

		if refLoc, ok := snap.Location(tpl); ok {
			outline := refLoc.Outline("SC", loc.Tag, activity, cancelled)
			switch loc.Tag {
			case "OR", "OPOR":
				origins = append(origins, outline)
			case "DT", "OPDT":
				destinations = append(destinations, outline)
			}
		}

		index++
	}

	originsJSON, _ := json.Marshal(origins)
	destinationsJSON, _ := json.Marshal(destinations)

	p.writer.Exec(ctx, insertScheduleSQL,
		rec.Attr("uid"), rid, nullableAttr(rec, "rsid"), ssd, nullableAttr(rec, "signallingId"),
		defaultAttr(rec, "status", "P"), defaultAttr(rec, "trainCat", "OO"), rec.Attr("toc"),
		rec.Attr("isActive") != "false", rec.Bool("isCharter"), rec.Bool("deleted"),
		rec.Attr("isPassengerSvc") != "false", string(originsJSON), string(destinationsJSON))

	p.writer.ExecBatch(ctx, insertScheduleLocationSQL, batch)
	p.writer.ExecUseRetain(ctx, insertAssociationUseRetainSQL)
}

func nullableAttr(n *xmldecoder.Node, name string) *string {
	return n.AttrPtr(name)
}

func defaultAttr(n *xmldecoder.Node, name, def string) string {
	if v := n.Attr(name); v != "" {
		return v
	}
	return def
}
