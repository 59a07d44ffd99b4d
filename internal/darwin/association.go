// Copyright (C) NHR@FAU, University Erlangen-Nuremberg.
// All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.
package darwin

import (
	"github.com/ClusterCockpit/darwin-ingest/internal/xmldecoder"
)

// insertAssociationGuardedSQL inserts an association only if both endpoints'
// ScheduleLocation rows already exist, so an association never outlives (or
// precedes) the schedules it links.
const insertAssociationGuardedSQL = `INSERT INTO darwin_associations
	(category, tiploc, main_rid, main_original_wt, assoc_rid, assoc_original_wt)
	SELECT $1,$2,$3,$4,$5,$6 WHERE
	EXISTS (SELECT 1 FROM darwin_schedule_locations WHERE tiploc=$7 AND rid=$8 AND original_wt=$9) AND
	EXISTS (SELECT 1 FROM darwin_schedule_locations WHERE tiploc=$10 AND rid=$11 AND original_wt=$12)
	ON CONFLICT (tiploc, main_rid, assoc_rid) DO NOTHING;`

// associationRow builds one row of params for insertAssociationGuardedSQL.
// A join ("JJ") association is inverted to "JN" so that every stored
// association consistently points at the next service in the join, instead
// of half pointing backwards depending on which side Darwin happened to
// record as "main".
func (p *Processor) associationRow(rec *xmldecoder.Node) []any {
	tiploc := rec.Attr("tiploc")
	category := rec.Attr("category")

	main := rec.Field("main")
	assoc := rec.Field("assoc")

	mainRID := main.Attr("rid")
	assocRID := assoc.Attr("rid")
	mainOWT := fullOriginalWT(main)
	assocOWT := fullOriginalWT(assoc)

	if category == "JJ" {
		category = "JN"
		mainRID, assocRID = assocRID, mainRID
		mainOWT, assocOWT = assocOWT, mainOWT
	}

	return []any{
		category, tiploc, mainRID, mainOWT, assocRID, assocOWT,
		tiploc, mainRID, mainOWT,
		tiploc, assocRID, assocOWT,
	}
}
