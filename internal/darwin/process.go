// Copyright (C) NHR@FAU, University Erlangen-Nuremberg.
// All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

// Package darwin turns decoded Push Port records into normalized database
// writes: schedules and their call points, live status, station messages,
// and inter-service associations with origin/destination propagation.
package darwin

import (
	"context"

	"github.com/ClusterCockpit/darwin-ingest/internal/refdata"
	"github.com/ClusterCockpit/darwin-ingest/internal/repository"
	"github.com/ClusterCockpit/darwin-ingest/internal/xmldecoder"
	"github.com/ClusterCockpit/darwin-ingest/pkg/log"
)

// Processor dispatches the heterogeneous children of one decoded uR/sR
// message to the handler for each record type, the Go analogue of
// MessageProcessor.store().
type Processor struct {
	writer *repository.Writer
	refs   *refdata.Store
}

func NewProcessor(w *repository.Writer, refs *refdata.Store) *Processor {
	return &Processor{writer: w, refs: refs}
}

// Process walks the list children of a decoded uR or sR element (schedule,
// TS, deactivated, OW, association records interleaved in arrival order) and
// submits the corresponding writes. Associations are accumulated across the
// whole message and submitted as one batch at the end, matching the
// source's single end-of-message assoc_batch flush.
func (p *Processor) Process(ctx context.Context, root *xmldecoder.Node) error {
	if root == nil {
		return nil
	}

	var assocRows [][]any

	for _, rec := range root.Children() {
		switch rec.Tag {
		case "schedule":
			p.processSchedule(ctx, rec)
		case "TS":
			p.processTS(ctx, rec)
		case "deactivated":
			p.writer.Exec(ctx, `UPDATE darwin_schedules SET is_active=FALSE WHERE rid=$1;`, rec.Attr("rid"))
		case "OW":
			p.processStationMessage(ctx, rec)
		case "association":
			assocRows = append(assocRows, p.associationRow(rec))
		default:
			log.Debugf("darwin: ignoring unhandled record tag %q", rec.Tag)
		}
	}

	if len(assocRows) > 0 {
		p.writer.ExecBatch(ctx, insertAssociationGuardedSQL, assocRows)
	}

	return nil
}
