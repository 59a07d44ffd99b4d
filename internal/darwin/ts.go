// Copyright (C) NHR@FAU, University Erlangen-Nuremberg.
// All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.
package darwin

import (
	"context"
	"encoding/json"
	"strconv"

	"github.com/ClusterCockpit/darwin-ingest/internal/xmldecoder"
)

const insertScheduleStatusSQL = `INSERT INTO darwin_schedule_status
	(rid, tiploc, original_wt,
	ta, tp, td,
	ta_source, tp_source, td_source,
	ta_type, tp_type, td_type,
	ta_delayed, tp_delayed, td_delayed,
	length, plat, plat_suppressed, plat_cis_suppressed, plat_confirmed, plat_source)
	VALUES ($1,$2,$3, $4,$5,$6, $7,$8,$9, $10,$11,$12, $13,$14,$15, $16,$17,$18,$19,$20, $21)
	ON CONFLICT (rid, tiploc, original_wt) DO UPDATE SET
	ta=EXCLUDED.ta, tp=EXCLUDED.tp, td=EXCLUDED.td,
	ta_source=EXCLUDED.ta_source, tp_source=EXCLUDED.tp_source, td_source=EXCLUDED.td_source,
	ta_type=EXCLUDED.ta_type, tp_type=EXCLUDED.tp_type, td_type=EXCLUDED.td_type,
	ta_delayed=EXCLUDED.ta_delayed, tp_delayed=EXCLUDED.tp_delayed, td_delayed=EXCLUDED.td_delayed,
	length=EXCLUDED.length, plat=EXCLUDED.plat, plat_suppressed=EXCLUDED.plat_suppressed,
	plat_cis_suppressed=EXCLUDED.plat_cis_suppressed, plat_confirmed=EXCLUDED.plat_confirmed,
	plat_source=EXCLUDED.plat_source;`

// processTS applies a TS (timetable status) record's live timings. Each of
// arr/pass/dep carries at most one of {at, et} plus optional src/delayed;
// original_wt is recomputed from the location's own working times so it
// matches the ScheduleLocation row the update targets.
func (p *Processor) processTS(ctx context.Context, rec *xmldecoder.Node) {
	rid := rec.Attr("rid")
	var batch [][]any
	snap := p.refs.Current()

	for _, loc := range rec.Children() {
		if loc.Tag == "LateReason" {
			reason := processReason(loc, snap, "D")
			payload, _ := json.Marshal(reason)
			p.writer.Exec(ctx, `UPDATE darwin_schedules SET delay_reason=$1 WHERE rid=$2;`, string(payload), rid)
			continue
		}
		if loc.Tag != "Location" {
			continue
		}

		originalWT := fullOriginalWT(loc)

		var times [3]*string
		var sources [3]*string
		var types [3]*string
		var delayed [3]bool

		for i, name := range []string{"arr", "pass", "dep"} {
			timeNode := loc.Field(name)
			if timeNode == nil {
				continue
			}

			if at := timeNode.Attr("at"); at != "" {
				t := at
				times[i] = &t
				typ := "A"
				types[i] = &typ
			} else if et := timeNode.Attr("et"); et != "" {
				t := et
				times[i] = &t
				typ := "E"
				types[i] = &typ
			}

			if src := timeNode.Attr("src"); src != "" {
				sources[i] = &src
			}
			delayed[i] = timeNode.Bool("delayed")
		}

		plat := loc.Field("plat")
		var platform *string
		var platSuppressed, platCISSuppressed, platConfirmed bool
		var platSource *string
		if plat != nil {
			if plat.Text != "" {
				v := plat.Text
				platform = &v
			}
			platSuppressed = plat.Bool("platsup")
			platCISSuppressed = plat.Bool("cisPlatsup")
			platConfirmed = plat.Bool("conf")
			if src := plat.Attr("platsrc"); src != "" {
				platSource = &src
			}
		}

		var length *int
		if lengthNode := loc.Field("length"); lengthNode != nil && lengthNode.Text != "" {
			if n, err := strconv.Atoi(lengthNode.Text); err == nil {
				length = &n
			}
		}

		batch = append(batch, []any{
			rid, loc.Attr("tpl"), originalWT,
			parseClockTime(times[0]), parseClockTime(times[1]), parseClockTime(times[2]),
			sources[0], sources[1], sources[2],
			types[0], types[1], types[2],
			delayed[0], delayed[1], delayed[2],
			length, platform, platSuppressed, platCISSuppressed, platConfirmed, platSource,
		})
	}

	p.writer.ExecBatch(ctx, insertScheduleStatusSQL, batch)
}

func parseClockTime(raw *string) any {
	if raw == nil {
		return nil
	}
	t, ok := processTime(*raw)
	if !ok {
		return nil
	}
	return t
}
