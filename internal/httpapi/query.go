// Copyright (C) NHR@FAU, University Erlangen-Nuremberg.
// All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

// Package httpapi is the thin, read-only query layer over the tables the
// Writer populates: a station board, a single schedule, station messages
// and the last-received sequence, served straight off the repository pool
// with no caching of its own.
package httpapi

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/ClusterCockpit/darwin-ingest/pkg/schema"
	"github.com/jmoiron/sqlx"
)

var psql = sq.StatementBuilder.PlaceholderFormat(sq.Dollar)

// TimeSet carries the four faces of one call's time at a location: the
// timetabled working/public pair, and whichever of estimated/actual Darwin
// has reported.
type TimeSet struct {
	Working   *time.Time `json:"working,omitempty"`
	Public    *time.Time `json:"public,omitempty"`
	Estimated *time.Time `json:"estimated,omitempty"`
	Actual    *time.Time `json:"actual,omitempty"`
}

// Platform carries the live platform assignment for one call, when known.
type Platform struct {
	Number        *string `json:"number,omitempty"`
	Suppressed    *bool   `json:"suppressed,omitempty"`
	CISSuppressed *bool   `json:"cis_suppressed,omitempty"`
	Confirmed     *bool   `json:"confirmed,omitempty"`
	Source        *string `json:"source,omitempty"`
}

// LocationView is one call point as shaped for presentation: the location
// outline plus its arrival/pass/departure times and platform.
type LocationView struct {
	Type      string                   `json:"type"`
	Location  *schema.LocationOutline  `json:"location,omitempty"`
	Activity  string                   `json:"activity"`
	Cancelled bool                     `json:"cancelled"`
	Arrival   TimeSet                  `json:"arrival"`
	Pass      TimeSet                  `json:"pass"`
	Departure TimeSet                  `json:"departure"`
	Platform  Platform                 `json:"platform"`
}

// ScheduleView is one realized train run with its locations attached.
type ScheduleView struct {
	UID          string    `json:"uid"`
	RID          string    `json:"rid"`
	RSID         *string   `json:"rsid,omitempty"`
	SSD          time.Time `json:"ssd"`
	SignallingID *string   `json:"signalling_id,omitempty"`
	Status       string    `json:"status"`
	Category     string    `json:"category"`
	Operator     string    `json:"operator"`
	IsActive     bool      `json:"is_active"`
	IsCharter    bool      `json:"is_charter"`
	IsPassenger  bool      `json:"is_passenger"`

	Locations []LocationView `json:"locations,omitempty"`

	Here          *LocationView `json:"here,omitempty"`
	Origin        *LocationView `json:"origin,omitempty"`
	Intermediate  *LocationView `json:"intermediate,omitempty"`
	Destination   *LocationView `json:"destination,omitempty"`
}

// StationBoardResult is the departure/arrival board for one or more CRS
// codes: the resolved locations, any live station messages for them, and
// the matching services in wtd order.
type StationBoardResult struct {
	Locations map[string]schema.Location `json:"locations"`
	Messages  []schema.StationMessage    `json:"messages"`
	Services  []ScheduleView             `json:"services"`
}

// compareTime returns the signed difference between t1 and t2 in hours,
// ignoring date. Kept local to this package rather than shared with the
// darwin package's day-offset logic, the same way the source duplicates
// this helper between its ingestion and query modules.
func compareTime(t1, t2 time.Time) float64 {
	if t1.IsZero() || t2.IsZero() {
		return 0
	}
	s1 := t1.Hour()*3600 + t1.Minute()*60 + t1.Second()
	s2 := t2.Hour()*3600 + t2.Minute()*60 + t2.Second()
	return float64(s1-s2) / 3600
}

// combineDarwinTime projects a Darwin clock-only time (ta/tp/td, whose date
// part is ignored) onto the date of the timetabled working time it corrects,
// applying the same +1/-1 day wrap the ingestion side applies when it first
// computes wta/wtp/wtd from the raw schedule.
func combineDarwinTime(working, darwinClock time.Time) time.Time {
	offset := 0
	switch delta := compareTime(darwinClock, working); {
	case delta < -6:
		offset = 1
	case delta > 18:
		offset = -1
	}
	combined := time.Date(working.Year(), working.Month(), working.Day(),
		darwinClock.Hour(), darwinClock.Minute(), darwinClock.Second(), 0, working.Location())
	return combined.AddDate(0, 0, offset)
}

const locationOutlineColumns = "tiploc, crs_darwin, name_short, name_full, category"

// locationSelectColumns builds the column list for one call-point group
// (base/origin/intermediate/destination), joined against its live status
// and reference-location rows under the given aliases.
func locationSelectColumns(locAlias, statAlias, outlineAlias string) []string {
	return []string{
		locAlias + ".type",
		outlineAlias + ".tiploc", outlineAlias + ".crs_darwin", outlineAlias + ".name_short",
		outlineAlias + ".name_full", outlineAlias + ".category",
		locAlias + ".activity", locAlias + ".cancelled",
		locAlias + ".wta", locAlias + ".pta", locAlias + ".wtp", locAlias + ".wtd", locAlias + ".ptd",
		statAlias + ".plat", statAlias + ".plat_source", statAlias + ".plat_suppressed",
		statAlias + ".plat_cis_suppressed", statAlias + ".plat_confirmed",
		statAlias + ".ta", statAlias + ".ta_source", statAlias + ".ta_type", statAlias + ".ta_delayed",
		statAlias + ".tp", statAlias + ".tp_source", statAlias + ".tp_type", statAlias + ".tp_delayed",
		statAlias + ".td", statAlias + ".td_source", statAlias + ".td_type", statAlias + ".td_delayed",
	}
}

// locationScan holds the scan destinations for one locationSelectColumns
// group; toView converts the raw, possibly-all-NULL row into a LocationView,
// returning nil when the LEFT JOIN matched nothing (no such call on this
// schedule, e.g. no intermediate call at the requested tiploc).
type locationScan struct {
	typ                                       sql.NullString
	tiploc, crsDarwin, nameShort, nameFull, category sql.NullString
	activity                                  sql.NullString
	cancelled                                  sql.NullBool
	wta, pta, wtp, wtd, ptd                    sql.NullTime
	plat, platSource                          sql.NullString
	platSuppressed, platCISSuppressed, platConfirmed sql.NullBool
	ta, tp, td                                 sql.NullTime
	taSource, tpSource, tdSource              sql.NullString
	taType, tpType, tdType                     sql.NullString
	taDelayed, tpDelayed, tdDelayed            sql.NullBool
}

func (g *locationScan) dest() []any {
	return []any{
		&g.typ,
		&g.tiploc, &g.crsDarwin, &g.nameShort, &g.nameFull, &g.category,
		&g.activity, &g.cancelled,
		&g.wta, &g.pta, &g.wtp, &g.wtd, &g.ptd,
		&g.plat, &g.platSource, &g.platSuppressed, &g.platCISSuppressed, &g.platConfirmed,
		&g.ta, &g.taSource, &g.taType, &g.taDelayed,
		&g.tp, &g.tpSource, &g.tpType, &g.tpDelayed,
		&g.td, &g.tdSource, &g.tdType, &g.tdDelayed,
	}
}

func nullTimePtr(t sql.NullTime) *time.Time {
	if !t.Valid {
		return nil
	}
	v := t.Time
	return &v
}

func nullStringPtr(s sql.NullString) *string {
	if !s.Valid {
		return nil
	}
	v := s.String
	return &v
}

func nullBoolPtr(b sql.NullBool) *bool {
	if !b.Valid {
		return nil
	}
	v := b.Bool
	return &v
}

func (g *locationScan) timeSet(working, public sql.NullTime, darwinTime sql.NullTime, darwinSource, darwinType sql.NullString) TimeSet {
	ts := TimeSet{Working: nullTimePtr(working), Public: nullTimePtr(public)}
	if darwinTime.Valid && working.Valid {
		full := combineDarwinTime(working.Time, darwinTime.Time)
		switch darwinType.String {
		case "A":
			ts.Actual = &full
		case "E":
			ts.Estimated = &full
		}
	}
	_ = darwinSource
	return ts
}

func (g *locationScan) toView() *LocationView {
	if !g.typ.Valid {
		return nil
	}

	v := &LocationView{
		Type:      g.typ.String,
		Activity:  g.activity.String,
		Cancelled: g.cancelled.Valid && g.cancelled.Bool,
	}
	if g.tiploc.Valid {
		v.Location = &schema.LocationOutline{
			Tiploc:    g.tiploc.String,
			CrsDarwin: g.crsDarwin.String,
			NameShort: g.nameShort.String,
			NameFull:  g.nameFull.String,
			Category:  g.category.String,
		}
	}

	v.Arrival = g.timeSet(g.wta, g.pta, g.ta, g.taSource, g.taType)
	v.Pass = g.timeSet(g.wtp, sql.NullTime{}, g.tp, g.tpSource, g.tpType)
	v.Departure = g.timeSet(g.wtd, g.ptd, g.td, g.tdSource, g.tdType)

	v.Platform = Platform{
		Number:        nullStringPtr(g.plat),
		Suppressed:    nullBoolPtr(g.platSuppressed),
		CISSuppressed: nullBoolPtr(g.platCISSuppressed),
		Confirmed:     nullBoolPtr(g.platConfirmed),
		Source:        nullStringPtr(g.platSource),
	}
	return v
}

const scheduleHeaderColumns = "sch.uid, sch.rid, sch.rsid, sch.ssd, sch.signalling_id, sch.status, sch.category, sch.operator, sch.is_active, sch.is_charter, sch.is_passenger"

type scheduleHeaderScan struct {
	uid, rid          string
	rsid              sql.NullString
	ssd               time.Time
	signallingID      sql.NullString
	status, category, operator string
	isActive, isCharter, isPassenger bool
}

func (h *scheduleHeaderScan) dest() []any {
	return []any{&h.uid, &h.rid, &h.rsid, &h.ssd, &h.signallingID, &h.status, &h.category, &h.operator,
		&h.isActive, &h.isCharter, &h.isPassenger}
}

func (h *scheduleHeaderScan) toView() ScheduleView {
	return ScheduleView{
		UID: h.uid, RID: h.rid, RSID: nullStringPtr(h.rsid), SSD: h.ssd,
		SignallingID: nullStringPtr(h.signallingID), Status: h.status, Category: h.category,
		Operator: h.operator, IsActive: h.isActive, IsCharter: h.isCharter, IsPassenger: h.isPassenger,
	}
}

// GetSchedule returns the schedule named by rid, or by uid+ssd when rid is
// empty, with its call points attached in index order.
func GetSchedule(ctx context.Context, db *sqlx.DB, rid, uid string, ssd time.Time) (*ScheduleView, error) {
	headerQuery := psql.Select(scheduleHeaderColumns).From("darwin_schedules AS sch")
	if rid != "" {
		headerQuery = headerQuery.Where(sq.Eq{"sch.rid": rid})
	} else {
		headerQuery = headerQuery.Where(sq.Eq{"sch.uid": uid, "sch.ssd": ssd})
	}

	sqlStr, args, err := headerQuery.ToSql()
	if err != nil {
		return nil, err
	}

	var h scheduleHeaderScan
	row := db.QueryRowContext(ctx, sqlStr, args...)
	if err := row.Scan(h.dest()...); err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, err
	}

	view := h.toView()

	locCols := locationSelectColumns("loc", "stat", "loc_outline")
	locQuery := psql.Select(locCols...).
		From("darwin_schedule_locations AS loc").
		LeftJoin("darwin_schedule_status AS stat ON loc.rid=stat.rid AND loc.original_wt=stat.original_wt").
		LeftJoin("darwin_locations AS loc_outline ON loc.tiploc=loc_outline.tiploc").
		Where(sq.Eq{"loc.rid": view.RID}).
		OrderBy("loc.index ASC")

	sqlStr, args, err = locQuery.ToSql()
	if err != nil {
		return nil, err
	}

	rows, err := db.QueryContext(ctx, sqlStr, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	for rows.Next() {
		var g locationScan
		if err := rows.Scan(g.dest()...); err != nil {
			return nil, err
		}
		if lv := g.toView(); lv != nil {
			view.Locations = append(view.Locations, *lv)
		}
	}

	return &view, rows.Err()
}

// LastRetrieved returns the acquisition time of the most recently processed
// Push Port sequence number, or the zero time if nothing has been recorded.
func LastRetrieved(ctx context.Context, db *sqlx.DB) (time.Time, error) {
	var t sql.NullTime
	err := db.QueryRowContext(ctx, "SELECT time_acquired FROM last_received_sequence;").Scan(&t)
	if err == sql.ErrNoRows {
		return time.Time{}, nil
	}
	if err != nil {
		return time.Time{}, err
	}
	return t.Time, nil
}

// StationMessagesFor returns the active station messages covering any of
// the given CRS codes.
func StationMessagesFor(ctx context.Context, db *sqlx.DB, crs []string) ([]schema.StationMessage, error) {
	if len(crs) == 0 {
		return nil, nil
	}

	rows, err := db.QueryxContext(ctx,
		`SELECT category, severity, suppress, stations, message FROM darwin_messages WHERE stations && $1::varchar(3)[];`,
		pgTextArrayLiteral(crs))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []schema.StationMessage
	for rows.Next() {
		var m schema.StationMessage
		var stations pgTextArray
		if err := rows.Scan(&m.Category, &m.Severity, &m.Suppress, &stations, &m.Message); err != nil {
			return nil, err
		}
		m.Stations = []string(stations)
		out = append(out, m)
	}
	return out, rows.Err()
}

// pgTextArrayLiteral renders ss as a PostgreSQL array literal, the same
// representation lib/pq's Array() helper produces, used here so a plain
// database/sql query over the pgx stdlib driver can pass a Go string slice
// as an ANY()/&& operand without a dedicated array-typed driver value.
func pgTextArrayLiteral(ss []string) string {
	var b strings.Builder
	b.WriteByte('{')
	for i, s := range ss {
		if i > 0 {
			b.WriteByte(',')
		}
		b.WriteByte('"')
		for _, r := range s {
			if r == '"' || r == '\\' {
				b.WriteByte('\\')
			}
			b.WriteRune(r)
		}
		b.WriteByte('"')
	}
	b.WriteByte('}')
	return b.String()
}

// pgTextArray scans a PostgreSQL text/varchar array column's wire
// representation ("{a,b,c}") back into a Go string slice.
type pgTextArray []string

func (a *pgTextArray) Scan(src any) error {
	if src == nil {
		*a = nil
		return nil
	}

	var s string
	switch v := src.(type) {
	case string:
		s = v
	case []byte:
		s = string(v)
	default:
		return fmt.Errorf("httpapi: unsupported array scan source %T", src)
	}

	s = strings.TrimPrefix(s, "{")
	s = strings.TrimSuffix(s, "}")
	if s == "" {
		*a = nil
		return nil
	}

	parts := strings.Split(s, ",")
	out := make([]string, len(parts))
	for i, p := range parts {
		out[i] = strings.Trim(p, `"`)
	}
	*a = out
	return nil
}

// StationBoard resolves locations (CRS or tiploc codes) to their schedule
// rows whose departure falls within [baseDT, baseDT+period], returning at
// most limit services ordered by working departure time.
func StationBoard(ctx context.Context, db *sqlx.DB, locations []string, baseDT time.Time, period time.Duration, limit int, intermediateTiploc string) (*StationBoardResult, error) {
	upper := make([]string, len(locations))
	for i, l := range locations {
		upper[i] = upperASCII(l)
	}

	rows, err := db.QueryxContext(ctx,
		`SELECT tiploc, crs_darwin, crs_corpus, operator, name_darwin, name_corpus, category, name_short, name_full
			FROM darwin_locations WHERE crs_darwin = ANY($1::text[]) OR tiploc = ANY($1::text[]);`, pgTextArrayLiteral(upper))
	if err != nil {
		return nil, err
	}

	resolved := map[string]schema.Location{}
	for rows.Next() {
		var l schema.Location
		if err := rows.StructScan(&l); err != nil {
			rows.Close()
			return nil, err
		}
		resolved[l.Tiploc] = l
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, err
	}

	if len(resolved) == 0 {
		return nil, nil
	}

	result := &StationBoardResult{Locations: resolved}

	crsSeen := map[string]bool{}
	var crsList []string
	for _, l := range resolved {
		if l.CrsDarwin != "" && !crsSeen[l.CrsDarwin] {
			crsSeen[l.CrsDarwin] = true
			crsList = append(crsList, l.CrsDarwin)
		}
	}

	messages, err := StationMessagesFor(ctx, db, crsList)
	if err != nil {
		return nil, err
	}
	result.Messages = messages

	tiplocs := make([]string, 0, len(resolved))
	for t := range resolved {
		tiplocs = append(tiplocs, t)
	}

	cols := []string{scheduleHeaderColumns}
	cols = append(cols, locationSelectColumns("base", "b_stat", "b_loc")...)
	cols = append(cols, locationSelectColumns("orig", "o_stat", "o_loc")...)
	cols = append(cols, locationSelectColumns("inter", "i_stat", "i_loc")...)
	cols = append(cols, locationSelectColumns("dest", "d_stat", "d_loc")...)

	query := psql.Select(cols...).
		From("darwin_schedule_locations AS base").
		LeftJoin("darwin_schedules AS sch ON base.rid=sch.rid").
		LeftJoin("darwin_schedule_locations AS dest ON base.rid=dest.rid AND dest.type IN ('DT','OPDT')").
		LeftJoin("darwin_schedule_locations AS orig ON base.rid=orig.rid AND orig.type IN ('OR','OPOR')").
		LeftJoin("darwin_schedule_locations AS inter ON base.rid=inter.rid AND inter.type NOT IN ('PP') AND inter.tiploc=?", intermediateTiploc).
		LeftJoin("darwin_schedule_status AS o_stat ON orig.rid=o_stat.rid AND orig.original_wt=o_stat.original_wt").
		LeftJoin("darwin_schedule_status AS b_stat ON base.rid=b_stat.rid AND base.original_wt=b_stat.original_wt").
		LeftJoin("darwin_schedule_status AS i_stat ON inter.rid=i_stat.rid AND inter.original_wt=i_stat.original_wt").
		LeftJoin("darwin_schedule_status AS d_stat ON dest.rid=d_stat.rid AND dest.original_wt=d_stat.original_wt").
		LeftJoin("darwin_locations AS o_loc ON orig.tiploc=o_loc.tiploc").
		LeftJoin("darwin_locations AS b_loc ON base.tiploc=b_loc.tiploc").
		LeftJoin("darwin_locations AS i_loc ON inter.tiploc=i_loc.tiploc").
		LeftJoin("darwin_locations AS d_loc ON dest.tiploc=d_loc.tiploc").
		Where("base.wtd IS NOT NULL").
		Where(sq.Eq{"base.tiploc": tiplocs}).
		Where(sq.Eq{"base.type": []string{"IP", "OPIP", "DT", "OPDT", "OR", "OPOR"}}).
		Where("NOT sch.is_deleted").
		Where(sq.GtOrEq{"base.wtd": baseDT}).
		Where(sq.LtOrEq{"base.wtd": baseDT.Add(period)}).
		OrderBy("base.wtd").
		Limit(uint64(limit))

	sqlStr, args, err := query.ToSql()
	if err != nil {
		return nil, err
	}

	svcRows, err := db.QueryContext(ctx, sqlStr, args...)
	if err != nil {
		return nil, fmt.Errorf("httpapi: station board query: %w", err)
	}
	defer svcRows.Close()

	for svcRows.Next() {
		var h scheduleHeaderScan
		var base, origin, inter, dest locationScan

		dest0 := h.dest()
		dest0 = append(dest0, base.dest()...)
		dest0 = append(dest0, origin.dest()...)
		dest0 = append(dest0, inter.dest()...)
		dest0 = append(dest0, dest.dest()...)

		if err := svcRows.Scan(dest0...); err != nil {
			return nil, err
		}

		view := h.toView()
		view.Here = base.toView()
		view.Origin = origin.toView()
		view.Intermediate = inter.toView()
		view.Destination = dest.toView()
		result.Services = append(result.Services, view)
	}

	return result, svcRows.Err()
}

func upperASCII(s string) string {
	b := []byte(s)
	for i, c := range b {
		if c >= 'a' && c <= 'z' {
			b[i] = c - ('a' - 'A')
		}
	}
	return string(b)
}
