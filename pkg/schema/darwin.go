// Copyright (C) NHR@FAU, University Erlangen-Nuremberg.
// All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.
package schema

import (
	"encoding/json"
	"time"
)

// LocationOutline is the denormalized reference-location summary embedded in
// Schedule.Origins/Destinations and in cancel/delay reason payloads.
type LocationOutline struct {
	Source            string `json:"source"`
	Type              string `json:"type"`
	Activity          string `json:"activity"`
	Cancelled         bool   `json:"cancelled"`
	Tiploc            string `json:"tiploc"`
	CrsDarwin         string `json:"crs_darwin,omitempty"`
	NameShort         string `json:"name_short,omitempty"`
	NameFull          string `json:"name_full,omitempty"`
	Category          string `json:"category,omitempty"`
	AssociationTiploc string `json:"association_tiploc,omitempty"`
}

// Reason is the structured payload stored on Schedule.CancelReason/DelayReason.
type Reason struct {
	Code     string           `json:"code"`
	Message  string           `json:"message"`
	Location *LocationOutline `json:"location,omitempty"`
	Near     bool             `json:"near"`
}

// Schedule is one realized train run, keyed by RID.
type Schedule struct {
	UID            string          `db:"uid" json:"uid"`
	RID            string          `db:"rid" json:"rid"`
	RSID           *string         `db:"rsid" json:"rsid,omitempty"`
	SSD            time.Time       `db:"ssd" json:"ssd"`
	SignallingID   *string         `db:"signalling_id" json:"signalling_id,omitempty"`
	Status         string          `db:"status" json:"status"`
	Category       string          `db:"category" json:"category"`
	Operator       string          `db:"operator" json:"operator"`
	IsActive       bool            `db:"is_active" json:"is_active"`
	IsCharter      bool            `db:"is_charter" json:"is_charter"`
	IsDeleted      bool            `db:"is_deleted" json:"is_deleted"`
	IsPassenger    bool            `db:"is_passenger" json:"is_passenger"`
	Origins        json.RawMessage `db:"origins" json:"origins"`
	Destinations   json.RawMessage `db:"destinations" json:"destinations"`
	CancelReason   json.RawMessage `db:"cancel_reason" json:"cancel_reason,omitempty"`
	DelayReason    json.RawMessage `db:"delay_reason" json:"delay_reason,omitempty"`
}

// ScheduleLocation is an ordered call point of a Schedule.
type ScheduleLocation struct {
	RID         string     `db:"rid" json:"rid"`
	Index       int        `db:"index" json:"index"`
	Type        string     `db:"type" json:"type"`
	Tiploc      string     `db:"tiploc" json:"tiploc"`
	Activity    string     `db:"activity" json:"activity"`
	OriginalWT  string     `db:"original_wt" json:"original_wt"`
	PTA         *time.Time `db:"pta" json:"pta,omitempty"`
	WTA         *time.Time `db:"wta" json:"wta,omitempty"`
	WTP         *time.Time `db:"wtp" json:"wtp,omitempty"`
	PTD         *time.Time `db:"ptd" json:"ptd,omitempty"`
	WTD         *time.Time `db:"wtd" json:"wtd,omitempty"`
	Cancelled   bool       `db:"cancelled" json:"cancelled"`
	RDelay      int        `db:"rdelay" json:"rdelay"`
}

// ScheduleStatus carries the live timings for a single call point.
type ScheduleStatus struct {
	RID              string  `db:"rid" json:"rid"`
	Tiploc           string  `db:"tiploc" json:"tiploc"`
	OriginalWT       string  `db:"original_wt" json:"original_wt"`
	TA               *time.Time `db:"ta" json:"ta,omitempty"`
	TP               *time.Time `db:"tp" json:"tp,omitempty"`
	TD               *time.Time `db:"td" json:"td,omitempty"`
	TASource         *string `db:"ta_source" json:"ta_source,omitempty"`
	TPSource         *string `db:"tp_source" json:"tp_source,omitempty"`
	TDSource         *string `db:"td_source" json:"td_source,omitempty"`
	TAType           *string `db:"ta_type" json:"ta_type,omitempty"`
	TPType           *string `db:"tp_type" json:"tp_type,omitempty"`
	TDType           *string `db:"td_type" json:"td_type,omitempty"`
	TADelayed        bool    `db:"ta_delayed" json:"ta_delayed"`
	TPDelayed        bool    `db:"tp_delayed" json:"tp_delayed"`
	TDDelayed        bool    `db:"td_delayed" json:"td_delayed"`
	Length           *int    `db:"length" json:"length,omitempty"`
	Platform         *string `db:"plat" json:"plat,omitempty"`
	PlatSuppressed   bool    `db:"plat_suppressed" json:"plat_suppressed"`
	PlatCISSuppressed bool   `db:"plat_cis_suppressed" json:"plat_cis_suppressed"`
	PlatConfirmed    bool    `db:"plat_confirmed" json:"plat_confirmed"`
	PlatSource       *string `db:"plat_source" json:"plat_source,omitempty"`
}

// Association is an inter-service link between two ScheduleLocation rows.
type Association struct {
	Category         string `db:"category" json:"category"`
	Tiploc           string `db:"tiploc" json:"tiploc"`
	MainRID          string `db:"main_rid" json:"main_rid"`
	MainOriginalWT   string `db:"main_original_wt" json:"main_original_wt"`
	AssocRID         string `db:"assoc_rid" json:"assoc_rid"`
	AssocOriginalWT  string `db:"assoc_original_wt" json:"assoc_original_wt"`
}

// StationMessage is an operational warning (OW) shown for one or more CRS codes.
type StationMessage struct {
	MessageID string   `db:"message_id" json:"message_id"`
	Category  string   `db:"category" json:"category"`
	Severity  int      `db:"severity" json:"severity"`
	Suppress  bool     `db:"suppress" json:"suppress"`
	Stations  []string `db:"stations" json:"stations"`
	Message   string   `db:"message" json:"message"`
}

// Location is the reference record for a tiploc, seeded by the Reference
// Loader and the BPlan importer.
type Location struct {
	Tiploc     string `db:"tiploc" json:"tiploc"`
	CrsDarwin  string `db:"crs_darwin" json:"crs_darwin,omitempty"`
	CrsCorpus  string `db:"crs_corpus" json:"crs_corpus,omitempty"`
	Operator   string `db:"operator" json:"operator,omitempty"`
	NameDarwin string `db:"name_darwin" json:"name_darwin,omitempty"`
	NameCorpus string `db:"name_corpus" json:"name_corpus,omitempty"`
	Category   string `db:"category" json:"category,omitempty"`
	NameShort  string `db:"name_short" json:"name_short,omitempty"`
	NameFull   string `db:"name_full" json:"name_full,omitempty"`
}

// Outline strips the fields that only make sense in the reference table
// itself, matching the presentation-side "location outline" shape.
func (l Location) Outline(source, typ, activity string, cancelled bool) LocationOutline {
	return LocationOutline{
		Source:    source,
		Type:      typ,
		Activity:  activity,
		Cancelled: cancelled,
		Tiploc:    l.Tiploc,
		CrsDarwin: l.CrsDarwin,
		NameShort: l.NameShort,
		NameFull:  l.NameFull,
		Category:  l.Category,
	}
}

// TocRef maps an operator code to its display name and category.
type TocRef struct {
	Operator     string `db:"operator" json:"operator"`
	OperatorName string `db:"operator_name" json:"operator_name"`
	URL          string `db:"url" json:"url,omitempty"`
	Category     string `db:"category" json:"category"`
}

// ReasonType distinguishes cancellation from late-running reason text.
type ReasonType string

const (
	ReasonCancel ReasonType = "C"
	ReasonDelay  ReasonType = "D"
)

// ReasonRef is a (code, type) -> localized message row.
type ReasonRef struct {
	Code    string     `db:"id" json:"code"`
	Type    ReasonType `db:"type" json:"type"`
	Message string     `db:"message" json:"message"`
}

// NetworkLink is a BPlan NWK timing-link row.
type NetworkLink struct {
	Origin            string     `db:"origin" json:"origin"`
	Destination       string     `db:"destination" json:"destination"`
	RunningLineCode   string     `db:"running_line_code" json:"running_line_code"`
	RunningLineDesc   *string    `db:"running_line_desc" json:"running_line_desc,omitempty"`
	StartDate         *time.Time `db:"start_date" json:"start_date,omitempty"`
	EndDate           *time.Time `db:"end_date" json:"end_date,omitempty"`
	InitialDirection  string     `db:"initial_direction" json:"initial_direction"`
	FinalDirection    string     `db:"final_direction" json:"final_direction"`
	Distance          *int       `db:"distance" json:"distance,omitempty"`
	DOOPassenger      bool       `db:"doo_passenger" json:"doo_passenger"`
	DOONonPassenger   bool       `db:"doo_non_passenger" json:"doo_non_passenger"`
	RETB              bool       `db:"retb" json:"retb"`
	Zone              string     `db:"zone" json:"zone"`
	Reversible        string     `db:"reversible" json:"reversible"`
	Power             string     `db:"power" json:"power"`
	RouteAllowance    string     `db:"route_allowance" json:"route_allowance"`
}

// Platform is a BPlan PLT static platform registry row.
type Platform struct {
	Tiploc     string `db:"tiploc" json:"tiploc"`
	PlatformID string `db:"platform_id" json:"platform_id"`
}

// LastReceivedSequence is the singleton row (id=0) recording STOMP delivery
// progress, used for gap detection and to decide whether a snapshot bootstrap
// is required on startup.
type LastReceivedSequence struct {
	ID           int       `db:"id" json:"id"`
	Sequence     int       `db:"sequence" json:"sequence"`
	TimeAcquired time.Time `db:"time_acquired" json:"time_acquired"`
}

// ProgramConfig is the ingester's top-level configuration, decoded from JSON
// and validated against schemas/config.schema.json.
type ProgramConfig struct {
	DatabaseString string `json:"database-string"`

	Hostname   string `json:"hostname"`
	Username   string `json:"username"`
	Password   string `json:"password"`
	Subscribe  string `json:"subscribe"`
	Identifier string `json:"identifier"`
	ClientID   string `json:"client-id"`

	FTPHostname string `json:"ftp-hostname"`
	FTPUsername string `json:"ftp-username"`
	FTPPassword string `json:"ftp-password"`

	S3Access   string `json:"s3-access"`
	S3Secret   string `json:"s3-secret"`
	S3Bucket   string `json:"s3-bucket"`
	S3Region   string `json:"s3-region"`
	S3Endpoint string `json:"s3-endpoint"`

	NoFromFTP                    bool `json:"no_from_ftp"`
	NoListenSTOMP                bool `json:"no_listen_stomp"`
	FTPSnapshotBaseSnapshotOnly  bool `json:"ftp_snapshot_base_snapshot_only"`

	HTTPAddr         string `json:"http-addr"`
	LogLevel         string `json:"log-level"`
	HeartbeatSeconds int    `json:"heartbeat-seconds"`
	BPlanPath        string `json:"bplan-path"`
}
