// Copyright (C) NHR@FAU, University Erlangen-Nuremberg.
// All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

// Package bplan imports Network Rail's BPlan TSV topology export (timing
// links and static platform assignments). It is a supplemental, operator-
// triggered seed path, never invoked by the live ingestion loop.
package bplan

import (
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"strconv"
	"time"

	"github.com/ClusterCockpit/darwin-ingest/internal/repository"
	"github.com/ClusterCockpit/darwin-ingest/pkg/log"
	"github.com/ClusterCockpit/darwin-ingest/pkg/schema"
	"golang.org/x/text/encoding/charmap"
)

const dateLayout = "02-01-2006 15:04:05"

const upsertNetworkLinkSQL = `INSERT INTO darwin_network_links
	(origin, destination, running_line_code, running_line_desc, start_date, end_date,
	initial_direction, final_direction, distance, doo_passenger, doo_non_passenger, retb,
	zone, reversible, power, route_allowance)
	VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16)
	ON CONFLICT (origin, destination) DO UPDATE SET
	running_line_code=EXCLUDED.running_line_code, running_line_desc=EXCLUDED.running_line_desc,
	start_date=EXCLUDED.start_date, end_date=EXCLUDED.end_date,
	initial_direction=EXCLUDED.initial_direction, final_direction=EXCLUDED.final_direction,
	distance=EXCLUDED.distance, doo_passenger=EXCLUDED.doo_passenger,
	doo_non_passenger=EXCLUDED.doo_non_passenger, retb=EXCLUDED.retb,
	zone=EXCLUDED.zone, reversible=EXCLUDED.reversible, power=EXCLUDED.power,
	route_allowance=EXCLUDED.route_allowance;`

const upsertPlatformSQL = `INSERT INTO darwin_platforms (tiploc, platform_id)
	VALUES ($1,$2) ON CONFLICT (tiploc, platform_id) DO NOTHING;`

// Import reads the BPlan export at path and writes every NWK/PLT row it
// finds through writer. REF rows are recognised but carry nothing the
// ingestion core reads, so they are skipped. A malformed line is logged and
// skipped; it does not abort the import.
func Import(path string, writer *repository.Writer) error {
	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("bplan: open %s: %w", path, err)
	}
	defer f.Close()

	decoder := charmap.Windows1252.NewDecoder()
	r := csv.NewReader(decoder.Reader(f))
	r.Comma = '\t'
	r.FieldsPerRecord = -1
	r.LazyQuotes = true

	log.Info("bplan: importing network topology")

	var (
		links, platforms int
		lineNo           int
	)

	for {
		lineNo++
		record, err := r.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			log.Warnf("bplan: line %d: %v", lineNo, err)
			continue
		}
		if len(record) == 0 {
			continue
		}

		switch record[0] {
		case "NWK":
			if err := importNetworkLink(record, writer); err != nil {
				log.Warnf("bplan: line %d: %v", lineNo, err)
				continue
			}
			links++
		case "PLT":
			if err := importPlatform(record, writer); err != nil {
				log.Warnf("bplan: line %d: %v", lineNo, err)
				continue
			}
			platforms++
		case "REF":
			// reference-code rows carry nothing the ingestion core reads.
		}
	}

	log.Infof("bplan: imported %d network links and %d platform rows", links, platforms)
	return nil
}

func importNetworkLink(record []string, writer *repository.Writer) error {
	if len(record) < 19 {
		return fmt.Errorf("NWK: expected 19 fields, got %d", len(record))
	}

	startDate, err := parseBPlanDate(record[6])
	if err != nil {
		return fmt.Errorf("NWK: start date: %w", err)
	}
	endDate, err := parseBPlanDate(record[7])
	if err != nil {
		return fmt.Errorf("NWK: end date: %w", err)
	}

	var distance *int
	if record[10] != "" {
		n, err := strconv.Atoi(record[10])
		if err != nil {
			return fmt.Errorf("NWK: distance: %w", err)
		}
		distance = &n
	}

	link := schema.NetworkLink{
		Origin:           record[2],
		Destination:      record[3],
		RunningLineCode:  record[4],
		RunningLineDesc:  nonEmpty(record[5]),
		StartDate:        startDate,
		EndDate:          endDate,
		InitialDirection: record[8],
		FinalDirection:   record[9],
		Distance:         distance,
		DOOPassenger:     record[11] == "Y",
		DOONonPassenger:  record[12] == "Y",
		RETB:             record[13] == "Y",
		Zone:             record[14],
		Reversible:       record[15],
		Power:            record[16],
		RouteAllowance:   record[17],
	}

	writer.Exec(context.Background(), upsertNetworkLinkSQL,
		link.Origin, link.Destination, link.RunningLineCode, link.RunningLineDesc,
		link.StartDate, link.EndDate, link.InitialDirection, link.FinalDirection,
		link.Distance, link.DOOPassenger, link.DOONonPassenger, link.RETB,
		link.Zone, link.Reversible, link.Power, link.RouteAllowance)
	return nil
}

func importPlatform(record []string, writer *repository.Writer) error {
	if len(record) < 3 {
		return fmt.Errorf("PLT: expected at least 3 fields, got %d", len(record))
	}

	writer.Exec(context.Background(), upsertPlatformSQL, record[1], record[2])
	return nil
}

// parseBPlanDate parses a "DD-MM-YYYY HH:MM:SS" column, offsets it by one
// second (BPlan encodes some boundaries as 23:59:59 of the prior day), then
// truncates to a date. An empty column is a valid "no bound" value.
func parseBPlanDate(raw string) (*time.Time, error) {
	if raw == "" {
		return nil, nil
	}
	t, err := time.Parse(dateLayout, raw)
	if err != nil {
		return nil, err
	}
	d := t.Add(time.Second).Truncate(24 * time.Hour)
	return &d, nil
}

func nonEmpty(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
