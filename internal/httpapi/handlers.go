// Copyright (C) NHR@FAU, University Erlangen-Nuremberg.
// All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.
package httpapi

import (
	"encoding/json"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/ClusterCockpit/darwin-ingest/internal/repository"
	"github.com/ClusterCockpit/darwin-ingest/internal/stomp"
	"github.com/ClusterCockpit/darwin-ingest/pkg/log"
	"github.com/gorilla/mux"
)

// API wires the read-only handlers to the shared database pool and the
// live ingestion components /healthz reports on.
type API struct {
	Writer     *repository.Writer
	Subscriber *stomp.Subscriber
}

func writeJSON(rw http.ResponseWriter, status int, v any) {
	rw.Header().Set("Content-Type", "application/json")
	rw.WriteHeader(status)
	if err := json.NewEncoder(rw).Encode(v); err != nil {
		log.Errorf("httpapi: encode response: %v", err)
	}
}

func writeError(rw http.ResponseWriter, status int, msg string) {
	writeJSON(rw, status, map[string]string{"error": msg})
}

// getSchedule handles GET /schedules/{rid}.
func (a *API) getSchedule(rw http.ResponseWriter, r *http.Request) {
	rid := mux.Vars(r)["rid"]

	view, err := GetSchedule(r.Context(), repository.GetConnection().DB, rid, "", time.Time{})
	if err != nil {
		writeError(rw, http.StatusInternalServerError, err.Error())
		return
	}
	if view == nil {
		writeError(rw, http.StatusNotFound, "no such schedule")
		return
	}

	writeJSON(rw, http.StatusOK, view)
}

// getStationBoard handles GET /station-board?crs=XXX&period=480&limit=15.
func (a *API) getStationBoard(rw http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	codes := splitNonEmpty(q.Get("crs"))
	if len(codes) == 0 {
		writeError(rw, http.StatusBadRequest, "missing crs query parameter")
		return
	}

	period := 480 * time.Minute
	if v := q.Get("period"); v != "" {
		minutes, err := strconv.Atoi(v)
		if err != nil {
			writeError(rw, http.StatusBadRequest, "invalid period")
			return
		}
		period = time.Duration(minutes) * time.Minute
	}

	limit := 15
	if v := q.Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			writeError(rw, http.StatusBadRequest, "invalid limit")
			return
		}
		limit = n
	}

	baseDT := time.Now().UTC()
	if v := q.Get("from"); v != "" {
		t, err := time.Parse(time.RFC3339, v)
		if err != nil {
			writeError(rw, http.StatusBadRequest, "invalid from timestamp")
			return
		}
		baseDT = t
	}

	board, err := StationBoard(r.Context(), repository.GetConnection().DB, codes, baseDT, period, limit, q.Get("via"))
	if err != nil {
		writeError(rw, http.StatusInternalServerError, err.Error())
		return
	}
	if board == nil {
		writeError(rw, http.StatusNotFound, "no matching locations")
		return
	}

	writeJSON(rw, http.StatusOK, board)
}

// getStationMessages handles GET /station-messages?crs=XXX.
func (a *API) getStationMessages(rw http.ResponseWriter, r *http.Request) {
	codes := splitNonEmpty(r.URL.Query().Get("crs"))
	if len(codes) == 0 {
		writeError(rw, http.StatusBadRequest, "missing crs query parameter")
		return
	}

	messages, err := StationMessagesFor(r.Context(), repository.GetConnection().DB, codes)
	if err != nil {
		writeError(rw, http.StatusInternalServerError, err.Error())
		return
	}

	writeJSON(rw, http.StatusOK, map[string]any{"messages": messages})
}

// healthzResponse is the /healthz payload: STOMP link state, write-queue
// depth, and how stale the last received Push Port sequence number is.
type healthzResponse struct {
	STOMPConnected    bool    `json:"stomp_connected"`
	WriteQueueDepth   int     `json:"write_queue_depth"`
	LastRetrieved     *time.Time `json:"last_retrieved,omitempty"`
	LastRetrievedAgeS *float64   `json:"last_retrieved_age_seconds,omitempty"`
}

func (a *API) getHealthz(rw http.ResponseWriter, r *http.Request) {
	resp := healthzResponse{}
	if a.Writer != nil {
		resp.WriteQueueDepth = a.Writer.Depth()
	}
	if a.Subscriber != nil {
		resp.STOMPConnected = !a.Subscriber.Disconnected() && !a.Subscriber.NeverConnected()
	}

	if t, err := LastRetrieved(r.Context(), repository.GetConnection().DB); err == nil && !t.IsZero() {
		resp.LastRetrieved = &t
		age := time.Since(t).Seconds()
		resp.LastRetrievedAgeS = &age
	}

	writeJSON(rw, http.StatusOK, resp)
}

func splitNonEmpty(raw string) []string {
	if raw == "" {
		return nil
	}
	var out []string
	for _, s := range strings.Split(raw, ",") {
		if s = strings.TrimSpace(s); s != "" {
			out = append(out, s)
		}
	}
	return out
}
