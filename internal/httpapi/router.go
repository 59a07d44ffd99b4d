// Copyright (C) NHR@FAU, University Erlangen-Nuremberg.
// All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.
package httpapi

import (
	"io"
	"net/http"

	"github.com/ClusterCockpit/darwin-ingest/pkg/log"
	"github.com/gorilla/handlers"
	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// NewRouter builds the read-only query router: schedules, station board,
// station messages, health and Prometheus exposition, wrapped the way the
// teacher's own HTTP server wraps its router (compression, CORS, access
// logging through pkg/log).
func (a *API) NewRouter() http.Handler {
	r := mux.NewRouter()

	r.HandleFunc("/schedules/{rid}", a.getSchedule).Methods(http.MethodGet)
	r.HandleFunc("/station-board", a.getStationBoard).Methods(http.MethodGet)
	r.HandleFunc("/station-messages", a.getStationMessages).Methods(http.MethodGet)
	r.HandleFunc("/healthz", a.getHealthz).Methods(http.MethodGet)
	r.Handle("/metrics", promhttp.Handler()).Methods(http.MethodGet)

	r.Use(handlers.CompressHandler)
	r.Use(handlers.CORS(
		handlers.AllowedHeaders([]string{"X-Requested-With", "Content-Type"}),
		handlers.AllowedMethods([]string{"GET", "HEAD", "OPTIONS"}),
		handlers.AllowedOrigins([]string{"*"})))

	return handlers.CustomLoggingHandler(log.InfoWriter, r, func(w io.Writer, params handlers.LogFormatterParams) {
		log.Finfof(w, "%s %s (Response: %d, Size: %d)", params.Request.Method, params.URL.RequestURI(), params.StatusCode, params.Size)
	})
}
