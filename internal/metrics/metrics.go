// Copyright (C) NHR@FAU, University Erlangen-Nuremberg.
// All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

// Package metrics registers the Prometheus collectors the ingestion core
// reports through, served by the read HTTP layer's /metrics endpoint.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	FramesProcessed = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "darwin_ingest",
		Name:      "frames_processed_total",
		Help:      "Push Port frames successfully decoded and stored, by source.",
	}, []string{"source"})

	ParseFailures = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "darwin_ingest",
		Name:      "parse_failures_total",
		Help:      "Frames that failed to decompress or decode, by source.",
	}, []string{"source"})

	WriteQueueDepth = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "darwin_ingest",
		Name:      "write_queue_depth",
		Help:      "Current depth of the Writer's task queue.",
	})

	STOMPReconnects = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "darwin_ingest",
		Name:      "stomp_reconnects_total",
		Help:      "STOMP (re)connection attempts made.",
	})

	SnapshotBootstrapSeconds = promauto.NewHistogram(prometheus.HistogramOpts{
		Namespace: "darwin_ingest",
		Name:      "snapshot_bootstrap_seconds",
		Help:      "Wall-clock duration of an FTP snapshot bootstrap run.",
		Buckets:   prometheus.ExponentialBuckets(5, 2, 10),
	})
)
