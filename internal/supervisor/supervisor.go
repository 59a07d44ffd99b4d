// Copyright (C) NHR@FAU, University Erlangen-Nuremberg.
// All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

// Package supervisor owns the top-level process lifecycle once ingestion is
// running: reconnecting the STOMP subscriber, refreshing reference data
// every 12 hours, recomputing origin/destination metadata, and monitoring
// write-queue depth.
package supervisor

import (
	"context"
	"time"

	"github.com/ClusterCockpit/darwin-ingest/internal/darwin"
	"github.com/ClusterCockpit/darwin-ingest/internal/metrics"
	"github.com/ClusterCockpit/darwin-ingest/internal/refdata"
	"github.com/ClusterCockpit/darwin-ingest/internal/repository"
	"github.com/ClusterCockpit/darwin-ingest/internal/stomp"
	"github.com/ClusterCockpit/darwin-ingest/pkg/log"
	"github.com/go-co-op/gocron/v2"
)

// QueueWarnThreshold is the write-queue depth above which the supervisor
// logs a backpressure warning every monitoring tick.
const QueueWarnThreshold = 500

// Supervisor runs the periodic jobs the source drove off one second-resolution
// tick counter. Here reference refresh, metadata recomputation and
// queue-depth monitoring each get their own gocron job at their natural
// cadence, and the reconnect check runs on its own one-second ticker.
type Supervisor struct {
	subscriber *stomp.Subscriber
	loader     *refdata.Loader
	propagator *darwin.Propagator
	writer     *repository.Writer
	scheduler  gocron.Scheduler
}

func New(subscriber *stomp.Subscriber, loader *refdata.Loader, propagator *darwin.Propagator, writer *repository.Writer) (*Supervisor, error) {
	scheduler, err := gocron.NewScheduler()
	if err != nil {
		return nil, err
	}
	return &Supervisor{
		subscriber: subscriber,
		loader:     loader,
		propagator: propagator,
		writer:     writer,
		scheduler:  scheduler,
	}, nil
}

// Start registers the periodic jobs and begins the 1s reconnect-check loop.
// It returns once ctx is cancelled.
func (s *Supervisor) Start(ctx context.Context) error {
	if _, err := s.scheduler.NewJob(
		gocron.DurationJob(12*time.Hour),
		gocron.NewTask(func() {
			if s.loader == nil {
				return
			}
			if err := s.loader.Refresh(ctx); err != nil {
				log.Errorf("supervisor: reference refresh failed: %v", err)
			}
		}),
	); err != nil {
		return err
	}

	if _, err := s.scheduler.NewJob(
		gocron.DurationJob(12*time.Hour),
		gocron.NewTask(func() {
			if err := s.propagator.RenewAll(ctx); err != nil {
				log.Errorf("supervisor: metadata recomputation failed: %v", err)
			}
		}),
	); err != nil {
		return err
	}

	if _, err := s.scheduler.NewJob(
		gocron.DurationJob(30*time.Second),
		gocron.NewTask(func() {
			depth := s.writer.Depth()
			metrics.WriteQueueDepth.Set(float64(depth))
			if depth > QueueWarnThreshold {
				log.Warnf("supervisor: write queue depth (%d) over limit", depth)
			}
		}),
	); err != nil {
		return err
	}

	s.scheduler.Start()
	defer s.scheduler.Shutdown()

	ticker := time.NewTicker(time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			if s.subscriber == nil {
				continue
			}
			if s.subscriber.Disconnected() || s.subscriber.NeverConnected() {
				s.subscriber.ConnectAndSubscribe(ctx)
			}
		}
	}
}

// WaitForQueueDrain blocks until the write queue depth drops to at or below
// limit, the startup-time equivalent of the source's "wait for mp.count() to
// empty below limit" before subscribing live.
func WaitForQueueDrain(ctx context.Context, w *repository.Writer, limit int) {
	for w.Depth() > limit {
		log.Infof("supervisor: waiting for database queue (%d) to empty below limit", w.Depth())
		select {
		case <-ctx.Done():
			return
		case <-time.After(10 * time.Second):
		}
	}
}
