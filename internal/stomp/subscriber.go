// Copyright (C) NHR@FAU, University Erlangen-Nuremberg.
// All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

// Package stomp maintains the live connection to the Push Port broker: a
// bounded-backoff reconnect loop, heartbeats, client-individual
// acknowledgement, and the per-message decode/store/sequence-record/commit/ack
// sequence.
package stomp

import (
	"bytes"
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/ClusterCockpit/darwin-ingest/internal/darwin"
	"github.com/ClusterCockpit/darwin-ingest/internal/decompress"
	"github.com/ClusterCockpit/darwin-ingest/internal/metrics"
	"github.com/ClusterCockpit/darwin-ingest/internal/repository"
	"github.com/ClusterCockpit/darwin-ingest/internal/retry"
	"github.com/ClusterCockpit/darwin-ingest/internal/xmldecoder"
	"github.com/ClusterCockpit/darwin-ingest/pkg/log"
	"github.com/cenkalti/backoff/v4"
	gostomp "github.com/go-stomp/stomp/v3"
)

// Config names the broker endpoint and credentials for one ingester.
type Config struct {
	Hostname         string
	Username         string
	Password         string
	Subscribe        string
	Identifier       string
	HeartbeatSeconds int
}

type state int

const (
	stateDown state = iota
	stateConnecting
	stateUp
)

const minReconnectGap = 10 * time.Second

// Subscriber owns the broker connection lifecycle. It is driven by the
// supervisor's one-second reconnect loop, which polls Disconnected and
// NeverConnected and calls ConnectAndSubscribe, mirroring the source's
// is_disconnected()/is_before_first_connection() polling instead of a
// push-driven reconnect.
type Subscriber struct {
	cfg       Config
	processor *darwin.Processor
	writer    *repository.Writer
	dec       *xmldecoder.Decoder

	mu                 sync.Mutex
	state              state
	conn               *gostomp.Conn
	sub                *gostomp.Subscription
	lastConnectAttempt time.Time
	totalAttempts      int
}

func pushPortDecoder() *xmldecoder.Decoder {
	return xmldecoder.New(xmldecoder.Config{
		ListPaths: []string{
			"Pport.uR", "Pport.uR.schedule", "Pport.uR.TS", "Pport.uR.OW",
			"Pport.sR", "Pport.sR.schedule", "Pport.sR.TS", "Pport.sR.OW",
		},
		Detokenise:      []string{"Pport.uR.OW.Msg", "Pport.sR.OW.Msg"},
		StripWhitespace: true,
		IncludeTags:     true,
	})
}

func NewSubscriber(cfg Config, processor *darwin.Processor, writer *repository.Writer) *Subscriber {
	return &Subscriber{
		cfg:       cfg,
		processor: processor,
		writer:    writer,
		dec:       pushPortDecoder(),
		state:     stateDown,
	}
}

// Disconnected reports whether a (re)connection attempt is due, the
// STOMP-side half of the supervisor's reconnect check.
func (s *Subscriber) Disconnected() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state == stateDown && s.totalAttempts > 0 && time.Since(s.lastConnectAttempt) > 5*time.Second
}

// NeverConnected reports whether the very first connection attempt has not
// happened yet.
func (s *Subscriber) NeverConnected() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state == stateDown && s.totalAttempts == 0
}

// ConnectAndSubscribe runs the bounded-backoff reconnect loop: up to 30
// attempts, each waiting max(min(n^2,600),10) seconds, heartbeats in both
// directions at HeartbeatSeconds (35s when unset), client-individual ack,
// and ActiveMQ's durable
// subscription name header.
func (s *Subscriber) ConnectAndSubscribe(ctx context.Context) {
	s.mu.Lock()
	if s.state == stateConnecting {
		s.mu.Unlock()
		return
	}
	s.state = stateConnecting
	s.mu.Unlock()

	if gap := time.Since(s.lastConnectAttempt); gap < minReconnectGap {
		log.Info("stomp: last connection attempt too recent, delaying")
		time.Sleep(minReconnectGap - gap)
	}

	heartbeat := time.Duration(s.cfg.HeartbeatSeconds) * time.Second
	if heartbeat <= 0 {
		heartbeat = 35 * time.Second
	}

	attempt := 0
	err := backoff.RetryNotify(func() error {
		attempt++
		s.mu.Lock()
		s.totalAttempts++
		s.lastConnectAttempt = time.Now()
		s.mu.Unlock()

		log.Infof("stomp: connecting (attempt %d)", attempt)
		metrics.STOMPReconnects.Inc()

		conn, err := gostomp.Dial("tcp", s.cfg.Hostname+":61613",
			gostomp.ConnOpt.Login(s.cfg.Username, s.cfg.Password),
			gostomp.ConnOpt.HeartBeat(heartbeat, heartbeat),
			gostomp.ConnOpt.HeartBeatError(5*time.Second),
		)
		if err != nil {
			return fmt.Errorf("connect: %w", err)
		}

		sub, err := conn.Subscribe(s.cfg.Subscribe, gostomp.AckClientIndividual,
			gostomp.SubscribeOpt.Header("activemq.subscriptionName", s.cfg.Identifier),
		)
		if err != nil {
			_ = conn.Disconnect()
			return fmt.Errorf("subscribe: %w", err)
		}

		s.mu.Lock()
		s.conn = conn
		s.sub = sub
		s.state = stateUp
		s.mu.Unlock()

		log.Info("stomp: connected")
		go s.receiveLoop(ctx, conn, sub)
		return nil
	}, retry.Session(ctx, 10*time.Second, 600*time.Second), func(err error, wait time.Duration) {
		log.Errorf("stomp: %v, waiting %s", err, wait)
	})

	if err != nil {
		log.Error("stomp: connection attempts exhausted")
		s.mu.Lock()
		s.state = stateDown
		s.mu.Unlock()
	}
}

func (s *Subscriber) receiveLoop(ctx context.Context, conn *gostomp.Conn, sub *gostomp.Subscription) {
	for msg := range sub.C {
		if msg.Err != nil {
			log.Errorf("stomp: subscription error: %v", msg.Err)
			continue
		}
		s.handleMessage(ctx, conn, msg)
	}

	log.Error("stomp: disconnected")
	s.mu.Lock()
	if s.conn == conn {
		s.state = stateDown
		s.conn = nil
		s.sub = nil
	}
	s.mu.Unlock()
}

// handleMessage mirrors Listener.on_message: BEGIN, decompress + decode,
// then store. A decompress or decode failure means the frame itself is
// unusable — it is logged, committed as a no-op and acked, since redelivery
// would only ever hit the same malformed bytes again. A transformation
// (store) failure is different: the transaction is rolled back and the
// frame is left unacked, so the broker redelivers it once the underlying
// fault (usually a schema or data assumption violated by a new message
// shape) is fixed.
func (s *Subscriber) handleMessage(ctx context.Context, conn *gostomp.Conn, msg *gostomp.Message) {
	s.writer.Exec(ctx, "BEGIN")

	body, err := decompress.All(msg.Body)
	if err != nil {
		log.Errorf("stomp: decompress failed: %v", err)
		metrics.ParseFailures.WithLabelValues("stomp").Inc()
		s.writer.Exec(ctx, "COMMIT")
		s.ack(conn, msg)
		return
	}

	root, err := s.dec.Decode(bytes.NewReader(body))
	if err != nil {
		log.Errorf("stomp: decode failed: %v", err)
		metrics.ParseFailures.WithLabelValues("stomp").Inc()
		s.writer.Exec(ctx, "COMMIT")
		s.ack(conn, msg)
		return
	}

	if err := s.storeDecoded(ctx, root); err != nil {
		log.Errorf("stomp: store failed, rolling back: %v", err)
		metrics.ParseFailures.WithLabelValues("stomp").Inc()
		s.writer.Exec(ctx, "ROLLBACK")
		return
	}
	metrics.FramesProcessed.WithLabelValues("stomp").Inc()

	if seq := msg.Header.Get("SequenceNumber"); seq != "" {
		s.writer.Exec(ctx, `INSERT INTO last_received_sequence VALUES (0, $1, $2)
			ON CONFLICT (id) DO UPDATE SET sequence=EXCLUDED.sequence, time_acquired=EXCLUDED.time_acquired;`,
			seq, time.Now().UTC())
	}

	s.writer.Exec(ctx, "COMMIT")
	s.ack(conn, msg)
}

func (s *Subscriber) ack(conn *gostomp.Conn, msg *gostomp.Message) {
	if err := conn.Ack(msg); err != nil {
		log.Errorf("stomp: ack failed: %v", err)
	}
}

func (s *Subscriber) storeDecoded(ctx context.Context, root *xmldecoder.Node) error {
	pport := root.Field("Pport")
	if pport == nil {
		return fmt.Errorf("missing Pport root element")
	}
	if ur := pport.Field("uR"); ur != nil {
		return s.processor.Process(ctx, ur)
	}
	if sr := pport.Field("sR"); sr != nil {
		return s.processor.Process(ctx, sr)
	}
	return nil
}
