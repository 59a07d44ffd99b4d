// Copyright (C) NHR@FAU, University Erlangen-Nuremberg.
// All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

// Package snapshot rebuilds database state from the FTP bulk snapshot and
// incremental pushport files before live ingestion resumes, fanning parse
// work across a worker pool while funnelling results back through the
// single Writer in file-arrival, line order.
package snapshot

import (
	"bufio"
	"bytes"
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/ClusterCockpit/darwin-ingest/internal/darwin"
	"github.com/ClusterCockpit/darwin-ingest/internal/decompress"
	"github.com/ClusterCockpit/darwin-ingest/internal/metrics"
	"github.com/ClusterCockpit/darwin-ingest/internal/repository"
	"github.com/ClusterCockpit/darwin-ingest/internal/retry"
	"github.com/ClusterCockpit/darwin-ingest/internal/xmldecoder"
	"github.com/ClusterCockpit/darwin-ingest/pkg/log"
	"github.com/cenkalti/backoff/v4"
	"github.com/jlaffaye/ftp"
	"golang.org/x/sync/errgroup"
)

// Config names the FTP source the nightly schedule snapshot and incremental
// pushport files are published to.
type Config struct {
	Hostname           string
	Username           string
	Password           string
	BaseSnapshotOnly   bool
}

const parseWorkers = 8

// Bootstrapper pulls the FTP snapshot, truncates the live tables and replays
// every decoded message through the Writer, same transaction, in file and
// line order.
type Bootstrapper struct {
	cfg       Config
	processor *darwin.Processor
	writer    *repository.Writer
	dec       *xmldecoder.Decoder
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

func NewBootstrapper(cfg Config, processor *darwin.Processor, writer *repository.Writer) *Bootstrapper {
	return &Bootstrapper{cfg: cfg, processor: processor, writer: writer, dec: pushPortDecoder()}
}

// Run connects with a max(min(n^2,600),10)s bounded backoff over up to 30
// attempts, truncates the live tables inside one transaction, then retrieves
// each snapshot/pushport file in turn and replays its decoded records
// through the Writer before committing.
func (b *Bootstrapper) Run(ctx context.Context) error {
	started := time.Now()
	defer func() { metrics.SnapshotBootstrapSeconds.Observe(time.Since(started).Seconds()) }()

	var conn *ftp.ServerConn
	attempt := 0
	err := backoff.RetryNotify(func() error {
		attempt++
		log.Infof("snapshot: FTP connecting (attempt %d)", attempt)

		c, dialErr := ftp.Dial(b.cfg.Hostname+":21", ftp.DialWithTimeout(30*time.Second))
		if dialErr != nil {
			return fmt.Errorf("dial: %w", dialErr)
		}
		if loginErr := c.Login(b.cfg.Username, b.cfg.Password); loginErr != nil {
			_ = c.Quit()
			return fmt.Errorf("login: %w", loginErr)
		}

		conn = c
		return nil
	}, retry.Session(ctx, 10*time.Second, 600*time.Second), func(err error, wait time.Duration) {
		log.Errorf("snapshot: FTP failed to connect, waiting %s: %v", wait, err)
	})
	if err != nil {
		return fmt.Errorf("snapshot: FTP connection attempts exhausted: %w", err)
	}
	defer conn.Quit()

	files, err := b.listFiles(conn)
	if err != nil {
		return err
	}

	log.Info("snapshot: purging database")
	b.writer.Exec(ctx, "BEGIN")
	b.writer.Exec(ctx, "ALTER TABLE darwin_schedules DISABLE TRIGGER USER;")
	b.writer.Exec(ctx, "TRUNCATE TABLE darwin_schedule_locations,darwin_schedule_status,darwin_associations,darwin_schedules,darwin_messages;")
	b.writer.Exec(ctx, "ALTER TABLE darwin_schedules ENABLE TRIGGER USER;")

	for _, name := range files {
		log.Infof("snapshot: retrieving %s", name)
		if err := b.replayFile(ctx, conn, name); err != nil {
			log.Errorf("snapshot: %s: %v", name, err)
		}
	}

	b.writer.Exec(ctx, "COMMIT")
	return nil
}

func (b *Bootstrapper) listFiles(conn *ftp.ServerConn) ([]string, error) {
	var files []string

	snap, err := conn.NameList("snapshot")
	if err != nil {
		return nil, fmt.Errorf("snapshot: NLST snapshot: %w", err)
	}
	files = append(files, snap...)

	if !b.cfg.BaseSnapshotOnly {
		push, err := conn.NameList("pushport")
		if err != nil {
			return nil, fmt.Errorf("snapshot: NLST pushport: %w", err)
		}
		files = append(files, push...)
	}

	sort.Strings(files)
	return files, nil
}

type parseResult struct {
	index int
	root  *xmldecoder.Node
	err   error
}

// replayFile downloads name, gunzips it as a line stream, fans line parsing
// across parseWorkers goroutines, and feeds the decoded records into the
// Writer strictly in line order regardless of which worker finished first.
func (b *Bootstrapper) replayFile(ctx context.Context, conn *ftp.ServerConn, name string) error {
	resp, err := conn.Retr(name)
	if err != nil {
		return fmt.Errorf("RETR: %w", err)
	}
	defer resp.Close()

	gz, err := decompress.NewReader(resp)
	if err != nil {
		return fmt.Errorf("decompress: %w", err)
	}
	defer gz.Close()

	lines := make(chan indexedLine, parseWorkers*2)
	results := make(chan parseResult, parseWorkers*2)

	g, gctx := errgroup.WithContext(ctx)
	for i := 0; i < parseWorkers; i++ {
		g.Go(func() error {
			for l := range lines {
				root, err := b.dec.Decode(bytes.NewReader(l.data))
				select {
				case results <- parseResult{index: l.index, root: root, err: err}:
				case <-gctx.Done():
					return gctx.Err()
				}
			}
			return nil
		})
	}

	go func() {
		defer close(lines)
		scanner := bufio.NewScanner(gz)
		scanner.Buffer(make([]byte, 0, 64*1024), 4*1024*1024)
		idx := 0
		for scanner.Scan() {
			line := scanner.Bytes()
			if len(bytes.TrimSpace(line)) == 0 {
				idx++
				continue
			}
			cp := append([]byte(nil), line...)
			select {
			case lines <- indexedLine{index: idx, data: cp}:
			case <-gctx.Done():
				return
			}
			idx++
		}
	}()

	done := make(chan struct{})
	go func() {
		defer close(done)
		b.drainInOrder(ctx, results)
	}()

	workerErr := g.Wait()
	close(results)
	<-done

	return workerErr
}

type indexedLine struct {
	index int
	data  []byte
}

// drainInOrder buffers out-of-order worker results and applies them to the
// Writer strictly by ascending line index, so a fast worker's output for
// line 50 never lands ahead of line 12's.
func (b *Bootstrapper) drainInOrder(ctx context.Context, results <-chan parseResult) {
	pending := map[int]parseResult{}
	next := 0

	apply := func(r parseResult) {
		if r.err != nil {
			log.Errorf("snapshot: parse failed (line %d): %v", r.index, r.err)
			metrics.ParseFailures.WithLabelValues("snapshot").Inc()
			return
		}
		pport := r.root.Field("Pport")
		if pport == nil {
			return
		}
		if ur := pport.Field("uR"); ur != nil {
			_ = b.processor.Process(ctx, ur)
		}
		if sr := pport.Field("sR"); sr != nil {
			_ = b.processor.Process(ctx, sr)
		}
		metrics.FramesProcessed.WithLabelValues("snapshot").Inc()
	}

	for r := range results {
		pending[r.index] = r
		for {
			ready, ok := pending[next]
			if !ok {
				break
			}
			apply(ready)
			delete(pending, next)
			next++
		}
	}

	remaining := make([]int, 0, len(pending))
	for idx := range pending {
		remaining = append(remaining, idx)
	}
	sort.Ints(remaining)
	for _, idx := range remaining {
		apply(pending[idx])
	}
}
