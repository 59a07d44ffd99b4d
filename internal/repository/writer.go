// Copyright (C) NHR@FAU, University Erlangen-Nuremberg.
// All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.
package repository

import (
	"context"
	"fmt"
	"sync"

	"github.com/ClusterCockpit/darwin-ingest/pkg/log"
	"github.com/jmoiron/sqlx"
)

type writeMode int

const (
	modeSingle writeMode = iota
	modeBatch
	modeRetain
	modeUseRetain
	modeTerminate
)

// writeTask is the Writer's task queue element: a closed tagged union
// matching the single/batch/retain/use-retain shape of the message
// processor this is modeled on.
type writeTask struct {
	mode   writeMode
	stmt   string
	params []any   // single: one row of args; batch: ignored, see rows
	rows   [][]any // batch: one entry per execution
}

// Writer is the single consumer of all mutating database operations.
// Producers (the STOMP receive loop, the snapshot bootstrap funnel, the
// supervisor's periodic jobs) submit tasks that are executed strictly in
// submission order against one *sqlx.DB, optionally bracketed by literal
// "BEGIN"/"COMMIT" statements the same way the source treats transaction
// control as just another submission on the same queue.
type Writer struct {
	db    *sqlx.DB
	queue chan writeTask
	wg    sync.WaitGroup

	retainMu sync.Mutex
	retain   [][][]any // LIFO stack of retained row sets

	tx *sqlx.Tx
}

// QueueCapacity is the bounded channel depth producers block against; it is
// the system's sole backpressure mechanism (§5).
const QueueCapacity = 1000

func NewWriter(db *sqlx.DB) *Writer {
	w := &Writer{
		db:    db,
		queue: make(chan writeTask, QueueCapacity),
	}
	w.wg.Add(1)
	go w.run()
	return w
}

// Depth reports the number of tasks currently queued, used by the supervisor
// for backpressure logging (warn above 500).
func (w *Writer) Depth() int {
	return len(w.queue)
}

// Close enqueues a poison pill and blocks until the writer goroutine has
// drained every task submitted before it, matching the drain-on-shutdown
// contract.
func (w *Writer) Close() {
	w.queue <- writeTask{mode: modeTerminate}
	w.wg.Wait()
}

// Exec submits a single statement executed once with params, in submission
// order. Used for literal "BEGIN"/"COMMIT" control statements as well as
// ordinary single-row writes. It returns once the task is accepted onto the
// queue, not once it has executed; ctx is honored while waiting for queue
// room, not while the statement itself runs.
func (w *Writer) Exec(ctx context.Context, stmt string, params ...any) error {
	return w.submit(ctx, writeTask{mode: modeSingle, stmt: stmt, params: params})
}

// ExecBatch submits one statement executed once per row in rows, preserving
// submission order against everything else on the queue.
func (w *Writer) ExecBatch(ctx context.Context, stmt string, rows [][]any) error {
	if len(rows) == 0 {
		return nil
	}
	return w.submit(ctx, writeTask{mode: modeBatch, stmt: stmt, rows: rows})
}

// ExecRetain runs a SELECT, and pushes its result rows onto the writer's
// internal LIFO retain stack for a subsequent ExecUseRetain — the
// SELECT-then-INSERT hand-off used to re-attach associations across a
// schedule's location rows being dropped and recreated (§4.3, §4.7).
func (w *Writer) ExecRetain(ctx context.Context, stmt string, params ...any) error {
	return w.submit(ctx, writeTask{mode: modeRetain, stmt: stmt, params: params})
}

// ExecUseRetain pops the most recently retained row set and executes stmt
// once per row, using that row as the positional parameters.
func (w *Writer) ExecUseRetain(ctx context.Context, stmt string) error {
	return w.submit(ctx, writeTask{mode: modeUseRetain, stmt: stmt})
}

// submit hands t to the writer goroutine and returns as soon as it is
// accepted onto the bounded queue. Execution, and any resulting error, happen
// asynchronously in run()/execute() — the queue filling up is the system's
// only backpressure (§5), not waiting on the statement to run.
func (w *Writer) submit(ctx context.Context, t writeTask) error {
	select {
	case w.queue <- t:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (w *Writer) run() {
	defer w.wg.Done()
	for t := range w.queue {
		if t.mode == modeTerminate {
			if w.tx != nil {
				_ = w.tx.Rollback()
			}
			return
		}
		w.execute(t)
	}
}

func (w *Writer) execute(t writeTask) {
	var err error
	switch t.mode {
	case modeSingle:
		err = w.execSingle(t.stmt, t.params)
	case modeBatch:
		err = w.execBatchRows(t.stmt, t.rows)
	case modeRetain:
		err = w.execRetain(t.stmt, t.params)
	case modeUseRetain:
		rows := w.popRetain()
		err = w.execBatchRows(t.stmt, rows)
	}
	if err != nil {
		log.Errorf("writer: %s: %v", describeStmt(t.stmt), err)
	}
}

func (w *Writer) execSingle(stmt string, params []any) error {
	switch stmt {
	case "BEGIN":
		tx, err := w.db.Beginx()
		if err != nil {
			return fmt.Errorf("begin: %w", err)
		}
		w.tx = tx
		return nil
	case "COMMIT":
		if w.tx == nil {
			return nil
		}
		err := w.tx.Commit()
		w.tx = nil
		return err
	case "ROLLBACK":
		if w.tx == nil {
			return nil
		}
		err := w.tx.Rollback()
		w.tx = nil
		return err
	}

	if w.tx != nil {
		_, err := w.tx.Exec(stmt, params...)
		return err
	}
	_, err := w.db.Exec(stmt, params...)
	return err
}

func (w *Writer) execBatchRows(stmt string, rows [][]any) error {
	for _, params := range rows {
		if err := w.execSingle(stmt, params); err != nil {
			return err
		}
	}
	return nil
}

func (w *Writer) execRetain(stmt string, params []any) error {
	var (
		rows *sqlx.Rows
		err  error
	)
	if w.tx != nil {
		rows, err = w.tx.Queryx(stmt, params...)
	} else {
		rows, err = w.db.Queryx(stmt, params...)
	}
	if err != nil {
		return err
	}
	defer rows.Close()

	var retained [][]any
	for rows.Next() {
		cols, err := rows.SliceScan()
		if err != nil {
			return err
		}
		retained = append(retained, cols)
	}

	w.retainMu.Lock()
	w.retain = append(w.retain, retained)
	w.retainMu.Unlock()
	return rows.Err()
}

func (w *Writer) popRetain() [][]any {
	w.retainMu.Lock()
	defer w.retainMu.Unlock()
	if len(w.retain) == 0 {
		return nil
	}
	top := w.retain[len(w.retain)-1]
	w.retain = w.retain[:len(w.retain)-1]
	return top
}

func describeStmt(s string) string {
	if len(s) > 60 {
		return s[:60] + "..."
	}
	return s
}
