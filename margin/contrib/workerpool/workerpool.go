// Copyright 2025 The go-margin Authors. SPDX-License-Identifier: Apache-2.0

// Package workerpool provides a persistent worker pool for the row-parallel
// parts of a margin forward/backward pass: row normalization of embeddings
// and prototypes, and the per-sample loss reductions.
//
// A Pool is created once per training process and handed to every
// Classifier that should use it. A nil *Pool is valid everywhere and means
// "run sequentially".
//
// Usage:
//
//	pool := workerpool.New(runtime.GOMAXPROCS(0))
//	defer pool.Close()
//
//	head, _ := margin.NewClassifier(cfg, margin.WithPool(pool))
package workerpool

import (
	"runtime"
	"sync"
	"sync/atomic"
)

// MinParallelWork is the minimum number of scalar elements a row pass has to
// touch before Rows fans it out. Below that the hand-off to workers costs
// more than the arithmetic.
const MinParallelWork = 16384

// RowBatch is the number of rows a worker grabs at a time in Rows.
const RowBatch = 4

// Pool is a persistent worker pool. Workers are spawned once at creation and
// reused by every parallel call until Close.
type Pool struct {
	numWorkers int
	workC      chan task
	closeOnce  sync.Once
	closed     atomic.Bool
}

type task struct {
	fn   func()
	done *sync.WaitGroup
}

// New creates a pool with numWorkers workers. If numWorkers <= 0, uses
// GOMAXPROCS.
func New(numWorkers int) *Pool {
	if numWorkers <= 0 {
		numWorkers = runtime.GOMAXPROCS(0)
	}

	p := &Pool{
		numWorkers: numWorkers,
		workC:      make(chan task, numWorkers*2),
	}
	for range numWorkers {
		go p.worker()
	}
	return p
}

func (p *Pool) worker() {
	for t := range p.workC {
		t.fn()
		t.done.Done()
	}
}

// NumWorkers returns the number of workers in the pool. A nil pool has one.
func (p *Pool) NumWorkers() int {
	if p == nil {
		return 1
	}
	return p.numWorkers
}

// Close shuts the pool down. Pending work completes; later calls on the
// pool run sequentially. Calling Close multiple times is safe.
func (p *Pool) Close() {
	if p == nil {
		return
	}
	p.closeOnce.Do(func() {
		p.closed.Store(true)
		close(p.workC)
	})
}

// sequential reports whether work of n items has to run on the caller.
func (p *Pool) sequential(n int) bool {
	return p == nil || p.closed.Load() || min(p.numWorkers, n) <= 1
}

// ParallelFor splits [0, n) into one contiguous chunk per worker and calls
// fn(start, end) for each. Blocks until all chunks are done.
func (p *Pool) ParallelFor(n int, fn func(start, end int)) {
	if n <= 0 {
		return
	}
	if p.sequential(n) {
		fn(0, n)
		return
	}

	workers := min(p.numWorkers, n)
	chunk := (n + workers - 1) / workers

	var wg sync.WaitGroup
	for start := 0; start < n; start += chunk {
		end := min(start+chunk, n)
		wg.Add(1)
		p.workC <- task{fn: func() { fn(start, end) }, done: &wg}
	}
	wg.Wait()
}

// ParallelForAtomicBatched hands out [start, end) ranges of at most
// batchSize items through an atomic counter, which balances load when the
// cost per item varies. Blocks until all items are done.
func (p *Pool) ParallelForAtomicBatched(n, batchSize int, fn func(start, end int)) {
	if n <= 0 {
		return
	}
	if batchSize <= 0 {
		batchSize = 1
	}
	numBatches := (n + batchSize - 1) / batchSize
	if p.sequential(numBatches) {
		fn(0, n)
		return
	}

	workers := min(p.numWorkers, numBatches)
	var next atomic.Int32
	var wg sync.WaitGroup
	wg.Add(workers)
	for range workers {
		p.workC <- task{
			fn: func() {
				for {
					start := (int(next.Add(1)) - 1) * batchSize
					if start >= n {
						return
					}
					fn(start, min(start+batchSize, n))
				}
			},
			done: &wg,
		}
	}
	wg.Wait()
}

// Rows runs fn over [0, rows) on the pool when the pass touches at least
// MinParallelWork elements, and sequentially otherwise. work is the total
// element count of the pass (usually rows*cols). pool may be nil.
func Rows(pool *Pool, rows, work int, fn func(start, end int)) {
	if rows <= 0 {
		return
	}
	if pool == nil || work < MinParallelWork {
		fn(0, rows)
		return
	}
	pool.ParallelForAtomicBatched(rows, RowBatch, fn)
}
