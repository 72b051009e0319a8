// Copyright 2025 The go-margin Authors. SPDX-License-Identifier: Apache-2.0

package workerpool

import (
	"runtime"
	"sync/atomic"
	"testing"
)

func TestNew(t *testing.T) {
	pool := New(4)
	defer pool.Close()

	if pool.NumWorkers() != 4 {
		t.Errorf("NumWorkers() = %d, want 4", pool.NumWorkers())
	}
}

func TestNewDefault(t *testing.T) {
	pool := New(0)
	defer pool.Close()

	if pool.NumWorkers() != runtime.GOMAXPROCS(0) {
		t.Errorf("NumWorkers() = %d, want %d", pool.NumWorkers(), runtime.GOMAXPROCS(0))
	}
}

func TestNilPool(t *testing.T) {
	var pool *Pool
	if pool.NumWorkers() != 1 {
		t.Errorf("nil NumWorkers() = %d, want 1", pool.NumWorkers())
	}
	pool.Close()

	results := make([]int, 10)
	pool.ParallelFor(len(results), func(start, end int) {
		for i := start; i < end; i++ {
			results[i] = i + 1
		}
	})
	for i, v := range results {
		if v != i+1 {
			t.Errorf("results[%d] = %d, want %d", i, v, i+1)
		}
	}
}

func TestParallelFor(t *testing.T) {
	pool := New(4)
	defer pool.Close()

	n := 101
	results := make([]int, n)
	pool.ParallelFor(n, func(start, end int) {
		for i := start; i < end; i++ {
			results[i] = i * 2
		}
	})

	for i := 0; i < n; i++ {
		if results[i] != i*2 {
			t.Errorf("results[%d] = %d, want %d", i, results[i], i*2)
		}
	}
}

func TestParallelForAtomicBatched(t *testing.T) {
	pool := New(4)
	defer pool.Close()

	n := 100
	var visits [100]atomic.Int32
	pool.ParallelForAtomicBatched(n, 7, func(start, end int) {
		for i := start; i < end; i++ {
			visits[i].Add(1)
		}
	})

	for i := range visits {
		if got := visits[i].Load(); got != 1 {
			t.Errorf("item %d visited %d times, want 1", i, got)
		}
	}
}

func TestParallelForSmallN(t *testing.T) {
	pool := New(8)
	defer pool.Close()

	n := 3
	var count atomic.Int32
	pool.ParallelFor(n, func(start, end int) {
		count.Add(int32(end - start))
	})

	if count.Load() != int32(n) {
		t.Errorf("count = %d, want %d", count.Load(), n)
	}
}

func TestParallelForZeroN(t *testing.T) {
	pool := New(4)
	defer pool.Close()

	var called bool
	pool.ParallelFor(0, func(start, end int) {
		called = true
	})
	pool.ParallelForAtomicBatched(0, 4, func(start, end int) {
		called = true
	})

	if called {
		t.Error("n=0 should not call fn")
	}
}

func TestCloseMultipleTimes(t *testing.T) {
	pool := New(4)
	pool.Close()
	pool.Close()
}

func TestClosedPoolFallback(t *testing.T) {
	pool := New(4)
	pool.Close()

	n := 100
	results := make([]int, n)
	pool.ParallelForAtomicBatched(n, 3, func(start, end int) {
		for i := start; i < end; i++ {
			results[i] = i * 2
		}
	})

	for i := 0; i < n; i++ {
		if results[i] != i*2 {
			t.Errorf("results[%d] = %d, want %d", i, results[i], i*2)
		}
	}
}

func TestRows(t *testing.T) {
	pool := New(4)
	defer pool.Close()

	tests := []struct {
		name string
		pool *Pool
		rows int
		work int
	}{
		{"nil pool", nil, 64, MinParallelWork * 2},
		{"below threshold", pool, 64, MinParallelWork - 1},
		{"parallel", pool, 64, MinParallelWork * 2},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var total atomic.Int32
			seen := make([]atomic.Bool, tt.rows)
			Rows(tt.pool, tt.rows, tt.work, func(start, end int) {
				for i := start; i < end; i++ {
					if seen[i].Swap(true) {
						t.Errorf("row %d visited twice", i)
					}
					total.Add(1)
				}
			})
			if int(total.Load()) != tt.rows {
				t.Errorf("visited %d rows, want %d", total.Load(), tt.rows)
			}
		})
	}
}

func BenchmarkParallelFor(b *testing.B) {
	pool := New(0)
	defer pool.Close()

	for i := 0; i < b.N; i++ {
		pool.ParallelFor(1000, func(start, end int) {
			for j := start; j < end; j++ {
				_ = j * j
			}
		})
	}
}

func BenchmarkRows(b *testing.B) {
	pool := New(0)
	defer pool.Close()

	for i := 0; i < b.N; i++ {
		Rows(pool, 512, 512*128, func(start, end int) {
			for j := start; j < end; j++ {
				_ = j * j
			}
		})
	}
}
