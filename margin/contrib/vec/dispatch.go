// Copyright 2025 go-margin Authors
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package vec

import (
	"os"
	"runtime"
	"strconv"
	"sync/atomic"

	"golang.org/x/sys/cpu"
)

// DispatchLevel selects the accumulation strategy used by the reduction
// kernels (Dot, SquaredNorm).
type DispatchLevel int

const (
	// DispatchScalar accumulates into a single running sum.
	DispatchScalar DispatchLevel = iota

	// DispatchUnroll4 keeps four independent partial sums.
	DispatchUnroll4

	// DispatchUnroll8 keeps eight independent partial sums. Selected on
	// CPUs with AVX2+FMA or ASIMD where the compiler can keep all of them
	// in registers.
	DispatchUnroll8
)

// String returns a human-readable name for the dispatch level.
func (d DispatchLevel) String() string {
	switch d {
	case DispatchScalar:
		return "scalar"
	case DispatchUnroll4:
		return "unroll4"
	case DispatchUnroll8:
		return "unroll8"
	default:
		return "unknown"
	}
}

// currentLevel holds the DispatchLevel detected at init time. Kernels
// read it from worker goroutines while SetLevel may write it.
var currentLevel atomic.Int32

func init() {
	if NoSimdEnv() {
		currentLevel.Store(int32(DispatchScalar))
		return
	}
	currentLevel.Store(int32(detectLevel()))
}

func detectLevel() DispatchLevel {
	switch runtime.GOARCH {
	case "amd64":
		if cpu.X86.HasAVX2 && cpu.X86.HasFMA {
			return DispatchUnroll8
		}
	case "arm64":
		if cpu.ARM64.HasASIMD {
			return DispatchUnroll8
		}
	}
	return DispatchUnroll4
}

// CurrentLevel returns the dispatch level in use.
func CurrentLevel() DispatchLevel {
	return DispatchLevel(currentLevel.Load())
}

// CurrentName returns the name of the dispatch level in use, e.g. "unroll8".
func CurrentName() string {
	return CurrentLevel().String()
}

// SetLevel overrides the dispatch level and returns a function restoring the
// previous one. Intended for tests and benchmarks comparing kernels. Calls
// racing with running kernels are safe; each kernel call uses one level.
func SetLevel(level DispatchLevel) (restore func()) {
	prev := DispatchLevel(currentLevel.Swap(int32(level)))
	return func() { currentLevel.Store(int32(prev)) }
}

// NoSimdEnv checks if the MARGIN_NO_SIMD environment variable is set.
// When set, the scalar kernels are used regardless of CPU capabilities.
func NoSimdEnv() bool {
	val := os.Getenv("MARGIN_NO_SIMD")
	if val == "" {
		return false
	}
	if b, err := strconv.ParseBool(val); err == nil {
		return b
	}
	return true
}
