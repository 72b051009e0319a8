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

package margin

import (
	"math"
	"math/rand/v2"
	"testing"

	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/diff/fd"
	"gonum.org/v1/gonum/mat"
)

func newRand(seed uint64) *rand.Rand {
	return rand.New(rand.NewPCG(seed, seed+1))
}

func randomMatrix(rng *rand.Rand, rows, cols int) *mat.Dense {
	data := make([]float64, rows*cols)
	for i := range data {
		data[i] = rng.NormFloat64()
	}
	return mat.NewDense(rows, cols, data)
}

func randomUnitMatrix(rng *rand.Rand, rows, cols int) *mat.Dense {
	m := randomMatrix(rng, rows, cols)
	for i := range rows {
		row := m.RawRowView(i)
		n := 0.0
		for _, v := range row {
			n += v * v
		}
		n = math.Sqrt(n)
		for j := range row {
			row[j] /= n
		}
	}
	return m
}

// nearPrototypes returns embeddings that point roughly at the prototype of
// their label: w[y] + noise*N(0, 1).
func nearPrototypes(rng *rand.Rand, w *mat.Dense, labels []int, noise float64) *mat.Dense {
	_, d := w.Dims()
	x := mat.NewDense(len(labels), d, nil)
	for i, y := range labels {
		for j := range d {
			x.Set(i, j, w.At(y, j)+noise*rng.NormFloat64())
		}
	}
	return x
}

// numericGradient returns the central-difference gradient of f at x0.
func numericGradient(f func([]float64) float64, x0 []float64) []float64 {
	return fd.Gradient(nil, f, x0, &fd.Settings{Formula: fd.Central, Step: 1e-6})
}

// requireGradientsClose compares two gradients with a tolerance relative to
// their magnitude.
func requireGradientsClose(t *testing.T, want, got []float64, msg string) {
	t.Helper()
	require.Len(t, got, len(want), msg)
	scale := 1.0
	for _, v := range want {
		scale = max(scale, math.Abs(v))
	}
	for i := range want {
		require.InDeltaf(t, want[i], got[i], 1e-5*scale, "%s: index %d", msg, i)
	}
}

func flatten(m *mat.Dense) []float64 {
	r, c := m.Dims()
	out := make([]float64, 0, r*c)
	for i := range r {
		out = append(out, m.RawRowView(i)...)
	}
	return out
}
