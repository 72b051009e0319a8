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
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/mat"

	"github.com/ajroetker/go-margin/margin/contrib/workerpool"
)

func TestCosineSimilarityBounds(t *testing.T) {
	rng := newRand(1)
	x := randomMatrix(rng, 16, 12)
	w := randomMatrix(rng, 9, 12)

	sim := CosineSimilarity(nil, x, w, DefaultEpsilon)
	r, c := sim.Cos.Dims()
	require.Equal(t, 16, r)
	require.Equal(t, 9, c)
	for _, v := range flatten(sim.Cos) {
		assert.GreaterOrEqual(t, v, -1.0)
		assert.LessOrEqual(t, v, 1.0)
	}
}

func TestCosineSimilarityValues(t *testing.T) {
	x := mat.NewDense(2, 2, []float64{
		2, 0,
		1, 1,
	})
	w := mat.NewDense(3, 2, []float64{
		5, 0,
		0, -3,
		-1, 0,
	})
	sim := CosineSimilarity(nil, x, w, DefaultEpsilon)
	h := math.Sqrt2 / 2
	want := mat.NewDense(2, 3, []float64{
		1, 0, -1,
		h, -h, -h,
	})
	assert.True(t, mat.EqualApprox(want, sim.Cos, 1e-15))
	assert.Equal(t, []float64{2, math.Sqrt2}, sim.XNorms)
	assert.Equal(t, []float64{5, 3, 1}, sim.WNorms)
}

func TestCosineSimilarityParallelEmbeddingsClampToOne(t *testing.T) {
	rng := newRand(2)
	w := randomMatrix(rng, 4, 33)
	x := mat.NewDense(4, 33, nil)
	x.Scale(1e3, w)

	sim := CosineSimilarity(nil, x, w, DefaultEpsilon)
	for i := range 4 {
		assert.LessOrEqual(t, sim.Cos.At(i, i), 1.0)
		assert.InDelta(t, 1, sim.Cos.At(i, i), 1e-12)
	}
}

func TestCosineSimilarityIdempotentAndPure(t *testing.T) {
	rng := newRand(3)
	x := randomMatrix(rng, 5, 6)
	w := randomMatrix(rng, 3, 6)
	xCopy, wCopy := mat.DenseCopyOf(x), mat.DenseCopyOf(w)

	first := CosineSimilarity(nil, x, w, DefaultEpsilon)
	second := CosineSimilarity(nil, x, w, DefaultEpsilon)
	assert.True(t, mat.Equal(first.Cos, second.Cos))
	assert.True(t, mat.Equal(x, xCopy), "embeddings must not be modified")
	assert.True(t, mat.Equal(w, wCopy), "prototypes must not be modified")

	// Normalizing already unit rows changes nothing beyond rounding.
	again := CosineSimilarity(nil, first.X, first.W, DefaultEpsilon)
	assert.True(t, mat.EqualApprox(first.Cos, again.Cos, 1e-14))
}

func TestCosineSimilarityZeroVector(t *testing.T) {
	x := mat.NewDense(2, 3, []float64{
		0, 0, 0,
		1, 2, 3,
	})
	w := mat.NewDense(2, 3, []float64{
		1, 0, 0,
		0, 0, 0,
	})
	sim := CosineSimilarity(nil, x, w, DefaultEpsilon)
	for _, v := range flatten(sim.Cos) {
		assert.False(t, math.IsNaN(v))
	}
	assert.Equal(t, 0.0, sim.Cos.At(0, 0))
	assert.Equal(t, 0.0, sim.Cos.At(1, 1))
}

func TestCosineSimilarityWithPool(t *testing.T) {
	pool := workerpool.New(4)
	defer pool.Close()

	rng := newRand(4)
	x := randomMatrix(rng, 256, 64)
	w := randomMatrix(rng, 128, 64)
	serial := CosineSimilarity(nil, x, w, DefaultEpsilon)
	parallel := CosineSimilarity(pool, x, w, DefaultEpsilon)
	assert.True(t, mat.Equal(serial.Cos, parallel.Cos))
}

func TestNormalizeRowsBackward(t *testing.T) {
	rng := newRand(5)
	const rows, cols = 3, 4
	v0 := randomMatrix(rng, rows, cols)
	upstream := randomMatrix(rng, rows, cols)

	f := func(v []float64) float64 {
		n, _ := normalizeRows(nil, mat.NewDense(rows, cols, v), DefaultEpsilon)
		var prod mat.Dense
		prod.MulElem(n, upstream)
		return mat.Sum(&prod)
	}
	want := numericGradient(f, flatten(v0))

	unit, norms := normalizeRows(nil, v0, DefaultEpsilon)
	got := normalizeRowsBackward(nil, unit, norms, upstream, DefaultEpsilon)
	requireGradientsClose(t, want, flatten(got), "normalize backward")
}
