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
	"gonum.org/v1/gonum/mat"

	"github.com/ajroetker/go-margin/margin/contrib/vec"
	"github.com/ajroetker/go-margin/margin/contrib/workerpool"
)

// Similarity is the result of CosineSimilarity, together with what the
// backward pass needs to chain through both row normalizations.
type Similarity struct {
	// Cos is the B×C cosine matrix, clamped to [-1, 1].
	Cos *mat.Dense

	// X and W are the row-normalized embeddings (B×D) and prototypes (C×D).
	X, W *mat.Dense

	// XNorms and WNorms are the row norms before normalization. A nil
	// WNorms means W was used as given (already normalized by the caller),
	// so gradients flow to it without a normalization Jacobian.
	XNorms, WNorms []float64

	// Eps is the norm guard used for both normalizations.
	Eps float64
}

// CosineSimilarity L2-normalizes every row of x (B×D) and w (C×D)
// independently, guarding each norm with max(norm, eps), and returns
// X̂·Ŵᵀ clamped to [-1, 1]. Neither input is modified.
//
// pool may be nil.
func CosineSimilarity(pool *workerpool.Pool, x, w mat.Matrix, eps float64) *Similarity {
	xn, xNorms := normalizeRows(pool, x, eps)
	wn, wNorms := normalizeRows(pool, w, eps)
	return cosine(pool, xn, xNorms, wn, wNorms, eps)
}

// cosineWithUnitPrototypes is CosineSimilarity for prototypes that were
// already normalized in place: w is used as is.
func cosineWithUnitPrototypes(pool *workerpool.Pool, x mat.Matrix, w *mat.Dense, eps float64) *Similarity {
	xn, xNorms := normalizeRows(pool, x, eps)
	return cosine(pool, xn, xNorms, w, nil, eps)
}

func cosine(pool *workerpool.Pool, xn *mat.Dense, xNorms []float64, wn *mat.Dense, wNorms []float64, eps float64) *Similarity {
	b, _ := xn.Dims()
	c, _ := wn.Dims()

	cos := mat.NewDense(b, c, nil)
	cos.Mul(xn, wn.T())

	// Rounding can push |cos| slightly past 1, which would turn the
	// sqrt(1-cos²) of the Arc head into NaN.
	workerpool.Rows(pool, b, b*c, func(start, end int) {
		for i := start; i < end; i++ {
			vec.Clamp(cos.RawRowView(i), -1, 1)
		}
	})

	return &Similarity{Cos: cos, X: xn, W: wn, XNorms: xNorms, WNorms: wNorms, Eps: eps}
}

// normalizeRows returns a row-normalized copy of m and the original norms.
func normalizeRows(pool *workerpool.Pool, m mat.Matrix, eps float64) (*mat.Dense, []float64) {
	rows, cols := m.Dims()
	out := mat.DenseCopyOf(m)
	norms := make([]float64, rows)
	workerpool.Rows(pool, rows, rows*cols, func(start, end int) {
		for i := start; i < end; i++ {
			norms[i] = vec.Normalize(out.RawRowView(i), eps)
		}
	})
	return out, norms
}

// normalizeRowsBackward maps dL/dv̂ to dL/dv for every row of v̂ = v/max(‖v‖, eps):
//
//	dv = (dv̂ - v̂·(v̂·dv̂)) / ‖v‖   if ‖v‖ > eps
//	dv = dv̂ / eps                  otherwise
func normalizeRowsBackward(pool *workerpool.Pool, unit *mat.Dense, norms []float64, grad *mat.Dense, eps float64) *mat.Dense {
	rows, cols := unit.Dims()
	out := mat.NewDense(rows, cols, nil)
	workerpool.Rows(pool, rows, rows*cols, func(start, end int) {
		for i := start; i < end; i++ {
			u := unit.RawRowView(i)
			g := grad.RawRowView(i)
			dst := out.RawRowView(i)
			n := norms[i]
			if n <= eps {
				if eps == 0 {
					continue
				}
				for j := range dst {
					dst[j] = g[j] / eps
				}
				continue
			}
			proj := vec.Dot(u, g)
			inv := 1 / n
			for j := range dst {
				dst[j] = (g[j] - u[j]*proj) * inv
			}
		}
	})
	return out
}
