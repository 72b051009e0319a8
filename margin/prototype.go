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
	"sync"

	"github.com/pkg/errors"
	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat/distuv"

	"github.com/ajroetker/go-margin/margin/contrib/vec"
)

// Init selects how a PrototypeBank is initialized.
type Init int

const (
	// InitUniform draws from U(-1/sqrt(D), 1/sqrt(D)).
	InitUniform Init = iota
	// InitNormal draws from N(0, 0.01^2).
	InitNormal
	// InitXavierUniform draws from U(-b, b) with b = sqrt(6/(C+D)).
	InitXavierUniform
)

// String returns the name of the initializer.
func (i Init) String() string {
	switch i {
	case InitUniform:
		return "uniform"
	case InitNormal:
		return "normal"
	case InitXavierUniform:
		return "xavier_uniform"
	default:
		return "unknown"
	}
}

// InitFor returns the initializer each head kind uses.
func InitFor(kind Kind) Init {
	switch kind {
	case KindArc:
		return InitNormal
	case KindCircle:
		return InitXavierUniform
	default:
		return InitUniform
	}
}

// PrototypeBank owns the C×D matrix of class prototypes (one row per class).
//
// The bank is the only state shared across forward passes. It is mutated by
// optimizers through Update and, for the AM head with in-place
// normalization, by every forward pass. All access goes through the bank's
// lock, so concurrent passes never observe a partially written matrix.
type PrototypeBank struct {
	mu sync.RWMutex
	w  *mat.Dense
}

// NewPrototypeBank returns a zero-initialized bank with classes rows of
// dim columns.
func NewPrototypeBank(classes, dim int) *PrototypeBank {
	return &PrototypeBank{w: mat.NewDense(classes, dim, nil)}
}

// NewPrototypeBankFrom returns a bank holding a copy of w.
func NewPrototypeBankFrom(w mat.Matrix) *PrototypeBank {
	return &PrototypeBank{w: mat.DenseCopyOf(w)}
}

// Initialize overwrites the bank with samples drawn by init. The draw is a
// deterministic function of seed.
func (b *PrototypeBank) Initialize(init Init, seed uint64) {
	b.mu.Lock()
	defer b.mu.Unlock()

	rows, cols := b.w.Dims()
	var quantile func(p float64) float64
	switch init {
	case InitNormal:
		quantile = distuv.Normal{Mu: 0, Sigma: 0.01}.Quantile
	case InitXavierUniform:
		bound := math.Sqrt(6 / float64(rows+cols))
		quantile = distuv.Uniform{Min: -bound, Max: bound}.Quantile
	default:
		bound := 1 / math.Sqrt(float64(cols))
		quantile = distuv.Uniform{Min: -bound, Max: bound}.Quantile
	}

	rng := rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15))
	raw := b.w.RawMatrix()
	for i := range rows {
		row := raw.Data[i*raw.Stride : i*raw.Stride+cols]
		for j := range row {
			row[j] = quantile(openUnit(rng))
		}
	}
}

// openUnit returns a uniform sample in the open interval (0, 1), so that
// unbounded quantile functions stay finite.
func openUnit(rng *rand.Rand) float64 {
	return (float64(rng.Uint64()>>11) + 0.5) / (1 << 53)
}

// Dims returns (C, D).
func (b *PrototypeBank) Dims() (classes, dim int) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.w.Dims()
}

// Snapshot returns a copy of the prototype matrix.
func (b *PrototypeBank) Snapshot() *mat.Dense {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return mat.DenseCopyOf(b.w)
}

// Row returns a copy of the prototype of class i.
func (b *PrototypeBank) Row(i int) []float64 {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return mat.Row(nil, i, b.w)
}

// Set replaces the prototype matrix with a copy of w, which must have the
// bank's shape.
func (b *PrototypeBank) Set(w mat.Matrix) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	r, c := w.Dims()
	br, bc := b.w.Dims()
	if r != br || c != bc {
		return errors.Wrapf(ErrShape, "prototypes are %dx%d, got %dx%d", br, bc, r, c)
	}
	b.w.Copy(w)
	return nil
}

// Update runs fn with exclusive access to the live prototype matrix. fn must
// not retain w.
func (b *PrototypeBank) Update(fn func(w *mat.Dense)) {
	b.mu.Lock()
	defer b.mu.Unlock()
	fn(b.w)
}

// NormalizeInPlace rescales every prototype to unit L2 norm (guarded by
// eps) and returns a copy of the result. The previous magnitudes are lost.
func (b *PrototypeBank) NormalizeInPlace(eps float64) *mat.Dense {
	b.mu.Lock()
	defer b.mu.Unlock()

	rows, cols := b.w.Dims()
	raw := b.w.RawMatrix()
	for i := range rows {
		vec.Normalize(raw.Data[i*raw.Stride:i*raw.Stride+cols], eps)
	}
	return mat.DenseCopyOf(b.w)
}

// RowNorms returns the L2 norm of every prototype.
func (b *PrototypeBank) RowNorms() []float64 {
	b.mu.RLock()
	defer b.mu.RUnlock()

	rows, cols := b.w.Dims()
	raw := b.w.RawMatrix()
	norms := make([]float64, rows)
	for i := range rows {
		norms[i] = vec.Norm(raw.Data[i*raw.Stride : i*raw.Stride+cols])
	}
	return norms
}
