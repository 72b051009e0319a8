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

import "gonum.org/v1/gonum/mat"

// Gradients holds the derivatives of a pass's loss.
type Gradients struct {
	// Similarity is dLoss/dCos (B×C).
	Similarity *mat.Dense

	// Embeddings is dLoss/dX (B×D), with respect to the raw embeddings.
	Embeddings *mat.Dense

	// Prototypes is dLoss/dW (C×D). For the AM head with in-place
	// normalization it is taken with respect to the already normalized
	// prototypes, which is what the bank holds after Forward.
	Prototypes *mat.Dense
}

// Gradients runs the backward pass:
//
//	dX̂ = G·Ŵ,  dŴ = Gᵀ·X̂
//
// followed by the row-normalization Jacobians. The clamp of the cosine
// matrix is treated as the identity. Circle's pair weights are constants.
func (p *Pass) Gradients() *Gradients {
	s := p.sim
	b, d := s.X.Dims()
	c, _ := s.W.Dims()

	dXn := mat.NewDense(b, d, nil)
	dXn.Mul(p.grad, s.W)
	dWn := mat.NewDense(c, d, nil)
	dWn.Mul(p.grad.T(), s.X)

	dW := dWn
	if s.WNorms != nil {
		dW = normalizeRowsBackward(p.pool, s.W, s.WNorms, dWn, s.Eps)
	}
	return &Gradients{
		Similarity: mat.DenseCopyOf(p.grad),
		Embeddings: normalizeRowsBackward(p.pool, s.X, s.XNorms, dXn, s.Eps),
		Prototypes: dW,
	}
}
