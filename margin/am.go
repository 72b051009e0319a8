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

	"github.com/ajroetker/go-margin/margin/contrib/workerpool"
)

// AM is the additive cosine margin head (AM-Softmax / CosFace):
//
//	z(i, j) = s * (cos(i, j) - m*[j == y_i])
//
// followed by the focal reduction. The margin is applied in training
// passes only; evaluation passes score with s*cos.
type AM struct {
	Scale  float64
	Margin float64

	// Gamma and Reduction configure the focal reducer.
	Gamma     float64
	Reduction FocalReduction
}

// Kind implements MarginPolicy.
func (a *AM) Kind() Kind { return KindAM }

// Reduce implements MarginPolicy.
func (a *AM) Reduce(pool *workerpool.Pool, cos *mat.Dense, labels []int, training bool) Reduction {
	logits := &mat.Dense{}
	logits.Scale(a.Scale, cos)
	if training && a.Margin > 0 {
		for i, y := range labels {
			logits.Set(i, y, a.Scale*(cos.At(i, y)-a.Margin))
		}
	}
	return reduceFocal(pool, a.Gamma, a.Reduction, logits, labels, a.Scale, nil)
}
