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

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"

	"github.com/ajroetker/go-margin/margin/contrib/workerpool"
)

// Loss is the reduced loss of one forward pass.
//
// The focal heads (AM, Arc) report their loss as a one-element vector, the
// form the outer training loop aggregates across workers; Circle reports a
// bare scalar. Flatten returns the same one-element slice for both so
// callers never need to tell them apart.
type Loss struct {
	Value  float64
	Vector bool
}

// Flatten returns the loss as a slice of length 1.
func (l Loss) Flatten() []float64 {
	return []float64{l.Value}
}

// FocalResult is the output of FocalLoss.
type FocalResult struct {
	Loss Loss

	// PerSample holds (1-p_i)^gamma * ce_i for FocalPerSample and the plain
	// cross entropy ce_i for FocalBatchMean.
	PerSample []float64

	// CrossEntropy holds ce_i = logsumexp(z_i) - z_i[y_i].
	CrossEntropy []float64

	// Grad is dLoss/dLogits (B×C).
	Grad *mat.Dense
}

// FocalLoss reduces logits (B×C) and labels to the focal loss
// mean((1-p)^gamma * ce) with p = exp(-ce) the softmax probability of the
// true class. With gamma == 0 it is the mean cross entropy.
//
// Labels must already be validated to lie in [0, C). pool may be nil.
func FocalLoss(pool *workerpool.Pool, logits *mat.Dense, labels []int, gamma float64, reduction FocalReduction) FocalResult {
	b, c := logits.Dims()
	ce := make([]float64, b)
	grad := mat.NewDense(b, c, nil)

	// grad starts as dce_i/dz_i = softmax(z_i) - onehot(y_i).
	workerpool.Rows(pool, b, b*c, func(start, end int) {
		for i := start; i < end; i++ {
			z := logits.RawRowView(i)
			g := grad.RawRowView(i)
			y := labels[i]
			lse := floats.LogSumExp(z)
			ce[i] = lse - z[y]
			for j, zj := range z {
				g[j] = math.Exp(zj - lse)
			}
			g[y] -= 1
		}
	})

	invB := 1 / float64(b)
	res := FocalResult{CrossEntropy: ce, Grad: grad}

	switch reduction {
	case FocalBatchMean:
		mean := floats.Sum(ce) * invB
		res.Loss = Loss{Value: focalWeight(mean, gamma) * mean, Vector: true}
		res.PerSample = append([]float64(nil), ce...)
		grad.Scale(focalSlope(mean, gamma)*invB, grad)

	default:
		per := make([]float64, b)
		for i, l := range ce {
			per[i] = focalWeight(l, gamma) * l
			floats.Scale(focalSlope(l, gamma)*invB, grad.RawRowView(i))
		}
		res.Loss = Loss{Value: floats.Sum(per) * invB, Vector: true}
		res.PerSample = per
	}
	return res
}

// focalWeight returns (1-p)^gamma for p = exp(-ce).
func focalWeight(ce, gamma float64) float64 {
	return math.Pow(-math.Expm1(-ce), gamma)
}

// focalSlope returns d/dce of (1-p)^gamma * ce with p = exp(-ce):
//
//	(1-p)^gamma + gamma * (1-p)^(gamma-1) * p * ce
func focalSlope(ce, gamma float64) float64 {
	q := -math.Expm1(-ce)
	slope := math.Pow(q, gamma)
	if gamma != 0 && q > 0 {
		slope += gamma * math.Pow(q, gamma-1) * (1 - q) * ce
	}
	return slope
}
