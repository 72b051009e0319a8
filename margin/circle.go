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

// Circle is the pairwise circle-loss head (Sun et al., CVPR 2020). For each
// sample the true-class cosine sp and the C-1 other cosines sn are weighted
// individually:
//
//	ap = max(0, 1+m-sp)     logit_p = -ap*(sp-(1-m))*s
//	an = max(0, sn+m)       logit_n =  an*(sn-m)*s
//	loss = softplus(logsumexp(logit_n) + logit_p)
//
// and averaged over the batch. ap and an are computed from a snapshot of
// the cosines and are constants for the gradient.
//
// Circle's m is a relaxation factor: a larger m loosens the decision
// boundary.
type Circle struct {
	Scale  float64
	Margin float64
}

// Kind implements MarginPolicy.
func (c *Circle) Kind() Kind { return KindCircle }

// Reduce implements MarginPolicy. The margin is applied in every pass.
func (c *Circle) Reduce(pool *workerpool.Pool, cos *mat.Dense, labels []int, _ bool) Reduction {
	b, n := cos.Dims()
	per := make([]float64, b)
	grad := mat.NewDense(b, n, nil)
	invB := 1 / float64(b)

	workerpool.Rows(pool, b, b*n, func(start, end int) {
		ln := make([]float64, n-1)
		an := make([]float64, n-1)
		for i := start; i < end; i++ {
			row := cos.RawRowView(i)
			y := labels[i]
			lp, ap := c.terms(row, row, y, ln, an)
			lse := floats.LogSumExp(ln)
			u := lse + lp
			per[i] = softplus(u)

			// d softplus(u) = sigmoid(u) du; du/dsp = -ap*s and
			// du/dsn_k = softmax(ln)_k * an_k * s.
			sg := sigmoid(u) * invB
			g := grad.RawRowView(i)
			g[y] = -sg * ap * c.Scale
			k := 0
			for j := range g {
				if j == y {
					continue
				}
				g[j] = sg * math.Exp(ln[k]-lse) * an[k] * c.Scale
				k++
			}
		}
	})

	return Reduction{
		Loss:      Loss{Value: floats.Sum(per) * invB},
		PerSample: per,
		Grad:      grad,
	}
}

// terms fills ln and an (length C-1, class order without y) and returns
// logit_p and ap. Values are read from row and weights from snap; a forward
// pass passes the same slice twice.
func (c *Circle) terms(row, snap []float64, y int, ln, an []float64) (lp, ap float64) {
	m, s := c.Margin, c.Scale
	ap = max(0, 1+m-snap[y])
	lp = -ap * (row[y] - (1 - m)) * s
	k := 0
	for j := range row {
		if j == y {
			continue
		}
		an[k] = max(0, snap[j]+m)
		ln[k] = an[k] * (row[j] - m) * s
		k++
	}
	return lp, ap
}

// softplus returns ln(1+e^x) without overflowing for large x.
func softplus(x float64) float64 {
	return max(x, 0) + math.Log1p(math.Exp(-math.Abs(x)))
}

func sigmoid(x float64) float64 {
	if x >= 0 {
		return 1 / (1 + math.Exp(-x))
	}
	e := math.Exp(x)
	return e / (1 + e)
}
