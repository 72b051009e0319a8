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
	"fmt"

	"gonum.org/v1/gonum/mat"

	"github.com/ajroetker/go-margin/margin/contrib/workerpool"
)

// Reduction is what a MarginPolicy produces from a similarity matrix.
type Reduction struct {
	Loss Loss

	// PerSample is the loss contribution of each sample before the batch
	// mean (see FocalResult.PerSample for the focal heads).
	PerSample []float64

	// Logits are the scaled, margin-adjusted scores fed to the focal
	// reducer. Nil for Circle, which has no single logit matrix.
	Logits *mat.Dense

	// Grad is dLoss/dCos (B×C), the entry point of the backward pass.
	Grad *mat.Dense
}

// MarginPolicy injects a head-specific margin into a clamped cosine matrix
// and reduces it to a loss.
//
// The set of policies is closed: AM, Arc and Circle.
type MarginPolicy interface {
	// Kind names the head.
	Kind() Kind

	// Reduce computes the loss of cos (B×C, already clamped to [-1, 1]) for
	// labels, which must be validated. training is false for evaluation
	// passes. pool may be nil.
	Reduce(pool *workerpool.Pool, cos *mat.Dense, labels []int, training bool) Reduction
}

// NewPolicy builds the policy named by cfg.Head. cfg must have defaults set.
func NewPolicy(cfg Config) (MarginPolicy, error) {
	switch cfg.Head {
	case KindAM:
		return &AM{
			Scale:     cfg.Scale,
			Margin:    cfg.MarginValue(),
			Gamma:     cfg.GammaValue(),
			Reduction: cfg.FocalReduction,
		}, nil
	case KindArc:
		arc := NewArc(cfg.Scale, cfg.MarginValue(), cfg.EasyMargin, cfg.ArcFallback)
		arc.Gamma = cfg.GammaValue()
		arc.Reduction = cfg.FocalReduction
		return arc, nil
	case KindCircle:
		return &Circle{Scale: cfg.Scale, Margin: cfg.MarginValue()}, nil
	default:
		return nil, fmt.Errorf("%w: unknown head %q", ErrInvalidConfig, cfg.Head)
	}
}

// reduceFocal runs FocalLoss on logits and maps its gradient back to the
// cosine matrix. dLogit(i, j) is d logits(i,j) / d cos(i,j); every entry off
// the true class has derivative scale.
func reduceFocal(pool *workerpool.Pool, gamma float64, reduction FocalReduction, logits *mat.Dense, labels []int, scale float64, dTarget []float64) Reduction {
	res := FocalLoss(pool, logits, labels, gamma, reduction)
	grad := res.Grad
	grad.Scale(scale, grad)
	if dTarget != nil {
		for i, y := range labels {
			grad.Set(i, y, grad.At(i, y)*dTarget[i])
		}
	}
	return Reduction{Loss: res.Loss, PerSample: res.PerSample, Logits: logits, Grad: grad}
}
