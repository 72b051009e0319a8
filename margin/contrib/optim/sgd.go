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

// Package optim updates a margin.PrototypeBank from the gradients of a
// forward pass.
package optim

import (
	"fmt"

	"github.com/pkg/errors"
	"gonum.org/v1/gonum/mat"

	"github.com/ajroetker/go-margin/margin"
)

// SGDConfig holds the SGD hyper-parameters.
type SGDConfig struct {
	LearningRate float64
	Momentum     float64 // 0 for vanilla SGD
	WeightDecay  float64 // L2 coefficient
	Nesterov     bool
}

// DefaultSGDConfig returns vanilla SGD with learning rate 0.1.
func DefaultSGDConfig() SGDConfig {
	return SGDConfig{LearningRate: 0.1}
}

// Validate checks the hyper-parameters.
func (c SGDConfig) Validate() error {
	if !(c.LearningRate > 0) {
		return fmt.Errorf("learning rate must be positive: %v", c.LearningRate)
	}
	if c.Momentum < 0 || c.Momentum >= 1 {
		return fmt.Errorf("momentum must be in [0, 1): %v", c.Momentum)
	}
	if c.WeightDecay < 0 {
		return fmt.Errorf("weight decay cannot be negative: %v", c.WeightDecay)
	}
	if c.Nesterov && c.Momentum == 0 {
		return fmt.Errorf("nesterov momentum requires momentum > 0")
	}
	return nil
}

// SGD is stochastic gradient descent with optional momentum, Nesterov
// momentum and weight decay:
//
//	g = grad + wd*w
//	v = mu*v + g
//	w -= lr * (nesterov ? g + mu*v : v)
//
// An SGD instance tracks the velocity of exactly one bank.
type SGD struct {
	cfg      SGDConfig
	velocity *mat.Dense
	steps    uint64
}

// NewSGD validates cfg and returns an optimizer.
func NewSGD(cfg SGDConfig) (*SGD, error) {
	if err := cfg.Validate(); err != nil {
		return nil, errors.Wrap(err, "sgd")
	}
	return &SGD{cfg: cfg}, nil
}

// Config returns the hyper-parameters.
func (o *SGD) Config() SGDConfig { return o.cfg }

// Steps returns the number of updates applied.
func (o *SGD) Steps() uint64 { return o.steps }

// Step applies one update to bank. grad must have the bank's shape.
func (o *SGD) Step(bank *margin.PrototypeBank, grad mat.Matrix) error {
	rows, cols := bank.Dims()
	if r, c := grad.Dims(); r != rows || c != cols {
		return errors.Wrapf(margin.ErrShape, "gradient is %dx%d, prototypes are %dx%d", r, c, rows, cols)
	}

	bank.Update(func(w *mat.Dense) {
		g := mat.DenseCopyOf(grad)
		if o.cfg.WeightDecay != 0 {
			g.Add(g, scaled(o.cfg.WeightDecay, w))
		}

		if mu := o.cfg.Momentum; mu != 0 {
			if o.velocity == nil {
				o.velocity = mat.DenseCopyOf(g)
			} else {
				o.velocity.Scale(mu, o.velocity)
				o.velocity.Add(o.velocity, g)
			}
			if o.cfg.Nesterov {
				g.Add(g, scaled(mu, o.velocity))
			} else {
				g.Copy(o.velocity)
			}
		}

		g.Scale(o.cfg.LearningRate, g)
		w.Sub(w, g)
	})
	o.steps++
	return nil
}

func scaled(f float64, m mat.Matrix) *mat.Dense {
	var out mat.Dense
	out.Scale(f, m)
	return &out
}
