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
	"sync/atomic"
	"time"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	"gonum.org/v1/gonum/mat"

	"github.com/ajroetker/go-margin/margin/contrib/vec"
	"github.com/ajroetker/go-margin/margin/contrib/workerpool"
)

// Classifier is a margin head: a prototype bank, a MarginPolicy and the
// shared similarity and reduction steps around them.
//
// A Classifier starts in training mode. It is safe for concurrent use; the
// prototype bank serializes its own mutations.
type Classifier struct {
	cfg      Config
	bank     *PrototypeBank
	policy   MarginPolicy
	pool     *workerpool.Pool
	observer Observer
	log      logrus.FieldLogger
	eval     atomic.Bool
}

// Option configures a Classifier.
type Option func(*Classifier)

// WithPool runs row-parallel work on pool.
func WithPool(pool *workerpool.Pool) Option {
	return func(c *Classifier) { c.pool = pool }
}

// WithObserver reports every forward pass to o.
func WithObserver(o Observer) Option {
	return func(c *Classifier) {
		if o != nil {
			c.observer = o
		}
	}
}

// WithLogger logs forward passes (debug) and non-finite losses (warn).
func WithLogger(l logrus.FieldLogger) Option {
	return func(c *Classifier) {
		if l != nil {
			c.log = l
		}
	}
}

// NewClassifier validates cfg and builds a head with a freshly initialized
// prototype bank (see InitFor), seeded from cfg.Seed.
func NewClassifier(cfg Config, opts ...Option) (*Classifier, error) {
	cfg.SetDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	bank := NewPrototypeBank(cfg.ClassCount(), cfg.FeatureDim)
	bank.Initialize(InitFor(cfg.Head), cfg.Seed)
	return NewClassifierWithBank(cfg, bank, opts...)
}

// NewClassifierWithBank builds a head around an existing bank, which must be
// C×D for cfg. The bank is shared, not copied.
func NewClassifierWithBank(cfg Config, bank *PrototypeBank, opts ...Option) (*Classifier, error) {
	cfg.SetDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if bank == nil {
		return nil, errors.New("margin: nil prototype bank")
	}
	if r, c := bank.Dims(); r != cfg.ClassCount() || c != cfg.FeatureDim {
		return nil, errors.Wrapf(ErrShape, "prototype bank is %dx%d, config wants %dx%d",
			r, c, cfg.ClassCount(), cfg.FeatureDim)
	}
	policy, err := NewPolicy(cfg)
	if err != nil {
		return nil, err
	}

	c := &Classifier{
		cfg:      cfg,
		bank:     bank,
		policy:   policy,
		observer: nopObserver{},
		log:      discardLogger(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// Config returns the classifier's configuration with defaults applied.
func (c *Classifier) Config() Config { return c.cfg }

// Kind returns the head kind.
func (c *Classifier) Kind() Kind { return c.policy.Kind() }

// Policy returns the margin policy.
func (c *Classifier) Policy() MarginPolicy { return c.policy }

// Bank returns the prototype bank, for optimizers and checkpoints.
func (c *Classifier) Bank() *PrototypeBank { return c.bank }

// SetTraining switches between training (margin applied) and evaluation
// passes.
func (c *Classifier) SetTraining(training bool) { c.eval.Store(!training) }

// Training reports whether the classifier is in training mode.
func (c *Classifier) Training() bool { return !c.eval.Load() }

// Pass is the result of one forward pass.
type Pass struct {
	Kind      Kind
	Loss      Loss
	PerSample []float64

	// Similarity is the clamped B×C cosine matrix.
	Similarity *mat.Dense

	// Logits are the scaled margin-adjusted scores (nil for Circle).
	Logits *mat.Dense

	sim  *Similarity
	grad *mat.Dense
	pool *workerpool.Pool
}

// Forward computes the loss of embeddings x (B×D) with labels (length B,
// each in [0, C)).
//
// With the AM head and in-place normalization enabled (the default for AM)
// Forward renormalizes the live prototype bank as a side effect.
//
// A NaN or Inf loss is reported as ErrNonFinite.
func (c *Classifier) Forward(x mat.Matrix, labels []int) (*Pass, error) {
	start := time.Now()
	if err := c.validate(x, labels); err != nil {
		return nil, err
	}

	sim := c.similarity(x)
	red := c.policy.Reduce(c.pool, sim.Cos, labels, c.Training())

	kind := c.policy.Kind()
	if math.IsNaN(red.Loss.Value) || math.IsInf(red.Loss.Value, 0) {
		c.observer.ObserveNonFinite(kind)
		c.log.WithFields(logrus.Fields{
			"head":  kind,
			"batch": len(labels),
			"loss":  red.Loss.Value,
		}).Warn("non-finite loss")
		return nil, errors.Wrapf(ErrNonFinite, "%s head: loss %v", kind, red.Loss.Value)
	}

	elapsed := time.Since(start)
	c.observer.ObserveForward(kind, red.Loss.Value, elapsed)
	c.log.WithFields(logrus.Fields{
		"head":     kind,
		"batch":    len(labels),
		"loss":     red.Loss.Value,
		"training": c.Training(),
		"took":     elapsed,
	}).Debug("forward pass")

	return &Pass{
		Kind:       kind,
		Loss:       red.Loss,
		PerSample:  red.PerSample,
		Similarity: sim.Cos,
		Logits:     red.Logits,
		sim:        sim,
		grad:       red.Grad,
		pool:       c.pool,
	}, nil
}

func (c *Classifier) similarity(x mat.Matrix) *Similarity {
	eps := c.cfg.Epsilon
	if c.cfg.NormalizesInPlace() {
		return cosineWithUnitPrototypes(c.pool, x, c.bank.NormalizeInPlace(eps), eps)
	}
	return CosineSimilarity(c.pool, x, c.bank.Snapshot(), eps)
}

// Scores returns s*cos (B×C) without any margin and without touching the
// prototype bank, for inference-style scoring.
func (c *Classifier) Scores(x mat.Matrix) (*mat.Dense, error) {
	if err := c.validateEmbeddings(x); err != nil {
		return nil, err
	}
	sim := CosineSimilarity(c.pool, x, c.bank.Snapshot(), c.cfg.Epsilon)
	sim.Cos.Scale(c.cfg.Scale, sim.Cos)
	return sim.Cos, nil
}

// Predict returns the highest-scoring class of every row of x.
func (c *Classifier) Predict(x mat.Matrix) ([]int, error) {
	scores, err := c.Scores(x)
	if err != nil {
		return nil, err
	}
	rows, _ := scores.Dims()
	out := make([]int, rows)
	for i := range out {
		out[i] = vec.ArgMax(scores.RawRowView(i))
	}
	return out, nil
}

func (c *Classifier) validateEmbeddings(x mat.Matrix) error {
	if x == nil {
		return errors.Wrap(ErrShape, "nil embeddings")
	}
	rows, cols := x.Dims()
	if rows == 0 {
		return errors.Wrap(ErrShape, "empty batch")
	}
	if cols != c.cfg.FeatureDim {
		return errors.Wrapf(ErrShape, "embeddings have %d columns, feature_dim is %d", cols, c.cfg.FeatureDim)
	}
	return nil
}

func (c *Classifier) validate(x mat.Matrix, labels []int) error {
	if err := c.validateEmbeddings(x); err != nil {
		return err
	}
	rows, _ := x.Dims()
	if len(labels) != rows {
		return errors.Wrapf(ErrShape, "%d labels for a batch of %d", len(labels), rows)
	}
	classes := c.cfg.ClassCount()
	for i, y := range labels {
		if y < 0 || y >= classes {
			return errors.Wrapf(ErrLabelOutOfRange, "labels[%d] = %d, want [0, %d)", i, y, classes)
		}
	}
	return nil
}
