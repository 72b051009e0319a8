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

package main

import (
	"math"
	"math/rand/v2"

	"github.com/pkg/errors"
	"github.com/samber/lo"
	"github.com/spf13/cobra"
	"gonum.org/v1/gonum/mat"

	"github.com/ajroetker/go-margin/margin"
	"github.com/ajroetker/go-margin/margin/contrib/workerpool"
)

// headFlags selects a head either from a YAML file or from flags. Flags that
// were set explicitly override the file.
type headFlags struct {
	config  string
	head    string
	dim     int
	classes int
	scale   float64
	margin  float64
	seed    uint64
	workers int
}

func (f *headFlags) register(cmd *cobra.Command) {
	fs := cmd.Flags()
	fs.StringVar(&f.config, "config", "", "YAML head configuration")
	fs.StringVar(&f.head, "head", string(margin.KindAM), "Head kind (am, arc, circle)")
	fs.IntVar(&f.dim, "dim", 64, "Feature dimension D")
	fs.IntVar(&f.classes, "classes", 10, "Number of classes C")
	fs.Float64Var(&f.scale, "scale", margin.DefaultScale, "Scale s")
	fs.Float64Var(&f.margin, "margin", 0, "Margin m (default: per head)")
	fs.Uint64Var(&f.seed, "seed", 1, "Seed for prototypes and synthetic data")
	fs.IntVar(&f.workers, "workers", 0, "Worker pool size (0: sequential)")
}

func (f *headFlags) load(cmd *cobra.Command) (margin.Config, error) {
	var cfg margin.Config
	if f.config != "" {
		var err error
		if cfg, err = margin.LoadConfig(f.config); err != nil {
			return cfg, err
		}
	} else {
		cfg = margin.DefaultConfig(margin.Kind(f.head), f.dim, f.classes)
		cfg.Seed = f.seed
	}

	fs := cmd.Flags()
	if f.config != "" {
		if fs.Changed("head") {
			cfg.Head = margin.Kind(f.head)
			cfg.Margin = nil
			cfg.InPlaceNormalize = nil
		}
		if fs.Changed("dim") {
			cfg.FeatureDim = f.dim
		}
		if fs.Changed("classes") {
			cfg.TrainClassRange = [2]int{0, f.classes}
		}
		if fs.Changed("seed") {
			cfg.Seed = f.seed
		}
	}
	if fs.Changed("scale") {
		cfg.Scale = f.scale
	}
	if fs.Changed("margin") {
		cfg.Margin = margin.Float(f.margin)
	}
	cfg.SetDefaults()
	return cfg, cfg.Validate()
}

// pool returns nil when workers is 0, which runs every pass sequentially.
func (f *headFlags) pool() *workerpool.Pool {
	if f.workers <= 0 {
		return nil
	}
	return workerpool.New(f.workers)
}

// checkBatch rejects batch sizes the synthetic generators cannot draw.
func checkBatch(batch int) error {
	if batch <= 0 {
		return errors.Errorf("--batch must be positive, got %d", batch)
	}
	return nil
}

// cyclicLabels returns 0, 1, ..., C-1, 0, 1, ... of length batch.
func cyclicLabels(batch, classes int) []int {
	return lo.Map(lo.Range(batch), func(i, _ int) int { return i % classes })
}

// unitEmbeddings draws batch random unit vectors of dimension dim.
func unitEmbeddings(rng *rand.Rand, batch, dim int) *mat.Dense {
	x := mat.NewDense(batch, dim, nil)
	for i := range batch {
		row := x.RawRowView(i)
		norm := 0.0
		for j := range row {
			row[j] = rng.NormFloat64()
			norm += row[j] * row[j]
		}
		norm = math.Sqrt(norm)
		for j := range row {
			row[j] /= norm
		}
	}
	return x
}

// clusters is a synthetic classification task: one unit center per class,
// samples are center + noise.
type clusters struct {
	centers *mat.Dense
	noise   float64
	rng     *rand.Rand
}

func newClusters(classes, dim int, noise float64, seed uint64) *clusters {
	rng := rand.New(rand.NewPCG(seed, seed+0x5bd1e995))
	return &clusters{
		centers: unitEmbeddings(rng, classes, dim),
		noise:   noise,
		rng:     rng,
	}
}

// batch draws batch samples with uniformly random labels.
func (c *clusters) batch(batch int) (*mat.Dense, []int) {
	classes, dim := c.centers.Dims()
	labels := lo.Times(batch, func(int) int { return c.rng.IntN(classes) })
	x := mat.NewDense(batch, dim, nil)
	for i, y := range labels {
		center := c.centers.RawRowView(y)
		row := x.RawRowView(i)
		for j := range row {
			row[j] = center[j] + c.noise*c.rng.NormFloat64()
		}
	}
	return x, labels
}

func accuracy(pred, labels []int) float64 {
	if len(labels) == 0 {
		return 0
	}
	hits := lo.CountBy(lo.Range(len(labels)), func(i int) bool { return pred[i] == labels[i] })
	return float64(hits) / float64(len(labels))
}
