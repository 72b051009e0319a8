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
	"math"
	"os"
	"strings"

	"github.com/hashicorp/go-multierror"
	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"
)

// Kind names one of the margin heads.
type Kind string

const (
	// KindAM subtracts the margin from the true-class cosine.
	KindAM Kind = "am"
	// KindArc adds the margin to the true-class angle.
	KindArc Kind = "arc"
	// KindCircle reweights every similarity pairwise (Circle loss).
	KindCircle Kind = "circle"
)

// Kinds lists every supported head.
var Kinds = []Kind{KindAM, KindArc, KindCircle}

// ArcFallback selects the linear fallback the Arc head uses once the
// true-class angle is past pi-m.
type ArcFallback string

const (
	// ArcFallbackLinear uses cos(theta) - sin(pi-m)*m.
	ArcFallbackLinear ArcFallback = "linear"
	// ArcFallbackContinuous uses cos(theta) - (1+cos(pi-m)), which meets
	// cos(theta+m) at the branch boundary.
	ArcFallbackContinuous ArcFallback = "continuous"
)

// FocalReduction selects where the focal weight is applied.
type FocalReduction string

const (
	// FocalPerSample weights each sample's cross entropy by (1-p_i)^gamma
	// and averages.
	FocalPerSample FocalReduction = "per_sample"
	// FocalBatchMean weights the batch-mean cross entropy by (1-p)^gamma
	// with p = exp(-meanCE).
	FocalBatchMean FocalReduction = "batch_mean"
)

// Defaults applied by SetDefaults.
const (
	DefaultScale   = 30.0
	DefaultGamma   = 2.0
	DefaultEpsilon = 1e-12
)

// DefaultMargin returns the margin used when none is configured.
func DefaultMargin(kind Kind) float64 {
	switch kind {
	case KindArc:
		return 0.5
	case KindCircle:
		return 0.25
	default:
		return 0.35
	}
}

// Config configures a margin head. The zero value is not usable: call
// SetDefaults and Validate, or use DefaultConfig / LoadConfig.
type Config struct {
	Head            Kind           `yaml:"head"`
	FeatureDim      int            `yaml:"feature_dim"`
	TrainClassRange [2]int         `yaml:"train_class_range"`
	Scale           float64        `yaml:"scale"`
	Margin          *float64       `yaml:"margin"`
	EasyMargin      bool           `yaml:"easy_margin"`
	ArcFallback     ArcFallback    `yaml:"arc_fallback"`
	Gamma           *float64       `yaml:"gamma"`
	FocalReduction  FocalReduction `yaml:"focal_reduction"`
	// InPlaceNormalize makes the AM head renormalize the live prototype
	// matrix on every forward pass.
	InPlaceNormalize *bool   `yaml:"in_place_normalize"`
	Epsilon          float64 `yaml:"epsilon"`
	Seed             uint64  `yaml:"seed"`
}

// DefaultConfig returns a validated-by-construction config for kind with
// featureDim-dimensional embeddings and classes classes.
func DefaultConfig(kind Kind, featureDim, classes int) Config {
	cfg := Config{
		Head:            kind,
		FeatureDim:      featureDim,
		TrainClassRange: [2]int{0, classes},
	}
	cfg.SetDefaults()
	return cfg
}

// Float returns a pointer to v, for the optional Config fields.
func Float(v float64) *float64 { return &v }

// Bool returns a pointer to v, for the optional Config fields.
func Bool(v bool) *bool { return &v }

// SetDefaults fills every unset field.
func (c *Config) SetDefaults() {
	if c.Head == "" {
		c.Head = KindAM
	}
	if c.Scale == 0 {
		c.Scale = DefaultScale
	}
	if c.Margin == nil {
		c.Margin = Float(DefaultMargin(c.Head))
	}
	if c.ArcFallback == "" {
		c.ArcFallback = ArcFallbackLinear
	}
	if c.Gamma == nil {
		c.Gamma = Float(DefaultGamma)
	}
	if c.FocalReduction == "" {
		c.FocalReduction = FocalPerSample
	}
	if c.InPlaceNormalize == nil {
		c.InPlaceNormalize = Bool(c.Head == KindAM)
	}
	if c.Epsilon == 0 {
		c.Epsilon = DefaultEpsilon
	}
}

// ClassCount returns C = hi - lo of TrainClassRange.
func (c Config) ClassCount() int {
	return c.TrainClassRange[1] - c.TrainClassRange[0]
}

// MarginValue returns the configured margin, or the head default.
func (c Config) MarginValue() float64 {
	if c.Margin == nil {
		return DefaultMargin(c.Head)
	}
	return *c.Margin
}

// GammaValue returns the configured focal exponent, or DefaultGamma.
func (c Config) GammaValue() float64 {
	if c.Gamma == nil {
		return DefaultGamma
	}
	return *c.Gamma
}

// NormalizesInPlace reports whether the AM head renormalizes the prototype
// bank in place.
func (c Config) NormalizesInPlace() bool {
	if c.InPlaceNormalize == nil {
		return c.Head == KindAM
	}
	return *c.InPlaceNormalize && c.Head == KindAM
}

// LocalLabel maps a global class id in TrainClassRange to its row in the
// prototype matrix.
func (c Config) LocalLabel(global int) (int, error) {
	lo, hi := c.TrainClassRange[0], c.TrainClassRange[1]
	if global < lo || global >= hi {
		return 0, errors.Wrapf(ErrLabelOutOfRange, "class %d outside train_class_range [%d, %d)", global, lo, hi)
	}
	return global - lo, nil
}

// Validate reports every problem with the config at once.
func (c Config) Validate() error {
	var result *multierror.Error
	addf := func(format string, args ...any) {
		result = multierror.Append(result, fmt.Errorf(format, args...))
	}

	switch c.Head {
	case KindAM, KindArc, KindCircle:
	default:
		addf("head %q is not supported: must be one of am, arc, circle", c.Head)
	}
	if c.FeatureDim <= 0 {
		addf("feature_dim must be positive, got: %d", c.FeatureDim)
	}
	if c.TrainClassRange[0] < 0 {
		addf("train_class_range lower bound must be non-negative, got: %d", c.TrainClassRange[0])
	}
	if n := c.ClassCount(); n < 2 {
		addf("train_class_range must hold at least 2 classes, got: %d", n)
	}
	if !(c.Scale > 0) || math.IsInf(c.Scale, 0) {
		addf("scale must be a positive finite number, got: %v", c.Scale)
	}

	m := c.MarginValue()
	switch c.Head {
	case KindAM, KindCircle:
		if !(m >= 0 && m < 1) {
			addf("margin for %s must be in [0, 1), got: %v", c.Head, m)
		}
	case KindArc:
		if !(m >= 0 && m < math.Pi/2) {
			addf("margin for arc must be in [0, pi/2), got: %v", m)
		}
	}

	switch c.ArcFallback {
	case "", ArcFallbackLinear, ArcFallbackContinuous:
	default:
		addf("arc_fallback %q is not supported: must be one of linear, continuous", c.ArcFallback)
	}
	if g := c.GammaValue(); !(g >= 0) || math.IsInf(g, 0) {
		addf("gamma must be a non-negative finite number, got: %v", g)
	}
	switch c.FocalReduction {
	case "", FocalPerSample, FocalBatchMean:
	default:
		addf("focal_reduction %q is not supported: must be one of per_sample, batch_mean", c.FocalReduction)
	}
	if c.Epsilon < 0 || math.IsNaN(c.Epsilon) {
		addf("epsilon must be non-negative, got: %v", c.Epsilon)
	}

	if result == nil {
		return nil
	}
	result.ErrorFormat = func(errs []error) string {
		msgs := make([]string, len(errs))
		for i, err := range errs {
			msgs[i] = err.Error()
		}
		return strings.Join(msgs, "; ")
	}
	return fmt.Errorf("%w: %w", ErrInvalidConfig, result)
}

// ParseConfig unmarshals YAML, applies defaults and validates.
func ParseConfig(data []byte) (Config, error) {
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return Config{}, errors.Wrap(err, "parse config")
	}
	cfg.SetDefaults()
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// LoadConfig reads a YAML config file. See ParseConfig.
func LoadConfig(path string) (Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, errors.Wrapf(err, "read config %s", path)
	}
	cfg, err := ParseConfig(data)
	if err != nil {
		return Config{}, errors.Wrapf(err, "load config %s", path)
	}
	return cfg, nil
}
