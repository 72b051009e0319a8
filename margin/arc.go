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

	"gonum.org/v1/gonum/mat"

	"github.com/ajroetker/go-margin/margin/contrib/workerpool"
)

// arcSinFloor keeps d cos(theta+m)/d cos(theta) finite at cos(theta) = ±1.
const arcSinFloor = 1e-6

// Arc is the additive angular margin head (ArcFace). The true-class cosine
// t = cos(theta) is replaced by cos(theta+m), computed with the angle
// addition identity
//
//	cos(theta+m) = t*cos(m) - sqrt(1-t²)*sin(m)
//
// With EasyMargin the margin is applied only while t > 0. Otherwise it is
// applied while t > th = cos(pi-m), and past that point t - mm is used,
// where mm depends on Fallback. Entries off the true class are untouched.
//
// Unlike AM, the margin is applied in every pass; use Classifier.Scores for
// margin-free scoring.
type Arc struct {
	Scale      float64
	Margin     float64
	EasyMargin bool
	Fallback   ArcFallback

	// Gamma and Reduction configure the focal reducer.
	Gamma     float64
	Reduction FocalReduction

	cosM, sinM, th, mm float64
}

// NewArc returns an Arc head with its branch constants precomputed.
func NewArc(scale, margin float64, easyMargin bool, fallback ArcFallback) *Arc {
	a := &Arc{
		Scale:      scale,
		Margin:     margin,
		EasyMargin: easyMargin,
		Fallback:   fallback,
		Gamma:      DefaultGamma,
		Reduction:  FocalPerSample,
		cosM:       math.Cos(margin),
		sinM:       math.Sin(margin),
		th:         math.Cos(math.Pi - margin),
	}
	switch fallback {
	case ArcFallbackContinuous:
		// t - mm == cos(pi) == -1 at t == th.
		a.mm = 1 + a.th
	default:
		a.mm = math.Sin(math.Pi-margin) * margin
	}
	return a
}

// Kind implements MarginPolicy.
func (a *Arc) Kind() Kind { return KindArc }

// Threshold returns th = cos(pi-m).
func (a *Arc) Threshold() float64 { return a.th }

// FallbackOffset returns mm, subtracted from t once t <= th.
func (a *Arc) FallbackOffset() float64 { return a.mm }

// Target returns the margin-adjusted value of a true-class cosine t and its
// derivative with respect to t. t is clamped to [-1, 1] first.
func (a *Arc) Target(t float64) (value, slope float64) {
	t = min(max(t, -1), 1)
	sin := math.Sqrt(max(0, 1-t*t))
	cosTM := t*a.cosM - sin*a.sinM
	dCosTM := a.cosM + t*a.sinM/max(sin, arcSinFloor)

	if a.EasyMargin {
		if t > 0 {
			return cosTM, dCosTM
		}
		return t, 1
	}
	if t > a.th {
		return cosTM, dCosTM
	}
	return t - a.mm, 1
}

// Reduce implements MarginPolicy.
func (a *Arc) Reduce(pool *workerpool.Pool, cos *mat.Dense, labels []int, _ bool) Reduction {
	logits := &mat.Dense{}
	logits.Scale(a.Scale, cos)
	slopes := make([]float64, len(labels))
	for i, y := range labels {
		v, d := a.Target(cos.At(i, y))
		logits.Set(i, y, a.Scale*v)
		slopes[i] = d
	}
	return reduceFocal(pool, a.Gamma, a.Reduction, logits, labels, a.Scale, slopes)
}
