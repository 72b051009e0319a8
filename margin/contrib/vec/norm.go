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

package vec

import stdmath "math"

// SquaredNorm computes Σ(v[i] * v[i]). It is Dot(v, v), so it shares the
// precision characteristics of the dot kernels.
func SquaredNorm[T Floats](v []T) T {
	return Dot(v, v)
}

// Norm computes the L2 norm Sqrt(Σ(v[i] * v[i])). Returns 0 for an empty
// slice.
func Norm[T Floats](v []T) T {
	sq := SquaredNorm(v)
	if sq == 0 {
		return 0
	}
	return T(stdmath.Sqrt(float64(sq)))
}

// Normalize scales v in place to unit L2 norm and returns the norm it had
// before scaling.
//
// The divisor is max(‖v‖, eps), so a zero (or tiny) vector is scaled by
// 1/eps instead of producing Inf/NaN. With eps == 0 a zero vector is left
// unchanged.
//
// Example:
//
//	v := []float32{3, 0, 4}
//	Normalize(v, 1e-12)  // returns 5, v is now [0.6, 0, 0.8]
func Normalize[T Floats](v []T, eps T) T {
	if len(v) == 0 {
		return 0
	}
	norm := Norm(v)
	denom := max(norm, eps)
	if denom == 0 {
		return 0
	}
	scale := 1 / denom
	for i := range v {
		v[i] *= scale
	}
	return norm
}

// NormalizeTo writes src/max(‖src‖, eps) into dst and returns ‖src‖.
// src is not modified. Uses the minimum length of dst and src.
func NormalizeTo[T Floats](dst, src []T, eps T) T {
	n := min(len(dst), len(src))
	if n == 0 {
		return 0
	}
	copy(dst[:n], src[:n])
	return Normalize(dst[:n], eps)
}
