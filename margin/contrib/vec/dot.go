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

// Floats is the set of element types the kernels accept.
type Floats interface {
	~float32 | ~float64
}

// Dot computes the inner product Σ(a[i] * b[i]).
//
// If the slices have different lengths, the computation uses the minimum
// length. Returns 0 if either slice is empty.
//
// Example:
//
//	a := []float32{1, 2, 3}
//	b := []float32{4, 5, 6}
//	result := Dot(a, b)  // 1*4 + 2*5 + 3*6 = 32
func Dot[T Floats](a, b []T) T {
	n := min(len(a), len(b))
	if n == 0 {
		return 0
	}
	a, b = a[:n], b[:n]

	switch CurrentLevel() {
	case DispatchUnroll8:
		return dot8(a, b)
	case DispatchUnroll4:
		return dot4(a, b)
	default:
		return dotScalar(a, b)
	}
}

func dotScalar[T Floats](a, b []T) T {
	var sum T
	for i := range a {
		sum += a[i] * b[i]
	}
	return sum
}

func dot4[T Floats](a, b []T) T {
	var s0, s1, s2, s3 T
	n := len(a)
	var i int
	for i = 0; i+4 <= n; i += 4 {
		s0 += a[i] * b[i]
		s1 += a[i+1] * b[i+1]
		s2 += a[i+2] * b[i+2]
		s3 += a[i+3] * b[i+3]
	}
	sum := (s0 + s1) + (s2 + s3)
	for ; i < n; i++ {
		sum += a[i] * b[i]
	}
	return sum
}

func dot8[T Floats](a, b []T) T {
	var s0, s1, s2, s3, s4, s5, s6, s7 T
	n := len(a)
	var i int
	for i = 0; i+8 <= n; i += 8 {
		// Reslicing lets the compiler drop the bounds checks below.
		va := a[i : i+8 : i+8]
		vb := b[i : i+8 : i+8]
		s0 += va[0] * vb[0]
		s1 += va[1] * vb[1]
		s2 += va[2] * vb[2]
		s3 += va[3] * vb[3]
		s4 += va[4] * vb[4]
		s5 += va[5] * vb[5]
		s6 += va[6] * vb[6]
		s7 += va[7] * vb[7]
	}
	sum := ((s0 + s1) + (s2 + s3)) + ((s4 + s5) + (s6 + s7))
	for ; i < n; i++ {
		sum += a[i] * b[i]
	}
	return sum
}
