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

// Package vec provides the generic slice kernels the margin heads are built
// on: dot products, squared norms, epsilon-guarded L2 normalization,
// clamping and arg-max.
//
// The reduction kernels pick an unrolled variant at init time based on the
// CPU (see DispatchLevel). All variants produce the same result up to
// floating-point reassociation.
//
// Like the rest of the contrib packages, kernels never fail: mismatched
// lengths use the minimum length and empty input is a no-op.
//
// # Example Usage
//
//	v := []float64{3, 0, 4}
//	norm := vec.Normalize(v, 1e-12) // norm == 5, v == [0.6, 0, 0.8]
package vec
