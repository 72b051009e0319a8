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

import "github.com/pkg/errors"

var (
	// ErrShape is returned when an input matrix does not match the
	// configured feature dimension or the label count does not match the
	// batch size.
	ErrShape = errors.New("shape mismatch")

	// ErrLabelOutOfRange is returned when a label is outside [0, C).
	ErrLabelOutOfRange = errors.New("label out of range")

	// ErrNonFinite is returned when a forward pass produced a NaN or Inf
	// loss. It is never masked: the training step must be treated as failed.
	ErrNonFinite = errors.New("non-finite loss")

	// ErrInvalidConfig wraps every configuration validation failure.
	ErrInvalidConfig = errors.New("invalid config")
)
