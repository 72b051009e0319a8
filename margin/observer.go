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
	"io"
	"time"

	"github.com/sirupsen/logrus"
)

// Observer receives one callback per forward pass. contrib/metrics provides
// a prometheus implementation.
type Observer interface {
	ObserveForward(kind Kind, loss float64, elapsed time.Duration)
	ObserveNonFinite(kind Kind)
}

type nopObserver struct{}

func (nopObserver) ObserveForward(Kind, float64, time.Duration) {}
func (nopObserver) ObserveNonFinite(Kind)                       {}

func discardLogger() logrus.FieldLogger {
	l := logrus.New()
	l.SetOutput(io.Discard)
	return l
}
