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

package metrics

import (
	"math"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/mat"

	"github.com/ajroetker/go-margin/margin"
)

func TestMetricsObserveForward(t *testing.T) {
	reg := prometheus.NewPedanticRegistry()
	m := New(reg)

	m.ObserveForward(margin.KindAM, 1.5, 2*time.Millisecond)
	m.ObserveForward(margin.KindAM, 0.5, time.Millisecond)
	m.ObserveForward(margin.KindArc, 3, time.Millisecond)

	n, err := testutil.GatherAndCount(reg, "margin_forward_loss", "margin_forward_duration_seconds")
	require.NoError(t, err)
	assert.Equal(t, 4, n, "two heads, two histograms")
}

func TestMetricsNonFinite(t *testing.T) {
	reg := prometheus.NewPedanticRegistry()
	m := New(reg)
	m.ObserveNonFinite(margin.KindCircle)
	m.ObserveNonFinite(margin.KindCircle)

	want := `
# HELP margin_forward_nonfinite_total Forward passes that produced a NaN or Inf loss
# TYPE margin_forward_nonfinite_total counter
margin_forward_nonfinite_total{head="circle"} 2
`
	require.NoError(t, testutil.GatherAndCompare(reg, strings.NewReader(want), "margin_forward_nonfinite_total"))
}

func TestMetricsAsObserver(t *testing.T) {
	reg := prometheus.NewPedanticRegistry()
	m := New(reg)
	head, err := margin.NewClassifier(margin.DefaultConfig(margin.KindAM, 2, 3), margin.WithObserver(m))
	require.NoError(t, err)

	_, err = head.Forward(mat.NewDense(1, 2, []float64{1, 0}), []int{1})
	require.NoError(t, err)
	_, err = head.Forward(mat.NewDense(1, 2, []float64{math.Inf(1), 0}), []int{1})
	require.ErrorIs(t, err, margin.ErrNonFinite)

	assert.Equal(t, 1.0, testutil.ToFloat64(m.nonFinite.WithLabelValues("am")))
	n, err := testutil.GatherAndCount(reg, "margin_forward_loss")
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}
