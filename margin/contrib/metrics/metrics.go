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

// Package metrics exports margin forward passes to prometheus.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/ajroetker/go-margin/margin"
)

// Metrics implements margin.Observer.
type Metrics struct {
	loss      *prometheus.HistogramVec
	duration  *prometheus.HistogramVec
	nonFinite *prometheus.CounterVec
}

// New registers the margin metrics with r. A nil r uses the default
// registerer.
func New(r prometheus.Registerer) *Metrics {
	if r == nil {
		r = prometheus.DefaultRegisterer
	}
	return &Metrics{
		loss: promauto.With(r).NewHistogramVec(prometheus.HistogramOpts{
			Name:    "margin_forward_loss",
			Help:    "Loss of margin head forward passes",
			Buckets: prometheus.ExponentialBuckets(0.01, 2, 14),
		}, []string{"head"}),
		duration: promauto.With(r).NewHistogramVec(prometheus.HistogramOpts{
			Name:    "margin_forward_duration_seconds",
			Help:    "Duration of margin head forward passes",
			Buckets: prometheus.ExponentialBuckets(1e-5, 4, 10),
		}, []string{"head"}),
		nonFinite: promauto.With(r).NewCounterVec(prometheus.CounterOpts{
			Name: "margin_forward_nonfinite_total",
			Help: "Forward passes that produced a NaN or Inf loss",
		}, []string{"head"}),
	}
}

// ObserveForward implements margin.Observer.
func (m *Metrics) ObserveForward(kind margin.Kind, loss float64, elapsed time.Duration) {
	m.loss.WithLabelValues(string(kind)).Observe(loss)
	m.duration.WithLabelValues(string(kind)).Observe(elapsed.Seconds())
}

// ObserveNonFinite implements margin.Observer.
func (m *Metrics) ObserveNonFinite(kind margin.Kind) {
	m.nonFinite.WithLabelValues(string(kind)).Inc()
}
