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
	"fmt"
	"io"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/common/expfmt"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/ajroetker/go-margin/margin"
	"github.com/ajroetker/go-margin/margin/contrib/checkpoint"
	"github.com/ajroetker/go-margin/margin/contrib/metrics"
	"github.com/ajroetker/go-margin/margin/contrib/optim"
)

type trainOptions struct {
	steps       int
	batch       int
	noise       float64
	logEvery    int
	checkpoint  string
	dumpMetrics bool
	sgd         optim.SGDConfig
}

func trainCmd(log *logrus.Logger) *cobra.Command {
	var (
		flags headFlags
		opts  trainOptions
	)
	cmd := &cobra.Command{
		Use:   "train",
		Short: "Train a prototype bank with SGD on synthetic clusters",
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := checkBatch(opts.batch); err != nil {
				return err
			}
			cfg, err := flags.load(cmd)
			if err != nil {
				return err
			}
			pool := flags.pool()
			defer pool.Close()

			reg := prometheus.NewRegistry()
			runLog := log.WithField("run", uuid.NewString())
			head, err := margin.NewClassifier(cfg,
				margin.WithPool(pool),
				margin.WithLogger(runLog),
				margin.WithObserver(metrics.New(reg)),
			)
			if err != nil {
				return err
			}

			if err := train(head, cfg, opts, runLog); err != nil {
				return err
			}
			if opts.checkpoint != "" {
				if err := checkpoint.Save(opts.checkpoint, checkpoint.FromClassifier(head)); err != nil {
					return err
				}
				runLog.WithField("path", opts.checkpoint).Info("checkpoint written")
			}
			if opts.dumpMetrics {
				return writeMetrics(cmd.OutOrStdout(), reg)
			}
			return nil
		},
	}
	flags.register(cmd)
	fs := cmd.Flags()
	fs.IntVar(&opts.steps, "steps", 200, "Number of SGD steps")
	fs.IntVar(&opts.batch, "batch", 64, "Batch size B")
	fs.Float64Var(&opts.noise, "noise", 0.3, "Noise around class centers")
	fs.IntVar(&opts.logEvery, "log-every", 20, "Log the loss every N steps")
	fs.StringVar(&opts.checkpoint, "checkpoint", "", "Write the trained prototypes to this file")
	fs.BoolVar(&opts.dumpMetrics, "metrics", false, "Print prometheus metrics after training")
	fs.Float64Var(&opts.sgd.LearningRate, "lr", 0.05, "Learning rate")
	fs.Float64Var(&opts.sgd.Momentum, "momentum", 0.9, "Momentum")
	fs.BoolVar(&opts.sgd.Nesterov, "nesterov", false, "Nesterov momentum")
	fs.Float64Var(&opts.sgd.WeightDecay, "weight-decay", 0, "L2 weight decay")
	return cmd
}

func train(head *margin.Classifier, cfg margin.Config, opts trainOptions, log logrus.FieldLogger) error {
	opt, err := optim.NewSGD(opts.sgd)
	if err != nil {
		return err
	}
	data := newClusters(cfg.ClassCount(), cfg.FeatureDim, opts.noise, cfg.Seed)
	heldX, heldLabels := data.batch(opts.batch)

	start := time.Now()
	for step := 1; step <= opts.steps; step++ {
		x, labels := data.batch(opts.batch)
		pass, err := head.Forward(x, labels)
		if err != nil {
			return errors.Wrapf(err, "step %d", step)
		}
		if err := opt.Step(head.Bank(), pass.Gradients().Prototypes); err != nil {
			return errors.Wrapf(err, "step %d", step)
		}
		if opts.logEvery > 0 && (step%opts.logEvery == 0 || step == opts.steps) {
			log.WithFields(logrus.Fields{
				"step": step,
				"loss": pass.Loss.Value,
			}).Info("train")
		}
	}

	pred, err := head.Predict(heldX)
	if err != nil {
		return err
	}
	log.WithFields(logrus.Fields{
		"head":     head.Kind(),
		"steps":    opt.Steps(),
		"accuracy": accuracy(pred, heldLabels),
		"took":     time.Since(start).Round(time.Millisecond),
	}).Info("training done")
	return nil
}

func writeMetrics(w io.Writer, g prometheus.Gatherer) error {
	families, err := g.Gather()
	if err != nil {
		return errors.Wrap(err, "gather metrics")
	}
	for _, mf := range families {
		if _, err := expfmt.MetricFamilyToText(w, mf); err != nil {
			return errors.Wrapf(err, "write %s", mf.GetName())
		}
	}
	_, err = fmt.Fprintln(w)
	return err
}
