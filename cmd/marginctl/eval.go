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
	"math/rand/v2"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/ajroetker/go-margin/margin"
)

func evalCmd(log *logrus.Logger) *cobra.Command {
	var (
		flags     headFlags
		batch     int
		inference bool
	)
	cmd := &cobra.Command{
		Use:   "eval",
		Short: "Run one forward pass on random unit embeddings",
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := checkBatch(batch); err != nil {
				return err
			}
			cfg, err := flags.load(cmd)
			if err != nil {
				return err
			}
			pool := flags.pool()
			defer pool.Close()

			head, err := margin.NewClassifier(cfg, margin.WithPool(pool), margin.WithLogger(log))
			if err != nil {
				return err
			}
			head.SetTraining(!inference)

			rng := rand.New(rand.NewPCG(cfg.Seed, ^cfg.Seed))
			x := unitEmbeddings(rng, batch, cfg.FeatureDim)
			labels := cyclicLabels(batch, cfg.ClassCount())

			pass, err := head.Forward(x, labels)
			if err != nil {
				return err
			}
			log.WithFields(logrus.Fields{
				"head":     pass.Kind,
				"batch":    batch,
				"classes":  cfg.ClassCount(),
				"scale":    cfg.Scale,
				"margin":   cfg.MarginValue(),
				"training": head.Training(),
			}).Info("forward pass")

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "loss: %.6f\n", pass.Loss.Value)
			for i, l := range pass.PerSample {
				fmt.Fprintf(out, "  sample %d (label %d): %.6f\n", i, labels[i], l)
			}
			return nil
		},
	}
	flags.register(cmd)
	cmd.Flags().IntVar(&batch, "batch", 4, "Batch size B")
	cmd.Flags().BoolVar(&inference, "inference", false, "Evaluation mode (AM applies no margin)")
	return cmd
}
