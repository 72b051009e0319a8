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
	"strings"
	"text/tabwriter"

	"github.com/samber/lo"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"
	"gonum.org/v1/gonum/mat"

	"github.com/ajroetker/go-margin/margin"
)

func compareCmd(log *logrus.Logger) *cobra.Command {
	var (
		flags   headFlags
		batch   int
		margins []float64
		noise   float64
	)
	cmd := &cobra.Command{
		Use:   "compare",
		Short: "Sweep margins across the AM, Arc and Circle heads on one batch",
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := checkBatch(batch); err != nil {
				return err
			}
			base, err := flags.load(cmd)
			if err != nil {
				return err
			}
			data := newClusters(base.ClassCount(), base.FeatureDim, noise, base.Seed)
			x, labels := data.batch(batch)

			pool := flags.pool()
			defer pool.Close()

			losses := make([][]string, len(margin.Kinds))
			var g errgroup.Group
			for k, kind := range margin.Kinds {
				g.Go(func() error {
					row, err := sweep(base, kind, margins, x, labels, margin.WithPool(pool))
					if err != nil {
						return err
					}
					losses[k] = row
					log.WithField("head", kind).Debug("sweep done")
					return nil
				})
			}
			if err := g.Wait(); err != nil {
				return err
			}

			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', tabwriter.AlignRight)
			header := lo.Map(margins, func(m float64, _ int) string { return fmt.Sprintf("m=%.2f", m) })
			fmt.Fprintf(tw, "head\t%s\t\n", strings.Join(header, "\t"))
			for k, kind := range margin.Kinds {
				fmt.Fprintf(tw, "%s\t%s\t\n", kind, strings.Join(losses[k], "\t"))
			}
			return tw.Flush()
		},
	}
	flags.register(cmd)
	cmd.Flags().IntVar(&batch, "batch", 32, "Batch size B")
	cmd.Flags().Float64SliceVar(&margins, "margins", []float64{0, 0.1, 0.25, 0.35, 0.5}, "Margins to sweep")
	cmd.Flags().Float64Var(&noise, "noise", 0.1, "Noise around class centers")
	return cmd
}

// sweep returns the formatted loss of head kind for every margin. Margins
// outside the head's valid range are reported as "-". Every margin starts
// from the same prototypes, since AM renormalizes its bank in place.
func sweep(base margin.Config, kind margin.Kind, margins []float64, x *mat.Dense, labels []int, opts ...margin.Option) ([]string, error) {
	cfg := base
	cfg.Head = kind
	cfg.Margin = nil
	cfg.InPlaceNormalize = nil
	cfg.SetDefaults()

	bank := margin.NewPrototypeBank(cfg.ClassCount(), cfg.FeatureDim)
	bank.Initialize(margin.InitFor(kind), cfg.Seed)
	w := bank.Snapshot()

	row := make([]string, len(margins))
	for i, m := range margins {
		cfg.Margin = margin.Float(m)
		if cfg.Validate() != nil {
			row[i] = "-"
			continue
		}
		head, err := margin.NewClassifierWithBank(cfg, margin.NewPrototypeBankFrom(w), opts...)
		if err != nil {
			return nil, err
		}
		pass, err := head.Forward(x, labels)
		if err != nil {
			return nil, err
		}
		row[i] = fmt.Sprintf("%.4f", pass.Loss.Value)
	}
	return row, nil
}

