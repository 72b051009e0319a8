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

	"github.com/samber/lo"
	"github.com/spf13/cobra"
	"gonum.org/v1/gonum/stat"

	"github.com/ajroetker/go-margin/margin/contrib/checkpoint"
)

func inspectCmd() *cobra.Command {
	var path string
	cmd := &cobra.Command{
		Use:   "inspect",
		Short: "Print the contents of a prototype checkpoint",
		RunE: func(cmd *cobra.Command, args []string) error {
			ck, err := checkpoint.Load(path)
			if err != nil {
				return err
			}
			rows, cols := ck.Prototypes.Dims()
			norms := ck.Bank().RowNorms()
			mean, std := stat.MeanStdDev(norms, nil)

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "head:         %s\n", ck.Head)
			fmt.Fprintf(out, "classes:      [%d, %d)\n", ck.ClassOffset, ck.ClassOffset+rows)
			fmt.Fprintf(out, "feature dim:  %d\n", cols)
			fmt.Fprintf(out, "row norms:    min %.4f  mean %.4f  max %.4f  std %.4f\n",
				lo.Min(norms), mean, lo.Max(norms), std)
			return nil
		},
	}
	cmd.Flags().StringVar(&path, "checkpoint", "", "Checkpoint file")
	_ = cmd.MarkFlagRequired("checkpoint")
	return cmd
}
