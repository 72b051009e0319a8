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

// Command marginctl exercises the margin heads from the command line: one-off
// forward passes, margin sweeps across heads, synthetic training of a
// prototype bank and checkpoint inspection.
package main

import (
	"os"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

func main() {
	var level string
	log := logrus.New()

	root := &cobra.Command{
		Use:           "marginctl",
		Short:         "Margin-based classification heads (AM, Arc, Circle)",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return configureLogger(log, level)
		},
	}
	root.PersistentFlags().StringVar(&level, "log-level", "info", "Log level (debug, info, warn, error)")

	root.AddCommand(
		infoCmd(),
		evalCmd(log),
		compareCmd(log),
		trainCmd(log),
		inspectCmd(),
	)

	if err := root.Execute(); err != nil {
		log.WithError(err).Error("marginctl failed")
		os.Exit(1)
	}
}
