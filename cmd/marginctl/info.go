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
	"runtime"

	"github.com/spf13/cobra"

	"github.com/ajroetker/go-margin/margin"
	"github.com/ajroetker/go-margin/margin/contrib/vec"
)

func infoCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "info",
		Short: "Show kernel dispatch and runtime information",
		RunE: func(cmd *cobra.Command, args []string) error {
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "platform:    %s/%s\n", runtime.GOOS, runtime.GOARCH)
			fmt.Fprintf(out, "dispatch:    %s\n", vec.CurrentName())
			fmt.Fprintf(out, "no-simd env: %v\n", vec.NoSimdEnv())
			fmt.Fprintf(out, "gomaxprocs:  %d\n", runtime.GOMAXPROCS(0))
			fmt.Fprintf(out, "heads:       %v\n", margin.Kinds)
			return nil
		},
	}
}
