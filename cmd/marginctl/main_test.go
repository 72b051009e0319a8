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
	"bytes"
	"io"
	"path/filepath"
	"strings"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func run(t *testing.T, cmd *cobra.Command, args ...string) string {
	t.Helper()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetArgs(args)
	require.NoError(t, cmd.Execute())
	return out.String()
}

func quietLogger() *logrus.Logger {
	log := logrus.New()
	log.SetOutput(io.Discard)
	return log
}

func TestBatchMustBePositive(t *testing.T) {
	commands := map[string]func() *cobra.Command{
		"eval":    func() *cobra.Command { return evalCmd(quietLogger()) },
		"compare": func() *cobra.Command { return compareCmd(quietLogger()) },
		"train":   func() *cobra.Command { return trainCmd(quietLogger()) },
	}
	for name, newCmd := range commands {
		for _, batch := range []string{"0", "-3"} {
			cmd := newCmd()
			cmd.SetOut(io.Discard)
			cmd.SetErr(io.Discard)
			cmd.SetArgs([]string{"--dim", "4", "--classes", "3", "--batch=" + batch})
			err := cmd.Execute()
			require.Error(t, err, "%s --batch %s", name, batch)
			assert.Contains(t, err.Error(), "--batch must be positive")
		}
	}
}

func TestCyclicLabels(t *testing.T) {
	assert.Equal(t, []int{0, 1, 2, 0, 1}, cyclicLabels(5, 3))
}

func TestAccuracy(t *testing.T) {
	assert.Equal(t, 0.5, accuracy([]int{1, 2, 3, 4}, []int{1, 0, 3, 0}))
	assert.Equal(t, 0.0, accuracy(nil, nil))
}

func TestEvalCommand(t *testing.T) {
	out := run(t, evalCmd(quietLogger()), "--head", "arc", "--dim", "8", "--classes", "10", "--batch", "4")
	assert.Contains(t, out, "loss: ")
	assert.Equal(t, 5, strings.Count(out, "\n"))
}

func TestCompareCommand(t *testing.T) {
	out := run(t, compareCmd(quietLogger()), "--dim", "8", "--classes", "5", "--margins", "0,0.35,1.2")
	for _, head := range []string{"am", "arc", "circle"} {
		assert.Contains(t, out, head)
	}
	// 1.2 is only a valid Arc margin.
	assert.Equal(t, 2, strings.Count(out, " -"))
}

func TestTrainAndInspect(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bank.ckpt")
	out := run(t, trainCmd(quietLogger()),
		"--head", "circle", "--dim", "8", "--classes", "4",
		"--steps", "5", "--batch", "8", "--checkpoint", path, "--metrics")
	assert.Contains(t, out, "margin_forward_loss")

	out = run(t, inspectCmd(), "--checkpoint", path)
	assert.Contains(t, out, "head:         circle")
	assert.Contains(t, out, "classes:      [0, 4)")
	assert.Contains(t, out, "feature dim:  8")
}

func TestConfigureLogger(t *testing.T) {
	log := logrus.New()
	require.NoError(t, configureLogger(log, "debug"))
	assert.Equal(t, logrus.DebugLevel, log.GetLevel())
	assert.Error(t, configureLogger(log, "loud"))
}
