// Copyright 2026 gorse Project Authors
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
// http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package main

import (
	"bytes"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/gorse-io/rating/base"
	"github.com/gorse-io/rating/cmd/version"
	"github.com/gorse-io/rating/logics"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func run(args ...string) (string, error) {
	var buf bytes.Buffer
	rootCommand.SetOut(&buf)
	rootCommand.SetErr(io.Discard)
	rootCommand.SetArgs(args)
	err := rootCommand.Execute()
	return buf.String(), err
}

func writeRatings(t *testing.T, name string) {
	rng := base.NewRandomGenerator(5)
	var builder strings.Builder
	builder.WriteString("userId,movieId,rating,timestamp\n")
	for u := 1; u <= 20; u++ {
		for i := 1; i <= 30; i++ {
			if rng.Float64() < 0.4 || i == u {
				builder.WriteString(fmt.Sprintf("%d,%d,%d,0\n", u, i, rng.Intn(5)+1))
			}
		}
	}
	require.NoError(t, os.WriteFile(name, []byte(builder.String()), 0644))
}

func TestCommands(t *testing.T) {
	dir := t.TempDir()
	ratingsPath := filepath.Join(dir, "ratings.csv")
	writeRatings(t, ratingsPath)
	configPath := filepath.Join(dir, "config.toml")
	require.NoError(t, os.WriteFile(configPath, []byte(fmt.Sprintf(`[data]
source = %q

[model]
n_factors = 4
n_epochs = 5

[blob]
type = "posix"
dir = %q

[evaluate]
n_folds = 2
`, ratingsPath, filepath.Join(dir, "models"))), 0644))

	out, err := run("version")
	assert.NoError(t, err)
	assert.Contains(t, out, version.Version)

	_, err = run("train", "-c", configPath, "--progress=false")
	require.NoError(t, err)
	assert.FileExists(t, filepath.Join(dir, "models", "svd_model.bin"))

	out, err = run("recommend", "-c", configPath, "--user", "1", "--n", "3")
	assert.NoError(t, err)
	assert.NotEmpty(t, out)

	_, err = run("recommend", "-c", configPath, "--user", "1000", "--n", "3")
	assert.ErrorIs(t, err, logics.ErrUnknownUser)

	out, err = run("evaluate", "-c", configPath)
	assert.NoError(t, err)
	assert.Contains(t, out, "Mean")

	out, err = run("evaluate", "-c", configPath, "--holdout", "0.25")
	assert.NoError(t, err)
	assert.Contains(t, out, "Holdout")
	assert.NotContains(t, out, "Mean")
}

func TestTrainMissingSource(t *testing.T) {
	dir := t.TempDir()
	configPath := filepath.Join(dir, "config.toml")
	require.NoError(t, os.WriteFile(configPath, []byte(fmt.Sprintf("[data]\nsource = %q\n",
		filepath.Join(dir, "missing.csv"))), 0644))
	_, err := run("train", "-c", configPath, "--progress=false")
	assert.Error(t, err)
}
