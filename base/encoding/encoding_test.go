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

package encoding

import (
	"bytes"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWriteMatrix(t *testing.T) {
	a := [][]float64{{1, 2}, {3, math.SmallestNonzeroFloat64}}
	buf := bytes.NewBuffer(nil)
	err := WriteMatrix(buf, a)
	assert.NoError(t, err)
	b := [][]float64{{0, 0}, {0, 0}}
	err = ReadMatrix(buf, b)
	assert.NoError(t, err)
	assert.Equal(t, a, b)
}

func TestWriteSlice(t *testing.T) {
	buf := bytes.NewBuffer(nil)
	require.NoError(t, WriteSlice(buf, []int64{1, -2, math.MaxInt64}))
	require.NoError(t, WriteSlice(buf, []float64{}))
	a, err := ReadSlice[int64](buf)
	require.NoError(t, err)
	assert.Equal(t, []int64{1, -2, math.MaxInt64}, a)
	b, err := ReadSlice[float64](buf)
	require.NoError(t, err)
	assert.Empty(t, b)
	_, err = ReadSlice[float64](buf)
	assert.Error(t, err)
}

func TestWriteString(t *testing.T) {
	a := "abc"
	buf := bytes.NewBuffer(nil)
	err := WriteString(buf, a)
	assert.NoError(t, err)
	assert.NoError(t, WriteString(buf, ""))
	var b string
	b, err = ReadString(buf)
	assert.NoError(t, err)
	assert.Equal(t, a, b)
	b, err = ReadString(buf)
	assert.NoError(t, err)
	assert.Empty(t, b)
	// truncated
	buf.Reset()
	assert.NoError(t, WriteString(buf, "abcdef"))
	buf.Truncate(6)
	_, err = ReadString(buf)
	assert.Error(t, err)
}

func TestWriteGob(t *testing.T) {
	a := map[string]any{"a": 1, "b": 0.5}
	buf := bytes.NewBuffer(nil)
	err := WriteGob(buf, a)
	assert.NoError(t, err)
	var b map[string]any
	err = ReadGob(buf, &b)
	assert.NoError(t, err)
	assert.Equal(t, a, b)
}
