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

package base

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"gonum.org/v1/gonum/stat"
)

const randomEpsilon = 0.1

func TestRandomGenerator_NormalMatrix(t *testing.T) {
	rng := NewRandomGenerator(0)
	vec := rng.NormalMatrix(1, 1000, 1, 2)[0]
	assert.InDelta(t, 1, stat.Mean(vec, nil), randomEpsilon)
	assert.InDelta(t, 2, stat.StdDev(vec, nil), randomEpsilon)
}

func TestRandomGenerator_Seed(t *testing.T) {
	a := NewRandomGenerator(42).NormalMatrix(10, 5, 0, 0.1)
	b := NewRandomGenerator(42).NormalMatrix(10, 5, 0, 0.1)
	c := NewRandomGenerator(43).NormalMatrix(10, 5, 0, 0.1)
	assert.Equal(t, a, b)
	assert.NotEqual(t, a, c)
}
