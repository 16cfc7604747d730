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

package heap

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestTopKFilter(t *testing.T) {
	// Test a adjacent vec
	a := NewTopKFilter[int64, float64](3)
	a.Push(10, 2)
	a.Push(20, 8)
	a.Push(30, 1)
	assert.Equal(t, []Elem[int64, float64]{
		{Value: 20, Weight: 8},
		{Value: 10, Weight: 2},
		{Value: 30, Weight: 1},
	}, a.PopAll())
	// Test a full adjacent vec
	a = NewTopKFilter[int64, float64](3)
	a.Push(10, 2)
	a.Push(20, 8)
	a.Push(30, 1)
	a.Push(40, 2)
	a.Push(50, 5)
	a.Push(12, 10)
	a.Push(67, 7)
	a.Push(32, 9)
	elems := a.PopAll()
	assert.Equal(t, []Elem[int64, float64]{
		{Value: 12, Weight: 10},
		{Value: 32, Weight: 9},
		{Value: 20, Weight: 8},
	}, elems)
}

func TestTopKFilterTies(t *testing.T) {
	a := NewTopKFilter[int64, float64](3)
	for _, v := range []int64{9, 3, 7, 1, 5} {
		a.Push(v, 4)
	}
	a.Push(100, 3)
	assert.Equal(t, []Elem[int64, float64]{
		{Value: 1, Weight: 4},
		{Value: 3, Weight: 4},
		{Value: 5, Weight: 4},
	}, a.PopAll())

	a = NewTopKFilter[int64, float64](4)
	a.Push(8, 2)
	a.Push(2, 5)
	a.Push(6, 2)
	a.Push(4, 5)
	assert.Equal(t, []Elem[int64, float64]{
		{Value: 2, Weight: 5},
		{Value: 4, Weight: 5},
		{Value: 6, Weight: 2},
		{Value: 8, Weight: 2},
	}, a.PopAll())
}

func TestTopKFilterEmpty(t *testing.T) {
	a := NewTopKFilter[int64, float64](0)
	a.Push(1, 1)
	assert.Empty(t, a.PopAll())
	b := NewTopKFilter[string, float64](2)
	assert.Empty(t, b.PopAll())
}
