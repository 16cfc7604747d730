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

package dataset

// FreqDict maps sparse ids to dense indices in first-seen order and counts occurrences.
type FreqDict struct {
	si  map[int64]int32
	is  []int64
	cnt []int
}

func NewFreqDict() (d *FreqDict) {
	d = &FreqDict{map[int64]int32{}, []int64{}, []int{}}
	return
}

func (d *FreqDict) Count() int {
	return len(d.is)
}

// Id returns the index of id, adding it if absent, and counts one occurrence.
func (d *FreqDict) Id(id int64) (y int32) {
	if y, ok := d.si[id]; ok {
		d.cnt[y]++
		return y
	}

	y = int32(len(d.is))
	d.si[id] = y
	d.is = append(d.is, id)
	d.cnt = append(d.cnt, 1)
	return
}

// NotCount returns the index of id, adding it if absent, without counting.
func (d *FreqDict) NotCount(id int64) (y int32) {
	if y, ok := d.si[id]; ok {
		return y
	}

	y = int32(len(d.is))
	d.si[id] = y
	d.is = append(d.is, id)
	d.cnt = append(d.cnt, 0)
	return
}

// Index looks up id without adding it.
func (d *FreqDict) Index(id int64) (int32, bool) {
	y, ok := d.si[id]
	return y, ok
}

// ToId returns the id at index.
func (d *FreqDict) ToId(index int32) (id int64, ok bool) {
	if index < 0 || int(index) >= len(d.is) {
		return 0, false
	}
	return d.is[index], true
}

// Ids returns all ids in index order. The returned slice must not be modified.
func (d *FreqDict) Ids() []int64 {
	return d.is
}

func (d *FreqDict) Freq(index int32) int {
	if index < 0 || int(index) >= len(d.cnt) {
		return 0
	}
	return d.cnt[index]
}
