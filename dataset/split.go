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

import (
	"slices"

	"github.com/gorse-io/rating/base"
)

// SubSet creates a dataset from the ratings at the given positions. Ratings keep their
// relative load order.
func (d *Dataset) SubSet(indices []int) *Dataset {
	sorted := slices.Clone(indices)
	slices.Sort(sorted)
	subset := NewDataset(len(sorted))
	for _, i := range sorted {
		subset.AddRating(d.ratings[i])
	}
	return subset
}

// KFold splits ratings into k folds. The i-th test set holds the i-th fold and the i-th
// train set holds the others. The same seed always produces the same folds.
func (d *Dataset) KFold(k int, seed int64) (trainFolds, testFolds []*Dataset) {
	trainFolds = make([]*Dataset, k)
	testFolds = make([]*Dataset, k)
	if k <= 0 {
		return
	}
	// Generate permutation
	rng := base.NewRandomGenerator(seed)
	perm := rng.Perm(d.CountRatings())
	// Split folds
	foldSize := d.CountRatings() / k
	begin, end := 0, 0
	for i := 0; i < k; i++ {
		end += foldSize
		if i < d.CountRatings()%k {
			end++
		}
		testFolds[i] = d.SubSet(perm[begin:end])
		trainFolds[i] = d.SubSet(slices.Concat(perm[:begin], perm[end:]))
		begin = end
	}
	return
}

// Split holds out testRatio of ratings as a test set.
func (d *Dataset) Split(testRatio float64, seed int64) (train, test *Dataset) {
	rng := base.NewRandomGenerator(seed)
	perm := rng.Perm(d.CountRatings())
	testSize := int(float64(d.CountRatings()) * testRatio)
	return d.SubSet(perm[testSize:]), d.SubSet(perm[:testSize])
}
