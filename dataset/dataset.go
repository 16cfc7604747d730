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

	"github.com/bits-and-blooms/bitset"
	mapset "github.com/deckarep/golang-set/v2"
	"github.com/juju/errors"
)

// ErrInvalidScale is returned when a rating scale has Min >= Max.
const ErrInvalidScale = errors.ConstError("invalid rating scale")

// Rating is an explicit score given by an user to an item.
type Rating struct {
	UserId int64
	ItemId int64
	Value  float64
}

// Scale is the closed interval of admissible rating values.
type Scale struct {
	Min float64 `mapstructure:"min"`
	Max float64 `mapstructure:"max"`
}

// DefaultScale returns the (1, 5) scale.
func DefaultScale() Scale {
	return Scale{Min: 1, Max: 5}
}

func (s Scale) Valid() bool {
	return s.Min < s.Max
}

func (s Scale) Contains(value float64) bool {
	return value >= s.Min && value <= s.Max
}

// Clamp limits value to [Min, Max].
func (s Scale) Clamp(value float64) float64 {
	return min(max(value, s.Min), s.Max)
}

// Dataset holds ratings in load order together with dense indices of users and items.
// A Dataset is read-only once built and safe for concurrent readers.
type Dataset struct {
	ratings      []Rating
	userIndices  []int32
	itemIndices  []int32
	userDict     *FreqDict
	itemDict     *FreqDict
	userFeedback [][]int32
	userMasks    []*bitset.BitSet
	sum          float64
}

func NewDataset(ratingCount int) *Dataset {
	return &Dataset{
		ratings:     make([]Rating, 0, ratingCount),
		userIndices: make([]int32, 0, ratingCount),
		itemIndices: make([]int32, 0, ratingCount),
		userDict:    NewFreqDict(),
		itemDict:    NewFreqDict(),
	}
}

// AddRating appends a rating. Duplicated (user, item) pairs are kept as separate ratings.
func (d *Dataset) AddRating(rating Rating) {
	userIndex := d.userDict.Id(rating.UserId)
	itemIndex := d.itemDict.Id(rating.ItemId)
	if int(userIndex) == len(d.userFeedback) {
		d.userFeedback = append(d.userFeedback, nil)
		d.userMasks = append(d.userMasks, bitset.New(0))
	}
	if !d.userMasks[userIndex].Test(uint(itemIndex)) {
		d.userMasks[userIndex].Set(uint(itemIndex))
		d.userFeedback[userIndex] = append(d.userFeedback[userIndex], itemIndex)
	}
	d.ratings = append(d.ratings, rating)
	d.userIndices = append(d.userIndices, userIndex)
	d.itemIndices = append(d.itemIndices, itemIndex)
	d.sum += rating.Value
}

func (d *Dataset) CountRatings() int {
	return len(d.ratings)
}

func (d *Dataset) CountUsers() int {
	return d.userDict.Count()
}

func (d *Dataset) CountItems() int {
	return d.itemDict.Count()
}

// GetRatings returns ratings in load order. The returned slice must not be modified.
func (d *Dataset) GetRatings() []Rating {
	return d.ratings
}

// GetIndexedRating returns the dense user index, item index and value of the i-th rating.
func (d *Dataset) GetIndexedRating(i int) (int32, int32, float64) {
	return d.userIndices[i], d.itemIndices[i], d.ratings[i].Value
}

func (d *Dataset) GetUserDict() *FreqDict {
	return d.userDict
}

func (d *Dataset) GetItemDict() *FreqDict {
	return d.itemDict
}

func (d *Dataset) GetUserIndex(userId int64) (int32, bool) {
	return d.userDict.Index(userId)
}

func (d *Dataset) GetItemIndex(itemId int64) (int32, bool) {
	return d.itemDict.Index(itemId)
}

func (d *Dataset) UserExists(userId int64) bool {
	_, ok := d.userDict.Index(userId)
	return ok
}

// IsRated reports whether the user at userIndex rated the item at itemIndex.
func (d *Dataset) IsRated(userIndex, itemIndex int32) bool {
	if userIndex < 0 || int(userIndex) >= len(d.userMasks) || itemIndex < 0 {
		return false
	}
	return d.userMasks[userIndex].Test(uint(itemIndex))
}

// RatedItems returns the set of items rated by the user, empty if the user is unseen.
func (d *Dataset) RatedItems(userId int64) mapset.Set[int64] {
	rated := mapset.NewSet[int64]()
	userIndex, ok := d.userDict.Index(userId)
	if !ok {
		return rated
	}
	for _, itemIndex := range d.userFeedback[userIndex] {
		itemId, _ := d.itemDict.ToId(itemIndex)
		rated.Add(itemId)
	}
	return rated
}

// ItemUniverse returns all distinct items in first-seen order.
func (d *Dataset) ItemUniverse() []int64 {
	return slices.Clone(d.itemDict.Ids())
}

// GlobalMean returns the mean rating, or zero for an empty dataset.
func (d *Dataset) GlobalMean() float64 {
	if len(d.ratings) == 0 {
		return 0
	}
	return d.sum / float64(len(d.ratings))
}
