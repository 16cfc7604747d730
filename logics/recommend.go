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

package logics

import (
	"github.com/gorse-io/rating/common/heap"
	"github.com/gorse-io/rating/dataset"
	"github.com/gorse-io/rating/model/cf"
	"github.com/juju/errors"
	"github.com/samber/lo"
)

const (
	// ErrUnknownUser is returned when recommending for an user absent from the ratings.
	ErrUnknownUser = errors.ConstError("unknown user")
	// ErrInvalidArgument is returned when the number of recommendations is not positive.
	ErrInvalidArgument = errors.ConstError("invalid argument")
)

// Prediction is the estimated rating of an user for an item.
type Prediction struct {
	UserId int64   `json:"user_id"`
	ItemId int64   `json:"item_id"`
	Score  float64 `json:"estimated_rating"`
}

// PredictionDetail is a prediction with the evidence it is based on. A score for an unknown
// user or item is a fallback.
type PredictionDetail struct {
	Prediction
	KnownUser   bool `json:"known_user"`
	KnownItem   bool `json:"known_item"`
	UserRatings int  `json:"user_ratings"`
	ItemRatings int  `json:"item_ratings"`
}

// Recommender ranks items an user hasn't rated. It only reads the model and the dataset, so
// it is safe for concurrent use.
type Recommender struct {
	model   *cf.FactorModel
	dataset *dataset.Dataset
}

func NewRecommender(m *cf.FactorModel, d *dataset.Dataset) *Recommender {
	return &Recommender{model: m, dataset: d}
}

func (r *Recommender) Model() *cf.FactorModel {
	return r.model
}

func (r *Recommender) Dataset() *dataset.Dataset {
	return r.dataset
}

// Predict scores a single pair. Unknown users and items fall back to the global mean.
func (r *Recommender) Predict(userId, itemId int64) Prediction {
	return Prediction{
		UserId: userId,
		ItemId: itemId,
		Score:  r.model.Predict(userId, itemId),
	}
}

// PredictDetail scores a single pair and reports whether the model knows both sides and how
// many ratings each side has.
func (r *Recommender) PredictDetail(userId, itemId int64) PredictionDetail {
	detail := PredictionDetail{
		Prediction: r.Predict(userId, itemId),
		KnownUser:  r.model.IsUserKnown(userId),
		KnownItem:  r.model.IsItemKnown(itemId),
	}
	if userIndex, ok := r.dataset.GetUserIndex(userId); ok {
		detail.UserRatings = r.dataset.GetUserDict().Freq(userIndex)
	}
	if itemIndex, ok := r.dataset.GetItemIndex(itemId); ok {
		detail.ItemRatings = r.dataset.GetItemDict().Freq(itemIndex)
	}
	return detail
}

// Unseen returns items the user hasn't rated in first-seen order.
func (r *Recommender) Unseen(userId int64) []int64 {
	userIndex, ok := r.dataset.GetUserIndex(userId)
	if !ok {
		return r.dataset.ItemUniverse()
	}
	var unseen []int64
	for itemIndex, itemId := range r.dataset.GetItemDict().Ids() {
		if !r.dataset.IsRated(userIndex, int32(itemIndex)) {
			unseen = append(unseen, itemId)
		}
	}
	return unseen
}

// Recommend returns the top n unseen items by estimated rating. Items with equal estimates are
// ordered by ascending id. An user who has rated every item gets an empty list.
func (r *Recommender) Recommend(userId int64, n int) ([]Prediction, error) {
	if n <= 0 {
		return nil, errors.WithType(errors.Annotatef(ErrInvalidArgument, "n = %d", n), errors.NotValid)
	}
	if !r.dataset.UserExists(userId) {
		return nil, errors.WithType(errors.Annotatef(ErrUnknownUser, "user %d", userId), errors.NotFound)
	}
	filter := heap.NewTopKFilter[int64, float64](n)
	for _, itemId := range r.Unseen(userId) {
		filter.Push(itemId, r.model.Predict(userId, itemId))
	}
	return lo.Map(filter.PopAll(), func(elem heap.Elem[int64, float64], _ int) Prediction {
		return Prediction{UserId: userId, ItemId: elem.Value, Score: elem.Weight}
	}), nil
}
