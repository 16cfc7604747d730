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

package cf

import (
	"context"
	"math"
	"testing"

	"github.com/gorse-io/rating/dataset"
	"github.com/gorse-io/rating/model"
	"github.com/juju/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const evalEpsilon = 0.00001

type mockModel struct {
	score float64
}

func (m *mockModel) GetParams() model.Params {
	return nil
}

func (m *mockModel) Predict(_, _ int64) float64 {
	return m.score
}

func TestRMSE(t *testing.T) {
	testSet := dataset.NewDataset(0)
	testSet.AddRating(dataset.Rating{UserId: 1, ItemId: 1, Value: 1})
	testSet.AddRating(dataset.Rating{UserId: 1, ItemId: 2, Value: 3})
	testSet.AddRating(dataset.Rating{UserId: 2, ItemId: 1, Value: 5})
	m := &mockModel{score: 3}
	assert.InDelta(t, math.Sqrt(8.0/3), RMSE(m, testSet), evalEpsilon)
	assert.InDelta(t, 4.0/3, MAE(m, testSet), evalEpsilon)
	assert.Equal(t, Score{RMSE: RMSE(m, testSet), MAE: MAE(m, testSet)}, Evaluate(m, testSet))
	// empty test set
	assert.Zero(t, RMSE(m, dataset.NewDataset(0)))
	assert.Zero(t, MAE(m, dataset.NewDataset(0)))
}

func TestMeanScore(t *testing.T) {
	score := MeanScore([]Score{{RMSE: 1, MAE: 0.5}, {RMSE: 2, MAE: 1.5}})
	assert.InDelta(t, 1.5, score.RMSE, evalEpsilon)
	assert.InDelta(t, 1.0, score.MAE, evalEpsilon)
}

func TestCrossValidate(t *testing.T) {
	d := newRandomDataset(30, 30, 9)
	svd := newTestSVD()
	scores, err := CrossValidate(context.Background(), svd, d, 3, 0, NewFitConfig().SetJobs(3))
	require.NoError(t, err)
	assert.Len(t, scores, 3)
	for _, score := range scores {
		assert.Greater(t, score.RMSE, 0.0)
		assert.Less(t, score.RMSE, 4.0)
		assert.LessOrEqual(t, score.MAE, score.RMSE)
	}
	// parallel folds are identical to sequential folds
	sequential, err := CrossValidate(context.Background(), svd, d, 3, 0, NewFitConfig())
	require.NoError(t, err)
	assert.Equal(t, sequential, scores)

	_, err = CrossValidate(context.Background(), svd, d, 1, 0, nil)
	assert.True(t, errors.Is(err, errors.NotValid))
}

func TestHoldout(t *testing.T) {
	d := newRandomDataset(30, 30, 9)
	score, err := Holdout(context.Background(), newTestSVD(), d, 0.2, 0, nil)
	require.NoError(t, err)
	assert.Greater(t, score.RMSE, 0.0)
	assert.Less(t, score.RMSE, 4.0)
	assert.LessOrEqual(t, score.MAE, score.RMSE)
	// same seed, same split
	again, err := Holdout(context.Background(), newTestSVD(), d, 0.2, 0, nil)
	require.NoError(t, err)
	assert.Equal(t, score, again)

	_, err = Holdout(context.Background(), newTestSVD(), d, 1, 0, nil)
	assert.True(t, errors.Is(err, errors.NotValid))
	_, err = Holdout(context.Background(), newTestSVD(), d, 0, 0, nil)
	assert.True(t, errors.Is(err, errors.NotValid))
}
