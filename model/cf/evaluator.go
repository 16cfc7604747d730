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

	"github.com/gorse-io/rating/common/log"
	"github.com/gorse-io/rating/common/parallel"
	"github.com/gorse-io/rating/dataset"
	"github.com/gorse-io/rating/model"
	"github.com/juju/errors"
	"github.com/samber/lo"
	"go.uber.org/zap"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"
)

// Score is the accuracy of a model on a test set.
type Score struct {
	RMSE float64
	MAE  float64
}

// residuals returns r_ui - r̂_ui for every rating in the test set.
func residuals(m model.Model, testSet *dataset.Dataset) []float64 {
	ret := make([]float64, testSet.CountRatings())
	for i, rating := range testSet.GetRatings() {
		ret[i] = rating.Value - m.Predict(rating.UserId, rating.ItemId)
	}
	return ret
}

// RMSE is root mean square error:
//
//	\sqrt{\frac{1}{|T|} \sum_{r_ui \in T} (r_ui - \hat r_ui)^2}
func RMSE(m model.Model, testSet *dataset.Dataset) float64 {
	if testSet.CountRatings() == 0 {
		return 0
	}
	r := residuals(m, testSet)
	floats.Mul(r, r)
	return math.Sqrt(stat.Mean(r, nil))
}

// MAE is mean absolute error:
//
//	\frac{1}{|T|} \sum_{r_ui \in T} |r_ui - \hat r_ui|
func MAE(m model.Model, testSet *dataset.Dataset) float64 {
	if testSet.CountRatings() == 0 {
		return 0
	}
	r := residuals(m, testSet)
	for i := range r {
		r[i] = math.Abs(r[i])
	}
	return stat.Mean(r, nil)
}

// Evaluate computes all scores of a model on a test set.
func Evaluate(m model.Model, testSet *dataset.Dataset) Score {
	return Score{
		RMSE: RMSE(m, testSet),
		MAE:  MAE(m, testSet),
	}
}

// CrossValidate fits one model per fold and evaluates it on the held-out fold. Folds are
// fitted by config.Jobs workers.
func CrossValidate(ctx context.Context, svd *SVD, d *dataset.Dataset, nFolds int, seed int64, config *FitConfig) ([]Score, error) {
	if nFolds < 2 {
		return nil, errors.NotValidf("%d folds", nFolds)
	}
	if config == nil {
		config = NewFitConfig()
	}
	foldConfig := *config
	foldConfig.OnEpoch = nil
	trainFolds, testFolds := d.KFold(nFolds, seed)
	scores := make([]Score, nFolds)
	err := parallel.Parallel(ctx, nFolds, config.Jobs, func(_, fold int) error {
		m, err := svd.Fit(ctx, trainFolds[fold], &foldConfig)
		if err != nil {
			return errors.Annotatef(err, "fold %d", fold)
		}
		scores[fold] = Evaluate(m, testFolds[fold])
		log.Logger().Info("evaluate fold",
			zap.Int("fold", fold),
			zap.Float64("rmse", scores[fold].RMSE),
			zap.Float64("mae", scores[fold].MAE))
		return nil
	})
	if err != nil {
		return nil, errors.Trace(err)
	}
	return scores, nil
}

// Holdout fits a model on a random share of ratings and evaluates it on the remaining
// testRatio of them.
func Holdout(ctx context.Context, svd *SVD, d *dataset.Dataset, testRatio float64, seed int64, config *FitConfig) (Score, error) {
	if testRatio <= 0 || testRatio >= 1 {
		return Score{}, errors.NotValidf("test ratio %v", testRatio)
	}
	trainSet, testSet := d.Split(testRatio, seed)
	m, err := svd.Fit(ctx, trainSet, config)
	if err != nil {
		return Score{}, errors.Trace(err)
	}
	score := Evaluate(m, testSet)
	log.Logger().Info("evaluate holdout",
		zap.Int("test_set_size", testSet.CountRatings()),
		zap.Float64("rmse", score.RMSE),
		zap.Float64("mae", score.MAE))
	return score, nil
}

// MeanScore averages scores across folds.
func MeanScore(scores []Score) Score {
	return Score{
		RMSE: lo.MeanBy(scores, func(s Score) float64 { return s.RMSE }),
		MAE:  lo.MeanBy(scores, func(s Score) float64 { return s.MAE }),
	}
}
