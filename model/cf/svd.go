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
	"fmt"
	"math"
	"time"

	"github.com/gorse-io/rating/base"
	"github.com/gorse-io/rating/common/log"
	"github.com/gorse-io/rating/dataset"
	"github.com/gorse-io/rating/model"
	"github.com/juju/errors"
	"go.uber.org/zap"
)

const (
	// ErrEmptyDataset is returned when fitting on a dataset without ratings.
	ErrEmptyDataset = errors.ConstError("empty dataset")
	// ErrInvalidScale is returned when fitting with a rating scale whose Min >= Max.
	ErrInvalidScale = dataset.ErrInvalidScale
)

type FitConfig struct {
	Scale   dataset.Scale
	Jobs    int
	Verbose int
	// OnEpoch is called after every epoch with the training RMSE of the epoch.
	OnEpoch func(epoch int, rmse float64)
}

func NewFitConfig() *FitConfig {
	return &FitConfig{
		Scale:   dataset.DefaultScale(),
		Jobs:    1,
		Verbose: 10,
	}
}

func (config *FitConfig) SetScale(scale dataset.Scale) *FitConfig {
	config.Scale = scale
	return config
}

func (config *FitConfig) SetVerbose(verbose int) *FitConfig {
	config.Verbose = verbose
	return config
}

func (config *FitConfig) SetJobs(jobs int) *FitConfig {
	config.Jobs = jobs
	return config
}

// SVD trains biased matrix factorization models with stochastic gradient descent. For every
// rating r_ui in store order:
//
//	e_ui = r_ui - (μ + b_u + b_i + p_u^T q_i)
//	b_u  = b_u + Lr (e_ui - Reg b_u)
//	b_i  = b_i + Lr (e_ui - Reg b_i)
//	p_u  = p_u + Lr (e_ui q_i - Reg p_u)
//	q_i  = q_i + Lr (e_ui p_u - Reg q_i)
//
// where both factor updates read the values before the step.
//
// Hyper-parameters:
//
//	NFactors	- The number of latent factors. Default is 100.
//	NEpochs		- The number of iteration of the SGD procedure. Default is 20.
//	Lr			- The learning rate of SGD. Default is 0.005.
//	Reg			- The regularization parameter of the cost function that is
//				  optimized. Default is 0.02.
//	InitMean	- The mean of initial random latent factors. Default is 0.
//	InitStdDev	- The standard deviation of initial random latent factors. Default is 0.1.
//	RandomState	- The seed of initial random latent factors. Default is 0.
type SVD struct {
	params model.Params
	// Hyper parameters
	nFactors    int
	nEpochs     int
	lr          float64
	reg         float64
	initMean    float64
	initStdDev  float64
	randomState int64
}

// NewSVD creates a SVD trainer.
func NewSVD(params model.Params) *SVD {
	svd := new(SVD)
	svd.SetParams(params)
	return svd
}

// SetParams sets hyper-parameters of the SVD trainer.
func (svd *SVD) SetParams(params model.Params) {
	svd.params = params.Copy()
	svd.nFactors = svd.params.GetInt(model.NFactors, 100)
	svd.nEpochs = svd.params.GetInt(model.NEpochs, 20)
	svd.lr = svd.params.GetFloat64(model.Lr, 0.005)
	svd.reg = svd.params.GetFloat64(model.Reg, 0.02)
	svd.initMean = svd.params.GetFloat64(model.InitMean, 0)
	svd.initStdDev = svd.params.GetFloat64(model.InitStdDev, 0.1)
	svd.randomState = svd.params.GetInt64(model.RandomState, 0)
}

func (svd *SVD) GetParams() model.Params {
	return svd.params
}

// Fit a model on trainSet. The same parameters and training set always produce the same model.
// SVD is not modified by Fit, so folds may be fitted concurrently.
func (svd *SVD) Fit(ctx context.Context, trainSet *dataset.Dataset, config *FitConfig) (*FactorModel, error) {
	if config == nil {
		config = NewFitConfig()
	}
	if !config.Scale.Valid() {
		return nil, errors.Annotatef(ErrInvalidScale, "min %v max %v", config.Scale.Min, config.Scale.Max)
	}
	if trainSet == nil || trainSet.CountRatings() == 0 {
		return nil, errors.Trace(ErrEmptyDataset)
	}
	if svd.nFactors < 0 || svd.nEpochs < 0 {
		return nil, errors.NotValidf("n_factors %d n_epochs %d", svd.nFactors, svd.nEpochs)
	}
	log.Logger().Info("fit svd",
		zap.Int("train_set_size", trainSet.CountRatings()),
		zap.Int("n_users", trainSet.CountUsers()),
		zap.Int("n_items", trainSet.CountItems()),
		zap.String("params", svd.GetParams().ToString()))
	m := svd.init(trainSet, config.Scale)
	verbose := max(config.Verbose, 1)
	start := time.Now()
	var rmse float64
	for epoch := 1; epoch <= svd.nEpochs; epoch++ {
		if err := ctx.Err(); err != nil {
			return nil, errors.Trace(err)
		}
		rmse = svd.epoch(m, trainSet)
		if epoch%verbose == 0 || epoch == svd.nEpochs {
			log.Logger().Info(fmt.Sprintf("fit svd %v/%v", epoch, svd.nEpochs),
				zap.Float64("rmse", rmse),
				zap.Duration("elapsed", time.Since(start)))
		}
		if config.OnEpoch != nil {
			config.OnEpoch(epoch, rmse)
		}
	}
	log.Logger().Info("fit svd complete",
		zap.Float64("rmse", rmse),
		zap.Duration("elapsed", time.Since(start)))
	return m, nil
}

func (svd *SVD) init(trainSet *dataset.Dataset, scale dataset.Scale) *FactorModel {
	rng := base.NewRandomGenerator(svd.randomState)
	return &FactorModel{
		Params:     svd.params.Copy(),
		Scale:      scale,
		GlobalMean: trainSet.GlobalMean(),
		UserIndex:  copyIndex(trainSet.GetUserDict()),
		ItemIndex:  copyIndex(trainSet.GetItemDict()),
		UserBias:   make([]float64, trainSet.CountUsers()),
		ItemBias:   make([]float64, trainSet.CountItems()),
		UserFactor: rng.NormalMatrix(trainSet.CountUsers(), svd.nFactors, svd.initMean, svd.initStdDev),
		ItemFactor: rng.NormalMatrix(trainSet.CountItems(), svd.nFactors, svd.initMean, svd.initStdDev),
		nFactors:   svd.nFactors,
	}
}

// copyIndex detaches the model from the training set so later insertions don't reach it.
func copyIndex(src *dataset.FreqDict) *dataset.FreqDict {
	dst := dataset.NewFreqDict()
	for _, id := range src.Ids() {
		dst.NotCount(id)
	}
	return dst
}

// epoch runs one pass over ratings in store order and returns the training RMSE of the pass.
func (svd *SVD) epoch(m *FactorModel, trainSet *dataset.Dataset) float64 {
	var cost float64
	for i := 0; i < trainSet.CountRatings(); i++ {
		userIndex, itemIndex, rating := trainSet.GetIndexedRating(i)
		e := rating - m.internalPredict(userIndex, itemIndex)
		cost += e * e
		// Update biases
		m.UserBias[userIndex] += svd.lr * (e - svd.reg*m.UserBias[userIndex])
		m.ItemBias[itemIndex] += svd.lr * (e - svd.reg*m.ItemBias[itemIndex])
		// Update latent factors
		userFactor := m.UserFactor[userIndex]
		itemFactor := m.ItemFactor[itemIndex]
		for f := range userFactor {
			puf, qif := userFactor[f], itemFactor[f]
			userFactor[f] += svd.lr * (e*qif - svd.reg*puf)
			itemFactor[f] += svd.lr * (e*puf - svd.reg*qif)
		}
	}
	return math.Sqrt(cost / float64(trainSet.CountRatings()))
}

