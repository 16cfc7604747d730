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
	"encoding/binary"
	"io"

	"github.com/gorse-io/rating/base/encoding"
	"github.com/gorse-io/rating/dataset"
	"github.com/gorse-io/rating/model"
	"github.com/juju/errors"
	"gonum.org/v1/gonum/floats"
)

const svdModelName = "svd"

// FactorModel is a biased matrix factorization model. The estimated rating of user u
// for item i is
//
//	r_ui = μ + b_u + b_i + p_u^T q_i
//
// clamped to the rating scale. A FactorModel is never mutated once built, so it can be
// shared by concurrent readers.
type FactorModel struct {
	Params     model.Params
	Scale      dataset.Scale
	GlobalMean float64
	UserIndex  *dataset.FreqDict
	ItemIndex  *dataset.FreqDict
	// Model parameters
	UserBias   []float64   // b_u
	ItemBias   []float64   // b_i
	UserFactor [][]float64 // p_u
	ItemFactor [][]float64 // q_i
	nFactors   int
}

func (m *FactorModel) GetParams() model.Params {
	return m.Params
}

// NumFactors returns the width of latent factors.
func (m *FactorModel) NumFactors() int {
	return m.nFactors
}

// IsUserKnown returns false if the user was absent from the training set.
func (m *FactorModel) IsUserKnown(userId int64) bool {
	_, ok := m.UserIndex.Index(userId)
	return ok
}

// IsItemKnown returns false if the item was absent from the training set.
func (m *FactorModel) IsItemKnown(itemId int64) bool {
	_, ok := m.ItemIndex.Index(itemId)
	return ok
}

// Predict the rating given by a user to an item. An unknown user or item contributes a zero
// bias and a zero factor, so an unknown pair is estimated by the global mean.
func (m *FactorModel) Predict(userId, itemId int64) float64 {
	userIndex, ok := m.UserIndex.Index(userId)
	if !ok {
		userIndex = -1
	}
	itemIndex, ok := m.ItemIndex.Index(itemId)
	if !ok {
		itemIndex = -1
	}
	return m.Scale.Clamp(m.internalPredict(userIndex, itemIndex))
}

// internalPredict returns the unclamped estimate. Negative indices stand for unknown ids.
func (m *FactorModel) internalPredict(userIndex, itemIndex int32) float64 {
	ret := m.GlobalMean
	if userIndex >= 0 {
		ret += m.UserBias[userIndex]
	}
	if itemIndex >= 0 {
		ret += m.ItemBias[itemIndex]
	}
	if userIndex >= 0 && itemIndex >= 0 && m.nFactors > 0 {
		ret += floats.Dot(m.UserFactor[userIndex], m.ItemFactor[itemIndex])
	}
	return ret
}

// Marshal model into byte stream.
func (m *FactorModel) Marshal(w io.Writer) error {
	// write params
	if err := encoding.WriteGob(w, m.Params); err != nil {
		return errors.Trace(err)
	}
	// write scale, global mean and number of factors
	header := []float64{m.Scale.Min, m.Scale.Max, m.GlobalMean}
	if err := binary.Write(w, binary.LittleEndian, header); err != nil {
		return errors.Trace(err)
	}
	if err := binary.Write(w, binary.LittleEndian, int64(m.nFactors)); err != nil {
		return errors.Trace(err)
	}
	// write users and items
	if err := marshalFactors(w, m.UserIndex, m.UserBias, m.UserFactor); err != nil {
		return errors.Annotate(err, "failed to write users")
	}
	if err := marshalFactors(w, m.ItemIndex, m.ItemBias, m.ItemFactor); err != nil {
		return errors.Annotate(err, "failed to write items")
	}
	return nil
}

// Unmarshal model from byte stream.
func (m *FactorModel) Unmarshal(r io.Reader) error {
	// read params
	if err := encoding.ReadGob(r, &m.Params); err != nil {
		return errors.Trace(err)
	}
	// read scale, global mean and number of factors
	header := make([]float64, 3)
	if err := binary.Read(r, binary.LittleEndian, header); err != nil {
		return errors.Trace(err)
	}
	m.Scale = dataset.Scale{Min: header[0], Max: header[1]}
	m.GlobalMean = header[2]
	var nFactors int64
	if err := binary.Read(r, binary.LittleEndian, &nFactors); err != nil {
		return errors.Trace(err)
	}
	if nFactors < 0 {
		return errors.NotValidf("number of factors %d", nFactors)
	}
	m.nFactors = int(nFactors)
	// read users and items
	var err error
	if m.UserIndex, m.UserBias, m.UserFactor, err = unmarshalFactors(r, m.nFactors); err != nil {
		return errors.Annotate(err, "failed to read users")
	}
	if m.ItemIndex, m.ItemBias, m.ItemFactor, err = unmarshalFactors(r, m.nFactors); err != nil {
		return errors.Annotate(err, "failed to read items")
	}
	return nil
}

func marshalFactors(w io.Writer, index *dataset.FreqDict, bias []float64, factors [][]float64) error {
	if err := encoding.WriteSlice(w, index.Ids()); err != nil {
		return errors.Trace(err)
	}
	if err := encoding.WriteSlice(w, bias); err != nil {
		return errors.Trace(err)
	}
	return encoding.WriteMatrix(w, factors)
}

func unmarshalFactors(r io.Reader, nFactors int) (*dataset.FreqDict, []float64, [][]float64, error) {
	ids, err := encoding.ReadSlice[int64](r)
	if err != nil {
		return nil, nil, nil, errors.Trace(err)
	}
	bias, err := encoding.ReadSlice[float64](r)
	if err != nil {
		return nil, nil, nil, errors.Trace(err)
	}
	if len(bias) != len(ids) {
		return nil, nil, nil, errors.NotValidf("%d biases for %d ids", len(bias), len(ids))
	}
	index := dataset.NewFreqDict()
	for _, id := range ids {
		index.NotCount(id)
	}
	if index.Count() != len(ids) {
		return nil, nil, nil, errors.NotValidf("duplicated ids")
	}
	factors := make([][]float64, len(ids))
	for i := range factors {
		factors[i] = make([]float64, nFactors)
	}
	if err = encoding.ReadMatrix(r, factors); err != nil {
		return nil, nil, nil, errors.Trace(err)
	}
	return index, bias, factors, nil
}

// MarshalModel writes the model name followed by the model.
func MarshalModel(w io.Writer, m *FactorModel) error {
	if err := encoding.WriteString(w, svdModelName); err != nil {
		return errors.Trace(err)
	}
	if err := m.Marshal(w); err != nil {
		return errors.Trace(err)
	}
	return nil
}

// UnmarshalModel reads a model written by MarshalModel.
func UnmarshalModel(r io.Reader) (*FactorModel, error) {
	name, err := encoding.ReadString(r)
	if err != nil {
		return nil, errors.Trace(err)
	}
	switch name {
	case svdModelName:
		var m FactorModel
		if err := m.Unmarshal(r); err != nil {
			return nil, errors.Trace(err)
		}
		return &m, nil
	}
	return nil, errors.NotValidf("model %v", name)
}
