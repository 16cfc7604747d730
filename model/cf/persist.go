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
	"bufio"
	"bytes"
	"context"

	"github.com/gorse-io/rating/common/log"
	"github.com/gorse-io/rating/storage/blob"
	"github.com/juju/errors"
	"go.uber.org/zap"
)

// Save writes the model to the store under name.
func Save(ctx context.Context, store blob.Store, name string, m *FactorModel) error {
	var buf bytes.Buffer
	if err := MarshalModel(&buf, m); err != nil {
		return errors.Trace(err)
	}
	w, err := store.Create(ctx, name)
	if err != nil {
		return errors.Trace(err)
	}
	if _, err = buf.WriteTo(w); err != nil {
		_ = w.Close()
		return errors.Trace(err)
	}
	if err = w.Close(); err != nil {
		return errors.Trace(err)
	}
	log.Logger().Info("save model",
		zap.String("name", name),
		zap.Int("n_users", m.UserIndex.Count()),
		zap.Int("n_items", m.ItemIndex.Count()))
	return nil
}

// Load reads the model saved under name.
func Load(ctx context.Context, store blob.Store, name string) (*FactorModel, error) {
	r, err := store.Open(ctx, name)
	if err != nil {
		return nil, errors.Trace(err)
	}
	defer func() {
		if err := r.Close(); err != nil {
			log.Logger().Error("failed to close model", zap.String("name", name), zap.Error(err))
		}
	}()
	m, err := UnmarshalModel(bufio.NewReader(r))
	if err != nil {
		return nil, errors.Annotatef(err, "failed to load model %s", name)
	}
	log.Logger().Info("load model",
		zap.String("name", name),
		zap.Int("n_users", m.UserIndex.Count()),
		zap.Int("n_items", m.ItemIndex.Count()))
	return m, nil
}
