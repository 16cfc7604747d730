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
	"testing"

	"github.com/gorse-io/rating/storage/blob"
	"github.com/juju/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSaveLoad(t *testing.T) {
	ctx := context.Background()
	store := blob.NewPOSIX(t.TempDir())
	m, err := newTestSVD().Fit(ctx, newRandomDataset(10, 10, 10), nil)
	require.NoError(t, err)
	require.NoError(t, Save(ctx, store, "svd_model.bin", m))
	names, err := store.List(ctx)
	assert.NoError(t, err)
	assert.Equal(t, []string{"svd_model.bin"}, names)

	loaded, err := Load(ctx, store, "svd_model.bin")
	require.NoError(t, err)
	for userId := int64(1); userId <= 11; userId++ {
		for itemId := int64(100); itemId <= 110; itemId++ {
			assert.InDelta(t, m.Predict(userId, itemId), loaded.Predict(userId, itemId), roundTripDelta)
		}
	}

	_, err = Load(ctx, store, "missing.bin")
	assert.True(t, errors.Is(err, errors.NotFound))
}
