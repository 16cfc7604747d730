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
	"context"
	"math"

	"github.com/gorse-io/rating/common/log"
	"github.com/gorse-io/rating/common/util"
	"github.com/juju/errors"
	"github.com/samber/lo"
	"go.uber.org/zap"
)

// ErrSchema is returned when a rating source lacks a required column or holds a malformed row.
const ErrSchema = errors.ConstError("schema error")

// Columns names the columns holding user ids, item ids and rating values.
type Columns struct {
	User   string `mapstructure:"user"`
	Item   string `mapstructure:"item"`
	Rating string `mapstructure:"rating"`
}

// DefaultColumns returns the MovieLens column names.
func DefaultColumns() Columns {
	return Columns{User: "userId", Item: "movieId", Rating: "rating"}
}

// Source is a tabular rating source.
type Source interface {
	// Columns returns column names in row order.
	Columns(ctx context.Context) ([]string, error)
	// Scan calls fn for every row. Scanning stops at the first error returned by fn.
	Scan(ctx context.Context, fn func(row []string) error) error
	Close() error
}

// Load reads all ratings from source. Either every row is loaded or an error is returned.
func Load(ctx context.Context, source Source, columns Columns, scale Scale) (*Dataset, error) {
	if !scale.Valid() {
		return nil, errors.Annotatef(ErrInvalidScale, "min %v max %v", scale.Min, scale.Max)
	}
	columns = columns.fill()
	header, err := source.Columns(ctx)
	if err != nil {
		return nil, schemaError(ctx, err, "read columns")
	}
	positions := make([]int, 3)
	for i, name := range []string{columns.User, columns.Item, columns.Rating} {
		pos := lo.IndexOf(header, name)
		if pos < 0 {
			return nil, errors.Annotatef(ErrSchema, "missing column %q", name)
		}
		positions[i] = pos
	}
	width := lo.Max(positions) + 1

	dataset := NewDataset(0)
	rowNum := 0
	err = source.Scan(ctx, func(row []string) error {
		rowNum++
		if len(row) < width {
			return errors.Annotatef(ErrSchema, "row %d has %d fields", rowNum, len(row))
		}
		userId, err := util.ParseInt[int64](row[positions[0]])
		if err != nil {
			return errors.Annotatef(ErrSchema, "row %d: invalid user id %q", rowNum, row[positions[0]])
		}
		itemId, err := util.ParseInt[int64](row[positions[1]])
		if err != nil {
			return errors.Annotatef(ErrSchema, "row %d: invalid item id %q", rowNum, row[positions[1]])
		}
		value, err := util.ParseFloat[float64](row[positions[2]])
		if err != nil || math.IsNaN(value) {
			return errors.Annotatef(ErrSchema, "row %d: invalid rating %q", rowNum, row[positions[2]])
		}
		if !scale.Contains(value) {
			return errors.Annotatef(ErrSchema, "row %d: rating %v out of scale [%v, %v]",
				rowNum, value, scale.Min, scale.Max)
		}
		dataset.AddRating(Rating{UserId: userId, ItemId: itemId, Value: value})
		return nil
	})
	if err != nil {
		return nil, schemaError(ctx, err, "read rows")
	}
	log.Logger().Info("load ratings",
		zap.Int("n_ratings", dataset.CountRatings()),
		zap.Int("n_users", dataset.CountUsers()),
		zap.Int("n_items", dataset.CountItems()))
	return dataset, nil
}

// schemaError marks a source failure as ErrSchema unless it already is one or the load was
// canceled.
func schemaError(ctx context.Context, err error, action string) error {
	if errors.Is(err, ErrSchema) || ctx.Err() != nil ||
		errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return errors.Trace(err)
	}
	return errors.Annotatef(ErrSchema, "%s: %v", action, err)
}

func (c Columns) fill() Columns {
	defaults := DefaultColumns()
	c.User = lo.CoalesceOrEmpty(c.User, defaults.User)
	c.Item = lo.CoalesceOrEmpty(c.Item, defaults.Item)
	c.Rating = lo.CoalesceOrEmpty(c.Rating, defaults.Rating)
	return c
}
