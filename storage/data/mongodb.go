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

package data

import (
	"context"
	"fmt"
	"strconv"

	"github.com/juju/errors"
	"github.com/samber/lo"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
)

// MongoSource reads ratings from a collection. Columns are the keys of the first document.
type MongoSource struct {
	client     *mongo.Client
	dbName     string
	collection string
	columns    []string
}

func (s *MongoSource) Columns(ctx context.Context) ([]string, error) {
	if s.columns != nil {
		return s.columns, nil
	}
	var doc bson.D
	err := s.client.Database(s.dbName).Collection(s.collection).FindOne(ctx, bson.D{}).Decode(&doc)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, errors.NotFoundf("documents in %s.%s", s.dbName, s.collection)
	} else if err != nil {
		return nil, errors.Trace(err)
	}
	s.columns = lo.Map(doc, func(e bson.E, _ int) string { return e.Key })
	return s.columns, nil
}

func (s *MongoSource) Scan(ctx context.Context, fn func(row []string) error) error {
	columns, err := s.Columns(ctx)
	if err != nil {
		return errors.Trace(err)
	}
	cursor, err := s.client.Database(s.dbName).Collection(s.collection).Find(ctx, bson.D{})
	if err != nil {
		return errors.Trace(err)
	}
	defer cursor.Close(ctx)
	for cursor.Next(ctx) {
		var doc bson.M
		if err = cursor.Decode(&doc); err != nil {
			return errors.Trace(err)
		}
		row := lo.Map(columns, func(column string, _ int) string { return formatValue(doc[column]) })
		if err = fn(row); err != nil {
			return err
		}
	}
	return errors.Trace(cursor.Err())
}

func (s *MongoSource) Close() error {
	return s.client.Disconnect(context.Background())
}

func formatValue(v any) string {
	switch value := v.(type) {
	case nil:
		return ""
	case string:
		return value
	case int32:
		return strconv.FormatInt(int64(value), 10)
	case int64:
		return strconv.FormatInt(value, 10)
	case float64:
		return strconv.FormatFloat(value, 'g', -1, 64)
	default:
		return fmt.Sprint(value)
	}
}
