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
	"os"
	"path/filepath"
	"testing"

	"github.com/gorse-io/rating/dataset"
	"github.com/juju/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"
	"go.mongodb.org/mongo-driver/bson"
)

const ratingsCSV = "userId,movieId,rating,timestamp\n" +
	"1,10,4.0,964982703\n" +
	"1,20,5.0,964981247\n" +
	"2,10,3.5,964982224\n"

func writeFile(t *testing.T, content string) string {
	name := filepath.Join(t.TempDir(), "ratings.csv")
	require.NoError(t, os.WriteFile(name, []byte(content), 0644))
	return name
}

func collect(t *testing.T, source dataset.Source) [][]string {
	var rows [][]string
	err := source.Scan(context.Background(), func(row []string) error {
		rows = append(rows, row)
		return nil
	})
	require.NoError(t, err)
	return rows
}

func TestCSV(t *testing.T) {
	name := writeFile(t, ratingsCSV)
	for _, path := range []string{name, "file://" + name} {
		source, err := Open(path, "")
		require.NoError(t, err)
		assert.IsType(t, &CSVSource{}, source)
		columns, err := source.Columns(context.Background())
		assert.NoError(t, err)
		assert.Equal(t, []string{"userId", "movieId", "rating", "timestamp"}, columns)
		assert.Equal(t, [][]string{
			{"1", "10", "4.0", "964982703"},
			{"1", "20", "5.0", "964981247"},
			{"2", "10", "3.5", "964982224"},
		}, collect(t, source))
		assert.NoError(t, source.Close())
	}
}

func TestCSV_BOM(t *testing.T) {
	source, err := OpenCSV(writeFile(t, "\ufeff"+ratingsCSV))
	require.NoError(t, err)
	defer source.Close()
	columns, err := source.Columns(context.Background())
	assert.NoError(t, err)
	assert.Equal(t, "userId", columns[0])
}

func TestCSV_Load(t *testing.T) {
	source, err := OpenCSV(writeFile(t, ratingsCSV))
	require.NoError(t, err)
	defer source.Close()
	d, err := dataset.Load(context.Background(), source, dataset.DefaultColumns(), dataset.DefaultScale())
	assert.NoError(t, err)
	assert.Equal(t, 3, d.CountRatings())
	assert.Equal(t, 2, d.CountUsers())
	assert.Equal(t, 2, d.CountItems())
}

func TestCSV_ShortRow(t *testing.T) {
	source, err := OpenCSV(writeFile(t, "userId,movieId,rating\n1,10\n"))
	require.NoError(t, err)
	defer source.Close()
	_, err = dataset.Load(context.Background(), source, dataset.DefaultColumns(), dataset.DefaultScale())
	assert.ErrorIs(t, err, dataset.ErrSchema)
}

func TestCSV_Empty(t *testing.T) {
	source, err := OpenCSV(writeFile(t, ""))
	require.NoError(t, err)
	defer source.Close()
	_, err = source.Columns(context.Background())
	assert.True(t, errors.Is(err, errors.NotValid))
	_, err = dataset.Load(context.Background(), source, dataset.DefaultColumns(), dataset.DefaultScale())
	assert.ErrorIs(t, err, dataset.ErrSchema)
}

func TestCSV_MalformedRow(t *testing.T) {
	source, err := OpenCSV(writeFile(t, "userId,movieId,rating\n1,\"10,4\n"))
	require.NoError(t, err)
	defer source.Close()
	_, err = dataset.Load(context.Background(), source, dataset.DefaultColumns(), dataset.DefaultScale())
	assert.ErrorIs(t, err, dataset.ErrSchema)
}

func TestCSV_NotFound(t *testing.T) {
	_, err := Open(filepath.Join(t.TempDir(), "missing.csv"), "")
	assert.True(t, errors.Is(err, errors.NotFound))
}

func TestCSV_Cancel(t *testing.T) {
	source, err := OpenCSV(writeFile(t, ratingsCSV))
	require.NoError(t, err)
	defer source.Close()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	err = source.Scan(ctx, func(row []string) error { return nil })
	assert.ErrorIs(t, err, context.Canceled)
	_, err = dataset.Load(ctx, source, dataset.DefaultColumns(), dataset.DefaultScale())
	assert.ErrorIs(t, err, context.Canceled)
	assert.NotErrorIs(t, err, dataset.ErrSchema)
}

type SQLiteTestSuite struct {
	suite.Suite
	source *SQLSource
}

func (suite *SQLiteTestSuite) SetupTest() {
	source, err := Open("sqlite://"+filepath.Join(suite.T().TempDir(), "ratings.db"), "ratings")
	suite.Require().NoError(err)
	suite.source = source.(*SQLSource)
	db := suite.source.gormDB
	suite.Require().NoError(db.Exec("CREATE TABLE ratings (userId INTEGER, movieId INTEGER, rating REAL, timestamp INTEGER)").Error)
	suite.Require().NoError(db.Exec("INSERT INTO ratings VALUES (1, 10, 4.0, 964982703), (1, 20, 5.0, 964981247), (2, 10, 3.5, 964982224)").Error)
}

func (suite *SQLiteTestSuite) TearDownTest() {
	suite.NoError(suite.source.Close())
}

func (suite *SQLiteTestSuite) TestColumns() {
	columns, err := suite.source.Columns(context.Background())
	suite.NoError(err)
	suite.Equal([]string{"userId", "movieId", "rating", "timestamp"}, columns)
}

func (suite *SQLiteTestSuite) TestLoad() {
	d, err := dataset.Load(context.Background(), suite.source, dataset.DefaultColumns(), dataset.DefaultScale())
	suite.NoError(err)
	suite.Equal(3, d.CountRatings())
	suite.Equal([]dataset.Rating{
		{UserId: 1, ItemId: 10, Value: 4},
		{UserId: 1, ItemId: 20, Value: 5},
		{UserId: 2, ItemId: 10, Value: 3.5},
	}, d.GetRatings())
}

func (suite *SQLiteTestSuite) TestNull() {
	suite.Require().NoError(suite.source.gormDB.Exec("INSERT INTO ratings VALUES (3, NULL, 1.0, 0)").Error)
	_, err := dataset.Load(context.Background(), suite.source, dataset.DefaultColumns(), dataset.DefaultScale())
	suite.ErrorIs(err, dataset.ErrSchema)
}

func (suite *SQLiteTestSuite) TestMissingTable() {
	suite.source.table = "missing"
	_, err := suite.source.Columns(context.Background())
	suite.Error(err)
}

func TestSQLite(t *testing.T) {
	suite.Run(t, new(SQLiteTestSuite))
}

func TestMongoDB(t *testing.T) {
	uri := os.Getenv("MONGO_URI")
	if uri == "" {
		t.Skip("MONGO_URI is not set")
	}
	source, err := Open(uri, "ratings_test")
	require.NoError(t, err)
	defer source.Close()
	ctx := context.Background()
	collection := source.(*MongoSource).client.Database(source.(*MongoSource).dbName).Collection("ratings_test")
	require.NoError(t, collection.Drop(ctx))
	_, err = collection.InsertMany(ctx, []any{
		bson.D{{Key: "userId", Value: 1}, {Key: "movieId", Value: int64(10)}, {Key: "rating", Value: 4.5}},
		bson.D{{Key: "userId", Value: 2}, {Key: "movieId", Value: int64(10)}, {Key: "rating", Value: 3.0}},
	})
	require.NoError(t, err)

	columns, err := source.Columns(ctx)
	assert.NoError(t, err)
	assert.Equal(t, []string{"_id", "userId", "movieId", "rating"}, columns)
	d, err := dataset.Load(ctx, source, dataset.DefaultColumns(), dataset.DefaultScale())
	assert.NoError(t, err)
	assert.Equal(t, 2, d.CountRatings())
	assert.Equal(t, 1, d.CountItems())
}

func TestFormatValue(t *testing.T) {
	assert.Equal(t, "", formatValue(nil))
	assert.Equal(t, "7", formatValue(int32(7)))
	assert.Equal(t, "7", formatValue(int64(7)))
	assert.Equal(t, "3.5", formatValue(3.5))
	assert.Equal(t, "4", formatValue(4.0))
	assert.Equal(t, "x", formatValue("x"))
}
