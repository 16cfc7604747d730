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
	"net/url"
	"strings"

	"github.com/XSAM/otelsql"
	"github.com/gorse-io/rating/dataset"
	"github.com/gorse-io/rating/storage"
	"github.com/juju/errors"
	"github.com/samber/lo"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/x/mongo/driver/connstring"
	"go.opentelemetry.io/contrib/instrumentation/go.mongodb.org/mongo-driver/mongo/otelmongo"
	semconv "go.opentelemetry.io/otel/semconv/v1.12.0"
	"gorm.io/driver/clickhouse"
	"gorm.io/driver/mysql"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

// DefaultTable is the table or collection holding ratings when none is configured.
const DefaultTable = "ratings"

// Open a rating source. A path without a database prefix is a CSV file. table names the
// table or collection holding ratings and is ignored by CSV files.
func Open(path, table string) (dataset.Source, error) {
	var err error
	table = lo.CoalesceOrEmpty(table, DefaultTable)
	if strings.HasPrefix(path, storage.MySQLPrefix) {
		name := path[len(storage.MySQLPrefix):]
		// reading a large table in one query outlasts the default timeout
		if name, err = storage.AppendMySQLParams(name, map[string]string{
			"net_read_timeout": "3600",
		}); err != nil {
			return nil, errors.Trace(err)
		}
		source := &SQLSource{driver: MySQL, table: table}
		if source.client, err = otelsql.Open("mysql", name,
			otelsql.WithAttributes(semconv.DBSystemMySQL),
			otelsql.WithSpanOptions(otelsql.SpanOptions{DisableErrSkip: true}),
		); err != nil {
			return nil, errors.Trace(err)
		}
		source.gormDB, err = gorm.Open(mysql.New(mysql.Config{Conn: source.client}), storage.NewGORMConfig())
		if err != nil {
			return nil, errors.Trace(err)
		}
		return source, nil
	} else if storage.HasPrefix(path, storage.PostgresPrefix, storage.PostgreSQLPrefix) {
		source := &SQLSource{driver: Postgres, table: table}
		if source.client, err = otelsql.Open("postgres", path,
			otelsql.WithAttributes(semconv.DBSystemPostgreSQL),
			otelsql.WithSpanOptions(otelsql.SpanOptions{DisableErrSkip: true}),
		); err != nil {
			return nil, errors.Trace(err)
		}
		source.gormDB, err = gorm.Open(postgres.New(postgres.Config{Conn: source.client}), storage.NewGORMConfig())
		if err != nil {
			return nil, errors.Trace(err)
		}
		return source, nil
	} else if storage.HasPrefix(path, storage.ClickhousePrefix, storage.CHHTTPPrefix, storage.CHHTTPSPrefix) {
		parsed, err := url.Parse(path)
		if err != nil {
			return nil, errors.Trace(err)
		}
		if strings.HasPrefix(path, storage.CHHTTPSPrefix) {
			parsed.Scheme = "https"
		} else {
			parsed.Scheme = "http"
		}
		source := &SQLSource{driver: ClickHouse, table: table}
		if source.client, err = otelsql.Open("chhttp", parsed.String(),
			otelsql.WithAttributes(semconv.DBSystemKey.String("clickhouse")),
			otelsql.WithSpanOptions(otelsql.SpanOptions{DisableErrSkip: true}),
		); err != nil {
			return nil, errors.Trace(err)
		}
		source.gormDB, err = gorm.Open(clickhouse.New(clickhouse.Config{Conn: source.client}), storage.NewGORMConfig())
		if err != nil {
			return nil, errors.Trace(err)
		}
		return source, nil
	} else if storage.HasPrefix(path, storage.MongoPrefix, storage.MongoSrvPrefix) {
		opts := options.Client()
		opts.Monitor = otelmongo.NewMonitor()
		opts.ApplyURI(path)
		source := &MongoSource{collection: table}
		if source.client, err = mongo.Connect(context.Background(), opts); err != nil {
			return nil, errors.Trace(err)
		}
		// database name comes from the DSN
		cs, err := connstring.ParseAndValidate(path)
		if err != nil {
			return nil, errors.Trace(err)
		}
		source.dbName = cs.Database
		return source, nil
	} else if strings.HasPrefix(path, storage.SQLitePrefix) {
		if path, err = storage.AppendURLParams(path, []lo.Tuple2[string, string]{
			{A: "_pragma", B: "busy_timeout(10000)"},
		}); err != nil {
			return nil, errors.Trace(err)
		}
		name := path[len(storage.SQLitePrefix):]
		source := &SQLSource{driver: SQLite, table: table}
		if source.client, err = otelsql.Open("sqlite", name,
			otelsql.WithAttributes(semconv.DBSystemSqlite),
			otelsql.WithSpanOptions(otelsql.SpanOptions{DisableErrSkip: true}),
		); err != nil {
			return nil, errors.Trace(err)
		}
		source.gormDB, err = gorm.Open(sqlite.Dialector{Conn: source.client}, storage.NewGORMConfig())
		if err != nil {
			return nil, errors.Trace(err)
		}
		return source, nil
	}
	return OpenCSV(strings.TrimPrefix(path, storage.FilePrefix))
}
