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
	"database/sql"

	_ "github.com/go-sql-driver/mysql"
	"github.com/juju/errors"
	_ "github.com/lib/pq"
	_ "github.com/mailru/go-clickhouse/v2"
	"github.com/samber/lo"
	"gorm.io/gorm"
	_ "modernc.org/sqlite"
)

type SQLDriver int

const (
	MySQL SQLDriver = iota
	Postgres
	SQLite
	ClickHouse
)

// SQLSource reads ratings from a table.
type SQLSource struct {
	driver SQLDriver
	table  string
	gormDB *gorm.DB
	client *sql.DB
}

func (s *SQLSource) Columns(ctx context.Context) ([]string, error) {
	rows, err := s.gormDB.WithContext(ctx).Table(s.table).Limit(1).Rows()
	if err != nil {
		return nil, errors.Trace(err)
	}
	defer rows.Close()
	columns, err := rows.Columns()
	if err != nil {
		return nil, errors.Trace(err)
	}
	return columns, nil
}

func (s *SQLSource) Scan(ctx context.Context, fn func(row []string) error) error {
	rows, err := s.gormDB.WithContext(ctx).Table(s.table).Rows()
	if err != nil {
		return errors.Trace(err)
	}
	defer rows.Close()
	columns, err := rows.Columns()
	if err != nil {
		return errors.Trace(err)
	}
	values := make([]sql.NullString, len(columns))
	dest := lo.Map(values, func(_ sql.NullString, i int) any { return &values[i] })
	for rows.Next() {
		if err = rows.Scan(dest...); err != nil {
			return errors.Trace(err)
		}
		// NULL reads as an empty field
		row := lo.Map(values, func(v sql.NullString, _ int) string { return v.String })
		if err = fn(row); err != nil {
			return err
		}
	}
	return errors.Trace(rows.Err())
}

func (s *SQLSource) Close() error {
	return s.client.Close()
}
