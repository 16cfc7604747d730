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
	"encoding/csv"
	"io"
	"os"
	"strings"

	"github.com/juju/errors"
)

const utf8BOM = "\ufeff"

// CSVSource reads ratings from a comma separated file with a header row.
type CSVSource struct {
	file   *os.File
	reader *csv.Reader
	header []string
}

func OpenCSV(name string) (*CSVSource, error) {
	file, err := os.Open(name)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, errors.NewNotFound(err, name)
		}
		return nil, errors.Trace(err)
	}
	reader := csv.NewReader(file)
	reader.FieldsPerRecord = -1
	reader.TrimLeadingSpace = true
	return &CSVSource{file: file, reader: reader}, nil
}

func (s *CSVSource) Columns(_ context.Context) ([]string, error) {
	if s.header != nil {
		return s.header, nil
	}
	header, err := s.reader.Read()
	if err == io.EOF {
		return nil, errors.NotValidf("empty csv file %s", s.file.Name())
	} else if err != nil {
		return nil, errors.Trace(err)
	}
	if len(header) > 0 {
		header[0] = strings.TrimPrefix(header[0], utf8BOM)
	}
	s.header = header
	return s.header, nil
}

func (s *CSVSource) Scan(ctx context.Context, fn func(row []string) error) error {
	if _, err := s.Columns(ctx); err != nil {
		return errors.Trace(err)
	}
	for {
		if err := ctx.Err(); err != nil {
			return errors.Trace(err)
		}
		record, err := s.reader.Read()
		if err == io.EOF {
			return nil
		} else if err != nil {
			return errors.Trace(err)
		}
		if err = fn(record); err != nil {
			return err
		}
	}
}

func (s *CSVSource) Close() error {
	return s.file.Close()
}
