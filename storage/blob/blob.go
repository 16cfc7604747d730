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

package blob

import (
	"context"
	"io"
	"sync"

	"github.com/gorse-io/rating/config"
	"github.com/juju/errors"
	"github.com/samber/lo"
)

// Store keeps named binary objects such as serialized models.
type Store interface {
	// Open an object for reading. It returns a NotFound error if the object doesn't exist.
	Open(ctx context.Context, name string) (io.ReadCloser, error)
	// Create an object for writing. The object is visible once Close returns without error.
	Create(ctx context.Context, name string) (io.WriteCloser, error)
	// List names of all objects.
	List(ctx context.Context) ([]string, error)
	// Remove an object.
	Remove(ctx context.Context, name string) error
}

// Open creates the store selected by the configuration.
func Open(cfg config.BlobConfig) (Store, error) {
	switch cfg.Type {
	case config.BlobPOSIX, "":
		return NewPOSIX(cfg.Dir), nil
	case config.BlobS3:
		return NewS3(cfg.S3)
	case config.BlobGCS:
		return NewGCS(cfg.GCS)
	case config.BlobAzure:
		return NewAzureBlob(cfg.Azure)
	}
	return nil, errors.NotSupportedf("blob store %q", cfg.Type)
}

// uploadWriter streams written bytes to an upload running in background. Close waits for
// the upload and returns its error.
type uploadWriter struct {
	*io.PipeWriter
	done chan error
	once sync.Once
	err  error
}

func newUploadWriter(upload func(r io.Reader) error) *uploadWriter {
	pr, pw := io.Pipe()
	w := &uploadWriter{PipeWriter: pw, done: make(chan error, 1)}
	go func() {
		err := upload(pr)
		// unblock pending writes if the upload stopped early
		_ = pr.CloseWithError(lo.Ternary(err != nil, err, io.ErrClosedPipe))
		w.done <- err
	}()
	return w
}

func (w *uploadWriter) Close() error {
	w.once.Do(func() {
		if err := w.PipeWriter.Close(); err != nil {
			w.err = errors.Trace(err)
			return
		}
		w.err = errors.Trace(<-w.done)
	})
	return w.err
}
