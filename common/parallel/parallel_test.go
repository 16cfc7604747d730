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

package parallel

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	mapset "github.com/deckarep/golang-set/v2"
	"github.com/samber/lo"
	"github.com/stretchr/testify/assert"
)

func TestParallel(t *testing.T) {
	a := lo.Range(10000)
	b := make([]int, len(a))
	workerIds := make([]int, len(a))
	// multiple threads
	err := Parallel(context.Background(), len(a), 4, func(workerId, jobId int) error {
		b[jobId] = a[jobId]
		workerIds[jobId] = workerId
		time.Sleep(time.Microsecond)
		return nil
	})
	assert.NoError(t, err)
	workersSet := mapset.NewSet(workerIds...)
	assert.Equal(t, a, b)
	assert.GreaterOrEqual(t, 4, workersSet.Cardinality())
	// single thread
	err = Parallel(context.Background(), len(a), 1, func(workerId, jobId int) error {
		b[jobId] = a[jobId]
		workerIds[jobId] = workerId
		return nil
	})
	assert.NoError(t, err)
	workersSet = mapset.NewSet(workerIds...)
	assert.Equal(t, a, b)
	assert.Equal(t, 1, workersSet.Cardinality())
}

func TestParallelError(t *testing.T) {
	failure := errors.New("failure")
	err := Parallel(context.Background(), 100, 4, func(_, jobId int) error {
		if jobId == 50 {
			return failure
		}
		return nil
	})
	assert.ErrorIs(t, err, failure)
	err = Parallel(context.Background(), 100, 1, func(_, jobId int) error {
		if jobId == 50 {
			return failure
		}
		return nil
	})
	assert.ErrorIs(t, err, failure)
}

func TestParallelCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	var count atomic.Int32
	err := Parallel(ctx, 1000, 4, func(_, jobId int) error {
		if jobId == 0 {
			cancel()
		}
		count.Add(1)
		time.Sleep(100 * time.Microsecond)
		return nil
	})
	assert.ErrorIs(t, err, context.Canceled)
	assert.Less(t, int(count.Load()), 1000)
}

func TestParallelStopOnFirstError(t *testing.T) {
	failure := errors.New("failure")
	var count atomic.Int32
	done := make(chan error, 1)
	go func() {
		// more jobs than the channel buffer, every worker fails
		done <- Parallel(context.Background(), 5000, 4, func(_, jobId int) error {
			count.Add(1)
			time.Sleep(100 * time.Microsecond)
			return failure
		})
	}()
	select {
	case err := <-done:
		assert.ErrorIs(t, err, failure)
		assert.NotErrorIs(t, err, context.Canceled)
		assert.LessOrEqual(t, int(count.Load()), 4)
	case <-time.After(10 * time.Second):
		t.Fatal("parallel did not stop after the first error")
	}
}
