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

package cache

import (
	"context"
	"fmt"
	"time"

	"github.com/gorse-io/rating/logics"
	"github.com/gorse-io/rating/storage"
	"github.com/jellydator/ttlcache/v3"
	"github.com/juju/errors"
	"github.com/redis/go-redis/extra/redisotel/v9"
	"github.com/redis/go-redis/v9"
)

const (
	RedisPrefix  = "redis://"
	RedissPrefix = "rediss://"
)

// Database caches recommendation lists keyed by user and list length.
type Database interface {
	Get(ctx context.Context, userId int64, n int) ([]logics.Prediction, bool, error)
	Set(ctx context.Context, userId int64, n int, recommendations []logics.Prediction) error
	Delete(ctx context.Context, userId int64, n int) error
	// Purge drops every cached list. It is called once the model is replaced.
	Purge(ctx context.Context) error
	Close() error
}

// Open a cache. An empty path keeps at most size lists in memory.
func Open(path string, size int, ttl time.Duration) (Database, error) {
	if storage.HasPrefix(path, RedisPrefix, RedissPrefix) {
		opt, err := redis.ParseURL(path)
		if err != nil {
			return nil, errors.Trace(err)
		}
		database := &Redis{client: redis.NewClient(opt), ttl: ttl}
		if err = redisotel.InstrumentTracing(database.client); err != nil {
			return nil, errors.Trace(err)
		}
		return database, nil
	} else if path == "" {
		return NewMemory(size, ttl), nil
	}
	return nil, errors.Errorf("Unknown cache: %s", path)
}

func key(userId int64, n int) string {
	return fmt.Sprintf("%d/%d", userId, n)
}

// Memory keeps recommendation lists in process.
type Memory struct {
	cache *ttlcache.Cache[string, []logics.Prediction]
}

func NewMemory(size int, ttl time.Duration) *Memory {
	cache := ttlcache.New(
		ttlcache.WithTTL[string, []logics.Prediction](ttl),
		ttlcache.WithCapacity[string, []logics.Prediction](uint64(size)),
		ttlcache.WithDisableTouchOnHit[string, []logics.Prediction](),
	)
	go cache.Start()
	return &Memory{cache: cache}
}

func (m *Memory) Get(_ context.Context, userId int64, n int) ([]logics.Prediction, bool, error) {
	item := m.cache.Get(key(userId, n))
	if item == nil {
		return nil, false, nil
	}
	return item.Value(), true, nil
}

func (m *Memory) Set(_ context.Context, userId int64, n int, recommendations []logics.Prediction) error {
	m.cache.Set(key(userId, n), recommendations, ttlcache.DefaultTTL)
	return nil
}

func (m *Memory) Delete(_ context.Context, userId int64, n int) error {
	m.cache.Delete(key(userId, n))
	return nil
}

func (m *Memory) Purge(_ context.Context) error {
	m.cache.DeleteAll()
	return nil
}

func (m *Memory) Close() error {
	m.cache.Stop()
	return nil
}
