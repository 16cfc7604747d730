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
	"encoding/json"
	"time"

	"github.com/gorse-io/rating/logics"
	"github.com/juju/errors"
	"github.com/redis/go-redis/v9"
)

const redisKeyPrefix = "rating/recommendations/"

// Redis shares recommendation lists between servers.
type Redis struct {
	client *redis.Client
	ttl    time.Duration
}

func (r *Redis) Get(ctx context.Context, userId int64, n int) ([]logics.Prediction, bool, error) {
	data, err := r.client.Get(ctx, redisKeyPrefix+key(userId, n)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, false, nil
	} else if err != nil {
		return nil, false, errors.Trace(err)
	}
	var recommendations []logics.Prediction
	if err = json.Unmarshal(data, &recommendations); err != nil {
		return nil, false, errors.Trace(err)
	}
	return recommendations, true, nil
}

func (r *Redis) Set(ctx context.Context, userId int64, n int, recommendations []logics.Prediction) error {
	data, err := json.Marshal(recommendations)
	if err != nil {
		return errors.Trace(err)
	}
	return errors.Trace(r.client.Set(ctx, redisKeyPrefix+key(userId, n), data, r.ttl).Err())
}

func (r *Redis) Delete(ctx context.Context, userId int64, n int) error {
	return errors.Trace(r.client.Del(ctx, redisKeyPrefix+key(userId, n)).Err())
}

func (r *Redis) Purge(ctx context.Context) error {
	var cursor uint64
	for {
		keys, next, err := r.client.Scan(ctx, cursor, redisKeyPrefix+"*", 1000).Result()
		if err != nil {
			return errors.Trace(err)
		}
		if len(keys) > 0 {
			if err = r.client.Del(ctx, keys...).Err(); err != nil {
				return errors.Trace(err)
			}
		}
		if next == 0 {
			return nil
		}
		cursor = next
	}
}

func (r *Redis) Close() error {
	return r.client.Close()
}
