/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the
 *  specific language governing permissions and limitations under the License.
 */

package backend

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"

	"pagebuilder/internal/domain"
	applog "pagebuilder/internal/log"
)

const cacheKeyPrefix = "pb:page:"

// CachedStore serves GetPage from Redis and falls back to the wrapped store.
// Writes go to the wrapped store first and then drop the cached entry.
// Redis failures are logged and never fail a request.
type CachedStore struct {
	Store
	rdb redis.Cmdable
	ttl time.Duration
	log *slog.Logger
}

// NewCachedStore wraps inner. A ttl of zero keeps entries for ten minutes.
func NewCachedStore(inner Store, rdb redis.Cmdable, ttl time.Duration) *CachedStore {
	if ttl <= 0 {
		ttl = 10 * time.Minute
	}
	return &CachedStore{Store: inner, rdb: rdb, ttl: ttl, log: applog.WithComponent("pagecache")}
}

// NewRedisClient parses a redis:// URL into a client.
func NewRedisClient(url string) (*redis.Client, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}
	return redis.NewClient(opts), nil
}

func cacheKey(id string) string { return cacheKeyPrefix + id }

func (c *CachedStore) GetPage(ctx context.Context, id string) (Page, error) {
	data, err := c.rdb.Get(ctx, cacheKey(id)).Bytes()
	switch {
	case err == nil:
		var p Page
		if jerr := json.Unmarshal(data, &p); jerr == nil {
			if p.Document.Blocks == nil {
				p.Document.Blocks = []*domain.Block{}
			}
			return p, nil
		}
		c.log.Warn("dropping unreadable cache entry", slog.String("id", id))
		c.forget(ctx, id)
	case !errors.Is(err, redis.Nil):
		c.log.Warn("cache read failed", slog.String("id", id), slog.Any("err", err))
	}
	p, err := c.Store.GetPage(ctx, id)
	if err != nil {
		return Page{}, err
	}
	c.remember(ctx, p)
	return p, nil
}

func (c *CachedStore) CreatePage(ctx context.Context, np NewPage) (Page, error) {
	p, err := c.Store.CreatePage(ctx, np)
	if err != nil {
		return Page{}, err
	}
	c.remember(ctx, p)
	return p, nil
}

func (c *CachedStore) UpdatePage(ctx context.Context, id string, doc domain.Document, ifVersion int64) (Page, error) {
	p, err := c.Store.UpdatePage(ctx, id, doc, ifVersion)
	c.forget(ctx, id)
	return p, err
}

func (c *CachedStore) DeletePage(ctx context.Context, id string) error {
	err := c.Store.DeletePage(ctx, id)
	c.forget(ctx, id)
	return err
}

// Ping checks the wrapped store and Redis.
func (c *CachedStore) Ping(ctx context.Context) error {
	if err := c.Store.Ping(ctx); err != nil {
		return err
	}
	if err := c.rdb.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("redis: %w", err)
	}
	return nil
}

func (c *CachedStore) remember(ctx context.Context, p Page) {
	data, err := json.Marshal(p)
	if err != nil {
		return
	}
	if err := c.rdb.Set(ctx, cacheKey(p.ID), data, c.ttl).Err(); err != nil {
		c.log.Warn("cache write failed", slog.String("id", p.ID), slog.Any("err", err))
	}
}

func (c *CachedStore) forget(ctx context.Context, id string) {
	if err := c.rdb.Del(ctx, cacheKey(id)).Err(); err != nil {
		c.log.Warn("cache delete failed", slog.String("id", id), slog.Any("err", err))
	}
}
