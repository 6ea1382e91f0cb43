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
	"errors"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
)

// fakeRedis implements the handful of commands CachedStore uses.
type fakeRedis struct {
	redis.Cmdable
	data    map[string]string
	gets    int
	failAll bool
}

func newFakeRedis() *fakeRedis { return &fakeRedis{data: map[string]string{}} }

var errRedisDown = errors.New("redis down")

func (f *fakeRedis) Get(ctx context.Context, key string) *redis.StringCmd {
	f.gets++
	cmd := redis.NewStringCmd(ctx, "get", key)
	switch v, ok := f.data[key]; {
	case f.failAll:
		cmd.SetErr(errRedisDown)
	case !ok:
		cmd.SetErr(redis.Nil)
	default:
		cmd.SetVal(v)
	}
	return cmd
}

func (f *fakeRedis) Set(ctx context.Context, key string, value any, _ time.Duration) *redis.StatusCmd {
	cmd := redis.NewStatusCmd(ctx, "set", key)
	if f.failAll {
		cmd.SetErr(errRedisDown)
		return cmd
	}
	switch v := value.(type) {
	case []byte:
		f.data[key] = string(v)
	case string:
		f.data[key] = v
	}
	cmd.SetVal("OK")
	return cmd
}

func (f *fakeRedis) Del(ctx context.Context, keys ...string) *redis.IntCmd {
	cmd := redis.NewIntCmd(ctx, "del")
	if f.failAll {
		cmd.SetErr(errRedisDown)
		return cmd
	}
	var n int64
	for _, k := range keys {
		if _, ok := f.data[k]; ok {
			delete(f.data, k)
			n++
		}
	}
	cmd.SetVal(n)
	return cmd
}

func (f *fakeRedis) Ping(ctx context.Context) *redis.StatusCmd {
	cmd := redis.NewStatusCmd(ctx, "ping")
	if f.failAll {
		cmd.SetErr(errRedisDown)
	} else {
		cmd.SetVal("PONG")
	}
	return cmd
}

// countingStore counts reads that reach the wrapped store.
type countingStore struct {
	*MemStore
	gets int
}

func (c *countingStore) GetPage(ctx context.Context, id string) (Page, error) {
	c.gets++
	return c.MemStore.GetPage(ctx, id)
}

func TestCachedStoreReadThrough(t *testing.T) {
	ctx := context.Background()
	inner := &countingStore{MemStore: NewMemStore()}
	rdb := newFakeRedis()
	cs := NewCachedStore(inner, rdb, time.Minute)

	p, err := cs.CreatePage(ctx, NewPage{Name: "a", Document: samplePage()})
	if err != nil {
		t.Fatal(err)
	}
	if _, ok := rdb.data[cacheKey(p.ID)]; !ok {
		t.Fatalf("created page not cached")
	}
	got, err := cs.GetPage(ctx, p.ID)
	if err != nil || len(got.Document.Blocks) != 3 {
		t.Fatalf("get: %+v, %v", got, err)
	}
	if inner.gets != 0 {
		t.Fatalf("cached read reached the store %d times", inner.gets)
	}

	if _, err := cs.UpdatePage(ctx, p.ID, samplePage(), 0); err != nil {
		t.Fatal(err)
	}
	if _, ok := rdb.data[cacheKey(p.ID)]; ok {
		t.Fatalf("update left a stale cache entry")
	}
	got, err = cs.GetPage(ctx, p.ID)
	if err != nil || got.Version != 2 {
		t.Fatalf("get after update: %+v, %v", got, err)
	}
	if inner.gets != 1 {
		t.Fatalf("store reads = %d, want 1", inner.gets)
	}

	if err := cs.DeletePage(ctx, p.ID); err != nil {
		t.Fatal(err)
	}
	if _, err := cs.GetPage(ctx, p.ID); !errors.Is(err, ErrNotFound) {
		t.Fatalf("get after delete err = %v", err)
	}
}

func TestCachedStoreDropsUnreadableEntry(t *testing.T) {
	ctx := context.Background()
	inner := NewMemStore()
	p, _ := inner.CreatePage(ctx, NewPage{Name: "a", Document: samplePage()})
	rdb := newFakeRedis()
	rdb.data[cacheKey(p.ID)] = "{not json"
	cs := NewCachedStore(inner, rdb, 0)

	got, err := cs.GetPage(ctx, p.ID)
	if err != nil || got.ID != p.ID {
		t.Fatalf("get: %+v, %v", got, err)
	}
	if rdb.data[cacheKey(p.ID)] == "{not json" {
		t.Fatalf("unreadable entry was not replaced")
	}
}

func TestCachedStoreSurvivesRedisOutage(t *testing.T) {
	ctx := context.Background()
	rdb := newFakeRedis()
	rdb.failAll = true
	cs := NewCachedStore(NewMemStore(), rdb, time.Minute)

	p, err := cs.CreatePage(ctx, NewPage{Name: "a", Document: samplePage()})
	if err != nil {
		t.Fatalf("create with redis down: %v", err)
	}
	if _, err := cs.GetPage(ctx, p.ID); err != nil {
		t.Fatalf("get with redis down: %v", err)
	}
	if err := cs.Ping(ctx); !errors.Is(err, errRedisDown) {
		t.Fatalf("ping err = %v", err)
	}
}
