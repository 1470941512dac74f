package cache_test

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"gradehub/internal/common/cache"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

func newTestCache(t *testing.T) (*cache.RedisCache, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	redisCache, err := cache.NewRedisCacheWithClient(client)
	if err != nil {
		t.Fatalf("create cache failed: %v", err)
	}
	t.Cleanup(func() { _ = redisCache.Close() })
	return redisCache, mr
}

func TestRedisCacheBasicOps(t *testing.T) {
	c, _ := newTestCache(t)
	ctx := context.Background()

	if err := c.Set(ctx, "k", "v", time.Minute); err != nil {
		t.Fatalf("set failed: %v", err)
	}
	got, err := c.Get(ctx, "k")
	if err != nil || got != "v" {
		t.Fatalf("get = (%q, %v), want (v, nil)", got, err)
	}

	exists, err := c.Exists(ctx, "k")
	if err != nil || exists != 1 {
		t.Fatalf("exists = (%d, %v), want (1, nil)", exists, err)
	}

	if err := c.Del(ctx, "k"); err != nil {
		t.Fatalf("del failed: %v", err)
	}
	got, err = c.Get(ctx, "k")
	if err != nil || got != "" {
		t.Fatalf("get after del = (%q, %v), want empty miss", got, err)
	}
}

func TestRedisCacheSetNXAndIncr(t *testing.T) {
	c, _ := newTestCache(t)
	ctx := context.Background()

	ok, err := c.SetNX(ctx, "counter", 1, time.Minute)
	if err != nil || !ok {
		t.Fatalf("first setnx = (%v, %v), want (true, nil)", ok, err)
	}
	ok, err = c.SetNX(ctx, "counter", 1, time.Minute)
	if err != nil || ok {
		t.Fatalf("second setnx = (%v, %v), want (false, nil)", ok, err)
	}

	n, err := c.Incr(ctx, "counter")
	if err != nil || n != 2 {
		t.Fatalf("incr = (%d, %v), want (2, nil)", n, err)
	}

	ttl, err := c.TTL(ctx, "counter")
	if err != nil || ttl <= 0 {
		t.Fatalf("ttl = (%s, %v), want positive", ttl, err)
	}
}

type testEntity struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

func entityCodec() (func(testEntity) string, func(string) (testEntity, error)) {
	marshal := func(e testEntity) string {
		data, _ := json.Marshal(e)
		return string(data)
	}
	unmarshal := func(data string) (testEntity, error) {
		var e testEntity
		err := json.Unmarshal([]byte(data), &e)
		return e, err
	}
	return marshal, unmarshal
}

func TestGetWithCachedFetchesOnceThenServesFromCache(t *testing.T) {
	c, _ := newTestCache(t)
	ctx := context.Background()
	marshal, unmarshal := entityCodec()

	fetches := 0
	fetch := func(ctx context.Context) (testEntity, error) {
		fetches++
		return testEntity{ID: "1", Name: "one"}, nil
	}
	isEmpty := func(e testEntity) bool { return e.ID == "" }

	for i := 0; i < 3; i++ {
		got, err := cache.GetWithCached(ctx, c, "entity:1", time.Minute, time.Second, isEmpty, marshal, unmarshal, fetch)
		if err != nil {
			t.Fatalf("get with cached failed: %v", err)
		}
		if got.Name != "one" {
			t.Fatalf("unexpected entity %+v", got)
		}
	}
	if fetches != 1 {
		t.Fatalf("expected 1 fetch, got %d", fetches)
	}
}

func TestGetWithCachedCachesMisses(t *testing.T) {
	c, _ := newTestCache(t)
	ctx := context.Background()
	marshal, unmarshal := entityCodec()

	fetches := 0
	fetch := func(ctx context.Context) (testEntity, error) {
		fetches++
		return testEntity{}, nil
	}
	isEmpty := func(e testEntity) bool { return e.ID == "" }

	for i := 0; i < 3; i++ {
		got, err := cache.GetWithCached(ctx, c, "entity:missing", time.Minute, time.Minute, isEmpty, marshal, unmarshal, fetch)
		if err != nil {
			t.Fatalf("get with cached failed: %v", err)
		}
		if got.ID != "" {
			t.Fatalf("expected zero entity, got %+v", got)
		}
	}
	if fetches != 1 {
		t.Fatalf("expected the miss to be cached after 1 fetch, got %d", fetches)
	}
}

func TestGetWithCachedPropagatesFetchError(t *testing.T) {
	c, _ := newTestCache(t)
	marshal, unmarshal := entityCodec()
	wantErr := errors.New("db down")

	_, err := cache.GetWithCached(context.Background(), c, "entity:err", time.Minute, time.Second,
		func(e testEntity) bool { return e.ID == "" }, marshal, unmarshal,
		func(ctx context.Context) (testEntity, error) { return testEntity{}, wantErr })
	if !errors.Is(err, wantErr) {
		t.Fatalf("expected fetch error, got %v", err)
	}
}

func TestUpdateCachedInvalidates(t *testing.T) {
	c, _ := newTestCache(t)
	ctx := context.Background()

	if err := c.Set(ctx, "entity:2", `{"id":"2","name":"stale"}`, time.Minute); err != nil {
		t.Fatalf("seed failed: %v", err)
	}

	err := cache.UpdateCached(ctx, c, "entity:2", func(ctx context.Context) error { return nil })
	if err != nil {
		t.Fatalf("update cached failed: %v", err)
	}

	got, err := c.Get(ctx, "entity:2")
	if err != nil || got != "" {
		t.Fatalf("expected cache invalidated, got (%q, %v)", got, err)
	}
}

func TestJitterTTL(t *testing.T) {
	ttl := time.Minute
	for i := 0; i < 20; i++ {
		got := cache.JitterTTL(ttl)
		if got > ttl || got < ttl-ttl/10 {
			t.Fatalf("jittered ttl %s outside [%s, %s]", got, ttl-ttl/10, ttl)
		}
	}
	if got := cache.JitterTTL(0); got != 0 {
		t.Fatalf("zero ttl should pass through, got %s", got)
	}
}
