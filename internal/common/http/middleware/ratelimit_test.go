package middleware_test

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"gradehub/internal/common/cache"
	commonmw "gradehub/internal/common/http/middleware"
	"gradehub/internal/common/ratelimit"

	"github.com/alicebob/miniredis/v2"
	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
)

func newRateLimitedRouter(t *testing.T, policy commonmw.RateLimitPolicy) *gin.Engine {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	redisCache, err := cache.NewRedisCacheWithClient(client)
	if err != nil {
		t.Fatalf("create cache failed: %v", err)
	}
	t.Cleanup(func() { _ = redisCache.Close() })

	limiter := ratelimit.NewLimiter(redisCache, policy.Window, time.Second)

	gin.SetMode(gin.TestMode)
	router := gin.New()
	router.Use(commonmw.RateLimitMiddleware(limiter, policy))
	router.GET("/ping", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"pong": true})
	})
	return router
}

func TestRateLimitMiddlewareRejectsAfterLimit(t *testing.T) {
	router := newRateLimitedRouter(t, commonmw.RateLimitPolicy{
		Window: time.Minute,
		IPMax:  3,
	})

	for i := 0; i < 3; i++ {
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/ping", nil))
		if rec.Code != http.StatusOK {
			t.Fatalf("request %d: expected 200, got %d", i+1, rec.Code)
		}
	}

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/ping", nil))
	if rec.Code != http.StatusTooManyRequests {
		t.Fatalf("expected 429, got %d", rec.Code)
	}

	var body struct {
		Error string `json:"error"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode body failed: %v", err)
	}
	if body.Error == "" {
		t.Fatalf("expected error message in body %s", rec.Body.String())
	}
}

func TestRateLimitMiddlewareDisabledWithZeroMax(t *testing.T) {
	router := newRateLimitedRouter(t, commonmw.RateLimitPolicy{
		Window: time.Minute,
		IPMax:  0,
	})

	for i := 0; i < 20; i++ {
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/ping", nil))
		if rec.Code != http.StatusOK {
			t.Fatalf("request %d: expected 200 with disabled limit, got %d", i+1, rec.Code)
		}
	}
}
