package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/yeisme/assetvault/pkg/configs"
)

func newLimitedEngine(cfg configs.RateLimitConfig) *gin.Engine {
	gin.SetMode(gin.TestMode)

	r := gin.New()
	r.Use(RateLimitMiddleware(cfg))
	r.GET("/users/:id", func(c *gin.Context) { c.String(http.StatusOK, "ok") })

	return r
}

func get(r *gin.Engine, remote, header string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, "/users/u1", nil)
	req.RemoteAddr = remote

	if header != "" {
		req.Header.Set("X-Client", header)
	}

	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	return w
}

func TestRateLimitPerIP(t *testing.T) {
	r := newLimitedEngine(configs.RateLimitConfig{Enabled: true, RPS: 1, Burst: 2, Key: "ip"})

	for i := range 2 {
		if w := get(r, "10.0.0.1:1000", ""); w.Code != http.StatusOK {
			t.Fatalf("request %d: expected 200, got %d", i, w.Code)
		}
	}

	w := get(r, "10.0.0.1:1000", "")
	if w.Code != http.StatusTooManyRequests {
		t.Fatalf("expected 429, got %d", w.Code)
	}

	if w.Header().Get("Retry-After") != "1" {
		t.Fatalf("expected Retry-After 1, got %q", w.Header().Get("Retry-After"))
	}

	if w.Body.String() != `{"error":"Too many requests"}` {
		t.Fatalf("unexpected body %s", w.Body.String())
	}

	if w := get(r, "10.0.0.2:1000", ""); w.Code != http.StatusOK {
		t.Fatalf("other client should not be limited, got %d", w.Code)
	}
}

func TestRateLimitByHeader(t *testing.T) {
	r := newLimitedEngine(configs.RateLimitConfig{Enabled: true, RPS: 1, Burst: 1, Key: "header:X-Client"})

	if w := get(r, "10.0.0.1:1000", "a"); w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}

	if w := get(r, "10.0.0.1:1000", "a"); w.Code != http.StatusTooManyRequests {
		t.Fatalf("expected 429, got %d", w.Code)
	}

	if w := get(r, "10.0.0.1:1000", "b"); w.Code != http.StatusOK {
		t.Fatalf("different header value should pass, got %d", w.Code)
	}
}

func TestRateLimitDisabled(t *testing.T) {
	r := newLimitedEngine(configs.RateLimitConfig{Enabled: false, RPS: 1, Burst: 1})

	for range 5 {
		if w := get(r, "10.0.0.1:1000", ""); w.Code != http.StatusOK {
			t.Fatalf("expected 200, got %d", w.Code)
		}
	}
}

func TestLimiterSetEvictsIdle(t *testing.T) {
	s := newLimiterSet(1, 1)
	now := time.Unix(1700000000, 0)
	s.now = func() time.Time { return now }

	ok, _ := s.reserve("a")
	if !ok {
		t.Fatal("first reservation should pass")
	}

	now = now.Add(limiterIdleTTL + limiterSweepEvery)

	s.reserve("b")

	if len(s.visitors) != 1 {
		t.Fatalf("expected idle limiter to be evicted, have %d", len(s.visitors))
	}
}
