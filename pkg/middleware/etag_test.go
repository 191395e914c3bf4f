package middleware_test

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"

	"github.com/yeisme/assetvault/pkg/middleware"
)

func newETagEngine() *gin.Engine {
	gin.SetMode(gin.TestMode)

	r := gin.New()
	r.Use(middleware.RequestIDMiddleware(), middleware.ETagMiddleware(middleware.ETagConfig{}))
	r.GET("/users/:id", func(c *gin.Context) {
		c.Data(http.StatusOK, gin.MIMEJSON, []byte(`{"userId":"`+c.Param("id")+`"}`))
	})
	r.GET("/missing", func(c *gin.Context) {
		c.Data(http.StatusNotFound, gin.MIMEJSON, []byte(`{"error":"User not found"}`))
	})
	r.POST("/users", func(c *gin.Context) {
		c.Data(http.StatusCreated, gin.MIMEJSON, []byte(`{"message":"User created"}`))
	})

	return r
}

func TestETagMiddleware(t *testing.T) {
	r := newETagEngine()

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/users/u1", nil))

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d", w.Code)
	}

	etag := w.Header().Get("ETag")
	if etag == "" || etag[:2] != "W/" {
		t.Fatalf("expected weak etag, got %q", etag)
	}

	if w.Body.String() != `{"userId":"u1"}` {
		t.Errorf("body = %q", w.Body.String())
	}

	if w.Header().Get(middleware.RequestIDHeader) == "" {
		t.Error("missing request id header")
	}

	req := httptest.NewRequest(http.MethodGet, "/users/u1", nil)
	req.Header.Set("If-None-Match", etag)

	w = httptest.NewRecorder()
	r.ServeHTTP(w, req)

	if w.Code != http.StatusNotModified {
		t.Errorf("conditional GET status = %d, want 304", w.Code)
	}

	if w.Body.Len() != 0 {
		t.Errorf("304 must not carry a body, got %q", w.Body.String())
	}

	// 不同记录的 ETag 不同
	w = httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/users/u2", nil))

	if w.Header().Get("ETag") == etag {
		t.Error("different bodies must not share an etag")
	}
}

func TestETagSkipsNonOK(t *testing.T) {
	r := newETagEngine()

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/missing", nil))

	if w.Code != http.StatusNotFound || w.Header().Get("ETag") != "" {
		t.Errorf("404 = %d etag %q", w.Code, w.Header().Get("ETag"))
	}

	w = httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/users", nil))

	if w.Code != http.StatusCreated || w.Header().Get("ETag") != "" {
		t.Errorf("POST = %d etag %q", w.Code, w.Header().Get("ETag"))
	}
}
