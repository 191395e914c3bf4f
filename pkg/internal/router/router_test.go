package router_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yeisme/assetvault/pkg/internal/handle"
	"github.com/yeisme/assetvault/pkg/internal/model"
	"github.com/yeisme/assetvault/pkg/internal/router"
	"github.com/yeisme/assetvault/pkg/internal/service"
	"github.com/yeisme/assetvault/pkg/internal/storage"
	"github.com/yeisme/assetvault/pkg/internal/storage/kv"
	"github.com/yeisme/assetvault/pkg/internal/storage/s3"
	"github.com/yeisme/assetvault/pkg/middleware"
)

type stubSigner struct{}

func (stubSigner) SignUpload(_ context.Context, loc s3.Location, _ string) (string, error) {
	return "https://blob.test/" + loc.Bucket + "/" + loc.Key + "?op=put", nil
}

func (stubSigner) SignDownload(_ context.Context, loc s3.Location) (string, error) {
	return "https://blob.test/" + loc.Bucket + "/" + loc.Key + "?op=get", nil
}

func (stubSigner) HealthCheck(context.Context) error { return nil }

func newEngine(t *testing.T) *gin.Engine {
	t.Helper()
	gin.SetMode(gin.TestMode)

	ctx := context.Background()
	backend, err := kv.NewMemoryBackend(ctx, nil)
	require.NoError(t, err)

	mgr, err := storage.NewWithBackend(ctx, backend, stubSigner{}, "users", "assets")
	require.NoError(t, err)

	env := service.WithEnv(model.Env{AssetsBucket: "bucket"})
	d := handle.NewDispatcher(service.NewUsers(mgr.Users, env), service.NewAssets(mgr.Assets, mgr.Signer, env))

	e := gin.New()
	e.Use(middleware.RequestIDMiddleware(), middleware.StorageMiddleware(mgr))
	router.Register(e, d)

	return e
}

func do(e *gin.Engine, method, path, body string, headers ...string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	for i := 0; i+1 < len(headers); i += 2 {
		req.Header.Set(headers[i], headers[i+1])
	}

	w := httptest.NewRecorder()
	e.ServeHTTP(w, req)

	return w
}

func jsonBody(t *testing.T, w *httptest.ResponseRecorder) map[string]any {
	t.Helper()

	var m map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &m), w.Body.String())

	return m
}

func TestUserRoutes(t *testing.T) {
	e := newEngine(t)

	w := do(e, http.MethodPost, "/users", `{"userId":"u1","email":"a@b.com"}`)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	assert.Equal(t, gin.MIMEJSON, w.Header().Get("Content-Type"))

	w = do(e, http.MethodGet, "/users/u1", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "u1", jsonBody(t, w)["userId"])

	etag := w.Header().Get("ETag")
	require.NotEmpty(t, etag)

	w = do(e, http.MethodGet, "/users/u1", "", "If-None-Match", etag)
	assert.Equal(t, http.StatusNotModified, w.Code)

	w = do(e, http.MethodPut, "/users/u1", `{"name":"Ann"}`)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "Ann", jsonBody(t, w)["name"])

	w = do(e, http.MethodGet, "/users/u1", "", "If-None-Match", etag)
	assert.Equal(t, http.StatusOK, w.Code, "etag changes after update")

	w = do(e, http.MethodDelete, "/users/u1", "")
	require.Equal(t, http.StatusOK, w.Code)

	w = do(e, http.MethodGet, "/users/u1", "")
	require.Equal(t, http.StatusNotFound, w.Code)
	assert.Equal(t, "User not found", jsonBody(t, w)["error"])
}

func TestAssetRoutes(t *testing.T) {
	e := newEngine(t)

	w := do(e, http.MethodPost, "/assets", `{"assetId":"a1","fileName":"f.txt","contentType":"text/plain"}`)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	assert.Equal(t, "https://blob.test/bucket/assets/a1/f.txt?op=put", jsonBody(t, w)["uploadUrl"])

	w = do(e, http.MethodGet, "/assets/a1/download", "")
	require.Equal(t, http.StatusOK, w.Code)

	body := jsonBody(t, w)
	assert.Equal(t, "f.txt", body["fileName"])
	assert.Equal(t, "text/plain", body["contentType"])

	w = do(e, http.MethodGet, "/assets/a1/thumbnail", "")
	assert.Equal(t, http.StatusMethodNotAllowed, w.Code)
}

func TestMethodNotAllowed(t *testing.T) {
	e := newEngine(t)

	for _, tc := range []struct{ method, path string }{
		{http.MethodPatch, "/users/u1"},
		{http.MethodDelete, "/assets/a1"},
		{http.MethodGet, "/files"},
	} {
		w := do(e, tc.method, tc.path, "")
		assert.Equal(t, http.StatusMethodNotAllowed, w.Code, "%s %s", tc.method, tc.path)
		assert.Equal(t, "Method not allowed", jsonBody(t, w)["error"])
	}
}

func TestInvalidJSON(t *testing.T) {
	e := newEngine(t)

	w := do(e, http.MethodPost, "/users", `{not json`)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "Invalid JSON", jsonBody(t, w)["error"])
}

func TestHealthRoutes(t *testing.T) {
	e := newEngine(t)

	w := do(e, http.MethodGet, "/health/store", "")
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Equal(t, "ok", jsonBody(t, w)["status"])

	w = do(e, http.MethodGet, "/health/s3", "")
	assert.Equal(t, http.StatusOK, w.Code)
}
