package app

import (
	"compress/gzip"
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yeisme/assetvault/pkg/internal/events"
	"github.com/yeisme/assetvault/pkg/middleware"
)

const testConfig = `
server:
  reload_config: false
  gzip: true
store:
  type: memory
  users_table: users-test
  assets_table: assets-test
s3:
  type: minio
  endpoint: localhost:9000
  assets_bucket: assets-bucket
events:
  type: memory
  topic_prefix: test.
`

func TestEngine(t *testing.T) {
	ctx := context.Background()

	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(testConfig), 0o600))

	core, err := Bootstrap(ctx, path)
	require.NoError(t, err)

	t.Cleanup(func() { _ = core.Close(ctx) })

	assert.Equal(t, "users-test", core.Manager.Tables["user"])
	require.NotNil(t, core.Events)

	created, err := core.Events.Subscribe(ctx, events.TypeCreated)
	require.NoError(t, err)

	engine := NewEngine(core)

	t.Run("CreateUser", func(t *testing.T) {
		w := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodPost, "/users", strings.NewReader(`{"userId":"u1","email":"ann@example.com"}`))
		req.Header.Set(middleware.RequestIDHeader, "req-1")
		engine.ServeHTTP(w, req)

		assert.Equal(t, http.StatusCreated, w.Code)
		assert.Equal(t, "req-1", w.Header().Get(middleware.RequestIDHeader))
		assert.Contains(t, w.Body.String(), `"message":"User created"`)

		select {
		case msg := <-created:
			msg.Ack()

			ev, err := events.Decode(msg)
			require.NoError(t, err)
			assert.Equal(t, "u1", ev.RecordID)
			assert.Equal(t, "req-1", ev.RequestID)
		case <-time.After(2 * time.Second):
			t.Fatal("record.created event not delivered")
		}
	})

	t.Run("GzipResponse", func(t *testing.T) {
		w := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodGet, "/users/u1", nil)
		req.Header.Set("Accept-Encoding", "gzip")
		engine.ServeHTTP(w, req)

		require.Equal(t, http.StatusOK, w.Code)
		assert.Equal(t, "gzip", w.Header().Get("Content-Encoding"))

		zr, err := gzip.NewReader(w.Body)
		require.NoError(t, err)

		body, err := io.ReadAll(zr)
		require.NoError(t, err)
		assert.Contains(t, string(body), `"userId":"u1"`)
	})

	t.Run("MethodNotAllowed", func(t *testing.T) {
		w := httptest.NewRecorder()
		engine.ServeHTTP(w, httptest.NewRequest(http.MethodPatch, "/users/u1", nil))

		assert.Equal(t, http.StatusMethodNotAllowed, w.Code)
		assert.Contains(t, w.Body.String(), "Method not allowed")
	})
}
