package app

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/router-for-me/APIConsole/internal/db"
	"github.com/stretchr/testify/require"
)

func serveJSON(t *testing.T, engine *gin.Engine, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var payload []byte
	if body != nil {
		var err error
		payload, err = json.Marshal(body)
		require.NoError(t, err)
	}
	req := httptest.NewRequest(method, path, bytes.NewReader(payload))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	engine.ServeHTTP(rec, req)
	return rec
}

func TestRegisterInitRoutes_FirstAccountOnce(t *testing.T) {
	gin.SetMode(gin.TestMode)
	dsn := "file:" + filepath.Join(t.TempDir(), "console-test.db")
	conn, err := db.Open(dsn)
	require.NoError(t, err)
	require.NoError(t, db.Migrate(conn))

	var initState atomic.Bool
	engine := gin.New()
	registerInitRoutes(engine, conn, dsn, &initState)

	rec := serveJSON(t, engine, http.MethodGet, "/api/init/status", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	require.JSONEq(t, `{"initialized":false}`, rec.Body.String())

	rec = serveJSON(t, engine, http.MethodPost, "/api/init/setup", map[string]string{"username": "owner", "password": "123"})
	require.Equal(t, http.StatusBadRequest, rec.Code)

	rec = serveJSON(t, engine, http.MethodPost, "/api/init/setup", map[string]string{"username": "owner", "password": "secret1"})
	require.Equal(t, http.StatusOK, rec.Code)
	require.True(t, initState.Load())

	rec = serveJSON(t, engine, http.MethodPost, "/api/init/setup", map[string]string{"username": "other", "password": "secret1"})
	require.Equal(t, http.StatusBadRequest, rec.Code)

	rec = serveJSON(t, engine, http.MethodGet, "/api/init/prefill", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var prefill map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &prefill))
	require.Equal(t, true, prefill["locked"])
	require.Equal(t, "sqlite", prefill["database_type"])
}

func TestInitEngine_SetupWritesConfig(t *testing.T) {
	gin.SetMode(gin.TestMode)
	dir := t.TempDir()
	configPath := filepath.Join(dir, "config.yaml")
	initDone := make(chan struct{})
	engine := newInitEngine(configPath, 9300, initDone)

	rec := serveJSON(t, engine, http.MethodGet, "/api/init/status", nil)
	require.JSONEq(t, `{"initialized":false}`, rec.Body.String())

	rec = serveJSON(t, engine, http.MethodGet, "/api/platforms", nil)
	require.Equal(t, http.StatusServiceUnavailable, rec.Code)

	rec = serveJSON(t, engine, http.MethodPost, "/api/init/setup", map[string]any{
		"database_type": "sqlite",
		"database_path": filepath.Join(dir, "init.db"),
		"site_name":     "Lab",
		"username":      "owner",
		"password":      "secret1",
	})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	require.True(t, ConfigExists(configPath))

	select {
	case <-initDone:
	case <-time.After(5 * time.Second):
		t.Fatalf("init completion was not signalled")
	}

	rec = serveJSON(t, engine, http.MethodPost, "/api/init/setup", map[string]any{"username": "owner", "password": "secret1"})
	require.Equal(t, http.StatusBadRequest, rec.Code)
}
