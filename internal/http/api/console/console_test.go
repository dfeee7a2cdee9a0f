package console

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/router-for-me/APIConsole/internal/db"
	"github.com/router-for-me/APIConsole/internal/executor"
	"github.com/router-for-me/APIConsole/internal/registry"
	"github.com/router-for-me/APIConsole/internal/session"
	"github.com/stretchr/testify/require"
)

type testServer struct {
	engine *gin.Engine
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	gin.SetMode(gin.TestMode)

	conn, err := db.Open("file:" + filepath.Join(t.TempDir(), "console-api.db"))
	require.NoError(t, err)
	require.NoError(t, db.Migrate(conn))

	engine := NewEngine(Deps{
		DB:        conn,
		Authority: session.NewAuthority(conn, 0),
		Registry:  registry.New(conn),
		Executor:  executor.New(nil, 5*time.Second),
	})
	return &testServer{engine: engine}
}

func (s *testServer) do(t *testing.T, method, path, token string, body any) (int, map[string]any) {
	t.Helper()
	rec := s.raw(t, method, path, token, body)
	out := map[string]any{}
	if rec.Body.Len() > 0 && strings.HasPrefix(strings.TrimSpace(rec.Body.String()), "{") {
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out))
	}
	return rec.Code, out
}

func (s *testServer) raw(t *testing.T, method, path, token string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var reader *bytes.Reader
	switch v := body.(type) {
	case nil:
		reader = bytes.NewReader(nil)
	case string:
		reader = bytes.NewReader([]byte(v))
	default:
		data, err := json.Marshal(v)
		require.NoError(t, err)
		reader = bytes.NewReader(data)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	s.engine.ServeHTTP(rec, req)
	return rec
}

// login registers username and returns a fresh session token.
func (s *testServer) login(t *testing.T, username string) string {
	t.Helper()
	creds := map[string]string{"username": username, "password": "pw-" + username}
	code, _ := s.do(t, http.MethodPost, "/api/auth/register", "", creds)
	require.Equal(t, http.StatusOK, code)
	code, body := s.do(t, http.MethodPost, "/api/auth/login", "", creds)
	require.Equal(t, http.StatusOK, code)
	token, _ := body["sessionId"].(string)
	require.NotEmpty(t, token)
	return token
}

func (s *testServer) createPlatform(t *testing.T, token, name, baseURL string) uint64 {
	t.Helper()
	code, body := s.do(t, http.MethodPost, "/api/platforms", token, map[string]any{
		"name":         name,
		"api_base_url": baseURL,
		"api_key":      "K",
		"models":       "gpt-4,gpt-4o",
	})
	require.Equal(t, http.StatusCreated, code, "body: %v", body)
	id, ok := body["id"].(float64)
	require.True(t, ok)
	return uint64(id)
}

func idPath(format string, id uint64) string {
	return strings.Replace(format, ":id", jsonNumber(id), 1)
}

func jsonNumber(id uint64) string {
	data, _ := json.Marshal(id)
	return string(data)
}

func TestAuth_LoginVerifyLogout(t *testing.T) {
	s := newTestServer(t)
	token := s.login(t, "alice")

	code, body := s.do(t, http.MethodPost, "/api/auth/verify", "", map[string]string{"sessionId": token})
	require.Equal(t, http.StatusOK, code)
	require.Equal(t, true, body["valid"])
	require.Equal(t, "alice", body["username"])

	code, body = s.do(t, http.MethodGet, "/api/auth/me", token, nil)
	require.Equal(t, http.StatusOK, code)
	require.Equal(t, "alice", body["username"])

	code, _ = s.do(t, http.MethodPost, "/api/auth/logout", "", map[string]string{"sessionId": token})
	require.Equal(t, http.StatusOK, code)
	code, body = s.do(t, http.MethodPost, "/api/auth/verify", "", map[string]string{"sessionId": token})
	require.Equal(t, http.StatusUnauthorized, code)
	require.Equal(t, false, body["valid"])

	code, body = s.do(t, http.MethodPost, "/api/auth/logout", token, nil)
	require.Equal(t, http.StatusOK, code)
	require.Equal(t, true, body["success"])
}

func TestAuth_LoginFailuresAreGeneric(t *testing.T) {
	s := newTestServer(t)
	s.login(t, "alice")

	code, wrongPassword := s.do(t, http.MethodPost, "/api/auth/login", "", map[string]string{"username": "alice", "password": "nope"})
	require.Equal(t, http.StatusUnauthorized, code)
	code, unknownUser := s.do(t, http.MethodPost, "/api/auth/login", "", map[string]string{"username": "mallory", "password": "nope"})
	require.Equal(t, http.StatusUnauthorized, code)
	require.Equal(t, wrongPassword, unknownUser)

	code, body := s.do(t, http.MethodPost, "/api/auth/register", "", map[string]string{"username": "alice", "password": "again"})
	require.Equal(t, http.StatusBadRequest, code)
	require.Equal(t, false, body["success"])
}

func TestAuthMiddleware_Errors(t *testing.T) {
	s := newTestServer(t)

	code, body := s.do(t, http.MethodGet, "/api/platforms", "", nil)
	require.Equal(t, http.StatusUnauthorized, code)
	require.Equal(t, "unauthorized", body["error"])

	code, body = s.do(t, http.MethodGet, "/api/platforms", "not-a-session", nil)
	require.Equal(t, http.StatusUnauthorized, code)
	require.Equal(t, "session expired", body["error"])
}

func TestPlatforms_CRUDAndOwnership(t *testing.T) {
	s := newTestServer(t)
	alice := s.login(t, "alice")
	bob := s.login(t, "bob")

	id := s.createPlatform(t, alice, "openai", "https://x.test/v1")

	code, body := s.do(t, http.MethodPost, "/api/platforms", alice, map[string]any{
		"name": "openai", "api_base_url": "https://y.test", "api_key": "K2", "models": "m",
	})
	require.Equal(t, http.StatusBadRequest, code)
	require.Equal(t, "name already exists", body["error"])
	s.createPlatform(t, bob, "openai", "https://x.test/v1")

	rec := s.raw(t, http.MethodGet, "/api/platforms", alice, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var list []map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &list))
	require.Len(t, list, 1)
	require.Equal(t, []any{"gpt-4", "gpt-4o"}, list[0]["model_list"])

	update := map[string]any{"name": "renamed", "api_base_url": "https://x.test/v1", "api_key": "K", "models": "gpt-4"}
	foreignCode, foreignBody := s.do(t, http.MethodPut, idPath("/api/platforms/:id", id), bob, update)
	missingCode, missingBody := s.do(t, http.MethodPut, idPath("/api/platforms/:id", 9999), bob, update)
	require.Equal(t, http.StatusNotFound, foreignCode)
	require.Equal(t, missingCode, foreignCode)
	require.Equal(t, missingBody, foreignBody)

	foreignCode, foreignBody = s.do(t, http.MethodDelete, idPath("/api/platforms/:id", id), bob, nil)
	missingCode, missingBody = s.do(t, http.MethodDelete, idPath("/api/platforms/:id", 9999), bob, nil)
	require.Equal(t, http.StatusNotFound, foreignCode)
	require.Equal(t, missingCode, foreignCode)
	require.Equal(t, missingBody, foreignBody)

	code, body = s.do(t, http.MethodPut, idPath("/api/platforms/:id", id), alice, update)
	require.Equal(t, http.StatusOK, code)
	require.Equal(t, "platform updated", body["message"])
	code, _ = s.do(t, http.MethodPut, idPath("/api/platforms/:id", id), alice, update)
	require.Equal(t, http.StatusOK, code)

	code, body = s.do(t, http.MethodPut, idPath("/api/platforms/:id", id), alice, map[string]any{"name": "x"})
	require.Equal(t, http.StatusBadRequest, code)
	details, ok := body["details"].(map[string]any)
	require.True(t, ok)
	require.Equal(t, true, details["name"])
	require.Equal(t, false, details["api_key"])

	code, _ = s.do(t, http.MethodDelete, idPath("/api/platforms/:id", id), alice, nil)
	require.Equal(t, http.StatusOK, code)
	code, _ = s.do(t, http.MethodGet, idPath("/api/platforms/:id", id), alice, nil)
	require.Equal(t, http.StatusNotFound, code)
}

func TestAgents_AndResolvedVars(t *testing.T) {
	s := newTestServer(t)
	alice := s.login(t, "alice")
	platformID := s.createPlatform(t, alice, "openai", "https://x.test/v1")

	code, body := s.do(t, http.MethodPost, "/api/agents", alice, map[string]any{"name": "bad", "envVars": []string{"a"}})
	require.Equal(t, http.StatusBadRequest, code)
	require.Equal(t, "env_vars must be a JSON object", body["error"])

	code, body = s.do(t, http.MethodPost, "/api/agents", alice, map[string]any{
		"name":    "cli",
		"envVars": map[string]any{"A": "$BASE_URL/chat", "B": "$API_KEY-$MODEL", "C": "plain", "N": 7},
	})
	require.Equal(t, http.StatusCreated, code)
	agentID := uint64(body["id"].(float64))

	rec := s.raw(t, http.MethodGet, "/api/agents", alice, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var agents []map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &agents))
	require.Len(t, agents, 1)
	vars, ok := agents[0]["env_vars"].(map[string]any)
	require.True(t, ok)
	require.Equal(t, "$BASE_URL/chat", vars["A"])

	code, body = s.do(t, http.MethodPost, "/api/tests/agent-vars", alice, map[string]any{
		"platformId": platformID, "model": "gpt-4", "agentId": agentID,
	})
	require.Equal(t, http.StatusOK, code)
	require.Equal(t, map[string]any{
		"A": "https://x.test/v1/chat",
		"B": "K-gpt-4",
		"C": "plain",
		"N": float64(7),
	}, body["resolvedVars"])
	require.Equal(t, "$API_KEY-$MODEL", body["originalVars"].(map[string]any)["B"])

	code, body = s.do(t, http.MethodPost, "/api/tests/agent-vars", alice, map[string]any{"platformId": platformID, "model": "gpt-4"})
	require.Equal(t, http.StatusBadRequest, code)
	require.Equal(t, "missing required parameters", body["error"])

	bob := s.login(t, "bob")
	code, _ = s.do(t, http.MethodPost, "/api/tests/agent-vars", bob, map[string]any{
		"platformId": platformID, "model": "gpt-4", "agentId": agentID,
	})
	require.Equal(t, http.StatusNotFound, code)
}

func TestTestsCommand_TrailingSlash(t *testing.T) {
	s := newTestServer(t)
	alice := s.login(t, "alice")
	plain := s.createPlatform(t, alice, "plain", "https://x.test/v1")
	slashed := s.createPlatform(t, alice, "slashed", "https://x.test/v1/")

	_, first := s.do(t, http.MethodPost, "/api/tests/command", alice, map[string]any{"platformId": plain, "model": "gpt-4"})
	_, second := s.do(t, http.MethodPost, "/api/tests/command", alice, map[string]any{"platformId": jsonNumber(slashed), "model": "gpt-4"})
	require.Equal(t, first["command"], second["command"])
	command, _ := first["command"].(string)
	require.Contains(t, command, "https://x.test/v1/chat/completions")
	require.NotContains(t, command, "v1//chat")

	code, body := s.do(t, http.MethodPost, "/api/tests/command", alice, map[string]any{"model": "gpt-4"})
	require.Equal(t, http.StatusBadRequest, code)
	require.Equal(t, "missing required parameters", body["error"])
}

func TestTestsExecute_UpstreamErrorIsSuccess(t *testing.T) {
	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1/chat/completions" || r.Header.Get("Authorization") != "Bearer K" {
			w.WriteHeader(http.StatusBadRequest)
			_, _ = w.Write([]byte(`{"error":"unexpected request"}`))
			return
		}
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusUnauthorized)
		_, _ = w.Write([]byte(`{"error":{"message":"bad key"}}`))
	}))
	defer upstream.Close()

	s := newTestServer(t)
	alice := s.login(t, "alice")
	id := s.createPlatform(t, alice, "up", upstream.URL+"/v1")

	code, body := s.do(t, http.MethodPost, "/api/tests/execute", alice, map[string]any{"platformId": id, "model": "gpt-4"})
	require.Equal(t, http.StatusOK, code)
	require.Equal(t, true, body["success"])
	require.Equal(t, float64(http.StatusUnauthorized), body["status"])
	require.NotNil(t, body["data"])
}

func TestTestsExecute_TransportFailure(t *testing.T) {
	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	deadURL := upstream.URL
	upstream.Close()

	s := newTestServer(t)
	alice := s.login(t, "alice")
	id := s.createPlatform(t, alice, "dead", deadURL)

	code, body := s.do(t, http.MethodPost, "/api/tests/execute", alice, map[string]any{"platformId": id, "model": "gpt-4"})
	require.Equal(t, http.StatusInternalServerError, code)
	require.Equal(t, false, body["success"])
	require.NotEmpty(t, body["error"])
}

func TestPublicRoutes(t *testing.T) {
	s := newTestServer(t)

	code, body := s.do(t, http.MethodGet, "/healthz", "", nil)
	require.Equal(t, http.StatusOK, code)
	require.Equal(t, "ok", body["status"])

	code, body = s.do(t, http.MethodGet, "/api/site", "", nil)
	require.Equal(t, http.StatusOK, code)
	require.Equal(t, "API Console", body["site_name"])

	rec := s.raw(t, http.MethodOptions, "/api/platforms", "", nil)
	require.Equal(t, http.StatusNoContent, rec.Code)
	require.Equal(t, "*", rec.Header().Get("Access-Control-Allow-Origin"))
}

func TestRecoveryMiddleware(t *testing.T) {
	gin.SetMode(gin.TestMode)
	engine := gin.New()
	engine.Use(RecoveryMiddleware())
	engine.GET("/boom", func(c *gin.Context) { panic("boom") })

	rec := httptest.NewRecorder()
	engine.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/boom", nil))
	require.Equal(t, http.StatusInternalServerError, rec.Code)
	require.JSONEq(t, `{"error":"internal server error"}`, rec.Body.String())
}
