package api

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hisham-kadambot/LLM-MCP/internal/auth"
	"github.com/hisham-kadambot/LLM-MCP/internal/database"
	"github.com/hisham-kadambot/LLM-MCP/internal/drive"
	"github.com/hisham-kadambot/LLM-MCP/internal/llm"
	"github.com/hisham-kadambot/LLM-MCP/internal/mcptools"
	"github.com/hisham-kadambot/LLM-MCP/internal/services"
)

type testApp struct {
	router *chi.Mux
	issuer *auth.TokenIssuer
	users  *services.UserService
}

func newTestApp(t *testing.T) *testApp {
	t.Helper()

	db, err := database.New(":memory:")
	require.NoError(t, err)
	require.NoError(t, database.Migrate(db))
	t.Cleanup(func() { db.Close() })

	issuer := auth.NewTokenIssuer("test-secret", time.Hour)
	userService := services.NewUserService(db, 8)
	apiKeyService := services.NewAPIKeyService(db)
	llmFactory := llm.NewFactory(apiKeyService, "", "")

	dir := t.TempDir()
	driveService := drive.NewService(filepath.Join(dir, "credentials.json"), filepath.Join(dir, "token.json"))

	mcpServer := mcptools.New(mcptools.Deps{
		Users:   userService,
		Factory: llmFactory,
		Drive:   driveService,
	})

	return &testApp{
		router: NewRouter(issuer, userService, apiKeyService, llmFactory, driveService, mcpServer),
		issuer: issuer,
		users:  userService,
	}
}

func (app *testApp) do(t *testing.T, req *http.Request) *httptest.ResponseRecorder {
	t.Helper()
	rec := httptest.NewRecorder()
	app.router.ServeHTTP(rec, req)
	return rec
}

func (app *testApp) register(t *testing.T, username, password string) *httptest.ResponseRecorder {
	t.Helper()
	body, _ := json.Marshal(map[string]string{"username": username, "password": password})
	req := httptest.NewRequest(http.MethodPost, "/register", bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	return app.do(t, req)
}

func (app *testApp) login(t *testing.T, username, password string) *httptest.ResponseRecorder {
	t.Helper()
	form := url.Values{"username": {username}, "password": {password}}
	req := httptest.NewRequest(http.MethodPost, "/login", strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	return app.do(t, req)
}

func (app *testApp) loginToken(t *testing.T, username, password string) string {
	t.Helper()
	rec := app.login(t, username, password)
	require.Equal(t, http.StatusOK, rec.Code)

	var resp struct {
		AccessToken string `json:"access_token"`
		TokenType   string `json:"token_type"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.Equal(t, "bearer", resp.TokenType)
	return resp.AccessToken
}

func authedRequest(method, target, token string, body []byte) *http.Request {
	var reader *bytes.Reader
	if body == nil {
		reader = bytes.NewReader(nil)
	} else {
		reader = bytes.NewReader(body)
	}
	req := httptest.NewRequest(method, target, reader)
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("Content-Type", "application/json")
	return req
}

func errorKind(t *testing.T, rec *httptest.ResponseRecorder) string {
	t.Helper()
	var resp struct {
		Kind string `json:"kind"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	return resp.Kind
}

func TestRegisterLoginProtectedFlow(t *testing.T) {
	app := newTestApp(t)

	rec := app.register(t, "alice", "Secret123")
	require.Equal(t, http.StatusCreated, rec.Code)
	assert.NotContains(t, rec.Body.String(), "Secret123")

	token := app.loginToken(t, "alice", "Secret123")

	rec = app.do(t, authedRequest(http.MethodGet, "/protected", token, nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "alice")

	rec = app.do(t, httptest.NewRequest(http.MethodGet, "/protected", nil))
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = app.login(t, "alice", "wrong")
	require.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Equal(t, "invalid_credentials", errorKind(t, rec))
}

func TestRegisterDuplicate(t *testing.T) {
	app := newTestApp(t)

	require.Equal(t, http.StatusCreated, app.register(t, "alice", "Secret123").Code)

	rec := app.register(t, "alice", "Different9")
	require.Equal(t, http.StatusConflict, rec.Code)
	assert.Equal(t, "duplicate_user", errorKind(t, rec))
}

func TestRegisterInvalidInput(t *testing.T) {
	app := newTestApp(t)

	rec := app.register(t, "alice", "short")
	require.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "invalid_input", errorKind(t, rec))
}

func TestLoginUnknownAndWrongPasswordLookAlike(t *testing.T) {
	app := newTestApp(t)
	require.Equal(t, http.StatusCreated, app.register(t, "alice", "Secret123").Code)

	unknown := app.login(t, "nobody", "Secret123")
	wrongPwd := app.login(t, "alice", "wrong-password")

	assert.Equal(t, unknown.Code, wrongPwd.Code)
	assert.Equal(t, errorKind(t, unknown), errorKind(t, wrongPwd))
}

func TestLoginInactiveAccount(t *testing.T) {
	app := newTestApp(t)
	require.Equal(t, http.StatusCreated, app.register(t, "alice", "Secret123").Code)

	user, err := app.users.GetUserByUsername("alice")
	require.NoError(t, err)
	require.NoError(t, app.users.DeactivateUser(user.ID))

	rec := app.login(t, "alice", "Secret123")
	require.Equal(t, http.StatusForbidden, rec.Code)
	assert.Equal(t, "account_inactive", errorKind(t, rec))
}

func TestExpiredTokenRejected(t *testing.T) {
	app := newTestApp(t)
	require.Equal(t, http.StatusCreated, app.register(t, "alice", "Secret123").Code)

	// Same secret, already-elapsed lifetime.
	expired, err := auth.NewTokenIssuer("test-secret", -time.Minute).Issue("alice")
	require.NoError(t, err)

	rec := app.do(t, authedRequest(http.MethodGet, "/protected", expired, nil))
	require.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Equal(t, "token_expired", errorKind(t, rec))
}

func TestAPIKeyLifecycle(t *testing.T) {
	app := newTestApp(t)
	require.Equal(t, http.StatusCreated, app.register(t, "alice", "Secret123").Code)
	token := app.loginToken(t, "alice", "Secret123")

	setKey := func(model, key string) *httptest.ResponseRecorder {
		body, _ := json.Marshal(map[string]string{"model_name": model, "api_key": key})
		return app.do(t, authedRequest(http.MethodPost, "/set_api_key", token, body))
	}
	listKeys := func() []map[string]interface{} {
		rec := app.do(t, authedRequest(http.MethodGet, "/api_keys", token, nil))
		require.Equal(t, http.StatusOK, rec.Code)
		var keys []map[string]interface{}
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &keys))
		return keys
	}

	require.Equal(t, http.StatusOK, setKey("openai", "sk-abc123").Code)

	keys := listKeys()
	require.Len(t, keys, 1)
	assert.Equal(t, "openai", keys[0]["model_name"])
	assert.NotContains(t, keys[0]["api_key"], "sk-abc", "key material must be masked")

	rec := app.do(t, authedRequest(http.MethodDelete, "/api_keys/openai", token, nil))
	require.Equal(t, http.StatusOK, rec.Code)

	assert.Empty(t, listKeys())

	// Deleting again is idempotent.
	rec = app.do(t, authedRequest(http.MethodDelete, "/api_keys/openai", token, nil))
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestAPIKeysRequireAuth(t *testing.T) {
	app := newTestApp(t)

	rec := app.do(t, httptest.NewRequest(http.MethodGet, "/api_keys", nil))
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestChatUnsupportedProvider(t *testing.T) {
	app := newTestApp(t)
	require.Equal(t, http.StatusCreated, app.register(t, "alice", "Secret123").Code)
	token := app.loginToken(t, "alice", "Secret123")

	body, _ := json.Marshal(map[string]string{"message": "hi", "model_name": "llama"})
	rec := app.do(t, authedRequest(http.MethodPost, "/chat", token, body))
	require.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "provider_not_supported", errorKind(t, rec))
}

func TestChatMissingAPIKey(t *testing.T) {
	app := newTestApp(t)
	require.Equal(t, http.StatusCreated, app.register(t, "alice", "Secret123").Code)
	token := app.loginToken(t, "alice", "Secret123")

	body, _ := json.Marshal(map[string]string{"message": "hi", "model_name": "openai"})
	rec := app.do(t, authedRequest(http.MethodPost, "/chat", token, body))
	require.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, "not_found", errorKind(t, rec))
}

func TestDriveRequiresExternalCredential(t *testing.T) {
	app := newTestApp(t)
	require.Equal(t, http.StatusCreated, app.register(t, "alice", "Secret123").Code)
	token := app.loginToken(t, "alice", "Secret123")

	rec := app.do(t, authedRequest(http.MethodPost, "/google-drive/authenticate", token, []byte("{}")))
	require.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Equal(t, "authentication_required", errorKind(t, rec))
}

func TestMCPEndpoint(t *testing.T) {
	app := newTestApp(t)
	require.Equal(t, http.StatusCreated, app.register(t, "alice", "Secret123").Code)
	token := app.loginToken(t, "alice", "Secret123")

	t.Run("requires auth", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodPost, "/mcp", strings.NewReader("{}"))
		rec := app.do(t, req)
		assert.Equal(t, http.StatusUnauthorized, rec.Code)
	})

	t.Run("lists tools", func(t *testing.T) {
		msg := `{"jsonrpc":"2.0","id":1,"method":"tools/list"}`
		rec := app.do(t, authedRequest(http.MethodPost, "/mcp", token, []byte(msg)))
		require.Equal(t, http.StatusOK, rec.Code)
		assert.Contains(t, rec.Body.String(), "llm_chat_tool")
		assert.Contains(t, rec.Body.String(), "google_drive_create_folder")
	})

	t.Run("calls dummy tool", func(t *testing.T) {
		msg := `{"jsonrpc":"2.0","id":2,"method":"tools/call","params":{"name":"dummy_tool","arguments":{}}}`
		rec := app.do(t, authedRequest(http.MethodPost, "/mcp", token, []byte(msg)))
		require.Equal(t, http.StatusOK, rec.Code)
		assert.Contains(t, rec.Body.String(), "MCP says hi to alice")
	})
}
