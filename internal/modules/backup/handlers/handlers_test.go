package handlers

import (
	"bytes"
	"database/sql"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lmoraes/backfinance/internal/modules/accounts"
	"github.com/lmoraes/backfinance/internal/modules/backup"

	_ "modernc.org/sqlite"
)

type testEnv struct {
	router   chi.Router
	service  *accounts.Service
	sessions *accounts.SessionManager
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	db, err := sql.Open("sqlite", "file:"+t.Name()+"?mode=memory&cache=shared")
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	_, err = db.Exec(`
		CREATE TABLE IF NOT EXISTS accounts (
			nickname   TEXT PRIMARY KEY,
			data       BLOB NOT NULL,
			updated_at INTEGER NOT NULL
		)
	`)
	require.NoError(t, err)

	log := zerolog.Nop()
	repo := accounts.NewRepository(db, log)
	accountsService := accounts.NewService(repo, log)
	backupService := backup.NewService(repo, log)
	sessions := accounts.NewSessionManager()

	router := chi.NewRouter()
	NewHandler(backupService, accountsService, sessions, log).RegisterRoutes(router)

	return &testEnv{router: router, service: accountsService, sessions: sessions}
}

func (e *testEnv) login(t *testing.T, nickname, password string) {
	t.Helper()

	_, err := e.service.CreateAccount(nickname, password)
	require.NoError(t, err)
	sess, err := e.service.Login(nickname, password)
	require.NoError(t, err)
	e.sessions.Set(sess)
}

func TestExportRequiresSession(t *testing.T) {
	env := newTestEnv(t)

	rec := httptest.NewRecorder()
	env.router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/backup/export", nil))

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestExportDownloadsAccountDocument(t *testing.T) {
	env := newTestEnv(t)
	env.login(t, "alice", "secret123")

	amount, err := accounts.AmountFromString("42")
	require.NoError(t, err)
	_, err = env.service.AddTransaction(env.sessions.Current(), "Lunch", amount, accounts.KindExpense, accounts.MethodVR)
	require.NoError(t, err)

	rec := httptest.NewRecorder()
	env.router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/backup/export", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, `attachment; filename="backfinance-alice.json"`, rec.Header().Get("Content-Disposition"))

	var doc accounts.Account
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &doc))
	assert.Equal(t, "alice", doc.Nickname)
	require.Len(t, doc.Ledger, 1)
	assert.Equal(t, "Lunch", doc.Ledger[0].Description)
}

func TestImportRestoresDocument(t *testing.T) {
	env := newTestEnv(t)
	env.login(t, "alice", "secret123")

	export := httptest.NewRecorder()
	env.router.ServeHTTP(export, httptest.NewRequest(http.MethodGet, "/backup/export", nil))
	require.Equal(t, http.StatusOK, export.Code)

	body, err := json.Marshal(map[string]interface{}{
		"nickname": "bob",
		"password": "newpass",
		"document": json.RawMessage(export.Body.Bytes()),
	})
	require.NoError(t, err)

	rec := httptest.NewRecorder()
	env.router.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/backup/import", bytes.NewReader(body)))

	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var resp struct {
		Nickname string `json:"nickname"`
		Replaced bool   `json:"replaced"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "bob", resp.Nickname)
	assert.False(t, resp.Replaced)

	// The restored account is a regular account: log in with the new password
	sess, err := env.service.Login("bob", "newpass")
	require.NoError(t, err)
	assert.Equal(t, "bob", sess.Account.Nickname)
}

func TestImportReportsReplacement(t *testing.T) {
	env := newTestEnv(t)
	env.login(t, "alice", "secret123")
	_, err := env.service.CreateAccount("bob", "bobpass")
	require.NoError(t, err)

	export := httptest.NewRecorder()
	env.router.ServeHTTP(export, httptest.NewRequest(http.MethodGet, "/backup/export", nil))
	require.Equal(t, http.StatusOK, export.Code)

	body, err := json.Marshal(map[string]interface{}{
		"nickname": "bob",
		"password": "newpass",
		"document": json.RawMessage(export.Body.Bytes()),
	})
	require.NoError(t, err)

	rec := httptest.NewRecorder()
	env.router.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/backup/import", bytes.NewReader(body)))

	require.Equal(t, http.StatusOK, rec.Code)

	var resp struct {
		Replaced bool `json:"replaced"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.True(t, resp.Replaced)
}

func TestImportRejectsMalformedDocument(t *testing.T) {
	env := newTestEnv(t)

	body := []byte(`{"nickname":"bob","password":"pass","document":"not an object"}`)

	rec := httptest.NewRecorder()
	env.router.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/backup/import", bytes.NewReader(body)))

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}
