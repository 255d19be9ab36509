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

	_ "modernc.org/sqlite"
)

type testEnv struct {
	router   chi.Router
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
	service := accounts.NewService(repo, log)
	sessions := accounts.NewSessionManager()

	router := chi.NewRouter()
	NewHandler(service, sessions, log).RegisterRoutes(router)

	return &testEnv{router: router, sessions: sessions}
}

func (e *testEnv) do(t *testing.T, method, target string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()

	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}

	rec := httptest.NewRecorder()
	e.router.ServeHTTP(rec, httptest.NewRequest(method, target, &buf))
	return rec
}

func (e *testEnv) createAndLogin(t *testing.T, nickname, password string) {
	t.Helper()

	creds := map[string]string{"nickname": nickname, "password": password}
	rec := e.do(t, http.MethodPost, "/accounts", creds)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	rec = e.do(t, http.MethodPost, "/session", creds)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
}

func decodeBody(t *testing.T, rec *httptest.ResponseRecorder, v interface{}) {
	t.Helper()
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), v))
}

func TestCreateAccountEndpoint(t *testing.T) {
	env := newTestEnv(t)

	rec := env.do(t, http.MethodPost, "/accounts", map[string]string{
		"nickname": "bob", "password": "secret123",
	})
	assert.Equal(t, http.StatusCreated, rec.Code)

	var resp map[string]string
	decodeBody(t, rec, &resp)
	assert.Equal(t, "bob", resp["nickname"])
}

func TestCreateAccountDuplicateConflicts(t *testing.T) {
	env := newTestEnv(t)
	creds := map[string]string{"nickname": "bob", "password": "secret123"}

	rec := env.do(t, http.MethodPost, "/accounts", creds)
	require.Equal(t, http.StatusCreated, rec.Code)

	rec = env.do(t, http.MethodPost, "/accounts", creds)
	assert.Equal(t, http.StatusConflict, rec.Code)
}

func TestLoginEndpoint(t *testing.T) {
	env := newTestEnv(t)
	env.do(t, http.MethodPost, "/accounts", map[string]string{
		"nickname": "bob", "password": "secret123",
	})

	t.Run("wrong password", func(t *testing.T) {
		rec := env.do(t, http.MethodPost, "/session", map[string]string{
			"nickname": "bob", "password": "wrong",
		})
		assert.Equal(t, http.StatusUnauthorized, rec.Code)
	})

	t.Run("unknown nickname", func(t *testing.T) {
		rec := env.do(t, http.MethodPost, "/session", map[string]string{
			"nickname": "nobody", "password": "secret123",
		})
		assert.Equal(t, http.StatusNotFound, rec.Code)
	})

	t.Run("success", func(t *testing.T) {
		rec := env.do(t, http.MethodPost, "/session", map[string]string{
			"nickname": "bob", "password": "secret123",
		})
		assert.Equal(t, http.StatusOK, rec.Code)
		require.NotNil(t, env.sessions.Current())
		assert.Equal(t, "bob", env.sessions.Current().Nickname)
	})
}

func TestLogoutEndpoint(t *testing.T) {
	env := newTestEnv(t)
	env.createAndLogin(t, "bob", "secret123")

	rec := env.do(t, http.MethodDelete, "/session", nil)
	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Nil(t, env.sessions.Current())
}

func TestEndpointsRequireSession(t *testing.T) {
	env := newTestEnv(t)

	requests := []struct {
		method string
		target string
	}{
		{http.MethodGet, "/account"},
		{http.MethodPost, "/transactions"},
		{http.MethodDelete, "/transactions/some-id"},
		{http.MethodPost, "/catalog"},
		{http.MethodPut, "/catalog/0"},
	}

	for _, req := range requests {
		rec := env.do(t, req.method, req.target, map[string]string{})
		assert.Equal(t, http.StatusUnauthorized, rec.Code, "%s %s", req.method, req.target)
	}
}

func TestAddTransactionEndpoint(t *testing.T) {
	env := newTestEnv(t)
	env.createAndLogin(t, "bob", "secret123")

	rec := env.do(t, http.MethodPost, "/transactions", map[string]string{
		"description":   "Coffee",
		"amount":        "R$ 4,50",
		"kind":          "expense",
		"paymentMethod": "dinheiro",
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	var trans accounts.Transaction
	decodeBody(t, rec, &trans)
	assert.NotEmpty(t, trans.ID)
	assert.Equal(t, "Coffee", trans.Description)
	assert.True(t, trans.Amount.Equal(mustAmount(t, "4.5")))
	assert.Equal(t, accounts.KindExpense, trans.Kind)
	assert.Equal(t, accounts.MethodDinheiro, trans.Method)
}

func TestAddTransactionRejectsBadInput(t *testing.T) {
	env := newTestEnv(t)
	env.createAndLogin(t, "bob", "secret123")

	cases := []map[string]string{
		{"description": "Coffee", "amount": "abc", "kind": "expense", "paymentMethod": "dinheiro"},
		{"description": "", "amount": "450", "kind": "expense", "paymentMethod": "dinheiro"},
		{"description": "Coffee", "amount": "450", "kind": "transfer", "paymentMethod": "dinheiro"},
		{"description": "Coffee", "amount": "450", "kind": "expense", "paymentMethod": "pix"},
	}
	for i, body := range cases {
		rec := env.do(t, http.MethodPost, "/transactions", body)
		assert.Equal(t, http.StatusBadRequest, rec.Code, "case %d: %s", i, rec.Body.String())
	}
}

func TestGetAccountEndpoint(t *testing.T) {
	env := newTestEnv(t)
	env.createAndLogin(t, "bob", "secret123")

	for _, body := range []map[string]string{
		{"description": "Salary", "amount": "250000", "kind": "income", "paymentMethod": "credito"},
		{"description": "Coffee", "amount": "450", "kind": "expense", "paymentMethod": "dinheiro"},
	} {
		rec := env.do(t, http.MethodPost, "/transactions", body)
		require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	}

	rec := env.do(t, http.MethodPost, "/catalog", map[string]string{"name": "Café"})
	require.Equal(t, http.StatusCreated, rec.Code)

	rec = env.do(t, http.MethodGet, "/account", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var resp struct {
		Nickname string `json:"nickname"`
		Balance  json.Number
		Wallet   []struct {
			Key     string      `json:"key"`
			Label   string      `json:"label"`
			Balance json.Number `json:"balance"`
		} `json:"wallet"`
		Ledger []struct {
			Description string `json:"description"`
		} `json:"ledger"`
		Catalog []struct {
			Index   int    `json:"index"`
			Name    string `json:"name"`
			Display string `json:"display"`
		} `json:"catalog"`
	}
	decodeBody(t, rec, &resp)

	assert.Equal(t, "bob", resp.Nickname)
	assert.Equal(t, json.Number("2495.5"), resp.Balance)

	require.Len(t, resp.Wallet, 6)
	assert.Equal(t, "credito", resp.Wallet[0].Key)
	assert.Equal(t, "Crédito", resp.Wallet[0].Label)
	assert.Equal(t, json.Number("2500"), resp.Wallet[0].Balance)

	// Most recent first
	require.Len(t, resp.Ledger, 2)
	assert.Equal(t, "Coffee", resp.Ledger[0].Description)
	assert.Equal(t, "Salary", resp.Ledger[1].Description)

	require.Len(t, resp.Catalog, 1)
	assert.Equal(t, 0, resp.Catalog[0].Index)
	assert.Equal(t, "Café", resp.Catalog[0].Name)
	assert.Equal(t, PriceUnsetDisplay, resp.Catalog[0].Display)
}

func TestRemoveTransactionEndpoint(t *testing.T) {
	env := newTestEnv(t)
	env.createAndLogin(t, "bob", "secret123")

	rec := env.do(t, http.MethodPost, "/transactions", map[string]string{
		"description": "Coffee", "amount": "450", "kind": "expense", "paymentMethod": "dinheiro",
	})
	require.Equal(t, http.StatusCreated, rec.Code)

	var trans accounts.Transaction
	decodeBody(t, rec, &trans)

	rec = env.do(t, http.MethodDelete, "/transactions/"+trans.ID, nil)
	assert.Equal(t, http.StatusNoContent, rec.Code)

	rec = env.do(t, http.MethodGet, "/account", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var resp struct {
		Balance json.Number            `json:"balance"`
		Ledger  []accounts.Transaction `json:"ledger"`
	}
	decodeBody(t, rec, &resp)
	assert.Equal(t, json.Number("0"), resp.Balance)
	assert.Empty(t, resp.Ledger)
}

func TestCatalogEndpoints(t *testing.T) {
	env := newTestEnv(t)
	env.createAndLogin(t, "bob", "secret123")

	rec := env.do(t, http.MethodPost, "/catalog", map[string]string{"name": "Café"})
	require.Equal(t, http.StatusCreated, rec.Code)

	price := "890"
	rec = env.do(t, http.MethodPut, "/catalog/0", map[string]interface{}{
		"unitPrice":     price,
		"paymentMethod": "vr",
		"quantity":      3,
		"displayMode":   "total",
		"note":          "padaria",
	})
	require.Equal(t, http.StatusNoContent, rec.Code, rec.Body.String())

	rec = env.do(t, http.MethodGet, "/account", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var resp struct {
		Catalog []struct {
			UnitPrice json.Number `json:"unitPrice"`
			Method    string      `json:"paymentMethod"`
			Quantity  int         `json:"quantity"`
			Display   string      `json:"display"`
		} `json:"catalog"`
	}
	decodeBody(t, rec, &resp)

	require.Len(t, resp.Catalog, 1)
	assert.Equal(t, json.Number("8.9"), resp.Catalog[0].UnitPrice)
	assert.Equal(t, "vr", resp.Catalog[0].Method)
	assert.Equal(t, 3, resp.Catalog[0].Quantity)
	assert.Equal(t, "26.7", resp.Catalog[0].Display)

	t.Run("out of range index", func(t *testing.T) {
		rec := env.do(t, http.MethodPut, "/catalog/5", map[string]interface{}{
			"paymentMethod": "dinheiro",
		})
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})

	t.Run("non-numeric index", func(t *testing.T) {
		rec := env.do(t, http.MethodPut, "/catalog/abc", map[string]interface{}{
			"paymentMethod": "dinheiro",
		})
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})
}

func TestPaymentMethodsEndpoint(t *testing.T) {
	env := newTestEnv(t)

	rec := env.do(t, http.MethodGet, "/payment-methods", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var rows []struct {
		Key   string `json:"key"`
		Label string `json:"label"`
	}
	decodeBody(t, rec, &rows)

	require.Len(t, rows, 6)
	assert.Equal(t, "credito", rows[0].Key)
	assert.Equal(t, "Dinheiro", rows[5].Label)
}

func mustAmount(t *testing.T, s string) accounts.Amount {
	t.Helper()
	a, err := accounts.AmountFromString(s)
	require.NoError(t, err)
	return a
}
