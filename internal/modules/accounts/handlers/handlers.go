// Package handlers provides HTTP handlers for account, ledger, wallet, and
// catalog operations. All validation of raw boundary input (currency
// strings, method keys) happens here, before the aggregate is touched.
package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"

	"github.com/lmoraes/backfinance/internal/modules/accounts"
)

// PriceUnsetDisplay is the sentinel shown for catalog items whose price has
// not been set. Unset and zero are distinct states; zero renders as 0.
const PriceUnsetDisplay = "—"

// Handler handles account HTTP requests
type Handler struct {
	service  *accounts.Service
	sessions *accounts.SessionManager
	log      zerolog.Logger
}

// NewHandler creates a new accounts handler
func NewHandler(service *accounts.Service, sessions *accounts.SessionManager, log zerolog.Logger) *Handler {
	return &Handler{
		service:  service,
		sessions: sessions,
		log:      log.With().Str("handler", "accounts").Logger(),
	}
}

type credentialsRequest struct {
	Nickname string `json:"nickname"`
	Password string `json:"password"`
}

// HandleCreateAccount handles POST /api/accounts
func (h *Handler) HandleCreateAccount(w http.ResponseWriter, r *http.Request) {
	var req credentialsRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	acct, err := h.service.CreateAccount(req.Nickname, req.Password)
	if err != nil {
		h.writeError(w, err, "Failed to create account")
		return
	}

	writeJSON(w, http.StatusCreated, map[string]string{"nickname": acct.Nickname})
}

// HandleLogin handles POST /api/session
func (h *Handler) HandleLogin(w http.ResponseWriter, r *http.Request) {
	var req credentialsRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	sess, err := h.service.Login(req.Nickname, req.Password)
	if err != nil {
		h.writeError(w, err, "Login failed")
		return
	}

	// Logging in replaces whatever session was active before.
	h.sessions.Set(sess)
	writeJSON(w, http.StatusOK, map[string]string{"nickname": sess.Nickname})
}

// HandleLogout handles DELETE /api/session
func (h *Handler) HandleLogout(w http.ResponseWriter, r *http.Request) {
	h.sessions.Clear()
	w.WriteHeader(http.StatusNoContent)
}

type walletRow struct {
	Key     accounts.PaymentMethod `json:"key"`
	Label   string                 `json:"label"`
	Balance accounts.Amount        `json:"balance"`
}

type catalogRow struct {
	Index       int                    `json:"index"`
	Name        string                 `json:"name"`
	UnitPrice   *accounts.Amount       `json:"unitPrice"`
	Method      accounts.PaymentMethod `json:"paymentMethod"`
	Quantity    int                    `json:"quantity"`
	DisplayMode accounts.DisplayMode   `json:"displayMode"`
	Note        string                 `json:"note"`
	Display     string                 `json:"display"`
}

type accountResponse struct {
	Nickname string                 `json:"nickname"`
	Balance  accounts.Amount        `json:"balance"`
	Wallet   []walletRow            `json:"wallet"`
	Ledger   []accounts.Transaction `json:"ledger"`
	Catalog  []catalogRow           `json:"catalog"`
}

// HandleGetAccount handles GET /api/account.
// Returns everything the shell renders: the six-row wallet table, the
// ledger most-recent-first, the catalog with derived display values, and
// the computed total balance.
func (h *Handler) HandleGetAccount(w http.ResponseWriter, r *http.Request) {
	sess := h.requireSession(w)
	if sess == nil {
		return
	}

	if err := h.service.Refresh(sess); err != nil {
		h.writeError(w, err, "Failed to load account")
		return
	}
	acct := sess.Account

	resp := accountResponse{
		Nickname: acct.Nickname,
		Balance:  acct.ComputeBalance(),
		Wallet:   make([]walletRow, 0, len(accounts.DefaultMethods)),
		Ledger:   make([]accounts.Transaction, 0, len(acct.Ledger)),
		Catalog:  make([]catalogRow, 0, len(acct.Catalog)),
	}

	for _, m := range accounts.DefaultMethods {
		resp.Wallet = append(resp.Wallet, walletRow{
			Key:     m,
			Label:   accounts.MethodLabel(m),
			Balance: acct.Wallet[m],
		})
	}

	// Most-recent-first for listing
	for i := len(acct.Ledger) - 1; i >= 0; i-- {
		resp.Ledger = append(resp.Ledger, acct.Ledger[i])
	}

	for i, item := range acct.Catalog {
		row := catalogRow{
			Index:       i,
			Name:        item.Name,
			UnitPrice:   item.UnitPrice,
			Method:      item.Method,
			Quantity:    item.Quantity,
			DisplayMode: item.DisplayMode,
			Note:        item.Note,
			Display:     PriceUnsetDisplay,
		}
		if value, ok := item.DisplayValue(); ok {
			row.Display = value.String()
		}
		resp.Catalog = append(resp.Catalog, row)
	}

	writeJSON(w, http.StatusOK, resp)
}

type transactionRequest struct {
	Description string `json:"description"`
	Amount      string `json:"amount"`
	Kind        string `json:"kind"`
	Method      string `json:"paymentMethod"`
}

// HandleAddTransaction handles POST /api/transactions.
// The amount arrives as raw currency input ("R$ 4,50") and is normalized
// here, at the boundary.
func (h *Handler) HandleAddTransaction(w http.ResponseWriter, r *http.Request) {
	sess := h.requireSession(w)
	if sess == nil {
		return
	}

	var req transactionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	amount, err := accounts.NormalizeAmount(req.Amount)
	if err != nil {
		h.writeError(w, err, "Invalid amount")
		return
	}

	trans, err := h.service.AddTransaction(sess, req.Description, amount,
		accounts.Kind(req.Kind), accounts.PaymentMethod(req.Method))
	if err != nil {
		h.writeError(w, err, "Failed to add transaction")
		return
	}

	writeJSON(w, http.StatusCreated, trans)
}

// HandleRemoveTransaction handles DELETE /api/transactions/{id}
func (h *Handler) HandleRemoveTransaction(w http.ResponseWriter, r *http.Request) {
	sess := h.requireSession(w)
	if sess == nil {
		return
	}

	id := chi.URLParam(r, "id")
	if err := h.service.RemoveTransaction(sess, id); err != nil {
		h.writeError(w, err, "Failed to remove transaction")
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

type catalogAddRequest struct {
	Name string `json:"name"`
}

// HandleAddCatalogItem handles POST /api/catalog
func (h *Handler) HandleAddCatalogItem(w http.ResponseWriter, r *http.Request) {
	sess := h.requireSession(w)
	if sess == nil {
		return
	}

	var req catalogAddRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	item, err := h.service.AddCatalogItem(sess, req.Name)
	if err != nil {
		h.writeError(w, err, "Failed to add catalog item")
		return
	}

	writeJSON(w, http.StatusCreated, item)
}

type catalogUpdateRequest struct {
	UnitPrice   *string `json:"unitPrice"` // raw currency input; null clears the price
	Method      string  `json:"paymentMethod"`
	Quantity    int     `json:"quantity"`
	DisplayMode string  `json:"displayMode"`
	Note        string  `json:"note"`
}

// HandleUpdateCatalogItem handles PUT /api/catalog/{index}
func (h *Handler) HandleUpdateCatalogItem(w http.ResponseWriter, r *http.Request) {
	sess := h.requireSession(w)
	if sess == nil {
		return
	}

	index, err := strconv.Atoi(chi.URLParam(r, "index"))
	if err != nil {
		http.Error(w, "Invalid catalog index", http.StatusBadRequest)
		return
	}

	var req catalogUpdateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	update := accounts.CatalogItemUpdate{
		Method:      accounts.PaymentMethod(req.Method),
		Quantity:    req.Quantity,
		DisplayMode: accounts.DisplayMode(req.DisplayMode),
		Note:        req.Note,
	}
	if req.UnitPrice != nil && *req.UnitPrice != "" {
		price, err := accounts.NormalizeAmount(*req.UnitPrice)
		if err != nil {
			h.writeError(w, err, "Invalid price")
			return
		}
		update.UnitPrice = &price
	}

	if err := h.service.UpdateCatalogItem(sess, index, update); err != nil {
		h.writeError(w, err, "Failed to update catalog item")
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

type methodRow struct {
	Key   accounts.PaymentMethod `json:"key"`
	Label string                 `json:"label"`
}

// HandlePaymentMethods handles GET /api/payment-methods.
// The shell builds its selector from this so both sides agree on the
// accepted set.
func (h *Handler) HandlePaymentMethods(w http.ResponseWriter, r *http.Request) {
	rows := make([]methodRow, 0, len(accounts.DefaultMethods))
	for _, m := range accounts.DefaultMethods {
		rows = append(rows, methodRow{Key: m, Label: accounts.MethodLabel(m)})
	}
	writeJSON(w, http.StatusOK, rows)
}

// requireSession returns the active session or answers 401.
func (h *Handler) requireSession(w http.ResponseWriter) *accounts.Session {
	sess := h.sessions.Current()
	if sess == nil {
		writeErrorJSON(w, http.StatusUnauthorized, "No active session")
		return nil
	}
	return sess
}

// writeError maps expected outcomes to 4xx responses and everything else
// (storage faults) to 500. Faults are logged, never swallowed.
func (h *Handler) writeError(w http.ResponseWriter, err error, logMsg string) {
	switch {
	case errors.Is(err, accounts.ErrValidation):
		writeErrorJSON(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, accounts.ErrDuplicateAccount):
		writeErrorJSON(w, http.StatusConflict, err.Error())
	case errors.Is(err, accounts.ErrAccountNotFound):
		writeErrorJSON(w, http.StatusNotFound, err.Error())
	case errors.Is(err, accounts.ErrInvalidCredentials):
		writeErrorJSON(w, http.StatusUnauthorized, err.Error())
	default:
		h.log.Error().Err(err).Msg(logMsg)
		writeErrorJSON(w, http.StatusInternalServerError, "Failed to save or load data")
	}
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeErrorJSON(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}
