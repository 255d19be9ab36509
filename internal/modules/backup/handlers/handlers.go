// Package handlers provides HTTP handlers for backup export and import.
package handlers

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"github.com/rs/zerolog"

	"github.com/lmoraes/backfinance/internal/modules/accounts"
	"github.com/lmoraes/backfinance/internal/modules/backup"
)

// Handler handles backup HTTP requests
type Handler struct {
	service  *backup.Service
	accounts *accounts.Service
	sessions *accounts.SessionManager
	log      zerolog.Logger
}

// NewHandler creates a new backup handler
func NewHandler(service *backup.Service, accountsService *accounts.Service, sessions *accounts.SessionManager, log zerolog.Logger) *Handler {
	return &Handler{
		service:  service,
		accounts: accountsService,
		sessions: sessions,
		log:      log.With().Str("handler", "backup").Logger(),
	}
}

// HandleExport handles GET /api/backup/export.
// Downloads the logged-in account as backfinance-<nickname>.json.
func (h *Handler) HandleExport(w http.ResponseWriter, r *http.Request) {
	sess := h.sessions.Current()
	if sess == nil {
		writeErrorJSON(w, http.StatusUnauthorized, "Log in to export a backup")
		return
	}

	// Export the stored record, not a possibly stale working copy.
	if err := h.accounts.Refresh(sess); err != nil {
		h.log.Error().Err(err).Msg("Failed to load account for export")
		writeErrorJSON(w, http.StatusInternalServerError, "Failed to export backup")
		return
	}

	doc, filename, err := h.service.Export(sess.Account)
	if err != nil {
		h.log.Error().Err(err).Msg("Failed to serialize backup")
		writeErrorJSON(w, http.StatusInternalServerError, "Failed to export backup")
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", filename))
	_, _ = w.Write(doc)
}

type importRequest struct {
	Nickname string          `json:"nickname"`
	Password string          `json:"password"`
	Document json.RawMessage `json:"document"`
}

// HandleImport handles POST /api/backup/import.
// Restores a backup document under the given nickname with a new password,
// overwriting any existing record - the response reports whether one was
// replaced so the shell can tell the user.
func (h *Handler) HandleImport(w http.ResponseWriter, r *http.Request) {
	var req importRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeErrorJSON(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	acct, replaced, err := h.service.Import(req.Document, req.Nickname, req.Password)
	if err != nil {
		switch {
		case errors.Is(err, accounts.ErrValidation), errors.Is(err, backup.ErrInvalidBackupFormat):
			writeErrorJSON(w, http.StatusBadRequest, err.Error())
		default:
			h.log.Error().Err(err).Msg("Failed to import backup")
			writeErrorJSON(w, http.StatusInternalServerError, "Failed to import backup")
		}
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"nickname": acct.Nickname,
		"replaced": replaced,
	})
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeErrorJSON(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}
