package handlers

import (
	"github.com/go-chi/chi/v5"
)

// RegisterRoutes registers all backup routes
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Route("/backup", func(r chi.Router) {
		r.Get("/export", h.HandleExport)
		r.Post("/import", h.HandleImport)
	})
}
