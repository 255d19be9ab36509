package handlers

import (
	"github.com/go-chi/chi/v5"
)

// RegisterRoutes registers all account routes
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Post("/accounts", h.HandleCreateAccount)

	r.Post("/session", h.HandleLogin)
	r.Delete("/session", h.HandleLogout)

	r.Get("/account", h.HandleGetAccount)
	r.Get("/payment-methods", h.HandlePaymentMethods)

	r.Post("/transactions", h.HandleAddTransaction)
	r.Delete("/transactions/{id}", h.HandleRemoveTransaction)

	r.Post("/catalog", h.HandleAddCatalogItem)
	r.Put("/catalog/{index}", h.HandleUpdateCatalogItem)
}
