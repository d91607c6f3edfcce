// Package reporthttp exposes income and payout reports over HTTP.
package reporthttp

import (
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/tierline/tierline/internal/platform/httpx"
)

// MountRoutes registers report endpoints onto the router.
func (h *Handler) MountRoutes(r chi.Router) {
	if h == nil {
		return
	}
	r.Get("/api/reports", h.handleKinds)
	r.Get("/api/reports/{kind}", h.handleReport)
	r.Group(func(gr chi.Router) {
		gr.Use(httpx.ExportLimiter(10, time.Minute))
		gr.Get("/api/reports/{kind}/export.csv", h.handleCSV)
		gr.Post("/api/reports/{kind}/exports", h.handleEnqueue)
	})
}
