// Package levelhttp exposes the level report over HTTP.
package levelhttp

import (
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/tierline/tierline/internal/platform/httpx"
)

// MountRoutes registers level report endpoints onto the router.
func (h *Handler) MountRoutes(r chi.Router) {
	if h == nil {
		return
	}
	r.Get("/api/levels", h.handleLevels)
	r.Group(func(gr chi.Router) {
		gr.Use(httpx.ExportLimiter(10, time.Minute))
		gr.Get("/api/levels/export.csv", h.handleCSV)
	})
}
