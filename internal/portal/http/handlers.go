// Package portalhttp serves member dashboards and income history.
package portalhttp

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/tierline/tierline/internal/platform/httpx"
	"github.com/tierline/tierline/internal/portal"
	"github.com/tierline/tierline/internal/program"
	"github.com/tierline/tierline/internal/shared"
)

const requestTimeout = 10 * time.Second

// Service builds portal views.
type Service interface {
	Dashboard(ctx context.Context, publicID string) (portal.Dashboard, error)
	IncomeHistory(ctx context.Context, publicID string, filter portal.HistoryFilter) (portal.History, error)
}

// Handler coordinates member portal requests.
type Handler struct {
	logger  *slog.Logger
	service Service
}

// NewHandler constructs the portal HTTP handler.
func NewHandler(logger *slog.Logger, service Service) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{logger: logger, service: service}
}

// MountRoutes registers portal endpoints onto the router.
func (h *Handler) MountRoutes(r chi.Router) {
	if h == nil {
		return
	}
	r.Route("/api/members/{memberID}", func(r chi.Router) {
		r.Get("/dashboard", h.handleDashboard)
		r.Get("/income", h.handleIncome)
	})
}

func (h *Handler) handleDashboard(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), requestTimeout)
	defer cancel()

	dashboard, err := h.service.Dashboard(ctx, chi.URLParam(r, "memberID"))
	if err != nil {
		h.respondError(w, "load dashboard", err)
		return
	}
	httpx.JSON(w, http.StatusOK, dashboard)
}

func (h *Handler) handleIncome(w http.ResponseWriter, r *http.Request) {
	filter, err := parseFilter(r)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	ctx, cancel := context.WithTimeout(r.Context(), requestTimeout)
	defer cancel()

	history, err := h.service.IncomeHistory(ctx, chi.URLParam(r, "memberID"), filter)
	if err != nil {
		h.respondError(w, "load income history", err)
		return
	}
	httpx.JSON(w, http.StatusOK, history)
}

func (h *Handler) respondError(w http.ResponseWriter, op string, err error) {
	if !errors.Is(err, shared.ErrValidation) && !errors.Is(err, shared.ErrNotFound) {
		h.logger.Error(op, slog.Any("error", err))
	}
	httpx.RespondError(w, err)
}

func parseFilter(r *http.Request) (portal.HistoryFilter, error) {
	values := r.URL.Query()
	filter := portal.HistoryFilter{
		Type: strings.TrimSpace(values.Get("type")),
		From: strings.TrimSpace(values.Get("from")),
		To:   strings.TrimSpace(values.Get("to")),
	}
	for field, dst := range map[string]*int{"page": &filter.Page, "per_page": &filter.PerPage} {
		raw := strings.TrimSpace(values.Get(field))
		if raw == "" {
			continue
		}
		v, err := strconv.Atoi(raw)
		if err != nil {
			return portal.HistoryFilter{}, &program.ValidationError{Field: field, Reason: "must be an integer"}
		}
		*dst = v
	}
	return filter, nil
}
