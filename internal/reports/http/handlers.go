package reporthttp

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/hibiken/asynq"

	"github.com/tierline/tierline/internal/platform/httpx"
	"github.com/tierline/tierline/internal/program"
	"github.com/tierline/tierline/internal/reports"
	"github.com/tierline/tierline/internal/reports/export"
	"github.com/tierline/tierline/internal/runs"
	"github.com/tierline/tierline/internal/shared"
	"github.com/tierline/tierline/jobs"
)

const (
	defaultRequestTimeout = 60 * time.Second
	defaultPerPage        = 50
	maxPerPage            = 500
)

// ReportService aggregates reports.
type ReportService interface {
	Validate(req reports.Request) (reports.Definition, error)
	Run(ctx context.Context, req reports.Request) (reports.Result, error)
	Today() string
}

// ExportQueue enqueues background exports.
type ExportQueue interface {
	EnqueueReportExport(ctx context.Context, payload jobs.ReportExportPayload) (*asynq.TaskInfo, jobs.ReportExportPayload, error)
}

// Options configures a Handler.
type Options struct {
	RequestTimeout time.Duration
	Format         export.Format
}

// Handler serves report endpoints.
type Handler struct {
	logger   *slog.Logger
	service  ReportService
	queue    ExportQueue
	runs     *runs.Tracker
	coalesce runs.Coalescer
	timeout  time.Duration
	format   export.Format
	csvPool  sync.Pool
}

// NewHandler constructs the report HTTP handler. queue may be nil, in which
// case background exports are unavailable.
func NewHandler(logger *slog.Logger, service ReportService, queue ExportQueue, tracker *runs.Tracker, opts Options) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	if tracker == nil {
		tracker = runs.NewTracker(nil, logger)
	}
	if opts.RequestTimeout <= 0 {
		opts.RequestTimeout = defaultRequestTimeout
	}
	if opts.Format.Mode == "" {
		opts.Format = export.RawFormat()
	}
	h := &Handler{
		logger:  logger,
		service: service,
		queue:   queue,
		runs:    tracker,
		timeout: opts.RequestTimeout,
		format:  opts.Format,
	}
	h.csvPool.New = func() interface{} { return new(bytes.Buffer) }
	return h
}

// KindInfo describes an available report.
type KindInfo struct {
	Kind    reports.Kind     `json:"kind"`
	Title   string           `json:"title"`
	Style   reports.Style    `json:"style"`
	Columns []reports.Column `json:"columns"`
}

// ReportResponse is the JSON body of a report.
type ReportResponse struct {
	Report          reports.Kind      `json:"report"`
	Title           string            `json:"title"`
	From            string            `json:"from,omitempty"`
	To              string            `json:"to,omitempty"`
	ShowZeroBalance bool              `json:"show_zero_balance"`
	Columns         []reports.Column  `json:"columns"`
	Rows            []reports.Row     `json:"rows"`
	Totals          reports.Row       `json:"totals"`
	Matched         int               `json:"matched"`
	Pagination      shared.Pagination `json:"pagination"`
	Skipped         []reports.Skip    `json:"skipped"`
	UndatedExcluded int               `json:"undated_excluded"`
	GeneratedAt     time.Time         `json:"generated_at"`
}

// ExportAccepted is returned when a background export was queued.
type ExportAccepted struct {
	TaskID   string `json:"task_id"`
	ExportID string `json:"export_id"`
}

func (h *Handler) handleKinds(w http.ResponseWriter, r *http.Request) {
	out := make([]KindInfo, 0)
	for _, kind := range reports.Kinds() {
		def, _ := reports.Lookup(kind)
		out = append(out, KindInfo{Kind: def.Kind, Title: def.Title, Style: def.Style, Columns: def.Columns})
	}
	httpx.JSON(w, http.StatusOK, out)
}

func (h *Handler) handleReport(w http.ResponseWriter, r *http.Request) {
	req, err := parseRequest(r)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	query, err := parseQuery(r)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	def, err := h.service.Validate(req)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	result, err := h.run(r, "reports:"+string(req.Kind), req)
	if err != nil {
		h.respondError(w, "build report", err)
		return
	}
	page, err := reports.Apply(result.Rows, def, query)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}

	httpx.JSON(w, http.StatusOK, ReportResponse{
		Report:          result.Kind,
		Title:           result.Title,
		From:            result.From,
		To:              result.To,
		ShowZeroBalance: result.ShowZeroBalance,
		Columns:         def.Columns,
		Rows:            page.Rows,
		Totals:          result.Totals,
		Matched:         page.Matched,
		Pagination:      page.Pagination,
		Skipped:         result.Skipped,
		UndatedExcluded: result.UndatedExcluded,
		GeneratedAt:     result.GeneratedAt,
	})
}

func (h *Handler) handleCSV(w http.ResponseWriter, r *http.Request) {
	req, err := parseRequest(r)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	query, err := parseQuery(r)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	query.PerPage = -1
	format, err := h.parseFormat(r.URL.Query().Get("format"))
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	def, err := h.service.Validate(req)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	result, err := h.run(r, "reports-export:"+string(req.Kind), req)
	if err != nil {
		h.respondError(w, "build report", err)
		return
	}
	page, err := reports.Apply(result.Rows, def, query)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}

	buf := h.csvPool.Get().(*bytes.Buffer)
	buf.Reset()
	defer func() {
		buf.Reset()
		h.csvPool.Put(buf)
	}()
	if err := export.WriteReport(buf, def, page.Rows, format); err != nil {
		h.respondError(w, "write report csv", err)
		return
	}

	filename := export.Filename(string(def.Kind), req.From, req.To, h.service.Today())
	w.Header().Set("Content-Type", "text/csv; charset=utf-8")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=\"%s\"", filename))
	if _, err := w.Write(buf.Bytes()); err != nil {
		h.logger.Error("stream report csv", slog.Any("error", err))
	}
}

type enqueueBody struct {
	From            string `json:"from"`
	To              string `json:"to"`
	ShowZeroBalance bool   `json:"show_zero"`
	Format          string `json:"format"`
}

func (h *Handler) handleEnqueue(w http.ResponseWriter, r *http.Request) {
	if h.queue == nil {
		httpx.Problem(w, http.StatusServiceUnavailable, "Exports Unavailable", "background exports are not configured")
		return
	}
	var body enqueueBody
	if err := httpx.DecodeJSON(r, &body); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "malformed JSON body")
		return
	}
	req := reports.Request{
		Kind:            reports.Kind(chi.URLParam(r, "kind")),
		From:            strings.TrimSpace(body.From),
		To:              strings.TrimSpace(body.To),
		ShowZeroBalance: body.ShowZeroBalance,
	}
	if _, err := h.service.Validate(req); err != nil {
		httpx.RespondError(w, err)
		return
	}
	if _, err := export.ParseMode(body.Format); err != nil {
		httpx.RespondError(w, err)
		return
	}

	info, payload, err := h.queue.EnqueueReportExport(r.Context(), jobs.ReportExportPayload{
		Kind:            string(req.Kind),
		From:            req.From,
		To:              req.To,
		ShowZeroBalance: req.ShowZeroBalance,
		Format:          body.Format,
	})
	if err != nil {
		h.logger.Error("enqueue report export", slog.Any("error", err))
		httpx.Problem(w, http.StatusServiceUnavailable, "Queue Unavailable", "the export could not be queued")
		return
	}
	taskID := ""
	if info != nil {
		taskID = info.ID
	}
	httpx.JSON(w, http.StatusAccepted, ExportAccepted{TaskID: taskID, ExportID: payload.ExportID})
}

func (h *Handler) run(r *http.Request, route string, req reports.Request) (reports.Result, error) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	var result reports.Result
	err := h.runs.Do(ctx, runs.Scope(r, route), func(ctx context.Context) error {
		key := fmt.Sprintf("%s|%s|%s|%t", req.Kind, req.From, req.To, req.ShowZeroBalance)
		v, err := h.coalesce.Do(ctx, key, func(ctx context.Context) (any, error) {
			return h.service.Run(ctx, req)
		})
		if err != nil {
			return err
		}
		result = v.(reports.Result)
		return nil
	})
	return result, err
}

func (h *Handler) parseFormat(raw string) (export.Format, error) {
	if strings.TrimSpace(raw) == "" {
		return h.format, nil
	}
	mode, err := export.ParseMode(raw)
	if err != nil {
		return export.Format{}, err
	}
	f := h.format
	f.Mode = mode
	return f, nil
}

func (h *Handler) respondError(w http.ResponseWriter, op string, err error) {
	if !errors.Is(err, shared.ErrValidation) && !errors.Is(err, shared.ErrNotFound) && !errors.Is(err, shared.ErrSuperseded) {
		h.logger.Error(op, slog.Any("error", err))
	}
	httpx.RespondError(w, err)
}

func parseRequest(r *http.Request) (reports.Request, error) {
	values := r.URL.Query()
	req := reports.Request{
		Kind: reports.Kind(chi.URLParam(r, "kind")),
		From: strings.TrimSpace(values.Get("from")),
		To:   strings.TrimSpace(values.Get("to")),
	}
	if raw := strings.TrimSpace(values.Get("show_zero")); raw != "" {
		v, err := strconv.ParseBool(raw)
		if err != nil {
			return reports.Request{}, &program.ValidationError{Field: "show_zero", Reason: "must be a boolean"}
		}
		req.ShowZeroBalance = v
	}
	return req, nil
}

func parseQuery(r *http.Request) (reports.Query, error) {
	values := r.URL.Query()
	q := reports.Query{
		Search:  values.Get("q"),
		SortBy:  strings.TrimSpace(values.Get("sort")),
		Page:    1,
		PerPage: defaultPerPage,
	}
	switch strings.ToLower(strings.TrimSpace(values.Get("order"))) {
	case "", "asc":
	case "desc":
		q.Desc = true
	default:
		return reports.Query{}, &program.ValidationError{Field: "order", Reason: `must be "asc" or "desc"`}
	}
	for field, dst := range map[string]*int{"page": &q.Page, "per_page": &q.PerPage} {
		raw := strings.TrimSpace(values.Get(field))
		if raw == "" {
			continue
		}
		v, err := strconv.Atoi(raw)
		if err != nil || v <= 0 {
			return reports.Query{}, &program.ValidationError{Field: field, Reason: "must be a positive integer"}
		}
		*dst = v
	}
	if q.PerPage > maxPerPage {
		return reports.Query{}, &program.ValidationError{Field: "per_page", Reason: fmt.Sprintf("must not exceed %d", maxPerPage)}
	}
	return q, nil
}
