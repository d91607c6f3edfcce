package levelhttp

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

	"github.com/tierline/tierline/internal/hierarchy"
	"github.com/tierline/tierline/internal/platform/httpx"
	"github.com/tierline/tierline/internal/program"
	"github.com/tierline/tierline/internal/reports/export"
	"github.com/tierline/tierline/internal/runs"
)

const defaultRequestTimeout = 30 * time.Second

// Builder produces level reports.
type Builder interface {
	Build(ctx context.Context, req hierarchy.Request) (hierarchy.Report, error)
}

// Options configures a Handler.
type Options struct {
	RequestTimeout time.Duration
	Format         export.Format
	Location       *time.Location
}

// Handler serves level reports.
type Handler struct {
	logger   *slog.Logger
	builder  Builder
	runs     *runs.Tracker
	coalesce runs.Coalescer
	timeout  time.Duration
	format   export.Format
	location *time.Location
	csvPool  sync.Pool
	now      func() time.Time
}

// NewHandler constructs the level report HTTP handler.
func NewHandler(logger *slog.Logger, builder Builder, tracker *runs.Tracker, opts Options) *Handler {
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
	if opts.Location == nil {
		opts.Location = time.UTC
	}
	h := &Handler{
		logger:   logger,
		builder:  builder,
		runs:     tracker,
		timeout:  opts.RequestTimeout,
		format:   opts.Format,
		location: opts.Location,
		now:      time.Now,
	}
	h.csvPool.New = func() interface{} { return new(bytes.Buffer) }
	return h
}

// WithNow overrides the handler clock for testing.
func (h *Handler) WithNow(fn func() time.Time) {
	if fn != nil {
		h.now = fn
	}
}

// LevelSummary describes one level without its members.
type LevelSummary struct {
	Depth          int    `json:"depth"`
	Count          int    `json:"count"`
	BusinessVolume string `json:"business_volume"`
}

// LevelsResponse is the JSON body of a level report.
type LevelsResponse struct {
	Root        hierarchy.Node   `json:"root"`
	Level       string           `json:"level"`
	MaxDepth    int              `json:"max_depth"`
	Truncated   bool             `json:"truncated"`
	Levels      []LevelSummary   `json:"levels"`
	Members     []hierarchy.Node `json:"members"`
	GeneratedAt time.Time        `json:"generated_at"`
}

type levelQuery struct {
	req hierarchy.Request
	sel hierarchy.Selector
}

func (h *Handler) handleLevels(w http.ResponseWriter, r *http.Request) {
	q, err := parseQuery(r)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	report, err := h.build(r, "levels", q.req)
	if err != nil {
		h.respondError(w, "build level report", err)
		return
	}

	resp := LevelsResponse{
		Root:        report.Root,
		Level:       q.sel.String(),
		MaxDepth:    report.MaxDepth,
		Truncated:   report.Truncated,
		Levels:      make([]LevelSummary, 0, len(report.Levels)),
		Members:     report.Select(q.sel),
		GeneratedAt: report.GeneratedAt,
	}
	for _, lvl := range report.Levels {
		resp.Levels = append(resp.Levels, LevelSummary{
			Depth:          lvl.Depth,
			Count:          lvl.Count,
			BusinessVolume: lvl.BusinessVolume.StringFixed(2),
		})
	}
	httpx.JSON(w, http.StatusOK, resp)
}

func (h *Handler) handleCSV(w http.ResponseWriter, r *http.Request) {
	q, err := parseQuery(r)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	format, err := h.parseFormat(r)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	report, err := h.build(r, "levels-export", q.req)
	if err != nil {
		h.respondError(w, "build level report", err)
		return
	}

	buf := h.csvPool.Get().(*bytes.Buffer)
	buf.Reset()
	defer func() {
		buf.Reset()
		h.csvPool.Put(buf)
	}()
	if err := export.WriteLevels(buf, report.Select(q.sel), format); err != nil {
		h.respondError(w, "write level csv", err)
		return
	}

	today := h.now().In(h.location).Format("2006-01-02")
	filename := export.LevelFilename(report.Root.MemberID, q.sel.String(), today)
	w.Header().Set("Content-Type", "text/csv; charset=utf-8")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=\"%s\"", filename))
	if _, err := w.Write(buf.Bytes()); err != nil {
		h.logger.Error("stream level csv", slog.Any("error", err))
	}
}

func (h *Handler) build(r *http.Request, route string, req hierarchy.Request) (hierarchy.Report, error) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	var report hierarchy.Report
	err := h.runs.Do(ctx, runs.Scope(r, route), func(ctx context.Context) error {
		key := strings.ToLower(strings.TrimSpace(req.RootID)) + "|" + strconv.Itoa(req.MaxDepth)
		v, err := h.coalesce.Do(ctx, key, func(ctx context.Context) (any, error) {
			return h.builder.Build(ctx, req)
		})
		if err != nil {
			return err
		}
		report = v.(hierarchy.Report)
		return nil
	})
	return report, err
}

func (h *Handler) parseFormat(r *http.Request) (export.Format, error) {
	raw := strings.TrimSpace(r.URL.Query().Get("format"))
	if raw == "" {
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
	var vErr *program.ValidationError
	var nfErr *program.NotFoundError
	if !errors.As(err, &vErr) && !errors.As(err, &nfErr) {
		h.logger.Error(op, slog.Any("error", err))
	}
	httpx.RespondError(w, err)
}

func parseQuery(r *http.Request) (levelQuery, error) {
	values := r.URL.Query()
	sel, err := hierarchy.ParseSelector(values.Get("level"))
	if err != nil {
		return levelQuery{}, err
	}
	q := levelQuery{sel: sel, req: hierarchy.Request{RootID: strings.TrimSpace(values.Get("root"))}}
	if raw := strings.TrimSpace(values.Get("depth")); raw != "" {
		depth, err := strconv.Atoi(raw)
		if err != nil {
			return levelQuery{}, &program.ValidationError{Field: "depth", Reason: "must be an integer"}
		}
		q.req.MaxDepth = depth
	}
	return q, nil
}
