package jobs

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	"github.com/hibiken/asynq"

	jobmetrics "github.com/tierline/tierline/internal/jobs"
	"github.com/tierline/tierline/internal/reports"
	"github.com/tierline/tierline/internal/reports/export"
	"github.com/tierline/tierline/internal/shared"
)

// ReportRunner aggregates reports.
type ReportRunner interface {
	Run(ctx context.Context, req reports.Request) (reports.Result, error)
	Location() *time.Location
}

// ReportExportJob writes background report exports into a directory.
type ReportExportJob struct {
	Reports ReportRunner
	Dir     string
	Format  export.Format
	Logger  *slog.Logger
	Metrics *jobmetrics.Metrics
	clock   func() time.Time
}

// NewReportExportJob wires dependencies for the export handler.
func NewReportExportJob(runner ReportRunner, dir string, format export.Format, logger *slog.Logger, metrics *jobmetrics.Metrics) *ReportExportJob {
	return &ReportExportJob{
		Reports: runner,
		Dir:     dir,
		Format:  format,
		Logger:  logger,
		Metrics: metrics,
		clock: func() time.Time {
			return time.Now().UTC()
		},
	}
}

// Handle processes report export tasks.
func (j *ReportExportJob) Handle(ctx context.Context, t *asynq.Task) error {
	if j == nil || j.Reports == nil {
		return errors.New("report export: handler not configured")
	}
	var payload ReportExportPayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		return asynq.SkipRetry
	}
	if payload.ExportID == "" {
		payload.ExportID = uuid.NewString()
	}
	if err := payload.Validate(); err != nil {
		j.logger().Warn("discard report export", slog.String("export_id", payload.ExportID), slog.Any("error", err))
		return fmt.Errorf("report export: %v: %w", err, asynq.SkipRetry)
	}

	tracker := j.metrics().Track(TaskReportExport)
	var resultErr error
	defer func() {
		resultErr = tracker.End(resultErr)
	}()

	logger := j.logger().With(slog.String("export_id", payload.ExportID), slog.String("report", payload.Kind))
	path, rows, err := j.export(ctx, payload)
	if err != nil {
		resultErr = err
		logger.Error("report export failed", slog.Any("error", err))
		if errors.Is(err, shared.ErrValidation) {
			return fmt.Errorf("report export: %v: %w", err, asynq.SkipRetry)
		}
		return resultErr
	}
	j.metrics().AddExportedRows(payload.Kind, rows)
	if rw := t.ResultWriter(); rw != nil {
		if _, err := rw.Write([]byte(path)); err != nil {
			logger.Warn("record export result", slog.Any("error", err))
		}
	}
	logger.Info("report exported", slog.String("path", path), slog.Int("rows", rows))
	return resultErr
}

// Export runs payload synchronously and returns the written file path.
func (j *ReportExportJob) Export(ctx context.Context, payload ReportExportPayload) (string, error) {
	if err := payload.Validate(); err != nil {
		return "", fmt.Errorf("%w: %v", shared.ErrValidation, err)
	}
	path, _, err := j.export(ctx, payload)
	return path, err
}

func (j *ReportExportJob) export(ctx context.Context, payload ReportExportPayload) (string, int, error) {
	req := payload.Request()
	result, err := j.Reports.Run(ctx, req)
	if err != nil {
		return "", 0, err
	}
	def, _ := reports.Lookup(req.Kind)
	format := j.Format
	if format.Mode == "" {
		format = export.RawFormat()
	}
	if payload.Format != "" {
		format.Mode, _ = export.ParseMode(payload.Format)
	}

	if err := os.MkdirAll(j.Dir, 0o755); err != nil {
		return "", 0, fmt.Errorf("report export: create dir: %w", err)
	}
	today := j.now().In(j.Reports.Location()).Format(reports.DateLayout)
	name := payload.ExportID + "_" + export.Filename(string(req.Kind), req.From, req.To, today)
	path := filepath.Join(j.Dir, name)

	tmp, err := os.CreateTemp(j.Dir, ".export-*.csv")
	if err != nil {
		return "", 0, fmt.Errorf("report export: create file: %w", err)
	}
	defer os.Remove(tmp.Name())
	if err := export.WriteReport(tmp, def, result.Rows, format); err != nil {
		_ = tmp.Close()
		return "", 0, fmt.Errorf("report export: write csv: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return "", 0, fmt.Errorf("report export: close file: %w", err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return "", 0, fmt.Errorf("report export: publish file: %w", err)
	}
	return path, len(result.Rows), nil
}

func (j *ReportExportJob) logger() *slog.Logger {
	if j.Logger != nil {
		return j.Logger
	}
	return slog.Default()
}

func (j *ReportExportJob) metrics() *jobmetrics.Metrics {
	if j.Metrics != nil {
		return j.Metrics
	}
	return defaultJobMetrics
}

func (j *ReportExportJob) now() time.Time {
	if j.clock != nil {
		return j.clock()
	}
	return time.Now().UTC()
}

var defaultJobMetrics = jobmetrics.NewMetrics(nil)
