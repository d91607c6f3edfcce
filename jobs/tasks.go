package jobs

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/hibiken/asynq"

	"github.com/tierline/tierline/internal/reports"
	"github.com/tierline/tierline/internal/reports/export"
)

const (
	// QueueDefault is the default queue name for background jobs.
	QueueDefault = "default"
	// TaskReportExport renders a report to a CSV file in the export directory.
	TaskReportExport = "report:export"
)

// ReportExportPayload describes one background report export.
type ReportExportPayload struct {
	ExportID        string `json:"export_id"`
	Kind            string `json:"kind"`
	From            string `json:"from,omitempty"`
	To              string `json:"to,omitempty"`
	ShowZeroBalance bool   `json:"show_zero,omitempty"`
	Format          string `json:"format,omitempty"`
}

// Request converts the payload into a report request.
func (p ReportExportPayload) Request() reports.Request {
	return reports.Request{
		Kind:            reports.Kind(strings.TrimSpace(p.Kind)),
		From:            strings.TrimSpace(p.From),
		To:              strings.TrimSpace(p.To),
		ShowZeroBalance: p.ShowZeroBalance,
	}
}

// Validate checks the parts of the payload the report service does not.
func (p ReportExportPayload) Validate() error {
	if _, err := uuid.Parse(p.ExportID); err != nil {
		return fmt.Errorf("export_id: %w", err)
	}
	if _, ok := reports.Lookup(reports.Kind(strings.TrimSpace(p.Kind))); !ok {
		return fmt.Errorf("kind: unknown report %q", p.Kind)
	}
	if _, err := export.ParseMode(p.Format); err != nil {
		return err
	}
	return nil
}

// NewReportExportTask constructs an Asynq task. An empty ExportID is filled in.
func NewReportExportTask(payload ReportExportPayload) (*asynq.Task, ReportExportPayload, error) {
	if payload.ExportID == "" {
		payload.ExportID = uuid.NewString()
	}
	if err := payload.Validate(); err != nil {
		return nil, payload, err
	}
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, payload, err
	}
	return asynq.NewTask(TaskReportExport, data, asynq.MaxRetry(3)), payload, nil
}

// NewScheduledExportTask builds the payload registered with the scheduler.
// The export id is left empty so every run receives a fresh one.
func NewScheduledExportTask(kind, format string) (*asynq.Task, error) {
	payload := ReportExportPayload{Kind: kind, Format: format}
	probe := payload
	probe.ExportID = uuid.NewString()
	if err := probe.Validate(); err != nil {
		return nil, err
	}
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskReportExport, data, asynq.MaxRetry(3)), nil
}
