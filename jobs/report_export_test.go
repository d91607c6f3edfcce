package jobs

import (
	"context"
	"encoding/csv"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/hibiken/asynq"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	jobmetrics "github.com/tierline/tierline/internal/jobs"
	"github.com/tierline/tierline/internal/program/programtest"
	"github.com/tierline/tierline/internal/reports"
	"github.com/tierline/tierline/internal/reports/export"
	"github.com/tierline/tierline/internal/shared"
)

const exportID = "6f1c1a52-5b43-4f53-9d2a-1f4f7f0b9a11"

func newExportJob(t *testing.T) (*ReportExportJob, string) {
	t.Helper()
	f := programtest.New().
		AddMember(programtest.Member{Key: "k1", MemberID: "TL001", Name: "Asha"}).
		AddMember(programtest.Member{Key: "k2", MemberID: "TL002", Name: "Bela", ReferrerKey: "k1"}).
		AddEntry("k1", "daily_roi", 100, time.Date(2024, 3, 2, 9, 0, 0, 0, time.UTC)).
		AddEntry("k2", "daily_roi", 40, time.Date(2024, 4, 2, 9, 0, 0, 0, time.UTC))
	svc := reports.NewService(f.Repository(), reports.Config{})
	dir := t.TempDir()
	job := NewReportExportJob(svc, dir, export.RawFormat(), nil, jobmetrics.NewMetrics(prometheus.NewRegistry()))
	job.clock = func() time.Time { return time.Date(2024, 4, 5, 12, 0, 0, 0, time.UTC) }
	return job, dir
}

func task(t *testing.T, payload ReportExportPayload) *asynq.Task {
	t.Helper()
	data, err := json.Marshal(payload)
	require.NoError(t, err)
	return asynq.NewTask(TaskReportExport, data)
}

func TestReportExportWritesCSV(t *testing.T) {
	job, dir := newExportJob(t)
	err := job.Handle(context.Background(), task(t, ReportExportPayload{
		ExportID: exportID, Kind: "roi-income", From: "2024-03-01", To: "2024-03-31",
	}))
	require.NoError(t, err)

	path := filepath.Join(dir, exportID+"_roi-income_2024-03-01_to_2024-03-31.csv")
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	records, err := csv.NewReader(strings.NewReader(string(data))).ReadAll()
	require.NoError(t, err)
	require.Len(t, records, 2)
	assert.Equal(t, "TL001", records[1][0])
	assert.Contains(t, records[1], "100.00")

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Len(t, entries, 1, "temporary files are cleaned up")
}

func TestReportExportOpenWindowUsesToday(t *testing.T) {
	job, dir := newExportJob(t)
	path, err := job.Export(context.Background(), ReportExportPayload{ExportID: exportID, Kind: "payout", Format: "formatted"})
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, exportID+"_payout_2024-04-05.csv"), path)
}

func TestReportExportSkipsRetryOnBadPayload(t *testing.T) {
	job, _ := newExportJob(t)

	err := job.Handle(context.Background(), asynq.NewTask(TaskReportExport, []byte("{")))
	assert.True(t, errors.Is(err, asynq.SkipRetry))

	err = job.Handle(context.Background(), task(t, ReportExportPayload{ExportID: "nope", Kind: "payout"}))
	assert.True(t, errors.Is(err, asynq.SkipRetry))

	err = job.Handle(context.Background(), task(t, ReportExportPayload{ExportID: exportID, Kind: "weekly"}))
	assert.True(t, errors.Is(err, asynq.SkipRetry))

	err = job.Handle(context.Background(), task(t, ReportExportPayload{ExportID: exportID, Kind: "payout", From: "2024-05-01", To: "2024-04-01"}))
	assert.True(t, errors.Is(err, asynq.SkipRetry))

	_, err = job.Export(context.Background(), ReportExportPayload{ExportID: exportID, Kind: "payout", Format: "xlsx"})
	assert.ErrorIs(t, err, shared.ErrValidation)
}

func TestNewReportExportTaskAssignsID(t *testing.T) {
	task, payload, err := NewReportExportTask(ReportExportPayload{Kind: "payout"})
	require.NoError(t, err)
	assert.Equal(t, TaskReportExport, task.Type())
	assert.NotEmpty(t, payload.ExportID)

	var decoded ReportExportPayload
	require.NoError(t, json.Unmarshal(task.Payload(), &decoded))
	assert.Equal(t, payload.ExportID, decoded.ExportID)

	_, _, err = NewReportExportTask(ReportExportPayload{Kind: "weekly"})
	require.Error(t, err)
}

func TestScheduledExportGetsFreshID(t *testing.T) {
	job, dir := newExportJob(t)
	scheduled, err := NewScheduledExportTask("roi-income", "")
	require.NoError(t, err)
	require.NoError(t, job.Handle(context.Background(), scheduled))

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.True(t, strings.HasSuffix(entries[0].Name(), "_roi-income_2024-04-05.csv"), entries[0].Name())

	_, err = NewScheduledExportTask("weekly", "")
	require.Error(t, err)
}
