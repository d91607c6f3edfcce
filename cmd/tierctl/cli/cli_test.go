package cli

import (
	"bytes"
	"context"
	"encoding/csv"
	"encoding/json"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/hibiken/asynq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tierline/tierline/internal/hierarchy"
	"github.com/tierline/tierline/internal/program/programtest"
	"github.com/tierline/tierline/internal/reports"
	"github.com/tierline/tierline/internal/reports/export"
	"github.com/tierline/tierline/jobs"
)

type stubQueue struct {
	payload jobs.ReportExportPayload
	stats   QueueStats
	err     error
}

func (q *stubQueue) Trigger(ctx context.Context, payload jobs.ReportExportPayload) (*asynq.TaskInfo, jobs.ReportExportPayload, error) {
	if q.err != nil {
		return nil, payload, q.err
	}
	payload.ExportID = "6f1c1a52-5b43-4f53-9d2a-1f4f7f0b9a11"
	q.payload = payload
	return &asynq.TaskInfo{ID: "task-1"}, payload, nil
}

func (q *stubQueue) InspectQueue(ctx context.Context) (QueueStats, error) {
	return q.stats, q.err
}

func testDeps(queue JobQueue) Deps {
	at := time.Date(2025, 3, 5, 10, 0, 0, 0, time.UTC)
	f := programtest.New().
		AddMember(programtest.Member{Key: "ka", MemberID: "TL001", Name: "Asha", Status: "active_leader"}).
		AddMember(programtest.Member{Key: "kb", MemberID: "TL002", Name: "Bela", ReferrerKey: "ka", Status: "active_investor"}).
		AddMember(programtest.Member{Key: "kc", MemberID: "TL003", Name: "Chen", ReferrerKey: "kb"}).
		AddHolding("kb", "active", 1500).
		AddEntry("ka", "direct_referral", 1000, at).
		AddWithdrawal("ka", "paid", 400, 340)
	repo := f.Repository()
	return Deps{
		Levels:  hierarchy.NewBuilder(repo, hierarchy.Options{}),
		Reports: reports.NewService(repo, reports.Config{}),
		Jobs:    queue,
		Format:  export.Format{Mode: export.ModeRaw, Symbol: "₹"},
	}
}

func execute(t *testing.T, deps Deps, args ...string) (string, string, error) {
	t.Helper()
	cmd := NewRootCommand(deps)
	stdout := new(bytes.Buffer)
	stderr := new(bytes.Buffer)
	cmd.SetOut(stdout)
	cmd.SetErr(stderr)
	cmd.SetArgs(args)
	err := cmd.ExecuteContext(context.Background())
	return stdout.String(), stderr.String(), err
}

func TestLevelsTable(t *testing.T) {
	out, _, err := execute(t, testDeps(nil), "levels", "--root", "tl001")
	require.NoError(t, err)
	assert.Contains(t, out, "Member ID")
	assert.Contains(t, out, "TL003")
	assert.Contains(t, out, "level 1: 1 members, business volume 1500.00")
}

func TestLevelsCSVSingleLevel(t *testing.T) {
	out, _, err := execute(t, testDeps(nil), "levels", "--root", "TL001", "--level", "1", "--csv", "--format", "formatted")
	require.NoError(t, err)
	records, err := csv.NewReader(strings.NewReader(out)).ReadAll()
	require.NoError(t, err)
	require.Len(t, records, 2)
	assert.Equal(t, export.LevelHeader, records[0])
	assert.Equal(t, "TL002", records[1][1])
	assert.Equal(t, "₹1,500.00", records[1][5])
}

func TestLevelsRejectsBadInput(t *testing.T) {
	_, _, err := execute(t, testDeps(nil), "levels")
	require.Error(t, err)

	_, _, err = execute(t, testDeps(nil), "levels", "--root", "TL001", "--level", "two")
	require.Error(t, err)

	_, _, err = execute(t, testDeps(nil), "levels", "--root", "TL404")
	require.Error(t, err)
}

func TestReportTableIncludesTotals(t *testing.T) {
	out, _, err := execute(t, testDeps(nil), "report", "payout", "--from", "2025-03-01", "--to", "2025-03-31")
	require.NoError(t, err)
	lines := strings.Split(strings.TrimSpace(out), "\n")
	require.Len(t, lines, 3)
	assert.Contains(t, lines[0], "Member ID")
	assert.Contains(t, lines[1], "TL001")
	assert.True(t, strings.HasPrefix(lines[2], "TOTAL"))
}

func TestReportCSV(t *testing.T) {
	out, _, err := execute(t, testDeps(nil), "report", "direct-income", "--csv")
	require.NoError(t, err)
	records, err := csv.NewReader(strings.NewReader(out)).ReadAll()
	require.NoError(t, err)
	require.Len(t, records, 2)
	assert.Equal(t, "TL001", records[1][0])
}

func TestReportValidation(t *testing.T) {
	_, _, err := execute(t, testDeps(nil), "report", "weekly")
	require.Error(t, err)

	_, _, err = execute(t, testDeps(nil), "report", "payout", "--from", "2025-04-01", "--to", "2025-03-01")
	require.Error(t, err)

	_, _, err = execute(t, testDeps(nil), "report", "payout", "--format", "xlsx")
	require.Error(t, err)
}

func TestJobsTrigger(t *testing.T) {
	queue := &stubQueue{}
	out, _, err := execute(t, testDeps(queue), "jobs", "trigger", "payout", "--from", "2025-03-01", "--show-zero")
	require.NoError(t, err)
	assert.Contains(t, out, "queued export 6f1c1a52-5b43-4f53-9d2a-1f4f7f0b9a11 (task task-1)")
	assert.Equal(t, "payout", queue.payload.Kind)
	assert.Equal(t, "2025-03-01", queue.payload.From)
	assert.True(t, queue.payload.ShowZeroBalance)

	_, _, err = execute(t, testDeps(&stubQueue{err: errors.New("redis down")}), "jobs", "trigger", "payout")
	require.Error(t, err)

	_, _, err = execute(t, testDeps(nil), "jobs", "trigger", "payout")
	require.Error(t, err)
}

func TestJobsInspectJSON(t *testing.T) {
	queue := &stubQueue{stats: QueueStats{Queue: jobs.QueueDefault, Pending: 2, Failed: 1}}
	out, _, err := execute(t, testDeps(queue), "jobs", "inspect", "--json")
	require.NoError(t, err)

	var stats QueueStats
	require.NoError(t, json.Unmarshal([]byte(out), &stats))
	assert.Equal(t, queue.stats, stats)
}
