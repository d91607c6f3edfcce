package reporthttp

import (
	"context"
	"encoding/csv"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/hibiken/asynq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tierline/tierline/internal/program/programtest"
	"github.com/tierline/tierline/internal/reports"
	"github.com/tierline/tierline/internal/reports/export"
	"github.com/tierline/tierline/jobs"
)

type stubQueue struct {
	last jobs.ReportExportPayload
	err  error
}

func (q *stubQueue) EnqueueReportExport(ctx context.Context, payload jobs.ReportExportPayload) (*asynq.TaskInfo, jobs.ReportExportPayload, error) {
	if q.err != nil {
		return nil, payload, q.err
	}
	payload.ExportID = "2d0f9a35-0f5e-4b55-a3a6-8c0f3c9f0c01"
	q.last = payload
	return &asynq.TaskInfo{ID: "task-1"}, payload, nil
}

func day(d int) time.Time {
	return time.Date(2025, 3, d, 10, 0, 0, 0, time.UTC)
}

func newTestRouter(t *testing.T, queue ExportQueue) http.Handler {
	t.Helper()
	f := programtest.New().
		AddMember(programtest.Member{Key: "ka", MemberID: "TL001", Name: "Asha", Phone: "98450"}).
		AddMember(programtest.Member{Key: "kb", MemberID: "TL002", Name: "Bela", ReferrerKey: "ka"}).
		AddMember(programtest.Member{Key: "kc", MemberID: "TL003", Name: "Chen", ReferrerKey: "ka"}).
		AddEntry("ka", "direct_referral", 1000, day(1)).
		AddEntry("ka", "daily_roi", 200, day(5)).
		AddEntry("kb", "level_roi", 100, day(20)).
		AddWithdrawal("ka", "paid", 500, 425)
	svc := reports.NewService(f.Repository(), reports.Config{})
	svc.WithNow(func() time.Time { return time.Date(2025, 4, 1, 6, 0, 0, 0, time.UTC) })
	handler := NewHandler(nil, svc, queue, nil, Options{Format: export.Format{Mode: export.ModeRaw, Symbol: "₹"}})

	r := chi.NewRouter()
	handler.MountRoutes(r)
	return r
}

func get(t *testing.T, router http.Handler, target string) *httptest.ResponseRecorder {
	t.Helper()
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, target, nil))
	return rr
}

func TestReportJSON(t *testing.T) {
	rr := get(t, newTestRouter(t, nil), "/api/reports/payout")
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())

	var resp struct {
		Report  string `json:"report"`
		Matched int    `json:"matched"`
		Rows    []struct {
			MemberID        string `json:"member_id"`
			BalanceToBePaid string `json:"balance_to_be_paid"`
		} `json:"rows"`
		Totals struct {
			NetAmount string `json:"net_amount"`
		} `json:"totals"`
		Columns []struct {
			Key string `json:"key"`
		} `json:"columns"`
	}
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &resp))
	assert.Equal(t, "payout", resp.Report)
	assert.Equal(t, 2, resp.Matched)
	require.Len(t, resp.Rows, 2)
	assert.Equal(t, "TL001", resp.Rows[0].MemberID)
	assert.Equal(t, "520", resp.Rows[0].BalanceToBePaid)
	assert.Equal(t, "1105", resp.Totals.NetAmount)
	assert.Equal(t, "balance_to_be_paid", resp.Columns[len(resp.Columns)-1].Key)
}

func TestReportSearchSortAndPaginate(t *testing.T) {
	router := newTestRouter(t, nil)

	rr := get(t, router, "/api/reports/payout?q=bela")
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Contains(t, rr.Body.String(), `"matched":1`)

	rr = get(t, router, "/api/reports/payout?sort=net_amount&order=asc&per_page=1")
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Contains(t, rr.Body.String(), `"member_id":"TL002"`)
	assert.NotContains(t, rr.Body.String(), `"member_id":"TL001"`)
	assert.Contains(t, rr.Body.String(), `"total_pages":2`)
}

func TestReportValidation(t *testing.T) {
	router := newTestRouter(t, nil)
	cases := []string{
		"/api/reports/weekly",
		"/api/reports/payout?from=2025-04-01&to=2025-03-01",
		"/api/reports/payout?from=01-03-2025",
		"/api/reports/payout?show_zero=maybe",
		"/api/reports/payout?sort=colour",
		"/api/reports/payout?order=sideways",
		"/api/reports/payout?page=0",
		"/api/reports/payout?per_page=9999",
	}
	for _, target := range cases {
		rr := get(t, router, target)
		if rr.Code != http.StatusBadRequest {
			t.Fatalf("%s: expected 400, got %d (%s)", target, rr.Code, rr.Body.String())
		}
	}
}

func TestReportCSVExport(t *testing.T) {
	rr := get(t, newTestRouter(t, nil), "/api/reports/payout/export.csv?from=2025-03-01&to=2025-03-31&show_zero=true")
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())
	assert.Equal(t, "text/csv; charset=utf-8", rr.Header().Get("Content-Type"))
	assert.Equal(t, `attachment; filename="payout_2025-03-01_to_2025-03-31.csv"`, rr.Header().Get("Content-Disposition"))
	assert.True(t, strings.HasSuffix(rr.Body.String(), "\r\n"))

	records, err := csv.NewReader(strings.NewReader(rr.Body.String())).ReadAll()
	require.NoError(t, err)
	require.Len(t, records, 4, "header plus every member when zero balances are shown")
	assert.Equal(t, "Member ID", records[0][0])
	assert.Equal(t, "98450", records[1][2])
}

func TestReportCSVOpenWindowUsesToday(t *testing.T) {
	rr := get(t, newTestRouter(t, nil), "/api/reports/roi-income/export.csv?format=formatted")
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())
	assert.Equal(t, `attachment; filename="roi-income_2025-04-01.csv"`, rr.Header().Get("Content-Disposition"))
	assert.Contains(t, rr.Body.String(), `"₹200.00"`)
}

func TestReportKinds(t *testing.T) {
	rr := get(t, newTestRouter(t, nil), "/api/reports")
	require.Equal(t, http.StatusOK, rr.Code)
	var kinds []KindInfo
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &kinds))
	assert.Len(t, kinds, 6)
}

func TestEnqueueExport(t *testing.T) {
	queue := &stubQueue{}
	router := newTestRouter(t, queue)
	rr := httptest.NewRecorder()
	body := strings.NewReader(`{"from":"2025-03-01","to":"2025-03-31","format":"formatted"}`)
	router.ServeHTTP(rr, httptest.NewRequest(http.MethodPost, "/api/reports/payout/exports", body))
	require.Equal(t, http.StatusAccepted, rr.Code, rr.Body.String())

	var accepted ExportAccepted
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &accepted))
	assert.Equal(t, "task-1", accepted.TaskID)
	assert.NotEmpty(t, accepted.ExportID)
	assert.Equal(t, "payout", queue.last.Kind)
	assert.Equal(t, "formatted", queue.last.Format)
}

func TestEnqueueExportFailures(t *testing.T) {
	rr := httptest.NewRecorder()
	newTestRouter(t, nil).ServeHTTP(rr, httptest.NewRequest(http.MethodPost, "/api/reports/payout/exports", nil))
	assert.Equal(t, http.StatusServiceUnavailable, rr.Code)

	rr = httptest.NewRecorder()
	newTestRouter(t, &stubQueue{}).ServeHTTP(rr, httptest.NewRequest(http.MethodPost, "/api/reports/weekly/exports", nil))
	assert.Equal(t, http.StatusBadRequest, rr.Code)

	rr = httptest.NewRecorder()
	newTestRouter(t, &stubQueue{err: errors.New("redis down")}).ServeHTTP(rr, httptest.NewRequest(http.MethodPost, "/api/reports/payout/exports", nil))
	assert.Equal(t, http.StatusServiceUnavailable, rr.Code)
}
