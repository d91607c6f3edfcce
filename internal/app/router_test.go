package app

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	levelhttp "github.com/tierline/tierline/internal/hierarchy/http"
	"github.com/tierline/tierline/internal/observability"
	portalhttp "github.com/tierline/tierline/internal/portal/http"
	reporthttp "github.com/tierline/tierline/internal/reports/http"
	"github.com/tierline/tierline/jobs"
)

func newTestRouter(t *testing.T) http.Handler {
	t.Helper()
	cfg := &Config{
		DocstoreDriver:   DriverMemory,
		DocstoreFixture:  sampleFixture,
		AppTimezone:      "Asia/Kolkata",
		FetchConcurrency: 2,
		LevelMaxDepth:    10,
		CurrencySymbol:   "₹",
		CurrencyLocale:   "en-IN",
		LogFormat:        "json",
	}
	require.NoError(t, cfg.Validate())
	store, closeStore, err := OpenStore(context.Background(), cfg, nil)
	require.NoError(t, err)
	t.Cleanup(closeStore)

	metrics := observability.NewMetrics()
	svc, err := NewServices(cfg, store, metrics.Registerer(), nil)
	require.NoError(t, err)

	return NewRouter(RouterParams{
		Config:        cfg,
		LevelHandler:  levelhttp.NewHandler(nil, svc.Levels, nil, levelhttp.Options{Format: svc.Format, Location: svc.Location}),
		ReportHandler: reporthttp.NewHandler(nil, svc.Reports, nil, nil, reporthttp.Options{Format: svc.Format}),
		PortalHandler: portalhttp.NewHandler(nil, svc.Portal),
		JobHandler:    jobs.NewHandler(nil, nil),
		Metrics:       metrics,
	})
}

func serve(router http.Handler, target string) *httptest.ResponseRecorder {
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, target, nil))
	return rr
}

func TestRouterHealthz(t *testing.T) {
	rr := serve(newTestRouter(t), "/healthz")
	require.Equal(t, http.StatusOK, rr.Code)
	assert.JSONEq(t, `{"status":"ok"}`, rr.Body.String())
	assert.Equal(t, "nosniff", rr.Header().Get("X-Content-Type-Options"))
}

func TestRouterMountsConsoleRoutes(t *testing.T) {
	router := newTestRouter(t)

	rr := serve(router, "/api/levels?root=tl0001")
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())
	var levels struct {
		Root struct {
			MemberID string `json:"member_id"`
		} `json:"root"`
	}
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &levels))
	assert.Equal(t, "TL0001", levels.Root.MemberID)

	rr = serve(router, "/api/reports/payout")
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())

	rr = serve(router, "/api/reports/payout/export.csv")
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())
	assert.True(t, strings.HasPrefix(rr.Header().Get("Content-Type"), "text/csv"))

	rr = serve(router, "/api/members/TL0001/dashboard")
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())

	rr = serve(router, "/api/members/TL9999/dashboard")
	assert.Equal(t, http.StatusNotFound, rr.Code)

	rr = serve(router, "/jobs/health")
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Contains(t, rr.Body.String(), `"queue":"default"`)
}

func TestRouterExposesMetrics(t *testing.T) {
	router := newTestRouter(t)
	require.Equal(t, http.StatusOK, serve(router, "/api/reports/direct-income").Code)

	rr := serve(router, "/metrics")
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Contains(t, rr.Body.String(), "tierline_http_requests_total")
	assert.Contains(t, rr.Body.String(), "tierline_report_build_duration_seconds")
}
