package api

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"sitelens/internal/annotate"
	"sitelens/internal/batch"
	"sitelens/internal/cost"
	"sitelens/internal/dashboard"
	"sitelens/internal/domain"
	"sitelens/internal/middleware"
	"sitelens/internal/service/charts"
	"sitelens/internal/template"
	"sitelens/internal/testutil"
)

const (
	testEvents = "`analytics.events`"
	testPages  = "`analytics.pageviews`"
)

func newTestServer(t *testing.T, wh *testutil.MockWarehouse, history domain.HistoryRepository) http.Handler {
	t.Helper()

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	dash := dashboard.Default(testEvents, testPages)
	resolver := template.NewResolver("site-1", testEvents, time.UTC)
	planner := batch.NewPlanner(resolver, "site-1", testEvents, testPages)
	estimator := cost.New(wh, 6.25, logger)

	svc := charts.NewChartService(dash, resolver, planner, annotate.New(), estimator, wh, "EU", logger)
	if history != nil {
		svc.SetHistory(history)
	}

	h := NewHandler(svc, dash, history, logger)
	return NewRouter(h, RouterConfig{
		AllowedOrigins: []string{"*"},
		RateLimit:      middleware.RateLimitConfig{RequestsPerSecond: 1000, Burst: 1000},
	})
}

func doGet(t *testing.T, h http.Handler, path string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, path, nil)
	req.Header.Set("X-Identity", "tester@example.com")
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)
	return rr
}

func TestHealth(t *testing.T) {
	t.Parallel()

	h := newTestServer(t, &testutil.MockWarehouse{}, nil)
	rr := doGet(t, h, "/healthz")
	assert.Equal(t, http.StatusOK, rr.Code)
	assert.JSONEq(t, `{"status":"ok"}`, rr.Body.String())
}

func TestCharts_List(t *testing.T) {
	t.Parallel()

	h := newTestServer(t, &testutil.MockWarehouse{}, nil)
	rr := doGet(t, h, "/api/v1/charts")
	require.Equal(t, http.StatusOK, rr.Code)

	var body struct {
		Charts []struct {
			ID   string `json:"id"`
			Kind string `json:"kind"`
		} `json:"charts"`
	}
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &body))
	assert.NotEmpty(t, body.Charts)
	for _, c := range body.Charts {
		assert.NotEmpty(t, c.ID)
		assert.NotEmpty(t, c.Kind)
	}
}

func TestDashboard(t *testing.T) {
	t.Parallel()

	wh := &testutil.MockWarehouse{}
	h := newTestServer(t, wh, nil)

	rr := doGet(t, h, "/api/v1/dashboard?period=last_7_days&path=/pricing&metric=visitors")
	require.Equal(t, http.StatusOK, rr.Code)

	var view charts.View
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &view))
	assert.NotEmpty(t, view.Charts)

	// Every submitted execution carries the caller identity label.
	for _, req := range wh.Executions() {
		assert.Equal(t, "tester-example-com", req.Labels["requested_by"])
	}
}

func TestDashboard_InvalidFilters(t *testing.T) {
	t.Parallel()

	h := newTestServer(t, &testutil.MockWarehouse{}, nil)

	tests := []struct {
		name string
		path string
	}{
		{"unknown metric", "/api/v1/dashboard?metric=bounce"},
		{"unknown pathOp", "/api/v1/dashboard?pathOp=regex"},
		{"half custom range", "/api/v1/dashboard?from=2026-01-01"},
		{"bad date", "/api/v1/dashboard?from=nope&to=2026-01-31"},
		{"inverted range", "/api/v1/dashboard?from=2026-02-01&to=2026-01-01"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			rr := doGet(t, h, tt.path)
			assert.Equal(t, http.StatusBadRequest, rr.Code)
		})
	}
}

func TestChartSQL(t *testing.T) {
	t.Parallel()

	h := newTestServer(t, &testutil.MockWarehouse{}, nil)

	rr := doGet(t, h, "/api/v1/charts/top-pages/sql?period=yesterday")
	require.Equal(t, http.StatusOK, rr.Code)

	var body map[string]string
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &body))
	assert.Equal(t, "top-pages", body["chartId"])
	assert.Contains(t, body["sql"], "site-1")
	assert.NotContains(t, body["sql"], "@from_ts")
	assert.NotContains(t, body["sql"], "{{")
}

func TestChartSQL_CustomRangeCoversFinalDay(t *testing.T) {
	t.Parallel()

	h := newTestServer(t, &testutil.MockWarehouse{}, nil)

	rr := doGet(t, h, "/api/v1/charts/top-pages/sql?from=2026-01-01&to=2026-01-31")
	require.Equal(t, http.StatusOK, rr.Code)

	var body map[string]string
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &body))
	assert.Contains(t, body["sql"], "TIMESTAMP('2026-01-01 00:00:00')")
	assert.Contains(t, body["sql"], "TIMESTAMP('2026-01-31 23:59:59')")
}

func TestChartSQL_NotFound(t *testing.T) {
	t.Parallel()

	h := newTestServer(t, &testutil.MockWarehouse{}, nil)
	rr := doGet(t, h, "/api/v1/charts/missing/sql")
	assert.Equal(t, http.StatusNotFound, rr.Code)
}

func TestHistory(t *testing.T) {
	t.Parallel()

	repo := &testutil.MockHistoryRepo{}
	repo.Seed(&domain.QueryRecord{
		ID:            "rec-1",
		PrincipalName: "tester@example.com",
		ChartID:       "top-pages",
		Status:        "OK",
		CreatedAt:     time.Now().UTC(),
	})

	h := newTestServer(t, &testutil.MockWarehouse{}, repo)
	rr := doGet(t, h, "/api/v1/history")
	require.Equal(t, http.StatusOK, rr.Code)

	var body struct {
		Records []*domain.QueryRecord `json:"records"`
	}
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &body))
	require.Len(t, body.Records, 1)
	assert.Equal(t, "rec-1", body.Records[0].ID)
}

func TestHistory_LimitValidation(t *testing.T) {
	t.Parallel()

	h := newTestServer(t, &testutil.MockWarehouse{}, &testutil.MockHistoryRepo{})
	rr := doGet(t, h, "/api/v1/history?limit=0")
	assert.Equal(t, http.StatusBadRequest, rr.Code)
}

func TestDashboard_WarehouseFailureSurfacesPerChart(t *testing.T) {
	t.Parallel()

	wh := &testutil.MockWarehouse{
		RunFn: func(_ context.Context, req *domain.QueryRequest) (*domain.RunResult, error) {
			if req.DryRun {
				return &domain.RunResult{BytesProcessed: 1 << 30}, nil
			}
			return nil, assert.AnError
		},
	}
	h := newTestServer(t, wh, nil)

	rr := doGet(t, h, "/api/v1/dashboard?period=today")
	require.Equal(t, http.StatusOK, rr.Code)

	var view charts.View
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &view))
	for _, c := range view.Charts {
		if c.Kind == domain.ChartKindComposite {
			continue
		}
		assert.NotEmpty(t, c.Error, "chart %s should carry the execution error", c.ChartID)
	}
}
