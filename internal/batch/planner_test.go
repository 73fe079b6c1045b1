package batch

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"sitelens/internal/domain"
	"sitelens/internal/template"
)

func testCharts() []domain.ChartDefinition {
	return []domain.ChartDefinition{
		{ID: "countries", Kind: domain.ChartKindTable, Dimension: "country", Template: "SELECT ..."},
		{ID: "devices", Kind: domain.ChartKindTable, Dimension: "device", Template: "SELECT ..."},
		{ID: "traffic", Kind: domain.ChartKindTimeSeries, Template: "SELECT ..."},
		{ID: "header", Kind: domain.ChartKindComposite},
	}
}

func visitorsFilter() domain.FilterState {
	return domain.FilterState{Metric: domain.MetricVisitors}
}

func newTestPlanner(t *testing.T) *Planner {
	t.Helper()
	r := template.NewResolver("site-42", "`analytics.events`", time.UTC)
	r.SetNow(func() time.Time { return time.Date(2026, 3, 18, 10, 30, 0, 0, time.UTC) })
	return NewPlanner(r, "site-42", "`analytics.events`", "`analytics.pageviews`")
}

func TestPlan(t *testing.T) {
	t.Parallel()

	t.Run("two batchable charts form one group", func(t *testing.T) {
		t.Parallel()
		p := newTestPlanner(t)

		groups, individual := p.Plan(testCharts(), visitorsFilter())

		require.Len(t, groups, 1)
		assert.Equal(t, []string{"country", "device"}, groups[0].Columns)
		assert.Len(t, groups[0].Charts, 2)

		ids := make([]string, len(individual))
		for i, c := range individual {
			ids[i] = c.ID
		}
		assert.ElementsMatch(t, []string{"traffic", "header"}, ids)
	})

	t.Run("a single batchable chart is left for individual execution", func(t *testing.T) {
		t.Parallel()
		p := newTestPlanner(t)

		charts := []domain.ChartDefinition{
			{ID: "countries", Kind: domain.ChartKindTable, Dimension: "country", Template: "SELECT ..."},
			{ID: "traffic", Kind: domain.ChartKindTimeSeries, Template: "SELECT ..."},
		}
		groups, individual := p.Plan(charts, visitorsFilter())

		assert.Empty(t, groups)
		assert.Len(t, individual, 2)
	})

	t.Run("non-visitor metrics disable batching entirely", func(t *testing.T) {
		t.Parallel()
		p := newTestPlanner(t)

		for _, metric := range []domain.MetricType{domain.MetricVisits, domain.MetricPageviews, domain.MetricProportion} {
			groups, individual := p.Plan(testCharts(), domain.FilterState{Metric: metric})
			assert.Empty(t, groups, "metric %s", metric)
			assert.Len(t, individual, len(testCharts()), "metric %s", metric)
		}
	})

	t.Run("duplicate dimensions collapse in the column union", func(t *testing.T) {
		t.Parallel()
		p := newTestPlanner(t)

		charts := []domain.ChartDefinition{
			{ID: "a", Dimension: "country", Template: "x"},
			{ID: "b", Dimension: "country", Template: "x"},
			{ID: "c", Dimension: "browser", Template: "x"},
		}
		groups, _ := p.Plan(charts, visitorsFilter())

		require.Len(t, groups, 1)
		assert.Equal(t, []string{"browser", "country"}, groups[0].Columns)
	})
}

func TestCombinedSQL(t *testing.T) {
	t.Parallel()

	p := newTestPlanner(t)
	groups, _ := p.Plan(testCharts(), visitorsFilter())
	require.Len(t, groups, 1)

	sql, params := p.CombinedSQL(groups[0], domain.FilterState{
		URLFilters: []string{"/docs"},
		PathOp:     domain.PathOpStartsWith,
		Range:      domain.DateRange{Preset: domain.RangeLast7Days},
	})

	assert.Contains(t, sql, "SELECT DISTINCT e.session_id, e.country, e.device")
	assert.Contains(t, sql, "FROM `analytics.events` e")
	assert.Contains(t, sql, "JOIN `analytics.pageviews` pg ON pg.session_id = e.session_id")
	assert.Contains(t, sql, "e.website_id = 'site-42'")
	assert.Contains(t, sql, "pg.path LIKE '/docs%'")
	assert.Contains(t, sql, "e.created_at BETWEEN @from_ts AND @to_ts")
	assert.Contains(t, sql, "LIMIT 50000")

	now := time.Date(2026, 3, 18, 10, 30, 0, 0, time.UTC)
	assert.Equal(t, map[string]interface{}{
		"from_ts": now.AddDate(0, 0, -7),
		"to_ts":   now,
	}, params)
}

func TestCombinedSQL_NoURLFiltersUsesDefaultPath(t *testing.T) {
	t.Parallel()

	p := newTestPlanner(t)
	groups, _ := p.Plan(testCharts(), visitorsFilter())
	require.Len(t, groups, 1)

	sql, _ := p.CombinedSQL(groups[0], domain.FilterState{Range: domain.DateRange{Preset: domain.RangeToday}})
	assert.Contains(t, sql, "pg.path = '/'")
}
