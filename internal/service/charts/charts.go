// Package charts orchestrates dashboard views: it plans combined scans,
// resolves templates, annotates and submits warehouse requests, and
// reassembles per-chart results.
package charts

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"sitelens/internal/annotate"
	"sitelens/internal/batch"
	"sitelens/internal/cost"
	"sitelens/internal/domain"
	"sitelens/internal/inline"
	"sitelens/internal/template"
)

// combinedAnalysis is the analysis-category label of combined scans.
const combinedAnalysis = "combined-scan"

// ChartData is the final per-chart dataset of a view.
type ChartData struct {
	ChartID string                   `json:"chartId"`
	Title   string                   `json:"title"`
	Kind    domain.ChartKind         `json:"kind"`
	Columns []string                 `json:"columns,omitempty"`
	Rows    []map[string]interface{} `json:"rows,omitempty"`
	Values  []batch.ValueCount       `json:"values,omitempty"`
	Stats   *domain.QueryStats       `json:"queryStats"`
	Batched bool                     `json:"batched"`
	Error   string                   `json:"error,omitempty"`
}

// View is a complete dashboard response, charts in definition order.
type View struct {
	Charts []ChartData `json:"charts"`
}

// ChartService drives the query engine for a dashboard.
type ChartService struct {
	dash      *domain.Dashboard
	resolver  *template.Resolver
	planner   *batch.Planner
	annotator *annotate.Annotator
	estimator *cost.Estimator
	warehouse domain.Warehouse
	history   domain.HistoryRepository
	location  string
	logger    *slog.Logger
}

// NewChartService wires the engine components for one dashboard.
func NewChartService(
	dash *domain.Dashboard,
	resolver *template.Resolver,
	planner *batch.Planner,
	annotator *annotate.Annotator,
	estimator *cost.Estimator,
	warehouse domain.Warehouse,
	location string,
	logger *slog.Logger,
) *ChartService {
	return &ChartService{
		dash:      dash,
		resolver:  resolver,
		planner:   planner,
		annotator: annotator,
		estimator: estimator,
		warehouse: warehouse,
		location:  location,
		logger:    logger,
	}
}

// SetHistory configures query history recording. Optional — when unset,
// executions are not recorded.
func (s *ChartService) SetHistory(repo domain.HistoryRepository) { s.history = repo }

// BuildView executes every chart of the dashboard under the filter state
// and returns the per-chart datasets. Batched groups and individual charts
// run concurrently; a combined-scan failure falls back to individual
// execution, and only real per-chart execution failures surface, as
// user-facing messages on the affected charts.
func (s *ChartService) BuildView(ctx context.Context, principal string, f domain.FilterState) (*View, error) {
	f = normalize(f)

	slots := make(map[string]int, len(s.dash.Charts))
	results := make([]ChartData, len(s.dash.Charts))
	for i, c := range s.dash.Charts {
		slots[c.ID] = i
		results[i] = ChartData{ChartID: c.ID, Title: c.Title, Kind: c.Kind}
	}

	groups, individual := s.planner.Plan(s.dash.Charts, f)

	g, gctx := errgroup.WithContext(ctx)
	for _, grp := range groups {
		g.Go(func() error {
			for _, data := range s.runGroup(gctx, principal, f, grp) {
				results[slots[data.ChartID]] = data
			}
			return nil
		})
	}
	for _, chart := range individual {
		if chart.Template == "" {
			continue // composite charts carry no data of their own
		}
		g.Go(func() error {
			results[slots[chart.ID]] = s.runChart(gctx, principal, f, chart, false)
			return nil
		})
	}

	// Worker errors are carried per chart, never returned; Wait only
	// propagates context cancellation.
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return &View{Charts: results}, nil
}

// RenderSQL resolves a chart's template under the filter state and inlines
// the bound parameters, producing the self-contained SQL string shown for
// auditing and sharing.
func (s *ChartService) RenderSQL(chartID string, f domain.FilterState) (string, error) {
	chart := s.dash.Chart(chartID)
	if chart == nil {
		return "", domain.ErrNotFound("chart %q not found", chartID)
	}
	if chart.Template == "" {
		return "", domain.ErrValidation("chart %q has no query", chartID)
	}
	sql, params := s.resolver.Resolve(chart.Template, normalize(f))
	return inline.Inline(sql, params), nil
}

// runGroup executes one combined scan and reconstructs each member chart's
// result from the merged rows. On execution failure every member falls back
// to its original individual query; batching must never fail a view.
func (s *ChartService) runGroup(ctx context.Context, principal string, f domain.FilterState, grp batch.Group) []ChartData {
	sql, params := s.planner.CombinedSQL(grp, f)

	res, stats, err := s.submit(ctx, principal, sql, params, combinedAnalysis)
	if err != nil {
		s.logger.Warn("combined scan failed, falling back to individual queries",
			"charts", len(grp.Charts), "error", err)
		out := make([]ChartData, len(grp.Charts))
		for i, chart := range grp.Charts {
			out[i] = s.runChart(ctx, principal, f, chart, false)
		}
		return out
	}

	share := batch.ApportionCost(stats, len(grp.Charts))
	out := make([]ChartData, len(grp.Charts))
	for i, chart := range grp.Charts {
		out[i] = ChartData{
			ChartID: chart.ID,
			Title:   chart.Title,
			Kind:    chart.Kind,
			Values:  batch.Aggregate(res.Rows, chart.Dimension),
			Stats:   share,
			Batched: true,
		}
	}
	return out
}

// runChart resolves and executes one chart's own query.
func (s *ChartService) runChart(ctx context.Context, principal string, f domain.FilterState, chart domain.ChartDefinition, batched bool) ChartData {
	data := ChartData{ChartID: chart.ID, Title: chart.Title, Kind: chart.Kind, Batched: batched}

	sql, params := s.resolver.Resolve(chart.Template, f)
	res, stats, err := s.submit(ctx, principal, sql, params, chart.ID)
	data.Stats = stats
	if err != nil {
		data.Error = err.Error()
		return data
	}

	data.Columns = res.Columns
	data.Rows = res.Rows
	return data
}

// submit performs the dry-run estimate and the real execution for one
// resolved query, records history, and returns the rows. The two warehouse
// calls are independent: a failed dry run never blocks the execution.
func (s *ChartService) submit(ctx context.Context, principal, sql string, params map[string]interface{}, analysis string) (*domain.RunResult, *domain.QueryStats, error) {
	dry := &domain.QueryRequest{SQL: sql, Location: s.location, Params: params, DryRun: true}
	s.annotator.Annotate(dry, principal, analysis)
	stats := s.estimator.Estimate(ctx, dry)

	exec := &domain.QueryRequest{SQL: sql, Location: s.location, Params: params}
	s.annotator.Annotate(exec, principal, analysis)

	start := time.Now()
	res, err := s.warehouse.Run(ctx, exec)
	duration := time.Since(start).Milliseconds()

	if err != nil {
		s.record(ctx, principal, analysis, exec.SQL, stats, duration, err)
		return nil, stats, domain.ErrExecution("chart query failed: %v", err)
	}

	// Real executions report scanned bytes too; prefer them over the
	// dry-run approximation when present.
	if res.BytesProcessed > 0 {
		stats = s.estimator.Stats(res.BytesProcessed)
	}
	s.record(ctx, principal, analysis, exec.SQL, stats, duration, nil)
	return res, stats, nil
}

// record persists one execution to query history. Best-effort: history is
// observability, not a correctness requirement.
func (s *ChartService) record(ctx context.Context, principal, chartID, sql string, stats *domain.QueryStats, durationMs int64, execErr error) {
	if s.history == nil {
		return
	}

	rec := &domain.QueryRecord{
		ID:            uuid.NewString(),
		PrincipalName: principal,
		ChartID:       chartID,
		SQLText:       sql,
		Batched:       chartID == combinedAnalysis,
		DurationMs:    durationMs,
		Status:        "OK",
		CreatedAt:     time.Now().UTC(),
	}
	if stats != nil {
		rec.BytesProcessed = stats.BytesProcessed
		rec.EstimatedCost = stats.EstimatedCost
	}
	if execErr != nil {
		rec.Status = "ERROR"
		msg := execErr.Error()
		rec.ErrorMessage = &msg
	}

	if err := s.history.Insert(ctx, rec); err != nil {
		s.logger.Warn("query history insert failed", "error", err)
	}
}

// normalize fills the filter state's defaults: visitors metric, equality
// path matching.
func normalize(f domain.FilterState) domain.FilterState {
	if f.Metric == "" {
		f.Metric = domain.MetricVisitors
	}
	if f.PathOp == "" {
		f.PathOp = domain.PathOpEquals
	}
	return f
}
