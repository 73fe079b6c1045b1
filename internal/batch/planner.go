// Package batch merges structurally-similar chart queries into one combined
// warehouse scan and reconstructs each chart's result from the merged rows.
//
// Each per-chart query independently re-scans the same base event/session
// join; replacing N scans with one scan over the union of needed columns
// reduces billed bytes roughly N-fold for the batched subset.
package batch

import (
	"fmt"
	"sort"
	"strings"

	"sitelens/internal/domain"
	"sitelens/internal/template"
)

// CombinedRowCap bounds the result size of a combined scan.
const CombinedRowCap = 50000

// Group is a set of chart definitions sharing one filter state that will be
// served by a single combined scan, plus the union of grouping columns the
// member charts need. Computed per request, discarded after execution.
type Group struct {
	Charts  []domain.ChartDefinition
	Columns []string
}

// Planner partitions a dashboard's charts into combined-scan groups and an
// individually-executed remainder, and builds the combined queries.
type Planner struct {
	resolver    *template.Resolver
	websiteID   string
	eventsTable string
	pagesTable  string
}

// NewPlanner creates a Planner over the given base tables.
func NewPlanner(resolver *template.Resolver, websiteID, eventsTable, pagesTable string) *Planner {
	return &Planner{
		resolver:    resolver,
		websiteID:   websiteID,
		eventsTable: eventsTable,
		pagesTable:  pagesTable,
	}
}

// Plan splits charts into at most one combined group plus the charts to run
// individually. All charts passed in share the filter state f (grouping by
// identical state happens at the request boundary), so the only decision is
// which of them are batchable under f. A group is formed only when two or
// more batchable charts exist; merging has no benefit for one.
//
// The combined scan can only reconstruct distinct-session counts, so any
// metric other than visitors disqualifies every chart from batching: the
// per-chart templates would substitute a different aggregate, and a batched
// result must match the unbatched one exactly.
func (p *Planner) Plan(charts []domain.ChartDefinition, f domain.FilterState) (groups []Group, individual []domain.ChartDefinition) {
	if f.Metric != domain.MetricVisitors {
		return nil, charts
	}

	var batchable []domain.ChartDefinition
	for _, c := range charts {
		if c.Batchable() {
			batchable = append(batchable, c)
		} else {
			individual = append(individual, c)
		}
	}

	if len(batchable) < 2 {
		return nil, append(individual, batchable...)
	}

	seen := make(map[string]bool)
	var cols []string
	for _, c := range batchable {
		if !seen[c.Dimension] {
			seen[c.Dimension] = true
			cols = append(cols, c.Dimension)
		}
	}
	sort.Strings(cols)

	return []Group{{Charts: batchable, Columns: cols}}, individual
}

// CombinedSQL builds the single scan covering every column the group needs,
// under the same URL and date filters the per-chart templates would have
// applied individually. The window is bound as named parameters, like every
// resolved per-chart query.
func (p *Planner) CombinedSQL(g Group, f domain.FilterState) (string, map[string]interface{}) {
	cols := make([]string, len(g.Columns))
	for i, c := range g.Columns {
		cols[i] = "e." + c
	}

	from, to := p.resolver.Window(f)

	var b strings.Builder
	fmt.Fprintf(&b, "SELECT DISTINCT e.session_id, %s\n", strings.Join(cols, ", "))
	fmt.Fprintf(&b, "FROM %s e\nJOIN %s pg ON pg.session_id = e.session_id\n", p.eventsTable, p.pagesTable)
	fmt.Fprintf(&b, "WHERE e.website_id = '%s'\n", template.EscapeString(p.websiteID))
	fmt.Fprintf(&b, "  AND %s\n", template.PathCondition("pg.path", "/", f))
	fmt.Fprintf(&b, "  AND %s\n", template.DateCondition("e.created_at"))
	fmt.Fprintf(&b, "LIMIT %d", CombinedRowCap)

	return b.String(), map[string]interface{}{
		template.ParamFrom: from,
		template.ParamTo:   to,
	}
}
