// Package template rewrites parameterized chart query templates into
// concrete SQL under a caller-supplied filter state.
//
// Resolution is fail-open by design: the templates are a fixed,
// developer-authored library, so a placeholder that does not match any
// recognized pattern is treated as ordinary SQL text and passed through
// unchanged. This package is not a validator.
package template

import (
	"fmt"
	"regexp"
	"strings"
	"time"

	"sitelens/internal/domain"
)

// Placeholder patterns. The equality block recovers the filtered column
// from the identifier immediately preceding the "=" sign.
var (
	urlBlockRe  = regexp.MustCompile(`([\w.` + "`" + `]+)\s*=\s*\[\[\s*\{\{url_sti\}\}\s*--\]\]\s*'([^']*)'`)
	dateBlockRe = regexp.MustCompile(`\[\[\s*AND\s+\{\{created_at\}\}\s*\]\]`)
	aliasRefRe  = regexp.MustCompile(`\bvisitors\b`)
)

// canonicalAggregate is the distinct-session aggregate every metric-aware
// template carries; metric-keyword substitution recognizes it textually.
const canonicalAggregate = "COUNT(DISTINCT e.session_id) AS visitors"

// dateColumn is the fully-qualified column the conditional date block
// constrains.
const dateColumn = "e.created_at"

// Names of the bound window parameters emitted by the date block.
const (
	ParamFrom = "from_ts"
	ParamTo   = "to_ts"
)

// Resolver rewrites templates for one website. Safe for concurrent use;
// it holds only immutable configuration.
type Resolver struct {
	websiteID   string
	eventsTable string
	loc         *time.Location
	now         func() time.Time
}

// NewResolver creates a Resolver for the given website. eventsTable is the
// fully-qualified base table used by the proportion denominator subquery.
func NewResolver(websiteID, eventsTable string, loc *time.Location) *Resolver {
	return &Resolver{
		websiteID:   websiteID,
		eventsTable: eventsTable,
		loc:         loc,
		now:         time.Now,
	}
}

// SetNow overrides the clock. Intended for tests.
func (r *Resolver) SetNow(now func() time.Time) { r.now = now }

// Resolve replaces every recognized placeholder in tmpl according to the
// filter state, returning the resolved SQL and the named parameters it
// binds (the date window, when the query constrains it). It never fails on
// well-formed input; unrecognized text is left untouched.
func (r *Resolver) Resolve(tmpl string, f domain.FilterState) (string, map[string]interface{}) {
	out := strings.ReplaceAll(tmpl, "{{website_id}}", r.websiteID)
	out = r.resolveURLBlocks(out, f)

	// The removal branch is a no-op path today: every known date range
	// resolves to a window, but the block contract allows the constraint
	// to vanish entirely.
	from, to := r.Window(f)
	clause := ""
	if !from.IsZero() && !to.IsZero() {
		clause = "AND " + DateCondition(dateColumn)
	}
	out = dateBlockRe.ReplaceAllString(out, clause)
	out = r.resolveMetric(out, f)

	var params map[string]interface{}
	if strings.Contains(out, "@"+ParamFrom) {
		params = map[string]interface{}{ParamFrom: from, ParamTo: to}
	}
	return out, params
}

// Window returns the concrete [from, to] pair the filter state's date range
// resolves to, in the resolver's reporting timezone.
func (r *Resolver) Window(f domain.FilterState) (time.Time, time.Time) {
	return Window(f.Range, r.now().In(r.loc))
}

// resolveURLBlocks rewrites every defaultable equality block. With no URL
// filters the bracketed marker is stripped and the default comparison kept;
// otherwise the whole block becomes an equality, LIKE, IN, or LIKE
// disjunction against the recovered column.
func (r *Resolver) resolveURLBlocks(sql string, f domain.FilterState) string {
	return urlBlockRe.ReplaceAllStringFunc(sql, func(m string) string {
		parts := urlBlockRe.FindStringSubmatch(m)
		col, def := parts[1], parts[2]
		return PathCondition(col, def, f)
	})
}

// PathCondition builds the URL-path predicate for col under the filter
// state, with def as the comparison value when no filters are present.
func PathCondition(col, def string, f domain.FilterState) string {
	switch len(f.URLFilters) {
	case 0:
		return fmt.Sprintf("%s = '%s'", col, EscapeString(def))
	case 1:
		v := EscapeString(f.URLFilters[0])
		if f.PathOp == domain.PathOpStartsWith {
			return fmt.Sprintf("%s LIKE '%s%%'", col, v)
		}
		return fmt.Sprintf("%s = '%s'", col, v)
	default:
		if f.PathOp == domain.PathOpStartsWith {
			terms := make([]string, len(f.URLFilters))
			for i, v := range f.URLFilters {
				terms[i] = fmt.Sprintf("%s LIKE '%s%%'", col, EscapeString(v))
			}
			return "(" + strings.Join(terms, " OR ") + ")"
		}
		vals := make([]string, len(f.URLFilters))
		for i, v := range f.URLFilters {
			vals[i] = fmt.Sprintf("'%s'", EscapeString(v))
		}
		return fmt.Sprintf("%s IN (%s)", col, strings.Join(vals, ", "))
	}
}

// DateCondition builds the window predicate over col, referencing the bound
// from/to parameters.
func DateCondition(col string) string {
	return fmt.Sprintf("%s BETWEEN @%s AND @%s", col, ParamFrom, ParamTo)
}

// resolveMetric applies exactly one of the four metric substitution rules
// to the canonical distinct-session aggregate, then renames every later
// standalone reference to the original alias (ORDER BY and friends).
func (r *Resolver) resolveMetric(sql string, f domain.FilterState) string {
	if !strings.Contains(sql, canonicalAggregate) {
		return sql
	}

	var replacement, alias string
	switch f.Metric {
	case domain.MetricPageviews:
		replacement = "COUNT(*) AS pageviews"
		alias = "pageviews"
	case domain.MetricVisits:
		replacement = "COUNT(DISTINCT e.visit_id) AS visits"
		alias = "visits"
	case domain.MetricProportion:
		// The denominator deliberately ignores the URL filter: proportions
		// are relative to total site traffic for the same window, not the
		// filtered subset.
		replacement = fmt.Sprintf(
			"COUNT(DISTINCT e.session_id) * 100.0 / %s AS share",
			r.siteWideSessions())
		alias = "share"
	default:
		return sql // visitors: the canonical aggregate stands as written
	}

	out := strings.Replace(sql, canonicalAggregate, replacement, 1)
	return aliasRefRe.ReplaceAllString(out, alias)
}

// siteWideSessions builds the unfiltered distinct-session subquery used as
// the proportion denominator. It shares the window parameters with the
// numerator.
func (r *Resolver) siteWideSessions() string {
	return fmt.Sprintf(
		"(SELECT COUNT(DISTINCT session_id) FROM %s WHERE website_id = '%s' AND %s)",
		r.eventsTable, EscapeString(r.websiteID), DateCondition("created_at"))
}

// EscapeString escapes a value for embedding in a single-quoted standard
// SQL string literal.
func EscapeString(v string) string {
	v = strings.ReplaceAll(v, `\`, `\\`)
	return strings.ReplaceAll(v, `'`, `\'`)
}

// FormatTimestamp renders t for a TIMESTAMP() literal.
func FormatTimestamp(t time.Time) string {
	return t.UTC().Format("2006-01-02 15:04:05")
}
