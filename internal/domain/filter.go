package domain

import "time"

// PathOp selects how URL-path filters are matched.
type PathOp string

// Path-match operators.
const (
	PathOpEquals     PathOp = "equals"
	PathOpStartsWith PathOp = "starts-with"
)

// MetricType selects the unit of traffic volume a chart aggregates by.
type MetricType string

// Metric types. Visitors (distinct sessions) is the default.
const (
	MetricVisitors   MetricType = "visitors"
	MetricVisits     MetricType = "visits"
	MetricPageviews  MetricType = "pageviews"
	MetricProportion MetricType = "proportion"
)

// Date-range presets understood by the resolver. Anything else falls back
// to a trailing 30-day window.
const (
	RangeToday        = "today"
	RangeYesterday    = "yesterday"
	RangeThisWeek     = "this_week"
	RangeLast7Days    = "last_7_days"
	RangeLastWeek     = "last_week"
	RangeLast28Days   = "last_28_days"
	RangeCurrentMonth = "current_month"
	RangeLastMonth    = "last_month"
	RangeCustom       = "custom"
)

// DateRange describes the time window of a query: either a named preset or
// an explicit custom start/end pair.
type DateRange struct {
	Preset string
	From   time.Time // used when Preset == RangeCustom
	To     time.Time
}

// FilterState is the caller-supplied query context. It is constructed per
// request, never persisted, and fully determines the resolved SQL for a
// given template.
type FilterState struct {
	URLFilters []string
	PathOp     PathOp
	Range      DateRange
	Metric     MetricType
}
