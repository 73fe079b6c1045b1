package domain

// ChartKind determines how a chart's data is rendered.
type ChartKind string

// Supported chart kinds.
const (
	ChartKindTimeSeries ChartKind = "timeseries"
	ChartKindTable      ChartKind = "table"
	ChartKindMetric     ChartKind = "metric"
	ChartKindComposite  ChartKind = "composite"
)

// ChartDefinition is a named visualization unit owned by the dashboard
// configuration. Definitions are loaded once at startup and never mutated
// at runtime.
type ChartDefinition struct {
	ID       string
	Title    string
	Kind     ChartKind
	Template string // query template; empty for non-data chart kinds
	// Dimension is the session-level grouping attribute (e.g. "country",
	// "device") for charts whose aggregation is a distinct-session count
	// grouped by exactly one categorical column. Empty for everything else.
	Dimension string
}

// Batchable reports whether the chart can be served from a shared combined
// scan: a distinct-session count grouped by a single session attribute.
func (c *ChartDefinition) Batchable() bool {
	return c.Dimension != "" && c.Template != ""
}

// Dashboard is the immutable set of chart definitions active for a view.
type Dashboard struct {
	Charts []ChartDefinition
}

// Chart returns the definition with the given id, or nil.
func (d *Dashboard) Chart(id string) *ChartDefinition {
	for i := range d.Charts {
		if d.Charts[i].ID == id {
			return &d.Charts[i]
		}
	}
	return nil
}
