// Package dashboard owns the static chart definition library: a built-in
// default set plus an optional YAML override file. Definitions are loaded
// once at startup and read-only thereafter.
package dashboard

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"sitelens/internal/domain"
)

// timeSeriesTemplate buckets distinct sessions per civil day.
const timeSeriesTemplate = `SELECT DATE(e.created_at) AS day, COUNT(DISTINCT e.session_id) AS visitors
FROM %s e
JOIN %s pg ON pg.session_id = e.session_id
WHERE e.website_id = '{{website_id}}'
  AND pg.path = [[ {{url_sti}} --]] '/'
  [[ AND {{created_at}} ]]
GROUP BY day
ORDER BY day`

// dimensionTemplate is the per-attribute table query the batch planner can
// recognize and fold into a combined scan.
const dimensionTemplate = `SELECT e.%[3]s, COUNT(DISTINCT e.session_id) AS visitors
FROM %[1]s e
JOIN %[2]s pg ON pg.session_id = e.session_id
WHERE e.website_id = '{{website_id}}'
  AND pg.path = [[ {{url_sti}} --]] '/'
  [[ AND {{created_at}} ]]
GROUP BY e.%[3]s
ORDER BY visitors DESC
LIMIT 12`

// totalTemplate backs the single-metric headline number.
const totalTemplate = `SELECT COUNT(DISTINCT e.session_id) AS visitors
FROM %s e
JOIN %s pg ON pg.session_id = e.session_id
WHERE e.website_id = '{{website_id}}'
  AND pg.path = [[ {{url_sti}} --]] '/'
  [[ AND {{created_at}} ]]`

// topPagesTemplate lists the most visited paths.
const topPagesTemplate = `SELECT pg.path, COUNT(DISTINCT e.session_id) AS visitors
FROM %s e
JOIN %s pg ON pg.session_id = e.session_id
WHERE e.website_id = '{{website_id}}'
  AND pg.path = [[ {{url_sti}} --]] '/'
  [[ AND {{created_at}} ]]
GROUP BY pg.path
ORDER BY visitors DESC
LIMIT 12`

// Default returns the built-in dashboard over the given base tables.
func Default(eventsTable, pagesTable string) *domain.Dashboard {
	dim := func(id, title, col string) domain.ChartDefinition {
		return domain.ChartDefinition{
			ID:        id,
			Title:     title,
			Kind:      domain.ChartKindTable,
			Template:  fmt.Sprintf(dimensionTemplate, eventsTable, pagesTable, col),
			Dimension: col,
		}
	}

	return &domain.Dashboard{Charts: []domain.ChartDefinition{
		{
			ID:       "total-visitors",
			Title:    "Visitors",
			Kind:     domain.ChartKindMetric,
			Template: fmt.Sprintf(totalTemplate, eventsTable, pagesTable),
		},
		{
			ID:       "visitors-over-time",
			Title:    "Visitors over time",
			Kind:     domain.ChartKindTimeSeries,
			Template: fmt.Sprintf(timeSeriesTemplate, eventsTable, pagesTable),
		},
		{
			ID:       "top-pages",
			Title:    "Top pages",
			Kind:     domain.ChartKindTable,
			Template: fmt.Sprintf(topPagesTemplate, eventsTable, pagesTable),
		},
		dim("countries", "Countries", "country"),
		dim("devices", "Devices", "device"),
		dim("browsers", "Browsers", "browser"),
		{
			ID:    "overview",
			Title: "Overview",
			Kind:  domain.ChartKindComposite,
		},
	}}
}

// chartFile is the YAML shape of one chart definition.
type chartFile struct {
	ID        string `yaml:"id"`
	Title     string `yaml:"title"`
	Kind      string `yaml:"kind"`
	Template  string `yaml:"template"`
	Dimension string `yaml:"dimension"`
}

// LoadFile reads a dashboard definition from a YAML file. The file fully
// replaces the built-in set.
func LoadFile(path string) (*domain.Dashboard, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read dashboard config: %w", err)
	}

	var charts []chartFile
	if err := yaml.Unmarshal(raw, &charts); err != nil {
		return nil, fmt.Errorf("parse dashboard config: %w", err)
	}

	d := &domain.Dashboard{Charts: make([]domain.ChartDefinition, len(charts))}
	for i, c := range charts {
		d.Charts[i] = domain.ChartDefinition{
			ID:        c.ID,
			Title:     c.Title,
			Kind:      domain.ChartKind(c.Kind),
			Template:  c.Template,
			Dimension: c.Dimension,
		}
	}
	if err := Validate(d); err != nil {
		return nil, err
	}
	return d, nil
}

// Validate checks a dashboard for duplicate ids, unknown kinds, and data
// charts missing a template.
func Validate(d *domain.Dashboard) error {
	seen := make(map[string]bool)
	for _, c := range d.Charts {
		if c.ID == "" {
			return domain.ErrValidation("chart with empty id")
		}
		if seen[c.ID] {
			return domain.ErrValidation("duplicate chart id %q", c.ID)
		}
		seen[c.ID] = true

		switch c.Kind {
		case domain.ChartKindTimeSeries, domain.ChartKindTable, domain.ChartKindMetric:
			if c.Template == "" {
				return domain.ErrValidation("chart %q of kind %s requires a template", c.ID, c.Kind)
			}
		case domain.ChartKindComposite:
		default:
			return domain.ErrValidation("chart %q has unknown kind %q", c.ID, c.Kind)
		}
	}
	return nil
}
