// Package warehouse adapts the BigQuery v2 REST API to the domain.Warehouse
// port. It performs no retries and no error translation beyond wrapping:
// per-call degradation policy belongs to the engine.
package warehouse

import (
	"context"
	"fmt"
	"strconv"
	"time"

	bigquery "google.golang.org/api/bigquery/v2"

	"sitelens/internal/domain"
)

// Client submits queries to one BigQuery project.
type Client struct {
	jobs    *bigquery.JobsService
	project string
}

// NewClient wraps an authenticated BigQuery service for the given project.
func NewClient(svc *bigquery.Service, project string) *Client {
	return &Client{jobs: svc.Jobs, project: project}
}

// Run implements domain.Warehouse. Dry runs return byte statistics only;
// real executions return schema-keyed rows.
func (c *Client) Run(ctx context.Context, req *domain.QueryRequest) (*domain.RunResult, error) {
	legacyOff := false
	qr := &bigquery.QueryRequest{
		Query:        req.SQL,
		Location:     req.Location,
		Labels:       req.Labels,
		DryRun:       req.DryRun,
		UseLegacySql: &legacyOff,
	}
	if len(req.Params) > 0 {
		qr.ParameterMode = "NAMED"
		params, err := queryParameters(req.Params)
		if err != nil {
			return nil, err
		}
		qr.QueryParameters = params
	}

	resp, err := c.jobs.Query(c.project, qr).Context(ctx).Do()
	if err != nil {
		return nil, fmt.Errorf("bigquery query: %w", err)
	}

	out := &domain.RunResult{BytesProcessed: resp.TotalBytesProcessed}
	if req.DryRun {
		return out, nil
	}

	out.Columns, out.Rows = convertRows(resp.Schema, resp.Rows)
	return out, nil
}

// queryParameters converts the bound parameter map into the REST wire shape.
func queryParameters(params map[string]interface{}) ([]*bigquery.QueryParameter, error) {
	out := make([]*bigquery.QueryParameter, 0, len(params))
	for name, value := range params {
		typ, rendered, err := parameterValue(value)
		if err != nil {
			return nil, fmt.Errorf("parameter %s: %w", name, err)
		}
		out = append(out, &bigquery.QueryParameter{
			Name:           name,
			ParameterType:  &bigquery.QueryParameterType{Type: typ},
			ParameterValue: &bigquery.QueryParameterValue{Value: rendered},
		})
	}
	return out, nil
}

func parameterValue(v interface{}) (string, string, error) {
	switch val := v.(type) {
	case string:
		return "STRING", val, nil
	case int:
		return "INT64", strconv.Itoa(val), nil
	case int64:
		return "INT64", strconv.FormatInt(val, 10), nil
	case float64:
		return "FLOAT64", strconv.FormatFloat(val, 'g', -1, 64), nil
	case bool:
		return "BOOL", strconv.FormatBool(val), nil
	case time.Time:
		return "TIMESTAMP", val.UTC().Format("2006-01-02 15:04:05.000000+00:00"), nil
	default:
		return "", "", fmt.Errorf("unsupported type %T", v)
	}
}

// convertRows maps REST table rows (cells keyed by position, values encoded
// as strings) into column names and typed row maps.
func convertRows(schema *bigquery.TableSchema, rows []*bigquery.TableRow) ([]string, []map[string]interface{}) {
	if schema == nil {
		return nil, nil
	}

	cols := make([]string, len(schema.Fields))
	for i, f := range schema.Fields {
		cols[i] = f.Name
	}

	out := make([]map[string]interface{}, len(rows))
	for i, row := range rows {
		m := make(map[string]interface{}, len(cols))
		for j, cell := range row.F {
			if j >= len(schema.Fields) {
				break
			}
			m[cols[j]] = cellValue(schema.Fields[j], cell)
		}
		out[i] = m
	}
	return cols, out
}

func cellValue(field *bigquery.TableFieldSchema, cell *bigquery.TableCell) interface{} {
	if cell == nil || cell.V == nil {
		return nil
	}
	s, ok := cell.V.(string)
	if !ok {
		return cell.V
	}

	switch field.Type {
	case "INTEGER", "INT64":
		if n, err := strconv.ParseInt(s, 10, 64); err == nil {
			return n
		}
	case "FLOAT", "FLOAT64", "NUMERIC", "BIGNUMERIC":
		if f, err := strconv.ParseFloat(s, 64); err == nil {
			return f
		}
	case "BOOLEAN", "BOOL":
		if b, err := strconv.ParseBool(s); err == nil {
			return b
		}
	}
	return s
}
