package domain

import "time"

// QueryRequest is the unit submitted to the warehouse. Requests are created
// fresh per submission and never reused: labels and the embedded comment
// carry a timestamp and caller identity.
type QueryRequest struct {
	SQL      string
	Location string
	Params   map[string]interface{}
	Labels   map[string]string
	DryRun   bool
}

// QueryStats carries the byte and cost accounting of a single warehouse
// submission. Ephemeral; attached to a response, never persisted as-is.
type QueryStats struct {
	BytesProcessed int64   `json:"bytesProcessed"`
	Gigabytes      float64 `json:"gigabytes"`
	EstimatedCost  float64 `json:"estimatedCost"`
}

// RunResult is what the warehouse returns: rows for a real execution,
// bytes-processed statistics for a dry run.
type RunResult struct {
	Columns        []string
	Rows           []map[string]interface{}
	BytesProcessed int64
}

// QueryRecord is a persisted history row for one real warehouse execution.
type QueryRecord struct {
	ID             string    `json:"id"`
	PrincipalName  string    `json:"principalName"`
	ChartID        string    `json:"chartId"`
	SQLText        string    `json:"sql"`
	Batched        bool      `json:"batched"`
	BytesProcessed int64     `json:"bytesProcessed"`
	EstimatedCost  float64   `json:"estimatedCost"`
	DurationMs     int64     `json:"durationMs"`
	Status         string    `json:"status"` // "OK" or "ERROR"
	ErrorMessage   *string   `json:"errorMessage,omitempty"`
	CreatedAt      time.Time `json:"createdAt"`
}
