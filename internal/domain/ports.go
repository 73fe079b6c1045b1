package domain

import "context"

// Warehouse is the boundary to the analytical columnar store. A dry-run
// submission returns byte statistics only; a real submission returns rows.
// Implementations must not retry internally; degradation policy belongs to
// the caller.
type Warehouse interface {
	Run(ctx context.Context, req *QueryRequest) (*RunResult, error)
}

// HistoryRepository stores per-execution query records.
type HistoryRepository interface {
	Insert(ctx context.Context, rec *QueryRecord) error
	ListRecent(ctx context.Context, limit int) ([]*QueryRecord, error)
	DeleteOlderThan(ctx context.Context, days int) (int64, error)
}
