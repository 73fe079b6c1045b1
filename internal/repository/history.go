// Package repository implements SQLite-backed persistence for domain ports.
package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"sitelens/internal/domain"
)

// QueryHistoryRepo persists query execution records.
type QueryHistoryRepo struct {
	db *sql.DB
}

// NewQueryHistoryRepo creates a repository over the given connection.
func NewQueryHistoryRepo(db *sql.DB) *QueryHistoryRepo {
	return &QueryHistoryRepo{db: db}
}

var _ domain.HistoryRepository = (*QueryHistoryRepo)(nil)

// Insert stores one execution record.
func (r *QueryHistoryRepo) Insert(ctx context.Context, rec *domain.QueryRecord) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO query_history
			(id, principal_name, chart_id, sql_text, batched, bytes_processed,
			 estimated_cost, duration_ms, status, error_message, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		rec.ID, rec.PrincipalName, rec.ChartID, rec.SQLText, rec.Batched,
		rec.BytesProcessed, rec.EstimatedCost, rec.DurationMs, rec.Status,
		rec.ErrorMessage, rec.CreatedAt.UTC())
	if err != nil {
		return fmt.Errorf("insert query history: %w", err)
	}
	return nil
}

// ListRecent returns the newest records, most recent first.
func (r *QueryHistoryRepo) ListRecent(ctx context.Context, limit int) ([]*domain.QueryRecord, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, principal_name, chart_id, sql_text, batched, bytes_processed,
		       estimated_cost, duration_ms, status, error_message, created_at
		FROM query_history
		ORDER BY created_at DESC, id
		LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("list query history: %w", err)
	}
	defer rows.Close() //nolint:errcheck

	var out []*domain.QueryRecord
	for rows.Next() {
		var rec domain.QueryRecord
		var createdAt time.Time
		if err := rows.Scan(&rec.ID, &rec.PrincipalName, &rec.ChartID, &rec.SQLText,
			&rec.Batched, &rec.BytesProcessed, &rec.EstimatedCost, &rec.DurationMs,
			&rec.Status, &rec.ErrorMessage, &createdAt); err != nil {
			return nil, fmt.Errorf("scan query history: %w", err)
		}
		rec.CreatedAt = createdAt.UTC()
		out = append(out, &rec)
	}
	return out, rows.Err()
}

// DeleteOlderThan removes records older than the retention window and
// returns how many were deleted.
func (r *QueryHistoryRepo) DeleteOlderThan(ctx context.Context, days int) (int64, error) {
	cutoff := time.Now().UTC().AddDate(0, 0, -days)
	res, err := r.db.ExecContext(ctx,
		`DELETE FROM query_history WHERE created_at < ?`, cutoff)
	if err != nil {
		return 0, fmt.Errorf("prune query history: %w", err)
	}
	return res.RowsAffected()
}
