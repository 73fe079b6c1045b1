// Package testutil provides shared mock implementations of domain interfaces
// for use in tests across the codebase. This follows the Go convention of a
// shared test utility package (like net/http/httptest).
package testutil

import (
	"context"
	"sync"

	"sitelens/internal/domain"
)

// === Warehouse Mock ===

// MockWarehouse implements domain.Warehouse for testing. Submitted requests
// are collected for assertions. Safe for concurrent use: the service under
// test submits from multiple goroutines.
type MockWarehouse struct {
	RunFn func(ctx context.Context, req *domain.QueryRequest) (*domain.RunResult, error)

	mu       sync.Mutex
	requests []*domain.QueryRequest
}

// Run implements the interface method for testing.
func (m *MockWarehouse) Run(ctx context.Context, req *domain.QueryRequest) (*domain.RunResult, error) {
	m.mu.Lock()
	m.requests = append(m.requests, req)
	m.mu.Unlock()

	if m.RunFn != nil {
		return m.RunFn(ctx, req)
	}
	return &domain.RunResult{}, nil
}

// Requests returns a copy of every submitted request, in submission order.
func (m *MockWarehouse) Requests() []*domain.QueryRequest {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]*domain.QueryRequest, len(m.requests))
	copy(out, m.requests)
	return out
}

// DryRuns returns the submitted requests with the dry-run flag set.
func (m *MockWarehouse) DryRuns() []*domain.QueryRequest {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*domain.QueryRequest
	for _, r := range m.requests {
		if r.DryRun {
			out = append(out, r)
		}
	}
	return out
}

// Executions returns the submitted requests without the dry-run flag.
func (m *MockWarehouse) Executions() []*domain.QueryRequest {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*domain.QueryRequest
	for _, r := range m.requests {
		if !r.DryRun {
			out = append(out, r)
		}
	}
	return out
}

// === History Repository Mock ===

// MockHistoryRepo implements domain.HistoryRepository for testing. Safe for
// concurrent use.
type MockHistoryRepo struct {
	InsertFn func(ctx context.Context, rec *domain.QueryRecord) error

	mu      sync.Mutex
	records []*domain.QueryRecord
}

// Seed preloads records, newest last.
func (m *MockHistoryRepo) Seed(recs ...*domain.QueryRecord) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.records = append(m.records, recs...)
}

// Insert implements the interface method for testing.
func (m *MockHistoryRepo) Insert(ctx context.Context, rec *domain.QueryRecord) error {
	if m.InsertFn != nil {
		if err := m.InsertFn(ctx, rec); err != nil {
			return err
		}
	}
	m.mu.Lock()
	m.records = append(m.records, rec)
	m.mu.Unlock()
	return nil
}

// Records returns a copy of every stored record, in insertion order.
func (m *MockHistoryRepo) Records() []*domain.QueryRecord {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]*domain.QueryRecord, len(m.records))
	copy(out, m.records)
	return out
}

// ListRecent implements the interface method for testing.
func (m *MockHistoryRepo) ListRecent(_ context.Context, limit int) ([]*domain.QueryRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if limit > len(m.records) {
		limit = len(m.records)
	}
	out := make([]*domain.QueryRecord, limit)
	for i := 0; i < limit; i++ {
		out[i] = m.records[len(m.records)-1-i]
	}
	return out, nil
}

// DeleteOlderThan implements the interface method for testing.
func (m *MockHistoryRepo) DeleteOlderThan(context.Context, int) (int64, error) {
	return 0, nil
}
