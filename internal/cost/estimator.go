// Package cost forecasts the billed bytes and monetary cost of a resolved
// query by submitting a dry run to the warehouse.
package cost

import (
	"context"
	"log/slog"

	"sitelens/internal/domain"
)

// Byte-size units used by the warehouse's billing model.
const (
	bytesPerGB = 1 << 30
	bytesPerTB = 1 << 40
)

// Estimator converts dry-run byte counts into cost figures. Estimation is
// advisory, never blocking: a dry-run failure yields absent stats, not an
// error.
type Estimator struct {
	warehouse  domain.Warehouse
	pricePerTB float64
	logger     *slog.Logger
}

// New creates an Estimator billing at pricePerTB currency units.
func New(warehouse domain.Warehouse, pricePerTB float64, logger *slog.Logger) *Estimator {
	return &Estimator{warehouse: warehouse, pricePerTB: pricePerTB, logger: logger}
}

// Estimate submits a dry-run copy of req and returns the derived stats, or
// nil when the dry run fails. Failures are logged and absorbed; cost
// estimation is a UX nicety, not a correctness requirement.
func (e *Estimator) Estimate(ctx context.Context, req *domain.QueryRequest) *domain.QueryStats {
	dry := *req
	dry.DryRun = true

	res, err := e.warehouse.Run(ctx, &dry)
	if err != nil {
		e.logger.Warn("dry run failed, omitting cost estimate", "error", err)
		return nil
	}
	return e.Stats(res.BytesProcessed)
}

// Stats derives the byte and cost figures for a known scanned-byte count.
func (e *Estimator) Stats(bytes int64) *domain.QueryStats {
	return &domain.QueryStats{
		BytesProcessed: bytes,
		Gigabytes:      float64(bytes) / bytesPerGB,
		EstimatedCost:  float64(bytes) / bytesPerTB * e.pricePerTB,
	}
}
