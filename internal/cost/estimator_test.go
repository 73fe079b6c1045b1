package cost

import (
	"context"
	"fmt"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"sitelens/internal/domain"
	"sitelens/internal/testutil"
)

func TestEstimate(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		runFn   func(ctx context.Context, req *domain.QueryRequest) (*domain.RunResult, error)
		want    *domain.QueryStats
		wantNil bool
	}{
		{
			name: "derives gigabytes and cost from reported bytes",
			runFn: func(_ context.Context, _ *domain.QueryRequest) (*domain.RunResult, error) {
				return &domain.RunResult{BytesProcessed: 1 << 40}, nil
			},
			want: &domain.QueryStats{BytesProcessed: 1 << 40, Gigabytes: 1024, EstimatedCost: 6.25},
		},
		{
			name: "zero bytes yields zero cost",
			runFn: func(_ context.Context, _ *domain.QueryRequest) (*domain.RunResult, error) {
				return &domain.RunResult{}, nil
			},
			want: &domain.QueryStats{},
		},
		{
			name: "dry run failure is absorbed as absent stats",
			runFn: func(_ context.Context, _ *domain.QueryRequest) (*domain.RunResult, error) {
				return nil, fmt.Errorf("quota exceeded")
			},
			wantNil: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			wh := &testutil.MockWarehouse{RunFn: tt.runFn}
			est := New(wh, 6.25, slog.Default())

			req := &domain.QueryRequest{SQL: "SELECT 1"}
			got := est.Estimate(context.Background(), req)

			if tt.wantNil {
				assert.Nil(t, got)
			} else {
				assert.Equal(t, tt.want, got)
			}

			// The original request must stay a real execution; only the
			// submitted copy carries the dry-run flag.
			assert.False(t, req.DryRun)
			require.Len(t, wh.Requests(), 1)
			assert.True(t, wh.Requests()[0].DryRun)
		})
	}
}
