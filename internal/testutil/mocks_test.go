package testutil

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/sync/errgroup"

	"sitelens/internal/domain"
)

func TestMockWarehouse_ConcurrentRun(t *testing.T) {
	t.Parallel()

	wh := &MockWarehouse{}

	var g errgroup.Group
	for i := 0; i < 32; i++ {
		i := i
		g.Go(func() error {
			_, err := wh.Run(context.Background(), &domain.QueryRequest{
				SQL:    fmt.Sprintf("SELECT %d", i),
				DryRun: i%2 == 0,
			})
			return err
		})
	}
	require.NoError(t, g.Wait())

	assert.Len(t, wh.Requests(), 32)
	assert.Len(t, wh.DryRuns(), 16)
	assert.Len(t, wh.Executions(), 16)
}

func TestMockHistoryRepo_ConcurrentInsert(t *testing.T) {
	t.Parallel()

	repo := &MockHistoryRepo{}

	var g errgroup.Group
	for i := 0; i < 32; i++ {
		i := i
		g.Go(func() error {
			return repo.Insert(context.Background(), &domain.QueryRecord{
				ID: fmt.Sprintf("rec-%d", i),
			})
		})
	}
	require.NoError(t, g.Wait())

	assert.Len(t, repo.Records(), 32)

	recent, err := repo.ListRecent(context.Background(), 10)
	require.NoError(t, err)
	assert.Len(t, recent, 10)
}
