package batch

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"sitelens/internal/domain"
)

func row(session, key, value string) map[string]interface{} {
	return map[string]interface{}{"session_id": session, key: value}
}

func TestAggregate(t *testing.T) {
	t.Parallel()

	t.Run("counts distinct sessions per value sorted descending", func(t *testing.T) {
		t.Parallel()
		rows := []map[string]interface{}{
			row("1", "country", "NO"),
			row("2", "country", "NO"),
			row("3", "country", "SE"),
		}
		got := Aggregate(rows, "country")
		assert.Equal(t, []ValueCount{{Value: "NO", Count: 2}, {Value: "SE", Count: 1}}, got)
	})

	t.Run("duplicate session rows count once", func(t *testing.T) {
		t.Parallel()
		rows := []map[string]interface{}{
			row("1", "browser", "Firefox"),
			row("1", "browser", "Firefox"),
			row("2", "browser", "Firefox"),
		}
		got := Aggregate(rows, "browser")
		assert.Equal(t, []ValueCount{{Value: "Firefox", Count: 2}}, got)
	})

	t.Run("ties break on value for determinism", func(t *testing.T) {
		t.Parallel()
		rows := []map[string]interface{}{
			row("1", "country", "SE"),
			row("2", "country", "NO"),
		}
		got := Aggregate(rows, "country")
		assert.Equal(t, []ValueCount{{Value: "NO", Count: 1}, {Value: "SE", Count: 1}}, got)
	})

	t.Run("device noise markers are filtered", func(t *testing.T) {
		t.Parallel()
		rows := []map[string]interface{}{
			row("1", "device", "Desktop"),
			row("2", "device", "GoogleBot"),
			row("3", "device", "Windows;Android"),
			row("4", "device", "(not set)"),
			row("5", "device", ""),
			row("6", "device", "Mobile"),
		}
		got := Aggregate(rows, "device")
		assert.Equal(t, []ValueCount{{Value: "Desktop", Count: 1}, {Value: "Mobile", Count: 1}}, got)
	})

	t.Run("result is capped", func(t *testing.T) {
		t.Parallel()
		var rows []map[string]interface{}
		for i := 0; i < 30; i++ {
			rows = append(rows, row(fmt.Sprintf("s%d", i), "country", fmt.Sprintf("C%02d", i)))
		}
		got := Aggregate(rows, "country")
		assert.Len(t, got, defaultRowCap)
	})

	t.Run("rows missing a session id are skipped", func(t *testing.T) {
		t.Parallel()
		rows := []map[string]interface{}{
			{"country": "NO"},
			row("1", "country", "NO"),
		}
		got := Aggregate(rows, "country")
		assert.Equal(t, []ValueCount{{Value: "NO", Count: 1}}, got)
	})
}

func TestApportionCost(t *testing.T) {
	t.Parallel()

	stats := &domain.QueryStats{BytesProcessed: 300, Gigabytes: 3, EstimatedCost: 0.3}

	got := ApportionCost(stats, 3)
	require.NotNil(t, got)
	assert.Equal(t, int64(100), got.BytesProcessed)
	assert.InDelta(t, 1.0, got.Gigabytes, 1e-9)
	assert.InDelta(t, 0.1, got.EstimatedCost, 1e-9)

	assert.Nil(t, ApportionCost(nil, 3))
	assert.Nil(t, ApportionCost(stats, 0))
}
