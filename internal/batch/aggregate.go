package batch

import (
	"fmt"
	"sort"
	"strings"

	"sitelens/internal/domain"
)

// defaultRowCap limits how many value/count pairs a chart receives.
const defaultRowCap = 12

// ValueCount is one aggregated row of a chart served from a combined scan.
type ValueCount struct {
	Value string `json:"value"`
	Count int64  `json:"count"`
}

// Rule describes attribute-specific post-processing applied when a chart's
// result is reconstructed from combined rows. New batchable dimensions get
// an entry here instead of special cases in the aggregation loop.
type Rule struct {
	// Keep reports whether a value belongs in the chart. nil keeps all.
	Keep func(value string) bool
	// RowCap overrides defaultRowCap when positive.
	RowCap int
}

// rules maps attribute name to its post-processing rule. Device values that
// look like bot or cross-platform noise markers never appear in the
// unbatched device chart, so they are filtered here too.
var rules = map[string]Rule{
	"device": {Keep: func(v string) bool {
		if v == "" || v == "(not set)" || strings.Contains(v, ";") {
			return false
		}
		return !strings.Contains(strings.ToLower(v), "bot")
	}},
}

// Aggregate reproduces, for one attribute, the result the original
// unbatched per-chart query would have produced: distinct-session counts
// per attribute value, sorted by count descending, capped. rows come from a
// combined scan, one row per distinct session x attribute tuple.
func Aggregate(rows []map[string]interface{}, attribute string) []ValueCount {
	rule := rules[attribute]

	sessions := make(map[string]map[string]bool) // value -> session set
	for _, row := range rows {
		val := stringField(row, attribute)
		if rule.Keep != nil && !rule.Keep(val) {
			continue
		}
		sid := stringField(row, "session_id")
		if sid == "" {
			continue
		}
		if sessions[val] == nil {
			sessions[val] = make(map[string]bool)
		}
		sessions[val][sid] = true
	}

	out := make([]ValueCount, 0, len(sessions))
	for val, set := range sessions {
		out = append(out, ValueCount{Value: val, Count: int64(len(set))})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Count != out[j].Count {
			return out[i].Count > out[j].Count
		}
		return out[i].Value < out[j].Value
	})

	rowCap := defaultRowCap
	if rule.RowCap > 0 {
		rowCap = rule.RowCap
	}
	if len(out) > rowCap {
		out = out[:rowCap]
	}
	return out
}

// ApportionCost divides a combined scan's billed bytes evenly across the n
// charts it served. True attribution would need per-column accounting the
// warehouse does not expose; this is a documented approximation.
func ApportionCost(stats *domain.QueryStats, n int) *domain.QueryStats {
	if stats == nil || n <= 0 {
		return nil
	}
	return &domain.QueryStats{
		BytesProcessed: stats.BytesProcessed / int64(n),
		Gigabytes:      stats.Gigabytes / float64(n),
		EstimatedCost:  stats.EstimatedCost / float64(n),
	}
}

func stringField(row map[string]interface{}, key string) string {
	switch v := row[key].(type) {
	case string:
		return v
	case nil:
		return ""
	default:
		return fmt.Sprintf("%v", v)
	}
}
