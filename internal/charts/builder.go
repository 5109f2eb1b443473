package charts

import (
	"math"
	"sort"
	"strings"
)

// =============================================================================
// GROUPING AND AGGREGATION
// =============================================================================

// Group is one aggregated bucket.
type Group struct {
	Key   string
	Label string
	Count int
	Value float64
}

// GroupAndAggregate buckets records by a dimension, folds a measure per
// bucket, then sorts and limits. Pipeline: group, aggregate, sort, limit.
func GroupAndAggregate(ds *Dataset, groupBy, measure, aggregation, sortBy string, limit int) []Group {
	if ds == nil || ds.Len() == 0 {
		return nil
	}

	grouped := make(map[string][]int)
	order := make([]string, 0)
	for i := 0; i < ds.Len(); i++ {
		key := ds.Dimension(i, groupBy)
		if _, exists := grouped[key]; !exists {
			order = append(order, key)
		}
		grouped[key] = append(grouped[key], i)
	}

	groups := make([]Group, 0, len(order))
	for _, key := range order {
		rows := grouped[key]
		groups = append(groups, Group{
			Key:   key,
			Label: key,
			Count: len(rows),
			Value: aggregate(ds, rows, measure, aggregation),
		})
	}

	sortGroups(groups, sortBy)

	if limit > 0 && len(groups) > limit {
		groups = groups[:limit]
	}
	return groups
}

func aggregate(ds *Dataset, rows []int, measure, aggregation string) float64 {
	if len(rows) == 0 {
		return 0
	}

	switch aggregation {
	case "count":
		return float64(len(rows))
	case "avg":
		return sumRows(ds, rows, measure) / float64(len(rows))
	case "max":
		m := math.Inf(-1)
		for _, i := range rows {
			if v := ds.Measure(i, measure); v > m {
				m = v
			}
		}
		return m
	case "min":
		m := math.Inf(1)
		for _, i := range rows {
			if v := ds.Measure(i, measure); v < m {
				m = v
			}
		}
		return m
	default: // sum
		return sumRows(ds, rows, measure)
	}
}

func sumRows(ds *Dataset, rows []int, measure string) float64 {
	var total float64
	for _, i := range rows {
		total += ds.Measure(i, measure)
	}
	return total
}

func sortGroups(groups []Group, sortBy string) {
	switch sortBy {
	case "value_desc":
		sort.Slice(groups, func(i, j int) bool { return groups[i].Value > groups[j].Value })
	case "value_asc":
		sort.Slice(groups, func(i, j int) bool { return groups[i].Value < groups[j].Value })
	case "label_asc":
		sort.Slice(groups, func(i, j int) bool { return strings.ToLower(groups[i].Key) < strings.ToLower(groups[j].Key) })
	case "label_desc":
		sort.Slice(groups, func(i, j int) bool { return strings.ToLower(groups[i].Key) > strings.ToLower(groups[j].Key) })
	default:
		// preserve grouping order
	}
}

// =============================================================================
// CHART SPECS
// =============================================================================

// ChartType selects the renderer.
type ChartType string

const (
	ChartBar  ChartType = "bar"
	ChartLine ChartType = "line"
	ChartPie  ChartType = "pie"
)

// Spec describes one chart to render.
type Spec struct {
	Type        ChartType
	Title       string
	XLabel      string
	YLabel      string
	GroupBy     string
	Measure     string
	Aggregation string
	SortBy      string
	Limit       int
	Width       int
	Height      int
}

// paletteHex are the series colors, assigned round-robin.
var paletteHex = []string{
	"4F46E5", "10B981", "F59E0B", "EF4444", "8B5CF6",
	"06B6D4", "EC4899", "84CC16", "F97316", "6366F1",
}

// BuiltinSpecs maps the built-in datasets to their default charts.
func BuiltinSpecs() map[string]Spec {
	return map[string]Spec{
		"median_price_by_district": {
			Type: ChartBar, Title: "Median Sale Price by District (2025)",
			YLabel: "USD", GroupBy: "district", Measure: "median_price",
			Aggregation: "max", SortBy: "value_desc",
		},
		"permit_volume_by_year": {
			Type: ChartLine, Title: "Residential Permit Volume",
			XLabel: "Year", YLabel: "Permits", GroupBy: "year",
			Measure: "permits", Aggregation: "sum", SortBy: "label_asc",
		},
		"cap_rates_by_submarket": {
			Type: ChartBar, Title: "Going-In Cap Rates by Submarket",
			YLabel: "Percent", GroupBy: "submarket", Measure: "cap_rate",
			Aggregation: "avg", SortBy: "value_asc",
		},
		"flood_claims_by_watershed": {
			Type: ChartPie, Title: "NFIP Claims by Watershed",
			GroupBy: "watershed", Measure: "claims", Aggregation: "sum",
		},
		"absorption_by_submarket": {
			Type: ChartBar, Title: "Net Absorption by Submarket (2025)",
			YLabel: "Units", GroupBy: "submarket", Measure: "units",
			Aggregation: "sum", SortBy: "value_desc",
		},
	}
}

// RoundTo2 rounds to two decimal places for display.
func RoundTo2(v float64) float64 {
	return math.Round(v*100) / 100
}
