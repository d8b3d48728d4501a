package domain

import (
	"time"
)

// Aggregation is the method applied when collapsing rows into a single
// (month, group) or (period, group) value.
type Aggregation string

const (
	AggCount   Aggregation = "count"
	AggSum     Aggregation = "sum"
	AggAverage Aggregation = "average"
	AggMin     Aggregation = "min"
	AggMax     Aggregation = "max"
)

// Valid reports whether a is one of the supported aggregation methods.
func (a Aggregation) Valid() bool {
	switch a {
	case AggCount, AggSum, AggAverage, AggMin, AggMax:
		return true
	}
	return false
}

// RequiresValueColumn reports whether the aggregation needs a numeric value
// column. Count is the only method computed from row presence alone.
func (a Aggregation) RequiresValueColumn() bool {
	return a != AggCount
}

// Period is an inclusive [Start, End] date range.
type Period struct {
	Start time.Time `json:"start"`
	End   time.Time `json:"end"`
}

// DateSpan is the (min, max) of a project's designated date column.
// Empty is set when the table has no parseable dates at all.
type DateSpan struct {
	Min   time.Time `json:"min_date"`
	Max   time.Time `json:"max_date"`
	Empty bool      `json:"empty"`
}

// ValueCount is one entry of a top-N frequency breakdown.
type ValueCount struct {
	Value string `json:"value"`
	Count int    `json:"count"`
}

// TrendSeries is a monthly aggregation per group. Every group carries exactly
// one value per month; cells with no underlying rows are zero. When a
// baseline month was requested, Movement holds per-group deviation series
// (value minus the group's baseline value) and omits groups that had no data
// in the baseline month.
type TrendSeries struct {
	Months         []string             `json:"months"`
	Groups         []string             `json:"groups"`
	Series         map[string][]float64 `json:"series"`
	GroupTotals    map[string]float64   `json:"group_totals"`
	BaselineMonth  string               `json:"baseline_month,omitempty"`
	BaselineValues map[string]float64   `json:"baseline_values,omitempty"`
	Movement       map[string][]float64 `json:"movement_series,omitempty"`
}

// PeriodSummary carries the bounds and row volume of one compared period.
type PeriodSummary struct {
	Start time.Time `json:"start"`
	End   time.Time `json:"end"`
	Rows  int       `json:"rows"`
}

// ComparisonEntry is one ranked row of a two-period comparison. IsNew marks
// values absent from period 1, where a percent change is undefined.
type ComparisonEntry struct {
	Value     string  `json:"value"`
	Count1    float64 `json:"count1"`
	Count2    float64 `json:"count2"`
	ChangePct float64 `json:"change_pct"`
	IsNew     bool    `json:"is_new,omitempty"`
}

// Comparison is the result of a two-period value or grouped comparison.
type Comparison struct {
	Column      string            `json:"column"`
	ValueColumn string            `json:"value_column,omitempty"`
	Aggregation Aggregation       `json:"aggregation,omitempty"`
	Period1     PeriodSummary     `json:"period1"`
	Period2     PeriodSummary     `json:"period2"`
	Entries     []ComparisonEntry `json:"comparison"`
}

// ColumnStat describes one column of the consolidated dataset.
type ColumnStat struct {
	Name          string  `json:"name"`
	Type          string  `json:"dtype"`
	FillPct       float64 `json:"fill_pct"`
	DistinctCount int     `json:"unique_count"`
	HasDuplicates bool    `json:"has_duplicates"`
	SampleValues  string  `json:"sample_values,omitempty"`
}

// ColumnCatalog lists a dataset's columns split by detected role, used by the
// dashboard to populate its selectors.
type ColumnCatalog struct {
	Columns        []string `json:"columns"`
	DateColumns    []string `json:"date_columns"`
	NumericColumns []string `json:"numeric_columns"`
}
