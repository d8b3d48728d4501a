package analytics

import (
	"fmt"
	"sort"

	"datapulse/internal/dataset"
	apperrors "datapulse/internal/errors"
	"datapulse/pkg/contracts/domain"
)

const (
	// CompareLimit caps the entries of a value-frequency comparison.
	CompareLimit = 25
	// GroupedCompareLimit caps the entries of a grouped comparison.
	GroupedCompareLimit = 50
)

// Compare counts how often each value of a column occurs in two date
// periods and ranks the values by combined count. Values absent from the
// first period are marked new instead of reporting an infinite change.
func Compare(t *dataset.Table, dateCol, column string, p1, p2 domain.Period) (*domain.Comparison, error) {
	if _, ok := t.Column(column); !ok {
		return nil, apperrors.NewMissingDataError(fmt.Sprintf("column %q not found", column))
	}

	t1, err := filterPeriod(t, dateCol, p1)
	if err != nil {
		return nil, err
	}
	t2, err := filterPeriod(t, dateCol, p2)
	if err != nil {
		return nil, err
	}

	counts1 := valueCounts(t1, column)
	counts2 := valueCounts(t2, column)

	result := &domain.Comparison{
		Column:  column,
		Period1: domain.PeriodSummary{Start: p1.Start, End: p1.End, Rows: t1.NumRows()},
		Period2: domain.PeriodSummary{Start: p2.Start, End: p2.End, Rows: t2.NumRows()},
		Entries: rankEntries(counts1, counts2, CompareLimit),
	}
	return result, nil
}

// GroupedCompare aggregates a value column per group in two date periods
// and ranks the groups by combined aggregate.
func GroupedCompare(t *dataset.Table, dateCol, groupCol, valueCol string, agg domain.Aggregation, p1, p2 domain.Period) (*domain.Comparison, error) {
	if _, ok := t.Column(groupCol); !ok {
		return nil, apperrors.NewMissingDataError(fmt.Sprintf("group column %q not found", groupCol))
	}
	if _, err := valueColumn(t, agg, valueCol); err != nil {
		return nil, err
	}

	t1, err := filterPeriod(t, dateCol, p1)
	if err != nil {
		return nil, err
	}
	t2, err := filterPeriod(t, dateCol, p2)
	if err != nil {
		return nil, err
	}

	agg1, err := groupAggregates(t1, groupCol, valueCol, agg)
	if err != nil {
		return nil, err
	}
	agg2, err := groupAggregates(t2, groupCol, valueCol, agg)
	if err != nil {
		return nil, err
	}

	result := &domain.Comparison{
		Column:      groupCol,
		ValueColumn: valueCol,
		Aggregation: agg,
		Period1:     domain.PeriodSummary{Start: p1.Start, End: p1.End, Rows: t1.NumRows()},
		Period2:     domain.PeriodSummary{Start: p2.Start, End: p2.End, Rows: t2.NumRows()},
		Entries:     rankEntries(agg1, agg2, GroupedCompareLimit),
	}
	return result, nil
}

// valueCounts tallies the non-missing values of a column.
func valueCounts(t *dataset.Table, column string) map[string]float64 {
	counts := make(map[string]float64)
	c, ok := t.Column(column)
	if !ok {
		return counts
	}
	for i := 0; i < c.Len(); i++ {
		if c.IsMissing(i) {
			continue
		}
		counts[c.StringAt(i)]++
	}
	return counts
}

// groupAggregates folds the value column per group label.
func groupAggregates(t *dataset.Table, groupCol, valueCol string, agg domain.Aggregation) (map[string]float64, error) {
	group, ok := t.Column(groupCol)
	if !ok {
		return map[string]float64{}, nil
	}
	values, err := valueColumn(t, agg, valueCol)
	if err != nil {
		return nil, err
	}

	acc := make(map[string]*accumulator)
	for i := 0; i < t.NumRows(); i++ {
		if group.IsMissing(i) {
			continue
		}
		var v float64
		if values != nil {
			n, ok := values.NumberAt(i)
			if !ok {
				continue
			}
			v = n
		}
		g := group.StringAt(i)
		if acc[g] == nil {
			acc[g] = newAccumulator(agg)
		}
		acc[g].addRow(v)
	}

	out := make(map[string]float64, len(acc))
	for g, a := range acc {
		out[g] = a.result()
	}
	return out, nil
}

// rankEntries merges the per-period values into ranked comparison entries.
// A value present in period 2 only is marked new; its percent change is left
// zero because a change from nothing has no meaningful percentage.
func rankEntries(period1, period2 map[string]float64, limit int) []domain.ComparisonEntry {
	seen := make(map[string]bool, len(period1)+len(period2))
	keys := make([]string, 0, len(period1)+len(period2))
	for k := range period1 {
		if !seen[k] {
			seen[k] = true
			keys = append(keys, k)
		}
	}
	for k := range period2 {
		if !seen[k] {
			seen[k] = true
			keys = append(keys, k)
		}
	}

	entries := make([]domain.ComparisonEntry, 0, len(keys))
	for _, k := range keys {
		c1, c2 := period1[k], period2[k]
		e := domain.ComparisonEntry{Value: k, Count1: c1, Count2: c2}
		if c1 == 0 {
			e.IsNew = true
		} else {
			e.ChangePct = (c2 - c1) / c1 * 100
		}
		entries = append(entries, e)
	}

	sort.Slice(entries, func(i, j int) bool {
		ci := entries[i].Count1 + entries[i].Count2
		cj := entries[j].Count1 + entries[j].Count2
		if ci != cj {
			return ci > cj
		}
		return entries[i].Value < entries[j].Value
	})
	if limit > 0 && len(entries) > limit {
		entries = entries[:limit]
	}
	return entries
}
