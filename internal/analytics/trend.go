package analytics

import (
	"fmt"
	"sort"

	"datapulse/internal/dataset"
	apperrors "datapulse/internal/errors"
	"datapulse/pkg/contracts/domain"
)

// TrendParams selects what a monthly trend aggregates.
type TrendParams struct {
	DateColumn  string
	GroupColumn string
	ValueColumn string
	Aggregation domain.Aggregation
	// TopGroups limits the series to the N groups with the largest total
	// aggregate. Zero means all groups. Ignored when Groups is non-empty.
	TopGroups int
	// Groups pins an explicit group list, overriding TopGroups. Groups
	// absent from the data still appear, with all-zero series; the list is
	// reordered by total aggregate like the top-N path.
	Groups []string
	// BaselineMonth, when set, additionally computes per-group movement
	// series relative to that month.
	BaselineMonth string
}

type bucketKey struct {
	month string
	group string
}

// Trend buckets the dataset by calendar month of the date column and by the
// values of the group column, applying the aggregation inside each bucket.
// Months are ascending; groups are ordered by total aggregate descending.
// Every group carries exactly one value per month, with 0 for (month, group)
// cells that no row landed in.
//
// With a baseline month set, the result also carries movement series: each
// group's value minus its own baseline-month value, so the baseline month
// reads as 0. Groups with no rows in the baseline month are omitted from the
// movement map entirely rather than treated as moving from zero, and a
// baseline month with no data at all yields the plain series without
// movement.
func Trend(t *dataset.Table, p TrendParams) (*domain.TrendSeries, error) {
	dates, err := dateColumn(t, p.DateColumn)
	if err != nil {
		return nil, err
	}
	group, ok := t.Column(p.GroupColumn)
	if !ok {
		return nil, apperrors.NewMissingDataError(fmt.Sprintf("group column %q not found", p.GroupColumn))
	}
	values, err := valueColumn(t, p.Aggregation, p.ValueColumn)
	if err != nil {
		return nil, err
	}

	buckets := make(map[bucketKey]*accumulator)
	totals := make(map[string]*accumulator)
	monthSet := make(map[string]bool)

	for i := 0; i < t.NumRows(); i++ {
		d, ok := dateValue(dates, i)
		if !ok {
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

		month := d.Format(MonthKey)
		g := groupLabel(group, i)
		monthSet[month] = true

		key := bucketKey{month: month, group: g}
		if buckets[key] == nil {
			buckets[key] = newAccumulator(p.Aggregation)
		}
		buckets[key].addRow(v)

		if totals[g] == nil {
			totals[g] = newAccumulator(p.Aggregation)
		}
		totals[g].addRow(v)
	}

	months := make([]string, 0, len(monthSet))
	for m := range monthSet {
		months = append(months, m)
	}
	sort.Strings(months)

	groups := selectGroups(p, totals)

	result := &domain.TrendSeries{
		Months:      months,
		Groups:      groups,
		Series:      make(map[string][]float64, len(groups)),
		GroupTotals: make(map[string]float64, len(groups)),
	}
	for _, g := range groups {
		series := make([]float64, len(months))
		for i, m := range months {
			if b := buckets[bucketKey{month: m, group: g}]; b != nil {
				series[i] = b.result()
			}
		}
		result.Series[g] = series
		if tot := totals[g]; tot != nil {
			result.GroupTotals[g] = tot.result()
		}
	}

	if p.BaselineMonth != "" {
		applyBaseline(result, buckets, p.BaselineMonth)
	}
	return result, nil
}

// selectGroups picks the groups to report: an explicit list, or the top-N
// groups by total aggregate. Either way the result is ordered by total
// descending, ties broken by name; explicit groups absent from the data sort
// as zero.
func selectGroups(p TrendParams, totals map[string]*accumulator) []string {
	var groups []string
	if len(p.Groups) > 0 {
		groups = append([]string(nil), p.Groups...)
	} else {
		groups = make([]string, 0, len(totals))
		for g := range totals {
			groups = append(groups, g)
		}
	}
	total := func(g string) float64 {
		if acc := totals[g]; acc != nil {
			return acc.result()
		}
		return 0
	}
	sort.Slice(groups, func(i, j int) bool {
		ti, tj := total(groups[i]), total(groups[j])
		if ti != tj {
			return ti > tj
		}
		return groups[i] < groups[j]
	})
	if len(p.Groups) == 0 && p.TopGroups > 0 && len(groups) > p.TopGroups {
		groups = groups[:p.TopGroups]
	}
	return groups
}

// applyBaseline fills the movement fields of a computed trend. A baseline
// month with no data at all leaves the trend untouched, so callers get the
// plain series instead of an error.
func applyBaseline(result *domain.TrendSeries, buckets map[bucketKey]*accumulator, baseline string) {
	found := false
	for _, m := range result.Months {
		if m == baseline {
			found = true
			break
		}
	}
	if !found {
		return
	}

	result.BaselineMonth = baseline
	result.BaselineValues = make(map[string]float64)
	result.Movement = make(map[string][]float64)
	for _, g := range result.Groups {
		b := buckets[bucketKey{month: baseline, group: g}]
		if b == nil || !b.present() {
			continue
		}
		base := b.result()
		result.BaselineValues[g] = base
		series := result.Series[g]
		movement := make([]float64, len(series))
		for i, v := range series {
			movement[i] = v - base
		}
		result.Movement[g] = movement
	}
}
