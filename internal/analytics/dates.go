package analytics

import (
	"fmt"
	"time"

	"datapulse/internal/dataset"
	apperrors "datapulse/internal/errors"
	"datapulse/pkg/contracts/domain"
)

// BlankLabel is the group name given to rows whose group cell is missing.
const BlankLabel = "(blank)"

// MonthKey is the layout of monthly bucket labels.
const MonthKey = "2006-01"

// dateValue extracts row i of a date column. Columns that were never
// normalized to the Date type fall back to parsing their text rendering.
func dateValue(c *dataset.Column, i int) (time.Time, bool) {
	if c.IsMissing(i) {
		return time.Time{}, false
	}
	if c.DataType() == dataset.TypeDate {
		return c.DateAt(i), true
	}
	return dataset.ParseDate(c.StringAt(i))
}

// dateColumn resolves the named date column or reports missing data.
func dateColumn(t *dataset.Table, name string) (*dataset.Column, error) {
	if name == "" {
		return nil, apperrors.NewMissingDataError("no date column configured")
	}
	c, ok := t.Column(name)
	if !ok {
		return nil, apperrors.NewMissingDataError(fmt.Sprintf("date column %q not found", name))
	}
	return c, nil
}

// DateRange returns the span of the project's designated date column.
// Rows with missing or unparseable dates are ignored; a dataset without a
// single usable date yields an empty span, not an error.
func DateRange(t *dataset.Table, dateCol string) (domain.DateSpan, error) {
	c, err := dateColumn(t, dateCol)
	if err != nil {
		return domain.DateSpan{}, err
	}

	span := domain.DateSpan{Empty: true}
	for i := 0; i < c.Len(); i++ {
		d, ok := dateValue(c, i)
		if !ok {
			continue
		}
		if span.Empty {
			span = domain.DateSpan{Min: d, Max: d}
			continue
		}
		if d.Before(span.Min) {
			span.Min = d
		}
		if d.After(span.Max) {
			span.Max = d
		}
	}
	return span, nil
}

// FilterByDates returns the rows whose date falls inside the inclusive
// [start, end] bounds. A nil bound is open on that side. Rows with missing
// dates are excluded from any filtered view; with both bounds nil the input
// table is returned unchanged, missing dates included.
func FilterByDates(t *dataset.Table, dateCol string, start, end *time.Time) (*dataset.Table, error) {
	if start == nil && end == nil {
		return t, nil
	}
	c, err := dateColumn(t, dateCol)
	if err != nil {
		return nil, err
	}

	keep := make([]int, 0, t.NumRows())
	for i := 0; i < t.NumRows(); i++ {
		d, ok := dateValue(c, i)
		if !ok {
			continue
		}
		if start != nil && d.Before(*start) {
			continue
		}
		if end != nil && d.After(*end) {
			continue
		}
		keep = append(keep, i)
	}
	return t.Take(keep), nil
}

// filterPeriod is FilterByDates over a closed Period.
func filterPeriod(t *dataset.Table, dateCol string, p domain.Period) (*dataset.Table, error) {
	return FilterByDates(t, dateCol, &p.Start, &p.End)
}
