package dataset

import (
	"time"
)

// dateLayouts are tried in order when converting a column to dates. The
// display format used by the spreadsheet writer is included so exported
// files round-trip to the same calendar date.
var dateLayouts = []string{
	"2006-01-02",
	"2006-01-02 15:04:05",
	time.RFC3339,
	"02-Jan-2006",
	"2-Jan-2006",
	"02 Jan 2006",
	"2006/01/02",
	"01/02/2006",
	"01-02-2006",
}

// ParseDate parses a single raw value with the shared layout list.
func ParseDate(raw string) (time.Time, bool) {
	for _, layout := range dateLayouts {
		if d, err := time.Parse(layout, raw); err == nil {
			return d, true
		}
	}
	return time.Time{}, false
}

// NormalizeDateColumn converts the named column to the Date type, treating
// unparseable values as missing. A column already of Date type is returned
// untouched — the conversion never runs twice. The input table is never
// mutated; callers receive a new table sharing every other column.
func NormalizeDateColumn(t *Table, name string) (*Table, error) {
	c, ok := t.Column(name)
	if !ok {
		return t, nil
	}
	if c.typ == TypeDate {
		return t, nil
	}

	n := c.Len()
	dates := make([]time.Time, n)
	valid := make([]bool, n)
	for i := 0; i < n; i++ {
		if c.IsMissing(i) {
			continue
		}
		if d, ok := ParseDate(c.StringAt(i)); ok {
			dates[i] = d
			valid[i] = true
		}
	}
	return t.WithColumn(NewDateColumn(name, dates, valid))
}
