package analytics

import (
	"strings"

	"datapulse/internal/dataset"
	"datapulse/pkg/contracts/domain"
)

// sampleLimit is how many distinct values a column stat quotes.
const sampleLimit = 3

// ColumnStats describes every visible column of the dataset: type, fill
// rate, cardinality and a few sample values.
func ColumnStats(t *dataset.Table) []domain.ColumnStat {
	visible := t.Visible()
	stats := make([]domain.ColumnStat, 0, visible.NumCols())
	rows := visible.NumRows()

	for ci := 0; ci < visible.NumCols(); ci++ {
		c := visible.ColumnAt(ci)

		filled := 0
		var samples []string
		seen := make(map[string]bool)
		for i := 0; i < c.Len(); i++ {
			if c.IsMissing(i) {
				continue
			}
			filled++
			if len(samples) < sampleLimit {
				v := c.StringAt(i)
				if !seen[v] {
					seen[v] = true
					samples = append(samples, v)
				}
			}
		}

		stat := domain.ColumnStat{
			Name:          c.Name(),
			Type:          c.DataType().String(),
			DistinctCount: c.DistinctCount(),
			SampleValues:  strings.Join(samples, ", "),
		}
		if rows > 0 {
			stat.FillPct = float64(filled) / float64(rows) * 100
		}
		stat.HasDuplicates = stat.DistinctCount < rows
		stats = append(stats, stat)
	}
	return stats
}

// Catalog splits the visible columns by detected role for the dashboard's
// column selectors. A text column whose values parse as dates counts as a
// date column even before normalization has run.
func Catalog(t *dataset.Table) domain.ColumnCatalog {
	visible := t.Visible()
	catalog := domain.ColumnCatalog{
		Columns:        visible.ColumnNames(),
		DateColumns:    []string{},
		NumericColumns: []string{},
	}
	for ci := 0; ci < visible.NumCols(); ci++ {
		c := visible.ColumnAt(ci)
		switch c.DataType() {
		case dataset.TypeInt, dataset.TypeFloat:
			catalog.NumericColumns = append(catalog.NumericColumns, c.Name())
		case dataset.TypeDate:
			catalog.DateColumns = append(catalog.DateColumns, c.Name())
		case dataset.TypeText:
			if looksLikeDates(c) {
				catalog.DateColumns = append(catalog.DateColumns, c.Name())
			}
		}
	}
	return catalog
}

// looksLikeDates samples a text column and reports whether its leading
// non-missing values all parse as dates.
func looksLikeDates(c *dataset.Column) bool {
	checked := 0
	for i := 0; i < c.Len() && checked < 10; i++ {
		if c.IsMissing(i) {
			continue
		}
		if _, ok := dataset.ParseDate(c.StringAt(i)); !ok {
			return false
		}
		checked++
	}
	return checked > 0
}
