package analytics

import (
	"fmt"
	"sort"
	"time"

	"datapulse/internal/dataset"
	apperrors "datapulse/internal/errors"
	"datapulse/pkg/contracts/domain"
)

// TopN returns the n most frequent values of a column, optionally restricted
// to rows whose date falls inside [start, end]. Missing cells are not
// counted as a value. Ties rank in first-encounter row order, so repeated
// calls over the same dataset return the same breakdown.
func TopN(t *dataset.Table, dateCol, column string, n int, start, end *time.Time) ([]domain.ValueCount, error) {
	filtered := t
	if start != nil || end != nil {
		var err error
		filtered, err = FilterByDates(t, dateCol, start, end)
		if err != nil {
			return nil, err
		}
	}

	c, ok := filtered.Column(column)
	if !ok {
		return nil, apperrors.NewMissingDataError(fmt.Sprintf("column %q not found", column))
	}

	counts := make(map[string]int)
	firstSeen := make(map[string]int)
	for i := 0; i < c.Len(); i++ {
		if c.IsMissing(i) {
			continue
		}
		v := c.StringAt(i)
		if _, ok := counts[v]; !ok {
			firstSeen[v] = i
		}
		counts[v]++
	}

	entries := make([]domain.ValueCount, 0, len(counts))
	for v, count := range counts {
		entries = append(entries, domain.ValueCount{Value: v, Count: count})
	}
	sort.Slice(entries, func(i, j int) bool {
		if entries[i].Count != entries[j].Count {
			return entries[i].Count > entries[j].Count
		}
		return firstSeen[entries[i].Value] < firstSeen[entries[j].Value]
	})

	if n > 0 && len(entries) > n {
		entries = entries[:n]
	}
	return entries, nil
}
