package analytics

import (
	"fmt"

	"datapulse/internal/dataset"
	apperrors "datapulse/internal/errors"
	"datapulse/pkg/contracts/domain"
)

// accumulator folds row values into a single aggregate. The zero value is
// "no rows seen"; Result of an empty accumulator is 0.
type accumulator struct {
	agg   domain.Aggregation
	n     int
	sum   float64
	min   float64
	max   float64
	seen  bool
	count int
}

func newAccumulator(agg domain.Aggregation) *accumulator {
	return &accumulator{agg: agg}
}

// addRow records one matching row. v is ignored for count.
func (a *accumulator) addRow(v float64) {
	a.count++
	if a.agg == domain.AggCount {
		return
	}
	a.n++
	a.sum += v
	if !a.seen || v < a.min {
		a.min = v
	}
	if !a.seen || v > a.max {
		a.max = v
	}
	a.seen = true
}

// present reports whether any row landed in this bucket.
func (a *accumulator) present() bool {
	return a.count > 0
}

func (a *accumulator) result() float64 {
	switch a.agg {
	case domain.AggCount:
		return float64(a.count)
	case domain.AggSum:
		return a.sum
	case domain.AggAverage:
		if a.n == 0 {
			return 0
		}
		return a.sum / float64(a.n)
	case domain.AggMin:
		if !a.seen {
			return 0
		}
		return a.min
	case domain.AggMax:
		if !a.seen {
			return 0
		}
		return a.max
	default:
		return 0
	}
}

// valueColumn resolves and validates the numeric value column for an
// aggregation, returning nil for count, which needs none.
func valueColumn(t *dataset.Table, agg domain.Aggregation, name string) (*dataset.Column, error) {
	if !agg.Valid() {
		return nil, apperrors.NewValidationError(fmt.Sprintf("unsupported aggregation %q", agg))
	}
	if !agg.RequiresValueColumn() {
		return nil, nil
	}
	if name == "" {
		return nil, apperrors.NewMissingDataError(fmt.Sprintf("aggregation %q requires a value column", agg))
	}
	c, ok := t.Column(name)
	if !ok {
		return nil, apperrors.NewMissingDataError(fmt.Sprintf("value column %q not found", name))
	}
	if c.DataType() != dataset.TypeInt && c.DataType() != dataset.TypeFloat {
		return nil, apperrors.NewMissingDataError(fmt.Sprintf("value column %q is not numeric", name))
	}
	return c, nil
}

// groupLabel renders a group cell, mapping missing cells to the blank label.
func groupLabel(c *dataset.Column, i int) string {
	if c.IsMissing(i) {
		return BlankLabel
	}
	return c.StringAt(i)
}
