package audit

import (
	"math"
	"sort"
	"strings"
	"time"

	"datapulse/internal/dataset"
	"datapulse/pkg/contracts/domain"
)

// vendorWords and amountWords guess the party/amount columns from the
// configured display names when running the split-transaction check.
var (
	vendorWords = []string{"vendor", "supplier", "transporter", "agent", "party"}
	amountWords = []string{"amount", "value", "cost", "price", "total", "sum"}
)

// RunAllChecks executes every audit check over the dataset and returns the
// findings ordered by severity, with a count summary. The project settings
// steer the checks: top columns become duplicate keys, the date column
// drives the time-based checks, and display names hint at which columns
// hold parties and amounts.
func RunAllChecks(t *dataset.Table, settings domain.ProjectSettings) *domain.ScanResult {
	var keyCols []string
	for _, tc := range settings.TopColumns {
		if tc.Column != "" {
			keyCols = append(keyCols, tc.Column)
		}
	}

	var numericCols, catCols []string
	for _, name := range t.VisibleNames() {
		c, _ := t.Column(name)
		switch c.DataType() {
		case dataset.TypeInt, dataset.TypeFloat:
			numericCols = append(numericCols, name)
		case dataset.TypeText:
			catCols = append(catCols, name)
		}
	}

	vendorCol, amountCol := guessRoleColumns(settings, numericCols)

	var findings []domain.Finding
	findings = append(findings, CheckDuplicates(t, keyCols)...)
	findings = append(findings, CheckOutliers(t, numericCols)...)
	findings = append(findings, CheckConcentration(t, catCols)...)
	findings = append(findings, CheckTrendAnomalies(t, settings.DateColumn)...)
	findings = append(findings, CheckMissingData(t)...)
	findings = append(findings, CheckRoundNumbers(t, numericCols)...)
	findings = append(findings, CheckWeekendActivity(t, settings.DateColumn)...)
	findings = append(findings, CheckBenfordsLaw(t, numericCols)...)
	findings = append(findings, CheckSplitTransactions(t, settings.DateColumn, vendorCol, amountCol)...)

	sort.SliceStable(findings, func(i, j int) bool {
		return levelRank(findings[i].Level) < levelRank(findings[j].Level)
	})

	summary := domain.ScanSummary{
		TotalRows:     t.NumRows(),
		TotalFindings: len(findings),
	}
	for _, f := range findings {
		switch f.Level {
		case domain.LevelHigh:
			summary.High++
		case domain.LevelMedium:
			summary.Medium++
		case domain.LevelLow:
			summary.Low++
		}
	}
	return &domain.ScanResult{Summary: summary, Findings: findings}
}

// guessRoleColumns resolves the vendor and amount columns, preferring the
// display-name hints of the settings over column-name matches.
func guessRoleColumns(settings domain.ProjectSettings, numericCols []string) (vendorCol, amountCol string) {
	for _, tc := range settings.TopColumns {
		display := strings.ToLower(tc.DisplayName)
		if vendorCol == "" && containsAny(display, vendorWords) {
			vendorCol = tc.Column
		}
		if amountCol == "" && containsAny(display, amountWords) {
			amountCol = tc.Column
		}
	}
	if amountCol == "" {
		for _, name := range numericCols {
			if containsAny(strings.ToLower(name), amountWords) {
				amountCol = name
				break
			}
		}
	}
	return vendorCol, amountCol
}

func containsAny(s string, words []string) bool {
	for _, w := range words {
		if strings.Contains(s, w) {
			return true
		}
	}
	return false
}

func levelRank(level domain.FindingLevel) int {
	switch level {
	case domain.LevelHigh:
		return 0
	case domain.LevelMedium:
		return 1
	case domain.LevelLow:
		return 2
	default:
		return 3
	}
}

func capped(names []string, n int) []string {
	if len(names) > n {
		return names[:n]
	}
	return names
}

// numericValues extracts the non-missing values of a numeric column.
func numericValues(c *dataset.Column) []float64 {
	out := make([]float64, 0, c.Len())
	for i := 0; i < c.Len(); i++ {
		if v, ok := c.NumberAt(i); ok && !math.IsNaN(v) {
			out = append(out, v)
		}
	}
	return out
}

// dateAt reads row i of a column as a date, parsing text renderings when
// the column was never normalized.
func dateAt(c *dataset.Column, i int) (time.Time, bool) {
	if c.IsMissing(i) {
		return time.Time{}, false
	}
	if c.DataType() == dataset.TypeDate {
		return c.DateAt(i), true
	}
	return dataset.ParseDate(c.StringAt(i))
}

// dateValues extracts every parseable date of the named column.
func dateValues(t *dataset.Table, dateCol string) []time.Time {
	if dateCol == "" {
		return nil
	}
	c, ok := t.Column(dateCol)
	if !ok {
		return nil
	}
	out := make([]time.Time, 0, c.Len())
	for i := 0; i < c.Len(); i++ {
		if d, ok := dateAt(c, i); ok {
			out = append(out, d)
		}
	}
	return out
}

// monthlyCounts buckets the date column's rows by calendar month, ascending.
func monthlyCounts(t *dataset.Table, dateCol string) ([]string, []float64) {
	byMonth := make(map[string]float64)
	for _, d := range dateValues(t, dateCol) {
		byMonth[d.Format("2006-01")]++
	}
	months := make([]string, 0, len(byMonth))
	for m := range byMonth {
		months = append(months, m)
	}
	sort.Strings(months)
	counts := make([]float64, len(months))
	for i, m := range months {
		counts[i] = byMonth[m]
	}
	return months, counts
}

// quantile interpolates linearly between the closest ranks of a sorted
// slice, matching the convention spreadsheets use.
func quantile(sorted []float64, q float64) float64 {
	if len(sorted) == 0 {
		return 0
	}
	pos := q * float64(len(sorted)-1)
	lo := int(math.Floor(pos))
	hi := int(math.Ceil(pos))
	if lo == hi {
		return sorted[lo]
	}
	frac := pos - float64(lo)
	return sorted[lo]*(1-frac) + sorted[hi]*frac
}

// firstDigit returns the leading significant digit of |v|, or 0 for zero
// and non-finite values.
func firstDigit(v float64) int {
	v = math.Abs(v)
	if v == 0 || math.IsInf(v, 0) || math.IsNaN(v) {
		return 0
	}
	for v >= 10 {
		v /= 10
	}
	for v < 1 {
		v *= 10
	}
	return int(v)
}

func round1(v float64) float64 {
	return math.Round(v*10) / 10
}
