package audit

import (
	"fmt"
	"math"
	"sort"
	"strings"
	"time"

	"datapulse/internal/dataset"
	"datapulse/pkg/contracts/domain"
)

// Column caps keep a single scan bounded on very wide datasets.
const (
	maxOutlierColumns       = 20
	maxConcentrationColumns = 15
	maxRoundNumberColumns   = 15
	maxBenfordColumns       = 10
	maxDuplicateEvidence    = 20
	maxSplitEvidence        = 20
)

// splitThresholds are common approval limits checked for transaction
// splitting.
var splitThresholds = []float64{1000, 5000, 10000, 25000, 50000, 100000}

// CheckDuplicates flags rows that repeat across the key columns, or across
// every visible column when no keys are given.
func CheckDuplicates(t *dataset.Table, keyCols []string) []domain.Finding {
	cols := make([]*dataset.Column, 0, len(keyCols))
	names := make([]string, 0, len(keyCols))
	if len(keyCols) == 0 {
		keyCols = t.VisibleNames()
	}
	for _, name := range keyCols {
		if name == dataset.ProvenanceColumn {
			continue
		}
		if c, ok := t.Column(name); ok {
			cols = append(cols, c)
			names = append(names, name)
		}
	}
	if len(cols) == 0 {
		return nil
	}

	groups := make(map[string][]int)
	for i := 0; i < t.NumRows(); i++ {
		var key strings.Builder
		for _, c := range cols {
			key.WriteString(c.StringAt(i))
			key.WriteByte(0x1f)
		}
		k := key.String()
		groups[k] = append(groups[k], i)
	}

	dupRows := 0
	dupGroups := 0
	var sampleRows []int
	keys := make([]string, 0, len(groups))
	for k := range groups {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		rows := groups[k]
		if len(rows) < 2 {
			continue
		}
		dupGroups++
		dupRows += len(rows)
		sampleRows = append(sampleRows, rows...)
	}
	if dupRows == 0 {
		return nil
	}

	if len(sampleRows) > maxDuplicateEvidence {
		sampleRows = sampleRows[:maxDuplicateEvidence]
	}
	evidence := make([]map[string]interface{}, 0, len(sampleRows))
	for _, r := range sampleRows {
		row := make(map[string]interface{}, len(names))
		for i, name := range names {
			if cols[i].IsMissing(r) {
				row[name] = nil
			} else {
				row[name] = cols[i].StringAt(r)
			}
		}
		evidence = append(evidence, row)
	}

	level := domain.LevelLow
	if dupRows > 100 {
		level = domain.LevelHigh
	} else if dupRows > 10 {
		level = domain.LevelMedium
	}
	return []domain.Finding{{
		CheckType: "duplicate",
		Level:     level,
		Title:     fmt.Sprintf("%d duplicate rows found", dupRows),
		Detail:    fmt.Sprintf("%d groups of duplicate records detected across %d columns.", dupGroups, len(names)),
		Evidence:  evidence,
		Stats: map[string]interface{}{
			"total_duplicates": dupRows,
			"groups":           dupGroups,
			"columns_checked":  names,
		},
	}}
}

// CheckOutliers applies the 1.5-IQR rule per numeric column.
func CheckOutliers(t *dataset.Table, numericCols []string) []domain.Finding {
	var findings []domain.Finding
	for _, name := range capped(numericCols, maxOutlierColumns) {
		c, ok := t.Column(name)
		if !ok {
			continue
		}
		values := numericValues(c)
		if len(values) < 10 {
			continue
		}

		sorted := append([]float64(nil), values...)
		sort.Float64s(sorted)
		q1 := quantile(sorted, 0.25)
		q3 := quantile(sorted, 0.75)
		iqr := q3 - q1
		if iqr == 0 {
			continue
		}
		lower := q1 - 1.5*iqr
		upper := q3 + 1.5*iqr

		var outliers []float64
		for _, v := range values {
			if v < lower || v > upper {
				outliers = append(outliers, v)
			}
		}
		if len(outliers) == 0 {
			continue
		}

		pct := round1(float64(len(outliers)) / float64(t.NumRows()) * 100)
		level := domain.LevelLow
		if pct > 10 {
			level = domain.LevelHigh
		} else if pct > 3 {
			level = domain.LevelMedium
		}

		evidence := make([]map[string]interface{}, 0, 10)
		for _, v := range outliers {
			if len(evidence) == 10 {
				break
			}
			evidence = append(evidence, map[string]interface{}{
				"value":          v,
				"expected_range": fmt.Sprintf("%.2f - %.2f", lower, upper),
			})
		}

		findings = append(findings, domain.Finding{
			CheckType: "outlier",
			Level:     level,
			Title:     fmt.Sprintf("%d outliers in %q (%v%%)", len(outliers), name, pct),
			Detail:    fmt.Sprintf("Values outside IQR range [%.2f, %.2f]. Q1=%.2f, Q3=%.2f.", lower, upper, q1, q3),
			Evidence:  evidence,
			Stats: map[string]interface{}{
				"column":        name,
				"outlier_count": len(outliers),
				"pct":           pct,
				"lower_bound":   lower,
				"upper_bound":   upper,
			},
		})
	}
	return findings
}

// CheckConcentration flags categorical columns dominated by one value.
func CheckConcentration(t *dataset.Table, catCols []string) []domain.Finding {
	var findings []domain.Finding
	for _, name := range capped(catCols, maxConcentrationColumns) {
		if name == dataset.ProvenanceColumn {
			continue
		}
		c, ok := t.Column(name)
		if !ok {
			continue
		}

		counts := make(map[string]int)
		order := make(map[string]int)
		total := 0
		for i := 0; i < c.Len(); i++ {
			if c.IsMissing(i) {
				continue
			}
			v := c.StringAt(i)
			if _, seen := counts[v]; !seen {
				order[v] = i
			}
			counts[v]++
			total++
		}
		if total == 0 {
			continue
		}

		ranked := make([]string, 0, len(counts))
		for v := range counts {
			ranked = append(ranked, v)
		}
		sort.Slice(ranked, func(i, j int) bool {
			if counts[ranked[i]] != counts[ranked[j]] {
				return counts[ranked[i]] > counts[ranked[j]]
			}
			return order[ranked[i]] < order[ranked[j]]
		})

		topPct := round1(float64(counts[ranked[0]]) / float64(total) * 100)
		if topPct < 25 {
			continue
		}

		evidence := make([]map[string]interface{}, 0, 5)
		for _, v := range ranked {
			if len(evidence) == 5 {
				break
			}
			evidence = append(evidence, map[string]interface{}{
				"value":      v,
				"percentage": round1(float64(counts[v]) / float64(total) * 100),
				"count":      counts[v],
			})
		}

		level := domain.LevelLow
		if topPct > 60 {
			level = domain.LevelHigh
		} else if topPct > 40 {
			level = domain.LevelMedium
		}
		findings = append(findings, domain.Finding{
			CheckType: "concentration",
			Level:     level,
			Title:     fmt.Sprintf("%q: top value is %v%% of all records", name, topPct),
			Detail:    fmt.Sprintf("%q accounts for %v%% (%d rows).", ranked[0], topPct, counts[ranked[0]]),
			Evidence:  evidence,
			Stats: map[string]interface{}{
				"column":       name,
				"top_value":    ranked[0],
				"top_pct":      topPct,
				"unique_count": len(counts),
			},
		})
	}
	return findings
}

// CheckTrendAnomalies flags months whose row volume jumped or dropped by
// more than twice the average month-over-month change.
func CheckTrendAnomalies(t *dataset.Table, dateCol string) []domain.Finding {
	months, counts := monthlyCounts(t, dateCol)
	if len(months) < 3 {
		return nil
	}

	var totalChange float64
	for i := 1; i < len(counts); i++ {
		totalChange += math.Abs(counts[i] - counts[i-1])
	}
	avgChange := totalChange / float64(len(counts)-1)
	if avgChange == 0 {
		return nil
	}

	var evidence []map[string]interface{}
	for i := 1; i < len(counts); i++ {
		change := counts[i] - counts[i-1]
		if math.Abs(change) <= 2*avgChange {
			continue
		}
		pctChange := 0.0
		if counts[i-1] != 0 {
			pctChange = round1(change / counts[i-1] * 100)
		}
		evidence = append(evidence, map[string]interface{}{
			"month":      months[i],
			"count":      int(counts[i]),
			"prev_count": int(counts[i-1]),
			"change":     int(change),
			"pct_change": pctChange,
		})
	}
	if len(evidence) == 0 {
		return nil
	}

	level := domain.LevelLow
	if len(evidence) > 3 {
		level = domain.LevelHigh
	} else if len(evidence) > 1 {
		level = domain.LevelMedium
	}
	if len(evidence) > 10 {
		evidence = evidence[:10]
	}
	return []domain.Finding{{
		CheckType: "trend_anomaly",
		Level:     level,
		Title:     fmt.Sprintf("%d monthly trend anomalies detected", len(evidence)),
		Detail:    fmt.Sprintf("Months with volume changes exceeding 2x the average monthly variation (%.0f).", avgChange),
		Evidence:  evidence,
		Stats: map[string]interface{}{
			"anomaly_count":      len(evidence),
			"avg_monthly_change": round1(avgChange),
		},
	}}
}

// CheckMissingData flags columns with more than 5% missing cells.
func CheckMissingData(t *dataset.Table) []domain.Finding {
	var findings []domain.Finding
	total := t.NumRows()
	if total == 0 {
		return nil
	}
	for _, name := range t.VisibleNames() {
		c, _ := t.Column(name)
		nulls := 0
		for i := 0; i < c.Len(); i++ {
			if c.IsMissing(i) {
				nulls++
			}
		}
		pct := round1(float64(nulls) / float64(total) * 100)
		if pct < 5 {
			continue
		}
		level := domain.LevelLow
		if pct > 50 {
			level = domain.LevelHigh
		} else if pct > 20 {
			level = domain.LevelMedium
		}
		findings = append(findings, domain.Finding{
			CheckType: "missing_data",
			Level:     level,
			Title:     fmt.Sprintf("%q: %v%% missing (%d rows)", name, pct, nulls),
			Detail:    fmt.Sprintf("Column has %d null/empty values out of %d total rows.", nulls, total),
			Evidence:  []map[string]interface{}{},
			Stats: map[string]interface{}{
				"column":     name,
				"null_count": nulls,
				"pct":        pct,
			},
		})
	}
	return findings
}

// CheckRoundNumbers flags numeric columns where a suspicious share of
// values are exact multiples of 100 or 1000.
func CheckRoundNumbers(t *dataset.Table, numericCols []string) []domain.Finding {
	var findings []domain.Finding
	for _, name := range capped(numericCols, maxRoundNumberColumns) {
		c, ok := t.Column(name)
		if !ok {
			continue
		}
		values := numericValues(c)
		if len(values) < 20 {
			continue
		}

		round1000, round100 := 0, 0
		for _, v := range values {
			if math.Mod(v, 1000) == 0 {
				round1000++
			}
			if math.Mod(v, 100) == 0 {
				round100++
			}
		}
		pct1000 := round1(float64(round1000) / float64(len(values)) * 100)
		pct100 := round1(float64(round100) / float64(len(values)) * 100)

		switch {
		case pct1000 > 30:
			level := domain.LevelLow
			if pct1000 > 50 {
				level = domain.LevelMedium
			}
			findings = append(findings, domain.Finding{
				CheckType: "round_numbers",
				Level:     level,
				Title:     fmt.Sprintf("%q: %v%% are round thousands", name, pct1000),
				Detail:    fmt.Sprintf("%d values are exact multiples of 1,000 — may indicate estimation or rounding.", round1000),
				Evidence:  []map[string]interface{}{},
				Stats: map[string]interface{}{
					"column":           name,
					"round_1000_count": round1000,
					"round_1000_pct":   pct1000,
					"round_100_pct":    pct100,
				},
			})
		case pct100 > 40:
			findings = append(findings, domain.Finding{
				CheckType: "round_numbers",
				Level:     domain.LevelLow,
				Title:     fmt.Sprintf("%q: %v%% are round hundreds", name, pct100),
				Detail:    fmt.Sprintf("%d values are exact multiples of 100.", round100),
				Evidence:  []map[string]interface{}{},
				Stats: map[string]interface{}{
					"column":          name,
					"round_100_count": round100,
					"round_100_pct":   pct100,
				},
			})
		}
	}
	return findings
}

// CheckWeekendActivity reports the share of rows dated on a Saturday or
// Sunday, with a day-of-week breakdown as evidence.
func CheckWeekendActivity(t *dataset.Table, dateCol string) []domain.Finding {
	dates := dateValues(t, dateCol)
	if len(dates) < 10 {
		return nil
	}

	weekend := 0
	dowCounts := make(map[time.Weekday]int)
	for _, d := range dates {
		dowCounts[d.Weekday()]++
		if d.Weekday() == time.Saturday || d.Weekday() == time.Sunday {
			weekend++
		}
	}
	if weekend == 0 {
		return nil
	}
	pct := round1(float64(weekend) / float64(len(dates)) * 100)

	evidence := make([]map[string]interface{}, 0, 7)
	for dow := time.Sunday; dow <= time.Saturday; dow++ {
		if n := dowCounts[dow]; n > 0 {
			evidence = append(evidence, map[string]interface{}{
				"day":   dow.String(),
				"count": n,
			})
		}
	}

	level := domain.LevelLow
	if pct > 15 {
		level = domain.LevelMedium
	}
	return []domain.Finding{{
		CheckType: "weekend_activity",
		Level:     level,
		Title:     fmt.Sprintf("%d weekend transactions (%v%%)", weekend, pct),
		Detail:    fmt.Sprintf("%d records dated on Saturday/Sunday out of %d total.", weekend, len(dates)),
		Evidence:  evidence,
		Stats: map[string]interface{}{
			"weekend_count": weekend,
			"total":         len(dates),
			"pct":           pct,
		},
	}}
}

// CheckBenfordsLaw compares each numeric column's first-digit distribution
// against Benford's expected distribution with a chi-squared test.
func CheckBenfordsLaw(t *dataset.Table, numericCols []string) []domain.Finding {
	const criticalValue = 15.51 // 8 degrees of freedom at 0.05 significance

	var findings []domain.Finding
	for _, name := range capped(numericCols, maxBenfordColumns) {
		c, ok := t.Column(name)
		if !ok {
			continue
		}
		values := numericValues(c)
		if len(values) < 100 {
			continue
		}

		digitCounts := make(map[int]int)
		n := 0
		for _, v := range values {
			d := firstDigit(v)
			if d >= 1 && d <= 9 {
				digitCounts[d]++
				n++
			}
		}
		if n < 50 {
			continue
		}

		chi2 := 0.0
		evidence := make([]map[string]interface{}, 0, 9)
		for d := 1; d <= 9; d++ {
			obsPct := float64(digitCounts[d]) / float64(n)
			expPct := math.Log10(1 + 1/float64(d))
			chi2 += (obsPct - expPct) * (obsPct - expPct) / expPct * float64(n)
			evidence = append(evidence, map[string]interface{}{
				"digit":        d,
				"observed_pct": round1(obsPct * 100),
				"expected_pct": round1(expPct * 100),
				"deviation":    round1((obsPct - expPct) * 100),
			})
		}
		if chi2 <= criticalValue {
			continue
		}

		level := domain.LevelMedium
		if chi2 > 30 {
			level = domain.LevelHigh
		}
		findings = append(findings, domain.Finding{
			CheckType: "benfords_law",
			Level:     level,
			Title:     fmt.Sprintf("%q deviates from Benford's Law (chi2=%.1f)", name, chi2),
			Detail:    fmt.Sprintf("First-digit distribution significantly deviates from expected pattern. High chi-squared (%.1f > %.2f) may indicate data manipulation.", chi2, criticalValue),
			Evidence:  evidence,
			Stats: map[string]interface{}{
				"column":      name,
				"chi_squared": math.Round(chi2*100) / 100,
				"sample_size": n,
			},
		})
	}
	return findings
}

// CheckSplitTransactions flags same-day, same-party transaction groups whose
// individual amounts all sit below an approval threshold while the combined
// total crosses it.
func CheckSplitTransactions(t *dataset.Table, dateCol, vendorCol, amountCol string) []domain.Finding {
	if dateCol == "" || amountCol == "" {
		return nil
	}
	dc, ok := t.Column(dateCol)
	if !ok {
		return nil
	}
	ac, ok := t.Column(amountCol)
	if !ok {
		return nil
	}
	var vc *dataset.Column
	if vendorCol != "" {
		vc, _ = t.Column(vendorCol)
	}

	type groupKey struct {
		date   string
		vendor string
	}
	amounts := make(map[groupKey][]float64)
	rowCount := 0
	for i := 0; i < t.NumRows(); i++ {
		d, ok := dateAt(dc, i)
		if !ok {
			continue
		}
		v, ok := ac.NumberAt(i)
		if !ok {
			continue
		}
		key := groupKey{date: d.Format("2006-01-02"), vendor: "N/A"}
		if vc != nil && !vc.IsMissing(i) {
			key.vendor = vc.StringAt(i)
		}
		amounts[key] = append(amounts[key], v)
		rowCount++
	}
	if rowCount < 10 {
		return nil
	}

	keys := make([]groupKey, 0, len(amounts))
	for k := range amounts {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool {
		if keys[i].date != keys[j].date {
			return keys[i].date < keys[j].date
		}
		return keys[i].vendor < keys[j].vendor
	})

	var evidence []map[string]interface{}
	for _, key := range keys {
		group := amounts[key]
		if len(group) < 2 {
			continue
		}
		var total float64
		for _, v := range group {
			total += v
		}
		for _, threshold := range splitThresholds {
			allBelow := true
			nearThreshold := 0
			for _, v := range group {
				if v >= threshold {
					allBelow = false
					break
				}
				if v > threshold*0.5 {
					nearThreshold++
				}
			}
			if allBelow && total >= threshold && nearThreshold >= 2 {
				sample := group
				if len(sample) > 5 {
					sample = sample[:5]
				}
				evidence = append(evidence, map[string]interface{}{
					"date":               key.date,
					"vendor":             key.vendor,
					"transaction_count":  len(group),
					"individual_amounts": append([]float64(nil), sample...),
					"total":              total,
					"threshold":          threshold,
				})
				break
			}
		}
		if len(evidence) >= maxSplitEvidence {
			break
		}
	}
	if len(evidence) == 0 {
		return nil
	}

	level := domain.LevelLow
	if len(evidence) > 5 {
		level = domain.LevelHigh
	} else if len(evidence) > 2 {
		level = domain.LevelMedium
	}
	if len(evidence) > 15 {
		evidence = evidence[:15]
	}
	return []domain.Finding{{
		CheckType: "split_transaction",
		Level:     level,
		Title:     fmt.Sprintf("%d potential split transactions detected", len(evidence)),
		Detail:    "Same-day transactions by the same party with individual amounts below approval thresholds but combined total exceeding them.",
		Evidence:  evidence,
		Stats: map[string]interface{}{
			"groups_flagged": len(evidence),
		},
	}}
}
