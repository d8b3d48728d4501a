package services

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"datapulse/internal/analytics"
	"datapulse/internal/cache"
	"datapulse/internal/dataset"
	apperrors "datapulse/internal/errors"
	"datapulse/internal/project"
	"datapulse/pkg/contracts/domain"
)

// ExportService assembles downloadable workbooks from cached datasets.
// Every export is built lazily on request; nothing is pregenerated and the
// cached table is never mutated.
type ExportService struct {
	store  *project.Store
	cache  *cache.Service
	logger *slog.Logger
}

// NewExportService wires the export facade.
func NewExportService(store *project.Store, c *cache.Service, logger *slog.Logger) *ExportService {
	if logger == nil {
		logger = slog.Default()
	}
	return &ExportService{store: store, cache: c, logger: logger}
}

// Export formats.
const (
	FormatXLSX = "xlsx"
	FormatCSV  = "csv"
)

// ContentType returns the MIME type for an export format.
func ContentType(format string) string {
	if format == FormatCSV {
		return "text/csv; charset=utf-8"
	}
	return "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
}

// Dataset exports the full consolidated dataset as xlsx or csv.
func (s *ExportService) Dataset(ctx context.Context, projectID, format string) ([]byte, string, error) {
	table, err := s.cache.Get(projectID, false)
	if err != nil {
		return nil, "", err
	}
	visible := table.Visible()

	name := fmt.Sprintf("%s_consolidated.%s", projectID, format)
	switch format {
	case FormatCSV:
		data, err := dataset.WriteCSV(visible)
		return data, name, err
	case FormatXLSX, "":
		data, err := dataset.WriteWorkbook([]dataset.Sheet{{Name: "Data", Table: visible}})
		return data, fmt.Sprintf("%s_consolidated.xlsx", projectID), err
	default:
		return nil, "", apperrors.NewValidationError(fmt.Sprintf("unsupported export format %q", format))
	}
}

// Filtered exports the rows inside an inclusive date range.
func (s *ExportService) Filtered(ctx context.Context, projectID, format string, start, end *time.Time) ([]byte, string, error) {
	table, err := s.cache.Get(projectID, false)
	if err != nil {
		return nil, "", err
	}
	dateCol, err := s.store.DateColumn(projectID)
	if err != nil {
		return nil, "", err
	}
	filtered, err := analytics.FilterByDates(table, dateCol, start, end)
	if err != nil {
		return nil, "", err
	}
	visible := filtered.Visible()

	name := fmt.Sprintf("%s_filtered.%s", projectID, format)
	if format == FormatCSV {
		data, err := dataset.WriteCSV(visible)
		return data, name, err
	}
	data, err := dataset.WriteWorkbook([]dataset.Sheet{{Name: "Data", Table: visible}})
	return data, fmt.Sprintf("%s_filtered.xlsx", projectID), err
}

// TopN exports a ranked frequency breakdown with a Summary sheet.
func (s *ExportService) TopN(ctx context.Context, projectID, column string, n int, start, end *time.Time) ([]byte, string, error) {
	table, err := s.cache.Get(projectID, false)
	if err != nil {
		return nil, "", err
	}
	dateCol, err := s.store.DateColumn(projectID)
	if err != nil {
		return nil, "", err
	}
	entries, err := analytics.TopN(table, dateCol, column, n, start, end)
	if err != nil {
		return nil, "", err
	}

	summary, err := summarySheet([][2]string{
		{"Project", projectID},
		{"Column", column},
		{"Entries", fmt.Sprintf("%d", len(entries))},
		{"Generated", time.Now().UTC().Format(time.RFC3339)},
	})
	if err != nil {
		return nil, "", err
	}

	ranks := make([]int64, len(entries))
	values := make([]string, len(entries))
	counts := make([]int64, len(entries))
	for i, e := range entries {
		ranks[i] = int64(i + 1)
		values[i] = e.Value
		counts[i] = int64(e.Count)
	}
	data, err := dataset.New(
		dataset.NewIntColumn("Rank", ranks, nil),
		dataset.NewTextColumn(column, values, nil),
		dataset.NewIntColumn("Count", counts, nil),
	)
	if err != nil {
		return nil, "", err
	}

	out, err := dataset.WriteWorkbook([]dataset.Sheet{
		{Name: "Summary", Table: summary},
		{Name: "Data", Table: data},
	})
	return out, fmt.Sprintf("%s_top_%s.xlsx", projectID, column), err
}

// Trend exports the monthly trend workbook: Summary, Raw Data (months ×
// groups) and, when a baseline month was requested, Movement Data.
func (s *ExportService) Trend(ctx context.Context, projectID string, params analytics.TrendParams) ([]byte, string, error) {
	table, err := s.cache.Get(projectID, false)
	if err != nil {
		return nil, "", err
	}
	if params.DateColumn == "" {
		params.DateColumn, err = s.store.DateColumn(projectID)
		if err != nil {
			return nil, "", err
		}
	}
	trend, err := analytics.Trend(table, params)
	if err != nil {
		return nil, "", err
	}

	rows := [][2]string{
		{"Project", projectID},
		{"Group Column", params.GroupColumn},
		{"Aggregation", string(params.Aggregation)},
		{"Months", fmt.Sprintf("%d", len(trend.Months))},
		{"Groups", fmt.Sprintf("%d", len(trend.Groups))},
	}
	if params.ValueColumn != "" {
		rows = append(rows, [2]string{"Value Column", params.ValueColumn})
	}
	if trend.BaselineMonth != "" {
		rows = append(rows, [2]string{"Baseline Month", trend.BaselineMonth})
	}
	summary, err := summarySheet(rows)
	if err != nil {
		return nil, "", err
	}

	raw, err := seriesSheet(trend.Months, trend.Groups, trend.Series)
	if err != nil {
		return nil, "", err
	}

	sheets := []dataset.Sheet{
		{Name: "Summary", Table: summary},
		{Name: "Raw Data", Table: raw},
	}
	if trend.Movement != nil {
		movementGroups := make([]string, 0, len(trend.Groups))
		for _, g := range trend.Groups {
			if _, ok := trend.Movement[g]; ok {
				movementGroups = append(movementGroups, g)
			}
		}
		movement, err := seriesSheet(trend.Months, movementGroups, trend.Movement)
		if err != nil {
			return nil, "", err
		}
		sheets = append(sheets, dataset.Sheet{Name: "Movement Data", Table: movement})
	}

	out, err := dataset.WriteWorkbook(sheets)
	return out, fmt.Sprintf("%s_trend_%s.xlsx", projectID, params.GroupColumn), err
}

// Comparison exports a two-period comparison workbook.
func (s *ExportService) Comparison(ctx context.Context, projectID string, cmp *domain.Comparison) ([]byte, string, error) {
	summary, err := summarySheet([][2]string{
		{"Project", projectID},
		{"Column", cmp.Column},
		{"Period 1", periodLabel(cmp.Period1)},
		{"Period 2", periodLabel(cmp.Period2)},
		{"Period 1 Rows", fmt.Sprintf("%d", cmp.Period1.Rows)},
		{"Period 2 Rows", fmt.Sprintf("%d", cmp.Period2.Rows)},
	})
	if err != nil {
		return nil, "", err
	}

	n := len(cmp.Entries)
	values := make([]string, n)
	c1 := make([]float64, n)
	c2 := make([]float64, n)
	change := make([]float64, n)
	changeValid := make([]bool, n)
	isNew := make([]string, n)
	for i, e := range cmp.Entries {
		values[i] = e.Value
		c1[i] = e.Count1
		c2[i] = e.Count2
		change[i] = e.ChangePct
		changeValid[i] = !e.IsNew
		if e.IsNew {
			isNew[i] = "new"
		}
	}
	comparison, err := dataset.New(
		dataset.NewTextColumn(cmp.Column, values, nil),
		dataset.NewFloatColumn("Period 1", c1, nil),
		dataset.NewFloatColumn("Period 2", c2, nil),
		dataset.NewFloatColumn("Change %", change, changeValid),
		dataset.NewTextColumn("Status", isNew, nil),
	)
	if err != nil {
		return nil, "", err
	}

	out, err := dataset.WriteWorkbook([]dataset.Sheet{
		{Name: "Summary", Table: summary},
		{Name: "Comparison", Table: comparison},
	})
	return out, fmt.Sprintf("%s_comparison_%s.xlsx", projectID, cmp.Column), err
}

// ColumnStats exports the column statistics workbook.
func (s *ExportService) ColumnStats(ctx context.Context, projectID string) ([]byte, string, error) {
	table, err := s.cache.Get(projectID, false)
	if err != nil {
		return nil, "", err
	}
	stats := analytics.ColumnStats(table)

	n := len(stats)
	names := make([]string, n)
	types := make([]string, n)
	fill := make([]float64, n)
	distinct := make([]int64, n)
	dupes := make([]bool, n)
	samples := make([]string, n)
	for i, st := range stats {
		names[i] = st.Name
		types[i] = st.Type
		fill[i] = st.FillPct
		distinct[i] = int64(st.DistinctCount)
		dupes[i] = st.HasDuplicates
		samples[i] = st.SampleValues
	}
	sheet, err := dataset.New(
		dataset.NewTextColumn("Column", names, nil),
		dataset.NewTextColumn("Type", types, nil),
		dataset.NewFloatColumn("Fill %", fill, nil),
		dataset.NewIntColumn("Distinct Values", distinct, nil),
		dataset.NewBoolColumn("Has Duplicates", dupes, nil),
		dataset.NewTextColumn("Sample Values", samples, nil),
	)
	if err != nil {
		return nil, "", err
	}

	out, err := dataset.WriteWorkbook([]dataset.Sheet{{Name: "Column Stats", Table: sheet}})
	return out, fmt.Sprintf("%s_column_stats.xlsx", projectID), err
}

// summarySheet builds a two-column Metric/Value sheet.
func summarySheet(rows [][2]string) (*dataset.Table, error) {
	metrics := make([]string, len(rows))
	values := make([]string, len(rows))
	for i, r := range rows {
		metrics[i] = r[0]
		values[i] = r[1]
	}
	return dataset.New(
		dataset.NewTextColumn("Metric", metrics, nil),
		dataset.NewTextColumn("Value", values, nil),
	)
}

// seriesSheet lays a month × group series out as a wide table: one Month
// column followed by one numeric column per group.
func seriesSheet(months, groups []string, series map[string][]float64) (*dataset.Table, error) {
	cols := make([]*dataset.Column, 0, len(groups)+1)
	cols = append(cols, dataset.NewTextColumn("Month", months, nil))
	for _, g := range groups {
		cols = append(cols, dataset.NewFloatColumn(g, series[g], nil))
	}
	return dataset.New(cols...)
}

func periodLabel(p domain.PeriodSummary) string {
	const layout = "2006-01-02"
	return p.Start.Format(layout) + " to " + p.End.Format(layout)
}
