package services

import (
	"bytes"
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"datapulse/internal/audit"
	"datapulse/internal/cache"
	apperrors "datapulse/internal/errors"
	"datapulse/internal/project"
	"datapulse/pkg/contracts/domain"
)

const salesCSV = "Region,Amount,Date\n" +
	"East,100,2024-01-15\n" +
	"East,50,2024-01-20\n" +
	"West,200,2024-01-10\n" +
	"North,80,2024-02-05\n"

type stack struct {
	data   *DatasetService
	export *ExportService
	audit  *AuditService
	store  *project.Store
}

func newStack(t *testing.T) *stack {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))

	store, err := project.NewStore(t.TempDir(), logger)
	require.NoError(t, err)
	c := cache.New(store, cache.DefaultTTL, logger)
	engine := project.NewEngine(store, c, 0, logger)

	scanStore, err := audit.OpenStore(filepath.Join(t.TempDir(), "scans.db"))
	require.NoError(t, err)
	t.Cleanup(func() { scanStore.Close() })

	return &stack{
		data:   NewDatasetService(store, engine, c, 1024*1024, logger),
		export: NewExportService(store, c, logger),
		audit:  NewAuditService(store, c, scanStore, logger),
		store:  store,
	}
}

func seedProject(t *testing.T, s *stack, name string) {
	t.Helper()
	ctx := context.Background()
	_, err := s.data.CreateProject(ctx, name, "")
	require.NoError(t, err)
	require.NoError(t, s.data.SaveSettings(ctx, name, domain.ProjectSettings{
		DateColumn: "Date",
		TopColumns: []domain.TopColumn{{Column: "Region", DisplayName: "Region"}},
	}))
	_, err = s.data.Upload(ctx, name, "jan.csv", []byte(salesCSV), nil)
	require.NoError(t, err)
}

func TestUploadAndSummary(t *testing.T) {
	s := newStack(t)
	ctx := context.Background()

	_, err := s.data.CreateProject(ctx, "sales", "monthly exports")
	require.NoError(t, err)

	record, err := s.data.Upload(ctx, "sales", "jan.csv", []byte(salesCSV), nil)
	require.NoError(t, err)
	assert.Equal(t, 4, record.Rows)
	assert.Equal(t, "jan.csv", record.OriginalName)

	summary, err := s.data.Summary(ctx, "sales")
	require.NoError(t, err)
	assert.Equal(t, 4, summary.TotalRows)
	assert.Equal(t, 1, summary.UploadCount)
	assert.Contains(t, summary.Columns, "Region")
	assert.NotContains(t, summary.Columns, "_upload_id")
}

func TestUploadRejectsOversizedFile(t *testing.T) {
	s := newStack(t)
	ctx := context.Background()
	_, err := s.data.CreateProject(ctx, "sales", "")
	require.NoError(t, err)

	s.data.maxUploadBytes = 10
	_, err = s.data.Upload(ctx, "sales", "jan.csv", []byte(salesCSV), nil)
	assert.True(t, apperrors.IsType(err, apperrors.ErrTypeValidation))
}

func TestUploadUnsupportedFormat(t *testing.T) {
	s := newStack(t)
	ctx := context.Background()
	_, err := s.data.CreateProject(ctx, "sales", "")
	require.NoError(t, err)

	_, err = s.data.Upload(ctx, "sales", "notes.pdf", []byte("not a table"), nil)
	assert.True(t, apperrors.IsType(err, apperrors.ErrTypeFormat))
}

func TestSaveSettingsUnknownProject(t *testing.T) {
	s := newStack(t)
	err := s.data.SaveSettings(context.Background(), "ghost", domain.ProjectSettings{DateColumn: "Date"})
	assert.True(t, apperrors.IsType(err, apperrors.ErrTypeNotFound))
}

func TestPreview(t *testing.T) {
	s := newStack(t)
	seedProject(t, s, "sales")

	headers, rows, err := s.data.Preview(context.Background(), "sales", 2)
	require.NoError(t, err)
	assert.Equal(t, []string{"Region", "Amount", "Date"}, headers)
	require.Len(t, rows, 2)
	assert.Equal(t, "East", rows[0][0])
}

func TestTopNThroughService(t *testing.T) {
	s := newStack(t)
	seedProject(t, s, "sales")

	entries, err := s.data.TopN(context.Background(), "sales", "Region", 10, nil, nil)
	require.NoError(t, err)
	require.NotEmpty(t, entries)
	assert.Equal(t, "East", entries[0].Value)
	assert.Equal(t, 2, entries[0].Count)
}

func TestDateRangeThroughService(t *testing.T) {
	s := newStack(t)
	seedProject(t, s, "sales")

	span, err := s.data.DateRange(context.Background(), "sales")
	require.NoError(t, err)
	assert.False(t, span.Empty)
	assert.Equal(t, "2024-01-10", span.Min.Format("2006-01-02"))
	assert.Equal(t, "2024-02-05", span.Max.Format("2006-01-02"))
}

func TestExportDatasetCSV(t *testing.T) {
	s := newStack(t)
	seedProject(t, s, "sales")

	data, name, err := s.export.Dataset(context.Background(), "sales", FormatCSV)
	require.NoError(t, err)
	assert.Equal(t, "sales_consolidated.csv", name)
	assert.True(t, bytes.HasPrefix(data, []byte("\xef\xbb\xbf")))
	assert.Contains(t, string(data), "Region,Amount,Date")
	assert.NotContains(t, string(data), "_upload_id")
}

func TestExportDatasetXLSX(t *testing.T) {
	s := newStack(t)
	seedProject(t, s, "sales")

	data, name, err := s.export.Dataset(context.Background(), "sales", FormatXLSX)
	require.NoError(t, err)
	assert.Equal(t, "sales_consolidated.xlsx", name)

	f, err := excelize.OpenReader(bytes.NewReader(data))
	require.NoError(t, err)
	defer f.Close()
	rows, err := f.GetRows("Data")
	require.NoError(t, err)
	require.Len(t, rows, 5)
	assert.Equal(t, []string{"Region", "Amount", "Date"}, rows[0])
}

func TestExportUnsupportedFormat(t *testing.T) {
	s := newStack(t)
	seedProject(t, s, "sales")

	_, _, err := s.export.Dataset(context.Background(), "sales", "pdf")
	assert.True(t, apperrors.IsType(err, apperrors.ErrTypeValidation))
}

func TestExportTopNWorkbook(t *testing.T) {
	s := newStack(t)
	seedProject(t, s, "sales")

	data, _, err := s.export.TopN(context.Background(), "sales", "Region", 10, nil, nil)
	require.NoError(t, err)

	f, err := excelize.OpenReader(bytes.NewReader(data))
	require.NoError(t, err)
	defer f.Close()
	assert.Equal(t, []string{"Summary", "Data"}, f.GetSheetList())

	rows, err := f.GetRows("Data")
	require.NoError(t, err)
	require.Len(t, rows, 4)
	assert.Equal(t, []string{"Rank", "Region", "Count"}, rows[0])
	assert.Equal(t, []string{"1", "East", "2"}, rows[1])
}

func TestExportColumnStatsWorkbook(t *testing.T) {
	s := newStack(t)
	seedProject(t, s, "sales")

	data, name, err := s.export.ColumnStats(context.Background(), "sales")
	require.NoError(t, err)
	assert.Equal(t, "sales_column_stats.xlsx", name)

	f, err := excelize.OpenReader(bytes.NewReader(data))
	require.NoError(t, err)
	defer f.Close()
	rows, err := f.GetRows("Column Stats")
	require.NoError(t, err)
	require.Len(t, rows, 4)
	assert.Equal(t, "Region", rows[1][0])
}

func TestRunScanAndHistory(t *testing.T) {
	s := newStack(t)
	seedProject(t, s, "sales")
	ctx := context.Background()

	scanID, result, err := s.audit.RunScan(ctx, "sales")
	require.NoError(t, err)
	assert.Positive(t, scanID)
	require.NotNil(t, result)
	assert.Equal(t, 4, result.Summary.TotalRows)

	history, err := s.audit.ScanHistory(ctx, "sales", 10)
	require.NoError(t, err)
	require.Len(t, history, 1)
	assert.Equal(t, scanID, history[0].ID)
	assert.Equal(t, 4, history[0].TotalRows)

	_, err = s.audit.ScanFindings(ctx, scanID)
	require.NoError(t, err)
}

func TestScanHistoryUnknownProject(t *testing.T) {
	s := newStack(t)
	_, err := s.audit.ScanHistory(context.Background(), "ghost", 10)
	assert.True(t, apperrors.IsType(err, apperrors.ErrTypeNotFound))
}
