package services

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"strings"
	"time"

	"datapulse/internal/analytics"
	"datapulse/internal/cache"
	"datapulse/internal/dataset"
	apperrors "datapulse/internal/errors"
	"datapulse/internal/project"
	"datapulse/pkg/contracts/domain"
)

// DatasetService is the orchestration facade over projects, ingestion and
// analytics. Handlers depend on it instead of the engine packages directly.
type DatasetService struct {
	store  *project.Store
	engine *project.Engine
	cache  *cache.Service
	logger *slog.Logger

	maxUploadBytes int64
}

// NewDatasetService wires the facade. maxUploadBytes caps a single upload;
// zero disables the cap.
func NewDatasetService(store *project.Store, engine *project.Engine, c *cache.Service, maxUploadBytes int64, logger *slog.Logger) *DatasetService {
	if logger == nil {
		logger = slog.Default()
	}
	return &DatasetService{
		store:          store,
		engine:         engine,
		cache:          c,
		logger:         logger,
		maxUploadBytes: maxUploadBytes,
	}
}

// Projects lists all projects.
func (s *DatasetService) Projects(ctx context.Context) ([]domain.ProjectInfo, error) {
	return s.store.List()
}

// CreateProject registers a new project and writes its first audit entry.
func (s *DatasetService) CreateProject(ctx context.Context, name, description string) (*domain.ProjectInfo, error) {
	info, err := s.store.Create(name, description)
	if err != nil {
		return nil, err
	}
	if err := s.store.AppendAudit(name, domain.AuditProjectCreated, name); err != nil {
		s.logger.Warn("audit append failed", slog.String("project", name), slog.String("error", err.Error()))
	}
	s.logger.Info("project created", slog.String("project", name))
	return info, nil
}

// DeleteProject removes a project's storage and evicts its cache entry.
func (s *DatasetService) DeleteProject(ctx context.Context, name string) error {
	if err := s.store.Delete(name); err != nil {
		return err
	}
	s.cache.Invalidate(name)
	s.logger.Info("project deleted", slog.String("project", name))
	return nil
}

// Settings returns a project's settings record.
func (s *DatasetService) Settings(ctx context.Context, projectID string) (domain.ProjectSettings, error) {
	return s.store.Settings(projectID)
}

// SaveSettings persists the settings and evicts the cache entry, since the
// designated date column drives the normalization applied at load time.
func (s *DatasetService) SaveSettings(ctx context.Context, projectID string, settings domain.ProjectSettings) error {
	if !s.store.Exists(projectID) {
		return apperrors.NewNotFoundError("project")
	}
	if err := s.store.SaveSettings(projectID, settings); err != nil {
		return err
	}
	if err := s.store.AppendAudit(projectID, domain.AuditSettingsSaved, settings.DateColumn); err != nil {
		s.logger.Warn("audit append failed", slog.String("project", projectID), slog.String("error", err.Error()))
	}
	s.cache.Invalidate(projectID)
	return nil
}

// Upload parses raw uploaded bytes and consolidates them into the project's
// dataset. The format is taken from the filename extension.
func (s *DatasetService) Upload(ctx context.Context, projectID, filename string, data []byte, mapping map[string]string) (*domain.UploadRecord, error) {
	if s.maxUploadBytes > 0 && int64(len(data)) > s.maxUploadBytes {
		return nil, apperrors.NewValidationError(fmt.Sprintf("upload exceeds the %d byte limit", s.maxUploadBytes))
	}
	format := strings.TrimPrefix(strings.ToLower(filepath.Ext(filename)), ".")
	table, err := dataset.Read(data, format, filename)
	if err != nil {
		return nil, err
	}

	record, err := s.engine.Consolidate(projectID, table, mapping, filename)
	if err != nil {
		return nil, err
	}
	if err := s.store.SaveUploadFile(projectID, record.ID, filename, data); err != nil {
		s.logger.Warn("raw upload not retained",
			slog.String("project", projectID),
			slog.String("upload_id", record.ID),
			slog.String("error", err.Error()))
	}
	return record, nil
}

// Uploads returns the project's upload ledger, oldest first.
func (s *DatasetService) Uploads(ctx context.Context, projectID string) ([]domain.UploadRecord, error) {
	return s.store.Uploads(projectID)
}

// UndoUpload removes one upload's rows and ledger entry, returning how many
// rows were removed.
func (s *DatasetService) UndoUpload(ctx context.Context, projectID, uploadID string) (int, error) {
	return s.engine.UndoUpload(projectID, uploadID)
}

// Reset clears the project's dataset and ledger.
func (s *DatasetService) Reset(ctx context.Context, projectID string) error {
	return s.engine.Reset(projectID)
}

// AuditLog returns the project's audit history, newest first.
func (s *DatasetService) AuditLog(ctx context.Context, projectID string) ([]domain.AuditEntry, error) {
	return s.store.AuditLog(projectID)
}

// Summary describes the consolidated dataset without loading it when the
// cache is cold: row counts come from the ledger, size from the snapshot.
func (s *DatasetService) Summary(ctx context.Context, projectID string) (*domain.DatasetSummary, error) {
	records, err := s.store.Uploads(projectID)
	if err != nil {
		return nil, err
	}
	summary := &domain.DatasetSummary{Project: projectID, UploadCount: len(records)}
	for _, r := range records {
		summary.TotalRows += r.Rows
	}
	summary.FileSize, summary.LastModified = s.store.DatasetSize(projectID)

	if summary.UploadCount > 0 {
		table, err := s.cache.Get(projectID, false)
		if err == nil {
			visible := table.VisibleNames()
			summary.Columns = visible
			summary.TotalColumns = len(visible)
			summary.TotalRows = table.NumRows()
		} else if !apperrors.IsType(err, apperrors.ErrTypeNotFound) {
			return nil, err
		}
	}
	return summary, nil
}

// Preview returns the first n rows of the dataset as display strings.
func (s *DatasetService) Preview(ctx context.Context, projectID string, n int) ([]string, [][]string, error) {
	table, err := s.cache.Get(projectID, false)
	if err != nil {
		return nil, nil, err
	}
	visible := table.Visible()
	if n <= 0 || n > visible.NumRows() {
		n = visible.NumRows()
	}
	headers := visible.ColumnNames()
	rows := make([][]string, n)
	for r := 0; r < n; r++ {
		row := make([]string, visible.NumCols())
		for c := 0; c < visible.NumCols(); c++ {
			row[c] = visible.ColumnAt(c).StringAt(r)
		}
		rows[r] = row
	}
	return headers, rows, nil
}

// CacheStats reports the byte size of every cached dataset.
func (s *DatasetService) CacheStats(ctx context.Context) map[string]int64 {
	return s.cache.Stats()
}

// table loads the project's canonical table through the cache.
func (s *DatasetService) table(projectID string, forceReload bool) (*dataset.Table, error) {
	return s.cache.Get(projectID, forceReload)
}

// dateColumn reads the configured date column for analytics calls.
func (s *DatasetService) dateColumn(projectID string) (string, error) {
	return s.store.DateColumn(projectID)
}

// DateRange returns the span of the project's designated date column.
func (s *DatasetService) DateRange(ctx context.Context, projectID string) (domain.DateSpan, error) {
	table, err := s.table(projectID, false)
	if err != nil {
		return domain.DateSpan{}, err
	}
	dateCol, err := s.dateColumn(projectID)
	if err != nil {
		return domain.DateSpan{}, err
	}
	return analytics.DateRange(table, dateCol)
}

// TopN returns the most frequent values of a column, optionally date-bounded.
func (s *DatasetService) TopN(ctx context.Context, projectID, column string, n int, start, end *time.Time) ([]domain.ValueCount, error) {
	table, err := s.table(projectID, false)
	if err != nil {
		return nil, err
	}
	dateCol, err := s.dateColumn(projectID)
	if err != nil {
		return nil, err
	}
	return analytics.TopN(table, dateCol, column, n, start, end)
}

// Trend computes the monthly trend (and optional movement) series.
func (s *DatasetService) Trend(ctx context.Context, projectID string, params analytics.TrendParams) (*domain.TrendSeries, error) {
	table, err := s.table(projectID, false)
	if err != nil {
		return nil, err
	}
	if params.DateColumn == "" {
		params.DateColumn, err = s.dateColumn(projectID)
		if err != nil {
			return nil, err
		}
	}
	return analytics.Trend(table, params)
}

// Compare runs a two-period value-frequency comparison.
func (s *DatasetService) Compare(ctx context.Context, projectID, column string, p1, p2 domain.Period) (*domain.Comparison, error) {
	table, err := s.table(projectID, false)
	if err != nil {
		return nil, err
	}
	dateCol, err := s.dateColumn(projectID)
	if err != nil {
		return nil, err
	}
	return analytics.Compare(table, dateCol, column, p1, p2)
}

// GroupedCompare runs a two-period grouped-aggregate comparison.
func (s *DatasetService) GroupedCompare(ctx context.Context, projectID, groupCol, valueCol string, agg domain.Aggregation, p1, p2 domain.Period) (*domain.Comparison, error) {
	table, err := s.table(projectID, false)
	if err != nil {
		return nil, err
	}
	dateCol, err := s.dateColumn(projectID)
	if err != nil {
		return nil, err
	}
	return analytics.GroupedCompare(table, dateCol, groupCol, valueCol, agg, p1, p2)
}

// ColumnStats describes every visible column of the dataset.
func (s *DatasetService) ColumnStats(ctx context.Context, projectID string) ([]domain.ColumnStat, error) {
	table, err := s.table(projectID, false)
	if err != nil {
		return nil, err
	}
	return analytics.ColumnStats(table), nil
}

// Catalog splits the dataset's columns by role for the dashboard selectors.
func (s *DatasetService) Catalog(ctx context.Context, projectID string) (domain.ColumnCatalog, error) {
	table, err := s.table(projectID, false)
	if err != nil {
		return domain.ColumnCatalog{}, err
	}
	return analytics.Catalog(table), nil
}
