package project

import (
	"log/slog"
	"sort"
	"time"

	"github.com/google/uuid"

	"datapulse/internal/cache"
	"datapulse/internal/dataset"
	apperrors "datapulse/internal/errors"
	"datapulse/pkg/contracts/domain"
)

// Engine merges uploaded tables into per-project canonical datasets and
// keeps the upload ledger, audit log and cache coherent with what it writes.
type Engine struct {
	store    *Store
	cache    *cache.Service
	logger   *slog.Logger
	rowLimit int
}

// NewEngine creates the consolidation engine. rowLimit is the combined row
// count above which the merged dataset is re-optimized; zero selects the
// default.
func NewEngine(store *Store, c *cache.Service, rowLimit int, logger *slog.Logger) *Engine {
	if logger == nil {
		logger = slog.Default()
	}
	if rowLimit <= 0 {
		rowLimit = dataset.OptimizeRowThreshold
	}
	return &Engine{store: store, cache: c, logger: logger, rowLimit: rowLimit}
}

// Consolidate merges one parsed upload into the project's canonical dataset.
// A nil or empty mapping requests a direct merge, which is rejected with a
// schema-mismatch error unless the upload's column set equals the canonical
// one exactly. A non-empty mapping renames the upload's columns to canonical
// names, drops the unmapped ones and merges by column-set union.
//
// On success the snapshot, ledger and audit log have been written and the
// project's cache entry invalidated; the returned record is the ledger entry
// just appended.
func (e *Engine) Consolidate(projectID string, incoming *dataset.Table, mapping map[string]string, originalName string) (*domain.UploadRecord, error) {
	if !e.store.Exists(projectID) {
		return nil, apperrors.NewNotFoundError("project")
	}
	if incoming.NumCols() == 0 {
		return nil, apperrors.NewValidationError("upload contains no columns")
	}

	id, err := uuid.NewV7()
	if err != nil {
		return nil, apperrors.NewStorageError("failed to generate upload id", err)
	}
	uploadID := id.String()

	mapped := len(mapping) > 0
	if mapped {
		incoming, err = applyMapping(incoming, mapping)
		if err != nil {
			return nil, err
		}
	}
	incoming = dataset.Optimize(incoming)

	provenance := make([]string, incoming.NumRows())
	for i := range provenance {
		provenance[i] = uploadID
	}
	incoming, err = incoming.WithColumn(dataset.NewTextColumn(dataset.ProvenanceColumn, provenance, nil))
	if err != nil {
		return nil, apperrors.NewValidationError(err.Error())
	}

	canonical, err := e.store.LoadDataset(projectID)
	switch {
	case err == nil:
	case apperrors.IsType(err, apperrors.ErrTypeNotFound):
		canonical = nil // first upload
	default:
		return nil, err
	}

	combined := incoming
	startRow := 0
	if canonical != nil {
		if !mapped {
			if onlyIn, onlyCanon := schemaDiff(incoming, canonical); len(onlyIn) > 0 || len(onlyCanon) > 0 {
				return nil, apperrors.NewSchemaMismatchError(onlyIn, onlyCanon)
			}
		}
		startRow = canonical.NumRows()
		combined, err = dataset.Concat(canonical, incoming)
		if err != nil {
			return nil, apperrors.NewStorageError("failed to merge upload", err)
		}
	}

	if mapped || combined.NumRows() > e.rowLimit {
		combined = dataset.Optimize(combined)
	}

	if err := e.store.SaveDataset(projectID, combined); err != nil {
		return nil, err
	}

	record := domain.UploadRecord{
		ID:           uploadID,
		OriginalName: originalName,
		UploadedAt:   time.Now().UTC(),
		Rows:         incoming.NumRows(),
		StartRow:     startRow,
		EndRow:       startRow + incoming.NumRows(),
		Mapped:       mapped,
	}
	records, err := e.store.Uploads(projectID)
	if err != nil {
		return nil, err
	}
	if err := e.store.saveUploads(projectID, append(records, record)); err != nil {
		return nil, err
	}

	if err := e.store.AppendAudit(projectID, domain.AuditFilesUploaded, originalName); err != nil {
		e.logger.Warn("audit append failed",
			slog.String("project", projectID),
			slog.String("error", err.Error()))
	}

	e.cache.Invalidate(projectID)

	e.logger.Info("upload consolidated",
		slog.String("project", projectID),
		slog.String("upload_id", uploadID),
		slog.Int("rows", record.Rows),
		slog.Int("total_rows", combined.NumRows()),
		slog.Bool("mapped", mapped))
	return &record, nil
}

// UndoUpload removes every row contributed by the given upload and drops its
// ledger entry. A vanished backing snapshot removes zero rows but still
// clears the ledger entry, so the operation leaves no dangling record either
// way. Undoing an id absent from the ledger is NotFound.
func (e *Engine) UndoUpload(projectID, uploadID string) (int, error) {
	records, err := e.store.Uploads(projectID)
	if err != nil {
		return 0, err
	}
	idx := -1
	for i, r := range records {
		if r.ID == uploadID {
			idx = i
			break
		}
	}
	if idx < 0 {
		return 0, apperrors.NewNotFoundError("upload")
	}

	removed := 0
	table, err := e.store.LoadDataset(projectID)
	switch {
	case err == nil:
		filtered := dropProvenance(table, uploadID)
		removed = table.NumRows() - filtered.NumRows()
		if filtered.NumRows() == 0 {
			if err := e.store.DeleteDataset(projectID); err != nil {
				return 0, err
			}
		} else if err := e.store.SaveDataset(projectID, filtered); err != nil {
			return 0, err
		}
	case apperrors.IsType(err, apperrors.ErrTypeNotFound):
		// Snapshot already gone; nothing to filter.
	default:
		return 0, err
	}

	remaining := append(records[:idx:idx], records[idx+1:]...)
	if err := e.store.saveUploads(projectID, remaining); err != nil {
		return 0, err
	}
	e.store.removeUploadFiles(projectID, uploadID)

	if err := e.store.AppendAudit(projectID, domain.AuditUploadDeleted, records[idx].OriginalName); err != nil {
		e.logger.Warn("audit append failed",
			slog.String("project", projectID),
			slog.String("error", err.Error()))
	}

	e.cache.Invalidate(projectID)

	e.logger.Info("upload undone",
		slog.String("project", projectID),
		slog.String("upload_id", uploadID),
		slog.Int("rows_removed", removed))
	return removed, nil
}

// Reset clears the project's dataset, ledger and raw uploads while keeping
// the project itself, its settings and its audit history.
func (e *Engine) Reset(projectID string) error {
	if !e.store.Exists(projectID) {
		return apperrors.NewNotFoundError("project")
	}
	if err := e.store.DeleteDataset(projectID); err != nil {
		return err
	}
	if err := e.store.saveUploads(projectID, []domain.UploadRecord{}); err != nil {
		return err
	}
	e.store.clearUploadFiles(projectID)

	if err := e.store.AppendAudit(projectID, domain.AuditDataReset, "all uploads removed"); err != nil {
		e.logger.Warn("audit append failed",
			slog.String("project", projectID),
			slog.String("error", err.Error()))
	}

	e.cache.Invalidate(projectID)
	e.logger.Info("project data reset", slog.String("project", projectID))
	return nil
}

// applyMapping renames upload columns to their canonical names and keeps
// only the mapped ones, preserving the upload's column order.
func applyMapping(t *dataset.Table, mapping map[string]string) (*dataset.Table, error) {
	for source := range mapping {
		if !t.HasColumn(source) {
			return nil, apperrors.NewValidationError("mapping references unknown column " + source)
		}
	}
	renamed, err := t.Rename(mapping)
	if err != nil {
		return nil, apperrors.NewValidationError(err.Error())
	}
	targets := make(map[string]bool, len(mapping))
	for _, target := range mapping {
		targets[target] = true
	}
	var keep []string
	for _, name := range renamed.ColumnNames() {
		if targets[name] {
			keep = append(keep, name)
		}
	}
	if len(keep) == 0 {
		return nil, apperrors.NewValidationError("mapping keeps no columns")
	}
	selected, err := renamed.Select(keep...)
	if err != nil {
		return nil, apperrors.NewValidationError(err.Error())
	}
	return selected, nil
}

// schemaDiff compares the visible column sets of the upload and the
// canonical dataset, ignoring order.
func schemaDiff(incoming, canonical *dataset.Table) (onlyIncoming, onlyCanonical []string) {
	in := make(map[string]bool)
	for _, name := range incoming.VisibleNames() {
		in[name] = true
	}
	canon := make(map[string]bool)
	for _, name := range canonical.VisibleNames() {
		canon[name] = true
	}
	for name := range in {
		if !canon[name] {
			onlyIncoming = append(onlyIncoming, name)
		}
	}
	for name := range canon {
		if !in[name] {
			onlyCanonical = append(onlyCanonical, name)
		}
	}
	sort.Strings(onlyIncoming)
	sort.Strings(onlyCanonical)
	return onlyIncoming, onlyCanonical
}

// dropProvenance filters out the rows tagged with the given upload id.
func dropProvenance(t *dataset.Table, uploadID string) *dataset.Table {
	col, ok := t.Column(dataset.ProvenanceColumn)
	if !ok {
		return t
	}
	var keep []int
	for i := 0; i < t.NumRows(); i++ {
		if col.IsMissing(i) || col.TextAt(i) != uploadID {
			keep = append(keep, i)
		}
	}
	if keep == nil {
		keep = []int{}
	}
	return t.Take(keep)
}
