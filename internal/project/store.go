package project

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"datapulse/internal/dataset"
	apperrors "datapulse/internal/errors"
	"datapulse/pkg/contracts/domain"
)

const (
	datasetFile  = "dataset.bin"
	settingsFile = "settings.json"
	uploadsFile  = "upload_log.json"
	auditFile    = "audit_log.json"
	metaFile     = "project.json"
	uploadsDir   = "uploads"

	// auditLogCap bounds the append-only audit log; older entries roll off.
	auditLogCap = 500
)

// Store persists per-project state on the filesystem. Each project owns one
// directory holding its canonical dataset snapshot, settings record, upload
// ledger, audit log and raw upload files — each independently loadable.
type Store struct {
	root   string
	logger *slog.Logger
}

// NewStore creates the store rooted at dir, creating it if needed.
func NewStore(dir string, logger *slog.Logger) (*Store, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, apperrors.NewStorageError("failed to create projects directory", err)
	}
	return &Store{root: dir, logger: logger}, nil
}

// sanitizeName keeps project directory names filesystem-safe.
func sanitizeName(name string) string {
	var b strings.Builder
	for _, r := range name {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '-', r == '_', r == '.':
			b.WriteRune(r)
		case r == ' ':
			b.WriteRune('_')
		}
	}
	// Leading dots would allow names like ".." to escape the root.
	return strings.TrimLeft(b.String(), ".")
}

func (s *Store) projectDir(name string) string {
	return filepath.Join(s.root, sanitizeName(name))
}

func (s *Store) projectFile(name, file string) string {
	return filepath.Join(s.projectDir(name), file)
}

// Exists reports whether a project has been created.
func (s *Store) Exists(name string) bool {
	_, err := os.Stat(s.projectFile(name, metaFile))
	return err == nil
}

// Create registers a new project. Creating an existing project is rejected.
func (s *Store) Create(name, description string) (*domain.ProjectInfo, error) {
	if strings.TrimSpace(name) == "" || sanitizeName(name) == "" {
		return nil, apperrors.NewValidationError("project name is required")
	}
	if s.Exists(name) {
		return nil, apperrors.NewValidationError(fmt.Sprintf("project %q already exists", name))
	}

	dir := s.projectDir(name)
	if err := os.MkdirAll(filepath.Join(dir, uploadsDir), 0o755); err != nil {
		return nil, apperrors.NewStorageError("failed to create project directory", err)
	}

	info := &domain.ProjectInfo{Name: name, Description: description, CreatedAt: time.Now().UTC()}
	if err := s.writeJSON(s.projectFile(name, metaFile), info); err != nil {
		return nil, err
	}
	if err := s.SaveSettings(name, domain.ProjectSettings{TopColumns: []domain.TopColumn{}}); err != nil {
		return nil, err
	}
	return info, nil
}

// List returns all projects ordered by name.
func (s *Store) List() ([]domain.ProjectInfo, error) {
	entries, err := os.ReadDir(s.root)
	if err != nil {
		return nil, apperrors.NewStorageError("failed to list projects", err)
	}
	var projects []domain.ProjectInfo
	for _, e := range entries {
		if !e.IsDir() {
			continue
		}
		var info domain.ProjectInfo
		if err := s.readJSON(filepath.Join(s.root, e.Name(), metaFile), &info); err != nil {
			continue // not a project directory
		}
		projects = append(projects, info)
	}
	sort.Slice(projects, func(i, j int) bool { return projects[i].Name < projects[j].Name })
	return projects, nil
}

// Delete removes a project and all of its storage.
func (s *Store) Delete(name string) error {
	if !s.Exists(name) {
		return apperrors.NewNotFoundError("project")
	}
	if err := os.RemoveAll(s.projectDir(name)); err != nil {
		return apperrors.NewStorageError("failed to delete project", err)
	}
	return nil
}

// Settings loads a project's settings record, defaulting to an empty record
// when none has been saved yet.
func (s *Store) Settings(name string) (domain.ProjectSettings, error) {
	settings := domain.ProjectSettings{TopColumns: []domain.TopColumn{}}
	if !s.Exists(name) {
		return settings, apperrors.NewNotFoundError("project")
	}
	err := s.readJSON(s.projectFile(name, settingsFile), &settings)
	if err != nil && !os.IsNotExist(underlying(err)) {
		return settings, err
	}
	return settings, nil
}

// SaveSettings persists a project's settings record.
func (s *Store) SaveSettings(name string, settings domain.ProjectSettings) error {
	return s.writeJSON(s.projectFile(name, settingsFile), settings)
}

// DateColumn implements cache.Loader.
func (s *Store) DateColumn(name string) (string, error) {
	settings, err := s.Settings(name)
	if err != nil {
		return "", err
	}
	return settings.DateColumn, nil
}

/// LoadDataset implements cache.Loader: it reads the canonical table from the
// project's snapshot file. A missing snapshot is reported as NotFound, never
// as an empty dataset; unreadable snapshots surface as Storage errors.
func (s *Store) LoadDataset(name string) (*dataset.Table, error) {
	if !s.Exists(name) {
		return nil, apperrors.NewNotFoundError("project")
	}
	path := s.projectFile(name, datasetFile)
	table, err := dataset.LoadSnapshot(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, apperrors.NewNotFoundError("dataset")
		}
		return nil, apperrors.NewStorageError("failed to load dataset", err).WithContext("project", name)
	}
	return table, nil
}

// SaveDataset persists the canonical table atomically.
func (s *Store) SaveDataset(name string, t *dataset.Table) error {
	if err := dataset.SaveSnapshot(s.projectFile(name, datasetFile), t); err != nil {
		return apperrors.NewStorageError("failed to save dataset", err).WithContext("project", name)
	}
	return nil
}

// DeleteDataset removes the canonical snapshot; absence is not an error.
func (s *Store) DeleteDataset(name string) error {
	err := os.Remove(s.projectFile(name, datasetFile))
	if err != nil && !os.IsNotExist(err) {
		return apperrors.NewStorageError("failed to delete dataset", err)
	}
	return nil
}

// DatasetSize returns the on-disk size of the canonical snapshot in bytes.
func (s *Store) DatasetSize(name string) (int64, time.Time) {
	info, err := os.Stat(s.projectFile(name, datasetFile))
	if err != nil {
		return 0, time.Time{}
	}
	return info.Size(), info.ModTime()
}

// Uploads loads the project's upload ledger, oldest first.
func (s *Store) Uploads(name string) ([]domain.UploadRecord, error) {
	if !s.Exists(name) {
		return nil, apperrors.NewNotFoundError("project")
	}
	var records []domain.UploadRecord
	err := s.readJSON(s.projectFile(name, uploadsFile), &records)
	if err != nil && !os.IsNotExist(underlying(err)) {
		return nil, err
	}
	return records, nil
}

// saveUploads rewrites the ledger. Callers only ever append to it or filter
// one record out; the ledger is never edited in place.
func (s *Store) saveUploads(name string, records []domain.UploadRecord) error {
	return s.writeJSON(s.projectFile(name, uploadsFile), records)
}

// SaveUploadFile keeps the raw uploaded bytes alongside the ledger.
func (s *Store) SaveUploadFile(name, uploadID, filename string, data []byte) error {
	path := filepath.Join(s.projectDir(name), uploadsDir, uploadID+"_"+sanitizeName(filename))
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return apperrors.NewStorageError("failed to save upload file", err)
	}
	return nil
}

// removeUploadFiles deletes any raw files stored for the upload id.
func (s *Store) removeUploadFiles(name, uploadID string) {
	dir := filepath.Join(s.projectDir(name), uploadsDir)
	entries, err := os.ReadDir(dir)
	if err != nil {
		return
	}
	for _, e := range entries {
		if strings.HasPrefix(e.Name(), uploadID+"_") {
			os.Remove(filepath.Join(dir, e.Name()))
		}
	}
}

// clearUploadFiles empties the raw uploads directory.
func (s *Store) clearUploadFiles(name string) {
	dir := filepath.Join(s.projectDir(name), uploadsDir)
	os.RemoveAll(dir)
	os.MkdirAll(dir, 0o755)
}

// AppendAudit appends one entry to the project's audit log, rolling off the
// oldest entries past the cap. Bookkeeping failures here must never abort
// the primary operation, so callers log the returned error and move on.
func (s *Store) AppendAudit(name, action, details string) error {
	var log []domain.AuditEntry
	if err := s.readJSON(s.projectFile(name, auditFile), &log); err != nil && !os.IsNotExist(underlying(err)) {
		return err
	}
	log = append(log, domain.AuditEntry{Timestamp: time.Now().UTC(), Action: action, Details: details})
	if len(log) > auditLogCap {
		log = log[len(log)-auditLogCap:]
	}
	return s.writeJSON(s.projectFile(name, auditFile), log)
}

// AuditLog returns the project's audit entries, newest first.
func (s *Store) AuditLog(name string) ([]domain.AuditEntry, error) {
	if !s.Exists(name) {
		return nil, apperrors.NewNotFoundError("project")
	}
	var log []domain.AuditEntry
	if err := s.readJSON(s.projectFile(name, auditFile), &log); err != nil && !os.IsNotExist(underlying(err)) {
		return nil, err
	}
	for i, j := 0, len(log)-1; i < j; i, j = i+1, j-1 {
		log[i], log[j] = log[j], log[i]
	}
	return log, nil
}

func (s *Store) readJSON(path string, v interface{}) error {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return err
		}
		return apperrors.NewStorageError(fmt.Sprintf("failed to read %s", filepath.Base(path)), err)
	}
	if err := json.Unmarshal(data, v); err != nil {
		return apperrors.NewStorageError(fmt.Sprintf("failed to parse %s", filepath.Base(path)), err)
	}
	return nil
}

func (s *Store) writeJSON(path string, v interface{}) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return apperrors.NewStorageError(fmt.Sprintf("failed to encode %s", filepath.Base(path)), err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return apperrors.NewStorageError(fmt.Sprintf("failed to write %s", filepath.Base(path)), err)
	}
	return nil
}

// underlying unwraps an AppError down to its filesystem cause so callers can
// distinguish absent files from real failures.
func underlying(err error) error {
	if appErr, ok := err.(*apperrors.AppError); ok && appErr.Cause != nil {
		return appErr.Cause
	}
	return err
}
