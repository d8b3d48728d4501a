package services

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"datapulse/internal/audit"
	"datapulse/internal/cache"
	apperrors "datapulse/internal/errors"
	"datapulse/internal/project"
	"datapulse/pkg/contracts/domain"
)

// AuditService runs rule-based risk scans over a project's consolidated
// dataset and keeps their history in the scan store.
type AuditService struct {
	store     *project.Store
	cache     *cache.Service
	scanStore *audit.Store
	logger    *slog.Logger
}

// NewAuditService wires the audit facade.
func NewAuditService(store *project.Store, c *cache.Service, scanStore *audit.Store, logger *slog.Logger) *AuditService {
	if logger == nil {
		logger = slog.Default()
	}
	return &AuditService{store: store, cache: c, scanStore: scanStore, logger: logger}
}

// RunScan executes every audit check against the project's current dataset,
// persists the result, and returns it together with the assigned scan id.
func (s *AuditService) RunScan(ctx context.Context, projectID string) (int64, *domain.ScanResult, error) {
	table, err := s.cache.Get(projectID, false)
	if err != nil {
		return 0, nil, err
	}
	settings, err := s.store.Settings(projectID)
	if err != nil {
		return 0, nil, err
	}

	started := time.Now()
	result := audit.RunAllChecks(table, settings)
	s.logger.Info("risk scan complete",
		slog.String("project", projectID),
		slog.Int("findings", result.Summary.TotalFindings),
		slog.Int("high", result.Summary.High),
		slog.Duration("elapsed", time.Since(started)))

	scanID, err := s.scanStore.SaveScan(ctx, projectID, result)
	if err != nil {
		return 0, nil, err
	}
	if err := s.store.AppendAudit(projectID, domain.AuditRiskScan,
		fmt.Sprintf("scan %d: %d findings", scanID, result.Summary.TotalFindings)); err != nil {
		s.logger.Warn("audit log append failed",
			slog.String("project", projectID), slog.String("error", err.Error()))
	}
	return scanID, result, nil
}

// ScanHistory lists the most recent persisted scans for a project.
func (s *AuditService) ScanHistory(ctx context.Context, projectID string, limit int) ([]domain.ScanRecord, error) {
	if !s.store.Exists(projectID) {
		return nil, apperrors.NewNotFoundError("project")
	}
	return s.scanStore.ListScans(ctx, projectID, limit)
}

// ScanFindings returns the stored findings of one scan, highest severity
// first.
func (s *AuditService) ScanFindings(ctx context.Context, scanID int64) ([]domain.Finding, error) {
	return s.scanStore.ScanFindings(ctx, scanID)
}
