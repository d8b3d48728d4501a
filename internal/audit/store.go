package audit

import (
	"context"
	"database/sql"
	"encoding/json"
	"time"

	_ "modernc.org/sqlite"

	apperrors "datapulse/internal/errors"
	"datapulse/pkg/contracts/domain"
)

const schema = `
CREATE TABLE IF NOT EXISTS risk_scans (
    id          INTEGER PRIMARY KEY AUTOINCREMENT,
    project     TEXT NOT NULL,
    total_rows  INTEGER,
    findings    INTEGER,
    high_risk   INTEGER DEFAULT 0,
    medium_risk INTEGER DEFAULT 0,
    low_risk    INTEGER DEFAULT 0,
    created_at  DATETIME DEFAULT CURRENT_TIMESTAMP
);

CREATE TABLE IF NOT EXISTS risk_findings (
    id          INTEGER PRIMARY KEY AUTOINCREMENT,
    scan_id     INTEGER REFERENCES risk_scans(id),
    check_type  TEXT NOT NULL,
    level       TEXT NOT NULL,
    title       TEXT NOT NULL,
    detail      TEXT,
    evidence    TEXT,
    created_at  DATETIME DEFAULT CURRENT_TIMESTAMP
);

CREATE INDEX IF NOT EXISTS idx_scans_project ON risk_scans(project, created_at);
CREATE INDEX IF NOT EXISTS idx_findings_scan ON risk_findings(scan_id);
`

// Store persists scan history in SQLite so past audit runs remain
// reviewable after the process restarts.
type Store struct {
	db *sql.DB
}

// OpenStore opens (or creates) the scan-history database at path.
func OpenStore(path string) (*Store, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, apperrors.NewStorageError("failed to open scan database", err)
	}
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, apperrors.NewStorageError("failed to configure scan database", err)
	}
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, apperrors.NewStorageError("failed to create scan schema", err)
	}
	return &Store{db: db}, nil
}

// Close releases the underlying database handle.
func (s *Store) Close() error {
	return s.db.Close()
}

// SaveScan records a completed scan and its findings, returning the scan id.
func (s *Store) SaveScan(ctx context.Context, project string, result *domain.ScanResult) (int64, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, apperrors.NewStorageError("failed to begin scan transaction", err)
	}
	defer tx.Rollback()

	res, err := tx.ExecContext(ctx,
		`INSERT INTO risk_scans (project, total_rows, findings, high_risk, medium_risk, low_risk)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		project, result.Summary.TotalRows, result.Summary.TotalFindings,
		result.Summary.High, result.Summary.Medium, result.Summary.Low)
	if err != nil {
		return 0, apperrors.NewStorageError("failed to save scan", err)
	}
	scanID, err := res.LastInsertId()
	if err != nil {
		return 0, apperrors.NewStorageError("failed to read scan id", err)
	}

	for _, f := range result.Findings {
		evidence, err := json.Marshal(f.Evidence)
		if err != nil {
			evidence = []byte("[]")
		}
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO risk_findings (scan_id, check_type, level, title, detail, evidence)
			 VALUES (?, ?, ?, ?, ?, ?)`,
			scanID, f.CheckType, string(f.Level), f.Title, f.Detail, string(evidence)); err != nil {
			return 0, apperrors.NewStorageError("failed to save finding", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return 0, apperrors.NewStorageError("failed to commit scan", err)
	}
	return scanID, nil
}

// ListScans returns a project's most recent scans, newest first.
func (s *Store) ListScans(ctx context.Context, project string, limit int) ([]domain.ScanRecord, error) {
	if limit <= 0 {
		limit = 10
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, project, total_rows, findings, high_risk, medium_risk, low_risk, created_at
		 FROM risk_scans WHERE project = ? ORDER BY created_at DESC, id DESC LIMIT ?`,
		project, limit)
	if err != nil {
		return nil, apperrors.NewStorageError("failed to list scans", err)
	}
	defer rows.Close()

	var scans []domain.ScanRecord
	for rows.Next() {
		var r domain.ScanRecord
		var created string
		if err := rows.Scan(&r.ID, &r.Project, &r.TotalRows, &r.Findings,
			&r.HighRisk, &r.MediumRisk, &r.LowRisk, &created); err != nil {
			return nil, apperrors.NewStorageError("failed to scan row", err)
		}
		r.CreatedAt = parseTimestamp(created)
		scans = append(scans, r)
	}
	return scans, rows.Err()
}

// ScanFindings returns the findings of one scan, ordered by severity.
func (s *Store) ScanFindings(ctx context.Context, scanID int64) ([]domain.Finding, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT check_type, level, title, detail, evidence
		 FROM risk_findings WHERE scan_id = ? ORDER BY
		 CASE level WHEN 'high' THEN 0 WHEN 'medium' THEN 1 ELSE 2 END, id`,
		scanID)
	if err != nil {
		return nil, apperrors.NewStorageError("failed to load findings", err)
	}
	defer rows.Close()

	var findings []domain.Finding
	for rows.Next() {
		var f domain.Finding
		var level, evidence string
		if err := rows.Scan(&f.CheckType, &level, &f.Title, &f.Detail, &evidence); err != nil {
			return nil, apperrors.NewStorageError("failed to scan finding", err)
		}
		f.Level = domain.FindingLevel(level)
		if err := json.Unmarshal([]byte(evidence), &f.Evidence); err != nil {
			f.Evidence = []map[string]interface{}{}
		}
		findings = append(findings, f)
	}
	return findings, rows.Err()
}

// parseTimestamp handles the formats SQLite stores CURRENT_TIMESTAMP in.
func parseTimestamp(s string) time.Time {
	for _, layout := range []string{
		"2006-01-02 15:04:05",
		time.RFC3339,
		time.RFC3339Nano,
	} {
		if t, err := time.Parse(layout, s); err == nil {
			return t
		}
	}
	return time.Time{}
}
