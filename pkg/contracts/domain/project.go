package domain

import (
	"time"
)

// ProjectInfo describes one consolidation project.
type ProjectInfo struct {
	Name        string    `json:"name" validate:"required,min=1,max=100"`
	Description string    `json:"description,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
}

// ProjectSettings holds the per-project dashboard configuration: the
// designated date column used as the time axis and the ordered list of
// columns shown as top-N breakdowns.
type ProjectSettings struct {
	DateColumn string      `json:"date_column"`
	TopColumns []TopColumn `json:"top_columns"`
}

// TopColumn maps a source column to its dashboard display name.
type TopColumn struct {
	Column      string `json:"column" validate:"required"`
	DisplayName string `json:"display_name"`
}

// UploadRecord describes one ingestion event. StartRow/EndRow record the
// half-open canonical row range the upload contributed at append time; row
// removal on undo is keyed by the upload id, so ranges of later uploads are
// historical rather than live offsets.
type UploadRecord struct {
	ID           string    `json:"id"`
	OriginalName string    `json:"original_name"`
	UploadedAt   time.Time `json:"uploaded_at"`
	Rows         int       `json:"rows"`
	StartRow     int       `json:"start_row"`
	EndRow       int       `json:"end_row"`
	Mapped       bool      `json:"mapped,omitempty"`
}

// AuditEntry is one line of a project's append-only audit log.
type AuditEntry struct {
	Timestamp time.Time `json:"timestamp"`
	Action    string    `json:"action"`
	Details   string    `json:"details,omitempty"`
}

// Audit log action names.
const (
	AuditProjectCreated = "PROJECT_CREATED"
	AuditFilesUploaded  = "FILES_UPLOADED"
	AuditUploadDeleted  = "UPLOAD_DELETED"
	AuditDataReset      = "DATA_RESET"
	AuditSettingsSaved  = "SETTINGS_SAVED"
	AuditRiskScan       = "RISK_SCAN"
)

// DatasetSummary describes the consolidated dataset of a project.
type DatasetSummary struct {
	Project      string    `json:"project"`
	TotalRows    int       `json:"total_rows"`
	TotalColumns int       `json:"total_columns"`
	Columns      []string  `json:"columns"`
	UploadCount  int       `json:"upload_count"`
	FileSize     int64     `json:"file_size"`
	LastModified time.Time `json:"last_modified"`
}
