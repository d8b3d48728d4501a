package domain

import (
	"time"
)

// FindingLevel grades the severity of an audit finding.
type FindingLevel string

const (
	LevelHigh   FindingLevel = "high"
	LevelMedium FindingLevel = "medium"
	LevelLow    FindingLevel = "low"
)

// Finding is the result of one audit check firing on the dataset.
type Finding struct {
	CheckType string                   `json:"check_type"`
	Level     FindingLevel             `json:"level"`
	Title     string                   `json:"title"`
	Detail    string                   `json:"detail"`
	Evidence  []map[string]interface{} `json:"evidence"`
	Stats     map[string]interface{}   `json:"stats"`
}

// ScanSummary aggregates a full audit run.
type ScanSummary struct {
	TotalRows     int `json:"total_rows"`
	TotalFindings int `json:"total_findings"`
	High          int `json:"high"`
	Medium        int `json:"medium"`
	Low           int `json:"low"`
}

// ScanResult is the consolidated output of running every audit check.
type ScanResult struct {
	Summary  ScanSummary `json:"summary"`
	Findings []Finding   `json:"findings"`
}

// ScanRecord is a persisted audit run, as listed from scan history.
type ScanRecord struct {
	ID         int64     `json:"id"`
	Project    string    `json:"project"`
	TotalRows  int       `json:"total_rows"`
	Findings   int       `json:"findings"`
	HighRisk   int       `json:"high_risk"`
	MediumRisk int       `json:"medium_risk"`
	LowRisk    int       `json:"low_risk"`
	CreatedAt  time.Time `json:"created_at"`
}
