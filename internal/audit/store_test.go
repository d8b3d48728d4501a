package audit

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"datapulse/pkg/contracts/domain"
)

func newTestAuditStore(t *testing.T) *Store {
	t.Helper()
	store, err := OpenStore(filepath.Join(t.TempDir(), "scans.db"))
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	return store
}

func sampleScan() *domain.ScanResult {
	return &domain.ScanResult{
		Summary: domain.ScanSummary{TotalRows: 100, TotalFindings: 2, High: 1, Low: 1},
		Findings: []domain.Finding{
			{
				CheckType: "duplicate",
				Level:     domain.LevelHigh,
				Title:     "120 duplicate rows found",
				Detail:    "many dupes",
				Evidence:  []map[string]interface{}{{"Vendor": "Acme"}},
			},
			{
				CheckType: "missing_data",
				Level:     domain.LevelLow,
				Title:     "\"Notes\": 6% missing",
			},
		},
	}
}

func TestSaveAndListScans(t *testing.T) {
	store := newTestAuditStore(t)
	ctx := context.Background()

	id1, err := store.SaveScan(ctx, "sales", sampleScan())
	require.NoError(t, err)
	id2, err := store.SaveScan(ctx, "sales", sampleScan())
	require.NoError(t, err)
	_, err = store.SaveScan(ctx, "other", sampleScan())
	require.NoError(t, err)

	scans, err := store.ListScans(ctx, "sales", 10)
	require.NoError(t, err)
	require.Len(t, scans, 2, "only this project's scans")
	assert.Equal(t, id2, scans[0].ID, "newest first")
	assert.Equal(t, id1, scans[1].ID)
	assert.Equal(t, 100, scans[0].TotalRows)
	assert.Equal(t, 1, scans[0].HighRisk)
	assert.False(t, scans[0].CreatedAt.IsZero())
}

func TestListScansLimit(t *testing.T) {
	store := newTestAuditStore(t)
	ctx := context.Background()
	for i := 0; i < 5; i++ {
		_, err := store.SaveScan(ctx, "sales", sampleScan())
		require.NoError(t, err)
	}
	scans, err := store.ListScans(ctx, "sales", 3)
	require.NoError(t, err)
	assert.Len(t, scans, 3)
}

func TestScanFindings(t *testing.T) {
	store := newTestAuditStore(t)
	ctx := context.Background()

	id, err := store.SaveScan(ctx, "sales", sampleScan())
	require.NoError(t, err)

	findings, err := store.ScanFindings(ctx, id)
	require.NoError(t, err)
	require.Len(t, findings, 2)
	assert.Equal(t, domain.LevelHigh, findings[0].Level, "high severity first")
	assert.Equal(t, "duplicate", findings[0].CheckType)
	require.Len(t, findings[0].Evidence, 1)
	assert.Equal(t, "Acme", findings[0].Evidence[0]["Vendor"])

	empty, err := store.ScanFindings(ctx, 99999)
	require.NoError(t, err)
	assert.Empty(t, empty)
}
