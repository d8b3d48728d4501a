package project

import (
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"datapulse/internal/cache"
	"datapulse/internal/dataset"
	apperrors "datapulse/internal/errors"
)

func newTestEngine(t *testing.T) (*Engine, *Store, *cache.Service) {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))
	store, err := NewStore(t.TempDir(), logger)
	require.NoError(t, err)
	c := cache.New(store, cache.DefaultTTL, logger)
	return NewEngine(store, c, 0, logger), store, c
}

func salesTable(t *testing.T, regions []string, amounts []int64) *dataset.Table {
	t.Helper()
	table, err := dataset.New(
		dataset.NewTextColumn("Region", regions, nil),
		dataset.NewIntColumn("Amount", amounts, nil),
	)
	require.NoError(t, err)
	return table
}

func TestConsolidateFirstUpload(t *testing.T) {
	engine, store, _ := newTestEngine(t)
	_, err := store.Create("sales", "")
	require.NoError(t, err)

	record, err := engine.Consolidate("sales", salesTable(t, []string{"East", "West"}, []int64{10, 20}), nil, "jan.xlsx")
	require.NoError(t, err)

	assert.Equal(t, 2, record.Rows)
	assert.Equal(t, 0, record.StartRow)
	assert.Equal(t, 2, record.EndRow)
	assert.False(t, record.Mapped)
	assert.NotEmpty(t, record.ID)

	table, err := store.LoadDataset("sales")
	require.NoError(t, err)
	assert.Equal(t, 2, table.NumRows())
	assert.True(t, table.HasColumn(dataset.ProvenanceColumn))
	assert.Equal(t, []string{"Region", "Amount"}, table.VisibleNames())

	records, err := store.Uploads("sales")
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, "jan.xlsx", records[0].OriginalName)
}

func TestConsolidateAppendsRows(t *testing.T) {
	engine, store, _ := newTestEngine(t)
	_, err := store.Create("sales", "")
	require.NoError(t, err)

	_, err = engine.Consolidate("sales", salesTable(t, []string{"East"}, []int64{10}), nil, "jan.xlsx")
	require.NoError(t, err)

	record, err := engine.Consolidate("sales", salesTable(t, []string{"West", "North"}, []int64{20, 30}), nil, "feb.xlsx")
	require.NoError(t, err)
	assert.Equal(t, 1, record.StartRow)
	assert.Equal(t, 3, record.EndRow)

	table, err := store.LoadDataset("sales")
	require.NoError(t, err)
	assert.Equal(t, 3, table.NumRows())

	records, err := store.Uploads("sales")
	require.NoError(t, err)
	assert.Len(t, records, 2)
}

func TestConsolidateSchemaMismatch(t *testing.T) {
	engine, store, _ := newTestEngine(t)
	_, err := store.Create("sales", "")
	require.NoError(t, err)

	_, err = engine.Consolidate("sales", salesTable(t, []string{"East"}, []int64{10}), nil, "jan.xlsx")
	require.NoError(t, err)

	other, err := dataset.New(
		dataset.NewTextColumn("Territory", []string{"West"}, nil),
		dataset.NewIntColumn("Amount", []int64{20}, nil),
	)
	require.NoError(t, err)

	_, err = engine.Consolidate("sales", other, nil, "feb.xlsx")
	require.Error(t, err)
	assert.True(t, apperrors.IsType(err, apperrors.ErrTypeSchemaMismatch))
	assert.Contains(t, err.Error(), "Territory")
	assert.Contains(t, err.Error(), "Region")

	table, err := store.LoadDataset("sales")
	require.NoError(t, err)
	assert.Equal(t, 1, table.NumRows(), "rejected upload must not touch the dataset")
}

func TestConsolidateMappedMerge(t *testing.T) {
	engine, store, _ := newTestEngine(t)
	_, err := store.Create("sales", "")
	require.NoError(t, err)

	_, err = engine.Consolidate("sales", salesTable(t, []string{"East"}, []int64{10}), nil, "jan.xlsx")
	require.NoError(t, err)

	other, err := dataset.New(
		dataset.NewTextColumn("Territory", []string{"West"}, nil),
		dataset.NewIntColumn("Amount", []int64{20}, nil),
		dataset.NewTextColumn("Ignored", []string{"x"}, nil),
	)
	require.NoError(t, err)

	record, err := engine.Consolidate("sales", other, map[string]string{
		"Territory": "Region",
		"Amount":    "Amount",
	}, "feb.xlsx")
	require.NoError(t, err)
	assert.True(t, record.Mapped)

	table, err := store.LoadDataset("sales")
	require.NoError(t, err)
	assert.Equal(t, 2, table.NumRows())
	assert.False(t, table.HasColumn("Ignored"))
	region, ok := table.Column("Region")
	require.True(t, ok)
	assert.Equal(t, "West", region.StringAt(1))
}

func TestConsolidateUnknownProject(t *testing.T) {
	engine, _, _ := newTestEngine(t)
	_, err := engine.Consolidate("ghost", salesTable(t, []string{"East"}, []int64{10}), nil, "jan.xlsx")
	require.Error(t, err)
	assert.True(t, apperrors.IsType(err, apperrors.ErrTypeNotFound))
}

func TestUndoUpload(t *testing.T) {
	engine, store, _ := newTestEngine(t)
	_, err := store.Create("sales", "")
	require.NoError(t, err)

	first, err := engine.Consolidate("sales", salesTable(t, []string{"East", "West"}, []int64{10, 20}), nil, "jan.xlsx")
	require.NoError(t, err)
	_, err = engine.Consolidate("sales", salesTable(t, []string{"North"}, []int64{30}), nil, "feb.xlsx")
	require.NoError(t, err)

	removed, err := engine.UndoUpload("sales", first.ID)
	require.NoError(t, err)
	assert.Equal(t, 2, removed)

	table, err := store.LoadDataset("sales")
	require.NoError(t, err)
	assert.Equal(t, 1, table.NumRows())
	region, ok := table.Column("Region")
	require.True(t, ok)
	assert.Equal(t, "North", region.StringAt(0))

	records, err := store.Uploads("sales")
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, "feb.xlsx", records[0].OriginalName)

	// The ledger entry is gone, so a second undo of the same id fails.
	_, err = engine.UndoUpload("sales", first.ID)
	require.Error(t, err)
	assert.True(t, apperrors.IsType(err, apperrors.ErrTypeNotFound))
}

func TestUndoLastUploadDeletesSnapshot(t *testing.T) {
	engine, store, _ := newTestEngine(t)
	_, err := store.Create("sales", "")
	require.NoError(t, err)

	record, err := engine.Consolidate("sales", salesTable(t, []string{"East"}, []int64{10}), nil, "jan.xlsx")
	require.NoError(t, err)

	removed, err := engine.UndoUpload("sales", record.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, removed)

	_, err = store.LoadDataset("sales")
	require.Error(t, err)
	assert.True(t, apperrors.IsType(err, apperrors.ErrTypeNotFound))
}

func TestUndoUploadMissingSnapshot(t *testing.T) {
	engine, store, _ := newTestEngine(t)
	_, err := store.Create("sales", "")
	require.NoError(t, err)

	record, err := engine.Consolidate("sales", salesTable(t, []string{"East"}, []int64{10}), nil, "jan.xlsx")
	require.NoError(t, err)

	// Simulate a vanished snapshot: the undo removes zero rows but still
	// drops the ledger entry.
	require.NoError(t, os.Remove(filepath.Join(store.projectDir("sales"), datasetFile)))

	removed, err := engine.UndoUpload("sales", record.ID)
	require.NoError(t, err)
	assert.Equal(t, 0, removed)

	records, err := store.Uploads("sales")
	require.NoError(t, err)
	assert.Empty(t, records)
}

func TestReset(t *testing.T) {
	engine, store, _ := newTestEngine(t)
	_, err := store.Create("sales", "a project")
	require.NoError(t, err)
	require.NoError(t, store.SaveSettings("sales", mustSettings("Region")))

	_, err = engine.Consolidate("sales", salesTable(t, []string{"East"}, []int64{10}), nil, "jan.xlsx")
	require.NoError(t, err)

	require.NoError(t, engine.Reset("sales"))

	_, err = store.LoadDataset("sales")
	assert.True(t, apperrors.IsType(err, apperrors.ErrTypeNotFound))

	records, err := store.Uploads("sales")
	require.NoError(t, err)
	assert.Empty(t, records)

	// Settings and the project itself survive a reset.
	settings, err := store.Settings("sales")
	require.NoError(t, err)
	assert.Equal(t, "Region", settings.DateColumn)
	assert.True(t, store.Exists("sales"))

	log, err := store.AuditLog("sales")
	require.NoError(t, err)
	require.NotEmpty(t, log)
	assert.Equal(t, "DATA_RESET", log[0].Action)
}

func TestConsolidateInvalidatesCache(t *testing.T) {
	engine, store, c := newTestEngine(t)
	_, err := store.Create("sales", "")
	require.NoError(t, err)

	_, err = engine.Consolidate("sales", salesTable(t, []string{"East"}, []int64{10}), nil, "jan.xlsx")
	require.NoError(t, err)

	table, err := c.Get("sales", false)
	require.NoError(t, err)
	assert.Equal(t, 1, table.NumRows())

	_, err = engine.Consolidate("sales", salesTable(t, []string{"West"}, []int64{20}), nil, "feb.xlsx")
	require.NoError(t, err)

	// The merge invalidated the entry, so the next read sees the new rows.
	table, err = c.Get("sales", false)
	require.NoError(t, err)
	assert.Equal(t, 2, table.NumRows())
}
