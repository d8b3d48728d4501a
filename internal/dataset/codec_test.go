package dataset

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSnapshotRoundTrip(t *testing.T) {
	table, err := New(
		NewTextColumn("Region", []string{"East", "West", "East", "East"}, nil),
		NewIntColumn("Amount", []int64{10, 0, 30, 40}, []bool{true, false, true, true}),
		NewFloatColumn("Margin", []float64{1.5, 2.5, 3.5, 4.5}, nil),
		NewDateColumn("Date", []time.Time{
			time.Date(2024, 1, 15, 0, 0, 0, 0, time.UTC), {}, {}, {},
		}, []bool{true, false, false, false}),
		NewTextColumn(ProvenanceColumn, []string{"u1", "u1", "u2", "u2"}, nil),
	)
	require.NoError(t, err)
	table = Optimize(table)

	path := filepath.Join(t.TempDir(), "dataset.bin")
	require.NoError(t, SaveSnapshot(path, table))

	loaded, err := LoadSnapshot(path)
	require.NoError(t, err)

	require.Equal(t, table.NumRows(), loaded.NumRows())
	require.Equal(t, table.ColumnNames(), loaded.ColumnNames())
	for _, name := range table.ColumnNames() {
		orig, _ := table.Column(name)
		got, _ := loaded.Column(name)
		assert.Equal(t, orig.DataType(), got.DataType(), name)
		assert.Equal(t, orig.Categorical(), got.Categorical(), name)
		for i := 0; i < table.NumRows(); i++ {
			assert.Equal(t, orig.IsMissing(i), got.IsMissing(i))
			assert.Equal(t, orig.StringAt(i), got.StringAt(i))
		}
	}
	// Optimized storage survives the round trip.
	amount, _ := loaded.Column("Amount")
	assert.Equal(t, 8, amount.IntWidth())
}

func TestSnapshotReplaceAtomically(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "dataset.bin")

	first, err := New(NewIntColumn("V", []int64{1}, nil))
	require.NoError(t, err)
	require.NoError(t, SaveSnapshot(path, first))

	second, err := New(NewIntColumn("V", []int64{1, 2}, nil))
	require.NoError(t, err)
	require.NoError(t, SaveSnapshot(path, second))

	loaded, err := LoadSnapshot(path)
	require.NoError(t, err)
	assert.Equal(t, 2, loaded.NumRows())

	// No temp files are left behind.
	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Len(t, entries, 1)
}

func TestLoadSnapshotMissing(t *testing.T) {
	_, err := LoadSnapshot(filepath.Join(t.TempDir(), "absent.bin"))
	require.Error(t, err)
	assert.True(t, os.IsNotExist(err))
}
