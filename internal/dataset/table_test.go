package dataset

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewRejectsBadShapes(t *testing.T) {
	_, err := New(
		NewTextColumn("A", []string{"x"}, nil),
		NewTextColumn("A", []string{"y"}, nil),
	)
	assert.Error(t, err, "duplicate column names")

	_, err = New(
		NewTextColumn("A", []string{"x", "y"}, nil),
		NewIntColumn("B", []int64{1}, nil),
	)
	assert.Error(t, err, "ragged columns")
}

func TestTableAccessors(t *testing.T) {
	table, err := New(
		NewTextColumn("Region", []string{"East", "West"}, nil),
		NewIntColumn("Amount", []int64{10, 20}, nil),
		NewTextColumn(ProvenanceColumn, []string{"u1", "u1"}, nil),
	)
	require.NoError(t, err)

	assert.Equal(t, 2, table.NumRows())
	assert.Equal(t, 3, table.NumCols())
	assert.Equal(t, []string{"Region", "Amount", ProvenanceColumn}, table.ColumnNames())
	assert.Equal(t, []string{"Region", "Amount"}, table.VisibleNames())
	assert.True(t, table.HasColumn(ProvenanceColumn))

	visible := table.Visible()
	assert.Equal(t, 2, visible.NumCols())
	assert.False(t, visible.HasColumn(ProvenanceColumn))
}

func TestTakeAndSelect(t *testing.T) {
	table, err := New(
		NewTextColumn("Region", []string{"East", "West", "North"}, nil),
		NewFloatColumn("Amount", []float64{1.5, 2.5, 3.5}, nil),
	)
	require.NoError(t, err)

	taken := table.Take([]int{2, 0})
	assert.Equal(t, 2, taken.NumRows())
	region, _ := taken.Column("Region")
	assert.Equal(t, "North", region.StringAt(0))
	assert.Equal(t, "East", region.StringAt(1))

	selected, err := table.Select("Amount")
	require.NoError(t, err)
	assert.Equal(t, []string{"Amount"}, selected.ColumnNames())

	_, err = table.Select("Missing")
	assert.Error(t, err)
}

func TestRename(t *testing.T) {
	table, err := New(NewTextColumn("Territory", []string{"East"}, nil))
	require.NoError(t, err)

	renamed, err := table.Rename(map[string]string{"Territory": "Region"})
	require.NoError(t, err)
	assert.True(t, renamed.HasColumn("Region"))
	assert.False(t, renamed.HasColumn("Territory"))
	// The source table is untouched.
	assert.True(t, table.HasColumn("Territory"))
}

func TestMissingValues(t *testing.T) {
	col := NewIntColumn("Amount", []int64{10, 0, 30}, []bool{true, false, true})
	assert.False(t, col.IsMissing(0))
	assert.True(t, col.IsMissing(1))
	assert.Equal(t, "", col.StringAt(1))

	_, ok := col.NumberAt(1)
	assert.False(t, ok)
	v, ok := col.NumberAt(2)
	assert.True(t, ok)
	assert.Equal(t, 30.0, v)
}

func TestConcatSameSchema(t *testing.T) {
	a, err := New(
		NewTextColumn("Region", []string{"East"}, nil),
		NewIntColumn("Amount", []int64{10}, nil),
	)
	require.NoError(t, err)
	b, err := New(
		NewTextColumn("Region", []string{"West"}, nil),
		NewIntColumn("Amount", []int64{20}, nil),
	)
	require.NoError(t, err)

	merged, err := Concat(a, b)
	require.NoError(t, err)
	assert.Equal(t, 2, merged.NumRows())
	amount, _ := merged.Column("Amount")
	assert.Equal(t, int64(20), amount.IntAt(1))
}

func TestConcatUnionFillsMissing(t *testing.T) {
	a, err := New(
		NewTextColumn("Region", []string{"East"}, nil),
		NewIntColumn("Amount", []int64{10}, nil),
	)
	require.NoError(t, err)
	b, err := New(
		NewTextColumn("Region", []string{"West"}, nil),
		NewFloatColumn("Margin", []float64{0.2}, nil),
	)
	require.NoError(t, err)

	merged, err := Concat(a, b)
	require.NoError(t, err)
	assert.Equal(t, 2, merged.NumRows())
	assert.ElementsMatch(t, []string{"Region", "Amount", "Margin"}, merged.ColumnNames())

	amount, _ := merged.Column("Amount")
	assert.False(t, amount.IsMissing(0))
	assert.True(t, amount.IsMissing(1), "rows from b have no Amount")

	margin, _ := merged.Column("Margin")
	assert.True(t, margin.IsMissing(0))
	assert.False(t, margin.IsMissing(1))
}

func TestConcatWidensIntWithFloat(t *testing.T) {
	a, err := New(NewIntColumn("Amount", []int64{10}, nil))
	require.NoError(t, err)
	b, err := New(NewFloatColumn("Amount", []float64{2.5}, nil))
	require.NoError(t, err)

	merged, err := Concat(a, b)
	require.NoError(t, err)
	amount, _ := merged.Column("Amount")
	assert.Equal(t, TypeFloat, amount.DataType())
	assert.Equal(t, 10.0, amount.FloatAt(0))
	assert.Equal(t, 2.5, amount.FloatAt(1))
}

func TestConcatIncompatibleTypesFallBackToText(t *testing.T) {
	a, err := New(NewIntColumn("Mixed", []int64{10}, nil))
	require.NoError(t, err)
	b, err := New(NewTextColumn("Mixed", []string{"West"}, nil))
	require.NoError(t, err)

	merged, err := Concat(a, b)
	require.NoError(t, err)
	mixed, _ := merged.Column("Mixed")
	assert.Equal(t, TypeText, mixed.DataType())
	assert.Equal(t, "10", mixed.StringAt(0))
	assert.Equal(t, "West", mixed.StringAt(1))
}

func TestMemorySizeGrowsWithRows(t *testing.T) {
	small, err := New(NewTextColumn("A", []string{"x"}, nil))
	require.NoError(t, err)
	big, err := New(NewTextColumn("A", []string{"xxxxxxxx", "yyyyyyyy", "zzzzzzzz"}, nil))
	require.NoError(t, err)
	assert.Greater(t, big.MemorySize(), small.MemorySize())
}

func TestDateColumnAccess(t *testing.T) {
	jan := time.Date(2024, 1, 15, 0, 0, 0, 0, time.UTC)
	col := NewDateColumn("Date", []time.Time{jan}, nil)
	assert.Equal(t, TypeDate, col.DataType())
	assert.Equal(t, jan, col.DateAt(0))
	assert.Equal(t, "15-Jan-2024", col.StringAt(0))
}
