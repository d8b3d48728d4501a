package dataset

import (
	"fmt"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func repeatedText(n int, distinct int) []string {
	out := make([]string, n)
	for i := range out {
		out[i] = fmt.Sprintf("group-%d", i%distinct)
	}
	return out
}

func TestOptimizeCategoricalEncoding(t *testing.T) {
	table, err := New(NewTextColumn("Region", repeatedText(100, 4), nil))
	require.NoError(t, err)

	opt := Optimize(table)
	region, _ := opt.Column("Region")
	assert.True(t, region.Categorical())
	assert.Less(t, opt.MemorySize(), table.MemorySize())

	// Values are unchanged.
	for i := 0; i < table.NumRows(); i++ {
		orig, _ := table.Column("Region")
		assert.Equal(t, orig.StringAt(i), region.StringAt(i))
	}
}

func TestOptimizeSkipsHighCardinalityText(t *testing.T) {
	values := make([]string, 10)
	for i := range values {
		values[i] = fmt.Sprintf("unique-%d", i)
	}
	table, err := New(NewTextColumn("ID", values, nil))
	require.NoError(t, err)

	opt := Optimize(table)
	id, _ := opt.Column("ID")
	assert.False(t, id.Categorical())
}

func TestOptimizeDowncastsInts(t *testing.T) {
	tests := []struct {
		name      string
		values    []int64
		wantWidth int
	}{
		{name: "tiny", values: []int64{1, 2, 100}, wantWidth: 8},
		{name: "short", values: []int64{1, 30000}, wantWidth: 16},
		{name: "medium", values: []int64{1, 2_000_000}, wantWidth: 32},
		{name: "full", values: []int64{1, math.MaxInt64}, wantWidth: 64},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			table, err := New(NewIntColumn("V", tt.values, nil))
			require.NoError(t, err)
			opt := Optimize(table)
			col, _ := opt.Column("V")
			assert.Equal(t, tt.wantWidth, col.IntWidth())
			for i := range tt.values {
				assert.Equal(t, tt.values[i], col.IntAt(i))
			}
		})
	}
}

func TestOptimizeDowncastsFloats(t *testing.T) {
	table, err := New(NewFloatColumn("V", []float64{0.5, 1.25, -2}, nil))
	require.NoError(t, err)
	opt := Optimize(table)
	col, _ := opt.Column("V")
	assert.Equal(t, 32, col.FloatWidth())
	assert.Equal(t, 1.25, col.FloatAt(1))
}

func TestOptimizeKeepsLossyFloatsWide(t *testing.T) {
	// 0.1 does not survive a float32 round trip.
	table, err := New(NewFloatColumn("V", []float64{0.1, 0.2}, nil))
	require.NoError(t, err)
	opt := Optimize(table)
	col, _ := opt.Column("V")
	assert.Equal(t, 64, col.FloatWidth())
}

func TestOptimizeIdempotent(t *testing.T) {
	table, err := New(
		NewTextColumn("Region", repeatedText(50, 3), nil),
		NewIntColumn("Amount", []int64{1, 2, 3, 4, 5, 6, 7, 8, 9, 10, 11, 12, 13, 14, 15, 16, 17, 18, 19, 20, 21, 22, 23, 24, 25, 26, 27, 28, 29, 30, 31, 32, 33, 34, 35, 36, 37, 38, 39, 40, 41, 42, 43, 44, 45, 46, 47, 48, 49, 50}, nil),
	)
	require.NoError(t, err)

	once := Optimize(table)
	twice := Optimize(once)

	assert.Equal(t, once.MemorySize(), twice.MemorySize())
	for _, name := range once.ColumnNames() {
		a, _ := once.Column(name)
		b, _ := twice.Column(name)
		assert.Equal(t, a.DataType(), b.DataType())
		for i := 0; i < once.NumRows(); i++ {
			assert.Equal(t, a.StringAt(i), b.StringAt(i))
		}
	}
}

func TestOptimizePreservesMissing(t *testing.T) {
	table, err := New(
		NewIntColumn("V", []int64{1, 0, 3}, []bool{true, false, true}),
	)
	require.NoError(t, err)
	opt := Optimize(table)
	col, _ := opt.Column("V")
	assert.True(t, col.IsMissing(1))
	assert.Equal(t, int64(3), col.IntAt(2))
}
