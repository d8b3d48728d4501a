package dataset

import (
	"archive/zip"
	"bytes"
	"io"
	"math"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"
)

func exportTable(t *testing.T) *Table {
	t.Helper()
	table, err := New(
		NewTextColumn("Region", []string{"East", "West"}, nil),
		NewIntColumn("Amount", []int64{10, 20}, nil),
		NewFloatColumn("Margin", []float64{1.5, 2.25}, nil),
		NewDateColumn("Date", []time.Time{
			time.Date(2024, 1, 15, 0, 0, 0, 0, time.UTC),
			time.Date(2024, 2, 20, 0, 0, 0, 0, time.UTC),
		}, nil),
	)
	require.NoError(t, err)
	return table
}

func TestWriteWorkbookRoundTrip(t *testing.T) {
	data, err := WriteWorkbook([]Sheet{{Name: "Data", Table: exportTable(t)}})
	require.NoError(t, err)

	f, err := excelize.OpenReader(bytes.NewReader(data))
	require.NoError(t, err)
	defer f.Close()

	assert.Equal(t, []string{"Data"}, f.GetSheetList())
	rows, err := f.GetRows("Data")
	require.NoError(t, err)
	require.Len(t, rows, 3)
	assert.Equal(t, []string{"Region", "Amount", "Margin", "Date"}, rows[0])
	assert.Equal(t, []string{"East", "10", "1.5", "15-Jan-2024"}, rows[1])
	assert.Equal(t, []string{"West", "20", "2.25", "20-Feb-2024"}, rows[2])
}

func TestWriteWorkbookMultipleSheets(t *testing.T) {
	summary, err := New(
		NewTextColumn("Metric", []string{"Total Rows"}, nil),
		NewIntColumn("Value", []int64{2}, nil),
	)
	require.NoError(t, err)

	data, err := WriteWorkbook([]Sheet{
		{Name: "Summary", Table: summary},
		{Name: "Data", Table: exportTable(t)},
	})
	require.NoError(t, err)

	f, err := excelize.OpenReader(bytes.NewReader(data))
	require.NoError(t, err)
	defer f.Close()
	assert.Equal(t, []string{"Summary", "Data"}, f.GetSheetList())

	rows, err := f.GetRows("Summary")
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Equal(t, "Total Rows", rows[1][0])
}

func TestWriteWorkbookBlanksNonFiniteNumbers(t *testing.T) {
	table, err := New(
		NewFloatColumn("V", []float64{1.5, math.NaN(), math.Inf(1), 0}, []bool{true, true, true, false}),
	)
	require.NoError(t, err)

	data, err := WriteWorkbook([]Sheet{{Name: "Data", Table: table}})
	require.NoError(t, err)

	f, err := excelize.OpenReader(bytes.NewReader(data))
	require.NoError(t, err)
	defer f.Close()
	rows, err := f.GetRows("Data")
	require.NoError(t, err)

	get := func(row int) string {
		if row < len(rows) && len(rows[row]) > 0 {
			return rows[row][0]
		}
		return ""
	}
	assert.Equal(t, "1.5", get(1))
	assert.Equal(t, "", get(2), "NaN exports as blank")
	assert.Equal(t, "", get(3), "Inf exports as blank")
	assert.Equal(t, "", get(4), "missing exports as blank")
}

func TestWriteWorkbookSharedStringsDeduplicated(t *testing.T) {
	// The same label appearing many times must be stored once.
	values := make([]string, 200)
	for i := range values {
		values[i] = "repeated-label"
	}
	table, err := New(NewTextColumn("V", values, nil))
	require.NoError(t, err)

	data, err := WriteWorkbook([]Sheet{{Name: "Data", Table: table}})
	require.NoError(t, err)

	zr, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	require.NoError(t, err)
	var shared string
	for _, f := range zr.File {
		if f.Name != "xl/sharedStrings.xml" {
			continue
		}
		rc, err := f.Open()
		require.NoError(t, err)
		raw, err := io.ReadAll(rc)
		require.NoError(t, err)
		require.NoError(t, rc.Close())
		shared = string(raw)
	}
	require.NotEmpty(t, shared)
	assert.Equal(t, 1, strings.Count(shared, "repeated-label"))
	assert.Equal(t, 3, strings.Count(shared, "<si>"), "blank marker, header, one shared value")
}

func TestWriteWorkbookEscapesXML(t *testing.T) {
	table, err := New(NewTextColumn("V", []string{`<b>&"ampersand"</b>`}, nil))
	require.NoError(t, err)

	data, err := WriteWorkbook([]Sheet{{Name: "Data", Table: table}})
	require.NoError(t, err)

	f, err := excelize.OpenReader(bytes.NewReader(data))
	require.NoError(t, err)
	defer f.Close()
	rows, err := f.GetRows("Data")
	require.NoError(t, err)
	assert.Equal(t, `<b>&"ampersand"</b>`, rows[1][0])
}

func TestWriteCSV(t *testing.T) {
	data, err := WriteCSV(exportTable(t))
	require.NoError(t, err)

	text := string(data)
	assert.True(t, strings.HasPrefix(text, "\xEF\xBB\xBF"), "UTF-8 BOM prefix")

	lines := strings.Split(strings.TrimSpace(strings.TrimPrefix(text, "\xEF\xBB\xBF")), "\n")
	require.Len(t, lines, 3)
	assert.Equal(t, "Region,Amount,Margin,Date", strings.TrimSpace(lines[0]))
	assert.Contains(t, lines[1], "15-Jan-2024")
}
