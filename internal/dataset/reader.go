package dataset

import (
	"bytes"
	"encoding/csv"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/xuri/excelize/v2"

	apperrors "datapulse/internal/errors"
)

// Read parses raw upload bytes into a Table. Supported formats are "xlsx",
// "xls" and "csv"; the filename is only used to label parse failures.
// A header-only or empty input yields a zero-row table, not an error.
func Read(data []byte, format, filename string) (*Table, error) {
	switch strings.ToLower(strings.TrimPrefix(format, ".")) {
	case "csv":
		return readCSV(data, filename)
	case "xlsx", "xls":
		return readExcel(data, filename)
	default:
		return nil, apperrors.NewFormatError(filename, fmt.Errorf("unsupported format %q", format))
	}
}

// readExcel parses the first worksheet; the first row is the header row and
// every data row is padded or truncated to the header length.
func readExcel(data []byte, filename string) (*Table, error) {
	f, err := excelize.OpenReader(bytes.NewReader(data))
	if err != nil {
		return nil, apperrors.NewFormatError(filename, err)
	}
	defer f.Close()

	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		return New()
	}
	rows, err := f.GetRows(sheets[0])
	if err != nil {
		return nil, apperrors.NewFormatError(filename, err)
	}
	if len(rows) == 0 {
		return New()
	}

	headers := DeduplicateHeaders(rows[0])
	grid := newGridBuilder(headers)
	for _, row := range rows[1:] {
		grid.appendRow(row)
	}
	return grid.build()
}

// readCSV parses CSV bytes with the same header conventions as Excel input.
// Records stream into the column builders one at a time, so the only full
// materialization is the typed columns themselves.
func readCSV(data []byte, filename string) (*Table, error) {
	reader := csv.NewReader(bytes.NewReader(data))
	reader.FieldsPerRecord = -1

	headerRow, err := reader.Read()
	if err == io.EOF {
		return New()
	}
	if err != nil {
		return nil, apperrors.NewFormatError(filename, err)
	}
	if len(headerRow) > 0 {
		headerRow[0] = strings.TrimPrefix(headerRow[0], "\uFEFF")
	}
	headers := DeduplicateHeaders(headerRow)

	grid := newGridBuilder(headers)
	for {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, apperrors.NewFormatError(filename, err)
		}
		grid.appendRow(record)
	}
	return grid.build()
}

// DeduplicateHeaders suffixes repeated header names with .1, .2, ... in
// order of appearance so no two columns share a name. Blank headers are
// named Column<N> by position first.
func DeduplicateHeaders(headers []string) []string {
	seen := make(map[string]int, len(headers))
	out := make([]string, len(headers))
	for i, h := range headers {
		h = strings.TrimSpace(h)
		if h == "" {
			h = fmt.Sprintf("Column%d", i+1)
		}
		if n, dup := seen[h]; dup {
			seen[h] = n + 1
			out[i] = fmt.Sprintf("%s.%d", h, n)
		} else {
			seen[h] = 1
			out[i] = h
		}
	}
	return out
}

// gridBuilder accumulates raw string cells per column, then infers each
// column's type once all rows are in.
type gridBuilder struct {
	headers []string
	cells   [][]string
	rows    int
}

func newGridBuilder(headers []string) *gridBuilder {
	return &gridBuilder{headers: headers, cells: make([][]string, len(headers))}
}

// appendRow pads or truncates the record to the header length.
func (g *gridBuilder) appendRow(record []string) {
	for i := range g.headers {
		var v string
		if i < len(record) {
			v = strings.TrimSpace(record[i])
		}
		g.cells[i] = append(g.cells[i], v)
	}
	g.rows++
}

func (g *gridBuilder) build() (*Table, error) {
	cols := make([]*Column, len(g.headers))
	for i, name := range g.headers {
		cols[i] = inferColumn(name, g.cells[i])
	}
	return New(cols...)
}

// inferColumn picks the narrowest type every non-empty raw value fits:
// integer, then float, then boolean, falling back to text. Empty raw values
// become missing cells. Dates are deliberately not inferred here; the
// cache's normalization pass owns date conversion for the designated date
// column.
func inferColumn(name string, raw []string) *Column {
	valid := make([]bool, len(raw))
	hasValue := false
	for i, v := range raw {
		valid[i] = v != ""
		hasValue = hasValue || valid[i]
	}
	if !hasValue {
		return NewTextColumn(name, raw, valid)
	}

	if ints, ok := tryInts(raw, valid); ok {
		return NewIntColumn(name, ints, valid)
	}
	if floats, ok := tryFloats(raw, valid); ok {
		return NewFloatColumn(name, floats, valid)
	}
	if bools, ok := tryBools(raw, valid); ok {
		return NewBoolColumn(name, bools, valid)
	}
	return NewTextColumn(name, raw, valid)
}

func tryInts(raw []string, valid []bool) ([]int64, bool) {
	out := make([]int64, len(raw))
	for i, v := range raw {
		if !valid[i] {
			continue
		}
		n, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			return nil, false
		}
		out[i] = n
	}
	return out, true
}

func tryFloats(raw []string, valid []bool) ([]float64, bool) {
	out := make([]float64, len(raw))
	for i, v := range raw {
		if !valid[i] {
			continue
		}
		f, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return nil, false
		}
		out[i] = f
	}
	return out, true
}

func tryBools(raw []string, valid []bool) ([]bool, bool) {
	out := make([]bool, len(raw))
	for i, v := range raw {
		if !valid[i] {
			continue
		}
		switch strings.ToLower(v) {
		case "true":
			out[i] = true
		case "false":
			out[i] = false
		default:
			return nil, false
		}
	}
	return out, true
}
