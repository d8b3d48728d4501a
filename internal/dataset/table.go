package dataset

import (
	"fmt"
	"strconv"
	"time"

	apperrors "datapulse/internal/errors"
)

// Type identifies the declared cell type of a column.
type Type uint8

const (
	TypeText Type = iota
	TypeInt
	TypeFloat
	TypeBool
	TypeDate
)

// String returns the display name used in column statistics and summaries.
func (t Type) String() string {
	switch t {
	case TypeInt:
		return "Integer"
	case TypeFloat:
		return "Decimal"
	case TypeBool:
		return "Boolean"
	case TypeDate:
		return "Date"
	default:
		return "Text"
	}
}

// ProvenanceColumn is the hidden column tracking which upload contributed
// each canonical row. It never appears in schemas, exports or analytics.
const ProvenanceColumn = "_upload_id"

// DateDisplayFormat is the fixed pattern used when dates are rendered as text.
const DateDisplayFormat = "02-Jan-2006"

// Cell is a tagged-union view of a single table cell. Exactly the field
// matching Type is meaningful; Missing overrides all of them.
type Cell struct {
	Type    Type
	Missing bool
	Text    string
	Int     int64
	Float   float64
	Bool    bool
	Date    time.Time
}

// String renders the cell for display and export. Missing cells render empty.
func (c Cell) String() string {
	if c.Missing {
		return ""
	}
	switch c.Type {
	case TypeInt:
		return strconv.FormatInt(c.Int, 10)
	case TypeFloat:
		return strconv.FormatFloat(c.Float, 'g', -1, 64)
	case TypeBool:
		return strconv.FormatBool(c.Bool)
	case TypeDate:
		return c.Date.Format(DateDisplayFormat)
	default:
		return c.Text
	}
}

// Column is an immutable, typed column with columnar backing storage.
// Text columns may be dictionary-encoded; integer and float columns may be
// stored at a narrowed width. All representations are logically equivalent.
type Column struct {
	name  string
	typ   Type
	valid []bool // false = missing

	text  []string
	dict  []string // non-nil = dictionary-encoded text
	codes []int32  // -1 = missing

	i64 []int64
	i32 []int32
	i16 []int16
	i8  []int8

	f64 []float64
	f32 []float32

	bools []bool
	dates []time.Time
}

func fillValid(n int, valid []bool) []bool {
	if valid != nil {
		return valid
	}
	v := make([]bool, n)
	for i := range v {
		v[i] = true
	}
	return v
}

// NewTextColumn builds a text column. A nil valid mask means no missing cells.
func NewTextColumn(name string, values []string, valid []bool) *Column {
	return &Column{name: name, typ: TypeText, text: values, valid: fillValid(len(values), valid)}
}

// NewIntColumn builds a 64-bit integer column.
func NewIntColumn(name string, values []int64, valid []bool) *Column {
	return &Column{name: name, typ: TypeInt, i64: values, valid: fillValid(len(values), valid)}
}

// NewFloatColumn builds a 64-bit float column.
func NewFloatColumn(name string, values []float64, valid []bool) *Column {
	return &Column{name: name, typ: TypeFloat, f64: values, valid: fillValid(len(values), valid)}
}

// NewBoolColumn builds a boolean column.
func NewBoolColumn(name string, values []bool, valid []bool) *Column {
	return &Column{name: name, typ: TypeBool, bools: values, valid: fillValid(len(values), valid)}
}

// NewDateColumn builds a date column.
func NewDateColumn(name string, values []time.Time, valid []bool) *Column {
	return &Column{name: name, typ: TypeDate, dates: values, valid: fillValid(len(values), valid)}
}

// Name returns the column name.
func (c *Column) Name() string { return c.name }

// DataType returns the declared cell type.
func (c *Column) DataType() Type { return c.typ }

// Len returns the number of rows.
func (c *Column) Len() int { return len(c.valid) }

// IsMissing reports whether row i holds a missing cell.
func (c *Column) IsMissing(i int) bool { return !c.valid[i] }

// Categorical reports whether the column is dictionary-encoded.
func (c *Column) Categorical() bool { return c.dict != nil }

// IntWidth returns the storage width in bits of an integer column.
func (c *Column) IntWidth() int {
	switch {
	case c.i8 != nil:
		return 8
	case c.i16 != nil:
		return 16
	case c.i32 != nil:
		return 32
	default:
		return 64
	}
}

// FloatWidth returns the storage width in bits of a float column.
func (c *Column) FloatWidth() int {
	if c.f32 != nil {
		return 32
	}
	return 64
}

// TextAt returns the text value at row i, decoding the dictionary if needed.
func (c *Column) TextAt(i int) string {
	if c.dict != nil {
		code := c.codes[i]
		if code < 0 {
			return ""
		}
		return c.dict[code]
	}
	return c.text[i]
}

// IntAt returns the integer value at row i regardless of storage width.
func (c *Column) IntAt(i int) int64 {
	switch {
	case c.i8 != nil:
		return int64(c.i8[i])
	case c.i16 != nil:
		return int64(c.i16[i])
	case c.i32 != nil:
		return int64(c.i32[i])
	default:
		return c.i64[i]
	}
}

// FloatAt returns the float value at row i regardless of storage width.
func (c *Column) FloatAt(i int) float64 {
	if c.f32 != nil {
		return float64(c.f32[i])
	}
	return c.f64[i]
}

// BoolAt returns the boolean value at row i.
func (c *Column) BoolAt(i int) bool { return c.bools[i] }

// DateAt returns the date value at row i.
func (c *Column) DateAt(i int) time.Time { return c.dates[i] }

// CellAt returns a tagged-union view of row i.
func (c *Column) CellAt(i int) Cell {
	cell := Cell{Type: c.typ}
	if !c.valid[i] {
		cell.Missing = true
		return cell
	}
	switch c.typ {
	case TypeInt:
		cell.Int = c.IntAt(i)
	case TypeFloat:
		cell.Float = c.FloatAt(i)
	case TypeBool:
		cell.Bool = c.bools[i]
	case TypeDate:
		cell.Date = c.dates[i]
	default:
		cell.Text = c.TextAt(i)
	}
	return cell
}

// StringAt renders row i for display, grouping and export. Missing cells
// render as the empty string.
func (c *Column) StringAt(i int) string {
	if !c.valid[i] {
		return ""
	}
	switch c.typ {
	case TypeInt:
		return strconv.FormatInt(c.IntAt(i), 10)
	case TypeFloat:
		if c.f32 != nil {
			return strconv.FormatFloat(float64(c.f32[i]), 'g', -1, 32)
		}
		return strconv.FormatFloat(c.f64[i], 'g', -1, 64)
	case TypeBool:
		return strconv.FormatBool(c.bools[i])
	case TypeDate:
		return c.dates[i].Format(DateDisplayFormat)
	default:
		return c.TextAt(i)
	}
}

// NumberAt returns row i as a float64 for aggregation. ok is false for
// missing cells and non-numeric column types.
func (c *Column) NumberAt(i int) (float64, bool) {
	if !c.valid[i] {
		return 0, false
	}
	switch c.typ {
	case TypeInt:
		return float64(c.IntAt(i)), true
	case TypeFloat:
		return c.FloatAt(i), true
	default:
		return 0, false
	}
}

// DistinctCount returns the number of distinct non-missing values.
func (c *Column) DistinctCount() int {
	if c.dict != nil {
		seen := make(map[int32]struct{}, len(c.dict))
		for i, code := range c.codes {
			if c.valid[i] {
				seen[code] = struct{}{}
			}
		}
		return len(seen)
	}
	seen := make(map[string]struct{})
	for i := 0; i < c.Len(); i++ {
		if c.valid[i] {
			seen[c.StringAt(i)] = struct{}{}
		}
	}
	return len(seen)
}

// MemorySize returns the actual in-memory byte footprint of the column's
// backing storage, including string payloads.
func (c *Column) MemorySize() int64 {
	size := int64(len(c.valid))
	for _, s := range c.text {
		size += 16 + int64(len(s))
	}
	for _, s := range c.dict {
		size += 16 + int64(len(s))
	}
	size += int64(len(c.codes)) * 4
	size += int64(len(c.i64))*8 + int64(len(c.i32))*4 + int64(len(c.i16))*2 + int64(len(c.i8))
	size += int64(len(c.f64))*8 + int64(len(c.f32))*4
	size += int64(len(c.bools))
	size += int64(len(c.dates)) * 24
	return size
}

// renamed returns a copy of the column under a new name, sharing storage.
func (c *Column) renamed(name string) *Column {
	clone := *c
	clone.name = name
	return &clone
}

// take returns a new column holding the rows at idx, in order.
func (c *Column) take(idx []int) *Column {
	out := &Column{name: c.name, typ: c.typ, valid: make([]bool, len(idx))}
	for j, i := range idx {
		out.valid[j] = c.valid[i]
	}
	switch {
	case c.dict != nil:
		out.dict = c.dict
		out.codes = make([]int32, len(idx))
		for j, i := range idx {
			out.codes[j] = c.codes[i]
		}
	case c.typ == TypeText:
		out.text = make([]string, len(idx))
		for j, i := range idx {
			out.text[j] = c.text[i]
		}
	case c.typ == TypeInt:
		out.i64 = make([]int64, len(idx))
		for j, i := range idx {
			out.i64[j] = c.IntAt(i)
		}
	case c.typ == TypeFloat:
		out.f64 = make([]float64, len(idx))
		for j, i := range idx {
			out.f64[j] = c.FloatAt(i)
		}
	case c.typ == TypeBool:
		out.bools = make([]bool, len(idx))
		for j, i := range idx {
			out.bools[j] = c.bools[i]
		}
	case c.typ == TypeDate:
		out.dates = make([]time.Time, len(idx))
		for j, i := range idx {
			out.dates[j] = c.dates[i]
		}
	}
	return out
}

// Field is one (name, type) pair of a table schema.
type Field struct {
	Name string `json:"name"`
	Type Type   `json:"type"`
}

// Table is an ordered collection of equal-length named columns. Tables are
// treated as immutable values: every transformation returns a new Table,
// sharing untouched columns with its source.
type Table struct {
	cols  []*Column
	index map[string]int
}

// New builds a table from columns, rejecting duplicate names and ragged
// column lengths.
func New(cols ...*Column) (*Table, error) {
	t := &Table{index: make(map[string]int, len(cols))}
	for _, c := range cols {
		if _, dup := t.index[c.name]; dup {
			return nil, apperrors.NewValidationError(fmt.Sprintf("duplicate column name %q", c.name))
		}
		if len(t.cols) > 0 && c.Len() != t.cols[0].Len() {
			return nil, apperrors.NewValidationError(fmt.Sprintf("column %q has %d rows, want %d", c.name, c.Len(), t.cols[0].Len()))
		}
		t.index[c.name] = len(t.cols)
		t.cols = append(t.cols, c)
	}
	return t, nil
}

// NumRows returns the row count.
func (t *Table) NumRows() int {
	if len(t.cols) == 0 {
		return 0
	}
	return t.cols[0].Len()
}

// NumCols returns the column count, including the provenance column.
func (t *Table) NumCols() int { return len(t.cols) }

// ColumnNames returns all column names in display order.
func (t *Table) ColumnNames() []string {
	names := make([]string, len(t.cols))
	for i, c := range t.cols {
		names[i] = c.name
	}
	return names
}

// VisibleNames returns column names excluding the provenance column.
func (t *Table) VisibleNames() []string {
	names := make([]string, 0, len(t.cols))
	for _, c := range t.cols {
		if c.name != ProvenanceColumn {
			names = append(names, c.name)
		}
	}
	return names
}

// Column looks a column up by name.
func (t *Table) Column(name string) (*Column, bool) {
	i, ok := t.index[name]
	if !ok {
		return nil, false
	}
	return t.cols[i], true
}

// ColumnAt returns the column at position i.
func (t *Table) ColumnAt(i int) *Column { return t.cols[i] }

// HasColumn reports whether a column with the given name exists.
func (t *Table) HasColumn(name string) bool {
	_, ok := t.index[name]
	return ok
}

// Schema returns the ordered (name, type) pairs of all visible columns.
func (t *Table) Schema() []Field {
	fields := make([]Field, 0, len(t.cols))
	for _, c := range t.cols {
		if c.name != ProvenanceColumn {
			fields = append(fields, Field{Name: c.name, Type: c.typ})
		}
	}
	return fields
}

// Take returns a new table holding the rows at idx, in order.
func (t *Table) Take(idx []int) *Table {
	cols := make([]*Column, len(t.cols))
	for i, c := range t.cols {
		cols[i] = c.take(idx)
	}
	out, _ := New(cols...)
	return out
}

// Select returns a table sharing the named columns, in the given order.
func (t *Table) Select(names ...string) (*Table, error) {
	cols := make([]*Column, 0, len(names))
	for _, name := range names {
		c, ok := t.Column(name)
		if !ok {
			return nil, apperrors.NewMissingDataError(fmt.Sprintf("column %q not found", name))
		}
		cols = append(cols, c)
	}
	return New(cols...)
}

// Drop returns a table without the named columns, sharing the rest.
func (t *Table) Drop(names ...string) *Table {
	dropped := make(map[string]struct{}, len(names))
	for _, n := range names {
		dropped[n] = struct{}{}
	}
	cols := make([]*Column, 0, len(t.cols))
	for _, c := range t.cols {
		if _, skip := dropped[c.name]; !skip {
			cols = append(cols, c)
		}
	}
	out, _ := New(cols...)
	return out
}

// Visible returns a table sharing every column except the provenance column.
func (t *Table) Visible() *Table {
	return t.Drop(ProvenanceColumn)
}

// WithColumn returns a table with c appended, or replacing an existing
// column of the same name; other columns are shared.
func (t *Table) WithColumn(c *Column) (*Table, error) {
	if t.NumCols() > 0 && c.Len() != t.NumRows() {
		return nil, apperrors.NewValidationError(fmt.Sprintf("column %q has %d rows, want %d", c.name, c.Len(), t.NumRows()))
	}
	cols := make([]*Column, len(t.cols))
	copy(cols, t.cols)
	if i, ok := t.index[c.name]; ok {
		cols[i] = c
	} else {
		cols = append(cols, c)
	}
	return New(cols...)
}

// Rename returns a table with columns renamed per the mapping. Unmapped
// columns keep their names; storage is shared throughout.
func (t *Table) Rename(mapping map[string]string) (*Table, error) {
	cols := make([]*Column, len(t.cols))
	for i, c := range t.cols {
		if to, ok := mapping[c.name]; ok && to != c.name {
			cols[i] = c.renamed(to)
		} else {
			cols[i] = c
		}
	}
	return New(cols...)
}

// MemorySize returns the table's total in-memory byte footprint.
func (t *Table) MemorySize() int64 {
	var size int64
	for _, c := range t.cols {
		size += c.MemorySize()
	}
	return size
}

// missingColumn builds an all-missing column of n rows for schema extension.
func missingColumn(name string, typ Type, n int) *Column {
	c := &Column{name: name, typ: typ, valid: make([]bool, n)}
	switch typ {
	case TypeInt:
		c.i64 = make([]int64, n)
	case TypeFloat:
		c.f64 = make([]float64, n)
	case TypeBool:
		c.bools = make([]bool, n)
	case TypeDate:
		c.dates = make([]time.Time, n)
	default:
		c.text = make([]string, n)
	}
	return c
}

// concatColumns appends b under a, widening storage where the two sides
// disagree: mixed int/float becomes float, all other mixes fall back to text.
func concatColumns(a, b *Column) *Column {
	n := a.Len() + b.Len()
	valid := make([]bool, 0, n)
	valid = append(valid, a.valid...)
	valid = append(valid, b.valid...)

	typ := a.typ
	if a.typ != b.typ {
		if (a.typ == TypeInt || a.typ == TypeFloat) && (b.typ == TypeInt || b.typ == TypeFloat) {
			typ = TypeFloat
		} else {
			typ = TypeText
		}
	}

	out := &Column{name: a.name, typ: typ, valid: valid}
	switch typ {
	case TypeInt:
		vals := make([]int64, 0, n)
		for i := 0; i < a.Len(); i++ {
			vals = append(vals, a.IntAt(i))
		}
		for i := 0; i < b.Len(); i++ {
			vals = append(vals, b.IntAt(i))
		}
		out.i64 = vals
	case TypeFloat:
		vals := make([]float64, 0, n)
		for _, c := range []*Column{a, b} {
			for i := 0; i < c.Len(); i++ {
				if !c.valid[i] {
					vals = append(vals, 0)
					continue
				}
				v, _ := c.NumberAt(i)
				vals = append(vals, v)
			}
		}
		out.f64 = vals
	case TypeBool:
		vals := make([]bool, 0, n)
		vals = append(vals, a.bools...)
		vals = append(vals, b.bools...)
		out.bools = vals
	case TypeDate:
		vals := make([]time.Time, 0, n)
		vals = append(vals, a.dates...)
		vals = append(vals, b.dates...)
		out.dates = vals
	default:
		vals := make([]string, 0, n)
		for _, c := range []*Column{a, b} {
			for i := 0; i < c.Len(); i++ {
				vals = append(vals, c.StringAt(i))
			}
		}
		out.text = vals
	}
	return out
}

// Concat appends b's rows under a's. The result carries the union of both
// column sets: columns absent from one side are filled with missing cells
// for that side's rows, matching the consolidation engine's mapped-merge
// semantics. Column order is a's order followed by b-only columns.
func Concat(a, b *Table) (*Table, error) {
	cols := make([]*Column, 0, len(a.cols)+len(b.cols))
	for _, ca := range a.cols {
		cb, ok := b.Column(ca.name)
		if !ok {
			cb = missingColumn(ca.name, ca.typ, b.NumRows())
		}
		cols = append(cols, concatColumns(ca, cb))
	}
	for _, cb := range b.cols {
		if !a.HasColumn(cb.name) {
			ca := missingColumn(cb.name, cb.typ, a.NumRows())
			cols = append(cols, concatColumns(ca, cb))
		}
	}
	return New(cols...)
}
