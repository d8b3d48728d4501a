package dataset

import (
	"math"
)

// categoricalThreshold is the distinct/total ratio under which a text column
// is dictionary-encoded.
const categoricalThreshold = 0.5

// OptimizeRowThreshold is the row count above which consolidated tables are
// optimized automatically.
const OptimizeRowThreshold = 10000

// Optimize returns a logically-equivalent table with a reduced memory
// footprint: low-cardinality text columns are dictionary-encoded, integer
// columns are narrowed to the smallest lossless width and float columns are
// stored at 32 bits when every value survives the round trip. Optimizing an
// already-optimized table changes nothing.
func Optimize(t *Table) *Table {
	cols := make([]*Column, t.NumCols())
	for i := 0; i < t.NumCols(); i++ {
		cols[i] = optimizeColumn(t.ColumnAt(i))
	}
	out, _ := New(cols...)
	return out
}

func optimizeColumn(c *Column) *Column {
	switch c.typ {
	case TypeText:
		return encodeCategorical(c)
	case TypeInt:
		return downcastInt(c)
	case TypeFloat:
		return downcastFloat(c)
	default:
		return c
	}
}

// encodeCategorical dictionary-encodes a text column when fewer than half of
// its rows hold distinct values. Already-encoded columns pass through.
func encodeCategorical(c *Column) *Column {
	if c.dict != nil || c.Len() == 0 {
		return c
	}
	index := make(map[string]int32)
	for i, v := range c.text {
		if c.valid[i] {
			if _, ok := index[v]; !ok {
				index[v] = int32(len(index))
			}
		}
	}
	if float64(len(index))/float64(c.Len()) >= categoricalThreshold {
		return c
	}
	dict := make([]string, len(index))
	for v, code := range index {
		dict[code] = v
	}
	codes := make([]int32, c.Len())
	for i, v := range c.text {
		if c.valid[i] {
			codes[i] = index[v]
		} else {
			codes[i] = -1
		}
	}
	return &Column{name: c.name, typ: TypeText, valid: c.valid, dict: dict, codes: codes}
}

// downcastInt repacks integer storage at the narrowest width covering the
// column's actual value range.
func downcastInt(c *Column) *Column {
	width := 8
	for i := 0; i < c.Len(); i++ {
		if !c.valid[i] {
			continue
		}
		v := c.IntAt(i)
		switch {
		case v >= math.MinInt8 && v <= math.MaxInt8:
		case v >= math.MinInt16 && v <= math.MaxInt16:
			if width < 16 {
				width = 16
			}
		case v >= math.MinInt32 && v <= math.MaxInt32:
			if width < 32 {
				width = 32
			}
		default:
			return widenIntIfNeeded(c)
		}
	}
	if width >= c.IntWidth() {
		return c
	}
	out := &Column{name: c.name, typ: TypeInt, valid: c.valid}
	switch width {
	case 8:
		vals := make([]int8, c.Len())
		for i := range vals {
			vals[i] = int8(c.IntAt(i))
		}
		out.i8 = vals
	case 16:
		vals := make([]int16, c.Len())
		for i := range vals {
			vals[i] = int16(c.IntAt(i))
		}
		out.i16 = vals
	default:
		vals := make([]int32, c.Len())
		for i := range vals {
			vals[i] = int32(c.IntAt(i))
		}
		out.i32 = vals
	}
	return out
}

func widenIntIfNeeded(c *Column) *Column {
	// Full-range values: 64-bit storage is already the only lossless form.
	return c
}

// downcastFloat stores a float column at 32 bits when no value loses
// precision in the round trip.
func downcastFloat(c *Column) *Column {
	if c.f32 != nil || c.Len() == 0 {
		return c
	}
	for i, v := range c.f64 {
		if !c.valid[i] {
			continue
		}
		if !math.IsNaN(v) && float64(float32(v)) != v {
			return c
		}
	}
	vals := make([]float32, c.Len())
	for i, v := range c.f64 {
		vals[i] = float32(v)
	}
	return &Column{name: c.name, typ: TypeFloat, valid: c.valid, f32: vals}
}
