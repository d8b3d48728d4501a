package dataset

import (
	"encoding/gob"
	"fmt"
	"os"
	"path/filepath"
	"time"
)

// columnSnapshot is the persisted form of a Column. Exactly the backing
// slices in use are populated, so narrowed and dictionary-encoded storage
// survives the round trip unchanged.
type columnSnapshot struct {
	Name  string
	Type  uint8
	Valid []bool

	Text  []string
	Dict  []string
	Codes []int32

	I64 []int64
	I32 []int32
	I16 []int16
	I8  []int8

	F64 []float64
	F32 []float32

	Bools []bool
	Dates []time.Time
}

type tableSnapshot struct {
	Columns []columnSnapshot
}

// SaveSnapshot persists the table to path atomically: the snapshot is
// written to a temp file in the same directory and renamed over the target,
// so readers never observe a half-written dataset.
func SaveSnapshot(path string, t *Table) error {
	snap := tableSnapshot{Columns: make([]columnSnapshot, t.NumCols())}
	for i := 0; i < t.NumCols(); i++ {
		c := t.ColumnAt(i)
		snap.Columns[i] = columnSnapshot{
			Name: c.name, Type: uint8(c.typ), Valid: c.valid,
			Text: c.text, Dict: c.dict, Codes: c.codes,
			I64: c.i64, I32: c.i32, I16: c.i16, I8: c.i8,
			F64: c.f64, F32: c.f32,
			Bools: c.bools, Dates: c.dates,
		}
	}

	tmp, err := os.CreateTemp(filepath.Dir(path), ".dataset-*.tmp")
	if err != nil {
		return fmt.Errorf("failed to create temp snapshot: %w", err)
	}
	defer os.Remove(tmp.Name())

	if err := gob.NewEncoder(tmp).Encode(snap); err != nil {
		tmp.Close()
		return fmt.Errorf("failed to encode snapshot: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("failed to close temp snapshot: %w", err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return fmt.Errorf("failed to replace snapshot: %w", err)
	}
	return nil
}

// LoadSnapshot reads a table persisted by SaveSnapshot.
func LoadSnapshot(path string) (*Table, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	var snap tableSnapshot
	if err := gob.NewDecoder(f).Decode(&snap); err != nil {
		return nil, fmt.Errorf("failed to decode snapshot: %w", err)
	}

	cols := make([]*Column, len(snap.Columns))
	for i, cs := range snap.Columns {
		cols[i] = &Column{
			name: cs.Name, typ: Type(cs.Type), valid: cs.Valid,
			text: cs.Text, dict: cs.Dict, codes: cs.Codes,
			i64: cs.I64, i32: cs.I32, i16: cs.I16, i8: cs.I8,
			f64: cs.F64, f32: cs.F32,
			bools: cs.Bools, dates: cs.Dates,
		}
	}
	return New(cols...)
}
