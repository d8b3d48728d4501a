package dataset

import (
	"archive/zip"
	"bytes"
	"encoding/csv"
	"fmt"
	"math"
	"strconv"
	"strings"
)

// Sheet is one named section of an exported workbook.
type Sheet struct {
	Name  string
	Table *Table
}

var xmlEscaper = strings.NewReplacer(
	"&", "&amp;",
	"<", "&lt;",
	">", "&gt;",
	`"`, "&quot;",
	"'", "&apos;",
)

// colLetter converts a 0-based column index to its Excel letter (A..Z, AA..).
func colLetter(idx int) string {
	var out string
	for {
		out = string(rune('A'+idx%26)) + out
		idx = idx/26 - 1
		if idx < 0 {
			return out
		}
	}
}

// sharedStrings assigns stable indices to every distinct string cell across
// all sheets, producing the workbook's shared string table.
type sharedStrings struct {
	index map[string]int
	order []string
}

func newSharedStrings() *sharedStrings {
	s := &sharedStrings{index: make(map[string]int)}
	s.add("") // blank marker for missing and non-finite cells
	return s
}

func (s *sharedStrings) add(v string) int {
	if i, ok := s.index[v]; ok {
		return i
	}
	i := len(s.order)
	s.index[v] = i
	s.order = append(s.order, v)
	return i
}

// WriteWorkbook serializes the sheets into a single xlsx byte stream built
// from raw worksheet XML, so exports of tens of thousands of rows never pass
// through a general-purpose workbook object model. Dates render in the fixed
// display pattern; NaN and infinite values render as blank cells instead of
// corrupting the file. The output is a complete in-memory buffer whose
// length is known before streaming.
func WriteWorkbook(sheets []Sheet) ([]byte, error) {
	sst := newSharedStrings()

	// First pass interns every string cell so worksheet XML can reference
	// shared string indices.
	for _, sheet := range sheets {
		t := sheet.Table
		for ci := 0; ci < t.NumCols(); ci++ {
			c := t.ColumnAt(ci)
			sst.add(c.Name())
			if c.DataType() == TypeInt || c.DataType() == TypeFloat {
				continue
			}
			for i := 0; i < c.Len(); i++ {
				sst.add(c.StringAt(i))
			}
		}
	}

	sheetXMLs := make([][]byte, len(sheets))
	for i, sheet := range sheets {
		sheetXMLs[i] = worksheetXML(sheet.Table, sst)
	}

	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	parts := []struct {
		name string
		body []byte
	}{
		{"[Content_Types].xml", contentTypesXML(len(sheets))},
		{"_rels/.rels", []byte(rootRelsXML)},
		{"xl/_rels/workbook.xml.rels", workbookRelsXML(len(sheets))},
		{"xl/workbook.xml", workbookXML(sheets)},
		{"xl/styles.xml", []byte(stylesXML)},
		{"xl/sharedStrings.xml", sharedStringsXML(sst)},
	}
	for i, body := range sheetXMLs {
		parts = append(parts, struct {
			name string
			body []byte
		}{fmt.Sprintf("xl/worksheets/sheet%d.xml", i+1), body})
	}
	for _, part := range parts {
		w, err := zw.Create(part.name)
		if err != nil {
			return nil, fmt.Errorf("failed to create workbook part %s: %w", part.name, err)
		}
		if _, err := w.Write(part.body); err != nil {
			return nil, fmt.Errorf("failed to write workbook part %s: %w", part.name, err)
		}
	}
	if err := zw.Close(); err != nil {
		return nil, fmt.Errorf("failed to finalize workbook: %w", err)
	}
	return buf.Bytes(), nil
}

func worksheetXML(t *Table, sst *sharedStrings) []byte {
	var b bytes.Buffer
	b.WriteString(`<?xml version="1.0" encoding="UTF-8" standalone="yes"?>` + "\n")
	b.WriteString(`<worksheet xmlns="http://schemas.openxmlformats.org/spreadsheetml/2006/main">`)
	if t.NumCols() == 0 {
		b.WriteString(`<sheetData/></worksheet>`)
		return b.Bytes()
	}

	letters := make([]string, t.NumCols())
	for i := range letters {
		letters[i] = colLetter(i)
	}

	b.WriteString(`<sheetData><row r="1">`)
	for ci := 0; ci < t.NumCols(); ci++ {
		fmt.Fprintf(&b, `<c r="%s1" t="s"><v>%d</v></c>`, letters[ci], sst.index[t.ColumnAt(ci).Name()])
	}
	b.WriteString(`</row>`)

	for r := 0; r < t.NumRows(); r++ {
		rowNum := r + 2
		fmt.Fprintf(&b, `<row r="%d">`, rowNum)
		for ci := 0; ci < t.NumCols(); ci++ {
			c := t.ColumnAt(ci)
			ref := letters[ci]
			switch c.DataType() {
			case TypeInt:
				if c.IsMissing(r) {
					fmt.Fprintf(&b, `<c r="%s%d" t="s"><v>0</v></c>`, ref, rowNum)
				} else {
					fmt.Fprintf(&b, `<c r="%s%d"><v>%d</v></c>`, ref, rowNum, c.IntAt(r))
				}
			case TypeFloat:
				v := c.FloatAt(r)
				if c.IsMissing(r) || math.IsNaN(v) || math.IsInf(v, 0) {
					fmt.Fprintf(&b, `<c r="%s%d" t="s"><v>0</v></c>`, ref, rowNum)
				} else {
					fmt.Fprintf(&b, `<c r="%s%d"><v>%s</v></c>`, ref, rowNum, strconv.FormatFloat(v, 'g', -1, 64))
				}
			default:
				fmt.Fprintf(&b, `<c r="%s%d" t="s"><v>%d</v></c>`, ref, rowNum, sst.index[c.StringAt(r)])
			}
		}
		b.WriteString(`</row>`)
	}
	b.WriteString(`</sheetData></worksheet>`)
	return b.Bytes()
}

func sharedStringsXML(sst *sharedStrings) []byte {
	var b bytes.Buffer
	b.WriteString(`<?xml version="1.0" encoding="UTF-8" standalone="yes"?>` + "\n")
	fmt.Fprintf(&b, `<sst xmlns="http://schemas.openxmlformats.org/spreadsheetml/2006/main" count="0" uniqueCount="%d">`, len(sst.order))
	for _, s := range sst.order {
		b.WriteString(`<si><t xml:space="preserve">`)
		b.WriteString(xmlEscaper.Replace(s))
		b.WriteString(`</t></si>`)
	}
	b.WriteString(`</sst>`)
	return b.Bytes()
}

func contentTypesXML(sheetCount int) []byte {
	var b bytes.Buffer
	b.WriteString(`<?xml version="1.0" encoding="UTF-8" standalone="yes"?>`)
	b.WriteString(`<Types xmlns="http://schemas.openxmlformats.org/package/2006/content-types">`)
	b.WriteString(`<Default Extension="rels" ContentType="application/vnd.openxmlformats-package.relationships+xml"/>`)
	b.WriteString(`<Default Extension="xml" ContentType="application/xml"/>`)
	b.WriteString(`<Override PartName="/xl/workbook.xml" ContentType="application/vnd.openxmlformats-officedocument.spreadsheetml.sheet.main+xml"/>`)
	for i := 0; i < sheetCount; i++ {
		fmt.Fprintf(&b, `<Override PartName="/xl/worksheets/sheet%d.xml" ContentType="application/vnd.openxmlformats-officedocument.spreadsheetml.worksheet+xml"/>`, i+1)
	}
	b.WriteString(`<Override PartName="/xl/styles.xml" ContentType="application/vnd.openxmlformats-officedocument.spreadsheetml.styles+xml"/>`)
	b.WriteString(`<Override PartName="/xl/sharedStrings.xml" ContentType="application/vnd.openxmlformats-officedocument.spreadsheetml.sharedStrings+xml"/>`)
	b.WriteString(`</Types>`)
	return b.Bytes()
}

func workbookRelsXML(sheetCount int) []byte {
	var b bytes.Buffer
	b.WriteString(`<?xml version="1.0" encoding="UTF-8" standalone="yes"?>`)
	b.WriteString(`<Relationships xmlns="http://schemas.openxmlformats.org/package/2006/relationships">`)
	for i := 0; i < sheetCount; i++ {
		fmt.Fprintf(&b, `<Relationship Id="rId%d" Type="http://schemas.openxmlformats.org/officeDocument/2006/relationships/worksheet" Target="worksheets/sheet%d.xml"/>`, i+1, i+1)
	}
	fmt.Fprintf(&b, `<Relationship Id="rId%d" Type="http://schemas.openxmlformats.org/officeDocument/2006/relationships/styles" Target="styles.xml"/>`, sheetCount+1)
	fmt.Fprintf(&b, `<Relationship Id="rId%d" Type="http://schemas.openxmlformats.org/officeDocument/2006/relationships/sharedStrings" Target="sharedStrings.xml"/>`, sheetCount+2)
	b.WriteString(`</Relationships>`)
	return b.Bytes()
}

func workbookXML(sheets []Sheet) []byte {
	var b bytes.Buffer
	b.WriteString(`<?xml version="1.0" encoding="UTF-8" standalone="yes"?>`)
	b.WriteString(`<workbook xmlns="http://schemas.openxmlformats.org/spreadsheetml/2006/main" xmlns:r="http://schemas.openxmlformats.org/officeDocument/2006/relationships">`)
	b.WriteString(`<sheets>`)
	for i, sheet := range sheets {
		fmt.Fprintf(&b, `<sheet name="%s" sheetId="%d" r:id="rId%d"/>`, xmlEscaper.Replace(sheet.Name), i+1, i+1)
	}
	b.WriteString(`</sheets></workbook>`)
	return b.Bytes()
}

const rootRelsXML = `<?xml version="1.0" encoding="UTF-8" standalone="yes"?>` +
	`<Relationships xmlns="http://schemas.openxmlformats.org/package/2006/relationships">` +
	`<Relationship Id="rId1" Type="http://schemas.openxmlformats.org/officeDocument/2006/relationships/officeDocument" Target="xl/workbook.xml"/>` +
	`</Relationships>`

const stylesXML = `<?xml version="1.0" encoding="UTF-8" standalone="yes"?>` +
	`<styleSheet xmlns="http://schemas.openxmlformats.org/spreadsheetml/2006/main">` +
	`<fonts count="1"><font><sz val="11"/><name val="Calibri"/></font></fonts>` +
	`<fills count="2"><fill><patternFill patternType="none"/></fill><fill><patternFill patternType="gray125"/></fill></fills>` +
	`<borders count="1"><border><left/><right/><top/><bottom/><diagonal/></border></borders>` +
	`<cellStyleXfs count="1"><xf numFmtId="0" fontId="0" fillId="0" borderId="0"/></cellStyleXfs>` +
	`<cellXfs count="1"><xf numFmtId="0" fontId="0" fillId="0" borderId="0" xfId="0"/></cellXfs>` +
	`</styleSheet>`

// WriteCSV serializes the table to CSV with a UTF-8 BOM so Excel opens the
// download with correct encoding.
func WriteCSV(t *Table) ([]byte, error) {
	var buf bytes.Buffer
	buf.Write([]byte{0xEF, 0xBB, 0xBF})

	w := csv.NewWriter(&buf)
	if err := w.Write(t.ColumnNames()); err != nil {
		return nil, fmt.Errorf("failed to write headers: %w", err)
	}
	record := make([]string, t.NumCols())
	for r := 0; r < t.NumRows(); r++ {
		for ci := 0; ci < t.NumCols(); ci++ {
			record[ci] = t.ColumnAt(ci).StringAt(r)
		}
		if err := w.Write(record); err != nil {
			return nil, fmt.Errorf("failed to write record %d: %w", r, err)
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
