package dataset

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/smartcity/traffic-analyzer/internal/domain"
)

// Table is a parsed delimited file: a header and string cells.
// Short rows are padded with empty cells.
type Table struct {
	Columns []string
	Rows    [][]string
	index   map[string]int
}

// NewTable builds a table from a header and rows
func NewTable(columns []string, rows [][]string) *Table {
	t := &Table{Columns: columns, Rows: rows, index: make(map[string]int, len(columns))}
	for i, c := range columns {
		if _, dup := t.index[c]; !dup {
			t.index[c] = i
		}
	}
	return t
}

// Len returns the number of data rows
func (t *Table) Len() int {
	return len(t.Rows)
}

// HasColumn reports whether the header contains name
func (t *Table) HasColumn(name string) bool {
	_, ok := t.index[name]
	return ok
}

// Cell returns the value of column name in row i, or "" if the column is absent
func (t *Table) Cell(i int, name string) string {
	idx, ok := t.index[name]
	if !ok || idx >= len(t.Rows[i]) {
		return ""
	}
	return t.Rows[i][idx]
}

// Values returns every cell of a column in row order
func (t *Table) Values(name string) []string {
	idx, ok := t.index[name]
	if !ok {
		return nil
	}
	out := make([]string, len(t.Rows))
	for i, row := range t.Rows {
		out[i] = row[idx]
	}
	return out
}

// Parse reads comma-delimited text with a header row.
// Empty input yields an empty table rather than an error.
func Parse(text string) (*Table, error) {
	r := csv.NewReader(strings.NewReader(text))
	r.FieldsPerRecord = -1
	r.TrimLeadingSpace = true

	header, err := r.Read()
	if errors.Is(err, io.EOF) {
		return NewTable(nil, nil), nil
	}
	if err != nil {
		return nil, &domain.ParseError{Err: fmt.Errorf("read header: %w", err)}
	}
	for i := range header {
		header[i] = strings.TrimSpace(header[i])
	}

	var rows [][]string
	for line := 1; ; line++ {
		rec, err := r.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, &domain.ParseError{Row: line, Err: err}
		}
		if len(rec) > len(header) {
			return nil, &domain.ParseError{
				Row: line,
				Err: fmt.Errorf("expected %d fields, saw %d", len(header), len(rec)),
			}
		}
		for len(rec) < len(header) {
			rec = append(rec, "")
		}
		rows = append(rows, rec)
	}
	return NewTable(header, rows), nil
}

// Load decodes raw bytes and parses them into a table
func Load(raw []byte) (*Table, error) {
	text, err := Decode(raw)
	if err != nil {
		return nil, &domain.ParseError{Err: err}
	}
	return Parse(text)
}

var missingMarkers = map[string]struct{}{
	"": {}, "na": {}, "n/a": {}, "nan": {}, "-nan": {}, "null": {}, "none": {}, "#n/a": {}, "<na>": {},
}

// IsMissing reports whether a cell holds no value
func IsMissing(s string) bool {
	_, ok := missingMarkers[strings.ToLower(strings.TrimSpace(s))]
	return ok
}

// ParseNumber parses a numeric cell
func ParseNumber(s string) (float64, error) {
	return strconv.ParseFloat(strings.TrimSpace(s), 64)
}

// IsNumericColumn reports whether every present value of a column parses as a number
func (t *Table) IsNumericColumn(name string) bool {
	for _, v := range t.Values(name) {
		if IsMissing(v) {
			continue
		}
		if _, err := ParseNumber(v); err != nil {
			return false
		}
	}
	return true
}
