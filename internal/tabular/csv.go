// Package tabular holds the small table plumbing shared by the staging
// stages: CSV decoding with header-based column access, best-effort scalar
// coercion, and typed parquet encode/decode.
package tabular

import (
	"encoding/csv"
	"io"
	"strings"

	"github.com/jszwec/csvutil"
	"github.com/rotisserie/eris"
)

// MarshalCSV encodes rows as a CSV document with a header derived from the
// row type's csv tags.
func MarshalCSV[T any](rows []T) ([]byte, error) {
	data, err := csvutil.Marshal(rows)
	if err != nil {
		return nil, eris.Wrap(err, "csv: marshal")
	}
	return data, nil
}

// Table is a fully materialized CSV file: a header plus raw string records.
type Table struct {
	Header []string
	Rows   [][]string

	colIdx map[string]int
}

// ParseCSV reads an entire CSV document. The first row is the header; column
// lookups are case-insensitive and whitespace-tolerant. Records may have a
// variable number of fields.
func ParseCSV(r io.Reader) (*Table, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1
	reader.LazyQuotes = true

	header, err := reader.Read()
	if err == io.EOF {
		return nil, eris.New("csv: empty input")
	}
	if err != nil {
		return nil, eris.Wrap(err, "csv: read header")
	}

	t := &Table{Header: header, colIdx: mapColumns(header)}
	for {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, eris.Wrap(err, "csv: read row")
		}
		t.Rows = append(t.Rows, record)
	}
	return t, nil
}

// HasColumn reports whether the header contains the named column.
func (t *Table) HasColumn(name string) bool {
	_, ok := t.colIdx[normalizeCol(name)]
	return ok
}

// Get returns the value of the named column in a record, or "" when the
// column is absent or the record is short.
func (t *Table) Get(record []string, name string) string {
	idx, ok := t.colIdx[normalizeCol(name)]
	if !ok || idx >= len(record) {
		return ""
	}
	return strings.TrimSpace(record[idx])
}

// normalizeCol lowercases and trims a header cell for matching.
func normalizeCol(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}

// mapColumns builds a normalized column name -> index map.
func mapColumns(header []string) map[string]int {
	m := make(map[string]int, len(header))
	for i, col := range header {
		m[normalizeCol(col)] = i
	}
	return m
}
