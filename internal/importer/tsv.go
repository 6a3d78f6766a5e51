package importer

import (
	"encoding/csv"
	"fmt"
	"io"
)

// tsvReader streams one tab-delimited extract. The header row names the
// columns; rows are exposed by column name so extract column reordering
// does not break the importer. Free-text fields may be arbitrarily large.
type tsvReader struct {
	r    *csv.Reader
	cols map[string]int
	line int
}

func newTSVReader(r io.Reader) (*tsvReader, error) {
	cr := csv.NewReader(r)
	cr.Comma = '\t'
	cr.LazyQuotes = true
	cr.FieldsPerRecord = -1

	header, err := cr.Read()
	if err != nil {
		return nil, fmt.Errorf("read header: %w", err)
	}
	cols := make(map[string]int, len(header))
	for i, name := range header {
		cols[name] = i
	}
	return &tsvReader{r: cr, cols: cols, line: 1}, nil
}

// Next returns the next data row, or io.EOF when the extract is exhausted.
func (t *tsvReader) Next() (tsvRow, error) {
	fields, err := t.r.Read()
	if err != nil {
		return tsvRow{}, err
	}
	t.line++
	return tsvRow{cols: t.cols, fields: fields, line: t.line}, nil
}

// tsvRow is one data row addressed by column name.
type tsvRow struct {
	cols   map[string]int
	fields []string
	line   int
}

// Get returns the named column's raw value, or "" when the column is
// absent or the row is short.
func (r tsvRow) Get(name string) string {
	i, ok := r.cols[name]
	if !ok || i >= len(r.fields) {
		return ""
	}
	return r.fields[i]
}

// Line is the 1-based line number of the row in the extract, header included.
func (r tsvRow) Line() int {
	return r.line
}
