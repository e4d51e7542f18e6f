// Package tabular reads uploaded recipient tables (CSV or XLSX) into typed rows.
package tabular

import (
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"slices"
	"strings"

	"bulksms/internal/domain/msgtemplate"
)

// PreviewRows is the number of rows shown before messages are generated.
const PreviewRows = 5

var (
	ErrUnsupportedFormat = errors.New("unsupported file type: upload a .csv or .xlsx file")
	ErrNoHeader          = errors.New("file has no header row")
	ErrDuplicateColumn   = errors.New("duplicate column name")
	ErrUnreadable        = errors.New("file could not be read")
)

// Table is an uploaded recipient list. Columns keep their header order.
type Table struct {
	Name    string
	Columns []string
	Rows    []msgtemplate.Row
	Lines   []int // file row of each entry in Rows; the header is row 1
}

// Len returns the number of data rows.
func (t *Table) Len() int {
	if t == nil {
		return 0
	}
	return len(t.Rows)
}

// Preview returns at most n leading rows as display strings in column order.
func (t *Table) Preview(n int) [][]string {
	if t == nil {
		return nil
	}
	n = min(n, len(t.Rows))
	out := make([][]string, n)
	for i, row := range t.Rows[:n] {
		cells := make([]string, len(t.Columns))
		for j, col := range t.Columns {
			cells[j] = row[col].String()
		}
		out[i] = cells
	}
	return out
}

// HasColumn reports whether name is one of the table's columns.
func (t *Table) HasColumn(name string) bool {
	return t != nil && slices.Contains(t.Columns, name)
}

// Read parses r according to the extension of name.
// PRE: name carries a .csv or .xlsx extension (case-insensitive)
// POST: Returns a Table whose every row has a value for every column
func Read(name string, r io.Reader) (*Table, error) {
	var (
		t   *Table
		err error
	)
	switch strings.ToLower(filepath.Ext(name)) {
	case ".csv":
		t, err = ReadCSV(r)
	case ".xlsx":
		t, err = ReadXLSX(r)
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedFormat, name)
	}
	if err != nil {
		return nil, err
	}
	t.Name = filepath.Base(name)
	return t, nil
}

// fromRecords builds a Table from a header record and data records; lines[i] is the file row of records[i].
// Short records are padded with empty values; cells beyond the header are ignored. Fully blank records are
// skipped without renumbering the rows after them.
func fromRecords(records [][]string, lines []int) (*Table, error) {
	if len(records) == 0 {
		return nil, ErrNoHeader
	}
	header := make([]string, len(records[0]))
	seen := make(map[string]bool, len(header))
	for i, h := range records[0] {
		h = strings.TrimSpace(strings.TrimPrefix(h, "\ufeff"))
		if h == "" {
			h = fmt.Sprintf("column_%d", i+1)
		}
		if seen[h] {
			return nil, fmt.Errorf("%w: %q", ErrDuplicateColumn, h)
		}
		seen[h] = true
		header[i] = h
	}
	if len(header) == 0 {
		return nil, ErrNoHeader
	}

	t := &Table{
		Columns: header,
		Rows:    make([]msgtemplate.Row, 0, len(records)-1),
		Lines:   make([]int, 0, len(records)-1),
	}
	for i, rec := range records[1:] {
		if isBlank(rec) {
			continue
		}
		row := make(msgtemplate.Row, len(header))
		for i, col := range header {
			var cell string
			if i < len(rec) {
				cell = rec[i]
			}
			row[col] = msgtemplate.Infer(cell)
		}
		t.Rows = append(t.Rows, row)
		t.Lines = append(t.Lines, lines[i+1])
	}
	return t, nil
}

func isBlank(rec []string) bool {
	for _, c := range rec {
		if strings.TrimSpace(c) != "" {
			return false
		}
	}
	return true
}
