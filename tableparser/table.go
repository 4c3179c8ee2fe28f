// Package tableparser provides functionality for loading country-level datasets and preparing them for charting.
package tableparser

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

var (
	// ErrFileNotFound is returned when a dataset file does not exist
	ErrFileNotFound = errors.New("file not found")
	// ErrMalformedInput is returned when a file cannot be parsed as a table
	ErrMalformedInput = errors.New("malformed input")
	// ErrSchemaMismatch is returned when a required column is absent
	ErrSchemaMismatch = errors.New("schema mismatch")
	// ErrTypeCoercion is returned when a value cannot be read as the expected type
	ErrTypeCoercion = errors.New("type coercion failure")
)

// missingMarkers are the strings read as a missing value, same set as pandas' default na_values
var missingMarkers = map[string]struct{}{
	"": {}, "#N/A": {}, "#N/A N/A": {}, "#NA": {}, "-1.#IND": {}, "-1.#QNAN": {}, "-NaN": {}, "-nan": {},
	"1.#IND": {}, "1.#QNAN": {}, "<NA>": {}, "N/A": {}, "NA": {}, "NULL": {}, "NaN": {}, "None": {},
	"n/a": {}, "nan": {}, "null": {},
}

// Cell is a single table value. Missing cells keep their raw text in Value.
type Cell struct {
	Value   string
	Missing bool
}

// NewCell builds a cell from raw text, recognising missing-value markers
func NewCell(raw string) Cell {
	trimmed := strings.TrimSpace(raw)
	if _, ok := missingMarkers[trimmed]; ok {
		return Cell{Value: trimmed, Missing: true}
	}
	return Cell{Value: trimmed}
}

// Table is an immutable in-memory table. Transformations return new tables.
type Table struct {
	columns []string
	index   map[string]int
	rows    [][]Cell
	lines   []int
}

// NewTable builds a table from a header and raw string rows.
// Rows shorter than the header are padded with missing cells; longer rows are rejected.
func NewTable(columns []string, rows [][]string) (*Table, error) {
	cells := make([][]Cell, 0, len(rows))
	lines := make([]int, 0, len(rows))

	for i, raw := range rows {
		if len(raw) > len(columns) {
			return nil, fmt.Errorf("%w: row %d has %d fields, header has %d", ErrMalformedInput, i+2, len(raw), len(columns))
		}
		row := make([]Cell, len(columns))
		for j := range columns {
			if j < len(raw) {
				row[j] = NewCell(raw[j])
			} else {
				row[j] = Cell{Missing: true}
			}
		}
		cells = append(cells, row)
		lines = append(lines, i+2)
	}

	return newTable(columns, cells, lines), nil
}

func newTable(columns []string, rows [][]Cell, lines []int) *Table {
	cols := dedupeColumns(columns)
	index := make(map[string]int, len(cols))
	for i, c := range cols {
		index[c] = i
	}
	return &Table{columns: cols, index: index, rows: rows, lines: lines}
}

// derive shares the column set with t and takes ownership of rows and lines
func (t *Table) derive(rows [][]Cell, lines []int) *Table {
	return &Table{columns: t.columns, index: t.index, rows: rows, lines: lines}
}

// dedupeColumns renames repeated header names the way pandas does ("x", "x.1", "x.2")
func dedupeColumns(columns []string) []string {
	seen := make(map[string]int, len(columns))
	out := make([]string, len(columns))
	for i, c := range columns {
		name := strings.TrimSpace(strings.TrimPrefix(c, "\ufeff"))
		if n, ok := seen[name]; ok {
			seen[name] = n + 1
			out[i] = name + "." + strconv.Itoa(n+1)
			continue
		}
		seen[name] = 0
		out[i] = name
	}
	return out
}

// Columns returns a copy of the column names
func (t *Table) Columns() []string {
	out := make([]string, len(t.columns))
	copy(out, t.columns)
	return out
}

// Len returns the number of rows
func (t *Table) Len() int {
	return len(t.rows)
}

// ColumnIndex returns the position of a column
func (t *Table) ColumnIndex(name string) (int, error) {
	i, ok := t.index[name]
	if !ok {
		return -1, fmt.Errorf("%w: column %q not found", ErrSchemaMismatch, name)
	}
	return i, nil
}

// RequireColumns checks that every named column is present
func (t *Table) RequireColumns(names ...string) error {
	var missing []string
	for _, n := range names {
		if _, ok := t.index[n]; !ok {
			missing = append(missing, n)
		}
	}
	if len(missing) > 0 {
		return fmt.Errorf("%w: missing columns %v (have %v)", ErrSchemaMismatch, missing, t.columns)
	}
	return nil
}

// Row returns a copy of row i
func (t *Table) Row(i int) []Cell {
	out := make([]Cell, len(t.rows[i]))
	copy(out, t.rows[i])
	return out
}

// Line returns the 1-based source line of row i (the header is line 1)
func (t *Table) Line(i int) int {
	return t.lines[i]
}

// Cell returns the cell at row i of the named column
func (t *Table) Cell(i int, column string) (Cell, error) {
	c, err := t.ColumnIndex(column)
	if err != nil {
		return Cell{}, err
	}
	return t.rows[i][c], nil
}

// Column returns a copy of every cell in the named column
func (t *Table) Column(name string) ([]Cell, error) {
	c, err := t.ColumnIndex(name)
	if err != nil {
		return nil, err
	}
	out := make([]Cell, len(t.rows))
	for i, row := range t.rows {
		out[i] = row[c]
	}
	return out, nil
}

// Values returns the raw values of a column and whether each one is present
func (t *Table) Values(name string) ([]string, []bool, error) {
	cells, err := t.Column(name)
	if err != nil {
		return nil, nil, err
	}
	values := make([]string, len(cells))
	present := make([]bool, len(cells))
	for i, c := range cells {
		values[i] = c.Value
		present[i] = !c.Missing
	}
	return values, present, nil
}

// Float reads the cell at row i of the named column as a number
func (t *Table) Float(i int, column string) (float64, error) {
	cell, err := t.Cell(i, column)
	if err != nil {
		return 0, err
	}
	if cell.Missing {
		return 0, fmt.Errorf("%w: column %q line %d is missing", ErrTypeCoercion, column, t.lines[i])
	}
	f, err := strconv.ParseFloat(cell.Value, 64)
	if err != nil {
		return 0, fmt.Errorf("%w: column %q line %d: %q is not numeric", ErrTypeCoercion, column, t.lines[i], cell.Value)
	}
	return f, nil
}

// Head returns the first n rows
func (t *Table) Head(n int) *Table {
	if n > len(t.rows) {
		n = len(t.rows)
	}
	if n < 0 {
		n = 0
	}
	return t.derive(t.rows[:n:n], t.lines[:n:n])
}
