package tableparser

import (
	"bytes"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"unicode/utf8"

	"github.com/giygas/opioid-maps/logging"
	"github.com/xuri/excelize/v2"
	"golang.org/x/text/encoding/charmap"
)

// Load reads a delimited file or an .xlsx workbook into a table.
// The delimiter is chosen from the extension: tab for .tsv/.txt, comma otherwise.
func Load(path string) (*Table, error) {
	info, err := os.Stat(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s", ErrFileNotFound, path)
		}
		return nil, fmt.Errorf("failed to stat %s: %w", path, err)
	}
	if info.IsDir() {
		return nil, fmt.Errorf("%w: %s is a directory", ErrMalformedInput, path)
	}

	switch strings.ToLower(filepath.Ext(path)) {
	case ".xlsx", ".xlsm":
		return loadWorkbook(path)
	case ".tsv", ".txt":
		return loadDelimited(path, '\t')
	default:
		return loadDelimited(path, ',')
	}
}

func loadDelimited(path string, comma rune) (*Table, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open %s: %w", path, err)
	}
	defer func() {
		if err := file.Close(); err != nil {
			logging.Warn("Failed to close dataset file", "path", path, "error", err)
		}
	}()

	table, err := ReadDelimited(file, comma)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}

	logging.Debug("Dataset file loaded", "path", path, "rows", table.Len(), "columns", len(table.columns))
	return table, nil
}

// ReadDelimited parses delimited text with a header row.
// Input that is not valid UTF-8 is decoded as ISO-8859-1.
func ReadDelimited(r io.Reader, comma rune) (*Table, error) {
	raw, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("failed to read input: %w", err)
	}

	var reader io.Reader
	if utf8.Valid(raw) {
		reader = bytes.NewReader(bytes.TrimPrefix(raw, []byte("\ufeff")))
	} else {
		reader = charmap.ISO8859_1.NewDecoder().Reader(bytes.NewReader(raw))
	}

	csvReader := csv.NewReader(reader)
	csvReader.Comma = comma
	csvReader.FieldsPerRecord = 0

	header, err := csvReader.Read()
	if errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("%w: file is empty", ErrMalformedInput)
	}
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedInput, err)
	}

	var rows [][]Cell
	var lines []int

	for {
		record, err := csvReader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrMalformedInput, err)
		}

		line, _ := csvReader.FieldPos(0)
		row := make([]Cell, len(record))
		for i, v := range record {
			row[i] = NewCell(v)
		}
		rows = append(rows, row)
		lines = append(lines, line)
	}

	return newTable(header, rows, lines), nil
}

func loadWorkbook(path string) (*Table, error) {
	f, err := excelize.OpenFile(path)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to open workbook %s: %v", ErrMalformedInput, path, err)
	}
	defer func() {
		if err := f.Close(); err != nil {
			logging.Warn("Failed to close workbook", "path", path, "error", err)
		}
	}()

	table, err := readWorkbook(f)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return table, nil
}

// ReadWorkbook parses the first sheet of an .xlsx workbook with a header row
func ReadWorkbook(r io.Reader) (*Table, error) {
	f, err := excelize.OpenReader(r)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to open workbook: %v", ErrMalformedInput, err)
	}
	defer f.Close()

	return readWorkbook(f)
}

func readWorkbook(f *excelize.File) (*Table, error) {
	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		return nil, fmt.Errorf("%w: workbook has no sheets", ErrMalformedInput)
	}

	rows, err := f.GetRows(sheets[0])
	if err != nil {
		return nil, fmt.Errorf("%w: failed to read sheet %q: %v", ErrMalformedInput, sheets[0], err)
	}
	if len(rows) == 0 {
		return nil, fmt.Errorf("%w: sheet %q is empty", ErrMalformedInput, sheets[0])
	}

	// GetRows drops trailing empty cells, NewTable pads them back as missing
	return NewTable(rows[0], rows[1:])
}
