package ingest

import (
	"bufio"
	"bytes"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/xuri/excelize/v2"
)

var utf8BOM = []byte{0xEF, 0xBB, 0xBF}

// ReadFile picks a reader from the file name extension.
func ReadFile(name string, r io.Reader) ([][]Cell, error) {
	switch strings.ToLower(filepath.Ext(name)) {
	case ".xlsx":
		return ReadXLSX(r)
	case ".csv":
		return ReadCSV(r)
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedFile, filepath.Ext(name))
	}
}

// ReadXLSX reads the active sheet of an .xlsx workbook. Numeric cells keep
// their raw value so serial dates and amounts reach the parsers untouched.
func ReadXLSX(r io.Reader) ([][]Cell, error) {
	f, err := excelize.OpenReader(r)
	if err != nil {
		return nil, fmt.Errorf("open workbook: %w", err)
	}
	defer f.Close()

	sheet := f.GetSheetName(f.GetActiveSheetIndex())
	if sheet == "" {
		return nil, ErrEmptySheet
	}
	rows, err := f.GetRows(sheet, excelize.Options{RawCellValue: true})
	if err != nil {
		return nil, fmt.Errorf("read sheet %s: %w", sheet, err)
	}

	out := make([][]Cell, 0, len(rows))
	for ri, row := range rows {
		cells := make([]Cell, len(row))
		for ci, v := range row {
			cells[ci] = xlsxCell(f, sheet, ci+1, ri+1, v)
		}
		out = append(out, cells)
	}
	return out, nil
}

func xlsxCell(f *excelize.File, sheet string, col, row int, raw string) Cell {
	if strings.TrimSpace(raw) == "" {
		return Cell{}
	}
	axis, err := excelize.CoordinatesToCellName(col, row)
	if err != nil {
		return TextCell(raw)
	}
	typ, err := f.GetCellType(sheet, axis)
	if err != nil {
		return TextCell(raw)
	}
	return typedCell(typ, raw)
}

// typedCell converts a raw cell value by its stored type. Formula results are
// cached in machine format ("1234.567"), so they are read as numbers when they
// parse as one rather than going through the locale heuristics for text.
func typedCell(typ excelize.CellType, raw string) Cell {
	switch typ {
	case excelize.CellTypeUnset, excelize.CellTypeNumber, excelize.CellTypeFormula:
		if n, err := strconv.ParseFloat(strings.TrimSpace(raw), 64); err == nil {
			return NumberCell(n)
		}
	}
	return TextCell(raw)
}

// ReadCSV reads a delimited text file. The delimiter (';' or ',') is taken
// from whichever appears more often in the header line.
func ReadCSV(r io.Reader) ([][]Cell, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("read csv: %w", err)
	}
	data = bytes.TrimPrefix(data, utf8BOM)

	cr := csv.NewReader(bufio.NewReader(bytes.NewReader(data)))
	cr.Comma = detectDelimiter(data)
	cr.FieldsPerRecord = -1
	cr.TrimLeadingSpace = true
	cr.LazyQuotes = true

	var out [][]Cell
	for {
		rec, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("parse csv line %d: %w", len(out)+1, err)
		}
		cells := make([]Cell, len(rec))
		for i, v := range rec {
			cells[i] = TextCell(v)
		}
		out = append(out, cells)
	}
	return out, nil
}

func detectDelimiter(data []byte) rune {
	line := data
	if i := bytes.IndexByte(data, '\n'); i >= 0 {
		line = data[:i]
	}
	if bytes.Count(line, []byte(";")) > bytes.Count(line, []byte(",")) {
		return ';'
	}
	return ','
}

// FromValues converts a Sheets API value range into cells.
func FromValues(values [][]any) [][]Cell {
	out := make([][]Cell, len(values))
	for i, row := range values {
		cells := make([]Cell, len(row))
		for j, v := range row {
			cells[j] = CellFromValue(v)
		}
		out[i] = cells
	}
	return out
}
