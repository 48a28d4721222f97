// Package ingest turns spreadsheet rows into transactions.
//
// Readers for .xlsx, .csv and Google Sheets value ranges produce a row-major
// table of typed cells; Ingest validates the header row and converts every
// data row it can parse, silently skipping the rest.
package ingest

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

type CellKind int

const (
	Empty CellKind = iota
	Text
	Number
	Timestamp
)

// Cell is one spreadsheet value with the type the source reported for it.
type Cell struct {
	Kind   CellKind
	Text   string
	Number float64
	Time   time.Time
}

func TextCell(s string) Cell {
	if strings.TrimSpace(s) == "" {
		return Cell{}
	}
	return Cell{Kind: Text, Text: s}
}

func NumberCell(f float64) Cell {
	return Cell{Kind: Number, Number: f}
}

func TimeCell(t time.Time) Cell {
	if t.IsZero() {
		return Cell{}
	}
	return Cell{Kind: Timestamp, Time: t}
}

// CellFromValue converts a decoded value (as returned by the Sheets API or
// any JSON source) into a Cell.
func CellFromValue(v any) Cell {
	switch x := v.(type) {
	case nil:
		return Cell{}
	case string:
		return TextCell(x)
	case float64:
		return NumberCell(x)
	case float32:
		return NumberCell(float64(x))
	case int:
		return NumberCell(float64(x))
	case int64:
		return NumberCell(float64(x))
	case time.Time:
		return TimeCell(x)
	default:
		return TextCell(fmt.Sprint(x))
	}
}

// IsEmpty reports whether the cell carries no value.
func (c Cell) IsEmpty() bool {
	return c.Kind == Empty
}

// String renders the cell as text, the way a header or description reads it.
func (c Cell) String() string {
	switch c.Kind {
	case Text:
		return strings.TrimSpace(c.Text)
	case Number:
		return strconv.FormatFloat(c.Number, 'f', -1, 64)
	case Timestamp:
		return c.Time.Format(time.DateOnly)
	}
	return ""
}
