package ingest

import (
	"errors"
	"strings"
)

var (
	ErrEmptySheet      = errors.New("sheet is empty")
	ErrMissingColumns  = errors.New("missing required columns")
	ErrNoValidRows     = errors.New("no valid rows")
	ErrUnsupportedFile = errors.New("unsupported file type")
)

// MissingColumnsError names the required headers absent from the sheet.
type MissingColumnsError struct {
	Columns []string
}

func (e *MissingColumnsError) Error() string {
	return ErrMissingColumns.Error() + ": " + strings.Join(e.Columns, ", ")
}

func (e *MissingColumnsError) Unwrap() error {
	return ErrMissingColumns
}
