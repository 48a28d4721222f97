package ingest

import (
	"fmt"
	"time"

	"carteira/internal/core"
)

// Header names after normalization.
const (
	ColDate        = "data"
	ColDescription = "descricao"
	ColCategory    = "categoria"
	ColAmount      = "valor"
	ColCard        = "cartao"
)

var requiredColumns = []string{ColDate, ColDescription, ColCategory, ColAmount}

// Result is the outcome of a successful ingestion.
type Result struct {
	Transactions []core.Transaction
	// Skipped counts data rows dropped because their date or amount could not be
	// parsed, or the resulting record failed validation.
	Skipped int
}

// NormalizeHeader lower-cases, trims and strips diacritics from a header label.
func NormalizeHeader(s string) string {
	return core.Fold(s)
}

// Ingest converts rows (row 0 = headers) into transactions. now seeds the
// synthesized ids so that every record of a batch gets a distinct one.
func Ingest(rows [][]Cell, now time.Time) (Result, error) {
	if len(rows) < 2 {
		return Result{}, ErrEmptySheet
	}

	cols, err := headerIndex(rows[0])
	if err != nil {
		return Result{}, err
	}

	var res Result
	stamp := now.Unix()
	for i, row := range rows[1:] {
		tx, ok := parseRow(row, cols)
		if !ok {
			res.Skipped++
			continue
		}
		tx.ID = fmt.Sprintf("%d-%d", stamp, i)
		res.Transactions = append(res.Transactions, tx)
	}

	if len(res.Transactions) == 0 {
		return res, ErrNoValidRows
	}
	return res, nil
}

// headerIndex maps each known normalized header to its first column.
func headerIndex(header []Cell) (map[string]int, error) {
	cols := make(map[string]int, len(header))
	for i, c := range header {
		name := NormalizeHeader(c.String())
		if _, seen := cols[name]; name != "" && !seen {
			cols[name] = i
		}
	}

	var missing []string
	for _, req := range requiredColumns {
		if _, ok := cols[req]; !ok {
			missing = append(missing, req)
		}
	}
	if len(missing) > 0 {
		return nil, &MissingColumnsError{Columns: missing}
	}
	return cols, nil
}

func parseRow(row []Cell, cols map[string]int) (core.Transaction, bool) {
	cell := func(name string) Cell {
		i, ok := cols[name]
		if !ok || i >= len(row) {
			return Cell{}
		}
		return row[i]
	}

	amount, err := ParseAmount(cell(ColAmount))
	if err != nil {
		return core.Transaction{}, false
	}
	date, err := ParseDate(cell(ColDate))
	if err != nil {
		return core.Transaction{}, false
	}

	txType := core.Income
	if amount.IsNegative() {
		txType = core.Expense
	}

	tx := core.Transaction{
		Date:        date,
		Description: cell(ColDescription).String(),
		Category:    core.CanonicalCategory(cell(ColCategory).String()),
		Amount:      core.MoneyFromDecimal(amount),
		Type:        txType,
		Card:        cell(ColCard).String(),
	}.WithDefaults()
	if err := tx.Validate(); err != nil {
		return core.Transaction{}, false
	}
	return tx, true
}
