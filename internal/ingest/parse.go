package ingest

import (
	"fmt"
	"math"
	"strings"
	"time"
	"unicode"

	"github.com/shopspring/decimal"

	"carteira/internal/core"
)

var currencySymbols = []string{"R$", "US$", "$", "€", "£"}

// spreadsheet serial day 0
var serialEpoch = time.Date(1899, 12, 30, 0, 0, 0, 0, time.UTC)

// 9999-12-31
const maxSerialDay = 2958465

var textDateLayouts = []string{"2/1/2006", "2006-1-2", "2-1-2006"}

// ParseAmount reads a signed amount from a numeric cell or from currency text
// such as "R$ 1.234,56", "-45,90" or "1,234.56".
// Amounts above core.MaxAmount are rejected.
func ParseAmount(c Cell) (decimal.Decimal, error) {
	d, err := parseAmount(c)
	if err != nil {
		return decimal.Zero, err
	}
	if err := core.CheckAmount(d); err != nil {
		return decimal.Zero, err
	}
	return d, nil
}

func parseAmount(c Cell) (decimal.Decimal, error) {
	switch c.Kind {
	case Number:
		if math.IsNaN(c.Number) || math.IsInf(c.Number, 0) {
			return decimal.Zero, core.ErrInvalidAmount
		}
		return decimal.NewFromFloat(c.Number), nil
	case Text:
		return parseCurrencyText(c.Text)
	}
	return decimal.Zero, core.ErrInvalidAmount
}

func parseCurrencyText(raw string) (decimal.Decimal, error) {
	s := raw
	for _, sym := range currencySymbols {
		s = strings.ReplaceAll(s, sym, "")
	}
	s = strings.Map(func(r rune) rune {
		if unicode.IsSpace(r) {
			return -1
		}
		return r
	}, s)

	neg := false
	switch {
	case strings.HasPrefix(s, "(") && strings.HasSuffix(s, ")"):
		neg, s = true, s[1:len(s)-1]
	case strings.HasPrefix(s, "-"):
		neg, s = true, s[1:]
	case strings.HasSuffix(s, "-"):
		neg, s = true, s[:len(s)-1]
	case strings.HasPrefix(s, "+"):
		s = s[1:]
	}
	if s == "" {
		return decimal.Zero, fmt.Errorf("%w: %q", core.ErrInvalidAmount, raw)
	}

	s = normalizeSeparators(s)
	for _, r := range s {
		if r != '.' && !unicode.IsDigit(r) {
			return decimal.Zero, fmt.Errorf("%w: %q", core.ErrInvalidAmount, raw)
		}
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero, fmt.Errorf("%w: %q", core.ErrInvalidAmount, raw)
	}
	if neg {
		d = d.Neg()
	}
	return d, nil
}

// normalizeSeparators rewrites s so that '.' is the only, decimal, separator.
// When both '.' and ',' appear the rightmost one is the decimal mark. A lone
// ',' is decimal. A lone '.' is a thousands mark when it repeats or when
// exactly three digits follow it.
func normalizeSeparators(s string) string {
	lastDot := strings.LastIndex(s, ".")
	lastComma := strings.LastIndex(s, ",")

	switch {
	case lastDot >= 0 && lastComma >= 0:
		if lastComma > lastDot {
			s = strings.ReplaceAll(s, ".", "")
			return strings.Replace(s, ",", ".", 1)
		}
		return strings.ReplaceAll(s, ",", "")
	case lastComma >= 0:
		if strings.Count(s, ",") > 1 {
			return strings.ReplaceAll(s, ",", "")
		}
		return strings.Replace(s, ",", ".", 1)
	case lastDot >= 0:
		if strings.Count(s, ".") > 1 || len(s)-lastDot-1 == 3 {
			return strings.ReplaceAll(s, ".", "")
		}
	}
	return s
}

// ParseDate reads a calendar date from a date cell, a spreadsheet serial
// number or text in DD/MM/YYYY, YYYY-MM-DD or DD-MM-YYYY form.
func ParseDate(c Cell) (core.Date, error) {
	switch c.Kind {
	case Timestamp:
		return core.DateOf(c.Time), nil
	case Number:
		return serialDate(c.Number)
	case Text:
		return parseDateText(c.Text)
	}
	return core.Date{}, core.ErrInvalidDate
}

func serialDate(f float64) (core.Date, error) {
	if math.IsNaN(f) || f < 1 || f > maxSerialDay {
		return core.Date{}, fmt.Errorf("%w: serial %v", core.ErrInvalidDate, f)
	}
	return core.DateOf(serialEpoch.AddDate(0, 0, int(math.Floor(f)))), nil
}

func parseDateText(raw string) (core.Date, error) {
	s := strings.TrimSpace(raw)
	for _, layout := range textDateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return core.DateOf(t), nil
		}
	}
	// ISO timestamps, e.g. the raw value of a typed date cell
	if len(s) > 10 && s[10] == 'T' {
		if t, err := time.Parse(time.DateOnly, s[:10]); err == nil {
			return core.DateOf(t), nil
		}
	}
	return core.Date{}, fmt.Errorf("%w: %q", core.ErrInvalidDate, raw)
}
