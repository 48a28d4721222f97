// Package summary reduces a month's visible transactions to dashboard totals.
package summary

import (
	"cmp"
	"slices"

	"carteira/internal/core"
	"carteira/internal/recurrence"
)

// Summarize totals the visible transactions of month m. Category and card
// breakdowns count expenses only; the daily series holds both directions.
func Summarize(m recurrence.Month, visible []recurrence.Visible) core.MonthSummary {
	out := core.MonthSummary{
		Month:      m.String(),
		ByCategory: []core.CategoryAmount{},
		ByCard:     []core.CategoryAmount{},
		Daily:      []core.DailyAmount{},
		Count:      len(visible),
	}

	byCategory := map[string]int64{}
	byCard := map[string]int64{}
	daily := map[string]*core.DailyAmount{}

	for _, v := range visible {
		key := v.Date.String()
		day, ok := daily[key]
		if !ok {
			day = &core.DailyAmount{Date: v.Date}
			daily[key] = day
		}

		switch v.Type {
		case core.Income:
			out.Income.Cents += v.Amount.Cents
			day.Income.Cents += v.Amount.Cents
		case core.Expense:
			out.Expense.Cents += v.Amount.Cents
			day.Expense.Cents += v.Amount.Cents
			byCategory[v.Category] += v.Amount.Cents
			if v.Card != "" {
				byCard[v.Card] += v.Amount.Cents
			}
		}
	}
	out.Balance = core.Money{Cents: out.Income.Cents - out.Expense.Cents}

	out.ByCategory = append(out.ByCategory, ranked(byCategory)...)
	out.ByCard = append(out.ByCard, ranked(byCard)...)
	for _, d := range daily {
		out.Daily = append(out.Daily, *d)
	}
	slices.SortFunc(out.Daily, func(a, b core.DailyAmount) int {
		return a.Date.Compare(b.Date.Time)
	})
	return out
}

// ranked orders totals by amount descending, then by name.
func ranked(totals map[string]int64) []core.CategoryAmount {
	out := make([]core.CategoryAmount, 0, len(totals))
	for name, cents := range totals {
		out = append(out, core.CategoryAmount{Name: name, Amount: core.Money{Cents: cents}})
	}
	slices.SortFunc(out, func(a, b core.CategoryAmount) int {
		if c := cmp.Compare(b.Amount.Cents, a.Amount.Cents); c != 0 {
			return c
		}
		return cmp.Compare(a.Name, b.Name)
	})
	return out
}
