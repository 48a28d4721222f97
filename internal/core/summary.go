package core

// CategoryAmount represents an amount aggregated by category name.
type CategoryAmount struct {
	Name   string `json:"name"`
	Amount Money  `json:"amount"`
}

// DailyAmount holds the income and expense recorded on a single day.
type DailyAmount struct {
	Date    Date  `json:"date"`
	Income  Money `json:"income"`
	Expense Money `json:"expense"`
}

// MonthSummary is the aggregate view of one dataset for a year+month.
type MonthSummary struct {
	Month      string           `json:"month"` // YYYY-MM
	Income     Money            `json:"income"`
	Expense    Money            `json:"expense"`
	Balance    Money            `json:"balance"` // may be negative
	ByCategory []CategoryAmount `json:"byCategory"`
	ByCard     []CategoryAmount `json:"byCard"`
	Daily      []DailyAmount    `json:"daily"`
	Count      int              `json:"count"`
}
