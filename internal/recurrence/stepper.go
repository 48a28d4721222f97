package recurrence

import (
	"fmt"

	"carteira/internal/core"
)

// Stepper computes installment dates for one repetition unit.
type Stepper interface {
	// Step returns the date n units after start.
	Step(start core.Date, n int) core.Date
}

// DailyStepper advances by calendar days.
type DailyStepper struct{}

func (DailyStepper) Step(start core.Date, n int) core.Date {
	return core.DateOf(start.AddDate(0, 0, n))
}

// WeeklyStepper advances by 7 days.
type WeeklyStepper struct{}

func (WeeklyStepper) Step(start core.Date, n int) core.Date {
	return core.DateOf(start.AddDate(0, 0, 7*n))
}

// MonthlyStepper keeps the day of month, clamped to the target month's last day.
type MonthlyStepper struct{}

func (MonthlyStepper) Step(start core.Date, n int) core.Date {
	return MonthOf(start.Time).Add(n).Day(start.Day())
}

// YearlyStepper keeps month and day; Feb 29 falls back to Feb 28.
type YearlyStepper struct{}

func (YearlyStepper) Step(start core.Date, n int) core.Date {
	return MonthOf(start.Time).Add(12 * n).Day(start.Day())
}

var steppers = map[core.Frequency]Stepper{
	core.Daily:   DailyStepper{},
	core.Weekly:  WeeklyStepper{},
	core.Monthly: MonthlyStepper{},
	core.Yearly:  YearlyStepper{},
}

// GetStepper returns the stepper registered for unit.
func GetStepper(unit core.Frequency) (Stepper, error) {
	s, ok := steppers[unit]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownUnit, unit)
	}
	return s, nil
}

// RegisterStepper adds or replaces the stepper for unit.
func RegisterStepper(unit core.Frequency, s Stepper) {
	steppers[unit] = s
}
