package recurrence

import (
	"errors"
	"fmt"

	"github.com/google/uuid"

	"carteira/internal/core"
)

// MaxInstallments bounds the size of a materialized group.
const MaxInstallments = 360

var (
	ErrTooManyInstallments = fmt.Errorf("too many installments (max %d)", MaxInstallments)
	ErrUnknownUnit         = errors.New("unknown repetition unit")
)

// Repeat asks for Times installments spaced by one Unit each.
type Repeat struct {
	Times int            `json:"times"`
	Unit  core.Frequency `json:"unit"`
}

// Materialize expands base into the stored records of a repetition group.
// Installment i is dated base.Date stepped i units forward, and every member
// gets a fresh id and the same new group id. Times <= 1 returns base alone,
// unchanged.
func Materialize(base core.Transaction, r Repeat) ([]core.Transaction, error) {
	if r.Times <= 1 {
		return []core.Transaction{base}, nil
	}
	if r.Times > MaxInstallments {
		return nil, fmt.Errorf("%w: %d", ErrTooManyInstallments, r.Times)
	}
	if base.IsFixed() {
		return nil, core.ErrConflictingKind
	}
	stepper, err := GetStepper(r.Unit)
	if err != nil {
		return nil, err
	}

	group := uuid.NewString()
	out := make([]core.Transaction, r.Times)
	for i := range out {
		tx := base
		tx.ID = uuid.NewString()
		tx.Date = stepper.Step(base.Date, i)
		tx.Schedule = core.Installment{GroupID: group, Current: i + 1, Total: r.Times}
		out[i] = tx
	}
	return out, nil
}
