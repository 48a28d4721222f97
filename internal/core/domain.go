package core

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

const (
	Income  TxType = "income"
	Expense TxType = "expense"
)

const (
	Daily   Frequency = "daily"
	Weekly  Frequency = "weekly"
	Monthly Frequency = "monthly"
	Yearly  Frequency = "yearly"
)

const (
	KindSingle      Kind = "single"
	KindFixed       Kind = "fixed"
	KindInstallment Kind = "installment"
)

// Placeholders used when a record arrives without description or category.
const (
	DefaultDescription = "Sem descrição"
	DefaultCategory    = "Geral"
)

const maxDescriptionLen = 200

type (
	TxType    string
	Frequency string
	Kind      string

	Date struct {
		time.Time
	}

	// Schedule is the kind-specific payload of a Transaction. Exactly one of
	// Single, Fixed or Installment.
	Schedule interface {
		kind() Kind
	}

	// Single is a plain, one-off entry.
	Single struct{}

	// Fixed marks a template that recurs every month from its own date onward.
	Fixed struct{}

	// Installment is one stored member of a finite repetition group.
	Installment struct {
		GroupID string
		Current int
		Total   int
	}

	Transaction struct {
		ID          string
		Date        Date
		Description string
		Category    string
		Amount      Money // always non-negative; sign lives in Type
		Type        TxType
		Card        string
		Schedule    Schedule
	}

	Dataset struct {
		ID        string
		Name      string
		Owner     string
		CreatedAt time.Time
	}
)

func (Single) kind() Kind      { return KindSingle }
func (Fixed) kind() Kind       { return KindFixed }
func (Installment) kind() Kind { return KindInstallment }

var (
	ErrNotFound           = errors.New("not found")
	ErrInvalidDate        = errors.New("invalid date")
	ErrInvalidMonth       = errors.New("invalid month")
	ErrInvalidAmount      = errors.New("invalid amount")
	ErrInvalidType        = errors.New("invalid transaction type")
	ErrInvalidInstallment = errors.New("invalid installment")
	ErrConflictingKind    = errors.New("transaction cannot be both fixed and repeated")
	ErrEmptyName          = errors.New("empty dataset name")
	ErrDescriptionTooLong = errors.New("description too long (max 200 characters)")
	ErrDuplicateID        = errors.New("duplicate transaction id")
)

// NewDate creates a new Date from year, month, day
func NewDate(year, month, day int) Date {
	return Date{Time: time.Date(year, time.Month(month), day, 0, 0, 0, 0, time.UTC)}
}

// DateOf truncates t to its calendar day in UTC.
func DateOf(t time.Time) Date {
	y, m, d := t.Date()
	return NewDate(y, int(m), d)
}

// ParseISODate parses YYYY-MM-DD. Longer ISO timestamps are accepted and
// truncated to their date part.
func ParseISODate(s string) (Date, error) {
	s = strings.TrimSpace(s)
	if len(s) > 10 {
		s = s[:10]
	}
	t, err := time.Parse(time.DateOnly, s)
	if err != nil {
		return Date{}, fmt.Errorf("%w: %q", ErrInvalidDate, s)
	}
	return Date{Time: t}, nil
}

func (d Date) Validate() error {
	if d.IsZero() {
		return ErrInvalidDate
	}
	return nil
}

// String formats the date as YYYY-MM-DD.
func (d Date) String() string {
	return d.Format(time.DateOnly)
}

func (d Date) MarshalJSON() ([]byte, error) {
	return []byte(`"` + d.String() + `"`), nil
}

func (d *Date) UnmarshalJSON(b []byte) error {
	s := strings.Trim(string(b), `"`)
	if s == "" || s == "null" {
		*d = Date{}
		return nil
	}
	parsed, err := ParseISODate(s)
	if err != nil {
		return err
	}
	*d = parsed
	return nil
}

// Valid reports whether t is income or expense.
func (t TxType) Valid() bool {
	return t == Income || t == Expense
}

// Kind reports which variant the transaction is. A nil Schedule is a plain entry.
func (t Transaction) Kind() Kind {
	if t.Schedule == nil {
		return KindSingle
	}
	return t.Schedule.kind()
}

// IsFixed reports whether t is a monthly template.
func (t Transaction) IsFixed() bool {
	return t.Kind() == KindFixed
}

// Installment returns the repetition payload when t belongs to a group.
func (t Transaction) Installment() (Installment, bool) {
	inst, ok := t.Schedule.(Installment)
	return inst, ok
}

func (i Installment) Validate() error {
	if strings.TrimSpace(i.GroupID) == "" {
		return fmt.Errorf("%w: missing group id", ErrInvalidInstallment)
	}
	if i.Total < 1 || i.Current < 1 || i.Current > i.Total {
		return fmt.Errorf("%w: %d of %d", ErrInvalidInstallment, i.Current, i.Total)
	}
	return nil
}

func (t Transaction) Validate() error {
	if err := t.Date.Validate(); err != nil {
		return err
	}
	if t.Amount.Cents < 0 || t.Amount.Cents > MaxCents {
		return ErrInvalidAmount
	}
	if !t.Type.Valid() {
		return fmt.Errorf("%w: %q", ErrInvalidType, t.Type)
	}
	if len(t.Description) > maxDescriptionLen {
		return ErrDescriptionTooLong
	}
	if inst, ok := t.Installment(); ok {
		if err := inst.Validate(); err != nil {
			return err
		}
	}
	return nil
}

// WithDefaults fills blank description and category with the placeholders.
func (t Transaction) WithDefaults() Transaction {
	t.Description = strings.TrimSpace(t.Description)
	if t.Description == "" {
		t.Description = DefaultDescription
	}
	t.Category = strings.TrimSpace(t.Category)
	if t.Category == "" {
		t.Category = DefaultCategory
	}
	if t.Schedule == nil {
		t.Schedule = Single{}
	}
	return t
}

// Signed returns the amount with the sign implied by the type.
func (t Transaction) Signed() int64 {
	if t.Type == Expense {
		return -t.Amount.Cents
	}
	return t.Amount.Cents
}

func (d Dataset) Validate() error {
	if strings.TrimSpace(d.Name) == "" {
		return ErrEmptyName
	}
	return nil
}
