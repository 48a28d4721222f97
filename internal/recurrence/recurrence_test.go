package recurrence

import (
	"encoding/json"
	"errors"
	"strings"
	"testing"
	"time"

	"carteira/internal/core"
)

func mustMonth(t *testing.T, s string) Month {
	t.Helper()
	m, err := ParseMonth(s)
	if err != nil {
		t.Fatalf("ParseMonth(%q): %v", s, err)
	}
	return m
}

func tx(id string, y, m, d int, typ core.TxType, cents int64, s core.Schedule) core.Transaction {
	return core.Transaction{
		ID:          id,
		Date:        core.NewDate(y, m, d),
		Description: id,
		Category:    core.DefaultCategory,
		Amount:      core.Money{Cents: cents},
		Type:        typ,
		Schedule:    s,
	}
}

func TestParseMonth(t *testing.T) {
	tests := []struct {
		in      string
		want    string
		wantErr bool
	}{
		{"2025-02", "2025-02", false},
		{"2024-12", "2024-12", false},
		{"2025-13", "", true},
		{"2025-2", "", true},
		{"", "", true},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseMonth(tt.in)
			if tt.wantErr {
				if !errors.Is(err, core.ErrInvalidMonth) {
					t.Fatalf("ParseMonth(%q) error = %v, want ErrInvalidMonth", tt.in, err)
				}
				return
			}
			if err != nil {
				t.Fatalf("ParseMonth(%q) unexpected error: %v", tt.in, err)
			}
			if got.String() != tt.want {
				t.Errorf("ParseMonth(%q) = %s, want %s", tt.in, got, tt.want)
			}
		})
	}
}

func TestMonthBounds(t *testing.T) {
	m := mustMonth(t, "2024-12")
	if got := m.End().Format("2006-01-02"); got != "2025-01-01" {
		t.Errorf("End() = %s, want 2025-01-01", got)
	}
	if !m.Contains(core.NewDate(2024, 12, 31)) {
		t.Error("Contains(2024-12-31) = false")
	}
	if m.Contains(core.NewDate(2025, 1, 1)) {
		t.Error("Contains(2025-01-01) = true")
	}
	if got := m.Add(2).String(); got != "2025-02" {
		t.Errorf("Add(2) = %s", got)
	}
	if got := m.Add(-12).String(); got != "2023-12" {
		t.Errorf("Add(-12) = %s", got)
	}
}

func TestExpandFixedClampsToMonthEnd(t *testing.T) {
	rent := tx("rent", 2025, 1, 31, core.Expense, 120000, core.Fixed{})

	tests := []struct {
		month string
		want  string
	}{
		{"2025-01", "2025-01-31"},
		{"2025-02", "2025-02-28"},
		{"2025-04", "2025-04-30"},
		{"2024-02", ""},
		{"2028-02", "2028-02-29"},
	}
	for _, tt := range tests {
		t.Run(tt.month, func(t *testing.T) {
			m := mustMonth(t, tt.month)
			got := Expand([]core.Transaction{rent}, m)
			if tt.want == "" {
				if len(got) != 0 {
					t.Fatalf("Expand before start month returned %d entries", len(got))
				}
				return
			}
			if len(got) != 1 {
				t.Fatalf("Expand returned %d entries, want 1", len(got))
			}
			v := got[0]
			if v.Date.String() != tt.want {
				t.Errorf("occurrence date = %s, want %s", v.Date, tt.want)
			}
			if v.Status != "Fixa" {
				t.Errorf("status = %q, want Fixa", v.Status)
			}
			if v.OriginalID != "rent" || v.ID != "rent@"+tt.month {
				t.Errorf("id = %q originalId = %q", v.ID, v.OriginalID)
			}
			if v.StoredID() != "rent" {
				t.Errorf("StoredID() = %q", v.StoredID())
			}
		})
	}
}

func TestExpandInstallments(t *testing.T) {
	base := tx("", 2025, 1, 10, core.Expense, 10000, nil)
	group, err := Materialize(base, Repeat{Times: 3, Unit: core.Monthly})
	if err != nil {
		t.Fatalf("Materialize: %v", err)
	}

	for i, month := range []string{"2025-01", "2025-02", "2025-03"} {
		got := Expand(group, mustMonth(t, month))
		if len(got) != 1 {
			t.Fatalf("%s: got %d entries, want 1", month, len(got))
		}
		inst, ok := got[0].Installment()
		if !ok || inst.Current != i+1 || inst.Total != 3 {
			t.Errorf("%s: installment = %+v", month, inst)
		}
		if got[0].OriginalID != "" {
			t.Errorf("%s: stored record must not carry originalId", month)
		}
	}

	feb := Expand(group, mustMonth(t, "2025-02"))
	if feb[0].Status != "Repetição 2 de 3" {
		t.Errorf("status = %q", feb[0].Status)
	}
	if got := Expand(group, mustMonth(t, "2025-04")); len(got) != 0 {
		t.Errorf("April has %d entries, want 0", len(got))
	}
}

func TestExpandOrdersByDateDescending(t *testing.T) {
	txs := []core.Transaction{
		tx("a", 2025, 3, 1, core.Income, 100, core.Single{}),
		tx("b", 2025, 3, 20, core.Expense, 100, nil),
		tx("c", 2025, 2, 28, core.Expense, 100, core.Single{}),
		tx("d", 2025, 1, 15, core.Expense, 100, core.Fixed{}),
		tx("e", 2025, 3, 1, core.Expense, 100, core.Single{}),
	}
	got := Expand(txs, mustMonth(t, "2025-03"))

	var ids []string
	for _, v := range got {
		ids = append(ids, v.ID)
	}
	want := "b,d@2025-03,a,e"
	if strings.Join(ids, ",") != want {
		t.Errorf("order = %s, want %s", strings.Join(ids, ","), want)
	}
}

func TestResolveID(t *testing.T) {
	tests := []struct {
		id, original, want string
	}{
		{"rent@2025-02", "rent", "rent"},
		{"rent@2025-02", "", "rent"},
		{"1740830400-3", "", "1740830400-3"},
		{"odd@name", "", "odd@name"},
		{"@2025-02", "", "@2025-02"},
	}
	for _, tt := range tests {
		if got := ResolveID(tt.id, tt.original); got != tt.want {
			t.Errorf("ResolveID(%q, %q) = %q, want %q", tt.id, tt.original, got, tt.want)
		}
	}
}

func TestOccurrenceMonth(t *testing.T) {
	if m, ok := OccurrenceMonth("rent@2025-02"); !ok || m != (Month{Year: 2025, Month: time.February}) {
		t.Errorf("OccurrenceMonth(rent@2025-02) = %v, %v", m, ok)
	}
	for _, id := range []string{"rent", "odd@name", "@2025-02", "rent@2025-13"} {
		if _, ok := OccurrenceMonth(id); ok {
			t.Errorf("OccurrenceMonth(%q) reported a month", id)
		}
	}
}

func TestDeletionSet(t *testing.T) {
	base := tx("", 2025, 1, 10, core.Expense, 5000, nil)
	group, err := Materialize(base, Repeat{Times: 3, Unit: core.Monthly})
	if err != nil {
		t.Fatalf("Materialize: %v", err)
	}
	other, _ := Materialize(base, Repeat{Times: 2, Unit: core.Monthly})
	all := append(append([]core.Transaction{}, group...), other...)

	ids := DeletionSet(group[1], all)
	if len(ids) != 2 || ids[0] != group[1].ID || ids[1] != group[2].ID {
		t.Fatalf("DeletionSet(2nd of 3) = %v, want [%s %s]", ids, group[1].ID, group[2].ID)
	}

	plain := tx("p", 2025, 1, 1, core.Income, 1, core.Single{})
	if ids := DeletionSet(plain, all); len(ids) != 1 || ids[0] != "p" {
		t.Errorf("DeletionSet(plain) = %v", ids)
	}
	fixed := tx("f", 2025, 1, 1, core.Income, 1, core.Fixed{})
	if ids := DeletionSet(fixed, all); len(ids) != 1 || ids[0] != "f" {
		t.Errorf("DeletionSet(fixed) = %v", ids)
	}
}

func TestMaterialize(t *testing.T) {
	base := tx("", 2025, 1, 31, core.Expense, 9990, nil)

	t.Run("monthly clamps", func(t *testing.T) {
		got, err := Materialize(base, Repeat{Times: 3, Unit: core.Monthly})
		if err != nil {
			t.Fatalf("Materialize: %v", err)
		}
		want := []string{"2025-01-31", "2025-02-28", "2025-03-31"}
		seen := map[string]bool{}
		for i, m := range got {
			if m.Date.String() != want[i] {
				t.Errorf("installment %d date = %s, want %s", i+1, m.Date, want[i])
			}
			inst, _ := m.Installment()
			if inst.GroupID != mustGroup(t, got[0]) || inst.Current != i+1 || inst.Total != 3 {
				t.Errorf("installment %d = %+v", i+1, inst)
			}
			if m.ID == "" || seen[m.ID] {
				t.Errorf("installment %d has empty or duplicate id %q", i+1, m.ID)
			}
			seen[m.ID] = true
			if err := m.Validate(); err != nil {
				t.Errorf("installment %d invalid: %v", i+1, err)
			}
		}
	})

	t.Run("other units", func(t *testing.T) {
		tests := []struct {
			unit core.Frequency
			want string
		}{
			{core.Daily, "2025-02-02"},
			{core.Weekly, "2025-02-14"},
			{core.Yearly, "2027-01-31"},
		}
		for _, tt := range tests {
			got, err := Materialize(base, Repeat{Times: 3, Unit: tt.unit})
			if err != nil {
				t.Fatalf("%s: %v", tt.unit, err)
			}
			if got[2].Date.String() != tt.want {
				t.Errorf("%s: third date = %s, want %s", tt.unit, got[2].Date, tt.want)
			}
		}
	})

	t.Run("leap day yearly", func(t *testing.T) {
		got := YearlyStepper{}.Step(core.NewDate(2024, 2, 29), 1)
		if got.String() != "2025-02-28" {
			t.Errorf("Step = %s", got)
		}
	})

	t.Run("single passthrough", func(t *testing.T) {
		got, err := Materialize(base, Repeat{Times: 1, Unit: core.Monthly})
		if err != nil || len(got) != 1 || got[0].Kind() != core.KindSingle {
			t.Fatalf("Materialize(times=1) = %v, %v", got, err)
		}
	})

	t.Run("errors", func(t *testing.T) {
		if _, err := Materialize(base, Repeat{Times: MaxInstallments + 1, Unit: core.Monthly}); !errors.Is(err, ErrTooManyInstallments) {
			t.Errorf("too many: err = %v", err)
		}
		if _, err := Materialize(base, Repeat{Times: 2, Unit: "hourly"}); !errors.Is(err, ErrUnknownUnit) {
			t.Errorf("unknown unit: err = %v", err)
		}
		fixed := base
		fixed.Schedule = core.Fixed{}
		if _, err := Materialize(fixed, Repeat{Times: 2, Unit: core.Monthly}); !errors.Is(err, core.ErrConflictingKind) {
			t.Errorf("fixed: err = %v", err)
		}
	})
}

func mustGroup(t *testing.T, tx core.Transaction) string {
	t.Helper()
	inst, ok := tx.Installment()
	if !ok {
		t.Fatal("not an installment")
	}
	return inst.GroupID
}

func TestRegisterStepper(t *testing.T) {
	const fortnight core.Frequency = "fortnightly"
	RegisterStepper(fortnight, stepFunc(func(d core.Date, n int) core.Date {
		return core.DateOf(d.AddDate(0, 0, 14*n))
	}))
	defer delete(steppers, fortnight)

	got, err := Materialize(tx("", 2025, 1, 1, core.Expense, 1, nil), Repeat{Times: 2, Unit: fortnight})
	if err != nil {
		t.Fatalf("Materialize: %v", err)
	}
	if got[1].Date.String() != "2025-01-15" {
		t.Errorf("second date = %s", got[1].Date)
	}
}

type stepFunc func(core.Date, int) core.Date

func (f stepFunc) Step(d core.Date, n int) core.Date { return f(d, n) }

func TestVisibleJSON(t *testing.T) {
	rent := tx("rent", 2025, 1, 31, core.Expense, 120000, core.Fixed{})
	v := Expand([]core.Transaction{rent}, mustMonth(t, "2025-02"))[0]

	b, err := json.Marshal(v)
	if err != nil {
		t.Fatalf("Marshal: %v", err)
	}
	s := string(b)
	for _, want := range []string{`"id":"rent@2025-02"`, `"date":"2025-02-28"`, `"isFixed":true`, `"status":"Fixa"`, `"originalId":"rent"`} {
		if !strings.Contains(s, want) {
			t.Errorf("JSON %s missing %s", s, want)
		}
	}
}
