package core

import (
	"encoding/json"
	"errors"
	"strings"
	"testing"
	"time"
)

func TestDateValidate(t *testing.T) {
	cases := []struct {
		d  Date
		ok bool
	}{
		{NewDate(2025, 1, 1), true},
		{NewDate(2025, 12, 31), true},
		{Date{Time: time.Time{}}, false}, // zero time
	}
	for i, tc := range cases {
		err := tc.d.Validate()
		if tc.ok && err != nil {
			t.Fatalf("case %d expected ok, got %v", i, err)
		}
		if !tc.ok && err == nil {
			t.Fatalf("case %d expected error", i)
		}
	}
}

func TestParseISODateRoundTrip(t *testing.T) {
	for _, in := range []string{"2025-01-31", "2024-02-29", "1999-12-01"} {
		d, err := ParseISODate(in)
		if err != nil {
			t.Fatalf("%s: %v", in, err)
		}
		again, err := ParseISODate(d.String())
		if err != nil || !again.Equal(d.Time) {
			t.Fatalf("%s: round trip gave %v (err=%v)", in, again, err)
		}
	}

	d, err := ParseISODate("2025-03-04T10:00:00Z")
	if err != nil || d.String() != "2025-03-04" {
		t.Fatalf("timestamp prefix: got %v err=%v", d, err)
	}
	if _, err := ParseISODate("04/03/2025"); !errors.Is(err, ErrInvalidDate) {
		t.Fatalf("expected ErrInvalidDate, got %v", err)
	}
}

func TestTransactionValidate(t *testing.T) {
	good := Transaction{
		Date:        NewDate(2025, 1, 1),
		Description: "ok",
		Amount:      Money{Cents: 100},
		Type:        Expense,
	}
	if err := good.Validate(); err != nil {
		t.Fatalf("expected ok, got %v", err)
	}

	bads := []struct {
		name string
		tx   Transaction
		want error
	}{
		{"zero date", Transaction{Amount: Money{Cents: 1}, Type: Income}, ErrInvalidDate},
		{"negative amount", Transaction{Date: NewDate(2025, 1, 1), Amount: Money{Cents: -1}, Type: Income}, ErrInvalidAmount},
		{"amount above maximum", Transaction{Date: NewDate(2025, 1, 1), Amount: Money{Cents: MaxCents + 1}, Type: Income}, ErrInvalidAmount},
		{"bad type", Transaction{Date: NewDate(2025, 1, 1), Type: "transfer"}, ErrInvalidType},
		{"long description", Transaction{Date: NewDate(2025, 1, 1), Type: Income, Description: strings.Repeat("x", 201)}, ErrDescriptionTooLong},
		{"installment out of range", Transaction{Date: NewDate(2025, 1, 1), Type: Income, Schedule: Installment{GroupID: "g", Current: 4, Total: 3}}, ErrInvalidInstallment},
		{"installment without group", Transaction{Date: NewDate(2025, 1, 1), Type: Income, Schedule: Installment{Current: 1, Total: 3}}, ErrInvalidInstallment},
	}
	for _, tc := range bads {
		t.Run(tc.name, func(t *testing.T) {
			if err := tc.tx.Validate(); !errors.Is(err, tc.want) {
				t.Fatalf("expected %v, got %v", tc.want, err)
			}
		})
	}
}

func TestTransactionKind(t *testing.T) {
	if k := (Transaction{}).Kind(); k != KindSingle {
		t.Fatalf("nil schedule should be single, got %s", k)
	}
	if !(Transaction{Schedule: Fixed{}}).IsFixed() {
		t.Fatalf("expected fixed")
	}
	inst, ok := Transaction{Schedule: Installment{GroupID: "g", Current: 2, Total: 3}}.Installment()
	if !ok || inst.Current != 2 {
		t.Fatalf("unexpected installment %+v ok=%v", inst, ok)
	}
}

func TestWithDefaults(t *testing.T) {
	tx := Transaction{Description: "  ", Category: ""}.WithDefaults()
	if tx.Description != DefaultDescription || tx.Category != DefaultCategory {
		t.Fatalf("unexpected defaults: %+v", tx)
	}
	if tx.Kind() != KindSingle {
		t.Fatalf("expected single schedule")
	}
}

func TestTransactionJSON(t *testing.T) {
	t.Run("installment flattens to repetitionInfo", func(t *testing.T) {
		tx := Transaction{
			ID:          "a",
			Date:        NewDate(2025, 2, 10),
			Description: "Sofá",
			Category:    "Compras",
			Amount:      Money{Cents: 15050},
			Type:        Expense,
			Schedule:    Installment{GroupID: "g1", Current: 2, Total: 3},
		}
		b, err := json.Marshal(tx)
		if err != nil {
			t.Fatal(err)
		}
		s := string(b)
		for _, want := range []string{`"date":"2025-02-10"`, `"amount":150.50`, `"repetitionInfo":{"groupId":"g1","current":2,"total":3}`} {
			if !strings.Contains(s, want) {
				t.Fatalf("missing %s in %s", want, s)
			}
		}
		if strings.Contains(s, "isFixed") {
			t.Fatalf("isFixed should be omitted: %s", s)
		}
	})

	t.Run("fixed parses into Fixed", func(t *testing.T) {
		var tx Transaction
		err := json.Unmarshal([]byte(`{"date":"2025-01-31","description":"Aluguel","category":"Moradia","amount":"1200,00","type":"expense","isFixed":true}`), &tx)
		if err != nil {
			t.Fatal(err)
		}
		if !tx.IsFixed() || tx.Amount.Cents != 120000 {
			t.Fatalf("unexpected %+v", tx)
		}
	})

	t.Run("both kinds rejected", func(t *testing.T) {
		var tx Transaction
		err := json.Unmarshal([]byte(`{"date":"2025-01-31","type":"expense","amount":1,"isFixed":true,"repetitionInfo":{"groupId":"g","current":1,"total":2}}`), &tx)
		if !errors.Is(err, ErrConflictingKind) {
			t.Fatalf("expected ErrConflictingKind, got %v", err)
		}
	})
}

func TestStatusText(t *testing.T) {
	cases := []struct {
		s    Schedule
		want string
	}{
		{Single{}, ""},
		{Fixed{}, "Fixa"},
		{Installment{GroupID: "g", Current: 2, Total: 3}, "Repetição 2 de 3"},
	}
	for _, tc := range cases {
		if got := (Transaction{Schedule: tc.s}).StatusText(); got != tc.want {
			t.Fatalf("%T: got %q want %q", tc.s, got, tc.want)
		}
	}
}

func TestCanonicalCategory(t *testing.T) {
	cases := []struct{ in, want string }{
		{"alimentacao", "Alimentação"},
		{"ALIMENTAÇÃO", "Alimentação"},
		{"Alimentaçao ", "Alimentação"},
		{"transprte", "Transporte"},
		{"", DefaultCategory},
		{"Pet", "Pet"},
		{"Viagem ao Japão", "Viagem ao Japão"},
	}
	for _, tc := range cases {
		if got := CanonicalCategory(tc.in); got != tc.want {
			t.Fatalf("CanonicalCategory(%q) = %q, want %q", tc.in, got, tc.want)
		}
	}
}

func TestFold(t *testing.T) {
	if got := Fold("  Descrição "); got != "descricao" {
		t.Fatalf("got %q", got)
	}
}
