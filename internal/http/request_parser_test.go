package http

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"carteira/internal/core"
	"carteira/internal/recurrence"
)

func TestParseMonthParam(t *testing.T) {
	now := time.Date(2025, 3, 15, 10, 0, 0, 0, time.UTC)
	tests := []struct {
		name    string
		query   url.Values
		want    recurrence.Month
		wantErr bool
	}{
		{"explicit month", url.Values{"month": {"2024-12"}}, recurrence.Month{Year: 2024, Month: time.December}, false},
		{"padded", url.Values{"month": {" 2025-01 "}}, recurrence.Month{Year: 2025, Month: time.January}, false},
		{"default is current month", url.Values{}, recurrence.Month{Year: 2025, Month: time.March}, false},
		{"invalid month", url.Values{"month": {"2025-13"}}, recurrence.Month{}, true},
		{"wrong format", url.Values{"month": {"03/2025"}}, recurrence.Month{}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseMonthParam(tt.query, now)
			if tt.wantErr {
				if !errors.Is(err, core.ErrInvalidMonth) {
					t.Fatalf("error = %v, want ErrInvalidMonth", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if got != tt.want {
				t.Errorf("ParseMonthParam() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestCallerID(t *testing.T) {
	tests := []struct {
		name    string
		header  []string
		want    string
		wantErr bool
	}{
		{"header present", []string{"ana@example.com"}, "ana@example.com", false},
		{"padded header", []string{" ana "}, "ana", false},
		{"missing header", nil, "local", false},
		{"blank header", []string{"   "}, "", true},
		{"rejected characters", []string{"ana; drop"}, "", true},
		{"too long", []string{strings.Repeat("a", 65)}, "", true},
		{"repeated header", []string{"ana", "bia"}, "", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/api/datasets", nil)
			for _, v := range tt.header {
				req.Header.Add(HeaderUserID, v)
			}
			got, err := CallerID(req, "local")
			if tt.wantErr {
				if !errors.Is(err, errInvalidUserID) {
					t.Fatalf("error = %v, want errInvalidUserID", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if got != tt.want {
				t.Errorf("CallerID() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestDecodeJSON(t *testing.T) {
	type payload struct {
		Name string `json:"name"`
	}
	tests := []struct {
		name    string
		body    string
		want    string
		wantErr error
	}{
		{"valid", `{"name":"Casa"}`, "Casa", nil},
		{"empty body", ``, "", errEmptyBody},
		{"trailing data", `{"name":"a"} {"name":"b"}`, "", errTrailingData},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(tt.body))
			var p payload
			err := DecodeJSON(httptest.NewRecorder(), req, &p)
			if tt.wantErr != nil {
				if !errors.Is(err, tt.wantErr) {
					t.Fatalf("error = %v, want %v", err, tt.wantErr)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if p.Name != tt.want {
				t.Errorf("Name = %q, want %q", p.Name, tt.want)
			}
		})
	}
}

func TestDecodeJSONTooLarge(t *testing.T) {
	body := `{"name":"` + strings.Repeat("x", maxJSONBody) + `"}`
	req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(body))
	var p struct{ Name string }
	err := DecodeJSON(httptest.NewRecorder(), req, &p)

	var tooLarge *http.MaxBytesError
	if !errors.As(err, &tooLarge) {
		t.Fatalf("error = %v, want *http.MaxBytesError", err)
	}
}

func TestDatasetNameFromFile(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"extrato-janeiro.xlsx", "extrato-janeiro"},
		{"C:\\Users\\ana\\gastos 2025.csv", "gastos 2025"},
		{"/tmp/nested/dados.final.csv", "dados.final"},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			if got := DatasetNameFromFile(tt.in); got != tt.want {
				t.Errorf("DatasetNameFromFile(%q) = %q, want %q", tt.in, got, tt.want)
			}
		})
	}

	if got := DatasetNameFromFile(".xlsx"); !strings.HasPrefix(got, "Importação ") {
		t.Errorf("DatasetNameFromFile(.xlsx) = %q, want generated name", got)
	}
}

func TestSanitizeInput(t *testing.T) {
	if got := sanitizeInput("  Mercado\x00\x07 Extra\t "); got != "Mercado Extra" {
		t.Errorf("sanitizeInput() = %q", got)
	}
}
