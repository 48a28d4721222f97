package google

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"

	goption "google.golang.org/api/option"
	gsheet "google.golang.org/api/sheets/v4"

	"carteira/internal/core"
	ports "carteira/internal/sheets"
)

// Tab titles are limited to 100 characters by the Sheets API.
const maxTitleRunes = 80

// Header row written above mirrored transactions. The first four columns
// follow the upload format, so a mirrored tab can be imported back.
var mirrorHeader = []any{"Data", "Descrição", "Categoria", "Valor", "Cartão", "Tipo", "Fixa", "Grupo", "Parcela"}

type Client struct {
	svc           *gsheet.Service
	spreadsheetID string
}

// Ensure interface conformance
var (
	_ ports.ValuesReader  = (*Client)(nil)
	_ ports.DatasetMirror = (*Client)(nil)
)

// Credentials selects the service account used to call the API. JSON wins
// over File when both are set.
type Credentials struct {
	JSON string
	File string
}

// New creates a Sheets client. spreadsheetID is the mirror target and may be
// empty for a client that only imports.
func New(ctx context.Context, spreadsheetID string, creds Credentials) (*Client, error) {
	svc, err := newSheetsService(ctx, creds)
	if err != nil {
		return nil, fmt.Errorf("sheets service: %w", err)
	}
	return &Client{svc: svc, spreadsheetID: strings.TrimSpace(spreadsheetID)}, nil
}

func newSheetsService(ctx context.Context, creds Credentials) (*gsheet.Service, error) {
	var credentialsJSON []byte
	switch {
	case strings.TrimSpace(creds.JSON) != "":
		slog.InfoContext(ctx, "Using inline JSON credentials")
		credentialsJSON = []byte(creds.JSON)
	case strings.TrimSpace(creds.File) != "":
		var err error
		credentialsJSON, err = os.ReadFile(creds.File)
		if err != nil {
			return nil, fmt.Errorf("read service account file: %w", err)
		}
		slog.InfoContext(ctx, "Read credentials file", "path", creds.File, "size", len(credentialsJSON))
	default:
		return nil, errors.New("missing service account credentials (set GOOGLE_SERVICE_ACCOUNT_JSON, GOOGLE_SERVICE_ACCOUNT_FILE, or GOOGLE_APPLICATION_CREDENTIALS)")
	}

	service, err := gsheet.NewService(ctx,
		goption.WithCredentialsJSON(credentialsJSON),
		goption.WithScopes(gsheet.SpreadsheetsScope))
	if err != nil {
		return nil, fmt.Errorf("create sheets service: %w", err)
	}
	return service, nil
}

// ReadValues returns the cells of rng unformatted: numbers stay float64 and
// dates arrive as serial numbers, which the ingestor understands.
func (c *Client) ReadValues(ctx context.Context, spreadsheetID, rng string) ([][]any, error) {
	if c.svc == nil {
		return nil, errors.New("sheets service not initialized")
	}
	resp, err := c.svc.Spreadsheets.Values.Get(spreadsheetID, rng).
		ValueRenderOption("UNFORMATTED_VALUE").
		DateTimeRenderOption("SERIAL_NUMBER").
		Context(ctx).Do()
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", rng, err)
	}
	return resp.Values, nil
}

// MirrorDataset replaces the dataset's tab in the mirror spreadsheet with its
// stored transactions, creating the tab on first use.
func (c *Client) MirrorDataset(ctx context.Context, ds core.Dataset, txs []core.Transaction) error {
	if c.svc == nil {
		return errors.New("sheets service not initialized")
	}
	if c.spreadsheetID == "" {
		return errors.New("missing mirror spreadsheet id")
	}

	title := sheetTitle(ds)
	if err := c.ensureSheet(ctx, title); err != nil {
		return err
	}

	all := quoteSheet(title) + "!A:Z"
	if _, err := c.svc.Spreadsheets.Values.Clear(c.spreadsheetID, all, &gsheet.ClearValuesRequest{}).
		Context(ctx).Do(); err != nil {
		return fmt.Errorf("clear %s: %w", all, err)
	}

	vr := &gsheet.ValueRange{Values: mirrorRows(txs)}
	start := quoteSheet(title) + "!A1"
	if _, err := c.svc.Spreadsheets.Values.Update(c.spreadsheetID, start, vr).
		ValueInputOption("USER_ENTERED").Context(ctx).Do(); err != nil {
		return fmt.Errorf("update %s: %w", start, err)
	}

	slog.InfoContext(ctx, "Dataset mirrored",
		"dataset_id", ds.ID,
		"sheet", title,
		"rows", len(txs))
	return nil
}

func (c *Client) ensureSheet(ctx context.Context, title string) error {
	ss, err := c.svc.Spreadsheets.Get(c.spreadsheetID).Fields("sheets.properties.title").Context(ctx).Do()
	if err != nil {
		return fmt.Errorf("get spreadsheet: %w", err)
	}
	for _, sh := range ss.Sheets {
		if sh.Properties != nil && sh.Properties.Title == title {
			return nil
		}
	}

	req := &gsheet.BatchUpdateSpreadsheetRequest{
		Requests: []*gsheet.Request{{
			AddSheet: &gsheet.AddSheetRequest{Properties: &gsheet.SheetProperties{Title: title}},
		}},
	}
	if _, err := c.svc.Spreadsheets.BatchUpdate(c.spreadsheetID, req).Context(ctx).Do(); err != nil {
		return fmt.Errorf("add sheet %q: %w", title, err)
	}
	slog.InfoContext(ctx, "Created mirror sheet", "sheet", title)
	return nil
}

// sheetTitle names the tab after the dataset; the id prefix keeps datasets
// with equal names apart.
func sheetTitle(ds core.Dataset) string {
	name := strings.Map(func(r rune) rune {
		switch r {
		case '[', ']', '*', '?', '/', '\\', ':':
			return ' '
		}
		return r
	}, strings.TrimSpace(ds.Name))
	name = strings.Join(strings.Fields(name), " ")
	if r := []rune(name); len(r) > maxTitleRunes {
		name = string(r[:maxTitleRunes])
	}
	if name == "" {
		name = "Dataset"
	}

	id := ds.ID
	if len(id) > 8 {
		id = id[:8]
	}
	return fmt.Sprintf("%s (%s)", name, id)
}

func quoteSheet(title string) string {
	return "'" + strings.ReplaceAll(title, "'", "''") + "'"
}

// mirrorRows renders the header and one row per stored record, oldest first
// as stored. Amounts are signed so the sheet can sum a column directly.
func mirrorRows(txs []core.Transaction) [][]any {
	rows := make([][]any, 0, len(txs)+1)
	rows = append(rows, mirrorHeader)
	for _, tx := range txs {
		var fixed, group, installment string
		if tx.IsFixed() {
			fixed = "sim"
		}
		if inst, ok := tx.Installment(); ok {
			group = inst.GroupID
			installment = fmt.Sprintf("%d/%d", inst.Current, inst.Total)
		}
		rows = append(rows, []any{
			tx.Date.String(),
			tx.Description,
			tx.Category,
			core.Money{Cents: tx.Signed()}.Float(),
			tx.Card,
			string(tx.Type),
			fixed,
			group,
			installment,
		})
	}
	return rows
}
