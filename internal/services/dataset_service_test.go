package services

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"carteira/internal/amqp"
	"carteira/internal/core"
	"carteira/internal/datasets/memory"
	"carteira/internal/ingest"
	"carteira/internal/recurrence"
)

type fakePublisher struct {
	mu   sync.Mutex
	msgs []*amqp.DatasetChangedMessage
	err  error
}

func (f *fakePublisher) PublishDatasetChanged(_ context.Context, msg *amqp.DatasetChangedMessage) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.msgs = append(f.msgs, msg)
	return f.err
}

func (f *fakePublisher) reasons() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]string, len(f.msgs))
	for i, m := range f.msgs {
		out[i] = m.Reason
	}
	return out
}

var fixedNow = time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)

func newTestService(t *testing.T) (*DatasetService, *fakePublisher) {
	t.Helper()
	pub := &fakePublisher{}
	svc := NewDatasetService(memory.New(),
		WithPublisher(pub),
		WithClock(func() time.Time { return fixedNow }))
	return svc, pub
}

func month(t *testing.T, s string) recurrence.Month {
	t.Helper()
	m, err := recurrence.ParseMonth(s)
	require.NoError(t, err)
	return m
}

func expense(date core.Date, cents int64) core.Transaction {
	return core.Transaction{
		Date:        date,
		Description: "Mercado",
		Category:    "alimentacao",
		Amount:      core.Money{Cents: cents},
		Type:        core.Expense,
	}
}

func TestDatasetService_CreateAndGet(t *testing.T) {
	ctx := context.Background()
	svc, pub := newTestService(t)

	ds, err := svc.CreateDataset(ctx, "ana", "  Casa  ")
	require.NoError(t, err)
	require.Equal(t, "Casa", ds.Name)
	require.Equal(t, fixedNow, ds.CreatedAt)
	require.Equal(t, []string{amqp.ReasonCreated}, pub.reasons())

	got, err := svc.GetDataset(ctx, "ana", ds.ID)
	require.NoError(t, err)
	require.Equal(t, ds.ID, got.ID)

	_, err = svc.GetDataset(ctx, "bruno", ds.ID)
	require.ErrorIs(t, err, core.ErrNotFound)

	list, err := svc.ListDatasets(ctx, "bruno")
	require.NoError(t, err)
	require.Empty(t, list)

	_, err = svc.CreateDataset(ctx, "ana", "   ")
	require.ErrorIs(t, err, core.ErrEmptyName)
}

func TestDatasetService_ImportDataset(t *testing.T) {
	ctx := context.Background()
	svc, pub := newTestService(t)

	rows := [][]ingest.Cell{
		{ingest.TextCell("Data"), ingest.TextCell("Descrição"), ingest.TextCell("Categoria"), ingest.TextCell("Valor")},
		{ingest.TextCell("10/02/2025"), ingest.TextCell("Salário"), ingest.TextCell("Salário"), ingest.TextCell("5000")},
		{ingest.TextCell("12/02/2025"), ingest.TextCell("Feira"), ingest.TextCell("alimentacao"), ingest.TextCell("-80,50")},
		{ingest.TextCell("???"), ingest.TextCell("x"), ingest.TextCell("y"), ingest.TextCell("1")},
	}

	ds, res, err := svc.ImportDataset(ctx, "ana", "Fevereiro", rows)
	require.NoError(t, err)
	require.Len(t, res.Transactions, 2)
	require.Equal(t, 1, res.Skipped)
	require.Equal(t, []string{amqp.ReasonImported}, pub.reasons())

	sum, err := svc.MonthSummary(ctx, "ana", ds.ID, month(t, "2025-02"))
	require.NoError(t, err)
	require.Equal(t, int64(500000), sum.Income.Cents)
	require.Equal(t, int64(8050), sum.Expense.Cents)
	require.Equal(t, 2, sum.Count)

	t.Run("nothing stored on failure", func(t *testing.T) {
		_, _, err := svc.ImportDataset(ctx, "carla", "Vazio", rows[:1])
		require.ErrorIs(t, err, ingest.ErrEmptySheet)

		list, err := svc.ListDatasets(ctx, "carla")
		require.NoError(t, err)
		require.Empty(t, list)
	})
}

func TestDatasetService_SaveSingle(t *testing.T) {
	ctx := context.Background()
	svc, pub := newTestService(t)
	ds, err := svc.CreateDataset(ctx, "ana", "Casa")
	require.NoError(t, err)

	saved, err := svc.SaveTransaction(ctx, "ana", ds.ID, SaveRequest{
		Transaction: core.Transaction{
			Date:   core.NewDate(2025, 3, 4),
			Amount: core.Money{Cents: 1990},
			Type:   core.Expense,
		},
	})
	require.NoError(t, err)
	require.Len(t, saved, 1)
	require.NotEmpty(t, saved[0].ID)
	require.Equal(t, core.DefaultDescription, saved[0].Description)
	require.Equal(t, core.DefaultCategory, saved[0].Category)
	require.Equal(t, core.KindSingle, saved[0].Kind())
	require.Equal(t, []string{amqp.ReasonCreated, amqp.ReasonTransactionSaved}, pub.reasons())

	_, err = svc.SaveTransaction(ctx, "ana", ds.ID, SaveRequest{
		Transaction: core.Transaction{Date: core.NewDate(2025, 3, 4), Type: "gift"},
	})
	require.ErrorIs(t, err, core.ErrInvalidType)

	_, err = svc.SaveTransaction(ctx, "bruno", ds.ID, SaveRequest{Transaction: saved[0]})
	require.ErrorIs(t, err, core.ErrNotFound)
}

func TestDatasetService_SaveRepeated(t *testing.T) {
	ctx := context.Background()
	svc, _ := newTestService(t)
	ds, err := svc.CreateDataset(ctx, "ana", "Casa")
	require.NoError(t, err)

	saved, err := svc.SaveTransaction(ctx, "ana", ds.ID, SaveRequest{
		Transaction: expense(core.NewDate(2025, 1, 31), 10000),
		Repeat:      &recurrence.Repeat{Times: 3, Unit: core.Monthly},
	})
	require.NoError(t, err)
	require.Len(t, saved, 3)

	dates := []string{"2025-01-31", "2025-02-28", "2025-03-31"}
	for i, tx := range saved {
		inst, ok := tx.Installment()
		require.True(t, ok)
		require.Equal(t, i+1, inst.Current)
		require.Equal(t, 3, inst.Total)
		require.Equal(t, dates[i], tx.Date.String())
		require.Equal(t, "Alimentação", tx.Category)
	}

	view, err := svc.MonthView(ctx, "ana", ds.ID, month(t, "2025-02"))
	require.NoError(t, err)
	require.Len(t, view, 1)
	require.Equal(t, "Repetição 2 de 3", view[0].Status)

	fixed := expense(core.NewDate(2025, 1, 5), 100)
	fixed.Schedule = core.Fixed{}
	_, err = svc.SaveTransaction(ctx, "ana", ds.ID, SaveRequest{
		Transaction: fixed,
		Repeat:      &recurrence.Repeat{Times: 2, Unit: core.Monthly},
	})
	require.ErrorIs(t, err, core.ErrConflictingKind)
}

func TestDatasetService_EditFixedOccurrence(t *testing.T) {
	ctx := context.Background()
	svc, _ := newTestService(t)
	ds, err := svc.CreateDataset(ctx, "ana", "Casa")
	require.NoError(t, err)

	rent := expense(core.NewDate(2025, 1, 15), 150000)
	rent.Description = "Aluguel"
	rent.Schedule = core.Fixed{}
	saved, err := svc.SaveTransaction(ctx, "ana", ds.ID, SaveRequest{Transaction: rent})
	require.NoError(t, err)
	tplID := saved[0].ID

	march := month(t, "2025-03")
	view, err := svc.MonthView(ctx, "ana", ds.ID, march)
	require.NoError(t, err)
	require.Len(t, view, 1)
	occ := view[0]
	require.Equal(t, tplID+"@2025-03", occ.ID)
	require.Equal(t, "2025-03-15", occ.Date.String())

	edit := occ.Transaction
	edit.Amount = core.Money{Cents: 160000}
	_, err = svc.SaveTransaction(ctx, "ana", ds.ID, SaveRequest{Transaction: edit, OriginalID: occ.OriginalID})
	require.NoError(t, err)

	stored, err := svc.Transactions(ctx, "ana", ds.ID)
	require.NoError(t, err)
	require.Len(t, stored, 1)
	require.Equal(t, tplID, stored[0].ID)
	require.Equal(t, "2025-01-15", stored[0].Date.String())
	require.Equal(t, int64(160000), stored[0].Amount.Cents)
	require.True(t, stored[0].IsFixed())

	// the cached March view must reflect the edit
	view, err = svc.MonthView(ctx, "ana", ds.ID, march)
	require.NoError(t, err)
	require.Equal(t, int64(160000), view[0].Amount.Cents)

	ids, err := svc.DeleteTransaction(ctx, "ana", ds.ID, occ.ID, "")
	require.NoError(t, err)
	require.Equal(t, []string{tplID}, ids)

	view, err = svc.MonthView(ctx, "ana", ds.ID, march)
	require.NoError(t, err)
	require.Empty(t, view)
}

func TestDatasetService_EditFixedInStartMonthMovesTemplate(t *testing.T) {
	ctx := context.Background()
	svc, _ := newTestService(t)
	ds, err := svc.CreateDataset(ctx, "ana", "Casa")
	require.NoError(t, err)

	rent := expense(core.NewDate(2025, 1, 15), 150000)
	rent.Schedule = core.Fixed{}
	saved, err := svc.SaveTransaction(ctx, "ana", ds.ID, SaveRequest{Transaction: rent})
	require.NoError(t, err)
	tplID := saved[0].ID

	view, err := svc.MonthView(ctx, "ana", ds.ID, month(t, "2025-01"))
	require.NoError(t, err)
	require.Len(t, view, 1)
	occ := view[0]
	require.Equal(t, tplID+"@2025-01", occ.ID)

	edit := occ.Transaction
	edit.Date = core.NewDate(2025, 1, 5)
	updated, err := svc.SaveTransaction(ctx, "ana", ds.ID, SaveRequest{Transaction: edit, OriginalID: occ.OriginalID})
	require.NoError(t, err)
	require.Equal(t, tplID, updated[0].ID)
	require.Equal(t, "2025-01-05", updated[0].Date.String())

	view, err = svc.MonthView(ctx, "ana", ds.ID, month(t, "2025-04"))
	require.NoError(t, err)
	require.Equal(t, "2025-04-05", view[0].Date.String())

	// a later occurrence still cannot move the template
	edit = view[0].Transaction
	edit.Date = core.NewDate(2025, 4, 20)
	updated, err = svc.SaveTransaction(ctx, "ana", ds.ID, SaveRequest{Transaction: edit, OriginalID: view[0].OriginalID})
	require.NoError(t, err)
	require.Equal(t, "2025-01-05", updated[0].Date.String())
}

func TestDatasetService_UpdateInstallment(t *testing.T) {
	ctx := context.Background()
	svc, _ := newTestService(t)
	ds, err := svc.CreateDataset(ctx, "ana", "Casa")
	require.NoError(t, err)

	saved, err := svc.SaveTransaction(ctx, "ana", ds.ID, SaveRequest{
		Transaction: expense(core.NewDate(2025, 1, 10), 3000),
		Repeat:      &recurrence.Repeat{Times: 2, Unit: core.Monthly},
	})
	require.NoError(t, err)

	t.Run("plain payload keeps the group", func(t *testing.T) {
		edit := saved[1]
		edit.Schedule = core.Single{}
		edit.Description = "Curso"
		got, err := svc.SaveTransaction(ctx, "ana", ds.ID, SaveRequest{Transaction: edit})
		require.NoError(t, err)
		inst, ok := got[0].Installment()
		require.True(t, ok)
		require.Equal(t, 2, inst.Current)
		require.Equal(t, "Curso", got[0].Description)
	})

	t.Run("cannot move between groups", func(t *testing.T) {
		edit := saved[0]
		edit.Schedule = core.Installment{GroupID: "other", Current: 1, Total: 2}
		_, err := svc.SaveTransaction(ctx, "ana", ds.ID, SaveRequest{Transaction: edit})
		require.ErrorIs(t, err, core.ErrInvalidInstallment)
	})

	t.Run("unknown id", func(t *testing.T) {
		edit := saved[0]
		edit.ID = "missing"
		_, err := svc.SaveTransaction(ctx, "ana", ds.ID, SaveRequest{Transaction: edit})
		require.ErrorIs(t, err, core.ErrNotFound)
	})
}

func TestDatasetService_DeleteInstallments(t *testing.T) {
	ctx := context.Background()
	svc, pub := newTestService(t)
	ds, err := svc.CreateDataset(ctx, "ana", "Casa")
	require.NoError(t, err)

	saved, err := svc.SaveTransaction(ctx, "ana", ds.ID, SaveRequest{
		Transaction: expense(core.NewDate(2025, 1, 10), 3000),
		Repeat:      &recurrence.Repeat{Times: 4, Unit: core.Weekly},
	})
	require.NoError(t, err)

	ids, err := svc.DeleteTransaction(ctx, "ana", ds.ID, saved[1].ID, "")
	require.NoError(t, err)
	require.ElementsMatch(t, []string{saved[1].ID, saved[2].ID, saved[3].ID}, ids)

	stored, err := svc.Transactions(ctx, "ana", ds.ID)
	require.NoError(t, err)
	require.Len(t, stored, 1)
	require.Equal(t, saved[0].ID, stored[0].ID)
	require.Contains(t, pub.reasons(), amqp.ReasonTransactionDeleted)

	_, err = svc.DeleteTransaction(ctx, "ana", ds.ID, "missing", "")
	require.ErrorIs(t, err, core.ErrNotFound)
}

func TestDatasetService_PublishFailureDoesNotFailWrite(t *testing.T) {
	ctx := context.Background()
	svc, pub := newTestService(t)
	pub.err = errors.New("broker down")

	ds, err := svc.CreateDataset(ctx, "ana", "Casa")
	require.NoError(t, err)

	_, err = svc.SaveTransaction(ctx, "ana", ds.ID, SaveRequest{
		Transaction: expense(core.NewDate(2025, 3, 1), 500),
	})
	require.NoError(t, err)
	require.Len(t, pub.reasons(), 2)
}

func TestDatasetService_WithoutPublisher(t *testing.T) {
	svc := NewDatasetService(memory.New())
	_, err := svc.CreateDataset(context.Background(), "ana", "Casa")
	require.NoError(t, err)
	require.NoError(t, svc.Ping(context.Background()))
}

func TestDatasetService_ViewCache(t *testing.T) {
	ctx := context.Background()
	svc, _ := newTestService(t)
	ds, err := svc.CreateDataset(ctx, "ana", "Casa")
	require.NoError(t, err)

	m := month(t, "2025-03")
	for i := 0; i < 3; i++ {
		_, err := svc.MonthView(ctx, "ana", ds.ID, m)
		require.NoError(t, err)
	}
	hits, misses := svc.Views().Stats()
	require.Equal(t, int64(2), hits)
	require.Equal(t, int64(1), misses)

	_, err = svc.SaveTransaction(ctx, "ana", ds.ID, SaveRequest{
		Transaction: expense(core.NewDate(2025, 3, 2), 700),
	})
	require.NoError(t, err)

	view, err := svc.MonthView(ctx, "ana", ds.ID, m)
	require.NoError(t, err)
	require.Len(t, view, 1)
	_, misses = svc.Views().Stats()
	require.Equal(t, int64(2), misses)
}

func TestSaveRequest_UnmarshalJSON(t *testing.T) {
	body := `{"id":"t1@2025-03","originalId":"t1","date":"2025-03-15","description":"Aluguel",
		"category":"Moradia","amount":1500,"type":"expense","isFixed":true,
		"repeat":{"times":2,"unit":"monthly"}}`

	var req SaveRequest
	require.NoError(t, json.Unmarshal([]byte(body), &req))
	require.Equal(t, "t1@2025-03", req.Transaction.ID)
	require.Equal(t, "t1", req.OriginalID)
	require.True(t, req.Transaction.IsFixed())
	require.Equal(t, int64(150000), req.Transaction.Amount.Cents)
	require.NotNil(t, req.Repeat)
	require.Equal(t, 2, req.Repeat.Times)
	require.Equal(t, core.Monthly, req.Repeat.Unit)

	var bad SaveRequest
	err := json.Unmarshal([]byte(`{"isFixed":true,"repetitionInfo":{"groupId":"g","current":1,"total":2}}`), &bad)
	require.ErrorIs(t, err, core.ErrConflictingKind)
}

// pausingRepo holds one ListTransactions call after it has read the store.
type pausingRepo struct {
	*memory.Store
	armed   atomic.Bool
	entered chan struct{}
	release chan struct{}
}

func (r *pausingRepo) ListTransactions(ctx context.Context, datasetID string) ([]core.Transaction, error) {
	txs, err := r.Store.ListTransactions(ctx, datasetID)
	if r.armed.CompareAndSwap(true, false) {
		close(r.entered)
		<-r.release
	}
	return txs, err
}

func TestDatasetService_MonthViewAfterWriteIsFresh(t *testing.T) {
	ctx := context.Background()
	repo := &pausingRepo{Store: memory.New(), entered: make(chan struct{}), release: make(chan struct{})}
	svc := NewDatasetService(repo, WithClock(func() time.Time { return fixedNow }))
	mar := month(t, "2025-03")

	ds, err := svc.CreateDataset(ctx, "ana", "Casa")
	require.NoError(t, err)

	repo.armed.Store(true)
	done := make(chan []recurrence.Visible, 1)
	go func() {
		view, _ := svc.MonthView(ctx, "ana", ds.ID, mar)
		done <- view
	}()
	<-repo.entered

	_, err = svc.SaveTransaction(ctx, "ana", ds.ID, SaveRequest{Transaction: expense(core.NewDate(2025, 3, 10), 500)})
	require.NoError(t, err)

	view, err := svc.MonthView(ctx, "ana", ds.ID, mar)
	require.NoError(t, err)
	require.Len(t, view, 1)

	close(repo.release)
	require.Empty(t, <-done)

	view, err = svc.MonthView(ctx, "ana", ds.ID, mar)
	require.NoError(t, err)
	require.Len(t, view, 1)
}
