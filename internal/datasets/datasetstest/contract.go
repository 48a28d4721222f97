// Package datasetstest holds the behaviour every datasets.Repository must share.
package datasetstest

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"carteira/internal/core"
	"carteira/internal/datasets"
)

// Run exercises repo against the repository contract. newRepo must return
// an empty repository.
func Run(t *testing.T, newRepo func(t *testing.T) datasets.Repository) {
	t.Run("create and list", func(t *testing.T) { testCreateAndList(t, newRepo(t)) })
	t.Run("transaction crud", func(t *testing.T) { testTransactionCRUD(t, newRepo(t)) })
	t.Run("groups", func(t *testing.T) { testGroups(t, newRepo(t)) })
	t.Run("duplicates", func(t *testing.T) { testDuplicates(t, newRepo(t)) })
	t.Run("not found", func(t *testing.T) { testNotFound(t, newRepo(t)) })
}

// Dataset builds a dataset for the given owner.
func Dataset(id, owner string, created time.Time) core.Dataset {
	return core.Dataset{ID: id, Name: "ds " + id, Owner: owner, CreatedAt: created.UTC().Truncate(time.Second)}
}

// Tx builds a valid transaction.
func Tx(id string, date core.Date, cents int64, s core.Schedule) core.Transaction {
	return core.Transaction{
		ID:          id,
		Date:        date,
		Description: "desc " + id,
		Category:    "Lazer",
		Amount:      core.Money{Cents: cents},
		Type:        core.Expense,
		Card:        "Nubank",
		Schedule:    s,
	}
}

func testCreateAndList(t *testing.T, repo datasets.Repository) {
	ctx := context.Background()
	base := time.Date(2025, 1, 1, 10, 0, 0, 0, time.UTC)

	require.NoError(t, repo.Ping(ctx))
	require.NoError(t, repo.CreateDataset(ctx, Dataset("a", "ana", base), nil))
	require.NoError(t, repo.CreateDataset(ctx, Dataset("b", "ana", base.Add(time.Hour)), []core.Transaction{
		Tx("t1", core.NewDate(2025, 1, 5), 1000, core.Single{}),
		Tx("t2", core.NewDate(2025, 1, 31), 120000, core.Fixed{}),
	}))
	require.NoError(t, repo.CreateDataset(ctx, Dataset("c", "bia", base), nil))

	list, err := repo.ListDatasets(ctx, "ana")
	require.NoError(t, err)
	require.Len(t, list, 2)
	require.Equal(t, "b", list[0].ID)
	require.Equal(t, "a", list[1].ID)

	got, err := repo.GetDataset(ctx, "b")
	require.NoError(t, err)
	require.Equal(t, "ds b", got.Name)
	require.Equal(t, "ana", got.Owner)
	require.True(t, got.CreatedAt.Equal(base.Add(time.Hour)))

	txs, err := repo.ListTransactions(ctx, "b")
	require.NoError(t, err)
	require.Len(t, txs, 2)
	require.Equal(t, "t1", txs[0].ID)
	require.Equal(t, core.KindSingle, txs[0].Kind())
	require.Equal(t, "Nubank", txs[0].Card)
	require.True(t, txs[1].IsFixed())
	require.Equal(t, "2025-01-31", txs[1].Date.String())

	empty, err := repo.ListTransactions(ctx, "a")
	require.NoError(t, err)
	require.Empty(t, empty)

	none, err := repo.ListDatasets(ctx, "nobody")
	require.NoError(t, err)
	require.Empty(t, none)
}

func testTransactionCRUD(t *testing.T, repo datasets.Repository) {
	ctx := context.Background()
	require.NoError(t, repo.CreateDataset(ctx, Dataset("d", "ana", time.Now()), nil))

	tx := Tx("x", core.NewDate(2025, 2, 10), 4590, core.Single{})
	require.NoError(t, repo.InsertTransactions(ctx, "d", []core.Transaction{tx}))

	got, err := repo.GetTransaction(ctx, "d", "x")
	require.NoError(t, err)
	require.Equal(t, int64(4590), got.Amount.Cents)
	require.Equal(t, core.Expense, got.Type)

	tx.Description = "edited"
	tx.Type = core.Income
	tx.Schedule = core.Fixed{}
	require.NoError(t, repo.UpdateTransaction(ctx, "d", tx))
	got, err = repo.GetTransaction(ctx, "d", "x")
	require.NoError(t, err)
	require.Equal(t, "edited", got.Description)
	require.Equal(t, core.Income, got.Type)
	require.True(t, got.IsFixed())

	n, err := repo.DeleteTransactions(ctx, "d", []string{"x", "missing"})
	require.NoError(t, err)
	require.Equal(t, 1, n)

	_, err = repo.GetTransaction(ctx, "d", "x")
	require.ErrorIs(t, err, core.ErrNotFound)
}

func testGroups(t *testing.T, repo datasets.Repository) {
	ctx := context.Background()
	require.NoError(t, repo.CreateDataset(ctx, Dataset("g", "ana", time.Now()), nil))

	var txs []core.Transaction
	for i := 1; i <= 3; i++ {
		txs = append(txs, Tx(string(rune('a'+i)), core.NewDate(2025, i, 10), 100,
			core.Installment{GroupID: "grp", Current: i, Total: 3}))
	}
	txs = append(txs, Tx("other", core.NewDate(2025, 1, 1), 100,
		core.Installment{GroupID: "grp2", Current: 1, Total: 2}))
	require.NoError(t, repo.InsertTransactions(ctx, "g", txs))

	group, err := repo.ListGroup(ctx, "g", "grp")
	require.NoError(t, err)
	require.Len(t, group, 3)
	for i, m := range group {
		inst, ok := m.Installment()
		require.True(t, ok)
		require.Equal(t, core.Installment{GroupID: "grp", Current: i + 1, Total: 3}, inst)
	}
}

func testDuplicates(t *testing.T, repo datasets.Repository) {
	ctx := context.Background()
	require.NoError(t, repo.CreateDataset(ctx, Dataset("u", "ana", time.Now()), []core.Transaction{
		Tx("one", core.NewDate(2025, 1, 1), 1, core.Single{}),
	}))

	err := repo.InsertTransactions(ctx, "u", []core.Transaction{
		Tx("two", core.NewDate(2025, 1, 2), 1, core.Single{}),
		Tx("one", core.NewDate(2025, 1, 3), 1, core.Single{}),
	})
	require.ErrorIs(t, err, core.ErrDuplicateID)

	txs, err := repo.ListTransactions(ctx, "u")
	require.NoError(t, err)
	require.Len(t, txs, 1, "a failed batch must not be partially applied")
}

func testNotFound(t *testing.T, repo datasets.Repository) {
	ctx := context.Background()

	_, err := repo.GetDataset(ctx, "nope")
	require.ErrorIs(t, err, core.ErrNotFound)

	require.NoError(t, repo.CreateDataset(ctx, Dataset("n", "ana", time.Now()), nil))
	_, err = repo.GetTransaction(ctx, "n", "nope")
	require.ErrorIs(t, err, core.ErrNotFound)

	err = repo.UpdateTransaction(ctx, "n", Tx("nope", core.NewDate(2025, 1, 1), 1, core.Single{}))
	require.ErrorIs(t, err, core.ErrNotFound)
}
