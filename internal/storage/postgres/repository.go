// Package postgres stores datasets in PostgreSQL through a pgx connection pool.
package postgres

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"carteira/internal/core"
	"carteira/internal/storage"
)

const uniqueViolation = "23505"

const transactionColumns = `id, date, description, category, amount, type, card, kind, group_id, installment_current, installment_total`

type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository migrates the database at url and opens a pool on it.
func NewRepository(ctx context.Context, url string) (*Repository, error) {
	if err := RunMigrations(url); err != nil {
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	pool, err := pgxpool.New(ctx, url)
	if err != nil {
		return nil, fmt.Errorf("create pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}
	return &Repository{pool: pool}, nil
}

func (r *Repository) Close() error {
	r.pool.Close()
	return nil
}

func (r *Repository) Ping(ctx context.Context) error {
	return r.pool.Ping(ctx)
}

func (r *Repository) CreateDataset(ctx context.Context, ds core.Dataset, txs []core.Transaction) error {
	if err := ds.Validate(); err != nil {
		return err
	}
	err := pgx.BeginFunc(ctx, r.pool, func(tx pgx.Tx) error {
		_, err := tx.Exec(ctx,
			`INSERT INTO datasets (id, name, owner, created_at) VALUES ($1, $2, $3, $4)`,
			ds.ID, ds.Name, ds.Owner, ds.CreatedAt.UTC())
		if err != nil {
			return fmt.Errorf("create dataset: %w", err)
		}
		return insertAll(ctx, tx, ds.ID, txs)
	})
	if err != nil {
		return err
	}

	slog.InfoContext(ctx, "Dataset saved to Postgres",
		"dataset_id", ds.ID,
		"owner", ds.Owner,
		"transactions", len(txs))
	return nil
}

func (r *Repository) GetDataset(ctx context.Context, id string) (core.Dataset, error) {
	var ds core.Dataset
	err := r.pool.QueryRow(ctx,
		`SELECT id, name, owner, created_at FROM datasets WHERE id = $1`, id,
	).Scan(&ds.ID, &ds.Name, &ds.Owner, &ds.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return core.Dataset{}, fmt.Errorf("dataset %s: %w", id, core.ErrNotFound)
	}
	if err != nil {
		return core.Dataset{}, fmt.Errorf("get dataset: %w", err)
	}
	ds.CreatedAt = ds.CreatedAt.UTC()
	return ds, nil
}

func (r *Repository) ListDatasets(ctx context.Context, owner string) ([]core.Dataset, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT id, name, owner, created_at FROM datasets WHERE owner = $1 ORDER BY created_at DESC, id`, owner)
	if err != nil {
		return nil, fmt.Errorf("list datasets: %w", err)
	}
	out, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (core.Dataset, error) {
		var ds core.Dataset
		err := row.Scan(&ds.ID, &ds.Name, &ds.Owner, &ds.CreatedAt)
		ds.CreatedAt = ds.CreatedAt.UTC()
		return ds, err
	})
	if err != nil {
		return nil, fmt.Errorf("list datasets: %w", err)
	}
	return out, nil
}

func (r *Repository) ListTransactions(ctx context.Context, datasetID string) ([]core.Transaction, error) {
	if _, err := r.GetDataset(ctx, datasetID); err != nil {
		return nil, err
	}
	return r.queryTransactions(ctx,
		`SELECT `+transactionColumns+` FROM transactions WHERE dataset_id = $1 ORDER BY seq`, datasetID)
}

func (r *Repository) GetTransaction(ctx context.Context, datasetID, id string) (core.Transaction, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT `+transactionColumns+` FROM transactions WHERE dataset_id = $1 AND id = $2`, datasetID, id)
	if err != nil {
		return core.Transaction{}, fmt.Errorf("get transaction: %w", err)
	}
	tx, err := pgx.CollectExactlyOneRow(rows, scanTransaction)
	if errors.Is(err, pgx.ErrNoRows) {
		return core.Transaction{}, fmt.Errorf("transaction %s: %w", id, core.ErrNotFound)
	}
	if err != nil {
		return core.Transaction{}, fmt.Errorf("get transaction: %w", err)
	}
	return tx, nil
}

func (r *Repository) ListGroup(ctx context.Context, datasetID, groupID string) ([]core.Transaction, error) {
	return r.queryTransactions(ctx,
		`SELECT `+transactionColumns+` FROM transactions WHERE dataset_id = $1 AND group_id = $2 ORDER BY installment_current`,
		datasetID, groupID)
}

func (r *Repository) InsertTransactions(ctx context.Context, datasetID string, txs []core.Transaction) error {
	if _, err := r.GetDataset(ctx, datasetID); err != nil {
		return err
	}
	return pgx.BeginFunc(ctx, r.pool, func(tx pgx.Tx) error {
		return insertAll(ctx, tx, datasetID, txs)
	})
}

func (r *Repository) UpdateTransaction(ctx context.Context, datasetID string, t core.Transaction) error {
	cols := storage.EncodeSchedule(t.Schedule)
	tag, err := r.pool.Exec(ctx, `
		UPDATE transactions
		SET date = $3, description = $4, category = $5, amount = $6, type = $7, card = $8,
		    kind = $9, group_id = $10, installment_current = $11, installment_total = $12
		WHERE dataset_id = $1 AND id = $2`,
		datasetID, t.ID, t.Date.Time, t.Description, t.Category, t.Amount.Decimal(), string(t.Type), t.Card,
		cols.Kind, cols.GroupID, cols.Current, cols.Total)
	if err != nil {
		return fmt.Errorf("update transaction: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("transaction %s: %w", t.ID, core.ErrNotFound)
	}
	return nil
}

func (r *Repository) DeleteTransactions(ctx context.Context, datasetID string, ids []string) (int, error) {
	tag, err := r.pool.Exec(ctx,
		`DELETE FROM transactions WHERE dataset_id = $1 AND id = ANY($2)`, datasetID, ids)
	if err != nil {
		return 0, fmt.Errorf("delete transactions: %w", err)
	}

	slog.InfoContext(ctx, "Transactions deleted from Postgres",
		"dataset_id", datasetID,
		"requested", len(ids),
		"deleted", tag.RowsAffected())
	return int(tag.RowsAffected()), nil
}

func (r *Repository) queryTransactions(ctx context.Context, sql string, args ...any) ([]core.Transaction, error) {
	rows, err := r.pool.Query(ctx, sql, args...)
	if err != nil {
		return nil, fmt.Errorf("query transactions: %w", err)
	}
	out, err := pgx.CollectRows(rows, scanTransaction)
	if err != nil {
		return nil, fmt.Errorf("scan transactions: %w", err)
	}
	return out, nil
}

func insertAll(ctx context.Context, tx pgx.Tx, datasetID string, txs []core.Transaction) error {
	if len(txs) == 0 {
		return nil
	}
	batch := &pgx.Batch{}
	for _, t := range txs {
		cols := storage.EncodeSchedule(t.Schedule)
		batch.Queue(`INSERT INTO transactions (dataset_id, `+transactionColumns+`)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)`,
			datasetID, t.ID, t.Date.Time, t.Description, t.Category, t.Amount.Decimal(), string(t.Type), t.Card,
			cols.Kind, cols.GroupID, cols.Current, cols.Total)
	}

	br := tx.SendBatch(ctx, batch)
	for _, t := range txs {
		if _, err := br.Exec(); err != nil {
			_ = br.Close()
			var pgErr *pgconn.PgError
			if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
				return fmt.Errorf("%w: %s", core.ErrDuplicateID, t.ID)
			}
			return fmt.Errorf("insert transaction %s: %w", t.ID, err)
		}
	}
	return br.Close()
}

func scanTransaction(row pgx.CollectableRow) (core.Transaction, error) {
	var (
		t      core.Transaction
		date   time.Time
		amount decimal.Decimal
		typ    string
		cols   storage.ScheduleColumns
	)
	err := row.Scan(&t.ID, &date, &t.Description, &t.Category, &amount, &typ, &t.Card,
		&cols.Kind, &cols.GroupID, &cols.Current, &cols.Total)
	if err != nil {
		return core.Transaction{}, err
	}
	schedule, err := cols.Schedule()
	if err != nil {
		return core.Transaction{}, fmt.Errorf("transaction %s: %w", t.ID, err)
	}
	t.Date = core.DateOf(date)
	t.Amount = core.MoneyFromDecimal(amount)
	t.Type = core.TxType(typ)
	t.Schedule = schedule
	return t, nil
}
