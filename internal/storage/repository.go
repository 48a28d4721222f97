package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"

	"carteira/internal/core"
)

// created_at is stored as fixed-width UTC text so it sorts lexically.
const timeLayout = "2006-01-02 15:04:05.000000000"

type SQLiteRepository struct {
	db      *sql.DB
	queries *Queries
}

func NewSQLiteRepository(dbPath string) (*SQLiteRepository, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		return nil, fmt.Errorf("create db directory: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite database: %w", err)
	}

	// one writer at a time; avoids SQLITE_BUSY between pooled connections
	db.SetMaxOpenConns(1)

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	if err := RunMigrations(dbPath); err != nil {
		db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	return &SQLiteRepository{db: db, queries: New(db)}, nil
}

func (r *SQLiteRepository) Close() error {
	if r.db != nil {
		return r.db.Close()
	}
	return nil
}

func (r *SQLiteRepository) Ping(ctx context.Context) error {
	return r.db.PingContext(ctx)
}

func (r *SQLiteRepository) CreateDataset(ctx context.Context, ds core.Dataset, txs []core.Transaction) error {
	if err := ds.Validate(); err != nil {
		return err
	}
	err := r.inTx(ctx, func(q *Queries) error {
		if err := q.CreateDataset(ctx, Dataset{
			ID:        ds.ID,
			Name:      ds.Name,
			Owner:     ds.Owner,
			CreatedAt: ds.CreatedAt.UTC().Format(timeLayout),
		}); err != nil {
			return fmt.Errorf("create dataset: %w", err)
		}
		return insertAll(ctx, q, ds.ID, txs)
	})
	if err != nil {
		return err
	}

	slog.InfoContext(ctx, "Dataset saved to SQLite",
		"dataset_id", ds.ID,
		"owner", ds.Owner,
		"transactions", len(txs))
	return nil
}

func (r *SQLiteRepository) GetDataset(ctx context.Context, id string) (core.Dataset, error) {
	d, err := r.queries.GetDataset(ctx, id)
	if errors.Is(err, sql.ErrNoRows) {
		return core.Dataset{}, fmt.Errorf("dataset %s: %w", id, core.ErrNotFound)
	}
	if err != nil {
		return core.Dataset{}, fmt.Errorf("get dataset: %w", err)
	}
	return toDataset(d)
}

func (r *SQLiteRepository) ListDatasets(ctx context.Context, owner string) ([]core.Dataset, error) {
	rows, err := r.queries.ListDatasetsByOwner(ctx, owner)
	if err != nil {
		return nil, fmt.Errorf("list datasets: %w", err)
	}
	out := make([]core.Dataset, 0, len(rows))
	for _, row := range rows {
		ds, err := toDataset(row)
		if err != nil {
			return nil, err
		}
		out = append(out, ds)
	}
	return out, nil
}

func (r *SQLiteRepository) ListTransactions(ctx context.Context, datasetID string) ([]core.Transaction, error) {
	if _, err := r.GetDataset(ctx, datasetID); err != nil {
		return nil, err
	}
	rows, err := r.queries.ListTransactions(ctx, datasetID)
	if err != nil {
		return nil, fmt.Errorf("list transactions: %w", err)
	}
	return toTransactions(rows)
}

func (r *SQLiteRepository) GetTransaction(ctx context.Context, datasetID, id string) (core.Transaction, error) {
	row, err := r.queries.GetTransaction(ctx, datasetID, id)
	if errors.Is(err, sql.ErrNoRows) {
		return core.Transaction{}, fmt.Errorf("transaction %s: %w", id, core.ErrNotFound)
	}
	if err != nil {
		return core.Transaction{}, fmt.Errorf("get transaction: %w", err)
	}
	return toTransaction(row)
}

func (r *SQLiteRepository) ListGroup(ctx context.Context, datasetID, groupID string) ([]core.Transaction, error) {
	rows, err := r.queries.ListGroup(ctx, datasetID, groupID)
	if err != nil {
		return nil, fmt.Errorf("list group %s: %w", groupID, err)
	}
	return toTransactions(rows)
}

func (r *SQLiteRepository) InsertTransactions(ctx context.Context, datasetID string, txs []core.Transaction) error {
	if _, err := r.GetDataset(ctx, datasetID); err != nil {
		return err
	}
	return r.inTx(ctx, func(q *Queries) error {
		return insertAll(ctx, q, datasetID, txs)
	})
}

func (r *SQLiteRepository) UpdateTransaction(ctx context.Context, datasetID string, tx core.Transaction) error {
	n, err := r.queries.UpdateTransaction(ctx, fromTransaction(datasetID, tx))
	if err != nil {
		return fmt.Errorf("update transaction: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("transaction %s: %w", tx.ID, core.ErrNotFound)
	}
	return nil
}

func (r *SQLiteRepository) DeleteTransactions(ctx context.Context, datasetID string, ids []string) (int, error) {
	var deleted int
	err := r.inTx(ctx, func(q *Queries) error {
		for _, id := range ids {
			n, err := q.DeleteTransaction(ctx, datasetID, id)
			if err != nil {
				return fmt.Errorf("delete transaction %s: %w", id, err)
			}
			deleted += int(n)
		}
		return nil
	})
	if err != nil {
		return 0, err
	}

	slog.InfoContext(ctx, "Transactions deleted from SQLite",
		"dataset_id", datasetID,
		"requested", len(ids),
		"deleted", deleted)
	return deleted, nil
}

func (r *SQLiteRepository) inTx(ctx context.Context, fn func(q *Queries) error) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	if err := fn(r.queries.WithTx(tx)); err != nil {
		_ = tx.Rollback()
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit transaction: %w", err)
	}
	return nil
}

func insertAll(ctx context.Context, q *Queries, datasetID string, txs []core.Transaction) error {
	for _, tx := range txs {
		if err := q.InsertTransaction(ctx, fromTransaction(datasetID, tx)); err != nil {
			if isPrimaryKeyViolation(err) {
				return fmt.Errorf("%w: %s", core.ErrDuplicateID, tx.ID)
			}
			return fmt.Errorf("insert transaction %s: %w", tx.ID, err)
		}
	}
	return nil
}

func isPrimaryKeyViolation(err error) bool {
	var se *sqlite.Error
	if !errors.As(err, &se) {
		return false
	}
	return se.Code() == sqlite3.SQLITE_CONSTRAINT_PRIMARYKEY || se.Code() == sqlite3.SQLITE_CONSTRAINT_UNIQUE
}

func fromTransaction(datasetID string, tx core.Transaction) Transaction {
	return Transaction{
		DatasetID:       datasetID,
		ID:              tx.ID,
		Date:            tx.Date.String(),
		Description:     tx.Description,
		Category:        tx.Category,
		AmountCents:     tx.Amount.Cents,
		Type:            string(tx.Type),
		Card:            tx.Card,
		ScheduleColumns: EncodeSchedule(tx.Schedule),
	}
}

func toTransaction(row Transaction) (core.Transaction, error) {
	date, err := core.ParseISODate(row.Date)
	if err != nil {
		return core.Transaction{}, fmt.Errorf("transaction %s: %w", row.ID, err)
	}
	schedule, err := row.Schedule()
	if err != nil {
		return core.Transaction{}, fmt.Errorf("transaction %s: %w", row.ID, err)
	}
	return core.Transaction{
		ID:          row.ID,
		Date:        date,
		Description: row.Description,
		Category:    row.Category,
		Amount:      core.Money{Cents: row.AmountCents},
		Type:        core.TxType(row.Type),
		Card:        row.Card,
		Schedule:    schedule,
	}, nil
}

func toTransactions(rows []Transaction) ([]core.Transaction, error) {
	out := make([]core.Transaction, 0, len(rows))
	for _, row := range rows {
		tx, err := toTransaction(row)
		if err != nil {
			return nil, err
		}
		out = append(out, tx)
	}
	return out, nil
}

func toDataset(d Dataset) (core.Dataset, error) {
	created, err := time.Parse(timeLayout, d.CreatedAt)
	if err != nil {
		return core.Dataset{}, fmt.Errorf("dataset %s created_at: %w", d.ID, err)
	}
	return core.Dataset{ID: d.ID, Name: d.Name, Owner: d.Owner, CreatedAt: created}, nil
}
