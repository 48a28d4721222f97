package storage

import (
	"context"
	"database/sql"
)

type DBTX interface {
	ExecContext(context.Context, string, ...any) (sql.Result, error)
	QueryContext(context.Context, string, ...any) (*sql.Rows, error)
	QueryRowContext(context.Context, string, ...any) *sql.Row
}

func New(db DBTX) *Queries {
	return &Queries{db: db}
}

type Queries struct {
	db DBTX
}

func (q *Queries) WithTx(tx *sql.Tx) *Queries {
	return &Queries{db: tx}
}

type Dataset struct {
	ID        string
	Name      string
	Owner     string
	CreatedAt string
}

type Transaction struct {
	DatasetID   string
	ID          string
	Date        string
	Description string
	Category    string
	AmountCents int64
	Type        string
	Card        string
	ScheduleColumns
}

const createDataset = `-- name: CreateDataset :exec
INSERT INTO datasets (id, name, owner, created_at) VALUES (?, ?, ?, ?)
`

func (q *Queries) CreateDataset(ctx context.Context, arg Dataset) error {
	_, err := q.db.ExecContext(ctx, createDataset, arg.ID, arg.Name, arg.Owner, arg.CreatedAt)
	return err
}

const getDataset = `-- name: GetDataset :one
SELECT id, name, owner, created_at FROM datasets WHERE id = ?
`

func (q *Queries) GetDataset(ctx context.Context, id string) (Dataset, error) {
	var d Dataset
	err := q.db.QueryRowContext(ctx, getDataset, id).Scan(&d.ID, &d.Name, &d.Owner, &d.CreatedAt)
	return d, err
}

const listDatasetsByOwner = `-- name: ListDatasetsByOwner :many
SELECT id, name, owner, created_at FROM datasets WHERE owner = ? ORDER BY created_at DESC, id
`

func (q *Queries) ListDatasetsByOwner(ctx context.Context, owner string) ([]Dataset, error) {
	rows, err := q.db.QueryContext(ctx, listDatasetsByOwner, owner)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var items []Dataset
	for rows.Next() {
		var d Dataset
		if err := rows.Scan(&d.ID, &d.Name, &d.Owner, &d.CreatedAt); err != nil {
			return nil, err
		}
		items = append(items, d)
	}
	return items, rows.Err()
}

const transactionColumns = `dataset_id, id, date, description, category, amount_cents, type, card, kind, group_id, installment_current, installment_total`

const insertTransaction = `-- name: InsertTransaction :exec
INSERT INTO transactions (` + transactionColumns + `) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
`

func (q *Queries) InsertTransaction(ctx context.Context, arg Transaction) error {
	_, err := q.db.ExecContext(ctx, insertTransaction,
		arg.DatasetID, arg.ID, arg.Date, arg.Description, arg.Category, arg.AmountCents,
		arg.Type, arg.Card, arg.Kind, arg.GroupID, arg.Current, arg.Total)
	return err
}

const updateTransaction = `-- name: UpdateTransaction :execrows
UPDATE transactions
SET date = ?, description = ?, category = ?, amount_cents = ?, type = ?, card = ?,
    kind = ?, group_id = ?, installment_current = ?, installment_total = ?
WHERE dataset_id = ? AND id = ?
`

func (q *Queries) UpdateTransaction(ctx context.Context, arg Transaction) (int64, error) {
	res, err := q.db.ExecContext(ctx, updateTransaction,
		arg.Date, arg.Description, arg.Category, arg.AmountCents, arg.Type, arg.Card,
		arg.Kind, arg.GroupID, arg.Current, arg.Total, arg.DatasetID, arg.ID)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

const deleteTransaction = `-- name: DeleteTransaction :execrows
DELETE FROM transactions WHERE dataset_id = ? AND id = ?
`

func (q *Queries) DeleteTransaction(ctx context.Context, datasetID, id string) (int64, error) {
	res, err := q.db.ExecContext(ctx, deleteTransaction, datasetID, id)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

const getTransaction = `-- name: GetTransaction :one
SELECT ` + transactionColumns + ` FROM transactions WHERE dataset_id = ? AND id = ?
`

func (q *Queries) GetTransaction(ctx context.Context, datasetID, id string) (Transaction, error) {
	return scanTransaction(q.db.QueryRowContext(ctx, getTransaction, datasetID, id))
}

const listTransactions = `-- name: ListTransactions :many
SELECT ` + transactionColumns + ` FROM transactions WHERE dataset_id = ? ORDER BY rowid
`

func (q *Queries) ListTransactions(ctx context.Context, datasetID string) ([]Transaction, error) {
	return q.queryTransactions(ctx, listTransactions, datasetID)
}

const listGroup = `-- name: ListGroup :many
SELECT ` + transactionColumns + ` FROM transactions WHERE dataset_id = ? AND group_id = ? ORDER BY installment_current
`

func (q *Queries) ListGroup(ctx context.Context, datasetID, groupID string) ([]Transaction, error) {
	return q.queryTransactions(ctx, listGroup, datasetID, groupID)
}

func (q *Queries) queryTransactions(ctx context.Context, query string, args ...any) ([]Transaction, error) {
	rows, err := q.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var items []Transaction
	for rows.Next() {
		t, err := scanTransaction(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, t)
	}
	return items, rows.Err()
}

type scanner interface {
	Scan(dest ...any) error
}

func scanTransaction(s scanner) (Transaction, error) {
	var t Transaction
	err := s.Scan(&t.DatasetID, &t.ID, &t.Date, &t.Description, &t.Category, &t.AmountCents,
		&t.Type, &t.Card, &t.Kind, &t.GroupID, &t.Current, &t.Total)
	return t, err
}
