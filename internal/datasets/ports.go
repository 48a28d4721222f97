package datasets

import (
	"context"

	"carteira/internal/core"
)

// Ports for the dataset stores. Lookups of unknown ids return an error
// wrapping core.ErrNotFound.
type (
	DatasetWriter interface {
		// CreateDataset stores ds together with its initial transactions in one step.
		CreateDataset(ctx context.Context, ds core.Dataset, txs []core.Transaction) error
	}

	DatasetReader interface {
		GetDataset(ctx context.Context, id string) (core.Dataset, error)
		// ListDatasets returns the owner's datasets, newest first.
		ListDatasets(ctx context.Context, owner string) ([]core.Dataset, error)
	}

	// TransactionStore is per-record CRUD keyed by (dataset id, transaction id).
	TransactionStore interface {
		// ListTransactions returns every stored record of the dataset in insertion order.
		ListTransactions(ctx context.Context, datasetID string) ([]core.Transaction, error)
		GetTransaction(ctx context.Context, datasetID, id string) (core.Transaction, error)
		// ListGroup returns the members of one installment group.
		ListGroup(ctx context.Context, datasetID, groupID string) ([]core.Transaction, error)
		// InsertTransactions adds all records or none. A clashing id fails with core.ErrDuplicateID.
		InsertTransactions(ctx context.Context, datasetID string, txs []core.Transaction) error
		UpdateTransaction(ctx context.Context, datasetID string, tx core.Transaction) error
		// DeleteTransactions removes the listed ids and reports how many existed.
		DeleteTransactions(ctx context.Context, datasetID string, ids []string) (int, error)
	}

	Repository interface {
		DatasetWriter
		DatasetReader
		TransactionStore
		Ping(ctx context.Context) error
		Close() error
	}
)
