package sheets

import (
	"context"

	"carteira/internal/core"
)

// Ports for outbound adapters.
type (
	// ValuesReader returns the raw cell matrix of a range, numbers and date
	// serials left unformatted.
	ValuesReader interface {
		ReadValues(ctx context.Context, spreadsheetID, rng string) ([][]any, error)
	}

	// DatasetMirror overwrites the copy of a dataset kept outside the store.
	DatasetMirror interface {
		MirrorDataset(ctx context.Context, ds core.Dataset, txs []core.Transaction) error
	}
)
