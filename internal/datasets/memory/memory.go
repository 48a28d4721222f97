package memory

import (
	"cmp"
	"context"
	"fmt"
	"slices"
	"sync"

	"carteira/internal/core"
)

type entry struct {
	ds  core.Dataset
	txs []core.Transaction
}

// Store keeps datasets in process memory.
type Store struct {
	mu       sync.RWMutex
	datasets map[string]*entry
}

func New() *Store {
	return &Store{datasets: map[string]*entry{}}
}

func (s *Store) CreateDataset(_ context.Context, ds core.Dataset, txs []core.Transaction) error {
	if err := ds.Validate(); err != nil {
		return err
	}
	if err := checkUnique(nil, txs); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.datasets[ds.ID]; ok {
		return fmt.Errorf("dataset %s already exists", ds.ID)
	}
	s.datasets[ds.ID] = &entry{ds: ds, txs: slices.Clone(txs)}
	return nil
}

func (s *Store) GetDataset(_ context.Context, id string) (core.Dataset, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	e, ok := s.datasets[id]
	if !ok {
		return core.Dataset{}, fmt.Errorf("dataset %s: %w", id, core.ErrNotFound)
	}
	return e.ds, nil
}

func (s *Store) ListDatasets(_ context.Context, owner string) ([]core.Dataset, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := []core.Dataset{}
	for _, e := range s.datasets {
		if e.ds.Owner == owner {
			out = append(out, e.ds)
		}
	}
	slices.SortFunc(out, func(a, b core.Dataset) int {
		if c := b.CreatedAt.Compare(a.CreatedAt); c != 0 {
			return c
		}
		return cmp.Compare(a.ID, b.ID)
	})
	return out, nil
}

func (s *Store) ListTransactions(_ context.Context, datasetID string) ([]core.Transaction, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	e, err := s.entry(datasetID)
	if err != nil {
		return nil, err
	}
	return slices.Clone(e.txs), nil
}

func (s *Store) GetTransaction(_ context.Context, datasetID, id string) (core.Transaction, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	e, err := s.entry(datasetID)
	if err != nil {
		return core.Transaction{}, err
	}
	i := index(e.txs, id)
	if i < 0 {
		return core.Transaction{}, fmt.Errorf("transaction %s: %w", id, core.ErrNotFound)
	}
	return e.txs[i], nil
}

func (s *Store) ListGroup(_ context.Context, datasetID, groupID string) ([]core.Transaction, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	e, err := s.entry(datasetID)
	if err != nil {
		return nil, err
	}
	var out []core.Transaction
	for _, tx := range e.txs {
		if inst, ok := tx.Installment(); ok && inst.GroupID == groupID {
			out = append(out, tx)
		}
	}
	return out, nil
}

func (s *Store) InsertTransactions(_ context.Context, datasetID string, txs []core.Transaction) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, err := s.entry(datasetID)
	if err != nil {
		return err
	}
	if err := checkUnique(e.txs, txs); err != nil {
		return err
	}
	e.txs = append(e.txs, txs...)
	return nil
}

func (s *Store) UpdateTransaction(_ context.Context, datasetID string, tx core.Transaction) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, err := s.entry(datasetID)
	if err != nil {
		return err
	}
	i := index(e.txs, tx.ID)
	if i < 0 {
		return fmt.Errorf("transaction %s: %w", tx.ID, core.ErrNotFound)
	}
	e.txs[i] = tx
	return nil
}

func (s *Store) DeleteTransactions(_ context.Context, datasetID string, ids []string) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, err := s.entry(datasetID)
	if err != nil {
		return 0, err
	}
	before := len(e.txs)
	e.txs = slices.DeleteFunc(e.txs, func(tx core.Transaction) bool {
		return slices.Contains(ids, tx.ID)
	})
	return before - len(e.txs), nil
}

func (s *Store) Ping(context.Context) error { return nil }

func (s *Store) Close() error { return nil }

// entry must be called with s.mu held.
func (s *Store) entry(datasetID string) (*entry, error) {
	e, ok := s.datasets[datasetID]
	if !ok {
		return nil, fmt.Errorf("dataset %s: %w", datasetID, core.ErrNotFound)
	}
	return e, nil
}

func index(txs []core.Transaction, id string) int {
	return slices.IndexFunc(txs, func(tx core.Transaction) bool { return tx.ID == id })
}

func checkUnique(existing, added []core.Transaction) error {
	seen := make(map[string]struct{}, len(existing)+len(added))
	for _, tx := range existing {
		seen[tx.ID] = struct{}{}
	}
	for _, tx := range added {
		if _, ok := seen[tx.ID]; ok {
			return fmt.Errorf("%w: %s", core.ErrDuplicateID, tx.ID)
		}
		seen[tx.ID] = struct{}{}
	}
	return nil
}
