// Package services provides business logic and orchestration services.
package services

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"slices"
	"strings"
	"time"

	"github.com/google/uuid"

	"carteira/internal/amqp"
	"carteira/internal/cache"
	"carteira/internal/core"
	"carteira/internal/datasets"
	"carteira/internal/ingest"
	"carteira/internal/recurrence"
	"carteira/internal/summary"
)

const (
	defaultCacheSize = 256
	defaultCacheTTL  = 5 * time.Minute
)

// ChangePublisher announces dataset writes to other processes.
type ChangePublisher interface {
	PublishDatasetChanged(ctx context.Context, msg *amqp.DatasetChangedMessage) error
}

// SaveRequest is the payload of an add or update. A request without ID and
// OriginalID creates a record; Repeat then materializes an installment group.
type SaveRequest struct {
	Transaction core.Transaction
	OriginalID  string
	Repeat      *recurrence.Repeat
}

func (r *SaveRequest) UnmarshalJSON(b []byte) error {
	if err := json.Unmarshal(b, &r.Transaction); err != nil {
		return err
	}
	var extra struct {
		OriginalID string             `json:"originalId"`
		Repeat     *recurrence.Repeat `json:"repeat"`
	}
	if err := json.Unmarshal(b, &extra); err != nil {
		return err
	}
	r.OriginalID, r.Repeat = extra.OriginalID, extra.Repeat
	return nil
}

// DatasetService orchestrates dataset operations across the store, the month
// view cache and AMQP change notifications.
type DatasetService struct {
	repo      datasets.Repository
	publisher ChangePublisher
	views     *cache.LoadingCache[[]recurrence.Visible]
	now       func() time.Time
}

type Option func(*DatasetService)

// WithPublisher enables change notifications. A nil publisher is ignored.
func WithPublisher(p ChangePublisher) Option {
	return func(s *DatasetService) { s.publisher = p }
}

// WithViewCache replaces the default month view cache.
func WithViewCache(c *cache.LoadingCache[[]recurrence.Visible]) Option {
	return func(s *DatasetService) { s.views = c }
}

// WithClock overrides time.Now, for ids and creation stamps.
func WithClock(now func() time.Time) Option {
	return func(s *DatasetService) { s.now = now }
}

func NewDatasetService(repo datasets.Repository, opts ...Option) *DatasetService {
	s := &DatasetService{repo: repo, now: time.Now}
	for _, opt := range opts {
		opt(s)
	}
	if s.views == nil {
		s.views = cache.NewLoadingCache[[]recurrence.Visible](defaultCacheSize, defaultCacheTTL)
	}
	return s
}

// Views exposes the month view cache for cleanup registration and metrics.
func (s *DatasetService) Views() *cache.LoadingCache[[]recurrence.Visible] {
	return s.views
}

// Ping checks the backing store.
func (s *DatasetService) Ping(ctx context.Context) error {
	return s.repo.Ping(ctx)
}

// CreateDataset stores a new empty dataset.
func (s *DatasetService) CreateDataset(ctx context.Context, owner, name string) (core.Dataset, error) {
	ds := s.newDataset(owner, name)
	if err := ds.Validate(); err != nil {
		return core.Dataset{}, err
	}
	if err := s.repo.CreateDataset(ctx, ds, nil); err != nil {
		return core.Dataset{}, fmt.Errorf("create dataset: %w", err)
	}

	slog.InfoContext(ctx, "Dataset created", "dataset_id", ds.ID, "owner", owner)
	s.publish(ctx, ds, amqp.ReasonCreated)
	return ds, nil
}

// ImportDataset ingests rows and stores them as a new dataset in one step.
// Ingestion failures are returned unwrapped so callers can match them.
func (s *DatasetService) ImportDataset(ctx context.Context, owner, name string, rows [][]ingest.Cell) (core.Dataset, ingest.Result, error) {
	ds := s.newDataset(owner, name)
	if err := ds.Validate(); err != nil {
		return core.Dataset{}, ingest.Result{}, err
	}

	res, err := ingest.Ingest(rows, s.now())
	if err != nil {
		return core.Dataset{}, res, err
	}
	if err := s.repo.CreateDataset(ctx, ds, res.Transactions); err != nil {
		return core.Dataset{}, res, fmt.Errorf("create dataset: %w", err)
	}

	slog.InfoContext(ctx, "Dataset imported",
		"dataset_id", ds.ID,
		"owner", owner,
		"imported", len(res.Transactions),
		"skipped", res.Skipped)
	s.publish(ctx, ds, amqp.ReasonImported)
	return ds, res, nil
}

func (s *DatasetService) ListDatasets(ctx context.Context, owner string) ([]core.Dataset, error) {
	list, err := s.repo.ListDatasets(ctx, owner)
	if err != nil {
		return nil, fmt.Errorf("list datasets: %w", err)
	}
	return list, nil
}

// GetDataset returns the dataset when it belongs to owner. Datasets of other
// owners are reported as not found.
func (s *DatasetService) GetDataset(ctx context.Context, owner, id string) (core.Dataset, error) {
	ds, err := s.repo.GetDataset(ctx, id)
	if err != nil {
		return core.Dataset{}, err
	}
	if ds.Owner != owner {
		return core.Dataset{}, fmt.Errorf("dataset %s: %w", id, core.ErrNotFound)
	}
	return ds, nil
}

// Transactions returns every stored record of the dataset.
func (s *DatasetService) Transactions(ctx context.Context, owner, id string) ([]core.Transaction, error) {
	if _, err := s.GetDataset(ctx, owner, id); err != nil {
		return nil, err
	}
	return s.repo.ListTransactions(ctx, id)
}

// MonthView returns the transactions visible in month m, most recent first.
func (s *DatasetService) MonthView(ctx context.Context, owner, id string, m recurrence.Month) ([]recurrence.Visible, error) {
	if _, err := s.GetDataset(ctx, owner, id); err != nil {
		return nil, err
	}
	view, err := s.views.GetOrLoad(viewKey(id, m), func() ([]recurrence.Visible, error) {
		txs, err := s.repo.ListTransactions(ctx, id)
		if err != nil {
			return nil, fmt.Errorf("list transactions: %w", err)
		}
		return recurrence.Expand(txs, m), nil
	})
	if err != nil {
		return nil, err
	}
	return slices.Clone(view), nil
}

// MonthSummary aggregates the month view.
func (s *DatasetService) MonthSummary(ctx context.Context, owner, id string, m recurrence.Month) (core.MonthSummary, error) {
	view, err := s.MonthView(ctx, owner, id, m)
	if err != nil {
		return core.MonthSummary{}, err
	}
	return summary.Summarize(m, view), nil
}

// SaveTransaction adds or updates a record and returns what was stored.
//
// Updates address the stored record behind a visible id, so editing a
// virtual fixed occurrence edits its template. The template keeps its own
// date unless the occurrence is the one in the template's own month. An installment stays in its group when the payload carries no
// schedule, and a record cannot join a group through an update.
func (s *DatasetService) SaveTransaction(ctx context.Context, owner, id string, req SaveRequest) ([]core.Transaction, error) {
	ds, err := s.GetDataset(ctx, owner, id)
	if err != nil {
		return nil, err
	}

	tx := req.Transaction.WithDefaults()
	tx.Category = core.CanonicalCategory(tx.Category)

	var saved []core.Transaction
	if tx.ID == "" && req.OriginalID == "" {
		saved, err = s.create(ctx, id, tx, req.Repeat)
	} else {
		var updated core.Transaction
		updated, err = s.update(ctx, id, tx, req.OriginalID)
		saved = []core.Transaction{updated}
	}
	if err != nil {
		return nil, err
	}

	s.invalidate(id)
	s.publish(ctx, ds, amqp.ReasonTransactionSaved)
	return saved, nil
}

func (s *DatasetService) create(ctx context.Context, datasetID string, tx core.Transaction, repeat *recurrence.Repeat) ([]core.Transaction, error) {
	tx.ID = uuid.NewString()
	if _, ok := tx.Installment(); ok {
		// groups are only created through Repeat
		tx.Schedule = core.Single{}
	}

	txs := []core.Transaction{tx}
	if repeat != nil {
		var err error
		if txs, err = recurrence.Materialize(tx, *repeat); err != nil {
			return nil, err
		}
	}
	for _, t := range txs {
		if err := t.Validate(); err != nil {
			return nil, err
		}
	}

	if err := s.repo.InsertTransactions(ctx, datasetID, txs); err != nil {
		return nil, fmt.Errorf("insert transactions: %w", err)
	}
	slog.InfoContext(ctx, "Transactions added",
		"dataset_id", datasetID,
		"count", len(txs),
		"kind", txs[0].Kind())
	return txs, nil
}

func (s *DatasetService) update(ctx context.Context, datasetID string, tx core.Transaction, originalID string) (core.Transaction, error) {
	storedID := recurrence.ResolveID(tx.ID, originalID)
	existing, err := s.repo.GetTransaction(ctx, datasetID, storedID)
	if err != nil {
		return core.Transaction{}, err
	}

	visibleID := tx.ID
	virtual := storedID != visibleID
	tx.ID = storedID
	if existing.IsFixed() && virtual && !editsStartMonth(visibleID, existing) {
		tx.Date = existing.Date
	}

	stored, wasInstallment := existing.Installment()
	switch incoming, isInstallment := tx.Installment(); {
	case wasInstallment && tx.Kind() == core.KindSingle:
		tx.Schedule = stored
	case isInstallment && (!wasInstallment || incoming != stored):
		return core.Transaction{}, fmt.Errorf("%w: group membership cannot change on update", core.ErrInvalidInstallment)
	}

	if err := tx.Validate(); err != nil {
		return core.Transaction{}, err
	}
	if err := s.repo.UpdateTransaction(ctx, datasetID, tx); err != nil {
		return core.Transaction{}, fmt.Errorf("update transaction: %w", err)
	}

	slog.InfoContext(ctx, "Transaction updated",
		"dataset_id", datasetID,
		"transaction_id", tx.ID,
		"via_occurrence", virtual)
	return tx, nil
}

// DeleteTransaction removes the stored record behind a visible id. Deleting
// an installment also removes every later installment of its group.
func (s *DatasetService) DeleteTransaction(ctx context.Context, owner, id, txID, originalID string) ([]string, error) {
	ds, err := s.GetDataset(ctx, owner, id)
	if err != nil {
		return nil, err
	}

	target, err := s.repo.GetTransaction(ctx, id, recurrence.ResolveID(txID, originalID))
	if err != nil {
		return nil, err
	}

	var members []core.Transaction
	if inst, ok := target.Installment(); ok {
		if members, err = s.repo.ListGroup(ctx, id, inst.GroupID); err != nil {
			return nil, fmt.Errorf("list group: %w", err)
		}
	}
	ids := recurrence.DeletionSet(target, members)

	n, err := s.repo.DeleteTransactions(ctx, id, ids)
	if err != nil {
		return nil, fmt.Errorf("delete transactions: %w", err)
	}

	slog.InfoContext(ctx, "Transactions deleted",
		"dataset_id", id,
		"transaction_id", target.ID,
		"deleted", n)
	s.invalidate(id)
	s.publish(ctx, ds, amqp.ReasonTransactionDeleted)
	return ids, nil
}

// editsStartMonth reports whether visibleID is the occurrence of the fixed
// template in the template's own month.
func editsStartMonth(visibleID string, template core.Transaction) bool {
	m, ok := recurrence.OccurrenceMonth(visibleID)
	return ok && m == recurrence.MonthOf(template.Date.Time)
}

func (s *DatasetService) newDataset(owner, name string) core.Dataset {
	return core.Dataset{
		ID:        uuid.NewString(),
		Name:      strings.TrimSpace(name),
		Owner:     owner,
		CreatedAt: s.now().UTC(),
	}
}

func (s *DatasetService) invalidate(datasetID string) {
	s.views.Invalidate(datasetID + "|")
}

// publish never fails the caller; the write is already stored.
func (s *DatasetService) publish(ctx context.Context, ds core.Dataset, reason string) {
	if s.publisher == nil {
		return
	}
	msg := amqp.NewDatasetChangedMessage(ds.ID, ds.Owner, reason)
	if err := s.publisher.PublishDatasetChanged(ctx, msg); err != nil {
		slog.ErrorContext(ctx, "Failed to publish dataset change",
			"dataset_id", ds.ID,
			"reason", reason,
			"error", err)
	}
}

func viewKey(datasetID string, m recurrence.Month) string {
	return datasetID + "|" + m.String()
}
