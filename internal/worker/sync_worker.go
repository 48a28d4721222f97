package worker

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"sync"

	"carteira/internal/amqp"
	"carteira/internal/core"
	"carteira/internal/datasets"
	"carteira/internal/log"
	"carteira/internal/sheets"
)

// SyncWorker mirrors datasets to Google Sheets when they change. Datasets
// whose mirror failed are remembered and retried by RetryFailed.
type SyncWorker struct {
	repo   datasets.Repository
	mirror sheets.DatasetMirror

	mu     sync.Mutex
	failed map[string]string // dataset id -> owner
}

func NewSyncWorker(repo datasets.Repository, mirror sheets.DatasetMirror) *SyncWorker {
	return &SyncWorker{
		repo:   repo,
		mirror: mirror,
		failed: make(map[string]string),
	}
}

// HandleDatasetChanged processes a single change notification from AMQP.
// A dataset that no longer exists is acknowledged without mirroring.
func (w *SyncWorker) HandleDatasetChanged(ctx context.Context, msg *amqp.DatasetChangedMessage) error {
	slog.InfoContext(ctx, "Processing dataset change",
		log.FieldComponent, log.ComponentWorker,
		log.FieldDatasetID, msg.DatasetID,
		log.FieldOwner, msg.Owner,
		"reason", msg.Reason)

	err := w.syncDataset(ctx, msg.DatasetID)
	switch {
	case err == nil:
		w.clearFailed(msg.DatasetID)
		return nil
	case errors.Is(err, core.ErrNotFound):
		slog.WarnContext(ctx, "Changed dataset no longer exists, skipping",
			log.FieldComponent, log.ComponentWorker,
			log.FieldDatasetID, msg.DatasetID)
		w.clearFailed(msg.DatasetID)
		return nil
	default:
		w.markFailed(msg.DatasetID, msg.Owner)
		return fmt.Errorf("sync dataset %s: %w", msg.DatasetID, err)
	}
}

// RetryFailed mirrors again every dataset whose last sync failed. This is a
// backup mechanism for lost messages and Sheets outages.
func (w *SyncWorker) RetryFailed(ctx context.Context) error {
	pending := w.Pending()
	if len(pending) == 0 {
		return nil
	}

	slog.InfoContext(ctx, "Retrying failed dataset mirrors",
		log.FieldComponent, log.ComponentWorker,
		log.FieldCount, len(pending))

	var errs []error
	synced := 0
	for _, id := range pending {
		if err := ctx.Err(); err != nil {
			return err
		}
		err := w.syncDataset(ctx, id)
		if err != nil && !errors.Is(err, core.ErrNotFound) {
			slog.ErrorContext(ctx, "Retry failed",
				log.FieldComponent, log.ComponentWorker,
				log.FieldDatasetID, id,
				log.FieldError, err)
			errs = append(errs, fmt.Errorf("dataset %s: %w", id, err))
			continue
		}
		w.clearFailed(id)
		synced++
	}

	slog.InfoContext(ctx, "Retry completed",
		log.FieldComponent, log.ComponentWorker,
		"total", len(pending),
		"synced", synced,
		"errors", len(errs))
	return errors.Join(errs...)
}

// SyncOwner mirrors every dataset of owner. Used at startup to recover from
// changes made while the worker was down.
func (w *SyncWorker) SyncOwner(ctx context.Context, owner string) error {
	list, err := w.repo.ListDatasets(ctx, owner)
	if err != nil {
		return fmt.Errorf("list datasets: %w", err)
	}
	for _, ds := range list {
		if err := w.syncDataset(ctx, ds.ID); err != nil {
			w.markFailed(ds.ID, ds.Owner)
			slog.ErrorContext(ctx, "Startup sync failed",
				log.FieldComponent, log.ComponentWorker,
				log.FieldDatasetID, ds.ID,
				log.FieldError, err)
		}
	}
	slog.InfoContext(ctx, "Startup sync completed",
		log.FieldComponent, log.ComponentWorker,
		log.FieldOwner, owner,
		log.FieldCount, len(list))
	return nil
}

// Pending returns the ids of datasets waiting for a retry, sorted.
func (w *SyncWorker) Pending() []string {
	w.mu.Lock()
	defer w.mu.Unlock()
	ids := make([]string, 0, len(w.failed))
	for id := range w.failed {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

func (w *SyncWorker) syncDataset(ctx context.Context, id string) error {
	ds, err := w.repo.GetDataset(ctx, id)
	if err != nil {
		return fmt.Errorf("get dataset: %w", err)
	}
	txs, err := w.repo.ListTransactions(ctx, id)
	if err != nil {
		return fmt.Errorf("list transactions: %w", err)
	}
	if err := w.mirror.MirrorDataset(ctx, ds, txs); err != nil {
		return fmt.Errorf("mirror: %w", err)
	}
	slog.InfoContext(ctx, "Dataset synced",
		log.FieldComponent, log.ComponentWorker,
		log.FieldDatasetID, id,
		log.FieldCount, len(txs))
	return nil
}

func (w *SyncWorker) markFailed(id, owner string) {
	w.mu.Lock()
	w.failed[id] = owner
	w.mu.Unlock()
}

func (w *SyncWorker) clearFailed(id string) {
	w.mu.Lock()
	delete(w.failed, id)
	w.mu.Unlock()
}
