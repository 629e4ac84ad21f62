// Package reconcile merges normalized import batches into the tender store.
package reconcile

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sync"

	"tenderdesk/api/internal/ingest"
	"tenderdesk/api/internal/store"
)

// tenderStore is the slice of the store the reconciler needs.
type tenderStore interface {
	GetTender(ctx context.Context, key string) (store.TenderRecord, error)
	InsertTender(ctx context.Context, item store.TenderRecord) error
	UpdateTenderFields(ctx context.Context, key string, fields map[string]any) (bool, error)
	UpdateTenderStatus(ctx context.Context, key, status string) (bool, error)
}

// Report is what one reconciliation pass tells the caller. A pass over a
// sheet with no recognizable key column reports zero counts with
// MissingKeyColumn set, so the caller can tell "nothing matched" apart from
// "the sheet was empty".
type Report struct {
	Inserted         int
	Updated          int
	Skipped          int
	MissingKeyColumn bool
}

type Reconciler struct {
	store tenderStore

	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

func New(s tenderStore) *Reconciler {
	return &Reconciler{store: s, locks: make(map[string]*sync.Mutex)}
}

// keyLock serializes writers of one key. A reconciliation pass racing a
// manual edit or a status transition on the same key must not interleave.
func (r *Reconciler) keyLock(key string) *sync.Mutex {
	r.mu.Lock()
	defer r.mu.Unlock()
	lock, ok := r.locks[key]
	if !ok {
		lock = &sync.Mutex{}
		r.locks[key] = lock
	}
	return lock
}

// Reconcile upserts every row of the batch, keyed on the business key.
// Unknown keys insert a fresh record with defined defaults for fields the
// row does not carry; known keys get exactly the carried fields overwritten
// and nothing else. Rerunning an unchanged batch yields pure updates.
func (r *Reconciler) Reconcile(ctx context.Context, batch ingest.Batch) (Report, error) {
	report := Report{Skipped: batch.SkippedCount, MissingKeyColumn: batch.MissingKeyColumn}
	if batch.MissingKeyColumn {
		return report, nil
	}

	for _, row := range batch.Rows {
		inserted, err := r.reconcileRow(ctx, row)
		if err != nil {
			return report, fmt.Errorf("reconcile %s: %w", row.Key, err)
		}
		if inserted {
			report.Inserted++
		} else {
			report.Updated++
		}
	}
	return report, nil
}

func (r *Reconciler) reconcileRow(ctx context.Context, row ingest.NormalizedRow) (bool, error) {
	lock := r.keyLock(row.Key)
	lock.Lock()
	defer lock.Unlock()

	_, err := r.store.GetTender(ctx, row.Key)
	if errors.Is(err, sql.ErrNoRows) {
		if err := r.store.InsertTender(ctx, store.NewTenderRecord(row.Key, row.Fields)); err != nil {
			return false, err
		}
		return true, nil
	}
	if err != nil {
		return false, err
	}

	if _, err := r.store.UpdateTenderFields(ctx, row.Key, row.Fields); err != nil {
		return false, err
	}
	return false, nil
}

// ApplyEdit routes a manual field edit through the same per-key lock the
// import path takes, so disjoint field subsets never clobber each other.
func (r *Reconciler) ApplyEdit(ctx context.Context, key string, fields map[string]any) (bool, error) {
	lock := r.keyLock(key)
	lock.Lock()
	defer lock.Unlock()
	return r.store.UpdateTenderFields(ctx, key, fields)
}

// ApplyStatus routes a status transition through the per-key lock, so a
// transition never interleaves with a reconciliation or edit of the same key.
func (r *Reconciler) ApplyStatus(ctx context.Context, key, status string) (bool, error) {
	lock := r.keyLock(key)
	lock.Lock()
	defer lock.Unlock()
	return r.store.UpdateTenderStatus(ctx, key, status)
}
