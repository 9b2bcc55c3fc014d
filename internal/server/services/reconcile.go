package services

import (
	"context"
	"fmt"
	"time"

	"github.com/dmitrijs2005/bigdatakeeper/internal/dbx"
	"github.com/dmitrijs2005/bigdatakeeper/internal/logging"
	"github.com/dmitrijs2005/bigdatakeeper/internal/server/repositories/repomanager"
	"github.com/dmitrijs2005/bigdatakeeper/internal/server/storage"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const reconcileBatch = 100

var reconciledTotal = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "bdk_reconcile_intents_total",
	Help: "Stale upload intents processed by the reconciler.",
}, []string{"outcome"}) // outcome: orphan_removed, committed, failed

// ReconcileResult counts what one pass did.
type ReconcileResult struct {
	Checked        int
	ObjectsRemoved int
	IntentsCleared int
}

// Reconciler repairs interrupted uploads. An upload intent older than the
// grace period whose key no file row references points at an orphaned
// object: the object is deleted and the intent dropped. Intents whose key
// did get a row are just dropped.
type Reconciler struct {
	db          dbx.Transactor
	repomanager repomanager.RepositoryManager
	store       storage.ObjectStore
	interval    time.Duration
	grace       time.Duration
	now         func() time.Time
	log         logging.Logger

	cancel context.CancelFunc
	done   chan struct{}
}

func NewReconciler(db dbx.Transactor, m repomanager.RepositoryManager, store storage.ObjectStore,
	interval, grace time.Duration, log logging.Logger) *Reconciler {
	return &Reconciler{
		db:          db,
		repomanager: m,
		store:       store,
		interval:    interval,
		grace:       grace,
		now:         time.Now,
		log:         log.With("module", "reconciler"),
	}
}

// Start runs a pass every interval until ctx ends or Stop is called.
// A non-positive interval disables the loop.
func (r *Reconciler) Start(ctx context.Context) {
	if r.interval <= 0 {
		r.log.Info(ctx, "reconciler disabled")
		return
	}

	ctx, r.cancel = context.WithCancel(ctx)
	r.done = make(chan struct{})

	go func() {
		defer close(r.done)

		r.log.Info(ctx, "reconciler started", "interval", r.interval.String(), "grace", r.grace.String())

		ticker := time.NewTicker(r.interval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				r.log.Info(context.Background(), "reconciler stopped")
				return
			case <-ticker.C:
				res, err := r.RunOnce(ctx)
				if err != nil {
					r.log.Error(ctx, "reconcile pass failed", "error", err)
					continue
				}
				if res.Checked > 0 {
					r.log.Info(ctx, "reconcile pass done",
						"checked", res.Checked, "objects_removed", res.ObjectsRemoved, "intents_cleared", res.IntentsCleared)
				}
			}
		}
	}()
}

// Stop cancels the loop and waits for it to exit.
func (r *Reconciler) Stop() {
	if r.cancel != nil {
		r.cancel()
	}
	if r.done != nil {
		<-r.done
	}
}

// RunOnce processes up to one batch of stale intents.
func (r *Reconciler) RunOnce(ctx context.Context) (*ReconcileResult, error) {
	intents := r.repomanager.Intents(r.db)
	fileRepo := r.repomanager.Files(r.db)

	stale, err := intents.ListOlderThan(ctx, r.now().Add(-r.grace), reconcileBatch)
	if err != nil {
		return nil, fmt.Errorf("error listing upload intents: %w", err)
	}

	res := &ReconcileResult{Checked: len(stale)}
	for _, in := range stale {
		refs, err := fileRepo.CountByStorageKey(ctx, in.StorageKey, "")
		if err != nil {
			reconciledTotal.WithLabelValues("failed").Inc()
			r.log.Warn(ctx, "storage key check failed", "key", in.StorageKey, "error", err)
			continue
		}

		if refs == 0 {
			if err := r.store.Delete(ctx, in.StorageKey); err != nil {
				reconciledTotal.WithLabelValues("failed").Inc()
				r.log.Warn(ctx, "orphan delete failed", "key", in.StorageKey, "error", err)
				continue
			}
			res.ObjectsRemoved++
			reconciledTotal.WithLabelValues("orphan_removed").Inc()
		} else {
			reconciledTotal.WithLabelValues("committed").Inc()
		}

		if err := intents.Delete(ctx, in.ID); err != nil {
			r.log.Warn(ctx, "intent delete failed", "intent_id", in.ID, "error", err)
			continue
		}
		res.IntentsCleared++
	}
	return res, nil
}
