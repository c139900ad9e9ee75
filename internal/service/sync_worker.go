package service

import (
	"context"
	"time"

	"go.uber.org/zap"
)

// DefaultSyncInterval is used when the worker is given no interval
const DefaultSyncInterval = time.Minute

// Resyncer retries failed saves and reports what is still unsaved
type Resyncer interface {
	Resync(ctx context.Context) error
}

// Notifier is told when storage falls behind and when it catches up
type Notifier interface {
	PersistFailed(err error)
	PersistRecovered()
}

// SyncWorker periodically retries saves that failed, so a storage outage
// does not lose changes made while it lasted.
type SyncWorker struct {
	ctx      context.Context
	cancel   context.CancelFunc
	interval time.Duration
	target   Resyncer
	notifier Notifier
	log      *zap.Logger

	failing bool
}

// NewSyncWorker creates a worker retrying target every interval
func NewSyncWorker(target Resyncer, interval time.Duration, log *zap.Logger) *SyncWorker {
	if interval <= 0 {
		interval = DefaultSyncInterval
	}
	if log == nil {
		log = zap.NewNop()
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &SyncWorker{
		ctx:      ctx,
		cancel:   cancel,
		interval: interval,
		target:   target,
		log:      log,
	}
}

// SetNotifier sets who hears about outages and recoveries
func (w *SyncWorker) SetNotifier(n Notifier) {
	w.notifier = n
}

// Start runs one check, then keeps checking in the background until Stop
func (w *SyncWorker) Start() {
	w.log.Debug("sync_worker_started", zap.Duration("interval", w.interval))

	w.check()

	ticker := time.NewTicker(w.interval)
	go func() {
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				w.check()
			case <-w.ctx.Done():
				w.log.Debug("sync_worker_stopped")
				return
			}
		}
	}()
}

// Stop stops the background worker
func (w *SyncWorker) Stop() {
	w.cancel()
}

// check retries once and notifies on a change between in sync and failing
func (w *SyncWorker) check() {
	err := w.target.Resync(w.ctx)
	switch {
	case err != nil && !w.failing:
		w.failing = true
		w.log.Warn("sync_worker_behind", zap.Error(err))
		if w.notifier != nil {
			w.notifier.PersistFailed(err)
		}
	case err != nil:
		w.log.Debug("sync_worker_still_behind", zap.Error(err))
	case w.failing:
		w.failing = false
		w.log.Info("sync_worker_recovered")
		if w.notifier != nil {
			w.notifier.PersistRecovered()
		}
	}
}
