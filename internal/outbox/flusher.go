// Package outbox drains the queue of not-yet-remotely-synced mutations.
// Local writes never block on upload latency; the flusher guarantees every
// committed write is eventually stamped SYNCED or parked as a dead letter.
package outbox

import (
	"context"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"github.com/amasampo/mesh/internal/bus"
	"github.com/amasampo/mesh/internal/store"
)

// Uploader pushes one outbox entry to the remote mesh.
type Uploader interface {
	Upload(ctx context.Context, entry store.OutboxEntry) error
}

// Options tunes drain cadence and the retry policy.
type Options struct {
	FlushInterval time.Duration // periodic backstop between drains
	UploadTimeout time.Duration // per-entry upload deadline
	RetryBackoff  time.Duration // base backoff, doubled per attempt
	MaxAttempts   int           // attempts before dead-lettering
}

// DefaultOptions returns the stock cadence: a 15s backstop timer plus
// an eager drain after every enqueue.
func DefaultOptions() Options {
	return Options{
		FlushInterval: 15 * time.Second,
		UploadTimeout: 10 * time.Second,
		RetryBackoff:  2 * time.Second,
		MaxAttempts:   5,
	}
}

// Flusher drains the outbox and stamps uploaded records synced.
type Flusher struct {
	db       *store.DB
	uploader Uploader
	bus      *bus.Bus
	logger   *zap.Logger
	opts     Options
	draining atomic.Bool
	cancel   context.CancelFunc
}

// NewFlusher creates a new outbox flusher.
func NewFlusher(db *store.DB, uploader Uploader, b *bus.Bus, logger *zap.Logger, opts Options) *Flusher {
	if opts.FlushInterval <= 0 {
		opts.FlushInterval = DefaultOptions().FlushInterval
	}
	if opts.UploadTimeout <= 0 {
		opts.UploadTimeout = DefaultOptions().UploadTimeout
	}
	if opts.RetryBackoff <= 0 {
		opts.RetryBackoff = DefaultOptions().RetryBackoff
	}
	if opts.MaxAttempts <= 0 {
		opts.MaxAttempts = DefaultOptions().MaxAttempts
	}
	return &Flusher{
		db:       db,
		uploader: uploader,
		bus:      b,
		logger:   logger,
		opts:     opts,
	}
}

// Start begins draining: eagerly on every enqueue signal and on a periodic
// timer as a reliability backstop.
func (f *Flusher) Start(ctx context.Context) {
	ctx, f.cancel = context.WithCancel(ctx)
	ch, unsub := f.bus.Subscribe(bus.KindOutboxEnqueued, 64)

	// Entries a previous run left in_flight would otherwise be invisible
	// to every future drain.
	if n, err := f.db.RequeueInFlightOutbox(); err != nil {
		f.logger.Error("failed to recover in-flight entries", zap.Error(err))
	} else if n > 0 {
		f.logger.Info("recovered in-flight entries", zap.Int64("count", n))
	}

	go func() {
		defer unsub()
		ticker := time.NewTicker(f.opts.FlushInterval)
		defer ticker.Stop()

		// Clear whatever the previous run left behind before waiting on
		// new work.
		f.Drain(ctx)

		for {
			select {
			case <-ch:
				f.Drain(ctx)
			case <-ticker.C:
				f.Drain(ctx)
			case <-ctx.Done():
				return
			}
		}
	}()
}

// Stop stops the flush loop.
func (f *Flusher) Stop() {
	if f.cancel != nil {
		f.cancel()
	}
}

// Drain processes every entry due right now. A drain already in progress
// makes this call a no-op; entries enqueued mid-drain are picked up by the
// next cycle, not this one.
func (f *Flusher) Drain(ctx context.Context) {
	if !f.draining.CompareAndSwap(false, true) {
		return
	}
	defer f.draining.Store(false)

	snapshot, err := f.db.PendingOutbox(time.Now().UnixMilli())
	if err != nil {
		f.logger.Error("failed to read outbox", zap.Error(err))
		return
	}
	if len(snapshot) == 0 {
		return
	}

	f.publish(bus.KindSyncStarted, len(snapshot))
	f.logger.Info("syncing records", zap.Int("count", len(snapshot)))

	for _, entry := range snapshot {
		if ctx.Err() != nil {
			break
		}
		f.process(ctx, entry)
	}

	f.publish(bus.KindSyncCompleted, len(snapshot))
}

func (f *Flusher) process(ctx context.Context, entry store.OutboxEntry) {
	if err := f.db.MarkOutboxInFlight(entry.ID); err != nil {
		f.logger.Error("failed to mark in flight", zap.Error(err), zap.String("entry_id", entry.ID))
		return
	}

	uploadCtx, cancel := context.WithTimeout(ctx, f.opts.UploadTimeout)
	err := f.uploader.Upload(uploadCtx, entry)
	cancel()

	if err != nil {
		attempts := entry.Attempts + 1
		if attempts >= f.opts.MaxAttempts {
			f.logger.Warn("dead-lettering entry",
				zap.String("entry_id", entry.ID),
				zap.String("collection", entry.Collection),
				zap.Int("attempts", attempts),
				zap.Error(err))
			if dbErr := f.db.MarkOutboxDead(entry.ID, attempts, err.Error()); dbErr != nil {
				f.logger.Error("failed to dead-letter", zap.Error(dbErr), zap.String("entry_id", entry.ID))
			}
			f.publish(bus.KindSyncDeadLetter, entry.ID)
			return
		}
		backoff := f.opts.RetryBackoff << (attempts - 1)
		next := time.Now().Add(backoff).UnixMilli()
		f.logger.Warn("upload failed, requeueing",
			zap.String("entry_id", entry.ID),
			zap.Int("attempts", attempts),
			zap.Duration("backoff", backoff),
			zap.Error(err))
		if dbErr := f.db.RequeueOutbox(entry.ID, attempts, next, err.Error()); dbErr != nil {
			f.logger.Error("failed to requeue", zap.Error(dbErr), zap.String("entry_id", entry.ID))
		}
		return
	}

	// Restamp against the live record, not the snapshot: the record may
	// have changed since enqueue, and restamping SYNCED twice is harmless.
	if entry.Action == store.ActionPut {
		found, err := f.db.MarkRecordSynced(entry.Collection, entry.RecordKey)
		if err != nil {
			f.logger.Error("failed to stamp synced", zap.Error(err),
				zap.String("collection", entry.Collection), zap.String("key", entry.RecordKey))
			return
		}
		if !found {
			f.logger.Debug("record gone before sync ack",
				zap.String("collection", entry.Collection), zap.String("key", entry.RecordKey))
		}
	}

	if err := f.db.DeleteOutbox(entry.ID); err != nil {
		f.logger.Error("failed to delete entry", zap.Error(err), zap.String("entry_id", entry.ID))
	}
}

func (f *Flusher) publish(kind string, payload any) {
	f.bus.Publish(bus.Event{Kind: kind, Timestamp: time.Now(), Payload: payload})
}
