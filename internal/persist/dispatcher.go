// Package persist carries board snapshots from the engine to durable stores
// and change notifiers without ever blocking the engine.
//
// The Dispatcher implements board.Persister. Stores only need the latest
// snapshot, so intermediate snapshots are coalesced; notifiers receive every
// change in commit order. When pending work reaches the sinks is decided by
// the sync strategy:
//
//   - immediate: a background loop flushes after each mutation
//   - batch: the loop flushes every batch interval
//   - on_close: pending work is flushed by Close (or an explicit Flush)
package persist

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/mesh-intelligence/pipeboard/pkg/types"
)

// Store receives the latest board snapshot.
type Store interface {
	Save(ctx context.Context, snap types.Snapshot) error
}

// Notifier receives every committed change, oldest first.
type Notifier interface {
	Notify(ctx context.Context, changes []types.Change) error
}

// Dispatcher queues snapshots and changes and flushes them to its sinks.
type Dispatcher struct {
	stores    []Store
	notifiers []Notifier
	strategy  string
	interval  time.Duration
	timeout   time.Duration
	logger    *zap.Logger

	mu      sync.Mutex // protects latest, changes and closed
	latest  *types.Snapshot
	changes []types.Change
	closed  bool

	flushMu sync.Mutex // serializes flushes so sinks see commit order
	wake    chan struct{}
	stop    chan struct{}
	wg      sync.WaitGroup
	started bool
	once    sync.Once
}

// Option configures a Dispatcher.
type Option func(*Dispatcher)

// WithStore adds a snapshot store.
func WithStore(s Store) Option {
	return func(d *Dispatcher) { d.stores = append(d.stores, s) }
}

// WithNotifier adds a change notifier.
func WithNotifier(n Notifier) Option {
	return func(d *Dispatcher) { d.notifiers = append(d.notifiers, n) }
}

// WithStrategy sets the sync strategy. Unknown strategies fall back to
// immediate; types.Config.Validate rejects them earlier.
func WithStrategy(s string) Option {
	return func(d *Dispatcher) { d.strategy = s }
}

// WithBatchInterval sets the flush period of the batch strategy.
func WithBatchInterval(interval time.Duration) Option {
	return func(d *Dispatcher) { d.interval = interval }
}

// WithFlushTimeout bounds each background flush.
func WithFlushTimeout(timeout time.Duration) Option {
	return func(d *Dispatcher) { d.timeout = timeout }
}

// WithLogger sets the logger used to report sink failures.
func WithLogger(l *zap.Logger) Option {
	return func(d *Dispatcher) { d.logger = l }
}

// NewDispatcher creates a Dispatcher. Call Start to run the background loop
// and Close to flush and stop it.
func NewDispatcher(opts ...Option) *Dispatcher {
	d := &Dispatcher{
		strategy: types.SyncImmediate,
		interval: time.Duration(types.DefaultBatchInterval) * time.Second,
		timeout:  10 * time.Second,
		logger:   zap.NewNop(),
		wake:     make(chan struct{}, 1),
		stop:     make(chan struct{}),
	}
	for _, opt := range opts {
		opt(d)
	}
	switch d.strategy {
	case types.SyncImmediate, types.SyncBatch, types.SyncOnClose:
	default:
		d.strategy = types.SyncImmediate
	}
	if d.interval <= 0 {
		d.interval = time.Duration(types.DefaultBatchInterval) * time.Second
	}
	return d
}

// Persist queues a snapshot. It never blocks on I/O. Snapshots arriving
// after Close are dropped.
func (d *Dispatcher) Persist(snap types.Snapshot) {
	d.mu.Lock()
	if d.closed {
		d.mu.Unlock()
		d.logger.Warn("snapshot dropped after close", zap.Int64("revision", snap.Revision))
		return
	}
	if d.latest == nil || snap.Revision >= d.latest.Revision {
		d.latest = &snap
	}
	if snap.Change != nil {
		d.changes = append(d.changes, *snap.Change)
	}
	d.mu.Unlock()

	if d.strategy == types.SyncImmediate {
		select {
		case d.wake <- struct{}{}:
		default:
		}
	}
}

// Start launches the background loop for the immediate and batch strategies.
// It returns immediately; the loop stops when ctx is done or Close is called.
func (d *Dispatcher) Start(ctx context.Context) {
	if d.strategy == types.SyncOnClose || d.started {
		return
	}
	d.started = true
	d.wg.Add(1)
	go d.loop(ctx)
}

func (d *Dispatcher) loop(ctx context.Context) {
	defer d.wg.Done()

	var tick <-chan time.Time
	if d.strategy == types.SyncBatch {
		ticker := time.NewTicker(d.interval)
		defer ticker.Stop()
		tick = ticker.C
	}
	for {
		select {
		case <-ctx.Done():
			return
		case <-d.stop:
			return
		case <-d.wake:
		case <-tick:
		}
		fctx, cancel := context.WithTimeout(ctx, d.timeout)
		_ = d.Flush(fctx) // failures are logged and retried on the next flush
		cancel()
	}
}

// Pending reports whether a snapshot or change is waiting to be flushed.
func (d *Dispatcher) Pending() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.latest != nil || len(d.changes) > 0
}

// Flush hands pending work to every sink. Work a sink rejected is queued
// again, so a store retries with the newest snapshot and a notifier may see
// a change more than once.
func (d *Dispatcher) Flush(ctx context.Context) error {
	d.flushMu.Lock()
	defer d.flushMu.Unlock()

	d.mu.Lock()
	snap, changes := d.latest, d.changes
	d.latest, d.changes = nil, nil
	d.mu.Unlock()

	var errs []error
	if snap != nil {
		saveFailed := false
		for _, s := range d.stores {
			if err := s.Save(ctx, *snap); err != nil {
				d.logger.Error("store save failed", zap.Int64("revision", snap.Revision), zap.Error(err))
				errs = append(errs, fmt.Errorf("save revision %d: %w", snap.Revision, err))
				saveFailed = true
			}
		}
		if saveFailed {
			d.requeueSnapshot(snap)
		}
	}
	if len(changes) > 0 {
		notifyFailed := false
		for _, n := range d.notifiers {
			if err := n.Notify(ctx, changes); err != nil {
				d.logger.Error("change notify failed", zap.Int("changes", len(changes)), zap.Error(err))
				errs = append(errs, fmt.Errorf("notify %d changes: %w", len(changes), err))
				notifyFailed = true
			}
		}
		if notifyFailed {
			d.requeueChanges(changes)
		}
	}
	if len(errs) == 0 && snap != nil {
		d.logger.Debug("flushed", zap.Int64("revision", snap.Revision), zap.Int("changes", len(changes)))
	}
	return errors.Join(errs...)
}

func (d *Dispatcher) requeueSnapshot(snap *types.Snapshot) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.latest == nil {
		d.latest = snap
	}
}

func (d *Dispatcher) requeueChanges(changes []types.Change) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.changes = append(changes, d.changes...)
}

// Close stops the background loop and flushes whatever is pending. It is
// safe to call more than once; only the first call flushes.
func (d *Dispatcher) Close(ctx context.Context) error {
	var err error
	d.once.Do(func() {
		close(d.stop)
		d.wg.Wait()

		d.mu.Lock()
		d.closed = true
		d.mu.Unlock()

		err = d.Flush(ctx)
	})
	return err
}
