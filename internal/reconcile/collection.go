package reconcile

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/reggaepotato22/krugerr-brendt/internal/domain"
	"github.com/reggaepotato22/krugerr-brendt/internal/localstore"
	"github.com/reggaepotato22/krugerr-brendt/internal/metrics"
	"github.com/reggaepotato22/krugerr-brendt/internal/remote"
)

var ErrNotFound = errors.New("record not found")

// Destination says where a mutation was made durable.
type Destination string

const (
	WrittenRemote Destination = "remote"
	WrittenLocal  Destination = "local"
	// WrittenMemory means the remote store owns the record but rejected the
	// change; it lives in memory until the next load.
	WrittenMemory Destination = "memory"
)

// Written describes the outcome of a mutation. RemoteErr is the remote
// failure that caused a fallback, if any.
type Written struct {
	ID          string      `json:"id"`
	Destination Destination `json:"destination"`
	RemoteErr   error       `json:"-"`
}

// Confirmed reports whether the authoritative store accepted the write.
func (w Written) Confirmed() bool { return w.Destination == WrittenRemote }

const defaultTimeout = 5 * time.Second

type Options[T any] struct {
	// Remote is the authoritative store; nil means local and seed only.
	Remote remote.Store[T]
	Seed   []T
	// SkipRemoteDelete keeps deletes in memory and local storage only.
	SkipRemoteDelete bool
	// Timeout bounds each remote call. Zero means five seconds.
	Timeout time.Duration
}

// Collection is the reconciled list for one record type. All methods are
// safe for concurrent use. Remote calls run outside the lock, so a load
// finishing after a mutation may replace it with older data.
type Collection[T domain.Record[T]] struct {
	name   string
	key    string
	local  *localstore.Store
	opts   Options[T]
	logger *slog.Logger

	mu    sync.RWMutex
	items []T

	lmu       sync.Mutex
	nextID    int
	listeners map[int]func([]T)
}

// New returns an empty collection; call Load to populate it.
func New[T domain.Record[T]](name, key string, local *localstore.Store, opts Options[T], logger *slog.Logger) *Collection[T] {
	if opts.Timeout <= 0 {
		opts.Timeout = defaultTimeout
	}
	return &Collection[T]{
		name:      name,
		key:       key,
		local:     local,
		opts:      opts,
		logger:    logger.With("collection", name),
		listeners: make(map[int]func([]T)),
	}
}

func (c *Collection[T]) Name() string { return c.name }

// Load rebuilds the list from all sources. A failing remote leaves the list
// as local plus seed records; only a local store failure is returned, and
// then the current list is kept.
func (c *Collection[T]) Load(ctx context.Context) error {
	var remoteRecs []T
	if c.opts.Remote != nil {
		rctx, cancel := context.WithTimeout(ctx, c.opts.Timeout)
		recs, err := c.opts.Remote.List(rctx)
		cancel()
		if err != nil {
			c.remoteFailed("list", err)
		} else {
			remoteRecs = recs
		}
	}

	localRecs, err := c.readLocal(ctx)
	if err != nil {
		return err
	}

	merged := Merge(remoteRecs, localRecs, c.seed())

	c.mu.Lock()
	c.items = merged
	snapshot := c.snapshotLocked()
	c.mu.Unlock()

	metrics.CollectionSize.WithLabelValues(c.name).Set(float64(len(snapshot)))
	c.emit(snapshot)
	return nil
}

// Create tries the remote store first and falls back to a locally persisted
// record with a generated id. The returned record is already in the list.
func (c *Collection[T]) Create(ctx context.Context, rec T) (T, Written, error) {
	var remoteErr error
	if c.opts.Remote != nil {
		rctx, cancel := context.WithTimeout(ctx, c.opts.Timeout)
		created, err := c.opts.Remote.Insert(rctx, rec)
		cancel()
		if err == nil {
			c.mu.Lock()
			c.items = prepend(c.items, created)
			snapshot := c.snapshotLocked()
			c.mu.Unlock()

			metrics.Writes.WithLabelValues(c.name, string(WrittenRemote)).Inc()
			c.emit(snapshot)
			return created, Written{ID: created.RecordMeta().ID, Destination: WrittenRemote}, nil
		}
		c.remoteFailed("insert", err)
		remoteErr = err
	}

	created := rec.WithMeta(domain.Meta{}.Stamped(uuid.NewString(), domain.ProvenanceLocal))

	c.mu.Lock()
	c.items = prepend(c.items, created)
	err := c.persistLocked(ctx)
	snapshot := c.snapshotLocked()
	c.mu.Unlock()

	c.emit(snapshot)
	if err != nil {
		return created, Written{}, err
	}

	metrics.Writes.WithLabelValues(c.name, string(WrittenLocal)).Inc()
	return created, Written{ID: created.RecordMeta().ID, Destination: WrittenLocal, RemoteErr: remoteErr}, nil
}

// Update replaces the record with rec's id, routing by the stored record's
// provenance. Editing a seed record turns it into a local override with the
// same id.
func (c *Collection[T]) Update(ctx context.Context, rec T) (Written, error) {
	id := rec.RecordMeta().ID
	existing, ok := c.Get(id)
	if !ok {
		return Written{}, fmt.Errorf("%s %s: %w", c.name, id, ErrNotFound)
	}

	var (
		written Written
		updated T
	)
	switch existing.RecordMeta().Provenance {
	case domain.ProvenanceRemote:
		updated = rec.WithMeta(existing.RecordMeta())
		written = Written{ID: id, Destination: WrittenRemote}
		if c.opts.Remote == nil {
			written.Destination = WrittenMemory
			break
		}
		rctx, cancel := context.WithTimeout(ctx, c.opts.Timeout)
		err := c.opts.Remote.Update(rctx, updated)
		cancel()
		if err != nil {
			c.remoteFailed("update", err)
			written.Destination = WrittenMemory
			written.RemoteErr = err
		}
	default:
		updated = rec.WithMeta(domain.Meta{}.Stamped(id, domain.ProvenanceLocal))
		written = Written{ID: id, Destination: WrittenLocal}
	}

	c.mu.Lock()
	if i := c.indexLocked(id); i >= 0 {
		c.items[i] = updated
	}
	err := c.persistLocked(ctx)
	snapshot := c.snapshotLocked()
	c.mu.Unlock()

	c.emit(snapshot)
	if err != nil {
		return Written{}, err
	}
	return written, nil
}

// Delete removes the record from the list and the local store. Remote
// records are also deleted remotely unless SkipRemoteDelete is set; a remote
// failure is logged and the record stays gone from the list until the next
// load. Seed records come back on the next load.
func (c *Collection[T]) Delete(ctx context.Context, id string) error {
	existing, ok := c.Get(id)
	if !ok {
		return fmt.Errorf("%s %s: %w", c.name, id, ErrNotFound)
	}

	if existing.RecordMeta().Provenance == domain.ProvenanceRemote && c.opts.Remote != nil && !c.opts.SkipRemoteDelete {
		rctx, cancel := context.WithTimeout(ctx, c.opts.Timeout)
		err := c.opts.Remote.Delete(rctx, id)
		cancel()
		if err != nil {
			c.remoteFailed("delete", err)
		}
	}

	c.mu.Lock()
	if i := c.indexLocked(id); i >= 0 {
		c.items = append(c.items[:i:i], c.items[i+1:]...)
	}
	err := c.persistLocked(ctx)
	snapshot := c.snapshotLocked()
	c.mu.Unlock()

	c.emit(snapshot)
	return err
}

// Items returns a copy of the current list.
func (c *Collection[T]) Items() []T {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.snapshotLocked()
}

func (c *Collection[T]) Get(id string) (T, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if i := c.indexLocked(id); i >= 0 {
		return c.items[i], true
	}
	var zero T
	return zero, false
}

// OnChange registers fn to receive the list after every load or mutation.
// fn runs on the mutating goroutine and must not block.
func (c *Collection[T]) OnChange(fn func([]T)) (unsubscribe func()) {
	c.lmu.Lock()
	id := c.nextID
	c.nextID++
	c.listeners[id] = fn
	c.lmu.Unlock()

	return func() {
		c.lmu.Lock()
		delete(c.listeners, id)
		c.lmu.Unlock()
	}
}

// Watch reloads the collection whenever another local store handle writes
// this collection's key.
func (c *Collection[T]) Watch() (stop func(), err error) {
	return c.local.Watch(c.key, func() {
		ctx, cancel := context.WithTimeout(context.Background(), 2*c.opts.Timeout)
		defer cancel()
		if err := c.Load(ctx); err != nil {
			c.logger.Error("failed to reload after local store change", "error", err)
		}
	})
}

func (c *Collection[T]) readLocal(ctx context.Context) ([]T, error) {
	var recs []T
	if _, err := c.local.Get(ctx, c.key, &recs); err != nil {
		return nil, fmt.Errorf("failed to load local %s: %w", c.name, err)
	}
	for i, r := range recs {
		recs[i] = r.WithMeta(domain.Meta{}.Stamped(r.RecordMeta().ID, domain.ProvenanceLocal))
	}
	return recs, nil
}

func (c *Collection[T]) seed() []T {
	out := make([]T, len(c.opts.Seed))
	for i, r := range c.opts.Seed {
		out[i] = r.WithMeta(domain.Meta{}.Stamped(r.RecordMeta().ID, domain.ProvenanceSeed))
	}
	return out
}

// persistLocked rewrites the local store with the local records. Callers
// hold c.mu so concurrent mutations cannot write older subsets last.
func (c *Collection[T]) persistLocked(ctx context.Context) error {
	subset := make([]T, 0)
	for _, r := range c.items {
		if r.RecordMeta().Provenance == domain.ProvenanceLocal {
			subset = append(subset, r)
		}
	}
	if err := c.local.Set(ctx, c.key, subset); err != nil {
		return fmt.Errorf("failed to persist local %s: %w", c.name, err)
	}
	return nil
}

func (c *Collection[T]) indexLocked(id string) int {
	for i, r := range c.items {
		if r.RecordMeta().ID == id {
			return i
		}
	}
	return -1
}

func (c *Collection[T]) snapshotLocked() []T {
	return append([]T(nil), c.items...)
}

func (c *Collection[T]) emit(items []T) {
	c.lmu.Lock()
	fns := make([]func([]T), 0, len(c.listeners))
	for _, fn := range c.listeners {
		fns = append(fns, fn)
	}
	c.lmu.Unlock()

	for _, fn := range fns {
		fn(items)
	}
}

func (c *Collection[T]) remoteFailed(op string, err error) {
	metrics.RemoteFailures.WithLabelValues(c.name, op).Inc()
	c.logger.Warn("remote store call failed, using local state", "op", op, "error", err)
}

func prepend[T any](items []T, rec T) []T {
	out := make([]T, 0, len(items)+1)
	out = append(out, rec)
	return append(out, items...)
}
