// Package cache is the block cache (component C): a process-wide table
// from block index to materialized typed value, with copy-on-write
// snapshots so a rolled-back transaction restores pre-transaction state,
// and a live-handle counter that gates the GC's Scanning-to-Sweeping
// transition.
//
// The cache stores values as `any` because it is shared across every
// container type simultaneously (a list of strings and a deque of ints
// may be cached side by side); callers recover the concrete type via the
// generic helpers in package block, which is the only place that knows
// both the cache and a value's Codec.
package cache

import (
	"errors"
	"fmt"
)

// ErrActiveHandles is returned by Clear while any handle acquired via
// Acquire/AcquireLazy has not yet been released.
var ErrActiveHandles = errors.New("cache: clear attempted with active handles")

// WriteFunc serializes a cached value back to (payload, refs) for
// write-back on commit.
type WriteFunc func(value any) (payload []byte, refs []uint64, err error)

type entry struct {
	value       any
	write       WriteFunc
	hasSnapshot bool
	snapshot    any
}

// Cache is the shared in-memory index -> value table.
type Cache struct {
	entries     map[uint64]*entry
	dirty       map[uint64]struct{}
	liveHandles int
}

// New returns an empty Cache.
func New() *Cache {
	return &Cache{
		entries: make(map[uint64]*entry),
		dirty:   make(map[uint64]struct{}),
	}
}

// Get returns the cached value for idx, materializing it via load if it
// is not already present.
func (c *Cache) Get(idx uint64, load func() (any, WriteFunc, error)) (any, error) {
	if e, ok := c.entries[idx]; ok {
		return e.value, nil
	}
	v, write, err := load()
	if err != nil {
		return nil, err
	}
	c.entries[idx] = &entry{value: v, write: write}
	return v, nil
}

// Put installs a brand new value at idx (e.g. a freshly allocated block)
// and marks it dirty so it is written back on commit. It overwrites
// whatever entry, if any, previously lived at idx.
func (c *Cache) Put(idx uint64, value any, write WriteFunc) {
	c.entries[idx] = &entry{value: value, write: write}
	c.dirty[idx] = struct{}{}
}

// Update replaces the value at idx, which must already be present
// (materialized via Get or installed via Put). On the first modification
// of idx within the current transaction, the pre-modification value is
// snapshotted so AfterRollback can restore it.
func (c *Cache) Update(idx uint64, value any) error {
	e, ok := c.entries[idx]
	if !ok {
		return fmt.Errorf("cache: update of unmaterialized index %d", idx)
	}
	if _, dirty := c.dirty[idx]; !dirty {
		e.snapshot = e.value
		e.hasSnapshot = true
	}
	e.value = value
	c.dirty[idx] = struct{}{}
	return nil
}

// Peek returns the currently cached value at idx without materializing
// it, reporting whether it was present.
func (c *Cache) Peek(idx uint64) (any, bool) {
	e, ok := c.entries[idx]
	if !ok {
		return nil, false
	}
	return e.value, true
}

// DirtyCount reports how many entries are currently dirty (modified
// since the active transaction began).
func (c *Cache) DirtyCount() int { return len(c.dirty) }

// LiveHandles reports the number of outstanding Handle/LazyHandle
// references. The GC's Scanning finalization step refuses to proceed to
// Sweeping while this is non-zero.
func (c *Cache) LiveHandles() int { return c.liveHandles }

func (c *Cache) acquire() { c.liveHandles++ }
func (c *Cache) release() { c.liveHandles-- }

// --- transaction coherence hooks ---

// AfterBegin is fired when a user transaction starts. It asserts that no
// entry carries an uncommitted modification from a previous transaction,
// which would mean that transaction did not fully commit or roll back.
func (c *Cache) AfterBegin() error {
	if len(c.dirty) != 0 {
		return fmt.Errorf("cache: %d dirty entries present at transaction begin", len(c.dirty))
	}
	return nil
}

// BeforeCommit serializes every dirty entry via its WriteFunc and hands
// the result to write, which is expected to persist it through the block
// manager inside the same backing-store transaction.
func (c *Cache) BeforeCommit(write func(idx uint64, payload []byte, refs []uint64) error) error {
	for idx := range c.dirty {
		e := c.entries[idx]
		payload, refs, err := e.write(e.value)
		if err != nil {
			return fmt.Errorf("cache: serialize entry %d: %w", idx, err)
		}
		if err := write(idx, payload, refs); err != nil {
			return err
		}
	}
	return nil
}

// AfterCommit clears the dirty set and discards snapshots: the
// transaction is durable, there is nothing left to roll back to.
func (c *Cache) AfterCommit() {
	for idx := range c.dirty {
		e := c.entries[idx]
		e.hasSnapshot = false
		e.snapshot = nil
	}
	c.dirty = make(map[uint64]struct{})
}

// AfterRollback restores every dirty entry to its pre-transaction
// snapshot, or removes it entirely if it was created fresh within the
// aborted transaction (it never existed before, so there is nothing to
// restore it to).
func (c *Cache) AfterRollback() {
	for idx := range c.dirty {
		e := c.entries[idx]
		if e.hasSnapshot {
			e.value = e.snapshot
			e.hasSnapshot = false
			e.snapshot = nil
		} else {
			delete(c.entries, idx)
		}
	}
	c.dirty = make(map[uint64]struct{})
}

// Clear drops every cached entry. It fails with ErrActiveHandles if any
// Handle/LazyHandle is currently outstanding.
func (c *Cache) Clear() error {
	if c.liveHandles != 0 {
		return ErrActiveHandles
	}
	c.entries = make(map[uint64]*entry)
	c.dirty = make(map[uint64]struct{})
	return nil
}
