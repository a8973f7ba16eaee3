// Package block is the block manager (component B): it allocates block
// indices, reads and writes block payloads and reference lists, drives
// the incremental tricolor mark-and-sweep GC, and presents the single
// user-facing transaction primitive everything else in this store builds
// on.
package block

import (
	"context"
	"fmt"

	"github.com/hchenqi/blockstore/internal/cache"
	"github.com/hchenqi/blockstore/internal/storage"
	"github.com/rs/zerolog"
)

// PayloadLimit is the hard cap on a block's serialized payload.
const PayloadLimit = 4096

// Tuning knobs for the GC state machine and the allocator batch size.
// Unexported: these are not part of the public surface and callers cannot
// change them.
const (
	scanBatchSize    = 64
	scanStepDepth    = 8
	scanChangesLimit = 512
	sweepBatchSize   = 256
	allocBatchSize   = 32
)

type allocEntry struct {
	id  uint64
	gen int
}

// Manager is the block store's single entry point. The zero value is not
// open; call Open before any other method.
type Manager struct {
	store *storage.Store
	cache *cache.Cache
	log   zerolog.Logger

	root Ref

	tx    storage.Querier // active transaction querier, nil outside Transaction
	depth int
	gen   int // bumped at the start of every outer Transaction

	meta  storage.Metadata // in-memory mirror, valid only while tx != nil
	alloc []allocEntry

	cycleID string // correlation id for the GC cycle in progress, "" when Idle
}

// Options configures Open.
type Options struct {
	Log zerolog.Logger
}

// New returns an unopened Manager.
func New(opts Options) *Manager {
	return &Manager{log: opts.Log}
}

// Open opens path (creating it, with a fresh root block, if it does not
// exist) and prepares the manager for use. A second call while the
// Manager is open returns ErrAlreadyOpen.
func (m *Manager) Open(ctx context.Context, path string) error {
	if m.store != nil {
		return ErrAlreadyOpen
	}
	store, err := storage.Open(ctx, path, storage.Options{Log: m.log})
	if err != nil {
		return err
	}

	meta, exists, err := store.ReadMetadata(ctx, store.DB())
	if err != nil {
		store.Close()
		return err
	}
	if !exists {
		tx, err := store.BeginTx(ctx)
		if err != nil {
			store.Close()
			return err
		}
		rootID, err := store.InsertEmptyObject(ctx, tx, false)
		if err != nil {
			tx.Rollback()
			store.Close()
			return err
		}
		meta = storage.Metadata{
			SchemaVersion: storage.SchemaVersion,
			Root:          rootID,
			Mark:          false,
			Phase:         storage.PhaseIdle,
			BlockCount:    1,
		}
		if err := store.WriteMetadata(ctx, tx, meta); err != nil {
			tx.Rollback()
			store.Close()
			return err
		}
		if err := tx.Commit(); err != nil {
			store.Close()
			return fmt.Errorf("block: create fresh root: %w", err)
		}
	} else if meta.SchemaVersion != storage.SchemaVersion {
		store.Close()
		return fmt.Errorf("%w: file has version %d, this build expects %d",
			ErrUnsupportedSchema, meta.SchemaVersion, storage.SchemaVersion)
	}

	m.store = store
	m.cache = cache.New()
	m.root = Ref(meta.Root)
	m.log.Debug().Uint64("root", meta.Root).Msg("block manager opened")
	return nil
}

// Close releases the underlying backing store.
func (m *Manager) Close() error {
	if m.store == nil {
		return ErrFileNotOpen
	}
	err := m.store.Close()
	m.store = nil
	return err
}

// Root returns the persistent root block reference.
func (m *Manager) Root() Ref {
	return m.root
}

// Cache exposes the manager's block cache to the container packages,
// which read and write through it directly by index rather than through
// a pinned Handle: iterators hold an index, not an owning cache reference.
func (m *Manager) Cache() *cache.Cache { return m.cache }

// querier returns whatever Querier the caller should use right now: the
// active transaction if one is open, or the bare database connection
// otherwise (only valid for read-only use — see Open's single-connection
// note in package storage).
func (m *Manager) querier() storage.Querier {
	if m.tx != nil {
		return m.tx
	}
	return m.store.DB()
}

// GCInfo returns the GC state machine's current phase and counters.
func (m *Manager) GCInfo(ctx context.Context) (GCInfo, error) {
	if m.store == nil {
		return GCInfo{}, ErrFileNotOpen
	}
	meta, _, err := m.store.ReadMetadata(ctx, m.querier())
	if err != nil {
		return GCInfo{}, err
	}
	info := gcInfoFromMetadata(meta)
	info.CycleID = m.cycleID
	return info, nil
}

// Transaction runs f inside a single backing-store transaction, BEGINning
// before and COMMITting after normal completion, or ROLLing BACK and
// propagating f's error. Re-entrant calls are flattened: an inner call
// runs f directly with no nested BEGIN/COMMIT, and only the outermost
// scope commits.
func (m *Manager) Transaction(f func() error) error {
	if m.store == nil {
		return ErrFileNotOpen
	}
	if m.depth > 0 {
		m.depth++
		defer func() { m.depth-- }()
		return f()
	}

	ctx := context.Background()
	tx, err := m.store.BeginTx(ctx)
	if err != nil {
		return err
	}
	m.depth = 1
	m.gen++
	gen := m.gen
	defer func() {
		m.tx = nil
		m.depth = 0
	}()

	meta, _, err := m.store.ReadMetadata(ctx, tx)
	if err != nil {
		tx.Rollback()
		return err
	}
	m.tx = tx
	m.meta = meta

	if err := m.cache.AfterBegin(); err != nil {
		tx.Rollback()
		return err
	}

	if err := f(); err != nil {
		tx.Rollback()
		m.cache.AfterRollback()
		m.discardAllocGen(gen)
		return err
	}

	if err := m.cache.BeforeCommit(func(idx uint64, payload []byte, refs []uint64) error {
		return m.writeRaw(ctx, Ref(idx), payload, refs)
	}); err != nil {
		tx.Rollback()
		m.cache.AfterRollback()
		m.discardAllocGen(gen)
		return err
	}

	if err := tx.Commit(); err != nil {
		m.cache.AfterRollback()
		m.discardAllocGen(gen)
		return fmt.Errorf("block: commit transaction: %w", err)
	}
	m.cache.AfterCommit()
	return nil
}

func (m *Manager) discardAllocGen(gen int) {
	kept := m.alloc[:0]
	for _, e := range m.alloc {
		if e.gen != gen {
			kept = append(kept, e)
		}
	}
	m.alloc = kept
}

// AllocateIndex returns a fresh block index, drawing from a pre-allocated
// in-memory batch and refilling it (at least allocBatchSize rows at a
// time) when empty.
func (m *Manager) AllocateIndex() (Ref, error) {
	if m.store == nil {
		return Invalid, ErrFileNotOpen
	}
	if len(m.alloc) == 0 {
		if err := m.refillAllocator(context.Background()); err != nil {
			return Invalid, err
		}
	}
	e := m.alloc[len(m.alloc)-1]
	m.alloc = m.alloc[:len(m.alloc)-1]
	return Ref(e.id), nil
}

func (m *Manager) refillAllocator(ctx context.Context) error {
	// A single SQLite connection backs this store, so a batch refill
	// requested mid-transaction must reuse the already-open transaction
	// rather than BEGIN a second one (which would deadlock waiting for a
	// connection the pool cannot supply). Outside any transaction it gets
	// its own private one.
	if m.tx != nil {
		return m.refillBatch(ctx, m.tx, m.meta, m.gen)
	}
	tx, err := m.store.BeginTx(ctx)
	if err != nil {
		return err
	}
	meta, _, err := m.store.ReadMetadata(ctx, tx)
	if err != nil {
		tx.Rollback()
		return err
	}
	if err := m.refillBatch(ctx, tx, meta, 0); err != nil {
		tx.Rollback()
		return err
	}
	return tx.Commit()
}

func (m *Manager) refillBatch(ctx context.Context, q storage.Querier, meta storage.Metadata, gen int) error {
	// Allocator color policy: the cycle's color flip happens at the
	// Idle-to-Scanning transition, so meta.Mark is the live color in every
	// phase. Blocks allocated while Sweeping carry it too, so the sweep
	// (which deletes gc != Mark) never treats them as dead.
	mark := meta.Mark
	for i := 0; i < allocBatchSize; i++ {
		id, err := m.store.InsertEmptyObject(ctx, q, mark)
		if err != nil {
			return err
		}
		m.alloc = append(m.alloc, allocEntry{id: id, gen: gen})
	}
	return nil
}

// read returns the payload and ref list persisted at id.
func (m *Manager) read(ctx context.Context, id Ref) ([]byte, []uint64, error) {
	if m.store == nil {
		return nil, nil, ErrFileNotOpen
	}
	return m.store.ReadObject(ctx, m.querier(), uint64(id))
}

// writeRaw persists payload/refs at id, applying the Scanning-phase write
// barrier: the write leaves id carrying the live color, so the scanner
// will never expand it (again), and any ref this write installs is pushed
// onto SCAN directly instead.
func (m *Manager) writeRaw(ctx context.Context, id Ref, payload []byte, refs []uint64) error {
	if len(payload) > PayloadLimit {
		return fmt.Errorf("%w: %d bytes (limit %d)", ErrPayloadTooLarge, len(payload), PayloadLimit)
	}
	q := m.querier()
	prevMark, err := m.store.WriteObject(ctx, q, uint64(id), payload, refs, m.currentMark())
	if err != nil {
		return err
	}
	if m.meta.Phase == storage.PhaseScanning {
		// Dijkstra insertion barrier. If id already carried the live
		// color (prevMark == currentMark), the scanner has already marked
		// it and may have expanded and dequeued it. If it did not, this
		// write has just recolored it, so MarkReachable will skip it when
		// the scanner pops it. Either way the scanner never expands this
		// ref list, so it is pushed onto SCAN here.
		if err := m.store.ScanPush(ctx, q, refs); err != nil {
			return err
		}
	}
	return nil
}

// currentMark returns the color new writes should carry: the metadata's
// live Mark in every phase (mirroring the allocator's color policy so a
// write during Sweeping never colors a block with the dying color).
func (m *Manager) currentMark() bool {
	return m.meta.Mark
}
