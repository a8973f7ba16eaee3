package block

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/hchenqi/blockstore/internal/storage"
)

// Phase mirrors storage.Phase in block's own vocabulary, so callers of
// this package never need to import internal/storage directly.
type Phase int

const (
	PhaseIdle Phase = iota
	PhaseScanning
	PhaseSweeping
)

func (p Phase) String() string {
	switch p {
	case PhaseIdle:
		return "idle"
	case PhaseScanning:
		return "scanning"
	case PhaseSweeping:
		return "sweeping"
	default:
		return "unknown"
	}
}

// GCInfo reports the GC state machine's current phase and progress
// counters.
type GCInfo struct {
	Phase            Phase
	BlockCount       uint64
	BlockCountMarked uint64
	SweepIndex       uint64
	MaxIndex         uint64
	// CycleID correlates every step of one Idle-to-Idle cycle in logs. It
	// is held in memory only: GCInfo reports it empty while Idle and after
	// a reopen in mid-cycle, while the Notify call for the step that
	// returns to Idle still carries the finished cycle's id.
	CycleID string
}

func gcInfoFromMetadata(m storage.Metadata) GCInfo {
	return GCInfo{
		Phase:            Phase(m.Phase),
		BlockCount:       m.BlockCount,
		BlockCountMarked: m.BlockCountMarked,
		SweepIndex:       m.SweepIndex,
		MaxIndex:         m.MaxIndex,
	}
}

// Callback lets a caller observe GC progress and ask for an early stop
// between steps: GC runs incrementally, one bounded step per call, never
// blocking for a whole cycle unless the caller loops.
type Callback struct {
	// Notify is invoked after every step with the resulting GCInfo. Nil is
	// a valid no-op callback.
	Notify func(GCInfo)
	// Interrupt is polled before each step; if it returns true, GC stops
	// and returns nil without taking that step.
	Interrupt func() bool
}

func (cb Callback) notify(info GCInfo) {
	if cb.Notify != nil {
		cb.Notify(info)
	}
}

func (cb Callback) interrupted() bool {
	return cb.Interrupt != nil && cb.Interrupt()
}

// GC runs one bounded incremental step of the mark-and-sweep state
// machine and returns. Callers that want a full cycle call it in a loop,
// checking GCInfo().Phase.
//
// Color model: a single cycle-local flip happens at the Idle-to-Scanning
// transition, not at the end of Sweeping. From that point on, the mark
// byte of a live-reachable block equals the metadata's current Mark;
// anything still carrying the old color when Scanning finishes has been
// proven unreachable and Sweeping deletes gc != Mark. This differs from
// a literal flip-after-sweep reading, which cannot distinguish reachable
// from unreachable blocks allocated before the cycle began without an
// unmarking pass that is never described — see DESIGN.md for the full
// trace that rules it out.
func (m *Manager) GC(cb Callback) error {
	if m.store == nil {
		return ErrFileNotOpen
	}
	if cb.interrupted() {
		return nil
	}

	ctx := context.Background()
	tx, err := m.store.BeginTx(ctx)
	if err != nil {
		return err
	}
	meta, _, err := m.store.ReadMetadata(ctx, tx)
	if err != nil {
		tx.Rollback()
		return err
	}

	var stepErr error
	switch meta.Phase {
	case storage.PhaseIdle:
		m.cycleID = uuid.NewString()
		meta, stepErr = m.gcStepStartScan(ctx, tx, meta)
	case storage.PhaseScanning:
		meta, stepErr = m.gcStepScan(ctx, tx, meta)
	case storage.PhaseSweeping:
		meta, stepErr = m.gcStepSweep(ctx, tx, meta)
	}
	if stepErr != nil {
		tx.Rollback()
		return stepErr
	}
	if err := m.store.WriteMetadata(ctx, tx, meta); err != nil {
		tx.Rollback()
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("block: gc commit: %w", err)
	}

	info := gcInfoFromMetadata(meta)
	info.CycleID = m.cycleID
	m.log.Debug().Str("cycle_id", m.cycleID).Stringer("phase", info.Phase).
		Uint64("block_count_marked", info.BlockCountMarked).Msg("gc step")
	if info.Phase == PhaseIdle {
		m.cycleID = ""
	}

	cb.notify(info)
	return nil
}

// gcStepStartScan performs the Idle-to-Scanning transition: flip the
// cycle color, seed the SCAN queue with the root, and snapshot the
// current block count as BlockCount, moving the previous BlockCount into
// BlockCountPrev.
func (m *Manager) gcStepStartScan(ctx context.Context, tx storage.Querier, meta storage.Metadata) (storage.Metadata, error) {
	if err := m.store.ClearScan(ctx, tx); err != nil {
		return meta, err
	}
	newMark := !meta.Mark
	// Root is pushed unrecolored and left for the first gcStepScan pass to
	// discover, exactly like every other reachable block. Recoloring it
	// here would make the later MarkReachable(root) call in gcStepScan see
	// root already carrying mark and skip it as unmatched, so its ref
	// list would never be read or expanded and nothing beyond root itself
	// would ever reach SCAN.
	if err := m.store.ScanPush(ctx, tx, []uint64{meta.Root}); err != nil {
		return meta, err
	}
	count, err := m.store.CountObjects(ctx, tx)
	if err != nil {
		return meta, err
	}
	maxID, err := m.store.MaxObjectID(ctx, tx)
	if err != nil {
		return meta, err
	}

	meta.Mark = newMark
	meta.Phase = storage.PhaseScanning
	meta.BlockCountPrev = meta.BlockCount
	meta.BlockCount = count
	meta.BlockCountMarked = 0
	meta.MaxIndex = maxID
	meta.SweepIndex = 0
	return meta, nil
}

// gcStepScan pops and processes a bounded batch from the SCAN queue,
// recoloring every block it reaches to the live color and pushing its
// refs for further processing. When the queue
// drains and no outstanding cache handle could still smuggle an
// unscanned reference through the write barrier, it finalizes the
// Scanning-to-Sweeping transition.
func (m *Manager) gcStepScan(ctx context.Context, tx storage.Querier, meta storage.Metadata) (storage.Metadata, error) {
	changes := 0
	for depth := 0; depth < scanStepDepth && changes < scanChangesLimit; depth++ {
		batch, err := m.store.ScanPopBatch(ctx, tx, scanBatchSize)
		if err != nil {
			return meta, err
		}
		if len(batch) == 0 {
			break
		}
		rowIDs := make([]int64, 0, len(batch))
		for _, row := range batch {
			rowIDs = append(rowIDs, row.RowID)
		}
		if err := m.store.ScanDelete(ctx, tx, rowIDs); err != nil {
			return meta, err
		}
		for _, row := range batch {
			matched, refs, err := m.store.MarkReachable(ctx, tx, row.ID, meta.Mark)
			if err != nil {
				return meta, err
			}
			if !matched {
				continue
			}
			meta.BlockCountMarked++
			changes++
			if len(refs) > 0 {
				if err := m.store.ScanPush(ctx, tx, refs); err != nil {
					return meta, err
				}
			}
		}
	}

	empty, err := m.store.ScanEmpty(ctx, tx)
	if err != nil {
		return meta, err
	}
	if empty && m.cache.LiveHandles() == 0 {
		meta.Phase = storage.PhaseSweeping
		meta.SweepIndex = 0
		// Rows pre-allocated during Scanning carry the post-flip live
		// color already (see refillBatch), so nothing here needs
		// recoloring; only the in-memory pending batch from the old
		// regime is stale and must be dropped.
		m.alloc = nil
	}
	return meta, nil
}

// gcStepSweep deletes one bounded range of proven-dead rows and advances
// the sweep cursor, completing the cycle back to Idle once the cursor
// passes the cycle's recorded high-water mark.
func (m *Manager) gcStepSweep(ctx context.Context, tx storage.Querier, meta storage.Metadata) (storage.Metadata, error) {
	from := meta.SweepIndex
	to := from + sweepBatchSize
	if _, err := m.store.DeleteDeadInRange(ctx, tx, from, to, meta.Mark); err != nil {
		return meta, err
	}
	meta.SweepIndex = to

	if meta.SweepIndex > meta.MaxIndex {
		count, err := m.store.CountObjects(ctx, tx)
		if err != nil {
			return meta, err
		}
		meta.Phase = storage.PhaseIdle
		meta.BlockCount = count
		meta.SweepIndex = 0
		meta.MaxIndex = 0
		meta.BlockCountMarked = 0
	}
	return meta, nil
}
