package block

import (
	"context"

	"github.com/hchenqi/blockstore/internal/cache"
	"github.com/hchenqi/blockstore/internal/codec"
)

// Get reads and decodes the value at ref using c, materializing it into
// the cache on first access. Go forbids generic methods on a non-generic
// receiver, so these live as free functions parameterized over T rather
// than as Manager methods.
func Get[T any](m *Manager, c codec.Codec[T], ref Ref) (T, error) {
	var zero T
	if m.store == nil {
		return zero, ErrFileNotOpen
	}
	v, err := m.cache.Get(uint64(ref), func() (any, cache.WriteFunc, error) {
		payload, refs, err := m.read(context.Background(), ref)
		if err != nil {
			return nil, nil, err
		}
		value, err := c.Decode(payload, refs)
		if err != nil {
			return nil, nil, err
		}
		return value, writeFuncFor(c), nil
	})
	if err != nil {
		return zero, err
	}
	return v.(T), nil
}

// New allocates a fresh index, installs value into it via c, and returns
// the new reference. The write is deferred to commit like any other
// cache mutation; callers run New inside a Transaction.
func New[T any](m *Manager, c codec.Codec[T], value T) (Ref, error) {
	if m.store == nil {
		return Invalid, ErrFileNotOpen
	}
	idx, err := m.AllocateIndex()
	if err != nil {
		return Invalid, err
	}
	m.cache.Put(uint64(idx), value, writeFuncFor(c))
	return idx, nil
}

// Set replaces the value at ref, following the cache's copy-on-write
// discipline (a snapshot is taken on the first Set within the active
// transaction so a rollback restores the pre-transaction value).
func Set[T any](m *Manager, ref Ref, value T) error {
	if m.store == nil {
		return ErrFileNotOpen
	}
	return m.cache.Update(uint64(ref), value)
}

// IsFreshBlock reports whether ref still carries the empty payload/ref
// list it was allocated with, i.e. no container has claimed it as a
// sentinel yet. The CLI uses this to bootstrap the file's root block the
// first time it is addressed as a particular container type.
func IsFreshBlock(m *Manager, ref Ref) (bool, error) {
	payload, refs, err := m.read(context.Background(), ref)
	if err != nil {
		return false, err
	}
	return len(payload) == 0 && len(refs) == 0, nil
}

// Install places value directly at an already-allocated ref, bypassing
// AllocateIndex. Container constructors use this to seed a sentinel
// block whose own index must appear inside its initial value (a freshly
// allocated empty list's sentinel links to itself).
func Install[T any](m *Manager, c codec.Codec[T], ref Ref, value T) {
	m.cache.Put(uint64(ref), value, writeFuncFor(c))
}

func writeFuncFor[T any](c codec.Codec[T]) cache.WriteFunc {
	return func(value any) ([]byte, []uint64, error) {
		return c.Encode(value.(T))
	}
}
