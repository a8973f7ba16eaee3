// Package deque is the chunked persistent double-ended queue: a doubly
// linked chain of blocks each carrying up to K inline elements, with
// split-on-full-insert and unlink-on-empty policies that keep every
// node's fill within [1, K] (only a sole remaining node may be empty).
package deque

import (
	"github.com/hchenqi/blockstore/internal/block"
	"github.com/hchenqi/blockstore/internal/codec"
	"github.com/hchenqi/blockstore/internal/container"
)

// Deque is a chunked double-ended queue rooted at a sentinel block.
type Deque[T any] struct {
	m    *block.Manager
	elem codec.FixedCodec[T]
	node nodeCodec[T]
	root block.Ref
	k    int
}

// New allocates a fresh empty deque. K (the per-node capacity) is
// derived from elem's fixed encoded size and the block payload limit; a
// degenerate K of 1 makes every node hold exactly one element, specializing
// into plain list behavior.
func New[T any](m *block.Manager, elem codec.FixedCodec[T]) (*Deque[T], error) {
	k := computeK(elem.Size())
	if k < 1 {
		k = 1
	}
	idx, err := m.AllocateIndex()
	if err != nil {
		return nil, err
	}
	block.Install(m, sentinelCodec{}, idx, sentinel{next: idx, prev: idx})
	return &Deque[T]{m: m, elem: elem, node: nodeCodec[T]{elem: elem, elemSize: elem.Size()}, root: idx, k: k}, nil
}

// Open wraps an existing sentinel block as a deque.
func Open[T any](m *block.Manager, elem codec.FixedCodec[T], root block.Ref) *Deque[T] {
	k := computeK(elem.Size())
	if k < 1 {
		k = 1
	}
	return &Deque[T]{m: m, elem: elem, node: nodeCodec[T]{elem: elem, elemSize: elem.Size()}, root: root, k: k}
}

// Root returns the deque's sentinel reference.
func (d *Deque[T]) Root() block.Ref { return d.root }

// K returns the per-node element capacity in effect for this deque.
func (d *Deque[T]) K() int { return d.k }

func (d *Deque[T]) readSentinel() (sentinel, error) { return block.Get(d.m, sentinelCodec{}, d.root) }
func (d *Deque[T]) writeSentinel(s sentinel) error  { return block.Set(d.m, d.root, s) }
func (d *Deque[T]) readNode(r block.Ref) (node[T], error) {
	return block.Get(d.m, d.node, r)
}
func (d *Deque[T]) writeNode(r block.Ref, n node[T]) error { return block.Set(d.m, r, n) }

func (d *Deque[T]) readLinks(ref block.Ref) (next, prev block.Ref, err error) {
	if ref == d.root {
		s, err := d.readSentinel()
		return s.next, s.prev, err
	}
	n, err := d.readNode(ref)
	return n.next, n.prev, err
}

func (d *Deque[T]) setPrevOf(ref, prev block.Ref) error {
	if ref == d.root {
		s, err := d.readSentinel()
		if err != nil {
			return err
		}
		s.prev = prev
		return d.writeSentinel(s)
	}
	n, err := d.readNode(ref)
	if err != nil {
		return err
	}
	n.prev = prev
	return d.writeNode(ref, n)
}

func (d *Deque[T]) setNextOf(ref, next block.Ref) error {
	if ref == d.root {
		s, err := d.readSentinel()
		if err != nil {
			return err
		}
		s.next = next
		return d.writeSentinel(s)
	}
	n, err := d.readNode(ref)
	if err != nil {
		return err
	}
	n.next = next
	return d.writeNode(ref, n)
}

// Empty reports whether the deque holds no elements.
func (d *Deque[T]) Empty() (bool, error) {
	s, err := d.readSentinel()
	if err != nil {
		return false, err
	}
	if s.next == d.root {
		return true, nil
	}
	n, err := d.readNode(s.next)
	if err != nil {
		return false, err
	}
	return s.next == s.prev && len(n.data) == 0, nil
}

// unlinkNode splices ref out of the chain entirely; used when erasing its
// last remaining element while other nodes still exist.
func (d *Deque[T]) unlinkNode(ref, next, prev block.Ref) error {
	if err := d.setNextOf(prev, next); err != nil {
		return err
	}
	return d.setPrevOf(next, prev)
}

// insertNodeAfter splices a brand new node holding data in between ref
// and ref's current next.
func (d *Deque[T]) insertNodeAfter(ref block.Ref, data []T) (block.Ref, error) {
	next, _, err := d.readLinks(ref)
	if err != nil {
		return block.Invalid, err
	}
	idx, err := d.m.AllocateIndex()
	if err != nil {
		return block.Invalid, err
	}
	block.Install(d.m, d.node, idx, node[T]{next: next, prev: ref, data: data})
	if err := d.setNextOf(ref, idx); err != nil {
		return block.Invalid, err
	}
	if err := d.setPrevOf(next, idx); err != nil {
		return block.Invalid, err
	}
	return idx, nil
}

// PushBack appends v as a new last element.
func (d *Deque[T]) PushBack(v T) error {
	s, err := d.readSentinel()
	if err != nil {
		return err
	}
	if s.prev == d.root {
		_, err := d.insertNodeAfter(d.root, []T{v})
		return err
	}
	last, err := d.readNode(s.prev)
	if err != nil {
		return err
	}
	if len(last.data) >= d.k {
		_, err := d.insertNodeAfter(s.prev, []T{v})
		return err
	}
	last.data = append(last.data, v)
	return d.writeNode(s.prev, last)
}

// PushFront prepends v as a new first element.
func (d *Deque[T]) PushFront(v T) error {
	s, err := d.readSentinel()
	if err != nil {
		return err
	}
	if s.next == d.root {
		_, err := d.insertNodeAfter(d.root, []T{v})
		return err
	}
	first, err := d.readNode(s.next)
	if err != nil {
		return err
	}
	if len(first.data) >= d.k {
		_, err := d.insertNodeAfter(d.root, []T{v})
		return err
	}
	first.data = append([]T{v}, first.data...)
	return d.writeNode(s.next, first)
}

// Front returns the first element's value.
func (d *Deque[T]) Front() (T, error) {
	var zero T
	s, err := d.readSentinel()
	if err != nil {
		return zero, err
	}
	if s.next == d.root {
		return zero, container.ErrEmpty
	}
	n, err := d.readNode(s.next)
	if err != nil {
		return zero, err
	}
	if len(n.data) == 0 {
		return zero, container.ErrEmpty
	}
	return n.data[0], nil
}

// Back returns the last element's value.
func (d *Deque[T]) Back() (T, error) {
	var zero T
	s, err := d.readSentinel()
	if err != nil {
		return zero, err
	}
	if s.prev == d.root {
		return zero, container.ErrEmpty
	}
	n, err := d.readNode(s.prev)
	if err != nil {
		return zero, err
	}
	if len(n.data) == 0 {
		return zero, container.ErrEmpty
	}
	return n.data[len(n.data)-1], nil
}

// PopFront removes the first element.
func (d *Deque[T]) PopFront() error {
	s, err := d.readSentinel()
	if err != nil {
		return err
	}
	if s.next == d.root {
		return container.ErrEmpty
	}
	ref := s.next
	n, err := d.readNode(ref)
	if err != nil {
		return err
	}
	if len(n.data) == 0 {
		return container.ErrEmpty
	}
	n.data = n.data[1:]
	return d.shrinkOrUnlink(ref, n)
}

// PopBack removes the last element.
func (d *Deque[T]) PopBack() error {
	s, err := d.readSentinel()
	if err != nil {
		return err
	}
	if s.prev == d.root {
		return container.ErrEmpty
	}
	ref := s.prev
	n, err := d.readNode(ref)
	if err != nil {
		return err
	}
	if len(n.data) == 0 {
		return container.ErrEmpty
	}
	n.data = n.data[:len(n.data)-1]
	return d.shrinkOrUnlink(ref, n)
}

// shrinkOrUnlink writes back n's already-trimmed data, or splices ref out
// of the chain entirely if that trim emptied it and other nodes remain:
// a zero-length node only survives as the deque's sole remaining node.
func (d *Deque[T]) shrinkOrUnlink(ref block.Ref, n node[T]) error {
	if len(n.data) > 0 {
		return d.writeNode(ref, n)
	}
	if n.next == d.root && n.prev == d.root {
		return d.writeNode(ref, n)
	}
	return d.unlinkNode(ref, n.next, n.prev)
}

// Iterator is a bidirectional cursor into a Deque, addressing an element
// by its owning node and intra-node offset.
type Iterator[T any] struct {
	d   *Deque[T]
	ref block.Ref
	idx int
}

// AtEnd reports whether it addresses the sentinel (past-the-end).
func (it Iterator[T]) AtEnd() bool { return it.ref == it.d.root }

// Begin returns an iterator to the first element, or to End if empty.
func (d *Deque[T]) Begin() (Iterator[T], error) {
	s, err := d.readSentinel()
	if err != nil {
		return Iterator[T]{}, err
	}
	if s.next == d.root {
		return Iterator[T]{d: d, ref: d.root}, nil
	}
	return Iterator[T]{d: d, ref: s.next, idx: 0}, nil
}

// End returns the past-the-end iterator.
func (d *Deque[T]) End() Iterator[T] { return Iterator[T]{d: d, ref: d.root} }

// Next returns the iterator to the following element.
func (it Iterator[T]) Next() (Iterator[T], error) {
	n, err := it.d.readNode(it.ref)
	if err != nil {
		return Iterator[T]{}, err
	}
	if it.idx+1 < len(n.data) {
		return Iterator[T]{d: it.d, ref: it.ref, idx: it.idx + 1}, nil
	}
	return Iterator[T]{d: it.d, ref: n.next, idx: 0}, nil
}

// Prev returns the iterator to the preceding element.
func (it Iterator[T]) Prev() (Iterator[T], error) {
	if it.idx > 0 {
		return Iterator[T]{d: it.d, ref: it.ref, idx: it.idx - 1}, nil
	}
	_, prev, err := it.d.readLinks(it.ref)
	if err != nil {
		return Iterator[T]{}, err
	}
	pn, err := it.d.readNode(prev)
	if err != nil {
		return Iterator[T]{}, err
	}
	return Iterator[T]{d: it.d, ref: prev, idx: len(pn.data) - 1}, nil
}

// Value returns the element addressed by it.
func (it Iterator[T]) Value() (T, error) {
	var zero T
	if it.AtEnd() {
		return zero, container.ErrOutOfRange
	}
	n, err := it.d.readNode(it.ref)
	if err != nil {
		return zero, err
	}
	if it.idx < 0 || it.idx >= len(n.data) {
		return zero, container.ErrOutOfRange
	}
	return n.data[it.idx], nil
}

// Set replaces the element addressed by it.
func (it Iterator[T]) Set(v T) error {
	if it.AtEnd() {
		return container.ErrOutOfRange
	}
	n, err := it.d.readNode(it.ref)
	if err != nil {
		return err
	}
	if it.idx < 0 || it.idx >= len(n.data) {
		return container.ErrOutOfRange
	}
	// Copy before modifying: n.data shares its backing array with the
	// cached value, which the cache keeps as the rollback snapshot.
	data := append([]T(nil), n.data...)
	data[it.idx] = v
	n.data = data
	return it.d.writeNode(it.ref, n)
}

// Emplace inserts v immediately before pos and returns an iterator to the
// newly inserted element. A pos of End() with a full or absent last node
// behaves as PushBack.
func (d *Deque[T]) Emplace(pos Iterator[T], v T) (Iterator[T], error) {
	if pos.AtEnd() {
		if err := d.PushBack(v); err != nil {
			return Iterator[T]{}, err
		}
		s, err := d.readSentinel()
		if err != nil {
			return Iterator[T]{}, err
		}
		n, err := d.readNode(s.prev)
		if err != nil {
			return Iterator[T]{}, err
		}
		return Iterator[T]{d: d, ref: s.prev, idx: len(n.data) - 1}, nil
	}

	n, err := d.readNode(pos.ref)
	if err != nil {
		return Iterator[T]{}, err
	}
	if len(n.data) < d.k {
		grown := make([]T, len(n.data)+1)
		copy(grown, n.data[:pos.idx])
		grown[pos.idx] = v
		copy(grown[pos.idx+1:], n.data[pos.idx:])
		n.data = grown
		if err := d.writeNode(pos.ref, n); err != nil {
			return Iterator[T]{}, err
		}
		return Iterator[T]{d: d, ref: pos.ref, idx: pos.idx}, nil
	}

	// Full node: split so the inserted value and everything before it
	// stay in pos.ref, and everything from pos.idx onward moves to a new
	// node splice immediately after it.
	left := append([]T(nil), n.data[:pos.idx]...)
	right := append([]T(nil), n.data[pos.idx:]...)
	newIdx, err := d.insertNodeAfter(pos.ref, right)
	if err != nil {
		return Iterator[T]{}, err
	}
	left = append(left, v)
	n.data = left
	n.next = newIdx
	if err := d.writeNode(pos.ref, n); err != nil {
		return Iterator[T]{}, err
	}
	return Iterator[T]{d: d, ref: pos.ref, idx: len(left) - 1}, nil
}

// Erase removes the element at pos.
func (d *Deque[T]) Erase(pos Iterator[T]) error {
	if pos.AtEnd() {
		return container.ErrOutOfRange
	}
	n, err := d.readNode(pos.ref)
	if err != nil {
		return err
	}
	if pos.idx < 0 || pos.idx >= len(n.data) {
		return container.ErrOutOfRange
	}
	// Build a new slice rather than shifting in place, so the cached
	// value kept as the rollback snapshot is left untouched.
	data := append([]T(nil), n.data[:pos.idx]...)
	n.data = append(data, n.data[pos.idx+1:]...)
	return d.shrinkOrUnlink(pos.ref, n)
}
