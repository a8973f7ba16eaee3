// Package list is a persistent doubly linked list: its
// sentinel block terminates both chains, so an empty list satisfies
// sentinel.next == sentinel.prev == sentinel.
package list

import (
	"github.com/hchenqi/blockstore/internal/block"
	"github.com/hchenqi/blockstore/internal/codec"
	"github.com/hchenqi/blockstore/internal/container"
)

// List is a doubly linked list rooted at a sentinel block.
type List[T any] struct {
	m    *block.Manager
	elem codec.Codec[T]
	node nodeCodec[T]
	root block.Ref
}

// New allocates a fresh empty list and returns it. Call inside a
// Manager.Transaction.
func New[T any](m *block.Manager, elem codec.Codec[T]) (*List[T], error) {
	idx, err := m.AllocateIndex()
	if err != nil {
		return nil, err
	}
	block.Install(m, sentinelCodec{}, idx, sentinel{next: idx, prev: idx})
	return &List[T]{m: m, elem: elem, node: nodeCodec[T]{elem}, root: idx}, nil
}

// Open wraps an existing sentinel block as a list.
func Open[T any](m *block.Manager, elem codec.Codec[T], root block.Ref) *List[T] {
	return &List[T]{m: m, elem: elem, node: nodeCodec[T]{elem}, root: root}
}

// Bootstrap wraps root as a list, first installing an empty sentinel into
// it if it is still a fresh, never-claimed block (the file's root index,
// addressed as a list for the first time).
func Bootstrap[T any](m *block.Manager, elem codec.Codec[T], root block.Ref) (*List[T], error) {
	fresh, err := block.IsFreshBlock(m, root)
	if err != nil {
		return nil, err
	}
	if fresh {
		block.Install(m, sentinelCodec{}, root, sentinel{next: root, prev: root})
	}
	return Open(m, elem, root), nil
}

// Root returns the list's sentinel reference.
func (l *List[T]) Root() block.Ref { return l.root }

func (l *List[T]) readSentinel() (sentinel, error) { return block.Get(l.m, sentinelCodec{}, l.root) }
func (l *List[T]) writeSentinel(s sentinel) error  { return block.Set(l.m, l.root, s) }
func (l *List[T]) readNode(r block.Ref) (node[T], error) {
	return block.Get(l.m, l.node, r)
}
func (l *List[T]) writeNode(r block.Ref, n node[T]) error { return block.Set(l.m, r, n) }

func (l *List[T]) readLinks(ref block.Ref) (next, prev block.Ref, err error) {
	if ref == l.root {
		s, err := l.readSentinel()
		return s.next, s.prev, err
	}
	n, err := l.readNode(ref)
	return n.next, n.prev, err
}

func (l *List[T]) writeLinks(ref, next, prev block.Ref) error {
	if ref == l.root {
		return l.writeSentinel(sentinel{next: next, prev: prev})
	}
	n, err := l.readNode(ref)
	if err != nil {
		return err
	}
	n.next, n.prev = next, prev
	return l.writeNode(ref, n)
}

func (l *List[T]) setNext(ref, next block.Ref) error {
	_, prev, err := l.readLinks(ref)
	if err != nil {
		return err
	}
	return l.writeLinks(ref, next, prev)
}

func (l *List[T]) setPrev(ref, prev block.Ref) error {
	next, _, err := l.readLinks(ref)
	if err != nil {
		return err
	}
	return l.writeLinks(ref, next, prev)
}

// Empty reports whether the list holds no elements.
func (l *List[T]) Empty() (bool, error) {
	s, err := l.readSentinel()
	if err != nil {
		return false, err
	}
	return s.next == l.root, nil
}

// Begin returns an iterator to the first element, or to End if empty.
func (l *List[T]) Begin() (Iterator[T], error) {
	next, _, err := l.readLinks(l.root)
	return Iterator[T]{l: l, cur: next}, err
}

// End returns the past-the-end iterator (the sentinel itself).
func (l *List[T]) End() Iterator[T] { return Iterator[T]{l: l, cur: l.root} }

// Front returns the first element's value.
func (l *List[T]) Front() (T, error) {
	var zero T
	it, err := l.Begin()
	if err != nil {
		return zero, err
	}
	if it.AtEnd() {
		return zero, container.ErrEmpty
	}
	return it.Value()
}

// Back returns the last element's value.
func (l *List[T]) Back() (T, error) {
	var zero T
	_, prev, err := l.readLinks(l.root)
	if err != nil {
		return zero, err
	}
	if prev == l.root {
		return zero, container.ErrEmpty
	}
	return (Iterator[T]{l: l, cur: prev}).Value()
}

// InsertBefore inserts v immediately before pos and returns an iterator
// to the newly inserted element.
func (l *List[T]) InsertBefore(pos Iterator[T], v T) (Iterator[T], error) {
	next := pos.cur
	_, prev, err := l.readLinks(next)
	if err != nil {
		return Iterator[T]{}, err
	}
	idx, err := l.m.AllocateIndex()
	if err != nil {
		return Iterator[T]{}, err
	}
	block.Install(l.m, l.node, idx, node[T]{next: next, prev: prev, value: v})

	if prev == next {
		// Degenerate case: both point at the same block, which can only
		// happen when that block is the sentinel of an empty list.
		if err := l.writeLinks(prev, idx, idx); err != nil {
			return Iterator[T]{}, err
		}
		return Iterator[T]{l: l, cur: idx}, nil
	}
	if err := l.setNext(prev, idx); err != nil {
		return Iterator[T]{}, err
	}
	if err := l.setPrev(next, idx); err != nil {
		return Iterator[T]{}, err
	}
	return Iterator[T]{l: l, cur: idx}, nil
}

// Erase removes the element at pos. The vacated block becomes
// unreferenced and is reclaimed by the next GC cycle; there is no
// explicit free operation.
func (l *List[T]) Erase(pos Iterator[T]) error {
	if pos.cur == l.root {
		return container.ErrOutOfRange
	}
	next, prev, err := l.readLinks(pos.cur)
	if err != nil {
		return err
	}
	if prev == next {
		return l.writeLinks(prev, prev, prev)
	}
	if err := l.setNext(prev, next); err != nil {
		return err
	}
	return l.setPrev(next, prev)
}

// PushFront inserts v at the front of the list.
func (l *List[T]) PushFront(v T) error {
	begin, err := l.Begin()
	if err != nil {
		return err
	}
	_, err = l.InsertBefore(begin, v)
	return err
}

// PushBack inserts v at the back of the list.
func (l *List[T]) PushBack(v T) error {
	_, err := l.InsertBefore(l.End(), v)
	return err
}

// PopFront removes the first element.
func (l *List[T]) PopFront() error {
	begin, err := l.Begin()
	if err != nil {
		return err
	}
	if begin.AtEnd() {
		return container.ErrEmpty
	}
	return l.Erase(begin)
}

// PopBack removes the last element.
func (l *List[T]) PopBack() error {
	_, prev, err := l.readLinks(l.root)
	if err != nil {
		return err
	}
	if prev == l.root {
		return container.ErrEmpty
	}
	return l.Erase(Iterator[T]{l: l, cur: prev})
}

// Iterator is a bidirectional cursor into a List.
type Iterator[T any] struct {
	l   *List[T]
	cur block.Ref
}

// AtEnd reports whether it addresses the sentinel (past-the-end).
func (it Iterator[T]) AtEnd() bool { return it.cur == it.l.root }

// Next returns the iterator to the following element.
func (it Iterator[T]) Next() (Iterator[T], error) {
	next, _, err := it.l.readLinks(it.cur)
	return Iterator[T]{l: it.l, cur: next}, err
}

// Prev returns the iterator to the preceding element.
func (it Iterator[T]) Prev() (Iterator[T], error) {
	_, prev, err := it.l.readLinks(it.cur)
	return Iterator[T]{l: it.l, cur: prev}, err
}

// Value returns the element addressed by it.
func (it Iterator[T]) Value() (T, error) {
	var zero T
	if it.AtEnd() {
		return zero, container.ErrOutOfRange
	}
	n, err := it.l.readNode(it.cur)
	if err != nil {
		return zero, err
	}
	return n.value, nil
}

// Set replaces the element addressed by it.
func (it Iterator[T]) Set(v T) error {
	if it.AtEnd() {
		return container.ErrOutOfRange
	}
	n, err := it.l.readNode(it.cur)
	if err != nil {
		return err
	}
	n.value = v
	return it.l.writeNode(it.cur, n)
}
